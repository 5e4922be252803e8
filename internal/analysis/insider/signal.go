package insider

import (
	"github.com/seenimoa/diligenceops/pkg/models"
	"github.com/seenimoa/diligenceops/pkg/utils"
)

// Signal aggregates buys (P) and sells (S) into an InsiderSignal. A detected
// cluster sets the direction; otherwise a 2:1 transaction-count imbalance
// does. BuySellRatio stays nil whenever no shares were sold.
func Signal(trades []models.InsiderTransaction) models.InsiderSignal {
	var (
		buys, sells         int
		buyShares, sellShrs float64
	)
	for _, t := range trades {
		switch t.TransactionCode {
		case models.TxPurchase:
			buys++
			buyShares += t.Shares
		case models.TxSale:
			sells++
			sellShrs += t.Shares
		}
	}

	sig := models.InsiderSignal{
		TotalBuys:  buys,
		TotalSells: sells,
		NetShares:  buyShares - sellShrs,
		Signal:     models.SignalNeutral,
	}
	if sellShrs > 0 {
		sig.BuySellRatio = models.Float(utils.Round2(buyShares / sellShrs))
	}

	cluster, found := DetectCluster(trades)
	switch {
	case found && cluster.Direction == DirectionSell:
		sig.Signal = models.SignalBearish
	case found && cluster.Direction == DirectionBuy:
		sig.Signal = models.SignalBullish
	case sells > buys*2:
		sig.Signal = models.SignalBearish
	case buys > sells*2:
		sig.Signal = models.SignalBullish
	}
	if found {
		sig.ClusterDetected = true
		sig.ClusterDescription = cluster.Description()
	}
	return sig
}
