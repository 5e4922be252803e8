// Package insider derives directional signals from Form 4 insider trades.
package insider

import (
	"fmt"
	"sort"
	"time"

	"github.com/seenimoa/diligenceops/pkg/models"
	"github.com/seenimoa/diligenceops/pkg/utils"
)

// Cluster detection parameters.
const (
	WindowDays  = 30
	MinInsiders = 3
)

// Cluster directions, checked in this order.
const (
	DirectionSell = "sell"
	DirectionBuy  = "buy"
)

var directions = []struct {
	name string
	code string
}{
	{DirectionSell, models.TxSale},
	{DirectionBuy, models.TxPurchase},
}

type datedTrade struct {
	date    time.Time
	insider string
}

// Cluster is a detected window of same-direction trading.
type Cluster struct {
	Direction string
	Insiders  int
	Start     time.Time
}

// Description renders the human-readable summary stored on the signal.
func (c Cluster) Description() string {
	return fmt.Sprintf("Cluster %s: %d insiders within %d days starting %s",
		c.Direction, c.Insiders, WindowDays, utils.FormatDate(c.Start))
}

// DetectCluster reports the first window, scanning forward in time, in which
// at least MinInsiders distinct insiders traded the same direction within
// WindowDays. Sells are checked before buys; the first qualifying direction
// wins. Trades with unparseable dates are ignored.
func DetectCluster(trades []models.InsiderTransaction) (Cluster, bool) {
	for _, d := range directions {
		var dated []datedTrade
		n := 0
		for _, t := range trades {
			if t.TransactionCode != d.code {
				continue
			}
			n++
			dt, err := utils.ParseDate(t.TransactionDate)
			if err != nil {
				continue
			}
			dated = append(dated, datedTrade{date: dt, insider: t.InsiderName})
		}
		if n < MinInsiders {
			continue
		}

		sort.SliceStable(dated, func(i, j int) bool { return dated[i].date.Before(dated[j].date) })

		for i := range dated {
			seen := make(map[string]struct{})
			for j := i; j < len(dated); j++ {
				if utils.DaysBetween(dated[i].date, dated[j].date) > WindowDays {
					break
				}
				seen[dated[j].insider] = struct{}{}
			}
			if len(seen) >= MinInsiders {
				return Cluster{Direction: d.name, Insiders: len(seen), Start: dated[i].date}, true
			}
		}
	}
	return Cluster{}, false
}
