package insider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seenimoa/diligenceops/pkg/models"
)

func trade(name, date, code string, shares float64) models.InsiderTransaction {
	return models.InsiderTransaction{
		InsiderName: name, TransactionDate: date, TransactionCode: code,
		Shares: shares, IsDirect: true, FilingDate: date,
	}
}

// ════════════════════════════════════════════════════════════════════
// DetectCluster
// ════════════════════════════════════════════════════════════════════

func TestClusterFourSellersWithinWindow(t *testing.T) {
	trades := []models.InsiderTransaction{
		trade("Alice", "2024-03-11", models.TxSale, 1000),
		trade("Bob", "2024-03-01", models.TxSale, 1000),
		trade("Carol", "2024-03-06", models.TxSale, 1000),
		trade("Dan", "2024-03-03", models.TxSale, 1000),
	}
	c, ok := DetectCluster(trades)
	require.True(t, ok)
	assert.Equal(t, DirectionSell, c.Direction)
	assert.Equal(t, 4, c.Insiders)
	assert.Equal(t, "Cluster sell: 4 insiders within 30 days starting 2024-03-01", c.Description())

	sig := Signal(trades)
	assert.True(t, sig.ClusterDetected)
	assert.Equal(t, models.SignalBearish, sig.Signal)
	require.NotNil(t, sig.BuySellRatio, "ratio is only null without sells")
	assert.Equal(t, 0.0, *sig.BuySellRatio)
	assert.Equal(t, -4000.0, sig.NetShares)
}

func TestClusterNeverFiresWithTwoTrades(t *testing.T) {
	for _, code := range []string{models.TxSale, models.TxPurchase} {
		trades := []models.InsiderTransaction{
			trade("Alice", "2024-03-01", code, 10),
			trade("Bob", "2024-03-02", code, 10),
		}
		_, ok := DetectCluster(trades)
		assert.False(t, ok, "code %s", code)
	}
}

func TestClusterRequiresDistinctInsiders(t *testing.T) {
	trades := []models.InsiderTransaction{
		trade("Alice", "2024-03-01", models.TxSale, 10),
		trade("Alice", "2024-03-02", models.TxSale, 10),
		trade("Bob", "2024-03-03", models.TxSale, 10),
	}
	_, ok := DetectCluster(trades)
	assert.False(t, ok)
}

func TestClusterWindowIsInclusive(t *testing.T) {
	trades := []models.InsiderTransaction{
		trade("Alice", "2024-01-01", models.TxPurchase, 10),
		trade("Bob", "2024-01-15", models.TxPurchase, 10),
		trade("Carol", "2024-01-31", models.TxPurchase, 10), // day 30
	}
	c, ok := DetectCluster(trades)
	require.True(t, ok)
	assert.Equal(t, DirectionBuy, c.Direction)

	trades[2].TransactionDate = "2024-02-01" // day 31
	_, ok = DetectCluster(trades)
	assert.False(t, ok)
}

func TestClusterAnchorsAtFirstQualifyingWindow(t *testing.T) {
	trades := []models.InsiderTransaction{
		trade("A", "2024-01-01", models.TxSale, 10),
		trade("B", "2024-03-01", models.TxSale, 10),
		trade("C", "2024-03-05", models.TxSale, 10),
		trade("D", "2024-03-09", models.TxSale, 10),
		trade("E", "2024-03-10", models.TxSale, 10),
	}
	c, ok := DetectCluster(trades)
	require.True(t, ok)
	assert.Equal(t, "2024-03-01", c.Start.Format("2006-01-02"))
	assert.Equal(t, 4, c.Insiders)
}

func TestClusterSellWinsOverBuy(t *testing.T) {
	trades := []models.InsiderTransaction{
		trade("A", "2024-05-01", models.TxPurchase, 10),
		trade("B", "2024-05-02", models.TxPurchase, 10),
		trade("C", "2024-05-03", models.TxPurchase, 10),
		trade("X", "2024-09-01", models.TxSale, 10),
		trade("Y", "2024-09-02", models.TxSale, 10),
		trade("Z", "2024-09-03", models.TxSale, 10),
	}
	c, ok := DetectCluster(trades)
	require.True(t, ok)
	assert.Equal(t, DirectionSell, c.Direction)
}

func TestClusterSkipsUnparseableDates(t *testing.T) {
	trades := []models.InsiderTransaction{
		trade("A", "not-a-date", models.TxSale, 10),
		trade("B", "2024-03-01", models.TxSale, 10),
		trade("C", "2024-03-02", models.TxSale, 10),
	}
	_, ok := DetectCluster(trades)
	assert.False(t, ok)
}

func TestClusterIgnoresAwardsAndExercises(t *testing.T) {
	trades := []models.InsiderTransaction{
		trade("A", "2024-03-01", models.TxAward, 10),
		trade("B", "2024-03-02", models.TxExercise, 10),
		trade("C", "2024-03-03", models.TxAward, 10),
	}
	_, ok := DetectCluster(trades)
	assert.False(t, ok)
}

// ════════════════════════════════════════════════════════════════════
// Signal
// ════════════════════════════════════════════════════════════════════

func TestSignalRatioNullWithoutSells(t *testing.T) {
	for _, trades := range [][]models.InsiderTransaction{
		nil,
		{trade("A", "2024-01-01", models.TxPurchase, 0)},
		{trade("A", "2024-01-01", models.TxPurchase, 500)},
		{trade("A", "2024-01-01", models.TxSale, 0), trade("B", "2024-01-01", models.TxPurchase, 5)},
	} {
		assert.Nil(t, Signal(trades).BuySellRatio)
	}
}

func TestSignalRatioRounded(t *testing.T) {
	sig := Signal([]models.InsiderTransaction{
		trade("A", "2024-01-01", models.TxPurchase, 100),
		trade("B", "2024-02-01", models.TxSale, 300),
	})
	require.NotNil(t, sig.BuySellRatio)
	assert.Equal(t, 0.33, *sig.BuySellRatio)
	assert.Equal(t, models.SignalNeutral, sig.Signal)
}

func TestSignalCountImbalance(t *testing.T) {
	sells := []models.InsiderTransaction{
		trade("A", "2024-01-01", models.TxSale, 1),
		trade("A", "2024-06-01", models.TxSale, 1),
		trade("A", "2024-11-01", models.TxSale, 1),
	}
	sig := Signal(sells)
	assert.False(t, sig.ClusterDetected)
	assert.Equal(t, models.SignalBearish, sig.Signal)

	buys := []models.InsiderTransaction{
		trade("A", "2024-01-01", models.TxPurchase, 1),
		trade("A", "2024-06-01", models.TxPurchase, 1),
		trade("B", "2024-11-01", models.TxSale, 1),
	}
	assert.Equal(t, models.SignalNeutral, Signal(buys).Signal, "2 buys is not more than 2x1 sells")

	buys = append(buys, trade("C", "2024-12-01", models.TxPurchase, 1))
	assert.Equal(t, models.SignalBullish, Signal(buys).Signal)
}

func TestSignalEmpty(t *testing.T) {
	sig := Signal(nil)
	assert.Equal(t, models.InsiderSignal{Signal: models.SignalNeutral}, sig)
}
