package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTrade(symbol string, price, qty float64, buyerMaker bool, ts time.Time) Trade {
	return Trade{
		Symbol:     symbol,
		Price:      price,
		Quantity:   qty,
		Timestamp:  ts,
		BuyerMaker: buyerMaker,
		TradeID:    "t",
	}
}

func TestSingleTradeNoBook(t *testing.T) {
	now := time.Now()
	e := NewEngine("BTCUSDT", DefaultEngineConfig(), nil)
	e.AddTrade(newTrade("BTCUSDT", 100, 1, false, now))

	delta := e.DeltaMetrics(now.Add(time.Millisecond), -1)
	assert.InDelta(t, 1.0, delta.RawDelta, 1e-9)
	assert.InDelta(t, 1.0, delta.NormalizedDelta, 1e-9)
	assert.InDelta(t, 1.0, delta.CumulativeDelta, 1e-9)

	absorption := e.AbsorptionMetrics()
	assert.Equal(t, AbsorptionMetrics{}, absorption)

	// No book ever arrived, so momentum's spread falls back to 0.01
	// (momentum.go), which alone clips the OFMBI contribution to 1.0 and
	// pushes HFSS to 0.25+0.20=0.45; softmax3(0.45*3) favors buy.
	sig := e.GenerateSignal(now.Add(time.Millisecond))
	assert.Equal(t, SignalBuy, sig.Type)
}

func TestZeroWindowReturnsEmptyDelta(t *testing.T) {
	now := time.Now()
	e := NewEngine("BTCUSDT", DefaultEngineConfig(), nil)
	e.AddTrade(newTrade("BTCUSDT", 100, 1, false, now))

	delta := e.DeltaMetrics(now, 0)
	assert.Equal(t, 0.0, delta.RawDelta)
}

func TestNormalizedDeltaBoundedByOne(t *testing.T) {
	now := time.Now()
	e := NewEngine("BTCUSDT", DefaultEngineConfig(), nil)
	for i := 0; i < 50; i++ {
		e.AddTrade(newTrade("BTCUSDT", 100, 1, false, now))
	}
	delta := e.DeltaMetrics(now.Add(time.Millisecond), 60_000)
	assert.LessOrEqual(t, delta.NormalizedDelta, 1.0)
	assert.GreaterOrEqual(t, delta.NormalizedDelta, -1.0)
}

func TestCumulativeDeltaInvariant(t *testing.T) {
	now := time.Now()
	e := NewEngine("BTCUSDT", DefaultEngineConfig(), nil)
	e.AddTrade(newTrade("BTCUSDT", 100, 3, false, now))
	e.AddTrade(newTrade("BTCUSDT", 101, 1, true, now.Add(time.Millisecond)))

	require.InDelta(t, 3.0, e.state.totalBuyVolume, 1e-9)
	require.InDelta(t, 1.0, e.state.totalSellVolume, 1e-9)
	assert.InDelta(t, e.state.totalBuyVolume-e.state.totalSellVolume, e.state.cumulativeDelta, 1e-9)
}
