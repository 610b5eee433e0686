package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLiquidityNeutralOnEmptyState(t *testing.T) {
	e := NewEngine("BTCUSDT", DefaultEngineConfig(), nil)
	assert.Equal(t, LiquidityMetrics{}, e.LiquidityMetrics())
}

// TestVolumeProfileBucketCount grounds on spec.md §4.8's "20 equal-width
// buckets": a spread of distinct prices must bin into exactly 20 buckets,
// not 19 (buildVolumeProfile needs volumeProfileBuckets+1 edges to span
// volumeProfileBuckets intervals).
func TestVolumeProfileBucketCount(t *testing.T) {
	now := time.Now()
	e := NewEngine("BTCUSDT", DefaultEngineConfig(), nil)

	for i := 0; i < 100; i++ {
		price := 100.0 + float64(i)*0.1
		e.AddTrade(newTrade("BTCUSDT", price, 1, i%2 == 0, now.Add(time.Duration(i)*time.Millisecond)))
	}
	e.AddBook(OrderBook{
		Symbol:    "BTCUSDT",
		Timestamp: now,
		Bids:      []OrderBookLevel{{Price: 109.9, Quantity: 1}},
		Asks:      []OrderBookLevel{{Price: 110.0, Quantity: 1}},
	})

	liquidity := e.LiquidityMetrics()
	assert.Len(t, liquidity.VolumeProfile, volumeProfileBuckets)

	var total float64
	for _, b := range liquidity.VolumeProfile {
		total += b.Volume
	}
	assert.InDelta(t, 100.0, total, 1e-9)
}

func TestVolumeProfileSinglePriceCollapsesToOneBucket(t *testing.T) {
	now := time.Now()
	e := NewEngine("BTCUSDT", DefaultEngineConfig(), nil)
	for i := 0; i < 10; i++ {
		e.AddTrade(newTrade("BTCUSDT", 100, 1, false, now.Add(time.Duration(i)*time.Millisecond)))
	}
	e.AddBook(OrderBook{
		Symbol:    "BTCUSDT",
		Timestamp: now,
		Bids:      []OrderBookLevel{{Price: 99.9, Quantity: 1}},
		Asks:      []OrderBookLevel{{Price: 100.1, Quantity: 1}},
	})

	liquidity := e.LiquidityMetrics()
	assert.Len(t, liquidity.VolumeProfile, 1)
	assert.InDelta(t, 100.0, liquidity.VolumeProfile[0].Price, 1e-9)
	assert.InDelta(t, 10.0, liquidity.VolumeProfile[0].Volume, 1e-9)
}

func TestLiquidityZonesFlagOutsizedLevels(t *testing.T) {
	now := time.Now()
	e := NewEngine("BTCUSDT", DefaultEngineConfig(), nil)
	e.AddTrade(newTrade("BTCUSDT", 100, 1, false, now))
	e.AddBook(OrderBook{
		Symbol:    "BTCUSDT",
		Timestamp: now,
		Bids: []OrderBookLevel{
			{Price: 99.9, Quantity: 1},
			{Price: 99.8, Quantity: 100},
		},
		Asks: []OrderBookLevel{
			{Price: 100.1, Quantity: 1},
		},
	})

	liquidity := e.LiquidityMetrics()
	var foundSupport bool
	for _, z := range liquidity.LiquidityZones {
		if z.Price == 99.8 && z.Side == "support" {
			foundSupport = true
		}
	}
	assert.True(t, foundSupport)
}

func TestPremiumAndDiscountZones(t *testing.T) {
	now := time.Now()
	e := NewEngine("BTCUSDT", DefaultEngineConfig(), nil)
	for i := 0; i < 5; i++ {
		e.AddTrade(newTrade("BTCUSDT", 100, 1, false, now.Add(time.Duration(i)*time.Millisecond)))
	}
	e.AddTrade(newTrade("BTCUSDT", 110, 1, false, now.Add(5*time.Millisecond)))
	e.AddBook(OrderBook{
		Symbol:    "BTCUSDT",
		Timestamp: now,
		Bids:      []OrderBookLevel{{Price: 109.9, Quantity: 1}},
		Asks:      []OrderBookLevel{{Price: 110.1, Quantity: 1}},
	})

	liquidity := e.LiquidityMetrics()
	assert.True(t, liquidity.PremiumZone)
	assert.False(t, liquidity.DiscountZone)
}
