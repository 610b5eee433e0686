package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStructureInsufficientHistoryIsRangeNeutral(t *testing.T) {
	now := time.Now()
	e := NewEngine("BTCUSDT", DefaultEngineConfig(), nil)
	for i := 0; i < 5; i++ {
		e.AddTrade(newTrade("BTCUSDT", 100, 1, false, now.Add(time.Duration(i)*time.Millisecond)))
	}

	structure := e.StructureMetrics(now)
	assert.Equal(t, RegimeRange, structure.Regime)
	assert.Equal(t, TrendNeutral, structure.TrendDirection)
	assert.False(t, structure.BOSDetected)
	assert.False(t, structure.CHOCHDetected)
}

func TestStructureFlatPricesAreRange(t *testing.T) {
	now := time.Now()
	e := NewEngine("BTCUSDT", DefaultEngineConfig(), nil)
	for i := 0; i < 40; i++ {
		e.AddTrade(newTrade("BTCUSDT", 100, 1, false, now.Add(time.Duration(i)*time.Millisecond)))
	}

	structure := e.StructureMetrics(now)
	assert.Equal(t, RegimeRange, structure.Regime)
	assert.False(t, structure.BOSDetected)
	assert.False(t, structure.CHOCHDetected)
}

// TestStructureUptrendWithBreak builds a rising triangle wave of swing highs
// and lows (spec.md §4.7), then pushes a final price beyond the last three
// swing highs to assert a break of structure fires.
func TestStructureUptrendWithBreak(t *testing.T) {
	now := time.Now()
	e := NewEngine("BTCUSDT", DefaultEngineConfig(), nil)

	triangle := func(i, period int, amp float64) float64 {
		phase := i % period
		half := period / 2
		if phase <= half {
			return amp * (float64(phase) / float64(half))
		}
		return amp * (1 - float64(phase-half)/float64(half))
	}

	var prices []float64
	for i := 0; i < 70; i++ {
		prices = append(prices, 100+float64(i)*0.5+triangle(i, 12, 10))
	}
	prices = append(prices, prices[len(prices)-1]+100)

	for i, p := range prices {
		e.AddTrade(newTrade("BTCUSDT", p, 1, false, now.Add(time.Duration(i)*time.Millisecond)))
	}

	structure := e.StructureMetrics(now.Add(time.Duration(len(prices)) * time.Millisecond))
	assert.Equal(t, TrendUp, structure.TrendDirection)
	assert.True(t, structure.BOSDetected)
}

// TestStructureUptrendWithCHOCH mirrors TestStructureUptrendWithBreak's
// rising triangle wave (ascending swing highs and lows, trend up), but caps
// it with a sharp drop instead of a breakout, reproducing spec.md §8
// Scenario 5: a change of character forms when price breaks below the last
// two swing lows while the trend is still up.
func TestStructureUptrendWithCHOCH(t *testing.T) {
	now := time.Now()
	e := NewEngine("BTCUSDT", DefaultEngineConfig(), nil)

	triangle := func(i, period int, amp float64) float64 {
		phase := i % period
		half := period / 2
		if phase <= half {
			return amp * (float64(phase) / float64(half))
		}
		return amp * (1 - float64(phase-half)/float64(half))
	}

	var prices []float64
	for i := 0; i < 70; i++ {
		prices = append(prices, 100+float64(i)*0.5+triangle(i, 12, 10))
	}
	prices = append(prices, prices[len(prices)-1]-100)

	for i, p := range prices {
		e.AddTrade(newTrade("BTCUSDT", p, 1, false, now.Add(time.Duration(i)*time.Millisecond)))
	}

	structure := e.StructureMetrics(now.Add(time.Duration(len(prices)) * time.Millisecond))
	assert.Equal(t, TrendUp, structure.TrendDirection)
	assert.True(t, structure.CHOCHDetected)
	assert.False(t, structure.BOSDetected)
}
