package analytics

import (
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"
)

const (
	maxTrades  = 10000
	maxBooks   = 1000
	maxPrices  = 5000
	maxVolumes = 5000
	maxATR     = 100
	maxSpreads = 1000
	atrPeriod  = 14
)

// rollingState holds the bounded ring buffers and cumulative scalars that
// back every metric calculator (spec.md §4.1).
type rollingState struct {
	trades *boundedQueue[Trade]
	books  *boundedQueue[*OrderBook]
	prices *boundedQueue[float64]
	volumes *boundedQueue[float64]

	cumulativeDelta float64
	totalBuyVolume  float64
	totalSellVolume float64

	highs  *boundedQueue[float64]
	lows   *boundedQueue[float64]
	closes *boundedQueue[float64]
	atrs   *boundedQueue[float64]

	spreads      *boundedQueue[float64]
	medianSpread float64
	medianATR    float64
}

func newRollingState() *rollingState {
	return &rollingState{
		trades:  newBoundedQueue[Trade](maxTrades),
		books:   newBoundedQueue[*OrderBook](maxBooks),
		prices:  newBoundedQueue[float64](maxPrices),
		volumes: newBoundedQueue[float64](maxVolumes),
		highs:   newBoundedQueue[float64](maxATR),
		lows:    newBoundedQueue[float64](maxATR),
		closes:  newBoundedQueue[float64](maxATR),
		atrs:    newBoundedQueue[float64](maxATR),
		spreads: newBoundedQueue[float64](maxSpreads),
	}
}

func (s *rollingState) addTrade(t Trade) {
	s.trades.push(t)
	s.prices.push(t.Price)
	s.volumes.push(t.Quantity)

	if t.BuyerMaker {
		s.cumulativeDelta -= t.Quantity
		s.totalSellVolume += t.Quantity
	} else {
		s.cumulativeDelta += t.Quantity
		s.totalBuyVolume += t.Quantity
	}
}

func (s *rollingState) addBook(b *OrderBook) {
	s.books.push(b)
	s.spreads.push(b.Spread())
	if s.spreads.len() > 10 {
		s.medianSpread = median(s.spreads.slice())
	}
}

func (s *rollingState) addCandle(c Candle) {
	s.highs.push(c.High)
	s.lows.push(c.Low)
	s.closes.push(c.Close)
	s.recalculateATR()
}

// recalculateATR implements the ATR contract of spec.md §4.1: true range
// over consecutive candles, averaged over the last atrPeriod values.
func (s *rollingState) recalculateATR() {
	n := s.highs.len()
	if n < 2 {
		return
	}

	trueRanges := make([]float64, 0, n-1)
	for i := 1; i < n; i++ {
		high, low, prevClose := s.highs.at(i), s.lows.at(i), s.closes.at(i-1)
		tr := high - low
		if d := abs(high - prevClose); d > tr {
			tr = d
		}
		if d := abs(low - prevClose); d > tr {
			tr = d
		}
		trueRanges = append(trueRanges, tr)
	}

	window := trueRanges
	if len(window) > atrPeriod {
		window = window[len(window)-atrPeriod:]
	}
	if len(window) == 0 {
		return
	}

	s.atrs.push(mean(window))
	if s.atrs.len() > 10 {
		s.medianATR = median(s.atrs.slice())
	}
}

// currentATR returns the latest ATR value, or a small default when no
// candle history is available yet (mirrors the reference implementation).
func (s *rollingState) currentATR() float64 {
	if s.atrs.len() == 0 {
		return 0.01
	}
	return s.atrs.last()
}

func (s *rollingState) latestBook() *OrderBook {
	if s.books.len() == 0 {
		return nil
	}
	return s.books.last()
}

// tradesSince returns the trades whose timestamp is strictly after cutoff,
// in delivery order.
func (s *rollingState) tradesSince(cutoff time.Time) []Trade {
	n := s.trades.len()
	out := make([]Trade, 0, n)
	for i := 0; i < n; i++ {
		t := s.trades.at(i)
		if t.Timestamp.After(cutoff) {
			out = append(out, t)
		}
	}
	return out
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return stat.Mean(xs, nil)
}

func median(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	return stat.Quantile(0.5, stat.Empirical, sorted, nil)
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

func clip(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
