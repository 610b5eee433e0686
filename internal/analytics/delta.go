package analytics

import "time"

const topDepthLevels = 5

// calculateDelta implements spec.md §4.3.
func calculateDelta(s *rollingState, now time.Time, windowMs int) DeltaMetrics {
	cutoff := now.Add(-time.Duration(windowMs) * time.Millisecond)
	recent := s.tradesSince(cutoff)

	var buyVol, sellVol float64
	for _, t := range recent {
		if t.BuyerMaker {
			sellVol += t.Quantity
		} else {
			buyVol += t.Quantity
		}
	}

	var dBid, dAsk float64
	if book := s.latestBook(); book != nil {
		dBid = sumTopQuantity(book.Bids, topDepthLevels)
		dAsk = sumTopQuantity(book.Asks, topDepthLevels)
	}

	raw := buyVol - sellVol
	return DeltaMetrics{
		RawDelta:        raw,
		NormalizedDelta: raw / (buyVol + sellVol + epsilon),
		DepthAwareDelta: raw / (dBid + dAsk + epsilon),
		CumulativeDelta: s.cumulativeDelta,
	}
}

func sumTopQuantity(levels []OrderBookLevel, n int) float64 {
	if n > len(levels) {
		n = len(levels)
	}
	var sum float64
	for _, l := range levels[:n] {
		sum += l.Quantity
	}
	return sum
}
