package analytics

import (
	"gonum.org/v1/gonum/floats"
)

const (
	vwapWindow          = 100
	volumeProfileWindow = 500
	volumeProfileBuckets = 20
	liquidityZoneFactor  = 1.5
	liquidityZoneTop     = 10
	premiumZoneFactor    = 1.002
	discountZoneFactor   = 0.998
)

// calculateLiquidity implements spec.md §4.8.
func calculateLiquidity(s *rollingState) LiquidityMetrics {
	book := s.latestBook()
	if book == nil || s.prices.len() == 0 {
		return LiquidityMetrics{}
	}

	prices := s.prices.slice()
	volumes := s.volumes.slice()

	vwap := calculateVWAP(prices, volumes)

	zones := detectLiquidityZones(book)
	profile := buildVolumeProfile(prices, volumes)

	currentPrice := prices[len(prices)-1]

	return LiquidityMetrics{
		LiquidityZones: zones,
		VolumeProfile:  profile,
		VWAP:           vwap,
		PremiumZone:    currentPrice > vwap*premiumZoneFactor,
		DiscountZone:   currentPrice < vwap*discountZoneFactor,
	}
}

func calculateVWAP(prices, volumes []float64) float64 {
	p, v := tailPairs(prices, volumes, vwapWindow)
	if len(v) == 0 {
		if len(prices) > 0 {
			return prices[len(prices)-1]
		}
		return 0
	}
	var num, den float64
	for i := range p {
		num += p[i] * v[i]
		den += v[i]
	}
	return num / (den + epsilon)
}

func detectLiquidityZones(book *OrderBook) []LiquidityZone {
	topBids := topLevels(book.Bids, liquidityZoneTop)
	topAsks := topLevels(book.Asks, liquidityZoneTop)

	combined := make([]float64, 0, len(topBids)+len(topAsks))
	for _, l := range topBids {
		combined = append(combined, l.Quantity)
	}
	for _, l := range topAsks {
		combined = append(combined, l.Quantity)
	}
	if len(combined) == 0 {
		return nil
	}
	threshold := mean(combined) * liquidityZoneFactor

	var zones []LiquidityZone
	scan := func(levels []OrderBookLevel, side string, n int) {
		top := n
		if top > len(levels) {
			top = len(levels)
		}
		for _, l := range levels[:top] {
			if l.Quantity > threshold {
				zones = append(zones, LiquidityZone{Price: l.Price, Quantity: l.Quantity, Side: side})
			}
		}
	}
	scan(book.Bids, "support", 20)
	scan(book.Asks, "resistance", 20)
	return zones
}

// buildVolumeProfile bins the last volumeProfileWindow prices into
// volumeProfileBuckets equal-width buckets and sums contemporaneous volume.
func buildVolumeProfile(prices, volumes []float64) []VolumeProfileBucket {
	p, v := tailPairs(prices, volumes, volumeProfileWindow)
	if len(p) == 0 {
		return nil
	}

	lo, hi := minOf(p), maxOf(p)
	if lo == hi {
		return []VolumeProfileBucket{{Price: lo, Volume: sum(v)}}
	}

	edges := make([]float64, volumeProfileBuckets+1)
	floats.Span(edges, lo, hi)

	buckets := make([]VolumeProfileBucket, volumeProfileBuckets)
	for i := 0; i < len(buckets); i++ {
		buckets[i].Price = (edges[i] + edges[i+1]) / 2
	}
	for i, price := range p {
		idx := bucketIndex(price, edges)
		buckets[idx].Volume += v[i]
	}
	return buckets
}

// bucketIndex maps price into one of len(edges)-1 equal-width buckets
// spanned by edges, clamping the top edge into the last bucket.
func bucketIndex(price float64, edges []float64) int {
	last := len(edges) - 2
	for i := 0; i < last; i++ {
		if price >= edges[i] && price < edges[i+1] {
			return i
		}
	}
	return last
}

func tailPairs(prices, volumes []float64, n int) ([]float64, []float64) {
	if len(prices) > n {
		prices = prices[len(prices)-n:]
	}
	if len(volumes) > n {
		volumes = volumes[len(volumes)-n:]
	}
	if len(prices) != len(volumes) {
		m := len(prices)
		if len(volumes) < m {
			m = len(volumes)
		}
		prices = prices[len(prices)-m:]
		volumes = volumes[len(volumes)-m:]
	}
	return prices, volumes
}

func topLevels(levels []OrderBookLevel, n int) []OrderBookLevel {
	if n > len(levels) {
		n = len(levels)
	}
	return levels[:n]
}

func sum(xs []float64) float64 {
	var s float64
	for _, x := range xs {
		s += x
	}
	return s
}
