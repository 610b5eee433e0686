package analytics

import (
	"math"
	"time"
)

const (
	defaultRetention   = 60 * time.Second
	maxDepthHistory    = 100
	defaultLevelQuantum = 2
)

// levelHit is the aggregated trade activity at a rounded price.
type levelHit struct {
	hits       int
	volume     float64
	timestamps []time.Time
}

// levelIndex maintains the two price-keyed maps of spec.md §4.2: hit
// statistics (aggregated trade activity) and depth history (time series of
// displayed size), each garbage-collected independently.
type levelIndex struct {
	quantum   int
	retention time.Duration

	hits  map[float64]*levelHit
	depth map[float64][]float64
}

func newLevelIndex(quantum int, retention time.Duration) *levelIndex {
	if retention <= 0 {
		retention = defaultRetention
	}
	return &levelIndex{
		quantum:   quantum,
		retention: retention,
		hits:      make(map[float64]*levelHit),
		depth:     make(map[float64]([]float64)),
	}
}

func (l *levelIndex) round(price float64) float64 {
	scale := math.Pow(10, float64(l.quantum))
	return math.Round(price*scale) / scale
}

// recordTrade updates the hit map for a trade and then garbage-collects
// entries fallen entirely outside the retention window.
func (l *levelIndex) recordTrade(t Trade) {
	price := l.round(t.Price)
	h, ok := l.hits[price]
	if !ok {
		h = &levelHit{}
		l.hits[price] = h
	}
	h.hits++
	h.volume += t.Quantity
	h.timestamps = append(h.timestamps, t.Timestamp)

	l.gc(t.Timestamp)
}

// gc prunes timestamps older than the retention window relative to now,
// removing any key left with an empty timestamp sequence.
func (l *levelIndex) gc(now time.Time) {
	cutoff := now.Add(-l.retention)
	for price, h := range l.hits {
		kept := h.timestamps[:0:0]
		for _, ts := range h.timestamps {
			if ts.After(cutoff) {
				kept = append(kept, ts)
			}
		}
		h.timestamps = kept
		if len(h.timestamps) == 0 {
			delete(l.hits, price)
		}
	}
}

// recordBook appends the displayed size at every level present in the book
// to that price's depth-history series, truncated to the most recent 100
// samples.
func (l *levelIndex) recordBook(b *OrderBook) {
	for _, lvl := range b.Bids {
		l.appendDepth(lvl.Price, lvl.Quantity)
	}
	for _, lvl := range b.Asks {
		l.appendDepth(lvl.Price, lvl.Quantity)
	}
}

func (l *levelIndex) appendDepth(price, quantity float64) {
	key := l.round(price)
	series := append(l.depth[key], quantity)
	if len(series) > maxDepthHistory {
		series = series[len(series)-maxDepthHistory:]
	}
	l.depth[key] = series
}

// hitVolume returns the cumulative traded volume recorded at price, 0 if
// the key has no (non-expired) activity.
func (l *levelIndex) hitVolume(price float64) float64 {
	if h, ok := l.hits[l.round(price)]; ok {
		return h.volume
	}
	return 0
}

func (l *levelIndex) hitCount(price float64) int {
	if h, ok := l.hits[l.round(price)]; ok {
		return len(h.timestamps)
	}
	return 0
}

func (l *levelIndex) hitSpanSeconds(price float64) float64 {
	h, ok := l.hits[l.round(price)]
	if !ok || len(h.timestamps) < 2 {
		return 0
	}
	return h.timestamps[len(h.timestamps)-1].Sub(h.timestamps[0]).Seconds()
}

func (l *levelIndex) depthSeries(price float64) []float64 {
	return l.depth[l.round(price)]
}

// estimateHiddenReserve implements the refill-count estimator of
// spec.md §4.4: scans the depth history at price for refill events and
// scales the hit volume by the refill rate.
func (l *levelIndex) estimateHiddenReserve(price float64) float64 {
	series := l.depthSeries(price)
	n := len(series)
	if n < 3 {
		return 0
	}

	refills := 0
	for i := 2; i < n; i++ {
		if series[i-1] < series[i-2] && series[i] > series[i-1] {
			refills++
		}
	}

	denom := n - 2
	if denom < 1 {
		denom = 1
	}
	return l.hitVolume(price) * float64(refills) / float64(denom)
}

// refillIntensity implements spec.md §4.5: ratio of summed positive
// first-differences to summed absolute negative first-differences.
func (l *levelIndex) refillIntensity(price float64) float64 {
	series := l.depthSeries(price)
	if len(series) < 3 {
		return 0
	}

	var refillMagnitude, consumeMagnitude float64
	for i := 1; i < len(series); i++ {
		diff := series[i] - series[i-1]
		if diff > 0 {
			refillMagnitude += diff
		} else {
			consumeMagnitude += -diff
		}
	}
	return refillMagnitude / (consumeMagnitude + epsilon)
}

// persistence implements spec.md §4.5's t_persist.
func (l *levelIndex) persistence(price float64) float64 {
	count := l.hitCount(price)
	if count < 2 {
		return 0
	}
	duration := l.hitSpanSeconds(price)
	return math.Min(1.0, (duration*float64(count))/60.0)
}
