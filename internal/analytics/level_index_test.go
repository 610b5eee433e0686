package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLevelIndexGCDropsStaleHits(t *testing.T) {
	idx := newLevelIndex(defaultLevelQuantum, 1*time.Second)
	base := time.Now()
	idx.recordTrade(Trade{Price: 100.00, Quantity: 1, Timestamp: base})

	assert.Equal(t, 1, idx.hitCount(100.00))

	idx.recordTrade(Trade{Price: 100.00, Quantity: 1, Timestamp: base.Add(2 * time.Second)})
	// hitCount reflects only non-expired timestamps; hitVolume is a
	// lifetime accumulator and is not pruned by gc.
	assert.Equal(t, 1, idx.hitCount(100.00))
	assert.Equal(t, 2.0, idx.hitVolume(100.00))
}

func TestLevelIndexDepthHistoryBounded(t *testing.T) {
	idx := newLevelIndex(defaultLevelQuantum, defaultRetention)
	for i := 0; i < 150; i++ {
		idx.appendDepth(100.00, float64(i))
	}
	series := idx.depthSeries(100.00)
	assert.Len(t, series, maxDepthHistory)
	assert.Equal(t, float64(149), series[len(series)-1])
}

func TestLevelIndexRoundingByQuantum(t *testing.T) {
	idx := newLevelIndex(2, defaultRetention)
	idx.recordTrade(Trade{Price: 100.001, Quantity: 3, Timestamp: time.Now()})
	assert.Equal(t, 3.0, idx.hitVolume(100.00))
}
