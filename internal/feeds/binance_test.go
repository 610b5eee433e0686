package feeds

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// TestNextReconnectDelayDoublesAndCaps grounds on spec.md §6.1's
// "exponential backoff (base 1s, cap 60s)".
func TestNextReconnectDelayDoublesAndCaps(t *testing.T) {
	delay := initialReconnectDelay
	assert.Equal(t, time.Second, delay)

	delay = nextReconnectDelay(delay)
	assert.Equal(t, 2*time.Second, delay)

	delay = nextReconnectDelay(delay)
	assert.Equal(t, 4*time.Second, delay)

	for i := 0; i < 10; i++ {
		delay = nextReconnectDelay(delay)
	}
	assert.Equal(t, maxReconnectDelay, delay)
}

func TestBinanceFeedImplementsConnectionListener(t *testing.T) {
	f := NewBinanceFeed(nil)

	var got []bool
	f.SetConnectionListener(func(symbol string, connected bool) {
		got = append(got, connected)
	})
	f.notifyConnection("BTCUSDT", true)
	f.notifyConnection("BTCUSDT", false)

	assert.Equal(t, []bool{true, false}, got)
}
