package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	engineerrors "github.com/flowmetrics/hfsignal/internal/common/errors"
)

func TestManagerSignalOnUnknownSymbolFails(t *testing.T) {
	m := NewManager(DefaultEngineConfig(), nil, nil)
	_, err := m.GenerateSignal("BTCUSDT", time.Now())
	require.Error(t, err)
	assert.True(t, engineerrors.Is(err, engineerrors.ErrSymbolNotFound))
}

func TestManagerCreatesEngineOnIngest(t *testing.T) {
	now := time.Now()
	m := NewManager(DefaultEngineConfig(), nil, nil)
	m.AddTrade(newTrade("BTCUSDT", 100, 1, false, now))

	assert.Equal(t, []string{"BTCUSDT"}, m.Symbols())

	sig, err := m.GenerateSignal("BTCUSDT", now.Add(time.Millisecond))
	require.NoError(t, err)
	assert.Equal(t, "BTCUSDT", sig.Symbol)
}

func TestManagerDisconnectRemovesEngine(t *testing.T) {
	now := time.Now()
	m := NewManager(DefaultEngineConfig(), nil, nil)
	m.AddTrade(newTrade("ETHUSDT", 100, 1, false, now))
	require.Len(t, m.Symbols(), 1)

	m.Disconnect("ETHUSDT")
	assert.Empty(t, m.Symbols())

	_, err := m.GenerateSignal("ETHUSDT", now)
	require.Error(t, err)
	assert.True(t, engineerrors.Is(err, engineerrors.ErrSymbolNotFound))
}

func TestManagerUpdateWeightsPropagatesToActiveEngines(t *testing.T) {
	now := time.Now()
	m := NewManager(DefaultEngineConfig(), nil, nil)
	m.AddTrade(newTrade("BTCUSDT", 100, 1, false, now))

	newWeights := SignalWeights{
		DeltaWeight:         0.5,
		AbsorptionWeight:    0.1,
		IcebergWeight:       0.1,
		OFMBIWeight:         0.1,
		StructureWeight:     0.1,
		SpreadPenaltyWeight: 0.1,
	}
	require.NoError(t, m.UpdateWeights(newWeights))

	e := m.Engine("BTCUSDT")
	assert.Equal(t, newWeights, e.cfg.SignalWeights)

	// Applying the same weights twice is idempotent.
	require.NoError(t, m.UpdateWeights(newWeights))
	assert.Equal(t, newWeights, e.cfg.SignalWeights)
}

func TestManagerUpdateWeightsRejectsInvalid(t *testing.T) {
	m := NewManager(DefaultEngineConfig(), nil, nil)
	bad := DefaultSignalWeights()
	bad.DeltaWeight = -1
	err := m.UpdateWeights(bad)
	require.Error(t, err)
	assert.True(t, engineerrors.Is(err, engineerrors.ErrConfigInvalid))
}
