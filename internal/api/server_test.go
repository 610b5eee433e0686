package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowmetrics/hfsignal/internal/analytics"
)

func newTestServer() (*Server, *analytics.Manager) {
	m := analytics.NewManager(analytics.DefaultEngineConfig(), nil, nil)
	return NewServer(m, nil), m
}

func TestHandleConnectCreatesEngine(t *testing.T) {
	s, m := newTestServer()
	req := httptest.NewRequest(http.MethodPost, "/symbols/BTCUSDT/connect", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"BTCUSDT"}, m.Symbols())
}

func TestHandleSignalUnknownSymbolReturns404(t *testing.T) {
	s, _ := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/symbols/BTCUSDT/signal", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleSignalReturnsComposedSignal(t *testing.T) {
	s, m := newTestServer()
	m.AddTrade(analytics.Trade{Symbol: "BTCUSDT", Price: 100, Quantity: 1, Timestamp: time.Now()})

	req := httptest.NewRequest(http.MethodGet, "/symbols/BTCUSDT/signal", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var sig analytics.TradingSignal
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sig))
	assert.Equal(t, "BTCUSDT", sig.Symbol)
}

func TestHandleSetWeightsRejectsNegative(t *testing.T) {
	s, _ := newTestServer()
	body := `{"delta_weight":-1,"absorption_weight":0.2,"iceberg_weight":0.2,"ofmbi_weight":0.2,"structure_weight":0.2,"spread_penalty_weight":0.2}`
	req := httptest.NewRequest(http.MethodPost, "/config/weights", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleSetWeightsAppliesValid(t *testing.T) {
	s, m := newTestServer()
	m.AddTrade(analytics.Trade{Symbol: "BTCUSDT", Price: 100, Quantity: 1, Timestamp: time.Now()})

	body := `{"delta_weight":0.5,"absorption_weight":0.1,"iceberg_weight":0.1,"ofmbi_weight":0.1,"structure_weight":0.1,"spread_penalty_weight":0.1}`
	req := httptest.NewRequest(http.MethodPost, "/config/weights", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var applied analytics.SignalWeights
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &applied))
	assert.Equal(t, 0.5, applied.DeltaWeight)
}

func TestHandleMetricsUnknownSymbolReturns404(t *testing.T) {
	s, _ := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/symbols/BTCUSDT/metrics", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleDisconnectRemovesSymbol(t *testing.T) {
	s, m := newTestServer()
	m.Engine("ETHUSDT")
	req := httptest.NewRequest(http.MethodPost, "/symbols/ETHUSDT/disconnect", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, m.Symbols())
}

func TestRateLimitByIPRejectsBurstOverflow(t *testing.T) {
	s, _ := newTestServer()

	var lastCode int
	for i := 0; i < mutatingRequestsBurst+5; i++ {
		req := httptest.NewRequest(http.MethodPost, "/symbols/BTCUSDT/connect", nil)
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)
		lastCode = rec.Code
	}

	assert.Equal(t, http.StatusTooManyRequests, lastCode)
}
