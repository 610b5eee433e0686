// Package api exposes the operational surface of spec.md §6.2 over HTTP:
// connect/disconnect a symbol, adjust weights/coefficients, snapshot metrics
// or the latest signal, and stream signals over a websocket.
package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/flowmetrics/hfsignal/internal/analytics"
	engineerrors "github.com/flowmetrics/hfsignal/internal/common/errors"
)

const (
	mutatingRequestsPerSecond = 5.0
	mutatingRequestsBurst     = 10
)

// Server wires the analytics Manager to an HTTP API.
type Server struct {
	manager  *analytics.Manager
	log      *zap.Logger
	router   *gin.Engine
	upgrader websocket.Upgrader

	ipLimitersMu sync.Mutex
	ipLimiters   map[string]*rate.Limiter
}

// NewServer builds a gin router with CORS enabled for browser dashboards.
func NewServer(manager *analytics.Manager, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		manager: manager,
		log:     log,
		router:  gin.New(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		ipLimiters: make(map[string]*rate.Limiter),
	}
	s.router.Use(gin.Recovery(), s.requestLogger())
	s.router.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST"},
		AllowHeaders:    []string{"Origin", "Content-Type"},
	}))
	s.routes()
	return s
}

// rateLimitByIP throttles mutating requests per client IP, grounded on the
// teacher's gateway.Middleware.RateLimitByIP.
func (s *Server) rateLimitByIP(rps float64, burst int) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()

		s.ipLimitersMu.Lock()
		limiter, ok := s.ipLimiters[ip]
		if !ok {
			limiter = rate.NewLimiter(rate.Limit(rps), burst)
			s.ipLimiters[ip] = limiter
		}
		s.ipLimitersMu.Unlock()

		if !limiter.Allow() {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// Handler returns the underlying http.Handler for use with http.Server.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug("request",
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}

func (s *Server) routes() {
	limited := s.rateLimitByIP(mutatingRequestsPerSecond, mutatingRequestsBurst)

	s.router.POST("/symbols/:symbol/connect", limited, s.handleConnect)
	s.router.POST("/symbols/:symbol/disconnect", limited, s.handleDisconnect)
	s.router.GET("/symbols", s.handleSymbols)
	s.router.GET("/symbols/:symbol/metrics", s.handleMetrics)
	s.router.GET("/symbols/:symbol/signal", s.handleSignal)
	s.router.POST("/config/weights", limited, s.handleSetWeights)
	s.router.POST("/symbols/:symbol/coefficients", limited, s.handleSetCoefficients)
	s.router.GET("/symbols/:symbol/stream", s.handleStream)
}

func (s *Server) handleConnect(c *gin.Context) {
	symbol := c.Param("symbol")
	s.manager.Engine(symbol)
	c.JSON(http.StatusOK, gin.H{"symbol": symbol, "status": "connected"})
}

func (s *Server) handleDisconnect(c *gin.Context) {
	symbol := c.Param("symbol")
	s.manager.Disconnect(symbol)
	c.JSON(http.StatusOK, gin.H{"symbol": symbol, "status": "disconnected"})
}

func (s *Server) handleSymbols(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"symbols": s.manager.Symbols()})
}

func (s *Server) handleMetrics(c *gin.Context) {
	symbol := c.Param("symbol")
	if !s.symbolExists(c, symbol) {
		return
	}
	c.JSON(http.StatusOK, s.manager.Engine(symbol).AllMetrics(time.Now()))
}

func (s *Server) handleSignal(c *gin.Context) {
	symbol := c.Param("symbol")
	sig, err := s.manager.GenerateSignal(symbol, time.Now())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sig)
}

type setWeightsRequest struct {
	DeltaWeight         float64 `json:"delta_weight"`
	AbsorptionWeight    float64 `json:"absorption_weight"`
	IcebergWeight       float64 `json:"iceberg_weight"`
	OFMBIWeight         float64 `json:"ofmbi_weight"`
	StructureWeight     float64 `json:"structure_weight"`
	SpreadPenaltyWeight float64 `json:"spread_penalty_weight"`
}

func (s *Server) handleSetWeights(c *gin.Context) {
	var req setWeightsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	weights := analytics.SignalWeights{
		DeltaWeight:         req.DeltaWeight,
		AbsorptionWeight:    req.AbsorptionWeight,
		IcebergWeight:       req.IcebergWeight,
		OFMBIWeight:         req.OFMBIWeight,
		StructureWeight:     req.StructureWeight,
		SpreadPenaltyWeight: req.SpreadPenaltyWeight,
	}
	if err := s.manager.UpdateWeights(weights); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, weights)
}

type setCoefficientsRequest struct {
	Iceberg analytics.IcebergCoeffs `json:"iceberg"`
	TRP     analytics.TRPCoeffs    `json:"trp"`
}

func (s *Server) handleSetCoefficients(c *gin.Context) {
	symbol := c.Param("symbol")
	if !s.symbolExists(c, symbol) {
		return
	}
	var req setCoefficientsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.manager.Engine(symbol).UpdateCoefficients(req.Iceberg, req.TRP); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

// handleStream pushes a fresh signal every 500ms over a websocket until the
// client disconnects, mirroring micro_bar_ms cadence. Frames are sent as
// zstd-compressed binary messages rather than raw JSON text frames.
func (s *Server) handleStream(c *gin.Context) {
	symbol := c.Param("symbol")
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	compressor, err := newSignalCompressor()
	if err != nil {
		s.log.Warn("signal compressor unavailable, closing stream", zap.Error(err))
		return
	}
	defer compressor.Close()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for range ticker.C {
		sig, err := s.manager.GenerateSignal(symbol, time.Now())
		if err != nil {
			return
		}
		payload, err := json.Marshal(sig)
		if err != nil {
			s.log.Warn("signal marshal failed", zap.Error(err))
			return
		}
		if err := conn.WriteMessage(websocket.BinaryMessage, compressor.compress(payload)); err != nil {
			return
		}
	}
}

func (s *Server) symbolExists(c *gin.Context, symbol string) bool {
	for _, sym := range s.manager.Symbols() {
		if sym == symbol {
			return true
		}
	}
	s.writeError(c, engineerrors.New(engineerrors.ErrSymbolNotFound, "no engine tracking symbol").WithDetail("symbol", symbol))
	return false
}

func (s *Server) writeError(c *gin.Context, err error) {
	var ee *engineerrors.EngineError
	if engineerrors.As(err, &ee) {
		switch ee.Code {
		case engineerrors.ErrSymbolNotFound:
			c.JSON(http.StatusNotFound, gin.H{"error": ee.Message})
		case engineerrors.ErrConfigInvalid, engineerrors.ErrInvalidRequest:
			c.JSON(http.StatusBadRequest, gin.H{"error": ee.Message})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": ee.Message})
		}
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
