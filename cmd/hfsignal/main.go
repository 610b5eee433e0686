// Command hfsignal runs the order-flow analytics engine: it loads
// configuration, attaches a market-data feed (live or simulated), serves the
// operational HTTP API, loads stored weights from Postgres, and appends
// signals to a Postgres signal log.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/flowmetrics/hfsignal/internal/analytics"
	"github.com/flowmetrics/hfsignal/internal/api"
	"github.com/flowmetrics/hfsignal/internal/config"
	"github.com/flowmetrics/hfsignal/internal/feeds"
	"github.com/flowmetrics/hfsignal/internal/metrics"
	"github.com/flowmetrics/hfsignal/internal/persistence"
)

var (
	configPath string
	source     string
	symbolsArg []string
)

func main() {
	root := &cobra.Command{
		Use:   "hfsignal",
		Short: "High-frequency order-flow signal engine",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "directory containing config.yaml (default: search ., ./config, /etc/hfsignal)")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the analytics engine and operational API",
		RunE:  runServe,
	}
	serveCmd.Flags().StringVar(&source, "source", "simulated", "market data source: simulated|binance")
	serveCmd.Flags().StringSliceVar(&symbolsArg, "symbols", []string{"BTCUSDT"}, "symbols to subscribe to at startup")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("hfsignal v1.0.0")
		},
	}

	root.AddCommand(serveCmd, versionCmd)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := config.NewLogger(cfg)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer log.Sync()

	collector := metrics.NewCollector()
	manager := analytics.NewManager(cfg.EngineConfig(), log, collector)

	store, err := persistence.Open(cfg.DSN())
	if err != nil {
		log.Warn("persistence unavailable, continuing without durable settings/signal log", zap.Error(err))
		store = nil
	} else if settings, err := store.LoadSettings(); err == nil {
		if err := manager.UpdateWeights(settings.Weights()); err != nil {
			log.Warn("stored weights rejected, keeping defaults", zap.Error(err))
		}
	}

	for _, symbol := range symbolsArg {
		manager.Engine(symbol)
	}

	var feed feeds.Feed
	switch source {
	case "binance":
		feed = feeds.NewBinanceFeed(log)
	default:
		feed = feeds.NewSimulatedFeed(time.Now().UnixNano(), time.Duration(cfg.Engine.MicroBarMs)*time.Millisecond)
	}
	feed.SetConnectionListener(func(symbol string, connected bool) {
		log.Info("feed connection state changed",
			zap.String("symbol", symbol), zap.Bool("connected", connected))
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	feedDone := make(chan error, 1)
	go func() {
		feedDone <- feed.Run(ctx, symbolsArg, manager)
	}()

	server := api.NewServer(manager, log)
	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      server.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info("serving operational API", zap.Int("port", cfg.Server.Port))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("http server failed", zap.Error(err))
		}
	}()

	if store != nil {
		go persistSignalsPeriodically(ctx, manager, store, log, symbolsArg)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	cancel()
	_ = feed.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("http server shutdown error", zap.Error(err))
	}

	<-feedDone
	return nil
}

// persistSignalsPeriodically appends the latest signal for every tracked
// symbol to the durable log every 500ms.
func persistSignalsPeriodically(ctx context.Context, manager *analytics.Manager, store *persistence.Store, log *zap.Logger, symbols []string) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			for _, symbol := range manager.Symbols() {
				sig, err := manager.GenerateSignal(symbol, now)
				if err != nil {
					continue
				}
				if err := store.AppendSignal(sig); err != nil {
					log.Warn("failed to persist signal", zap.String("symbol", symbol), zap.Error(err))
				}
			}
		}
	}
}
