// Package config loads the process-wide configuration from file, environment
// variables, and defaults, and wires the resulting values into the analytics
// engine's tunables.
package config

import (
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/flowmetrics/hfsignal/internal/analytics"
)

// Config is the root configuration document for the signal service.
type Config struct {
	Server struct {
		Host string `mapstructure:"host"`
		Port int    `mapstructure:"port"`
	} `mapstructure:"server"`

	Database struct {
		Host     string `mapstructure:"host"`
		Port     int    `mapstructure:"port"`
		User     string `mapstructure:"user"`
		Password string `mapstructure:"password"`
		Name     string `mapstructure:"name"`
		SSLMode  string `mapstructure:"sslmode"`
	} `mapstructure:"database"`

	WebSocket struct {
		Host           string `mapstructure:"host"`
		Port           int    `mapstructure:"port"`
		Path           string `mapstructure:"path"`
		MaxConnections int    `mapstructure:"max_connections"`
	} `mapstructure:"websocket"`

	MarketData struct {
		Sources []string `mapstructure:"sources"`
		Symbols []string `mapstructure:"symbols"`
	} `mapstructure:"market_data"`

	// Engine carries the Configuration enumeration of spec.md §6.2. It is
	// read once at startup; WindowSize and ATRPeriod are passed through to
	// analytics.EngineConfig but the engine's buffer sizes and ATR period are
	// fixed constants of the analytics package.
	Engine struct {
		WindowSize       int     `mapstructure:"window_size"`
		MicroBarMs       int     `mapstructure:"micro_bar_ms"`
		ATRPeriod        int     `mapstructure:"atr_period"`
		LevelQuantum     int     `mapstructure:"level_quantum"`
		RetentionSeconds int     `mapstructure:"retention_seconds"`
		IcebergA0        float64 `mapstructure:"iceberg_a0"`
		IcebergA1        float64 `mapstructure:"iceberg_a1"`
		IcebergA2        float64 `mapstructure:"iceberg_a2"`
		IcebergA3        float64 `mapstructure:"iceberg_a3"`
		TRPB0            float64 `mapstructure:"trp_b0"`
		TRPB1            float64 `mapstructure:"trp_b1"`
		TRPLambda        float64 `mapstructure:"trp_lambda"`
		WeightDelta      float64 `mapstructure:"weight_delta"`
		WeightAbsorption float64 `mapstructure:"weight_absorption"`
		WeightIceberg    float64 `mapstructure:"weight_iceberg"`
		WeightOFMBI      float64 `mapstructure:"weight_ofmbi"`
		WeightStructure  float64 `mapstructure:"weight_structure"`
		WeightSpread     float64 `mapstructure:"weight_spread_penalty"`
	} `mapstructure:"engine"`

	Monitoring struct {
		PrometheusPort int    `mapstructure:"prometheus_port"`
		LogLevel       string `mapstructure:"log_level"`
	} `mapstructure:"monitoring"`
}

var (
	cfg     *Config
	loadErr error
	once    sync.Once
)

// Load reads configuration from config.yaml in configPath (a directory),
// environment variables prefixed HFSIGNAL_ (nested keys join with '_', e.g.
// HFSIGNAL_ENGINE_MICRO_BAR_MS; only keys present in the config file are
// overridden), and falls back to defaults matched to
// analytics.DefaultEngineConfig. Load runs once: subsequent calls return the
// value and error of the first call, and a failed first load is not retried.
func Load(configPath string) (*Config, error) {
	once.Do(func() {
		var err error
		defer func() { loadErr = err }()

		cfg = &Config{}
		setDefaults(cfg)

		v := viper.New()
		v.SetConfigName("config")
		v.SetConfigType("yaml")

		if configPath != "" {
			v.AddConfigPath(configPath)
		} else {
			v.AddConfigPath(".")
			v.AddConfigPath("./config")
			v.AddConfigPath("/etc/hfsignal")
		}

		v.AutomaticEnv()
		v.SetEnvPrefix("HFSIGNAL")
		v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

		if readErr := v.ReadInConfig(); readErr != nil {
			if _, ok := readErr.(viper.ConfigFileNotFoundError); !ok {
				err = fmt.Errorf("read config file: %w", readErr)
				return
			}
		}

		if unmarshalErr := v.Unmarshal(cfg); unmarshalErr != nil {
			err = fmt.Errorf("unmarshal config: %w", unmarshalErr)
			return
		}
	})

	return cfg, loadErr
}

func setDefaults(c *Config) {
	c.Server.Host = "0.0.0.0"
	c.Server.Port = 8080

	c.Database.Host = "localhost"
	c.Database.Port = 5432
	c.Database.User = "postgres"
	c.Database.Name = "hfsignal"
	c.Database.SSLMode = "disable"

	c.WebSocket.Host = "0.0.0.0"
	c.WebSocket.Port = 8081
	c.WebSocket.Path = "/ws"
	c.WebSocket.MaxConnections = 1000

	c.MarketData.Sources = []string{"simulated"}
	c.MarketData.Symbols = []string{"BTCUSDT", "ETHUSDT"}

	def := analytics.DefaultEngineConfig()
	c.Engine.WindowSize = def.WindowSize
	c.Engine.MicroBarMs = def.MicroBarMs
	c.Engine.ATRPeriod = def.ATRPeriod
	c.Engine.LevelQuantum = def.LevelQuantum
	c.Engine.RetentionSeconds = def.RetentionSeconds
	c.Engine.IcebergA0 = def.IcebergCoeffs.A0
	c.Engine.IcebergA1 = def.IcebergCoeffs.A1
	c.Engine.IcebergA2 = def.IcebergCoeffs.A2
	c.Engine.IcebergA3 = def.IcebergCoeffs.A3
	c.Engine.TRPB0 = def.TRPCoeffs.B0
	c.Engine.TRPB1 = def.TRPCoeffs.B1
	c.Engine.TRPLambda = def.TRPCoeffs.Lambda
	c.Engine.WeightDelta = def.SignalWeights.DeltaWeight
	c.Engine.WeightAbsorption = def.SignalWeights.AbsorptionWeight
	c.Engine.WeightIceberg = def.SignalWeights.IcebergWeight
	c.Engine.WeightOFMBI = def.SignalWeights.OFMBIWeight
	c.Engine.WeightStructure = def.SignalWeights.StructureWeight
	c.Engine.WeightSpread = def.SignalWeights.SpreadPenaltyWeight

	c.Monitoring.PrometheusPort = 9090
	c.Monitoring.LogLevel = "info"
}

// DSN returns the database connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host, c.Database.Port, c.Database.User, c.Database.Password, c.Database.Name, c.Database.SSLMode)
}

// EngineConfig translates the loaded document into analytics.EngineConfig.
func (c *Config) EngineConfig() analytics.EngineConfig {
	return analytics.EngineConfig{
		WindowSize:       c.Engine.WindowSize,
		MicroBarMs:       c.Engine.MicroBarMs,
		ATRPeriod:        c.Engine.ATRPeriod,
		LevelQuantum:     c.Engine.LevelQuantum,
		RetentionSeconds: c.Engine.RetentionSeconds,
		IcebergCoeffs: analytics.IcebergCoeffs{
			A0: c.Engine.IcebergA0, A1: c.Engine.IcebergA1, A2: c.Engine.IcebergA2, A3: c.Engine.IcebergA3,
		},
		TRPCoeffs: analytics.TRPCoeffs{
			B0: c.Engine.TRPB0, B1: c.Engine.TRPB1, Lambda: c.Engine.TRPLambda,
		},
		SignalWeights: analytics.SignalWeights{
			DeltaWeight:         c.Engine.WeightDelta,
			AbsorptionWeight:    c.Engine.WeightAbsorption,
			IcebergWeight:       c.Engine.WeightIceberg,
			OFMBIWeight:         c.Engine.WeightOFMBI,
			StructureWeight:     c.Engine.WeightStructure,
			SpreadPenaltyWeight: c.Engine.WeightSpread,
		},
	}
}

// NewLogger builds the process logger per the configured level.
func NewLogger(c *Config) (*zap.Logger, error) {
	switch c.Monitoring.LogLevel {
	case "debug":
		return zap.NewDevelopment()
	default:
		return zap.NewProduction()
	}
}
