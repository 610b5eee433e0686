// Package persistence provides the durable settings document and
// append-only signal log described in spec.md §6.2 ("Operational surface"),
// backed by Postgres via gorm.
package persistence

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/flowmetrics/hfsignal/internal/analytics"
	engineerrors "github.com/flowmetrics/hfsignal/internal/common/errors"
)

// SettingsDocument is the single mutable row tracking which sources/symbols
// are active and the weights currently in force — the Python original's
// Settings model, adapted to this engine's configuration surface.
type SettingsDocument struct {
	ID              uint `gorm:"primaryKey"`
	ActiveSource    string
	ActiveSymbols   string // comma-separated; gorm has no native string-slice column
	DeltaWeight     float64
	AbsorptionWeight float64
	IcebergWeight   float64
	OFMBIWeight     float64
	StructureWeight float64
	SpreadWeight    float64
	UpdatedAt       time.Time
}

// Weights translates the stored document back into engine weights.
func (d *SettingsDocument) Weights() analytics.SignalWeights {
	return analytics.SignalWeights{
		DeltaWeight:         d.DeltaWeight,
		AbsorptionWeight:    d.AbsorptionWeight,
		IcebergWeight:       d.IcebergWeight,
		OFMBIWeight:         d.OFMBIWeight,
		StructureWeight:     d.StructureWeight,
		SpreadPenaltyWeight: d.SpreadWeight,
	}
}

// SignalRecord is one append-only row in the signal log.
type SignalRecord struct {
	ID             string `gorm:"primaryKey"`
	Symbol         string `gorm:"index"`
	Timestamp      time.Time
	Type           string
	HFSS           float64
	ProbabilityBuy float64
	ProbabilitySell float64
	ProbabilityNoTrade float64
	Confidence     float64
	Reason         string
	PriceAtSignal  float64
}

// Store wraps a *gorm.DB with the two collaborators the operational surface
// needs: a single settings document and an append-only signal log.
type Store struct {
	db *gorm.DB
}

// Open connects to Postgres at dsn and migrates the schema.
func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, engineerrors.Wrap(err, engineerrors.ErrPersistence, "open database")
	}
	if err := db.AutoMigrate(&SettingsDocument{}, &SignalRecord{}); err != nil {
		return nil, engineerrors.Wrap(err, engineerrors.ErrPersistence, "migrate schema")
	}
	return &Store{db: db}, nil
}

// LoadSettings returns the current settings document, seeding it from the
// engine's reference defaults on first use so a fresh database never starts
// the engine at all-zero weights.
func (s *Store) LoadSettings() (*SettingsDocument, error) {
	defaults := analytics.DefaultSignalWeights()
	seed := SettingsDocument{
		ID:               1,
		ActiveSource:     "simulated",
		DeltaWeight:      defaults.DeltaWeight,
		AbsorptionWeight: defaults.AbsorptionWeight,
		IcebergWeight:    defaults.IcebergWeight,
		OFMBIWeight:      defaults.OFMBIWeight,
		StructureWeight:  defaults.StructureWeight,
		SpreadWeight:     defaults.SpreadPenaltyWeight,
		UpdatedAt:        time.Now(),
	}

	var doc SettingsDocument
	err := s.db.Attrs(seed).FirstOrCreate(&doc, SettingsDocument{ID: 1}).Error
	if err != nil {
		return nil, engineerrors.Wrap(err, engineerrors.ErrPersistence, "load settings")
	}
	return &doc, nil
}

// SaveWeights persists new signal weights into the settings document.
func (s *Store) SaveWeights(w analytics.SignalWeights) error {
	err := s.db.Model(&SettingsDocument{}).Where("id = ?", 1).Updates(map[string]interface{}{
		"delta_weight":      w.DeltaWeight,
		"absorption_weight": w.AbsorptionWeight,
		"iceberg_weight":    w.IcebergWeight,
		"ofmbi_weight":      w.OFMBIWeight,
		"structure_weight":  w.StructureWeight,
		"spread_weight":     w.SpreadPenaltyWeight,
		"updated_at":        time.Now(),
	}).Error
	if err != nil {
		return engineerrors.Wrap(err, engineerrors.ErrPersistence, "save weights")
	}
	return nil
}

// AppendSignal writes one signal to the append-only log.
func (s *Store) AppendSignal(sig analytics.TradingSignal) error {
	record := SignalRecord{
		ID:                 uuid.NewString(),
		Symbol:             sig.Symbol,
		Timestamp:          sig.Timestamp,
		Type:               string(sig.Type),
		HFSS:               sig.HFSS,
		ProbabilityBuy:     sig.ProbabilityBuy,
		ProbabilitySell:    sig.ProbabilitySell,
		ProbabilityNoTrade: sig.ProbabilityNoTrade,
		Confidence:         sig.Confidence,
		Reason:             sig.Reason,
		PriceAtSignal:      sig.PriceAtSignal,
	}
	if err := s.db.Create(&record).Error; err != nil {
		return engineerrors.Wrap(err, engineerrors.ErrPersistence, "append signal")
	}
	return nil
}

// RecentSignals returns the most recent n signals for symbol, newest first.
func (s *Store) RecentSignals(symbol string, n int) ([]SignalRecord, error) {
	var records []SignalRecord
	err := s.db.Where("symbol = ?", symbol).Order("timestamp desc").Limit(n).Find(&records).Error
	if err != nil {
		return nil, engineerrors.Wrap(err, engineerrors.ErrPersistence, "query recent signals")
	}
	return records, nil
}
