// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"optionflow/internal/scanner"
)

// DataStore defines the interface for scan-history persistence.
type DataStore interface {
	// Scan results
	SaveScan(res *scanner.Result) error
	GetVerdicts(ctx context.Context, filter VerdictFilter) ([]VerdictRecord, error)
	GetExposureHistory(ctx context.Context, symbol string, from, to time.Time) ([]ExposureRecord, error)
	GetDetections(ctx context.Context, symbol string, limit int) ([]DetectionRecord, error)

	// Housekeeping
	Prune(ctx context.Context, retainDays int) error
	Close() error
}

// VerdictFilter represents filters for querying stored verdicts.
type VerdictFilter struct {
	Symbol    string
	Class     string
	StartDate time.Time
	EndDate   time.Time
	Limit     int
}

// VerdictRecord is one persisted verdict row.
type VerdictRecord struct {
	ID            int64
	Timestamp     time.Time
	Symbol        string
	Class         string
	ConfidencePct int
	HoldingPeriod string
	EntryType     string
	EntryStrike   float64
	TargetMovePct float64
	StopLoss      float64
	RiskLevel     string
	SpotPrice     float64
	Regime        string
	BiasLabel     string
	BiasScore     float64
	KeyReasons    []string
	RedFlags      []string
}

// ExposureRecord is one persisted dealer-exposure row.
type ExposureRecord struct {
	Timestamp  time.Time
	Symbol     string
	GEX        float64
	DEX        float64
	VEX        float64
	CEX        float64
	FlipStrike float64
	SpotPrice  float64
	PCROI      float64
	MaxPain    float64
}

// DetectionRecord is one persisted structure detection.
type DetectionRecord struct {
	Timestamp  time.Time
	Symbol     string
	Structure  string
	Bias       string
	Conviction string
	Confidence float64
	Rationale  string
}
