package models

import "time"

// Requests for risk HTTP endpoints. Defined in domain for consistency and reuse.

type AssessRequest struct {
	EntityID string        `json:"entity_id" validate:"required"`
	Signals  []SignalInput `json:"signals" validate:"omitempty,dive"`
	At       string        `json:"at,omitempty"` // RFC3339 or unix; defaults to now
}

// SignalInput is the wire form of a Signal. Validation mirrors the ingestion
// taxonomy: out-of-range strength or an unknown source rejects the signal.
type SignalInput struct {
	ID            string   `json:"id,omitempty"`
	EntityID      string   `json:"entity_id" validate:"required"`
	Source        string   `json:"source" validate:"required,oneof=news ais rate-index prediction-market other"`
	FactorID      string   `json:"factor_id" validate:"required"`
	Strength      float64  `json:"strength" validate:"gte=0,lte=1"`
	Direction     string   `json:"direction" default:"increase" validate:"oneof=increase decrease"`
	ObservedAt    int64    `json:"observed_at" validate:"required"` // unix seconds or ms
	HalfLifeHours float64  `json:"half_life_hours" default:"12" validate:"gt=0"`
	Topic         string   `json:"topic,omitempty"`
	Tags          []string `json:"tags,omitempty"`
}

type IngestRequest struct {
	Signals []SignalInput `json:"signals" validate:"required,min=1,dive"`
}

// IngestResult reports the per-batch accept/reject split. Rejected signals
// never abort the batch.
type IngestResult struct {
	Accepted int               `json:"accepted"`
	Rejected int               `json:"rejected"`
	Reasons  map[string]string `json:"reasons,omitempty"` // signal id -> rejection reason
}

type BeliefsRequest struct {
	EntityID string `query:"entity" json:"entity" validate:"required"`
}

// BeliefView is the read-only projection of one factor posterior.
type BeliefView struct {
	FactorID    string    `json:"factor_id"`
	Alpha       float64   `json:"alpha"`
	Beta        float64   `json:"beta"`
	Mean        float64   `json:"mean"`
	Variance    float64   `json:"variance"`
	SignalCount int       `json:"signal_count"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CalibrationStatus exposes active model quality. When Measured is true the
// ECE and Brier values were re-evaluated against recent labeled outcomes
// rather than read from the model artifact.
type CalibrationStatus struct {
	A          float64   `json:"a"`
	B          float64   `json:"b"`
	ECE        float64   `json:"ece"`
	BrierScore float64   `json:"brier_score"`
	FittedAt   time.Time `json:"fitted_at"`
	SampleSize int       `json:"sample_size"`
	Measured   bool      `json:"measured"`
	Stale      bool      `json:"stale"`
}
