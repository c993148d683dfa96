package models

import "time"

// SignalSource identifies the upstream adapter that produced a signal.
type SignalSource string

const (
	SourceNews             SignalSource = "news"
	SourceAIS              SignalSource = "ais"
	SourceRateIndex        SignalSource = "rate-index"
	SourcePredictionMarket SignalSource = "prediction-market"
	SourceOther            SignalSource = "other"
)

// IsValidSource returns true if s is a supported signal source.
func IsValidSource(s SignalSource) bool {
	switch s {
	case SourceNews, SourceAIS, SourceRateIndex, SourcePredictionMarket, SourceOther:
		return true
	default:
		return false
	}
}

// Direction indicates whether a signal raises or lowers disruption risk.
type Direction string

const (
	DirectionIncrease Direction = "increase"
	DirectionDecrease Direction = "decrease"
)

// Signal is one atomic risk observation. Signals are immutable once created;
// newer evidence arrives as new Signals, never as mutation.
type Signal struct {
	ID              string
	EntityID        string // shipment or lane the signal concerns
	Source          SignalSource
	FactorID        string    // risk factor evidenced, e.g. "port-congestion"
	Strength        float64   // evidence magnitude in [0,1]
	Direction       Direction // increases or decreases risk
	ObservedAt      time.Time
	DecayHalfLife   time.Duration
	Topic           string   // free-text topic key handed to the similarity scorer
	TopicTags       []string // scorer input; cluster membership lives on CorrelationCluster
}

// FactorBelief is the Beta-distributed posterior for one risk factor.
// Values are copy-on-update: every accepted signal yields a new belief.
type FactorBelief struct {
	FactorID      string
	Alpha         float64
	Beta          float64
	LastUpdatedAt time.Time
	SignalCount   int
}

// Mean returns the point risk estimate alpha/(alpha+beta).
func (b FactorBelief) Mean() float64 {
	s := b.Alpha + b.Beta
	if s <= 0 {
		return 0.5
	}
	return b.Alpha / s
}

// Variance returns the Beta-distribution variance, the belief's uncertainty.
func (b FactorBelief) Variance() float64 {
	s := b.Alpha + b.Beta
	if s <= 0 {
		return 0
	}
	return b.Alpha * b.Beta / (s * s * (s + 1))
}

// CorrelationCluster groups signals judged to share a root cause.
type CorrelationCluster struct {
	ClusterID      string
	MemberIDs      []string // insertion-ordered signal IDs
	Representative Signal   // signal the cluster was seeded with
	LastActiveAt   time.Time
	DiscountFactor float64 // in (0,1], 1/sqrt(member count)
}

// FusionResult is the composite score for one entity at one instant.
type FusionResult struct {
	EntityID            string
	RawScore            float64
	FactorContributions map[string]float64 // factor -> signed log-odds contribution
	EvaluatedAt         time.Time
}

// EnsembleEstimate is one estimator pipeline's raw score plus confidence.
type EnsembleEstimate struct {
	Estimator  string
	RawScore   float64
	Confidence float64
}

// CalibrationModel maps a raw fused score to a calibrated probability via
// Platt scaling. Replaced wholesale on recalibration, never patched.
type CalibrationModel struct {
	A          float64   `json:"a"`
	B          float64   `json:"b"`
	ECE        float64   `json:"ece"`
	BrierScore float64   `json:"brier_score"`
	FittedAt   time.Time `json:"fitted_at"`
	SampleSize int       `json:"sample_size"`
}

// ConfidenceInterval bounds the calibrated probability.
type ConfidenceInterval struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// RiskAssessment is the engine's decision-ready output for one entity.
type RiskAssessment struct {
	EntityID              string             `json:"entity_id"`
	RawScore              float64            `json:"raw_score"`
	CalibratedProbability float64            `json:"calibrated_probability"`
	Interval              ConfidenceInterval `json:"confidence_interval"`
	FactorContributions   map[string]float64 `json:"factor_contributions"`
	DominantFactors       []string           `json:"dominant_factors"`
	HighDisagreement      bool               `json:"high_disagreement"`
	Disagreement          float64            `json:"disagreement"`
	EvaluatedAt           time.Time          `json:"evaluated_at"`
}

// LabeledOutcome pairs a historical raw score with the realized outcome,
// used to evaluate calibration quality (ECE, Brier).
type LabeledOutcome struct {
	EntityID   string
	RawScore   float64
	Calibrated float64
	Outcome    bool // disruption actually occurred
	ObservedAt time.Time
}
