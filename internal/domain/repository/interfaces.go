package repository

import (
	"context"
	"time"

	"LaneRisk/internal/domain/models"
)

// SignalStream is a push feed of raw signals (e.g. the AIS anomaly socket).
type SignalStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.Signal, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// Publisher emits finished assessments to the audit topic.
type Publisher interface {
	Publish(ctx context.Context, a *models.RiskAssessment) error
	PublishBatch(ctx context.Context, as []*models.RiskAssessment) error
	Close() error
}

// AssessmentStore persists assessments and serves labeled outcomes for
// calibration quality evaluation.
type AssessmentStore interface {
	Init(ctx context.Context) error
	Store(ctx context.Context, a *models.RiskAssessment) error
	StoreBatch(ctx context.Context, as []*models.RiskAssessment) error
	LabeledOutcomes(ctx context.Context, since time.Time, limit int) ([]models.LabeledOutcome, error)
	Health(ctx context.Context) error
	Close() error
}

// Metrics records operational counters for the ingestion and scoring path.
type Metrics interface {
	RecordSignalAccepted(source, factor string)
	RecordSignalRejected(reason string)
	RecordError(kind string)
	RecordRiskScore(entity string, p float64)
	RecordLatency(op string, seconds float64)
}
