package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"LaneRisk/internal/domain/models"
	"LaneRisk/internal/engine"
	applogger "LaneRisk/pkg/logger"

	"github.com/stretchr/testify/require"
)

type fakeMetrics struct {
	mu       sync.Mutex
	accepted int
	rejected map[string]int
	errors   map[string]int
	scores   map[string]float64
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{
		rejected: make(map[string]int),
		errors:   make(map[string]int),
		scores:   make(map[string]float64),
	}
}

func (m *fakeMetrics) RecordSignalAccepted(source, factor string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accepted++
}

func (m *fakeMetrics) RecordSignalRejected(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejected[reason]++
}

func (m *fakeMetrics) RecordError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[kind]++
}

func (m *fakeMetrics) RecordRiskScore(entity string, p float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scores[entity] = p
}

func (m *fakeMetrics) RecordLatency(op string, seconds float64) {}

func (m *fakeMetrics) rejectedCount(reason string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rejected[reason]
}

func (m *fakeMetrics) acceptedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.accepted
}

// overlapScorer returns a fixed topical overlap regardless of input.
type overlapScorer struct{ score float64 }

func (s overlapScorer) TopicalOverlap(ctx context.Context, a, b models.Signal) (float64, error) {
	return s.score, nil
}

func testLogger(t *testing.T) *applogger.Logger {
	t.Helper()
	l, err := applogger.New(&applogger.Config{Level: "error", Format: "json", Output: "stderr"})
	require.NoError(t, err)
	return l
}

func testEvaluator(t *testing.T, m *fakeMetrics) *RiskEvaluator {
	t.Helper()
	registry := engine.NewRegistry([]engine.FactorDef{
		{ID: "port-congestion", Weight: 1.5},
		{ID: "route-deviation", Weight: 1.2},
		{ID: "rate-spike", Weight: 1},
	})
	detector := engine.NewDetector(engine.DefaultDetectorConfig(), overlapScorer{score: 1})
	return NewRiskEvaluator(registry, detector, m, testLogger(t), 0)
}

func testSignal(entity, factor string, strength float64) *models.Signal {
	return &models.Signal{
		ID:            "sig-" + factor,
		EntityID:      entity,
		Source:        models.SourceNews,
		FactorID:      factor,
		Strength:      strength,
		Direction:     models.DirectionIncrease,
		ObservedAt:    time.Now().UTC(),
		DecayHalfLife: 12 * time.Hour,
	}
}
