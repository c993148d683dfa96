package middleware

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"LaneRisk/internal/domain/models"
	"LaneRisk/internal/engine"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingProc struct {
	mu   sync.Mutex
	seen []*models.Signal
	err  error
}

func (p *countingProc) Process(ctx context.Context, s *models.Signal) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.seen = append(p.seen, s)
	return nil
}

func (p *countingProc) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.seen)
}

type countingMetrics struct {
	mu       sync.Mutex
	rejected map[string]int
	errors   map[string]int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{rejected: make(map[string]int), errors: make(map[string]int)}
}

func (m *countingMetrics) RecordSignalAccepted(source, factor string) {}
func (m *countingMetrics) RecordSignalRejected(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejected[reason]++
}
func (m *countingMetrics) RecordError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[kind]++
}
func (m *countingMetrics) RecordRiskScore(entity string, p float64) {}
func (m *countingMetrics) RecordLatency(op string, seconds float64) {}

func (m *countingMetrics) rejectedCount(reason string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rejected[reason]
}

func validSignal(id string) *models.Signal {
	return &models.Signal{
		ID:            id,
		EntityID:      "lane-sgp-rtm",
		Source:        models.SourceNews,
		FactorID:      "port-congestion",
		Strength:      0.6,
		Direction:     models.DirectionIncrease,
		ObservedAt:    time.Now().UTC(),
		DecayHalfLife: 12 * time.Hour,
	}
}

func TestPipelineForwardsValidSignal(t *testing.T) {
	proc := &countingProc{}
	p := NewSignalPipeline(proc, newCountingMetrics())

	require.NoError(t, p.Process(context.Background(), validSignal("s1")))
	assert.Equal(t, 1, proc.count())
}

func TestPipelineRejectsInvalidSignal(t *testing.T) {
	proc := &countingProc{}
	m := newCountingMetrics()
	p := NewSignalPipeline(proc, m)

	s := validSignal("s1")
	s.Strength = 3
	err := p.Process(context.Background(), s)
	require.ErrorIs(t, err, engine.ErrInvalidSignal)
	assert.Equal(t, 1, m.rejectedCount("validation"))
	assert.Zero(t, proc.count())
}

func TestPipelineThrottlesPerSource(t *testing.T) {
	proc := &countingProc{}
	m := newCountingMetrics()
	p := NewSignalPipeline(proc, m, WithMaxRPS(1))

	require.NoError(t, p.Process(context.Background(), validSignal("s1")))
	require.NoError(t, p.Process(context.Background(), validSignal("s2")), "throttled signals drop silently")
	assert.Equal(t, 1, proc.count())
	assert.Equal(t, 1, m.rejectedCount("throttled"))

	other := validSignal("s3")
	other.Source = models.SourceAIS
	require.NoError(t, p.Process(context.Background(), other), "throttle is per source")
	assert.Equal(t, 2, proc.count())
}

func TestPipelineTransformAppliedBeforeValidation(t *testing.T) {
	proc := &countingProc{}
	p := NewSignalPipeline(proc, newCountingMetrics(), WithTransform(func(s *models.Signal) *models.Signal {
		if s.DecayHalfLife <= 0 {
			s.DecayHalfLife = 12 * time.Hour
		}
		return s
	}))

	s := validSignal("s1")
	s.DecayHalfLife = 0
	require.NoError(t, p.Process(context.Background(), s))
	assert.Equal(t, 1, proc.count())
}

func TestPipelineBuffersOnDownstreamError(t *testing.T) {
	proc := &countingProc{err: errors.New("downstream unavailable")}
	m := newCountingMetrics()
	p := NewSignalPipeline(proc, m, WithBufferSize(4))

	err := p.Process(context.Background(), validSignal("s1"))
	require.Error(t, err)

	// Downstream recovers; the buffered signal flushes in the background.
	proc.mu.Lock()
	proc.err = nil
	proc.mu.Unlock()

	p.Start(context.Background())
	defer p.Stop()
	require.Eventually(t, func() bool {
		return proc.count() == 1
	}, 2*time.Second, 10*time.Millisecond)
}
