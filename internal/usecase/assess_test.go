package usecase

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

type stubModel struct {
	m   models.CalibrationModel
	err error
}

func (s stubModel) Fetch(ctx context.Context) (models.CalibrationModel, error) {
	return s.m, s.err
}

type fakePublisher struct {
	mu        sync.Mutex
	published []*models.RiskAssessment
}

func (p *fakePublisher) Publish(ctx context.Context, a *models.RiskAssessment) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, a)
	return nil
}

func (p *fakePublisher) PublishBatch(ctx context.Context, as []*models.RiskAssessment) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, as...)
	return nil
}

func (p *fakePublisher) Close() error { return nil }

func (p *fakePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.published)
}

type fakeStore struct {
	mu       sync.Mutex
	stored   []*models.RiskAssessment
	outcomes []models.LabeledOutcome
	err      error
}

func (s *fakeStore) Init(ctx context.Context) error { return nil }

func (s *fakeStore) Store(ctx context.Context, a *models.RiskAssessment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.stored = append(s.stored, a)
	return nil
}

func (s *fakeStore) StoreBatch(ctx context.Context, as []*models.RiskAssessment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.stored = append(s.stored, as...)
	return nil
}

func (s *fakeStore) LabeledOutcomes(ctx context.Context, since time.Time, limit int) ([]models.LabeledOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return s.outcomes, nil
}

func (s *fakeStore) Health(ctx context.Context) error { return nil }
func (s *fakeStore) Close() error                     { return nil }

func (s *fakeStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.stored)
}

type fakeQueue struct {
	mu    sync.Mutex
	types []string
}

func (q *fakeQueue) PublishMessage(ctx context.Context, msgType string, payload interface{}) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.types = append(q.types, msgType)
	return nil
}

func (q *fakeQueue) published() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]string, len(q.types))
	copy(out, q.types)
	return out
}

func seededEvaluator(t *testing.T) *RiskEvaluator {
	t.Helper()
	e := testEvaluator(t, newFakeMetrics())
	ctx := context.Background()
	require.NoError(t, e.Ingest(ctx, testSignal("lane-sgp-rtm", "port-congestion", 0.9)))
	require.NoError(t, e.Ingest(ctx, testSignal("lane-sgp-rtm", "route-deviation", 0.6)))
	require.NoError(t, e.Ingest(ctx, testSignal("lane-sgp-rtm", "rate-spike", 0.3)))
	return e
}

func TestAssessUnknownEntity(t *testing.T) {
	uc := NewAssessUseCase(testEvaluator(t, newFakeMetrics()), stubModel{}, nil, nil, newFakeMetrics(), testLogger(t), nil, AssessConfig{})

	_, err := uc.Assess(context.Background(), "lane-never-seen")
	require.ErrorIs(t, err, engine.ErrEmptyFusion)
}

func TestAssessEmptyEntityID(t *testing.T) {
	uc := NewAssessUseCase(testEvaluator(t, newFakeMetrics()), stubModel{}, nil, nil, newFakeMetrics(), testLogger(t), nil, AssessConfig{})

	_, err := uc.Assess(context.Background(), "")
	require.Error(t, err)
}

func TestAssessHappyPath(t *testing.T) {
	eval := seededEvaluator(t)
	pub := &fakePublisher{}
	store := &fakeStore{}
	m := newFakeMetrics()
	model := stubModel{m: models.CalibrationModel{A: 1.2, B: -0.1, ECE: 0.02, FittedAt: time.Now()}}

	uc := NewAssessUseCase(eval, model, pub, store, m, testLogger(t), nil, AssessConfig{})
	a, err := uc.Assess(context.Background(), "lane-sgp-rtm")
	require.NoError(t, err)

	assert.Equal(t, "lane-sgp-rtm", a.EntityID)
	assert.Greater(t, a.RawScore, 0.0)
	assert.Less(t, a.RawScore, 1.0)
	assert.Greater(t, a.CalibratedProbability, 0.0)
	assert.Less(t, a.CalibratedProbability, 1.0)
	assert.GreaterOrEqual(t, a.CalibratedProbability, a.Interval.Lower)
	assert.LessOrEqual(t, a.CalibratedProbability, a.Interval.Upper)
	assert.NotEmpty(t, a.FactorContributions)
	assert.Contains(t, a.FactorContributions, "port-congestion")
	assert.Len(t, a.DominantFactors, len(a.FactorContributions))
	assert.False(t, a.EvaluatedAt.IsZero())

	require.Eventually(t, func() bool {
		return pub.count() == 1 && store.count() == 1
	}, 2*time.Second, 10*time.Millisecond, "assessment must be published and stored")
}

func TestAssessIdentityCalibrationOnFetchError(t *testing.T) {
	eval := seededEvaluator(t)
	model := stubModel{err: errors.New("model store down")}

	uc := NewAssessUseCase(eval, model, nil, nil, newFakeMetrics(), testLogger(t), nil, AssessConfig{})
	a, err := uc.Assess(context.Background(), "lane-sgp-rtm")
	require.NoError(t, err)
	assert.InDelta(t, a.RawScore, a.CalibratedProbability, 1e-9, "identity model must pass the raw score through")
}

func TestAssessStaleModelEnqueuesRecalibration(t *testing.T) {
	eval := seededEvaluator(t)
	jobs := &fakeQueue{}
	model := stubModel{m: models.CalibrationModel{A: 1, B: 0, ECE: 0.2, FittedAt: time.Now().Add(-48 * time.Hour)}}

	uc := NewAssessUseCase(eval, model, nil, nil, newFakeMetrics(), testLogger(t), jobs, AssessConfig{StalenessECE: 0.05})
	_, err := uc.Assess(context.Background(), "lane-sgp-rtm")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(jobs.published()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "calibration.recalibrate", jobs.published()[0])
}

func TestAssessRecalibrationThrottled(t *testing.T) {
	eval := seededEvaluator(t)
	jobs := &fakeQueue{}
	model := stubModel{m: models.CalibrationModel{A: 1, B: 0, ECE: 0.2}}

	uc := NewAssessUseCase(eval, model, nil, nil, newFakeMetrics(), testLogger(t), jobs, AssessConfig{
		StalenessECE:     0.05,
		RecalibrateEvery: time.Hour,
	})
	for i := 0; i < 5; i++ {
		_, err := uc.Assess(context.Background(), "lane-sgp-rtm")
		require.NoError(t, err)
	}

	require.Eventually(t, func() bool {
		return len(jobs.published()) >= 1
	}, 2*time.Second, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, jobs.published(), 1, "repeat assessments inside the window must not re-enqueue")
}

func TestAssessAtExplicitInstant(t *testing.T) {
	eval := seededEvaluator(t)
	uc := NewAssessUseCase(eval, stubModel{m: models.CalibrationModel{A: 1, B: 0}}, nil, nil, newFakeMetrics(), testLogger(t), nil, AssessConfig{})

	at := time.Now().UTC().Add(3 * time.Hour).Truncate(time.Second)
	a, err := uc.AssessAt(context.Background(), "lane-sgp-rtm", at)
	require.NoError(t, err)
	assert.True(t, a.EvaluatedAt.Equal(at), "assessment must be pinned to the requested instant")

	// Same instant, same belief state: the answer is reproducible.
	b, err := uc.AssessAt(context.Background(), "lane-sgp-rtm", at)
	require.NoError(t, err)
	assert.Equal(t, a.RawScore, b.RawScore)
	assert.Equal(t, a.CalibratedProbability, b.CalibratedProbability)
}

func TestAssessAtZeroInstantMeansNow(t *testing.T) {
	eval := seededEvaluator(t)
	uc := NewAssessUseCase(eval, stubModel{m: models.CalibrationModel{A: 1, B: 0}}, nil, nil, newFakeMetrics(), testLogger(t), nil, AssessConfig{})

	before := time.Now().UTC()
	a, err := uc.AssessAt(context.Background(), "lane-sgp-rtm", time.Time{})
	require.NoError(t, err)
	assert.False(t, a.EvaluatedAt.Before(before))
	assert.False(t, a.EvaluatedAt.After(time.Now().UTC()))
}

func TestAssessEstimatorsDisagreementReported(t *testing.T) {
	eval := seededEvaluator(t)
	uc := NewAssessUseCase(eval, stubModel{m: models.CalibrationModel{A: 1, B: 0}}, nil, nil, newFakeMetrics(), testLogger(t), nil, AssessConfig{})

	a, err := uc.Assess(context.Background(), "lane-sgp-rtm")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, a.Disagreement, 0.0)
	assert.Equal(t, a.Disagreement > engine.DefaultDisagreementThreshold, a.HighDisagreement)
}
