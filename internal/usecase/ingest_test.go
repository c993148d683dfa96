package usecase

import (
	"context"
	"testing"
	"time"

	"LaneRisk/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIngestBatchMixedResults(t *testing.T) {
	eval := testEvaluator(t, newFakeMetrics())
	uc := NewIngestUseCase(eval, 12*time.Hour)

	now := time.Now().Unix()
	res := uc.IngestBatch(context.Background(), []models.SignalInput{
		{ID: "ok-1", EntityID: "lane-sgp-rtm", Source: "news", FactorID: "port-congestion", Strength: 0.7, Direction: "increase", ObservedAt: now},
		{ID: "bad-factor", EntityID: "lane-sgp-rtm", Source: "news", FactorID: "piracy", Strength: 0.7, Direction: "increase", ObservedAt: now},
		{ID: "ok-2", EntityID: "lane-sgp-rtm", Source: "ais", FactorID: "route-deviation", Strength: 0.5, Direction: "decrease", ObservedAt: now},
	})

	assert.Equal(t, 2, res.Accepted)
	assert.Equal(t, 1, res.Rejected)
	require.Contains(t, res.Reasons, "bad-factor")
	assert.Contains(t, res.Reasons["bad-factor"], "piracy")
}

func TestIngestBatchNeverAborts(t *testing.T) {
	eval := testEvaluator(t, newFakeMetrics())
	uc := NewIngestUseCase(eval, 12*time.Hour)

	now := time.Now().Unix()
	res := uc.IngestBatch(context.Background(), []models.SignalInput{
		{ID: "bad-1", EntityID: "", Source: "news", FactorID: "port-congestion", Strength: 0.7, ObservedAt: now},
		{ID: "ok-1", EntityID: "lane-sgp-rtm", Source: "news", FactorID: "port-congestion", Strength: 0.7, ObservedAt: now},
	})

	assert.Equal(t, 1, res.Accepted, "rejection must not abort the rest of the batch")
	assert.Equal(t, 1, res.Rejected)
}

func TestToSignalUnixSeconds(t *testing.T) {
	uc := NewIngestUseCase(nil, 12*time.Hour)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	s := uc.ToSignal(models.SignalInput{EntityID: "lane-a", Source: "news", FactorID: "rate-spike", ObservedAt: at.Unix()})
	assert.True(t, s.ObservedAt.Equal(at))
}

func TestToSignalUnixMillis(t *testing.T) {
	uc := NewIngestUseCase(nil, 12*time.Hour)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	s := uc.ToSignal(models.SignalInput{EntityID: "lane-a", Source: "news", FactorID: "rate-spike", ObservedAt: at.UnixMilli()})
	assert.True(t, s.ObservedAt.Equal(at))
}

func TestToSignalDefaults(t *testing.T) {
	uc := NewIngestUseCase(nil, 6*time.Hour)

	s := uc.ToSignal(models.SignalInput{EntityID: "lane-a", Source: "news", FactorID: "rate-spike", ObservedAt: time.Now().Unix()})
	assert.NotEmpty(t, s.ID, "missing id is generated")
	assert.Equal(t, models.DirectionIncrease, s.Direction)
	assert.Equal(t, 6*time.Hour, s.DecayHalfLife)

	s = uc.ToSignal(models.SignalInput{EntityID: "lane-a", Source: "news", FactorID: "rate-spike", ObservedAt: time.Now().Unix(), HalfLifeHours: 2.5, Direction: "decrease"})
	assert.Equal(t, models.DirectionDecrease, s.Direction)
	assert.Equal(t, 150*time.Minute, s.DecayHalfLife)
}
