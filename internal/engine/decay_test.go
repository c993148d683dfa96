package engine

import (
	"testing"
	"time"

	"LaneRisk/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEffectiveStrengthAtObservation(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	got, err := EffectiveStrength(0.8, now, 12*time.Hour, now)
	require.NoError(t, err)
	assert.InDelta(t, 0.8, got, 1e-12)
}

func TestEffectiveStrengthHalfLife(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	got, err := EffectiveStrength(0.8, now, 12*time.Hour, now.Add(12*time.Hour))
	require.NoError(t, err)
	assert.InDelta(t, 0.4, got, 1e-12)
}

func TestEffectiveStrengthMonotone(t *testing.T) {
	observed := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	prev := 1.0
	for h := 0; h <= 72; h++ {
		got, err := EffectiveStrength(0.9, observed, 6*time.Hour, observed.Add(time.Duration(h)*time.Hour))
		require.NoError(t, err)
		assert.LessOrEqual(t, got, prev, "decay must be non-increasing at h=%d", h)
		assert.GreaterOrEqual(t, got, 0.0)
		assert.LessOrEqual(t, got, 0.9)
		prev = got
	}
}

func TestEffectiveStrengthFutureSignal(t *testing.T) {
	now := time.Now()
	_, err := EffectiveStrength(0.5, now.Add(time.Minute), time.Hour, now)
	require.ErrorIs(t, err, ErrInvalidSignal)
}

func TestEffectiveStrengthRejectsBadInputs(t *testing.T) {
	now := time.Now()
	_, err := EffectiveStrength(1.2, now, time.Hour, now)
	require.ErrorIs(t, err, ErrInvalidSignal)

	_, err = EffectiveStrength(-0.1, now, time.Hour, now)
	require.ErrorIs(t, err, ErrInvalidSignal)

	_, err = EffectiveStrength(0.5, now, 0, now)
	require.ErrorIs(t, err, ErrInvalidSignal)
}

func TestSignalEffectiveStrength(t *testing.T) {
	observed := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	s := models.Signal{Strength: 0.6, ObservedAt: observed, DecayHalfLife: 12 * time.Hour}
	got, err := SignalEffectiveStrength(s, observed.Add(24*time.Hour))
	require.NoError(t, err)
	assert.InDelta(t, 0.15, got, 1e-12)
}

func TestExpired(t *testing.T) {
	assert.True(t, Expired(0.009, 0.01))
	assert.False(t, Expired(0.01, 0.01))
	// zero floor falls back to the default
	assert.True(t, Expired(0.005, 0))
}
