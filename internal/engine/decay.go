package engine

import (
	"fmt"
	"math"
	"time"

	"LaneRisk/internal/domain/models"
)

// DefaultDecayFloor is the effective strength below which a signal stops
// contributing to fusion (soft expiry; the signal stays in history).
const DefaultDecayFloor = 0.01

// EffectiveStrength time-weights a signal's strength by recency:
// strength * 2^(-(at-observedAt)/halfLife), clamped to [0, strength].
// Pure function of its inputs; an evaluation instant before the observation
// is a future signal and rejected.
func EffectiveStrength(strength float64, observedAt time.Time, halfLife time.Duration, at time.Time) (float64, error) {
	if strength < 0 || strength > 1 || math.IsNaN(strength) {
		return 0, fmt.Errorf("%w: strength %v outside [0,1]", ErrInvalidSignal, strength)
	}
	if halfLife <= 0 {
		return 0, fmt.Errorf("%w: non-positive half-life %v", ErrInvalidSignal, halfLife)
	}
	if at.Before(observedAt) {
		return 0, fmt.Errorf("%w: observed_at %s is in the future of %s", ErrInvalidSignal,
			observedAt.Format(time.RFC3339), at.Format(time.RFC3339))
	}
	age := at.Sub(observedAt)
	eff := strength * math.Exp2(-float64(age)/float64(halfLife))
	return clamp(eff, 0, strength), nil
}

// SignalEffectiveStrength applies EffectiveStrength to a signal record.
func SignalEffectiveStrength(s models.Signal, at time.Time) (float64, error) {
	return EffectiveStrength(s.Strength, s.ObservedAt, s.DecayHalfLife, at)
}

// Expired reports whether a decayed strength fell under the floor and should
// be excluded from fusion.
func Expired(effective, floor float64) bool {
	if floor <= 0 {
		floor = DefaultDecayFloor
	}
	return effective < floor
}
