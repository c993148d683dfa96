package engine

import (
	"fmt"

	"LaneRisk/internal/domain/models"
)

// ValidateSignal rejects signals that cannot be admitted into belief state.
// All failures wrap ErrInvalidSignal so callers can classify with errors.Is.
func ValidateSignal(s *models.Signal) error {
	if s == nil {
		return fmt.Errorf("%w: nil signal", ErrInvalidSignal)
	}
	if s.EntityID == "" {
		return fmt.Errorf("%w: empty entity id", ErrInvalidSignal)
	}
	if s.FactorID == "" {
		return fmt.Errorf("%w: empty factor id", ErrInvalidSignal)
	}
	if !models.IsValidSource(s.Source) {
		return fmt.Errorf("%w: unknown source %q", ErrInvalidSignal, s.Source)
	}
	if s.Strength < 0 || s.Strength > 1 {
		return fmt.Errorf("%w: strength %v outside [0,1]", ErrInvalidSignal, s.Strength)
	}
	if s.Direction != models.DirectionIncrease && s.Direction != models.DirectionDecrease {
		return fmt.Errorf("%w: unknown direction %q", ErrInvalidSignal, s.Direction)
	}
	if s.DecayHalfLife <= 0 {
		return fmt.Errorf("%w: non-positive half-life", ErrInvalidSignal)
	}
	if s.ObservedAt.IsZero() {
		return fmt.Errorf("%w: zero observation time", ErrInvalidSignal)
	}
	return nil
}
