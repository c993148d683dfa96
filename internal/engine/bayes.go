package engine

import (
	"fmt"
	"time"

	"LaneRisk/internal/domain/models"
)

// FactorDef declares one risk factor the engine tracks. Factors are
// pre-declared via configuration; signals against unknown factors are
// rejected, never auto-discovered.
type FactorDef struct {
	ID         string
	Weight     float64
	PriorAlpha float64
	PriorBeta  float64
}

// Registry holds the declared factors and their fusion weights.
type Registry struct {
	factors map[string]FactorDef
}

// NewRegistry builds a registry from factor definitions. Missing priors
// default to the uniform alpha=beta=1; non-positive weights default to 1.
func NewRegistry(defs []FactorDef) *Registry {
	m := make(map[string]FactorDef, len(defs))
	for _, d := range defs {
		if d.PriorAlpha <= 0 {
			d.PriorAlpha = 1
		}
		if d.PriorBeta <= 0 {
			d.PriorBeta = 1
		}
		if d.Weight <= 0 {
			d.Weight = 1
		}
		m[d.ID] = d
	}
	return &Registry{factors: m}
}

// Lookup returns the definition for a factor ID.
func (r *Registry) Lookup(id string) (FactorDef, bool) {
	d, ok := r.factors[id]
	return d, ok
}

// Prior returns the starting belief for a declared factor.
func (r *Registry) Prior(id string) (models.FactorBelief, error) {
	d, ok := r.factors[id]
	if !ok {
		return models.FactorBelief{}, fmt.Errorf("%w: %q", ErrUnknownFactor, id)
	}
	return models.FactorBelief{FactorID: id, Alpha: d.PriorAlpha, Beta: d.PriorBeta}, nil
}

// Weights returns factor fusion weights keyed by factor ID.
func (r *Registry) Weights() map[string]float64 {
	w := make(map[string]float64, len(r.factors))
	for id, d := range r.factors {
		w[id] = d.Weight
	}
	return w
}

// Len returns the number of declared factors.
func (r *Registry) Len() int { return len(r.factors) }

// UpdateBelief folds one signal's correlation-discounted effective strength
// into a factor posterior as a fractional pseudo-count: alpha grows for
// risk-increasing evidence, beta for risk-decreasing. The input belief is not
// mutated; the updated copy is returned, which keeps replay and audit cheap
// and leaves same-entity serialization to the caller.
func UpdateBelief(belief models.FactorBelief, effectiveStrength float64, dir models.Direction, at time.Time) models.FactorBelief {
	es := clamp(effectiveStrength, 0, 1)
	next := belief
	if dir == models.DirectionDecrease {
		next.Beta += es
	} else {
		next.Alpha += es
	}
	next.LastUpdatedAt = at
	next.SignalCount++
	return next
}
