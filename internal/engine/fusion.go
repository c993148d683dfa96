package engine

import (
	"math"
	"time"

	"LaneRisk/internal/domain/models"
)

// Fuse combines per-factor posteriors into one composite raw score using a
// weighted log-odds sum: logit(raw) = sum_f w_f * logit(mean_f), with weights
// normalized over the factors that carry evidence. Factors still at their
// prior contribute nothing and are left out of the sum. Contributions are
// recorded in log-odds space before the inverse transform, so attribution is
// additive and the raw score reconstructs from the contribution sum.
func Fuse(entityID string, beliefs map[string]models.FactorBelief, weights map[string]float64, at time.Time) (models.FusionResult, error) {
	type evidenced struct {
		id   string
		mean float64
		w    float64
	}
	present := make([]evidenced, 0, len(beliefs))
	wsum := 0.0
	for id, b := range beliefs {
		if b.SignalCount == 0 {
			continue
		}
		w := weights[id]
		if w <= 0 {
			w = 1
		}
		present = append(present, evidenced{id: id, mean: b.Mean(), w: w})
		wsum += w
	}
	if len(present) == 0 {
		return models.FusionResult{}, ErrEmptyFusion
	}

	contributions := make(map[string]float64, len(present))
	total := 0.0
	absSum := 0.0
	for _, f := range present {
		c := (f.w / wsum) * logit(f.mean)
		contributions[f.id] = c
		total += c
		absSum += math.Abs(c)
	}

	// Runaway guard: total attribution mass never exceeds the number of
	// contributing factors. Scaling preserves relative attribution and the
	// score still reconstructs from the scaled sum. The bound caps a lone
	// extreme factor at sigmoid(1), k extreme factors at sigmoid(k).
	if n := float64(len(present)); absSum > n {
		scale := n / absSum
		total = 0
		for id := range contributions {
			contributions[id] *= scale
			total += contributions[id]
		}
	}

	return models.FusionResult{
		EntityID:            entityID,
		RawScore:            sanitize(sigmoid(total), 0.5),
		FactorContributions: contributions,
		EvaluatedAt:         at,
	}, nil
}
