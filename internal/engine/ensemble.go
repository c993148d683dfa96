package engine

import (
	"math"

	"LaneRisk/internal/domain/models"
)

// DefaultDisagreementThreshold flags ensembles whose members spread wider
// than this weighted standard deviation.
const DefaultDisagreementThreshold = 0.15

// EnsembleResult is the combined view over independent estimators.
type EnsembleResult struct {
	CombinedScore    float64
	Disagreement     float64
	HighDisagreement bool
}

// Aggregate combines independent estimates by confidence-weighted mean in
// probability space (estimates are already point probabilities, unlike
// per-factor beliefs) and measures disagreement as the weighted standard
// deviation. A flagged result must be treated as lower-confidence downstream.
func Aggregate(estimates []models.EnsembleEstimate, threshold float64) (EnsembleResult, error) {
	if len(estimates) == 0 {
		return EnsembleResult{}, ErrEmptyEnsemble
	}
	if threshold <= 0 {
		threshold = DefaultDisagreementThreshold
	}

	wsum := 0.0
	for _, e := range estimates {
		if e.Confidence > 0 {
			wsum += e.Confidence
		}
	}

	weight := func(e models.EnsembleEstimate) float64 {
		if wsum == 0 {
			return 1 / float64(len(estimates)) // all-zero confidence: equal weights
		}
		if e.Confidence <= 0 {
			return 0
		}
		return e.Confidence / wsum
	}

	combined := 0.0
	for _, e := range estimates {
		combined += weight(e) * clamp(e.RawScore, 0, 1)
	}
	combined = sanitize(combined, 0.5)

	variance := 0.0
	for _, e := range estimates {
		d := clamp(e.RawScore, 0, 1) - combined
		variance += weight(e) * d * d
	}
	disagreement := math.Sqrt(variance)
	if len(estimates) == 1 {
		disagreement = 0
	}

	return EnsembleResult{
		CombinedScore:    combined,
		Disagreement:     disagreement,
		HighDisagreement: disagreement > threshold,
	}, nil
}
