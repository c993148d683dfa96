package engine

import (
	"math"
	"sort"

	"LaneRisk/internal/domain/models"
)

// DefaultStalenessECE is the ECE above which a model is considered stale.
// Staleness is a quality signal for the recalibration job, never an error.
const DefaultStalenessECE = 0.05

const eceBins = 10

// Calibrate applies Platt scaling: sigmoid(a*logit(raw) + b). Pure and
// idempotent for a fixed model; fitting (a,b) happens offline elsewhere.
func Calibrate(raw float64, m models.CalibrationModel) float64 {
	return sanitize(sigmoid(m.A*logit(clamp(raw, 0, 1))+m.B), 0.5)
}

// intervalZ approximates the 95% normal quantile for the half-width.
const intervalZ = 1.96

// disagreementWiden widens the interval for flagged ensembles.
const disagreementWiden = 1.5

// Interval derives an uncertainty band around the calibrated probability
// from the Beta variance of the dominant contributing factors, widened when
// the ensemble disagreed.
func Interval(calibrated float64, beliefs map[string]models.FactorBelief, contributions map[string]float64, highDisagreement bool) models.ConfidenceInterval {
	absSum := 0.0
	for _, c := range contributions {
		absSum += math.Abs(c)
	}

	variance := 0.0
	if absSum > 0 {
		for id, c := range contributions {
			b, ok := beliefs[id]
			if !ok {
				continue
			}
			variance += (math.Abs(c) / absSum) * b.Variance()
		}
	} else {
		// no attribution: fall back to maximal Bernoulli spread
		variance = 0.25
	}

	half := intervalZ * math.Sqrt(variance)
	if highDisagreement {
		half *= disagreementWiden
	}
	return models.ConfidenceInterval{
		Lower: sanitize(calibrated-half, 0),
		Upper: sanitize(calibrated+half, 1),
	}
}

// ECE bins calibrated predictions into deciles and returns the count-weighted
// mean absolute gap between predicted probability and observed frequency.
// Zero for a perfectly calibrated sample, zero for an empty one.
func ECE(m models.CalibrationModel, sample []models.LabeledOutcome) float64 {
	if len(sample) == 0 {
		return 0
	}
	type bin struct {
		n       int
		predSum float64
		hits    int
	}
	bins := make([]bin, eceBins)
	for _, o := range sample {
		p := Calibrate(o.RawScore, m)
		i := int(p * eceBins)
		if i >= eceBins {
			i = eceBins - 1
		}
		bins[i].n++
		bins[i].predSum += p
		if o.Outcome {
			bins[i].hits++
		}
	}
	total := float64(len(sample))
	ece := 0.0
	for _, b := range bins {
		if b.n == 0 {
			continue
		}
		pred := b.predSum / float64(b.n)
		freq := float64(b.hits) / float64(b.n)
		ece += (float64(b.n) / total) * math.Abs(pred-freq)
	}
	return sanitize(ece, 0)
}

// Brier returns the mean squared error between calibrated probability and
// the binary outcome.
func Brier(m models.CalibrationModel, sample []models.LabeledOutcome) float64 {
	if len(sample) == 0 {
		return 0
	}
	sum := 0.0
	for _, o := range sample {
		p := Calibrate(o.RawScore, m)
		y := 0.0
		if o.Outcome {
			y = 1
		}
		sum += (p - y) * (p - y)
	}
	return sanitize(sum/float64(len(sample)), 0)
}

// Stale reports whether the model's ECE exceeds the staleness threshold.
func Stale(ece, threshold float64) bool {
	if threshold <= 0 {
		threshold = DefaultStalenessECE
	}
	return ece > threshold
}

// DominantFactors returns factor IDs ordered by attribution magnitude,
// strongest first. Exposed for explainability surfaces.
func DominantFactors(contributions map[string]float64) []string {
	ids := make([]string, 0, len(contributions))
	for id := range contributions {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		ai, aj := math.Abs(contributions[ids[i]]), math.Abs(contributions[ids[j]])
		if ai == aj {
			return ids[i] < ids[j]
		}
		return ai > aj
	})
	return ids
}
