package engine

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"LaneRisk/internal/domain/models"
	domsvc "LaneRisk/internal/domain/service"

	"github.com/google/uuid"
)

// SimilarityWeights splits cluster similarity across its three inputs.
// The topical term is supplied by an external scorer and kept pluggable.
type SimilarityWeights struct {
	FactorMatch    float64
	SourceCooccur  float64
	TopicalOverlap float64
}

// DefaultSimilarityWeights gives factor identity the largest share so that a
// same-factor/same-source repeat reaches the default threshold on its own.
func DefaultSimilarityWeights() SimilarityWeights {
	return SimilarityWeights{FactorMatch: 0.4, SourceCooccur: 0.3, TopicalOverlap: 0.3}
}

// DetectorConfig tunes cluster assignment.
type DetectorConfig struct {
	Threshold     float64       // similarity above which a signal joins a cluster
	Window        time.Duration // clusters inactive longer than this are pruned
	CooccurWindow time.Duration // source-pair co-occurrence window
	Weights       SimilarityWeights
}

// DefaultDetectorConfig returns the stock thresholds.
func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{
		Threshold:     0.7,
		Window:        6 * time.Hour,
		CooccurWindow: 6 * time.Hour,
		Weights:       DefaultSimilarityWeights(),
	}
}

// Detector assigns each incoming signal to exactly one correlation cluster,
// discounting near-duplicate evidence so N overlapping reports do not count
// as N independent confirmations. The cluster window is an immutable slice
// replaced by atomic swap: readers never block, writers serialize on mu.
type Detector struct {
	cfg    DetectorConfig
	scorer domsvc.SimilarityScorer

	mu     sync.Mutex
	window atomic.Pointer[[]models.CorrelationCluster]
}

// NewDetector creates a detector. scorer may be nil; the topical term is then
// treated as zero overlap.
func NewDetector(cfg DetectorConfig, scorer domsvc.SimilarityScorer) *Detector {
	if cfg.Threshold <= 0 {
		cfg.Threshold = 0.7
	}
	if cfg.Window <= 0 {
		cfg.Window = 6 * time.Hour
	}
	if cfg.CooccurWindow <= 0 {
		cfg.CooccurWindow = 6 * time.Hour
	}
	if cfg.Weights == (SimilarityWeights{}) {
		cfg.Weights = DefaultSimilarityWeights()
	}
	d := &Detector{cfg: cfg, scorer: scorer}
	empty := make([]models.CorrelationCluster, 0)
	d.window.Store(&empty)
	return d
}

// Assignment is the outcome of classifying one signal.
type Assignment struct {
	ClusterID      string
	DiscountFactor float64 // multiplies effective strength before the Bayesian update
	MemberCount    int
}

// Classify joins sig to the most similar active cluster, or seeds a new
// singleton. Ties on similarity break toward the most recently active
// cluster, consolidating around fresh evidence.
func (d *Detector) Classify(ctx context.Context, sig models.Signal, at time.Time) Assignment {
	d.mu.Lock()
	defer d.mu.Unlock()

	old := *d.window.Load()
	next := make([]models.CorrelationCluster, 0, len(old)+1)
	for _, c := range old {
		if at.Sub(c.LastActiveAt) <= d.cfg.Window {
			next = append(next, c)
		}
	}

	best := -1
	bestSim := 0.0
	for i := range next {
		sim := d.similarity(ctx, sig, next[i].Representative)
		switch {
		case sim > bestSim:
			best, bestSim = i, sim
		case sim == bestSim && best >= 0 && sim > 0:
			if next[i].LastActiveAt.After(next[best].LastActiveAt) {
				best = i
			}
		}
	}

	var out Assignment
	if best >= 0 && bestSim >= d.cfg.Threshold {
		c := next[best]
		c.MemberIDs = append(append([]string(nil), c.MemberIDs...), sig.ID)
		c.LastActiveAt = at
		c.DiscountFactor = 1 / math.Sqrt(float64(len(c.MemberIDs)))
		next[best] = c
		out = Assignment{ClusterID: c.ClusterID, DiscountFactor: c.DiscountFactor, MemberCount: len(c.MemberIDs)}
	} else {
		c := models.CorrelationCluster{
			ClusterID:      uuid.NewString(),
			MemberIDs:      []string{sig.ID},
			Representative: sig,
			LastActiveAt:   at,
			DiscountFactor: 1.0,
		}
		next = append(next, c)
		out = Assignment{ClusterID: c.ClusterID, DiscountFactor: 1.0, MemberCount: 1}
	}

	d.window.Store(&next)
	return out
}

// Clusters returns the current window snapshot without locking.
func (d *Detector) Clusters() []models.CorrelationCluster {
	return *d.window.Load()
}

func (d *Detector) similarity(ctx context.Context, sig, rep models.Signal) float64 {
	w := d.cfg.Weights
	s := 0.0
	if sig.FactorID == rep.FactorID {
		s += w.FactorMatch
	}
	if sig.Source == rep.Source && absDuration(sig.ObservedAt.Sub(rep.ObservedAt)) <= d.cfg.CooccurWindow {
		s += w.SourceCooccur
	}
	if d.scorer != nil {
		overlap, err := d.scorer.TopicalOverlap(ctx, sig, rep)
		if err == nil {
			s += w.TopicalOverlap * clamp(overlap, 0, 1)
		}
		// scorer failure degrades to zero overlap rather than failing the batch
	}
	return s
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
