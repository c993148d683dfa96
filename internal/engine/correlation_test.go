package engine

import (
	"context"
	"math"
	"testing"
	"time"

	"LaneRisk/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

func newsSignal(id string, at time.Time) models.Signal {
	return models.Signal{
		ID:            id,
		EntityID:      "lane-sgp-rtm",
		Source:        models.SourceNews,
		FactorID:      "port-congestion",
		Strength:      0.6,
		Direction:     models.DirectionIncrease,
		ObservedAt:    at,
		DecayHalfLife: 12 * time.Hour,
	}
}

func TestClassifySeedsSingleton(t *testing.T) {
	d := NewDetector(DefaultDetectorConfig(), nil)
	a := d.Classify(context.Background(), newsSignal("s1", t0), t0)
	assert.NotEmpty(t, a.ClusterID)
	assert.Equal(t, 1.0, a.DiscountFactor)
	assert.Equal(t, 1, a.MemberCount)
	assert.Len(t, d.Clusters(), 1)
}

func TestClassifyJoinsNearDuplicate(t *testing.T) {
	d := NewDetector(DefaultDetectorConfig(), nil)
	ctx := context.Background()

	first := d.Classify(ctx, newsSignal("s1", t0), t0)
	second := d.Classify(ctx, newsSignal("s2", t0.Add(time.Hour)), t0.Add(time.Hour))

	require.Equal(t, first.ClusterID, second.ClusterID)
	assert.InDelta(t, 1/math.Sqrt(2), second.DiscountFactor, 1e-12)
	assert.Equal(t, 2, second.MemberCount)
	assert.Len(t, d.Clusters(), 1)
}

func TestClassifyDiscountShrinksWithMembers(t *testing.T) {
	d := NewDetector(DefaultDetectorConfig(), nil)
	ctx := context.Background()

	prev := 1.1
	for i := 0; i < 5; i++ {
		at := t0.Add(time.Duration(i) * time.Minute)
		a := d.Classify(ctx, newsSignal(string(rune('a'+i)), at), at)
		assert.Less(t, a.DiscountFactor, prev)
		prev = a.DiscountFactor
	}
	assert.InDelta(t, 1/math.Sqrt(5), prev, 1e-12)
}

func TestClassifyDifferentFactorStaysApart(t *testing.T) {
	d := NewDetector(DefaultDetectorConfig(), nil)
	ctx := context.Background()

	a := d.Classify(ctx, newsSignal("s1", t0), t0)

	ais := newsSignal("s2", t0.Add(time.Hour))
	ais.Source = models.SourceAIS
	ais.FactorID = "route-deviation"
	b := d.Classify(ctx, ais, t0.Add(time.Hour))

	assert.NotEqual(t, a.ClusterID, b.ClusterID)
	assert.Equal(t, 1.0, b.DiscountFactor)
	assert.Len(t, d.Clusters(), 2)
}

func TestDetectorDefaults(t *testing.T) {
	cfg := DefaultDetectorConfig()
	assert.Equal(t, 0.7, cfg.Threshold)
	assert.Equal(t, 6*time.Hour, cfg.Window)
	assert.Equal(t, 6*time.Hour, cfg.CooccurWindow)
}

func TestClassifyOutsideCooccurrenceWindow(t *testing.T) {
	// same factor+source but 8h apart: factor boost alone (0.4) stays under
	// 0.7. Window is widened so the first cluster is still alive and the
	// separation comes from the co-occurrence term, not pruning.
	cfg := DefaultDetectorConfig()
	cfg.Window = 24 * time.Hour
	d := NewDetector(cfg, nil)
	ctx := context.Background()

	a := d.Classify(ctx, newsSignal("s1", t0), t0)
	late := t0.Add(8 * time.Hour)
	b := d.Classify(ctx, newsSignal("s2", late), late)

	assert.NotEqual(t, a.ClusterID, b.ClusterID)
}

func TestClassifyPrunesStaleClusters(t *testing.T) {
	cfg := DefaultDetectorConfig()
	cfg.Window = 6 * time.Hour
	d := NewDetector(cfg, nil)
	ctx := context.Background()

	d.Classify(ctx, newsSignal("s1", t0), t0)
	require.Len(t, d.Clusters(), 1)

	// first cluster aged out; the newcomer seeds fresh
	late := t0.Add(10 * time.Hour)
	d.Classify(ctx, newsSignal("s2", late), late)
	assert.Len(t, d.Clusters(), 1)
}

type fixedScorer struct{ v float64 }

func (f fixedScorer) TopicalOverlap(_ context.Context, _, _ models.Signal) (float64, error) {
	return f.v, nil
}

func TestClassifyTopicalOverlapBridgesFactors(t *testing.T) {
	// different factor, same source within window (0.3) + full topical
	// overlap (0.3) = 0.6: still under threshold without factor match
	d := NewDetector(DefaultDetectorConfig(), fixedScorer{v: 1})
	ctx := context.Background()

	d.Classify(ctx, newsSignal("s1", t0), t0)

	other := newsSignal("s2", t0.Add(time.Hour))
	other.FactorID = "strike-action"
	b := d.Classify(ctx, other, t0.Add(time.Hour))
	assert.Equal(t, 1.0, b.DiscountFactor, "0.6 similarity must not join at 0.7 threshold")

	// with factor match restored the topical term pushes well past threshold
	dup := newsSignal("s3", t0.Add(2*time.Hour))
	c := d.Classify(ctx, dup, t0.Add(2*time.Hour))
	assert.Equal(t, 2, c.MemberCount)
}

// topicScorer returns fixed overlap per unordered topic pair.
type topicScorer struct{ pairs map[string]float64 }

func (s topicScorer) TopicalOverlap(_ context.Context, a, b models.Signal) (float64, error) {
	if v, ok := s.pairs[a.Topic+"|"+b.Topic]; ok {
		return v, nil
	}
	return s.pairs[b.Topic+"|"+a.Topic], nil
}

func TestClassifyTieBreakPrefersRecent(t *testing.T) {
	cfg := DefaultDetectorConfig()
	cfg.Threshold = 0.3 // topical overlap alone can join
	scorer := topicScorer{pairs: map[string]float64{
		"newcomer|red":  1,
		"newcomer|blue": 1,
	}}
	d := NewDetector(cfg, scorer)
	ctx := context.Background()

	// two seeds that share nothing with each other, each fully overlapping
	// the newcomer topically: identical similarity from its point of view
	a := newsSignal("s1", t0)
	a.FactorID = "strike-action"
	a.Source = models.SourceRateIndex
	a.Topic = "red"
	first := d.Classify(ctx, a, t0)

	b := newsSignal("s2", t0.Add(time.Hour))
	b.FactorID = "weather-closure"
	b.Source = models.SourcePredictionMarket
	b.Topic = "blue"
	second := d.Classify(ctx, b, t0.Add(time.Hour))
	require.NotEqual(t, first.ClusterID, second.ClusterID)

	newcomer := newsSignal("s3", t0.Add(2*time.Hour))
	newcomer.FactorID = "customs-delay"
	newcomer.Source = models.SourceOther
	newcomer.Topic = "newcomer"
	got := d.Classify(ctx, newcomer, t0.Add(2*time.Hour))
	assert.Equal(t, second.ClusterID, got.ClusterID, "tie must consolidate around the fresher cluster")
}
