package similarity

import (
	"context"

	"LaneRisk/internal/domain/models"
	domsvc "LaneRisk/internal/domain/service"
)

// TagScorer scores topical overlap locally via Jaccard similarity over the
// signals' correlation tags, with an exact-topic bonus. Used when no external
// similarity service is configured.
type TagScorer struct{}

// NewTagScorer returns a local scorer.
func NewTagScorer() *TagScorer { return &TagScorer{} }

// TopicalOverlap implements service.SimilarityScorer.
func (TagScorer) TopicalOverlap(_ context.Context, a, b models.Signal) (float64, error) {
	score := jaccard(a.TopicTags, b.TopicTags)
	if a.Topic != "" && a.Topic == b.Topic {
		score = score*0.5 + 0.5
	}
	return score, nil
}

func jaccard(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(a))
	for _, t := range a {
		set[t] = struct{}{}
	}
	inter := 0
	union := len(set)
	seen := make(map[string]struct{}, len(b))
	for _, t := range b {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := set[t]; ok {
			inter++
		} else {
			union++
		}
	}
	return float64(inter) / float64(union)
}

var _ domsvc.SimilarityScorer = (*TagScorer)(nil)
