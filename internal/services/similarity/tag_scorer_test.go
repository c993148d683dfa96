package similarity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LaneRisk/internal/domain/models"
)

func TestTagScorerDisjointTags(t *testing.T) {
	s := NewTagScorer()
	a := models.Signal{Topic: "port-closure", TopicTags: []string{"sgp", "strike"}}
	b := models.Signal{Topic: "weather", TopicTags: []string{"typhoon", "rtm"}}

	got, err := s.TopicalOverlap(context.Background(), a, b)
	require.NoError(t, err)
	assert.Zero(t, got)
}

func TestTagScorerIdenticalSignals(t *testing.T) {
	s := NewTagScorer()
	a := models.Signal{Topic: "port-closure", TopicTags: []string{"sgp", "strike"}}

	got, err := s.TopicalOverlap(context.Background(), a, a)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, got, 1e-12)
}

func TestTagScorerPartialOverlap(t *testing.T) {
	s := NewTagScorer()
	a := models.Signal{TopicTags: []string{"sgp", "strike", "labor"}}
	b := models.Signal{TopicTags: []string{"sgp", "congestion"}}

	// intersection 1, union 4
	got, err := s.TopicalOverlap(context.Background(), a, b)
	require.NoError(t, err)
	assert.InDelta(t, 0.25, got, 1e-12)
}

func TestTagScorerTopicBonus(t *testing.T) {
	s := NewTagScorer()
	a := models.Signal{Topic: "port-closure", TopicTags: []string{"sgp"}}
	b := models.Signal{Topic: "port-closure", TopicTags: []string{"rtm"}}

	got, err := s.TopicalOverlap(context.Background(), a, b)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, got, 1e-12)
}

func TestTagScorerEmptyTags(t *testing.T) {
	s := NewTagScorer()
	got, err := s.TopicalOverlap(context.Background(), models.Signal{}, models.Signal{})
	require.NoError(t, err)
	assert.Zero(t, got)
}
