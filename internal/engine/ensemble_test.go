package engine

import (
	"testing"

	"LaneRisk/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregateEmpty(t *testing.T) {
	_, err := Aggregate(nil, 0.15)
	require.ErrorIs(t, err, ErrEmptyEnsemble)
}

func TestAggregateSplitEstimates(t *testing.T) {
	res, err := Aggregate([]models.EnsembleEstimate{
		{Estimator: "full", RawScore: 0.2, Confidence: 1},
		{Estimator: "recent", RawScore: 0.8, Confidence: 1},
	}, 0.15)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, res.CombinedScore, 1e-12)
	assert.InDelta(t, 0.3, res.Disagreement, 1e-12)
	assert.True(t, res.HighDisagreement)
}

func TestAggregateUnanimous(t *testing.T) {
	res, err := Aggregate([]models.EnsembleEstimate{
		{RawScore: 0.5, Confidence: 1},
		{RawScore: 0.5, Confidence: 1},
	}, 0.15)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, res.CombinedScore, 1e-12)
	assert.Zero(t, res.Disagreement)
	assert.False(t, res.HighDisagreement)
}

func TestAggregateSingleEstimate(t *testing.T) {
	res, err := Aggregate([]models.EnsembleEstimate{{RawScore: 0.73, Confidence: 0.4}}, 0.15)
	require.NoError(t, err)
	assert.InDelta(t, 0.73, res.CombinedScore, 1e-12)
	assert.Zero(t, res.Disagreement)
	assert.False(t, res.HighDisagreement)
}

func TestAggregateConfidenceWeighting(t *testing.T) {
	res, err := Aggregate([]models.EnsembleEstimate{
		{RawScore: 0.9, Confidence: 3},
		{RawScore: 0.1, Confidence: 1},
	}, 0.15)
	require.NoError(t, err)
	assert.InDelta(t, 0.7, res.CombinedScore, 1e-12)
}

func TestAggregateZeroConfidenceFallsBackToEqual(t *testing.T) {
	res, err := Aggregate([]models.EnsembleEstimate{
		{RawScore: 0.2},
		{RawScore: 0.6},
	}, 0.15)
	require.NoError(t, err)
	assert.InDelta(t, 0.4, res.CombinedScore, 1e-12)
}

func TestAggregateClampsWildScores(t *testing.T) {
	res, err := Aggregate([]models.EnsembleEstimate{
		{RawScore: 1.7, Confidence: 1},
		{RawScore: -0.4, Confidence: 1},
	}, 0.15)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, res.CombinedScore, 0.0)
	assert.LessOrEqual(t, res.CombinedScore, 1.0)
}
