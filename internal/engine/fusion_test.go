package engine

import (
	"math"
	"testing"
	"time"

	"LaneRisk/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func belief(id string, alpha, beta float64, n int) models.FactorBelief {
	return models.FactorBelief{FactorID: id, Alpha: alpha, Beta: beta, SignalCount: n}
}

func TestFuseEmptyEvidence(t *testing.T) {
	beliefs := map[string]models.FactorBelief{
		"port-congestion": belief("port-congestion", 1, 1, 0),
		"route-deviation": belief("route-deviation", 1, 1, 0),
	}
	_, err := Fuse("lane-1", beliefs, map[string]float64{}, time.Now())
	require.ErrorIs(t, err, ErrEmptyFusion)
}

func TestFuseSingleFactorEqualsMean(t *testing.T) {
	beliefs := map[string]models.FactorBelief{
		"port-congestion": belief("port-congestion", 3, 1, 4),
	}
	res, err := Fuse("lane-1", beliefs, map[string]float64{"port-congestion": 1}, time.Now())
	require.NoError(t, err)
	assert.InDelta(t, 0.75, res.RawScore, 1e-9, "single normalized factor reproduces its mean")
}

func TestFuseSingleExtremeFactorCapped(t *testing.T) {
	// logit(0.99) ~ 4.6 exceeds the single-factor attribution budget; the
	// guard rescales to 1, so the fused score lands at sigmoid(1), not 0.99.
	beliefs := map[string]models.FactorBelief{
		"port-congestion": belief("port-congestion", 99, 1, 10),
	}
	res, err := Fuse("lane-1", beliefs, map[string]float64{"port-congestion": 1}, time.Now())
	require.NoError(t, err)
	assert.InDelta(t, sigmoid(1), res.RawScore, 1e-9)
	assert.Less(t, res.RawScore, 0.99)

	sum := 0.0
	for _, c := range res.FactorContributions {
		sum += c
	}
	assert.InDelta(t, res.RawScore, sigmoid(sum), 1e-9, "cap keeps the attribution round trip")
}

func TestFuseScoreInRange(t *testing.T) {
	beliefs := map[string]models.FactorBelief{
		"a": belief("a", 500, 1, 50),
		"b": belief("b", 1, 500, 50),
		"c": belief("c", 2, 2, 3),
	}
	res, err := Fuse("lane-1", beliefs, map[string]float64{"a": 2, "b": 1, "c": 1}, time.Now())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, res.RawScore, 0.0)
	assert.LessOrEqual(t, res.RawScore, 1.0)
	assert.False(t, math.IsNaN(res.RawScore))
}

func TestFuseRoundTrip(t *testing.T) {
	// raw score must reconstruct from the contribution sum (attribution law)
	beliefs := map[string]models.FactorBelief{
		"a": belief("a", 4, 2, 5),
		"b": belief("b", 1, 3, 2),
		"c": belief("c", 6, 1, 7),
	}
	weights := map[string]float64{"a": 1, "b": 2, "c": 0.5}
	res, err := Fuse("lane-1", beliefs, weights, time.Now())
	require.NoError(t, err)

	sum := 0.0
	for _, c := range res.FactorContributions {
		sum += c
	}
	assert.InDelta(t, res.RawScore, sigmoid(sum), 1e-9)
}

func TestFuseAttributionBounded(t *testing.T) {
	// extreme posteriors: total |attribution| stays within the factor count
	beliefs := map[string]models.FactorBelief{
		"a": belief("a", 1e6, 1, 100),
		"b": belief("b", 1, 1e6, 100),
	}
	res, err := Fuse("lane-1", beliefs, map[string]float64{"a": 1, "b": 1}, time.Now())
	require.NoError(t, err)

	absSum := 0.0
	for _, c := range res.FactorContributions {
		absSum += math.Abs(c)
	}
	assert.LessOrEqual(t, absSum, float64(len(res.FactorContributions))+1e-9)
	// round-trip still holds after the runaway guard
	sum := 0.0
	for _, c := range res.FactorContributions {
		sum += c
	}
	assert.InDelta(t, res.RawScore, sigmoid(sum), 1e-9)
}

func TestFuseIgnoresUnevidencedFactors(t *testing.T) {
	beliefs := map[string]models.FactorBelief{
		"hot":  belief("hot", 5, 1, 6),
		"cold": belief("cold", 1, 1, 0), // untouched prior
	}
	res, err := Fuse("lane-1", beliefs, map[string]float64{"hot": 1, "cold": 1}, time.Now())
	require.NoError(t, err)
	assert.Contains(t, res.FactorContributions, "hot")
	assert.NotContains(t, res.FactorContributions, "cold")
}

func TestFuseOpposingFactorsCancel(t *testing.T) {
	beliefs := map[string]models.FactorBelief{
		"up":   belief("up", 3, 1, 2),
		"down": belief("down", 1, 3, 2),
	}
	res, err := Fuse("lane-1", beliefs, map[string]float64{"up": 1, "down": 1}, time.Now())
	require.NoError(t, err)
	assert.InDelta(t, 0.5, res.RawScore, 1e-9)
}
