package service

import (
	"context"

	"LaneRisk/internal/domain/models"
)

// SimilarityScorer supplies the topical-overlap term of cluster similarity.
// The textual model behind it is an external feature extractor; the engine
// treats the score as an opaque input in [0,1].
type SimilarityScorer interface {
	TopicalOverlap(ctx context.Context, a, b models.Signal) (float64, error)
}

// ModelProvider fetches the active calibration model artifact from the
// external recalibration job's store. The engine never writes one back.
type ModelProvider interface {
	Fetch(ctx context.Context) (models.CalibrationModel, error)
}
