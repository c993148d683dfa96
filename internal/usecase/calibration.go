package usecase

import (
	"context"
	"time"

	"LaneRisk/internal/domain/models"
	domrepo "LaneRisk/internal/domain/repository"
	domsvc "LaneRisk/internal/domain/service"
	"LaneRisk/internal/engine"
	applogger "LaneRisk/pkg/logger"
)

// CalibrationUseCase reports the active model's quality. When recent labeled
// outcomes are available it re-evaluates ECE and Brier against them instead
// of trusting the numbers baked into the artifact.
type CalibrationUseCase struct {
	model        domsvc.ModelProvider
	store        domrepo.AssessmentStore
	logger       *applogger.Logger
	stalenessECE float64
	lookback     time.Duration
	sampleLimit  int
}

func NewCalibrationUseCase(model domsvc.ModelProvider, store domrepo.AssessmentStore, lgr *applogger.Logger, stalenessECE float64) *CalibrationUseCase {
	if stalenessECE <= 0 {
		stalenessECE = engine.DefaultStalenessECE
	}
	return &CalibrationUseCase{
		model:        model,
		store:        store,
		logger:       lgr,
		stalenessECE: stalenessECE,
		lookback:     30 * 24 * time.Hour,
		sampleLimit:  5000,
	}
}

// Status returns the active model plus its measured quality over the default
// lookback window.
func (uc *CalibrationUseCase) Status(ctx context.Context) (models.CalibrationStatus, error) {
	return uc.StatusSince(ctx, time.Now().Add(-uc.lookback), uc.sampleLimit)
}

// StatusSince is Status with an explicit outcome window. Zero since and
// non-positive limit fall back to the defaults.
func (uc *CalibrationUseCase) StatusSince(ctx context.Context, since time.Time, limit int) (models.CalibrationStatus, error) {
	m, err := uc.model.Fetch(ctx)
	if err != nil {
		return models.CalibrationStatus{}, err
	}

	if since.IsZero() {
		since = time.Now().Add(-uc.lookback)
	}
	if limit <= 0 {
		limit = uc.sampleLimit
	}

	st := models.CalibrationStatus{
		A:          m.A,
		B:          m.B,
		ECE:        m.ECE,
		BrierScore: m.BrierScore,
		FittedAt:   m.FittedAt,
		SampleSize: m.SampleSize,
	}

	if uc.store != nil {
		sample, err := uc.store.LabeledOutcomes(ctx, since, limit)
		if err != nil {
			uc.logger.Warn("labeled outcomes unavailable, reporting artifact quality", applogger.Error(err))
		} else if len(sample) > 0 {
			st.ECE = engine.ECE(m, sample)
			st.BrierScore = engine.Brier(m, sample)
			st.SampleSize = len(sample)
			st.Measured = true
		}
	}

	st.Stale = engine.Stale(st.ECE, uc.stalenessECE)
	return st, nil
}
