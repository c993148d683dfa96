package usecase

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"LaneRisk/internal/domain/models"
	domrepo "LaneRisk/internal/domain/repository"
	domsvc "LaneRisk/internal/domain/service"
	"LaneRisk/internal/engine"
	applogger "LaneRisk/pkg/logger"
	"LaneRisk/pkg/queue"
)

const (
	estimatorRecency = "recency-weighted"
	estimatorTrimmed = "robust-trimmed"
)

// AssessConfig tunes the assessment pipeline.
type AssessConfig struct {
	DisagreementThreshold float64
	StalenessECE          float64
	RecencyHalfLife       time.Duration
	Timeout               time.Duration
	RecalibrateEvery      time.Duration
}

// AssessUseCase turns an entity's belief state into a decision-ready
// assessment: two estimator pipelines run concurrently, the ensemble
// aggregator combines them, and Platt calibration maps the combined raw
// score to a probability.
type AssessUseCase struct {
	eval    *RiskEvaluator
	model   domsvc.ModelProvider
	pub     domrepo.Publisher
	store   domrepo.AssessmentStore
	metrics domrepo.Metrics
	logger  *applogger.Logger
	jobs    queue.QueueService

	cfg             AssessConfig
	lastRecalibrate atomic.Int64
}

// NewAssessUseCase wires the assessment pipeline. pub, store, and jobs may
// be nil; persistence and recalibration enqueueing are then skipped.
func NewAssessUseCase(
	eval *RiskEvaluator,
	model domsvc.ModelProvider,
	pub domrepo.Publisher,
	store domrepo.AssessmentStore,
	metrics domrepo.Metrics,
	lgr *applogger.Logger,
	jobs queue.QueueService,
	cfg AssessConfig,
) *AssessUseCase {
	if cfg.DisagreementThreshold <= 0 {
		cfg.DisagreementThreshold = engine.DefaultDisagreementThreshold
	}
	if cfg.StalenessECE <= 0 {
		cfg.StalenessECE = engine.DefaultStalenessECE
	}
	if cfg.RecencyHalfLife <= 0 {
		cfg.RecencyHalfLife = 12 * time.Hour
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RecalibrateEvery <= 0 {
		cfg.RecalibrateEvery = 15 * time.Minute
	}
	return &AssessUseCase{
		eval:    eval,
		model:   model,
		pub:     pub,
		store:   store,
		metrics: metrics,
		logger:  lgr,
		jobs:    jobs,
		cfg:     cfg,
	}
}

// Assess evaluates one entity from its current belief state, as of now.
func (uc *AssessUseCase) Assess(ctx context.Context, entityID string) (*models.RiskAssessment, error) {
	return uc.AssessAt(ctx, entityID, time.Now().UTC())
}

// AssessAt evaluates at an explicit instant: decay and recency weighting are
// computed relative to it. A zero instant means now.
func (uc *AssessUseCase) AssessAt(ctx context.Context, entityID string, at time.Time) (*models.RiskAssessment, error) {
	if entityID == "" {
		return nil, fmt.Errorf("entity required")
	}

	ctx, cancel := context.WithTimeout(ctx, uc.cfg.Timeout)
	defer cancel()

	start := time.Now()
	if at.IsZero() {
		at = start.UTC()
	}
	at = at.UTC()

	beliefs, ok := uc.eval.Beliefs(entityID)
	if !ok || len(beliefs) == 0 {
		return nil, fmt.Errorf("%w: entity %s", engine.ErrEmptyFusion, entityID)
	}

	type item struct {
		name string
		est  models.EnsembleEstimate
		fr   models.FusionResult
		err  error
	}
	ch := make(chan item, 2)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		est, fr, err := uc.estimateRecency(entityID, beliefs, at)
		ch <- item{estimatorRecency, est, fr, err}
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		est, fr, err := uc.estimateTrimmed(entityID, beliefs, at)
		ch <- item{estimatorTrimmed, est, fr, err}
	}()
	go func() { wg.Wait(); close(ch) }()

	estimates := make([]models.EnsembleEstimate, 0, 2)
	var contributions map[string]float64
	for it := range ch {
		if it.err != nil {
			uc.metrics.RecordError("estimator_" + it.name)
			uc.logger.Warn("estimator failed",
				applogger.String("estimator", it.name),
				applogger.String("entity", entityID),
				applogger.Error(it.err))
			continue
		}
		estimates = append(estimates, it.est)
		if it.name == estimatorRecency || contributions == nil {
			contributions = it.fr.FactorContributions
		}
	}

	res, err := engine.Aggregate(estimates, uc.cfg.DisagreementThreshold)
	if err != nil {
		return nil, err
	}

	model, err := uc.model.Fetch(ctx)
	if err != nil {
		uc.logger.Warn("model fetch failed, using identity calibration", applogger.Error(err))
		model = models.CalibrationModel{A: 1, B: 0}
	}

	calibrated := engine.Calibrate(res.CombinedScore, model)
	interval := engine.Interval(calibrated, beliefs, contributions, res.HighDisagreement)

	a := &models.RiskAssessment{
		EntityID:              entityID,
		RawScore:              res.CombinedScore,
		CalibratedProbability: calibrated,
		Interval:              interval,
		FactorContributions:   contributions,
		DominantFactors:       engine.DominantFactors(contributions),
		HighDisagreement:      res.HighDisagreement,
		Disagreement:          res.Disagreement,
		EvaluatedAt:           at,
	}

	uc.metrics.RecordRiskScore(entityID, calibrated)
	uc.metrics.RecordLatency("assess", time.Since(start).Seconds())
	if res.HighDisagreement {
		uc.logger.Warn("estimator disagreement above threshold",
			applogger.String("entity", entityID),
			applogger.Float64("disagreement", res.Disagreement))
	}

	uc.persist(a)
	if engine.Stale(model.ECE, uc.cfg.StalenessECE) {
		uc.maybeEnqueueRecalibration(model)
	}
	return a, nil
}

func (uc *AssessUseCase) estimateRecency(entityID string, beliefs map[string]models.FactorBelief, at time.Time) (models.EnsembleEstimate, models.FusionResult, error) {
	base := uc.eval.Registry().Weights()
	weights := make(map[string]float64, len(beliefs))
	for f, b := range beliefs {
		w := base[f]
		if w <= 0 {
			w = 1
		}
		if age := at.Sub(b.LastUpdatedAt); age > 0 {
			mult := math.Exp2(-age.Hours() / uc.cfg.RecencyHalfLife.Hours())
			if mult < 0.1 {
				mult = 0.1
			}
			w *= mult
		}
		weights[f] = w
	}

	fr, err := engine.Fuse(entityID, beliefs, weights, at)
	if err != nil {
		return models.EnsembleEstimate{}, models.FusionResult{}, err
	}
	n := evidenceCount(beliefs)
	return models.EnsembleEstimate{
		Estimator:  estimatorRecency,
		RawScore:   fr.RawScore,
		Confidence: float64(n) / float64(n+2),
	}, fr, nil
}

// estimateTrimmed drops the single most extreme factor before fusing, so one
// runaway posterior cannot dominate the ensemble. With fewer than three
// evidenced factors nothing is trimmed.
func (uc *AssessUseCase) estimateTrimmed(entityID string, beliefs map[string]models.FactorBelief, at time.Time) (models.EnsembleEstimate, models.FusionResult, error) {
	trimmed := beliefs
	if evidencedFactors(beliefs) >= 3 {
		drop := ""
		extreme := -1.0
		for f, b := range beliefs {
			if b.SignalCount == 0 {
				continue
			}
			if d := math.Abs(b.Mean() - 0.5); d > extreme {
				extreme = d
				drop = f
			}
		}
		trimmed = make(map[string]models.FactorBelief, len(beliefs)-1)
		for f, b := range beliefs {
			if f != drop {
				trimmed[f] = b
			}
		}
	}

	fr, err := engine.Fuse(entityID, trimmed, uc.eval.Registry().Weights(), at)
	if err != nil {
		return models.EnsembleEstimate{}, models.FusionResult{}, err
	}
	n := evidenceCount(trimmed)
	return models.EnsembleEstimate{
		Estimator:  estimatorTrimmed,
		RawScore:   fr.RawScore,
		Confidence: float64(n) / float64(n+4),
	}, fr, nil
}

func (uc *AssessUseCase) persist(a *models.RiskAssessment) {
	if uc.pub == nil && uc.store == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if uc.pub != nil {
			if err := uc.pub.Publish(ctx, a); err != nil {
				uc.metrics.RecordError("assessment_publish")
				uc.logger.Error("publish assessment",
					applogger.String("entity", a.EntityID),
					applogger.Error(err))
			}
		}
		if uc.store != nil {
			if err := uc.store.Store(ctx, a); err != nil {
				uc.metrics.RecordError("assessment_store")
				uc.logger.Error("store assessment",
					applogger.String("entity", a.EntityID),
					applogger.Error(err))
			}
		}
	}()
}

func (uc *AssessUseCase) maybeEnqueueRecalibration(m models.CalibrationModel) {
	if uc.jobs == nil {
		return
	}
	now := time.Now().UnixNano()
	last := uc.lastRecalibrate.Load()
	if now-last < int64(uc.cfg.RecalibrateEvery) {
		return
	}
	if !uc.lastRecalibrate.CompareAndSwap(last, now) {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		payload := map[string]interface{}{
			"reason":       "stale_ece",
			"ece":          m.ECE,
			"fitted_at":    m.FittedAt,
			"requested_at": time.Now().UTC(),
		}
		if err := uc.jobs.PublishMessage(ctx, "calibration.recalibrate", payload); err != nil {
			uc.metrics.RecordError("recalibrate_enqueue")
			uc.logger.Warn("enqueue recalibration", applogger.Error(err))
			return
		}
		uc.logger.Info("recalibration requested",
			applogger.Float64("ece", m.ECE),
			applogger.Float64("threshold", uc.cfg.StalenessECE))
	}()
}

func evidenceCount(beliefs map[string]models.FactorBelief) int {
	n := 0
	for _, b := range beliefs {
		n += b.SignalCount
	}
	return n
}

func evidencedFactors(beliefs map[string]models.FactorBelief) int {
	n := 0
	for _, b := range beliefs {
		if b.SignalCount > 0 {
			n++
		}
	}
	return n
}
