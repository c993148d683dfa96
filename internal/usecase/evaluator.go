package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"LaneRisk/internal/domain/models"
	domrepo "LaneRisk/internal/domain/repository"
	"LaneRisk/internal/engine"
	applogger "LaneRisk/pkg/logger"
)

// RiskEvaluator owns the live belief state: per-entity factor posteriors and
// the shared correlation cluster window. Beliefs are copy-on-update; entity
// state is guarded by a per-entity mutex so distinct lanes never contend.
type RiskEvaluator struct {
	registry   *engine.Registry
	detector   *engine.Detector
	metrics    domrepo.Metrics
	logger     *applogger.Logger
	decayFloor float64

	mu       sync.RWMutex
	entities map[string]*entityState
}

type entityState struct {
	mu      sync.Mutex
	beliefs map[string]models.FactorBelief
}

// NewRiskEvaluator creates an evaluator over the given factor registry.
func NewRiskEvaluator(registry *engine.Registry, detector *engine.Detector, metrics domrepo.Metrics, lgr *applogger.Logger, decayFloor float64) *RiskEvaluator {
	if decayFloor <= 0 {
		decayFloor = engine.DefaultDecayFloor
	}
	return &RiskEvaluator{
		registry:   registry,
		detector:   detector,
		metrics:    metrics,
		logger:     lgr,
		decayFloor: decayFloor,
		entities:   make(map[string]*entityState),
	}
}

// Process implements the pipeline's downstream interface.
func (e *RiskEvaluator) Process(ctx context.Context, s *models.Signal) error {
	return e.Ingest(ctx, s)
}

// Ingest admits one signal: validate, decay to now, classify into a
// correlation cluster, and fold the discounted evidence into the factor
// posterior.
func (e *RiskEvaluator) Ingest(ctx context.Context, s *models.Signal) error {
	return e.ingestAt(ctx, s, time.Now().UTC())
}

func (e *RiskEvaluator) ingestAt(ctx context.Context, s *models.Signal, at time.Time) error {
	if err := engine.ValidateSignal(s); err != nil {
		e.metrics.RecordSignalRejected("validation")
		return err
	}
	if _, ok := e.registry.Lookup(s.FactorID); !ok {
		e.metrics.RecordSignalRejected("unknown_factor")
		return fmt.Errorf("%w: %s", engine.ErrUnknownFactor, s.FactorID)
	}

	eff, err := engine.SignalEffectiveStrength(*s, at)
	if err != nil {
		e.metrics.RecordSignalRejected("decay")
		return fmt.Errorf("%w: %v", engine.ErrInvalidSignal, err)
	}

	assignment := e.detector.Classify(ctx, *s, at)

	// Soft expiry: the signal keeps its cluster membership but carries no
	// weight into the posterior.
	if engine.Expired(eff, e.decayFloor) {
		e.metrics.RecordSignalRejected("expired")
		e.logger.Debug("signal expired, clustered without belief update",
			applogger.String("signal", s.ID),
			applogger.String("entity", s.EntityID),
			applogger.String("cluster", assignment.ClusterID))
		return nil
	}

	discounted := eff * assignment.DiscountFactor

	st := e.entity(s.EntityID)
	st.mu.Lock()
	belief, ok := st.beliefs[s.FactorID]
	if !ok {
		belief, err = e.registry.Prior(s.FactorID)
		if err != nil {
			st.mu.Unlock()
			return err
		}
	}
	st.beliefs[s.FactorID] = engine.UpdateBelief(belief, discounted, s.Direction, at)
	st.mu.Unlock()

	e.metrics.RecordSignalAccepted(string(s.Source), s.FactorID)
	e.logger.Debug("signal ingested",
		applogger.String("entity", s.EntityID),
		applogger.String("factor", s.FactorID),
		applogger.String("cluster", assignment.ClusterID),
		applogger.Float64("effective", eff),
		applogger.Float64("discount", assignment.DiscountFactor))
	return nil
}

// Beliefs returns a copy of the entity's factor posteriors. The second
// return is false when the entity has never been seen.
func (e *RiskEvaluator) Beliefs(entityID string) (map[string]models.FactorBelief, bool) {
	e.mu.RLock()
	st, ok := e.entities[entityID]
	e.mu.RUnlock()
	if !ok {
		return nil, false
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	out := make(map[string]models.FactorBelief, len(st.beliefs))
	for k, v := range st.beliefs {
		out[k] = v
	}
	return out, true
}

// Clusters exposes the active correlation window.
func (e *RiskEvaluator) Clusters() []models.CorrelationCluster {
	return e.detector.Clusters()
}

// Registry exposes the factor registry for downstream weighting.
func (e *RiskEvaluator) Registry() *engine.Registry {
	return e.registry
}

func (e *RiskEvaluator) entity(id string) *entityState {
	e.mu.RLock()
	st, ok := e.entities[id]
	e.mu.RUnlock()
	if ok {
		return st
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if st, ok = e.entities[id]; ok {
		return st
	}
	st = &entityState{beliefs: make(map[string]models.FactorBelief)}
	e.entities[id] = st
	return st
}
