package api

import (
	"encoding/json"
	"errors"
	"time"

	models "LaneRisk/internal/domain/models"
	"LaneRisk/internal/engine"
	"LaneRisk/internal/service/cache"
	"LaneRisk/internal/service/ratelimit"
	"LaneRisk/internal/usecase"
	xhttp "LaneRisk/pkg/http"
	xlogger "LaneRisk/pkg/logger"

	"github.com/labstack/echo/v4"
)

// RiskHandler exposes the assessment engine over HTTP.
type RiskHandler struct {
	logger   *xlogger.Logger
	ingest   *usecase.IngestUseCase
	assess   *usecase.AssessUseCase
	calib    *usecase.CalibrationUseCase
	eval     *usecase.RiskEvaluator
	warnings *xlogger.WarningCollector
	limiter  *ratelimit.Limiter
	cache    cache.BytesCache
	cacheTTL time.Duration

	rateCapacity float64
	rateRefill   float64
}

// RiskHandlerOption configures RiskHandler.
type RiskHandlerOption func(*RiskHandler)

// WithWarnings exposes the warning collector buffer at /api/warnings.
func WithWarnings(w *xlogger.WarningCollector) RiskHandlerOption {
	return func(h *RiskHandler) { h.warnings = w }
}

// WithResponseCache caches read-endpoint responses.
func WithResponseCache(c cache.BytesCache, ttl time.Duration) RiskHandlerOption {
	return func(h *RiskHandler) {
		h.cache = c
		if ttl > 0 {
			h.cacheTTL = ttl
		}
	}
}

// WithRateLimit sets the per-client token bucket.
func WithRateLimit(capacity, refillPerSec float64) RiskHandlerOption {
	return func(h *RiskHandler) {
		h.rateCapacity = capacity
		h.rateRefill = refillPerSec
	}
}

// NewRiskHandler creates the API handler.
func NewRiskHandler(
	logger *xlogger.Logger,
	ingest *usecase.IngestUseCase,
	assess *usecase.AssessUseCase,
	calib *usecase.CalibrationUseCase,
	eval *usecase.RiskEvaluator,
	opts ...RiskHandlerOption,
) *RiskHandler {
	h := &RiskHandler{
		logger:       logger,
		ingest:       ingest,
		assess:       assess,
		calib:        calib,
		eval:         eval,
		limiter:      ratelimit.New(),
		cacheTTL:     15 * time.Second,
		rateCapacity: 30,
		rateRefill:   10,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *RiskHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.POST("/assess", h.Assess)
	g.POST("/signals", h.Signals)
	g.GET("/beliefs", h.Beliefs)
	g.GET("/calibration", h.Calibration)
	g.GET("/warnings", h.Warnings)
}

// Assess ingests the submitted signals (if any) and evaluates the entity.
func (h *RiskHandler) Assess(c echo.Context) error {
	if !h.allow(c) {
		return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("rate limit exceeded"))
	}
	req := &models.AssessRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	ctx := c.Request().Context()
	var ingested *models.IngestResult
	if len(req.Signals) > 0 {
		r := h.ingest.IngestBatch(ctx, req.Signals)
		ingested = &r
	}

	at := xhttp.ParseTimeDefault(req.At, time.Time{})
	a, err := h.assess.AssessAt(ctx, req.EntityID, at)
	if err != nil {
		return h.engineError(c, "assess", err)
	}

	return xhttp.SuccessResponse(c, map[string]interface{}{
		"assessment": a,
		"ingested":   ingested,
	})
}

// Signals ingests a batch; rejects are reported per signal, never aborting
// the batch.
func (h *RiskHandler) Signals(c echo.Context) error {
	if !h.allow(c) {
		return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("rate limit exceeded"))
	}
	req := &models.IngestRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res := h.ingest.IngestBatch(c.Request().Context(), req.Signals)
	return xhttp.SuccessResponse(c, res)
}

// Beliefs returns the entity's current factor posteriors.
func (h *RiskHandler) Beliefs(c echo.Context) error {
	req := &models.BeliefsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	key := "beliefs:" + req.EntityID
	if b, ok := h.cached(key); ok {
		return c.JSONBlob(200, b)
	}

	beliefs, ok := h.eval.Beliefs(req.EntityID)
	if !ok {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("entity %s has no belief state", req.EntityID))
	}

	views := make([]models.BeliefView, 0, len(beliefs))
	for _, b := range beliefs {
		views = append(views, models.BeliefView{
			FactorID:    b.FactorID,
			Alpha:       b.Alpha,
			Beta:        b.Beta,
			Mean:        b.Mean(),
			Variance:    b.Variance(),
			SignalCount: b.SignalCount,
			UpdatedAt:   b.LastUpdatedAt,
		})
	}

	h.store(key, views)
	return xhttp.SuccessResponse(c, views)
}

// Calibration reports active model quality. Optional since/limit query
// params scope the labeled-outcome window; custom windows bypass the cache.
func (h *RiskHandler) Calibration(c echo.Context) error {
	since := xhttp.ParseTimeDefault(c.QueryParam("since"), time.Time{})
	limit := xhttp.ParseIntDefault(c.QueryParam("limit"), 0)

	const key = "calibration"
	defaultWindow := since.IsZero() && limit == 0
	if defaultWindow {
		if b, ok := h.cached(key); ok {
			return c.JSONBlob(200, b)
		}
	}

	st, err := h.calib.StatusSince(c.Request().Context(), since, limit)
	if err != nil {
		h.logger.Error("calibration status", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}

	if defaultWindow {
		h.store(key, st)
	}
	return xhttp.SuccessResponse(c, st)
}

// Warnings returns the deduplicated warning buffer.
func (h *RiskHandler) Warnings(c echo.Context) error {
	if h.warnings == nil {
		return xhttp.SuccessResponse(c, []xlogger.Warning{})
	}
	return xhttp.SuccessResponse(c, h.warnings.Snapshot())
}

func (h *RiskHandler) allow(c echo.Context) bool {
	if h.limiter == nil {
		return true
	}
	return h.limiter.Allow(c.RealIP(), h.rateCapacity, h.rateRefill)
}

func (h *RiskHandler) engineError(c echo.Context, op string, err error) error {
	switch {
	case errors.Is(err, engine.ErrEmptyFusion), errors.Is(err, engine.ErrEmptyEnsemble):
		return xhttp.AppErrorResponse(c, xhttp.InsufficientDataError(err.Error()))
	case errors.Is(err, engine.ErrInvalidSignal), errors.Is(err, engine.ErrUnknownFactor):
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()))
	default:
		h.logger.Error(op+" usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
}

// cached reads a pre-serialized response body from the bytes cache.
func (h *RiskHandler) cached(key string) ([]byte, bool) {
	if h.cache == nil {
		return nil, false
	}
	b, ok, err := h.cache.GetBytes(key)
	if err != nil || !ok {
		return nil, false
	}
	return b, true
}

func (h *RiskHandler) store(key string, v interface{}) {
	if h.cache == nil {
		return
	}
	body, err := json.Marshal(xhttp.APIResponse{Status: 200, Message: "OK", Data: v})
	if err != nil {
		return
	}
	if err := h.cache.SetBytes(key, body, h.cacheTTL); err != nil {
		h.logger.Debug("response cache store failed", xlogger.Error(err))
	}
}
