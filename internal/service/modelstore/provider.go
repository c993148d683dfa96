package modelstore

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"LaneRisk/internal/domain/models"
	domsvc "LaneRisk/internal/domain/service"
	svcmetrics "LaneRisk/internal/service/metrics"
	"LaneRisk/pkg/config"
	xhttp "LaneRisk/pkg/http"
	applogger "LaneRisk/pkg/logger"
)

// HTTPProvider fetches the active calibration model artifact from the
// external recalibration service. Models are read-only from this side.
type HTTPProvider struct {
	baseURL string
	client  *xhttp.Client
}

// NewHTTPProvider builds a provider from config.
func NewHTTPProvider(cfg *config.Config) *HTTPProvider {
	timeout := cfg.ModelStore.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	svcmetrics.Register()
	return &HTTPProvider{
		baseURL: cfg.ModelStore.URL,
		client:  xhttp.NewClient(xhttp.WithTimeout(timeout)),
	}
}

// Fetch implements service.ModelProvider.
func (p *HTTPProvider) Fetch(ctx context.Context) (models.CalibrationModel, error) {
	if p.client == nil || p.baseURL == "" {
		return models.CalibrationModel{}, fmt.Errorf("modelstore http client not initialized")
	}
	start := time.Now()
	defer func() {
		svcmetrics.AdapterLatency.WithLabelValues("modelstore_fetch").Observe(time.Since(start).Seconds())
	}()
	var m models.CalibrationModel
	err := p.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    p.baseURL + "/v1/model",
	}, &m)
	if err != nil {
		svcmetrics.AdapterErrors.WithLabelValues("modelstore_fetch").Inc()
		return models.CalibrationModel{}, fmt.Errorf("get /v1/model: %w", err)
	}
	return m, nil
}

var _ domsvc.ModelProvider = (*HTTPProvider)(nil)

// Cached wraps a ModelProvider, keeping the last good model and swapping it
// atomically on refresh. Callers read the model without blocking on the
// network; readers never observe a torn model.
type Cached struct {
	inner  domsvc.ModelProvider
	logger *applogger.Logger
	model  atomic.Pointer[models.CalibrationModel]

	refreshEvery time.Duration
	cancel       context.CancelFunc
}

// DefaultModel is the identity mapping, used until the first fetch succeeds.
func DefaultModel() models.CalibrationModel {
	return models.CalibrationModel{A: 1, B: 0, FittedAt: time.Time{}}
}

// NewCached wraps inner with an atomic cache seeded with the identity model.
func NewCached(inner domsvc.ModelProvider, lgr *applogger.Logger, refreshEvery time.Duration) *Cached {
	c := &Cached{inner: inner, logger: lgr, refreshEvery: refreshEvery}
	seed := DefaultModel()
	c.model.Store(&seed)
	return c
}

// Fetch returns the cached model. Never errors once seeded.
func (c *Cached) Fetch(_ context.Context) (models.CalibrationModel, error) {
	return *c.model.Load(), nil
}

// Active returns the current model without an error path.
func (c *Cached) Active() models.CalibrationModel {
	return *c.model.Load()
}

// Refresh fetches from the inner provider and swaps on success.
func (c *Cached) Refresh(ctx context.Context) error {
	m, err := c.inner.Fetch(ctx)
	if err != nil {
		return err
	}
	c.model.Store(&m)
	c.logger.Info("calibration model refreshed",
		applogger.Float64("a", m.A),
		applogger.Float64("b", m.B),
		applogger.Float64("ece", m.ECE),
		applogger.Int("sample_size", m.SampleSize))
	return nil
}

// Start begins periodic refresh until Stop or ctx cancellation.
func (c *Cached) Start(ctx context.Context) {
	if c.refreshEvery <= 0 {
		return
	}
	ctx, c.cancel = context.WithCancel(ctx)
	go func() {
		ticker := time.NewTicker(c.refreshEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := c.Refresh(ctx); err != nil {
					c.logger.Warn("model refresh failed", applogger.Error(err))
				}
			}
		}
	}()
}

// Stop halts periodic refresh.
func (c *Cached) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
}

var _ domsvc.ModelProvider = (*Cached)(nil)
