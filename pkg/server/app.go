package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	domrepo "LaneRisk/internal/domain/repository"
	"LaneRisk/internal/service/modelstore"
	"LaneRisk/internal/usecase"
	pkgch "LaneRisk/pkg/clickhouse"
	"LaneRisk/pkg/config"
	xhttp "LaneRisk/pkg/http"
	httpmid "LaneRisk/pkg/http/middleware"
	pkgkafka "LaneRisk/pkg/kafka"
	applogger "LaneRisk/pkg/logger"
	"LaneRisk/pkg/queue"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg         *config.Config
	logger      *applogger.Logger
	collector   *usecase.SignalCollector
	consumer    *pkgkafka.Consumer
	kh          pkgkafka.MessageHandler
	chClient    *pkgch.Client
	publisher   domrepo.Publisher
	modelCache  *modelstore.Cached
	jobs        *queue.RedisQueue
	httpServer  *xhttp.Server
	httpHandler xhttp.Handler
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	lgr *applogger.Logger,
	collector *usecase.SignalCollector,
	consumer *pkgkafka.Consumer,
	kh pkgkafka.MessageHandler,
	chClient *pkgch.Client,
	publisher domrepo.Publisher,
	modelCache *modelstore.Cached,
	jobs *queue.RedisQueue,
) *App {
	return &App{
		cfg:        cfg,
		logger:     lgr,
		collector:  collector,
		consumer:   consumer,
		kh:         kh,
		chClient:   chClient,
		publisher:  publisher,
		modelCache: modelCache,
		jobs:       jobs,
	}
}

// SetHTTPHandler allows DI to inject an HTTP handler.
func (a *App) SetHTTPHandler(h xhttp.Handler) { a.httpHandler = h }

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := a.logger

	// Fetch the calibration model before serving; identity model until then.
	if a.modelCache != nil {
		if err := a.modelCache.Refresh(ctx); err != nil {
			l.Warn("initial model fetch failed, starting with identity calibration",
				applogger.Error(err))
		}
		a.modelCache.Start(ctx)
	}

	if a.jobs != nil {
		if err := a.jobs.Start(); err != nil {
			l.Warn("job queue start failed", applogger.Error(err))
		}
	}

	serverOpts := []xhttp.ServerOption{
		xhttp.WithHost(a.cfg.Server.Host),
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	}
	if a.cfg.Metrics.Enabled {
		serverOpts = append(serverOpts, xhttp.WithMetrics(httpmid.Metrics(l, time.Second)))
	}
	a.httpServer = xhttp.NewServer(a.httpHandler, serverOpts...)

	// Start AIS collector when a feed is configured
	if a.collector != nil && a.cfg.AISFeed.WebSocketURL != "" {
		go func() {
			if err := a.collector.Start(ctx); err != nil {
				l.Error("collector error", applogger.Error(err))
			}
		}()
		l.Info("ais collector started", applogger.Strings("lanes", a.cfg.AISFeed.Lanes))
	}

	// Start signals consumer if configured
	if a.consumer != nil && a.kh != nil {
		a.consumer.RegisterHandler(a.kh)
		go func() {
			if err := a.consumer.Start(); err != nil {
				l.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		l.Info("kafka consumer started", applogger.String("topic", a.kh.Topic()))
	}

	if err := a.httpServer.Start(); err != nil {
		l.Error("http server start error", applogger.Error(err))
		return err
	}
	l.Info("http server started", applogger.Int("port", a.cfg.Server.Port))

	// Wait for interrupt
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	l.Info("shutdown signal received")
	return a.shutdown(ctx)
}

// shutdown gracefully stops all services.
func (a *App) shutdown(ctx context.Context) error {
	l := a.logger

	if a.collector != nil {
		if err := a.collector.Shutdown(ctx); err != nil {
			l.Warn("collector stop error", applogger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		l.Error("http shutdown error", applogger.Error(err))
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			l.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	if a.modelCache != nil {
		a.modelCache.Stop()
	}

	if a.jobs != nil {
		if err := a.jobs.Stop(shutdownCtx); err != nil {
			l.Warn("job queue stop error", applogger.Error(err))
		}
	}

	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			l.Warn("publisher close error", applogger.Error(err))
		}
	}

	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			l.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	l.Info("shutdown complete")
	return nil
}
