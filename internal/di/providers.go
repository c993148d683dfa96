package di

import (
	"context"
	"fmt"
	"time"

	domrepo "LaneRisk/internal/domain/repository"
	domsvc "LaneRisk/internal/domain/service"
	"LaneRisk/internal/engine"
	"LaneRisk/internal/handler/api"
	mid "LaneRisk/internal/middleware"
	internalrepo "LaneRisk/internal/repository"
	"LaneRisk/internal/service/aisfeed"
	icache "LaneRisk/internal/service/cache"
	"LaneRisk/internal/service/modelstore"
	"LaneRisk/internal/services/similarity"
	"LaneRisk/internal/usecase"
	pkgch "LaneRisk/pkg/clickhouse"
	"LaneRisk/pkg/config"
	pkgkafka "LaneRisk/pkg/kafka"
	applogger "LaneRisk/pkg/logger"
	"LaneRisk/pkg/metrics"
	"LaneRisk/pkg/queue"
	"LaneRisk/pkg/server"

	"github.com/redis/go-redis/v9"
)

// ProvideLogger creates the application logger. Production environments log
// JSON; everything else gets the console writer.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	format := "console"
	level := "debug"
	if cfg.Environment == "production" {
		format = "json"
		level = "info"
	}
	return applogger.New(&applogger.Config{Level: level, Format: format, Output: "stdout"})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() domrepo.Metrics {
	return metrics.New()
}

// ProvideClickHouseClient creates a ClickHouse client and ensures the
// database exists. Table schemas are owned by the assessment store.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.InitSchema(ctx, []string{
		"CREATE DATABASE IF NOT EXISTS " + cfg.ClickHouse.Database,
	}); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

// ProvideKafkaProducer creates a Kafka producer.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideKafkaConsumer creates the signals-topic consumer.
func ProvideKafkaConsumer(cfg *config.Config) (*pkgkafka.Consumer, error) {
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideAssessmentStore creates the ClickHouse assessment store and its
// tables.
func ProvideAssessmentStore(chClient *pkgch.Client, lgr *applogger.Logger, cfg *config.Config) (domrepo.AssessmentStore, error) {
	store := internalrepo.NewCHAssessmentStore(chClient,
		cfg.ClickHouse.Database+".risk_assessments",
		cfg.ClickHouse.Database+".labeled_outcomes")
	if chs, ok := store.(interface{ SetLogger(*applogger.Logger) }); ok {
		chs.SetLogger(lgr)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("assessment store init: %w", err)
	}
	return store, nil
}

// ProvideAssessmentPublisher creates the Kafka assessment publisher.
func ProvideAssessmentPublisher(producer *pkgkafka.Producer, cfg *config.Config) domrepo.Publisher {
	return internalrepo.NewKafkaPublisher(producer, cfg.Kafka.AssessmentTopic)
}

// ProvideAISStream creates the AIS anomaly WebSocket stream.
func ProvideAISStream(cfg *config.Config) domrepo.SignalStream {
	return aisfeed.New(
		cfg.AISFeed.APIKey,
		cfg.AISFeed.WebSocketURL,
		cfg.AISFeed.Lanes,
		cfg.AISFeed.ReconnectDelay,
		cfg.AISFeed.PingInterval,
		cfg.Engine.DefaultHalfLife,
	)
}

// ProvideSimilarityScorer picks the external embedding service when
// configured, falling back to local tag comparison.
func ProvideSimilarityScorer(cfg *config.Config) domsvc.SimilarityScorer {
	if cfg.Similarity.ServiceURL != "" {
		return similarity.NewHTTPTopicalScorer(cfg)
	}
	return similarity.NewTagScorer()
}

// ProvideRegistry builds the factor registry from config.
func ProvideRegistry(cfg *config.Config) *engine.Registry {
	defs := make([]engine.FactorDef, 0, len(cfg.Engine.Factors))
	for _, f := range cfg.Engine.Factors {
		defs = append(defs, engine.FactorDef{
			ID:         f.ID,
			Weight:     f.Weight,
			PriorAlpha: f.PriorAlpha,
			PriorBeta:  f.PriorBeta,
		})
	}
	return engine.NewRegistry(defs)
}

// ProvideDetector builds the correlation detector from config.
func ProvideDetector(cfg *config.Config, scorer domsvc.SimilarityScorer) *engine.Detector {
	dc := engine.DetectorConfig{
		Threshold:     cfg.Engine.CorrelationThreshold,
		Window:        cfg.Engine.CorrelationWindow,
		CooccurWindow: cfg.Engine.CooccurrenceWindow,
		Weights: engine.SimilarityWeights{
			FactorMatch:    cfg.Engine.Similarity.FactorMatch,
			SourceCooccur:  cfg.Engine.Similarity.SourceCooccur,
			TopicalOverlap: cfg.Engine.Similarity.TopicalOverlap,
		},
	}
	return engine.NewDetector(dc, scorer)
}

// ProvideRedisClient returns nil when Redis is disabled.
func ProvideRedisClient(cfg *config.Config) *redis.Client {
	if !cfg.Redis.Enabled {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

// ProvideJobQueue creates the Redis job queue with the model-refresh
// consumer registered. Nil when Redis is disabled.
func ProvideJobQueue(lgr *applogger.Logger, client *redis.Client, modelCache *modelstore.Cached, cfg *config.Config) *queue.RedisQueue {
	if client == nil {
		return nil
	}
	opts := []queue.RedisQueueOption{}
	if cfg.Redis.QueueKeyPrefix != "" {
		opts = append(opts, queue.WithKeyPrefix(cfg.Redis.QueueKeyPrefix))
	}
	q := queue.NewRedisQueue(lgr, &queue.QueueConfig{
		Workers:    1,
		RetryLimit: 3,
		RetryDelay: 10 * time.Second,
	}, client, queue.ModeProducerConsumer, opts...)
	q.RegisterJob(usecase.NewModelRefreshJob(modelCache))
	return q
}

// ProvideModelCache builds the cached calibration model provider.
func ProvideModelCache(cfg *config.Config, lgr *applogger.Logger) *modelstore.Cached {
	inner := modelstore.NewHTTPProvider(cfg)
	return modelstore.NewCached(inner, lgr, cfg.ModelStore.RefreshInterval)
}

// ProvideEvaluator creates the risk evaluator.
func ProvideEvaluator(registry *engine.Registry, detector *engine.Detector, m domrepo.Metrics, lgr *applogger.Logger, cfg *config.Config) *usecase.RiskEvaluator {
	return usecase.NewRiskEvaluator(registry, detector, m, lgr, cfg.Engine.DecayFloor)
}

// ProvidePipeline creates the ingestion pipeline in front of the evaluator.
func ProvidePipeline(eval *usecase.RiskEvaluator, m domrepo.Metrics) *mid.SignalPipeline {
	return mid.NewSignalPipeline(eval, m,
		mid.WithMaxRPS(50),
		mid.WithBufferSize(2000),
	)
}

// ProvideSignalCollector creates the AIS stream collector.
func ProvideSignalCollector(stream domrepo.SignalStream, eval *usecase.RiskEvaluator, m domrepo.Metrics, pipe *mid.SignalPipeline) *usecase.SignalCollector {
	return usecase.NewSignalCollector(stream, eval, m, pipe)
}

// ProvideKafkaSignalsHandler registers the handler for the signals topic.
func ProvideKafkaSignalsHandler(pipe *mid.SignalPipeline, m domrepo.Metrics, cfg *config.Config) *usecase.KafkaSignalsHandler {
	return usecase.NewKafkaSignalsHandler(cfg.Kafka.SignalsTopic, pipe, m, cfg.Engine.DefaultHalfLife)
}

// ProvideIngestUseCase creates the batch ingest use case.
func ProvideIngestUseCase(eval *usecase.RiskEvaluator, cfg *config.Config) *usecase.IngestUseCase {
	return usecase.NewIngestUseCase(eval, cfg.Engine.DefaultHalfLife)
}

// ProvideAssessUseCase wires the full assessment pipeline.
func ProvideAssessUseCase(
	eval *usecase.RiskEvaluator,
	modelCache *modelstore.Cached,
	pub domrepo.Publisher,
	store domrepo.AssessmentStore,
	m domrepo.Metrics,
	lgr *applogger.Logger,
	jobs *queue.RedisQueue,
	cfg *config.Config,
) *usecase.AssessUseCase {
	var q queue.QueueService
	if jobs != nil {
		q = jobs
	}
	return usecase.NewAssessUseCase(eval, modelCache, pub, store, m, lgr, q, usecase.AssessConfig{
		DisagreementThreshold: cfg.Engine.DisagreementThreshold,
		StalenessECE:          cfg.Engine.StalenessECE,
		RecencyHalfLife:       cfg.Engine.DefaultHalfLife,
	})
}

// ProvideCalibrationUseCase creates the calibration status use case.
func ProvideCalibrationUseCase(modelCache *modelstore.Cached, store domrepo.AssessmentStore, lgr *applogger.Logger, cfg *config.Config) *usecase.CalibrationUseCase {
	return usecase.NewCalibrationUseCase(modelCache, store, lgr, cfg.Engine.StalenessECE)
}

// ProvideResponseCache picks Redis when enabled, in-memory TTL otherwise.
func ProvideResponseCache(client *redis.Client, cfg *config.Config) icache.BytesCache {
	if client != nil {
		return icache.NewRedisCache(icache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	return icache.NewTTLCache()
}

// ProvideWarningCollector attaches the dedup warning buffer to the logger.
// When the job queue is available, overflowing warnings are published to it.
func ProvideWarningCollector(lgr *applogger.Logger, jobs *queue.RedisQueue) *applogger.WarningCollector {
	cc := &applogger.CollectionConfig{
		TimeInterval:   5 * time.Minute,
		CountThreshold: 100,
		MessageType:    "system.warnings",
	}
	if jobs != nil {
		cc.Publisher = jobs
	}
	return lgr.AddCollector(cc)
}

// ProvideRiskHandler creates the HTTP API handler.
func ProvideRiskHandler(
	lgr *applogger.Logger,
	ingest *usecase.IngestUseCase,
	assess *usecase.AssessUseCase,
	calib *usecase.CalibrationUseCase,
	eval *usecase.RiskEvaluator,
	warnings *applogger.WarningCollector,
	respCache icache.BytesCache,
	cfg *config.Config,
) *api.RiskHandler {
	ttl := cfg.Redis.CacheTTL.Beliefs
	if ttl <= 0 {
		ttl = 15 * time.Second
	}
	return api.NewRiskHandler(lgr, ingest, assess, calib, eval,
		api.WithWarnings(warnings),
		api.WithResponseCache(respCache, ttl),
	)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	lgr *applogger.Logger,
	collector *usecase.SignalCollector,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaSignalsHandler,
	handler *api.RiskHandler,
	chClient *pkgch.Client,
	pub domrepo.Publisher,
	modelCache *modelstore.Cached,
	jobs *queue.RedisQueue,
) *server.App {
	if consumer != nil {
		consumer.WithConsumerHook(pkgkafka.NoopHook{})
	}
	app := server.New(cfg, lgr, collector, consumer, kh, chClient, pub, modelCache, jobs)
	app.SetHTTPHandler(handler)
	return app
}
