//go:build wireinject
// +build wireinject

package di

import (
	"LaneRisk/pkg/config"
	"LaneRisk/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,
		ProvideRedisClient,

		// Repositories
		ProvideAssessmentStore,
		ProvideAssessmentPublisher,
		ProvideAISStream,

		// Engine
		ProvideSimilarityScorer,
		ProvideRegistry,
		ProvideDetector,
		ProvideModelCache,
		ProvideJobQueue,

		// Use cases
		ProvideEvaluator,
		ProvidePipeline,
		ProvideSignalCollector,
		ProvideKafkaSignalsHandler,
		ProvideIngestUseCase,
		ProvideAssessUseCase,
		ProvideCalibrationUseCase,

		// HTTP
		ProvideResponseCache,
		ProvideWarningCollector,
		ProvideRiskHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
