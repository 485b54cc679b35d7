//go:build wireinject
// +build wireinject

package di

import (
	"GridPull/pkg/config"
	"GridPull/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Observability
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideInfluxClient,
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideCacheService,

		// Repositories (with business logic)
		ProvidePredictorStore,
		ProvideMarketStore,
		ProvideWeatherProvider,
		ProvideTickPublisher,
		ProvideTickStore,
		ProvidePriceFeed,

		// Use cases
		ProvideMarketDataUseCase,
		ProvideLoadProfilesUseCase,
		ProvideWeatherDataUseCase,
		ProvidePredictorsUseCase,
		ProvideTickProcessor,
		ProvideTickCollector,

		// Kafka consumer side
		ProvideKafkaConsumer,
		ProvideKafkaTicksHandler,
		ProvideConsumerHook,

		// HTTP
		ProvideHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
