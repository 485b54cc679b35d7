package di

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/segmentio/kafka-go"

	"GridPull/internal/domain/repository"
	"GridPull/internal/handler/api"
	mid "GridPull/internal/middleware"
	internalrepo "GridPull/internal/repository"
	"GridPull/internal/service/pricefeed"
	"GridPull/internal/service/weather"
	"GridPull/internal/usecase"
	"GridPull/pkg/cache"
	pkgch "GridPull/pkg/clickhouse"
	"GridPull/pkg/config"
	pkginflux "GridPull/pkg/influx"
	pkgkafka "GridPull/pkg/kafka"
	applogger "GridPull/pkg/logger"
	"GridPull/pkg/metrics"
	"GridPull/pkg/server"
	"GridPull/pkg/util"
)

// ProvideLogger creates the application logger from the environment.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	lc := &applogger.Config{Level: "info", Format: "console", Output: "stdout"}
	if cfg.Environment == "production" {
		lc.Format = "json"
	} else {
		lc.Level = "debug"
	}
	return applogger.New(lc)
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideInfluxClient creates an InfluxDB client. It pings the server, so a
// wrong URL or token fails here rather than on the first query.
func ProvideInfluxClient(cfg *config.Config) (*pkginflux.Client, error) {
	opts := []pkginflux.ClientOption{
		pkginflux.WithURL(cfg.Influx.URL),
		pkginflux.WithToken(cfg.Influx.Token),
		pkginflux.WithOrg(cfg.Influx.Org),
	}
	if cfg.Influx.QueryTimeout > 0 {
		opts = append(opts, pkginflux.WithRequestTimeout(cfg.Influx.QueryTimeout))
	}
	client, err := pkginflux.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("influx client: %w", err)
	}
	return client, nil
}

// ProvideClickHouseClient creates a ClickHouse client.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	db := chDatabase(cfg)
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(db),
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

	// Initialize schema
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.InitSchema(ctx, []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", db),
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s.market_prices (name String, datetime DateTime, price Float64) ENGINE=MergeTree ORDER BY (name, datetime)", db),
	}); err != nil {
		_ = client.Close() // cannot log here (DI layer no logger); propagate error
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	return client, nil
}

// ProvideCacheService builds the weather cache: layered Redis+memory when
// Redis is configured, in-process memory otherwise.
func ProvideCacheService(cfg *config.Config) (cache.Service, error) {
	if !cfg.Weather.Redis.Enabled {
		return cache.NewMemoryCache(), nil
	}
	host, port := splitHostPort(cfg.Weather.Redis.Addr)
	redisCache, err := cache.NewRedisCache(
		cache.WithRedisHost(host),
		cache.WithRedisPort(port),
		cache.WithRedisPassword(cfg.Weather.Redis.Password),
		cache.WithRedisDB(cfg.Weather.Redis.DB),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return cache.NewLayeredCache(redisCache), nil
}

// ProvidePredictorStore creates the InfluxDB predictor repository.
func ProvidePredictorStore(cl *pkginflux.Client, cfg *config.Config, l *applogger.Logger) repository.PredictorStore {
	store := internalrepo.NewInfluxPredictorStore(cl,
		bucketOr(cfg.Influx.Buckets.ForecastLatest, "forecast_latest"),
		bucketOr(cfg.Influx.Buckets.Realised, "realised"),
	)
	store.SetLogger(l)
	return store
}

// ProvideMarketStore creates the ClickHouse gas price repository.
func ProvideMarketStore(ch *pkgch.Client, cfg *config.Config, l *applogger.Logger) repository.MarketStore {
	store := internalrepo.NewClickHouseMarketStore(ch.DB(), chDatabase(cfg)+".market_prices")
	store.SetLogger(l)
	return store
}

// ProvideWeatherProvider creates the weather observation client.
func ProvideWeatherProvider(cl *pkginflux.Client, svc cache.Service, cfg *config.Config, l *applogger.Logger) repository.WeatherProvider {
	opts := []weather.Option{
		weather.WithSources(cfg.WeatherSource(), cfg.Weather.BackupSource),
	}
	if svc != nil {
		opts = append(opts, weather.WithCache(svc, cfg.Weather.CacheTTL))
	}
	client := weather.NewClient(cl, bucketOr(cfg.Influx.Buckets.Weather, "weather"), opts...)
	client.SetLogger(l)
	return client
}

// ProvideKafkaProducer creates a Kafka producer, or nil when no brokers are
// configured.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if len(cfg.Kafka.Brokers) == 0 {
		return nil, nil
	}
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

// ProvideTickPublisher creates the Kafka tick publisher, or nil without a
// producer.
func ProvideTickPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.TickPublisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaTickPublisher(producer, cfg.Kafka.Topic)
}

// ProvideTickStore creates InfluxDB tick storage on the realised bucket.
func ProvideTickStore(cl *pkginflux.Client, cfg *config.Config) repository.TickStore {
	return internalrepo.NewInfluxTickStore(cl, bucketOr(cfg.Influx.Buckets.Realised, "realised"))
}

// ProvideKafkaConsumer creates a Kafka consumer when the kafka backend is
// active, nil otherwise.
func ProvideKafkaConsumer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	if cfg.Backend.Type != "kafka" || len(cfg.Kafka.Brokers) == 0 {
		return nil, nil
	}
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
	consumer.SetLogger(l)
	return consumer, nil
}

// ProvideKafkaTicksHandler registers the handler for the ticks topic.
func ProvideKafkaTicksHandler(store repository.TickStore, m repository.Metrics, cfg *config.Config) *usecase.KafkaTicksHandler {
	return usecase.NewKafkaTicksHandler(cfg.Kafka.Topic, store, m)
}

// ProvideConsumerHook builds the hook chain the consumer runs every message
// through: trace propagation first, error logging second.
func ProvideConsumerHook(l *applogger.Logger) pkgkafka.ConsumerHook {
	trace := pkgkafka.HookFuncs{
		Before: func(ctx context.Context, _ string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
			ctx = pkgkafka.WithStartTime(ctx, time.Now())
			ctx = pkgkafka.WithTraceID(ctx, pkgkafka.ExtractTraceID(km))
			return ctx, km, data, nil
		},
	}
	logging := pkgkafka.HookFuncs{
		Err: func(ctx context.Context, topic string, km kafka.Message, _ []byte, err error) {
			traceID, _ := ctx.Value(pkgkafka.CtxTraceID).(string)
			l.Error("kafka message failed",
				applogger.String("topic", topic),
				applogger.String("trace_id", traceID),
				applogger.Int64("offset", km.Offset),
				applogger.Error(err),
			)
		},
	}
	return pkgkafka.NewHookChain(trace, logging)
}

// ProvidePriceFeed creates the exchange WebSocket feed, or nil when disabled.
func ProvidePriceFeed(cfg *config.Config, l *applogger.Logger) repository.PriceFeed {
	if !cfg.Feed.Enabled {
		return nil
	}
	feed := pricefeed.New(
		cfg.Feed.APIKey,
		cfg.Feed.WebSocketURL,
		cfg.Feed.Markets,
		cfg.Feed.ReconnectDelay,
		cfg.Feed.PingInterval,
	)
	feed.SetLogger(l)
	return feed
}

// ProvideTickProcessor creates the tick processor use case.
func ProvideTickProcessor(
	pub repository.TickPublisher,
	store repository.TickStore,
	m repository.Metrics,
	cfg *config.Config,
) *usecase.TickProcessor {
	return usecase.NewTickProcessor(
		pub,
		store,
		m,
		cfg.Backend.Type,
		cfg.Backend.BatchSize,
		cfg.Backend.BatchTimeout,
	)
}

// ProvideTickCollector creates the tick collector use case, or nil when the
// feed is disabled.
func ProvideTickCollector(
	feed repository.PriceFeed,
	processor *usecase.TickProcessor,
	m repository.Metrics,
) *usecase.TickCollector {
	if feed == nil {
		return nil
	}
	// Build the middleware pipeline between the WebSocket feed and the backend
	pipe := mid.NewIngestPipeline(processor, m,
		mid.WithMaxRPS(50),
		mid.WithBufferSize(2000),
	)
	return usecase.NewTickCollector(feed, processor, m, pipe)
}

// ProvideMarketDataUseCase creates the market data use case.
func ProvideMarketDataUseCase(store repository.PredictorStore, market repository.MarketStore) *usecase.MarketDataUseCase {
	return usecase.NewMarketDataUseCase(store, market)
}

// ProvideLoadProfilesUseCase creates the load profile use case.
func ProvideLoadProfilesUseCase(store repository.PredictorStore) *usecase.LoadProfilesUseCase {
	return usecase.NewLoadProfilesUseCase(store)
}

// ProvideWeatherDataUseCase creates the weather data use case.
func ProvideWeatherDataUseCase(provider repository.WeatherProvider, cfg *config.Config) *usecase.WeatherDataUseCase {
	return usecase.NewWeatherDataUseCase(provider, cfg.Weather.Params, cfg.WeatherCadence())
}

// ProvidePredictorsUseCase creates the predictor aggregation use case.
func ProvidePredictorsUseCase(
	market *usecase.MarketDataUseCase,
	load *usecase.LoadProfilesUseCase,
	wuc *usecase.WeatherDataUseCase,
	m repository.Metrics,
) *usecase.PredictorsUseCase {
	return usecase.NewPredictorsUseCase(market, load, wuc, m)
}

// ProvideHandler creates the predictors HTTP handler.
func ProvideHandler(l *applogger.Logger, predictors *usecase.PredictorsUseCase, market *usecase.MarketDataUseCase) *api.PredictorsEchoHandler {
	return api.NewPredictorsEchoHandler(l, predictors, market)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	producer *pkgkafka.Producer,
	collector *usecase.TickCollector,
	processor *usecase.TickProcessor,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaTicksHandler,
	hook pkgkafka.ConsumerHook,
	handler *api.PredictorsEchoHandler,
	influxClient *pkginflux.Client,
	chClient *pkgch.Client,
) *server.App {
	// Ship aggregated warn/error logs to Kafka when a logs topic is configured
	if producer != nil && cfg.Kafka.LogsTopic != "" {
		l.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   30 * time.Second,
			CountThreshold: 100,
			Topic:          cfg.Kafka.LogsTopic,
			Publisher:      producer,
		})
	}

	var mh pkgkafka.MessageHandler
	if consumer != nil && kh != nil {
		consumer.WithConsumerHook(hook)
		mh = kh
	}

	app := server.New(cfg, l, collector, consumer, mh, influxClient, chClient)
	app.SetHTTPHandler(handler)
	// attach tick processor to app for closing publisher/storage on shutdown
	app.TickProc = processor
	return app
}

func chDatabase(cfg *config.Config) string {
	if cfg.ClickHouse.Database != "" {
		return cfg.ClickHouse.Database
	}
	return "gridpull"
}

func bucketOr(name, def string) string {
	if name != "" {
		return name
	}
	return def
}

func splitHostPort(addr string) (string, int) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		if addr == "" {
			return "localhost", 6379
		}
		return addr, 6379
	}
	return host, util.ParseIntDefault(portStr, 6379)
}
