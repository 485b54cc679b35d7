package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"GridPull/internal/usecase"
	pkgch "GridPull/pkg/clickhouse"
	"GridPull/pkg/config"
	xhttp "GridPull/pkg/http"
	pkginflux "GridPull/pkg/influx"
	pkgkafka "GridPull/pkg/kafka"
	applogger "GridPull/pkg/logger"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg          *config.Config
	logger       *applogger.Logger
	collector    *usecase.TickCollector
	consumer     *pkgkafka.Consumer
	kh           pkgkafka.MessageHandler
	influxClient *pkginflux.Client
	chClient     *pkgch.Client
	httpServer   *xhttp.Server
	httpHandler  xhttp.Handler
	TickProc     *usecase.TickProcessor
}

// New creates a new App instance with all dependencies. The collector,
// consumer, and handler may be nil when the ingest side is disabled.
func New(
	cfg *config.Config,
	logger *applogger.Logger,
	collector *usecase.TickCollector,
	consumer *pkgkafka.Consumer,
	kh pkgkafka.MessageHandler,
	influxClient *pkginflux.Client,
	chClient *pkgch.Client,
) *App {
	return &App{
		cfg:          cfg,
		logger:       logger,
		collector:    collector,
		consumer:     consumer,
		kh:           kh,
		influxClient: influxClient,
		chClient:     chClient,
	}
}

// SetHTTPHandler allows DI to inject an HTTP handler.
func (a *App) SetHTTPHandler(h xhttp.Handler) { a.httpHandler = h }

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := a.logger
	if l == nil {
		l, _ = applogger.New(&applogger.Config{Level: "info", Format: "console", Output: "stdout"})
		a.logger = l
	}

	a.httpServer = xhttp.NewServer(a.httpHandler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithLogger(l),
	)

	// Start the exchange feed collector when enabled
	if a.collector != nil {
		go func() {
			if err := a.collector.Start(ctx); err != nil {
				l.Error("collector error", applogger.Error(err))
			}
		}()
		l.Info("collector started", applogger.Strings("markets", a.cfg.Feed.Markets))
	}

	// Start consumer if configured
	if a.consumer != nil && a.kh != nil {
		a.consumer.RegisterHandler(a.kh)
		go func() {
			if err := a.consumer.Start(); err != nil {
				l.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		l.Info("kafka consumer started", applogger.String("topic", a.kh.Topic()))
	}

	// Start HTTP server
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

	// Stop collector (pipeline + feed)
	if a.collector != nil {
		if err := a.collector.Shutdown(ctx); err != nil {
			l.Warn("collector stop error", applogger.Error(err))
		}
	}

	// Shutdown HTTP server
	timeout := a.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		l.Error("http shutdown error", applogger.Error(err))
	}

	// Stop consumer before closing the stores it writes to
	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			l.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	// Close tick processor resources (publisher/storage)
	if a.TickProc != nil {
		a.TickProc.Close()
	}

	// Close infrastructure clients
	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			l.Warn("clickhouse close error", applogger.Error(err))
		}
	}
	if a.influxClient != nil {
		a.influxClient.Close()
	}

	l.Info("shutdown complete")
	return nil
}
