package repository

import (
	"context"

	"GridPull/internal/domain/models"
)

type PriceFeed interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.PriceTick, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

type TickPublisher interface {
	Publish(ctx context.Context, t *models.PriceTick) error
	PublishBatch(ctx context.Context, ticks []*models.PriceTick) error
	Close() error
}

type TickStore interface {
	Init(ctx context.Context) error // health checks, bucket presence
	Store(ctx context.Context, t *models.PriceTick) error
	StoreBatch(ctx context.Context, ticks []*models.PriceTick) error
	Health(ctx context.Context) error // ping
	Close() error
}

type Metrics interface {
	RecordMessageSent(backend, market string)
	RecordError(kind string)
	RecordLastPrice(market string, price float64)
	RecordLatency(op string, seconds float64)
}
