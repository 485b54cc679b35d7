package usecase

import (
	"context"
	"fmt"
	"time"

	"GridPull/internal/domain/models"
	domrepo "GridPull/internal/domain/repository"
)

// TickProcessor routes price ticks to the configured backend.
type TickProcessor struct {
	pub     domrepo.TickPublisher
	store   domrepo.TickStore
	metrics domrepo.Metrics
	backend string
	batchSz int
	batchTO time.Duration
}

// NewTickProcessor creates a new TickProcessor instance.
func NewTickProcessor(
	pub domrepo.TickPublisher,
	store domrepo.TickStore,
	metrics domrepo.Metrics,
	backend string,
	batchSz int,
	batchTO time.Duration,
) *TickProcessor {
	return &TickProcessor{
		pub:     pub,
		store:   store,
		metrics: metrics,
		backend: backend,
		batchSz: batchSz,
		batchTO: batchTO,
	}
}

// Process processes a single tick and routes it to the configured backend.
func (p *TickProcessor) Process(ctx context.Context, t *models.PriceTick) error {
	if t == nil {
		return fmt.Errorf("tick is nil")
	}

	start := time.Now()
	var err error

	switch p.backend {
	case "kafka":
		err = p.pub.Publish(ctx, t)
	case "influx":
		err = p.store.Store(ctx, t)
	default:
		err = fmt.Errorf("unknown backend: %s", p.backend)
	}

	if err != nil {
		p.metrics.RecordError("process")
		return fmt.Errorf("process tick: %w", err)
	}

	p.metrics.RecordMessageSent(p.backend, t.Market)
	p.metrics.RecordLatency("process", time.Since(start).Seconds())

	return nil
}

// ProcessBatch processes multiple ticks in a batch.
func (p *TickProcessor) ProcessBatch(ctx context.Context, ticks []*models.PriceTick) error {
	if len(ticks) == 0 {
		return nil
	}

	start := time.Now()
	var err error

	switch p.backend {
	case "kafka":
		err = p.pub.PublishBatch(ctx, ticks)
	case "influx":
		err = p.store.StoreBatch(ctx, ticks)
	default:
		err = fmt.Errorf("unknown backend: %s", p.backend)
	}

	if err != nil {
		p.metrics.RecordError("process_batch")
		return fmt.Errorf("process batch: %w", err)
	}

	for _, t := range ticks {
		p.metrics.RecordMessageSent(p.backend, t.Market)
	}
	p.metrics.RecordLatency("process_batch", time.Since(start).Seconds())

	return nil
}

// Close closes underlying resources if available.
func (p *TickProcessor) Close() {
	if p.pub != nil {
		_ = p.pub.Close()
	}
	if p.store != nil {
		_ = p.store.Close()
	}
}
