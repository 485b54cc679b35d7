package usecase

import (
	"context"

	"GridPull/internal/domain/models"
	domrepo "GridPull/internal/domain/repository"
	mid "GridPull/internal/middleware"
)

// TickCollector collects price ticks from the exchange feed and processes them.
type TickCollector struct {
	feed    domrepo.PriceFeed
	proc    *TickProcessor
	metrics domrepo.Metrics
	pipe    *mid.IngestPipeline
}

// NewTickCollector creates a new TickCollector instance.
func NewTickCollector(feed domrepo.PriceFeed, proc *TickProcessor, metrics domrepo.Metrics, pipe *mid.IngestPipeline) *TickCollector {
	return &TickCollector{feed: feed, proc: proc, metrics: metrics, pipe: pipe}
}

// IsConnected returns true if the exchange feed is connected.
func (c *TickCollector) IsConnected() bool {
	return c.feed.IsConnected()
}

func (c *TickCollector) Start(ctx context.Context) error {
	if err := c.feed.Connect(ctx); err != nil {
		return err
	}
	if err := c.feed.Subscribe(ctx); err != nil {
		return err
	}
	if c.pipe != nil {
		c.pipe.Start(ctx)
	}
	tickCh, errCh := c.feed.Read(ctx)
	go c.consume(ctx, tickCh, errCh)
	return nil
}

func (c *TickCollector) consume(ctx context.Context, tickCh <-chan *models.PriceTick, errCh <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-errCh:
			if err != nil {
				c.metrics.RecordError("feed")
				_ = c.feed.Reconnect(ctx)
			}
		case t := <-tickCh:
			if t == nil {
				continue
			}
			if c.pipe != nil {
				_ = c.pipe.Process(ctx, t)
			} else {
				_ = c.proc.Process(ctx, t)
			}
			c.metrics.RecordLastPrice(t.Market, t.Price)
		}
	}
}

func (c *TickCollector) Stop() error { return c.feed.Close() }

// Processor returns the underlying TickProcessor for lifecycle management.
func (c *TickCollector) Processor() *TickProcessor { return c.proc }

// Shutdown stops the pipeline and closes the feed.
func (c *TickCollector) Shutdown(ctx context.Context) error {
	if c.pipe != nil {
		c.pipe.Stop()
	}
	return c.feed.Close()
}
