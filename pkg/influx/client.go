package influx

import (
	"context"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
)

// Client manages an InfluxDB connection.
type Client struct {
	client influxdb2.Client
	org    string
}

// NewClient creates an InfluxDB client and verifies connectivity.
func NewClient(opts ...ClientOption) (*Client, error) {
	cfg := &ClientConfig{
		RequestTimeout: 30 * time.Second,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.URL == "" {
		return nil, fmt.Errorf("url is required")
	}

	options := influxdb2.DefaultOptions().
		SetHTTPRequestTimeout(uint(cfg.RequestTimeout / time.Second))
	cl := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, options)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := cl.Ping(ctx); err != nil {
		cl.Close()
		return nil, fmt.Errorf("influx ping: %w", err)
	}

	return &Client{client: cl, org: cfg.Org}, nil
}

// QueryAPI returns the Flux query API for the configured org.
func (c *Client) QueryAPI() api.QueryAPI {
	return c.client.QueryAPI(c.org)
}

// WriteAPI returns a blocking write API bound to one bucket.
func (c *Client) WriteAPI(bucket string) api.WriteAPIBlocking {
	return c.client.WriteAPIBlocking(c.org, bucket)
}

// Health performs health check.
func (c *Client) Health(ctx context.Context) error {
	ok, err := c.client.Ping(ctx)
	if err != nil {
		return fmt.Errorf("influx ping: %w", err)
	}
	if !ok {
		return fmt.Errorf("influx ping: server not ready")
	}
	return nil
}

// Close shuts down idle connections.
func (c *Client) Close() {
	c.client.Close()
}
