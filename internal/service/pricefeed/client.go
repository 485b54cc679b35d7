package pricefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"GridPull/internal/domain/models"
	domrepo "GridPull/internal/domain/repository"
	applogger "GridPull/pkg/logger"
)

// Client implements a PriceFeed backed by an exchange WebSocket stream.
type Client struct {
	apiKey         string
	websocketURL   string
	markets        []string
	reconnectDelay time.Duration
	pingInterval   time.Duration

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool

	logger *applogger.Logger
}

// New creates a new exchange PriceFeed.
func New(apiKey, websocketURL string, markets []string, reconnectDelay, pingInterval time.Duration) *Client {
	if reconnectDelay <= 0 {
		reconnectDelay = 5 * time.Second
	}
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	return &Client{
		apiKey:         apiKey,
		websocketURL:   websocketURL,
		markets:        markets,
		reconnectDelay: reconnectDelay,
		pingInterval:   pingInterval,
	}
}

// SetLogger attaches a structured logger.
func (c *Client) SetLogger(l *applogger.Logger) { c.logger = l }

// Connect establishes the WebSocket connection.
func (c *Client) Connect(ctx context.Context) error {
	u := c.websocketURL
	if c.apiKey != "" {
		u = fmt.Sprintf("%s?token=%s", c.websocketURL, c.apiKey)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return fmt.Errorf("feed connect: %w", err)
	}
	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()
	if c.logger != nil {
		c.logger.Info("feed connected", applogger.String("url", c.websocketURL))
	}
	return nil
}

// Subscribe subscribes to the configured markets.
func (c *Client) Subscribe(ctx context.Context) error {
	c.mu.Lock()
	conn, ok := c.conn, c.connected
	c.mu.Unlock()
	if conn == nil || !ok {
		return fmt.Errorf("feed not connected")
	}
	for _, m := range c.markets {
		msg := map[string]string{"type": "subscribe", "market": m}
		if err := conn.WriteJSON(msg); err != nil {
			return fmt.Errorf("subscribe %s: %w", m, err)
		}
		if c.logger != nil {
			c.logger.Info("feed subscribed", applogger.String("market", m))
		}
	}
	return nil
}

type wsTick struct {
	M string  `json:"m"`
	P float64 `json:"p"`
	V float64 `json:"v"`
	T int64   `json:"t"` // ms
}

type wsMessage struct {
	Type string   `json:"type"`
	Data []wsTick `json:"data"`
}

// Read streams PriceTick events and errors. Both channels close when the
// read loop exits.
func (c *Client) Read(ctx context.Context) (<-chan *models.PriceTick, <-chan error) {
	ticks := make(chan *models.PriceTick, 1024)
	errs := make(chan error, 1)

	// ping loop
	go func() {
		ticker := time.NewTicker(c.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.mu.Lock()
				conn := c.conn
				c.mu.Unlock()
				if conn != nil {
					_ = conn.WriteMessage(websocket.PingMessage, nil)
				}
			}
		}
	}()

	// read loop
	go func() {
		defer close(ticks)
		defer close(errs)
		for {
			select {
			case <-ctx.Done():
				return
			default:
				c.mu.Lock()
				conn := c.conn
				c.mu.Unlock()
				if conn == nil {
					errs <- fmt.Errorf("feed conn nil")
					return
				}
				_, b, err := conn.ReadMessage()
				if err != nil {
					errs <- fmt.Errorf("feed read: %w", err)
					return
				}
				var m wsMessage
				if err := json.Unmarshal(b, &m); err != nil {
					// ignore non-tick frames
					continue
				}
				if m.Type != "tick" {
					continue
				}
				for _, d := range m.Data {
					sec := d.T / 1000
					tick := &models.PriceTick{Market: d.M, Timestamp: sec, Price: d.P, Volume: d.V}
					select {
					case ticks <- tick:
					default:
						// drop on backpressure
					}
				}
			}
		}
	}()

	return ticks, errs
}

// Reconnect closes and reconnects.
func (c *Client) Reconnect(ctx context.Context) error {
	_ = c.Close()
	time.Sleep(c.reconnectDelay)
	if err := c.Connect(ctx); err != nil {
		return err
	}
	return c.Subscribe(ctx)
}

// Close closes the WS connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// IsConnected indicates status.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

var _ domrepo.PriceFeed = (*Client)(nil)
