package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"GridPull/internal/domain/models"
)

type fakeTickPublisher struct {
	mu      sync.Mutex
	single  []*models.PriceTick
	batches [][]*models.PriceTick
	err     error
}

func (p *fakeTickPublisher) Publish(_ context.Context, t *models.PriceTick) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.single = append(p.single, t)
	return nil
}

func (p *fakeTickPublisher) PublishBatch(_ context.Context, ticks []*models.PriceTick) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.batches = append(p.batches, ticks)
	return nil
}

func (p *fakeTickPublisher) Close() error { return nil }

func (p *fakeTickPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.single)
}

type fakeTickStore struct {
	mu     sync.Mutex
	stored []*models.PriceTick
	err    error
}

func (s *fakeTickStore) Init(context.Context) error { return nil }

func (s *fakeTickStore) Store(_ context.Context, t *models.PriceTick) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.stored = append(s.stored, t)
	return nil
}

func (s *fakeTickStore) StoreBatch(_ context.Context, ticks []*models.PriceTick) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.stored = append(s.stored, ticks...)
	return nil
}

func (s *fakeTickStore) Health(context.Context) error { return nil }
func (s *fakeTickStore) Close() error                 { return nil }

func (s *fakeTickStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.stored)
}

type countingMetrics struct {
	mu   sync.Mutex
	sent map[string]int
	errs map[string]int
	last map[string]float64
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{sent: map[string]int{}, errs: map[string]int{}, last: map[string]float64{}}
}

func (m *countingMetrics) RecordMessageSent(backend, market string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent[backend+"/"+market]++
}

func (m *countingMetrics) RecordError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[kind]++
}

func (m *countingMetrics) RecordLastPrice(market string, price float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.last[market] = price
}

func (m *countingMetrics) RecordLatency(string, float64) {}

func (m *countingMetrics) sentCount(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sent[key]
}

func (m *countingMetrics) lastPrice(market string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last[market]
}

func TestTickProcessorRoutesToKafka(t *testing.T) {
	pub := &fakeTickPublisher{}
	store := &fakeTickStore{}
	m := newCountingMetrics()
	proc := NewTickProcessor(pub, store, m, "kafka", 100, time.Second)

	tick := &models.PriceTick{Market: "APX", Timestamp: 1700000000, Price: 42.5, Volume: 10}
	if err := proc.Process(context.Background(), tick); err != nil {
		t.Fatalf("process: %v", err)
	}
	if pub.count() != 1 || store.count() != 0 {
		t.Fatalf("kafka backend must publish, not store")
	}
	if m.sentCount("kafka/APX") != 1 {
		t.Fatalf("message sent metric missing")
	}
}

func TestTickProcessorRoutesToInflux(t *testing.T) {
	pub := &fakeTickPublisher{}
	store := &fakeTickStore{}
	proc := NewTickProcessor(pub, store, newCountingMetrics(), "influx", 100, time.Second)

	tick := &models.PriceTick{Market: "TTF", Timestamp: 1700000000, Price: 30.1, Volume: 5}
	if err := proc.Process(context.Background(), tick); err != nil {
		t.Fatalf("process: %v", err)
	}
	if store.count() != 1 || pub.count() != 0 {
		t.Fatalf("influx backend must store, not publish")
	}
}

func TestTickProcessorUnknownBackend(t *testing.T) {
	proc := NewTickProcessor(&fakeTickPublisher{}, &fakeTickStore{}, newCountingMetrics(), "rabbitmq", 100, time.Second)

	tick := &models.PriceTick{Market: "APX", Timestamp: 1700000000, Price: 1}
	if err := proc.Process(context.Background(), tick); err == nil {
		t.Fatalf("unknown backend must fail")
	}
	if err := proc.Process(context.Background(), nil); err == nil {
		t.Fatalf("nil tick must fail")
	}
}

func TestTickProcessorBatch(t *testing.T) {
	pub := &fakeTickPublisher{}
	m := newCountingMetrics()
	proc := NewTickProcessor(pub, &fakeTickStore{}, m, "kafka", 100, time.Second)

	ticks := []*models.PriceTick{
		{Market: "APX", Timestamp: 1700000000, Price: 1},
		{Market: "APX", Timestamp: 1700000060, Price: 2},
	}
	if err := proc.ProcessBatch(context.Background(), ticks); err != nil {
		t.Fatalf("batch: %v", err)
	}
	if len(pub.batches) != 1 || len(pub.batches[0]) != 2 {
		t.Fatalf("expected one batch of two")
	}
	if m.sentCount("kafka/APX") != 2 {
		t.Fatalf("every tick in a batch counts as sent")
	}
	if err := proc.ProcessBatch(context.Background(), nil); err != nil {
		t.Fatalf("empty batch is a no-op: %v", err)
	}
}

type fakeFeed struct {
	mu         sync.Mutex
	connected  bool
	reconnects int
	ticks      chan *models.PriceTick
	errs       chan error
}

func newFakeFeed() *fakeFeed {
	return &fakeFeed{ticks: make(chan *models.PriceTick, 16), errs: make(chan error, 1)}
}

func (f *fakeFeed) Connect(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = true
	return nil
}

func (f *fakeFeed) Subscribe(context.Context) error { return nil }

func (f *fakeFeed) Read(context.Context) (<-chan *models.PriceTick, <-chan error) {
	return f.ticks, f.errs
}

func (f *fakeFeed) Reconnect(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reconnects++
	return nil
}

func (f *fakeFeed) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
	return nil
}

func (f *fakeFeed) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeFeed) reconnectCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reconnects
}

func TestTickCollectorConsumesFeed(t *testing.T) {
	feed := newFakeFeed()
	pub := &fakeTickPublisher{}
	m := newCountingMetrics()
	proc := NewTickProcessor(pub, &fakeTickStore{}, m, "kafka", 100, time.Second)
	col := NewTickCollector(feed, proc, m, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := col.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !col.IsConnected() {
		t.Fatalf("collector should report connected")
	}

	feed.ticks <- &models.PriceTick{Market: "APX", Timestamp: 1700000000, Price: 55.5, Volume: 1}
	feed.ticks <- &models.PriceTick{Market: "APX", Timestamp: 1700000060, Price: 56.0, Volume: 2}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if pub.count() == 2 && m.lastPrice("APX") == 56.0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if pub.count() != 2 {
		t.Fatalf("expected 2 published ticks, got %d", pub.count())
	}
	if m.lastPrice("APX") != 56.0 {
		t.Fatalf("last price gauge not updated: %v", m.lastPrice("APX"))
	}
	if err := col.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestTickCollectorReconnectsOnFeedError(t *testing.T) {
	feed := newFakeFeed()
	proc := NewTickProcessor(&fakeTickPublisher{}, &fakeTickStore{}, newCountingMetrics(), "kafka", 100, time.Second)
	col := NewTickCollector(feed, proc, newCountingMetrics(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := col.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	feed.errs <- errors.New("connection reset")

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if feed.reconnectCount() == 1 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("collector did not reconnect after feed error")
}
