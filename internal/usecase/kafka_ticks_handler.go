package usecase

import (
	"context"
	"encoding/json"
	"time"

	"GridPull/internal/domain/models"
	domrepo "GridPull/internal/domain/repository"
	pkgkafka "GridPull/pkg/kafka"
)

// KafkaTicksHandler consumes tick messages from Kafka and writes them to storage.
type KafkaTicksHandler struct {
	topic   string
	store   domrepo.TickStore
	metrics domrepo.Metrics
}

func NewKafkaTicksHandler(topic string, store domrepo.TickStore, metrics domrepo.Metrics) *KafkaTicksHandler {
	return &KafkaTicksHandler{topic: topic, store: store, metrics: metrics}
}

func (h *KafkaTicksHandler) Topic() string { return h.topic }

// incoming message schema: {market, t, p, v}
func (h *KafkaTicksHandler) Handle(ctx context.Context, b []byte) error {
	var m struct {
		Market string  `json:"market"`
		T      int64   `json:"t"`
		P      float64 `json:"p"`
		V      float64 `json:"v"`
	}
	if err := json.Unmarshal(b, &m); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return err
	}
	if m.T > 1e11 { // ms
		m.T = m.T / 1000
	}
	// E2E latency from event time to now (approx)
	h.metrics.RecordLatency("ingest_e2e_seconds", time.Since(time.Unix(m.T, 0)).Seconds())

	start := time.Now()
	err := h.store.Store(ctx, &models.PriceTick{
		Market:    m.Market,
		Timestamp: m.T,
		Price:     m.P,
		Volume:    m.V,
	})
	h.metrics.RecordLatency("store_seconds", time.Since(start).Seconds())
	if err != nil {
		h.metrics.RecordError("consumer_store")
		return err
	}
	h.metrics.RecordMessageSent("influx", m.Market)
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaTicksHandler)(nil)
