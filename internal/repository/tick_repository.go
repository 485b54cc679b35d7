package repository

import (
	"context"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"GridPull/internal/domain/models"
	"GridPull/internal/domain/repository"
	pkginflux "GridPull/pkg/influx"
	pkgkafka "GridPull/pkg/kafka"
)

// InfluxTickStore implements TickStore for InfluxDB. Ticks land in the same
// measurement the read side queries.
type InfluxTickStore struct {
	client *pkginflux.Client
	w      api.WriteAPIBlocking
}

// NewInfluxTickStore creates InfluxDB tick storage bound to one bucket.
func NewInfluxTickStore(cl *pkginflux.Client, bucket string) repository.TickStore {
	return &InfluxTickStore{client: cl, w: cl.WriteAPI(bucket)}
}

func (s *InfluxTickStore) Init(ctx context.Context) error {
	return s.client.Health(ctx)
}

func (s *InfluxTickStore) Store(ctx context.Context, t *models.PriceTick) error {
	return s.w.WritePoint(ctx, tickPoint(t))
}

func (s *InfluxTickStore) StoreBatch(ctx context.Context, ticks []*models.PriceTick) error {
	if len(ticks) == 0 {
		return nil
	}
	points := make([]*write.Point, 0, len(ticks))
	for _, t := range ticks {
		if t == nil || t.Market == "" || t.Timestamp == 0 {
			continue
		}
		points = append(points, tickPoint(t))
	}
	if len(points) == 0 {
		return nil
	}
	return s.w.WritePoint(ctx, points...)
}

func (s *InfluxTickStore) Health(ctx context.Context) error {
	return s.client.Health(ctx)
}

func (s *InfluxTickStore) Close() error {
	s.client.Close()
	return nil
}

func tickPoint(t *models.PriceTick) *write.Point {
	return influxdb2.NewPoint(
		"marketprices",
		map[string]string{"Name": t.Market},
		map[string]interface{}{
			"Price":  t.Price,
			"Volume": t.Volume,
		},
		time.Unix(t.Timestamp, 0),
	)
}

// KafkaTickPublisher implements TickPublisher for Kafka.
type KafkaTickPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaTickPublisher creates Kafka tick publisher.
func NewKafkaTickPublisher(producer *pkgkafka.Producer, topic string) repository.TickPublisher {
	return &KafkaTickPublisher{producer: producer, topic: topic}
}

func (p *KafkaTickPublisher) Publish(ctx context.Context, t *models.PriceTick) error {
	return p.producer.Publish(ctx, p.topic, []byte(t.Market), map[string]interface{}{
		"market": t.Market,
		"t":      t.Timestamp,
		"p":      t.Price,
		"v":      t.Volume,
	})
}

func (p *KafkaTickPublisher) PublishBatch(ctx context.Context, ticks []*models.PriceTick) error {
	if len(ticks) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, len(ticks))
	for i, t := range ticks {
		msgs[i] = pkgkafka.Message{
			Key: []byte(t.Market),
			Value: map[string]interface{}{
				"market": t.Market,
				"t":      t.Timestamp,
				"p":      t.Price,
				"v":      t.Volume,
			},
		}
	}
	return p.producer.PublishBatch(ctx, p.topic, msgs)
}

func (p *KafkaTickPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
