package outcomes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"pushcast/internal/notification/models"
)

// DefaultTopic receives delivery outcomes unless configured otherwise.
const DefaultTopic = "pushcast.delivery-outcomes"

// HeaderBroadcastID carries the broadcast ID on every produced record.
const HeaderBroadcastID = "broadcast-id"

// ErrCircuitOpen is returned while publishes are being dropped.
var ErrCircuitOpen = errors.New("outcome sink circuit open")

// DeliveryEvent is the value of one Kafka record: a single destination's
// outcome with enough broadcast context to be read on its own.
type DeliveryEvent struct {
	BroadcastID string         `json:"broadcastId"`
	StartedAt   time.Time      `json:"startedAt"`
	Payload     models.Payload `json:"payload"`
	OutcomeRecord
}

// KafkaConfig selects the brokers and topic. ClientOpts are appended after
// the defaults, so they may override the record delivery timeout.
type KafkaConfig struct {
	Brokers    []string
	Topic      string
	ClientOpts []kgo.Opt
}

// defaultDeliveryTimeout fails buffered records that cannot reach a broker.
const defaultDeliveryTimeout = 5 * time.Second

// producer is the slice of *kgo.Client used to publish.
type producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// KafkaPublisher produces one record per destination, keyed by endpoint so
// the history of a subscription stays on one partition.
type KafkaPublisher struct {
	client   *kgo.Client
	producer producer
	topic    string
	logger  *slog.Logger
	breaker *Breaker
	metrics *Metrics
}

// Option configures the KafkaPublisher.
type Option func(*KafkaPublisher)

// WithBreaker replaces the default circuit breaker.
func WithBreaker(b *Breaker) Option {
	return func(p *KafkaPublisher) {
		p.breaker = b
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *Metrics) Option {
	return func(p *KafkaPublisher) {
		p.metrics = m
	}
}

// NewKafkaPublisher creates a producer for cfg.Brokers. Connections are made lazily.
func NewKafkaPublisher(cfg KafkaConfig, logger *slog.Logger, opts ...Option) (*KafkaPublisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka publisher: no seed brokers")
	}
	topic := cfg.Topic
	if topic == "" {
		topic = DefaultTopic
	}
	base := []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ClientID("pushcast"),
		kgo.RecordDeliveryTimeout(defaultDeliveryTimeout),
	}
	client, err := kgo.NewClient(append(base, cfg.ClientOpts...)...)
	if err != nil {
		return nil, fmt.Errorf("kafka publisher: %w", err)
	}
	p := &KafkaPublisher{
		client:   client,
		producer: client,
		topic:    topic,
		logger:   logger,
		breaker:  NewBreaker(5, 30*time.Second),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Topic returns the destination topic.
func (p *KafkaPublisher) Topic() string {
	return p.topic
}

// EnsureTopic creates the topic when it does not exist yet.
func (p *KafkaPublisher) EnsureTopic(ctx context.Context, partitions int32, replicationFactor int16) error {
	adm := kadm.NewClient(p.client)
	resp, err := adm.CreateTopics(ctx, partitions, replicationFactor, nil, p.topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", p.topic, err)
	}
	for _, t := range resp {
		if t.Err != nil && !errors.Is(t.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %s: %w", t.Topic, t.Err)
		}
	}
	return nil
}

// Publish produces the broadcast's outcomes and waits for every ack or for
// ctx to end. While the breaker is open the records are dropped and
// ErrCircuitOpen is returned.
func (p *KafkaPublisher) Publish(ctx context.Context, rec BroadcastRecord) error {
	records, err := buildRecords(rec)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}
	if !p.breaker.Allow() {
		p.metrics.addDropped(len(records))
		return ErrCircuitOpen
	}

	if err := p.producer.ProduceSync(ctx, records...).FirstErr(); err != nil {
		p.metrics.incFailures()
		if p.breaker.RecordFailure() {
			p.metrics.setBreakerOpen(true)
			p.logWarn(ctx, "outcome sink circuit opened", "topic", p.topic)
		}
		return fmt.Errorf("produce delivery outcomes: %w", err)
	}
	if p.breaker.RecordSuccess() {
		p.metrics.setBreakerOpen(false)
		p.logInfo(ctx, "outcome sink circuit closed", "topic", p.topic)
	}
	p.metrics.addPublished(len(records))

	if p.logger != nil {
		p.logger.DebugContext(ctx, "delivery outcomes published",
			"broadcast_id", rec.ID,
			"topic", p.topic,
			"records", len(records),
		)
	}
	return nil
}

// Close releases the client. Publish is synchronous, so nothing is buffered.
func (p *KafkaPublisher) Close() error {
	p.client.Close()
	return nil
}

func (p *KafkaPublisher) logInfo(ctx context.Context, msg string, args ...any) {
	if p.logger != nil {
		p.logger.InfoContext(ctx, msg, args...)
	}
}

func (p *KafkaPublisher) logWarn(ctx context.Context, msg string, args ...any) {
	if p.logger != nil {
		p.logger.WarnContext(ctx, msg, args...)
	}
}

func buildRecords(rec BroadcastRecord) ([]*kgo.Record, error) {
	records := make([]*kgo.Record, 0, len(rec.Outcomes))
	for _, o := range rec.Outcomes {
		value, err := json.Marshal(DeliveryEvent{
			BroadcastID:   rec.ID,
			StartedAt:     rec.StartedAt,
			Payload:       rec.Payload,
			OutcomeRecord: o,
		})
		if err != nil {
			return nil, fmt.Errorf("encode delivery outcome: %w", err)
		}
		records = append(records, &kgo.Record{
			Key:   []byte(o.Endpoint),
			Value: value,
			Headers: []kgo.RecordHeader{
				{Key: HeaderBroadcastID, Value: []byte(rec.ID)},
			},
		})
	}
	return records, nil
}
