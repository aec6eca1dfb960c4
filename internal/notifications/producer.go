package notifications

import (
	"context"
	"fmt"
	"time"

	"municipal/pkg/logger"

	"github.com/IBM/sarama"
)

// Publisher hands booking notifications to the delivery pipeline
type Publisher interface {
	Publish(ctx context.Context, notification *Notification) error
	Close() error
}

// KafkaProducerConfig contains configuration for the Kafka producer
type KafkaProducerConfig struct {
	Brokers          []string
	Topic            string
	ClientID         string
	RetryMax         int
	TimeoutMs        int
	RequiredAcks     sarama.RequiredAcks
	CompressionType  sarama.CompressionCodec
	IdempotentWrites bool
	MaxMessageBytes  int
}

// DefaultKafkaProducerConfig returns a default producer configuration
func DefaultKafkaProducerConfig() *KafkaProducerConfig {
	return &KafkaProducerConfig{
		Brokers:          []string{"localhost:9092"},
		Topic:            "booking-notifications",
		ClientID:         "municipal-backoffice",
		RetryMax:         3,
		TimeoutMs:        10000,
		RequiredAcks:     sarama.WaitForAll,
		CompressionType:  sarama.CompressionSnappy,
		IdempotentWrites: true,
		MaxMessageBytes:  1000000,
	}
}

// NewSaramaConfig builds the sarama producer settings for cfg
func NewSaramaConfig(cfg *KafkaProducerConfig) *sarama.Config {
	saramaConfig := sarama.NewConfig()
	saramaConfig.ClientID = cfg.ClientID

	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.Return.Errors = true
	saramaConfig.Producer.RequiredAcks = cfg.RequiredAcks
	saramaConfig.Producer.Compression = cfg.CompressionType
	saramaConfig.Producer.Retry.Max = cfg.RetryMax
	saramaConfig.Producer.Timeout = time.Duration(cfg.TimeoutMs) * time.Millisecond
	saramaConfig.Producer.Idempotent = cfg.IdempotentWrites
	saramaConfig.Producer.MaxMessageBytes = cfg.MaxMessageBytes

	if cfg.IdempotentWrites {
		saramaConfig.Net.MaxOpenRequests = 1
	}

	// Hash partitioner keeps an event's messages in order
	saramaConfig.Producer.Partitioner = sarama.NewHashPartitioner
	return saramaConfig
}

// KafkaProducer publishes notifications to a Kafka topic
type KafkaProducer struct {
	producer sarama.SyncProducer
	topic    string
	log      *logger.Logger
}

func NewKafkaProducer(cfg *KafkaProducerConfig) (*KafkaProducer, error) {
	producer, err := sarama.NewSyncProducer(cfg.Brokers, NewSaramaConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}
	return NewKafkaProducerWithClient(producer, cfg.Topic), nil
}

// NewKafkaProducerWithClient wraps an existing sarama producer
func NewKafkaProducerWithClient(producer sarama.SyncProducer, topic string) *KafkaProducer {
	return &KafkaProducer{producer: producer, topic: topic, log: logger.GetDefault()}
}

func (p *KafkaProducer) Publish(ctx context.Context, notification *Notification) error {
	messageBytes, err := notification.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic:     p.topic,
		Key:       sarama.StringEncoder(notification.GetPartitionKey()),
		Value:     sarama.ByteEncoder(messageBytes),
		Headers:   createHeaders(notification),
		Timestamp: notification.OccurredAt,
	}

	partition, offset, err := p.producer.SendMessage(message)
	if err != nil {
		return fmt.Errorf("failed to send notification to Kafka: %w", err)
	}

	p.log.InfoWithContext(ctx, "Notification published", map[string]interface{}{
		"topic":        p.topic,
		"partition":    partition,
		"offset":       offset,
		"type":         string(notification.Type),
		"booking_code": notification.BookingCode,
	})
	return nil
}

func (p *KafkaProducer) Close() error {
	if p.producer == nil {
		return nil
	}
	if err := p.producer.Close(); err != nil {
		return fmt.Errorf("failed to close Kafka producer: %w", err)
	}
	return nil
}

func createHeaders(n *Notification) []sarama.RecordHeader {
	return []sarama.RecordHeader{
		{Key: []byte("notification_id"), Value: []byte(n.ID.String())},
		{Key: []byte("notification_type"), Value: []byte(n.Type)},
		{Key: []byte("booking_id"), Value: []byte(n.BookingID.String())},
		{Key: []byte("event_id"), Value: []byte(n.EventID.String())},
		{Key: []byte("producer"), Value: []byte("municipal-bookings")},
		{Key: []byte("occurred_at"), Value: []byte(n.OccurredAt.Format(time.RFC3339))},
	}
}

// RecordingPublisher writes history directly, for deployments without Kafka
type RecordingPublisher struct {
	repo Repository
}

func NewRecordingPublisher(repo Repository) *RecordingPublisher {
	return &RecordingPublisher{repo: repo}
}

func (p *RecordingPublisher) Publish(ctx context.Context, notification *Notification) error {
	if err := p.repo.Save(ctx, RecordFrom(notification)); err != nil {
		return fmt.Errorf("failed to record notification: %w", err)
	}
	return nil
}

func (p *RecordingPublisher) Close() error {
	return nil
}

// NoopPublisher drops every notification
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, *Notification) error { return nil }

func (NoopPublisher) Close() error { return nil }
