package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"municipal/pkg/logger"

	"github.com/IBM/sarama"
)

type ConsumerConfig struct {
	Brokers              []string
	GroupID              string
	Topics               []string
	ClientID             string
	SessionTimeoutMs     int
	HeartbeatMs          int
	RetryBackoffMs       int
	MaxProcessingTime    time.Duration
	OffsetOldest         bool
	MaxRetries           int
	RetryBackoffDuration time.Duration
}

func DefaultConsumerConfig() *ConsumerConfig {
	return &ConsumerConfig{
		Brokers:              []string{"localhost:9092"},
		GroupID:              "municipal-notification-history",
		Topics:               []string{"booking-notifications"},
		ClientID:             "municipal-backoffice",
		SessionTimeoutMs:     30000,
		HeartbeatMs:          3000,
		RetryBackoffMs:       100,
		MaxProcessingTime:    time.Minute,
		OffsetOldest:         true,
		MaxRetries:           3,
		RetryBackoffDuration: time.Second,
	}
}

// KafkaConsumer records booking notifications read from Kafka
type KafkaConsumer struct {
	consumerGroup sarama.ConsumerGroup
	config        *ConsumerConfig
	repo          Repository
	log           *logger.Logger
	wg            sync.WaitGroup
}

func NewKafkaConsumer(config *ConsumerConfig, repo Repository) (*KafkaConsumer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.ClientID = config.ClientID

	saramaConfig.Consumer.Group.Session.Timeout = time.Duration(config.SessionTimeoutMs) * time.Millisecond
	saramaConfig.Consumer.Group.Heartbeat.Interval = time.Duration(config.HeartbeatMs) * time.Millisecond
	saramaConfig.Consumer.Retry.Backoff = time.Duration(config.RetryBackoffMs) * time.Millisecond
	saramaConfig.Consumer.MaxProcessingTime = config.MaxProcessingTime
	saramaConfig.Consumer.Return.Errors = true
	saramaConfig.Consumer.Offsets.AutoCommit.Enable = true
	saramaConfig.Consumer.Offsets.AutoCommit.Interval = time.Second

	if config.OffsetOldest {
		saramaConfig.Consumer.Offsets.Initial = sarama.OffsetOldest
	} else {
		saramaConfig.Consumer.Offsets.Initial = sarama.OffsetNewest
	}

	consumerGroup, err := sarama.NewConsumerGroup(config.Brokers, config.GroupID, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer group: %w", err)
	}

	return newKafkaConsumer(consumerGroup, config, repo), nil
}

func newKafkaConsumer(group sarama.ConsumerGroup, config *ConsumerConfig, repo Repository) *KafkaConsumer {
	return &KafkaConsumer{
		consumerGroup: group,
		config:        config,
		repo:          repo,
		log:           logger.GetDefault(),
	}
}

// Start launches numWorkers consume loops that run until ctx is cancelled
func (kc *KafkaConsumer) Start(ctx context.Context, numWorkers int) {
	if numWorkers < 1 {
		numWorkers = 1
	}
	kc.log.InfoWithContext(ctx, "Starting notification consumers", map[string]interface{}{
		"workers": numWorkers,
		"topics":  kc.config.Topics,
	})

	go kc.handleErrors()

	for i := 0; i < numWorkers; i++ {
		kc.wg.Add(1)
		go func(workerID int) {
			defer kc.wg.Done()
			kc.runWorker(ctx, workerID)
		}(i)
	}
}

func (kc *KafkaConsumer) runWorker(ctx context.Context, workerID int) {
	handler := &ConsumerGroupHandler{consumer: kc, workerID: workerID}

	for {
		if ctx.Err() != nil {
			return
		}
		if err := kc.consumerGroup.Consume(ctx, kc.config.Topics, handler); err != nil {
			if err == sarama.ErrClosedConsumerGroup {
				return
			}
			kc.log.WithError(err).Warn("Consume loop failed", "worker", workerID)
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return
			}
		}
	}
}

func (kc *KafkaConsumer) handleErrors() {
	for err := range kc.consumerGroup.Errors() {
		kc.log.WithError(err).Warn("Consumer group error")
	}
}

// Stop closes the consumer group and waits for the workers
func (kc *KafkaConsumer) Stop() error {
	err := kc.consumerGroup.Close()
	kc.wg.Wait()
	if err != nil {
		return fmt.Errorf("failed to close consumer group: %w", err)
	}
	return nil
}

type ConsumerGroupHandler struct {
	consumer *KafkaConsumer
	workerID int
}

func (h *ConsumerGroupHandler) Setup(sarama.ConsumerGroupSession) error {
	return nil
}

func (h *ConsumerGroupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

func (h *ConsumerGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message, ok := <-claim.Messages():
			if !ok || message == nil {
				return nil
			}
			// An unrecorded message is never marked: marking a later offset
			// would commit past it. Ending the claim leaves it to be
			// redelivered from the last committed offset.
			if err := h.processMessage(session.Context(), message); err != nil {
				h.consumer.log.WithError(err).Error("Failed to record notification, stopping claim",
					"worker", h.workerID, "partition", message.Partition, "offset", message.Offset)
				return fmt.Errorf("partition %d offset %d: %w", message.Partition, message.Offset, err)
			}
			session.MarkMessage(message, "")

		case <-session.Context().Done():
			return nil
		}
	}
}

// processMessage decodes a message and records it. Malformed payloads are
// dropped so they do not block the partition.
func (h *ConsumerGroupHandler) processMessage(ctx context.Context, message *sarama.ConsumerMessage) error {
	var notification Notification
	if err := json.Unmarshal(message.Value, &notification); err != nil {
		h.consumer.log.WithError(err).Warn("Dropping malformed notification", "offset", message.Offset)
		return nil
	}
	if !notification.Type.IsValid() {
		h.consumer.log.Warn("Dropping notification of unknown type", "type", string(notification.Type))
		return nil
	}

	return h.executeWithRetry(ctx, &notification)
}

func (h *ConsumerGroupHandler) executeWithRetry(ctx context.Context, notification *Notification) error {
	maxRetries := h.consumer.config.MaxRetries
	backoff := h.consumer.config.RetryBackoffDuration

	for attempt := 0; ; attempt++ {
		err := h.consumer.repo.Save(ctx, RecordFrom(notification))
		if err == nil {
			return nil
		}
		if attempt >= maxRetries {
			return fmt.Errorf("record notification %s after %d attempts: %w", notification.ID, attempt+1, err)
		}

		delay := backoff * time.Duration(1<<attempt)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
