package bus

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
)

// DefaultKafkaTopic is the single topic all broadcast envelopes share.
const DefaultKafkaTopic = "stickernest.widget.broadcast"

// KafkaTransport carries broadcast envelopes over Apache Kafka via Sarama.
type KafkaTransport struct {
	brokers []string
	topic   string
	groupID string
	logger  *slog.Logger

	mu            sync.RWMutex
	producer      sarama.SyncProducer
	consumerGroup sarama.ConsumerGroup
	handler       func([]byte)
	cancelFunc    context.CancelFunc
}

// KafkaOption configures a KafkaTransport.
type KafkaOption func(*KafkaTransport)

// WithKafkaTopic overrides the broadcast topic.
func WithKafkaTopic(topic string) KafkaOption {
	return func(t *KafkaTransport) { t.topic = topic }
}

// WithKafkaGroupID overrides the consumer group ID. Each host must use its
// own group so every host sees every broadcast.
func WithKafkaGroupID(groupID string) KafkaOption {
	return func(t *KafkaTransport) { t.groupID = groupID }
}

// WithKafkaLogger sets the transport's log sink.
func WithKafkaLogger(l *slog.Logger) KafkaOption {
	return func(t *KafkaTransport) { t.logger = l }
}

// NewKafkaTransport creates a transport for the given broker addresses.
// Connection happens in Start.
func NewKafkaTransport(brokers []string, groupID string, opts ...KafkaOption) *KafkaTransport {
	if len(brokers) == 0 {
		brokers = []string{"localhost:9092"}
	}
	if groupID == "" {
		// Every host needs its own group so each one sees every broadcast.
		groupID = "stickernest-host-" + uuid.NewString()
	}
	t := &KafkaTransport{
		brokers: brokers,
		topic:   DefaultKafkaTopic,
		groupID: groupID,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Publish sends one envelope to the broadcast topic.
func (t *KafkaTransport) Publish(data []byte) error {
	t.mu.RLock()
	producer := t.producer
	t.mu.RUnlock()

	if producer == nil {
		return fmt.Errorf("kafka producer not initialized; call Start first")
	}
	msg := &sarama.ProducerMessage{
		Topic: t.topic,
		Value: sarama.ByteEncoder(data),
	}
	if _, _, err := producer.SendMessage(msg); err != nil {
		return fmt.Errorf("send to topic %q: %w", t.topic, err)
	}
	return nil
}

// Subscribe registers the inbound handler. Consumption begins in Start.
func (t *KafkaTransport) Subscribe(handler func(data []byte)) error {
	t.mu.Lock()
	t.handler = handler
	t.mu.Unlock()
	return nil
}

// Start connects the producer and, if a handler is registered, begins
// consuming the broadcast topic.
func (t *KafkaTransport) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 3
	config.Producer.Return.Successes = true
	config.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	config.Consumer.Offsets.Initial = sarama.OffsetNewest

	producer, err := sarama.NewSyncProducer(t.brokers, config)
	if err != nil {
		return fmt.Errorf("create kafka producer: %w", err)
	}
	t.producer = producer

	if t.handler != nil {
		group, err := sarama.NewConsumerGroup(t.brokers, t.groupID, config)
		if err != nil {
			_ = producer.Close()
			t.producer = nil
			return fmt.Errorf("create kafka consumer group: %w", err)
		}
		t.consumerGroup = group

		consumerCtx, cancel := context.WithCancel(ctx)
		t.cancelFunc = cancel
		handler := &kafkaGroupHandler{transport: t}

		go func() {
			for {
				if err := group.Consume(consumerCtx, []string{t.topic}, handler); err != nil {
					t.logger.Error("kafka consumer group error", "error", err)
				}
				if consumerCtx.Err() != nil {
					return
				}
			}
		}()
	}

	t.logger.Info("Kafka broadcast transport started", "brokers", t.brokers, "topic", t.topic)
	return nil
}

// Stop cancels consumption and closes the producer and consumer group.
func (t *KafkaTransport) Stop(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cancelFunc != nil {
		t.cancelFunc()
		t.cancelFunc = nil
	}

	var lastErr error
	if t.consumerGroup != nil {
		if err := t.consumerGroup.Close(); err != nil {
			lastErr = fmt.Errorf("close consumer group: %w", err)
			t.logger.Error("failed to close kafka consumer group", "error", err)
		}
		t.consumerGroup = nil
	}
	if t.producer != nil {
		if err := t.producer.Close(); err != nil {
			lastErr = fmt.Errorf("close producer: %w", err)
			t.logger.Error("failed to close kafka producer", "error", err)
		}
		t.producer = nil
	}

	t.logger.Info("Kafka broadcast transport stopped")
	return lastErr
}

// kafkaGroupHandler adapts the consumer group callbacks to the transport's
// inbound handler.
type kafkaGroupHandler struct {
	transport *KafkaTransport
}

func (h *kafkaGroupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *kafkaGroupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *kafkaGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	h.transport.mu.RLock()
	handler := h.transport.handler
	h.transport.mu.RUnlock()

	for msg := range claim.Messages() {
		if handler != nil {
			handler(msg.Value)
		}
		session.MarkMessage(msg, "")
	}
	return nil
}
