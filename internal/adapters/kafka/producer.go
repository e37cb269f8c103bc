package kafka

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"

	"creditgate/internal/metrics"
	"creditgate/pkg/logger"
)

// Producer publishes JSON events to a single topic. Writes are synchronous:
// usage events feed downstream billing reconciliation, so silent drops on
// the producer side are worse than latency.
type Producer struct {
	writer *kafka.Writer
	topic  string
	log    *logger.Logger
}

// ProducerConfig holds producer configuration
type ProducerConfig struct {
	Brokers []string
	Topic   string
}

// NewProducer creates a new Kafka producer
func NewProducer(cfg ProducerConfig) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(cfg.Brokers...),
			Topic:    cfg.Topic,
			Balancer: &kafka.LeastBytes{},
		},
		topic: cfg.Topic,
		log:   logger.Get().With("component", "kafka_producer", "topic", cfg.Topic),
	}
}

// Publish sends one JSON-encoded event keyed by key
func (p *Producer) Publish(ctx context.Context, key string, event interface{}) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: data,
	})
	if err != nil {
		metrics.KafkaMessages.WithLabelValues(p.topic, "error").Inc()
		p.log.Errorf("Failed to publish to %s: %v", p.topic, err)
		return err
	}

	metrics.KafkaMessages.WithLabelValues(p.topic, "success").Inc()
	p.log.Debugf("Published to %s: %s", p.topic, key)
	return nil
}

// Close closes the underlying writer
func (p *Producer) Close() error {
	return p.writer.Close()
}
