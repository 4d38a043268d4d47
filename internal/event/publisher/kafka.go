package publisher

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"

	"authgate/internal/event/domain"
	"authgate/internal/wire"
)

// KafkaPublisher implements Publisher using segmentio/kafka-go. Messages
// are keyed by account ID so each account's event stream stays ordered
// within a partition.
type KafkaPublisher struct {
	writer *kafka.Writer
	codec  *wire.Codec
}

// NewKafkaPublisher creates a publisher that writes wire-encoded auth
// events to the given topic. Call Close when shutting down.
func NewKafkaPublisher(brokers []string, topic string, codec *wire.Codec) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     kafka.Murmur2Balancer{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 50 * time.Millisecond,
	}
	return &KafkaPublisher{writer: writer, codec: codec}
}

// Publish encodes e and writes it to the topic keyed by account ID. A
// short timeout keeps slow brokers from stalling the drain loop; the caller
// retries on error.
func (p *KafkaPublisher) Publish(ctx context.Context, e *domain.AuthEvent) error {
	payload, err := p.codec.EncodeEvent(e)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return p.writer.WriteMessages(writeCtx, kafka.Message{
		Key:   []byte(e.AccountID),
		Value: payload,
	})
}

// Close closes the Kafka writer. Safe to call multiple times.
func (p *KafkaPublisher) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
