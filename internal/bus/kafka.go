// internal/bus/kafka.go
package bus

import (
	"context"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
)

type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(brokers []string) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka driver needs at least one broker")
	}
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		AllowAutoTopicCreation: true,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		BatchTimeout:           50 * time.Millisecond,
		MaxAttempts:            3,
	}
	return &KafkaPublisher{writer: writer}, nil
}

// Publish writes one message to the topic named by subject, keyed by hive so
// a hive's events stay ordered within a partition.
func (p *KafkaPublisher) Publish(ctx context.Context, subject, key string, payload []byte) error {
	return p.writer.WriteMessages(ctx, kafka.Message{
		Topic: subject,
		Key:   []byte(key),
		Value: payload,
	})
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
