package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// messageWriter is the subset of *kafka.Writer used by KafkaForwarder.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaForwarder copies movement notifications to a Kafka topic, keyed by
// recipient so one user's movements stay ordered within a partition.
type KafkaForwarder struct {
	writer messageWriter
}

func NewKafkaForwarder(brokers []string, topic string) *KafkaForwarder {
	return &KafkaForwarder{writer: &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		BatchTimeout:           50 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}}
}

// Handle is an events.Handler for the notifications stream.
func (f *KafkaForwarder) Handle(ctx context.Context, event Event) error {
	if event.Type != NotificationCreated {
		return nil
	}
	var n NotificationEvent
	if err := DecodeData(event, &n); err != nil {
		return err
	}
	if n.Entity != EntityMovements {
		return nil
	}
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event %s: %w", event.ID, err)
	}
	err = f.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(n.Recipient),
		Value: value,
		Time:  event.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("failed to push event %s into kafka: %w", event.ID, err)
	}
	return nil
}

func (f *KafkaForwarder) Close() error {
	return f.writer.Close()
}
