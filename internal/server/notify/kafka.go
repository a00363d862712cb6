package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// messageWriter is the part of *kafka.Writer the sender uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSender publishes notification events for the mail service.
type KafkaSender struct {
	writer messageWriter
	topic  string
}

// NewKafkaSender creates a synchronous writer for brokers publishing to
// "<prefix>.auth.notifications".
func NewKafkaSender(brokers []string, prefix string) *KafkaSender {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireAll,
	}
	return newKafkaSender(w, Topic(prefix))
}

func newKafkaSender(w messageWriter, topic string) *KafkaSender {
	return &KafkaSender{writer: w, topic: topic}
}

// Topic returns the notification topic for a topic prefix.
func Topic(prefix string) string {
	if prefix == "" {
		return "auth.notifications"
	}
	return prefix + ".auth.notifications"
}

func (s *KafkaSender) Send(ctx context.Context, m Message) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	msg := kafka.Message{
		Topic: s.topic,
		Key:   []byte(m.Email),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(m.Kind)},
			{Key: "source", Value: []byte("auth")},
		},
	}

	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish notification to %s: %w", s.topic, err)
	}
	return nil
}

func (s *KafkaSender) Close() error {
	return s.writer.Close()
}
