// Package kafka publishes ledger events to a Kafka topic with
// segmentio/kafka-go.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	skafka "github.com/segmentio/kafka-go"

	"github.com/xraph/condoledger/publisher"
)

// Writer is the subset of kafka-go's Writer the sink needs.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...skafka.Message) error
	Close() error
}

var _ publisher.Sink = (*Sink)(nil)

// Sink writes each event as one JSON message keyed by the event key.
type Sink struct {
	writer Writer
}

// NewSink creates a Sink writing to topic on brokers.
func NewSink(brokers []string, topic string) *Sink {
	return NewSinkWithWriter(&skafka.Writer{
		Addr:         skafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &skafka.Hash{},
		RequiredAcks: skafka.RequireAll,
		BatchTimeout: 10 * time.Millisecond,
	})
}

// NewSinkWithWriter allows injecting a test writer.
func NewSinkWithWriter(w Writer) *Sink {
	return &Sink{writer: w}
}

// Publish implements publisher.Sink.
func (s *Sink) Publish(ctx context.Context, e publisher.Event) error {
	value, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("kafka: marshal %s: %w", e.Type, err)
	}
	msg := skafka.Message{
		Key:   []byte(e.Key),
		Value: value,
		Time:  e.OccurredAt,
		Headers: []skafka.Header{
			{Key: "event-type", Value: []byte(e.Type)},
			{Key: "event-id", Value: []byte(e.ID.String())},
		},
	}
	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka: write %s: %w", e.Type, err)
	}
	return nil
}

// Close closes the underlying writer.
func (s *Sink) Close() error {
	return s.writer.Close()
}
