// Package rabbitmq publishes ledger events to a durable RabbitMQ queue with
// amqp091-go.
package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/xraph/condoledger/publisher"
)

// Channel is the subset of *amqp.Channel the sink needs.
type Channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

var _ publisher.Sink = (*Sink)(nil)

// Sink publishes persistent JSON messages to one queue through the default
// exchange.
type Sink struct {
	conn  *amqp.Connection // nil when built from a bare channel
	ch    Channel
	queue string
}

// Dial connects to url, opens a channel and declares queue.
func Dial(url, queue string) (*Sink, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq: dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq: open channel: %w", err)
	}
	s, err := NewSink(ch, queue)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	s.conn = conn
	return s, nil
}

// NewSink declares queue as durable on ch.
func NewSink(ch Channel, queue string) (*Sink, error) {
	if _, err := ch.QueueDeclare(
		queue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	); err != nil {
		return nil, fmt.Errorf("rabbitmq: declare queue %s: %w", queue, err)
	}
	return &Sink{ch: ch, queue: queue}, nil
}

// Publish implements publisher.Sink.
func (s *Sink) Publish(ctx context.Context, e publisher.Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("rabbitmq: marshal %s: %w", e.Type, err)
	}
	err = s.ch.PublishWithContext(ctx,
		"",      // default exchange
		s.queue, // routing key
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    e.ID.String(),
			Type:         e.Type,
			Timestamp:    e.OccurredAt,
			Headers:      amqp.Table{"key": e.Key},
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("rabbitmq: publish %s: %w", e.Type, err)
	}
	return nil
}

// Close closes the channel and, when the sink dialed it, the connection.
func (s *Sink) Close() error {
	err := s.ch.Close()
	if s.conn != nil {
		err = errors.Join(err, s.conn.Close())
	}
	return err
}
