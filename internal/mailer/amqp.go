package mailer

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"snapfeed/internal/observability"

	amqp "github.com/rabbitmq/amqp091-go"
)

const publishTimeout = 5 * time.Second

type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPSender publishes verification messages to a durable RabbitMQ queue.
type AMQPSender struct {
	mu    sync.Mutex
	conn  *amqp.Connection
	ch    publisher
	queue string
}

// NewAMQPSender dials url and declares queue.
func NewAMQPSender(url, queue string) (*AMQPSender, error) {
	if queue == "" {
		queue = DefaultQueue
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}
	if _, err := DeclareQueue(ch, queue); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return &AMQPSender{conn: conn, ch: ch, queue: queue}, nil
}

// DeclareQueue declares the durable verification queue on ch.
func DeclareQueue(ch *amqp.Channel, queue string) (amqp.Queue, error) {
	q, err := ch.QueueDeclare(
		queue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return q, fmt.Errorf("failed to declare queue %s: %w", queue, err)
	}
	return q, nil
}

func (s *AMQPSender) SendVerification(ctx context.Context, msg VerificationMessage) error {
	if msg.QueuedAt.IsZero() {
		msg.QueuedAt = time.Now().UTC()
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal verification message: %w", err)
	}

	publishCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	s.mu.Lock()
	err = s.ch.PublishWithContext(publishCtx,
		"",      // default exchange
		s.queue, // routing key
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    msg.QueuedAt,
			Body:         body,
		},
	)
	s.mu.Unlock()

	if err != nil {
		observability.VerificationMailsQueued.WithLabelValues("amqp", "failed").Inc()
		return fmt.Errorf("failed to publish verification message: %w", err)
	}
	observability.VerificationMailsQueued.WithLabelValues("amqp", "queued").Inc()
	return nil
}

// Close releases the broker connection.
func (s *AMQPSender) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}
