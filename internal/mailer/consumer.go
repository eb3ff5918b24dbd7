package mailer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
)

// DeliverFunc performs the actual delivery of one verification mail.
type DeliverFunc func(ctx context.Context, msg VerificationMessage) error

// Consumer drains the verification queue.
type Consumer struct {
	deliver DeliverFunc
}

// NewConsumer returns a Consumer that hands every decoded message to deliver.
func NewConsumer(deliver DeliverFunc) *Consumer {
	return &Consumer{deliver: deliver}
}

// LogDelivery "delivers" a mail by writing it to the structured log.
func LogDelivery(ctx context.Context, msg VerificationMessage) error {
	slog.InfoContext(ctx, "delivering verification mail",
		"user_id", msg.UserID,
		"email", msg.Email,
		"name", msg.Name,
		"url", msg.URL,
		"queued_at", msg.QueuedAt,
	)
	return nil
}

// Handle processes one delivery. Malformed bodies are rejected without
// requeue; delivery failures are requeued once.
func (c *Consumer) Handle(ctx context.Context, d amqp.Delivery) error {
	var msg VerificationMessage
	if err := json.Unmarshal(d.Body, &msg); err != nil || msg.Email == "" {
		if err == nil {
			err = errors.New("missing email")
		}
		slog.WarnContext(ctx, "dropping malformed verification message", "err", err)
		if nackErr := d.Nack(false, false); nackErr != nil {
			return fmt.Errorf("nack: %w", nackErr)
		}
		return nil
	}

	if err := c.deliver(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "verification delivery failed", "user_id", msg.UserID, "err", err)
		if nackErr := d.Nack(false, !d.Redelivered); nackErr != nil {
			return fmt.Errorf("nack: %w", nackErr)
		}
		return nil
	}
	return d.Ack(false)
}

// Run consumes queue on ch until ctx is cancelled or the delivery channel
// closes.
func (c *Consumer) Run(ctx context.Context, ch *amqp.Channel, queue string) error {
	if err := ch.Qos(50, 0, false); err != nil {
		slog.WarnContext(ctx, "set QoS failed", "err", err)
	}
	if _, err := DeclareQueue(ch, queue); err != nil {
		return err
	}
	msgs, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to register a consumer: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := c.Handle(ctx, d); err != nil {
				slog.ErrorContext(ctx, "failed to settle delivery", "err", err)
			}
		}
	}
}
