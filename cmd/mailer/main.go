// Command mailer drains the verification mail queue.
package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"

	"snapfeed/internal/config"
	"snapfeed/internal/mailer"

	amqp "github.com/rabbitmq/amqp091-go"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.AMQPURL == "" {
		log.Fatal("AMQP_URL is required")
	}

	conn, err := amqp.Dial(cfg.AMQPURL)
	if err != nil {
		log.Fatalf("Failed to connect to RabbitMQ: %v", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		log.Fatalf("Failed to open a channel: %v", err)
	}
	defer func() { _ = ch.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	queue := cfg.VerificationQueue
	if queue == "" {
		queue = mailer.DefaultQueue
	}
	log.Printf("Consuming verification mails from %q", queue)

	consumer := mailer.NewConsumer(mailer.LogDelivery)
	if err := consumer.Run(ctx, ch, queue); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("Consumer stopped: %v", err)
	}
	log.Println("Mailer stopped")
}
