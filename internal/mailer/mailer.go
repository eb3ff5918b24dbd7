// Package mailer hands verification mails to a delivery backend.
package mailer

import (
	"context"
	"log/slog"
	"time"

	"snapfeed/internal/observability"
)

// DefaultQueue is the durable queue verification mails are published to.
const DefaultQueue = "snapfeed.verification"

// VerificationMessage is the queued payload for one verification mail.
type VerificationMessage struct {
	UserID   uint      `json:"user_id"`
	Email    string    `json:"email"`
	Name     string    `json:"name"`
	URL      string    `json:"url"`
	QueuedAt time.Time `json:"queued_at"`
}

// VerificationSender delivers verification links. Delivery is fire and
// forget: callers log failures and carry on.
type VerificationSender interface {
	SendVerification(ctx context.Context, msg VerificationMessage) error
}

// LogSender writes the verification link to the structured log. It is used
// in development and whenever no broker is configured.
type LogSender struct{}

func (LogSender) SendVerification(ctx context.Context, msg VerificationMessage) error {
	slog.InfoContext(ctx, "verification mail",
		"user_id", msg.UserID,
		"email", msg.Email,
		"url", msg.URL,
	)
	observability.VerificationMailsQueued.WithLabelValues("log", "sent").Inc()
	return nil
}
