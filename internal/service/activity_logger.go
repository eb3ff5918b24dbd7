// Package service holds the business rules that sit between the HTTP
// adapters and the repositories.
package service

import (
	"context"
	"log/slog"

	"snapfeed/internal/middleware"
	"snapfeed/internal/models"
	"snapfeed/internal/observability"
	"snapfeed/internal/repository"

	"gorm.io/gorm"
)

// DefaultActivityPerPage is the page size of the activity feed.
const DefaultActivityPerPage = 20

// Entry is one activity to be recorded.
type Entry struct {
	Actor       *models.User
	Category    string
	Description string
	Subject     models.Subject
	Properties  models.Properties
}

// ActivitySink receives committed activity rows, e.g. to fan them out to
// live subscribers.
type ActivitySink interface {
	PublishActivity(ctx context.Context, log *models.ActivityLog) error
}

// Recorder writes activity log rows. Entity services depend on this
// interface so tests can observe or fail the audit write.
type Recorder interface {
	WithTx(tx *gorm.DB) Recorder
	Record(ctx context.Context, e Entry) (*models.ActivityLog, error)
	Published(ctx context.Context, log *models.ActivityLog)
}

// ActivityLogger is the Recorder backed by the activity_logs table.
type ActivityLogger struct {
	repo repository.ActivityLogRepository
	sink ActivitySink
}

// NewActivityLogger creates an ActivityLogger. sink may be nil.
func NewActivityLogger(repo repository.ActivityLogRepository, sink ActivitySink) *ActivityLogger {
	return &ActivityLogger{repo: repo, sink: sink}
}

// WithTx returns a logger whose writes join tx.
func (l *ActivityLogger) WithTx(tx *gorm.DB) Recorder {
	if tx == nil {
		return l
	}
	return &ActivityLogger{repo: l.repo.WithTx(tx), sink: l.sink}
}

// Record persists e. IP address and user agent come from the request
// provenance stored in ctx when the request arrived.
func (l *ActivityLogger) Record(ctx context.Context, e Entry) (*models.ActivityLog, error) {
	if !models.IsValidCategory(e.Category) {
		return nil, models.NewValidationError("Unknown activity log category: " + e.Category)
	}
	if e.Description == "" {
		return nil, models.NewValidationError("Activity log description is required")
	}

	prov := middleware.ProvenanceFrom(ctx)
	entry := &models.ActivityLog{
		LogName:     e.Category,
		Description: e.Description,
		Properties:  e.Properties,
		IPAddress:   prov.IPAddress,
		UserAgent:   prov.UserAgent,
	}
	if entry.Properties == nil {
		entry.Properties = models.Properties{}
	}
	if e.Actor != nil {
		id := e.Actor.ID
		entry.UserID = &id
	}
	entry.SetSubject(e.Subject)

	if err := l.repo.Create(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// Published is called once the transaction holding log has committed.
// Sink failures are logged and swallowed.
func (l *ActivityLogger) Published(ctx context.Context, log *models.ActivityLog) {
	if log == nil {
		return
	}
	observability.ActivityLogsWritten.WithLabelValues(log.LogName).Inc()
	if l.sink == nil {
		return
	}
	if err := l.sink.PublishActivity(ctx, log); err != nil {
		slog.WarnContext(ctx, "failed to publish activity", "log_id", log.ID, "err", err)
	}
}

// ListForUser returns the user's activity, newest first.
func (l *ActivityLogger) ListForUser(ctx context.Context, userID uint, page, perPage int) (models.Page[models.ActivityLog], error) {
	page, perPage = models.NormalizePage(page, perPage, DefaultActivityPerPage, 100)
	logs, total, err := l.repo.ListByUser(ctx, userID, perPage, models.Offset(page, perPage))
	if err != nil {
		return models.Page[models.ActivityLog]{}, err
	}
	return models.Page[models.ActivityLog]{
		Items:      logs,
		Pagination: models.NewPagination(page, perPage, total),
	}, nil
}

// ListForSubject returns the activity that refers to subject, newest first.
func (l *ActivityLogger) ListForSubject(ctx context.Context, subject models.Subject, page, perPage int) (models.Page[models.ActivityLog], error) {
	page, perPage = models.NormalizePage(page, perPage, DefaultActivityPerPage, 100)
	logs, total, err := l.repo.ListBySubject(ctx, subject, perPage, models.Offset(page, perPage))
	if err != nil {
		return models.Page[models.ActivityLog]{}, err
	}
	return models.Page[models.ActivityLog]{
		Items:      logs,
		Pagination: models.NewPagination(page, perPage, total),
	}, nil
}
