package repository

import (
	"context"

	"snapfeed/internal/models"

	"gorm.io/gorm"
)

// ActivityLogRepository is append-only: there is no update or delete.
type ActivityLogRepository interface {
	WithTx(tx *gorm.DB) ActivityLogRepository
	Create(ctx context.Context, log *models.ActivityLog) error
	ListByUser(ctx context.Context, userID uint, limit, offset int) ([]models.ActivityLog, int64, error)
	ListBySubject(ctx context.Context, subject models.Subject, limit, offset int) ([]models.ActivityLog, int64, error)
}

type activityLogRepository struct {
	db *gorm.DB
}

// NewActivityLogRepository creates a new ActivityLogRepository
func NewActivityLogRepository(db *gorm.DB) ActivityLogRepository {
	return &activityLogRepository{db: db}
}

func (r *activityLogRepository) WithTx(tx *gorm.DB) ActivityLogRepository {
	if tx == nil {
		return r
	}
	return &activityLogRepository{db: tx}
}

func (r *activityLogRepository) Create(ctx context.Context, log *models.ActivityLog) error {
	if err := r.db.WithContext(ctx).Omit("User").Create(log).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *activityLogRepository) ListByUser(ctx context.Context, userID uint, limit, offset int) ([]models.ActivityLog, int64, error) {
	return r.list(r.db.WithContext(ctx).Where("user_id = ?", userID), limit, offset)
}

func (r *activityLogRepository) ListBySubject(ctx context.Context, subject models.Subject, limit, offset int) ([]models.ActivityLog, int64, error) {
	scope := r.db.WithContext(ctx)
	if subject.IsNone() {
		scope = scope.Where("subject_type IS NULL AND subject_id IS NULL")
	} else {
		scope = scope.Where("subject_type = ? AND subject_id = ?", subject.Type, subject.ID)
	}
	return r.list(scope, limit, offset)
}

func (r *activityLogRepository) list(scope *gorm.DB, limit, offset int) ([]models.ActivityLog, int64, error) {
	var total int64
	if err := scope.Session(&gorm.Session{}).Model(&models.ActivityLog{}).Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}

	var logs []models.ActivityLog
	err := scope.Session(&gorm.Session{}).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&logs).Error
	if err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	return logs, total, nil
}
