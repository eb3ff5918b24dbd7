package repository

import (
	"context"

	"snapfeed/internal/models"

	"gorm.io/gorm"
)

// LikeRepository persists likes. The (user_id, post_id) unique index is the
// only duplicate guard.
type LikeRepository interface {
	WithTx(tx *gorm.DB) LikeRepository
	Create(ctx context.Context, like *models.Like) error
	Delete(ctx context.Context, userID, postID uint) (int64, error)
	Exists(ctx context.Context, userID, postID uint) (bool, error)
}

type likeRepository struct {
	db *gorm.DB
}

// NewLikeRepository creates a new LikeRepository
func NewLikeRepository(db *gorm.DB) LikeRepository {
	return &likeRepository{db: db}
}

func (r *likeRepository) WithTx(tx *gorm.DB) LikeRepository {
	if tx == nil {
		return r
	}
	return &likeRepository{db: tx}
}

func (r *likeRepository) Create(ctx context.Context, like *models.Like) error {
	if err := r.db.WithContext(ctx).Omit("User").Create(like).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.NewDuplicateError("You have already liked this post.")
		}
		if isForeignKeyViolation(err) {
			return models.NewNotFoundError("Post", like.PostID)
		}
		return models.NewInternalError(err)
	}
	return nil
}

// Delete hard-deletes the like and returns the number of rows removed.
func (r *likeRepository) Delete(ctx context.Context, userID, postID uint) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("user_id = ? AND post_id = ?", userID, postID).
		Delete(&models.Like{})
	if res.Error != nil {
		return 0, models.NewInternalError(res.Error)
	}
	return res.RowsAffected, nil
}

func (r *likeRepository) Exists(ctx context.Context, userID, postID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Like{}).
		Where("user_id = ? AND post_id = ?", userID, postID).
		Count(&count).Error
	if err != nil {
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}
