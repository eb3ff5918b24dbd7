package service

import (
	"context"

	"snapfeed/internal/models"
	"snapfeed/internal/observability"
	"snapfeed/internal/repository"

	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

// LikeService toggles likes. Duplicate likes are rejected by the
// (user_id, post_id) unique index, not by a prior read.
type LikeService struct {
	likeRepo repository.LikeRepository
	postRepo repository.PostRepository
	tx       repository.TxRunner
	activity Recorder
}

func NewLikeService(
	likeRepo repository.LikeRepository,
	postRepo repository.PostRepository,
	tx repository.TxRunner,
	activity Recorder,
) *LikeService {
	return &LikeService{
		likeRepo: likeRepo,
		postRepo: postRepo,
		tx:       tx,
		activity: activity,
	}
}

func (s *LikeService) Like(ctx context.Context, actor *models.User, postID uint) (like *models.Like, err error) {
	ctx, end := observability.StartSpan(ctx, "like_service", "like",
		attribute.Int64("post.id", int64(postID)))
	defer func() { end(err) }()

	if actor == nil {
		return nil, models.NewAuthenticationError("Unauthenticated.")
	}
	exists, err := s.postRepo.Exists(ctx, postID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, models.NewNotFoundError("Post", postID)
	}

	like = &models.Like{UserID: actor.ID, PostID: postID}

	var entry *models.ActivityLog
	err = s.tx.WithinTx(ctx, func(tx *gorm.DB) error {
		if err := s.likeRepo.WithTx(tx).Create(ctx, like); err != nil {
			return err
		}
		var err error
		entry, err = s.activity.WithTx(tx).Record(ctx, Entry{
			Actor:       actor,
			Category:    models.LogLike,
			Description: "Liked a post",
			Subject:     models.PostSubject(postID),
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.activity.Published(ctx, entry)
	return like, nil
}

func (s *LikeService) Unlike(ctx context.Context, actor *models.User, postID uint) (removed bool, err error) {
	ctx, end := observability.StartSpan(ctx, "like_service", "unlike",
		attribute.Int64("post.id", int64(postID)))
	defer func() { end(err) }()

	if actor == nil {
		return false, models.NewAuthenticationError("Unauthenticated.")
	}

	var entry *models.ActivityLog
	err = s.tx.WithinTx(ctx, func(tx *gorm.DB) error {
		n, err := s.likeRepo.WithTx(tx).Delete(ctx, actor.ID, postID)
		if err != nil {
			return err
		}
		if n == 0 {
			return models.NewNotFoundMessage("You have not liked this post.")
		}
		entry, err = s.activity.WithTx(tx).Record(ctx, Entry{
			Actor:       actor,
			Category:    models.LogLike,
			Description: "Unliked a post",
			Subject:     models.PostSubject(postID),
		})
		return err
	})
	if err != nil {
		return false, err
	}

	s.activity.Published(ctx, entry)
	return true, nil
}

// IsLiked reports whether userID currently likes postID.
func (s *LikeService) IsLiked(ctx context.Context, postID, userID uint) (bool, error) {
	return s.likeRepo.Exists(ctx, userID, postID)
}
