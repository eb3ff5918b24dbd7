package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"snapfeed/internal/models"
	"snapfeed/internal/observability"
	"snapfeed/internal/repository"

	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

type CommentService struct {
	commentRepo repository.CommentRepository
	postRepo    repository.PostRepository
	tx          repository.TxRunner
	activity    Recorder
}

type CreateCommentInput struct {
	Actor   *models.User
	PostID  uint
	Content string
}

type UpdateCommentInput struct {
	Actor     *models.User
	CommentID uint
	Content   string
}

type DeleteCommentInput struct {
	Actor     *models.User
	CommentID uint
}

func NewCommentService(
	commentRepo repository.CommentRepository,
	postRepo repository.PostRepository,
	tx repository.TxRunner,
	activity Recorder,
) *CommentService {
	return &CommentService{
		commentRepo: commentRepo,
		postRepo:    postRepo,
		tx:          tx,
		activity:    activity,
	}
}

func validateCommentContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return models.NewValidationError("The content field is required.")
	}
	if utf8.RuneCountInString(content) > models.MaxCommentLength {
		return models.NewValidationError("The content may not be greater than 500 characters.")
	}
	return nil
}

func (s *CommentService) Create(ctx context.Context, in CreateCommentInput) (comment *models.Comment, err error) {
	ctx, end := observability.StartSpan(ctx, "comment_service", "create",
		attribute.Int64("post.id", int64(in.PostID)))
	defer func() { end(err) }()

	if in.Actor == nil {
		return nil, models.NewAuthenticationError("Unauthenticated.")
	}
	if err := validateCommentContent(in.Content); err != nil {
		return nil, err
	}
	exists, err := s.postRepo.Exists(ctx, in.PostID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, models.NewNotFoundError("Post", in.PostID)
	}

	comment = &models.Comment{
		Content: in.Content,
		UserID:  in.Actor.ID,
		PostID:  in.PostID,
	}

	var entry *models.ActivityLog
	err = s.tx.WithinTx(ctx, func(tx *gorm.DB) error {
		comments := s.commentRepo.WithTx(tx)
		if err := comments.Create(ctx, comment); err != nil {
			return err
		}
		loaded, err := comments.GetByID(ctx, comment.ID)
		if err != nil {
			return err
		}
		comment = loaded

		entry, err = s.activity.WithTx(tx).Record(ctx, Entry{
			Actor:       in.Actor,
			Category:    models.LogComment,
			Description: "Commented on a post",
			Subject:     models.CommentSubject(comment.ID),
			Properties:  models.Properties{"post_id": in.PostID},
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.activity.Published(ctx, entry)
	return comment, nil
}

// ListForPost returns the post's comments, newest first.
func (s *CommentService) ListForPost(ctx context.Context, postID uint) ([]*models.Comment, error) {
	exists, err := s.postRepo.Exists(ctx, postID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, models.NewNotFoundError("Post", postID)
	}
	return s.commentRepo.ListByPost(ctx, postID)
}

func (s *CommentService) Update(ctx context.Context, in UpdateCommentInput) (comment *models.Comment, err error) {
	ctx, end := observability.StartSpan(ctx, "comment_service", "update",
		attribute.Int64("comment.id", int64(in.CommentID)))
	defer func() { end(err) }()

	if in.Actor == nil {
		return nil, models.NewAuthenticationError("Unauthenticated.")
	}
	comment, err = s.commentRepo.GetByID(ctx, in.CommentID)
	if err != nil {
		return nil, err
	}
	if err := Authorize(in.Actor.ID, comment, ActionUpdate); err != nil {
		return nil, err
	}
	if err := validateCommentContent(in.Content); err != nil {
		return nil, err
	}

	comment.Content = in.Content

	var entry *models.ActivityLog
	err = s.tx.WithinTx(ctx, func(tx *gorm.DB) error {
		comments := s.commentRepo.WithTx(tx)
		if err := comments.Update(ctx, comment); err != nil {
			return err
		}
		loaded, err := comments.GetByID(ctx, comment.ID)
		if err != nil {
			return err
		}
		comment = loaded

		entry, err = s.activity.WithTx(tx).Record(ctx, Entry{
			Actor:       in.Actor,
			Category:    models.LogComment,
			Description: "Updated comment",
			Subject:     models.CommentSubject(comment.ID),
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.activity.Published(ctx, entry)
	return comment, nil
}

func (s *CommentService) Delete(ctx context.Context, in DeleteCommentInput) (deleted bool, err error) {
	ctx, end := observability.StartSpan(ctx, "comment_service", "delete",
		attribute.Int64("comment.id", int64(in.CommentID)))
	defer func() { end(err) }()

	if in.Actor == nil {
		return false, models.NewAuthenticationError("Unauthenticated.")
	}
	comment, err := s.commentRepo.GetByID(ctx, in.CommentID)
	if err != nil {
		return false, err
	}
	if err := Authorize(in.Actor.ID, comment, ActionDelete); err != nil {
		return false, err
	}

	var entry *models.ActivityLog
	err = s.tx.WithinTx(ctx, func(tx *gorm.DB) error {
		if err := s.commentRepo.WithTx(tx).Delete(ctx, comment.ID); err != nil {
			return err
		}
		var err error
		entry, err = s.activity.WithTx(tx).Record(ctx, Entry{
			Actor:       in.Actor,
			Category:    models.LogComment,
			Description: "Deleted comment",
			Subject:     models.NoSubject,
			Properties:  models.Properties{"comment_id": comment.ID},
		})
		return err
	})
	if err != nil {
		return false, err
	}

	s.activity.Published(ctx, entry)
	return true, nil
}
