package service

import (
	"context"
	"sort"
	"unicode/utf8"

	"snapfeed/internal/models"
	"snapfeed/internal/observability"
	"snapfeed/internal/repository"
	"snapfeed/internal/validation"

	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

// Page sizes for post listings.
const (
	DefaultFeedPerPage    = 15
	DefaultProfilePerPage = 12
)

type PostService struct {
	postRepo repository.PostRepository
	tx       repository.TxRunner
	activity Recorder
}

type CreatePostInput struct {
	Actor   *models.User
	Caption *string
	Image   string
}

// UpdatePostInput changes only the fields that are non-nil.
type UpdatePostInput struct {
	Actor   *models.User
	PostID  uint
	Caption *string
	Image   *string
}

type DeletePostInput struct {
	Actor  *models.User
	PostID uint
}

type ListPostsInput struct {
	Page     int
	PerPage  int
	ViewerID uint
}

func NewPostService(
	postRepo repository.PostRepository,
	tx repository.TxRunner,
	activity Recorder,
) *PostService {
	return &PostService{
		postRepo: postRepo,
		tx:       tx,
		activity: activity,
	}
}

func validateCaption(caption *string) error {
	if caption != nil && utf8.RuneCountInString(*caption) > models.MaxCaptionLength {
		return models.NewValidationError("The caption may not be greater than 2200 characters.")
	}
	return nil
}

func validateImage(image string) error {
	if _, err := validation.ValidateEncodedImage(image); err != nil {
		return models.NewValidationError("The " + err.Error() + ".")
	}
	return nil
}

func (s *PostService) Create(ctx context.Context, in CreatePostInput) (post *models.Post, err error) {
	ctx, end := observability.StartSpan(ctx, "post_service", "create")
	defer func() { end(err) }()

	if in.Actor == nil {
		return nil, models.NewAuthenticationError("Unauthenticated.")
	}
	if err := validateCaption(in.Caption); err != nil {
		return nil, err
	}
	if err := validateImage(in.Image); err != nil {
		return nil, err
	}

	post = &models.Post{
		UserID:  in.Actor.ID,
		Caption: in.Caption,
		Image:   in.Image,
	}

	var entry *models.ActivityLog
	err = s.tx.WithinTx(ctx, func(tx *gorm.DB) error {
		posts := s.postRepo.WithTx(tx)
		if err := posts.Create(ctx, post); err != nil {
			return err
		}
		loaded, err := posts.GetByID(ctx, post.ID, in.Actor.ID)
		if err != nil {
			return err
		}
		post = loaded

		entry, err = s.activity.WithTx(tx).Record(ctx, Entry{
			Actor:       in.Actor,
			Category:    models.LogPost,
			Description: "Created a new post",
			Subject:     models.PostSubject(post.ID),
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.activity.Published(ctx, entry)
	return post, nil
}

func (s *PostService) Update(ctx context.Context, in UpdatePostInput) (post *models.Post, err error) {
	ctx, end := observability.StartSpan(ctx, "post_service", "update",
		attribute.Int64("post.id", int64(in.PostID)))
	defer func() { end(err) }()

	if in.Actor == nil {
		return nil, models.NewAuthenticationError("Unauthenticated.")
	}
	post, err = s.postRepo.GetByID(ctx, in.PostID, in.Actor.ID)
	if err != nil {
		return nil, err
	}
	if err := Authorize(in.Actor.ID, post, ActionUpdate); err != nil {
		return nil, err
	}

	var fields []string
	if in.Caption != nil {
		if err := validateCaption(in.Caption); err != nil {
			return nil, err
		}
		post.Caption = in.Caption
		fields = append(fields, "caption")
	}
	if in.Image != nil {
		if err := validateImage(*in.Image); err != nil {
			return nil, err
		}
		post.Image = *in.Image
		fields = append(fields, "image")
	}
	sort.Strings(fields)

	var entry *models.ActivityLog
	err = s.tx.WithinTx(ctx, func(tx *gorm.DB) error {
		posts := s.postRepo.WithTx(tx)
		if err := posts.Update(ctx, post, fields); err != nil {
			return err
		}
		loaded, err := posts.GetByID(ctx, post.ID, in.Actor.ID)
		if err != nil {
			return err
		}
		post = loaded

		updated := fields
		if updated == nil {
			updated = []string{}
		}
		entry, err = s.activity.WithTx(tx).Record(ctx, Entry{
			Actor:       in.Actor,
			Category:    models.LogPost,
			Description: "Updated post",
			Subject:     models.PostSubject(post.ID),
			Properties:  models.Properties{"updated_fields": updated},
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.activity.Published(ctx, entry)
	return post, nil
}

// Delete removes the post together with its likes and comments.
func (s *PostService) Delete(ctx context.Context, in DeletePostInput) (deleted bool, err error) {
	ctx, end := observability.StartSpan(ctx, "post_service", "delete",
		attribute.Int64("post.id", int64(in.PostID)))
	defer func() { end(err) }()

	if in.Actor == nil {
		return false, models.NewAuthenticationError("Unauthenticated.")
	}
	post, err := s.postRepo.GetByID(ctx, in.PostID, 0)
	if err != nil {
		return false, err
	}
	if err := Authorize(in.Actor.ID, post, ActionDelete); err != nil {
		return false, err
	}

	var entry *models.ActivityLog
	err = s.tx.WithinTx(ctx, func(tx *gorm.DB) error {
		if err := s.postRepo.WithTx(tx).DeleteCascade(ctx, post.ID); err != nil {
			return err
		}
		var err error
		entry, err = s.activity.WithTx(tx).Record(ctx, Entry{
			Actor:       in.Actor,
			Category:    models.LogPost,
			Description: "Deleted post",
			Subject:     models.NoSubject,
			Properties:  models.Properties{"post_id": post.ID},
		})
		return err
	})
	if err != nil {
		return false, err
	}

	s.activity.Published(ctx, entry)
	return true, nil
}

// List returns the feed, newest first, annotated for the viewer.
func (s *PostService) List(ctx context.Context, in ListPostsInput) (models.Page[*models.Post], error) {
	page, perPage := models.NormalizePage(in.Page, in.PerPage, DefaultFeedPerPage, 100)
	posts, total, err := s.postRepo.List(ctx, perPage, models.Offset(page, perPage), in.ViewerID)
	if err != nil {
		return models.Page[*models.Post]{}, err
	}
	return models.Page[*models.Post]{Items: posts, Pagination: models.NewPagination(page, perPage, total)}, nil
}

// Get returns one post with its comments, newest first.
func (s *PostService) Get(ctx context.Context, id uint, viewerID uint) (*models.Post, error) {
	return s.postRepo.GetWithComments(ctx, id, viewerID)
}

// Find returns one post without comments.
func (s *PostService) Find(ctx context.Context, id uint, viewerID uint) (*models.Post, error) {
	return s.postRepo.GetByID(ctx, id, viewerID)
}

func (s *PostService) ListByUser(ctx context.Context, userID uint, page, perPage int, viewerID uint) (models.Page[*models.Post], error) {
	page, perPage = models.NormalizePage(page, perPage, DefaultProfilePerPage, 100)
	posts, total, err := s.postRepo.ListByUser(ctx, userID, perPage, models.Offset(page, perPage), viewerID)
	if err != nil {
		return models.Page[*models.Post]{}, err
	}
	return models.Page[*models.Post]{Items: posts, Pagination: models.NewPagination(page, perPage, total)}, nil
}
