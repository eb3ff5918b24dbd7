package seed

import (
	"context"
	"fmt"
	"log"

	"snapfeed/internal/models"
	"snapfeed/internal/repository"
	"snapfeed/internal/service"

	"gorm.io/gorm"
)

// Options configuration for the seeder
type Options struct {
	NumUsers           int
	NumPosts           int
	MaxCommentsPerPost int
	LikeRatio          float64
	ShouldClean        bool
	RandomSeed         int64
	FastHash           bool
}

// DefaultOptions is what cmd/seed uses without flags.
var DefaultOptions = Options{
	NumUsers:           25,
	NumPosts:           100,
	MaxCommentsPerPost: 4,
	LikeRatio:          0.2,
	ShouldClean:        true,
}

// Result summarises what a run created.
type Result struct {
	Users    int
	Posts    int
	Comments int
	Likes    int
}

// Seeder creates users directly and content through the domain services.
type Seeder struct {
	db       *gorm.DB
	opts     Options
	factory  *Factory
	users    repository.UserRepository
	posts    *service.PostService
	comments *service.CommentService
	likes    *service.LikeService
}

// NewSeeder wires the services seeding goes through. Events are not
// published; the activity rows are still written.
func NewSeeder(db *gorm.DB, opts Options) (*Seeder, error) {
	factory, err := NewFactory(opts)
	if err != nil {
		return nil, err
	}
	postRepo := repository.NewPostRepository(db)
	tx := repository.NewTxRunner(db)
	activity := service.NewActivityLogger(repository.NewActivityLogRepository(db), nil)
	return &Seeder{
		db:       db,
		opts:     opts,
		factory:  factory,
		users:    repository.NewUserRepository(db),
		posts:    service.NewPostService(postRepo, tx, activity),
		comments: service.NewCommentService(repository.NewCommentRepository(db), postRepo, tx, activity),
		likes:    service.NewLikeService(repository.NewLikeRepository(db), postRepo, tx, activity),
	}, nil
}

// Seed populates the database with demo data.
func Seed(ctx context.Context, db *gorm.DB, opts Options) (Result, error) {
	s, err := NewSeeder(db, opts)
	if err != nil {
		return Result{}, err
	}
	return s.Run(ctx)
}

// Run executes the seeding plan.
func (s *Seeder) Run(ctx context.Context) (Result, error) {
	var res Result
	log.Printf("🌱 Starting database seeding with %d users and %d posts...", s.opts.NumUsers, s.opts.NumPosts)

	if s.opts.ShouldClean {
		if err := s.ClearAll(); err != nil {
			return res, fmt.Errorf("failed to clear data: %w", err)
		}
	}

	users, err := s.createUsers(ctx, s.opts.NumUsers)
	if err != nil {
		return res, fmt.Errorf("failed to create users: %w", err)
	}
	res.Users = len(users)
	log.Printf("✓ %d users created", res.Users)
	if len(users) == 0 {
		return res, nil
	}

	for i := 0; i < s.opts.NumPosts; i++ {
		author := users[s.factory.Pick(len(users))]
		post, err := s.posts.Create(ctx, service.CreatePostInput{
			Actor:   author,
			Caption: s.factory.Caption(),
			Image:   s.factory.Image(),
		})
		if err != nil {
			return res, fmt.Errorf("failed to create post: %w", err)
		}
		res.Posts++

		comments, likes, err := s.engage(ctx, post, users)
		if err != nil {
			return res, err
		}
		res.Comments += comments
		res.Likes += likes
	}

	log.Printf("✓ %d posts, %d comments, %d likes created", res.Posts, res.Comments, res.Likes)
	log.Println("🎉 Database seeding completed successfully!")
	return res, nil
}

func (s *Seeder) engage(ctx context.Context, post *models.Post, users []*models.User) (int, int, error) {
	comments, likes := 0, 0
	if s.opts.MaxCommentsPerPost > 0 {
		n := s.factory.Pick(s.opts.MaxCommentsPerPost + 1)
		for i := 0; i < n; i++ {
			_, err := s.comments.Create(ctx, service.CreateCommentInput{
				Actor:   users[s.factory.Pick(len(users))],
				PostID:  post.ID,
				Content: s.factory.CommentText(),
			})
			if err != nil {
				return comments, likes, fmt.Errorf("failed to create comment: %w", err)
			}
			comments++
		}
	}
	for _, u := range users {
		if !s.factory.Chance(s.opts.LikeRatio) {
			continue
		}
		if _, err := s.likes.Like(ctx, u, post.ID); err != nil {
			return comments, likes, fmt.Errorf("failed to create like: %w", err)
		}
		likes++
	}
	return comments, likes, nil
}

func (s *Seeder) createUsers(ctx context.Context, count int) ([]*models.User, error) {
	users := make([]*models.User, 0, count)
	for i := 0; i < count; i++ {
		user := s.factory.BuildUser()
		if err := s.users.Create(ctx, user); err != nil {
			if models.IsCode(err, models.CodeDuplicate) {
				log.Printf("skipping duplicate seed user %s", user.Email)
				continue
			}
			return nil, err
		}
		users = append(users, user)
	}
	return users, nil
}

// ClearAll removes all rows the seeder manages.
func (s *Seeder) ClearAll() error {
	log.Println("🗑️  Clearing existing data...")
	if s.db.Dialector.Name() == "postgres" {
		return s.db.Exec(`TRUNCATE TABLE activity_logs, comments, likes, posts, users RESTART IDENTITY CASCADE;`).Error
	}
	for _, table := range []string{"activity_logs", "comments", "likes", "posts", "users"} {
		if err := s.db.Exec("DELETE FROM " + table).Error; err != nil {
			return err
		}
	}
	return nil
}
