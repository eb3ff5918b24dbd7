package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"snapfeed/internal/cache"
	"snapfeed/internal/models"
	"snapfeed/internal/repository"
	"snapfeed/internal/validation"

	"gorm.io/gorm"
)

// Session lifetimes used when the config does not override them.
const (
	DefaultSessionTTL         = 2 * time.Hour
	DefaultSessionRememberTTL = 30 * 24 * time.Hour
)

type WebRegisterInput struct {
	Name     string
	Username string
	Email    string
	Password string
}

type WebLoginInput struct {
	Email    string
	Password string
	Remember bool
}

// WebAuthService implements cookie-session authentication for the web
// surface. Unlike AuthService it lets unverified users sign in.
type WebAuthService struct {
	users        repository.UserRepository
	tx           repository.TxRunner
	activity     Recorder
	verification *VerificationService
	sessions     *cache.SessionStore
	ttl          time.Duration
	rememberTTL  time.Duration
}

func NewWebAuthService(
	users repository.UserRepository,
	tx repository.TxRunner,
	activity Recorder,
	verification *VerificationService,
	sessions *cache.SessionStore,
	ttl, rememberTTL time.Duration,
) *WebAuthService {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if rememberTTL <= 0 {
		rememberTTL = DefaultSessionRememberTTL
	}
	return &WebAuthService{
		users:        users,
		tx:           tx,
		activity:     activity,
		verification: verification,
		sessions:     sessions,
		ttl:          ttl,
		rememberTTL:  rememberTTL,
	}
}

// Register creates the account, sends the verification link and signs the
// new user in on a fresh session.
func (s *WebAuthService) Register(ctx context.Context, in WebRegisterInput, currentSessionID string) (*models.User, *cache.Session, error) {
	email, err := validateRegistration(in.Name, in.Email, in.Password)
	if err != nil {
		return nil, nil, err
	}
	if err := validation.ValidateUsername(in.Username); err != nil {
		return nil, nil, models.NewValidationError(err.Error())
	}
	if err := ensureEmailFree(ctx, s.users, email); err != nil {
		return nil, nil, err
	}
	taken, err := s.users.GetByUsername(ctx, in.Username)
	if err != nil {
		return nil, nil, err
	}
	if taken != nil {
		return nil, nil, models.NewValidationError("The username has already been taken.")
	}
	hashed, err := hashPassword(in.Password)
	if err != nil {
		return nil, nil, err
	}

	username := in.Username
	user := &models.User{
		Name:     trimmedName(in.Name),
		Username: &username,
		Email:    email,
		Password: hashed,
	}

	var entry *models.ActivityLog
	err = s.tx.WithinTx(ctx, func(tx *gorm.DB) error {
		if err := s.users.WithTx(tx).Create(ctx, user); err != nil {
			if models.IsCode(err, models.CodeDuplicate) {
				return models.NewValidationError("The email or username has already been taken.")
			}
			return err
		}
		var err error
		entry, err = s.activity.WithTx(tx).Record(ctx, Entry{
			Actor:       user,
			Category:    models.LogAuth,
			Description: "User registered via web",
			Subject:     models.UserSubject(user.ID),
			Properties:  models.Properties{"email": user.Email},
		})
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	s.activity.Published(ctx, entry)

	if err := s.SendVerificationEmail(ctx, user); err != nil {
		slog.WarnContext(ctx, "failed to send verification email", "user_id", user.ID, "err", err)
	}

	sess, err := s.rotate(ctx, user.ID, currentSessionID, false)
	if err != nil {
		return nil, nil, err
	}
	return user, sess, nil
}

// Login authenticates and rotates the session id.
func (s *WebAuthService) Login(ctx context.Context, in WebLoginInput, currentSessionID string) (*models.User, *cache.Session, error) {
	user, err := authenticate(ctx, s.users, in.Email, in.Password)
	if err != nil {
		return nil, nil, err
	}

	sess, err := s.rotate(ctx, user.ID, currentSessionID, in.Remember)
	if err != nil {
		return nil, nil, err
	}

	entry, err := s.activity.Record(ctx, Entry{
		Actor:       user,
		Category:    models.LogAuth,
		Description: "User logged in via web",
		Subject:     models.UserSubject(user.ID),
	})
	if err != nil {
		_ = s.sessions.Destroy(ctx, sess.ID)
		return nil, nil, err
	}
	s.activity.Published(ctx, entry)

	return user, sess, nil
}

// Logout records the logout while the user is still known, then drops the
// session.
func (s *WebAuthService) Logout(ctx context.Context, user *models.User, sessionID string) error {
	entry, err := s.activity.Record(ctx, Entry{
		Actor:       user,
		Category:    models.LogAuth,
		Description: "User logged out via web",
		Subject:     models.UserSubject(user.ID),
	})
	if err != nil {
		return err
	}
	s.activity.Published(ctx, entry)

	if err := s.sessions.Destroy(ctx, sessionID); err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// SendVerificationEmail sends the link and records that it was sent.
func (s *WebAuthService) SendVerificationEmail(ctx context.Context, user *models.User) error {
	if s.verification == nil {
		return nil
	}
	if err := s.verification.Send(ctx, user, SurfaceWeb); err != nil {
		return err
	}
	return s.verification.recordSent(ctx, user)
}

// Session loads the session behind a cookie value. A missing or expired
// session returns (nil, nil).
func (s *WebAuthService) Session(ctx context.Context, id string) (*cache.Session, error) {
	if id == "" {
		return nil, nil
	}
	sess, err := s.sessions.Get(ctx, id)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return sess, nil
}

// SaveSession persists flash and other session changes.
func (s *WebAuthService) SaveSession(ctx context.Context, sess *cache.Session) error {
	if err := s.sessions.Save(ctx, sess); err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// GuestSession returns a session not bound to any user, for carrying flash
// messages to anonymous visitors.
func (s *WebAuthService) GuestSession(ctx context.Context) (*cache.Session, error) {
	sess, err := s.sessions.Create(ctx, 0, s.ttl, false)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return sess, nil
}

// User loads the account bound to sess.
func (s *WebAuthService) User(ctx context.Context, sess *cache.Session) (*models.User, error) {
	if !sess.Authenticated() {
		return nil, models.NewAuthenticationError("Unauthenticated.")
	}
	return s.users.GetByID(ctx, sess.UserID)
}

// rotate destroys any pre-existing session and issues a new id so a
// session fixed before login cannot be reused.
func (s *WebAuthService) rotate(ctx context.Context, userID uint, currentSessionID string, remember bool) (*cache.Session, error) {
	if currentSessionID != "" {
		if err := s.sessions.Destroy(ctx, currentSessionID); err != nil && !errors.Is(err, cache.ErrSessionStoreUnavailable) {
			return nil, models.NewInternalError(err)
		}
	}
	ttl := s.ttl
	if remember {
		ttl = s.rememberTTL
	}
	sess, err := s.sessions.Create(ctx, userID, ttl, remember)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return sess, nil
}
