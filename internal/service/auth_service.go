package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"snapfeed/internal/cache"
	"snapfeed/internal/middleware"
	"snapfeed/internal/models"
	"snapfeed/internal/observability"
	"snapfeed/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Token claims constants.
const (
	TokenIssuer   = "snapfeed-api"
	TokenAudience = "snapfeed-client"
	TokenTTL      = 7 * 24 * time.Hour
)

// Claims are the registered JWT claims carried by access tokens.
type Claims struct {
	jwt.RegisteredClaims
}

// UserID returns the numeric subject.
func (c *Claims) UserID() (uint, error) {
	id, err := strconv.ParseUint(c.Subject, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid subject %q: %w", c.Subject, err)
	}
	return uint(id), nil
}

type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

type LoginInput struct {
	Email    string
	Password string
}

// AuthResult is a user together with a freshly issued access token.
type AuthResult struct {
	User      *models.User
	Token     string
	ExpiresAt time.Time
}

// AuthService implements bearer-token authentication for the JSON API.
type AuthService struct {
	users        repository.UserRepository
	tx           repository.TxRunner
	activity     Recorder
	verification *VerificationService
	blacklist    *cache.Blacklist
	secret       []byte
	now          func() time.Time
}

func NewAuthService(
	users repository.UserRepository,
	tx repository.TxRunner,
	activity Recorder,
	verification *VerificationService,
	blacklist *cache.Blacklist,
	secret string,
) *AuthService {
	return &AuthService{
		users:        users,
		tx:           tx,
		activity:     activity,
		verification: verification,
		blacklist:    blacklist,
		secret:       []byte(secret),
		now:          time.Now,
	}
}

// Register creates an unverified account and sends the verification link.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	email, err := validateRegistration(in.Name, in.Email, in.Password)
	if err != nil {
		return nil, err
	}
	if err := ensureEmailFree(ctx, s.users, email); err != nil {
		return nil, err
	}
	hashed, err := hashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Name:     trimmedName(in.Name),
		Email:    email,
		Password: hashed,
	}

	var entry *models.ActivityLog
	err = s.tx.WithinTx(ctx, func(tx *gorm.DB) error {
		if err := s.users.WithTx(tx).Create(ctx, user); err != nil {
			return mapDuplicateUser(err)
		}
		var err error
		entry, err = s.activity.WithTx(tx).Record(ctx, Entry{
			Actor:       user,
			Category:    models.LogAuth,
			Description: "User registered",
			Subject:     models.UserSubject(user.ID),
			Properties:  models.Properties{"email": user.Email},
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	s.activity.Published(ctx, entry)

	if s.verification != nil {
		s.verification.sendBestEffort(ctx, user, SurfaceAPI)
	}

	token, expiresAt, err := s.issueToken(user.ID)
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: user, Token: token, ExpiresAt: expiresAt}, nil
}

// Login checks credentials and requires a verified email.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	user, err := authenticate(ctx, s.users, in.Email, in.Password)
	if err != nil {
		if models.IsCode(err, models.CodeAuthentication) {
			observability.AuthFailures.WithLabelValues("bad_credentials").Inc()
		}
		return nil, err
	}
	if !user.HasVerifiedEmail() {
		observability.AuthFailures.WithLabelValues("unverified").Inc()
		return nil, models.NewAuthenticationError("Please verify your email before logging in.")
	}

	token, expiresAt, err := s.issueToken(user.ID)
	if err != nil {
		return nil, err
	}

	entry, err := s.activity.Record(ctx, Entry{
		Actor:       user,
		Category:    models.LogAuth,
		Description: "User logged in",
		Subject:     models.UserSubject(user.ID),
	})
	if err != nil {
		return nil, err
	}
	s.activity.Published(ctx, entry)

	return &AuthResult{User: user, Token: token, ExpiresAt: expiresAt}, nil
}

// Logout revokes the presented token until it would have expired.
func (s *AuthService) Logout(ctx context.Context, user *models.User, jti string, expiresAt time.Time) error {
	if err := s.blacklist.Revoke(ctx, jti, expiresAt); err != nil {
		return models.NewInternalError(fmt.Errorf("revoke token: %w", err))
	}

	entry, err := s.activity.Record(ctx, Entry{
		Actor:       user,
		Category:    models.LogAuth,
		Description: "User logged out",
		Subject:     models.UserSubject(user.ID),
	})
	if err != nil {
		return err
	}
	s.activity.Published(ctx, entry)
	return nil
}

// CurrentUser loads the authenticated user.
func (s *AuthService) CurrentUser(ctx context.Context, id uint) (*models.User, error) {
	return s.users.GetByID(ctx, id)
}

func (s *AuthService) issueToken(userID uint) (string, time.Time, error) {
	if len(s.secret) == 0 {
		return "", time.Time{}, models.NewInternalError(fmt.Errorf("JWT secret not configured"))
	}

	now := s.now()
	expiresAt := now.Add(TokenTTL)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(userID), 10),
			Issuer:    TokenIssuer,
			Audience:  jwt.ClaimStrings{TokenAudience},
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        generateJTI(now),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, models.NewInternalError(err)
	}
	return signed, expiresAt, nil
}

// generateJTI creates a unique JWT ID.
func generateJTI(now time.Time) string {
	return fmt.Sprintf("%d-%s", now.Unix(), uuid.New().String()[:8])
}

// ParseToken validates signature, issuer, audience and expiry, then checks
// the revocation list. A Redis failure does not reject the token.
func (s *AuthService) ParseToken(ctx context.Context, raw string) (*Claims, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	},
		jwt.WithIssuer(TokenIssuer),
		jwt.WithAudience(TokenAudience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !token.Valid {
		return nil, models.NewAuthenticationError("Invalid or expired token")
	}

	revoked, err := s.blacklist.IsRevoked(ctx, claims.ID)
	if err != nil {
		slog.WarnContext(ctx, "blacklist lookup failed", "err", err)
	}
	if revoked {
		return nil, models.NewAuthenticationError("Token has been revoked")
	}
	return &claims, nil
}

// VerifyToken adapts ParseToken to the middleware.TokenVerifier interface.
func (s *AuthService) VerifyToken(ctx context.Context, raw string) (middleware.Identity, error) {
	claims, err := s.ParseToken(ctx, raw)
	if err != nil {
		return middleware.Identity{}, err
	}
	userID, err := claims.UserID()
	if err != nil {
		return middleware.Identity{}, models.NewAuthenticationError("Invalid user ID in token")
	}
	identity := middleware.Identity{UserID: userID, TokenID: claims.ID}
	if claims.ExpiresAt != nil {
		identity.ExpiresAt = claims.ExpiresAt.Time
	}
	return identity, nil
}
