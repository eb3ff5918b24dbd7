package service

import (
	"context"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"snapfeed/internal/mailer"
	"snapfeed/internal/models"
	"snapfeed/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"
)

const (
	verificationAudience = "snapfeed-verify"
	verificationTTL      = 60 * time.Minute
)

// Surface selects which URL tree a verification link points into.
type Surface string

const (
	SurfaceAPI Surface = "api"
	SurfaceWeb Surface = "web"
)

// VerificationClaims is the signed part of a verification link.
type VerificationClaims struct {
	Hash string `json:"hash"`
	jwt.RegisteredClaims
}

// VerificationService issues and checks signed email verification links.
type VerificationService struct {
	users    repository.UserRepository
	tx       repository.TxRunner
	activity Recorder
	sender   mailer.VerificationSender
	secret   []byte
	appURL   string
	now      func() time.Time
}

func NewVerificationService(
	users repository.UserRepository,
	tx repository.TxRunner,
	activity Recorder,
	sender mailer.VerificationSender,
	secret string,
	appURL string,
) *VerificationService {
	if sender == nil {
		sender = mailer.LogSender{}
	}
	return &VerificationService{
		users:    users,
		tx:       tx,
		activity: activity,
		sender:   sender,
		secret:   []byte(secret),
		appURL:   appURL,
		now:      time.Now,
	}
}

// EmailHash is the hex sha1 of the address, embedded in verification links.
func EmailHash(email string) string {
	sum := sha1.Sum([]byte(email))
	return hex.EncodeToString(sum[:])
}

// SignedURL builds /{api/}email/verify/{id}/{hash}?signature=... for user.
func (s *VerificationService) SignedURL(user *models.User, surface Surface) (string, error) {
	now := s.now()
	hash := EmailHash(user.Email)
	claims := VerificationClaims{
		Hash: hash,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(user.ID), 10),
			Audience:  jwt.ClaimStrings{verificationAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(verificationTTL)),
		},
	}
	signature, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign verification link: %w", err)
	}

	prefix := ""
	if surface == SurfaceAPI {
		prefix = "/api"
	}
	return fmt.Sprintf("%s%s/email/verify/%d/%s?signature=%s",
		s.appURL, prefix, user.ID, hash, url.QueryEscape(signature)), nil
}

// Send hands a fresh link to the mail sender.
func (s *VerificationService) Send(ctx context.Context, user *models.User, surface Surface) error {
	link, err := s.SignedURL(user, surface)
	if err != nil {
		return models.NewInternalError(err)
	}
	return s.sender.SendVerification(ctx, mailer.VerificationMessage{
		UserID:   user.ID,
		Email:    user.Email,
		Name:     user.Name,
		URL:      link,
		QueuedAt: s.now().UTC(),
	})
}

// sendBestEffort sends and only logs failures.
func (s *VerificationService) sendBestEffort(ctx context.Context, user *models.User, surface Surface) {
	if err := s.Send(ctx, user, surface); err != nil {
		slog.WarnContext(ctx, "failed to send verification email", "user_id", user.ID, "err", err)
	}
}

func (s *VerificationService) checkSignature(id uint, hash, signature string) error {
	invalid := models.NewAuthorizationError("Invalid or expired verification link.")

	var claims VerificationClaims
	token, err := jwt.ParseWithClaims(signature, &claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(verificationAudience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !token.Valid {
		return invalid
	}
	if claims.Subject != strconv.FormatUint(uint64(id), 10) {
		return invalid
	}
	if subtle.ConstantTimeCompare([]byte(claims.Hash), []byte(hash)) != 1 {
		return invalid
	}
	return nil
}

// Verify marks the user's email verified. Repeating it is a no-op that
// reports alreadyVerified and writes no log.
func (s *VerificationService) Verify(ctx context.Context, id uint, hash, signature string) (alreadyVerified bool, err error) {
	if err := s.checkSignature(id, hash, signature); err != nil {
		return false, err
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	if subtle.ConstantTimeCompare([]byte(EmailHash(user.Email)), []byte(hash)) != 1 {
		return false, models.NewAuthorizationError("Invalid or expired verification link.")
	}
	if user.HasVerifiedEmail() {
		return true, nil
	}

	var entry *models.ActivityLog
	changed := false
	err = s.tx.WithinTx(ctx, func(tx *gorm.DB) error {
		var err error
		changed, err = s.users.WithTx(tx).MarkEmailVerified(ctx, user.ID, s.now().UTC())
		if err != nil || !changed {
			return err
		}
		entry, err = s.activity.WithTx(tx).Record(ctx, Entry{
			Actor:       user,
			Category:    models.LogAuth,
			Description: "Email verified",
			Subject:     models.UserSubject(user.ID),
		})
		return err
	})
	if err != nil {
		return false, err
	}
	if !changed {
		return true, nil
	}

	s.activity.Published(ctx, entry)
	return false, nil
}

// Resend issues a new link unless the user is already verified. The web
// surface also records the send.
func (s *VerificationService) Resend(ctx context.Context, user *models.User, surface Surface) (alreadyVerified bool, err error) {
	if user.HasVerifiedEmail() {
		return true, nil
	}
	if err := s.Send(ctx, user, surface); err != nil {
		return false, err
	}
	if surface == SurfaceWeb {
		if err := s.recordSent(ctx, user); err != nil {
			return false, err
		}
	}
	return false, nil
}

func (s *VerificationService) recordSent(ctx context.Context, user *models.User) error {
	entry, err := s.activity.Record(ctx, Entry{
		Actor:       user,
		Category:    models.LogAuth,
		Description: "Email verification sent",
		Subject:     models.UserSubject(user.ID),
		Properties:  models.Properties{"email": user.Email},
	})
	if err != nil {
		return err
	}
	s.activity.Published(ctx, entry)
	return nil
}
