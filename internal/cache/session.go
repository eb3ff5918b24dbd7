package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrSessionStoreUnavailable is returned when no Redis client is configured.
var ErrSessionStoreUnavailable = errors.New("session store unavailable")

// Session is server-side state for a browser, keyed by an opaque id held in a cookie.
type Session struct {
	ID        string            `json:"id"`
	UserID    uint              `json:"user_id"`
	Remember  bool              `json:"remember"`
	Flash     map[string]string `json:"flash,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	ExpiresAt time.Time         `json:"expires_at"`
}

// Authenticated reports whether a user is bound to the session.
func (s *Session) Authenticated() bool {
	return s != nil && s.UserID != 0
}

// SetFlash stores a one-shot message for the next page view.
func (s *Session) SetFlash(key, message string) {
	if s.Flash == nil {
		s.Flash = make(map[string]string)
	}
	s.Flash[key] = message
}

// TakeFlash returns and clears all flash messages.
func (s *Session) TakeFlash() map[string]string {
	flash := s.Flash
	s.Flash = nil
	return flash
}

// SessionStore keeps sessions in Redis as JSON with a per-session TTL.
type SessionStore struct {
	rdb *redis.Client
	now func() time.Time
}

// NewSessionStore returns a store backed by rdb.
func NewSessionStore(rdb *redis.Client) *SessionStore {
	return &SessionStore{rdb: rdb, now: time.Now}
}

// Create issues a new session with a fresh random id.
func (s *SessionStore) Create(ctx context.Context, userID uint, ttl time.Duration, remember bool) (*Session, error) {
	if s.rdb == nil {
		return nil, ErrSessionStoreUnavailable
	}
	now := s.now()
	sess := &Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		Remember:  remember,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	if err := s.write(ctx, sess, ttl); err != nil {
		return nil, err
	}
	return sess, nil
}

// Get loads a session. A missing or expired id returns (nil, nil).
func (s *SessionStore) Get(ctx context.Context, id string) (*Session, error) {
	if s.rdb == nil {
		return nil, ErrSessionStoreUnavailable
	}
	if id == "" {
		return nil, nil
	}
	raw, err := s.rdb.Get(ctx, SessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var sess Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

// Save persists changes to an existing session without extending its lifetime.
func (s *SessionStore) Save(ctx context.Context, sess *Session) error {
	if s.rdb == nil {
		return ErrSessionStoreUnavailable
	}
	ttl := sess.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return s.Destroy(ctx, sess.ID)
	}
	return s.write(ctx, sess, ttl)
}

// Destroy removes a session. Destroying an unknown id is not an error.
func (s *SessionStore) Destroy(ctx context.Context, id string) error {
	if s.rdb == nil {
		return ErrSessionStoreUnavailable
	}
	if id == "" {
		return nil
	}
	return s.rdb.Del(ctx, SessionKey(id)).Err()
}

func (s *SessionStore) write(ctx context.Context, sess *Session, ttl time.Duration) error {
	b, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, SessionKey(sess.ID), b, ttl).Err()
}
