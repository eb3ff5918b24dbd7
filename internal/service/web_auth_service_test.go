package service

import (
	"context"
	"testing"
	"time"

	"snapfeed/internal/cache"
	"snapfeed/internal/models"
	"snapfeed/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func registerWebUser(t *testing.T, env *testEnv, svc *WebAuthService) *models.User {
	t.Helper()
	user, _, err := svc.Register(context.Background(), WebRegisterInput{
		Name:     "Ada",
		Username: "ada",
		Email:    "ada@example.com",
		Password: "Secret123!",
	}, "")
	require.NoError(t, err)
	return user
}

func TestWebAuthService_Register(t *testing.T) {
	env := newTestEnv(t)
	svc := env.webAuthService()
	ctx := context.Background()

	guest, err := svc.GuestSession(ctx)
	require.NoError(t, err)

	user, sess, err := svc.Register(ctx, WebRegisterInput{
		Name:     "Ada",
		Username: "ada",
		Email:    "ada@example.com",
		Password: "Secret123!",
	}, guest.ID)
	require.NoError(t, err)
	assert.Equal(t, user.ID, sess.UserID)
	assert.NotEqual(t, guest.ID, sess.ID)
	assert.Equal(t, "ada", user.DisplayUsername())

	old, err := svc.Session(ctx, guest.ID)
	require.NoError(t, err)
	assert.Nil(t, old, "the pre-registration session is destroyed")

	var descriptions []string
	require.NoError(t, env.db.Model(&models.ActivityLog{}).Order("id").Pluck("description", &descriptions).Error)
	assert.Equal(t, []string{"User registered via web", "Email verification sent"}, descriptions)

	sent := env.sender.sent()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].URL, "http://snapfeed.test/email/verify/")
}

func TestWebAuthService_RegisterRejectsTakenUsername(t *testing.T) {
	env := newTestEnv(t)
	svc := env.webAuthService()
	registerWebUser(t, env, svc)

	_, _, err := svc.Register(context.Background(), WebRegisterInput{
		Name:     "Other",
		Username: "ada",
		Email:    "other@example.com",
		Password: "Secret123!",
	}, "")
	assert.EqualError(t, err, "The username has already been taken.")

	_, _, err = svc.Register(context.Background(), WebRegisterInput{
		Name:     "Other",
		Username: "-bad",
		Email:    "other@example.com",
		Password: "Secret123!",
	}, "")
	assert.True(t, models.IsCode(err, models.CodeValidation))
}

func TestWebAuthService_LoginAllowsUnverified(t *testing.T) {
	env := newTestEnv(t)
	svc := env.webAuthService()
	user := registerWebUser(t, env, svc)
	require.False(t, user.HasVerifiedEmail())
	ctx := context.Background()

	prior, err := svc.GuestSession(ctx)
	require.NoError(t, err)

	got, sess, err := svc.Login(ctx, WebLoginInput{Email: "ada@example.com", Password: "Secret123!"}, prior.ID)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
	assert.NotEqual(t, prior.ID, sess.ID)
	assert.WithinDuration(t, time.Now().Add(DefaultSessionTTL), sess.ExpiresAt, time.Minute)
	assert.Equal(t, "User logged in via web", env.lastLog(t).Description)

	old, err := svc.Session(ctx, prior.ID)
	require.NoError(t, err)
	assert.Nil(t, old)

	loaded, err := svc.User(ctx, sess)
	require.NoError(t, err)
	assert.Equal(t, user.ID, loaded.ID)
}

func TestWebAuthService_LoginRemember(t *testing.T) {
	env := newTestEnv(t)
	svc := env.webAuthService()
	registerWebUser(t, env, svc)
	ctx := context.Background()

	_, sess, err := svc.Login(ctx, WebLoginInput{Email: "ada@example.com", Password: "Secret123!", Remember: true}, "")
	require.NoError(t, err)
	assert.True(t, sess.Remember)
	assert.WithinDuration(t, time.Now().Add(DefaultSessionRememberTTL), sess.ExpiresAt, time.Minute)
	assert.Greater(t, env.rdb.TTL(ctx, cache.SessionKey(sess.ID)).Val(), 29*24*time.Hour)
}

func TestWebAuthService_LoginWrongPassword(t *testing.T) {
	env := newTestEnv(t)
	svc := env.webAuthService()
	registerWebUser(t, env, svc)
	before := testutil.CountLogs(t, env.db, "")

	_, sess, err := svc.Login(context.Background(), WebLoginInput{Email: "ada@example.com", Password: "nope12345"}, "")
	assert.Nil(t, sess)
	assert.EqualError(t, err, "The provided credentials are incorrect.")
	assert.Equal(t, before, testutil.CountLogs(t, env.db, ""))
}

func TestWebAuthService_LogoutLogsThenDestroys(t *testing.T) {
	env := newTestEnv(t)
	svc := env.webAuthService()
	registerWebUser(t, env, svc)
	ctx := context.Background()

	user, sess, err := svc.Login(ctx, WebLoginInput{Email: "ada@example.com", Password: "Secret123!"}, "")
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, user, sess.ID))

	log := env.lastLog(t)
	assert.Equal(t, "User logged out via web", log.Description)
	require.NotNil(t, log.UserID)
	assert.Equal(t, user.ID, *log.UserID)

	gone, err := svc.Session(ctx, sess.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestWebAuthService_SessionFlash(t *testing.T) {
	env := newTestEnv(t)
	svc := env.webAuthService()
	ctx := context.Background()

	sess, err := svc.GuestSession(ctx)
	require.NoError(t, err)
	assert.False(t, sess.Authenticated())

	sess.SetFlash("status", "verification-link-sent")
	require.NoError(t, svc.SaveSession(ctx, sess))

	loaded, err := svc.Session(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"status": "verification-link-sent"}, loaded.TakeFlash())
	assert.Empty(t, loaded.Flash)

	empty, err := svc.Session(ctx, "")
	assert.NoError(t, err)
	assert.Nil(t, empty)

	_, err = svc.User(ctx, sess)
	assert.True(t, models.IsCode(err, models.CodeAuthentication))
}
