package service

import (
	"context"
	"strings"
	"testing"

	"snapfeed/internal/models"
	"snapfeed/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfileService_Update(t *testing.T) {
	env := newTestEnv(t)
	svc := NewProfileService(env.users)
	user := testutil.CreateUser(t, env.db, "Ada", "ada@example.com", true)
	ctx := context.Background()
	image := testutil.PNGDataURI(t, 2, 2)

	updated, err := svc.Update(ctx, UpdateProfileInput{
		UserID:       user.ID,
		Name:         "  Ada Lovelace ",
		Bio:          ptr("analyst"),
		ProfileImage: &image,
	})
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", updated.Name)
	assert.Equal(t, "analyst", updated.Bio)
	assert.Equal(t, image, updated.ProfileImage)

	// nil fields are left alone
	updated, err = svc.Update(ctx, UpdateProfileInput{UserID: user.ID, Name: "Ada"})
	require.NoError(t, err)
	assert.Equal(t, "analyst", updated.Bio)

	byEmail, err := env.users.GetByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.Password, byEmail.Password)
	assert.Zero(t, testutil.CountLogs(t, env.db, ""))
}

func TestProfileService_UpdateValidation(t *testing.T) {
	env := newTestEnv(t)
	svc := NewProfileService(env.users)
	user := testutil.CreateUser(t, env.db, "Ada", "ada@example.com", true)
	ctx := context.Background()

	tests := []struct {
		name string
		in   UpdateProfileInput
	}{
		{name: "blank name", in: UpdateProfileInput{UserID: user.ID, Name: " "}},
		{name: "long bio", in: UpdateProfileInput{UserID: user.ID, Name: "Ada", Bio: ptr(strings.Repeat("b", 501))}},
		{name: "bad image", in: UpdateProfileInput{UserID: user.ID, Name: "Ada", ProfileImage: ptr("nope")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Update(ctx, tt.in)
			assert.True(t, models.IsCode(err, models.CodeValidation), "got %v", err)
		})
	}

	_, err := svc.Update(ctx, UpdateProfileInput{UserID: 999, Name: "Ghost"})
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}
