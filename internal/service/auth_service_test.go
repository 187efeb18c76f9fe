package service

import (
	"context"
	"testing"
	"time"

	"lms_backend/internal/config"
	"lms_backend/internal/model"
	"lms_backend/internal/repository"
	"lms_backend/internal/testutil"
	"lms_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndLogin(t *testing.T) {
	db := testutil.DB(t)
	cfg := &config.Config{JWT: config.JWTConfig{Secret: "test-secret", ExpireTime: time.Hour}}
	s := NewAuthService(repository.NewUserRepository(db), cfg)
	ctx := context.Background()

	user, err := s.Register(ctx, "Ada", " Ada@Example.com ", "s3cret-pass")
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", user.Email)
	assert.Equal(t, model.Student, user.Role)
	assert.NotEqual(t, "s3cret-pass", user.Password)

	_, err = s.Register(ctx, "Ada", "ada@example.com", "other")
	assert.ErrorIs(t, err, util.ErrEmailRegistered)

	token, logged, err := s.Login(ctx, "ada@example.com", "s3cret-pass")
	require.NoError(t, err)
	assert.NotNil(t, logged.LastLogin)
	claims, err := util.ParseJWT(token, "test-secret")
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)

	_, _, err = s.Login(ctx, "ada@example.com", "wrong")
	assert.ErrorIs(t, err, util.ErrInvalidCredentials)
	_, _, err = s.Login(ctx, "nobody@example.com", "x")
	assert.ErrorIs(t, err, util.ErrInvalidCredentials)

	require.NoError(t, s.UserRepo.SetDisabled(ctx, user.ID, true))
	_, _, err = s.Login(ctx, "ada@example.com", "s3cret-pass")
	assert.ErrorIs(t, err, util.ErrUserDisabled)
}

func TestChangePassword(t *testing.T) {
	db := testutil.DB(t)
	cfg := &config.Config{JWT: config.JWTConfig{Secret: "test-secret", ExpireTime: time.Hour}}
	s := NewAuthService(repository.NewUserRepository(db), cfg)
	ctx := context.Background()

	user, err := s.Register(ctx, "Ada", "ada@example.com", "old-pass")
	require.NoError(t, err)

	assert.ErrorIs(t, s.ChangePassword(ctx, user.ID, "bad", "new-pass"), util.ErrInvalidCredentials)
	require.NoError(t, s.ChangePassword(ctx, user.ID, "old-pass", "new-pass"))

	_, _, err = s.Login(ctx, "ada@example.com", "new-pass")
	assert.NoError(t, err)
}
