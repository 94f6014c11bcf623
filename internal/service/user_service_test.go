package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/antonrybalko/wfm-mbaas-go/internal/auth"
	"github.com/antonrybalko/wfm-mbaas-go/internal/domain"
	"github.com/antonrybalko/wfm-mbaas-go/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// setupTestService creates a UserService over an in-memory repository
func setupTestService(t *testing.T) (*UserService, *repository.MemoryUserRepository, *auth.Sessions) {
	logger, _ := zap.NewDevelopment()
	sugar := logger.Sugar()

	repo := repository.NewMemoryUserRepository()
	sessions, err := auth.NewSessions(auth.Config{Secret: "service-secret", TTL: time.Hour}, sugar)
	require.NoError(t, err)

	return NewUserService(repo, sessions, sugar), repo, sessions
}

func testSeed() *domain.UserSeed {
	return &domain.UserSeed{
		Users: []domain.SeedUser{
			{ID: "rkX1fdSH", Username: "trever", Name: "Trever Smith", Password: "123"},
			{Username: "daisy", Name: "Daisy Dialer", Password: "456"},
		},
	}
}

func TestSeed(t *testing.T) {
	service, repo, _ := setupTestService(t)
	ctx := context.Background()

	n, err := service.Seed(ctx, testSeed())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, repo.SaveCalls())

	user, err := repo.GetUser(ctx, "rkX1fdSH")
	require.NoError(t, err)
	assert.NotEqual(t, "123", user.Password, "password must be stored hashed")
	assert.NoError(t, auth.CheckPassword(user.Password, "123"))

	daisy, err := repo.GetUserByUsername(ctx, "daisy")
	require.NoError(t, err)
	assert.NotEmpty(t, daisy.ID, "missing ids are generated")

	t.Run("NilSeed", func(t *testing.T) {
		n, err := service.Seed(ctx, nil)
		assert.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("Reseeding", func(t *testing.T) {
		_, err := service.Seed(ctx, &domain.UserSeed{Users: testSeed().Users[:1]})
		require.NoError(t, err)

		users, err := service.ListUsers(ctx)
		require.NoError(t, err)
		assert.Len(t, users, 2)
	})
}

func TestGetUser(t *testing.T) {
	service, _, _ := setupTestService(t)
	ctx := context.Background()
	_, err := service.Seed(ctx, testSeed())
	require.NoError(t, err)

	user, err := service.GetUser(ctx, "rkX1fdSH")
	require.NoError(t, err)
	assert.Equal(t, "trever", user.Username)

	_, err = service.GetUser(ctx, "missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestAuthenticate(t *testing.T) {
	service, _, sessions := setupTestService(t)
	ctx := context.Background()
	_, err := service.Seed(ctx, testSeed())
	require.NoError(t, err)

	t.Run("Success", func(t *testing.T) {
		user, token, expiresAt, err := service.Authenticate(ctx, domain.Credentials{Username: "trever", Password: "123"})
		require.NoError(t, err)
		assert.Equal(t, "rkX1fdSH", user.ID)
		assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, time.Minute)

		claims, err := sessions.Verify(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, "rkX1fdSH", claims.Subject)
		assert.Equal(t, "trever", claims.Username)
	})

	t.Run("WrongPassword", func(t *testing.T) {
		_, _, _, err := service.Authenticate(ctx, domain.Credentials{Username: "trever", Password: "nope"})
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("UnknownUser", func(t *testing.T) {
		_, _, _, err := service.Authenticate(ctx, domain.Credentials{Username: "ghost", Password: "123"})
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("EmptyCredentials", func(t *testing.T) {
		_, _, _, err := service.Authenticate(ctx, domain.Credentials{})
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})
}

func TestSessions(t *testing.T) {
	service, _, _ := setupTestService(t)
	ctx := context.Background()
	_, err := service.Seed(ctx, testSeed())
	require.NoError(t, err)

	_, token, _, err := service.Authenticate(ctx, domain.Credentials{Username: "daisy", Password: "456"})
	require.NoError(t, err)

	user, err := service.VerifySession(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "daisy", user.Username)

	require.NoError(t, service.RevokeSession(ctx, token))

	_, err = service.VerifySession(ctx, token)
	assert.ErrorIs(t, err, ErrInvalidSession)

	err = service.RevokeSession(ctx, "garbage")
	assert.ErrorIs(t, err, ErrInvalidSession)
}
