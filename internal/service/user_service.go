package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/antonrybalko/wfm-mbaas-go/internal/auth"
	"github.com/antonrybalko/wfm-mbaas-go/internal/domain"
	"github.com/antonrybalko/wfm-mbaas-go/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Common service errors
var (
	ErrNotFound           = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidSession     = errors.New("invalid session")
)

// UserService handles user lookup, seeding and session management
type UserService struct {
	repo     repository.UserRepository
	sessions *auth.Sessions
	logger   *zap.SugaredLogger
}

// NewUserService creates a new user service
func NewUserService(
	repo repository.UserRepository,
	sessions *auth.Sessions,
	logger *zap.SugaredLogger,
) *UserService {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &UserService{
		repo:     repo,
		sessions: sessions,
		logger:   logger,
	}
}

// Seed stores the seed users, hashing their passwords. Existing users with
// the same id are replaced. It returns the number of users stored.
func (s *UserService) Seed(ctx context.Context, seed *domain.UserSeed) (int, error) {
	if seed == nil {
		return 0, nil
	}

	for i, su := range seed.Users {
		hash, err := auth.HashPassword(su.Password)
		if err != nil {
			return i, fmt.Errorf("failed to hash password for %s: %w", su.Username, err)
		}

		id := su.ID
		if id == "" {
			id = uuid.NewString()
		}

		user := &domain.User{
			ID:       id,
			Username: su.Username,
			Name:     su.Name,
			Email:    su.Email,
			Position: su.Position,
			Phone:    su.Phone,
			Avatar:   su.Avatar,
			Password: hash,
		}
		if err := s.repo.SaveUser(ctx, user); err != nil {
			s.logger.Errorw("Failed to seed user", "username", su.Username, "error", err)
			return i, fmt.Errorf("failed to seed user %s: %w", su.Username, err)
		}
	}

	s.logger.Infow("Seeded users", "count", len(seed.Users))
	return len(seed.Users), nil
}

// ListUsers returns all users
func (s *UserService) ListUsers(ctx context.Context) ([]domain.User, error) {
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// GetUser returns the user with id
func (s *UserService) GetUser(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.repo.GetUser(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// Authenticate checks the credentials and issues a session token
func (s *UserService) Authenticate(ctx context.Context, creds domain.Credentials) (*domain.User, string, time.Time, error) {
	username := strings.TrimSpace(creds.Username)
	if username == "" || creds.Password == "" {
		return nil, "", time.Time{}, ErrInvalidCredentials
	}

	user, err := s.repo.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, "", time.Time{}, ErrInvalidCredentials
		}
		return nil, "", time.Time{}, fmt.Errorf("failed to look up user: %w", err)
	}

	if err := auth.CheckPassword(user.Password, creds.Password); err != nil {
		s.logger.Debugw("Password mismatch", "username", username)
		return nil, "", time.Time{}, ErrInvalidCredentials
	}

	token, expiresAt, err := s.sessions.Issue(user.ID, user.Username)
	if err != nil {
		return nil, "", time.Time{}, fmt.Errorf("failed to issue session: %w", err)
	}

	s.logger.Infow("User authenticated", "userID", user.ID, "username", user.Username)
	return user, token, expiresAt, nil
}

// VerifySession returns the user owning a valid session token
func (s *UserService) VerifySession(ctx context.Context, token string) (*domain.User, error) {
	claims, err := s.sessions.Verify(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}

	user, err := s.GetUser(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: user no longer exists", ErrInvalidSession)
		}
		return nil, err
	}
	return user, nil
}

// RevokeSession invalidates a session token
func (s *UserService) RevokeSession(ctx context.Context, token string) error {
	if err := s.sessions.Revoke(ctx, token); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	return nil
}
