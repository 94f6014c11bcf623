package repository

import (
	"context"
	"errors"

	"github.com/antonrybalko/wfm-mbaas-go/internal/domain"
)

// Common errors
var (
	ErrNotFound      = errors.New("record not found")
	ErrAlreadyExists = errors.New("record already exists")
	ErrInvalidInput  = errors.New("invalid input parameters")
)

// UserRepository defines persistence for workforce users
type UserRepository interface {
	ListUsers(ctx context.Context) ([]domain.User, error)
	GetUser(ctx context.Context, id string) (*domain.User, error)
	GetUserByUsername(ctx context.Context, username string) (*domain.User, error)
	SaveUser(ctx context.Context, user *domain.User) error
	Ping(ctx context.Context) error
}

// DataRepository defines persistence for mbaas collection records
type DataRepository interface {
	List(ctx context.Context, collection string) ([]domain.Record, error)
	Create(ctx context.Context, collection string, fields map[string]any) (*domain.Record, error)
	Get(ctx context.Context, collection, guid string) (*domain.Record, error)
	Update(ctx context.Context, collection, guid string, fields map[string]any) (*domain.Record, error)
	Delete(ctx context.Context, collection, guid string) error
	Ping(ctx context.Context) error
}
