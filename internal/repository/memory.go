package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/antonrybalko/wfm-mbaas-go/internal/domain"
	"github.com/google/uuid"
)

// MemoryUserRepository is an in-memory UserRepository
type MemoryUserRepository struct {
	mu        sync.RWMutex
	users     map[string]domain.User
	saveCalls int
}

// NewMemoryUserRepository creates an empty repository
func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		users: make(map[string]domain.User),
	}
}

// ListUsers returns all users ordered by username
func (m *MemoryUserRepository) ListUsers(ctx context.Context) ([]domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	users := make([]domain.User, 0, len(m.users))
	for _, u := range m.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users, nil
}

// GetUser returns the user with id
func (m *MemoryUserRepository) GetUser(ctx context.Context, id string) (*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	return &u, nil
}

// GetUserByUsername returns the user with username
func (m *MemoryUserRepository) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, u := range m.users {
		if u.Username == username {
			found := u
			return &found, nil
		}
	}
	return nil, fmt.Errorf("user %s: %w", username, ErrNotFound)
}

// SaveUser inserts or replaces a user
func (m *MemoryUserRepository) SaveUser(ctx context.Context, user *domain.User) error {
	if user == nil || user.ID == "" || user.Username == "" {
		return ErrInvalidInput
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.saveCalls++

	for id, u := range m.users {
		if id != user.ID && u.Username == user.Username {
			return fmt.Errorf("username %s: %w", user.Username, ErrAlreadyExists)
		}
	}

	now := time.Now()
	if existing, ok := m.users[user.ID]; ok {
		user.CreatedAt = existing.CreatedAt
	} else if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	m.users[user.ID] = *user
	return nil
}

// Ping always succeeds
func (m *MemoryUserRepository) Ping(ctx context.Context) error {
	return nil
}

// SaveCalls returns the number of SaveUser calls (helper for tests)
func (m *MemoryUserRepository) SaveCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.saveCalls
}

// MemoryDataRepository is an in-memory DataRepository
type MemoryDataRepository struct {
	mu      sync.RWMutex
	records map[string]map[string]domain.Record
}

// NewMemoryDataRepository creates an empty repository
func NewMemoryDataRepository() *MemoryDataRepository {
	return &MemoryDataRepository{
		records: make(map[string]map[string]domain.Record),
	}
}

// List returns the records of a collection in creation order
func (m *MemoryDataRepository) List(ctx context.Context, collection string) ([]domain.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	records := make([]domain.Record, 0, len(m.records[collection]))
	for _, r := range m.records[collection] {
		records = append(records, cloneRecord(r))
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].GUID < records[j].GUID
		}
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})
	return records, nil
}

// Create stores a new record with a generated GUID
func (m *MemoryDataRepository) Create(ctx context.Context, collection string, fields map[string]any) (*domain.Record, error) {
	if collection == "" {
		return nil, ErrInvalidInput
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	record := domain.Record{
		GUID:       uuid.NewString(),
		Collection: collection,
		Fields:     cloneFields(fields),
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if m.records[collection] == nil {
		m.records[collection] = make(map[string]domain.Record)
	}
	m.records[collection][record.GUID] = record

	out := cloneRecord(record)
	return &out, nil
}

// Get returns one record
func (m *MemoryDataRepository) Get(ctx context.Context, collection, guid string) (*domain.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	record, ok := m.records[collection][guid]
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", collection, guid, ErrNotFound)
	}
	out := cloneRecord(record)
	return &out, nil
}

// Update replaces the fields of a record
func (m *MemoryDataRepository) Update(ctx context.Context, collection, guid string, fields map[string]any) (*domain.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	record, ok := m.records[collection][guid]
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", collection, guid, ErrNotFound)
	}
	record.Fields = cloneFields(fields)
	record.UpdatedAt = time.Now()
	m.records[collection][guid] = record

	out := cloneRecord(record)
	return &out, nil
}

// Delete removes a record
func (m *MemoryDataRepository) Delete(ctx context.Context, collection, guid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.records[collection][guid]; !ok {
		return fmt.Errorf("%s/%s: %w", collection, guid, ErrNotFound)
	}
	delete(m.records[collection], guid)
	return nil
}

// Ping always succeeds
func (m *MemoryDataRepository) Ping(ctx context.Context) error {
	return nil
}

func cloneRecord(r domain.Record) domain.Record {
	r.Fields = cloneFields(r.Fields)
	return r
}

func cloneFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}
