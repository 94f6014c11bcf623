package storage

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// MemoryBlobStore keeps objects in memory. It backs the files API in
// development and in tests.
type MemoryBlobStore struct {
	mu           sync.RWMutex
	objects      map[string][]byte
	contentTypes map[string]string
	baseURL      string
	putCalls     int
	getCalls     int
	deleteCalls  int
	forceError   error
}

// NewMemoryBlobStore creates an empty in-memory store
func NewMemoryBlobStore(baseURL string) *MemoryBlobStore {
	if baseURL == "" {
		baseURL = "http://localhost:8001/mbaas/files"
	}

	return &MemoryBlobStore{
		objects:      make(map[string][]byte),
		contentTypes: make(map[string]string),
		baseURL:      strings.TrimRight(baseURL, "/"),
	}
}

// Put stores an object and returns its URL
func (m *MemoryBlobStore) Put(ctx context.Context, key string, body []byte, contentType string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.putCalls++

	if m.forceError != nil {
		return "", m.forceError
	}

	// Copy the data to avoid external modifications
	dataCopy := make([]byte, len(body))
	copy(dataCopy, body)

	m.objects[key] = dataCopy
	m.contentTypes[key] = contentType

	return m.url(key), nil
}

// Get returns an object and its content type
func (m *MemoryBlobStore) Get(ctx context.Context, key string) ([]byte, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.getCalls++

	if m.forceError != nil {
		return nil, "", m.forceError
	}

	data, exists := m.objects[key]
	if !exists {
		return nil, "", fmt.Errorf("%w: %s", ErrNotFound, key)
	}

	return data, m.contentTypes[key], nil
}

// Delete removes an object
func (m *MemoryBlobStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.deleteCalls++

	if m.forceError != nil {
		return m.forceError
	}

	if _, exists := m.objects[key]; !exists {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}

	delete(m.objects, key)
	delete(m.contentTypes, key)

	return nil
}

// URL returns the URL for key
func (m *MemoryBlobStore) URL(key string) string {
	return m.url(key)
}

func (m *MemoryBlobStore) url(key string) string {
	return fmt.Sprintf("%s/%s", m.baseURL, key)
}

// Ping always succeeds unless an error is forced
func (m *MemoryBlobStore) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.forceError
}

// SetError makes every operation fail with err. Pass nil to clear.
func (m *MemoryBlobStore) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.forceError = err
}

// GetCallCounts returns the number of calls to each method (helper for tests)
func (m *MemoryBlobStore) GetCallCounts() (puts, gets, deletes int) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.putCalls, m.getCalls, m.deleteCalls
}

// Len returns the number of stored objects
func (m *MemoryBlobStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.objects)
}
