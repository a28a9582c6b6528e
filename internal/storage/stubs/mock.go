package stubs

import (
	"context"
	"sync"

	"booksearch/internal/storage"
)

// Operation names accepted by FailOn
const (
	OpGet    = "get"
	OpSet    = "set"
	OpRemove = "remove"
)

// MockKV is an in-memory implementation of the storage.KV interface for testing
type MockKV struct {
	mu       sync.RWMutex
	values   map[string]string
	failures map[string]error
	writes   int
}

// NewMockKV creates a new mock key-value store
func NewMockKV() *MockKV {
	return &MockKV{
		values:   make(map[string]string),
		failures: make(map[string]error),
	}
}

// Initialize does nothing for mock KV
func (m *MockKV) Initialize(ctx context.Context) error {
	return nil
}

// Get returns the stored value or storage.ErrNotFound
func (m *MockKV) Get(ctx context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.failures[OpGet]; err != nil {
		return "", err
	}

	value, ok := m.values[key]
	if !ok {
		return "", storage.ErrNotFound
	}
	return value, nil
}

// Set stores value under key
func (m *MockKV) Set(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.failures[OpSet]; err != nil {
		return err
	}

	m.values[key] = value
	m.writes++
	return nil
}

// Remove deletes key if present
func (m *MockKV) Remove(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.failures[OpRemove]; err != nil {
		return err
	}

	delete(m.values, key)
	m.writes++
	return nil
}

// FailOn makes every subsequent call of op return err. A nil err clears the failure.
func (m *MockKV) FailOn(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err == nil {
		delete(m.failures, op)
		return
	}
	m.failures[op] = err
}

// Writes returns how many successful Set and Remove calls were made
func (m *MockKV) Writes() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.writes
}

// Close does nothing for mock KV
func (m *MockKV) Close() error {
	return nil
}
