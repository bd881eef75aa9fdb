package testutils

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/papercomputeco/kbase/pkg/vector"
)

// MockPersister is an in-memory vector.Persister that records calls and
// can be told to fail.
type MockPersister struct {
	mu          sync.Mutex
	collections map[string]*vector.Collection

	// Corrupt lists ids whose Load returns vector.ErrCorruptIndex.
	Corrupt map[string]bool

	// FailSave causes Save and Delete to return an error.
	FailSave bool

	// FailList causes List to return an error.
	FailList bool

	Saves   int
	Deletes int
}

func NewMockPersister() *MockPersister {
	return &MockPersister{
		collections: make(map[string]*vector.Collection),
		Corrupt:     make(map[string]bool),
	}
}

func (m *MockPersister) Save(_ context.Context, c *vector.Collection) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailSave {
		return errors.New("mock save failure")
	}

	m.collections[c.ID()] = c
	m.Saves++
	return nil
}

func (m *MockPersister) Load(_ context.Context, id string) (*vector.Collection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Corrupt[id] {
		return nil, fmt.Errorf("%w: mock corrupt collection %q", vector.ErrCorruptIndex, id)
	}

	c, ok := m.collections[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", vector.ErrNotFound, id)
	}
	return c, nil
}

func (m *MockPersister) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailSave {
		return errors.New("mock delete failure")
	}

	delete(m.collections, id)
	m.Deletes++
	return nil
}

func (m *MockPersister) List(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailList {
		return nil, errors.New("mock list failure")
	}

	ids := make([]string, 0, len(m.collections)+len(m.Corrupt))
	for id := range m.collections {
		ids = append(ids, id)
	}
	for id := range m.Corrupt {
		if _, ok := m.collections[id]; !ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Stored returns the last saved collection for id, or nil.
func (m *MockPersister) Stored(id string) *vector.Collection {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.collections[id]
}

func (m *MockPersister) Close() error {
	return nil
}
