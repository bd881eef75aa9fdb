package testutils

import (
	"context"
	"errors"
	"sync"

	"github.com/papercomputeco/kbase/pkg/eventstream"
)

// MockPublisher records published events.
type MockPublisher struct {
	mu     sync.Mutex
	events []eventstream.CollectionEvent

	// Fail causes Publish to return an error.
	Fail bool
}

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (m *MockPublisher) Publish(_ context.Context, event *eventstream.CollectionEvent) error {
	if event == nil {
		return eventstream.ErrNilEvent
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Fail {
		return errors.New("mock publish failure")
	}
	m.events = append(m.events, *event)
	return nil
}

// Events returns a copy of every published event.
func (m *MockPublisher) Events() []eventstream.CollectionEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]eventstream.CollectionEvent, len(m.events))
	copy(out, m.events)
	return out
}

func (m *MockPublisher) Close() error {
	return nil
}
