package eventstore

import (
	"context"
	"sync"

	"github.com/jtejido-quollio/qdic-assets/internal/eventmodel"
)

// Memory is an in-process Store used by tests and, optionally, by
// single-instance deployments that don't need durability across restarts.
// It is a real alternate implementation of Store, not a mock: callers
// exercise the same interface a Postgres-backed store would satisfy.
type Memory struct {
	mu     sync.RWMutex
	events map[string]eventmodel.Event
}

// NewMemory returns an empty in-memory Store.
func NewMemory() *Memory {
	return &Memory{events: make(map[string]eventmodel.Event)}
}

// Seed inserts or replaces an event, as if it had just arrived via CDC.
func (m *Memory) Seed(ev eventmodel.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[ev.ID] = ev
}

// Get returns the current stored state of an event, for assertions in
// tests.
func (m *Memory) Get(id string) (eventmodel.Event, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ev, ok := m.events[id]
	return ev, ok
}

func (m *Memory) Duplicates(_ context.Context, ev eventmodel.Event) ([]eventmodel.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []eventmodel.Event
	for _, other := range m.events {
		if other.ID == ev.ID {
			continue
		}
		if other.EventType != ev.EventType || other.Body != ev.Body {
			continue
		}
		if !other.CreatedAt.After(ev.CreatedAt) {
			continue
		}
		out = append(out, other)
	}
	sortByCreatedAt(out)
	return out, nil
}

func (m *Memory) Dependents(_ context.Context, ev eventmodel.Event) ([]eventmodel.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []eventmodel.Event
	for _, other := range m.events {
		if other.Operation != ev.Operation {
			continue
		}
		if !other.CreatedAt.Before(ev.CreatedAt) {
			continue
		}
		if ev.UserID != "" && other.UserID != ev.UserID {
			continue
		}
		out = append(out, other)
	}
	sortByCreatedAt(out)
	return out, nil
}

func (m *Memory) WaitTime(_ context.Context, eventID string) (*int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ev, ok := m.events[eventID]
	if !ok || ev.WaitTime == nil {
		return nil, nil
	}
	v := *ev.WaitTime
	return &v, nil
}

func (m *Memory) UpdateStatusAndTimes(_ context.Context, eventID string, status eventmodel.EventStatus, waitTime, completedInSeconds *int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ev, ok := m.events[eventID]
	if !ok {
		return ErrNotFound
	}
	ev.Status = status
	if waitTime != nil {
		v := *waitTime
		ev.WaitTime = &v
	}
	if completedInSeconds != nil {
		v := *completedInSeconds
		ev.CompletedInSeconds = &v
	}
	m.events[eventID] = ev
	return nil
}

func sortByCreatedAt(events []eventmodel.Event) {
	for i := 1; i < len(events); i++ {
		for j := i; j > 0 && events[j].CreatedAt.Before(events[j-1].CreatedAt); j-- {
			events[j], events[j-1] = events[j-1], events[j]
		}
	}
}
