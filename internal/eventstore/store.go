// Package eventstore defines the persistence contract the processor core
// uses against the events table, plus a Postgres-backed implementation and
// an in-memory fake for tests.
package eventstore

import (
	"context"

	"github.com/jtejido-quollio/qdic-assets/internal/eventmodel"
)

// Store is the persistence contract the processor depends on. It is
// intentionally narrow: only the operations the event lifecycle actually
// invokes (spec'd in the external interfaces section) are exposed here —
// schema ownership and the rest of the catalog's CRUD surface live
// elsewhere, outside this core.
type Store interface {
	// Duplicates returns events with the same event type and body,
	// created strictly after ev, excluding ev itself, ordered by
	// created_at ascending.
	Duplicates(ctx context.Context, ev eventmodel.Event) ([]eventmodel.Event, error)

	// Dependents returns events sharing ev's operation (and, when
	// ev.UserID is non-empty, the same user) created strictly before
	// ev, ordered by created_at ascending.
	Dependents(ctx context.Context, ev eventmodel.Event) ([]eventmodel.Event, error)

	// WaitTime returns the persisted wait_time for an event id, or nil
	// if it has never been set.
	WaitTime(ctx context.Context, eventID string) (*int, error)

	// UpdateStatusAndTimes persists status and, when non-nil,
	// wait_time/completed_in_seconds. A nil pointer leaves the
	// corresponding column untouched.
	UpdateStatusAndTimes(ctx context.Context, eventID string, status eventmodel.EventStatus, waitTime, completedInSeconds *int) error
}
