package eventstore

import "errors"

// ErrNotFound is returned when an operation references an event id the
// store has no record of.
var ErrNotFound = errors.New("eventstore: event not found")
