package eventmodel

import "time"

// Event is the unit of work the processing core drains from the events
// table. Fields mirror the row shape delivered by CDC.
type Event struct {
	ID                   string
	EventType            EventType
	Body                 string
	Operation            Operation
	Status               EventStatus
	UserID               string
	ExpiresAt            time.Time
	UpdatedBy            string
	CreatedAt            time.Time
	IsAuthorized         bool
	IsFastTrack          bool
	RetryCount           int
	WaitTime             *int
	Error                *string
	IsDependencyResolved bool
	CompletedInSeconds   *int
	ProcessedAt          *time.Time
	ReceiptHandle        *string
}

// Context wraps an Event with whatever broker-specific bookkeeping the
// consumer attached (e.g. a delivery tag), so the processor can carry it
// through the pipeline without depending on the broker package.
type Context struct {
	Event   Event
	Context any
}
