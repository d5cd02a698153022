// Package wire decodes CDC envelopes from the broker stream into domain
// events. The envelope carries a before/after row snapshot; only the
// after side matters to the core.
package wire

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jtejido-quollio/qdic-assets/internal/clock"
	"github.com/jtejido-quollio/qdic-assets/internal/eventmodel"
)

// Envelope is the CDC document shape. Fields other than after are
// ignored; Debezium also ships before/source/op but the core never
// reads them.
type Envelope struct {
	After *AfterRow `json:"after"`
}

// AfterRow is the post-mutation row snapshot inside the envelope.
// Timestamps stay raw strings here because the publisher emits either
// ISO-8601 or Unix-millis digit strings depending on its converter
// configuration.
type AfterRow struct {
	ID                   string  `json:"id"`
	EventType            string  `json:"event_type"`
	Body                 string  `json:"body"`
	Operation            string  `json:"operation"`
	Status               string  `json:"status"`
	UserID               string  `json:"user_id"`
	ExpiresAt            string  `json:"expires_at"`
	UpdatedBy            string  `json:"updated_by"`
	CreatedAt            string  `json:"created_at"`
	IsAuthorized         *bool   `json:"is_authorized"`
	IsFastTrack          bool    `json:"is_fast_track"`
	RetryCount           int     `json:"retry_count"`
	WaitTime             *int    `json:"wait_time"`
	Error                *string `json:"error"`
	IsDependencyResolved bool    `json:"is_dependency_resolved"`
	CompletedInSeconds   *int    `json:"completed_in_seconds"`
	ProcessedAt          *string `json:"processed_at"`
	ReceiptHandle        *string `json:"receipt_handle"`
}

// Status returns the after-row status lowercased, or "" when the
// envelope carries no after object.
func (e *Envelope) Status() string {
	if e.After == nil {
		return ""
	}
	return strings.ToLower(e.After.Status)
}

// ParseEnvelope unmarshals a broker message body.
func ParseEnvelope(body []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("wire: unmarshal envelope: %w", err)
	}
	return &env, nil
}

// Decode converts an envelope into an event context ready for the
// processor queue. The envelope must carry an after object.
func Decode(env *Envelope, clk clock.Clock) (*eventmodel.Context, error) {
	if env.After == nil {
		return nil, fmt.Errorf("wire: envelope has no after object")
	}
	a := env.After

	status := eventmodel.EventStatus(strings.ToLower(a.Status))
	if status == "" {
		status = eventmodel.EventStatusPending
	}

	isAuthorized := true
	if a.IsAuthorized != nil {
		isAuthorized = *a.IsAuthorized
	}

	ev := eventmodel.Event{
		ID:                   a.ID,
		EventType:            eventmodel.EventType(a.EventType),
		Body:                 a.Body,
		Operation:            eventmodel.Operation(a.Operation),
		Status:               status,
		UserID:               a.UserID,
		ExpiresAt:            ParseTimestamp(a.ExpiresAt, clk),
		UpdatedBy:            a.UpdatedBy,
		CreatedAt:            ParseTimestamp(a.CreatedAt, clk),
		IsAuthorized:         isAuthorized,
		IsFastTrack:          a.IsFastTrack,
		RetryCount:           a.RetryCount,
		WaitTime:             a.WaitTime,
		Error:                a.Error,
		IsDependencyResolved: a.IsDependencyResolved,
		CompletedInSeconds:   a.CompletedInSeconds,
		ReceiptHandle:        a.ReceiptHandle,
	}
	if a.ProcessedAt != nil && *a.ProcessedAt != "" {
		t := ParseTimestamp(*a.ProcessedAt, clk)
		ev.ProcessedAt = &t
	}

	return &eventmodel.Context{Event: ev}, nil
}

// ParseTimestamp handles the timestamp formats the CDC publisher emits:
// ISO-8601 (Z or numeric offset) and Unix milliseconds as a digit-only
// string. Anything else, including an empty value, resolves to the
// current time so processing keeps moving.
func ParseTimestamp(s string, clk clock.Clock) time.Time {
	if s == "" {
		return clk.Now()
	}

	if strings.Contains(s, "T") {
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return t.UTC()
		}
		// ISO without zone designator, assume UTC.
		if t, err := time.Parse("2006-01-02T15:04:05.999999999", s); err == nil {
			return t.UTC()
		}
		return clk.Now()
	}

	if isDigits(s) {
		millis, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return clk.Now()
		}
		return time.UnixMilli(millis).UTC()
	}

	return clk.Now()
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
