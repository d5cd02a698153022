package eventstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
	"github.com/jmoiron/sqlx"

	"github.com/jtejido-quollio/qdic-assets/internal/clock"
	"github.com/jtejido-quollio/qdic-assets/internal/eventmodel"
)

// Postgres is the production Store, backed by the catalog's events table.
// Connection handling takes a typed Config, a constructor that resolves
// it into a pooled connection, and context-bounded queries; the asset
// store reuses this pooled connection through DB.
type Postgres struct {
	db *sqlx.DB
}

// Config holds the connection parameters for a Postgres-backed Store.
type Config struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewPostgres opens and pings a pooled connection to the events table's
// backing database.
func NewPostgres(ctx context.Context, cfg Config) (*Postgres, error) {
	db, err := sqlx.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("eventstore: open postgres: %w", err)
	}

	maxOpen := cfg.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 25
	}
	maxIdle := cfg.MaxIdleConns
	if maxIdle <= 0 {
		maxIdle = 5
	}
	lifetime := cfg.ConnMaxLifetime
	if lifetime <= 0 {
		lifetime = 30 * time.Minute
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(lifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		return nil, fmt.Errorf("eventstore: ping postgres: %w", err)
	}

	return &Postgres{db: db}, nil
}

// DB exposes the pooled connection so stores sharing the same database
// can reuse it instead of dialing their own.
func (p *Postgres) DB() *sqlx.DB {
	return p.db
}

// Close releases the underlying connection pool.
func (p *Postgres) Close() error {
	return p.db.Close()
}

// HealthCheck verifies the connection is alive.
func (p *Postgres) HealthCheck(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

type eventRow struct {
	ID                   string         `db:"id"`
	EventType            string         `db:"event_type"`
	Body                 string         `db:"body"`
	Operation            string         `db:"operation"`
	Status               string         `db:"status"`
	UserID               string         `db:"user_id"`
	ExpiresAt            time.Time      `db:"expires_at"`
	UpdatedBy            string         `db:"updated_by"`
	CreatedAt            time.Time      `db:"created_at"`
	IsAuthorized         bool           `db:"is_authorized"`
	IsFastTrack          bool           `db:"is_fast_track"`
	RetryCount           int            `db:"retry_count"`
	WaitTime             sql.NullInt32  `db:"wait_time"`
	Error                sql.NullString `db:"error"`
	IsDependencyResolved bool           `db:"is_dependency_resolved"`
	CompletedInSeconds   sql.NullInt32  `db:"completed_in_seconds"`
	ProcessedAt          sql.NullTime   `db:"processed_at"`
	ReceiptHandle        sql.NullString `db:"receipt_handle"`
}

func (r eventRow) toDomain() eventmodel.Event {
	ev := eventmodel.Event{
		ID:                   r.ID,
		EventType:            eventmodel.EventType(r.EventType),
		Body:                 r.Body,
		Operation:            eventmodel.Operation(r.Operation),
		Status:               eventmodel.EventStatus(r.Status),
		UserID:               r.UserID,
		ExpiresAt:            clock.EnsureAwareUTC(r.ExpiresAt),
		UpdatedBy:            r.UpdatedBy,
		CreatedAt:            clock.EnsureAwareUTC(r.CreatedAt),
		IsAuthorized:         r.IsAuthorized,
		IsFastTrack:          r.IsFastTrack,
		RetryCount:           r.RetryCount,
		IsDependencyResolved: r.IsDependencyResolved,
	}
	if r.WaitTime.Valid {
		v := int(r.WaitTime.Int32)
		ev.WaitTime = &v
	}
	if r.CompletedInSeconds.Valid {
		v := int(r.CompletedInSeconds.Int32)
		ev.CompletedInSeconds = &v
	}
	if r.Error.Valid {
		v := r.Error.String
		ev.Error = &v
	}
	if r.ProcessedAt.Valid {
		v := clock.EnsureAwareUTC(r.ProcessedAt.Time)
		ev.ProcessedAt = &v
	}
	if r.ReceiptHandle.Valid {
		v := r.ReceiptHandle.String
		ev.ReceiptHandle = &v
	}
	return ev
}

const duplicatesQuery = `
SELECT id, event_type, body, operation, status, user_id, expires_at, updated_by,
       created_at, is_authorized, is_fast_track, retry_count, wait_time, error,
       is_dependency_resolved, completed_in_seconds, processed_at, receipt_handle
FROM events
WHERE event_type = $1 AND body = $2 AND created_at > $3 AND id != $4
ORDER BY created_at ASC`

func (p *Postgres) Duplicates(ctx context.Context, ev eventmodel.Event) ([]eventmodel.Event, error) {
	var rows []eventRow
	err := p.db.SelectContext(ctx, &rows, duplicatesQuery, string(ev.EventType), ev.Body, ev.CreatedAt, ev.ID)
	if err != nil {
		return nil, fmt.Errorf("eventstore: query duplicates: %w", err)
	}
	return toDomainSlice(rows), nil
}

const dependentsQueryBase = `
SELECT id, event_type, body, operation, status, user_id, expires_at, updated_by,
       created_at, is_authorized, is_fast_track, retry_count, wait_time, error,
       is_dependency_resolved, completed_in_seconds, processed_at, receipt_handle
FROM events
WHERE operation = $1 AND created_at < $2`

func (p *Postgres) Dependents(ctx context.Context, ev eventmodel.Event) ([]eventmodel.Event, error) {
	query := dependentsQueryBase + " ORDER BY created_at ASC"
	args := []any{string(ev.Operation), ev.CreatedAt}
	if ev.UserID != "" {
		query = dependentsQueryBase + " AND user_id = $3 ORDER BY created_at ASC"
		args = append(args, ev.UserID)
	}

	var rows []eventRow
	if err := p.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("eventstore: query dependents: %w", err)
	}
	return toDomainSlice(rows), nil
}

func (p *Postgres) WaitTime(ctx context.Context, eventID string) (*int, error) {
	var waitTime sql.NullInt32
	err := p.db.GetContext(ctx, &waitTime, `SELECT wait_time FROM events WHERE id = $1 LIMIT 1`, eventID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("eventstore: query wait_time: %w", err)
	}
	if !waitTime.Valid {
		return nil, nil
	}
	v := int(waitTime.Int32)
	return &v, nil
}

func (p *Postgres) UpdateStatusAndTimes(ctx context.Context, eventID string, status eventmodel.EventStatus, waitTime, completedInSeconds *int) error {
	set := "status = $1"
	args := []any{string(status)}
	n := 2

	if waitTime != nil {
		set += fmt.Sprintf(", wait_time = $%d", n)
		args = append(args, *waitTime)
		n++
	}
	if completedInSeconds != nil {
		set += fmt.Sprintf(", completed_in_seconds = $%d", n)
		args = append(args, *completedInSeconds)
		n++
	}
	args = append(args, eventID)

	query := fmt.Sprintf("UPDATE events SET %s WHERE id = $%d", set, n)
	if _, err := p.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("eventstore: update status_and_times: %w", err)
	}
	return nil
}

func toDomainSlice(rows []eventRow) []eventmodel.Event {
	out := make([]eventmodel.Event, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out
}
