package assetstore

import (
	"context"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
	"github.com/jmoiron/sqlx"
)

// Postgres is the production asset Store. Descendants are resolved
// through the asset_paths closure table (ancestor_id, asset_id, depth),
// one row per ancestor/descendant pair at every depth, so a bounded
// subtree fetch is a single indexed join rather than a recursive query.
type Postgres struct {
	db *sqlx.DB
}

// NewPostgres wraps an already-open *sqlx.DB. Asset and event storage
// share one database in this deployment, so the caller passes in the
// same pooled connection eventstore.Postgres uses rather than opening a
// second one.
func NewPostgres(db *sqlx.DB) *Postgres {
	return &Postgres{db: db}
}

const descendantsQuery = `
SELECT a.id
FROM assets a
JOIN asset_paths p ON p.asset_id = a.id
WHERE p.ancestor_id = $1
  AND p.depth >= $2
  AND p.depth <= $3
  AND a.is_deleted = false`

func (p *Postgres) Descendants(ctx context.Context, ancestorID string, minDepth, maxDepth int) ([]Asset, error) {
	var ids []string
	if err := p.db.SelectContext(ctx, &ids, descendantsQuery, ancestorID, minDepth, maxDepth); err != nil {
		return nil, fmt.Errorf("assetstore: query descendants: %w", err)
	}
	out := make([]Asset, len(ids))
	for i, id := range ids {
		out[i] = Asset{ID: id}
	}
	return out, nil
}

func (p *Postgres) DeleteByIDs(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	query := fmt.Sprintf("DELETE FROM assets WHERE id IN (%s)", strings.Join(placeholders, ", "))

	res, err := p.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("assetstore: delete by ids: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("assetstore: rows affected: %w", err)
	}
	return int(n), nil
}
