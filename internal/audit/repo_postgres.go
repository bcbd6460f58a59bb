package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"ivr-platform/pkg/utils"
)

// PostgresRepo stores audit events in Postgres through database/sql (pgx stdlib driver).
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

var schema = []string{
	`CREATE TABLE IF NOT EXISTS ivr_audit_events (
		id            UUID PRIMARY KEY,
		type          TEXT NOT NULL,
		call_id       TEXT NOT NULL DEFAULT '',
		actor_user_id TEXT NOT NULL DEFAULT '',
		actor_role    TEXT NOT NULL DEFAULT '',
		ip_address    TEXT NOT NULL DEFAULT '',
		message       TEXT NOT NULL DEFAULT '',
		metadata      JSONB,
		created_at    TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS ivr_audit_events_call_id_idx ON ivr_audit_events (call_id, created_at DESC)`,
}

// Migrate creates the audit table if it does not exist.
func (r *PostgresRepo) Migrate(ctx context.Context) error {
	return utils.WithTx(ctx, r.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		for _, stmt := range schema {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("audit: migrate: %w", err)
			}
		}
		return nil
	})
}

const insertEvent = `INSERT INTO ivr_audit_events
	(id, type, call_id, actor_user_id, actor_role, ip_address, message, metadata, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, '')::jsonb, $9)`

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	_, err := r.db.ExecContext(ctx, insertEvent,
		e.ID, string(e.Type), e.CallID, e.ActorUserID, e.ActorRole, e.IPAddress, e.Message, e.Metadata, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("audit: insert: %w", err)
	}
	return nil
}

const selectRecent = `SELECT id, type, call_id, actor_user_id, actor_role, ip_address, message,
	COALESCE(metadata::text, ''), created_at
	FROM ivr_audit_events
	WHERE ($1 = '' OR call_id = $1)
	ORDER BY created_at DESC
	LIMIT $2`

func (r *PostgresRepo) Recent(ctx context.Context, callID string, limit int) ([]Event, error) {
	rows, err := r.db.QueryContext(ctx, selectRecent, callID, limit)
	if err != nil {
		return nil, fmt.Errorf("audit: query: %w", err)
	}
	return scanEvents(rows)
}

const selectBetween = `SELECT id, type, call_id, actor_user_id, actor_role, ip_address, message,
	COALESCE(metadata::text, ''), created_at
	FROM ivr_audit_events
	WHERE created_at >= $1 AND created_at < $2
	ORDER BY created_at`

// Between returns events created in [from, to), oldest first.
func (r *PostgresRepo) Between(ctx context.Context, from, to time.Time) ([]Event, error) {
	rows, err := r.db.QueryContext(ctx, selectBetween, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("audit: query: %w", err)
	}
	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]Event, error) {
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var (
			e   Event
			typ string
		)
		if err := rows.Scan(&e.ID, &typ, &e.CallID, &e.ActorUserID, &e.ActorRole, &e.IPAddress, &e.Message, &e.Metadata, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("audit: scan: %w", err)
		}
		e.Type = EventType(typ)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("audit: rows: %w", err)
	}
	return out, nil
}
