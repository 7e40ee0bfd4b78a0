// internal/repository/postgres/callback_repo.go
package postgres

import (
	"context"
	"fmt"

	"callback-queue-service/internal/domain/callback"

	"github.com/jackc/pgx/v5"
	"github.com/lib/pq"
)

const callbackSchema = `
	CREATE TABLE IF NOT EXISTS callback_requests (
		id                  TEXT PRIMARY KEY,
		customer_id         TEXT NOT NULL,
		customer_name       TEXT NOT NULL,
		customer_phone      TEXT NOT NULL,
		customer_email      TEXT NOT NULL DEFAULT '',
		reason              TEXT NOT NULL,
		priority            TEXT NOT NULL,
		channel             TEXT NOT NULL,
		status              TEXT NOT NULL,
		scheduled_time      TIMESTAMPTZ,
		scheduled_end_time  TIMESTAMPTZ,
		estimated_wait_time INTEGER NOT NULL DEFAULT 0,
		queue_position      INTEGER NOT NULL DEFAULT 0,
		retry_count         INTEGER NOT NULL DEFAULT 0,
		max_retries         INTEGER NOT NULL DEFAULT 0,
		retry_interval      INTEGER NOT NULL DEFAULT 0,
		last_attempt_at     TIMESTAMPTZ,
		next_retry_at       TIMESTAMPTZ,
		assigned_agent_id   TEXT NOT NULL DEFAULT '',
		assigned_agent_name TEXT NOT NULL DEFAULT '',
		created_at          TIMESTAMPTZ NOT NULL,
		updated_at          TIMESTAMPTZ NOT NULL,
		completed_at        TIMESTAMPTZ,
		failed_at           TIMESTAMPTZ
	);

	ALTER TABLE callback_requests ADD COLUMN IF NOT EXISTS failed_at TIMESTAMPTZ;

	CREATE INDEX IF NOT EXISTS idx_callback_requests_status ON callback_requests (status);

	CREATE TABLE IF NOT EXISTS callback_notes (
		id          TEXT PRIMARY KEY,
		callback_id TEXT NOT NULL REFERENCES callback_requests (id) ON DELETE CASCADE,
		content     TEXT NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL,
		created_by  TEXT NOT NULL,
		type        TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_callback_notes_callback ON callback_notes (callback_id, created_at);
`

// CallbackRepository stores requests as rows with their notes in a child
// table. Notes are append-only.
type CallbackRepository struct {
	db *DB
}

func NewCallbackRepository(db *DB) *CallbackRepository {
	return &CallbackRepository{db: db}
}

// EnsureSchema creates the tables when they do not exist yet.
func (r *CallbackRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Pool().Exec(ctx, callbackSchema); err != nil {
		return fmt.Errorf("failed to create callback schema: %w", err)
	}
	return nil
}

func (r *CallbackRepository) Load(ctx context.Context) ([]*callback.CallbackRequest, error) {
	query := `
		SELECT id, customer_id, customer_name, customer_phone, customer_email, reason,
			priority, channel, status, scheduled_time, scheduled_end_time,
			estimated_wait_time, queue_position, retry_count, max_retries, retry_interval,
			last_attempt_at, next_retry_at, assigned_agent_id, assigned_agent_name,
			created_at, updated_at, completed_at, failed_at
		FROM callback_requests
		ORDER BY created_at, id
	`

	rows, err := r.db.Pool().Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to load callbacks: %w", err)
	}
	defer rows.Close()

	var out []*callback.CallbackRequest
	byID := make(map[string]*callback.CallbackRequest)
	for rows.Next() {
		var c callback.CallbackRequest
		if err := rows.Scan(
			&c.ID, &c.CustomerID, &c.CustomerName, &c.CustomerPhone, &c.CustomerEmail, &c.Reason,
			&c.Priority, &c.Channel, &c.Status, &c.ScheduledTime, &c.ScheduledEndTime,
			&c.EstimatedWaitTime, &c.QueuePosition, &c.RetryCount, &c.MaxRetries, &c.RetryInterval,
			&c.LastAttemptAt, &c.NextRetryAt, &c.AssignedAgentID, &c.AssignedAgentName,
			&c.CreatedAt, &c.UpdatedAt, &c.CompletedAt, &c.FailedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan callback: %w", err)
		}
		c.Notes = []callback.CallbackNote{}
		out = append(out, &c)
		byID[c.ID] = &c
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate callbacks: %w", err)
	}

	if err := r.loadNotes(ctx, byID); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *CallbackRepository) loadNotes(ctx context.Context, byID map[string]*callback.CallbackRequest) error {
	query := `
		SELECT id, callback_id, content, created_at, created_by, type
		FROM callback_notes
		ORDER BY created_at, id
	`

	rows, err := r.db.Pool().Query(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to load callback notes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var n callback.CallbackNote
		var callbackID string
		if err := rows.Scan(&n.ID, &callbackID, &n.Content, &n.CreatedAt, &n.CreatedBy, &n.Type); err != nil {
			return fmt.Errorf("failed to scan callback note: %w", err)
		}
		if c, ok := byID[callbackID]; ok {
			c.Notes = append(c.Notes, n)
		}
	}
	return rows.Err()
}

// Upsert writes the given requests and any notes not stored yet in one
// transaction.
func (r *CallbackRepository) Upsert(ctx context.Context, requests []*callback.CallbackRequest) error {
	if len(requests) == 0 {
		return nil
	}
	return r.db.WithTx(ctx, func(tx pgx.Tx) error {
		return upsertAll(ctx, tx, requests)
	})
}

// SaveAll makes the table match requests exactly.
func (r *CallbackRepository) SaveAll(ctx context.Context, requests []*callback.CallbackRequest) error {
	ids := make([]string, len(requests))
	for i, c := range requests {
		ids[i] = c.ID
	}

	return r.db.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM callback_requests WHERE NOT (id = ANY($1))`, pq.Array(ids)); err != nil {
			return fmt.Errorf("failed to prune callbacks: %w", err)
		}
		return upsertAll(ctx, tx, requests)
	})
}

func upsertAll(ctx context.Context, tx pgx.Tx, requests []*callback.CallbackRequest) error {
	query := `
		INSERT INTO callback_requests (
			id, customer_id, customer_name, customer_phone, customer_email, reason,
			priority, channel, status, scheduled_time, scheduled_end_time,
			estimated_wait_time, queue_position, retry_count, max_retries, retry_interval,
			last_attempt_at, next_retry_at, assigned_agent_id, assigned_agent_name,
			created_at, updated_at, completed_at, failed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24)
		ON CONFLICT (id) DO UPDATE SET
			customer_email = EXCLUDED.customer_email,
			reason = EXCLUDED.reason,
			priority = EXCLUDED.priority,
			status = EXCLUDED.status,
			scheduled_time = EXCLUDED.scheduled_time,
			scheduled_end_time = EXCLUDED.scheduled_end_time,
			estimated_wait_time = EXCLUDED.estimated_wait_time,
			queue_position = EXCLUDED.queue_position,
			retry_count = EXCLUDED.retry_count,
			max_retries = EXCLUDED.max_retries,
			retry_interval = EXCLUDED.retry_interval,
			last_attempt_at = EXCLUDED.last_attempt_at,
			next_retry_at = EXCLUDED.next_retry_at,
			assigned_agent_id = EXCLUDED.assigned_agent_id,
			assigned_agent_name = EXCLUDED.assigned_agent_name,
			updated_at = EXCLUDED.updated_at,
			completed_at = EXCLUDED.completed_at,
			failed_at = EXCLUDED.failed_at
	`
	noteQuery := `
		INSERT INTO callback_notes (id, callback_id, content, created_at, created_by, type)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING
	`

	batch := &pgx.Batch{}
	for _, c := range requests {
		batch.Queue(query,
			c.ID, c.CustomerID, c.CustomerName, c.CustomerPhone, c.CustomerEmail, c.Reason,
			c.Priority, c.Channel, c.Status, c.ScheduledTime, c.ScheduledEndTime,
			c.EstimatedWaitTime, c.QueuePosition, c.RetryCount, c.MaxRetries, c.RetryInterval,
			c.LastAttemptAt, c.NextRetryAt, c.AssignedAgentID, c.AssignedAgentName,
			c.CreatedAt, c.UpdatedAt, c.CompletedAt, c.FailedAt,
		)
		for _, n := range c.Notes {
			batch.Queue(noteQuery, n.ID, c.ID, n.Content, n.CreatedAt, n.CreatedBy, n.Type)
		}
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to upsert callbacks: %w", err)
	}
	return nil
}
