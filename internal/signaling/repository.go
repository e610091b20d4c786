package signaling

import (
	"context"
	"database/sql"
	"fmt"
)

// Repository is the persistence contract for the signal store.
//
// Append-only: no update method exists. Clear is the single bulk-delete used
// before a fresh call attempt and after a call ends, to bound log growth.
type Repository interface {
	Append(ctx context.Context, s Signal) (Signal, error)
	ListSession(ctx context.Context, sessionID, afterID int64) ([]Signal, error)
	Clear(ctx context.Context, sessionID int64) error
}

// PostgresRepo stores signals in Postgres.
//
// Expected table:
//
//	CREATE TABLE video_call_signals (
//	    id          BIGSERIAL PRIMARY KEY,
//	    session_id  BIGINT NOT NULL,
//	    sender_id   BIGINT NOT NULL,
//	    signal_type TEXT   NOT NULL,
//	    signal_data TEXT   NOT NULL,
//	    created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
//	);
//	CREATE INDEX video_call_signals_session_idx ON video_call_signals (session_id, id);
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Append(ctx context.Context, s Signal) (Signal, error) {
	const q = `
		INSERT INTO video_call_signals (session_id, sender_id, signal_type, signal_data)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, q, s.SessionID, s.SenderID, s.Type, s.Payload).
		Scan(&s.ID, &s.CreatedAt)
	if err != nil {
		return Signal{}, fmt.Errorf("append signal: %w", err)
	}
	return s, nil
}

func (r *PostgresRepo) ListSession(ctx context.Context, sessionID, afterID int64) ([]Signal, error) {
	const q = `
		SELECT id, session_id, sender_id, signal_type, signal_data, created_at
		FROM video_call_signals
		WHERE session_id = $1 AND id > $2
		ORDER BY id ASC`

	rows, err := r.db.QueryContext(ctx, q, sessionID, afterID)
	if err != nil {
		return nil, fmt.Errorf("list signals: %w", err)
	}
	defer rows.Close()

	var out []Signal
	for rows.Next() {
		var s Signal
		if err := rows.Scan(&s.ID, &s.SessionID, &s.SenderID, &s.Type, &s.Payload, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan signal: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list signals: %w", err)
	}
	return out, nil
}

func (r *PostgresRepo) Clear(ctx context.Context, sessionID int64) error {
	const q = `DELETE FROM video_call_signals WHERE session_id = $1`
	if _, err := r.db.ExecContext(ctx, q, sessionID); err != nil {
		return fmt.Errorf("clear signals: %w", err)
	}
	return nil
}
