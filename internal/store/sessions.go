package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/MikeSquared-Agency/snare/internal/session"
)

// Get returns the tracked state for a session, or the zero state.
func (s *Store) Get(ctx context.Context, sessionID string) (session.State, error) {
	var st session.State
	err := s.pool.QueryRow(ctx, `
		SELECT last_intel_count, last_message_count
		FROM honeypot_sessions
		WHERE session_id = $1`,
		sessionID,
	).Scan(&st.LastIntelCount, &st.LastMessageCount)
	if errors.Is(err, pgx.ErrNoRows) {
		return session.State{}, nil
	}
	if err != nil {
		return session.State{}, fmt.Errorf("get session: %w", err)
	}
	return st, nil
}

// CompareAndSet writes next only if the stored row still matches old. A
// missing row matches the zero state.
func (s *Store) CompareAndSet(ctx context.Context, sessionID string, old, next session.State) (bool, error) {
	var (
		query string
		args  []any
	)
	if old == (session.State{}) {
		query = `
			INSERT INTO honeypot_sessions (session_id, last_intel_count, last_message_count, updated_at)
			VALUES ($1, $2, $3, now())
			ON CONFLICT (session_id) DO UPDATE SET
				last_intel_count = EXCLUDED.last_intel_count,
				last_message_count = EXCLUDED.last_message_count,
				updated_at = now()
			WHERE honeypot_sessions.last_intel_count = 0
				AND honeypot_sessions.last_message_count = 0`
		args = []any{sessionID, next.LastIntelCount, next.LastMessageCount}
	} else {
		query = `
			UPDATE honeypot_sessions SET
				last_intel_count = $2,
				last_message_count = $3,
				updated_at = now()
			WHERE session_id = $1
				AND last_intel_count = $4
				AND last_message_count = $5`
		args = []any{sessionID, next.LastIntelCount, next.LastMessageCount, old.LastIntelCount, old.LastMessageCount}
	}

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("compare-and-set session: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// PurgeIdleSessions deletes sessions not written for longer than idle.
func (s *Store) PurgeIdleSessions(ctx context.Context, idle time.Duration) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM honeypot_sessions
		WHERE updated_at < now() - make_interval(secs => $1)`,
		idle.Seconds(),
	)
	if err != nil {
		return 0, fmt.Errorf("purge sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}
