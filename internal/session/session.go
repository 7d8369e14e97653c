// Package session tracks, per conversation, how much intelligence has already
// been reported and at which message count.
package session

import "context"

// State is the only per-session data kept between requests. The zero value
// is the state of a session that has never been reported.
type State struct {
	LastIntelCount   int `json:"last_intel_count"`
	LastMessageCount int `json:"last_message_count"`
}

// Store is the session-state backend behind the callback trigger policy.
// CompareAndSet replaces the state only if it still equals old, which lets
// concurrent requests for one session agree on a single report.
type Store interface {
	Get(ctx context.Context, sessionID string) (State, error)
	CompareAndSet(ctx context.Context, sessionID string, old, next State) (bool, error)
}
