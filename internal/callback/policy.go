package callback

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/MikeSquared-Agency/snare/internal/intel"
	"github.com/MikeSquared-Agency/snare/internal/session"
)

const (
	// DefaultCadence is how many messages may pass without new intelligence
	// before a liveness report is sent anyway.
	DefaultCadence = 5

	casAttempts = 3
)

// Reason explains a trigger decision.
type Reason string

const (
	ReasonNone       Reason = ""
	ReasonNewIntel   Reason = "new_intel"
	ReasonCadence    Reason = "cadence"
	ReasonSuppressed Reason = "suppressed_empty"
)

// Decision is the outcome of one policy evaluation.
type Decision struct {
	Report     bool
	Reason     Reason
	IntelCount int
	MsgCount   int
	Previous   session.State
	Next       session.State
}

// Policy decides when a session has earned a new report.
type Policy struct {
	store   session.Store
	cadence int
	logger  *slog.Logger
}

func NewPolicy(store session.Store, cadence int, logger *slog.Logger) *Policy {
	if cadence <= 0 {
		cadence = DefaultCadence
	}
	return &Policy{store: store, cadence: cadence, logger: logger}
}

// Evaluate decides whether the current turn should be reported and, if so,
// advances the session state. The state change is a compare-and-set, so of
// several concurrent turns that see the same prior state only one reports.
//
// A trigger with no intelligence at all is suppressed without advancing the
// session, so the next turn can trigger again.
func (p *Policy) Evaluate(ctx context.Context, sessionID string, in intel.Intelligence, msgCount int) (Decision, error) {
	intelCount := in.Count()

	for attempt := 0; attempt < casAttempts; attempt++ {
		prev, err := p.store.Get(ctx, sessionID)
		if err != nil {
			return Decision{}, fmt.Errorf("load session: %w", err)
		}

		d := Decision{IntelCount: intelCount, MsgCount: msgCount, Previous: prev, Next: prev}
		switch {
		case intelCount > prev.LastIntelCount:
			d.Reason = ReasonNewIntel
		case msgCount >= prev.LastMessageCount+p.cadence:
			d.Reason = ReasonCadence
		default:
			return d, nil
		}

		if in.IsEmpty() {
			d.Reason = ReasonSuppressed
			return d, nil
		}

		d.Next = session.State{
			LastIntelCount:   max(prev.LastIntelCount, intelCount),
			LastMessageCount: max(prev.LastMessageCount, msgCount),
		}
		ok, err := p.store.CompareAndSet(ctx, sessionID, prev, d.Next)
		if err != nil {
			return Decision{}, fmt.Errorf("advance session: %w", err)
		}
		if ok {
			d.Report = true
			return d, nil
		}

		p.logger.Debug("session state changed concurrently, re-evaluating",
			"session_id", sessionID,
			"attempt", attempt+1,
		)
	}

	p.logger.Warn("gave up advancing contended session", "session_id", sessionID)
	return Decision{IntelCount: intelCount, MsgCount: msgCount}, nil
}
