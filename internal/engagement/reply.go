package engagement

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/MikeSquared-Agency/snare/internal/anthropic"
	"github.com/MikeSquared-Agency/snare/internal/intel"
)

// StallReply is returned when the oracle cannot produce a reply.
const StallReply = "Sir I am not understanding, please tell again?"

// contextTurns bounds how much history goes into the prompt.
const contextTurns = 4

// Role says who wrote a turn, from the honeypot's point of view.
type Role string

const (
	RoleCounterpart Role = "counterpart"
	RoleSelf        Role = "self"
)

// Turn is one prior message as the reply oracle sees it.
type Turn struct {
	Role Role
	Text string
}

type Replier struct {
	llm     anthropic.Completer
	timeout time.Duration
	logger  *slog.Logger
}

func NewReplier(llm anthropic.Completer, timeout time.Duration, logger *slog.Logger) *Replier {
	return &Replier{llm: llm, timeout: timeout, logger: logger}
}

// GenerateReply produces the next in-character message. It never fails; on
// oracle error it returns StallReply.
func (r *Replier) GenerateReply(ctx context.Context, history []Turn, persona PersonaKey, latest string) string {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	system := Voice(persona) + "\n\n" + strategyPrompt
	messages := []anthropic.Message{
		{Role: "user", Content: buildPrompt(history, latest)},
	}

	raw, err := r.llm.Complete(ctx, system, messages, 200)
	if err != nil {
		r.logger.Warn("reply generation failed, stalling", "persona", string(persona), "error", err)
		return StallReply
	}

	reply := cleanReply(raw)
	if reply == "" {
		r.logger.Warn("reply generation returned empty text, stalling", "persona", string(persona))
		return StallReply
	}
	return reply
}

func buildPrompt(history []Turn, latest string) string {
	var b strings.Builder
	b.WriteString("Situation: ")
	b.WriteString(strategyHint(history, latest))
	b.WriteString("\n\nConversation History:\n")

	recent := history
	if len(recent) > contextTurns {
		recent = recent[len(recent)-contextTurns:]
	}
	for _, t := range recent {
		fmt.Fprintf(&b, "%s: %s\n", speaker(t.Role), t.Text)
	}
	fmt.Fprintf(&b, "Scammer: %s\n", latest)
	b.WriteString("You (reply in character):")
	return b.String()
}

// strategyHint looks at everything the counterpart has said so far and picks
// which elicitation move to make next.
func strategyHint(history []Turn, latest string) string {
	var said strings.Builder
	for _, t := range history {
		if t.Role == RoleCounterpart {
			said.WriteString(t.Text)
			said.WriteByte('\n')
		}
	}
	said.WriteString(latest)

	found := intel.Extract(said.String())
	switch {
	case !found.HasPaymentIdentifier():
		return hintAskIdentifier
	case len(found.PhishingLinks) > 0 && len(found.UPIIDs) == 0 && len(found.PhoneNumbers) == 0:
		return hintLinkBroken
	default:
		return hintKeepGoing
	}
}

func speaker(r Role) string {
	if r == RoleCounterpart {
		return "Scammer"
	}
	return "You"
}

func cleanReply(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "You:")
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	return s
}
