package callback

import (
	"fmt"
	"strings"

	"github.com/MikeSquared-Agency/snare/internal/intel"
)

// Payload is the final-result report sent to the evaluation endpoint.
type Payload struct {
	SessionID                 string             `json:"sessionId"`
	ScamDetected              bool               `json:"scamDetected"`
	TotalMessagesExchanged    int                `json:"totalMessagesExchanged"`
	EngagementDurationSeconds int64              `json:"engagementDurationSeconds"`
	ExtractedIntelligence     intel.Intelligence `json:"extractedIntelligence"`
	AgentNotes                string             `json:"agentNotes"`
}

// AgentNotes summarises why the session was flagged and how it was engaged.
func AgentNotes(reason, scamType, persona string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Detected via %s.", strings.TrimSuffix(strings.TrimSpace(reason), "."))
	if scamType != "" {
		fmt.Fprintf(&b, " Scam type: %s.", scamType)
	}
	fmt.Fprintf(&b, " Persona used: %s.", persona)
	return b.String()
}
