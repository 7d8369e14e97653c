package processor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Sender tags that identify the fraud actor. Anything else is treated as one
// of the honeypot's own earlier replies.
var actorSenders = map[string]bool{
	"scammer": true,
	"actor":   true,
}

// Millis is an epoch timestamp in milliseconds. It decodes from a JSON
// number, a numeric string or an RFC3339 string. Zero means absent.
type Millis int64

func (m *Millis) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*m = 0
		return nil
	}

	if data[0] != '"' {
		f, err := strconv.ParseFloat(string(data), 64)
		if err != nil {
			return fmt.Errorf("timestamp: %w", err)
		}
		*m = Millis(f)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		*m = 0
		return nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		*m = Millis(n)
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return fmt.Errorf("timestamp %q: %w", s, err)
	}
	*m = Millis(t.UnixMilli())
	return nil
}

// Message is one turn of the conversation.
type Message struct {
	Sender    string `json:"sender"`
	Text      string `json:"text"`
	Timestamp Millis `json:"timestamp,omitempty"`
}

// FromActor reports whether the message was sent by the fraud actor.
func (m Message) FromActor() bool {
	return actorSenders[strings.ToLower(strings.TrimSpace(m.Sender))]
}

type Metadata struct {
	Channel  string `json:"channel,omitempty"`
	Language string `json:"language,omitempty"`
	Locale   string `json:"locale,omitempty"`
}

// Event is one inbound turn together with everything said before it.
type Event struct {
	SessionID           string    `json:"sessionId"`
	Message             Message   `json:"message"`
	ConversationHistory []Message `json:"conversationHistory"`
	Metadata            *Metadata `json:"metadata,omitempty"`
}

// Validate checks the fields the pipeline cannot do without. An empty
// message text is allowed; it classifies as not-scam.
func (e Event) Validate() error {
	if strings.TrimSpace(e.SessionID) == "" {
		return fmt.Errorf("%w: missing sessionId", ErrInvalidEvent)
	}
	return nil
}

// MessageCount is the number of turns including the current one.
func (e Event) MessageCount() int {
	return len(e.ConversationHistory) + 1
}

// FullText is the current message followed by every earlier message, in
// history order.
func (e Event) FullText() string {
	var b strings.Builder
	b.WriteString(e.Message.Text)
	for _, m := range e.ConversationHistory {
		b.WriteByte('\n')
		b.WriteString(m.Text)
	}
	return b.String()
}

// EngagementSeconds is the whole number of seconds from the earliest known
// history timestamp (or the current message when there is no history) to the
// current message. It is zero when either end is missing.
func (e Event) EngagementSeconds() int64 {
	end := e.Message.Timestamp
	start := e.Message.Timestamp
	if len(e.ConversationHistory) > 0 {
		start = 0
		for _, m := range e.ConversationHistory {
			if m.Timestamp != 0 && (start == 0 || m.Timestamp < start) {
				start = m.Timestamp
			}
		}
	}
	if start == 0 || end == 0 || end < start {
		return 0
	}
	return int64(end-start) / 1000
}
