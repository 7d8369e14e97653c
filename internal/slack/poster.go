package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/MikeSquared-Agency/snare/internal/callback"
)

const defaultPostMessageURL = "https://slack.com/api/chat.postMessage"

// Poster notifies an analyst channel about every report the honeypot emits.
type Poster struct {
	token   string
	channel string
	client  *http.Client
	logger  *slog.Logger
	apiURL  string
}

func NewPoster(token, channel string, logger *slog.Logger) *Poster {
	return &Poster{
		token:   token,
		channel: channel,
		client:  &http.Client{Timeout: 10 * time.Second},
		apiURL:  defaultPostMessageURL,
		logger:  logger,
	}
}

func (p *Poster) Name() string { return "slack" }

// Deliver posts a report summary. It satisfies callback.Sink.
func (p *Poster) Deliver(ctx context.Context, r callback.Payload) error {
	_, err := p.PostReport(ctx, r)
	return err
}

// PostReport posts the report summary and returns the message timestamp.
func (p *Poster) PostReport(ctx context.Context, r callback.Payload) (string, error) {
	text := formatReportMessage(r)

	body, err := json.Marshal(map[string]any{
		"channel": p.channel,
		"text":    text,
		"blocks": []map[string]any{
			{
				"type": "section",
				"text": map[string]any{
					"type": "mrkdwn",
					"text": text,
				},
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+p.token)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("slack post: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var slackResp struct {
		OK    bool   `json:"ok"`
		TS    string `json:"ts"`
		Error string `json:"error,omitempty"`
	}
	if err := json.Unmarshal(respBody, &slackResp); err != nil {
		return "", fmt.Errorf("parse slack response: %w", err)
	}
	if !slackResp.OK {
		return "", fmt.Errorf("slack error: %s", slackResp.Error)
	}

	p.logger.Info("posted report to slack", "ts", slackResp.TS, "session_id", r.SessionID)
	return slackResp.TS, nil
}

func formatReportMessage(r callback.Payload) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "*Scam session:* `%s`\n", r.SessionID)
	fmt.Fprintf(&sb, "*Messages:* %d | *Engaged for:* %s\n", r.TotalMessagesExchanged, time.Duration(r.EngagementDurationSeconds)*time.Second)
	if r.AgentNotes != "" {
		fmt.Fprintf(&sb, "_%s_\n", r.AgentNotes)
	}
	sb.WriteString("\n")

	in := r.ExtractedIntelligence
	sections := []struct {
		label  string
		values []string
	}{
		{"UPI IDs", in.UPIIDs},
		{"Bank accounts", in.BankAccounts},
		{"Phone numbers", in.PhoneNumbers},
		{"Links", in.PhishingLinks},
		{"Emails", in.EmailAddresses},
		{"Case IDs", in.CaseIDs},
		{"Policy numbers", in.PolicyNumbers},
		{"Order numbers", in.OrderNumbers},
		{"Red flags", in.SuspiciousKeywords},
	}
	for _, s := range sections {
		if len(s.values) == 0 {
			continue
		}
		fmt.Fprintf(&sb, "*%s:* %s\n", s.label, strings.Join(s.values, ", "))
	}

	if in.IsEmpty() {
		sb.WriteString("_No indicators extracted._")
	}

	return sb.String()
}
