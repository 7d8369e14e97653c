package hermes

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/MikeSquared-Agency/snare/internal/callback"
	"github.com/MikeSquared-Agency/snare/internal/intel"
)

const (
	// SubjectReported carries every final-result report the honeypot emits.
	SubjectReported = "swarm.snare.intel.reported"
	// SubjectScamDetected is published once per turn classified as a scam.
	SubjectScamDetected = "swarm.snare.scam.detected"
	// SubjectInbound is where other services can push conversation events.
	SubjectInbound = "swarm.snare.inbound"
	// SubjectReply carries replies to events received on SubjectInbound.
	SubjectReply = "swarm.snare.reply"
)

// ReportedEvent is the bus form of a final-result report.
type ReportedEvent struct {
	EventID      string             `json:"event_id"`
	SessionID    string             `json:"session_id"`
	IntelCount   int                `json:"intel_count"`
	Messages     int                `json:"messages"`
	DurationSecs int64              `json:"duration_seconds"`
	Intelligence intel.Intelligence `json:"intelligence"`
	AgentNotes   string             `json:"agent_notes"`
	Timestamp    time.Time          `json:"timestamp"`
}

// ScamDetectedEvent announces a turn classified as a scam.
type ScamDetectedEvent struct {
	SessionID  string    `json:"session_id"`
	ScamType   string    `json:"scam_type"`
	Confidence float64   `json:"confidence"`
	Reason     string    `json:"reason"`
	Persona    string    `json:"persona"`
	Timestamp  time.Time `json:"timestamp"`
}

type Client struct {
	conn   *nats.Conn
	subs   []*nats.Subscription
	logger *slog.Logger
}

func NewClient(ctx context.Context, url, token string, logger *slog.Logger) (*Client, error) {
	opts := []nats.Option{
		nats.Name("snare"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(60),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("nats reconnected")
		}),
	}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	return &Client{conn: nc, logger: logger}, nil
}

func (c *Client) Publish(subject string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	return c.conn.Publish(subject, payload)
}

func (c *Client) Subscribe(subject string, handler func(subject string, data []byte)) error {
	sub, err := c.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(msg.Subject, msg.Data)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", subject, err)
	}
	c.subs = append(c.subs, sub)
	c.logger.Info("subscribed", "subject", subject)
	return nil
}

func (c *Client) Close() {
	for _, sub := range c.subs {
		_ = sub.Unsubscribe()
	}
	c.conn.Close()
}

// Publisher is the part of Client the report sink needs.
type Publisher interface {
	Publish(subject string, data any) error
}

// ReportSink publishes reports on SubjectReported.
type ReportSink struct {
	pub Publisher
}

func NewReportSink(pub Publisher) *ReportSink {
	return &ReportSink{pub: pub}
}

func (s *ReportSink) Name() string { return "nats" }

func (s *ReportSink) Deliver(_ context.Context, p callback.Payload) error {
	return s.pub.Publish(SubjectReported, NewReportedEvent(p))
}

func NewReportedEvent(p callback.Payload) ReportedEvent {
	return ReportedEvent{
		EventID:      uuid.New().String(),
		SessionID:    p.SessionID,
		IntelCount:   p.ExtractedIntelligence.Count(),
		Messages:     p.TotalMessagesExchanged,
		DurationSecs: p.EngagementDurationSeconds,
		Intelligence: p.ExtractedIntelligence,
		AgentNotes:   p.AgentNotes,
		Timestamp:    time.Now().UTC(),
	}
}
