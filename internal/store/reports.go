package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/snare/internal/callback"
)

// ReportRow is one stored report.
type ReportRow struct {
	ID                uuid.UUID
	SessionID         string
	ScamDetected      bool
	TotalMessages     int
	EngagementSeconds int64
	IntelCount        int
	Intelligence      json.RawMessage
	AgentNotes        string
}

// RecordReport appends a delivered report to the audit log.
func (s *Store) RecordReport(ctx context.Context, p callback.Payload) (uuid.UUID, error) {
	data, err := json.Marshal(p.ExtractedIntelligence)
	if err != nil {
		return uuid.Nil, fmt.Errorf("marshal intelligence: %w", err)
	}

	id := uuid.New()
	_, err = s.pool.Exec(ctx, `
		INSERT INTO honeypot_reports
			(id, session_id, scam_detected, total_messages, engagement_seconds, intel_count, intelligence, agent_notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		id, p.SessionID, p.ScamDetected, p.TotalMessagesExchanged, p.EngagementDurationSeconds,
		p.ExtractedIntelligence.Count(), data, p.AgentNotes,
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert report: %w", err)
	}
	return id, nil
}

// ListReports returns the reports stored for a session, oldest first.
func (s *Store) ListReports(ctx context.Context, sessionID string) ([]ReportRow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, session_id, scam_detected, total_messages, engagement_seconds, intel_count, intelligence, agent_notes
		FROM honeypot_reports
		WHERE session_id = $1
		ORDER BY created_at`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("query reports: %w", err)
	}
	defer rows.Close()

	var out []ReportRow
	for rows.Next() {
		var r ReportRow
		if err := rows.Scan(&r.ID, &r.SessionID, &r.ScamDetected, &r.TotalMessages, &r.EngagementSeconds, &r.IntelCount, &r.Intelligence, &r.AgentNotes); err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ReportSink adapts the audit log to a callback.Sink.
type ReportSink struct {
	store *Store
}

func NewReportSink(s *Store) *ReportSink {
	return &ReportSink{store: s}
}

func (r *ReportSink) Name() string { return "postgres" }

func (r *ReportSink) Deliver(ctx context.Context, p callback.Payload) error {
	_, err := r.store.RecordReport(ctx, p)
	return err
}
