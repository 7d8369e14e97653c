package processor

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MikeSquared-Agency/snare/internal/anthropic"
	"github.com/MikeSquared-Agency/snare/internal/callback"
	"github.com/MikeSquared-Agency/snare/internal/detector"
	"github.com/MikeSquared-Agency/snare/internal/engagement"
	"github.com/MikeSquared-Agency/snare/internal/extractor"
	"github.com/MikeSquared-Agency/snare/internal/hermes"
	"github.com/MikeSquared-Agency/snare/internal/intel"
	"github.com/MikeSquared-Agency/snare/internal/session"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixedClassifier struct{ v detector.Verdict }

func (f fixedClassifier) Classify(context.Context, string) detector.Verdict {
	return f.v
}

type funcExtractor func(ctx context.Context, text string) extractor.Result

func (f funcExtractor) Extract(ctx context.Context, text string) extractor.Result {
	return f(ctx, text)
}

type funcReplier func(ctx context.Context, history []engagement.Turn, persona engagement.PersonaKey, latest string) string

func (f funcReplier) GenerateReply(ctx context.Context, history []engagement.Turn, persona engagement.PersonaKey, latest string) string {
	return f(ctx, history, persona, latest)
}

type recordingReporter struct {
	mu  sync.Mutex
	got []callback.Payload
}

func (r *recordingReporter) Submit(p callback.Payload) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, p)
	return true
}

func (r *recordingReporter) payloads() []callback.Payload {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]callback.Payload(nil), r.got...)
}

type recordingPublisher struct {
	mu   sync.Mutex
	subj []string
	data []any
}

func (r *recordingPublisher) Publish(subject string, data any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subj = append(r.subj, subject)
	r.data = append(r.data, data)
	return nil
}

type failingPolicy struct{}

func (failingPolicy) Evaluate(context.Context, string, intel.Intelligence, int) (callback.Decision, error) {
	return callback.Decision{}, errors.New("redis down")
}

var scamVerdict = detector.Verdict{
	IsScam:     true,
	Confidence: 0.9,
	Reason:     "asks for payment",
	ScamType:   detector.UPIFraud,
	Source:     detector.SourceOracle,
}

func staticExtractor(in intel.Intelligence) Extractor {
	return funcExtractor(func(context.Context, string) extractor.Result {
		return extractor.Result{Intel: in, Source: extractor.SourceOracle}
	})
}

func staticReplier(reply string) Replier {
	return funcReplier(func(context.Context, []engagement.Turn, engagement.PersonaKey, string) string {
		return reply
	})
}

func newPolicy() *callback.Policy {
	return callback.NewPolicy(session.NewMemory(0, 0), callback.DefaultCadence, discardLogger())
}

func TestHandle_NotScam(t *testing.T) {
	called := false
	ext := funcExtractor(func(context.Context, string) extractor.Result {
		called = true
		return extractor.Result{}
	})
	rep := funcReplier(func(context.Context, []engagement.Turn, engagement.PersonaKey, string) string {
		called = true
		return ""
	})
	reporter := &recordingReporter{}
	p := New(fixedClassifier{detector.Verdict{Source: detector.SourceOracle, ScamType: detector.None}}, ext, rep, newPolicy(), reporter, nil, discardLogger())

	res, err := p.Handle(context.Background(), Event{
		SessionID: "s1",
		Message:   Message{Sender: "scammer", Text: "Hi, are we still on for lunch?"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Reply != NeutralReply {
		t.Errorf("expected neutral reply, got %q", res.Reply)
	}
	if called {
		t.Error("extraction or reply ran for a non-scam message")
	}
	if len(reporter.payloads()) != 0 {
		t.Error("expected no report for a non-scam message")
	}
}

func TestHandle_InvalidEvent(t *testing.T) {
	p := New(fixedClassifier{scamVerdict}, staticExtractor(intel.Empty()), staticReplier("ok"), newPolicy(), &recordingReporter{}, nil, discardLogger())

	tests := []struct {
		name string
		evt  Event
	}{
		{"missing session", Event{Message: Message{Text: "hello"}}},
		{"blank session", Event{SessionID: "  ", Message: Message{Text: "hello"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := p.Handle(context.Background(), tt.evt); !errors.Is(err, ErrInvalidEvent) {
				t.Errorf("expected ErrInvalidEvent, got %v", err)
			}
		})
	}
}

func TestHandle_ExtractionAndReplyRunConcurrently(t *testing.T) {
	extStarted := make(chan struct{})
	repStarted := make(chan struct{})

	ext := funcExtractor(func(ctx context.Context, text string) extractor.Result {
		close(extStarted)
		select {
		case <-repStarted:
		case <-time.After(2 * time.Second):
			t.Error("reply generation did not start while extraction was running")
		}
		return extractor.Result{Intel: intel.Extract(text), Source: extractor.SourcePattern}
	})
	rep := funcReplier(func(context.Context, []engagement.Turn, engagement.PersonaKey, string) string {
		close(repStarted)
		select {
		case <-extStarted:
		case <-time.After(2 * time.Second):
			t.Error("extraction did not start while reply generation was running")
		}
		return "Sir which UPI?"
	})

	p := New(fixedClassifier{scamVerdict}, ext, rep, newPolicy(), &recordingReporter{}, nil, discardLogger())
	res, err := p.Handle(context.Background(), Event{
		SessionID: "parallel",
		Message:   Message{Sender: "scammer", Text: "pay to scam@fakebank"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Reply != "Sir which UPI?" {
		t.Errorf("unexpected reply %q", res.Reply)
	}
}

func TestHandle_HistoryRolesAndFullText(t *testing.T) {
	var gotText string
	var gotHistory []engagement.Turn
	var gotPersona engagement.PersonaKey
	var gotLatest string

	ext := funcExtractor(func(_ context.Context, text string) extractor.Result {
		gotText = text
		return extractor.Result{Intel: intel.Empty(), Source: extractor.SourceOracle}
	})
	rep := funcReplier(func(_ context.Context, history []engagement.Turn, persona engagement.PersonaKey, latest string) string {
		gotHistory = history
		gotPersona = persona
		gotLatest = latest
		return "ok"
	})

	p := New(fixedClassifier{scamVerdict}, ext, rep, newPolicy(), &recordingReporter{}, nil, discardLogger())
	_, err := p.Handle(context.Background(), Event{
		SessionID: "abc-123",
		Message:   Message{Sender: "scammer", Text: "third"},
		ConversationHistory: []Message{
			{Sender: "scammer", Text: "first"},
			{Sender: "user", Text: "second"},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotText != "third\nfirst\nsecond" {
		t.Errorf("unexpected full text %q", gotText)
	}
	want := []engagement.Turn{
		{Role: engagement.RoleCounterpart, Text: "first"},
		{Role: engagement.RoleSelf, Text: "second"},
	}
	if len(gotHistory) != len(want) {
		t.Fatalf("expected %d turns, got %d", len(want), len(gotHistory))
	}
	for i := range want {
		if gotHistory[i] != want[i] {
			t.Errorf("turn %d: got %+v, want %+v", i, gotHistory[i], want[i])
		}
	}
	if gotPersona != engagement.SelectPersona("abc-123") {
		t.Errorf("unexpected persona %q", gotPersona)
	}
	if gotLatest != "third" {
		t.Errorf("unexpected latest %q", gotLatest)
	}
}

func TestHandle_PanicBecomesError(t *testing.T) {
	ext := funcExtractor(func(context.Context, string) extractor.Result {
		panic("merge exploded")
	})
	p := New(fixedClassifier{scamVerdict}, ext, staticReplier("ok"), newPolicy(), &recordingReporter{}, nil, discardLogger())

	_, err := p.Handle(context.Background(), Event{SessionID: "boom", Message: Message{Sender: "scammer", Text: "urgent"}})
	if err == nil || !strings.Contains(err.Error(), "merge exploded") {
		t.Fatalf("expected panic surfaced as error, got %v", err)
	}
}

func TestHandle_PolicyErrorIsNotFatal(t *testing.T) {
	reporter := &recordingReporter{}
	p := New(fixedClassifier{scamVerdict}, staticExtractor(intel.Extract("pay scam@fakebank")), staticReplier("ok"), failingPolicy{}, reporter, nil, discardLogger())

	res, err := p.Handle(context.Background(), Event{SessionID: "s", Message: Message{Sender: "scammer", Text: "pay scam@fakebank"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Reply != "ok" {
		t.Errorf("expected reply despite policy failure, got %q", res.Reply)
	}
	if len(reporter.payloads()) != 0 {
		t.Error("expected no report when the policy fails")
	}
}

func TestHandle_ReportPayload(t *testing.T) {
	reporter := &recordingReporter{}
	pub := &recordingPublisher{}
	found := intel.Normalize(intel.Intelligence{UPIIDs: []string{"scam@fakebank"}})
	p := New(fixedClassifier{scamVerdict}, staticExtractor(found), staticReplier("ok"), newPolicy(), reporter, pub, discardLogger())

	_, err := p.Handle(context.Background(), Event{
		SessionID: "payload",
		Message:   Message{Sender: "scammer", Text: "pay now", Timestamp: 1_700_000_095_500},
		ConversationHistory: []Message{
			{Sender: "scammer", Text: "hello", Timestamp: 1_700_000_000_000},
			{Sender: "user", Text: "who is this"},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := reporter.payloads()
	if len(got) != 1 {
		t.Fatalf("expected one report, got %d", len(got))
	}
	r := got[0]
	if r.SessionID != "payload" || !r.ScamDetected || r.TotalMessagesExchanged != 3 {
		t.Errorf("unexpected payload %+v", r)
	}
	if r.EngagementDurationSeconds != 95 {
		t.Errorf("expected 95s engagement, got %d", r.EngagementDurationSeconds)
	}
	wantNotes := callback.AgentNotes("asks for payment", "UPI Fraud", string(engagement.SelectPersona("payload")))
	if r.AgentNotes != wantNotes {
		t.Errorf("notes %q, want %q", r.AgentNotes, wantNotes)
	}

	if len(pub.subj) != 1 || pub.subj[0] != hermes.SubjectScamDetected {
		t.Errorf("expected scam detected event, got %v", pub.subj)
	}
}

// scriptedLLM answers each oracle by the token budget it asks for, which is
// distinct per adapter.
type scriptedLLM struct {
	classify string
	extract  string
	reply    string
}

func (s scriptedLLM) Complete(_ context.Context, _ string, _ []anthropic.Message, maxTokens int) (string, error) {
	switch maxTokens {
	case 256:
		return s.classify, nil
	case 1024:
		return s.extract, nil
	default:
		return s.reply, nil
	}
}

func TestHandle_EndToEndFirstTurnReport(t *testing.T) {
	llm := scriptedLLM{
		classify: `{"is_scam": true, "confidence": 0.97, "reason": "account block threat with OTP request", "scam_type": "Bank Fraud"}`,
		extract:  "```json\n{\"upiIds\": [\"scam@fakebank\"], \"suspiciousKeywords\": [\"account blocked\", \"urgent\"]}\n```",
		reply:    "Arre beta, which bank account you are talking?",
	}
	logger := discardLogger()
	reporter := &recordingReporter{}
	p := New(
		detector.New(llm, time.Second, logger),
		extractor.New(llm, time.Second, logger),
		engagement.NewReplier(llm, time.Second, logger),
		newPolicy(),
		reporter,
		nil,
		logger,
	)

	res, err := p.Handle(context.Background(), Event{
		SessionID: "e2e",
		Message: Message{
			Sender: "scammer",
			Text:   "URGENT: Your account will be blocked. Share account number 1234567890123456 and OTP now. Pay to scam@fakebank",
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Verdict.IsScam {
		t.Fatal("expected scam verdict")
	}
	if res.Reply != "Arre beta, which bank account you are talking?" {
		t.Errorf("unexpected reply %q", res.Reply)
	}

	in := res.Intel
	if len(in.BankAccounts) != 1 || in.BankAccounts[0] != "1234567890123456" {
		t.Errorf("unexpected bank accounts %v", in.BankAccounts)
	}
	if len(in.UPIIDs) != 1 || in.UPIIDs[0] != "scam@fakebank" {
		t.Errorf("unexpected upi ids %v", in.UPIIDs)
	}
	for _, kw := range []string{"urgent", "account blocked"} {
		found := false
		for _, got := range in.SuspiciousKeywords {
			if got == kw {
				found = true
			}
		}
		if !found {
			t.Errorf("expected keyword %q in %v", kw, in.SuspiciousKeywords)
		}
	}

	if !res.Decision.Report || res.Decision.Reason != callback.ReasonNewIntel {
		t.Errorf("expected first-turn report, got %+v", res.Decision)
	}
	if len(reporter.payloads()) != 1 {
		t.Errorf("expected one queued report, got %d", len(reporter.payloads()))
	}
}

func TestHandleBusEvent_PublishesReply(t *testing.T) {
	pub := &recordingPublisher{}
	p := New(fixedClassifier{scamVerdict}, staticExtractor(intel.Empty()), staticReplier("Sir send number"), newPolicy(), &recordingReporter{}, pub, discardLogger())

	data, _ := json.Marshal(map[string]any{
		"sessionId": "bus-1",
		"message":   map[string]any{"sender": "scammer", "text": "urgent kyc", "timestamp": "2025-01-01T10:00:00Z"},
	})
	p.HandleBusEvent(hermes.SubjectInbound, data)

	pub.mu.Lock()
	defer pub.mu.Unlock()
	var reply *BusReply
	for i, s := range pub.subj {
		if s == hermes.SubjectReply {
			r := pub.data[i].(BusReply)
			reply = &r
		}
	}
	if reply == nil {
		t.Fatalf("expected a reply on %s, got %v", hermes.SubjectReply, pub.subj)
	}
	if reply.SessionID != "bus-1" || reply.Reply != "Sir send number" || !reply.ScamDetected {
		t.Errorf("unexpected reply %+v", reply)
	}
}

func TestHandleBusEvent_BadPayload(t *testing.T) {
	pub := &recordingPublisher{}
	p := New(fixedClassifier{scamVerdict}, staticExtractor(intel.Empty()), staticReplier("x"), newPolicy(), &recordingReporter{}, pub, discardLogger())

	p.HandleBusEvent(hermes.SubjectInbound, []byte("not json"))
	if len(pub.subj) != 0 {
		t.Errorf("expected nothing published, got %v", pub.subj)
	}
}

type downLLM struct{}

func (downLLM) Complete(context.Context, string, []anthropic.Message, int) (string, error) {
	return "", errors.New("connection refused")
}

func TestHandle_EmptyTextGetsNeutralReply(t *testing.T) {
	logger := discardLogger()
	reporter := &recordingReporter{}
	p := New(
		detector.New(downLLM{}, time.Second, logger),
		extractor.New(downLLM{}, time.Second, logger),
		engagement.NewReplier(downLLM{}, time.Second, logger),
		newPolicy(),
		reporter,
		nil,
		logger,
	)

	for _, text := range []string{"", "   "} {
		res, err := p.Handle(context.Background(), Event{
			SessionID: "empty-text",
			Message:   Message{Sender: "scammer", Text: text},
		})
		if err != nil {
			t.Fatalf("text %q: unexpected error: %v", text, err)
		}
		if res.Verdict.IsScam || res.Reply != NeutralReply {
			t.Errorf("text %q: expected neutral not-scam result, got %+v", text, res)
		}
	}
	if len(reporter.payloads()) != 0 {
		t.Error("expected no report for empty text")
	}
}
