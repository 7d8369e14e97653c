package detector

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/MikeSquared-Agency/snare/internal/anthropic"
)

type stubLLM struct {
	text string
	err  error
	got  []anthropic.Message
}

func (s *stubLLM) Complete(ctx context.Context, system string, messages []anthropic.Message, maxTokens int) (string, error) {
	s.got = messages
	return s.text, s.err
}

func newTestDetector(llm anthropic.Completer) *Detector {
	return New(llm, time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestClassify_OracleVerdict(t *testing.T) {
	llm := &stubLLM{text: `{"is_scam": true, "confidence": 0.97, "reason": "asks for OTP", "scam_type": "Bank Fraud"}`}
	d := newTestDetector(llm)

	v := d.Classify(context.Background(), "Share your OTP now")
	if !v.IsScam || v.Confidence != 0.97 || v.ScamType != BankFraud || v.Source != SourceOracle {
		t.Errorf("unexpected verdict %+v", v)
	}
	if v.Reason != "asks for OTP" {
		t.Errorf("unexpected reason %q", v.Reason)
	}
	if len(llm.got) != 1 || !strings.Contains(llm.got[0].Content, "Share your OTP now") {
		t.Errorf("expected the message in the prompt, got %+v", llm.got)
	}
}

func TestClassify_NotScamForcesNone(t *testing.T) {
	d := newTestDetector(&stubLLM{text: "```json\n{\"is_scam\": false, \"confidence\": 0.1, \"reason\": \"greeting\", \"scam_type\": \"Phishing\"}\n```"})

	v := d.Classify(context.Background(), "hi, how are you")
	if v.IsScam || v.ScamType != None || v.Source != SourceOracle {
		t.Errorf("unexpected verdict %+v", v)
	}
}

func TestClassify_ClampsConfidence(t *testing.T) {
	d := newTestDetector(&stubLLM{text: `{"is_scam": true, "confidence": 7, "scam_type": "upi_fraud"}`})

	v := d.Classify(context.Background(), "pay me")
	if v.Confidence != 1 {
		t.Errorf("expected clamped confidence 1, got %f", v.Confidence)
	}
	if v.ScamType != UPIFraud {
		t.Errorf("expected UPI fraud, got %s", v.ScamType)
	}
}

func TestClassify_FallbackOnError(t *testing.T) {
	d := newTestDetector(&stubLLM{err: errors.New("timeout")})

	v := d.Classify(context.Background(), "Your KYC PENDING, update now")
	if !v.IsScam {
		t.Fatal("expected keyword fallback to flag scam")
	}
	if v.Confidence != 0.85 {
		t.Errorf("expected confidence 0.85, got %f", v.Confidence)
	}
	if v.Reason != "keyword fallback: kyc pending" {
		t.Errorf("unexpected reason %q", v.Reason)
	}
	if v.ScamType != Other || v.Source != SourceFallback {
		t.Errorf("unexpected verdict %+v", v)
	}
}

func TestClassify_FallbackOnGarbage(t *testing.T) {
	tests := []string{"not json at all", `{"confidence": 0.9}`, ""}
	for _, text := range tests {
		d := newTestDetector(&stubLLM{text: text})
		v := d.Classify(context.Background(), "good morning, lunch at 1?")
		if v.IsScam || v.Reason != "oracle error" || v.Confidence != 0 || v.Source != SourceFallback {
			t.Errorf("response %q: unexpected verdict %+v", text, v)
		}
	}
}

func TestParseScamType(t *testing.T) {
	tests := map[string]ScamType{
		"Bank Fraud": BankFraud,
		"bank_fraud": BankFraud,
		"UPI Fraud":  UPIFraud,
		"phishing":   Phishing,
		"Job  Scam":  JobScam,
		"Lottery":    Other,
		"None":       None,
		"":           None,
	}
	for in, want := range tests {
		if got := ParseScamType(in); got != want {
			t.Errorf("ParseScamType(%q) = %s, want %s", in, got, want)
		}
	}
}
