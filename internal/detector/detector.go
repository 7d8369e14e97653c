package detector

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/MikeSquared-Agency/snare/internal/anthropic"
)

// ScamType tags the kind of fraud a message belongs to.
type ScamType string

const (
	BankFraud ScamType = "Bank Fraud"
	UPIFraud  ScamType = "UPI Fraud"
	Phishing  ScamType = "Phishing"
	JobScam   ScamType = "Job Scam"
	Other     ScamType = "Other"
	None      ScamType = "None"
)

// ParseScamType maps the oracle's label onto a ScamType. Unknown labels
// become Other; an empty label becomes None.
func ParseScamType(s string) ScamType {
	switch strings.ToLower(strings.Join(strings.Fields(strings.NewReplacer("_", " ", "-", " ").Replace(s)), " ")) {
	case "bank fraud":
		return BankFraud
	case "upi fraud":
		return UPIFraud
	case "phishing":
		return Phishing
	case "job scam":
		return JobScam
	case "none", "":
		return None
	default:
		return Other
	}
}

// Source records whether a verdict came from the oracle or the keyword fallback.
type Source string

const (
	SourceOracle   Source = "oracle"
	SourceFallback Source = "fallback"
)

// Verdict is the classification of one message.
type Verdict struct {
	IsScam     bool
	Confidence float64
	Reason     string
	ScamType   ScamType
	Source     Source
}

// ScamKeywords trigger a scam verdict when the oracle is unavailable.
var ScamKeywords = []string{
	"account blocked", "kyc pending", "click this link", "click here", "verify immediately",
	"urgent", "send otp", "share upi", "lottery", "winner", "prize", "claim", "offer",
	"selected for", "iphone", "rs.",
	"bank account suspended", "debit card blocked",
	"aadhar", "pan card", "rbi", "paytm", "phonepe", "gpay",
	"light bill", "electricity connection", "challan",
}

type Detector struct {
	llm     anthropic.Completer
	timeout time.Duration
	logger  *slog.Logger
}

func New(llm anthropic.Completer, timeout time.Duration, logger *slog.Logger) *Detector {
	return &Detector{llm: llm, timeout: timeout, logger: logger}
}

type llmVerdict struct {
	IsScam     *bool    `json:"is_scam"`
	Confidence *float64 `json:"confidence"`
	Reason     string   `json:"reason"`
	ScamType   string   `json:"scam_type"`
}

// Classify asks the oracle whether text is a scam. It never fails: when the
// oracle errors or answers with something unparseable it falls back to
// KeywordVerdict.
func (d *Detector) Classify(ctx context.Context, text string) Verdict {
	v, err := d.oracle(ctx, text)
	if err != nil {
		fb := KeywordVerdict(text)
		d.logger.Warn("classification oracle failed, using keyword fallback",
			"error", err,
			"is_scam", fb.IsScam,
		)
		return fb
	}
	return v
}

func (d *Detector) oracle(ctx context.Context, text string) (Verdict, error) {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	messages := []anthropic.Message{
		{Role: "user", Content: fmt.Sprintf(classifyUserPrompt, text)},
	}

	raw, err := d.llm.Complete(ctx, systemPrompt, messages, 256)
	if err != nil {
		return Verdict{}, fmt.Errorf("llm classify: %w", err)
	}

	var resp llmVerdict
	if err := json.Unmarshal([]byte(anthropic.StripFences(raw)), &resp); err != nil {
		return Verdict{}, fmt.Errorf("parse classification: %w", err)
	}
	if resp.IsScam == nil {
		return Verdict{}, fmt.Errorf("parse classification: missing is_scam")
	}

	v := Verdict{
		IsScam:   *resp.IsScam,
		Reason:   resp.Reason,
		ScamType: ParseScamType(resp.ScamType),
		Source:   SourceOracle,
	}
	if resp.Confidence != nil {
		v.Confidence = clamp(*resp.Confidence)
	}
	if v.Reason == "" {
		v.Reason = "oracle analysis"
	}
	if !v.IsScam {
		v.ScamType = None
	} else if v.ScamType == None {
		v.ScamType = Other
	}
	return v, nil
}

// KeywordVerdict is the heuristic used when the oracle is unavailable.
func KeywordVerdict(text string) Verdict {
	lower := strings.ToLower(text)
	for _, kw := range ScamKeywords {
		if strings.Contains(lower, kw) {
			return Verdict{
				IsScam:     true,
				Confidence: 0.85,
				Reason:     "keyword fallback: " + kw,
				ScamType:   Other,
				Source:     SourceFallback,
			}
		}
	}
	return Verdict{
		IsScam:     false,
		Confidence: 0.0,
		Reason:     "oracle error",
		ScamType:   None,
		Source:     SourceFallback,
	}
}

func clamp(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
