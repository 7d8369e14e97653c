package extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/MikeSquared-Agency/snare/internal/anthropic"
	"github.com/MikeSquared-Agency/snare/internal/intel"
)

// Source records where a result came from.
type Source string

const (
	SourceOracle   Source = "oracle"
	SourcePattern  Source = "pattern"
	SourceFallback Source = "fallback"
)

// Result is the outcome of an extraction. Source is SourceFallback when the
// oracle failed and Err holds the reason; Intel is always usable.
type Result struct {
	Intel  intel.Intelligence
	Source Source
	Err    error
}

type Extractor struct {
	llm     anthropic.Completer
	timeout time.Duration
	logger  *slog.Logger
}

func New(llm anthropic.Completer, timeout time.Duration, logger *slog.Logger) *Extractor {
	return &Extractor{llm: llm, timeout: timeout, logger: logger}
}

// Extract runs the pattern scanner and the oracle over text and merges both.
// An oracle failure degrades to pattern-only coverage.
func (e *Extractor) Extract(ctx context.Context, text string) Result {
	pattern := intel.Extract(text)
	oracle := e.ExtractViaOracle(ctx, text)

	merged := intel.Merge(pattern, oracle.Intel)
	src := SourceOracle
	if oracle.Err != nil {
		src = SourcePattern
	}

	e.logger.Debug("extraction merged",
		"pattern_count", pattern.Count(),
		"oracle_count", oracle.Intel.Count(),
		"merged_count", merged.Count(),
		"source", string(src),
	)

	return Result{Intel: merged, Source: src, Err: oracle.Err}
}

// ExtractViaOracle asks the oracle for all nine categories. It never fails:
// on any error the result carries empty intelligence and the cause.
func (e *Extractor) ExtractViaOracle(ctx context.Context, text string) Result {
	in, err := e.oracle(ctx, text)
	if err != nil {
		e.logger.Warn("oracle extraction failed, using pattern coverage only", "error", err)
		return Result{Intel: intel.Empty(), Source: SourceFallback, Err: err}
	}
	return Result{Intel: in, Source: SourceOracle}
}

func (e *Extractor) oracle(ctx context.Context, text string) (intel.Intelligence, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	messages := []anthropic.Message{
		{Role: "user", Content: fmt.Sprintf(extractionUserPrompt, text)},
	}

	raw, err := e.llm.Complete(ctx, systemPrompt, messages, 1024)
	if err != nil {
		return intel.Intelligence{}, fmt.Errorf("llm extraction: %w", err)
	}

	var resp intel.Intelligence
	if err := json.Unmarshal([]byte(anthropic.StripFences(raw)), &resp); err != nil {
		e.logger.Debug("unparseable extraction response", "raw", raw)
		return intel.Intelligence{}, fmt.Errorf("parse extraction: %w", err)
	}

	return intel.Normalize(resp), nil
}
