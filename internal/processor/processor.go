package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MikeSquared-Agency/snare/internal/callback"
	"github.com/MikeSquared-Agency/snare/internal/detector"
	"github.com/MikeSquared-Agency/snare/internal/engagement"
	"github.com/MikeSquared-Agency/snare/internal/extractor"
	"github.com/MikeSquared-Agency/snare/internal/hermes"
	"github.com/MikeSquared-Agency/snare/internal/intel"
)

// NeutralReply is returned for messages that are not classified as a scam.
const NeutralReply = "Hello, how can I help you?"

// ErrInvalidEvent is returned when an event lacks a session id or message.
var ErrInvalidEvent = errors.New("invalid event")

type Classifier interface {
	Classify(ctx context.Context, text string) detector.Verdict
}

type Extractor interface {
	Extract(ctx context.Context, text string) extractor.Result
}

type Replier interface {
	GenerateReply(ctx context.Context, history []engagement.Turn, persona engagement.PersonaKey, latest string) string
}

type TriggerPolicy interface {
	Evaluate(ctx context.Context, sessionID string, in intel.Intelligence, msgCount int) (callback.Decision, error)
}

// Reporter queues a report for background delivery. It must not block.
type Reporter interface {
	Submit(p callback.Payload) bool
}

// Result is everything the pipeline learned about one turn.
type Result struct {
	Reply             string
	Verdict           detector.Verdict
	Intel             intel.Intelligence
	IntelSource       extractor.Source
	Persona           engagement.PersonaKey
	MsgCount          int
	EngagementSeconds int64
	Decision          callback.Decision
	Reported          bool
}

// Processor runs the per-turn pipeline: classify, then extract and reply
// concurrently, then decide whether to report.
type Processor struct {
	classifier Classifier
	extractor  Extractor
	replier    Replier
	policy     TriggerPolicy
	reporter   Reporter
	hermes     hermes.Publisher
	logger     *slog.Logger
}

// New builds a Processor. pub may be nil when no event bus is configured.
func New(c Classifier, e Extractor, r Replier, policy TriggerPolicy, reporter Reporter, pub hermes.Publisher, logger *slog.Logger) *Processor {
	return &Processor{
		classifier: c,
		extractor:  e,
		replier:    r,
		policy:     policy,
		reporter:   reporter,
		hermes:     pub,
		logger:     logger,
	}
}

// Handle processes one inbound turn and returns the reply for the caller.
// Report delivery happens in the background and is never waited on.
func (p *Processor) Handle(ctx context.Context, evt Event) (Result, error) {
	if err := evt.Validate(); err != nil {
		return Result{}, err
	}

	res := Result{MsgCount: evt.MessageCount(), Intel: intel.Empty()}

	res.Verdict = p.classifier.Classify(ctx, evt.Message.Text)
	if !res.Verdict.IsScam {
		res.Reply = NeutralReply
		p.logger.Debug("message not a scam",
			"session_id", evt.SessionID,
			"source", string(res.Verdict.Source),
		)
		return res, nil
	}

	res.Persona = engagement.SelectPersona(evt.SessionID)
	history := historyTurns(evt.ConversationHistory)

	g, gctx := errgroup.WithContext(ctx)
	var extracted extractor.Result
	g.Go(func() (err error) {
		defer recoverInto(&err, "extraction")
		extracted = p.extractor.Extract(gctx, evt.FullText())
		return nil
	})
	g.Go(func() (err error) {
		defer recoverInto(&err, "reply generation")
		res.Reply = p.replier.GenerateReply(gctx, history, res.Persona, evt.Message.Text)
		return nil
	})
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	res.Intel = extracted.Intel
	res.IntelSource = extracted.Source
	res.EngagementSeconds = evt.EngagementSeconds()

	decision, err := p.policy.Evaluate(ctx, evt.SessionID, res.Intel, res.MsgCount)
	if err != nil {
		// The caller still gets its reply; only this turn's report is lost.
		p.logger.Error("callback policy failed", "session_id", evt.SessionID, "error", err)
	}
	res.Decision = decision

	if decision.Report {
		payload := callback.Payload{
			SessionID:                 evt.SessionID,
			ScamDetected:              true,
			TotalMessagesExchanged:    res.MsgCount,
			EngagementDurationSeconds: res.EngagementSeconds,
			ExtractedIntelligence:     res.Intel,
			AgentNotes:                callback.AgentNotes(res.Verdict.Reason, string(res.Verdict.ScamType), string(res.Persona)),
		}
		res.Reported = p.reporter.Submit(payload)
		p.logger.Info("report triggered",
			"session_id", evt.SessionID,
			"reason", string(decision.Reason),
			"intel_count", decision.IntelCount,
			"msg_count", decision.MsgCount,
			"queued", res.Reported,
		)
	}

	p.publishDetected(evt.SessionID, res)

	p.logger.Info("turn processed",
		"session_id", evt.SessionID,
		"scam_type", string(res.Verdict.ScamType),
		"persona", string(res.Persona),
		"intel_count", res.Intel.Count(),
		"intel_source", string(res.IntelSource),
		"msg_count", res.MsgCount,
	)
	return res, nil
}

// BusReply is published on hermes.SubjectReply for every event received on
// hermes.SubjectInbound.
type BusReply struct {
	SessionID    string    `json:"sessionId"`
	Reply        string    `json:"reply"`
	ScamDetected bool      `json:"scamDetected"`
	Timestamp    time.Time `json:"timestamp"`
}

// HandleBusEvent is the NATS handler for hermes.SubjectInbound.
func (p *Processor) HandleBusEvent(subject string, data []byte) {
	var evt Event
	if err := json.Unmarshal(data, &evt); err != nil {
		p.logger.Error("failed to parse inbound event", "subject", subject, "error", err)
		return
	}

	res, err := p.Handle(context.Background(), evt)
	if err != nil {
		p.logger.Error("inbound event failed", "session_id", evt.SessionID, "error", err)
		return
	}

	if p.hermes == nil {
		return
	}
	reply := BusReply{
		SessionID:    evt.SessionID,
		Reply:        res.Reply,
		ScamDetected: res.Verdict.IsScam,
		Timestamp:    time.Now().UTC(),
	}
	if err := p.hermes.Publish(hermes.SubjectReply, reply); err != nil {
		p.logger.Error("failed to publish reply", "session_id", evt.SessionID, "error", err)
	}
}

func (p *Processor) publishDetected(sessionID string, res Result) {
	if p.hermes == nil {
		return
	}
	evt := hermes.ScamDetectedEvent{
		SessionID:  sessionID,
		ScamType:   string(res.Verdict.ScamType),
		Confidence: res.Verdict.Confidence,
		Reason:     res.Verdict.Reason,
		Persona:    string(res.Persona),
		Timestamp:  time.Now().UTC(),
	}
	if err := p.hermes.Publish(hermes.SubjectScamDetected, evt); err != nil {
		p.logger.Warn("failed to publish scam detected", "session_id", sessionID, "error", err)
	}
}

func historyTurns(msgs []Message) []engagement.Turn {
	turns := make([]engagement.Turn, 0, len(msgs))
	for _, m := range msgs {
		role := engagement.RoleSelf
		if m.FromActor() {
			role = engagement.RoleCounterpart
		}
		turns = append(turns, engagement.Turn{Role: role, Text: m.Text})
	}
	return turns
}

func recoverInto(err *error, stage string) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("%s panicked: %v", stage, r)
	}
}
