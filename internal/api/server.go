package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MikeSquared-Agency/snare/internal/intel"
	"github.com/MikeSquared-Agency/snare/internal/processor"
)

const maxBodyBytes = 1 << 20

// Profile selects the shape of the message response.
type Profile string

const (
	// ProfileMinimal returns only status and reply.
	ProfileMinimal Profile = "minimal"
	// ProfileRich adds the verdict, extracted intelligence and engagement metrics.
	ProfileRich Profile = "rich"
)

// ParseProfile maps a config value onto a Profile, defaulting to minimal.
func ParseProfile(s string) Profile {
	switch Profile(strings.ToLower(strings.TrimSpace(s))) {
	case ProfileRich:
		return ProfileRich
	case ProfileMinimal, "":
		return ProfileMinimal
	default:
		slog.Warn("unknown response profile, using minimal", "profile", s)
		return ProfileMinimal
	}
}

// Handler runs one conversation turn.
type Handler interface {
	Handle(ctx context.Context, evt processor.Event) (processor.Result, error)
}

// SessionCounter and QueueDepth feed the status endpoint. Either may be nil.
type SessionCounter interface {
	Len() int
}

type QueueDepth interface {
	Pending() int
}

type Server struct {
	router   *chi.Mux
	port     int
	handler  Handler
	profile  Profile
	sessions SessionCounter
	queue    QueueDepth
	started  time.Time
	srv      *http.Server
}

func NewServer(port int, apiKey string, profile Profile, h Handler, sessions SessionCounter, queue QueueDepth) *Server {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	s := &Server{
		router:   router,
		port:     port,
		handler:  h,
		profile:  profile,
		sessions: sessions,
		queue:    queue,
		started:  time.Now(),
	}
	s.srv = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	router.Get("/health", s.health)
	router.Get("/api/v1/snare/status", s.status)

	router.Group(func(r chi.Router) {
		r.Use(APIKeyMiddleware(apiKey))
		r.Post("/detect-scam", s.message)
		r.Post("/api/v1/honeypot/message", s.message)
	})

	return s
}

func (s *Server) Start() error {
	slog.Info("API server starting", "addr", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

type engagementMetrics struct {
	TotalMessages             int   `json:"total_messages"`
	EngagementDurationSeconds int64 `json:"engagement_duration_seconds"`
}

type messageResponse struct {
	Status                string              `json:"status"`
	Reply                 string              `json:"reply"`
	ScamDetected          *bool               `json:"scam_detected,omitempty"`
	ConfidenceScore       *float64            `json:"confidence_score,omitempty"`
	ScamType              string              `json:"scam_type,omitempty"`
	ExtractedIntelligence *intel.Intelligence `json:"extracted_intelligence,omitempty"`
	EngagementMetrics     *engagementMetrics  `json:"engagement_metrics,omitempty"`
}

func (s *Server) message(w http.ResponseWriter, r *http.Request) {
	var evt processor.Event
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&evt); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}

	// A dropped caller must not cancel oracle calls or the report; each
	// adapter bounds its own calls with a timeout.
	res, err := s.handler.Handle(context.WithoutCancel(r.Context()), evt)
	if errors.Is(err, processor.ErrInvalidEvent) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		slog.Error("message processing failed",
			"session_id", evt.SessionID,
			"request_id", middleware.GetReqID(r.Context()),
			"error", err,
		)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, s.render(res))
}

func (s *Server) render(res processor.Result) messageResponse {
	out := messageResponse{Status: "success", Reply: res.Reply}
	if s.profile != ProfileRich {
		return out
	}

	scam := res.Verdict.IsScam
	conf := res.Verdict.Confidence
	in := res.Intel
	out.ScamDetected = &scam
	out.ConfidenceScore = &conf
	out.ScamType = string(res.Verdict.ScamType)
	out.ExtractedIntelligence = &in
	out.EngagementMetrics = &engagementMetrics{
		TotalMessages:             res.MsgCount,
		EngagementDurationSeconds: res.EngagementSeconds,
	}
	return out
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"agent":          "snare",
		"status":         "active",
		"profile":        string(s.profile),
		"uptime_seconds": int64(time.Since(s.started).Seconds()),
	}
	if s.sessions != nil {
		body["sessions"] = s.sessions.Len()
	}
	if s.queue != nil {
		body["pending_reports"] = s.queue.Pending()
	}
	writeJSON(w, http.StatusOK, body)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"status": "error", "message": msg})
}
