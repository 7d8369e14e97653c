package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MikeSquared-Agency/snare/internal/anthropic"
	"github.com/MikeSquared-Agency/snare/internal/api"
	"github.com/MikeSquared-Agency/snare/internal/callback"
	"github.com/MikeSquared-Agency/snare/internal/config"
	"github.com/MikeSquared-Agency/snare/internal/detector"
	"github.com/MikeSquared-Agency/snare/internal/engagement"
	"github.com/MikeSquared-Agency/snare/internal/extractor"
	"github.com/MikeSquared-Agency/snare/internal/hermes"
	"github.com/MikeSquared-Agency/snare/internal/processor"
	"github.com/MikeSquared-Agency/snare/internal/session"
	"github.com/MikeSquared-Agency/snare/internal/slack"
	"github.com/MikeSquared-Agency/snare/internal/store"
)

func main() {
	cfg := config.Load()
	setupLogging(cfg.LogLevel)

	slog.Info("snare starting", "port", cfg.Port, "session_backend", cfg.SessionBackend)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Anthropic client
	if cfg.AnthropicAPIKey == "" {
		slog.Error("ANTHROPIC_API_KEY is required")
		os.Exit(1)
	}
	llm := anthropic.NewClient(cfg.AnthropicAPIKey, cfg.AnthropicModel, cfg.OracleTimeout)
	slog.Info("anthropic client ready", "model", llm.Model())

	// Database (optional unless it backs the session tracker)
	var db *store.Store
	if cfg.DatabaseURL != "" {
		var err error
		db, err = store.New(ctx, cfg.DatabaseURL)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := db.EnsureSchema(ctx); err != nil {
			slog.Error("failed to apply schema", "error", err)
			os.Exit(1)
		}
		slog.Info("database connected")
	}

	// Session tracker
	var (
		sessions session.Store
		counter  api.SessionCounter
		rdb      *redis.Client
	)
	switch cfg.SessionBackend {
	case "redis":
		if cfg.RedisURL == "" {
			slog.Error("REDIS_URL is required for the redis session backend")
			os.Exit(1)
		}
		var err error
		rdb, err = session.DialRedis(ctx, cfg.RedisURL)
		if err != nil {
			slog.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer rdb.Close()
		sessions = session.NewRedis(rdb, cfg.SessionTTL)
	case "postgres":
		if db == nil {
			slog.Error("DATABASE_URL is required for the postgres session backend")
			os.Exit(1)
		}
		sessions = db
		go purgeIdleSessions(ctx, db, cfg.SessionTTL)
	default:
		mem := session.NewMemory(cfg.SessionMax, cfg.SessionTTL)
		sessions = mem
		counter = mem
	}
	slog.Info("session tracker ready", "backend", cfg.SessionBackend, "ttl", cfg.SessionTTL)

	// NATS/Hermes (optional)
	var hermesClient *hermes.Client
	var publisher hermes.Publisher
	if cfg.NatsURL != "" {
		var err error
		hermesClient, err = hermes.NewClient(ctx, cfg.NatsURL, cfg.NatsToken, slog.Default())
		if err != nil {
			slog.Error("failed to connect to NATS", "error", err)
			os.Exit(1)
		}
		defer hermesClient.Close()
		publisher = hermesClient
		slog.Info("NATS connected", "url", cfg.NatsURL)
	}

	// Report sinks: the evaluation callback always, the rest when configured
	sinks := []callback.Sink{callback.NewHTTPSink(cfg.CallbackURL, cfg.CallbackTimeout)}
	if db != nil {
		sinks = append(sinks, store.NewReportSink(db))
	}
	if hermesClient != nil {
		sinks = append(sinks, hermes.NewReportSink(hermesClient))
	}
	if cfg.SlackBotToken != "" && cfg.SlackChannel != "" {
		sinks = append(sinks, slack.NewPoster(cfg.SlackBotToken, cfg.SlackChannel, slog.Default()))
		slog.Info("slack poster ready", "channel", cfg.SlackChannel)
	} else {
		slog.Warn("slack not configured, running without analyst notifications")
	}
	dispatcher := callback.NewDispatcher(sinks, cfg.CallbackWorkers, cfg.CallbackQueue, cfg.CallbackTimeout, slog.Default())

	// Processor, the main pipeline
	proc := processor.New(
		detector.New(llm, cfg.OracleTimeout, slog.Default()),
		extractor.New(llm, cfg.OracleTimeout, slog.Default()),
		engagement.NewReplier(llm, cfg.OracleTimeout, slog.Default()),
		callback.NewPolicy(sessions, cfg.ReportCadence, slog.Default()),
		dispatcher,
		publisher,
		slog.Default(),
	)

	if hermesClient != nil && cfg.NatsInbound {
		if err := hermesClient.Subscribe(hermes.SubjectInbound, proc.HandleBusEvent); err != nil {
			slog.Error("failed to subscribe to inbound events", "error", err)
			os.Exit(1)
		}
	}

	// HTTP API
	srv := api.NewServer(cfg.Port, cfg.APIKey, api.ParseProfile(cfg.ResponseProfile), proc, counter, dispatcher)
	go func() {
		if err := srv.Start(); err != nil {
			slog.Error("HTTP server error", "error", err)
			cancel()
		}
	}()

	if hermesClient != nil {
		if err := hermesClient.Publish("swarm.agent.snare.registered", map[string]any{
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"port":      cfg.Port,
			"profile":   cfg.ResponseProfile,
		}); err != nil {
			slog.Warn("failed to publish registration", "error", err)
		}
	}

	slog.Info("snare ready", "port", cfg.Port, "sinks", len(sinks))

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
	case <-ctx.Done():
	}
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("HTTP shutdown incomplete", "error", err)
	}
	if err := dispatcher.Close(shutdownCtx); err != nil {
		slog.Warn("report queue not drained", "pending", dispatcher.Pending(), "error", err)
	}
	cancel()
	slog.Info("snare stopped")
}

// purgeIdleSessions drops Postgres session rows untouched for longer than ttl.
func purgeIdleSessions(ctx context.Context, db *store.Store, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	interval := max(ttl/4, time.Minute)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := db.PurgeIdleSessions(ctx, ttl)
			if err != nil {
				slog.Warn("session purge failed", "error", err)
				continue
			}
			if n > 0 {
				slog.Info("purged idle sessions", "count", n)
			}
		}
	}
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}
