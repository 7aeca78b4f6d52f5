package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"nim-chat/internal/config"
	"nim-chat/internal/http"
	"nim-chat/internal/llm"
	"nim-chat/internal/metrics"
	"nim-chat/internal/render"
	"nim-chat/internal/sampling"
	"nim-chat/internal/service"
	"nim-chat/internal/session"
)

// General API information
//
// Chat front-end for NVIDIA-hosted LLMs. Each browser session keeps its own
// conversation and sampling settings; messages are forwarded to the NVIDIA
// OpenAI-compatible chat completions endpoint.
//
// ---
// info:
//   title: NIM Chat API
//   version: 1.0.0
// consumes:
//   - application/json
//   - application/x-www-form-urlencoded
// produces:
//   - application/json
//   - text/html
//   - text/event-stream

func main() {
	// Load configuration first (needed for log level)
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Configure structured logging with configurable level and format
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	slog.Debug("Logging configured", "level", cfg.LogLevel.String(), "format", cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Model list and slider ranges
	controls, err := sampling.LoadControls(cfg.ModelCatalogPath)
	if err != nil {
		log.Fatalf("Failed to load model catalog: %v", err)
	}
	slog.Info("Model catalog loaded", "models", len(controls.Models), "default_model", controls.DefaultModel)

	if !cfg.HasCredential() {
		slog.Warn("NVIDIA_API_KEY is not set; messages will fail until it is configured")
	}

	// Sessions
	sessions := session.NewManager(controls.Defaults(), cfg.SessionIdle)
	sessions.SetLimit(cfg.MaxSessions)
	go sessions.Run(ctx)

	m := metrics.New(func() float64 { return float64(sessions.Len()) })

	// Create LLM client (external service layer)
	llmClient := llm.NewClient(cfg.LLMBaseURL)
	configurator := sampling.NewConfigurator(cfg.LLMAPIKey)

	chatService := service.NewChatService(llmClient, configurator, controls, service.Options{
		SendHistory: cfg.SendHistory,
		Metrics:     m,
	})

	// Create router with dependencies
	router := http.NewRouter(&http.Deps{
		ChatService:  chatService,
		Sessions:     sessions,
		Models:       llmClient,
		Metrics:      m,
		Markdown:     render.NewMarkdown(),
		APIKey:       cfg.LLMAPIKey,
		CookieSecure: cfg.CookieSecure,
	})

	server := &nethttp.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("Starting API server", "addr", server.Addr)
		slog.Debug("LLM configuration", "base_url", cfg.LLMBaseURL, "send_history", cfg.SendHistory,
			"session_idle", cfg.SessionIdle)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			log.Fatalf("API server failed to start: %v", err)
		}
	}()

	// Wait for interrupt signal
	<-ctx.Done()
	slog.Info("Shutting down API server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server shutdown failed", "error", err)
	}
}
