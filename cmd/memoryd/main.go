// Package main is the entry point for the memory service.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/promptpad/memoryd/internal/config"
	"github.com/promptpad/memoryd/internal/engine"
	"github.com/promptpad/memoryd/internal/events"
	"github.com/promptpad/memoryd/internal/handler"
	"github.com/promptpad/memoryd/internal/llm"
	"github.com/promptpad/memoryd/internal/middleware"
	"github.com/promptpad/memoryd/internal/watch"
	"github.com/promptpad/memoryd/pkg/logger"
	"github.com/promptpad/memoryd/pkg/tracing"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	log.Info("starting memory service", zap.String("root", cfg.MemoryRoot))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "memoryd", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	// Initialize the memory engine
	eng := engine.New(engine.Config{
		Root:           cfg.MemoryRoot,
		RecordCacheTTL: cfg.RecordCacheTTL,
	}, log)
	if err := eng.Initialize(ctx); err != nil {
		log.Error("failed to initialize memory engine", zap.Error(err))
		os.Exit(1)
	}

	// Watch for snapshot rewrites by other processes
	if cfg.WatchSnapshot {
		watcher, err := watch.New(eng, log)
		if err != nil {
			log.Warn("failed to start snapshot watcher", zap.Error(err))
		} else {
			go watcher.Run(ctx)
		}
	}

	// Optional NATS event publishing
	var publisher *events.Publisher
	if cfg.NATSEnabled {
		publisher, err = events.Connect(ctx, events.Config{
			URL:      cfg.NATSURL,
			CAFile:   cfg.NATSCAFile,
			CertFile: cfg.NATSCertFile,
			KeyFile:  cfg.NATSKeyFile,
			Token:    cfg.NATSToken,
		}, log)
		if err != nil {
			log.Warn("failed to connect to NATS, events disabled", zap.Error(err))
		} else {
			defer publisher.Close()
		}
	}

	// External generator client for the chat glue endpoint
	var generator llm.Client
	switch {
	case cfg.AnthropicAPIKey != "" && cfg.DefaultProvider != string(llm.ProviderOpenAI):
		generator, err = llm.NewClient(llm.ProviderAnthropic, cfg.AnthropicAPIKey)
	case cfg.OpenAIAPIKey != "":
		generator, err = llm.NewClient(llm.ProviderOpenAI, cfg.OpenAIAPIKey)
	}
	if err != nil {
		log.Warn("failed to create generator client, chat endpoint disabled", zap.Error(err))
		generator = nil
	}

	// Initialize handlers
	healthHandler := handler.NewHealthHandler(publisher)
	memoryHandler := handler.NewMemoryHandler(eng, publisher, log)
	chatHandler := handler.NewChatHandler(eng, generator, publisher, log)

	// Create router
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposedHeaders:   []string{"X-Correlation-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	// Metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	// API routes with authentication
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWTSecret))
		r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))

		r.Route("/memory", func(r chi.Router) {
			r.Post("/conversations", memoryHandler.Store)
			r.Get("/conversations/{id}", memoryHandler.Get)
			r.Post("/detect", memoryHandler.Detect)
			r.Post("/context", memoryHandler.Context)
			r.Get("/search", memoryHandler.Search)
		})

		r.Post("/chat", chatHandler.Chat)
	})

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      r,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}
