// Copyright (C) 2026 The Selene Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/agpl-3.0> for the full license text.

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"go.opentelemetry.io/otel"

	"github.com/innacampo/selene-demo/pkg/logging"
	"github.com/innacampo/selene-demo/services/llm"
	"github.com/innacampo/selene-demo/services/selene/config"
	"github.com/innacampo/selene-demo/services/selene/contextbuilder"
	"github.com/innacampo/selene-demo/services/selene/observability"
	"github.com/innacampo/selene-demo/services/selene/rag"
	"github.com/innacampo/selene-demo/services/selene/report"
	"github.com/innacampo/selene-demo/services/selene/routes"
	"github.com/innacampo/selene-demo/services/selene/storage"
)

var serveDebug bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Selene HTTP server",
	Long: `Starts the Selene API server. The server reads its configuration
from environment variables (see 'selene --help') and keeps all data
under the Selene data directory.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveDebug, "debug", false, "enable debug logging and Gin debug mode")
}

func runServe(cmd *cobra.Command, args []string) error {
	settings := config.Load()

	logLevel := logging.LevelInfo
	if serveDebug {
		logLevel = logging.LevelDebug
	}
	logger := logging.New(logging.Config{
		Level:   logLevel,
		LogDir:  filepath.Join(settings.DataDir, "logs"),
		Service: "selene",
	})
	defer logger.Close()
	slog.SetDefault(logger.Slog())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := observability.Init(ctx, observability.DefaultConfig())
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			slog.Warn("Telemetry shutdown failed", "error", err)
		}
	}()

	metrics, err := observability.NewMetrics(otel.Meter("selene"))
	if err != nil {
		slog.Warn("Metrics disabled", "error", err)
		metrics = nil
	}

	pulses, err := storage.NewPulseStore(settings.PulseFile)
	if err != nil {
		return fmt.Errorf("failed to open pulse store: %w", err)
	}
	profiles, err := storage.NewProfileStore(settings.ProfileFile)
	if err != nil {
		return fmt.Errorf("failed to open profile store: %w", err)
	}
	sessions, err := storage.NewSessionStore(settings.SessionDBDir)
	if err != nil {
		return fmt.Errorf("failed to open session store: %w", err)
	}
	defer sessions.Close()

	stages, err := config.LoadStages(settings.StagesFile)
	if err != nil {
		return fmt.Errorf("failed to load stage definitions: %w", err)
	}

	builder := contextbuilder.NewBuilder(profiles, pulses, stages, contextbuilder.WithMetrics(metrics))

	searcher, err := newSearcher(ctx, settings.WeaviateURL)
	if err != nil {
		return err
	}

	llmClient, streamClient, err := newLLMClients(settings.LLMBackend)
	if err != nil {
		return err
	}

	orchestrator := rag.NewOrchestrator(searcher, llmClient, rag.WithMetrics(metrics))
	generator := report.NewGenerator(pulses, llmClient)

	// External edits to the history file invalidate derived caches.
	watcher, err := storage.NewDataWatcher(settings.PulseFile, func() {
		builder.Invalidate()
		orchestrator.InvalidateRAGCache()
	})
	if err != nil {
		slog.Warn("File watching disabled", "error", err)
	} else {
		go watcher.Run(ctx)
		defer watcher.Stop()
	}

	if serveDebug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	routes.SetupRoutes(router, routes.Deps{
		Pulses:       pulses,
		Profiles:     profiles,
		Sessions:     sessions,
		Builder:      builder,
		Orchestrator: orchestrator,
		Reports:      generator,
		Stream:       streamClient,
		Stages:       stages,
		Metrics:      metrics,

		RequestTimeout: settings.RequestTimeout,
	})

	server := &http.Server{
		Addr:              settings.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting Selene server",
			"addr", settings.ListenAddr,
			"data_dir", settings.DataDir,
			"llm_backend", settings.LLMBackend,
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	slog.Info("Shutting down Selene server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}

// newSearcher connects to Weaviate and makes sure the Selene classes
// exist. Schema failures are logged, not fatal: chat degrades to
// answering without retrieved context.
func newSearcher(ctx context.Context, weaviateURL string) (*rag.WeaviateSearcher, error) {
	parsedURL, err := url.Parse(weaviateURL)
	if err != nil || parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, fmt.Errorf("invalid Weaviate URL: %s", weaviateURL)
	}

	client, err := weaviate.NewClient(weaviate.Config{
		Host:   parsedURL.Host,
		Scheme: parsedURL.Scheme,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Weaviate client: %w", err)
	}

	searcher := rag.NewWeaviateSearcher(client)
	schemaCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := searcher.EnsureSchema(schemaCtx); err != nil {
		slog.Warn("Weaviate schema setup failed, retrieval will degrade", "error", err)
	} else {
		slog.Info("Weaviate client initialized", "url", weaviateURL)
	}
	return searcher, nil
}

// newLLMClients builds the configured model backend. Both backends
// implement generation and streaming.
func newLLMClients(backend string) (llm.LLMClient, llm.StreamingClient, error) {
	switch backend {
	case "openai":
		client, err := llm.NewOpenAIClient()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create OpenAI client: %w", err)
		}
		return client, client, nil
	case "ollama":
		client, err := llm.NewOllamaClient()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create Ollama client: %w", err)
		}
		return client, client, nil
	default:
		return nil, nil, fmt.Errorf("unknown LLM backend %q (want ollama or openai)", backend)
	}
}
