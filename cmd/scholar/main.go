// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command scholar starts the Aleutian Scholar API server.
//
// Aleutian Scholar answers questions about a course-materials corpus:
//   - Semantic index over course catalog and content chunks (Ollama
//     embeddings, BadgerDB persistence)
//   - Retrieval tools the model calls via Anthropic tool use
//   - Session-scoped conversation history
//
// Usage:
//
//	ANTHROPIC_API_KEY=sk-ant-... go run ./cmd/scholar
//	ANTHROPIC_API_KEY=sk-ant-... go run ./cmd/scholar -config scholar.yaml -docs ./docs
//
// Example requests:
//
//	# Ask a question
//	curl -X POST http://localhost:8000/api/query \
//	  -H "Content-Type: application/json" \
//	  -d '{"query": "What does lesson 2 of the MCP course cover?"}'
//
//	# Corpus stats
//	curl http://localhost:8000/api/courses
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/AleutianAI/Scholar/services/llm"
	"github.com/AleutianAI/Scholar/services/scholar"
	"github.com/AleutianAI/Scholar/services/scholar/index"
	"github.com/AleutianAI/Scholar/services/scholar/ingest"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	docsDir := flag.String("docs", "", "Course documents folder (overrides config)")
	debug := flag.Bool("debug", false, "Enable debug mode")
	flag.Parse()

	logLevel := slog.LevelInfo
	if *debug {
		logLevel = slog.LevelDebug
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	cfg, err := scholar.LoadConfig(*configPath)
	if err != nil {
		logger.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	if *docsDir != "" {
		cfg.DocsDir = *docsDir
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	client, err := llm.NewAnthropicClient(cfg.AnthropicAPIKey, cfg.AnthropicModel, cfg.AnthropicBaseURL)
	if err != nil {
		logger.Error("Failed to create Anthropic client", "error", err)
		os.Exit(1)
	}

	// Graceful degradation: without a usable data dir the index runs
	// memory-only and re-embeds the corpus on every start.
	var store *index.Store
	if cfg.DataDir != "" {
		store, err = index.OpenStore(cfg.DataDir)
		if err != nil {
			logger.Warn("Index store unavailable, running memory-only",
				slog.String("dir", cfg.DataDir),
				slog.String("error", err.Error()),
			)
			store = nil
		}
	}

	embedder := index.NewOllamaEmbedder(cfg.EmbeddingURL, cfg.EmbeddingModel)
	idx, err := index.NewSemanticIndex(embedder, store, cfg.MaxResults, logger)
	if err != nil {
		logger.Error("Failed to build semantic index", "error", err)
		os.Exit(1)
	}

	rag := scholar.NewRAGSystem(cfg, client, idx, logger)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.DocsDir != "" {
		loadDocsFolder(rootCtx, rag, cfg.DocsDir, logger)
		go watchDocsFolder(rootCtx, rag, cfg.DocsDir, logger)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("aleutian-scholar"))
	if *debug {
		router.Use(gin.Logger())
	}

	scholar.RegisterRoutes(router.Group("/api"), scholar.NewHandlers(rag, logger))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-rootCtx.Done()
		logger.Info("Shutting down Aleutian Scholar server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Server shutdown error", "error", err)
		}
		if err := store.Close(); err != nil {
			logger.Warn("Failed to close index store", "error", err)
		}
	}()

	logger.Info("Starting Aleutian Scholar server",
		slog.String("address", cfg.ListenAddr),
		slog.Int("courses", rag.GetCourseAnalytics().TotalCourses),
	)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Failed to start server", "error", err)
		os.Exit(1)
	}
}

// loadDocsFolder ingests the corpus at startup. Failures are logged and
// non-fatal; the service can still answer from whatever is indexed.
func loadDocsFolder(ctx context.Context, rag *scholar.RAGSystem, dir string, logger *slog.Logger) {
	if _, err := os.Stat(dir); err != nil {
		logger.Warn("Docs folder not found, skipping startup load", "dir", dir)
		return
	}
	courses, chunks, err := rag.AddCourseFolder(ctx, dir, false)
	if err != nil {
		logger.Error("Startup corpus load failed", "dir", dir, "error", err)
		return
	}
	logger.Info("Startup corpus loaded", "courses", courses, "chunks", chunks)
}

// watchDocsFolder ingests documents dropped into the folder while the
// service runs. Runs until ctx is canceled.
func watchDocsFolder(ctx context.Context, rag *scholar.RAGSystem, dir string, logger *slog.Logger) {
	watcher := ingest.NewWatcher(dir, func(path string) {
		ingestCtx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if _, _, err := rag.AddCourseDocument(ingestCtx, path); err != nil {
			logger.Error("Live ingestion failed", "path", path, "error", err)
		}
	}, logger)

	if err := watcher.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn("Docs watcher stopped", "error", err)
	}
}
