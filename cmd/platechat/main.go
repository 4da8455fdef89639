// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command platechat starts the settlement-plate chatbot API server.
//
// The server exposes the intent-resolution and slot-filling engine over
// HTTP: multi-turn dialogue with per-session state, direct classification
// and parameter-resolution endpoints, and Prometheus metrics.
//
// Usage:
//
//	go run ./cmd/platechat
//	go run ./cmd/platechat -port 9090
//
// With Ollama (required for the learned classifier and the responder):
//
//	OLLAMA_BASE_URL=http://localhost:11434 OLLAMA_MODEL=llama3.1:8b go run ./cmd/platechat
//
// Example requests:
//
//	# Health check
//	curl http://localhost:8080/v1/dialog/health
//
//	# One dialogue turn (omit session_id on the first turn)
//	curl -X POST http://localhost:8080/v1/dialog/turn \
//	  -H "Content-Type: application/json" \
//	  -d '{"text": "Plot settlements for: F3-R15c-SM-33. Cutoff date: January 28 2024."}'
//
//	# Classify without opening a session
//	curl -X POST http://localhost:8080/v1/resolve/classify \
//	  -H "Content-Type: application/json" \
//	  -d '{"text": "generate the asaoka report"}'
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/tuasgeo/platechat/services/dialog"
	"github.com/tuasgeo/platechat/services/dialog/intent"
)

// verdictCacheTTL bounds how long a cached classifier verdict stays valid.
const verdictCacheTTL = 7 * 24 * time.Hour

func main() {
	port := flag.Int("port", 8080, "Port to listen on")
	debug := flag.Bool("debug", false, "Enable debug mode")
	flag.Parse()

	if *debug {
		gin.SetMode(gin.DebugMode)
		slog.SetLogLoggerLevel(slog.LevelDebug)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// W3C TraceContext propagation so incoming traceparent headers flow
	// through all handlers.
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	cfg := dialog.DefaultServiceConfig()

	// Verdict cache BadgerDB. Graceful degradation: if the directory is
	// unavailable the classifier just calls the model every time.
	verdictDB := openVerdictCache()
	if verdictDB != nil {
		cfg.VerdictStore = intent.NewBadgerVerdictStore(verdictDB, verdictCacheTTL, slog.Default())
	}

	svc, err := dialog.NewService(cfg)
	if err != nil {
		slog.Error("Failed to assemble dialog service", slog.String("error", err.Error()))
		os.Exit(1)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("platechat"))
	if *debug {
		router.Use(gin.Logger())
	}

	v1 := router.Group("/v1")
	dialog.RegisterRoutes(v1, dialog.NewHandlers(svc))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	printBanner(*port)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		slog.Info("Shutting down platechat server")
		if verdictDB != nil {
			if err := verdictDB.Close(); err != nil {
				slog.Warn("Failed to close verdict cache BadgerDB", slog.String("error", err.Error()))
			}
		}
		os.Exit(0)
	}()

	addr := fmt.Sprintf(":%d", *port)
	slog.Info("Starting platechat server", slog.String("address", addr))
	if err := router.Run(addr); err != nil {
		slog.Error("Failed to start server", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// openVerdictCache opens the classifier verdict cache database.
//
// The directory comes from INTENT_CACHE_DIR, falling back to
// ~/.platechat/cache/intent. Any failure is logged and nil is returned;
// the service runs without persistence.
func openVerdictCache() *badger.DB {
	dir := os.Getenv("INTENT_CACHE_DIR")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			slog.Warn("Cannot resolve home directory, verdict cache disabled",
				slog.String("error", err.Error()))
			return nil
		}
		dir = filepath.Join(home, ".platechat", "cache", "intent")
	}

	db, err := badger.Open(badger.DefaultOptions(dir).WithLogger(nil))
	if err != nil {
		slog.Warn("Verdict cache BadgerDB unavailable, classifier caching disabled",
			slog.String("path", dir),
			slog.String("error", err.Error()))
		return nil
	}
	slog.Info("Verdict cache BadgerDB opened", slog.String("path", dir))
	return db
}

func printBanner(port int) {
	banner := `
╔═══════════════════════════════════════════════════════════════════╗
║                       PLATECHAT SERVER                            ║
╠═══════════════════════════════════════════════════════════════════╣
║                                                                   ║
║  Settlement-plate monitoring chatbot for Tuas Terminal Phase 2.   ║
║  Intent resolution, slot filling, and grounded LLM replies.       ║
║                                                                   ║
║  Quick Start:                                                     ║
║  ┌─────────────────────────────────────────────────────────────┐  ║
║  │ # Health check                                              │  ║
║  │ curl http://localhost:%d/v1/dialog/health              │  ║
║  │                                                             │  ║
║  │ # One dialogue turn                                         │  ║
║  │ curl -X POST http://localhost:%d/v1/dialog/turn \      │  ║
║  │   -H "Content-Type: application/json" \                     │  ║
║  │   -d '{"text": "plot F3-R15c-SM-33 until 28/01/2024"}'      │  ║
║  └─────────────────────────────────────────────────────────────┘  ║
║                                                                   ║
║  Endpoints:                                                       ║
║  ├── Dialog:  /v1/dialog/turn, /health, /ready                   ║
║  ├── Resolve: /v1/resolve/classify, /v1/resolve/params           ║
║  └── Metrics: /metrics                                           ║
║                                                                   ║
║  Press Ctrl+C to stop                                             ║
╚═══════════════════════════════════════════════════════════════════╝
`
	fmt.Printf(banner, port, port)
}
