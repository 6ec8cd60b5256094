// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command civicscope starts the CivicScope assistant API server.
//
// CivicScope answers questions about public school data with:
//   - Guardrail classification (block/flag rules for ranking and PII queries)
//   - Per-identity rate limits and a daily spend budget
//   - LLM-judged response quality scoring with deterministic rescoring
//   - Follow-up suggestion generation with a deterministic fallback
//
// Usage:
//
//	go run ./cmd/civicscope
//	go run ./cmd/civicscope -port 9090
//
// With an Anthropic key (enables responses, evaluation, and suggestions):
//
//	ANTHROPIC_API_KEY=sk-ant-... go run ./cmd/civicscope
//
// Example requests:
//
//	# Health check
//	curl http://localhost:8080/v1/assistant/health
//
//	# Ask a question
//	curl -X POST http://localhost:8080/v1/assistant/query \
//	  -H "Content-Type: application/json" \
//	  -d '{"query": "How has attendance changed at PS 11 since 2019?"}'
//
//	# Poll follow-up suggestions for a turn
//	curl http://localhost:8080/v1/assistant/query/<id>/followups
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/AleutianAI/CivicScope/services/assistant"
	"github.com/AleutianAI/CivicScope/services/assistant/eval"
	"github.com/AleutianAI/CivicScope/services/assistant/govern"
	"github.com/AleutianAI/CivicScope/services/assistant/guardrail"
	"github.com/AleutianAI/CivicScope/services/assistant/suggest"
	"github.com/AleutianAI/CivicScope/services/llm"
	"github.com/dgraph-io/badger/v4"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

func main() {
	port := flag.Int("port", 8080, "Port to listen on")
	debug := flag.Bool("debug", false, "Enable debug mode")
	flag.Parse()

	// Set Gin mode
	if *debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// Set up W3C TraceContext propagation so trace context flows from
	// incoming headers through the turn pipeline spans.
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	// Guardrail rules are compiled from the embedded rules.yaml. A rule
	// compile failure is a deploy defect, not a runtime condition.
	rules, err := guardrail.DefaultRuleSet()
	if err != nil {
		slog.Error("Failed to compile guardrail rules", slog.String("error", err.Error()))
		os.Exit(1)
	}
	classifier := guardrail.NewClassifier(rules, slog.Default())

	cfg := govern.LoadConfig()
	rates := govern.NewRateLimiter(cfg.RatePerMinute, cfg.RatePerHour)
	budget := govern.NewDailyBudget(cfg.DailyBudgetUSD, cfg.CostPerMTokUSD, slog.Default())
	slog.Info("Governance configured",
		slog.Int("rate_per_min", cfg.RatePerMinute),
		slog.Int("rate_per_hour", cfg.RatePerHour),
		slog.Float64("daily_budget_usd", cfg.DailyBudgetUSD),
		slog.Float64("cost_per_mtok_usd", cfg.CostPerMTokUSD),
	)

	// The Anthropic client is optional. Without a key the assistant runs
	// degraded: queries get a 502, evaluation is skipped, and follow-ups
	// come from the deterministic fallback.
	var judgeClient llm.Client
	anthropicClient, err := llm.NewAnthropicClient()
	if err != nil {
		slog.Error("Failed to create Anthropic client", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if anthropicClient != nil {
		judgeClient = anthropicClient
		slog.Info("Anthropic client connected", slog.String("model", anthropicClient.Model()))
	} else {
		slog.Warn("ANTHROPIC_API_KEY not set, evaluation and suggestion generation disabled")
	}

	// Suggestion cache BadgerDB. Graceful degradation: if unavailable,
	// every batch is generated fresh.
	var suggestCache *suggest.Cache
	cacheDir := os.Getenv("CIVIC_CACHE_DIR")
	if cacheDir == "" {
		home, homeErr := os.UserHomeDir()
		if homeErr == nil {
			cacheDir = filepath.Join(home, ".civicscope", "cache", "suggest")
		}
	}
	var cacheDB *badger.DB
	if cacheDir != "" {
		opts := badger.DefaultOptions(cacheDir).WithLogger(nil)
		db, openErr := badger.Open(opts)
		if openErr != nil {
			slog.Warn("Suggestion cache BadgerDB unavailable, caching disabled",
				slog.String("path", cacheDir),
				slog.String("error", openErr.Error()),
			)
		} else {
			cacheDB = db
			suggestCache = suggest.NewCache(db, 0, slog.Default())
			slog.Info("Suggestion cache BadgerDB opened", slog.String("path", cacheDir))
		}
	}

	evaluator := eval.NewEvaluator(judgeClient, budget, slog.Default())

	evalLogPath := os.Getenv("CIVIC_EVAL_LOG_PATH")
	if evalLogPath == "" {
		evalLogPath = filepath.Join("data", "evaluations.jsonl")
	}
	evalLogger := eval.NewLogger(os.Getenv("CIVIC_EVAL_WEBHOOK_URL"), evalLogPath, slog.Default())

	suggester := suggest.NewGenerator(judgeClient, classifier, budget, suggestCache, slog.Default())

	responder := assistant.NewLLMResponder(judgeClient)
	handlers := assistant.NewHandlers(
		classifier, rates, budget, responder, evaluator, evalLogger, suggester, slog.Default(),
	)

	// Setup router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("civicscope"))
	if *debug {
		router.Use(gin.Logger())
	}

	// Register routes under /v1/assistant
	v1 := router.Group("/v1")
	assistant.RegisterRoutes(v1, handlers)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	printBanner(*port, judgeClient != nil)

	// Handle graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		slog.Info("Shutting down CivicScope server")
		rates.Close()
		if cacheDB != nil {
			if err := cacheDB.Close(); err != nil {
				slog.Warn("Failed to close suggestion cache BadgerDB", slog.String("error", err.Error()))
			}
		}
		os.Exit(0)
	}()

	// Start server
	addr := fmt.Sprintf(":%d", *port)
	slog.Info("Starting CivicScope server", slog.String("address", addr))
	if err := router.Run(addr); err != nil {
		slog.Error("Failed to start server", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func printBanner(port int, llmEnabled bool) {
	llmStatus := "DISABLED (set ANTHROPIC_API_KEY to enable)"
	if llmEnabled {
		llmStatus = "ENABLED (Anthropic connected)"
	}

	banner := `
╔═══════════════════════════════════════════════════════════════════╗
║                        CIVICSCOPE SERVER                          ║
╠═══════════════════════════════════════════════════════════════════╣
║                                                                   ║
║  Conversational public school data with built-in guardrails.      ║
║  LLM: %-58s ║
║                                                                   ║
║  Quick Start:                                                     ║
║  ┌─────────────────────────────────────────────────────────────┐  ║
║  │ # Health check                                              │  ║
║  │ curl http://localhost:%d/v1/assistant/health           │  ║
║  │                                                             │  ║
║  │ # Ask a question                                            │  ║
║  │ curl -X POST http://localhost:%d/v1/assistant/query \  │  ║
║  │   -H "Content-Type: application/json" \                     │  ║
║  │   -d '{"query": "Show attendance trends for PS 11"}'        │  ║
║  └─────────────────────────────────────────────────────────────┘  ║
║                                                                   ║
║  Endpoints:                                                       ║
║  ├── POST /v1/assistant/query                                     ║
║  ├── GET  /v1/assistant/query/:id/followups                       ║
║  ├── POST /v1/assistant/feedback                                  ║
║  ├── GET  /v1/assistant/health                                    ║
║  └── GET  /metrics                                                ║
║                                                                   ║
║  Press Ctrl+C to stop                                             ║
╚═══════════════════════════════════════════════════════════════════╝
`
	fmt.Printf(banner, llmStatus, port, port)
}
