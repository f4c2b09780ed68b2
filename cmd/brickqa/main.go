// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command brickqa starts the building question-answering API server.
//
// The server answers natural-language questions about a building described
// in a Brick knowledge graph: which rooms and sensors exist, what a sensor
// read at some time, and summary statistics over a time window.
//
// Usage:
//
//	go run ./cmd/brickqa
//	go run ./cmd/brickqa -debug
//
// Required environment:
//
//	BRICKQA_LLM_API_KEY - API key for the chat model endpoint
//
// Optional environment (defaults in services/buildingqa/config/config.yaml):
//
//	BRICKQA_LISTEN_ADDR, BRICKQA_LLM_BASE_URL, BRICKQA_LLM_MODEL,
//	BRICKQA_WEAVIATE_HOST, BRICKQA_INFLUX_URL, BRICKQA_INFLUX_TOKEN,
//	BRICKQA_SPARQL_ENDPOINT, BRICKQA_CACHE_DIR, BRICKQA_TIMEZONE
//
// Example requests:
//
//	# Health check
//	curl http://localhost:8089/v1/buildingqa/health
//
//	# Ask a question
//	curl -X POST http://localhost:8089/v1/buildingqa/ask \
//	  -H "Content-Type: application/json" \
//	  -d '{"question": "昨天1205房间的平均温度是多少？"}'
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/AleutianAI/brickqa/services/buildingqa"
	"github.com/AleutianAI/brickqa/services/buildingqa/analysis"
	"github.com/AleutianAI/brickqa/services/buildingqa/answer"
	"github.com/AleutianAI/brickqa/services/buildingqa/config"
	"github.com/AleutianAI/brickqa/services/buildingqa/intent"
	"github.com/AleutianAI/brickqa/services/buildingqa/llmclient"
	"github.com/AleutianAI/brickqa/services/buildingqa/rag"
	"github.com/AleutianAI/brickqa/services/buildingqa/sparql"
	"github.com/AleutianAI/brickqa/services/buildingqa/workflow"
)

func main() {
	debug := flag.Bool("debug", false, "Enable debug mode")
	flag.Parse()

	if *debug {
		gin.SetMode(gin.DebugMode)
		slog.SetLogLoggerLevel(slog.LevelDebug)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// W3C TraceContext propagation so trace IDs flow from inbound headers
	// through the workflow spans.
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	cfg, err := config.Get()
	if err != nil {
		slog.Error("Failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	loc, err := time.LoadLocation(cfg.Time.Zone)
	if err != nil {
		slog.Error("Invalid time zone",
			slog.String("zone", cfg.Time.Zone),
			slog.String("error", err.Error()))
		os.Exit(1)
	}

	pipeline, badgerDB, err := buildPipeline(cfg, loc)
	if err != nil {
		slog.Error("Failed to build pipeline", slog.String("error", err.Error()))
		os.Exit(1)
	}

	svc, err := buildingqa.NewService(pipeline,
		time.Duration(cfg.Server.RequestTimeoutSeconds)*time.Second, slog.Default())
	if err != nil {
		slog.Error("Failed to create service", slog.String("error", err.Error()))
		os.Exit(1)
	}
	handlers := buildingqa.NewHandlers(svc)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("brickqa"))
	if *debug {
		router.Use(gin.Logger())
	}

	v1 := router.Group("/v1")
	buildingqa.RegisterRoutes(v1, handlers)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	printBanner(cfg.Server.ListenAddr)

	srv := &http.Server{
		Addr:    cfg.Server.ListenAddr,
		Handler: router,
	}

	// Graceful shutdown on SIGINT/SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		slog.Info("Shutting down brickqa server")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			slog.Warn("Server shutdown failed", slog.String("error", err.Error()))
		}
		if badgerDB != nil {
			if err := badgerDB.Close(); err != nil {
				slog.Warn("Failed to close chunk cache", slog.String("error", err.Error()))
			}
		}
	}()

	slog.Info("Starting brickqa server", slog.String("address", cfg.Server.ListenAddr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Failed to start server", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// buildPipeline wires every collaborator from the service configuration.
//
// Description:
//
//	One chat client backs all four model-facing collaborators (intent,
//	two escalation generators, answer synthesis). Retrieval goes through
//	a BadgerDB chunk cache when the cache directory is usable; when it is
//	not, retrieval degrades to direct Weaviate calls.
//
// Outputs:
//
//	The pipeline, the BadgerDB handle for shutdown (nil when the cache is
//	disabled), and an error when a required collaborator cannot be built.
func buildPipeline(cfg *config.ServiceConfig, loc *time.Location) (*workflow.Pipeline, *badger.DB, error) {
	logger := slog.Default()

	chat := llmclient.NewLangChainClient(llmclient.LangChainConfig{
		Model:   cfg.LLM.Model,
		BaseURL: cfg.LLM.BaseURL,
		APIKey:  cfg.LLM.APIKey,
	}, logger)

	understander, err := intent.NewLLMUnderstander(chat, clockwork.NewRealClock(), logger)
	if err != nil {
		return nil, nil, fmt.Errorf("intent understander: %w", err)
	}

	weaviate, err := rag.NewWeaviateRetriever(rag.WeaviateConfig{
		Scheme:    cfg.Weaviate.Scheme,
		Host:      cfg.Weaviate.Host,
		ClassName: cfg.Weaviate.ClassName,
		Limit:     cfg.Weaviate.TopK,
	}, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("weaviate retriever: %w", err)
	}

	// Chunk cache is optional: retrieval works without it, just slower.
	var retriever rag.Retriever = weaviate
	var badgerDB *badger.DB
	if cfg.Cache.Dir != "" {
		db, err := badger.Open(badger.DefaultOptions(cfg.Cache.Dir).WithLogger(nil))
		if err != nil {
			slog.Warn("Chunk cache unavailable, retrieval will not be cached",
				slog.String("dir", cfg.Cache.Dir),
				slog.String("error", err.Error()))
		} else {
			badgerDB = db
			cache := rag.NewBadgerChunkCache(db, 0, logger)
			retriever = rag.NewCachedRetriever(weaviate, cache, cfg.Weaviate.ClassName, logger)
			slog.Info("Chunk cache opened", slog.String("dir", cfg.Cache.Dir))
		}
	}

	levelOne, err := sparql.NewLLMGenerator(chat, logger)
	if err != nil {
		return nil, badgerDB, fmt.Errorf("level-1 generator: %w", err)
	}
	levelTwo, err := sparql.NewAugmentedGenerator(chat, logger)
	if err != nil {
		return nil, badgerDB, fmt.Errorf("level-2 generator: %w", err)
	}

	executor, err := sparql.NewHTTPExecutor(sparql.HTTPExecutorConfig{
		Endpoint: cfg.SPARQL.Endpoint,
		Timeout:  time.Duration(cfg.SPARQL.TimeoutSeconds) * time.Second,
	}, logger)
	if err != nil {
		return nil, badgerDB, fmt.Errorf("sparql executor: %w", err)
	}

	source, err := analysis.NewInfluxSource(analysis.InfluxConfig{
		URL:         cfg.Influx.URL,
		Token:       cfg.Influx.Token,
		Org:         cfg.Influx.Org,
		Bucket:      cfg.Influx.Bucket,
		Measurement: cfg.Influx.Measurement,
	}, logger)
	if err != nil {
		return nil, badgerDB, fmt.Errorf("influx source: %w", err)
	}
	engine, err := analysis.NewStatEngine(source, logger)
	if err != nil {
		return nil, badgerDB, fmt.Errorf("stat engine: %w", err)
	}

	composer, err := answer.NewLLMComposer(chat, logger)
	if err != nil {
		return nil, badgerDB, fmt.Errorf("answer composer: %w", err)
	}

	pipeline, err := workflow.NewPipeline(workflow.Deps{
		Understander: understander,
		Retriever:    retriever,
		Generator:    sparql.NewTemplateGenerator(logger),
		LevelOne:     levelOne,
		LevelTwo:     levelTwo,
		Executor:     executor,
		Stats:        engine,
		Composer:     composer,
		Clock:        clockwork.NewRealClock(),
		Location:     loc,
		TopK:         cfg.Weaviate.TopK,
		Logger:       logger,
	})
	if err != nil {
		return nil, badgerDB, err
	}
	return pipeline, badgerDB, nil
}

func printBanner(addr string) {
	banner := `
╔═══════════════════════════════════════════════════════════════════╗
║                         BRICKQA SERVER                            ║
╠═══════════════════════════════════════════════════════════════════╣
║                                                                   ║
║  Natural-language Q&A over a Brick building knowledge graph.      ║
║                                                                   ║
║  Quick Start:                                                     ║
║  ┌─────────────────────────────────────────────────────────────┐  ║
║  │ # Health check                                              │  ║
║  │ curl http://localhost%s/v1/buildingqa/health            │  ║
║  │                                                             │  ║
║  │ # Ask a question                                            │  ║
║  │ curl -X POST http://localhost%s/v1/buildingqa/ask \     │  ║
║  │   -H "Content-Type: application/json" \                     │  ║
║  │   -d '{"question": "list all rooms"}'                       │  ║
║  └─────────────────────────────────────────────────────────────┘  ║
║                                                                   ║
║  Endpoints:                                                       ║
║  ├── POST /v1/buildingqa/ask                                      ║
║  ├── GET  /v1/buildingqa/health, /v1/buildingqa/ready             ║
║  └── GET  /metrics                                                ║
║                                                                   ║
║  Press Ctrl+C to stop                                             ║
╚═══════════════════════════════════════════════════════════════════╝
`
	fmt.Printf(banner, addr, addr)
}
