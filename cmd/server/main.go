// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Intake Service
//
// Entry point for the candidate intake service. It:
//  1. Loads configuration (.env / config.yaml / environment)
//  2. Connects to PostgreSQL and Redis
//  3. Builds the extraction client and audit log sink
//  4. Serves POST /process and GET /health
//  5. Handles graceful shutdown on SIGTERM/SIGINT
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/hireflow/intake/internal/api"
	"github.com/hireflow/intake/internal/audit"
	"github.com/hireflow/intake/internal/config"
	"github.com/hireflow/intake/internal/dedup"
	"github.com/hireflow/intake/internal/extract"
	"github.com/hireflow/intake/internal/pipeline"
	"github.com/hireflow/intake/internal/store"
)

func main() {
	// Structured JSON logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	slog.Info("starting intake service")

	// --- Load Configuration ---
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("configuration loaded",
		"extractor_model", cfg.Extractor.Model,
		"claim_ttl", cfg.ClaimTTL,
		"port", cfg.Port,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- Connect to PostgreSQL ---
	pgPool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to create Postgres pool", "error", err)
		os.Exit(1)
	}
	defer pgPool.Close()

	if err := pgPool.Ping(ctx); err != nil {
		slog.Error("failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}
	slog.Info("connected to PostgreSQL")

	recordStore, err := store.NewStore(ctx, pgPool)
	if err != nil {
		slog.Error("failed to initialise record store", "error", err)
		os.Exit(1)
	}

	// --- Connect to Redis ---
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		slog.Error("invalid REDIS_URL", "error", err)
		os.Exit(1)
	}
	rdb := redis.NewClient(opt)
	defer rdb.Close()

	filter := dedup.NewFilter(rdb, cfg.ClaimTTL)
	if err := filter.Ping(ctx); err != nil {
		slog.Error("failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	slog.Info("connected to Redis")

	// --- Extraction Client ---
	// Either a plain client with a static bearer key, or an oauth2
	// client-credentials transport for gateway deployments.
	var extractorHTTP *http.Client
	if cfg.Extractor.UsesClientCredentials() {
		creds := &clientcredentials.Config{
			ClientID:     cfg.Extractor.ClientID,
			ClientSecret: cfg.Extractor.ClientSecret,
			TokenURL:     cfg.Extractor.TokenURL,
			Scopes:       cfg.Extractor.Scopes,
		}
		extractorHTTP = creds.Client(ctx)
		slog.Info("extraction auth: client credentials", "token_url", cfg.Extractor.TokenURL)
	} else {
		extractorHTTP = &http.Client{Timeout: 120 * time.Second}
		slog.Info("extraction auth: static API key")
	}

	extractor := extract.NewExtractor(extractorHTTP, cfg.Extractor.BaseURL, cfg.Extractor.Model, cfg.Extractor.APIKey)

	// --- Audit Log Sink ---
	sink := audit.NewSink(cfg.Sink.URL, cfg.Sink.SourceID, cfg.Sink.APIKey, 10*time.Second)

	// --- Pipeline & HTTP Surface ---
	pipe := pipeline.New(recordStore, filter, extractor, sink)
	handler := api.NewHandler(pipe)
	health := api.NewHealthHandler(recordStore, filter)

	ready, err := api.Serve(ctx, cfg.Port, handler, health)
	if err != nil {
		slog.Error("failed to start intake server", "error", err)
		os.Exit(1)
	}
	<-ready

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	sig := <-sigCh

	slog.Info("received shutdown signal", "signal", sig)
	cancel()

	// Give in-flight requests a moment to drain before connections drop.
	time.Sleep(2 * time.Second)

	slog.Info("intake service stopped")
}
