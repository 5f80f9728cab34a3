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

// Intake Pull Command
//
// Standalone CLI tool that fetches a batch of email-derived records from a
// source feed and submits them to a running intake service. Intended for
// seeding data on new deployments or replaying an external feed.
//
// Usage:
//
//	go run ./cmd/pull/ --source https://feed.example.com/records [--target http://localhost:8080]
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/hireflow/intake/internal/models"
)

func main() {
	// Structured JSON logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// --- CLI Flags ---
	sourceFlag := flag.String("source", "", "Source feed URL returning a JSON array of records (required)")
	targetFlag := flag.String("target", "http://localhost:8080", "Base URL of the intake service")
	timeoutFlag := flag.String("timeout", "10m", "Overall timeout for the pull run")
	flag.Parse()

	if *sourceFlag == "" {
		fmt.Fprintf(os.Stderr, "Error: --source is required\n\n")
		flag.Usage()
		os.Exit(1)
	}

	timeout, err := time.ParseDuration(*timeoutFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid --timeout duration %q: %v\n", *timeoutFlag, err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	slog.Info("starting pull run", "source", *sourceFlag, "target", *targetFlag)

	client := &http.Client{Timeout: timeout}

	// --- Fetch Records ---
	records, err := fetchRecords(ctx, client, *sourceFlag)
	if err != nil {
		slog.Error("fetch from source failed", "error", err)
		os.Exit(1)
	}
	if len(records) == 0 {
		slog.Info("source returned no records, nothing to submit")
		return
	}
	slog.Info("fetched records", "count", len(records))

	// --- Submit Batch ---
	results, err := submitBatch(ctx, client, strings.TrimRight(*targetFlag, "/")+"/process", records)
	if err != nil {
		slog.Error("submit to intake service failed", "error", err)
		os.Exit(1)
	}

	// --- Summary ---
	counts := map[models.Status]int{}
	for _, r := range results {
		counts[r.Status]++
	}
	slog.Info("pull run complete",
		"submitted", len(records),
		"success", counts[models.StatusSuccess],
		"skipped", counts[models.StatusSkipped],
		"errors", counts[models.StatusError],
		"warnings", counts[models.StatusWarning],
	)

	for _, r := range results {
		if r.Status == models.StatusError {
			slog.Info("item error", "id", r.ID, "message", r.Message, "error", r.Error)
		}
	}
}

// fetchRecords retrieves the record batch from the source feed.
func fetchRecords(ctx context.Context, client *http.Client, source string) ([]models.Record, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, fmt.Errorf("build source request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch source feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("source feed returned HTTP %d", resp.StatusCode)
	}

	var records []models.Record
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, fmt.Errorf("decode source feed: %w", err)
	}
	return records, nil
}

// submitBatch posts the records to the intake service and returns the
// per-item results.
func submitBatch(ctx context.Context, client *http.Client, target string, records []models.Record) ([]models.ItemResult, error) {
	payload, err := json.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("marshal batch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build submit request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("submit batch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("intake service returned HTTP %d", resp.StatusCode)
	}

	var parsed struct {
		Status  string              `json:"status"`
		Results []models.ItemResult `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode intake response: %w", err)
	}
	return parsed.Results, nil
}
