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

// Package api serves the intake HTTP surface. POST /process accepts either a
// single record object or an array of record objects, normalizes the payload
// to a batch, runs it through the pipeline, and reports per-item outcomes.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/hireflow/intake/internal/models"
)

// ErrNoData marks a payload that is empty, absent, or not record-shaped.
var ErrNoData = errors.New("no data provided")

// Processor runs a normalized batch through the ingestion pipeline.
type Processor interface {
	Process(ctx context.Context, records []models.Record) []models.ItemResult
}

// Pinger is a health-checkable dependency.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler processes intake requests.
type Handler struct {
	processor Processor
}

// NewHandler creates an intake request handler.
func NewHandler(processor Processor) *Handler {
	return &Handler{
		processor: processor,
	}
}

// batchResponse is the 200 body for a processed batch.
type batchResponse struct {
	Status  string              `json:"status"`
	Results []models.ItemResult `json:"results"`
}

// ServeProcess handles POST /process.
func (h *Handler) ServeProcess(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		slog.Error("failed to read request body", "error", err)
		reject(w)
		return
	}

	records, err := NormalizeBatch(body)
	if err != nil {
		slog.Info("rejecting payload", "body_len", len(body), "error", err)
		reject(w)
		return
	}

	results := h.processor.Process(r.Context(), records)

	writeJSON(w, http.StatusOK, batchResponse{
		Status:  "complete",
		Results: results,
	})
}

// reject answers a malformed payload with 400. No items are processed and
// no audit entries are emitted.
func reject(w http.ResponseWriter) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": "No data provided"})
}

// NormalizeBatch parses the request payload into an ordered batch of records.
// A single record object is wrapped into a one-element batch. Empty input
// (no body, null, an empty object, or an empty array) is ErrNoData, as is
// anything that fails to parse as JSON records.
func NormalizeBatch(body []byte) ([]models.Record, error) {
	if len(body) == 0 {
		return nil, ErrNoData
	}

	var batch []models.Record
	if err := json.Unmarshal(body, &batch); err == nil {
		if len(batch) == 0 {
			return nil, ErrNoData
		}
		return batch, nil
	}

	var single models.Record
	if err := json.Unmarshal(body, &single); err == nil {
		if len(single) == 0 {
			return nil, ErrNoData
		}
		return []models.Record{single}, nil
	}

	return nil, ErrNoData
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}

// NewHealthHandler reports readiness of the backing store and claim filter.
func NewHealthHandler(db, cache Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(r.Context()); err != nil {
			http.Error(w, "postgres unhealthy", http.StatusServiceUnavailable)
			return
		}
		if err := cache.Ping(r.Context()); err != nil {
			http.Error(w, "redis unhealthy", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "healthy"}`))
	}
}

// Serve starts the intake HTTP server on the given port.
// It binds the port immediately and signals readiness via the returned channel
// before starting to accept connections.
func Serve(ctx context.Context, port int, handler *Handler, health http.HandlerFunc) (<-chan struct{}, error) {
	mux := http.NewServeMux()
	mux.HandleFunc("/process", handler.ServeProcess)
	if health != nil {
		mux.HandleFunc("/health", health)
	}

	server := &http.Server{
		Handler:     mux,
		ReadTimeout: 30 * time.Second,
		// No write deadline: a batch runs to completion, and each item can
		// spend up to the extraction client timeout, so response time grows
		// with batch size.
	}

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, fmt.Errorf("bind intake port %d: %w", port, err)
	}

	ready := make(chan struct{})

	go func() {
		<-ctx.Done()
		slog.Info("intake server shutting down")
		server.Close()
	}()

	go func() {
		slog.Info("intake server listening", "port", port)
		close(ready)
		if err := server.Serve(ln); err != http.ErrServerClosed {
			slog.Error("intake server error", "error", err)
		}
	}()

	return ready, nil
}
