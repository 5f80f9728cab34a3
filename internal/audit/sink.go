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

// Package audit forwards per-item outcome entries to an external log sink
// over HTTP. Emission is best effort: the pipeline decides an item's fate
// before the entry is sent, and a sink failure never rolls that back.
package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
)

// Entry types. Every processed item produces exactly one entry.
const (
	TypeSkip  = "skip"
	TypeError = "error"
	TypeInfo  = "info"
)

// Entry is one structured audit record describing one pipeline outcome.
type Entry struct {
	EntryID     string         `json:"entry_id"`
	LogType     string         `json:"log_type"`
	Reference   string         `json:"reference"`
	Message     string         `json:"message,omitempty"`
	Error       string         `json:"error,omitempty"`
	Collection  string         `json:"collection,omitempty"`
	ProcessedAt string         `json:"processed_at,omitempty"`
	Record      map[string]any `json:"record,omitempty"`
}

// NewReference derives an entry reference from the item's subject and a
// timestamp, so sink-side searches by subject find every outcome for it.
func NewReference(subject string, ts time.Time) string {
	return fmt.Sprintf("%s@%s", subject, ts.UTC().Format(time.RFC3339))
}

// Sink posts entries to the log sink endpoint, authenticated by a static key.
type Sink struct {
	httpClient *http.Client
	endpoint   string
	apiKey     string
}

// NewSink creates an audit sink client for the given endpoint and source.
// The source identifier is carried as a query parameter on every request.
func NewSink(endpoint, sourceID, apiKey string, timeout time.Duration) *Sink {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	u, err := url.Parse(endpoint)
	if err == nil && sourceID != "" {
		q := u.Query()
		q.Set("source", sourceID)
		u.RawQuery = q.Encode()
		endpoint = u.String()
	}

	return &Sink{
		httpClient: &http.Client{Timeout: timeout},
		endpoint:   endpoint,
		apiKey:     apiKey,
	}
}

// Send posts one entry to the sink. The entry is assigned a correlation ID
// if it does not carry one.
func (s *Sink) Send(ctx context.Context, e Entry) error {
	if e.EntryID == "" {
		e.EntryID = uuid.New().String()
	}

	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal audit entry: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build audit request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("X-API-KEY", s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send audit entry: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("audit sink returned HTTP %d", resp.StatusCode)
	}
	return nil
}
