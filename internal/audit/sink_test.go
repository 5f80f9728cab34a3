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

package audit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// TestSend verifies the wire shape: API key header, source query parameter,
// and a correlation ID filled in when absent.
func TestSend(t *testing.T) {
	var gotKey, gotSource string
	var gotEntry Entry

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-API-KEY")
		gotSource = r.URL.Query().Get("source")
		if err := json.NewDecoder(r.Body).Decode(&gotEntry); err != nil {
			t.Errorf("entry body not JSON: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sink := NewSink(server.URL, "source-123", "secret-key", 2*time.Second)

	err := sink.Send(context.Background(), Entry{
		LogType:   TypeInfo,
		Reference: "Interview Support for Jane Doe@2026-09-01T00:00:00Z",
		Message:   "record stored",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotKey != "secret-key" {
		t.Errorf("X-API-KEY = %q, want secret-key", gotKey)
	}
	if gotSource != "source-123" {
		t.Errorf("source = %q, want source-123", gotSource)
	}
	if gotEntry.LogType != TypeInfo {
		t.Errorf("log_type = %q, want %q", gotEntry.LogType, TypeInfo)
	}
	if gotEntry.EntryID == "" {
		t.Error("entry_id was not assigned")
	}
}

// TestSend_SinkError verifies non-2xx responses surface as errors.
func TestSend_SinkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	sink := NewSink(server.URL, "s", "bad-key", 2*time.Second)

	err := sink.Send(context.Background(), Entry{LogType: TypeSkip, Reference: "r"})
	if err == nil {
		t.Fatal("expected error for HTTP 403, got none")
	}
	if !strings.Contains(err.Error(), "403") {
		t.Errorf("error %q does not carry the status code", err)
	}
}

// TestNewReference verifies the reference carries the subject and timestamp.
func TestNewReference(t *testing.T) {
	ts := time.Date(2026, 9, 1, 12, 30, 0, 0, time.UTC)
	ref := NewReference("Interview Support for Jane Doe", ts)

	if !strings.Contains(ref, "Interview Support for Jane Doe") {
		t.Errorf("reference %q does not contain the subject", ref)
	}
	if !strings.Contains(ref, "2026-09-01T12:30:00Z") {
		t.Errorf("reference %q does not contain the timestamp", ref)
	}
}
