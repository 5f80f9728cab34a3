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

package extract

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

// chatServer returns an httptest server answering /chat/completions with the
// given message content, and captures the last request for inspection.
func chatServer(t *testing.T, content string, lastReq *map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %q, want /chat/completions", r.URL.Path)
		}
		if lastReq != nil {
			var body map[string]any
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Errorf("request body not JSON: %v", err)
			}
			body["_auth"] = r.Header.Get("Authorization")
			*lastReq = body
		}

		w.Header().Set("Content-Type", "application/json")
		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": content}},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
}

// TestExtract_ParsesFencedReply verifies the two-stage parse: fence stripping
// followed by strict JSON parsing.
func TestExtract_ParsesFencedReply(t *testing.T) {
	reply := "```json\n{\"Candidate Name\": \"Jane Doe\", \"Total Experience\": 7}\n```"
	var lastReq map[string]any
	server := chatServer(t, reply, &lastReq)
	defer server.Close()

	e := NewExtractor(server.Client(), server.URL, "gpt-4o", "test-key")

	fields, err := e.Extract(context.Background(), "email body text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fields["Candidate Name"] != "Jane Doe" {
		t.Errorf("Candidate Name = %v, want Jane Doe", fields["Candidate Name"])
	}
	if fields["Total Experience"] != float64(7) {
		t.Errorf("Total Experience = %v, want 7", fields["Total Experience"])
	}

	if lastReq["model"] != "gpt-4o" {
		t.Errorf("model = %v, want gpt-4o", lastReq["model"])
	}
	if lastReq["_auth"] != "Bearer test-key" {
		t.Errorf("auth header = %v, want bearer key", lastReq["_auth"])
	}
	msgs, _ := lastReq["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("messages = %d, want system + user", len(msgs))
	}
	user, _ := msgs[1].(map[string]any)
	if user["content"] != "email body text" {
		t.Errorf("user content = %v, want the email body", user["content"])
	}
}

// TestExtract_PlainReply verifies an unfenced JSON object is accepted as-is.
func TestExtract_PlainReply(t *testing.T) {
	server := chatServer(t, `{"Gender": "F"}`, nil)
	defer server.Close()

	e := NewExtractor(server.Client(), server.URL, "gpt-4o", "k")

	fields, err := e.Extract(context.Background(), "body")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fields["Gender"] != "F" {
		t.Errorf("Gender = %v, want F", fields["Gender"])
	}
}

// TestExtract_MalformedReply verifies that a reply that is not a JSON object
// after fence stripping fails loudly.
func TestExtract_MalformedReply(t *testing.T) {
	server := chatServer(t, "```json\nI could not find any entities.\n```", nil)
	defer server.Close()

	e := NewExtractor(server.Client(), server.URL, "gpt-4o", "k")

	if _, err := e.Extract(context.Background(), "body"); err == nil {
		t.Fatal("expected parse error, got none")
	}
}

// TestExtract_NullReply verifies a literal null reply is rejected: it
// unmarshals into a nil map without error, but it is not a JSON object.
func TestExtract_NullReply(t *testing.T) {
	for _, content := range []string{"null", "```json\nnull\n```"} {
		server := chatServer(t, content, nil)
		e := NewExtractor(server.Client(), server.URL, "gpt-4o", "k")

		fields, err := e.Extract(context.Background(), "body")
		if err == nil {
			t.Errorf("Extract(%q): expected error, got fields=%v", content, fields)
		}
		server.Close()
	}
}

// TestExtract_ServerError verifies a non-200 response fails the call.
func TestExtract_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	e := NewExtractor(server.Client(), server.URL, "gpt-4o", "k")

	if _, err := e.Extract(context.Background(), "body"); err == nil {
		t.Fatal("expected error for HTTP 502, got none")
	}
}

// TestExtract_NoChoices verifies an empty choices array fails the call.
func TestExtract_NoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices": []}`))
	}))
	defer server.Close()

	e := NewExtractor(server.Client(), server.URL, "gpt-4o", "k")

	if _, err := e.Extract(context.Background(), "body"); err == nil {
		t.Fatal("expected error for empty choices, got none")
	}
}

// TestStripFences verifies the fence-stripping transformation.
func TestStripFences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "json fence",
			in:   "```json\n{\"a\": 1}\n```",
			want: `{"a": 1}`,
		},
		{
			name: "bare fence",
			in:   "```\n{\"a\": 1}\n```",
			want: `{"a": 1}`,
		},
		{
			name: "no fence",
			in:   `{"a": 1}`,
			want: `{"a": 1}`,
		},
		{
			name: "surrounding whitespace",
			in:   "  \n```json\n{}\n```  \n",
			want: `{}`,
		},
		{
			name: "single line fence",
			in:   "```json{}```",
			want: `{}`,
		},
		{
			name: "empty",
			in:   "",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripFences(tt.in); got != tt.want {
				t.Errorf("StripFences(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
