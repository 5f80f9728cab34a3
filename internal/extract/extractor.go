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

// Package extract calls the external extraction service to turn a free-text
// email body into named candidate-interview fields. The service is an
// OpenAI-compatible chat-completions endpoint; its reply may be wrapped in a
// markdown code fence, which is stripped before strict JSON parsing. A single
// failed attempt fails the item — there is no retry here.
package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hireflow/intake/internal/models"
)

// instructionPrompt is the fixed extraction instruction. The field list is
// the schema downstream consumers of taskBody expect.
const instructionPrompt = `From the text I give you, extract entities as following and return them as a JSON object:
Candidate Name: (exact name, word for word, capitalized)
Date Of Birth: (DD/MM)
Gender:
Education:
University:
Total Experience: (in years, integer)
State: (abbreviation)
Technology:
End Client:
Interview Round:
Job Title:
Email ID:
Contact No:
Date of Interview: (MM/DD/YYYY)
Start Time Of Interview: (Eastern time, 12hr AM/PM)
End Time Of Interview: (Eastern time, 12hr AM/PM; if not available, add the duration to the start time)
Use null for anything the text does not mention.`

// Extractor calls the extraction service over HTTP.
type Extractor struct {
	httpClient *http.Client
	baseURL    string
	model      string
	apiKey     string
}

// NewExtractor creates an extraction client. The httpClient may already carry
// authentication (e.g. an oauth2 client-credentials transport), in which case
// apiKey is empty; otherwise apiKey is sent as a bearer token.
func NewExtractor(httpClient *http.Client, baseURL, model, apiKey string) *Extractor {
	return &Extractor{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		apiKey:     apiKey,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Extract sends the email body to the extraction service and parses the
// reply into a field mapping.
func (e *Extractor) Extract(ctx context.Context, body string) (models.Fields, error) {
	reqBody, err := json.Marshal(chatRequest{
		Model: e.model,
		Messages: []chatMessage{
			{Role: "system", Content: instructionPrompt},
			{Role: "user", Content: body},
		},
		Temperature: 0.1,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal extraction request: %w", err)
	}

	url := e.baseURL + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("build extraction request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call extraction service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("extraction service returned HTTP %d", resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode extraction response: %w", err)
	}
	if parsed.Error.Message != "" {
		return nil, fmt.Errorf("extraction service error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("extraction service returned no choices")
	}

	raw := parsed.Choices[0].Message.Content
	clean := StripFences(raw)

	var fields models.Fields
	if err := json.Unmarshal([]byte(clean), &fields); err != nil {
		slog.Warn("extraction reply was not a JSON object",
			"reply_len", len(raw),
			"error", err,
		)
		return nil, fmt.Errorf("parse extracted fields: %w", err)
	}
	if fields == nil {
		// A literal "null" unmarshals into a nil map without error.
		return nil, fmt.Errorf("extraction reply is not a JSON object")
	}

	return fields, nil
}

// StripFences removes a markdown code-fence decoration around a reply, when
// present. The remainder must still parse as JSON — this only peels the
// wrapper, it never repairs the content.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}

	// Drop the opening fence line ("```" or "```json").
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	} else {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
	}

	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
