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

// Package models defines the data structures shared across the intake service.
package models

import (
	"fmt"
	"strings"
)

// Destination names one of the two stores a processed record is routed to.
type Destination string

const (
	// DestinationTasks holds fresh interview-support requests.
	DestinationTasks Destination = "taskBody"
	// DestinationReplies holds replies and everything else.
	DestinationReplies Destination = "repliesBody"
)

// Record is one inbound email-derived item. Records arrive as open JSON
// objects — the well-known fields (id, subject, body, receivedDateTime) are
// accessed through the typed helpers below, and every other field is carried
// through to storage untouched.
type Record map[string]any

// Fields is the structured mapping produced by the extraction service.
// No schema is enforced beyond "string keys, scalar-ish values".
type Fields map[string]any

// ID returns the record's opaque identifier, or "" if absent.
func (r Record) ID() string {
	return r.stringField("id")
}

// Subject returns the raw subject line, or "" if absent.
func (r Record) Subject() string {
	return r.stringField("subject")
}

// Body returns the free-text email body, or "" if absent.
func (r Record) Body() string {
	return r.stringField("body")
}

// NormalizedSubject returns the dedupe key: the subject trimmed of
// surrounding whitespace and lower-cased.
func (r Record) NormalizedSubject() string {
	return strings.ToLower(strings.TrimSpace(r.Subject()))
}

func (r Record) stringField(key string) string {
	v, ok := r[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

// Merge produces the record that is actually persisted: the inbound record
// overlaid with the extracted fields. Extracted fields win on key collision;
// inbound fields not named by the extraction output are preserved as-is.
func Merge(rec Record, extracted Fields) Record {
	merged := make(Record, len(rec)+len(extracted))
	for k, v := range rec {
		merged[k] = v
	}
	for k, v := range extracted {
		merged[k] = v
	}
	return merged
}

// Status classifies the outcome of processing one item.
type Status string

const (
	// StatusSkipped means the subject was already present in a destination.
	StatusSkipped Status = "skipped"
	// StatusSuccess means the merged record was stored and audited.
	StatusSuccess Status = "success"
	// StatusError means extraction or the store write failed; the batch continues.
	StatusError Status = "error"
	// StatusWarning means the write succeeded but the audit emission failed.
	StatusWarning Status = "warning"
)

// ItemResult is the per-item entry in the batch response.
type ItemResult struct {
	ID         string `json:"id"`
	Status     Status `json:"status"`
	Message    string `json:"message,omitempty"`
	Collection string `json:"collection,omitempty"`
	Error      string `json:"error,omitempty"`
}
