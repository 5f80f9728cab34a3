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

package models

import "testing"

// TestMerge verifies merge precedence: extracted fields win on collision,
// everything else from the inbound record survives untouched.
func TestMerge(t *testing.T) {
	rec := Record{
		"id":         "m-1",
		"subject":    "Interview Support for Jane Doe",
		"body":       "raw email text",
		"Technology": "unknown",
	}
	extracted := Fields{
		"Technology":     "Go",
		"Candidate Name": "Jane Doe",
	}

	merged := Merge(rec, extracted)

	if merged["Technology"] != "Go" {
		t.Errorf("Technology = %v, want extracted value to win", merged["Technology"])
	}
	if merged["Candidate Name"] != "Jane Doe" {
		t.Errorf("Candidate Name = %v, want Jane Doe", merged["Candidate Name"])
	}
	if merged["subject"] != "Interview Support for Jane Doe" {
		t.Errorf("subject = %v, want preserved", merged["subject"])
	}
	if merged["id"] != "m-1" || merged["body"] != "raw email text" {
		t.Errorf("inbound fields not preserved: %v", merged)
	}

	// Merge must not mutate its inputs.
	if rec["Technology"] != "unknown" {
		t.Errorf("inbound record was mutated: %v", rec["Technology"])
	}
}

// TestRecordAccessors verifies the typed helpers against absent and
// non-string values (JSON numbers arrive as float64).
func TestRecordAccessors(t *testing.T) {
	rec := Record{
		"id":      float64(42),
		"subject": "  Weekly Sync  ",
	}

	if got := rec.ID(); got != "42" {
		t.Errorf("ID() = %q, want 42", got)
	}
	if got := rec.Subject(); got != "  Weekly Sync  " {
		t.Errorf("Subject() = %q, want the raw value", got)
	}
	if got := rec.NormalizedSubject(); got != "weekly sync" {
		t.Errorf("NormalizedSubject() = %q, want trimmed lower-case", got)
	}
	if got := rec.Body(); got != "" {
		t.Errorf("Body() = %q, want empty for missing field", got)
	}

	var empty Record
	if empty.Subject() != "" || empty.ID() != "" {
		t.Error("nil record accessors should return empty strings")
	}
}
