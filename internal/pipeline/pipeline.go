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

// Package pipeline runs the per-item ingestion sequence: duplicate check,
// field extraction, merge, classification, store write, and audit emission.
// Items within a batch are processed strictly in order and independently —
// one item's failure never aborts the rest of the batch.
package pipeline

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/hireflow/intake/internal/audit"
	"github.com/hireflow/intake/internal/models"
)

// markerPhrase routes a subject to the primary destination when present.
const markerPhrase = "interview support"

// replyPrefix keeps reply threads out of the primary destination.
const replyPrefix = "re:"

// RecordStore is the destination store boundary.
type RecordStore interface {
	ExistsBySubject(ctx context.Context, dest models.Destination, subject string) (bool, error)
	Insert(ctx context.Context, dest models.Destination, rec models.Record) error
}

// Claimer is the atomic subject-claim boundary. Claims are a best-effort
// guard in front of the store lookups; claim errors degrade to the lookups
// alone rather than failing the item.
type Claimer interface {
	Claim(ctx context.Context, subject string) (bool, error)
	Release(ctx context.Context, subject string) error
}

// Extractor is the extraction service boundary.
type Extractor interface {
	Extract(ctx context.Context, body string) (models.Fields, error)
}

// AuditSink is the outcome log boundary.
type AuditSink interface {
	Send(ctx context.Context, e audit.Entry) error
}

// Pipeline wires the collaborators for one intake deployment.
type Pipeline struct {
	store     RecordStore
	claims    Claimer
	extractor Extractor
	sink      AuditSink
	now       func() time.Time
}

// New creates a pipeline. claims may be nil, in which case duplicate
// detection relies on the store lookups alone.
func New(store RecordStore, claims Claimer, extractor Extractor, sink AuditSink) *Pipeline {
	return &Pipeline{
		store:     store,
		claims:    claims,
		extractor: extractor,
		sink:      sink,
		now:       time.Now,
	}
}

// Classify decides the destination for a subject: primary (taskBody) iff the
// lower-cased subject contains the marker phrase and does not start with the
// reply prefix, otherwise secondary (repliesBody).
func Classify(subject string) models.Destination {
	s := strings.ToLower(strings.TrimSpace(subject))
	if strings.Contains(s, markerPhrase) && !strings.HasPrefix(s, replyPrefix) {
		return models.DestinationTasks
	}
	return models.DestinationReplies
}

// Process runs every record in the batch through the pipeline, in order,
// and returns one result per record.
func (p *Pipeline) Process(ctx context.Context, records []models.Record) []models.ItemResult {
	results := make([]models.ItemResult, 0, len(records))
	for _, rec := range records {
		results = append(results, p.processItem(ctx, rec))
	}
	return results
}

func (p *Pipeline) processItem(ctx context.Context, rec models.Record) models.ItemResult {
	subject := strings.TrimSpace(rec.Subject())
	reference := audit.NewReference(subject, p.now())

	// Atomic claim first — a lost claim means another item (possibly on a
	// concurrent request) already owns this subject.
	claimed := false
	if p.claims != nil {
		won, err := p.claims.Claim(ctx, subject)
		if err != nil {
			slog.Warn("subject claim failed, falling back to store lookups",
				"subject", subject,
				"error", err,
			)
		} else if !won {
			return p.skip(ctx, rec, reference, "subject already claimed")
		} else {
			claimed = true
		}
	}

	// Both destinations are consulted; a hit in either means the subject was
	// processed before.
	for _, dest := range []models.Destination{models.DestinationTasks, models.DestinationReplies} {
		exists, err := p.store.ExistsBySubject(ctx, dest, subject)
		if err != nil {
			if claimed {
				p.release(ctx, subject)
			}
			return p.fail(ctx, rec, reference, "duplicate lookup failed", err)
		}
		if exists {
			return p.skip(ctx, rec, reference, "subject already processed")
		}
	}

	fields, err := p.extractor.Extract(ctx, rec.Body())
	if err != nil {
		if claimed {
			p.release(ctx, subject)
		}
		return p.fail(ctx, rec, reference, "extraction failed", err)
	}

	merged := models.Merge(rec, fields)
	dest := Classify(subject)

	if err := p.store.Insert(ctx, dest, merged); err != nil {
		if claimed {
			p.release(ctx, subject)
		}
		return p.fail(ctx, rec, reference, "store write failed", err)
	}

	processedAt := p.now().UTC().Format(time.RFC3339)
	slog.Info("record stored",
		"id", rec.ID(),
		"subject", subject,
		"collection", string(dest),
	)

	// The write already decided the item's fate; a sink failure only
	// downgrades the reported status to warning.
	err = p.sink.Send(ctx, audit.Entry{
		LogType:     audit.TypeInfo,
		Reference:   reference,
		Message:     "record stored",
		Collection:  string(dest),
		ProcessedAt: processedAt,
		Record:      merged,
	})
	if err != nil {
		slog.Warn("audit emission failed for stored record",
			"subject", subject,
			"error", err,
		)
		return models.ItemResult{
			ID:         rec.ID(),
			Status:     models.StatusWarning,
			Message:    "stored, but audit emission failed",
			Collection: string(dest),
			Error:      err.Error(),
		}
	}

	return models.ItemResult{
		ID:         rec.ID(),
		Status:     models.StatusSuccess,
		Message:    "record stored",
		Collection: string(dest),
	}
}

func (p *Pipeline) skip(ctx context.Context, rec models.Record, reference, reason string) models.ItemResult {
	slog.Info("skipping duplicate record",
		"id", rec.ID(),
		"subject", rec.Subject(),
		"reason", reason,
	)

	if err := p.sink.Send(ctx, audit.Entry{
		LogType:   audit.TypeSkip,
		Reference: reference,
		Message:   reason,
	}); err != nil {
		slog.Warn("audit emission failed for skip", "error", err)
	}

	return models.ItemResult{
		ID:      rec.ID(),
		Status:  models.StatusSkipped,
		Message: reason,
	}
}

func (p *Pipeline) fail(ctx context.Context, rec models.Record, reference, reason string, cause error) models.ItemResult {
	slog.Error("item processing failed",
		"id", rec.ID(),
		"subject", rec.Subject(),
		"reason", reason,
		"error", cause,
	)

	if err := p.sink.Send(ctx, audit.Entry{
		LogType:   audit.TypeError,
		Reference: reference,
		Message:   reason,
		Error:     cause.Error(),
	}); err != nil {
		slog.Warn("audit emission failed for error", "error", err)
	}

	return models.ItemResult{
		ID:      rec.ID(),
		Status:  models.StatusError,
		Message: reason,
		Error:   cause.Error(),
	}
}

// release drops a subject claim after a pre-storage failure so the item can
// be resubmitted.
func (p *Pipeline) release(ctx context.Context, subject string) {
	if err := p.claims.Release(ctx, subject); err != nil {
		slog.Warn("failed to release subject claim", "subject", subject, "error", err)
	}
}
