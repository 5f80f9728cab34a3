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

// Package store provides the Postgres-backed destination stores for processed
// records. There are exactly two destinations — taskBody and repliesBody —
// each a table holding the merged record as JSONB keyed by subject. The
// pipeline only ever checks for an existing subject and inserts; records are
// never updated or deleted here.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hireflow/intake/internal/models"
)

// Store provides existence checks and inserts against both destination tables.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a record store backed by the given Postgres pool.
// It ensures both destination tables exist on creation.
func NewStore(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	s := &Store{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure record schema: %w", err)
	}
	slog.Info("record store initialised")
	return s, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS task_body (
			id        BIGSERIAL PRIMARY KEY,
			subject   TEXT NOT NULL,
			payload   JSONB NOT NULL,
			stored_at TIMESTAMPTZ DEFAULT NOW()
		);
		CREATE TABLE IF NOT EXISTS replies_body (
			id        BIGSERIAL PRIMARY KEY,
			subject   TEXT NOT NULL,
			payload   JSONB NOT NULL,
			stored_at TIMESTAMPTZ DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_task_body_subject ON task_body (LOWER(subject));
		CREATE INDEX IF NOT EXISTS idx_replies_body_subject ON replies_body (LOWER(subject));
	`)
	return err
}

// tableFor maps a destination to its table name. The name is interpolated
// into SQL, so it must come from this closed mapping, never from input.
func tableFor(dest models.Destination) (string, error) {
	switch dest {
	case models.DestinationTasks:
		return "task_body", nil
	case models.DestinationReplies:
		return "replies_body", nil
	default:
		return "", fmt.Errorf("unknown destination %q", dest)
	}
}

// ExistsBySubject reports whether the destination already holds a record
// whose subject matches the given one, compared case-insensitively after
// trimming surrounding whitespace.
func (s *Store) ExistsBySubject(ctx context.Context, dest models.Destination, subject string) (bool, error) {
	table, err := tableFor(dest)
	if err != nil {
		return false, err
	}

	var exists bool
	err = s.pool.QueryRow(ctx, fmt.Sprintf(`
		SELECT EXISTS (
			SELECT 1 FROM %s WHERE LOWER(subject) = LOWER($1)
		)
	`, table), strings.TrimSpace(subject)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("query %s by subject: %w", table, err)
	}
	return exists, nil
}

// Insert writes a merged record into the destination table. The subject
// column is stored trimmed so lookups and stored values agree.
func (s *Store) Insert(ctx context.Context, dest models.Destination, rec models.Record) error {
	table, err := tableFor(dest)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record payload: %w", err)
	}

	_, err = s.pool.Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s (subject, payload) VALUES ($1, $2)
	`, table), strings.TrimSpace(rec.Subject()), payload)
	if err != nil {
		return fmt.Errorf("insert into %s: %w", table, err)
	}
	return nil
}

// Ping checks the Postgres connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}
