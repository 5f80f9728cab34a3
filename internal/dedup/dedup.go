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

// Package dedup provides subject claims using a Redis SET with TTL.
// The destination tables remain the source of truth for duplicate detection;
// the claim closes the window where two near-simultaneous submissions with
// the same subject would both pass the table lookups before either inserts.
package dedup

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// DefaultTTL is how long a claimed subject is remembered. Long enough to
	// outlive any in-flight batch; the stored record takes over after that.
	DefaultTTL = 24 * time.Hour

	// keyPrefix namespaces claim keys in Redis.
	keyPrefix = "intake:subject:"
)

// Filter tracks which subjects are claimed by an in-flight or completed item.
type Filter struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewFilter creates a subject claim filter backed by Redis.
func NewFilter(rdb *redis.Client, ttl time.Duration) *Filter {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Filter{
		rdb: rdb,
		ttl: ttl,
	}
}

func claimKey(subject string) string {
	return keyPrefix + strings.ToLower(strings.TrimSpace(subject))
}

// Claim atomically marks a subject as taken and returns true if this caller
// won the claim. A false return means another item holds the subject.
func (f *Filter) Claim(ctx context.Context, subject string) (bool, error) {
	// SET NX = set only if key does not exist. Returns true if the key was set.
	set, err := f.rdb.SetNX(ctx, claimKey(subject), 1, f.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim SETNX: %w", err)
	}
	return set, nil
}

// Release drops a claim after the item failed before reaching storage, so a
// resubmission of the same subject is processed rather than skipped.
func (f *Filter) Release(ctx context.Context, subject string) error {
	if err := f.rdb.Del(ctx, claimKey(subject)).Err(); err != nil {
		return fmt.Errorf("release claim: %w", err)
	}
	return nil
}

// Ping checks the Redis connection.
func (f *Filter) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return f.rdb.Ping(ctx).Err()
}
