// Copyright 2025 LandmarkLens
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

package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	// DefaultFreeDailyLimit is the free classifications granted per user
	// per UTC day when no limit is configured.
	DefaultFreeDailyLimit = 2

	// DefaultFreeCounterTTL bounds storage growth of per-day counters.
	// The daily reset comes from the day key changing, not from expiry.
	DefaultFreeCounterTTL = 72 * time.Hour

	// DefaultPurchaseMarkerTTL is how long a purchase token stays marked
	// as credited. Play purchase tokens are never legitimately replayed
	// this far apart.
	DefaultPurchaseMarkerTTL = 365 * 24 * time.Hour

	// DefaultOpTimeout bounds a single store round trip. On timeout the
	// operation reports ErrStoreUnavailable; no mutation is assumed.
	DefaultOpTimeout = 3 * time.Second
)

// BypassUserID is the reserved identifier attributed to requests that
// skip the quota gate via the developer bypass token.
const BypassUserID = "dev"

// Config holds the ledger's tunables. Zero values fall back to the
// defaults above.
type Config struct {
	FreeDailyLimit    int
	FreeCounterTTL    time.Duration
	PurchaseMarkerTTL time.Duration
	OpTimeout         time.Duration
}

func (c Config) withDefaults() Config {
	if c.FreeDailyLimit < 0 {
		c.FreeDailyLimit = 0
	}
	if c.FreeCounterTTL <= 0 {
		c.FreeCounterTTL = DefaultFreeCounterTTL
	}
	if c.PurchaseMarkerTTL <= 0 {
		c.PurchaseMarkerTTL = DefaultPurchaseMarkerTTL
	}
	if c.OpTimeout <= 0 {
		c.OpTimeout = DefaultOpTimeout
	}
	return c
}

// Store is the Redis-backed usage ledger. It is safe for concurrent use;
// all cross-key decisions execute server-side as Lua scripts.
type Store struct {
	client redis.Cmdable
	cfg    Config
}

// NewStore creates a Store on an already-connected Redis client.
func NewStore(client redis.Cmdable, cfg Config) *Store {
	return &Store{client: client, cfg: cfg.withDefaults()}
}

// FreeDailyLimit reports the configured free allowance per UTC day.
func (s *Store) FreeDailyLimit() int {
	return s.cfg.FreeDailyLimit
}

// Connect parses a redis:// URL, opens a pooled client and verifies the
// connection with a short ping.
func Connect(redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// Ping reports store reachability, for health checks.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.OpTimeout)
	defer cancel()
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func freeKey(userID, dayKey string) string {
	return fmt.Sprintf("quota:free:%s:%s", userID, dayKey)
}

func creditsKey(userID string) string {
	return fmt.Sprintf("quota:credits:%s", userID)
}

func purchaseKey(token string) string {
	return fmt.Sprintf("purchase:token:%s", token)
}
