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
	"log"
	"strings"

	"github.com/go-redis/redis/v8"
)

// Decision is the outcome of a TryConsume call. FreeUsedAfter and
// CreditsAfter are the authoritative post-mutation counts, so callers can
// report them without a second round trip.
type Decision struct {
	Allowed       bool `json:"allowed"`
	UsedFree      bool `json:"usedFree"`
	FreeUsedAfter int  `json:"freeUsedAfter"`
	CreditsAfter  int  `json:"creditsAfter"`
}

// tryConsumeScript decides allow/deny and mutates the counters in one
// atomic step.
//
// KEYS[1] = free counter for (user, today)
// KEYS[2] = credit balance for user
// ARGV[1] = free daily limit
//
// Returns {allowed, used_free, free_used_after, credits_after}.
var tryConsumeScript = redis.NewScript(`
local limit = tonumber(ARGV[1])
local used = tonumber(redis.call("GET", KEYS[1]) or "0")
local credits = tonumber(redis.call("GET", KEYS[2]) or "0")

if used < limit then
    used = redis.call("INCR", KEYS[1])
    return {1, 1, used, credits}
end

if credits > 0 then
    credits = redis.call("DECR", KEYS[2])
    if credits < 0 then
        redis.call("SET", KEYS[2], "0")
        credits = 0
    end
    return {1, 0, used, credits}
end

return {0, 0, used, credits}
`)

// TryConsume decides whether userID may run one more classification and
// records the consumption. Free allowance is always spent before paid
// credits, so paying users are not charged while free quota remains.
// A false Allowed with a nil error is a normal outcome (quota exhausted),
// distinct from a store failure.
func (s *Store) TryConsume(ctx context.Context, userID string) (Decision, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Decision{}, ErrInvalidIdentifier
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.OpTimeout)
	defer cancel()

	fk := freeKey(userID, TodayKey())
	ck := creditsKey(userID)

	vals, err := tryConsumeScript.Run(ctx, s.client,
		[]string{fk, ck}, s.cfg.FreeDailyLimit,
	).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("%w: try consume: %v", ErrStoreUnavailable, err)
	}
	if len(vals) != 4 {
		return Decision{}, fmt.Errorf("%w: try consume: unexpected reply %v", ErrStoreUnavailable, vals)
	}

	d := Decision{
		Allowed:       vals[0] == 1,
		UsedFree:      vals[1] == 1,
		FreeUsedAfter: int(vals[2]),
		CreditsAfter:  int(vals[3]),
	}

	// Re-arm the counter's retention window after a free consumption.
	// Best effort: the decision is already committed, and correctness
	// comes from the day key changing, not from key deletion.
	if d.Allowed && d.UsedFree {
		if err := s.client.Expire(ctx, fk, s.cfg.FreeCounterTTL).Err(); err != nil {
			log.Printf("[LEDGER] failed to arm expiry on %s: %v", fk, err)
		}
	}

	return d, nil
}
