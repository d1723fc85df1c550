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
	"strings"

	"github.com/go-redis/redis/v8"
)

// CreditResult is the outcome of CreditIfNewPurchase. DidAdd is false on
// a replayed token, which is the expected idempotent outcome, not an
// error.
type CreditResult struct {
	DidAdd       bool `json:"didAdd"`
	CreditsAfter int  `json:"creditsAfter"`
}

// creditPurchaseScript marks a purchase token as credited and grants the
// credits, exactly once per token.
//
// KEYS[1] = purchase marker for the token
// KEYS[2] = credit balance for the user
// ARGV[1] = marker TTL in seconds
// ARGV[2] = user ID (stored in the marker for auditing)
// ARGV[3] = credit amount
//
// Returns {did_add, credits_after}. The NX set and the balance increment
// run in one script, so two concurrent verifications of the same token
// cannot both observe "marker absent".
var creditPurchaseScript = redis.NewScript(`
local created = redis.call("SET", KEYS[1], ARGV[2], "NX", "EX", tonumber(ARGV[1]))
if created then
    local balance = redis.call("INCRBY", KEYS[2], tonumber(ARGV[3]))
    return {1, balance}
end
return {0, tonumber(redis.call("GET", KEYS[2]) or "0")}
`)

// CreditIfNewPurchase credits userID's balance for a verified purchase
// token. The caller must already have confirmed with Google Play that the
// token belongs to a completed purchase and have consumed it there; this
// method only guarantees the grant happens at most once per token.
func (s *Store) CreditIfNewPurchase(ctx context.Context, purchaseToken, userID string, creditAmount int) (CreditResult, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return CreditResult{}, ErrInvalidIdentifier
	}
	purchaseToken = strings.TrimSpace(purchaseToken)
	if purchaseToken == "" {
		return CreditResult{}, fmt.Errorf("ledger: empty purchase token")
	}
	if creditAmount <= 0 {
		return CreditResult{}, fmt.Errorf("ledger: credit amount must be positive, got %d", creditAmount)
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.OpTimeout)
	defer cancel()

	ttlSeconds := int64(s.cfg.PurchaseMarkerTTL.Seconds())

	vals, err := creditPurchaseScript.Run(ctx, s.client,
		[]string{purchaseKey(purchaseToken), creditsKey(userID)},
		ttlSeconds, userID, creditAmount,
	).Int64Slice()
	if err != nil {
		return CreditResult{}, fmt.Errorf("%w: credit purchase: %v", ErrStoreUnavailable, err)
	}
	if len(vals) != 2 {
		return CreditResult{}, fmt.Errorf("%w: credit purchase: unexpected reply %v", ErrStoreUnavailable, vals)
	}

	return CreditResult{
		DidAdd:       vals[0] == 1,
		CreditsAfter: int(vals[1]),
	}, nil
}
