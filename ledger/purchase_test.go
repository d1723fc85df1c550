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
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreditIfNewPurchase_FirstTime(t *testing.T) {
	store, _ := newTestStore(t, Config{})
	ctx := context.Background()

	res, err := store.CreditIfNewPurchase(ctx, "tok-123", "u1", 150)
	require.NoError(t, err)
	assert.True(t, res.DidAdd)
	assert.Equal(t, 150, res.CreditsAfter)
}

func TestCreditIfNewPurchase_ReplayedToken(t *testing.T) {
	store, _ := newTestStore(t, Config{})
	ctx := context.Background()

	first, err := store.CreditIfNewPurchase(ctx, "tok-123", "u1", 150)
	require.NoError(t, err)
	require.True(t, first.DidAdd)

	second, err := store.CreditIfNewPurchase(ctx, "tok-123", "u1", 150)
	require.NoError(t, err)
	assert.False(t, second.DidAdd, "replayed token must not credit again")
	assert.Equal(t, 150, second.CreditsAfter)
}

func TestCreditIfNewPurchase_DistinctTokensAccumulate(t *testing.T) {
	store, _ := newTestStore(t, Config{})
	ctx := context.Background()

	for i, tok := range []string{"tok-a", "tok-b", "tok-c"} {
		res, err := store.CreditIfNewPurchase(ctx, tok, "u1", 150)
		require.NoError(t, err)
		assert.True(t, res.DidAdd)
		assert.Equal(t, 150*(i+1), res.CreditsAfter)
	}
}

// TestCreditIfNewPurchase_Concurrent fires many simultaneous
// verifications of the same token; exactly one may report DidAdd.
func TestCreditIfNewPurchase_Concurrent(t *testing.T) {
	store, _ := newTestStore(t, Config{})
	ctx := context.Background()

	const callers = 12
	var wg sync.WaitGroup
	results := make([]CreditResult, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			res, err := store.CreditIfNewPurchase(ctx, "tok-race", "u1", 150)
			if err != nil {
				t.Errorf("caller %d: %v", idx, err)
				return
			}
			results[idx] = res
		}(i)
	}
	wg.Wait()

	added := 0
	for _, res := range results {
		if res.DidAdd {
			added++
		}
	}
	assert.Equal(t, 1, added, "credits must be granted exactly once across concurrent callers")

	st, err := store.ReadStatus(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 150, st.Credits)
}

func TestCreditIfNewPurchase_MarkerTTL(t *testing.T) {
	markerTTL := 365 * 24 * time.Hour
	store, mr := newTestStore(t, Config{PurchaseMarkerTTL: markerTTL})
	ctx := context.Background()

	_, err := store.CreditIfNewPurchase(ctx, "tok-ttl", "u1", 150)
	require.NoError(t, err)

	ttl := mr.TTL(purchaseKey("tok-ttl"))
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, markerTTL)

	// Marker stores the credited user for auditing.
	val, err := mr.Get(purchaseKey("tok-ttl"))
	require.NoError(t, err)
	assert.Equal(t, "u1", val)
}

func TestCreditIfNewPurchase_InputValidation(t *testing.T) {
	store, _ := newTestStore(t, Config{})
	ctx := context.Background()

	_, err := store.CreditIfNewPurchase(ctx, "tok-1", "  ", 150)
	assert.ErrorIs(t, err, ErrInvalidIdentifier)

	_, err = store.CreditIfNewPurchase(ctx, "", "u1", 150)
	assert.Error(t, err)

	_, err = store.CreditIfNewPurchase(ctx, "tok-1", "u1", 0)
	assert.Error(t, err)

	_, err = store.CreditIfNewPurchase(ctx, "tok-1", "u1", -5)
	assert.Error(t, err)
}

func TestCreditIfNewPurchase_StoreUnavailable(t *testing.T) {
	store, mr := newTestStore(t, Config{})
	ctx := context.Background()

	mr.Close()

	_, err := store.CreditIfNewPurchase(ctx, "tok-1", "u1", 150)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}

// TestCreditThenConsume exercises the full purchase-then-spend flow.
func TestCreditThenConsume(t *testing.T) {
	store, _ := newTestStore(t, Config{FreeDailyLimit: 0})
	ctx := context.Background()

	res, err := store.CreditIfNewPurchase(ctx, "tok-flow", "u1", 2)
	require.NoError(t, err)
	require.Equal(t, 2, res.CreditsAfter)

	for want := 1; want >= 0; want-- {
		d, err := store.TryConsume(ctx, "u1")
		require.NoError(t, err)
		assert.True(t, d.Allowed)
		assert.False(t, d.UsedFree)
		assert.Equal(t, want, d.CreditsAfter)
	}

	d, err := store.TryConsume(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
}
