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
	"strconv"
	"strings"
)

// Status is a non-mutating snapshot of a user's quota state for display.
type Status struct {
	FreeUsed       int   `json:"freeUsed"`
	FreeRemaining  int   `json:"freeRemaining"`
	Credits        int   `json:"credits"`
	ResetInSeconds int64 `json:"resetInSeconds"`
}

// ReadStatus reads today's free-usage counter and the credit balance.
// Plain reads; no atomicity needed beyond Redis's own consistency.
func (s *Store) ReadStatus(ctx context.Context, userID string) (Status, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Status{}, ErrInvalidIdentifier
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.OpTimeout)
	defer cancel()

	vals, err := s.client.MGet(ctx, freeKey(userID, TodayKey()), creditsKey(userID)).Result()
	if err != nil {
		return Status{}, fmt.Errorf("%w: read status: %v", ErrStoreUnavailable, err)
	}

	used := parseCount(vals[0])
	credits := parseCount(vals[1])

	remaining := s.cfg.FreeDailyLimit - used
	if remaining < 0 {
		remaining = 0
	}

	return Status{
		FreeUsed:       used,
		FreeRemaining:  remaining,
		Credits:        credits,
		ResetInSeconds: SecondsUntilNextReset(),
	}, nil
}

// parseCount treats an absent key as zero, the ledger's default-on-miss
// semantic.
func parseCount(v interface{}) int {
	if v == nil {
		return 0
	}
	s, ok := v.(string)
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
