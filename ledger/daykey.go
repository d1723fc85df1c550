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

import "time"

// TodayKey returns the day key for the current instant: the UTC calendar
// date formatted as YYYY-MM-DD. Every instant within the same UTC day
// produces the same key, and the boundary is exactly UTC midnight.
func TodayKey() string {
	return DayKeyAt(time.Now())
}

// DayKeyAt returns the day key for an arbitrary instant.
func DayKeyAt(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// SecondsUntilNextReset returns the number of seconds until the next UTC
// midnight, i.e. until the free allowance resets.
func SecondsUntilNextReset() int64 {
	return SecondsUntilNextResetAt(time.Now())
}

// SecondsUntilNextResetAt returns the seconds from t until the next UTC
// midnight after t.
func SecondsUntilNextResetAt(t time.Time) int64 {
	now := t.UTC()
	next := nextMidnightUTC(now)
	return int64(next.Sub(now).Seconds())
}

func nextMidnightUTC(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, time.UTC)
}
