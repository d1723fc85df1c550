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

// Package usage records classification events to PostgreSQL for
// analytics. Recording is advisory: the quota decision lives entirely in
// the ledger package, and a lost usage row never affects a request.
package usage

import (
	"database/sql"
	"log"
)

// Recorder writes usage events to the database. Safe for concurrent use;
// callers normally record from a goroutine so responses are not blocked.
type Recorder struct {
	db *sql.DB
}

// NewRecorder creates a usage recorder with a database connection.
func NewRecorder(db *sql.DB) *Recorder {
	return &Recorder{db: db}
}

// ClassificationEvent represents one classification request, recorded
// after the quota decision and the vision call have both completed.
type ClassificationEvent struct {
	UserID         string
	RequestID      string
	Model          string // vision model that served the request
	UsedFree       bool   // free allowance vs paid credit
	Allowed        bool   // false when denied by the quota gate
	PromptTokens   int
	ResponseTokens int
	LatencyMs      int64
	HTTPStatusCode int
}

// RecordClassification inserts one classification event. Errors are
// logged and returned; callers typically ignore them.
func (r *Recorder) RecordClassification(event ClassificationEvent) error {
	if r == nil || r.db == nil {
		return nil
	}

	_, err := r.db.Exec(`
		INSERT INTO classification_events (
			user_id, request_id, model, used_free, allowed,
			prompt_tokens, response_tokens, latency_ms, http_status_code
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, event.UserID, nullString(event.RequestID), event.Model,
		event.UsedFree, event.Allowed, event.PromptTokens,
		event.ResponseTokens, event.LatencyMs, event.HTTPStatusCode)

	if err != nil {
		log.Printf("[USAGE] Failed to record classification: %v", err)
	}

	return err
}

// PurchaseEvent represents one verified top-up purchase.
type PurchaseEvent struct {
	UserID        string
	ProductID     string
	Credits       int
	DidAdd        bool // false when the token was a replay
	CreditsAfter  int
	PurchaseToken string
}

// RecordPurchase inserts one purchase event. The raw token is stored for
// support lookups; replays are recorded too, flagged by did_add=false.
func (r *Recorder) RecordPurchase(event PurchaseEvent) error {
	if r == nil || r.db == nil {
		return nil
	}

	_, err := r.db.Exec(`
		INSERT INTO purchase_events (
			user_id, product_id, credits, did_add, credits_after, purchase_token
		) VALUES ($1, $2, $3, $4, $5, $6)
	`, event.UserID, event.ProductID, event.Credits,
		event.DidAdd, event.CreditsAfter, event.PurchaseToken)

	if err != nil {
		log.Printf("[USAGE] Failed to record purchase: %v", err)
	}

	return err
}

// nullString converts an empty string to NULL for database insertion
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
