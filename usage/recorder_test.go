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

package usage

import (
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestNewRecorder(t *testing.T) {
	recorder := NewRecorder(nil)
	if recorder == nil {
		t.Fatal("NewRecorder() returned nil")
	}
	// A nil db recorder is a no-op, not a crash.
	if err := recorder.RecordClassification(ClassificationEvent{UserID: "u1"}); err != nil {
		t.Errorf("nil-db recorder should be a no-op, got %v", err)
	}
}

func TestNullString(t *testing.T) {
	tests := []struct {
		name  string
		input string
		isNil bool
	}{
		{"Empty string returns nil", "", true},
		{"Non-empty string returns pointer", "req-1", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := nullString(tt.input)
			if tt.isNil && result != nil {
				t.Errorf("nullString(%q) should return nil", tt.input)
			}
			if !tt.isNil {
				if result == nil {
					t.Fatalf("nullString(%q) should not return nil", tt.input)
				}
				if *result != tt.input {
					t.Errorf("nullString(%q) = %q", tt.input, *result)
				}
			}
		})
	}
}

func TestRecordClassification(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("opening sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("INSERT INTO classification_events").
		WithArgs("device-1", sqlmock.AnyArg(), "gemini-2.0-flash", true, true,
			200, 30, int64(850), 200).
		WillReturnResult(sqlmock.NewResult(1, 1))

	recorder := NewRecorder(db)
	err = recorder.RecordClassification(ClassificationEvent{
		UserID:         "device-1",
		RequestID:      "req-1",
		Model:          "gemini-2.0-flash",
		UsedFree:       true,
		Allowed:        true,
		PromptTokens:   200,
		ResponseTokens: 30,
		LatencyMs:      850,
		HTTPStatusCode: 200,
	})
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestRecordClassification_DBError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("opening sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("INSERT INTO classification_events").
		WillReturnError(errors.New("connection reset"))

	recorder := NewRecorder(db)
	err = recorder.RecordClassification(ClassificationEvent{UserID: "device-1"})
	if err == nil {
		t.Error("expected the database error to be returned")
	}
}

func TestRecordPurchase(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("opening sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("INSERT INTO purchase_events").
		WithArgs("device-1", "credits_150", 150, true, 150, "tok-abc").
		WillReturnResult(sqlmock.NewResult(1, 1))

	recorder := NewRecorder(db)
	err = recorder.RecordPurchase(PurchaseEvent{
		UserID:        "device-1",
		ProductID:     "credits_150",
		Credits:       150,
		DidAdd:        true,
		CreditsAfter:  150,
		PurchaseToken: "tok-abc",
	})
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
