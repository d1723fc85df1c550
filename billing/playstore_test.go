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

package billing

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"google.golang.org/api/androidpublisher/v3"
	"google.golang.org/api/option"
)

// newTestVerifier points a Verifier at a fake Play API server.
func newTestVerifier(t *testing.T, handler http.Handler) *Verifier {
	t.Helper()

	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	v, err := NewVerifier(context.Background(), "com.landmarklens.app",
		option.WithEndpoint(ts.URL),
		option.WithoutAuthentication(),
	)
	if err != nil {
		t.Fatalf("creating verifier: %v", err)
	}
	return v
}

func TestNewVerifier_RequiresPackageName(t *testing.T) {
	_, err := NewVerifier(context.Background(), "")
	if err == nil {
		t.Error("expected error for empty package name")
	}
}

func TestVerifyAndConsumePurchase_Completed(t *testing.T) {
	var gotConsume bool

	v := newTestVerifier(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, ":consume"):
			gotConsume = true
			w.WriteHeader(http.StatusOK)
		case strings.Contains(r.URL.Path, "/tokens/"):
			if !strings.Contains(r.URL.Path, "com.landmarklens.app") {
				t.Errorf("package name missing from path: %s", r.URL.Path)
			}
			_ = json.NewEncoder(w).Encode(androidpublisher.ProductPurchase{
				PurchaseState:    0,
				ConsumptionState: 0,
			})
		default:
			t.Errorf("unexpected path: %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	completed, err := v.VerifyAndConsumePurchase(context.Background(), "credits_150", "tok-abc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !completed {
		t.Error("expected completed = true")
	}
	if !gotConsume {
		t.Error("expected the purchase to be consumed")
	}
}

func TestVerifyAndConsumePurchase_PendingOrCanceled(t *testing.T) {
	tests := []struct {
		name  string
		state int64
	}{
		{"canceled", 1},
		{"pending", 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotConsume bool

			v := newTestVerifier(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if strings.HasSuffix(r.URL.Path, ":consume") {
					gotConsume = true
					w.WriteHeader(http.StatusOK)
					return
				}
				_ = json.NewEncoder(w).Encode(androidpublisher.ProductPurchase{
					PurchaseState: tt.state,
				})
			}))

			completed, err := v.VerifyAndConsumePurchase(context.Background(), "credits_150", "tok-abc")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if completed {
				t.Error("expected completed = false")
			}
			if gotConsume {
				t.Error("an incomplete purchase must not be consumed")
			}
		})
	}
}

func TestVerifyAndConsumePurchase_BadToken(t *testing.T) {
	v := newTestVerifier(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": {"code": 400, "message": "Invalid purchase token"}}`, http.StatusBadRequest)
	}))

	_, err := v.VerifyAndConsumePurchase(context.Background(), "credits_150", "bogus")
	if err == nil {
		t.Error("expected error for invalid token")
	}
}

func TestVerifyAndConsumePurchase_ConsumeFailure(t *testing.T) {
	v := newTestVerifier(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, ":consume") {
			http.Error(w, `{"error": {"code": 500}}`, http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(androidpublisher.ProductPurchase{PurchaseState: 0})
	}))

	completed, err := v.VerifyAndConsumePurchase(context.Background(), "credits_150", "tok-abc")
	if err == nil {
		t.Error("expected error when consumption fails")
	}
	if completed {
		t.Error("completed must be false when consumption fails")
	}
}

func TestVerifyAndConsumePurchase_InputValidation(t *testing.T) {
	v := newTestVerifier(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request should reach the API")
	}))

	if _, err := v.VerifyAndConsumePurchase(context.Background(), "", "tok"); err == nil {
		t.Error("expected error for empty product ID")
	}
	if _, err := v.VerifyAndConsumePurchase(context.Background(), "credits_150", ""); err == nil {
		t.Error("expected error for empty token")
	}
}
