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

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"landmarklens/backend/archive"
	"landmarklens/backend/ledger"
	"landmarklens/backend/shared/logger"
	"landmarklens/backend/usage"
	"landmarklens/backend/vision/gemini"
)

// maxImageBytes caps uploaded photo size. The app downscales before
// upload, so anything bigger than this is a client bug.
const maxImageBytes = 10 << 20

// Classifier identifies a landmark in a photo.
type Classifier interface {
	Classify(ctx context.Context, image []byte, mimeType string) (*gemini.Classification, error)
}

// PurchaseVerifier checks a store purchase token and consumes it so the
// store allows re-buying the same consumable product.
type PurchaseVerifier interface {
	VerifyAndConsumePurchase(ctx context.Context, productID, purchaseToken string) (bool, error)
}

// Server wires the ledger, the vision provider and the optional
// collaborators behind the HTTP routes.
type Server struct {
	cfg        Config
	store      *ledger.Store
	log        *logger.Logger
	classifier Classifier
	verifier   PurchaseVerifier
	archiver   *archive.Archiver
	recorder   *usage.Recorder
}

// ClassifyResponse is the reply to a successful classification.
type ClassifyResponse struct {
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Model       string        `json:"model"`
	RequestID   string        `json:"requestId"`
	Quota       ledger.Status `json:"quota"`
}

// PurchaseRequest is the body of POST /api/v1/purchase/verify.
type PurchaseRequest struct {
	ProductID     string `json:"productId"`
	PurchaseToken string `json:"purchaseToken"`
}

// PurchaseResponse reports the outcome of a purchase verification.
// Credited is false when the token was already redeemed; the call is
// still a success so the app can retry after a crash without
// double-granting.
type PurchaseResponse struct {
	Credited     bool `json:"credited"`
	CreditsAfter int  `json:"creditsAfter"`
}

// ErrorResponse is the JSON body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func (s *Server) classifyHandler(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()
	requestID := uuid.NewString()

	bypass := s.isBypassRequest(r)
	userID := bypassUserID
	if !bypass {
		var err error
		userID, err = s.resolveUserID(r)
		if err != nil {
			sendErrorResponse(w, err.Error(), "invalid_identifier", http.StatusBadRequest)
			s.countRequest("classify", http.StatusBadRequest)
			return
		}
	}

	image, mimeType, err := readImage(r)
	if err != nil {
		s.log.ErrorWithCode(userID, requestID, "Rejected photo upload", http.StatusBadRequest, err, nil)
		sendErrorResponse(w, err.Error(), "invalid_image", http.StatusBadRequest)
		s.countRequest("classify", http.StatusBadRequest)
		return
	}

	// Charge before classifying. A paid call that later fails in the
	// vision provider is NOT refunded; the app tells users a failed scan
	// may still count.
	decision := ledger.Decision{Allowed: true}
	if !bypass {
		decision, err = s.store.TryConsume(r.Context(), userID)
		switch {
		case errors.Is(err, ledger.ErrInvalidIdentifier):
			sendErrorResponse(w, "invalid user identifier", "invalid_identifier", http.StatusBadRequest)
			s.countRequest("classify", http.StatusBadRequest)
			return
		case err != nil:
			// Fail closed: an unreachable ledger denies the request
			// rather than handing out unmetered classifications.
			promStoreErrors.Inc()
			s.log.ErrorWithCode(userID, requestID, "Quota check failed, denying request", http.StatusServiceUnavailable, err, nil)
			sendErrorResponse(w, "usage ledger unavailable, try again shortly", "store_unavailable", http.StatusServiceUnavailable)
			s.countRequest("classify", http.StatusServiceUnavailable)
			return
		case !decision.Allowed:
			promQuotaDenied.Inc()
			s.log.Info(userID, requestID, "Quota exhausted", map[string]interface{}{
				"free_used": decision.FreeUsedAfter,
				"credits":   decision.CreditsAfter,
			})
			s.recordClassification(userID, requestID, "", decision, nil, http.StatusPaymentRequired, startTime)
			sendErrorResponse(w, "daily free limit reached and no credits left", "quota_exhausted", http.StatusPaymentRequired)
			s.countRequest("classify", http.StatusPaymentRequired)
			return
		}
		if decision.UsedFree {
			promFreeConsumed.Inc()
		} else {
			promCreditsConsumed.Inc()
		}
	}

	result, err := s.classifier.Classify(r.Context(), image, mimeType)
	if err != nil {
		s.log.ErrorWithCode(userID, requestID, "Classification failed", http.StatusBadGateway, err, map[string]interface{}{
			"image_bytes": len(image),
		})
		s.recordClassification(userID, requestID, "", decision, nil, http.StatusBadGateway, startTime)
		sendErrorResponse(w, "classification failed, the scan may still have counted", "classification_failed", http.StatusBadGateway)
		s.countRequest("classify", http.StatusBadGateway)
		return
	}

	if s.archiver != nil && !bypass {
		s.archiver.StoreAsync(archive.ObjectName(ledger.TodayKey(), userID, requestID), image, mimeType)
	}
	s.recordClassification(userID, requestID, result.Model, decision, result, http.StatusOK, startTime)

	quota, err := s.store.ReadStatus(r.Context(), userID)
	if err != nil {
		// The decision already carries the post-charge counters; a failed
		// snapshot read only loses the reset countdown.
		quota = ledger.Status{
			FreeUsed:      decision.FreeUsedAfter,
			FreeRemaining: s.store.FreeDailyLimit() - decision.FreeUsedAfter,
			Credits:       decision.CreditsAfter,
		}
		if quota.FreeRemaining < 0 {
			quota.FreeRemaining = 0
		}
	}

	durationMS := float64(time.Since(startTime).Milliseconds())
	s.log.InfoWithDuration(userID, requestID, "Classified landmark", durationMS, map[string]interface{}{
		"landmark":  result.Name,
		"model":     result.Model,
		"used_free": decision.UsedFree,
	})
	promRequestDuration.WithLabelValues("classify").Observe(durationMS)
	s.countRequest("classify", http.StatusOK)

	sendJSON(w, http.StatusOK, ClassifyResponse{
		Name:        result.Name,
		Description: result.Description,
		Model:       result.Model,
		RequestID:   requestID,
		Quota:       quota,
	})
}

func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := s.resolveUserID(r)
	if err != nil {
		sendErrorResponse(w, err.Error(), "invalid_identifier", http.StatusBadRequest)
		s.countRequest("status", http.StatusBadRequest)
		return
	}

	status, err := s.store.ReadStatus(r.Context(), userID)
	switch {
	case errors.Is(err, ledger.ErrInvalidIdentifier):
		sendErrorResponse(w, "invalid user identifier", "invalid_identifier", http.StatusBadRequest)
		s.countRequest("status", http.StatusBadRequest)
		return
	case err != nil:
		promStoreErrors.Inc()
		sendErrorResponse(w, "usage ledger unavailable, try again shortly", "store_unavailable", http.StatusServiceUnavailable)
		s.countRequest("status", http.StatusServiceUnavailable)
		return
	}

	s.countRequest("status", http.StatusOK)
	sendJSON(w, http.StatusOK, status)
}

func (s *Server) purchaseVerifyHandler(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.NewString()

	userID, err := s.resolveUserID(r)
	if err != nil {
		sendErrorResponse(w, err.Error(), "invalid_identifier", http.StatusBadRequest)
		s.countRequest("purchase", http.StatusBadRequest)
		return
	}

	var req PurchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendErrorResponse(w, "invalid request body", "invalid_request", http.StatusBadRequest)
		s.countRequest("purchase", http.StatusBadRequest)
		return
	}
	req.ProductID = strings.TrimSpace(req.ProductID)
	req.PurchaseToken = strings.TrimSpace(req.PurchaseToken)
	if req.ProductID == "" || req.PurchaseToken == "" {
		sendErrorResponse(w, "productId and purchaseToken are required", "invalid_request", http.StatusBadRequest)
		s.countRequest("purchase", http.StatusBadRequest)
		return
	}

	if s.verifier == nil {
		sendErrorResponse(w, "purchase verification is not configured", "verification_unavailable", http.StatusServiceUnavailable)
		s.countRequest("purchase", http.StatusServiceUnavailable)
		return
	}

	ok, err := s.verifier.VerifyAndConsumePurchase(r.Context(), req.ProductID, req.PurchaseToken)
	if err != nil {
		s.log.ErrorWithCode(userID, requestID, "Purchase verification failed", http.StatusBadGateway, err, map[string]interface{}{
			"product_id": req.ProductID,
		})
		sendErrorResponse(w, "could not verify purchase with the store", "verification_failed", http.StatusBadGateway)
		s.countRequest("purchase", http.StatusBadGateway)
		return
	}
	if !ok {
		s.log.Warn(userID, requestID, "Rejected purchase token", map[string]interface{}{
			"product_id": req.ProductID,
		})
		sendErrorResponse(w, "purchase is not in a completed state", "purchase_invalid", http.StatusBadRequest)
		s.countRequest("purchase", http.StatusBadRequest)
		return
	}

	result, err := s.store.CreditIfNewPurchase(r.Context(), req.PurchaseToken, userID, s.cfg.CreditsPerPurchase)
	if err != nil {
		// The store already consumed the token; the app retries this call
		// until crediting succeeds, and the idempotency marker makes the
		// retry safe.
		promStoreErrors.Inc()
		s.log.ErrorWithCode(userID, requestID, "Crediting verified purchase failed", http.StatusServiceUnavailable, err, nil)
		sendErrorResponse(w, "purchase verified but crediting failed, retry", "store_unavailable", http.StatusServiceUnavailable)
		s.countRequest("purchase", http.StatusServiceUnavailable)
		return
	}

	if result.DidAdd {
		promCreditsGranted.Add(float64(s.cfg.CreditsPerPurchase))
		s.log.Info(userID, requestID, "Credited purchase", map[string]interface{}{
			"product_id":    req.ProductID,
			"credits_after": result.CreditsAfter,
		})
	} else {
		s.log.Info(userID, requestID, "Replayed purchase token, not crediting again", map[string]interface{}{
			"product_id": req.ProductID,
		})
	}

	if s.recorder != nil {
		if err := s.recorder.RecordPurchase(usage.PurchaseEvent{
			UserID:        userID,
			ProductID:     req.ProductID,
			Credits:       s.cfg.CreditsPerPurchase,
			DidAdd:        result.DidAdd,
			CreditsAfter:  result.CreditsAfter,
			PurchaseToken: req.PurchaseToken,
		}); err != nil {
			log.Printf("[USAGE] Failed to record purchase event: %v", err)
		}
	}

	s.countRequest("purchase", http.StatusOK)
	sendJSON(w, http.StatusOK, PurchaseResponse{
		Credited:     result.DidAdd,
		CreditsAfter: result.CreditsAfter,
	})
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := "healthy"
	statusCode := http.StatusOK
	if err := s.store.Ping(ctx); err != nil {
		status = "degraded"
		statusCode = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"status":    status,
		"service":   "landmarklens-backend",
		"timestamp": time.Now().UTC(),
		"version":   "1.0.0",
	}); err != nil {
		log.Printf("Error encoding health response: %v", err)
	}
}

// readImage pulls the photo out of the request. Multipart uploads use
// the "photo" field; anything else is treated as a raw image body.
func readImage(r *http.Request) ([]byte, string, error) {
	r.Body = http.MaxBytesReader(nil, r.Body, maxImageBytes)

	contentType := r.Header.Get("Content-Type")
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil, "", fmt.Errorf("invalid Content-Type: %v", err)
	}

	if mediaType == "multipart/form-data" {
		file, header, err := r.FormFile("photo")
		if err != nil {
			return nil, "", fmt.Errorf("missing photo field: %v", err)
		}
		defer file.Close()

		image, err := io.ReadAll(file)
		if err != nil {
			return nil, "", fmt.Errorf("reading photo: %v", err)
		}
		if len(image) == 0 {
			return nil, "", fmt.Errorf("photo is empty")
		}
		mimeType := header.Header.Get("Content-Type")
		if mimeType == "" {
			mimeType = "image/jpeg"
		}
		return image, mimeType, nil
	}

	if !strings.HasPrefix(mediaType, "image/") {
		return nil, "", fmt.Errorf("unsupported Content-Type %q", mediaType)
	}
	image, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, "", fmt.Errorf("reading body: %v", err)
	}
	if len(image) == 0 {
		return nil, "", fmt.Errorf("image body is empty")
	}
	return image, mediaType, nil
}

func (s *Server) recordClassification(userID, requestID, model string, decision ledger.Decision, result *gemini.Classification, statusCode int, startTime time.Time) {
	if s.recorder == nil {
		return
	}
	event := usage.ClassificationEvent{
		UserID:         userID,
		RequestID:      requestID,
		Model:          model,
		UsedFree:       decision.UsedFree,
		Allowed:        decision.Allowed,
		LatencyMs:      time.Since(startTime).Milliseconds(),
		HTTPStatusCode: statusCode,
	}
	if result != nil {
		event.Model = result.Model
		event.PromptTokens = result.Usage.InputTokens
		event.ResponseTokens = result.Usage.OutputTokens
	}
	if err := s.recorder.RecordClassification(event); err != nil {
		log.Printf("[USAGE] Failed to record classification event: %v", err)
	}
}

func (s *Server) countRequest(route string, statusCode int) {
	promRequestsTotal.WithLabelValues(route, fmt.Sprintf("%d", statusCode)).Inc()
}

func sendJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

func sendErrorResponse(w http.ResponseWriter, message, code string, statusCode int) {
	sendJSON(w, statusCode, ErrorResponse{Error: message, Code: code})
}
