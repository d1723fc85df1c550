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

// Package gemini calls Google's Gemini vision API to identify a
// photographed landmark. It is the backend's only vision collaborator;
// the usage ledger decides whether a request may reach it at all.
package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

const (
	// DefaultBaseURL is the default Gemini API endpoint.
	DefaultBaseURL = "https://generativelanguage.googleapis.com"

	// DefaultAPIVersion is the Gemini API version.
	DefaultAPIVersion = "v1beta"

	// DefaultTimeout is the default HTTP timeout.
	DefaultTimeout = 60 * time.Second

	// DefaultMaxTokens is the default max output tokens.
	DefaultMaxTokens = 512

	// DefaultModel is the default vision model.
	DefaultModel = "gemini-2.0-flash"
)

// classifyPrompt asks for a name on the first line and a short
// description after it, which keeps response parsing trivial.
const classifyPrompt = `You are a landmark identification assistant.
Identify the landmark, building, monument or natural feature in the photo.
Reply with the landmark name on the first line, then two or three short
sentences describing it. If nothing in the photo is identifiable, reply
with "Unknown" on the first line.`

// HTTPClient is an interface for HTTP client operations (enables testing).
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Provider calls the Gemini generateContent endpoint with an inline
// image part.
type Provider struct {
	apiKey     string
	baseURL    string
	apiVersion string
	model      string
	client     HTTPClient
	healthy    bool
	mu         sync.RWMutex
}

// Config contains configuration for the Gemini provider.
type Config struct {
	APIKey     string        // Required: Google API key
	BaseURL    string        // Optional: API base URL
	APIVersion string        // Optional: API version (default: v1beta)
	Model      string        // Optional: model (default: gemini-2.0-flash)
	Timeout    time.Duration // Optional: HTTP timeout (default: 60s)
}

// Classification is the parsed result of a vision call.
type Classification struct {
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Model       string        `json:"model"`
	Usage       UsageStats    `json:"usage"`
	Latency     time.Duration `json:"-"`
}

// UsageStats contains token usage statistics.
type UsageStats struct {
	InputTokens  int `json:"inputTokens"`
	OutputTokens int `json:"outputTokens"`
	TotalTokens  int `json:"totalTokens"`
}

// NewProvider creates a new Gemini provider instance.
func NewProvider(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = DefaultAPIVersion
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &Provider{
		apiKey:     cfg.APIKey,
		baseURL:    cfg.BaseURL,
		apiVersion: cfg.APIVersion,
		model:      cfg.Model,
		client:     &http.Client{Timeout: cfg.Timeout},
		healthy:    true,
	}, nil
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "gemini"
}

// IsHealthy returns whether the provider is healthy.
func (p *Provider) IsHealthy() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.healthy && p.apiKey != ""
}

func (p *Provider) setHealthy(healthy bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.healthy = healthy
}

// Classify sends the photo to Gemini and parses the identification.
func (p *Provider) Classify(ctx context.Context, image []byte, mimeType string) (*Classification, error) {
	start := time.Now()

	if len(image) == 0 {
		return nil, fmt.Errorf("empty image")
	}
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	apiReq := geminiRequest{
		Contents: []geminiContent{
			{
				Role: "user",
				Parts: []geminiPart{
					{Text: classifyPrompt},
					{InlineData: &geminiInlineData{
						MimeType: mimeType,
						Data:     base64.StdEncoding.EncodeToString(image),
					}},
				},
			},
		},
		GenerationConfig: &geminiGenerationConfig{
			MaxOutputTokens: DefaultMaxTokens,
			Temperature:     0.2,
		},
	}

	reqBody, err := json.Marshal(apiReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/%s/models/%s:generateContent?key=%s",
		p.baseURL, p.apiVersion, p.model, p.apiKey)

	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		p.setHealthy(false)
		return nil, fmt.Errorf("gemini API error: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode >= 500 {
			p.setHealthy(false)
		}
		return nil, p.parseAPIError(resp.StatusCode, body)
	}

	p.setHealthy(true)

	var apiResp geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	content := ""
	if len(apiResp.Candidates) > 0 && len(apiResp.Candidates[0].Content.Parts) > 0 {
		content = apiResp.Candidates[0].Content.Parts[0].Text
	}
	if content == "" {
		return nil, fmt.Errorf("gemini returned no content")
	}

	name, description := splitClassification(content)

	inputTokens := 0
	outputTokens := 0
	if apiResp.UsageMetadata != nil {
		inputTokens = apiResp.UsageMetadata.PromptTokenCount
		outputTokens = apiResp.UsageMetadata.CandidatesTokenCount
	}

	return &Classification{
		Name:        name,
		Description: description,
		Model:       p.model,
		Usage: UsageStats{
			InputTokens:  inputTokens,
			OutputTokens: outputTokens,
			TotalTokens:  inputTokens + outputTokens,
		},
		Latency: time.Since(start),
	}, nil
}

// splitClassification separates the first line (the landmark name) from
// the rest of the model's reply.
func splitClassification(content string) (name, description string) {
	content = strings.TrimSpace(content)
	if idx := strings.IndexByte(content, '\n'); idx >= 0 {
		return strings.TrimSpace(content[:idx]), strings.TrimSpace(content[idx+1:])
	}
	return content, ""
}

// parseAPIError parses an API error response.
func (p *Provider) parseAPIError(statusCode int, body []byte) error {
	var errResp struct {
		Error struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
			Status  string `json:"status"`
		} `json:"error"`
	}

	if err := json.Unmarshal(body, &errResp); err != nil {
		return fmt.Errorf("gemini API error (status %d): %s", statusCode, string(body))
	}

	return &APIError{
		StatusCode: statusCode,
		Code:       errResp.Error.Code,
		Status:     errResp.Error.Status,
		Message:    errResp.Error.Message,
	}
}

// APIError represents a Gemini API error.
type APIError struct {
	StatusCode int
	Code       int
	Status     string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gemini API error (status %d, code %d, %s): %s",
		e.StatusCode, e.Code, e.Status, e.Message)
}

// IsRateLimitError returns true if this is a rate limit error.
func (e *APIError) IsRateLimitError() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.Status == "RESOURCE_EXHAUSTED"
}

// IsAuthError returns true if this is an authentication error.
func (e *APIError) IsAuthError() bool {
	return e.StatusCode == http.StatusUnauthorized ||
		e.StatusCode == http.StatusForbidden ||
		e.Status == "UNAUTHENTICATED" ||
		e.Status == "PERMISSION_DENIED"
}

// SetHTTPClient sets a custom HTTP client for testing.
func (p *Provider) SetHTTPClient(client HTTPClient) {
	p.client = client
}

// Internal API types

type geminiRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiGenerationConfig struct {
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
	Temperature     float64 `json:"temperature,omitempty"`
}

type geminiResponse struct {
	Candidates    []geminiCandidate    `json:"candidates,omitempty"`
	UsageMetadata *geminiUsageMetadata `json:"usageMetadata,omitempty"`
}

type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason,omitempty"`
	Index        int           `json:"index"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
	Role  string       `json:"role,omitempty"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inline_data,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type geminiUsageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}
