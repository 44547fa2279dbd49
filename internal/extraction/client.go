package extraction

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// SidecarRecognizer is an HTTP client for a NER model served out of process
// (for example the spaCy pipeline behind a small web wrapper).
type SidecarRecognizer struct {
	baseURL    string
	httpClient *http.Client
	modelID    string
}

// NERRequest is the body sent to the sidecar's /ner endpoint.
type NERRequest struct {
	Text string `json:"text"`
}

// NERResponse represents the sidecar's /ner response.
type NERResponse struct {
	Entities []NEREntity `json:"entities"`
}

// NEREntity is one entity span reported by the sidecar.
type NEREntity struct {
	Text  string `json:"text"`
	Label string `json:"label"`
	Start int    `json:"start,omitempty"`
	End   int    `json:"end,omitempty"`
}

// SidecarHealthResponse represents the health check response.
type SidecarHealthResponse struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
	ModelName   string `json:"model_name"`
}

// NewSidecarRecognizer creates a sidecar client and verifies the model is loaded.
func NewSidecarRecognizer(ctx context.Context, baseURL string, timeout time.Duration) (*SidecarRecognizer, error) {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	r := &SidecarRecognizer{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
	health, err := r.HealthCheck(ctx)
	if err != nil {
		return nil, &ModelLoadError{Code: ErrSidecarUnavailable, Path: baseURL, Message: "NER sidecar is unreachable", Cause: err}
	}
	if !health.ModelLoaded {
		return nil, &ModelLoadError{Code: ErrSidecarUnavailable, Path: baseURL, Message: "NER sidecar has no model loaded"}
	}
	r.modelID = health.ModelName
	if r.modelID == "" {
		r.modelID = "sidecar"
	}
	return r, nil
}

// HealthCheck checks if the sidecar is healthy.
func (r *SidecarRecognizer) HealthCheck(ctx context.Context) (*SidecarHealthResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/health", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("health check failed: status %d, body: %s", resp.StatusCode, string(body))
	}

	var health SidecarHealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &health, nil
}

// ModelID returns the model name reported by the sidecar.
func (r *SidecarRecognizer) ModelID() string {
	return r.modelID
}

// Recognize sends sentence to the sidecar and returns its entities in order.
func (r *SidecarRecognizer) Recognize(ctx context.Context, sentence string) ([]Mention, error) {
	if strings.TrimSpace(sentence) == "" {
		return []Mention{}, nil
	}

	payload, err := json.Marshal(NERRequest{Text: sentence})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/ner", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ner failed: status %d, body: %s", resp.StatusCode, string(body))
	}

	var result NERResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	mentions := make([]Mention, 0, len(result.Entities))
	for _, e := range result.Entities {
		mentions = append(mentions, Mention{Text: e.Text, Label: e.Label, Start: e.Start, End: e.End})
	}
	return mentions, nil
}

// Close is a no-op; the sidecar owns the model.
func (r *SidecarRecognizer) Close() error {
	return nil
}
