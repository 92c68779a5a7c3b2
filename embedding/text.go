// Package embedding provides description embedding via an external text
// embedding service.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// TextEmbedder converts free text into a fixed-length vector.
type TextEmbedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// HTTPTextEmbedder calls an HTTP embedding endpoint. The endpoint takes a
// JSON body {"text": "..."} and answers {"embedding": [...]}.
type HTTPTextEmbedder struct {
	Endpoint   string
	Dimension  int
	httpClient *http.Client
}

var _ TextEmbedder = (*HTTPTextEmbedder)(nil)

// NewHTTPTextEmbedder builds a client for the given endpoint. dimension is
// the expected vector length; responses of any other length are rejected.
func NewHTTPTextEmbedder(endpoint string, dimension int, timeout time.Duration) *HTTPTextEmbedder {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPTextEmbedder{
		Endpoint:   endpoint,
		Dimension:  dimension,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type embedRequest struct {
	Text string `json:"text"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// EmbedText requests an embedding for the given text
func (e *HTTPTextEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if e.Endpoint == "" {
		return nil, fmt.Errorf("text embedding endpoint is not configured")
	}

	body, err := json.Marshal(embedRequest{Text: text})
	if err != nil {
		return nil, fmt.Errorf("failed to encode embedding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		return nil, fmt.Errorf("embedding service returned %d: %s", resp.StatusCode, snippet)
	}

	var decoded embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode embedding response: %w", err)
	}
	if e.Dimension > 0 && len(decoded.Embedding) != e.Dimension {
		return nil, fmt.Errorf("embedding service returned %d dimensions, expected %d", len(decoded.Embedding), e.Dimension)
	}
	return decoded.Embedding, nil
}
