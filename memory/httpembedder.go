package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HTTPEmbedder calls an OpenAI-compatible embeddings endpoint. It
// implements EmbeddingProvider so it can sit behind
// ResilientEmbedder's circuit breaker as either the primary or the
// fallback.
type HTTPEmbedder struct {
	name    string
	baseURL string
	apiKey  string
	model   string
	http    *http.Client
}

// NewHTTPEmbedder builds an HTTPEmbedder. name identifies the provider
// in logs and metrics (e.g. "openai", "local-fallback").
func NewHTTPEmbedder(name, baseURL, apiKey, model string, timeout time.Duration) *HTTPEmbedder {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPEmbedder{
		name:    name,
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		http:    &http.Client{Timeout: timeout},
	}
}

func (e *HTTPEmbedder) Name() string { return e.name }

type embeddingRequest struct {
	Input string `json:"input"`
	Model string `json:"model"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

func (e *HTTPEmbedder) Embed(ctx context.Context, content string) ([]float64, error) {
	body, err := json.Marshal(embeddingRequest{Input: content, Model: e.model})
	if err != nil {
		return nil, fmt.Errorf("%s: encode request: %w", e.name, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", e.name, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: request failed: %w", e.name, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%s: status %d", e.name, resp.StatusCode)
	}

	var out embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%s: decode response: %w", e.name, err)
	}
	if len(out.Data) == 0 {
		return nil, fmt.Errorf("%s: empty embedding response", e.name)
	}
	return out.Data[0].Embedding, nil
}
