package agents

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// LLMBackend is the bounded-context reasoning call an analyzer
// delegates to for chain-of-thought generation. Mirrors
// provider.Provider's Name()-plus-bounded-call shape, trimmed to the
// one method the analyzers need.
type LLMBackend interface {
	Name() string
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// chatRequest/chatResponse follow the OpenAI-compatible chat-completion
// wire shape so HTTPChatBackend works against any compatible gateway
// (OpenAI, Azure OpenAI, a local vLLM/Ollama endpoint).
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// HTTPChatBackend is a minimal OpenAI-compatible chat-completion
// client, condensed from the gateway's per-provider connector shape
// (shared transport, bounded timeout, JSON request/response) without
// the streaming/retry machinery a single analyzer call doesn't need.
type HTTPChatBackend struct {
	name    string
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

// NewHTTPChatBackend constructs a backend against any OpenAI-compatible
// endpoint.
func NewHTTPChatBackend(name, baseURL, apiKey, model string, timeout time.Duration) *HTTPChatBackend {
	if timeout == 0 {
		timeout = 20 * time.Second
	}
	return &HTTPChatBackend{
		name:    name,
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        64,
				MaxIdleConnsPerHost: 16,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

func (b *HTTPChatBackend) Name() string { return b.name }

func (b *HTTPChatBackend) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	reqBody := chatRequest{
		Model: b.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if b.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+b.apiKey)
	}

	resp, err := b.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("chat request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("chat backend %s returned %d: %s", b.name, resp.StatusCode, string(data))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("chat backend %s returned no choices", b.name)
	}
	return parsed.Choices[0].Message.Content, nil
}
