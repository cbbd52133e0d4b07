// Package ollama provides HTTP clients for Ollama's embedding and chat APIs.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/policywise/policywise/engine/domain"
)

// EmbedClient converts text to vectors via Ollama's embeddings endpoint.
// It satisfies the rag.Embedder interface.
type EmbedClient struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewEmbedClient creates an Ollama embedding client. Requests are bounded by
// the given timeout in addition to any context deadline.
func NewEmbedClient(baseURL, model string, timeout time.Duration) *EmbedClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &EmbedClient{
		baseURL: baseURL,
		model:   model,
		client:  &http.Client{Timeout: timeout},
	}
}

type embedReq struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embedResp struct {
	Embedding []float64 `json:"embedding"`
}

// Embed returns the embedding vector for text. Empty text is rejected
// before hitting the upstream model.
func (c *EmbedClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("ollama embed: %w", domain.ErrEmptyQuery)
	}

	body, _ := json.Marshal(embedReq{Model: c.model, Prompt: text})
	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama embed: %w: %w", domain.ErrEmbedUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("ollama embed: status %d: %w", resp.StatusCode, domain.ErrEmbedUnavailable)
	}

	var result embedResp
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("ollama embed decode: %w", err)
	}

	out := make([]float32, len(result.Embedding))
	for i, v := range result.Embedding {
		out[i] = float32(v)
	}
	return out, nil
}

// Dimensions probes the model with a short string and reports the vector
// size. Used for the startup dimension check against the index.
func (c *EmbedClient) Dimensions(ctx context.Context) (int, error) {
	vec, err := c.Embed(ctx, "dimension probe")
	if err != nil {
		return 0, err
	}
	return len(vec), nil
}
