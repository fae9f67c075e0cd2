// Package retrieval provides semantic lookup over past conversation:
// an embeddings client, a SQLite vector index fed from the daily logs,
// and a Retriever that never fails.
package retrieval

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/nugget/krish/internal/httpkit"
)

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// OllamaEmbedder generates embeddings using Ollama's embedding API.
type OllamaEmbedder struct {
	baseURL string
	model   string
	client  *http.Client
}

// EmbedderConfig configures an OllamaEmbedder.
type EmbedderConfig struct {
	BaseURL string // Ollama base URL (e.g., "http://localhost:11434")
	Model   string // Embedding model (e.g., "nomic-embed-text")
}

// NewOllamaEmbedder creates an embedding client.
func NewOllamaEmbedder(cfg EmbedderConfig) *OllamaEmbedder {
	if cfg.Model == "" {
		cfg.Model = "nomic-embed-text"
	}
	return &OllamaEmbedder{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		model:   cfg.Model,
		client: httpkit.NewClient(
			httpkit.WithTimeout(30*time.Second),
			httpkit.WithRetry(2, 500*time.Millisecond),
		),
	}
}

type embedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Embed creates an embedding for the given text.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	var resp embedResponse
	err := httpkit.DoJSON(ctx, e.client, http.MethodPost, e.baseURL+"/api/embeddings", nil,
		embedRequest{Model: e.model, Prompt: text}, &resp)
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	if len(resp.Embedding) == 0 {
		return nil, fmt.Errorf("embed: empty embedding from model %s", e.model)
	}
	return resp.Embedding, nil
}

// CosineSimilarity computes cosine similarity between two vectors.
func CosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float32
	for i := range a {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (float32(math.Sqrt(float64(normA))) * float32(math.Sqrt(float64(normB))))
}

// TopK returns indices of the k vectors most similar to query, best
// first. Ties keep input order.
func TopK(query []float32, vectors [][]float32, k int) []int {
	idx := make([]int, len(vectors))
	scores := make([]float32, len(vectors))
	for i, v := range vectors {
		idx[i] = i
		scores[i] = CosineSimilarity(query, v)
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return scores[idx[a]] > scores[idx[b]]
	})
	if k < len(idx) {
		idx = idx[:max(k, 0)]
	}
	return idx
}
