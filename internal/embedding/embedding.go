// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package embedding provides the optional semantic-similarity capability:
// an HTTP embeddings client, cosine ranking over chat history passages, and
// a sqlite-backed vector cache. When no embedding model is configured the
// session simply runs without this package and the similarity placeholder
// stays empty.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"sort"
	"time"
)

// ErrNotConfigured is returned when similarity is requested without an
// embedding model.
var ErrNotConfigured = errors.New("no embedding model configured")

// Embedder produces a vector for a text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// =============================================================================
// HTTP CLIENT
// =============================================================================

// Client calls an OpenAI-compatible embeddings endpoint, as served by the
// local runtime and most remote inference servers.
type Client struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewClient creates an embeddings client. baseURL has no trailing slash.
func NewClient(baseURL, model string) *Client {
	return &Client{
		baseURL: baseURL,
		model:   model,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

type embeddingsRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embeddingsResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed implements Embedder.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	payload, err := json.Marshal(embeddingsRequest{Model: c.model, Input: text})
	if err != nil {
		return nil, fmt.Errorf("failed to encode embeddings request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/embeddings", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build embeddings request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embeddings request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10*1024*1024))
	if err != nil {
		return nil, fmt.Errorf("failed to read embeddings response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embeddings endpoint returned status %d", resp.StatusCode)
	}

	var out embeddingsResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to parse embeddings response: %w", err)
	}
	if len(out.Data) == 0 || len(out.Data[0].Embedding) == 0 {
		return nil, errors.New("embeddings endpoint returned no vector")
	}
	return out.Data[0].Embedding, nil
}

// =============================================================================
// SIMILARITY
// =============================================================================

// Scored is one ranked passage.
type Scored struct {
	Index int
	Score float64
	Text  string
}

// CosineSimilarity computes the cosine of the angle between two vectors.
// Mismatched lengths and zero vectors score 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Engine ranks chat history passages against a query. A cache, when
// present, short-circuits repeated Embed calls for unchanged passages.
type Engine struct {
	embedder Embedder
	cache    *Cache
	model    string
}

// NewEngine wires an embedder to an optional cache. model tags cache rows
// so switching embedding models never serves stale vectors.
func NewEngine(embedder Embedder, cache *Cache, model string) *Engine {
	return &Engine{embedder: embedder, cache: cache, model: model}
}

func (e *Engine) vector(ctx context.Context, text string) ([]float32, error) {
	if e.cache != nil {
		if vec, ok, err := e.cache.Get(e.model, text); err == nil && ok {
			return vec, nil
		}
	}
	vec, err := e.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if e.cache != nil {
		// Cache failures are not fatal; the vector was computed.
		_ = e.cache.Put(e.model, text, vec)
	}
	return vec, nil
}

// MostSimilar returns the k corpus passages most similar to query, sorted
// by descending score. Callers exclude whatever they do not want ranked
// (by policy, the most recent entry) before passing the corpus.
func (e *Engine) MostSimilar(ctx context.Context, query string, corpus []string, k int) ([]Scored, error) {
	if e == nil || e.embedder == nil {
		return nil, ErrNotConfigured
	}
	if k <= 0 || len(corpus) == 0 {
		return nil, nil
	}

	qv, err := e.vector(ctx, query)
	if err != nil {
		return nil, err
	}

	scored := make([]Scored, 0, len(corpus))
	for i, text := range corpus {
		if text == "" {
			continue
		}
		cv, err := e.vector(ctx, text)
		if err != nil {
			return nil, err
		}
		scored = append(scored, Scored{Index: i, Score: CosineSimilarity(qv, cv), Text: text})
	}

	sort.Slice(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}

// ChunkText splits a long passage into rune-safe chunks of at most maxChars
// characters, preferring to break at line and sentence boundaries.
func ChunkText(s string, maxChars int) []string {
	if maxChars <= 0 || s == "" {
		return nil
	}
	runes := []rune(s)
	if len(runes) <= maxChars {
		return []string{s}
	}

	var chunks []string
	for len(runes) > maxChars {
		cut := maxChars
		// Scan backward for a friendlier break point.
		for i := maxChars; i > maxChars/2; i-- {
			r := runes[i-1]
			if r == '\n' || r == '.' || r == '!' || r == '?' {
				cut = i
				break
			}
		}
		chunks = append(chunks, string(runes[:cut]))
		runes = runes[cut:]
	}
	if len(runes) > 0 {
		chunks = append(chunks, string(runes))
	}
	return chunks
}
