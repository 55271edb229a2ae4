// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

// The wire format is the KoboldAI-compatible generate API, spoken by both
// the local runtime and remote inference servers.

const generatePath = "/api/v1/generate"

// maxResponseSize caps response bodies to prevent a misbehaving server from
// exhausting memory.
const maxResponseSize = 10 * 1024 * 1024

type generateRequest struct {
	Prompt           string   `json:"prompt"`
	MaxLength        int      `json:"max_length"`
	MaxContextLength int      `json:"max_context_length"`
	Temperature      float64  `json:"temperature"`
	TopK             int      `json:"top_k"`
	TopP             float64  `json:"top_p"`
	RepPen           float64  `json:"rep_pen"`
	SamplerOrder     []int    `json:"sampler_order,omitempty"`
	StopSequence     []string `json:"stop_sequence,omitempty"`
}

type generateResponse struct {
	Results []struct {
		Text string `json:"text"`
	} `json:"results"`
}

// doGenerate performs one generate call against baseURL and returns the
// produced text.
func doGenerate(ctx context.Context, client *http.Client, baseURL, prompt string, params Params, stop []string) (string, error) {
	reqBody := generateRequest{
		Prompt:           prompt,
		MaxLength:        params.MaxNewTokens,
		MaxContextLength: params.ContextSize,
		Temperature:      params.Temperature,
		TopK:             params.TopK,
		TopP:             params.TopP,
		RepPen:           params.RepetitionPenalty,
		SamplerOrder:     params.SamplerOrder,
		StopSequence:     stop,
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to encode generate request", Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+generatePath, bytes.NewReader(payload))
	if err != nil {
		return "", &ClientError{Type: ErrTypeConnection, Message: "failed to build generate request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")

	log.Printf("API Request: %s %s", req.Method, req.URL.Path)
	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return "", classifyTransportError(err)
	}
	defer resp.Body.Close()
	log.Printf("API Response: %d %s (%v)", resp.StatusCode, resp.Status, time.Since(start))

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return "", &ClientError{Type: ErrTypeConnection, Message: "failed to read generate response", Cause: err}
	}

	if resp.StatusCode != http.StatusOK {
		return "", &ClientError{
			Type:    ErrTypeServer,
			Message: fmt.Sprintf("backend returned status %d", resp.StatusCode),
			Cause:   errors.New(strings.TrimSpace(string(body))),
		}
	}

	var out generateResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to parse generate response", Cause: err}
	}
	if len(out.Results) == 0 {
		return "", &ClientError{Type: ErrTypeInvalidResponse, Message: "backend returned no results", Cause: ErrEmptyCompletion}
	}
	return out.Results[0].Text, nil
}

func classifyTransportError(err error) *ClientError {
	if errors.Is(err, context.DeadlineExceeded) {
		return &ClientError{Type: ErrTypeTimeout, Message: "generate request timed out", Cause: err}
	}
	if errors.Is(err, context.Canceled) {
		return &ClientError{Type: ErrTypeConnection, Message: "generate request canceled", Cause: err}
	}
	return &ClientError{Type: ErrTypeConnection, Message: "failed to reach inference backend", Cause: err}
}
