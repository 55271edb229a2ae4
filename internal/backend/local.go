// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jeranaias/sentinel-tui/internal/model"
)

// LocalConfig configures the managed local runtime.
type LocalConfig struct {
	// BaseURL the runtime listens on. Default http://127.0.0.1:5001.
	BaseURL string
	// ModelPath is the model file handed to the runtime on autostart.
	ModelPath string
	// GPULayers is the layer count offloaded to the GPU on autostart.
	GPULayers int
	// AutoStart launches the runtime process when the health check fails.
	AutoStart bool
	// RuntimeBinary overrides the executable name searched for on
	// autostart.
	RuntimeBinary string
	// Timeout bounds a single generate call. Generation is slow on CPU;
	// default 5 minutes.
	Timeout time.Duration
	// HealthTimeout bounds the health check. Default 2 seconds.
	HealthTimeout time.Duration
}

// LocalRuntime drives a local inference server over HTTP, optionally
// starting the process itself.
type LocalRuntime struct {
	config LocalConfig
	client *http.Client
}

// NewLocalRuntime creates a local backend with defaults applied.
func NewLocalRuntime(config LocalConfig) *LocalRuntime {
	if config.BaseURL == "" {
		config.BaseURL = model.DefaultLocalEndpoint
	}
	if config.Timeout == 0 {
		config.Timeout = 5 * time.Minute
	}
	if config.HealthTimeout == 0 {
		config.HealthTimeout = 2 * time.Second
	}
	return &LocalRuntime{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
	}
}

// CheckRunning verifies the runtime is answering.
func (r *LocalRuntime) CheckRunning(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.config.HealthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.config.BaseURL+"/api/v1/model", nil)
	if err != nil {
		return &ClientError{Type: ErrTypeConnection, Message: "failed to build health check", Cause: err}
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return &ClientError{
			Type:    ErrTypeNotRunning,
			Message: fmt.Sprintf("inference runtime not reachable at %s", r.config.BaseURL),
			Cause:   err,
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &ClientError{
			Type:    ErrTypeServer,
			Message: fmt.Sprintf("inference runtime health check returned status %d", resp.StatusCode),
		}
	}
	return nil
}

// EnsureRunning checks the runtime and, when AutoStart is set, launches the
// process and waits for it to come up.
func (r *LocalRuntime) EnsureRunning(ctx context.Context) error {
	err := r.CheckRunning(ctx)
	if err == nil {
		return nil
	}
	if !r.config.AutoStart {
		return err
	}
	return r.startRuntimeProcess(ctx)
}

// Generate implements Generator. The runtime is health-checked first and,
// when AutoStart is set, launched on demand.
func (r *LocalRuntime) Generate(ctx context.Context, prompt string, params Params, stop []string) (string, error) {
	if err := r.EnsureRunning(ctx); err != nil {
		return "", err
	}
	return doGenerate(ctx, r.client, r.config.BaseURL, prompt, params, stop)
}

// EstimateBudget implements Generator.
func (r *LocalRuntime) EstimateBudget(contextSize int, ratio float64, reservedTokens int) int {
	return CharBudget(contextSize, ratio, reservedTokens)
}
