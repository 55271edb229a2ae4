// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

//go:build !windows
// +build !windows

package backend

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"syscall"
	"time"
)

// findRuntimeExecutable locates the local inference runtime binary.
func (r *LocalRuntime) findRuntimeExecutable() (string, error) {
	candidates := []string{r.config.RuntimeBinary, "koboldcpp", "llama-server"}
	for _, name := range candidates {
		if name == "" {
			continue
		}
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
		if home := os.Getenv("HOME"); home != "" {
			p := filepath.Join(home, ".local", "bin", name)
			if _, err := os.Stat(p); err == nil {
				return p, nil
			}
		}
	}
	return "", fmt.Errorf("no inference runtime found in PATH (tried koboldcpp, llama-server)")
}

// startRuntimeProcess launches the runtime in its own process group and
// polls until it answers or the startup window expires.
func (r *LocalRuntime) startRuntimeProcess(ctx context.Context) error {
	bin, err := r.findRuntimeExecutable()
	if err != nil {
		return &ClientError{Type: ErrTypeNotRunning, Message: "failed to find inference runtime", Cause: err}
	}
	if r.config.ModelPath == "" {
		return &ClientError{Type: ErrTypeNotRunning, Message: "no model_path configured for runtime autostart"}
	}

	args := []string{"--model", r.config.ModelPath}
	if r.config.GPULayers > 0 {
		args = append(args, "--gpulayers", strconv.Itoa(r.config.GPULayers))
	}

	cmd := exec.Command(bin, args...)
	cmd.Env = os.Environ()
	// New process group so the runtime outlives this process.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Stdout = nil
	cmd.Stderr = nil
	cmd.Stdin = nil

	if err := cmd.Start(); err != nil {
		return &ClientError{
			Type:    ErrTypeNotRunning,
			Message: fmt.Sprintf("failed to start inference runtime (%s)", bin),
			Cause:   err,
		}
	}
	if cmd.Process != nil {
		_ = cmd.Process.Release()
	}

	// Model loading can take a while with large files.
	deadline := time.Now().Add(60 * time.Second)
	var lastErr error
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return &ClientError{Type: ErrTypeNotRunning, Message: "runtime startup canceled", Cause: ctx.Err()}
		default:
		}

		if lastErr = r.CheckRunning(ctx); lastErr == nil {
			return nil
		}
		time.Sleep(500 * time.Millisecond)
	}

	return &ClientError{
		Type:    ErrTypeNotRunning,
		Message: fmt.Sprintf("inference runtime started but not responding (%s)", bin),
		Cause:   lastErr,
	}
}
