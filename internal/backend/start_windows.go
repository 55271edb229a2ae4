// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

//go:build windows
// +build windows

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

// Windows-specific creation flags.
const (
	// CREATE_NO_WINDOW prevents a console window from being created
	CREATE_NO_WINDOW = 0x08000000
	// DETACHED_PROCESS creates a new process that is detached from the console
	DETACHED_PROCESS = 0x00000008
)

// findRuntimeExecutable locates the local inference runtime binary.
func (r *LocalRuntime) findRuntimeExecutable() (string, error) {
	candidates := []string{r.config.RuntimeBinary, "koboldcpp.exe", "koboldcpp", "llama-server.exe"}
	for _, name := range candidates {
		if name == "" {
			continue
		}
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
		if localAppData := os.Getenv("LOCALAPPDATA"); localAppData != "" {
			p := filepath.Join(localAppData, "Programs", name)
			if _, err := os.Stat(p); err == nil {
				return p, nil
			}
		}
	}
	return "", fmt.Errorf("no inference runtime found in PATH (tried koboldcpp, llama-server)")
}

// startRuntimeProcess launches the runtime detached from the console and
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
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: CREATE_NO_WINDOW | DETACHED_PROCESS,
	}
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
