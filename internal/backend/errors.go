// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import (
	"errors"
	"fmt"
)

// ErrorType classifies backend failures for error handling decisions.
type ErrorType int

const (
	// ErrTypeNotRunning indicates the inference runtime is not reachable at
	// all (process not started, wrong port).
	ErrTypeNotRunning ErrorType = iota
	// ErrTypeConnection indicates a network-level failure mid-exchange.
	ErrTypeConnection
	// ErrTypeTimeout indicates the request exceeded its deadline.
	ErrTypeTimeout
	// ErrTypeServer indicates the backend answered with an error status.
	ErrTypeServer
	// ErrTypeInvalidResponse indicates the backend answered with an
	// unparseable or empty body.
	ErrTypeInvalidResponse
)

// Common sentinel errors.
var (
	ErrBackendUnavailable = errors.New("inference backend unavailable")
	ErrEmptyCompletion    = errors.New("backend returned an empty completion")
)

// ClientError provides structured error information for backend failures.
// A failed generation aborts the turn and leaves the chat log untouched;
// callers surface Message to the user and log Cause.
type ClientError struct {
	Type    ErrorType
	Message string
	Cause   error
}

func (e *ClientError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ClientError) Unwrap() error {
	return e.Cause
}

// Is maps unreachable-backend errors onto ErrBackendUnavailable so callers
// can match with errors.Is without inspecting the type enum.
func (e *ClientError) Is(target error) bool {
	if target == ErrBackendUnavailable {
		return e.Type == ErrTypeNotRunning || e.Type == ErrTypeConnection || e.Type == ErrTypeTimeout
	}
	return false
}
