// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/sentinel-tui/internal/session"
)

// =============================================================================
// MESSAGE TYPES
// =============================================================================

// GenerationCompleteMsg carries the finished completion for an in-flight turn.
type GenerationCompleteMsg struct {
	Req  *session.TurnRequest
	Text string
}

// GenerationErrorMsg reports a failed generation. The chat log is untouched.
type GenerationErrorMsg struct {
	Err error
}

// RevealTickMsg drives the typewriter reveal of a finished completion.
type RevealTickMsg struct {
	Time time.Time
}

// FilesChangedMsg reports that watched character or memory files changed
// on disk and the session should reload them.
type FilesChangedMsg struct {
	Paths []string
}

// WatcherErrorMsg reports a filesystem watcher failure. The watcher keeps
// running; the error is shown once.
type WatcherErrorMsg struct {
	Err error
}

// NoticeExpiredMsg clears a transient status notice.
type NoticeExpiredMsg struct{}

// =============================================================================
// COMMAND CREATORS
// =============================================================================

// generateTimeout bounds a single completion round-trip.
const generateTimeout = 5 * time.Minute

// GenerateCmd runs a turn request off the update loop and delivers the
// result as a message. The session log is only mutated back on the update
// loop when the completion message is handled.
func GenerateCmd(req *session.TurnRequest) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), generateTimeout)
		defer cancel()

		text, err := req.Execute(ctx)
		if err != nil {
			return GenerationErrorMsg{Err: err}
		}
		return GenerationCompleteMsg{Req: req, Text: text}
	}
}

// RevealTickCmd schedules the next typewriter reveal frame.
func RevealTickCmd() tea.Cmd {
	return tea.Tick(time.Second/30, func(t time.Time) tea.Msg {
		return RevealTickMsg{Time: t}
	})
}

// NoticeCmd clears the status notice after a short delay.
func NoticeCmd() tea.Cmd {
	return tea.Tick(4*time.Second, func(time.Time) tea.Msg {
		return NoticeExpiredMsg{}
	})
}
