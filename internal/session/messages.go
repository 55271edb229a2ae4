// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// TickMsg drives the periodic session check from the Bubble Tea loop.
type TickMsg struct {
	Time time.Time
}

// AutoSaveMsg reports the outcome of a background auto-save.
type AutoSaveMsg struct {
	Err error
}

// TickCmd schedules the next session tick.
func TickCmd(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return TickMsg{Time: t}
	})
}

// AutoSaveCmd persists the log if it carries unsaved changes. Saves are
// synchronous on every mutation already; this only catches a mutation
// whose save failed (disk full, permissions) and retries it.
func AutoSaveCmd(m *Manager) tea.Cmd {
	return func() tea.Msg {
		if !m.Dirty() {
			return AutoSaveMsg{}
		}
		return AutoSaveMsg{Err: m.Save()}
	}
}
