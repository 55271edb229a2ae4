// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/jeranaias/sentinel-tui/internal/model"
)

// =============================================================================
// VIEW
// =============================================================================

// View renders the whole screen for the current mode.
func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "loading..."
	}

	switch m.mode {
	case modePickCharacter, modePickLog:
		return m.viewPicker()
	case modeInfo:
		return m.viewInfo()
	}

	var b strings.Builder
	b.WriteString(m.viewHeader())
	b.WriteByte('\n')

	if m.showHelp {
		b.WriteString(m.viewHelp())
	} else {
		b.WriteString(m.viewport.View())
	}
	b.WriteByte('\n')

	b.WriteString(m.viewInput())
	b.WriteByte('\n')
	b.WriteString(m.viewStatusBar())
	return b.String()
}

func (m *Model) viewHeader() string {
	title := "sentinel"
	if ch, err := m.mgr.Participant(model.SpeakerPrimary); err == nil {
		title = ch.Name
		if name := m.mgr.LogName(); name != "" {
			title += " - " + name
		}
	}
	return m.theme.Header.Width(m.width).Render(title)
}

func (m *Model) viewInput() string {
	prompt := m.theme.InputPrompt
	switch m.mode {
	case modeCommand:
		prompt = m.theme.CommandPrompt
	case modeEdit:
		prompt = m.theme.EditPrompt
	}
	m.input.PromptStyle = prompt
	return m.input.View()
}

func (m *Model) viewStatusBar() string {
	if m.lastErr != nil {
		return m.theme.ErrorBox.Render(truncateStatus(m.lastErr.Error(), m.width-2))
	}
	if m.notice != "" {
		return m.theme.Notice.Render(truncateStatus(m.notice, m.width))
	}

	var parts []string
	if m.generating() {
		parts = append(parts, m.theme.Spinner.Render(m.spinner.View())+
			m.theme.ThinkingText.Render(" thinking"))
	}

	state := m.mgr.State()
	if state.MultiChat {
		parts = append(parts, m.theme.StatusKey.Render("multi")+
			m.theme.StatusValue.Render(fmt.Sprintf(" %d speakers", m.mgr.ParticipantCount()+1)))
	}
	parts = append(parts, m.theme.StatusKey.Render("params")+
		m.theme.StatusValue.Render(" "+m.mgr.ActiveParameterSet().Name))
	parts = append(parts, m.theme.StatusValue.Render("? help"))

	return m.theme.StatusBar.Width(m.width).Render(truncateStatus(strings.Join(parts, "  "), m.width-2))
}

func (m *Model) viewPicker() string {
	title := "Choose a character"
	if m.mode == modePickLog {
		title = "Choose a chat"
	}

	var b strings.Builder
	b.WriteString(m.theme.HeaderTitle.Render(title))
	b.WriteString("\n\n")

	if len(m.picker.items) == 0 {
		b.WriteString(m.theme.PickerItem.Render("(nothing found)"))
	}
	for i, item := range m.picker.items {
		line := item.Label
		if item.Detail != "" {
			line += "  " + item.Detail
		}
		line = truncateStatus(line, m.width-8)
		if i == m.picker.index {
			b.WriteString(m.theme.PickerSel.Render("> " + line))
		} else {
			b.WriteString(m.theme.PickerItem.Render("  " + line))
		}
		b.WriteByte('\n')
	}

	if m.mode == modePickLog {
		b.WriteByte('\n')
		b.WriteString(m.theme.HelpDesc.Render("enter open • ctrl+d duplicate • esc back"))
	}

	if m.lastErr != nil {
		b.WriteByte('\n')
		b.WriteString(m.theme.ErrorBox.Render(m.lastErr.Error()))
	}

	return m.theme.PickerBox.Render(b.String())
}

func (m *Model) viewInfo() string {
	ch, err := m.mgr.Participant(model.SpeakerPrimary)
	if err != nil {
		return "no character open"
	}
	return renderCharacterInfo(ch, m.width-4)
}

func (m *Model) viewHelp() string {
	var b strings.Builder
	for _, group := range m.keys.FullHelp() {
		for _, binding := range group {
			h := binding.Help()
			b.WriteString(m.theme.HelpKey.Render(padRight(h.Key, 10)))
			b.WriteString(m.theme.HelpDesc.Render(h.Desc))
			b.WriteByte('\n')
		}
		b.WriteByte('\n')
	}
	return m.theme.HelpBox.Height(m.viewport.Height - 2).Render(b.String())
}

// =============================================================================
// TRANSCRIPT
// =============================================================================

// refreshTranscript rebuilds the viewport content from the open log.
func (m *Model) refreshTranscript() {
	if m.mode < modeChat {
		return
	}

	log := m.mgr.Log()
	if log == nil {
		m.viewport.SetContent("")
		return
	}

	var b strings.Builder
	for i, entry := range log.Entries {
		if i == m.revealIndex && !m.reveal.Done() {
			entry.Text = m.revealBase + m.reveal.Shown()
		}

		var ch *model.Character
		if entry.SpeakerID != model.SpeakerUser {
			ch, _ = m.mgr.Participant(entry.SpeakerID)
		}

		b.WriteString(renderEntry(m.theme, entry, m.mgr.DisplayName(entry.SpeakerID), ch, m.viewport.Width))
		b.WriteByte('\n')
	}
	m.viewport.SetContent(b.String())
}

// =============================================================================
// SMALL HELPERS
// =============================================================================

// truncateStatus clips a one-line string to the given display width.
func truncateStatus(s string, width int) string {
	if width <= 0 {
		return s
	}
	return runewidth.Truncate(s, width, "…")
}

func padRight(s string, width int) string {
	if w := lipgloss.Width(s); w < width {
		return s + strings.Repeat(" ", width-w)
	}
	return s + " "
}
