// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/sentinel-tui/internal/model"
	"github.com/jeranaias/sentinel-tui/internal/session"
	"github.com/jeranaias/sentinel-tui/internal/turn"
)

// =============================================================================
// UPDATE
// =============================================================================

// Update handles all incoming messages.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = msg.Width - 4
		m.viewport.Width = msg.Width

		chrome := 3 // header, input, status bar
		if m.viewport.Height = msg.Height - chrome; m.viewport.Height < 1 {
			m.viewport.Height = 1
		}
		m.ready = true
		m.refreshTranscript()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		if !m.generating() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case session.TickMsg:
		return m, tea.Batch(
			session.AutoSaveCmd(m.mgr),
			session.TickCmd(m.autoSaveInterval()),
		)

	case session.AutoSaveMsg:
		if msg.Err != nil {
			m.lastErr = msg.Err
		}
		return m, nil

	case GenerationCompleteMsg:
		return m.handleGenerationComplete(msg)

	case GenerationErrorMsg:
		m.mgr.FailTurn()
		m.lastErr = msg.Err
		return m, nil

	case RevealTickMsg:
		if m.reveal.Advance() {
			m.refreshTranscript()
			m.viewport.GotoBottom()
		}
		if !m.reveal.Done() {
			return m, RevealTickCmd()
		}
		return m, nil

	case FilesChangedMsg:
		if err := m.mgr.ReloadCharacters(); err != nil {
			m.lastErr = err
		} else if err := m.mgr.ReloadMemories(); err != nil {
			m.lastErr = err
		} else {
			m.notice = "character and memory files reloaded"
		}
		m.refreshTranscript()
		return m, tea.Batch(m.watcher.WaitCmd(), NoticeCmd())

	case WatcherErrorMsg:
		m.lastErr = msg.Err
		return m, m.watcher.WaitCmd()

	case NoticeExpiredMsg:
		m.notice = ""
		return m, nil
	}

	return m, nil
}

// handleGenerationComplete applies a finished completion to the log and
// starts the typewriter reveal over the committed text.
func (m *Model) handleGenerationComplete(msg GenerationCompleteMsg) (tea.Model, tea.Cmd) {
	// Capture what the touched entry held before the commit so only the
	// new portion animates.
	base := ""
	if msg.Req.Kind == turn.Continue {
		if entry, _ := m.mgr.Log().LastEntryBy(msg.Req.Participant); entry != nil {
			base = entry.Text
		}
	}

	if err := m.mgr.CompleteTurn(msg.Req, msg.Text); err != nil {
		m.lastErr = err
		return m, nil
	}

	entry, idx := m.mgr.Log().LastEntryBy(msg.Req.Participant)
	if entry == nil {
		return m, nil
	}

	m.revealIndex = idx
	m.revealBase = base
	m.reveal.Set(strings.TrimPrefix(entry.Text, base))
	m.refreshTranscript()
	m.viewport.GotoBottom()
	return m, RevealTickCmd()
}

// =============================================================================
// KEY HANDLING
// =============================================================================

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		m.quitting = true
		if m.mode >= modeChat {
			if err := m.mgr.Save(); err != nil {
				m.lastErr = err
			}
		}
		if m.watcher != nil {
			m.watcher.Close()
		}
		return m, tea.Quit
	}

	switch m.mode {
	case modePickCharacter, modePickLog:
		return m.handlePickerKey(msg)
	case modeCommand:
		return m.handleCommandKey(msg)
	case modeEdit:
		return m.handleEditKey(msg)
	case modeInfo:
		m.mode = modeChat
		return m, nil
	default:
		return m.handleChatKey(msg)
	}
}

func (m *Model) handlePickerKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		m.picker.move(-1)
	case "down", "j":
		m.picker.move(1)
	case "esc":
		if m.mode == modePickLog {
			p, err := newCharacterPicker(m.cfg)
			if err != nil {
				m.lastErr = err
				return m, nil
			}
			m.picker = p
			m.mode = modePickCharacter
		}
	case "ctrl+d":
		p, err := m.picker.duplicateSelected(m.cfg)
		if err != nil {
			m.lastErr = err
			return m, nil
		}
		m.picker = p
		m.notice = "chat duplicated"
		return m, NoticeCmd()
	case "enter":
		item := m.picker.selected()
		switch m.mode {
		case modePickCharacter:
			p, err := newLogPicker(m.cfg, item.Path)
			if err != nil {
				m.lastErr = err
				return m, nil
			}
			m.picker = p
			m.mode = modePickLog
		case modePickLog:
			var err error
			if item.NewChat {
				err = m.mgr.OpenNew(m.picker.characterPath, newLogName())
			} else {
				err = m.mgr.OpenExisting(m.picker.characterPath, item.Path)
			}
			if err != nil {
				m.lastErr = err
				return m, nil
			}
			m.lastErr = nil
			m.mode = modeChat
			m.refreshTranscript()
			m.viewport.GotoBottom()
		}
	}
	return m, nil
}

func (m *Model) handleCommandKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.exitInputMode()
		return m, nil
	case "enter":
		out, err := m.proc.Execute(m.input.Value())
		m.exitInputMode()
		if err != nil {
			m.lastErr = err
			return m, nil
		}
		m.lastErr = nil
		m.notice = out
		return m, NoticeCmd()
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) handleEditKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.exitInputMode()
		return m, nil
	case "enter":
		text := m.input.Value()
		var err error
		switch m.editTarget {
		case editEntry:
			err = m.mgr.EditEntry(m.editIndex, text)
		case editContext:
			err = m.mgr.SetCurrentContext(text)
		case editUserDesc:
			err = m.mgr.SetUserDescription(text)
		}
		m.exitInputMode()
		if err != nil {
			m.lastErr = err
			return m, nil
		}
		m.refreshTranscript()
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) handleChatKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Viewport navigation works regardless of input content.
	switch {
	case key.Matches(msg, m.keys.ScrollUp):
		m.viewport.LineUp(1)
		return m, nil
	case key.Matches(msg, m.keys.ScrollDown):
		m.viewport.LineDown(1)
		return m, nil
	case key.Matches(msg, m.keys.PageUp):
		m.viewport.ViewUp()
		return m, nil
	case key.Matches(msg, m.keys.PageDown):
		m.viewport.ViewDown()
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Cancel):
		// Skip the typewriter reveal and clear transient chrome.
		if !m.reveal.Done() {
			m.reveal.Flush()
			m.refreshTranscript()
			m.viewport.GotoBottom()
		}
		m.lastErr = nil
		m.showHelp = false
		return m, nil

	case key.Matches(msg, m.keys.Submit):
		return m.submitReply()

	case key.Matches(msg, m.keys.Regenerate):
		return m.startRetargetedTurn(turn.Regenerate)

	case key.Matches(msg, m.keys.Continue):
		return m.startRetargetedTurn(turn.Continue)

	case key.Matches(msg, m.keys.Additional):
		return m.startRetargetedTurn(turn.AdditionalGeneration)

	case key.Matches(msg, m.keys.DeleteEntry):
		if n := len(m.mgr.Log().Entries); n > 0 {
			if err := m.mgr.DeleteEntry(n - 1); err != nil {
				m.lastErr = err
			}
			m.refreshTranscript()
		}
		return m, nil

	case key.Matches(msg, m.keys.EditUserDesc):
		m.enterEditMode(editUserDesc, 0, m.mgr.Log().UserDescription)
		return m, nil
	}

	// Plain-letter shortcuts only fire on an empty input line.
	if m.input.Value() == "" {
		if handled, next, cmd := m.handleBareKey(msg); handled {
			return next, cmd
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// handleBareKey handles the plain-letter bindings active on an empty input.
func (m *Model) handleBareKey(msg tea.KeyMsg) (bool, tea.Model, tea.Cmd) {
	s := msg.String()

	switch {
	case key.Matches(msg, m.keys.EditEntry):
		if n := len(m.mgr.Log().Entries); n > 0 {
			m.enterEditMode(editEntry, n-1, m.mgr.Log().Entries[n-1].Text)
		}
		return true, m, nil

	case key.Matches(msg, m.keys.EditContext):
		m.enterEditMode(editContext, 0, m.mgr.Log().CurrentContext)
		return true, m, nil

	case key.Matches(msg, m.keys.MultiChat):
		state := m.mgr.ToggleMultiChat()
		if state.MultiChat {
			m.notice = "multi-chat on: press a digit to pick the speaker"
		} else {
			m.notice = "multi-chat off"
		}
		return true, m, NoticeCmd()

	case key.Matches(msg, m.keys.CommandLine):
		m.mode = modeCommand
		m.input.Reset()
		m.input.Placeholder = "get|set [participant] variable [value]"
		return true, m, nil

	case key.Matches(msg, m.keys.CharacterInfo):
		m.mode = modeInfo
		return true, m, nil

	case key.Matches(msg, m.keys.PrevParams):
		m.notice = "parameter set: " + m.mgr.CycleParameterSet(-1)
		return true, m, NoticeCmd()

	case key.Matches(msg, m.keys.NextParams):
		m.notice = "parameter set: " + m.mgr.CycleParameterSet(1)
		return true, m, NoticeCmd()

	case key.Matches(msg, m.keys.Help):
		m.showHelp = !m.showHelp
		return true, m, nil

	case len(s) == 1 && s[0] >= '0' && s[0] <= '9':
		if !m.mgr.State().MultiChat {
			return false, m, nil
		}
		participant, err := turn.ParticipantForDigit(int(s[0]-'0'), m.mgr.ParticipantCount())
		if err != nil {
			m.lastErr = err
			return true, m, nil
		}
		next, cmd := m.startTurn(participant, turn.Reply)
		return true, next, cmd
	}

	return false, m, nil
}

// =============================================================================
// TURN HELPERS
// =============================================================================

func (m *Model) submitReply() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	if text == "" || m.generating() {
		return m, nil
	}

	req, err := m.mgr.UserReply(text)
	if err != nil {
		m.lastErr = err
		return m, nil
	}
	m.lastErr = nil
	m.input.Reset()
	m.refreshTranscript()
	m.viewport.GotoBottom()

	if req == nil {
		return m, nil
	}
	return m, tea.Batch(GenerateCmd(req), m.spinner.Tick)
}

// startRetargetedTurn aims Regenerate, Continue, and AdditionalGeneration
// at whichever participant owns the most recent entry.
func (m *Model) startRetargetedTurn(kind turn.Kind) (tea.Model, tea.Cmd) {
	target, ok := m.mgr.TargetOfLastEntry()
	if !ok || target == model.SpeakerUser {
		target = model.SpeakerPrimary
	}
	return m.startTurn(target, kind)
}

func (m *Model) startTurn(participant int, kind turn.Kind) (tea.Model, tea.Cmd) {
	if m.generating() {
		return m, nil
	}
	req, err := m.mgr.StartTurn(participant, kind)
	if err != nil {
		m.lastErr = err
		return m, nil
	}
	m.lastErr = nil
	return m, tea.Batch(GenerateCmd(req), m.spinner.Tick)
}

// =============================================================================
// MODE HELPERS
// =============================================================================

func (m *Model) enterEditMode(target editTarget, index int, current string) {
	m.mode = modeEdit
	m.editTarget = target
	m.editIndex = index
	m.input.SetValue(current)
	m.input.CursorEnd()
}

func (m *Model) exitInputMode() {
	m.mode = modeChat
	m.input.Reset()
	m.input.Placeholder = "Say something..."
}
