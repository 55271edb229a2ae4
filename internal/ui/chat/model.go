// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/sentinel-tui/internal/commands"
	"github.com/jeranaias/sentinel-tui/internal/config"
	"github.com/jeranaias/sentinel-tui/internal/session"
	"github.com/jeranaias/sentinel-tui/internal/turn"
	"github.com/jeranaias/sentinel-tui/internal/ui/styles"
)

// =============================================================================
// UI MODE
// =============================================================================

// uiMode selects what the input line and key handling currently do.
type uiMode int

const (
	modePickCharacter uiMode = iota // choosing a character file
	modePickLog                     // choosing a saved chat
	modeChat                        // normal conversation
	modeCommand                     // get/set command line
	modeEdit                        // editing an entry, the context, or the user description
	modeInfo                        // character info overlay
)

// editTarget selects what an edit submission writes to.
type editTarget int

const (
	editEntry editTarget = iota
	editContext
	editUserDesc
)

// =============================================================================
// CHAT MODEL
// =============================================================================

// Model is the Bubble Tea model for the chat view.
type Model struct {
	cfg  *config.Config
	mgr  *session.Manager
	proc *commands.Processor

	theme *styles.Theme
	keys  KeyMap

	mode   uiMode
	picker *picker

	// UI components
	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model

	// Typewriter reveal of the most recent completion
	reveal      RevealBuffer
	revealIndex int    // entry index being revealed
	revealBase  string // entry text that was already present before the turn

	// Edit mode state
	editTarget editTarget
	editIndex  int

	// Live reload
	watcher *Watcher

	// Transient status
	notice   string
	lastErr  error
	showHelp bool

	width  int
	height int
	ready  bool

	quitting bool
}

// Option configures the model at construction time.
type Option func(*Model)

// WithWatcher attaches a filesystem watcher for live character and memory
// reload.
func WithWatcher(w *Watcher) Option {
	return func(m *Model) { m.watcher = w }
}

// WithSession opens the model directly in chat mode on an already-open
// session, skipping the pickers.
func WithSession() Option {
	return func(m *Model) { m.mode = modeChat }
}

// New creates the chat model. Without WithSession it starts on the
// character picker.
func New(cfg *config.Config, mgr *session.Manager, opts ...Option) (*Model, error) {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Say something..."
	ti.CharLimit = 4096
	ti.Focus()

	vp := viewport.New(80, 20)

	sp := spinner.New()
	sp.Spinner = spinner.Spinner{
		Frames: []string{"|", "/", "-", "\\"},
		FPS:    time.Second / 12,
	}

	m := &Model{
		cfg:      cfg,
		mgr:      mgr,
		proc:     commands.NewProcessor(mgr),
		theme:    styles.NewTheme(),
		keys:     DefaultKeyMap(),
		mode:     modePickCharacter,
		viewport: vp,
		input:    ti,
		spinner:  sp,
	}
	for _, opt := range opts {
		opt(m)
	}

	if m.mode == modePickCharacter {
		p, err := newCharacterPicker(cfg)
		if err != nil {
			return nil, err
		}
		m.picker = p
	}
	return m, nil
}

// Init starts the periodic auto-save tick and, when configured, the file
// watcher pump.
func (m *Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		session.TickCmd(m.autoSaveInterval()),
	}
	if m.watcher != nil {
		cmds = append(cmds, m.watcher.WaitCmd())
	}
	return tea.Batch(cmds...)
}

func (m *Model) autoSaveInterval() time.Duration {
	secs := m.cfg.UI.AutoSaveSecs
	if secs <= 0 {
		secs = 30
	}
	return time.Duration(secs) * time.Second
}

// generating reports whether a completion is in flight or still revealing.
func (m *Model) generating() bool {
	return m.mgr.State().Phase == turn.Generating || !m.reveal.Done()
}
