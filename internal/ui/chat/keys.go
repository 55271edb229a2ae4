// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the conversation view for the TUI.
//
// This file defines keyboard bindings for the chat interface. Plain-letter
// bindings (edit, context, multi-chat, digits) fire only while the input
// field is empty; with text present they type as usual.
package chat

import (
	"github.com/charmbracelet/bubbles/key"
)

// =============================================================================
// KEY MAP DEFINITION
// =============================================================================

// KeyMap defines all keyboard bindings for the chat interface.
type KeyMap struct {
	Submit        key.Binding
	Regenerate    key.Binding
	Continue      key.Binding
	Additional    key.Binding
	DeleteEntry   key.Binding
	EditEntry     key.Binding
	EditContext   key.Binding
	EditUserDesc  key.Binding
	MultiChat     key.Binding
	CommandLine   key.Binding
	PrevParams    key.Binding
	NextParams    key.Binding
	CharacterInfo key.Binding
	ScrollUp      key.Binding
	ScrollDown    key.Binding
	PageUp        key.Binding
	PageDown      key.Binding
	Cancel        key.Binding
	Help          key.Binding
	Quit          key.Binding
}

// DefaultKeyMap returns the default key bindings for the chat interface.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Submit: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("Enter", "send message"),
		),
		Regenerate: key.NewBinding(
			key.WithKeys("ctrl+r"),
			key.WithHelp("C-r", "regenerate last response"),
		),
		Continue: key.NewBinding(
			key.WithKeys("ctrl+t"),
			key.WithHelp("C-t", "continue last response"),
		),
		Additional: key.NewBinding(
			key.WithKeys("ctrl+y"),
			key.WithHelp("C-y", "additional response"),
		),
		DeleteEntry: key.NewBinding(
			key.WithKeys("ctrl+x"),
			key.WithHelp("C-x", "delete last entry"),
		),
		EditEntry: key.NewBinding(
			key.WithKeys("e"),
			key.WithHelp("e", "edit last entry"),
		),
		EditContext: key.NewBinding(
			key.WithKeys("o"),
			key.WithHelp("o", "edit current context"),
		),
		EditUserDesc: key.NewBinding(
			key.WithKeys("ctrl+o"),
			key.WithHelp("C-o", "edit user description"),
		),
		MultiChat: key.NewBinding(
			key.WithKeys("m"),
			key.WithHelp("m", "toggle multi-chat"),
		),
		CommandLine: key.NewBinding(
			key.WithKeys("/"),
			key.WithHelp("/", "command line"),
		),
		PrevParams: key.NewBinding(
			key.WithKeys("["),
			key.WithHelp("[", "previous parameter set"),
		),
		NextParams: key.NewBinding(
			key.WithKeys("]"),
			key.WithHelp("]", "next parameter set"),
		),
		CharacterInfo: key.NewBinding(
			key.WithKeys("i"),
			key.WithHelp("i", "character info"),
		),
		ScrollUp: key.NewBinding(
			key.WithKeys("up"),
			key.WithHelp("up", "scroll up"),
		),
		ScrollDown: key.NewBinding(
			key.WithKeys("down"),
			key.WithHelp("down", "scroll down"),
		),
		PageUp: key.NewBinding(
			key.WithKeys("pgup"),
			key.WithHelp("PgUp", "page up"),
		),
		PageDown: key.NewBinding(
			key.WithKeys("pgdown"),
			key.WithHelp("PgDn", "page down"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("Esc", "cancel / skip reveal"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "toggle help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+q", "ctrl+c"),
			key.WithHelp("C-q", "quit"),
		),
	}
}

// ShortHelp returns the bindings shown in the one-line help footer.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Submit, k.Regenerate, k.Continue, k.Help, k.Quit}
}

// FullHelp returns the bindings shown in the help overlay, grouped.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		// Generation
		{k.Submit, k.Regenerate, k.Continue, k.Additional},
		// Editing
		{k.EditEntry, k.DeleteEntry, k.EditContext, k.EditUserDesc},
		// Modes
		{k.MultiChat, k.CommandLine, k.PrevParams, k.NextParams, k.CharacterInfo},
		// Navigation
		{k.ScrollUp, k.ScrollDown, k.PageUp, k.PageDown, k.Cancel, k.Help, k.Quit},
	}
}
