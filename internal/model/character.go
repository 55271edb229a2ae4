// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

// Character is an AI persona definition loaded from a TOML file. All fields
// are immutable for the lifetime of a session, except EmotionalBoosts which
// is shadowed by a per-session overlay (see session.Session) when changed at
// runtime.
type Character struct {
	Name            string `toml:"name"`
	Description     string `toml:"description"`
	Context         string `toml:"context"`
	Greeting        string `toml:"greeting,omitempty"`
	EmotionalBoosts string `toml:"emotional_boosts,omitempty"`

	// Default parameter set for this character; empty uses the
	// configuration-wide selection.
	ParameterSet string `toml:"parameter_set,omitempty"`

	// Transcript colors as {r, g, b}. Zero values fall back to theme
	// defaults.
	NameRGB   [3]uint8 `toml:"name_rgb,omitempty"`
	QuotesRGB [3]uint8 `toml:"quotes_rgb,omitempty"`
	TextRGB   [3]uint8 `toml:"text_rgb,omitempty"`
}
