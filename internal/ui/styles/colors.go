// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package styles provides the visual styling system for the chat TUI.
package styles

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// =============================================================================
// BASE PALETTE
// =============================================================================

var (
	Purple  = lipgloss.Color("#a78bfa")
	Cyan    = lipgloss.Color("#67e8f9")
	Emerald = lipgloss.Color("#6ee7b7")
	Amber   = lipgloss.Color("#fbbf24")
	Rose    = lipgloss.Color("#fb7185")

	TextPrimary   = lipgloss.Color("#e5e7eb")
	TextSecondary = lipgloss.Color("#9ca3af")
	TextMuted     = lipgloss.Color("#6b7280")

	SurfaceDim = lipgloss.Color("#1f2937")
	Overlay    = lipgloss.Color("#374151")
)

// =============================================================================
// CHARACTER COLORS
// =============================================================================

// RGBColor converts a character's color triple into a lipgloss color.
// Terminals without truecolor support get the nearest ANSI color via
// lipgloss's own degradation.
func RGBColor(rgb [3]uint8) lipgloss.Color {
	return lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", rgb[0], rgb[1], rgb[2]))
}

// speakerFallbacks color participants that define no explicit colors.
// The user always takes the first entry.
var speakerFallbacks = []lipgloss.Color{Cyan, Purple, Emerald, Amber, Rose}

// SpeakerFallback returns a stable default color for a speaker id.
func SpeakerFallback(speakerID int) lipgloss.Color {
	return speakerFallbacks[speakerID%len(speakerFallbacks)]
}
