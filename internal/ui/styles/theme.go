// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/jeranaias/sentinel-tui/internal/model"
)

// Theme holds all the styled components for the application.
// It detects the terminal's color capability and adjusts accordingly.
type Theme struct {
	// Terminal capabilities
	IsDark       bool
	HasTrueColor bool
	ColorProfile termenv.Profile

	// ==========================================================================
	// CHROME
	// ==========================================================================

	Header      lipgloss.Style
	HeaderTitle lipgloss.Style
	StatusBar   lipgloss.Style
	StatusKey   lipgloss.Style
	StatusValue lipgloss.Style

	// ==========================================================================
	// TRANSCRIPT
	// ==========================================================================

	SpeakerName lipgloss.Style
	EntryText   lipgloss.Style
	QuotedText  lipgloss.Style
	Timestamp   lipgloss.Style

	// ==========================================================================
	// INPUT AND PROMPTS
	// ==========================================================================

	InputPrompt   lipgloss.Style
	CommandPrompt lipgloss.Style
	EditPrompt    lipgloss.Style

	// ==========================================================================
	// OVERLAYS AND NOTICES
	// ==========================================================================

	ErrorBox   lipgloss.Style
	Notice     lipgloss.Style
	HelpBox    lipgloss.Style
	HelpKey    lipgloss.Style
	HelpDesc   lipgloss.Style
	PickerBox  lipgloss.Style
	PickerItem lipgloss.Style
	PickerSel  lipgloss.Style

	Spinner      lipgloss.Style
	ThinkingText lipgloss.Style
}

// NewTheme creates a new theme with all styles configured.
func NewTheme() *Theme {
	colorProfile := termenv.ColorProfile()

	t := &Theme{
		IsDark:       termenv.HasDarkBackground(),
		HasTrueColor: colorProfile == termenv.TrueColor,
		ColorProfile: colorProfile,
	}

	t.initStyles()
	return t
}

func (t *Theme) initStyles() {
	t.Header = lipgloss.NewStyle().
		Bold(true).
		Foreground(Cyan).
		Background(SurfaceDim).
		Padding(0, 1)

	t.HeaderTitle = lipgloss.NewStyle().
		Bold(true).
		Foreground(Purple)

	t.StatusBar = lipgloss.NewStyle().
		Background(SurfaceDim).
		Foreground(TextSecondary).
		Padding(0, 1)

	t.StatusKey = lipgloss.NewStyle().
		Foreground(Cyan).
		Bold(true)

	t.StatusValue = lipgloss.NewStyle().
		Foreground(TextSecondary)

	t.SpeakerName = lipgloss.NewStyle().
		Bold(true)

	t.EntryText = lipgloss.NewStyle().
		Foreground(TextPrimary)

	t.QuotedText = lipgloss.NewStyle().
		Foreground(Amber)

	t.Timestamp = lipgloss.NewStyle().
		Foreground(TextMuted)

	t.InputPrompt = lipgloss.NewStyle().
		Foreground(Cyan).
		Bold(true)

	t.CommandPrompt = lipgloss.NewStyle().
		Foreground(Amber).
		Bold(true)

	t.EditPrompt = lipgloss.NewStyle().
		Foreground(Purple).
		Bold(true)

	t.ErrorBox = lipgloss.NewStyle().
		Foreground(Rose).
		BorderStyle(lipgloss.NormalBorder()).
		BorderLeft(true).
		BorderForeground(Rose).
		PaddingLeft(1)

	t.Notice = lipgloss.NewStyle().
		Foreground(Emerald)

	t.HelpBox = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Overlay).
		Padding(0, 2)

	t.HelpKey = lipgloss.NewStyle().
		Foreground(Cyan).
		Bold(true)

	t.HelpDesc = lipgloss.NewStyle().
		Foreground(TextSecondary)

	t.PickerBox = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Purple).
		Padding(0, 2)

	t.PickerItem = lipgloss.NewStyle().
		Foreground(TextSecondary)

	t.PickerSel = lipgloss.NewStyle().
		Foreground(Cyan).
		Bold(true)

	t.Spinner = lipgloss.NewStyle().
		Foreground(Purple)

	t.ThinkingText = lipgloss.NewStyle().
		Foreground(TextMuted).
		Italic(true)
}

// NameStyle returns the style for a participant's name, honoring the
// character's configured color when it is non-zero.
func (t *Theme) NameStyle(ch *model.Character, speakerID int) lipgloss.Style {
	if ch != nil && ch.NameRGB != [3]uint8{} {
		return t.SpeakerName.Foreground(RGBColor(ch.NameRGB))
	}
	return t.SpeakerName.Foreground(SpeakerFallback(speakerID))
}

// TextStyle returns the style for a participant's spoken text.
func (t *Theme) TextStyle(ch *model.Character) lipgloss.Style {
	if ch != nil && ch.TextRGB != [3]uint8{} {
		return t.EntryText.Foreground(RGBColor(ch.TextRGB))
	}
	return t.EntryText
}

// QuoteStyle returns the style for quoted spans inside a participant's text.
func (t *Theme) QuoteStyle(ch *model.Character) lipgloss.Style {
	if ch != nil && ch.QuotesRGB != [3]uint8{} {
		return t.QuotedText.Foreground(RGBColor(ch.QuotesRGB))
	}
	return t.QuotedText
}
