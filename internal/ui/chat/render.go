// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	chromaStyles "github.com/alecthomas/chroma/v2/styles"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/sentinel-tui/internal/model"
	"github.com/jeranaias/sentinel-tui/internal/ui/styles"
)

// =============================================================================
// TRANSCRIPT RENDERING
// =============================================================================

// renderEntry renders one log entry as "Name: text" with the participant's
// colors, wrapped to the given width.
func renderEntry(theme *styles.Theme, entry model.LogEntry, name string, ch *model.Character, width int) string {
	nameStyle := theme.NameStyle(ch, entry.SpeakerID)
	label := nameStyle.Render(name + ":")

	text := entry.Text
	if strings.Contains(text, "```") {
		text = highlightCodeBlocks(text)
	}
	body := renderSpokenText(theme, text, ch)

	line := label + " " + body
	if width > 0 {
		line = lipgloss.NewStyle().Width(width).Render(line)
	}
	return line
}

// renderSpokenText colors double-quoted spans with the character's quote
// color and everything else with its text color.
func renderSpokenText(theme *styles.Theme, text string, ch *model.Character) string {
	textStyle := theme.TextStyle(ch)
	quoteStyle := theme.QuoteStyle(ch)

	var b strings.Builder
	var span strings.Builder
	inQuote := false

	flush := func() {
		if span.Len() == 0 {
			return
		}
		if inQuote {
			b.WriteString(quoteStyle.Render(span.String()))
		} else {
			b.WriteString(textStyle.Render(span.String()))
		}
		span.Reset()
	}

	for _, r := range text {
		if r == '"' {
			if inQuote {
				span.WriteRune(r)
				flush()
				inQuote = false
				continue
			}
			flush()
			inQuote = true
			span.WriteRune(r)
			continue
		}
		span.WriteRune(r)
	}
	flush()

	return b.String()
}

// =============================================================================
// CODE BLOCK HIGHLIGHTING
// =============================================================================

// highlightCodeBlocks replaces fenced code blocks with syntax-highlighted
// terminal output. Text outside the fences passes through unchanged.
func highlightCodeBlocks(text string) string {
	parts := strings.Split(text, "```")
	if len(parts) < 3 {
		return text
	}

	var b strings.Builder
	for i, part := range parts {
		if i%2 == 0 {
			b.WriteString(part)
			continue
		}

		lang := ""
		code := part
		if nl := strings.IndexByte(part, '\n'); nl >= 0 {
			lang = strings.TrimSpace(part[:nl])
			code = part[nl+1:]
		}
		b.WriteString(highlightCode(code, lang))
	}
	return b.String()
}

// highlightCode applies syntax highlighting using the chroma library.
func highlightCode(code, lang string) string {
	var lexer chroma.Lexer
	if lang != "" {
		lexer = lexers.Get(lang)
	}
	if lexer == nil {
		lexer = lexers.Analyse(code)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	style := chromaStyles.Get("monokai")
	if style == nil {
		style = chromaStyles.Fallback
	}

	formatter := formatters.Get("terminal256")
	if formatter == nil {
		formatter = formatters.Fallback
	}

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return code
	}

	var b strings.Builder
	if err := formatter.Format(&b, style, iterator); err != nil {
		return code
	}
	return b.String()
}

// =============================================================================
// CHARACTER INFO PANEL
// =============================================================================

// renderCharacterInfo renders a character sheet as markdown through glamour.
func renderCharacterInfo(ch *model.Character, width int) string {
	if ch == nil {
		return ""
	}
	if width <= 0 {
		width = 80
	}

	var md strings.Builder
	fmt.Fprintf(&md, "# %s\n\n%s\n", ch.Name, ch.Description)
	if ch.Context != "" {
		fmt.Fprintf(&md, "\n## Setting\n\n%s\n", ch.Context)
	}
	if ch.EmotionalBoosts != "" {
		fmt.Fprintf(&md, "\n## Emotional Boosts\n\n%s\n", ch.EmotionalBoosts)
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return md.String()
	}
	out, err := renderer.Render(md.String())
	if err != nil {
		return md.String()
	}
	return out
}
