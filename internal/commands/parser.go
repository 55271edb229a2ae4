// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package commands implements the get/set command language used to inspect
// and adjust per-session variables from the command prompt.
package commands

import (
	"strings"
	"unicode"
)

// =============================================================================
// TOKENIZER
// =============================================================================

// splitTokens splits a command line into tokens, respecting quotes.
// Supports both single and double quotes for values with spaces.
func splitTokens(input string) []string {
	var tokens []string
	var current strings.Builder
	var inSingleQuote, inDoubleQuote bool

	runes := []rune(input)
	for i := 0; i < len(runes); i++ {
		char := runes[i]

		switch {
		case char == '\'' && !inDoubleQuote:
			inSingleQuote = !inSingleQuote

		case char == '"' && !inSingleQuote:
			inDoubleQuote = !inDoubleQuote

		case char == '\\' && i+1 < len(runes) && (inDoubleQuote || inSingleQuote):
			next := runes[i+1]
			if next == '"' || next == '\'' || next == '\\' {
				current.WriteRune(next)
				i++
			} else {
				current.WriteRune(char)
			}

		case unicode.IsSpace(char) && !inSingleQuote && !inDoubleQuote:
			if current.Len() > 0 {
				tokens = append(tokens, current.String())
				current.Reset()
			}

		default:
			current.WriteRune(char)
		}
	}

	if current.Len() > 0 {
		tokens = append(tokens, current.String())
	}

	return tokens
}
