// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package template performs placeholder substitution over prompt templates,
// character greetings, and any other text carrying the <|...|> placeholder
// vocabulary.
package template

import "strings"

// Recognized placeholders.
const (
	CharacterDescription = "<|character_description|>"
	UserDescription      = "<|user_description|>"
	CurrentContext       = "<|current_context|>"
	ChatHistory          = "<|chat_history|>"
	SimilarSentences     = "<|similar_sentences|>"
	MemoryMatches        = "<|memory_matches|>"
	EmotionalBoosts      = "<|emotional_boosts|>"
	CharacterName        = "<|character_name|>"
	UserName             = "<|user_name|>"
)

// substitutionOrder fixes the order Render applies values in. Names come
// last so that a name placeholder inside injected text (a greeting, the
// current context, a memory value) still resolves.
var substitutionOrder = []string{
	CharacterDescription,
	UserDescription,
	CurrentContext,
	SimilarSentences,
	MemoryMatches,
	EmotionalBoosts,
	ChatHistory,
	CharacterName,
	UserName,
}

// Values maps placeholder tokens to their replacement text. A key that is
// present substitutes even when its value is empty; a key that is absent
// leaves the placeholder untouched in the output.
type Values map[string]string

// Render substitutes every supplied placeholder into tmpl, in canonical
// order.
func Render(tmpl string, vals Values) string {
	for _, token := range substitutionOrder {
		v, ok := vals[token]
		if !ok {
			continue
		}
		tmpl = strings.ReplaceAll(tmpl, token, v)
	}
	return tmpl
}

// Contains reports whether s still carries the given placeholder.
func Contains(s, placeholder string) bool {
	return strings.Contains(s, placeholder)
}
