// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package assembler builds the bounded prompt for one generation turn. It
// pulls history from the chat log, runs memory trigger matching, folds in
// pre-fetched similarity passages, and substitutes everything into the
// model's prompt template while holding the result under the character
// budget.
//
// Assembly is pure: all network-touching inputs (similarity passages, the
// budget itself) are computed by the caller and passed in, so a given
// request always produces the same prompt.
package assembler

import (
	"strings"

	"github.com/jeranaias/sentinel-tui/internal/memory"
	"github.com/jeranaias/sentinel-tui/internal/model"
	"github.com/jeranaias/sentinel-tui/internal/template"
)

// Request carries everything one prompt assembly needs.
type Request struct {
	// Template is the active model's prompt template.
	Template string

	// Speaker is the character being asked to produce text.
	Speaker *model.Character
	// EmotionalBoosts is the overlay-resolved boosts value for the
	// speaker. Empty substitutes to empty.
	EmotionalBoosts string

	Log *model.ChatLog

	// UserName is the user's display name.
	UserName string
	// SpeakerName maps a speaker id to its display name for transcript
	// lines.
	SpeakerName func(speakerID int) string

	// MemoryFiles are the loaded memory tables, in load order.
	MemoryFiles []*memory.File
	// MemoryMaxPercent caps memory injection at this fraction of Budget.
	MemoryMaxPercent float64

	// SimilarSentences are pre-fetched similarity passages in rank order,
	// or nil when the capability is off. Nil leaves the placeholder for
	// the template engine's untouched rule; an empty non-nil slice
	// substitutes emptiness.
	SimilarSentences []string

	// Budget is the admitted character budget for the whole prompt,
	// already derived from the model's context window.
	Budget int

	// Continue peels the most recent entry out of the history and appends
	// its text after the rendered template, so generation resumes
	// mid-entry.
	Continue bool
}

// Result is the assembled prompt plus admission accounting.
type Result struct {
	Prompt string
	// HistoryAdmitted is how many whole entries made it into the history
	// slice.
	HistoryAdmitted int
	// MemoryAdmitted is how many memory matches were injected.
	MemoryAdmitted int
	// SimilarAdmitted is how many similarity passages fit the budget.
	SimilarAdmitted int
}

// Assemble builds the prompt for a request.
func Assemble(req Request) Result {
	vals := template.Values{
		template.CharacterDescription: req.Speaker.Description,
		template.CurrentContext:       req.Log.CurrentContext,
		template.UserDescription:      req.Log.UserDescription,
		template.EmotionalBoosts:      req.EmotionalBoosts,
		template.CharacterName:        req.Speaker.Name,
		template.UserName:             req.UserName,
	}

	// Skeleton length is measured with the content placeholders empty so
	// the budget math sees exactly the fixed text that will surround the
	// admitted content.
	skeleton := template.Render(req.Template, withEmptyContent(vals))
	remaining := req.Budget - len([]rune(skeleton))
	if remaining < 0 {
		remaining = 0
	}

	var res Result

	// Memory: its own sub-budget carved out of the full budget, and its
	// admitted text still consumes the shared remainder so the overall
	// bound holds.
	memText, memCount := admitMemory(req, remaining)
	res.MemoryAdmitted = memCount
	vals[template.MemoryMatches] = memText
	remaining -= runeLen(memText)

	// Similarity passages compete with history for the same remainder.
	if req.SimilarSentences != nil {
		simText, simCount := admitSimilar(req.SimilarSentences, remaining)
		res.SimilarAdmitted = simCount
		vals[template.SimilarSentences] = simText
		remaining -= runeLen(simText)
	}

	history, continueLine, admitted := admitHistory(req, remaining)
	res.HistoryAdmitted = admitted
	vals[template.ChatHistory] = history

	prompt := template.Render(req.Template, vals)
	// The continued line trails everything so the model resumes exactly
	// where the entry stopped.
	prompt += continueLine

	res.Prompt = prompt
	return res
}

// withEmptyContent copies vals with the three content placeholders blanked.
func withEmptyContent(vals template.Values) template.Values {
	empty := template.Values{
		template.ChatHistory:      "",
		template.MemoryMatches:    "",
		template.SimilarSentences: "",
	}
	for k, v := range vals {
		empty[k] = v
	}
	return empty
}

func runeLen(s string) int {
	return len([]rune(s))
}

// admitMemory matches memory triggers against the most recent entry and
// admits values in order under the memory sub-budget. Admission stops
// outright at the first candidate that would overflow; later, smaller
// matches are not considered.
func admitMemory(req Request, remaining int) (string, int) {
	last := req.Log.LastEntry()
	if last == nil || len(req.MemoryFiles) == 0 {
		return "", 0
	}

	subBudget := int(req.MemoryMaxPercent * float64(req.Budget))
	if subBudget > remaining {
		subBudget = remaining
	}

	matches := memory.Matches(req.MemoryFiles, last.Text)

	var b strings.Builder
	used := 0
	count := 0
	for _, m := range matches {
		cost := runeLen(m.Value)
		if count > 0 {
			cost++ // joining newline
		}
		if used+cost > subBudget {
			break
		}
		if count > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(m.Value)
		used += cost
		count++
	}
	return b.String(), count
}

// admitSimilar admits ranked passages in order while they fit.
func admitSimilar(passages []string, remaining int) (string, int) {
	var b strings.Builder
	used := 0
	count := 0
	for _, p := range passages {
		cost := runeLen(p)
		if count > 0 {
			cost++
		}
		if used+cost > remaining {
			break
		}
		if count > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(p)
		used += cost
		count++
	}
	return b.String(), count
}

// admitHistory walks entries from most recent backward, admitting whole
// transcript lines until the next one would overflow the remainder. The
// admitted slice is therefore always suffix-aligned: dropping happens only
// at the old end, never inside an entry.
//
// In continue mode the most recent entry is peeled off first: its text
// (minus the speaker-name prefix) is returned separately and its length is
// charged against the same remainder.
func admitHistory(req Request, remaining int) (history, continueLine string, admitted int) {
	entries := req.Log.Entries

	if req.Continue && len(entries) > 0 {
		last := entries[len(entries)-1]
		line := last.Render(req.SpeakerName(last.SpeakerID))
		// Multi-line entries may not start with the name prefix anymore.
		if strings.HasPrefix(line, req.Speaker.Name+":") {
			continueLine = line[len(req.Speaker.Name)+1:]
		} else {
			continueLine = line
		}
		entries = entries[:len(entries)-1]
		remaining -= runeLen(continueLine)
	}

	var lines []string
	used := 0
	for i := len(entries) - 1; i >= 0; i-- {
		line := entries[i].Render(req.SpeakerName(entries[i].SpeakerID))
		cost := runeLen(line)
		if admitted > 0 {
			cost++ // joining newline
		}
		if used+cost > remaining {
			break
		}
		lines = append(lines, line)
		used += cost
		admitted++
	}

	// Reverse back into chronological order.
	for i, j := 0, len(lines)-1; i < j; i, j = i+1, j-1 {
		lines[i], lines[j] = lines[j], lines[i]
	}
	return strings.Join(lines, "\n"), continueLine, admitted
}
