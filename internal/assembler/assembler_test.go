// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package assembler

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/sentinel-tui/internal/memory"
	"github.com/jeranaias/sentinel-tui/internal/model"
)

var testCharacter = &model.Character{
	Name:        "C",
	Description: "a test character",
	Context:     "a test context",
}

func names(id int) string {
	if id == model.SpeakerUser {
		return "U"
	}
	return "C"
}

// historyOnlyRequest keeps the skeleton empty so budget numbers map
// directly onto history characters.
func historyOnlyRequest(log *model.ChatLog, budget int) Request {
	return Request{
		Template:    "<|chat_history|>",
		Speaker:     testCharacter,
		Log:         log,
		UserName:    "U",
		SpeakerName: names,
		Budget:      budget,
	}
}

func TestAssembleAdmitsWholeHistoryWithinBudget(t *testing.T) {
	log := model.NewChatLog("ctx")
	log.Append(model.SpeakerUser, "hi")
	log.Append(model.SpeakerPrimary, "hello")

	res := Assemble(historyOnlyRequest(log, 14))
	assert.Equal(t, "U: hi\nC: hello", res.Prompt)
	assert.Equal(t, 2, res.HistoryAdmitted)
}

func TestAssembleDropsOldestFirst(t *testing.T) {
	log := model.NewChatLog("ctx")
	log.Append(model.SpeakerUser, "hi")
	log.Append(model.SpeakerPrimary, "hello")

	res := Assemble(historyOnlyRequest(log, 13))
	assert.Equal(t, "C: hello", res.Prompt)
	assert.Equal(t, 1, res.HistoryAdmitted)
}

func TestAssembleHistoryIsSuffixAlignedUnderAnyBudget(t *testing.T) {
	log := model.NewChatLog("ctx")
	log.Append(model.SpeakerUser, "first message")
	log.Append(model.SpeakerPrimary, "second answer")
	log.Append(model.SpeakerUser, "third message with ünïcode")
	log.Append(model.SpeakerPrimary, "fourth answer")

	full := model.RenderTranscript(log.Entries, names)

	for budget := 0; budget <= len([]rune(full))+5; budget++ {
		res := Assemble(historyOnlyRequest(log, budget))

		assert.LessOrEqual(t, len([]rune(res.Prompt)), budget,
			"budget %d produced oversized history", budget)
		if res.Prompt != "" {
			assert.True(t, strings.HasSuffix(full, res.Prompt),
				"budget %d produced a non-suffix slice: %q", budget, res.Prompt)
		}
	}
}

func TestAssembleSkeletonReducesHistoryBudget(t *testing.T) {
	log := model.NewChatLog("ctx")
	log.Append(model.SpeakerUser, "hi")
	log.Append(model.SpeakerPrimary, "hello")

	req := historyOnlyRequest(log, 14)
	req.Template = "XX<|chat_history|>"

	// Two skeleton chars leave 12 for history: only the last entry fits.
	res := Assemble(req)
	assert.Equal(t, "XXC: hello", res.Prompt)
	assert.Equal(t, 1, res.HistoryAdmitted)
}

func TestAssembleSubstitutesDescriptionsAndNames(t *testing.T) {
	log := model.NewChatLog("a dark forest")
	log.UserDescription = "a lost traveler"
	log.Append(model.SpeakerUser, "hello?")

	req := Request{
		Template: "<|character_name|> is <|character_description|>. Scene: <|current_context|>. " +
			"User: <|user_description|>.\n<|chat_history|>\n<|character_name|>:",
		Speaker: &model.Character{
			Name:        "Morgana",
			Description: "a witch",
			Context:     "unused base",
		},
		Log:         log,
		UserName:    "Aldric",
		SpeakerName: func(id int) string { return map[int]string{0: "Aldric", 1: "Morgana"}[id] },
		Budget:      10000,
	}

	res := Assemble(req)
	assert.Equal(t,
		"Morgana is a witch. Scene: a dark forest. User: a lost traveler.\nAldric: hello?\nMorgana:",
		res.Prompt)
}

// =============================================================================
// MEMORY ADMISSION
// =============================================================================

func memoryRequest(log *model.ChatLog, budget int, pct float64, files []*memory.File) Request {
	req := historyOnlyRequest(log, budget)
	req.Template = "<|memory_matches|>|<|chat_history|>"
	req.MemoryFiles = files
	req.MemoryMaxPercent = pct
	return req
}

func TestAssembleInjectsTriggeredMemories(t *testing.T) {
	log := model.NewChatLog("ctx")
	log.Append(model.SpeakerUser, "I love SentientCore")

	files := []*memory.File{{Memories: []memory.Memory{
		{Key: "SentientCore", Value: "An AI research lab."},
		{Key: "Nope", Value: "never included"},
	}}}

	res := Assemble(memoryRequest(log, 1000, 0.5, files))
	assert.True(t, strings.HasPrefix(res.Prompt, "An AI research lab.|"))
	assert.NotContains(t, res.Prompt, "never included")
	assert.Equal(t, 1, res.MemoryAdmitted)
}

func TestAssembleMemoryScansOnlyMostRecentEntry(t *testing.T) {
	log := model.NewChatLog("ctx")
	log.Append(model.SpeakerUser, "I love SentientCore")
	log.Append(model.SpeakerPrimary, "nothing relevant here")

	files := []*memory.File{{Memories: []memory.Memory{
		{Key: "SentientCore", Value: "An AI research lab."},
	}}}

	res := Assemble(memoryRequest(log, 1000, 0.5, files))
	assert.Equal(t, 0, res.MemoryAdmitted)
}

func TestAssembleMemoryStopsAtFirstOverflow(t *testing.T) {
	log := model.NewChatLog("ctx")
	log.Append(model.SpeakerUser, "alpha beta gamma")

	files := []*memory.File{{Memories: []memory.Memory{
		{Key: "alpha", Value: strings.Repeat("a", 10)},
		{Key: "beta", Value: strings.Repeat("b", 50)}, // overflows
		{Key: "gamma", Value: "g"},                    // would fit, still dropped
	}}}

	// Budget 100, pct 0.2 -> sub-budget 20.
	res := Assemble(memoryRequest(log, 100, 0.2, files))
	assert.Equal(t, 1, res.MemoryAdmitted)
	assert.NotContains(t, res.Prompt, "g\n")
	assert.NotContains(t, res.Prompt, strings.Repeat("b", 50))
}

func TestAssembleMemoryAdmissionIsMonotonicInPercentage(t *testing.T) {
	log := model.NewChatLog("ctx")
	log.Append(model.SpeakerUser, "alpha beta gamma delta")

	files := []*memory.File{{Memories: []memory.Memory{
		{Key: "alpha", Value: strings.Repeat("a", 30)},
		{Key: "beta", Value: strings.Repeat("b", 30)},
		{Key: "gamma", Value: strings.Repeat("c", 30)},
		{Key: "delta", Value: strings.Repeat("d", 30)},
	}}}

	prev := 0
	for pct := 0.0; pct <= 1.0; pct += 0.05 {
		res := Assemble(memoryRequest(log, 200, pct, files))
		assert.GreaterOrEqual(t, res.MemoryAdmitted, prev,
			"admitted count decreased at pct %.2f", pct)
		prev = res.MemoryAdmitted
	}
}

// =============================================================================
// SIMILARITY ADMISSION
// =============================================================================

func TestAssembleSimilarityCountsAgainstBudget(t *testing.T) {
	log := model.NewChatLog("ctx")
	log.Append(model.SpeakerUser, "hi")
	log.Append(model.SpeakerPrimary, "hello")

	req := historyOnlyRequest(log, 30)
	req.Template = "<|similar_sentences|>|<|chat_history|>"
	req.SimilarSentences = []string{strings.Repeat("s", 20)}

	// 1 skeleton char + 20 similarity chars leave 9: only "C: hello" fits.
	res := Assemble(req)
	assert.Equal(t, 1, res.SimilarAdmitted)
	assert.Equal(t, 1, res.HistoryAdmitted)
	assert.Equal(t, strings.Repeat("s", 20)+"|C: hello", res.Prompt)
}

func TestAssembleNilSimilarityLeavesPlaceholder(t *testing.T) {
	log := model.NewChatLog("ctx")
	log.Append(model.SpeakerUser, "hi")

	req := historyOnlyRequest(log, 1000)
	req.Template = "<|similar_sentences|>|<|chat_history|>"
	req.SimilarSentences = nil

	res := Assemble(req)
	assert.Contains(t, res.Prompt, "<|similar_sentences|>")
}

func TestAssembleEmptySimilaritySubstitutes(t *testing.T) {
	log := model.NewChatLog("ctx")
	log.Append(model.SpeakerUser, "hi")

	req := historyOnlyRequest(log, 1000)
	req.Template = "<|similar_sentences|>|<|chat_history|>"
	req.SimilarSentences = []string{}

	res := Assemble(req)
	assert.Equal(t, "|U: hi", res.Prompt)
}

// =============================================================================
// CONTINUE
// =============================================================================

func TestAssembleContinuePeelsLastEntry(t *testing.T) {
	log := model.NewChatLog("ctx")
	log.Append(model.SpeakerUser, "hi")
	log.Append(model.SpeakerPrimary, "Once upon a time")

	req := historyOnlyRequest(log, 1000)
	req.Continue = true

	res := Assemble(req)
	// History holds everything but the last entry; the continued text
	// trails the prompt without its name prefix.
	assert.Equal(t, "U: hi Once upon a time", res.Prompt)
	assert.Equal(t, 1, res.HistoryAdmitted)
}

func TestAssembleContinueChargesContinuedLine(t *testing.T) {
	log := model.NewChatLog("ctx")
	log.Append(model.SpeakerUser, "hi")
	log.Append(model.SpeakerPrimary, "hello")

	// " hello" costs 6, leaving 5 of 11: "U: hi" (5) fits exactly.
	req := historyOnlyRequest(log, 11)
	req.Continue = true
	res := Assemble(req)
	assert.Equal(t, "U: hi hello", res.Prompt)

	// One less and history goes empty, but the continued line stays.
	req = historyOnlyRequest(log, 10)
	req.Continue = true
	res = Assemble(req)
	assert.Equal(t, " hello", res.Prompt)
	assert.Equal(t, 0, res.HistoryAdmitted)
}

func TestAssembleEmptyLog(t *testing.T) {
	log := model.NewChatLog("ctx")

	res := Assemble(historyOnlyRequest(log, 100))
	assert.Equal(t, "", res.Prompt)
	assert.Equal(t, 0, res.HistoryAdmitted)

	req := historyOnlyRequest(log, 100)
	req.Continue = true
	res = Assemble(req)
	assert.Equal(t, "", res.Prompt)
}

func TestAssembleZeroBudget(t *testing.T) {
	log := model.NewChatLog("ctx")
	log.Append(model.SpeakerUser, "hi")

	res := Assemble(historyOnlyRequest(log, 0))
	require.Equal(t, "", res.Prompt)
}
