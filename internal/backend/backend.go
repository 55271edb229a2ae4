// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package backend talks to text-generation runtimes. Two transports share
// one contract: a managed local runtime process and a remote HTTP endpoint
// used as a drop-in substitute. Callers hold a Generator and never know
// which one they have.
package backend

import (
	"context"
	"strings"

	"github.com/jeranaias/sentinel-tui/internal/model"
)

// Generator is the capability consumed by the context assembler and the
// turn loop.
type Generator interface {
	// Generate produces text for a finished prompt. The call is
	// long-running; it honors ctx for connection deadlines but a started
	// generation runs to completion or failure.
	Generate(ctx context.Context, prompt string, params Params, stop []string) (string, error)

	// EstimateBudget converts a token context window into a character
	// budget: (contextSize - reservedTokens) * ratio.
	EstimateBudget(contextSize int, ratio float64, reservedTokens int) int
}

// CharBudget is the shared budget arithmetic behind EstimateBudget.
func CharBudget(contextSize int, ratio float64, reservedTokens int) int {
	usable := contextSize - reservedTokens
	if usable <= 0 {
		return 0
	}
	return int(float64(usable) * ratio)
}

// Params carries the sampler settings for one generation.
type Params struct {
	Temperature       float64
	TopK              int
	TopP              float64
	RepetitionPenalty float64
	SamplerOrder      []int
	MaxNewTokens      int
	ContextSize       int
	RopeScale         float64
	RopeFreq          float64
}

// ParamsFrom combines a parameter set with a model config into request
// parameters.
func ParamsFrom(set model.ParameterSet, mc *model.ModelConfig, maxNewTokens int) Params {
	return Params{
		Temperature:       set.Temperature,
		TopK:              set.TopK,
		TopP:              set.TopP,
		RepetitionPenalty: set.RepetitionPenalty,
		SamplerOrder:      set.SamplerOrder,
		MaxNewTokens:      maxNewTokens,
		ContextSize:       mc.ContextSize,
		RopeScale:         mc.RopeScale,
		RopeFreq:          mc.RopeFreq,
	}
}

// StopSequences renders the per-participant stop strings. The backend stops
// when the model starts speaking as someone else: " Name:".
func StopSequences(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n == "" {
			continue
		}
		out = append(out, " "+n+":")
	}
	return out
}

// TrimAtNames cuts generated text at the earliest occurrence of any
// "Name:" marker. Remote backends do not always enforce stop sequences,
// and local ones can still emit a marker mid-token; this is the
// client-side backstop.
func TrimAtNames(text string, names []string) string {
	cut := -1
	for _, n := range names {
		if n == "" {
			continue
		}
		if idx := strings.Index(text, n+":"); idx >= 0 && (cut < 0 || idx < cut) {
			cut = idx
		}
	}
	if cut < 0 {
		return text
	}
	return strings.TrimRight(text[:cut], " \n")
}
