// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

// Prediction defaults used when a model config leaves them unset.
const (
	DefaultTextToTokenRatio = 3.0
	DefaultMaxNewTokens     = 150
	DefaultSimilarSentences = 3
	DefaultMemoryMaxPercent = 0.1
	DefaultLocalEndpoint    = "http://127.0.0.1:5001"
)

// ModelConfig describes one inference target and how prompts for it are
// shaped. Either ModelPath (embedded local runtime) or Endpoint (remote HTTP
// service) is set; Endpoint wins when both are present.
type ModelConfig struct {
	Name string `toml:"name"`

	// Local runtime target.
	ModelPath string `toml:"model_path,omitempty"`
	GPULayers int    `toml:"gpu_layers,omitempty"`

	// Remote target: base URL without a trailing slash.
	Endpoint string `toml:"endpoint,omitempty"`

	ContextSize int `toml:"context_size"`

	// Chars-per-token estimate used to convert the token budget into a
	// character budget. 0 means DefaultTextToTokenRatio.
	TextToTokenRatioPrediction float64 `toml:"text_to_token_ratio_prediction,omitempty"`

	// Template with prompt placeholders (<|character_description|>,
	// <|chat_history|>, ...).
	PromptInstructTemplate string `toml:"prompt_instruct_template"`

	// How many similarity passages to request per turn; 0 disables the
	// request even when an embedding model is configured.
	SimilarSentenceCount int `toml:"similar_sentence_count,omitempty"`

	RopeScale float64 `toml:"rope_scale,omitempty"`
	RopeFreq  float64 `toml:"rope_freq,omitempty"`
}

// Ratio returns the chars-per-token prediction, applying the default.
func (m *ModelConfig) Ratio() float64 {
	if m.TextToTokenRatioPrediction > 0 {
		return m.TextToTokenRatioPrediction
	}
	return DefaultTextToTokenRatio
}

// Remote reports whether this config targets a remote HTTP endpoint.
func (m *ModelConfig) Remote() bool {
	return m.Endpoint != ""
}

// ParameterSet is one named sampler configuration, cycled at runtime with
// the bracket keys.
type ParameterSet struct {
	Name              string   `toml:"name"`
	Temperature       float64  `toml:"temperature"`
	TopK              int      `toml:"top_k"`
	TopP              float64  `toml:"top_p"`
	RepetitionPenalty float64  `toml:"repetition_penalty"`
	SamplerOrder      []int    `toml:"sampler_order,omitempty"`
	StopSequences     []string `toml:"stop_sequences,omitempty"`
}
