// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for
// sentinel-tui.
//
// Configuration is TOML, with sensible defaults and validation.
// File locations (in order of precedence):
//   - the path passed on the command line (--config)
//   - <user config dir>/sentinel/config.toml
//   - ./config.toml
//   - built-in defaults
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/sentinel-tui/internal/model"
	"github.com/jeranaias/sentinel-tui/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config is the complete sentinel-tui configuration.
type Config struct {
	// DisplayName is the user's name as it appears in transcripts and
	// prompts.
	DisplayName string `toml:"display_name"`

	// StopOnDisplayName cuts generated text at the first occurrence of any
	// participant name prefix, catching runaway generations that speak for
	// someone else.
	StopOnDisplayName bool `toml:"stop_on_display_name"`

	// MaximumNewTokens is the output budget reserved out of every model's
	// context window.
	MaximumNewTokens int `toml:"maximum_new_tokens"`

	// TextToTokenRatioPrediction is the global chars-per-token estimate,
	// used when a model config does not carry its own.
	TextToTokenRatioPrediction float64 `toml:"text_to_token_ratio_prediction"`

	// MemoryMaxContextPercentage caps memory injection at this fraction of
	// the full context budget.
	MemoryMaxContextPercentage float64 `toml:"memory_max_context_percentage"`

	// DefaultModel names the entry of Models used when neither the chat log
	// nor a participant overrides it.
	DefaultModel string `toml:"default_model"`

	// SelectedParameterSet names the initially active entry of
	// ParameterSets.
	SelectedParameterSet string `toml:"selected_parameter_set"`

	// CharactersDir is where character files and their log folders live.
	CharactersDir string `toml:"characters_dir"`

	// EmbeddingModel enables the similarity capability when set. Empty
	// leaves the similarity placeholder blank.
	EmbeddingModel string `toml:"embedding_model,omitempty"`

	// EmbeddingCachePath is the sqlite database caching computed vectors.
	// Empty places it next to the config file.
	EmbeddingCachePath string `toml:"embedding_cache_path,omitempty"`

	Models        []model.ModelConfig  `toml:"models"`
	ParameterSets []model.ParameterSet `toml:"parameter_sets"`

	UI UIConfig `toml:"ui"`
}

// UIConfig holds terminal presentation settings.
type UIConfig struct {
	// Theme selects the glamour style for rendered markdown: "dark",
	// "light", or "auto".
	Theme string `toml:"theme"`
	// AutoSaveSecs is the idle auto-save interval; 0 disables it.
	AutoSaveSecs int `toml:"auto_save_secs"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DisplayName:                "You",
		StopOnDisplayName:          true,
		MaximumNewTokens:           model.DefaultMaxNewTokens,
		TextToTokenRatioPrediction: model.DefaultTextToTokenRatio,
		MemoryMaxContextPercentage: model.DefaultMemoryMaxPercent,
		SelectedParameterSet:       "default",
		CharactersDir:              "characters",
		ParameterSets: []model.ParameterSet{
			{
				Name:              "default",
				Temperature:       0.8,
				TopK:              40,
				TopP:              0.9,
				RepetitionPenalty: 1.1,
			},
			{
				Name:              "precise",
				Temperature:       0.2,
				TopK:              20,
				TopP:              0.75,
				RepetitionPenalty: 1.05,
			},
		},
		Models: []model.ModelConfig{
			{
				Name:                   "local",
				Endpoint:               model.DefaultLocalEndpoint,
				ContextSize:            4096,
				PromptInstructTemplate: DefaultPromptTemplate,
			},
		},
		DefaultModel: "local",
		UI: UIConfig{
			Theme:        "auto",
			AutoSaveSecs: 30,
		},
	}
}

// DefaultPromptTemplate is used by generated default configs. Real deployments
// override it per model.
const DefaultPromptTemplate = `<|character_description|>
<|user_description|>
<|current_context|>
<|memory_matches|>
<|similar_sentences|>
<|emotional_boosts|>
<|chat_history|>
<|character_name|>:`

// =============================================================================
// PATHS
// =============================================================================

// ConfigDir returns the sentinel configuration directory.
func ConfigDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate user config dir: %w", err)
	}
	return filepath.Join(base, "sentinel"), nil
}

// ConfigPath returns the default config file path.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// =============================================================================
// LOAD / SAVE
// =============================================================================

// Load reads configuration using the documented search order. explicitPath
// may be empty. A missing file at a fallback location is not an error; a
// missing explicit path is.
func Load(explicitPath string) (*Config, error) {
	if explicitPath != "" {
		return LoadFromPath(explicitPath)
	}

	if p, err := ConfigPath(); err == nil {
		if _, statErr := os.Stat(p); statErr == nil {
			return LoadFromPath(p)
		}
	}

	if _, err := os.Stat("config.toml"); err == nil {
		return LoadFromPath("config.toml")
	}

	return Default(), nil
}

// LoadFromPath reads and validates configuration from a specific file.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	// Decoding over the defaults: fields present in the file replace the
	// default values (slices are replaced wholesale, not merged).
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration to path atomically.
func (c *Config) Save(path string) error {
	var sb strings.Builder
	enc := toml.NewEncoder(&sb)
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, []byte(sb.String()), 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError describes a single invalid configuration field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// Validate checks the configuration for inconsistencies.
func (c *Config) Validate() error {
	if c.DisplayName == "" {
		return ValidationError{Field: "display_name", Message: "must not be empty"}
	}
	if c.MaximumNewTokens <= 0 {
		return ValidationError{Field: "maximum_new_tokens", Message: "must be positive"}
	}
	if c.TextToTokenRatioPrediction <= 0 {
		return ValidationError{Field: "text_to_token_ratio_prediction", Message: "must be positive"}
	}
	if c.MemoryMaxContextPercentage < 0 || c.MemoryMaxContextPercentage > 1 {
		return ValidationError{Field: "memory_max_context_percentage", Message: "must be within [0, 1]"}
	}
	if len(c.Models) == 0 {
		return ValidationError{Field: "models", Message: "at least one model is required"}
	}
	for i := range c.Models {
		m := &c.Models[i]
		if m.Name == "" {
			return ValidationError{Field: fmt.Sprintf("models[%d].name", i), Message: "must not be empty"}
		}
		if m.ContextSize <= c.MaximumNewTokens {
			return ValidationError{
				Field:   fmt.Sprintf("models[%d].context_size", i),
				Message: "must exceed maximum_new_tokens",
			}
		}
		if m.Endpoint == "" && m.ModelPath == "" {
			return ValidationError{
				Field:   fmt.Sprintf("models[%d]", i),
				Message: "needs either endpoint or model_path",
			}
		}
		if strings.HasSuffix(m.Endpoint, "/") {
			return ValidationError{
				Field:   fmt.Sprintf("models[%d].endpoint", i),
				Message: "must not end with a trailing slash",
			}
		}
	}
	if c.ModelByName(c.DefaultModel) == nil {
		return ValidationError{Field: "default_model", Message: "does not name a configured model"}
	}
	if len(c.ParameterSets) == 0 {
		return ValidationError{Field: "parameter_sets", Message: "at least one parameter set is required"}
	}
	if c.ParameterSetIndex(c.SelectedParameterSet) < 0 {
		return ValidationError{Field: "selected_parameter_set", Message: "does not name a configured parameter set"}
	}
	return nil
}

// =============================================================================
// LOOKUPS
// =============================================================================

// ModelByName returns the named model config, or nil.
func (c *Config) ModelByName(name string) *model.ModelConfig {
	for i := range c.Models {
		if c.Models[i].Name == name {
			return &c.Models[i]
		}
	}
	return nil
}

// ParameterSetIndex returns the index of the named parameter set, or -1.
func (c *Config) ParameterSetIndex(name string) int {
	for i := range c.ParameterSets {
		if c.ParameterSets[i].Name == name {
			return i
		}
	}
	return -1
}

// Ratio resolves the chars-per-token prediction for a model, preferring the
// model's own value over the global one.
func (c *Config) Ratio(m *model.ModelConfig) float64 {
	if m != nil && m.TextToTokenRatioPrediction > 0 {
		return m.TextToTokenRatioPrediction
	}
	if c.TextToTokenRatioPrediction > 0 {
		return c.TextToTokenRatioPrediction
	}
	return model.DefaultTextToTokenRatio
}
