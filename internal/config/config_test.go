// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/sentinel-tui/internal/model"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "You", cfg.DisplayName)
	assert.Equal(t, model.DefaultMaxNewTokens, cfg.MaximumNewTokens)
	assert.InDelta(t, model.DefaultMemoryMaxPercent, cfg.MemoryMaxContextPercentage, 1e-9)
	assert.NotNil(t, cfg.ModelByName("local"))
	assert.Equal(t, 0, cfg.ParameterSetIndex("default"))
}

func TestLoadFromPathOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
display_name = "Aldric"
maximum_new_tokens = 200
default_model = "remote"

[[models]]
name = "remote"
endpoint = "http://gpu-box:5001"
context_size = 8192
prompt_instruct_template = "<|chat_history|>\n<|character_name|>:"
text_to_token_ratio_prediction = 2.7
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)

	assert.Equal(t, "Aldric", cfg.DisplayName)
	assert.Equal(t, 200, cfg.MaximumNewTokens)
	// Models were replaced wholesale; parameter sets kept the defaults.
	require.Len(t, cfg.Models, 1)
	assert.Equal(t, "remote", cfg.Models[0].Name)
	assert.True(t, cfg.Models[0].Remote())
	assert.NotEmpty(t, cfg.ParameterSets)
	assert.InDelta(t, 2.7, cfg.Ratio(&cfg.Models[0]), 1e-9)
}

func TestLoadMissingExplicitPathFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	assert.Error(t, err)
}

func TestValidateRejectsBadConfigs(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"empty display name", func(c *Config) { c.DisplayName = "" }, "display_name"},
		{"zero new tokens", func(c *Config) { c.MaximumNewTokens = 0 }, "maximum_new_tokens"},
		{"bad memory percentage", func(c *Config) { c.MemoryMaxContextPercentage = 1.5 }, "memory_max_context_percentage"},
		{"no models", func(c *Config) { c.Models = nil }, "models"},
		{"context smaller than reserve", func(c *Config) { c.Models[0].ContextSize = 100 }, "models[0].context_size"},
		{"trailing slash endpoint", func(c *Config) { c.Models[0].Endpoint = "http://x:5001/" }, "models[0].endpoint"},
		{"unknown default model", func(c *Config) { c.DefaultModel = "ghost" }, "default_model"},
		{"unknown parameter set", func(c *Config) { c.SelectedParameterSet = "ghost" }, "selected_parameter_set"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			var verr ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	cfg := Default()
	cfg.DisplayName = "Morgana"
	require.NoError(t, cfg.Save(path))

	back, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "Morgana", back.DisplayName)
	assert.Equal(t, cfg.Models[0].Name, back.Models[0].Name)
}

func TestLoadCharacter(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "merlin.toml")
	content := `
name = "Merlin"
description = "A grumpy wizard."
context = "A tower full of books."
greeting = "Ah, <|user_name|>. You again."
emotional_boosts = "tired"
name_rgb = [128, 0, 255]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	ch, err := LoadCharacter(path)
	require.NoError(t, err)
	assert.Equal(t, "Merlin", ch.Name)
	assert.Equal(t, "A grumpy wizard.", ch.Description)
	assert.Equal(t, "Ah, <|user_name|>. You again.", ch.Greeting)
	assert.Equal(t, "tired", ch.EmotionalBoosts)
	assert.Equal(t, [3]uint8{128, 0, 255}, ch.NameRGB)
}

func TestLoadCharacterRejectsIncomplete(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "anon.toml")
	require.NoError(t, os.WriteFile(path, []byte(`description = "no name"`), 0644))

	_, err := LoadCharacter(path)
	assert.Error(t, err)
}

func TestListCharacters(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.toml"), []byte(`name="A"`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.toml"), []byte(`name="B"`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte(`x`), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "a-logs"), 0755))

	paths, err := ListCharacters(dir)
	require.NoError(t, err)
	require.Len(t, paths, 2)
	assert.Equal(t, filepath.Join(dir, "a.toml"), paths[0])
}

func TestCharacterLogDir(t *testing.T) {
	cfg := Default()
	assert.Equal(t, filepath.Join("characters", "Merlin-logs"), cfg.CharacterLogDir("Merlin"))
}
