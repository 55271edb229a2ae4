// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/sentinel-tui/internal/model"
)

// LoadCharacter reads a character definition from a TOML file.
func LoadCharacter(path string) (*model.Character, error) {
	var ch model.Character
	if _, err := toml.DecodeFile(path, &ch); err != nil {
		return nil, fmt.Errorf("failed to load character %s: %w", path, err)
	}
	if ch.Name == "" {
		return nil, fmt.Errorf("character %s: name must not be empty", path)
	}
	if ch.Description == "" {
		return nil, fmt.Errorf("character %s: description must not be empty", path)
	}
	return &ch, nil
}

// ListCharacters returns the character files under dir, sorted by name.
func ListCharacters(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read characters dir %s: %w", dir, err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".toml") {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	return paths, nil
}

// CharacterLogDir returns the folder holding a character's chat logs.
func (c *Config) CharacterLogDir(characterName string) string {
	return filepath.Join(c.CharactersDir, characterName+"-logs")
}
