// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package memory implements long-term memory files: on-disk tables of
// {key, value} pairs whose values are injected into prompts when their key
// appears in the most recent chat entry.
package memory

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/jeranaias/sentinel-tui/internal/util"
)

// Memory is one trigger pair. Keys are not unique: several memories may
// share a key and each contributes independently.
type Memory struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// File is a loaded memory file. Document shape: {"memories": [{key, value}]}.
type File struct {
	Path     string   `json:"-"`
	Memories []Memory `json:"memories"`
}

// Load reads a memory file from disk.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read memory file %s: %w", path, err)
	}

	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse memory file %s: %w", path, err)
	}
	f.Path = path
	return &f, nil
}

// Save writes the file back to its path atomically.
func (f *File) Save() error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode memory file: %w", err)
	}
	if err := util.AtomicWriteFile(f.Path, data, 0644); err != nil {
		return fmt.Errorf("failed to write memory file %s: %w", f.Path, err)
	}
	return nil
}

// LoadAll loads every path, preserving order. Any failure aborts the whole
// load so a session never runs with a silently missing memory table.
func LoadAll(paths []string) ([]*File, error) {
	files := make([]*File, 0, len(paths))
	for _, p := range paths {
		f, err := Load(p)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, nil
}

// Match is one triggered memory.
type Match struct {
	Key   string
	Value string
}

// Matches returns every memory whose key occurs as a case-sensitive
// substring of text. Results follow file-load order, then in-file order.
// Only the caller decides which entry's text to scan; by policy that is the
// most recent log entry and nothing older.
func Matches(files []*File, text string) []Match {
	var out []Match
	for _, f := range files {
		for _, m := range f.Memories {
			if m.Key == "" {
				continue
			}
			if strings.Contains(text, m.Key) {
				out = append(out, Match{Key: m.Key, Value: m.Value})
			}
		}
	}
	return out
}
