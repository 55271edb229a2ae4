// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage persists chat logs as JSON documents, one file per log,
// in a per-character folder. All writes go through an atomic
// write-sync-rename so a crash never leaves a truncated log on disk.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jeranaias/sentinel-tui/internal/model"
	"github.com/jeranaias/sentinel-tui/internal/util"
)

// ErrLogNotFound is returned when a chat log file does not exist.
var ErrLogNotFound = errors.New("chat log not found")

// StoreError wraps a persistence failure with the path and operation.
type StoreError struct {
	Path string
	Op   string
	Err  error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("storage: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Is allows errors.Is(err, ErrLogNotFound) through the wrapper.
func (e *StoreError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// =============================================================================
// LOG STORE
// =============================================================================

// LogStore manages the chat log files of one character.
type LogStore struct {
	// Dir is the character's log folder, e.g. "characters/Merlin-logs".
	Dir string
}

// NewLogStore creates a store rooted at dir. The directory is created on
// first save, not here.
func NewLogStore(dir string) *LogStore {
	return &LogStore{Dir: dir}
}

// LogMeta is a listing entry for the log picker.
type LogMeta struct {
	Name       string
	Path       string
	EntryCount int
	UpdatedAt  time.Time
	Preview    string
}

// path maps a log name to its file.
func (s *LogStore) path(name string) string {
	return filepath.Join(s.Dir, name+".json")
}

// Save writes the log under the given name.
func (s *LogStore) Save(name string, log *model.ChatLog) error {
	data, err := json.MarshalIndent(log, "", "  ")
	if err != nil {
		return &StoreError{Path: s.path(name), Op: "save", Err: err}
	}
	if err := util.AtomicWriteFile(s.path(name), data, 0644); err != nil {
		return &StoreError{Path: s.path(name), Op: "save", Err: err}
	}
	return nil
}

// Load reads the named log.
func (s *LogStore) Load(name string) (*model.ChatLog, error) {
	return LoadLog(s.path(name))
}

// LoadLog reads a chat log from an arbitrary path. Multi-chat participant
// resolution loads logs outside the primary character's folder, so this is
// exported separately from the store.
func LoadLog(path string) (*model.ChatLog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &StoreError{Path: path, Op: "load", Err: ErrLogNotFound}
		}
		return nil, &StoreError{Path: path, Op: "load", Err: err}
	}

	var log model.ChatLog
	if err := json.Unmarshal(data, &log); err != nil {
		return nil, &StoreError{Path: path, Op: "load", Err: err}
	}
	if log.Version != model.ChatLogVersion {
		return nil, &StoreError{
			Path: path,
			Op:   "load",
			Err:  fmt.Errorf("unsupported chat log version %d", log.Version),
		}
	}
	if log.Entries == nil {
		log.Entries = []model.LogEntry{}
	}
	return &log, nil
}

// Delete removes the named log file.
func (s *LogStore) Delete(name string) error {
	if err := os.Remove(s.path(name)); err != nil {
		if os.IsNotExist(err) {
			return &StoreError{Path: s.path(name), Op: "delete", Err: ErrLogNotFound}
		}
		return &StoreError{Path: s.path(name), Op: "delete", Err: err}
	}
	return nil
}

// List returns metadata for every log in the folder, newest first. A missing
// folder lists as empty: the character simply has no logs yet.
func (s *LogStore) List() ([]LogMeta, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &StoreError{Path: s.Dir, Op: "list", Err: err}
	}

	var metas []LogMeta
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		name := strings.TrimSuffix(e.Name(), ".json")
		log, err := s.Load(name)
		if err != nil {
			// Unreadable logs are skipped, not fatal to listing.
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		meta := LogMeta{
			Name:       name,
			Path:       s.path(name),
			EntryCount: len(log.Entries),
			UpdatedAt:  info.ModTime(),
		}
		if last := log.LastEntry(); last != nil {
			meta.Preview = util.TruncateRunes(last.Text, 80)
		}
		metas = append(metas, meta)
	}

	sort.Slice(metas, func(i, j int) bool {
		return metas[i].UpdatedAt.After(metas[j].UpdatedAt)
	})
	return metas, nil
}
