// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/jeranaias/sentinel-tui/internal/config"
	"github.com/jeranaias/sentinel-tui/internal/storage"
)

// =============================================================================
// PICKER
// =============================================================================

type pickerKind int

const (
	pickCharacter pickerKind = iota
	pickLog
)

// pickerItem is one selectable row in the startup picker.
type pickerItem struct {
	Label   string
	Detail  string
	Path    string // character file, or log name for pickLog
	NewChat bool
}

// picker drives the two-step character-then-log selection shown before a
// session opens.
type picker struct {
	kind          pickerKind
	items         []pickerItem
	index         int
	characterPath string
}

// newCharacterPicker lists the character files under the configured
// directory.
func newCharacterPicker(cfg *config.Config) (*picker, error) {
	paths, err := config.ListCharacters(cfg.CharactersDir)
	if err != nil {
		return nil, err
	}

	p := &picker{kind: pickCharacter}
	for _, path := range paths {
		label := strings.TrimSuffix(filepath.Base(path), ".toml")
		if ch, err := config.LoadCharacter(path); err == nil {
			label = ch.Name
		}
		p.items = append(p.items, pickerItem{Label: label, Path: path})
	}
	return p, nil
}

// newLogPicker lists a character's saved chats, newest first, with a
// "new chat" row on top.
func newLogPicker(cfg *config.Config, characterPath string) (*picker, error) {
	ch, err := config.LoadCharacter(characterPath)
	if err != nil {
		return nil, err
	}

	store := storage.NewLogStore(cfg.CharacterLogDir(ch.Name))
	metas, err := store.List()
	if err != nil {
		return nil, err
	}

	p := &picker{kind: pickLog, characterPath: characterPath}
	p.items = append(p.items, pickerItem{Label: "(new chat)", NewChat: true})
	for _, m := range metas {
		p.items = append(p.items, pickerItem{
			Label:  m.Name,
			Detail: m.Preview,
			Path:   m.Name,
		})
	}
	return p, nil
}

// duplicateSelected copies the highlighted chat under a new name and
// returns a rebuilt picker listing it. No-op on the character picker and
// on the new-chat row.
func (p *picker) duplicateSelected(cfg *config.Config) (*picker, error) {
	item := p.selected()
	if p.kind != pickLog || item.NewChat || item.Path == "" {
		return p, nil
	}

	ch, err := config.LoadCharacter(p.characterPath)
	if err != nil {
		return nil, err
	}
	store := storage.NewLogStore(cfg.CharacterLogDir(ch.Name))

	log, err := store.Load(item.Path)
	if err != nil {
		return nil, err
	}

	name := item.Path + "-copy"
	if _, err := store.Load(name); err == nil {
		// A copy already exists; disambiguate with a timestamp.
		name = item.Path + "-copy-" + newLogName()
	}
	if err := store.Save(name, log.Duplicate()); err != nil {
		return nil, err
	}
	return newLogPicker(cfg, p.characterPath)
}

func (p *picker) move(delta int) {
	if len(p.items) == 0 {
		return
	}
	p.index = (p.index + delta + len(p.items)) % len(p.items)
}

func (p *picker) selected() pickerItem {
	if p.index < 0 || p.index >= len(p.items) {
		return pickerItem{}
	}
	return p.items[p.index]
}

// newLogName names a fresh chat after its creation time.
func newLogName() string {
	return time.Now().Format("2006-01-02-150405")
}
