// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fsnotify/fsnotify"
)

// =============================================================================
// FILE WATCHER
// =============================================================================

// debounceWindow coalesces bursts of write events from editors that save
// in several steps.
const debounceWindow = 250 * time.Millisecond

// Watcher reloads character and memory files when they change on disk.
type Watcher struct {
	fsw     *fsnotify.Watcher
	changed chan []string
	errs    chan error
	done    chan struct{}
}

// NewWatcher watches the characters directory and the given memory file
// paths. Directories are watched rather than files so that atomic
// rename-into-place saves are seen.
func NewWatcher(charactersDir string, memoryPaths []string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	dirs := map[string]bool{charactersDir: true}
	for _, p := range memoryPaths {
		dirs[filepath.Dir(p)] = true
	}
	for dir := range dirs {
		if err := fsw.Add(dir); err != nil {
			fsw.Close()
			return nil, err
		}
	}

	w := &Watcher{
		fsw:     fsw,
		changed: make(chan []string, 1),
		errs:    make(chan error, 1),
		done:    make(chan struct{}),
	}
	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	var pending []string
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			pending = append(pending, ev.Name)
			if timer == nil {
				timer = time.NewTimer(debounceWindow)
			} else {
				timer.Reset(debounceWindow)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			batch := pending
			pending = nil
			select {
			case w.changed <- batch:
			default:
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			select {
			case w.errs <- err:
			default:
			}

		case <-w.done:
			return
		}
	}
}

// WaitCmd blocks until the next change batch or watcher error arrives and
// converts it to a message. The caller re-issues the command after each
// delivery.
func (w *Watcher) WaitCmd() tea.Cmd {
	return func() tea.Msg {
		select {
		case paths, ok := <-w.changed:
			if !ok {
				return nil
			}
			return FilesChangedMsg{Paths: paths}
		case err, ok := <-w.errs:
			if !ok {
				return nil
			}
			return WatcherErrorMsg{Err: err}
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fsw.Close()
}
