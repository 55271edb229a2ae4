// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"bufio"
	"os"
	"strings"

	"github.com/jeranaias/sentinel-tui/internal/model"
)

// ImportPlaintext converts a plain "Name: text" transcript file into chat
// log entries. speakers maps a display name to its speaker id; names are
// tried in roster order (user first) so id assignment is deterministic when
// one name prefixes another. A line that starts with a known "Name:" prefix
// opens a new entry; any other line continues the previous entry. Lines
// before the first recognized name are dropped.
func ImportPlaintext(path string, speakers []SpeakerName) ([]model.LogEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &StoreError{Path: path, Op: "import", Err: err}
	}
	defer f.Close()

	var entries []model.LogEntry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()

		matched := false
		for _, sp := range speakers {
			prefix := sp.Name + ":"
			if !strings.HasPrefix(line, prefix) {
				continue
			}
			text := strings.TrimPrefix(line, prefix)
			text = strings.TrimPrefix(text, " ")
			entries = append(entries, model.LogEntry{
				SpeakerID: sp.ID,
				Text:      text,
			})
			matched = true
			break
		}

		if !matched && len(entries) > 0 {
			last := &entries[len(entries)-1]
			last.Text += "\n" + line
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, &StoreError{Path: path, Op: "import", Err: err}
	}
	return entries, nil
}

// SpeakerName pairs a display name with its speaker id for import.
type SpeakerName struct {
	Name string
	ID   int
}
