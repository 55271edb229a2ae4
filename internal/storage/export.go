// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"encoding/json"
	"strings"

	"github.com/jeranaias/sentinel-tui/internal/model"
	"github.com/jeranaias/sentinel-tui/internal/util"
)

// DatasetRecord is one training pair in an exported dataset.
type DatasetRecord struct {
	Input  string `json:"input"`
	Output string `json:"output"`
}

// BuildDataset converts a chat log into input/output pairs for the given
// speaker. For each entry by speakerID, the input is the text of the
// trailing run of same-speaker entries immediately preceding it (so in
// multi-chat only the most recent speaker's run is used, not the whole
// backlog), and the output is the entry's own text. A speaker entry with no
// pending input extends the previous record's output instead of opening a
// new pair.
func BuildDataset(log *model.ChatLog, speakerID int) []DatasetRecord {
	var dataset []DatasetRecord
	var pending []model.LogEntry

	for _, e := range log.Entries {
		if e.SpeakerID != speakerID {
			pending = append(pending, e)
			continue
		}

		if len(pending) == 0 {
			if len(dataset) > 0 {
				dataset[len(dataset)-1].Output += "\n" + e.Text
			}
			continue
		}

		// Trailing run of the last speaker in the pending buffer.
		lastSpeaker := pending[len(pending)-1].SpeakerID
		start := len(pending)
		for start > 0 && pending[start-1].SpeakerID == lastSpeaker {
			start--
		}

		parts := make([]string, 0, len(pending)-start)
		for _, p := range pending[start:] {
			parts = append(parts, p.Text)
		}

		dataset = append(dataset, DatasetRecord{
			Input:  strings.Join(parts, "\n"),
			Output: e.Text,
		})
		pending = pending[:0]
	}

	return dataset
}

// ExportDataset writes the speaker's dataset as JSON lines, one record per
// line.
func ExportDataset(path string, log *model.ChatLog, speakerID int) error {
	records := BuildDataset(log, speakerID)

	var b strings.Builder
	for _, r := range records {
		line, err := json.Marshal(r)
		if err != nil {
			return &StoreError{Path: path, Op: "export", Err: err}
		}
		b.Write(line)
		b.WriteByte('\n')
	}

	if err := util.AtomicWriteFile(path, []byte(b.String()), 0644); err != nil {
		return &StoreError{Path: path, Op: "export", Err: err}
	}
	return nil
}
