// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/sentinel-tui/internal/model"
)

func TestLogStoreSaveLoadRoundTrip(t *testing.T) {
	store := NewLogStore(filepath.Join(t.TempDir(), "Merlin-logs"))

	log := model.NewChatLog("a tower")
	log.UserDescription = "a knight"
	log.OtherParticipants = []model.ParticipantRef{{CharacterFilepath: "characters/witch.toml"}}
	log.MemoryFiles = []string{"memories/realm.json"}
	log.Append(model.SpeakerUser, "hail")
	log.Append(model.SpeakerPrimary, "well met")

	require.NoError(t, store.Save("first", log))

	back, err := store.Load("first")
	require.NoError(t, err)
	assert.Equal(t, log.ID, back.ID)
	assert.Equal(t, log.CurrentContext, back.CurrentContext)
	assert.Equal(t, log.UserDescription, back.UserDescription)
	assert.Equal(t, log.OtherParticipants, back.OtherParticipants)
	assert.Equal(t, log.MemoryFiles, back.MemoryFiles)
	require.Len(t, back.Entries, 2)
	assert.Equal(t, "hail", back.Entries[0].Text)
}

func TestLogStoreLoadMissing(t *testing.T) {
	store := NewLogStore(t.TempDir())
	_, err := store.Load("ghost")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLogNotFound)
}

func TestLoadLogRejectsUnknownVersion(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"version":99,"id":"x","entries":[]}`), 0644))

	_, err := LoadLog(path)
	assert.Error(t, err)
}

func TestLogStoreDelete(t *testing.T) {
	store := NewLogStore(t.TempDir())
	require.NoError(t, store.Save("gone", model.NewChatLog("ctx")))
	require.NoError(t, store.Delete("gone"))
	assert.ErrorIs(t, store.Delete("gone"), ErrLogNotFound)
}

func TestLogStoreListNewestFirst(t *testing.T) {
	store := NewLogStore(t.TempDir())

	older := model.NewChatLog("ctx")
	older.Append(model.SpeakerUser, "old")
	require.NoError(t, store.Save("older", older))

	// Push the mtimes apart; sub-second resolution is not guaranteed
	// everywhere.
	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(store.path("older"), past, past))

	newer := model.NewChatLog("ctx")
	newer.Append(model.SpeakerPrimary, "a rather long reply that should be cut down for the preview because it just keeps going and going")
	require.NoError(t, store.Save("newer", newer))

	metas, err := store.List()
	require.NoError(t, err)
	require.Len(t, metas, 2)
	assert.Equal(t, "newer", metas[0].Name)
	assert.Equal(t, 1, metas[0].EntryCount)
	assert.LessOrEqual(t, len([]rune(metas[0].Preview)), 80)
}

func TestLogStoreListMissingDirIsEmpty(t *testing.T) {
	store := NewLogStore(filepath.Join(t.TempDir(), "never-created"))
	metas, err := store.List()
	require.NoError(t, err)
	assert.Empty(t, metas)
}

// =============================================================================
// DATASET EXPORT
// =============================================================================

func entry(speaker int, text string) model.LogEntry {
	return model.LogEntry{SpeakerID: speaker, Text: text, Timestamp: time.Now()}
}

func TestBuildDatasetPairsUserWithCharacter(t *testing.T) {
	log := model.NewChatLog("ctx")
	log.Entries = []model.LogEntry{
		entry(model.SpeakerUser, "hi"),
		entry(model.SpeakerPrimary, "hello"),
		entry(model.SpeakerUser, "how are you?"),
		entry(model.SpeakerUser, "still there?"),
		entry(model.SpeakerPrimary, "fine"),
	}

	records := BuildDataset(log, model.SpeakerPrimary)
	require.Len(t, records, 2)
	assert.Equal(t, DatasetRecord{Input: "hi", Output: "hello"}, records[0])
	assert.Equal(t, DatasetRecord{Input: "how are you?\nstill there?", Output: "fine"}, records[1])
}

func TestBuildDatasetUsesOnlyTrailingSpeakerRun(t *testing.T) {
	// In multi-chat, input is the most recent speaker's run, not the whole
	// backlog.
	log := model.NewChatLog("ctx")
	log.Entries = []model.LogEntry{
		entry(2, "rival says something"),
		entry(model.SpeakerUser, "user line one"),
		entry(model.SpeakerUser, "user line two"),
		entry(model.SpeakerPrimary, "reply"),
	}

	records := BuildDataset(log, model.SpeakerPrimary)
	require.Len(t, records, 1)
	assert.Equal(t, "user line one\nuser line two", records[0].Input)
}

func TestBuildDatasetConsecutiveSpeakerExtendsOutput(t *testing.T) {
	log := model.NewChatLog("ctx")
	log.Entries = []model.LogEntry{
		entry(model.SpeakerUser, "hi"),
		entry(model.SpeakerPrimary, "hello"),
		entry(model.SpeakerPrimary, "anyone?"),
	}

	records := BuildDataset(log, model.SpeakerPrimary)
	require.Len(t, records, 1)
	assert.Equal(t, "hello\nanyone?", records[0].Output)
}

func TestBuildDatasetLeadingSpeakerEntryDropped(t *testing.T) {
	// A greeting with no input before it opens no pair.
	log := model.NewChatLog("ctx")
	log.Entries = []model.LogEntry{
		entry(model.SpeakerPrimary, "greetings"),
		entry(model.SpeakerUser, "hi"),
		entry(model.SpeakerPrimary, "hello"),
	}

	records := BuildDataset(log, model.SpeakerPrimary)
	require.Len(t, records, 1)
	assert.Equal(t, DatasetRecord{Input: "hi", Output: "hello"}, records[0])
}

func TestExportDatasetWritesJSONL(t *testing.T) {
	log := model.NewChatLog("ctx")
	log.Entries = []model.LogEntry{
		entry(model.SpeakerUser, "hi"),
		entry(model.SpeakerPrimary, "hello"),
	}

	path := filepath.Join(t.TempDir(), "dataset.jsonl")
	require.NoError(t, ExportDataset(path, log, model.SpeakerPrimary))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{\"input\":\"hi\",\"output\":\"hello\"}\n", string(data))
}

// =============================================================================
// PLAINTEXT IMPORT
// =============================================================================

func TestImportPlaintext(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "old-log.txt")
	content := "stray header line\n" +
		"You: hi there\n" +
		"Merlin: hello\n" +
		"and another line\n" +
		"You: bye\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	speakers := []SpeakerName{
		{Name: "You", ID: model.SpeakerUser},
		{Name: "Merlin", ID: model.SpeakerPrimary},
	}

	entries, err := ImportPlaintext(path, speakers)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, model.SpeakerUser, entries[0].SpeakerID)
	assert.Equal(t, "hi there", entries[0].Text)
	assert.Equal(t, "hello\nand another line", entries[1].Text)
	assert.Equal(t, "bye", entries[2].Text)
}

func TestImportPlaintextMissingFile(t *testing.T) {
	_, err := ImportPlaintext(filepath.Join(t.TempDir(), "nope.txt"), nil)
	assert.Error(t, err)
}
