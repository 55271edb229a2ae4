// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewChatLog(t *testing.T) {
	log := NewChatLog("A dark tavern.")

	assert.Equal(t, ChatLogVersion, log.Version)
	assert.NotEmpty(t, log.ID)
	assert.Equal(t, "A dark tavern.", log.CurrentContext)
	assert.Empty(t, log.Entries)
	assert.Equal(t, 1, log.ParticipantCount())
}

func TestChatLogAppendEditDelete(t *testing.T) {
	log := NewChatLog("ctx")
	log.Append(SpeakerUser, "hi")
	log.Append(SpeakerPrimary, "hello")

	require.Len(t, log.Entries, 2)
	assert.Equal(t, SpeakerUser, log.Entries[0].SpeakerID)
	assert.False(t, log.Entries[0].Timestamp.IsZero())

	require.NoError(t, log.Edit(1, "hello there"))
	assert.Equal(t, "hello there", log.Entries[1].Text)

	err := log.Edit(2, "nope")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)

	require.NoError(t, log.Delete(0))
	require.Len(t, log.Entries, 1)
	assert.Equal(t, "hello there", log.Entries[0].Text)

	err = log.Delete(-1)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)

	var logErr *LogError
	require.True(t, errors.As(err, &logErr))
	assert.Equal(t, "delete", logErr.Op)
}

func TestChatLogAppendToEntry(t *testing.T) {
	log := NewChatLog("ctx")
	log.Append(SpeakerPrimary, "Once upon a time")

	require.NoError(t, log.AppendToEntry(0, ", there was a fox."))
	require.Len(t, log.Entries, 1)
	assert.Equal(t, "Once upon a time, there was a fox.", log.Entries[0].Text)

	assert.ErrorIs(t, log.AppendToEntry(5, "x"), ErrIndexOutOfRange)
}

func TestChatLogDuplicate(t *testing.T) {
	log := NewChatLog("ctx")
	log.UserDescription = "a traveler"
	log.OtherParticipants = []ParticipantRef{{CharacterFilepath: "characters/rival.toml"}}
	log.MemoryFiles = []string{"memories/world.json"}
	log.Append(SpeakerUser, "hi")
	log.Append(SpeakerPrimary, "hello")

	dup := log.Duplicate()

	assert.NotEqual(t, log.ID, dup.ID)
	assert.Equal(t, log.Entries, dup.Entries)
	assert.Equal(t, log.CurrentContext, dup.CurrentContext)
	assert.Equal(t, log.UserDescription, dup.UserDescription)
	assert.Equal(t, log.OtherParticipants, dup.OtherParticipants)
	assert.Equal(t, log.MemoryFiles, dup.MemoryFiles)

	// Mutating the duplicate must not leak into the original.
	dup.Append(SpeakerUser, "extra")
	require.NoError(t, dup.Edit(0, "changed"))
	dup.OtherParticipants[0].CharacterFilepath = "other.toml"

	assert.Len(t, log.Entries, 2)
	assert.Equal(t, "hi", log.Entries[0].Text)
	assert.Equal(t, "characters/rival.toml", log.OtherParticipants[0].CharacterFilepath)
}

func TestChatLogLastEntryBy(t *testing.T) {
	log := NewChatLog("ctx")
	log.Append(SpeakerUser, "one")
	log.Append(SpeakerPrimary, "two")
	log.Append(SpeakerUser, "three")

	entry, idx := log.LastEntryBy(SpeakerUser)
	require.NotNil(t, entry)
	assert.Equal(t, 2, idx)
	assert.Equal(t, "three", entry.Text)

	entry, idx = log.LastEntryBy(SpeakerPrimary)
	require.NotNil(t, entry)
	assert.Equal(t, 1, idx)

	entry, idx = log.LastEntryBy(7)
	assert.Nil(t, entry)
	assert.Equal(t, -1, idx)
}

func TestChatLogRoundTrip(t *testing.T) {
	log := NewChatLog("a castle at dusk")
	log.UserDescription = "a knight"
	log.OtherParticipants = []ParticipantRef{
		{CharacterFilepath: "characters/witch.toml", ModelConfigName: "small"},
		{CharacterFilepath: "characters/king.toml"},
	}
	log.MemoryFiles = []string{"memories/realm.json", "memories/people.json"}
	log.Append(SpeakerUser, "hail")
	log.Append(SpeakerPrimary, "well met")
	log.Append(2, "hmph")

	data, err := json.Marshal(log)
	require.NoError(t, err)

	var back ChatLog
	require.NoError(t, json.Unmarshal(data, &back))

	assert.Equal(t, log.Version, back.Version)
	assert.Equal(t, log.ID, back.ID)
	assert.Equal(t, log.CurrentContext, back.CurrentContext)
	assert.Equal(t, log.UserDescription, back.UserDescription)
	assert.Equal(t, log.OtherParticipants, back.OtherParticipants)
	assert.Equal(t, log.MemoryFiles, back.MemoryFiles)
	require.Len(t, back.Entries, 3)
	for i := range log.Entries {
		assert.Equal(t, log.Entries[i].SpeakerID, back.Entries[i].SpeakerID)
		assert.Equal(t, log.Entries[i].Text, back.Entries[i].Text)
		assert.WithinDuration(t, log.Entries[i].Timestamp, back.Entries[i].Timestamp, 0)
	}
}

func TestRenderTranscript(t *testing.T) {
	log := NewChatLog("ctx")
	log.Append(SpeakerUser, "hi")
	log.Append(SpeakerPrimary, "hello")

	names := func(id int) string {
		if id == SpeakerUser {
			return "U"
		}
		return "C"
	}

	assert.Equal(t, "U: hi\nC: hello", RenderTranscript(log.Entries, names))
	assert.Equal(t, "", RenderTranscript(nil, names))
}

func TestModelConfigDefaults(t *testing.T) {
	m := &ModelConfig{Name: "x", ContextSize: 2048}
	assert.InDelta(t, DefaultTextToTokenRatio, m.Ratio(), 1e-9)
	assert.False(t, m.Remote())

	m.TextToTokenRatioPrediction = 2.5
	m.Endpoint = "http://gpu-box:5001"
	assert.InDelta(t, 2.5, m.Ratio(), 1e-9)
	assert.True(t, m.Remote())
}
