// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ChatLogVersion is the schema tag written into every persisted log.
const ChatLogVersion = 1

// Speaker identifiers. 0 is always the human user, 1 the primary character,
// and 2..N the entries of OtherParticipants in declaration order.
const (
	SpeakerUser    = 0
	SpeakerPrimary = 1
)

// ErrIndexOutOfRange is returned when an entry index does not exist.
var ErrIndexOutOfRange = errors.New("chat log entry index out of range")

// LogError wraps a chat log mutation failure with the attempted operation
// and index.
type LogError struct {
	Op    string
	Index int
	Err   error
}

func (e *LogError) Error() string {
	return fmt.Sprintf("chat log %s at index %d: %v", e.Op, e.Index, e.Err)
}

func (e *LogError) Unwrap() error {
	return e.Err
}

// =============================================================================
// TYPES
// =============================================================================

// LogEntry is a single utterance in a chat log.
type LogEntry struct {
	SpeakerID int       `json:"speaker_id"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// ParticipantRef points at another character participating in a log.
// The referenced character file is loaded lazily, the first time that
// participant is asked to speak.
type ParticipantRef struct {
	CharacterFilepath string `json:"character_filepath"`
	ModelConfigName   string `json:"model_config_name,omitempty"`
}

// ChatLog is the persisted conversation state for one primary character.
type ChatLog struct {
	Version           int              `json:"version"`
	ID                string           `json:"id"`
	CurrentContext    string           `json:"current_context"`
	UserDescription   string           `json:"user_description,omitempty"`
	OtherParticipants []ParticipantRef `json:"other_participants,omitempty"`
	MemoryFiles       []string         `json:"memory_files,omitempty"`
	Entries           []LogEntry       `json:"entries"`
}

// NewChatLog creates an empty log seeded with the owning character's base
// context.
func NewChatLog(baseContext string) *ChatLog {
	return &ChatLog{
		Version:        ChatLogVersion,
		ID:             uuid.NewString(),
		CurrentContext: baseContext,
		Entries:        []LogEntry{},
	}
}

// =============================================================================
// MUTATION
// =============================================================================

// Append adds an entry to the end of the log.
func (c *ChatLog) Append(speakerID int, text string) {
	c.Entries = append(c.Entries, LogEntry{
		SpeakerID: speakerID,
		Text:      text,
		Timestamp: time.Now(),
	})
}

// Edit replaces the text of the entry at index.
func (c *ChatLog) Edit(index int, text string) error {
	if index < 0 || index >= len(c.Entries) {
		return &LogError{Op: "edit", Index: index, Err: ErrIndexOutOfRange}
	}
	c.Entries[index].Text = text
	return nil
}

// Delete removes the entry at index. Surviving entries keep their order.
func (c *ChatLog) Delete(index int) error {
	if index < 0 || index >= len(c.Entries) {
		return &LogError{Op: "delete", Index: index, Err: ErrIndexOutOfRange}
	}
	c.Entries = append(c.Entries[:index], c.Entries[index+1:]...)
	return nil
}

// AppendToEntry concatenates text onto the entry at index. Used by Continue
// turns, which grow the targeted entry instead of creating a new one.
func (c *ChatLog) AppendToEntry(index int, text string) error {
	if index < 0 || index >= len(c.Entries) {
		return &LogError{Op: "append-to", Index: index, Err: ErrIndexOutOfRange}
	}
	c.Entries[index].Text += text
	return nil
}

// Duplicate returns a deep copy of the log with a new identity. Mutating the
// copy never touches the original.
func (c *ChatLog) Duplicate() *ChatLog {
	dup := &ChatLog{
		Version:         c.Version,
		ID:              uuid.NewString(),
		CurrentContext:  c.CurrentContext,
		UserDescription: c.UserDescription,
		Entries:         make([]LogEntry, len(c.Entries)),
	}
	copy(dup.Entries, c.Entries)
	if c.OtherParticipants != nil {
		dup.OtherParticipants = make([]ParticipantRef, len(c.OtherParticipants))
		copy(dup.OtherParticipants, c.OtherParticipants)
	}
	if c.MemoryFiles != nil {
		dup.MemoryFiles = make([]string, len(c.MemoryFiles))
		copy(dup.MemoryFiles, c.MemoryFiles)
	}
	return dup
}

// =============================================================================
// QUERIES
// =============================================================================

// LastEntry returns a pointer to the most recent entry, or nil if the log is
// empty. The pointer aliases the log's backing array.
func (c *ChatLog) LastEntry() *LogEntry {
	if len(c.Entries) == 0 {
		return nil
	}
	return &c.Entries[len(c.Entries)-1]
}

// LastEntryBy returns the most recent entry spoken by speakerID along with
// its index, or (nil, -1) when that speaker has no entries.
func (c *ChatLog) LastEntryBy(speakerID int) (*LogEntry, int) {
	for i := len(c.Entries) - 1; i >= 0; i-- {
		if c.Entries[i].SpeakerID == speakerID {
			return &c.Entries[i], i
		}
	}
	return nil, -1
}

// ParticipantCount reports how many speakers the roster can address: the
// primary character plus every other participant.
func (c *ChatLog) ParticipantCount() int {
	return 1 + len(c.OtherParticipants)
}

// Render formats an entry as a transcript line using the display name
// resolved for its speaker.
func (e LogEntry) Render(name string) string {
	return name + ": " + e.Text
}

// RenderTranscript joins entries into transcript lines. names maps a speaker
// id to its display name; speakers beyond the map render with a bare id.
func RenderTranscript(entries []LogEntry, names func(speakerID int) string) string {
	var b strings.Builder
	for i, e := range entries {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(e.Render(names(e.SpeakerID)))
	}
	return b.String()
}
