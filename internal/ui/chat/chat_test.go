// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/sentinel-tui/internal/config"
	"github.com/jeranaias/sentinel-tui/internal/model"
	"github.com/jeranaias/sentinel-tui/internal/storage"
	"github.com/jeranaias/sentinel-tui/internal/ui/styles"
)

// =============================================================================
// REVEAL BUFFER
// =============================================================================

func TestRevealBufferAdvancesInBatches(t *testing.T) {
	var b RevealBuffer
	b.Set("hello there, wanderer")

	assert.False(t, b.Done())
	assert.True(t, b.Advance())
	assert.Equal(t, "hello ", b.Shown())

	for !b.Done() {
		b.Advance()
	}
	assert.Equal(t, "hello there, wanderer", b.Shown())
	assert.False(t, b.Advance())
}

func TestRevealBufferRuneSafety(t *testing.T) {
	var b RevealBuffer
	b.Set("héllo wörld ünïcode")

	var prev string
	for !b.Done() {
		b.Advance()
		shown := b.Shown()
		// Every intermediate state is valid UTF-8 and extends the last.
		assert.True(t, strings.HasPrefix(shown, prev))
		assert.True(t, strings.HasPrefix("héllo wörld ünïcode", shown))
		prev = shown
	}
}

func TestRevealBufferFlush(t *testing.T) {
	var b RevealBuffer
	b.Set("some long completion text")
	b.Advance()
	b.Flush()
	assert.True(t, b.Done())
	assert.Equal(t, "some long completion text", b.Shown())
}

// =============================================================================
// RENDERING
// =============================================================================

func TestRenderEntryContainsNameAndText(t *testing.T) {
	theme := styles.NewTheme()
	entry := model.LogEntry{SpeakerID: 1, Text: `She nodded. "Of course."`}

	out := renderEntry(theme, entry, "Merlin", nil, 0)
	assert.Contains(t, out, "Merlin:")
	assert.Contains(t, out, "She nodded.")
	assert.Contains(t, out, `"Of course."`)
}

func TestHighlightCodeBlocksPassThrough(t *testing.T) {
	// No fences, or an unterminated fence: text is unchanged.
	assert.Equal(t, "plain text", highlightCodeBlocks("plain text"))
	assert.Equal(t, "open ``` only", highlightCodeBlocks("open ``` only"))
}

func TestHighlightCodeBlocksKeepsSurroundingText(t *testing.T) {
	in := "before\n```go\nfmt.Println(1)\n```\nafter"
	out := highlightCodeBlocks(in)
	assert.Contains(t, out, "before\n")
	assert.Contains(t, out, "after")
	assert.Contains(t, out, "Println")
}

func TestTruncateStatus(t *testing.T) {
	assert.Equal(t, "short", truncateStatus("short", 20))
	assert.Equal(t, "exact", truncateStatus("exact", 5))
	out := truncateStatus("a very long status line", 10)
	assert.LessOrEqual(t, len([]rune(out)), 10)
	assert.True(t, strings.HasSuffix(out, "…"))
}

// =============================================================================
// PICKER
// =============================================================================

func testConfigWithCharacters(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	for _, name := range []string{"alpha", "beta"} {
		body := "name = \"" + strings.ToUpper(name) + "\"\ndescription = \"test\"\n"
		require.NoError(t, os.WriteFile(filepath.Join(dir, name+".toml"), []byte(body), 0644))
	}
	cfg := config.Default()
	cfg.CharactersDir = dir
	return cfg
}

func TestCharacterPickerListsByName(t *testing.T) {
	cfg := testConfigWithCharacters(t)

	p, err := newCharacterPicker(cfg)
	require.NoError(t, err)
	require.Len(t, p.items, 2)
	assert.Equal(t, "ALPHA", p.items[0].Label)
	assert.Equal(t, "BETA", p.items[1].Label)
}

func TestLogPickerOffersNewChatFirst(t *testing.T) {
	cfg := testConfigWithCharacters(t)
	charPath := filepath.Join(cfg.CharactersDir, "alpha.toml")

	p, err := newLogPicker(cfg, charPath)
	require.NoError(t, err)
	require.NotEmpty(t, p.items)
	assert.True(t, p.items[0].NewChat)
	assert.Equal(t, charPath, p.characterPath)
}

func TestLogPickerDuplicatesSelectedChat(t *testing.T) {
	cfg := testConfigWithCharacters(t)
	charPath := filepath.Join(cfg.CharactersDir, "alpha.toml")

	store := storage.NewLogStore(cfg.CharacterLogDir("ALPHA"))
	log := model.NewChatLog("a tavern")
	log.Append(model.SpeakerPrimary, "Welcome in.")
	require.NoError(t, store.Save("first", log))

	p, err := newLogPicker(cfg, charPath)
	require.NoError(t, err)

	// Row 0 is the new-chat placeholder; duplicating it is a no-op.
	same, err := p.duplicateSelected(cfg)
	require.NoError(t, err)
	assert.Len(t, same.items, 2)

	p.move(1)
	p, err = p.duplicateSelected(cfg)
	require.NoError(t, err)
	assert.Len(t, p.items, 3)

	dup, err := store.Load("first-copy")
	require.NoError(t, err)
	require.Len(t, dup.Entries, 1)
	assert.Equal(t, "Welcome in.", dup.Entries[0].Text)
	assert.NotEqual(t, log.ID, dup.ID, "a duplicate gets its own identity")
}

func TestPickerMoveWraps(t *testing.T) {
	p := &picker{items: []pickerItem{{Label: "a"}, {Label: "b"}, {Label: "c"}}}

	p.move(-1)
	assert.Equal(t, 2, p.index)
	p.move(1)
	assert.Equal(t, 0, p.index)
	p.move(2)
	assert.Equal(t, 2, p.index)
}

func TestNewLogNameIsTimestamp(t *testing.T) {
	name := newLogName()
	_, err := time.Parse("2006-01-02-150405", name)
	assert.NoError(t, err)
}
