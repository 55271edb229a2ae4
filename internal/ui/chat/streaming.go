// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

// =============================================================================
// REVEAL BUFFER
// =============================================================================

// revealRunesPerTick is how many runes each reveal frame releases. Batching
// keeps redraw cost flat regardless of completion length.
const revealRunesPerTick = 6

// RevealBuffer feeds a finished completion into the transcript a few runes
// per frame. It is only touched from the update loop.
type RevealBuffer struct {
	pending []rune
	shown   []rune
}

// Set loads a completion into the buffer, replacing any prior content.
func (b *RevealBuffer) Set(text string) {
	b.pending = []rune(text)
	b.shown = b.shown[:0]
}

// Advance releases the next batch and reports whether anything was added.
func (b *RevealBuffer) Advance() bool {
	if len(b.pending) == 0 {
		return false
	}
	n := revealRunesPerTick
	if n > len(b.pending) {
		n = len(b.pending)
	}
	b.shown = append(b.shown, b.pending[:n]...)
	b.pending = b.pending[n:]
	return true
}

// Shown returns the revealed prefix.
func (b *RevealBuffer) Shown() string {
	return string(b.shown)
}

// Done reports whether the whole completion has been revealed.
func (b *RevealBuffer) Done() bool {
	return len(b.pending) == 0
}

// Flush reveals everything immediately.
func (b *RevealBuffer) Flush() {
	b.shown = append(b.shown, b.pending...)
	b.pending = nil
}

// Reset clears the buffer.
func (b *RevealBuffer) Reset() {
	b.pending = nil
	b.shown = nil
}
