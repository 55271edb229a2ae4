// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package turn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSingleChatUserReplyTriggersPrimary(t *testing.T) {
	s := NewState()

	s, generate := s.UserReplied()
	assert.True(t, generate)
	assert.Equal(t, Generating, s.Phase)
	assert.Equal(t, 1, s.Participant)
	assert.Equal(t, Reply, s.Kind)
}

func TestMultiChatUserReplyWaits(t *testing.T) {
	s := NewState().ToggleMultiChat()

	s, generate := s.UserReplied()
	assert.False(t, generate)
	assert.Equal(t, AwaitingInput, s.Phase)
}

func TestToggleMultiChatRoundTrip(t *testing.T) {
	s := NewState()
	assert.False(t, s.MultiChat)
	s = s.ToggleMultiChat()
	assert.True(t, s.MultiChat)
	s = s.ToggleMultiChat()
	assert.False(t, s.MultiChat)
}

func TestRequestGenerationValidatesParticipant(t *testing.T) {
	s := NewState()

	_, err := s.RequestGeneration(0, Reply, 3)
	assert.ErrorIs(t, err, ErrInvalidParticipant)

	_, err = s.RequestGeneration(4, Reply, 3)
	assert.ErrorIs(t, err, ErrInvalidParticipant)

	next, err := s.RequestGeneration(3, AdditionalGeneration, 3)
	require.NoError(t, err)
	assert.Equal(t, Generating, next.Phase)
	assert.Equal(t, 3, next.Participant)
	assert.Equal(t, AdditionalGeneration, next.Kind)
}

func TestAtMostOneGenerationInFlight(t *testing.T) {
	s := NewState()
	s, err := s.RequestGeneration(1, Reply, 1)
	require.NoError(t, err)

	_, err = s.RequestGeneration(1, Regenerate, 1)
	assert.ErrorIs(t, err, ErrGenerationInFlight)

	// A rejected request leaves the in-flight turn untouched.
	assert.Equal(t, Generating, s.Phase)
	assert.Equal(t, Reply, s.Kind)
}

func TestCompletionReturnsToAwaitingInput(t *testing.T) {
	s := NewState()
	s, err := s.RequestGeneration(2, Continue, 2)
	require.NoError(t, err)

	s = s.GenerationComplete()
	assert.Equal(t, AwaitingInput, s.Phase)

	// A failure transitions identically; the log mutation (or lack of it)
	// is the caller's concern.
	s, err = s.RequestGeneration(2, Reply, 2)
	require.NoError(t, err)
	s = s.GenerationFailed()
	assert.Equal(t, AwaitingInput, s.Phase)
}

func TestModeSurvivesTurnCycle(t *testing.T) {
	s := NewState().ToggleMultiChat()
	s, err := s.RequestGeneration(2, Reply, 3)
	require.NoError(t, err)
	s = s.GenerationComplete()
	assert.True(t, s.MultiChat)
}

func TestParticipantForDigit(t *testing.T) {
	tests := []struct {
		name    string
		digit   int
		roster  int
		want    int
		wantErr bool
	}{
		{"one is primary", 1, 3, 1, false},
		{"two is first other", 2, 3, 2, false},
		{"roster edge", 3, 3, 3, false},
		{"beyond roster", 4, 3, 0, true},
		{"zero means ten", 0, 10, 10, false},
		{"zero beyond roster", 0, 3, 0, true},
		{"negative", -1, 3, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParticipantForDigit(tt.digit, tt.roster)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidParticipant)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
