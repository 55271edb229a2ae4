// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package turn implements the turn-taking state machine: who may act next,
// which participant a generation targets, and how single-chat and
// multi-chat modes differ. States are immutable values; every transition
// returns a new State, so "is generating" can never drift across scattered
// flags.
package turn

import (
	"errors"
	"fmt"
)

// Sentinel errors for rejected transitions.
var (
	// ErrGenerationInFlight rejects a second generation while one runs;
	// at most one generation is in flight per session.
	ErrGenerationInFlight = errors.New("a generation is already in flight")
	// ErrInvalidParticipant rejects a speaker selection outside the
	// roster.
	ErrInvalidParticipant = errors.New("no such participant")
	// ErrNoContinuableEntry rejects a continue turn when the targeted
	// participant does not own the most recent entry; continuing would
	// resume someone else's utterance.
	ErrNoContinuableEntry = errors.New("most recent entry is not the targeted speaker's")
)

// Kind tags what a generation turn does with its result.
type Kind int

const (
	// Reply appends a new entry.
	Reply Kind = iota
	// Regenerate replaces the targeted participant's most recent entry.
	Regenerate
	// Continue appends generated text onto the targeted participant's
	// most recent entry.
	Continue
	// AdditionalGeneration appends a new entry without a preceding user
	// reply, regardless of mode.
	AdditionalGeneration
)

func (k Kind) String() string {
	switch k {
	case Reply:
		return "reply"
	case Regenerate:
		return "regenerate"
	case Continue:
		return "continue"
	case AdditionalGeneration:
		return "additional"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Phase is the coordinator's position in the turn cycle.
type Phase int

const (
	// AwaitingInput accepts user actions and generation requests.
	AwaitingInput Phase = iota
	// Generating has a request in flight; new generation requests are
	// rejected until it completes or fails.
	Generating
	// Idle is the pre-session phase before a chat log is open.
	Idle
)

// State is an immutable snapshot of the coordinator.
type State struct {
	Phase Phase
	// Participant is the targeted speaker id while Generating.
	Participant int
	// Kind is the in-flight turn kind while Generating.
	Kind Kind
	// MultiChat suppresses automatic generation and routes speaker
	// selection through explicit numeric keys.
	MultiChat bool
}

// NewState returns the initial coordinator state for an opened log.
func NewState() State {
	return State{Phase: AwaitingInput}
}

// ToggleMultiChat flips the mode flag. Mode changes are allowed at any
// phase; they only influence future transitions.
func (s State) ToggleMultiChat() State {
	s.MultiChat = !s.MultiChat
	return s
}

// UserReplied decides what follows a user entry. In single-chat mode the
// primary speaks automatically; in multi-chat mode the coordinator waits
// for an explicit selection. The returned bool reports whether a generation
// for the primary should start.
func (s State) UserReplied() (State, bool) {
	if s.MultiChat {
		s.Phase = AwaitingInput
		return s, false
	}
	s.Phase = Generating
	s.Participant = 1
	s.Kind = Reply
	return s, true
}

// RequestGeneration starts a turn for a specific participant.
// participantCount is the roster size including the primary.
func (s State) RequestGeneration(participant int, kind Kind, participantCount int) (State, error) {
	if s.Phase == Generating {
		return s, ErrGenerationInFlight
	}
	if participant < 1 || participant > participantCount {
		return s, fmt.Errorf("participant %d of %d: %w", participant, participantCount, ErrInvalidParticipant)
	}
	s.Phase = Generating
	s.Participant = participant
	s.Kind = kind
	return s, nil
}

// GenerationComplete returns to AwaitingInput after the result was applied
// to the log.
func (s State) GenerationComplete() State {
	s.Phase = AwaitingInput
	s.Participant = 0
	s.Kind = Reply
	return s
}

// GenerationFailed returns to AwaitingInput without any log mutation.
func (s State) GenerationFailed() State {
	return s.GenerationComplete()
}

// ParticipantForDigit maps a numeric key to a participant id in multi-chat
// mode. Key 1 is always the primary; 2..9 follow other_participants in
// declaration order; 0 addresses participant ten.
func ParticipantForDigit(digit int, participantCount int) (int, error) {
	if digit < 0 || digit > 9 {
		return 0, fmt.Errorf("digit %d: %w", digit, ErrInvalidParticipant)
	}
	id := digit
	if digit == 0 {
		id = 10
	}
	if id > participantCount {
		return 0, fmt.Errorf("participant %d of %d: %w", id, participantCount, ErrInvalidParticipant)
	}
	return id, nil
}
