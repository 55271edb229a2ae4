// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jeranaias/sentinel-tui/internal/session"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrUnknownCommand is returned when the verb is neither get nor set.
	ErrUnknownCommand = errors.New("unknown command")

	// ErrUnknownVariable is returned when the named variable has no
	// registered handler.
	ErrUnknownVariable = errors.New("unknown variable")

	// ErrMissingArgument is returned when a command is cut short.
	ErrMissingArgument = errors.New("missing argument")
)

// UsageError wraps a command failure with the offending input for display.
type UsageError struct {
	Input string
	Usage string
	Err   error
}

func (e *UsageError) Error() string {
	return fmt.Sprintf("%v: %q (usage: %s)", e.Err, e.Input, e.Usage)
}

func (e *UsageError) Unwrap() error { return e.Err }

// =============================================================================
// VARIABLE REGISTRY
// =============================================================================

// Variable binds a name (and optional short alias) to session accessors.
type Variable struct {
	Name        string
	Alias       string
	Description string

	Get func(m *session.Manager, participant int) (string, error)
	Set func(m *session.Manager, participant int, value string) error
}

func builtinVariables() []Variable {
	return []Variable{
		{
			Name:        "emotional_boosts",
			Alias:       "eb",
			Description: "extra emotional guidance injected into the prompt",
			Get: func(m *session.Manager, participant int) (string, error) {
				return m.EmotionalBoosts(participant)
			},
			Set: func(m *session.Manager, participant int, value string) error {
				return m.SetEmotionalBoosts(participant, value)
			},
		},
	}
}

// =============================================================================
// PROCESSOR
// =============================================================================

// Processor executes get/set commands against an open session.
type Processor struct {
	mgr  *session.Manager
	vars map[string]*Variable
}

// NewProcessor creates a processor with the built-in variable set.
func NewProcessor(mgr *session.Manager) *Processor {
	p := &Processor{
		mgr:  mgr,
		vars: make(map[string]*Variable),
	}
	for _, v := range builtinVariables() {
		v := v
		p.vars[v.Name] = &v
		if v.Alias != "" {
			p.vars[v.Alias] = &v
		}
	}
	return p
}

const (
	getUsage = "get [participant] <variable>"
	setUsage = "set [participant] <variable> <value>"
)

// Execute runs a single command line. For get commands the returned string
// is the variable's value; for set commands it is a short confirmation.
func (p *Processor) Execute(input string) (string, error) {
	tokens := splitTokens(input)
	if len(tokens) == 0 {
		return "", &UsageError{Input: input, Usage: getUsage, Err: ErrMissingArgument}
	}

	verb := strings.ToLower(tokens[0])
	switch verb {
	case "get":
		return p.executeGet(input, tokens[1:])
	case "set":
		return p.executeSet(input, tokens[1:])
	default:
		return "", &UsageError{Input: input, Usage: getUsage + " | " + setUsage, Err: ErrUnknownCommand}
	}
}

func (p *Processor) executeGet(input string, args []string) (string, error) {
	participant, args := p.participant(args)
	if len(args) < 1 {
		return "", &UsageError{Input: input, Usage: getUsage, Err: ErrMissingArgument}
	}

	v, ok := p.vars[args[0]]
	if !ok {
		return "", &UsageError{Input: input, Usage: getUsage, Err: ErrUnknownVariable}
	}
	return v.Get(p.mgr, participant)
}

func (p *Processor) executeSet(input string, args []string) (string, error) {
	participant, args := p.participant(args)
	if len(args) < 2 {
		return "", &UsageError{Input: input, Usage: setUsage, Err: ErrMissingArgument}
	}

	v, ok := p.vars[args[0]]
	if !ok {
		return "", &UsageError{Input: input, Usage: setUsage, Err: ErrUnknownVariable}
	}

	value := strings.Join(args[1:], " ")
	if err := v.Set(p.mgr, participant, value); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s = %s", v.Name, value), nil
}

// participant consumes a leading numeric token as the participant id.
// When no id is given the command targets the primary character.
func (p *Processor) participant(args []string) (int, []string) {
	if len(args) > 0 {
		if id, err := strconv.Atoi(args[0]); err == nil {
			return id, args[1:]
		}
	}
	return 1, args
}

// Variables lists the registered variables for help display, canonical
// names only.
func (p *Processor) Variables() []Variable {
	var out []Variable
	seen := make(map[string]bool)
	for _, v := range p.vars {
		if seen[v.Name] {
			continue
		}
		seen[v.Name] = true
		out = append(out, *v)
	}
	return out
}
