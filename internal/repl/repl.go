// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package repl implements the plain-terminal fallback mode. It exposes the
// same conversation operations as the TUI as slash commands over a line
// editor with history and completion.
package repl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/peterh/liner"

	"github.com/jeranaias/sentinel-tui/internal/commands"
	"github.com/jeranaias/sentinel-tui/internal/config"
	"github.com/jeranaias/sentinel-tui/internal/model"
	"github.com/jeranaias/sentinel-tui/internal/session"
	"github.com/jeranaias/sentinel-tui/internal/turn"
)

// slashCommands feed the line editor's tab completion.
var slashCommands = []string{
	"/regen", "/continue", "/more", "/edit", "/delete", "/context",
	"/userdesc", "/multi", "/speak", "/params", "/get", "/set",
	"/duplicate", "/export", "/import", "/save", "/info", "/help", "/quit",
}

// REPL drives one conversation over a liner prompt.
type REPL struct {
	cfg  *config.Config
	mgr  *session.Manager
	proc *commands.Processor
	line *liner.State
	out  io.Writer
}

// New creates a REPL over an already-open session.
func New(cfg *config.Config, mgr *session.Manager) *REPL {
	return &REPL{
		cfg:  cfg,
		mgr:  mgr,
		proc: commands.NewProcessor(mgr),
		out:  os.Stdout,
	}
}

// Run reads and executes lines until /quit or EOF. The history file lives
// next to the configuration.
func (r *REPL) Run(ctx context.Context) error {
	r.line = liner.NewLiner()
	defer r.line.Close()
	r.line.SetCtrlCAborts(true)

	r.line.SetCompleter(func(line string) []string {
		if !strings.HasPrefix(line, "/") {
			return nil
		}
		var out []string
		for _, c := range slashCommands {
			if strings.HasPrefix(c, line) {
				out = append(out, c)
			}
		}
		return out
	})

	var historyPath string
	if dir, err := config.ConfigDir(); err == nil {
		historyPath = filepath.Join(dir, "repl_history")
		if f, err := os.Open(historyPath); err == nil {
			r.line.ReadHistory(f)
			f.Close()
		}
	}
	defer func() {
		if historyPath == "" {
			return
		}
		if f, err := os.Create(historyPath); err == nil {
			r.line.WriteHistory(f)
			f.Close()
		}
	}()

	r.printTranscript()

	for {
		input, err := r.line.Prompt(r.mgr.DisplayName(model.SpeakerUser) + "> ")
		if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
			return r.mgr.Save()
		}
		if err != nil {
			return err
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		r.line.AppendHistory(input)

		if strings.HasPrefix(input, "/") {
			quit, err := r.execute(ctx, input)
			if err != nil {
				fmt.Fprintln(r.out, "error:", err)
			}
			if quit {
				return r.mgr.Save()
			}
			continue
		}

		if err := r.reply(ctx, input); err != nil {
			fmt.Fprintln(r.out, "error:", err)
		}
	}
}

// reply appends the user's entry and, in single-chat mode, generates and
// prints the primary's response.
func (r *REPL) reply(ctx context.Context, text string) error {
	req, err := r.mgr.UserReply(text)
	if err != nil {
		return err
	}
	if req == nil {
		fmt.Fprintln(r.out, "(multi-chat: use /speak <participant> to pick the speaker)")
		return nil
	}
	return r.runTurn(ctx, req)
}

// runTurn executes a work unit synchronously and prints the result.
func (r *REPL) runTurn(ctx context.Context, req *session.TurnRequest) error {
	fmt.Fprintln(r.out, "...")
	text, err := req.Execute(ctx)
	if err != nil {
		r.mgr.FailTurn()
		return err
	}
	if err := r.mgr.CompleteTurn(req, text); err != nil {
		return err
	}

	entry, _ := r.mgr.Log().LastEntryBy(req.Participant)
	if entry != nil {
		r.printEntry(*entry)
	}
	return nil
}

// execute dispatches one slash command. The bool result requests exit.
func (r *REPL) execute(ctx context.Context, input string) (bool, error) {
	fields := strings.Fields(input)
	cmd, args := fields[0], fields[1:]
	rest := strings.TrimSpace(strings.TrimPrefix(input, cmd))

	switch cmd {
	case "/quit", "/q":
		return true, nil

	case "/help":
		r.printHelp()
		return false, nil

	case "/regen":
		return false, r.retargetedTurn(ctx, turn.Regenerate)

	case "/continue":
		return false, r.retargetedTurn(ctx, turn.Continue)

	case "/more":
		return false, r.retargetedTurn(ctx, turn.AdditionalGeneration)

	case "/speak":
		if len(args) < 1 {
			return false, fmt.Errorf("usage: /speak <participant>")
		}
		id, err := strconv.Atoi(args[0])
		if err != nil {
			return false, fmt.Errorf("usage: /speak <participant>")
		}
		req, err := r.mgr.StartTurn(id, turn.Reply)
		if err != nil {
			return false, err
		}
		return false, r.runTurn(ctx, req)

	case "/edit":
		if len(args) < 2 {
			return false, fmt.Errorf("usage: /edit <index> <text>")
		}
		idx, err := strconv.Atoi(args[0])
		if err != nil {
			return false, fmt.Errorf("usage: /edit <index> <text>")
		}
		text := strings.TrimSpace(strings.TrimPrefix(rest, args[0]))
		return false, r.mgr.EditEntry(idx, text)

	case "/delete":
		idx := len(r.mgr.Log().Entries) - 1
		if len(args) >= 1 {
			var err error
			if idx, err = strconv.Atoi(args[0]); err != nil {
				return false, fmt.Errorf("usage: /delete [index]")
			}
		}
		return false, r.mgr.DeleteEntry(idx)

	case "/context":
		if rest == "" {
			fmt.Fprintln(r.out, r.mgr.Log().CurrentContext)
			return false, nil
		}
		return false, r.mgr.SetCurrentContext(rest)

	case "/userdesc":
		if rest == "" {
			fmt.Fprintln(r.out, r.mgr.Log().UserDescription)
			return false, nil
		}
		return false, r.mgr.SetUserDescription(rest)

	case "/multi":
		state := r.mgr.ToggleMultiChat()
		fmt.Fprintln(r.out, "multi-chat:", state.MultiChat)
		return false, nil

	case "/params":
		delta := 1
		if len(args) >= 1 && args[0] == "prev" {
			delta = -1
		}
		fmt.Fprintln(r.out, "parameter set:", r.mgr.CycleParameterSet(delta))
		return false, nil

	case "/get", "/set":
		out, err := r.proc.Execute(strings.TrimPrefix(input, "/"))
		if err != nil {
			return false, err
		}
		fmt.Fprintln(r.out, out)
		return false, nil

	case "/duplicate":
		name := r.mgr.LogName() + "-copy"
		if len(args) >= 1 {
			name = args[0]
		}
		if _, err := r.mgr.DuplicateLog(name); err != nil {
			return false, err
		}
		fmt.Fprintln(r.out, "duplicated to", name)
		return false, nil

	case "/export":
		if len(args) < 1 {
			return false, fmt.Errorf("usage: /export <path.jsonl>")
		}
		if err := r.mgr.ExportDataset(args[0]); err != nil {
			return false, err
		}
		fmt.Fprintln(r.out, "exported to", args[0])
		return false, nil

	case "/import":
		if len(args) < 1 {
			return false, fmt.Errorf("usage: /import <path.txt>")
		}
		if err := r.mgr.ImportPlaintext(args[0]); err != nil {
			return false, err
		}
		r.printTranscript()
		return false, nil

	case "/save":
		return false, r.mgr.Save()

	case "/info":
		ch, err := r.mgr.Participant(model.SpeakerPrimary)
		if err != nil {
			return false, err
		}
		fmt.Fprintf(r.out, "%s\n\n%s\n", ch.Name, ch.Description)
		return false, nil

	default:
		return false, fmt.Errorf("unknown command %s (try /help)", cmd)
	}
}

func (r *REPL) retargetedTurn(ctx context.Context, kind turn.Kind) error {
	target, ok := r.mgr.TargetOfLastEntry()
	if !ok || target == model.SpeakerUser {
		target = model.SpeakerPrimary
	}
	req, err := r.mgr.StartTurn(target, kind)
	if err != nil {
		return err
	}
	return r.runTurn(ctx, req)
}

func (r *REPL) printTranscript() {
	log := r.mgr.Log()
	if log == nil {
		return
	}
	for _, entry := range log.Entries {
		r.printEntry(entry)
	}
}

func (r *REPL) printEntry(entry model.LogEntry) {
	fmt.Fprintln(r.out, entry.Render(r.mgr.DisplayName(entry.SpeakerID)))
}

func (r *REPL) printHelp() {
	help := [][2]string{
		{"<text>", "send a message"},
		{"/regen", "regenerate the last response"},
		{"/continue", "continue the last response"},
		{"/more", "additional response from the same speaker"},
		{"/speak <n>", "generate for participant n (multi-chat)"},
		{"/edit <i> <text>", "replace entry i"},
		{"/delete [i]", "delete entry i (default: last)"},
		{"/context [text]", "show or set the current context"},
		{"/userdesc [text]", "show or set the user description"},
		{"/multi", "toggle multi-chat mode"},
		{"/params [prev]", "cycle parameter sets"},
		{"/get, /set", "read or write session variables"},
		{"/duplicate [name]", "copy this chat under a new name"},
		{"/export <path>", "export training dataset (JSONL)"},
		{"/import <path>", "import a plaintext transcript"},
		{"/save", "save the chat log"},
		{"/info", "show the primary character"},
		{"/quit", "save and exit"},
	}
	for _, h := range help {
		fmt.Fprintf(r.out, "  %-18s %s\n", h[0], h[1])
	}
}
