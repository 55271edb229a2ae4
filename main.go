// sentinel - terminal chat with AI characters.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/jeranaias/sentinel-tui/internal/config"
	"github.com/jeranaias/sentinel-tui/internal/embedding"
	"github.com/jeranaias/sentinel-tui/internal/model"
	"github.com/jeranaias/sentinel-tui/internal/repl"
	"github.com/jeranaias/sentinel-tui/internal/session"
	"github.com/jeranaias/sentinel-tui/internal/ui/chat"
)

// Version information (set at build time)
var (
	Version   = "0.2.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func main() {
	var (
		configPath    = flag.String("config", "", "path to the configuration file")
		characterPath = flag.String("character", "", "character file to open")
		logName       = flag.String("log", "", "saved chat to resume (requires -character)")
		noTUI         = flag.Bool("no-tui", false, "plain line-mode interface")
		listChars     = flag.Bool("list", false, "list available characters and exit")
		showVersion   = flag.Bool("version", false, "print version and exit")
		debug         = flag.Bool("debug", false, "write request tracing to debug.log in the config dir")
	)
	flag.Parse()

	setupLogging(*debug)

	if *showVersion {
		fmt.Printf("sentinel %s (%s, built %s)\n", Version, GitCommit, BuildDate)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fatal(err)
	}

	if *listChars {
		listCharacters(cfg)
		return
	}

	mgr := session.NewManager(cfg)
	wireSimilarity(cfg, mgr)

	// An explicit -character opens the session up front; otherwise the TUI
	// starts on its picker.
	opened := false
	if *characterPath != "" {
		name := *logName
		if name != "" {
			err = mgr.OpenExisting(*characterPath, name)
		} else {
			err = mgr.OpenNew(*characterPath, time.Now().Format("2006-01-02-150405"))
		}
		if err != nil {
			fatal(err)
		}
		opened = true
	}

	if *noTUI || !term.IsTerminal(int(os.Stdout.Fd())) {
		if !opened {
			fatal(fmt.Errorf("line mode needs -character (try -list)"))
		}
		if err := repl.New(cfg, mgr).Run(context.Background()); err != nil {
			fatal(err)
		}
		return
	}

	runTUI(cfg, mgr, opened)
}

// runTUI starts the Bubble Tea interface.
func runTUI(cfg *config.Config, mgr *session.Manager, opened bool) {
	var opts []chat.Option
	if opened {
		opts = append(opts, chat.WithSession())
	}

	var memoryPaths []string
	if log := mgr.Log(); log != nil {
		memoryPaths = log.MemoryFiles
	}
	if watcher, err := chat.NewWatcher(cfg.CharactersDir, memoryPaths); err == nil {
		opts = append(opts, chat.WithWatcher(watcher))
	} else {
		fmt.Fprintf(os.Stderr, "warning: file watcher unavailable: %v\n", err)
	}

	m, err := chat.New(cfg, mgr, opts...)
	if err != nil {
		fatal(err)
	}

	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fatal(err)
	}
}

// setupLogging routes the standard logger to a file under the config dir
// when -debug is set. The TUI owns the terminal, so without -debug the
// logger writes nowhere.
func setupLogging(debug bool) {
	if !debug {
		log.SetOutput(io.Discard)
		return
	}
	dir, err := config.ConfigDir()
	if err != nil {
		log.SetOutput(io.Discard)
		return
	}
	f, err := os.OpenFile(filepath.Join(dir, "debug.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		log.SetOutput(io.Discard)
		return
	}
	log.SetOutput(f)
}

// wireSimilarity attaches the optional embedding engine when an embedding
// model is configured.
func wireSimilarity(cfg *config.Config, mgr *session.Manager) {
	if cfg.EmbeddingModel == "" {
		return
	}

	cachePath := cfg.EmbeddingCachePath
	if cachePath == "" {
		dir, err := config.ConfigDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: similarity disabled: %v\n", err)
			return
		}
		cachePath = filepath.Join(dir, "embeddings.db")
	}

	cache, err := embedding.OpenCache(cachePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: similarity disabled: %v\n", err)
		return
	}

	endpoint := model.DefaultLocalEndpoint
	if mc := cfg.ModelByName(cfg.DefaultModel); mc != nil && mc.Endpoint != "" {
		endpoint = mc.Endpoint
	}

	client := embedding.NewClient(endpoint, cfg.EmbeddingModel)
	mgr.SetSimilarity(embedding.NewEngine(client, cache, cfg.EmbeddingModel))
}

// listCharacters prints the configured character roster.
func listCharacters(cfg *config.Config) {
	paths, err := config.ListCharacters(cfg.CharactersDir)
	if err != nil {
		fatal(err)
	}
	if len(paths) == 0 {
		fmt.Printf("no characters in %s\n", cfg.CharactersDir)
		return
	}
	for _, path := range paths {
		label := strings.TrimSuffix(filepath.Base(path), ".toml")
		if ch, err := config.LoadCharacter(path); err == nil {
			label = ch.Name
		}
		fmt.Printf("%-24s %s\n", label, path)
	}
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "sentinel: %v\n", err)
	os.Exit(1)
}
