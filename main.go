// olladesk - a terminal chat client for local Ollama models.
//
// Copyright (c) 2025 The olladesk Authors
// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"olladesk/internal/config"
	"olladesk/internal/ollama"
	"olladesk/internal/session"
	"olladesk/internal/storage"
	"olladesk/internal/ui/chat"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	dbPath := flag.String("db", "", "chat database path (default ~/.olladesk/olladesk.db)")
	host := flag.String("host", "", "ollama base URL (default http://127.0.0.1:11434)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("olladesk %s (%s)\n", Version, GitCommit)
		return
	}

	if err := run(*dbPath, *host); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(dbPath, host string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if host != "" {
		cfg.OllamaURL = host
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	if cfg.DBPath == "" {
		cfg.DBPath, err = config.DefaultDBPath()
		if err != nil {
			return fmt.Errorf("resolve database path: %w", err)
		}
	}

	store, err := storage.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	// The store created the data directory, so the log can live there.
	log := newLogger(cfg.DBPath)

	client := ollama.NewClientWithConfig(ollama.ClientConfig{
		BaseURL: cfg.OllamaURL,
		Timeout: cfg.RequestTimeout(),
	})

	engine := session.New(store, session.WrapClient(client), log)
	if err := engine.LoadChats(); err != nil {
		log.Warn("starting with empty history", "error", err)
	}

	startCtx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeout())
	engine.LoadModels(startCtx)
	cancel()

	program := tea.NewProgram(chat.New(engine), tea.WithAltScreen())

	// Every engine snapshot flows into the update loop as a message.
	// Snapshots are complete state, so only the latest one needs
	// delivering; coalescing also keeps the subscriber from blocking
	// when the UI publishes a mutation from inside its own update.
	snaps := make(chan session.Snapshot, 1)
	sub := engine.Subscribe(func(snap session.Snapshot) {
		for {
			select {
			case snaps <- snap:
				return
			default:
				select {
				case <-snaps:
				default:
				}
			}
		}
	})
	defer engine.Unsubscribe(sub)
	go func() {
		for snap := range snaps {
			program.Send(chat.SnapshotMsg(snap))
		}
	}()

	// Background connectivity probe; stops with the program.
	probeCtx, stopProbe := context.WithCancel(context.Background())
	defer stopProbe()
	go probe(probeCtx, engine, cfg.ProbeInterval(), cfg.RequestTimeout())

	_, err = program.Run()
	return err
}

// probe re-checks backend liveness on a fixed interval so the UI can
// show connectivity changes without user action.
func probe(ctx context.Context, engine *session.Engine, interval, timeout time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			checkCtx, cancel := context.WithTimeout(ctx, timeout)
			engine.CheckConnection(checkCtx)
			cancel()
		}
	}
}

// newLogger writes structured logs next to the database. Logging to the
// terminal would corrupt the TUI, so failures fall back to discarding.
func newLogger(dbPath string) *slog.Logger {
	logPath := filepath.Join(filepath.Dir(dbPath), "olladesk.log")
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return slog.New(slog.NewJSONHandler(f, nil))
}
