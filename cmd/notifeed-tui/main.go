package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"vn.io.arda/notifeed/internal/application"
	"vn.io.arda/notifeed/internal/auth"
	"vn.io.arda/notifeed/internal/config"
	"vn.io.arda/notifeed/internal/presenter"
	transporthttp "vn.io.arda/notifeed/internal/transport/http"
	"vn.io.arda/notifeed/internal/ui"

	// Relay transports register themselves with the push registry.
	_ "vn.io.arda/notifeed/internal/infrastructure/postgres"
	_ "vn.io.arda/notifeed/internal/infrastructure/redis"
	_ "vn.io.arda/notifeed/internal/kafka"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "notifeed-tui:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	// The terminal belongs to the view, so logs go to a file.
	logFile, err := openLogFile()
	if err != nil {
		return err
	}
	defer logFile.Close()
	log.Logger = zerolog.New(logFile).With().Timestamp().Logger()
	if cfg.Server.IsProduction() {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	tokens, err := auth.FromConfig(cfg.Auth)
	if err != nil {
		return fmt.Errorf("token source: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := transporthttp.NewHub()
	changes, unsubscribe := hub.Subscribe()
	defer unsubscribe()

	opts := application.OptionsFromConfig(cfg)
	opts.Hub = hub
	if cfg.Desktop.Enabled {
		opts.Notifier = presenter.NewDesktopNotifier(cfg.Desktop.Icon, presenter.Permission(cfg.Desktop.Permission), cfg.Desktop.GrantOnRequest)
	}

	session := application.New(opts)
	session.Start(ctx)
	defer session.Close()

	go func() {
		if err := session.Follow(ctx, tokens); err != nil {
			log.Error().Err(err).Str("source", tokens.Name()).Msg("token source stopped")
		}
	}()

	p := tea.NewProgram(ui.New(session, changes), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run view: %w", err)
	}
	return nil
}

func openLogFile() (*os.File, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	dir = filepath.Join(dir, "arda-notifeed")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(dir, "tui.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}
