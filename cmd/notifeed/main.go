package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"vn.io.arda/notifeed/internal/application"
	"vn.io.arda/notifeed/internal/auth"
	"vn.io.arda/notifeed/internal/config"
	"vn.io.arda/notifeed/internal/presenter"
	transporthttp "vn.io.arda/notifeed/internal/transport/http"

	// Relay transports register themselves with the push registry.
	_ "vn.io.arda/notifeed/internal/infrastructure/postgres"
	_ "vn.io.arda/notifeed/internal/infrastructure/redis"
	_ "vn.io.arda/notifeed/internal/kafka"
)

func main() {
	// ── Logging ──────────────────────────────────────────────────────────────
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// ── Config ───────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	if cfg.Server.IsProduction() {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	log.Info().Str("env", cfg.Server.Env).Str("port", cfg.Server.Port).Strs("push", cfg.Push.Order).Msg("starting arda-notifeed")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ── Token source ─────────────────────────────────────────────────────────
	tokens, err := auth.FromConfig(cfg.Auth)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create token source")
	}

	// ── Session & Hub ────────────────────────────────────────────────────────
	hub := transporthttp.NewHub()

	opts := application.OptionsFromConfig(cfg)
	opts.Hub = hub
	opts.Notifier = desktopNotifier(cfg.Desktop)

	session := application.New(opts)
	session.Start(ctx)
	defer session.Close()

	go func() {
		if err := session.Follow(ctx, tokens); err != nil {
			log.Error().Err(err).Str("source", tokens.Name()).Msg("token source stopped")
		}
	}()
	log.Info().Str("source", tokens.Name()).Msg("following access token")

	// ── HTTP Server ──────────────────────────────────────────────────────────
	handler := transporthttp.NewHandler(session, hub)
	router := transporthttp.NewRouter(handler, cfg.Console.APIKey)
	if cfg.Console.APIKey == "" {
		log.Warn().Msg("console API key is empty, console is unauthenticated")
	}

	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("console listening")
		if err := router.Start(":" + cfg.Server.Port); err != nil {
			log.Info().Msg("console server stopped")
		}
	}()

	// ── Graceful Shutdown ────────────────────────────────────────────────────
	<-ctx.Done()
	log.Info().Msg("shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := router.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("console server shutdown error")
	}

	log.Info().Msg("arda-notifeed stopped")
}

func desktopNotifier(cfg config.DesktopConfig) presenter.Notifier {
	if !cfg.Enabled {
		return presenter.NopNotifier{}
	}
	return presenter.NewDesktopNotifier(cfg.Icon, presenter.Permission(cfg.Permission), cfg.GrantOnRequest)
}
