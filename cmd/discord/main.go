// cmd/discord/main.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/keshon/cmdmux/internal/app"
	"github.com/keshon/cmdmux/internal/config"
	"github.com/keshon/cmdmux/internal/discord"
	zlog "github.com/rs/zerolog/log"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		zlog.Fatal().Err(err).Msg("failed to load .env")
	}
	cfg, err := config.New()
	if err != nil {
		zlog.Fatal().Err(err).Msg("invalid configuration")
	}
	if err := cfg.RequireDiscord(); err != nil {
		zlog.Fatal().Err(err).Msg("invalid configuration")
	}

	a, err := app.New(cfg)
	if err != nil {
		zlog.Fatal().Err(err).Msg("failed to start")
	}
	defer a.Close()
	log := a.Log

	log.Info().Str("env", cfg.Env.String()).Msg("starting discord bot")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := a.Start(ctx); err != nil {
		log.Error().Err(err).Msg("failed to start scheduler")
		return
	}

	bot, err := discord.New(discord.Options{
		Token:  cfg.DiscordToken,
		Prefix: cfg.CommandPrefix,
		Grants: a.Permissions,
		Logger: log.With().Str("component", "discord").Logger(),
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to create bot")
		return
	}
	bot.Attach(a.Dispatcher(bot.Host(a.Scheduler), a.Handlers()...))

	errCh := make(chan error, 1)
	go func() {
		if err := bot.Run(ctx); err != nil {
			errCh <- err
		}
		close(errCh)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case s := <-sig:
		log.Info().Str("signal", s.String()).Msg("received signal, shutting down")
		cancel()
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("discord bot error")
		}
		cancel()
	case <-ctx.Done():
	}

	log.Info().Msg("discord bot exited cleanly")
}
