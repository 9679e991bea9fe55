package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/sonroyaalmerol/jukebot/internal/autocomplete"
	"github.com/sonroyaalmerol/jukebot/internal/cache"
	"github.com/sonroyaalmerol/jukebot/internal/config"
	"github.com/sonroyaalmerol/jukebot/internal/handlers"
	"github.com/sonroyaalmerol/jukebot/internal/repository"
	"github.com/sonroyaalmerol/jukebot/internal/spotify"
	"github.com/sonroyaalmerol/jukebot/internal/stream"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Level})))

	db, err := repository.OpenDB(cfg.DataDir)
	if err != nil {
		slog.Error("open database", "err", err)
		os.Exit(1)
	}
	defer db.Close()
	repo := repository.NewRepo(db, cfg.Policy)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	sp, err := spotify.NewClientCredentials(ctx, cfg.SpotifyClientID, cfg.SpotifyClientSecret)
	if err != nil {
		if !errors.Is(err, spotify.ErrNoCredential) {
			slog.Warn("spotify disabled", "err", err)
		}
		sp = nil
	}
	resolver := cache.NewResolveCache(
		spotify.NewResolver(sp, stream.NewYtdlpResolver()),
		cfg.ResolveCacheSize,
		cfg.ResolveCacheTTL,
		cfg.ResolveTimeout,
	)

	bot := handlers.NewBot(cfg, repo, resolver, autocomplete.NewSuggester(sp))
	if err := bot.Run(ctx); err != nil {
		slog.Error("bot stopped", "err", err)
		os.Exit(1)
	}
}
