package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/sonroyaalmerol/jukebot/internal/queue"
)

type ErrConfig string

func (e ErrConfig) Error() string { return string(e) }

// LoadConfig reads .env when present, then the process environment.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("could not read .env", "err", err)
	}
	cfg, err := parse(env.Options{})
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return cfg, nil
}

func parse(opts env.Options) (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		var missing env.EnvVarIsNotSetError
		if errors.As(err, &missing) {
			return nil, ErrConfig(fmt.Sprintf("%s required", missing.Key))
		}
		var agg env.AggregateError
		if errors.As(err, &agg) {
			for _, e := range agg.Errors {
				if errors.As(e, &missing) {
					return nil, ErrConfig(fmt.Sprintf("%s required", missing.Key))
				}
			}
		}
		return nil, ErrConfig(err.Error())
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.DiscordToken) == "" {
		return ErrConfig("DISCORD_TOKEN required")
	}

	drain, err := queue.ParseTeardown(c.DrainPolicy)
	if err != nil {
		return ErrConfig("DRAIN_POLICY: " + err.Error())
	}
	stop, err := queue.ParseTeardown(c.StopPolicy)
	if err != nil {
		return ErrConfig("STOP_POLICY: " + err.Error())
	}
	c.Policy = queue.Policy{OnDrain: drain, OnStop: stop}

	if err := c.Level.UnmarshalText([]byte(strings.TrimSpace(c.LogLevel))); err != nil {
		return ErrConfig("LOG_LEVEL: " + err.Error())
	}

	switch strings.ToLower(c.BotStatus) {
	case "online", "dnd", "idle", "invisible":
		c.BotStatus = strings.ToLower(c.BotStatus)
	default:
		return ErrConfig(fmt.Sprintf("BOT_STATUS: unknown status %q", c.BotStatus))
	}

	if c.ResolveTimeout <= 0 {
		return ErrConfig("RESOLVE_TIMEOUT must be positive")
	}
	if c.ResolveCacheSize <= 0 {
		return ErrConfig("RESOLVE_CACHE_SIZE must be positive")
	}
	return nil
}
