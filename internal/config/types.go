package config

import (
	"log/slog"
	"time"

	"github.com/sonroyaalmerol/jukebot/internal/queue"
)

type Config struct {
	DiscordToken          string `env:"DISCORD_TOKEN,required"`
	SpotifyClientID       string `env:"SPOTIFY_CLIENT_ID"`
	SpotifyClientSecret   string `env:"SPOTIFY_CLIENT_SECRET"`
	DataDir               string `env:"DATA_DIR" envDefault:"./data"`
	BotStatus             string `env:"BOT_STATUS" envDefault:"online"` // online/dnd/idle/invisible
	BotActivity           string `env:"BOT_ACTIVITY" envDefault:"music"`
	RegisterCommandsOnBot bool   `env:"REGISTER_COMMANDS_ON_BOT" envDefault:"false"`

	DrainPolicy string `env:"DRAIN_POLICY" envDefault:"disconnect"`
	StopPolicy  string `env:"STOP_POLICY" envDefault:"disconnect"`

	ResolveTimeout   time.Duration `env:"RESOLVE_TIMEOUT" envDefault:"60s"`
	ResolveCacheTTL  time.Duration `env:"RESOLVE_CACHE_TTL" envDefault:"1h"`
	ResolveCacheSize int           `env:"RESOLVE_CACHE_SIZE" envDefault:"256"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// filled by validate
	Policy queue.Policy `env:"-"`
	Level  slog.Level   `env:"-"`
}
