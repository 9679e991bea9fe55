package handlers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/sonroyaalmerol/jukebot/internal/autocomplete"
	"github.com/sonroyaalmerol/jukebot/internal/config"
	"github.com/sonroyaalmerol/jukebot/internal/queue"
	"github.com/sonroyaalmerol/jukebot/internal/repository"
	"github.com/sonroyaalmerol/jukebot/internal/stream"
)

type Bot struct {
	cfg      *config.Config
	repo     *repository.Repo
	resolver queue.Resolver
	suggest  *autocomplete.Suggester
}

func NewBot(cfg *config.Config, repo *repository.Repo, resolver queue.Resolver, suggest *autocomplete.Suggester) *Bot {
	return &Bot{cfg: cfg, repo: repo, resolver: resolver, suggest: suggest}
}

func (b *Bot) Run(ctx context.Context) error {
	dg, err := discordgo.New("Bot " + b.cfg.DiscordToken)
	if err != nil {
		return err
	}
	dg.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildVoiceStates

	registry := queue.NewRegistry(stream.NewVoiceConnector(dg), queue.WithPolicySource(b.repo))
	dispatcher := NewDispatcher(registry, b.resolver, b.cfg.ResolveTimeout)
	cmd := NewCommandHandler(dispatcher, b.repo, repository.NewFavoritesService(b.repo), b.suggest)

	// On ready: register commands depending on configuration
	dg.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		slog.Info("connected", "user", s.State.User.Username, "guilds", len(r.Guilds))
		b.updatePresence(s)
		appID := s.State.User.ID

		if b.cfg.RegisterCommandsOnBot {
			if err := cmd.RegisterCommands(s, appID, ""); err != nil {
				slog.Error("register global commands", "err", err)
			}
			return
		}

		var wg sync.WaitGroup
		for _, g := range r.Guilds {
			wg.Add(1)
			go func(guildID string) {
				defer wg.Done()
				if err := cmd.RegisterCommands(s, appID, guildID); err != nil {
					slog.Error("register guild commands", "guildID", guildID, "err", err)
				}
			}(g.ID)
		}
		wg.Wait()

		if _, err := s.ApplicationCommandBulkOverwrite(appID, "", []*discordgo.ApplicationCommand{}); err != nil {
			slog.Error("clear global commands", "err", err)
		}
		slog.Info("registered commands on all guilds")
	})

	// If registering per-guild, register on new guilds too
	dg.AddHandler(func(s *discordgo.Session, g *discordgo.GuildCreate) {
		if b.cfg.RegisterCommandsOnBot || s.State.User == nil {
			return
		}
		if err := cmd.RegisterCommands(s, s.State.User.ID, g.ID); err != nil {
			slog.Error("register guild commands on join", "guildID", g.ID, "err", err)
		}
	})

	dg.AddHandler(cmd.HandleInteraction)

	dg.AddHandler(func(s *discordgo.Session, vs *discordgo.VoiceStateUpdate) {
		b.leaveIfAlone(ctx, s, registry, vs.GuildID)
	})

	if err := dg.Open(); err != nil {
		return fmt.Errorf("open gateway: %w", err)
	}

	<-ctx.Done()
	slog.Info("shutting down", "queues", registry.Len())
	registry.Close()
	return dg.Close()
}

func (b *Bot) updatePresence(s *discordgo.Session) {
	err := s.UpdateStatusComplex(discordgo.UpdateStatusData{
		Status: b.cfg.BotStatus,
		Activities: []*discordgo.Activity{
			{Name: b.cfg.BotActivity, Type: discordgo.ActivityTypeListening},
		},
	})
	if err != nil {
		slog.Warn("update presence failed", "err", err)
	}
}

// leaveIfAlone removes the guild's queue when nobody but bots is left in its
// voice channel and the guild has not opted out.
func (b *Bot) leaveIfAlone(ctx context.Context, s *discordgo.Session, registry *queue.Registry, guildID string) {
	q := registry.Get(guildID)
	if q == nil || q.Closed() {
		return
	}
	set, err := b.repo.GetSettings(ctx, guildID)
	if !leaveAllowed(set, err) {
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			slog.Warn("settings lookup failed, staying", "guildID", guildID, "err", err)
		}
		return
	}
	if listeners(s, guildID, q.ChannelID()) > 0 {
		return
	}
	slog.Info("no listeners left", "guildID", guildID, "channelID", q.ChannelID())
	registry.Remove(guildID)
}

// leaveAllowed reports whether a guild's settings permit leaving an empty
// channel. A guild without a settings row gets the default, which is to leave.
// Any other lookup failure keeps the bot in place.
func leaveAllowed(set *repository.Settings, err error) bool {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return true
	case err != nil || set == nil:
		return false
	default:
		return set.LeaveIfNoListeners
	}
}

func listeners(s *discordgo.Session, guildID, channelID string) int {
	g, _ := s.State.Guild(guildID)
	if g == nil {
		// unknown state; assume someone is there
		return 1
	}
	n := 0
	for _, vs := range g.VoiceStates {
		if vs.ChannelID != channelID {
			continue
		}
		if vs.Member != nil && vs.Member.User != nil {
			if !vs.Member.User.Bot {
				n++
			}
			continue
		}
		m, _ := s.State.Member(guildID, vs.UserID)
		if m == nil || m.User == nil || !m.User.Bot {
			n++
		}
	}
	return n
}
