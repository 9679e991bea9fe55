package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/sonroyaalmerol/jukebot/internal/autocomplete"
	"github.com/sonroyaalmerol/jukebot/internal/queue"
	"github.com/sonroyaalmerol/jukebot/internal/repository"
	"github.com/sonroyaalmerol/jukebot/internal/ui"
)

const (
	defaultPageSize = 10
	maxPageSize     = 30
	commandTimeout  = 2 * time.Minute
)

type CommandHandler struct {
	dispatcher *Dispatcher
	repo       *repository.Repo
	favs       *repository.FavoritesService
	suggest    *autocomplete.Suggester
}

func NewCommandHandler(dispatcher *Dispatcher, repo *repository.Repo, favs *repository.FavoritesService, suggest *autocomplete.Suggester) *CommandHandler {
	return &CommandHandler{dispatcher: dispatcher, repo: repo, favs: favs, suggest: suggest}
}

var teardownChoices = []*discordgo.ApplicationCommandOptionChoice{
	{Name: "disconnect", Value: queue.TeardownDisconnect.String()},
	{Name: "stay connected", Value: queue.TeardownStay.String()},
	{Name: "bot default", Value: "default"},
}

func commandList() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:        "play",
			Description: "Play a song from a URL",
			Options: []*discordgo.ApplicationCommandOption{
				{Name: "url", Description: "YouTube or Spotify track URL, or search", Type: discordgo.ApplicationCommandOptionString, Required: true, Autocomplete: true},
			},
		},
		{Name: "skip", Description: "Skip the current song"},
		{Name: "stop", Description: "Stop playback and clear the queue"},
		{
			Name:        "queue",
			Description: "Show the current queue",
			Options: []*discordgo.ApplicationCommandOption{
				{Name: "page", Description: "page of queue to show [default: 1]", Type: discordgo.ApplicationCommandOptionInteger},
				{Name: "page-size", Description: "how many items per page [default: 10, max: 30]", Type: discordgo.ApplicationCommandOptionInteger},
			},
		},
		{Name: "nowplaying", Description: "Show the current song"},
		{Name: "leave", Description: "Clear the queue and leave the voice channel"},
		{
			Name:        "favorites",
			Description: "Manage favorites",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "use",
					Description: "play a favorite",
					Options: []*discordgo.ApplicationCommandOption{
						{Name: "name", Description: "favorite name", Type: discordgo.ApplicationCommandOptionString, Required: true},
					},
				},
				{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "list", Description: "list favorites"},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "create",
					Description: "create favorite",
					Options: []*discordgo.ApplicationCommandOption{
						{Name: "name", Description: "name", Type: discordgo.ApplicationCommandOptionString, Required: true},
						{Name: "url", Description: "URL to play", Type: discordgo.ApplicationCommandOptionString, Required: true},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "remove",
					Description: "remove favorite",
					Options: []*discordgo.ApplicationCommandOption{
						{Name: "name", Description: "name", Type: discordgo.ApplicationCommandOptionString, Required: true},
					},
				},
			},
		},
		{
			Name:        "config",
			Description: "Configure bot settings",
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "get", Description: "show settings"},
				{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "set-drain-policy", Description: "what to do when the queue runs out", Options: []*discordgo.ApplicationCommandOption{
					{Name: "value", Description: "policy", Type: discordgo.ApplicationCommandOptionString, Required: true, Choices: teardownChoices},
				}},
				{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "set-stop-policy", Description: "what to do on /stop", Options: []*discordgo.ApplicationCommandOption{
					{Name: "value", Description: "policy", Type: discordgo.ApplicationCommandOptionString, Required: true, Choices: teardownChoices},
				}},
				{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "set-leave-if-no-listeners", Description: "leave when no listeners", Options: []*discordgo.ApplicationCommandOption{
					{Name: "value", Description: "true/false", Type: discordgo.ApplicationCommandOptionBoolean, Required: true},
				}},
				{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "set-queue-add-response-hidden", Description: "ephemeral queue add responses", Options: []*discordgo.ApplicationCommandOption{
					{Name: "value", Description: "true/false", Type: discordgo.ApplicationCommandOptionBoolean, Required: true},
				}},
			},
		},
	}
}

// RegisterCommands overwrites the command set, globally when guildID is empty.
func (h *CommandHandler) RegisterCommands(s *discordgo.Session, appID string, guildID string) error {
	start := time.Now()
	cmds := commandList()
	if _, err := s.ApplicationCommandBulkOverwrite(appID, guildID, cmds); err != nil {
		return fmt.Errorf("register commands: %w", err)
	}
	slog.Info("finished registering commands", "guildID", guildID, "count", len(cmds), "took", time.Since(start))
	return nil
}

func (h *CommandHandler) HandleInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
	case discordgo.InteractionApplicationCommandAutocomplete:
		h.handleAutocomplete(s, i)
		return
	default:
		slog.Debug("interaction: ignored type", "type", i.Type, "guildID", i.GuildID)
		return
	}
	r := newResponder(s, i)
	defer func() {
		if p := recover(); p != nil {
			slog.Error("command panic recovered", "guildID", i.GuildID, "panic", p, "stack", string(debug.Stack()))
			r.send("something went wrong, try again", true)
		}
	}()

	if i.GuildID == "" {
		r.send("commands only work in a server", true)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	data := i.ApplicationCommandData()
	slog.Debug("interaction: application command", "guildID", i.GuildID, "userID", userIDOf(i), "command", data.Name)

	switch data.Name {
	case "play":
		h.cmdPlay(ctx, s, r, stringOpt(data.Options, "url"))
	case "skip":
		res, err := h.dispatcher.Skip(i.GuildID)
		slog.Info("cmd skip", "guildID", i.GuildID, "userID", userIDOf(i), "err", err)
		r.send(skipReply(res, err), err != nil)
	case "stop":
		res, err := h.dispatcher.Stop(i.GuildID)
		slog.Info("cmd stop", "guildID", i.GuildID, "userID", userIDOf(i), "err", err)
		r.send(stopReply(res, err), err != nil)
	case "queue":
		h.cmdQueue(r, data.Options)
	case "nowplaying":
		h.cmdNowPlaying(r)
	case "leave":
		err := h.dispatcher.Leave(i.GuildID)
		slog.Info("cmd leave", "guildID", i.GuildID, "userID", userIDOf(i), "err", err)
		r.send(leaveReply(err), err != nil)
	case "favorites":
		h.cmdFavorites(ctx, s, r, data.Options)
	case "config":
		h.cmdConfig(ctx, r, data.Options)
	default:
		slog.Debug("unknown command", "name", data.Name, "guildID", i.GuildID, "userID", userIDOf(i))
		r.send("unknown command", true)
	}
}

func (h *CommandHandler) handleAutocomplete(s *discordgo.Session, i *discordgo.InteractionCreate) {
	defer func() {
		if p := recover(); p != nil {
			slog.Error("autocomplete panic recovered", "guildID", i.GuildID, "panic", p)
		}
	}()
	data := i.ApplicationCommandData()
	if data.Name != "play" || h.suggest == nil {
		return
	}

	// autocomplete answers must arrive within three seconds
	ctx, cancel := context.WithTimeout(context.Background(), 2500*time.Millisecond)
	defer cancel()

	choices := h.suggest.Suggest(ctx, stringOpt(data.Options, "url"), 10)
	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionApplicationCommandAutocompleteResult,
		Data: &discordgo.InteractionResponseData{Choices: choices},
	}); err != nil {
		slog.Debug("autocomplete respond failed", "guildID", i.GuildID, "err", err)
	}
}

func (h *CommandHandler) cmdPlay(ctx context.Context, s *discordgo.Session, r *responder, source string) {
	i := r.i
	chID, _ := userInVoice(s, i.GuildID, userIDOf(i))
	req := PlayRequest{GuildID: i.GuildID, VoiceChannelID: chID, UserID: userIDOf(i), Source: source}

	// input errors are answered right away, before the slow path
	if strings.TrimSpace(source) == "" || chID == "" {
		_, err := h.dispatcher.Play(ctx, req)
		r.send(playReply(PlayResult{}, err), true)
		return
	}

	hidden := false
	if set, err := h.repo.GetSettings(ctx, i.GuildID); err == nil {
		hidden = set.QAddEphemeral
	}
	r.deferReply(hidden)

	slog.Info("cmd play", "guildID", i.GuildID, "userID", req.UserID, "source", source)
	res, err := h.dispatcher.Play(ctx, req)
	if err != nil {
		slog.Info("play rejected", "guildID", i.GuildID, "source", source, "err", err)
	}
	r.send(playReply(res, err), hidden)
}

func (h *CommandHandler) cmdQueue(r *responder, opts []*discordgo.ApplicationCommandInteractionDataOption) {
	page := 1
	pageSize := defaultPageSize
	for _, o := range opts {
		switch o.Name {
		case "page":
			page = int(o.IntValue())
		case "page-size":
			pageSize = min(max(int(o.IntValue()), 1), maxPageSize)
		}
	}

	songs, playing, err := h.dispatcher.Queue(r.i.GuildID)
	if err != nil {
		r.send(ErrQueueEmpty.Error(), true)
		return
	}
	embed, err := ui.BuildQueueEmbed(songs, playing, page, pageSize)
	if err != nil {
		slog.Debug("build queue embed failed", "guildID", r.i.GuildID, "page", page, "pageSize", pageSize, "err", err)
		r.send(err.Error(), true)
		return
	}
	r.sendEmbed(embed, false)
}

func (h *CommandHandler) cmdNowPlaying(r *responder) {
	song, err := h.dispatcher.NowPlaying(r.i.GuildID)
	if err != nil {
		r.send(nowPlayingReply(song, err), true)
		return
	}
	r.sendEmbed(ui.BuildNowPlayingEmbed(&song), false)
}

func (h *CommandHandler) cmdFavorites(ctx context.Context, s *discordgo.Session, r *responder, opts []*discordgo.ApplicationCommandInteractionDataOption) {
	if len(opts) == 0 {
		r.send("pick a subcommand", true)
		return
	}
	i := r.i
	sub := opts[0]
	name := stringOpt(sub.Options, "name")

	switch sub.Name {
	case "create":
		err := h.favs.Create(ctx, i.GuildID, userIDOf(i), name, stringOpt(sub.Options, "url"))
		switch {
		case errors.Is(err, repository.ErrDuplicateFavorite):
			r.send("a favorite with that name already exists", true)
		case errors.Is(err, repository.ErrFavoriteInvalid):
			r.send("a favorite needs a name and a URL", true)
		case err != nil:
			slog.Warn("favorite create failed", "guildID", i.GuildID, "userID", userIDOf(i), "name", name, "err", err)
			r.send("failed to create favorite", true)
		default:
			slog.Info("favorite created", "guildID", i.GuildID, "userID", userIDOf(i), "name", name)
			r.send("👍 favorite created", false)
		}
	case "remove":
		f, err := h.favs.Use(ctx, i.GuildID, name)
		if err != nil {
			r.send("no favorite with that name exists", true)
			return
		}
		if f.Author != userIDOf(i) {
			r.send("you can only remove your own favorites", true)
			return
		}
		if err := h.favs.Remove(ctx, i.GuildID, name); err != nil {
			slog.Warn("favorite remove failed", "guildID", i.GuildID, "userID", userIDOf(i), "name", name, "err", err)
			r.send("failed to remove favorite", true)
			return
		}
		slog.Info("favorite removed", "guildID", i.GuildID, "userID", userIDOf(i), "name", name)
		r.send("👍 favorite removed", false)
	case "list":
		items, err := h.favs.List(ctx, i.GuildID)
		if err != nil {
			slog.Warn("favorite list failed", "guildID", i.GuildID, "err", err)
		}
		if len(items) == 0 {
			r.send("there aren't any favorites yet", false)
			return
		}
		var b strings.Builder
		for _, f := range items {
			fmt.Fprintf(&b, "• %s: %s (<@%s>)\n", f.Name, f.Query, f.Author)
		}
		r.send(b.String(), true)
	case "use":
		f, err := h.favs.Use(ctx, i.GuildID, name)
		if err != nil {
			r.send("no favorite with that name exists", true)
			return
		}
		slog.Info("favorite used", "guildID", i.GuildID, "userID", userIDOf(i), "name", name)
		h.cmdPlay(ctx, s, r, f.Query)
	default:
		r.send("unknown subcommand", true)
	}
}

func (h *CommandHandler) cmdConfig(ctx context.Context, r *responder, opts []*discordgo.ApplicationCommandInteractionDataOption) {
	if len(opts) == 0 {
		r.send("pick a subcommand", true)
		return
	}
	guildID := r.i.GuildID
	set, err := h.repo.UpsertSettings(ctx, guildID)
	if err != nil {
		slog.Error("get settings failed", "guildID", guildID, "err", err)
		r.send("failed to fetch config", true)
		return
	}

	sub := opts[0]
	switch sub.Name {
	case "get":
		p := h.repo.PolicyFor(ctx, guildID)
		msg := fmt.Sprintf(
			"Config\n- When the queue runs out: %s%s\n- On stop: %s%s\n- Leave if no listeners: %t\n- Add to queue responses hidden: %t",
			p.OnDrain, defaultMark(set.DrainPolicy),
			p.OnStop, defaultMark(set.StopPolicy),
			set.LeaveIfNoListeners,
			set.QAddEphemeral,
		)
		r.send(msg, false)
		return
	case "set-drain-policy", "set-stop-policy":
		t, err := parseTeardownOpt(stringOpt(sub.Options, "value"))
		if err != nil {
			r.send("unknown policy", true)
			return
		}
		if sub.Name == "set-drain-policy" {
			set.DrainPolicy = t
		} else {
			set.StopPolicy = t
		}
	case "set-leave-if-no-listeners":
		set.LeaveIfNoListeners = boolOpt(sub.Options, "value")
	case "set-queue-add-response-hidden":
		set.QAddEphemeral = boolOpt(sub.Options, "value")
	default:
		r.send("unknown subcommand", true)
		return
	}

	if err := h.repo.UpdateSettings(ctx, set); err != nil {
		slog.Error("update settings failed", "guildID", guildID, "key", sub.Name, "err", err)
		r.send("failed to update config", true)
		return
	}
	slog.Info("config updated", "guildID", guildID, "key", sub.Name)
	msg := "👍 setting updated"
	if sub.Name == "set-drain-policy" || sub.Name == "set-stop-policy" {
		msg += " (applies from the next time the bot joins)"
	}
	r.send(msg, false)
}

func defaultMark(override *queue.Teardown) string {
	if override == nil {
		return " (default)"
	}
	return ""
}

// parseTeardownOpt maps "default" to nil, clearing the guild override.
func parseTeardownOpt(v string) (*queue.Teardown, error) {
	if strings.EqualFold(strings.TrimSpace(v), "default") {
		return nil, nil
	}
	t, err := queue.ParseTeardown(v)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func stringOpt(opts []*discordgo.ApplicationCommandInteractionDataOption, name string) string {
	for _, o := range opts {
		if o.Name == name {
			return o.StringValue()
		}
	}
	return ""
}

func boolOpt(opts []*discordgo.ApplicationCommandInteractionDataOption, name string) bool {
	for _, o := range opts {
		if o.Name == name {
			return o.BoolValue()
		}
	}
	return false
}

func userInVoice(s *discordgo.Session, guildID, userID string) (channelID string, ok bool) {
	if vs, err := s.State.VoiceState(guildID, userID); err == nil && vs.ChannelID != "" {
		return vs.ChannelID, true
	}
	return "", false
}

func userIDOf(i *discordgo.InteractionCreate) string {
	if i == nil {
		return ""
	}
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}
