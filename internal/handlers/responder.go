package handlers

import (
	"log/slog"
	"sync"

	"github.com/bwmarrin/discordgo"
)

// responder answers one interaction exactly once. After deferReply the final
// answer is delivered by editing the deferred response.
type responder struct {
	s *discordgo.Session
	i *discordgo.InteractionCreate

	mu       sync.Mutex
	deferred bool
	done     bool
}

func newResponder(s *discordgo.Session, i *discordgo.InteractionCreate) *responder {
	return &responder{s: s, i: i}
}

func flagsFor(ephemeral bool) discordgo.MessageFlags {
	if ephemeral {
		return discordgo.MessageFlagsEphemeral
	}
	return 0
}

func (r *responder) deferReply(ephemeral bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.deferred || r.done {
		return
	}
	if err := r.s.InteractionRespond(r.i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: flagsFor(ephemeral)},
	}); err != nil {
		slog.Warn("defer reply failed", "guildID", r.i.GuildID, "userID", userIDOf(r.i), "err", err)
		return
	}
	r.deferred = true
}

func (r *responder) send(content string, ephemeral bool) {
	r.respond(&discordgo.InteractionResponseData{Content: content, Flags: flagsFor(ephemeral)})
}

func (r *responder) sendEmbed(embed *discordgo.MessageEmbed, ephemeral bool) {
	r.respond(&discordgo.InteractionResponseData{
		Embeds: []*discordgo.MessageEmbed{embed},
		Flags:  flagsFor(ephemeral),
	})
}

func (r *responder) respond(data *discordgo.InteractionResponseData) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done {
		return
	}
	r.done = true

	if r.deferred {
		edit := &discordgo.WebhookEdit{}
		if data.Content != "" {
			edit.Content = &data.Content
		}
		if len(data.Embeds) > 0 {
			edit.Embeds = &data.Embeds
		}
		if _, err := r.s.InteractionResponseEdit(r.i.Interaction, edit); err != nil {
			slog.Warn("edit reply failed", "guildID", r.i.GuildID, "userID", userIDOf(r.i), "err", err)
		}
		return
	}

	if err := r.s.InteractionRespond(r.i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	}); err != nil {
		slog.Warn("reply failed", "guildID", r.i.GuildID, "userID", userIDOf(r.i), "err", err)
	}
}
