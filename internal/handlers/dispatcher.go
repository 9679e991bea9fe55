package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sonroyaalmerol/jukebot/internal/queue"
)

var (
	ErrNoSource     = errors.New("no source given")
	ErrNotInVoice   = errors.New("caller not in a voice channel")
	ErrResolve      = errors.New("could not resolve source")
	ErrConnect      = errors.New("could not connect to voice")
	ErrQueueEmpty   = errors.New("queue is empty")
	ErrNotConnected = errors.New("not connected")
)

// enqueueAttempts bounds retries when a play lands on a queue that closed
// between lookup and enqueue.
const enqueueAttempts = 3

type PlayRequest struct {
	GuildID        string
	VoiceChannelID string
	UserID         string
	Source         string
}

type PlayResult struct {
	Song     queue.Song
	Started  bool
	Position int
}

// Dispatcher runs commands against the queue registry. It holds no Discord
// state so every command path can be driven directly in tests.
type Dispatcher struct {
	registry       *queue.Registry
	resolver       queue.Resolver
	resolveTimeout time.Duration
}

func NewDispatcher(registry *queue.Registry, resolver queue.Resolver, resolveTimeout time.Duration) *Dispatcher {
	if resolveTimeout <= 0 {
		resolveTimeout = time.Minute
	}
	return &Dispatcher{registry: registry, resolver: resolver, resolveTimeout: resolveTimeout}
}

func (d *Dispatcher) Registry() *queue.Registry { return d.registry }

// Play resolves req.Source and appends it to the guild's queue, joining the
// caller's channel when the guild has no open queue. Nothing is touched until
// resolution has succeeded.
func (d *Dispatcher) Play(ctx context.Context, req PlayRequest) (PlayResult, error) {
	source := strings.TrimSpace(req.Source)
	if source == "" {
		return PlayResult{}, ErrNoSource
	}
	if req.VoiceChannelID == "" {
		return PlayResult{}, ErrNotInVoice
	}

	rctx, cancel := context.WithTimeout(ctx, d.resolveTimeout)
	track, err := d.resolver.Resolve(rctx, source)
	cancel()
	if err != nil {
		slog.Info("resolve failed", "guildID", req.GuildID, "source", source, "err", err)
		return PlayResult{}, fmt.Errorf("%w: %w", ErrResolve, err)
	}
	song := queue.NewSong(track, req.UserID)

	for attempt := 1; ; attempt++ {
		q, err := d.registry.GetOrCreate(ctx, req.GuildID, req.VoiceChannelID)
		if err != nil {
			slog.Warn("voice connect failed", "guildID", req.GuildID, "channelID", req.VoiceChannelID, "err", err)
			return PlayResult{}, fmt.Errorf("%w: %w", ErrConnect, err)
		}

		res, err := q.Enqueue(song)
		if errors.Is(err, queue.ErrQueueClosed) && attempt < enqueueAttempts {
			slog.Debug("queue closed during play, retrying", "guildID", req.GuildID, "attempt", attempt)
			continue
		}
		if err != nil {
			return PlayResult{Song: song}, err
		}
		return PlayResult{Song: song, Started: res.Started, Position: res.Position}, nil
	}
}

func (d *Dispatcher) Skip(guildID string) (queue.SkipResult, error) {
	q := d.registry.Get(guildID)
	if q == nil {
		return queue.SkipResult{}, queue.ErrNothingPlaying
	}
	return q.Skip()
}

func (d *Dispatcher) Stop(guildID string) (queue.StopResult, error) {
	q := d.registry.Get(guildID)
	if q == nil {
		return queue.StopResult{}, queue.ErrNothingPlaying
	}
	return q.Stop()
}

// Queue returns the songs in play order and whether the front one is playing.
func (d *Dispatcher) Queue(guildID string) ([]queue.Song, bool, error) {
	q := d.registry.Get(guildID)
	if q == nil {
		return nil, false, ErrQueueEmpty
	}
	songs := q.Songs()
	if len(songs) == 0 {
		return nil, false, ErrQueueEmpty
	}
	return songs, q.State() == queue.StatePlaying, nil
}

func (d *Dispatcher) NowPlaying(guildID string) (queue.Song, error) {
	q := d.registry.Get(guildID)
	if q == nil {
		return queue.Song{}, queue.ErrNothingPlaying
	}
	s, ok := q.NowPlaying()
	if !ok {
		return queue.Song{}, queue.ErrNothingPlaying
	}
	return s, nil
}

func (d *Dispatcher) Leave(guildID string) error {
	if !d.registry.Remove(guildID) {
		return ErrNotConnected
	}
	slog.Info("left voice channel", "guildID", guildID)
	return nil
}
