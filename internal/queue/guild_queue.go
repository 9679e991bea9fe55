package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
)

var ErrPlaybackFailed = errors.New("playback failed")

// GuildQueue owns the songs of one guild and the voice connection they are
// played on. All mutations of songs go through mu.
type GuildQueue struct {
	guildID   string
	channelID string
	policy    Policy
	onClosed  func(*GuildQueue)

	// lives as long as the queue; playbacks are started with it
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	conn     AudioChannel
	songs    []Song
	state    PlayerState
	playback uint64
	closed   bool
}

func newGuildQueue(guildID, channelID string, policy Policy, onClosed func(*GuildQueue)) *GuildQueue {
	ctx, cancel := context.WithCancel(context.Background())
	return &GuildQueue{
		guildID:   guildID,
		channelID: channelID,
		policy:    policy,
		onClosed:  onClosed,
		ctx:       ctx,
		cancel:    cancel,
		state:     StateIdle,
	}
}

func (q *GuildQueue) GuildID() string   { return q.guildID }
func (q *GuildQueue) ChannelID() string { return q.channelID }
func (q *GuildQueue) Policy() Policy    { return q.policy }

func (q *GuildQueue) attach(conn AudioChannel) {
	q.mu.Lock()
	q.conn = conn
	q.mu.Unlock()
}

// Enqueue appends song and starts it when the player is idle.
func (q *GuildQueue) Enqueue(song Song) (EnqueueResult, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return EnqueueResult{}, ErrQueueClosed
	}

	q.songs = append(q.songs, song)
	res := EnqueueResult{Position: len(q.songs) - 1}
	slog.Debug("song enqueued", "guildID", q.guildID, "title", song.Title, "position", res.Position, "state", q.state)

	if q.state == StatePlaying {
		return res, nil
	}

	// Idle with songs pending: either a fresh queue or one that drained
	// while staying connected.
	q.playFrontLocked()
	if q.state == StatePlaying && len(q.songs) > 0 && q.songs[0].ID == song.ID {
		res.Position = 0
		res.Started = true
		return res, nil
	}
	if !slices.ContainsFunc(q.songs, func(s Song) bool { return s.ID == song.ID }) {
		return EnqueueResult{}, fmt.Errorf("%w: %s", ErrPlaybackFailed, song.Title)
	}
	return res, nil
}

// Skip drops the playing song and starts the next one, if any.
func (q *GuildQueue) Skip() (SkipResult, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed || q.state != StatePlaying || len(q.songs) == 0 {
		return SkipResult{}, ErrNothingPlaying
	}

	res := SkipResult{Skipped: q.songs[0]}
	// the terminal event of the stopped playback is stale from here on
	q.playback = 0
	q.conn.Stop()
	q.advanceLocked(TriggerSkip)

	if q.state == StatePlaying && len(q.songs) > 0 {
		next := q.songs[0]
		res.Next = &next
	}
	return res, nil
}

// Stop clears the queue and stops playback. Under TeardownDisconnect the
// queue is closed and leaves the voice channel.
func (q *GuildQueue) Stop() (StopResult, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed || (q.state != StatePlaying && len(q.songs) == 0) {
		return StopResult{}, ErrNothingPlaying
	}

	res := StopResult{Cleared: len(q.songs)}
	q.songs = nil
	q.playback = 0
	q.state = StateIdle
	q.conn.Stop()
	slog.Info("queue stopped", "guildID", q.guildID, "cleared", res.Cleared, "policy", q.policy.OnStop)

	if q.policy.OnStop == TeardownDisconnect {
		q.teardownLocked("stopped")
		res.Left = true
	}
	return res, nil
}

// Close stops playback and releases the connection regardless of policy.
func (q *GuildQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.songs = nil
	q.playback = 0
	q.state = StateIdle
	if q.conn != nil {
		q.conn.Stop()
	}
	q.teardownLocked("closed")
}

func (q *GuildQueue) handleStatus(ev StatusEvent) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed || ev.Playback == 0 || ev.Playback != q.playback {
		slog.Debug("stale status event ignored", "guildID", q.guildID, "status", ev.Status, "playback", ev.Playback, "current", q.playback)
		return
	}

	switch ev.Status {
	case StatusPlaying:
		slog.Debug("playback started", "guildID", q.guildID, "playback", ev.Playback)
	case StatusIdle:
		q.advanceLocked(TriggerIdle)
	case StatusError:
		slog.Warn("playback error", "guildID", q.guildID, "playback", ev.Playback, "err", ev.Err)
		q.advanceLocked(TriggerError)
	}
}

// advanceLocked removes the front song and plays whatever follows. It is the
// single transition for idle, error and skip. Caller must hold q.mu.
func (q *GuildQueue) advanceLocked(trigger Trigger) {
	q.playback = 0
	q.state = StateIdle

	if len(q.songs) > 0 {
		front := q.songs[0]
		q.songs[0] = Song{}
		q.songs = q.songs[1:]
		slog.Info("song left queue", "guildID", q.guildID, "title", front.Title, "trigger", trigger, "remaining", len(q.songs))
	}

	q.playFrontLocked()
}

// playFrontLocked starts the front song. Songs whose playback cannot be
// started are dropped like songs that failed mid-stream. Caller must hold q.mu.
func (q *GuildQueue) playFrontLocked() {
	for len(q.songs) > 0 {
		front := q.songs[0]
		id, err := q.conn.Play(q.ctx, front.StreamURL)
		if err == nil {
			q.playback = id
			q.state = StatePlaying
			slog.Info("now playing", "guildID", q.guildID, "title", front.Title, "playback", id, "queued", len(q.songs)-1)
			return
		}
		slog.Warn("could not start playback, dropping song", "guildID", q.guildID, "title", front.Title, "err", err)
		q.songs[0] = Song{}
		q.songs = q.songs[1:]
	}

	q.songs = nil
	q.playback = 0
	q.state = StateIdle
	slog.Info("queue drained", "guildID", q.guildID, "policy", q.policy.OnDrain)

	if q.policy.OnDrain == TeardownDisconnect {
		q.teardownLocked("drained")
	}
}

// teardownLocked closes the queue, disconnects and unregisters it. Caller
// must hold q.mu.
func (q *GuildQueue) teardownLocked(reason string) {
	q.closed = true
	q.cancel()

	if q.conn != nil {
		if err := q.conn.Disconnect(); err != nil {
			slog.Warn("voice disconnect failed", "guildID", q.guildID, "err", err)
		}
	}
	if q.onClosed != nil {
		q.onClosed(q)
	}
	slog.Info("queue closed", "guildID", q.guildID, "reason", reason)
}

func (q *GuildQueue) Songs() []Song {
	q.mu.Lock()
	defer q.mu.Unlock()
	return slices.Clone(q.songs)
}

func (q *GuildQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.songs)
}

// NowPlaying returns the front song while the player is rendering it.
func (q *GuildQueue) NowPlaying() (Song, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.state != StatePlaying || len(q.songs) == 0 {
		return Song{}, false
	}
	return q.songs[0], true
}

func (q *GuildQueue) State() PlayerState {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.state
}

func (q *GuildQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}
