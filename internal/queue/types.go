package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrNothingPlaying = errors.New("nothing playing")
	ErrQueueClosed    = errors.New("queue closed")
)

// Track is what a Resolver hands back for a source URL.
type Track struct {
	StreamURL string
	Title     string
	SourceURL string
	Duration  int // seconds, 0 when unknown or live
	IsLive    bool
}

type Song struct {
	ID          string
	StreamURL   string
	Title       string
	SourceURL   string
	Duration    int
	IsLive      bool
	RequestedBy string
}

func NewSong(t Track, requestedBy string) Song {
	return Song{
		ID:          uuid.NewString(),
		StreamURL:   t.StreamURL,
		Title:       t.Title,
		SourceURL:   t.SourceURL,
		Duration:    t.Duration,
		IsLive:      t.IsLive,
		RequestedBy: requestedBy,
	}
}

type Resolver interface {
	Resolve(ctx context.Context, source string) (Track, error)
}

type PlayerState int

const (
	StateIdle PlayerState = iota
	StatePlaying
)

func (s PlayerState) String() string {
	if s == StatePlaying {
		return "playing"
	}
	return "idle"
}

type Status int

const (
	StatusPlaying Status = iota
	StatusIdle
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusPlaying:
		return "playing"
	case StatusIdle:
		return "idle"
	case StatusError:
		return "error"
	}
	return "unknown"
}

// StatusEvent is emitted by an AudioChannel. Playback is the id returned by
// the Play call the event belongs to.
type StatusEvent struct {
	Playback uint64
	Status   Status
	Err      error
}

// Trigger is the reason the front song leaves the queue.
type Trigger int

const (
	TriggerIdle Trigger = iota
	TriggerError
	TriggerSkip
)

func (t Trigger) String() string {
	switch t {
	case TriggerIdle:
		return "idle"
	case TriggerError:
		return "error"
	case TriggerSkip:
		return "skip"
	}
	return "unknown"
}

// Teardown decides what happens to the voice connection once a queue has
// nothing left to play.
type Teardown int

const (
	TeardownDisconnect Teardown = iota
	TeardownStay
)

func (t Teardown) String() string {
	if t == TeardownStay {
		return "stay"
	}
	return "disconnect"
}

func ParseTeardown(s string) (Teardown, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "disconnect", "leave":
		return TeardownDisconnect, nil
	case "stay", "stay-connected":
		return TeardownStay, nil
	}
	return TeardownDisconnect, fmt.Errorf("unknown teardown policy %q", s)
}

type Policy struct {
	OnDrain Teardown
	OnStop  Teardown
}

// PolicySource resolves the policy for a guild when its queue is created.
type PolicySource interface {
	PolicyFor(ctx context.Context, guildID string) Policy
}

type StaticPolicy Policy

func (p StaticPolicy) PolicyFor(context.Context, string) Policy { return Policy(p) }

type EnqueueResult struct {
	Position int // 0-based index in the queue, 0 means front
	Started  bool
}

type SkipResult struct {
	Skipped Song
	Next    *Song
}

type StopResult struct {
	Cleared int
	Left    bool
}
