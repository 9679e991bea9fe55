package handlers

import (
	"errors"
	"fmt"

	"github.com/sonroyaalmerol/jukebot/internal/queue"
	"github.com/sonroyaalmerol/jukebot/internal/spotify"
	"github.com/sonroyaalmerol/jukebot/internal/utils"
)

func playReply(res PlayResult, err error) string {
	switch {
	case err == nil && res.Started:
		return "now playing " + utils.EscapeMd(res.Song.Title)
	case err == nil:
		return fmt.Sprintf("added %s to queue", utils.EscapeMd(res.Song.Title))
	case errors.Is(err, ErrNoSource):
		return "provide a URL"
	case errors.Is(err, ErrNotInVoice):
		return "not in a voice channel"
	case errors.Is(err, spotify.ErrUnsupported):
		return "only spotify track links can be played"
	case errors.Is(err, ErrResolve):
		return "could not resolve source"
	case errors.Is(err, ErrConnect):
		return "couldn't connect to channel"
	case errors.Is(err, queue.ErrPlaybackFailed):
		return "could not play " + utils.EscapeMd(res.Song.Title)
	default:
		return "something went wrong, try again"
	}
}

func skipReply(_ queue.SkipResult, err error) string {
	if err != nil {
		return "nothing playing"
	}
	return "skipped"
}

func stopReply(res queue.StopResult, err error) string {
	if err != nil {
		return "nothing playing"
	}
	if res.Left {
		return "stopped and left the channel"
	}
	return "stopped"
}

func nowPlayingReply(s queue.Song, err error) string {
	if err != nil {
		return "nothing playing"
	}
	return utils.EscapeMd(s.Title)
}

func leaveReply(err error) string {
	if err != nil {
		return "not connected"
	}
	return "left the channel"
}
