package queue

import "context"

// AudioChannel is a live connection to one voice channel.
//
// Every successful Play produces exactly one terminal event (StatusIdle or
// StatusError) tagged with the returned playback id, including when the
// playback is cut short by Stop. Events must be delivered from another
// goroutine, never from inside Play, Stop or Disconnect.
type AudioChannel interface {
	Play(ctx context.Context, streamURL string) (uint64, error)
	Stop()
	Disconnect() error
}

// Connector joins voice channels. onStatus receives every StatusEvent of the
// returned channel.
type Connector interface {
	Connect(ctx context.Context, guildID, channelID string, onStatus func(StatusEvent)) (AudioChannel, error)
}
