package queue

import (
	"context"
	"errors"
	"sync"
)

type fakeChannel struct {
	mu          sync.Mutex
	plays       []string
	ids         []uint64
	nextID      uint64
	stops       int
	disconnects int
	failPlay    map[string]error
	onStatus    func(StatusEvent)
}

func (c *fakeChannel) Play(_ context.Context, streamURL string) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.failPlay[streamURL]; err != nil {
		return 0, err
	}
	c.nextID++
	c.plays = append(c.plays, streamURL)
	c.ids = append(c.ids, c.nextID)
	return c.nextID, nil
}

func (c *fakeChannel) Stop() {
	c.mu.Lock()
	c.stops++
	c.mu.Unlock()
}

func (c *fakeChannel) Disconnect() error {
	c.mu.Lock()
	c.disconnects++
	c.mu.Unlock()
	return nil
}

func (c *fakeChannel) Plays() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.plays...)
}

func (c *fakeChannel) lastID() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.ids) == 0 {
		return 0
	}
	return c.ids[len(c.ids)-1]
}

func (c *fakeChannel) Disconnects() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disconnects
}

// finish reports the end of the latest playback, as the voice sender would.
func (c *fakeChannel) finish(status Status) {
	id := c.lastID()
	c.mu.Lock()
	cb := c.onStatus
	c.mu.Unlock()
	var err error
	if status == StatusError {
		err = errors.New("stream broke")
	}
	cb(StatusEvent{Playback: id, Status: status, Err: err})
}

type fakeConnector struct {
	mu       sync.Mutex
	connects int
	channels map[string]*fakeChannel
	err      error
	failPlay map[string]error
}

func newFakeConnector() *fakeConnector {
	return &fakeConnector{channels: make(map[string]*fakeChannel)}
}

func (f *fakeConnector) Connect(_ context.Context, guildID, _ string, onStatus func(StatusEvent)) (AudioChannel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.connects++
	ch := &fakeChannel{onStatus: onStatus, failPlay: f.failPlay}
	f.channels[guildID] = ch
	return ch, nil
}

func (f *fakeConnector) channel(guildID string) *fakeChannel {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.channels[guildID]
}

func (f *fakeConnector) Connects() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connects
}

func song(title string) Song {
	return NewSong(Track{StreamURL: "https://stream/" + title, Title: title}, "user")
}

func titles(songs []Song) []string {
	out := make([]string, len(songs))
	for i, s := range songs {
		out[i] = s.Title
	}
	return out
}
