package cache

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sonroyaalmerol/jukebot/internal/queue"
	"golang.org/x/sync/singleflight"
)

// ResolveCache remembers successful resolutions for a while so repeated
// requests of the same source skip yt-dlp. Failures are never cached.
type ResolveCache struct {
	next    queue.Resolver
	tracks  *expirable.LRU[string, queue.Track]
	group   singleflight.Group
	timeout time.Duration
}

// NewResolveCache bounds each shared resolution by timeout. Callers waiting
// on the same source give up on their own context only.
func NewResolveCache(next queue.Resolver, size int, ttl, timeout time.Duration) *ResolveCache {
	if size <= 0 {
		size = 256
	}
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &ResolveCache{
		next:    next,
		tracks:  expirable.NewLRU[string, queue.Track](size, nil, ttl),
		timeout: timeout,
	}
}

func (c *ResolveCache) Resolve(ctx context.Context, source string) (queue.Track, error) {
	key := strings.TrimSpace(source)
	if t, ok := c.tracks.Get(key); ok {
		slog.Debug("resolve cache hit", "source", key)
		return t, nil
	}

	ch := c.group.DoChan(key, func() (any, error) {
		// shared by every waiter, so it must not die with the first caller
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()
		t, err := c.next.Resolve(rctx, key)
		if err != nil {
			return queue.Track{}, err
		}
		// live streams hand out short-lived URLs
		if !t.IsLive {
			c.tracks.Add(key, t)
		}
		return t, nil
	})

	select {
	case <-ctx.Done():
		return queue.Track{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return queue.Track{}, res.Err
		}
		return res.Val.(queue.Track), nil
	}
}

func (c *ResolveCache) Len() int {
	return c.tracks.Len()
}

func (c *ResolveCache) Purge() {
	c.tracks.Purge()
}
