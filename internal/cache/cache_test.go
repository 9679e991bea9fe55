package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sonroyaalmerol/jukebot/internal/queue"
)

type countingResolver struct {
	mu    sync.Mutex
	calls map[string]int
	fail  map[string]bool
	live  bool
	delay time.Duration
}

func (r *countingResolver) Resolve(ctx context.Context, source string) (queue.Track, error) {
	if r.delay > 0 {
		select {
		case <-time.After(r.delay):
		case <-ctx.Done():
			return queue.Track{}, ctx.Err()
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.calls == nil {
		r.calls = map[string]int{}
	}
	r.calls[source]++
	if r.fail[source] {
		return queue.Track{}, errors.New("boom")
	}
	return queue.Track{StreamURL: "https://stream/" + source, Title: source, IsLive: r.live}, nil
}

func (r *countingResolver) count(source string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[source]
}

func TestResolveCache_Hit(t *testing.T) {
	next := &countingResolver{}
	c := NewResolveCache(next, 8, time.Hour, time.Second)
	ctx := context.Background()

	for range 3 {
		tr, err := c.Resolve(ctx, " a ")
		if err != nil {
			t.Fatal(err)
		}
		if tr.Title != "a" {
			t.Errorf("title = %q, want a", tr.Title)
		}
	}
	if got := next.count("a"); got != 1 {
		t.Errorf("underlying calls = %d, want 1", got)
	}
	if c.Len() != 1 {
		t.Errorf("Len = %d, want 1", c.Len())
	}
}

func TestResolveCache_FailuresNotCached(t *testing.T) {
	next := &countingResolver{fail: map[string]bool{"bad": true}}
	c := NewResolveCache(next, 8, time.Hour, time.Second)

	for range 2 {
		if _, err := c.Resolve(context.Background(), "bad"); err == nil {
			t.Fatal("expected error")
		}
	}
	if got := next.count("bad"); got != 2 {
		t.Errorf("underlying calls = %d, want 2", got)
	}
	if c.Len() != 0 {
		t.Errorf("Len = %d, want 0", c.Len())
	}
}

func TestResolveCache_LiveNotCached(t *testing.T) {
	next := &countingResolver{live: true}
	c := NewResolveCache(next, 8, time.Hour, time.Second)

	_, _ = c.Resolve(context.Background(), "radio")
	_, _ = c.Resolve(context.Background(), "radio")
	if got := next.count("radio"); got != 2 {
		t.Errorf("underlying calls = %d, want 2", got)
	}
}

func TestResolveCache_Expires(t *testing.T) {
	next := &countingResolver{}
	c := NewResolveCache(next, 8, 20*time.Millisecond, time.Second)

	_, _ = c.Resolve(context.Background(), "a")
	time.Sleep(60 * time.Millisecond)
	_, _ = c.Resolve(context.Background(), "a")
	if got := next.count("a"); got != 2 {
		t.Errorf("underlying calls = %d, want 2", got)
	}
}

func TestResolveCache_WaiterOutlivesCancelledCaller(t *testing.T) {
	next := &countingResolver{delay: 200 * time.Millisecond}
	c := NewResolveCache(next, 8, time.Hour, time.Second)

	firstErr := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		_, err := c.Resolve(ctx, "a")
		firstErr <- err
	}()
	time.Sleep(10 * time.Millisecond)

	tr, err := c.Resolve(context.Background(), "a")
	if err != nil {
		t.Fatalf("second caller err = %v, want nil", err)
	}
	if tr.Title != "a" {
		t.Errorf("title = %q, want a", tr.Title)
	}
	if err := <-firstErr; !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("first caller err = %v, want deadline exceeded", err)
	}
	if got := next.count("a"); got != 1 {
		t.Errorf("underlying calls = %d, want 1", got)
	}
	if c.Len() != 1 {
		t.Errorf("Len = %d, want 1", c.Len())
	}
}

func TestResolveCache_SharedResolutionTimesOut(t *testing.T) {
	next := &countingResolver{delay: time.Second}
	c := NewResolveCache(next, 8, time.Hour, 30*time.Millisecond)

	if _, err := c.Resolve(context.Background(), "slow"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
}
