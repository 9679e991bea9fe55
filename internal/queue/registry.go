package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Registry maps guild IDs to their GuildQueue. The map lock is only held for
// map operations; voice connects happen outside of it.
type Registry struct {
	connector Connector
	policies  PolicySource

	mu     sync.Mutex
	queues map[string]*GuildQueue

	connecting singleflight.Group
}

type Option func(*Registry)

func WithPolicySource(src PolicySource) Option {
	return func(r *Registry) {
		if src != nil {
			r.policies = src
		}
	}
}

func NewRegistry(connector Connector, opts ...Option) *Registry {
	r := &Registry{
		connector: connector,
		policies:  StaticPolicy{},
		queues:    make(map[string]*GuildQueue),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Registry) Get(guildID string) *GuildQueue {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.queues[guildID]
}

// GetOrCreate returns the open queue of guildID, joining channelID and
// registering a new queue when there is none. Concurrent callers for the same
// guild share one connection attempt, which outlives any single caller's ctx.
func (r *Registry) GetOrCreate(ctx context.Context, guildID, channelID string) (*GuildQueue, error) {
	if q := r.open(guildID); q != nil {
		return q, nil
	}

	ch := r.connecting.DoChan(guildID, func() (any, error) {
		if q := r.open(guildID); q != nil {
			return q, nil
		}

		cctx := context.WithoutCancel(ctx)
		q := newGuildQueue(guildID, channelID, r.policies.PolicyFor(cctx, guildID), r.detach)
		conn, err := r.connector.Connect(cctx, guildID, channelID, q.handleStatus)
		if err != nil {
			q.cancel()
			return nil, fmt.Errorf("connect voice: %w", err)
		}
		q.attach(conn)

		r.mu.Lock()
		r.queues[guildID] = q
		r.mu.Unlock()

		slog.Info("queue created", "guildID", guildID, "channelID", channelID, "onDrain", q.policy.OnDrain, "onStop", q.policy.OnStop)
		return q, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*GuildQueue), nil
	}
}

// open returns the registered queue unless it is closed. A queue that is in
// the middle of tearing down blocks Closed until it has unregistered itself.
func (r *Registry) open(guildID string) *GuildQueue {
	q := r.Get(guildID)
	if q == nil || q.Closed() {
		return nil
	}
	return q
}

// Remove closes the queue of guildID and disconnects it. Removing an absent
// guild is a no-op.
func (r *Registry) Remove(guildID string) bool {
	r.mu.Lock()
	q, ok := r.queues[guildID]
	if ok {
		delete(r.queues, guildID)
	}
	r.mu.Unlock()

	if !ok {
		return false
	}
	q.Close()
	return true
}

func (r *Registry) detach(q *GuildQueue) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.queues[q.guildID]; ok && cur == q {
		delete(r.queues, q.guildID)
	}
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queues)
}

// Close removes every queue, disconnecting them in parallel.
func (r *Registry) Close() {
	r.mu.Lock()
	all := make([]*GuildQueue, 0, len(r.queues))
	for id, q := range r.queues {
		all = append(all, q)
		delete(r.queues, id)
	}
	r.mu.Unlock()

	var wg sync.WaitGroup
	for _, q := range all {
		wg.Add(1)
		go func(q *GuildQueue) {
			defer wg.Done()
			q.Close()
		}(q)
	}
	wg.Wait()
}
