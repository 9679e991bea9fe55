package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestRegistry_AbsentGuild(t *testing.T) {
	reg := NewRegistry(newFakeConnector())
	if reg.Get("nope") != nil {
		t.Error("Get on empty registry returned a queue")
	}
	if reg.Remove("nope") {
		t.Error("Remove on absent guild reported removal")
	}
	if reg.Remove("nope") {
		t.Error("second Remove on absent guild reported removal")
	}
	if reg.Len() != 0 {
		t.Errorf("Len = %d, want 0", reg.Len())
	}
}

func TestRegistry_GetOrCreateReusesQueue(t *testing.T) {
	conn := newFakeConnector()
	reg := NewRegistry(conn)
	ctx := context.Background()

	a, err := reg.GetOrCreate(ctx, "g", "v1")
	if err != nil {
		t.Fatal(err)
	}
	b, err := reg.GetOrCreate(ctx, "g", "v2")
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Error("second GetOrCreate built a new queue")
	}
	if conn.Connects() != 1 {
		t.Errorf("connects = %d, want 1", conn.Connects())
	}
	if a.ChannelID() != "v1" {
		t.Errorf("channel = %q, want v1", a.ChannelID())
	}
}

func TestRegistry_ConcurrentSameGuildConnectsOnce(t *testing.T) {
	conn := newFakeConnector()
	reg := NewRegistry(conn)

	const n = 20
	got := make([]*GuildQueue, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			q, err := reg.GetOrCreate(context.Background(), "g", "v")
			if err != nil {
				t.Errorf("GetOrCreate: %v", err)
			}
			got[i] = q
		}(i)
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		if got[i] != got[0] {
			t.Fatalf("caller %d got a different queue", i)
		}
	}
	if conn.Connects() != 1 {
		t.Errorf("connects = %d, want 1", conn.Connects())
	}
}

type gatedConnector struct {
	*fakeConnector
	slowGuild string
	release   chan struct{}
}

func (g *gatedConnector) Connect(ctx context.Context, guildID, channelID string, onStatus func(StatusEvent)) (AudioChannel, error) {
	if guildID == g.slowGuild {
		<-g.release
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return g.fakeConnector.Connect(ctx, guildID, channelID, onStatus)
}

func TestRegistry_CancelledCallerDoesNotFailSharedConnect(t *testing.T) {
	gc := &gatedConnector{fakeConnector: newFakeConnector(), slowGuild: "g", release: make(chan struct{})}
	reg := NewRegistry(gc)

	ctx, cancel := context.WithCancel(context.Background())
	firstDone := make(chan error, 1)
	go func() {
		_, err := reg.GetOrCreate(ctx, "g", "v")
		firstDone <- err
	}()
	time.Sleep(20 * time.Millisecond)

	secondDone := make(chan error, 1)
	var second *GuildQueue
	go func() {
		q, err := reg.GetOrCreate(context.Background(), "g", "v")
		second = q
		secondDone <- err
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	if err := <-firstDone; !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled caller err = %v, want context.Canceled", err)
	}

	close(gc.release)
	if err := <-secondDone; err != nil {
		t.Fatalf("waiting caller err = %v, want nil", err)
	}
	if second == nil || second.Closed() {
		t.Fatal("waiting caller got no open queue")
	}
	if reg.Get("g") != second {
		t.Error("queue not registered")
	}
	if gc.Connects() != 1 {
		t.Errorf("connects = %d, want 1", gc.Connects())
	}
}

func TestRegistry_GuildsDoNotBlockEachOther(t *testing.T) {
	gc := &gatedConnector{fakeConnector: newFakeConnector(), slowGuild: "slow", release: make(chan struct{})}
	reg := NewRegistry(gc)

	slowDone := make(chan error, 1)
	go func() {
		_, err := reg.GetOrCreate(context.Background(), "slow", "v")
		slowDone <- err
	}()

	fastDone := make(chan error, 1)
	go func() {
		_, err := reg.GetOrCreate(context.Background(), "fast", "v")
		fastDone <- err
	}()

	select {
	case err := <-fastDone:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("fast guild blocked behind slow guild's connect")
	}

	close(gc.release)
	if err := <-slowDone; err != nil {
		t.Fatal(err)
	}
	if reg.Len() != 2 {
		t.Errorf("Len = %d, want 2", reg.Len())
	}
}

func TestRegistry_ConnectFailure(t *testing.T) {
	conn := newFakeConnector()
	conn.err = errors.New("no permission")
	reg := NewRegistry(conn)

	if _, err := reg.GetOrCreate(context.Background(), "g", "v"); err == nil {
		t.Fatal("expected error")
	}
	if reg.Get("g") != nil {
		t.Error("failed connect left a registry entry")
	}
}

func TestRegistry_RemoveDisconnects(t *testing.T) {
	conn := newFakeConnector()
	reg := NewRegistry(conn, WithPolicySource(StaticPolicy(stayPolicy)))
	ctx := context.Background()

	q, err := reg.GetOrCreate(ctx, "g", "v")
	if err != nil {
		t.Fatal(err)
	}
	mustEnqueue(t, q, "A")

	if !reg.Remove("g") {
		t.Fatal("Remove reported nothing removed")
	}
	if reg.Get("g") != nil {
		t.Error("queue still registered")
	}
	if conn.channel("g").Disconnects() != 1 {
		t.Errorf("disconnects = %d, want 1", conn.channel("g").Disconnects())
	}
	if !q.Closed() {
		t.Error("removed queue is not closed")
	}

	q2, err := reg.GetOrCreate(ctx, "g", "v")
	if err != nil {
		t.Fatal(err)
	}
	if q2 == q {
		t.Error("GetOrCreate returned the removed queue")
	}
	if conn.Connects() != 2 {
		t.Errorf("connects = %d, want 2", conn.Connects())
	}
}

type guildPolicies map[string]Policy

func (g guildPolicies) PolicyFor(_ context.Context, guildID string) Policy {
	return g[guildID]
}

func TestRegistry_PolicyPerGuild(t *testing.T) {
	reg := NewRegistry(newFakeConnector(), WithPolicySource(guildPolicies{
		"a": disconnectPolicy,
		"b": stayPolicy,
	}))
	ctx := context.Background()

	a, _ := reg.GetOrCreate(ctx, "a", "v")
	b, _ := reg.GetOrCreate(ctx, "b", "v")
	if a.Policy() != disconnectPolicy {
		t.Errorf("a policy = %+v", a.Policy())
	}
	if b.Policy() != stayPolicy {
		t.Errorf("b policy = %+v", b.Policy())
	}
}

func TestRegistry_Close(t *testing.T) {
	conn := newFakeConnector()
	reg := NewRegistry(conn)
	ctx := context.Background()
	for _, g := range []string{"a", "b", "c"} {
		if _, err := reg.GetOrCreate(ctx, g, "v"); err != nil {
			t.Fatal(err)
		}
	}

	reg.Close()

	if reg.Len() != 0 {
		t.Errorf("Len = %d, want 0", reg.Len())
	}
	for _, g := range []string{"a", "b", "c"} {
		if conn.channel(g).Disconnects() != 1 {
			t.Errorf("%s disconnects = %d, want 1", g, conn.channel(g).Disconnects())
		}
	}
}

func TestParseTeardown(t *testing.T) {
	tests := []struct {
		input   string
		want    Teardown
		wantErr bool
	}{
		{"disconnect", TeardownDisconnect, false},
		{"Leave", TeardownDisconnect, false},
		{"stay", TeardownStay, false},
		{" stay-connected ", TeardownStay, false},
		{"forever", TeardownDisconnect, true},
		{"", TeardownDisconnect, true},
	}
	for _, tt := range tests {
		got, err := ParseTeardown(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseTeardown(%q) err = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseTeardown(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}
