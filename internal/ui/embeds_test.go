package ui

import (
	"errors"
	"strings"
	"testing"

	"github.com/sonroyaalmerol/jukebot/internal/queue"
)

func songs(titles ...string) []queue.Song {
	out := make([]queue.Song, len(titles))
	for i, t := range titles {
		out[i] = queue.Song{Title: t, SourceURL: "https://youtu.be/" + t, Duration: 60}
	}
	return out
}

func TestBuildQueueEmbed_Numbering(t *testing.T) {
	e, err := BuildQueueEmbed(songs("A", "B", "C"), true, 1, 10)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(e.Description), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3: %q", len(lines), e.Description)
	}
	for i, want := range []string{"`1.` [A]", "`2.` [B]", "`3.` [C]"} {
		if !strings.HasPrefix(lines[i], want) {
			t.Errorf("line %d = %q, want prefix %q", i, lines[i], want)
		}
	}
	if !strings.Contains(lines[0], "▶️") {
		t.Error("front song not marked as playing")
	}
	if e.Fields[1].Value != "3:00" {
		t.Errorf("total length = %q, want 3:00", e.Fields[1].Value)
	}
}

func TestBuildQueueEmbed_Paging(t *testing.T) {
	list := songs("A", "B", "C", "D", "E")

	e, err := BuildQueueEmbed(list, false, 2, 2)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(e.Description, "`3.` [C]") {
		t.Errorf("page 2 starts with %q", e.Description)
	}
	if e.Fields[2].Value != "2 out of 3" {
		t.Errorf("page field = %q", e.Fields[2].Value)
	}

	if _, err := BuildQueueEmbed(list, false, 4, 2); !errors.Is(err, ErrPageTooLarge) {
		t.Errorf("page 4 err = %v, want ErrPageTooLarge", err)
	}
	if _, err := BuildQueueEmbed(nil, false, 1, 2); !errors.Is(err, ErrEmptyQueue) {
		t.Errorf("empty err = %v, want ErrEmptyQueue", err)
	}
}

func TestBuildNowPlayingEmbed(t *testing.T) {
	if e := BuildNowPlayingEmbed(nil); e.Description != "nothing playing" {
		t.Errorf("nil song description = %q", e.Description)
	}
	s := queue.Song{Title: "a_b", SourceURL: "https://x", IsLive: true, RequestedBy: "42"}
	e := BuildNowPlayingEmbed(&s)
	for _, want := range []string{"[a\\_b](https://x)", "<@42>", "live"} {
		if !strings.Contains(e.Description, want) {
			t.Errorf("description %q missing %q", e.Description, want)
		}
	}
}

func TestPageCount(t *testing.T) {
	tests := []struct{ total, size, want int }{
		{0, 10, 0},
		{1, 10, 1},
		{10, 10, 1},
		{11, 10, 2},
		{5, 0, 0},
	}
	for _, tt := range tests {
		if got := PageCount(tt.total, tt.size); got != tt.want {
			t.Errorf("PageCount(%d, %d) = %d, want %d", tt.total, tt.size, got, tt.want)
		}
	}
}
