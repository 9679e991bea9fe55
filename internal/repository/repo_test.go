package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/sonroyaalmerol/jukebot/internal/queue"
)

var defaults = queue.Policy{OnDrain: queue.TeardownDisconnect, OnStop: queue.TeardownDisconnect}

func newTestRepo(t *testing.T) *Repo {
	t.Helper()
	db, err := OpenDB(t.TempDir())
	if err != nil {
		t.Fatalf("OpenDB: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewRepo(db, defaults)
}

func TestOpenDB_MigratesTwice(t *testing.T) {
	dir := t.TempDir()
	for range 2 {
		db, err := OpenDB(dir)
		if err != nil {
			t.Fatalf("OpenDB: %v", err)
		}
		db.Close()
	}
}

func TestPolicyFor_Defaults(t *testing.T) {
	r := newTestRepo(t)
	if got := r.PolicyFor(context.Background(), "g"); got != defaults {
		t.Errorf("PolicyFor = %+v, want %+v", got, defaults)
	}
}

func TestPolicyFor_Override(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	s, err := r.UpsertSettings(ctx, "g")
	if err != nil {
		t.Fatal(err)
	}
	if s.DrainPolicy != nil || s.StopPolicy != nil {
		t.Fatalf("new settings carry overrides: %+v", s)
	}
	if !s.LeaveIfNoListeners {
		t.Error("LeaveIfNoListeners should default to true")
	}

	stay := queue.TeardownStay
	s.DrainPolicy = &stay
	if err := r.UpdateSettings(ctx, s); err != nil {
		t.Fatal(err)
	}

	got := r.PolicyFor(ctx, "g")
	want := queue.Policy{OnDrain: queue.TeardownStay, OnStop: queue.TeardownDisconnect}
	if got != want {
		t.Errorf("PolicyFor = %+v, want %+v", got, want)
	}
	if other := r.PolicyFor(ctx, "other"); other != defaults {
		t.Errorf("other guild PolicyFor = %+v, want defaults", other)
	}

	s.DrainPolicy = nil
	if err := r.UpdateSettings(ctx, s); err != nil {
		t.Fatal(err)
	}
	if got := r.PolicyFor(ctx, "g"); got != defaults {
		t.Errorf("cleared override PolicyFor = %+v, want defaults", got)
	}
}

func TestFavorites(t *testing.T) {
	fav := NewFavoritesService(newTestRepo(t))
	ctx := context.Background()

	if err := fav.Create(ctx, "g", "u", " lofi ", " https://youtu.be/x "); err != nil {
		t.Fatal(err)
	}
	if err := fav.Create(ctx, "g", "u", "lofi", "https://youtu.be/y"); !errors.Is(err, ErrDuplicateFavorite) {
		t.Errorf("duplicate Create err = %v, want ErrDuplicateFavorite", err)
	}
	if err := fav.Create(ctx, "g", "u", "", "q"); !errors.Is(err, ErrFavoriteInvalid) {
		t.Errorf("empty name err = %v, want ErrFavoriteInvalid", err)
	}
	if err := fav.Create(ctx, "other", "u", "lofi", "https://youtu.be/z"); err != nil {
		t.Errorf("same name in another guild: %v", err)
	}

	f, err := fav.Use(ctx, "g", "lofi")
	if err != nil {
		t.Fatal(err)
	}
	if f.Query != "https://youtu.be/x" {
		t.Errorf("Query = %q, want trimmed URL", f.Query)
	}

	list, err := fav.List(ctx, "g")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 {
		t.Errorf("List len = %d, want 1", len(list))
	}

	if err := fav.Remove(ctx, "g", "lofi"); err != nil {
		t.Fatal(err)
	}
	if err := fav.Remove(ctx, "g", "lofi"); !errors.Is(err, ErrFavoriteNotFound) {
		t.Errorf("second Remove err = %v, want ErrFavoriteNotFound", err)
	}
	if _, err := fav.Use(ctx, "g", "lofi"); !errors.Is(err, ErrFavoriteNotFound) {
		t.Errorf("Use after remove err = %v, want ErrFavoriteNotFound", err)
	}
}
