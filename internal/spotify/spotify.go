package spotify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/sonroyaalmerol/jukebot/internal/queue"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2/clientcredentials"
)

var (
	ErrNotSpotify   = errors.New("not a spotify link")
	ErrUnsupported  = errors.New("only spotify track links can be played")
	ErrNoCredential = errors.New("spotify credentials not configured")
)

type Track struct {
	Name   string
	Artist string
}

// SearchQuery is the yt-dlp search that stands in for a Spotify track.
func (t Track) SearchQuery() string {
	if t.Artist == "" {
		return "ytsearch1:" + t.Name
	}
	return "ytsearch1:" + t.Artist + " - " + t.Name
}

type Client struct {
	raw *spotify.Client
}

func NewClientCredentials(ctx context.Context, clientID, clientSecret string) (*Client, error) {
	if clientID == "" || clientSecret == "" {
		return nil, ErrNoCredential
	}
	cfg := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     spotifyauth.TokenURL,
	}
	httpClient := cfg.Client(ctx)
	cl := spotify.New(httpClient, spotify.WithRetry(true))
	return &Client{raw: cl}, nil
}

func (c *Client) GetTrack(ctx context.Context, id spotify.ID) (Track, error) {
	t, err := c.raw.GetTrack(ctx, id)
	if err != nil {
		return Track{}, err
	}
	artist := ""
	if len(t.Artists) > 0 {
		artist = t.Artists[0].Name
	}
	return Track{Name: t.Name, Artist: artist}, nil
}

// ParseID accepts spotify:type:id URIs and open.spotify.com links,
// including localized paths like /intl-de/track/<id>.
func ParseID(raw string) (typ string, id spotify.ID, err error) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "spotify:") {
		parts := strings.Split(raw, ":")
		if len(parts) == 3 && parts[2] != "" {
			return parts[1], spotify.ID(parts[2]), nil
		}
		return "", "", fmt.Errorf("%w: invalid URI", ErrNotSpotify)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrNotSpotify, err)
	}
	if u.Host != "open.spotify.com" && u.Host != "www.open.spotify.com" {
		return "", "", ErrNotSpotify
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) > 0 && strings.HasPrefix(parts[0], "intl-") {
		parts = parts[1:]
	}
	if len(parts) < 2 || parts[1] == "" {
		return "", "", fmt.Errorf("%w: invalid path", ErrNotSpotify)
	}
	switch parts[0] {
	case "album", "playlist", "track", "artist":
		return parts[0], spotify.ID(parts[1]), nil
	}
	return "", "", fmt.Errorf("%w: %s", ErrUnsupported, parts[0])
}

// IsSpotifyLink reports whether source should be handled by Resolver.
func IsSpotifyLink(source string) bool {
	_, _, err := ParseID(source)
	return err == nil || errors.Is(err, ErrUnsupported)
}

type trackLookup interface {
	GetTrack(ctx context.Context, id spotify.ID) (Track, error)
}

// Resolver turns Spotify track links into a YouTube search and hands
// everything else to next unchanged.
type Resolver struct {
	client trackLookup
	next   queue.Resolver
}

// NewResolver returns next itself when no client is configured.
func NewResolver(client *Client, next queue.Resolver) queue.Resolver {
	if client == nil {
		return next
	}
	return &Resolver{client: client, next: next}
}

func (r *Resolver) Resolve(ctx context.Context, source string) (queue.Track, error) {
	typ, id, err := ParseID(source)
	if errors.Is(err, ErrNotSpotify) {
		return r.next.Resolve(ctx, source)
	}
	if err != nil {
		return queue.Track{}, err
	}
	if typ != "track" {
		return queue.Track{}, fmt.Errorf("%w: %s", ErrUnsupported, typ)
	}

	t, err := r.client.GetTrack(ctx, id)
	if err != nil {
		return queue.Track{}, fmt.Errorf("spotify track %s: %w", id, err)
	}
	slog.Debug("spotify track mapped to search", "id", id, "query", t.SearchQuery())

	out, err := r.next.Resolve(ctx, t.SearchQuery())
	if err != nil {
		return queue.Track{}, err
	}
	if t.Name != "" {
		out.Title = t.Name
		if t.Artist != "" {
			out.Title = t.Artist + " - " + t.Name
		}
	}
	out.SourceURL = strings.TrimSpace(source)
	return out, nil
}

// SearchTracks returns up to limit tracks matching query.
func (c *Client) SearchTracks(ctx context.Context, query string, limit int) ([]SearchHit, error) {
	if limit <= 0 {
		limit = 5
	}
	res, err := c.raw.Search(ctx, query, spotify.SearchTypeTrack, spotify.Limit(limit))
	if err != nil {
		return nil, err
	}
	if res.Tracks == nil {
		return nil, nil
	}
	out := make([]SearchHit, 0, len(res.Tracks.Tracks))
	for _, t := range res.Tracks.Tracks {
		artist := ""
		if len(t.Artists) > 0 {
			artist = t.Artists[0].Name
		}
		out = append(out, SearchHit{ID: t.ID.String(), Track: Track{Name: t.Name, Artist: artist}})
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

type SearchHit struct {
	ID string
	Track
}

// URI is the spotify:track form accepted by Resolver.
func (h SearchHit) URI() string { return "spotify:track:" + h.ID }
