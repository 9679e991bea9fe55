package autocomplete

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sonroyaalmerol/jukebot/internal/spotify"
	"github.com/sonroyaalmerol/jukebot/internal/utils"
)

const (
	defaultSuggestURL = "https://suggestqueries.google.com/complete/search"
	// Discord limits choice names and values to 100 characters.
	maxChoiceLen = 100
	maxChoices   = 25
)

type trackSearcher interface {
	SearchTracks(ctx context.Context, query string, limit int) ([]spotify.SearchHit, error)
}

// Suggester builds /play choices. YouTube suggestions become ytsearch1:
// queries, Spotify hits become track URIs; both are playable sources.
type Suggester struct {
	http       *http.Client
	suggestURL string
	spotify    trackSearcher
	cache      *expirable.LRU[string, []*discordgo.ApplicationCommandOptionChoice]
}

func NewSuggester(sp *spotify.Client) *Suggester {
	s := &Suggester{
		http:       &http.Client{Timeout: 2 * time.Second},
		suggestURL: defaultSuggestURL,
		cache:      expirable.NewLRU[string, []*discordgo.ApplicationCommandOptionChoice](512, nil, 10*time.Minute),
	}
	if sp != nil {
		s.spotify = sp
	}
	return s
}

func (s *Suggester) youTube(ctx context.Context, query string) ([]string, error) {
	u, err := url.Parse(s.suggestURL)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("client", "firefox")
	q.Set("ds", "yt")
	q.Set("q", query)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", utils.RandomUserAgent())
	resp, err := s.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("suggest: status %d", resp.StatusCode)
	}

	var parsed []any
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, err
	}
	if len(parsed) < 2 {
		return nil, nil
	}
	arr, ok := parsed[1].([]any)
	if !ok {
		return nil, nil
	}
	out := make([]string, 0, len(arr))
	for _, v := range arr {
		if str, ok := v.(string); ok && str != "" {
			out = append(out, str)
		}
	}
	return out, nil
}

// Suggest returns at most limit choices for query. URLs are offered back
// unchanged so pasting a link still works with autocomplete on.
func (s *Suggester) Suggest(ctx context.Context, query string, limit int) []*discordgo.ApplicationCommandOptionChoice {
	query = strings.TrimSpace(query)
	if limit <= 0 || limit > maxChoices {
		limit = 10
	}
	out := []*discordgo.ApplicationCommandOptionChoice{}
	if query == "" {
		return out
	}
	if strings.HasPrefix(query, "http://") || strings.HasPrefix(query, "https://") || strings.HasPrefix(query, "spotify:") {
		return append(out, choice(query, query))
	}
	if cached, ok := s.cache.Get(query); ok {
		return cached
	}

	yt, err := s.youTube(ctx, query)
	if err != nil {
		slog.Debug("youtube suggestions failed", "query", query, "err", err)
	}

	var hits []spotify.SearchHit
	if s.spotify != nil {
		hits, err = s.spotify.SearchTracks(ctx, query, limit/2)
		if err != nil {
			slog.Debug("spotify suggestions failed", "query", query, "err", err)
			hits = nil
		}
	}

	ytRoom := max(limit-len(hits), 0)
	for _, v := range yt[:min(len(yt), ytRoom)] {
		out = append(out, choice("YouTube: "+v, "ytsearch1:"+v))
	}
	for _, h := range hits {
		name := "Spotify: 🎵 " + h.Name
		if h.Artist != "" {
			name += " - " + h.Artist
		}
		out = append(out, choice(name, h.URI()))
	}
	if len(out) > limit {
		out = out[:limit]
	}
	if len(out) > 0 {
		s.cache.Add(query, out)
	}
	return out
}

func choice(name, value string) *discordgo.ApplicationCommandOptionChoice {
	return &discordgo.ApplicationCommandOptionChoice{
		Name:  utils.Truncate(name, maxChoiceLen),
		Value: utils.Truncate(value, maxChoiceLen),
	}
}
