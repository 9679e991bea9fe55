package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	ytdlp "github.com/lrstanley/go-ytdlp"
	"github.com/sonroyaalmerol/jukebot/internal/queue"
)

var ErrUnsupportedSource = errors.New("unsupported source")

type YTDLPFormat struct {
	Url string `json:"url"`
}

type YTDLPInfo struct {
	Id               string        `json:"id"`
	Title            string        `json:"title"`
	Uploader         string        `json:"uploader"`
	Duration         float64       `json:"duration"`
	IsLive           bool          `json:"is_live"`
	WebpageUrl       string        `json:"webpage_url"`
	Thumbnail        string        `json:"thumbnail"`
	Formats          []YTDLPFormat `json:"formats"`
	RequestedFormats []YTDLPFormat `json:"requested_formats"`
	Url              string        `json:"url"`
}

var installOnce sync.Once

// helpers to safely read pointer fields with defaults
func s(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}
func f(ptr *float64) float64 {
	if ptr == nil {
		return 0
	}
	return *ptr
}
func b(ptr *bool) bool {
	if ptr == nil {
		return false
	}
	return *ptr
}

func mapFormats(fs []*ytdlp.ExtractedFormat) []YTDLPFormat {
	if len(fs) == 0 {
		return nil
	}
	out := make([]YTDLPFormat, 0, len(fs))
	for _, f := range fs {
		if f == nil {
			continue
		}
		out = append(out, YTDLPFormat{Url: f.URL})
	}
	return out
}

func infoFrom(ext *ytdlp.ExtractedInfo) *YTDLPInfo {
	out := &YTDLPInfo{
		Id:               ext.ID,
		Title:            s(ext.Title),
		Uploader:         s(ext.Uploader),
		Duration:         f(ext.Duration),
		IsLive:           b(ext.IsLive),
		WebpageUrl:       s(ext.WebpageURL),
		Url:              s(ext.URL),
		Formats:          mapFormats(ext.Formats),
		RequestedFormats: mapFormats(ext.RequestedFormats),
	}
	if len(ext.Thumbnails) > 0 && ext.Thumbnails[0] != nil {
		out.Thumbnail = ext.Thumbnails[0].URL
	}
	return out
}

// YtdlpGetInfo runs yt-dlp -J for a single item. Search queries
// ("ytsearch1:...") return their first entry.
func YtdlpGetInfo(ctx context.Context, source string) (*YTDLPInfo, error) {
	installOnce.Do(func() {
		// a failed install surfaces again as a run error below
		if _, err := ytdlp.Install(ctx, nil); err != nil {
			slog.Warn("yt-dlp install failed", "err", err)
		}
	})

	cmd := ytdlp.New().
		Format("ba[acodec^=opus]/ba[ext=m4a]/bestaudio/best").
		NoPlaylist().
		NoCheckCertificates().
		DumpJSON()

	res, err := cmd.Run(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("yt-dlp run: %w", err)
	}

	infos, err := res.GetExtractedInfo()
	if err != nil {
		return nil, fmt.Errorf("parse yt-dlp json: %w", err)
	}
	if len(infos) == 0 || infos[0] == nil {
		return nil, fmt.Errorf("parse yt-dlp json: no info returned")
	}
	ext := infos[0]

	// search container: mirror the first non-nil entry
	if len(ext.Entries) > 0 {
		for _, e := range ext.Entries {
			if e != nil {
				return infoFrom(e), nil
			}
		}
		return nil, fmt.Errorf("parse yt-dlp json: empty result")
	}
	return infoFrom(ext), nil
}

// PickMediaURL returns the best playable URL.
// Preferred order: requested_formats, top-level url, then formats[].
func PickMediaURL(info *YTDLPInfo) string {
	if info == nil {
		return ""
	}
	for _, rf := range info.RequestedFormats {
		if strings.HasPrefix(rf.Url, "http") {
			return rf.Url
		}
	}
	if strings.HasPrefix(info.Url, "http") {
		return info.Url
	}
	for _, f := range info.Formats {
		if strings.HasPrefix(f.Url, "http") {
			return f.Url
		}
	}
	return ""
}

// IsPlayableSource accepts absolute http(s) URLs and yt-dlp search prefixes.
func IsPlayableSource(source string) bool {
	source = strings.TrimSpace(source)
	if strings.HasPrefix(source, "ytsearch") {
		return strings.Contains(source, ":") && len(source) > strings.Index(source, ":")+1
	}
	u, err := url.Parse(source)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

type YtdlpResolver struct {
	lookup func(ctx context.Context, source string) (*YTDLPInfo, error)
}

func NewYtdlpResolver() *YtdlpResolver {
	return &YtdlpResolver{lookup: YtdlpGetInfo}
}

func (r *YtdlpResolver) Resolve(ctx context.Context, source string) (queue.Track, error) {
	source = strings.TrimSpace(source)
	if !IsPlayableSource(source) {
		return queue.Track{}, fmt.Errorf("%w: %q", ErrUnsupportedSource, source)
	}

	info, err := r.lookup(ctx, source)
	if err != nil {
		return queue.Track{}, err
	}
	mediaURL := PickMediaURL(info)
	if mediaURL == "" {
		return queue.Track{}, errors.New("no usable media URL")
	}

	title := info.Title
	if title == "" {
		title = source
	}
	page := info.WebpageUrl
	if page == "" {
		page = source
	}
	slog.Debug("resolved source", "source", source, "title", title, "live", info.IsLive)
	return queue.Track{
		StreamURL: mediaURL,
		Title:     title,
		SourceURL: page,
		Duration:  int(info.Duration),
		IsLive:    info.IsLive,
	}, nil
}
