package utils

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"
)

func RandomUserAgent() string {
	const minMajor = 132
	const maxMajor = 138

	major := rand.IntN(maxMajor-minMajor+1) + minMajor
	return fmt.Sprintf(
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/%d.0.0.0 Safari/537.36",
		major,
	)
}

var knownHeaders = map[string]string{
	"user-agent":      "User-Agent",
	"referer":         "Referer",
	"accept":          "Accept",
	"accept-language": "Accept-Language",
	"origin":          "Origin",
	"connection":      "Connection",
	"cookie":          "Cookie",
	"range":           "Range",
	"authorization":   "Authorization",
}

func canonicalHeader(k string) string {
	k = strings.TrimSpace(k)
	if c, ok := knownHeaders[strings.ToLower(k)]; ok {
		return c
	}
	if k == "" {
		return k
	}
	return strings.ToUpper(k[:1]) + k[1:]
}

// BuildFFmpegHeaders returns "Key: Value\r\n" lines for ffmpeg's -headers
// option. Keys are canonicalized; later duplicates win over earlier ones in
// map order, so callers should not pass the same header twice.
func BuildFFmpegHeaders(base map[string]string) string {
	if len(base) == 0 {
		return ""
	}

	h := make(map[string]string, len(base)+6)
	for k, v := range base {
		if k = canonicalHeader(k); k != "" {
			h[k] = strings.TrimSpace(v)
		}
	}
	defaults := map[string]string{
		"User-Agent":      RandomUserAgent(),
		"Accept":          "*/*",
		"Accept-Language": "en-US,en;q=0.9",
		"Connection":      "keep-alive",
	}
	for k, v := range defaults {
		if _, ok := h[k]; !ok {
			h[k] = v
		}
	}

	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %s\r\n", k, h[k])
	}
	return b.String()
}
