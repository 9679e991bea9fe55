package utils

import (
	"strings"
	"testing"
)

func TestPrettyTime(t *testing.T) {
	tests := []struct {
		sec  int
		want string
	}{
		{0, "0:00"},
		{59, "0:59"},
		{61, "1:01"},
		{3600, "1:00:00"},
		{3725, "1:02:05"},
		{-5, "0:00"},
	}
	for _, tt := range tests {
		if got := PrettyTime(tt.sec); got != tt.want {
			t.Errorf("PrettyTime(%d) = %q, want %q", tt.sec, got, tt.want)
		}
	}
}

func TestEscapeMd(t *testing.T) {
	if got, want := EscapeMd("a*b_c`d~e"), "a\\*b\\_c\\`d\\~e"; got != want {
		t.Errorf("EscapeMd = %q, want %q", got, want)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"hello", 10, "hello"},
		{"hello", 5, "hello"},
		{"hello", 4, "hel…"},
		{"héllo", 2, "h…"},
		{"hello", 0, ""},
	}
	for _, tt := range tests {
		if got := Truncate(tt.in, tt.n); got != tt.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}

func TestBuildFFmpegHeaders(t *testing.T) {
	if got := BuildFFmpegHeaders(nil); got != "" {
		t.Errorf("BuildFFmpegHeaders(nil) = %q, want empty", got)
	}

	got := BuildFFmpegHeaders(map[string]string{"user-agent": " test-agent ", "x-custom": "1"})
	if !strings.Contains(got, "User-Agent: test-agent\r\n") {
		t.Errorf("user agent not canonicalized: %q", got)
	}
	if strings.Count(got, "User-Agent:") != 1 {
		t.Errorf("duplicate User-Agent in %q", got)
	}
	if !strings.Contains(got, "X-custom: 1\r\n") {
		t.Errorf("custom header missing: %q", got)
	}
	if !strings.Contains(got, "Accept: */*\r\n") {
		t.Errorf("default Accept missing: %q", got)
	}
	if strings.Index(got, "Accept:") > strings.Index(got, "User-Agent:") {
		t.Errorf("headers not sorted: %q", got)
	}
}
