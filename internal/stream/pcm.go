package stream

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"

	"github.com/sonroyaalmerol/jukebot/internal/utils"
)

// PCMStreamer manages ffmpeg PCM streaming (s16le, 48k, stereo).
type PCMStreamer struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr *bytes.Buffer
	cancel context.CancelFunc

	waitOnce sync.Once
	waitErr  error
}

func pcmArgs(inputURL string) []string {
	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-reconnect", "1", "-reconnect_streamed", "1", "-reconnect_delay_max", "5",
	}
	if strings.HasPrefix(inputURL, "http") {
		if h := utils.BuildFFmpegHeaders(map[string]string{"User-Agent": utils.RandomUserAgent()}); h != "" {
			args = append(args, "-headers", h)
		}
	}
	return append(args,
		"-i", inputURL,
		"-vn",
		"-ac", "2",
		"-ar", "48000",
		"-f", "s16le",
		"pipe:1",
	)
}

func StartPCMStream(ctx context.Context, inputURL string) (*PCMStreamer, error) {
	ctx2, cancel := context.WithCancel(ctx)

	cmd := exec.CommandContext(ctx2, "ffmpeg", pcmArgs(inputURL)...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("ffmpeg stdout: %w", err)
	}
	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("ffmpeg start: %w (stderr: %s)", err, stderr.String())
	}

	return &PCMStreamer{
		cmd:    cmd,
		stdout: stdout,
		stderr: stderr,
		cancel: cancel,
	}, nil
}

func (s *PCMStreamer) Stdout() io.Reader {
	return s.stdout
}

// Wait reaps ffmpeg and reports a non-zero exit with its stderr.
func (s *PCMStreamer) Wait() error {
	s.waitOnce.Do(func() {
		if err := s.cmd.Wait(); err != nil {
			s.waitErr = fmt.Errorf("ffmpeg: %w (stderr: %s)", err, strings.TrimSpace(s.stderr.String()))
		}
	})
	return s.waitErr
}

func (s *PCMStreamer) Close() {
	s.cancel()
	if s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
	_ = s.Wait()
}
