package stream

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/sonroyaalmerol/jukebot/internal/queue"
)

const (
	voiceReadyTimeout = 5 * time.Second
	sendTimeout       = 200 * time.Millisecond
	maxDroppedPackets = 50
)

// VoiceConnector joins Discord voice channels.
type VoiceConnector struct {
	session *discordgo.Session
}

func NewVoiceConnector(s *discordgo.Session) *VoiceConnector {
	return &VoiceConnector{session: s}
}

func (c *VoiceConnector) Connect(ctx context.Context, guildID, channelID string, onStatus func(queue.StatusEvent)) (queue.AudioChannel, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vc, err := c.session.ChannelVoiceJoin(guildID, channelID, false, true)
	if err != nil {
		return nil, err
	}
	// This prevents the panic in Kill() when channels are closed
	if vc.OpusSend == nil {
		vc.OpusSend = make(chan []byte, 2)
	}
	if vc.OpusRecv == nil {
		vc.OpusRecv = make(chan *discordgo.Packet, 2)
	}
	slog.Info("joined voice channel", "guildID", guildID, "channelID", channelID)
	return &VoiceChannel{guildID: guildID, vc: vc, notify: onStatus}, nil
}

// VoiceChannel plays one stream at a time into a voice connection.
type VoiceChannel struct {
	guildID string
	notify  func(queue.StatusEvent)

	mu   sync.Mutex
	vc   *discordgo.VoiceConnection
	seq  uint64
	cur  *playSession
	done bool
}

type playSession struct {
	id     uint64
	ctx    context.Context
	cancel context.CancelFunc

	pcm *PCMStreamer
	enc *Encoder

	doneCh chan struct{}
}

func (v *VoiceChannel) Play(ctx context.Context, streamURL string) (uint64, error) {
	v.mu.Lock()
	if v.vc == nil || v.done {
		v.mu.Unlock()
		return 0, errors.New("not connected")
	}
	v.stopLocked()
	vc := v.vc
	v.mu.Unlock()

	playCtx, playCancel := context.WithCancel(ctx)
	pcm, err := StartPCMStream(playCtx, streamURL)
	if err != nil {
		playCancel()
		return 0, err
	}
	enc, err := NewEncoder()
	if err != nil {
		pcm.Close()
		playCancel()
		return 0, err
	}

	v.mu.Lock()
	v.seq++
	sess := &playSession{
		id:     v.seq,
		ctx:    playCtx,
		cancel: playCancel,
		pcm:    pcm,
		enc:    enc,
		doneCh: make(chan struct{}),
	}
	v.cur = sess
	v.mu.Unlock()

	go v.sendLoop(vc, sess)
	return sess.id, nil
}

func (v *VoiceChannel) Stop() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.stopLocked()
}

// stopLocked stops the current play session. Caller must hold v.mu.
// It will temporarily release the lock while waiting for the goroutine to end.
func (v *VoiceChannel) stopLocked() {
	if v.cur == nil {
		return
	}
	sess := v.cur
	v.cur = nil

	sess.cancel()

	done := sess.doneCh
	v.mu.Unlock()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		slog.Warn("send loop did not stop in time", "guildID", v.guildID, "playback", sess.id)
	}
	v.mu.Lock()
}

func (v *VoiceChannel) Disconnect() error {
	v.mu.Lock()
	v.stopLocked()
	vc := v.vc
	v.vc = nil
	v.done = true
	v.mu.Unlock()

	return safeDisconnect(v.guildID, vc)
}

// safeDisconnect safely disconnects a voice connection with proper cleanup
func safeDisconnect(guildID string, vc *discordgo.VoiceConnection) (err error) {
	if vc == nil {
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			slog.Error("voice disconnect panic recovered", "panic", r, "guildID", guildID)
			err = fmt.Errorf("voice disconnect panic: %v", r)
		}
	}()

	if vc.OpusSend == nil {
		vc.OpusSend = make(chan []byte, 2)
	}
	if vc.OpusRecv == nil {
		vc.OpusRecv = make(chan *discordgo.Packet, 2)
	}

	_ = vc.Speaking(false)
	return vc.Disconnect()
}

// emit never blocks the caller; the queue handles events under its own lock.
func (v *VoiceChannel) emit(ev queue.StatusEvent) {
	if v.notify == nil {
		return
	}
	go v.notify(ev)
}

func waitVoiceReady(ctx context.Context, vc *discordgo.VoiceConnection) bool {
	deadline := time.Now().Add(voiceReadyTimeout)
	for time.Now().Before(deadline) {
		vc.RLock()
		ready := vc.Ready && vc.OpusSend != nil
		vc.RUnlock()
		if ready {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(100 * time.Millisecond):
		}
	}
	return false
}

func (v *VoiceChannel) sendLoop(vc *discordgo.VoiceConnection, sess *playSession) {
	var playErr error
	defer func() {
		if r := recover(); r != nil {
			slog.Error("send loop panic recovered", "panic", r, "guildID", v.guildID)
			playErr = fmt.Errorf("send loop panic: %v", r)
		}
		sess.enc.Close()
		sess.pcm.Close()
		sess.cancel()
		close(sess.doneCh)

		status := queue.StatusIdle
		if playErr != nil {
			status = queue.StatusError
		}
		v.emit(queue.StatusEvent{Playback: sess.id, Status: status, Err: playErr})
	}()

	if !waitVoiceReady(sess.ctx, vc) {
		if sess.ctx.Err() == nil {
			playErr = errors.New("voice connection not ready")
		}
		return
	}

	_ = vc.Speaking(true)
	defer vc.Speaking(false)

	v.emit(queue.StatusEvent{Playback: sess.id, Status: queue.StatusPlaying})
	playErr = v.pump(vc, sess)
}

// pump reads PCM frames, encodes them and hands them to discordgo, which
// paces OpusSend at 20 ms. A cancelled session is not an error.
func (v *VoiceChannel) pump(vc *discordgo.VoiceConnection, sess *playSession) error {
	r := bufio.NewReaderSize(sess.pcm.Stdout(), 128*1024)
	frame := make([]byte, FrameBytes())
	dropped := 0

	for {
		if _, err := io.ReadFull(r, frame); err != nil {
			if sess.ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return sess.pcm.Wait()
			}
			return fmt.Errorf("read pcm: %w", err)
		}

		err := sess.enc.EncodeFrame(frame, func(pkt []byte) error {
			out := append([]byte(nil), pkt...)
			select {
			case <-sess.ctx.Done():
				return sess.ctx.Err()
			case vc.OpusSend <- out:
				dropped = 0
			case <-time.After(sendTimeout):
				dropped++
				if dropped >= maxDroppedPackets {
					return errors.New("voice send stalled")
				}
			}
			return nil
		})
		if err != nil {
			if sess.ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}
