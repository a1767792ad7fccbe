package audio

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"

	"go.uber.org/zap"

	"github.com/satriahrh/mirrorvoice/domain"
	"github.com/satriahrh/mirrorvoice/domain/repositories"
)

const defaultPlaybackBinary = "aplay"

// PlaybackConfig configures the ALSA player
type PlaybackConfig struct {
	Binary string
	Device string
}

// ALSAPlayer plays PCM16LE mono through aplay
type ALSAPlayer struct {
	binary string
	device string
	logger *zap.Logger
}

var _ repositories.AudioPlayer = (*ALSAPlayer)(nil)

func NewALSAPlayer(config PlaybackConfig, logger *zap.Logger) *ALSAPlayer {
	binary := config.Binary
	if binary == "" {
		binary = defaultPlaybackBinary
	}
	device := config.Device
	if device == "" {
		device = "default"
		logger.Info("Using default playback device", zap.String("device", device))
	}
	return &ALSAPlayer{binary: binary, device: device, logger: logger}
}

func playbackArgs(device string, sampleRate int) []string {
	return []string{
		"-q",
		"-D", device,
		"-t", "raw",
		"-f", "S16_LE",
		"-c", "1",
		"-r", strconv.Itoa(sampleRate),
	}
}

// Play blocks until aplay drains the audio. Cancelling ctx stops playback.
func (p *ALSAPlayer) Play(ctx context.Context, audio repositories.SynthesizedAudio) error {
	if len(audio.PCM) == 0 {
		return nil
	}
	if audio.SampleRate <= 0 {
		return fmt.Errorf("%w: invalid sample rate %d", domain.ErrPlayback, audio.SampleRate)
	}

	cmd := exec.Command(p.binary, playbackArgs(p.device, audio.SampleRate)...)
	cmd.Stdin = bytes.NewReader(audio.PCM)
	stderr := newTailBuffer(0)
	cmd.Stderr = stderr
	cmd.WaitDelay = stopGrace

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: failed to start %s: %w", domain.ErrPlayback, p.binary, err)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("%w: %s", domain.ErrPlayback, describeExit(err, stderr))
		}
		return nil
	case <-ctx.Done():
		stopProcess(cmd, done)
		p.logger.Debug("Playback interrupted", zap.Error(ctx.Err()))
		return fmt.Errorf("%w: %w", domain.ErrPlayback, ctx.Err())
	}
}
