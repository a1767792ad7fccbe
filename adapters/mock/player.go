package mock

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/mirrorvoice/domain"
	"github.com/satriahrh/mirrorvoice/domain/repositories"
)

// PacedPlayer pretends to play audio by waiting for its duration
type PacedPlayer struct {
	logger *zap.Logger
}

var _ repositories.AudioPlayer = (*PacedPlayer)(nil)

func NewPacedPlayer(logger *zap.Logger) *PacedPlayer {
	return &PacedPlayer{logger: logger}
}

func (p *PacedPlayer) Play(ctx context.Context, audio repositories.SynthesizedAudio) error {
	if audio.SampleRate <= 0 {
		return fmt.Errorf("%w: invalid sample rate %d", domain.ErrPlayback, audio.SampleRate)
	}
	duration := time.Duration(len(audio.PCM)/2) * time.Second / time.Duration(audio.SampleRate)
	p.logger.Info("Playing audio", zap.Duration("duration", duration))

	timer := time.NewTimer(duration)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", domain.ErrPlayback, ctx.Err())
	}
}
