package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/mirrorvoice/domain"
	"github.com/satriahrh/mirrorvoice/domain/repositories"
)

// Speaker synthesizes text and plays it. At most one playback is active; a
// new Speak cancels the previous one and waits for it to return.
type Speaker struct {
	tts     repositories.TextToSpeech
	player  repositories.AudioPlayer
	timeout time.Duration
	logger  *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	seq    uint64
}

func NewSpeaker(tts repositories.TextToSpeech, player repositories.AudioPlayer, timeout time.Duration, logger *zap.Logger) *Speaker {
	if timeout <= 0 {
		timeout = 90 * time.Second
		logger.Info("Using default playback timeout", zap.Duration("timeout", timeout))
	}
	return &Speaker{
		tts:     tts,
		player:  player,
		timeout: timeout,
		logger:  logger,
	}
}

// Speak blocks until playback completes. Errors wrap domain.ErrSynthesis or
// domain.ErrPlayback.
func (s *Speaker) Speak(ctx context.Context, text string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	done := make(chan struct{})
	defer close(done)

	s.mu.Lock()
	prevCancel, prevDone := s.cancel, s.done
	s.seq++
	seq := s.seq
	s.cancel = cancel
	s.done = done
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		if s.seq == seq {
			s.cancel = nil
			s.done = nil
		}
		s.mu.Unlock()
	}()

	if prevCancel != nil {
		prevCancel()
	}
	if prevDone != nil {
		select {
		case <-prevDone:
		case <-ctx.Done():
			return fmt.Errorf("%w: previous playback did not stop: %w", domain.ErrPlayback, ctx.Err())
		}
	}

	start := time.Now()
	audio, err := s.tts.Synthesize(ctx, text)
	if err != nil {
		if errors.Is(err, domain.ErrSynthesis) {
			return err
		}
		return fmt.Errorf("%w: %w", domain.ErrSynthesis, err)
	}
	s.logger.Debug("Synthesis completed",
		zap.Int("bytes", len(audio.PCM)),
		zap.Int("sampleRate", audio.SampleRate),
		zap.Duration("took", time.Since(start)))

	if err := s.player.Play(ctx, audio); err != nil {
		if errors.Is(err, domain.ErrPlayback) {
			return err
		}
		return fmt.Errorf("%w: %w", domain.ErrPlayback, err)
	}
	return nil
}

// Stop cancels the active playback, if any
func (s *Speaker) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}
