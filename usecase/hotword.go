package usecase

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/satriahrh/mirrorvoice/domain"
	"github.com/satriahrh/mirrorvoice/domain/repositories"
	"github.com/satriahrh/mirrorvoice/internal/pcm"
)

// hotwordListener is the Idle consumer of the audio source
type hotwordListener struct {
	gen      uint64
	cancel   context.CancelFunc
	stream   repositories.AudioStream
	detector repositories.KeywordDetector
	done     chan struct{}
}

// startListening opens a detector and a stream at its rate. Failures are
// device errors.
func (c *SessionController) startListening(ctx context.Context) error {
	detector, err := c.spotter.Open()
	if err != nil {
		return deviceError("failed to open keyword detector", err)
	}

	stream, err := c.source.Open(ctx, repositories.AudioFormat{SampleRate: detector.SampleRate(), Channels: 1})
	if err != nil {
		if rerr := detector.Release(); rerr != nil {
			c.logger.Warn("Failed to release keyword detector", zap.Error(rerr))
		}
		return deviceError("failed to open audio source for hotword", err)
	}

	c.gen++
	lctx, cancel := context.WithCancel(ctx)
	l := &hotwordListener{
		gen:      c.gen,
		cancel:   cancel,
		stream:   stream,
		detector: detector,
		done:     make(chan struct{}),
	}
	c.listener = l

	go c.listen(lctx, l)

	c.logger.Debug("Hotword listening started",
		zap.Int("sampleRate", detector.SampleRate()),
		zap.Int("frameLength", detector.FrameLength()))
	return nil
}

func (c *SessionController) listen(ctx context.Context, l *hotwordListener) {
	defer close(l.done)

	frames := pcm.NewFrameBuffer(l.detector.FrameLength())
	for {
		chunk, err := l.stream.Read(ctx)
		if err != nil {
			if ctx.Err() == nil {
				c.post(ctx, sessionEvent{kind: eventDeviceFailed, gen: l.gen, err: deviceError("hotword stream failed", err)})
			}
			return
		}

		for _, frame := range frames.Push(chunk.Samples()) {
			index, err := l.detector.Process(frame)
			if err != nil {
				c.post(ctx, sessionEvent{kind: eventDeviceFailed, gen: l.gen, err: deviceError("keyword detector failed", err)})
				return
			}
			if index >= 0 {
				c.logger.Info("Wake word detected", zap.Int("keyword", index))
				c.post(ctx, sessionEvent{kind: eventWake, gen: l.gen})
				return
			}
		}
	}
}

// stopListening detaches the listener and releases the detector after the
// stream is closed
func (c *SessionController) stopListening() {
	l := c.listener
	if l == nil {
		return
	}
	c.listener = nil

	l.cancel()
	if err := l.stream.Close(); err != nil {
		c.logger.Warn("Failed to close hotword stream", zap.Error(err))
	}
	<-l.done
	if err := l.detector.Release(); err != nil {
		c.logger.Warn("Failed to release keyword detector", zap.Error(err))
	}
	c.logger.Debug("Hotword listening stopped")
}

func deviceError(msg string, err error) error {
	return fmt.Errorf("%w: %s: %w", domain.ErrDevice, msg, err)
}
