package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/satriahrh/mirrorvoice/domain"
	"github.com/satriahrh/mirrorvoice/domain/repositories"
)

const (
	captureSampleRate = 16000
	captureEncoding   = "LINEAR16"
)

// commandCapture is the CommandCapture consumer of the audio source
type commandCapture struct {
	gen        uint64
	cancel     context.CancelFunc
	stream     repositories.AudioStream
	transcribe repositories.SpeechToTextStreaming
	wg         sync.WaitGroup
}

// startCapture attaches a transcription stream to a fresh audio stream. A
// source failure is a device error, a transcriber failure a transcription
// error.
func (c *SessionController) startCapture(ctx context.Context, gen uint64) error {
	stream, err := c.source.Open(ctx, repositories.AudioFormat{SampleRate: captureSampleRate, Channels: 1})
	if err != nil {
		return deviceError("failed to open audio source for capture", err)
	}

	transcribe, err := c.stt.InitTranscribeStreaming(ctx, repositories.AudioConfig{
		SampleRate: captureSampleRate,
		Encoding:   captureEncoding,
		Language:   c.config.LanguageCode,
	})
	if err != nil {
		if cerr := stream.Close(); cerr != nil {
			c.logger.Warn("Failed to close capture stream", zap.Error(cerr))
		}
		return transcriptionError(err)
	}

	cctx, cancel := context.WithCancel(ctx)
	capture := &commandCapture{
		gen:        gen,
		cancel:     cancel,
		stream:     stream,
		transcribe: transcribe,
	}
	c.capture = capture

	capture.wg.Add(2)
	go c.pumpAudio(cctx, capture)
	go c.forwardTranscripts(cctx, capture)
	return nil
}

func (c *SessionController) pumpAudio(ctx context.Context, capture *commandCapture) {
	defer capture.wg.Done()
	for {
		chunk, err := capture.stream.Read(ctx)
		if err != nil {
			if ctx.Err() == nil {
				c.post(ctx, sessionEvent{kind: eventDeviceFailed, gen: capture.gen, err: deviceError("capture stream failed", err)})
			}
			return
		}
		if err := capture.transcribe.Stream(chunk.Data); err != nil {
			if ctx.Err() == nil {
				c.post(ctx, sessionEvent{kind: eventTranscriptionFailed, gen: capture.gen, err: transcriptionError(err)})
			}
			return
		}
	}
}

func (c *SessionController) forwardTranscripts(ctx context.Context, capture *commandCapture) {
	defer capture.wg.Done()
	results := capture.transcribe.Results()
	for {
		select {
		case ev, ok := <-results:
			switch {
			case !ok:
				c.post(ctx, sessionEvent{
					kind: eventTranscriptionFailed,
					gen:  capture.gen,
					err:  transcriptionError(errors.New("stream ended without a final transcript")),
				})
				return
			case ev.Err != nil:
				c.post(ctx, sessionEvent{kind: eventTranscriptionFailed, gen: capture.gen, err: transcriptionError(ev.Err)})
				return
			case ev.IsFinal:
				c.post(ctx, sessionEvent{kind: eventFinal, gen: capture.gen, text: ev.Text})
				return
			default:
				c.post(ctx, sessionEvent{kind: eventInterim, gen: capture.gen, text: ev.Text})
			}
		case <-ctx.Done():
			return
		}
	}
}

// stopCapture detaches the transcriber and closes the audio stream
func (c *SessionController) stopCapture() {
	capture := c.capture
	if capture == nil {
		return
	}
	c.capture = nil

	capture.cancel()
	if err := capture.transcribe.Close(); err != nil {
		c.logger.Debug("Transcription stream close", zap.Error(err))
	}
	if err := capture.stream.Close(); err != nil {
		c.logger.Warn("Failed to close capture stream", zap.Error(err))
	}
	capture.wg.Wait()
	c.logger.Debug("Command capture stopped")
}

func transcriptionError(err error) error {
	if errors.Is(err, domain.ErrTranscription) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrTranscription, err)
}
