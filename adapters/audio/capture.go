package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/mirrorvoice/domain"
	"github.com/satriahrh/mirrorvoice/domain/repositories"
	"github.com/satriahrh/mirrorvoice/internal/pcm"
)

const (
	defaultCaptureBinary = "arecord"
	defaultStartupGrace  = 150 * time.Millisecond
	chunkQueueSize       = 8
)

// ErrStreamClosed is returned by Read after Close
var ErrStreamClosed = errors.New("audio stream closed")

// CaptureConfig configures the ALSA capture source
type CaptureConfig struct {
	Binary       string
	Device       string
	Chunk        time.Duration
	StartupGrace time.Duration
}

// ALSACapture captures PCM16LE from an ALSA device through arecord
type ALSACapture struct {
	binary       string
	device       string
	chunk        time.Duration
	startupGrace time.Duration
	logger       *zap.Logger
}

var _ repositories.AudioSource = (*ALSACapture)(nil)

func NewALSACapture(config CaptureConfig, logger *zap.Logger) *ALSACapture {
	binary := config.Binary
	if binary == "" {
		binary = defaultCaptureBinary
	}
	device := config.Device
	if device == "" {
		device = "default"
		logger.Info("Using default capture device", zap.String("device", device))
	}
	chunk := config.Chunk
	if chunk <= 0 {
		chunk = 100 * time.Millisecond
	}
	grace := config.StartupGrace
	if grace <= 0 {
		grace = defaultStartupGrace
	}
	return &ALSACapture{
		binary:       binary,
		device:       device,
		chunk:        chunk,
		startupGrace: grace,
		logger:       logger,
	}
}

func captureArgs(device string, format repositories.AudioFormat) []string {
	channels := format.Channels
	if channels <= 0 {
		channels = 1
	}
	return []string{
		"-q",
		"-D", device,
		"-t", "raw",
		"-f", "S16_LE",
		"-c", strconv.Itoa(channels),
		"-r", strconv.Itoa(format.SampleRate),
	}
}

// Open starts arecord. A process that dies during the startup grace period is
// reported as a device error.
func (a *ALSACapture) Open(ctx context.Context, format repositories.AudioFormat) (repositories.AudioStream, error) {
	if format.SampleRate <= 0 {
		return nil, fmt.Errorf("%w: invalid sample rate %d", domain.ErrDevice, format.SampleRate)
	}

	cmd := exec.Command(a.binary, captureArgs(a.device, format)...)
	stderr := newTailBuffer(0)
	cmd.Stderr = stderr
	cmd.WaitDelay = stopGrace

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrDevice, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: failed to start %s: %w", domain.ErrDevice, a.binary, err)
	}

	s := &captureStream{
		cmd:        cmd,
		stdout:     stdout,
		stderr:     stderr,
		chunkBytes: pcm.BytesForDuration(format.SampleRate, a.chunk) * max(format.Channels, 1),
		sampleRate: format.SampleRate,
		chunks:     make(chan repositories.AudioChunk, chunkQueueSize),
		done:       make(chan error, 1),
		closed:     make(chan struct{}),
		logger:     a.logger,
	}

	go func() { s.done <- cmd.Wait() }()

	select {
	case err := <-s.done:
		return nil, fmt.Errorf("%w: %s: %s", domain.ErrDevice, a.device, describeExit(err, stderr))
	case <-time.After(a.startupGrace):
	case <-ctx.Done():
		s.Close()
		return nil, ctx.Err()
	}

	go s.readLoop()

	a.logger.Debug("Capture started",
		zap.String("device", a.device),
		zap.Int("sampleRate", format.SampleRate),
		zap.Int("chunkBytes", s.chunkBytes))

	return s, nil
}

type captureStream struct {
	cmd        *exec.Cmd
	stdout     io.ReadCloser
	stderr     *tailBuffer
	chunkBytes int
	sampleRate int
	chunks     chan repositories.AudioChunk
	done       chan error
	logger     *zap.Logger

	closeOnce sync.Once
	closed    chan struct{}

	mu  sync.Mutex
	err error
}

func (s *captureStream) readLoop() {
	defer close(s.chunks)

	for {
		buf := make([]byte, s.chunkBytes)
		n, err := io.ReadFull(s.stdout, buf)
		if n > 0 {
			select {
			case s.chunks <- repositories.AudioChunk{Data: buf[:n&^1], SampleRate: s.sampleRate}:
			case <-s.closed:
				return
			}
		}
		if err != nil {
			select {
			case <-s.closed:
				s.setErr(ErrStreamClosed)
			default:
				s.setErr(fmt.Errorf("%w: capture ended: %s", domain.ErrDevice, describeExit(err, s.stderr)))
			}
			return
		}
	}
}

func (s *captureStream) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

func (s *captureStream) Read(ctx context.Context) (repositories.AudioChunk, error) {
	select {
	case chunk, ok := <-s.chunks:
		if !ok {
			s.mu.Lock()
			defer s.mu.Unlock()
			return repositories.AudioChunk{}, s.err
		}
		return chunk, nil
	case <-s.closed:
		return repositories.AudioChunk{}, ErrStreamClosed
	case <-ctx.Done():
		return repositories.AudioChunk{}, ctx.Err()
	}
}

// Close stops arecord and waits for it to exit so the device is free on return
func (s *captureStream) Close() error {
	s.closeOnce.Do(func() {
		close(s.closed)
		stopProcess(s.cmd, s.done)
		s.stdout.Close()
	})
	return nil
}
