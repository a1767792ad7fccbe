// Package mock provides hardware-free audio collaborators for running the
// pipeline on a development machine.
package mock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/satriahrh/mirrorvoice/domain/repositories"
	"github.com/satriahrh/mirrorvoice/internal/pcm"
)

// ErrClosed is returned by Read after Close
var ErrClosed = errors.New("mock stream closed")

// SilentSource produces silent chunks paced in real time
type SilentSource struct {
	chunk time.Duration

	mu   sync.Mutex
	open int
}

var _ repositories.AudioSource = (*SilentSource)(nil)

func NewSilentSource(chunk time.Duration) *SilentSource {
	if chunk <= 0 {
		chunk = 100 * time.Millisecond
	}
	return &SilentSource{chunk: chunk}
}

// OpenStreams returns the number of streams not yet closed
func (s *SilentSource) OpenStreams() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

func (s *SilentSource) Open(ctx context.Context, format repositories.AudioFormat) (repositories.AudioStream, error) {
	s.mu.Lock()
	s.open++
	s.mu.Unlock()

	return &silentStream{
		source:     s,
		ticker:     time.NewTicker(s.chunk),
		size:       pcm.BytesForDuration(format.SampleRate, s.chunk),
		sampleRate: format.SampleRate,
		closed:     make(chan struct{}),
	}, nil
}

type silentStream struct {
	source     *SilentSource
	ticker     *time.Ticker
	size       int
	sampleRate int
	once       sync.Once
	closed     chan struct{}
}

func (s *silentStream) Read(ctx context.Context) (repositories.AudioChunk, error) {
	select {
	case <-s.ticker.C:
		return repositories.AudioChunk{Data: make([]byte, s.size), SampleRate: s.sampleRate}, nil
	case <-s.closed:
		return repositories.AudioChunk{}, ErrClosed
	case <-ctx.Done():
		return repositories.AudioChunk{}, ctx.Err()
	}
}

func (s *silentStream) Close() error {
	s.once.Do(func() {
		s.ticker.Stop()
		close(s.closed)
		s.source.mu.Lock()
		s.source.open--
		s.source.mu.Unlock()
	})
	return nil
}
