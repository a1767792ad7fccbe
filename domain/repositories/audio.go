package repositories

import (
	"context"
	"encoding/binary"
)

// AudioFormat describes raw 16-bit signed little-endian PCM
type AudioFormat struct {
	SampleRate int `json:"sample_rate"`
	Channels   int `json:"channels"`
}

// AudioChunk is a buffer of PCM16LE samples read from the capture device
type AudioChunk struct {
	Data       []byte
	SampleRate int
}

// Samples decodes the chunk into int16 samples
func (c AudioChunk) Samples() []int16 {
	out := make([]int16, len(c.Data)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(c.Data[i*2:]))
	}
	return out
}

// AudioSource owns the capture device. At most one stream is open at a time;
// the session controller enforces that, not the source.
type AudioSource interface {
	// Open starts capturing. A device that cannot be opened yields domain.ErrDevice.
	Open(ctx context.Context, format AudioFormat) (AudioStream, error)
}

// AudioStream is a lazy, infinite sequence of chunks
type AudioStream interface {
	// Read blocks until the next chunk is available. Close unblocks it.
	Read(ctx context.Context) (AudioChunk, error)
	Close() error
}

// AudioPlayer plays synthesized audio to completion
type AudioPlayer interface {
	// Play blocks until playback ends, fails, or ctx is cancelled
	Play(ctx context.Context, audio SynthesizedAudio) error
}
