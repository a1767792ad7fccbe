package pcm

// FrameBuffer accumulates arbitrarily sized sample slices into frames of a
// fixed length, as required by the keyword detector.
type FrameBuffer struct {
	frameLength int
	pending     []int16
}

// NewFrameBuffer creates a buffer emitting frames of frameLength samples
func NewFrameBuffer(frameLength int) *FrameBuffer {
	if frameLength < 1 {
		frameLength = 1
	}
	return &FrameBuffer{
		frameLength: frameLength,
		pending:     make([]int16, 0, frameLength*2),
	}
}

// Push appends samples and returns every complete frame now available. The
// returned frames do not alias the buffer.
func (b *FrameBuffer) Push(samples []int16) [][]int16 {
	b.pending = append(b.pending, samples...)

	var frames [][]int16
	for len(b.pending) >= b.frameLength {
		frame := make([]int16, b.frameLength)
		copy(frame, b.pending[:b.frameLength])
		frames = append(frames, frame)
		b.pending = b.pending[b.frameLength:]
	}

	// compact so the backing array does not grow without bound
	if len(b.pending) > 0 {
		rest := make([]int16, len(b.pending), b.frameLength*2)
		copy(rest, b.pending)
		b.pending = rest
	} else {
		b.pending = b.pending[:0]
	}
	return frames
}

// Buffered returns the number of samples waiting for a full frame
func (b *FrameBuffer) Buffered() int {
	return len(b.pending)
}

// Reset drops buffered samples
func (b *FrameBuffer) Reset() {
	b.pending = b.pending[:0]
}
