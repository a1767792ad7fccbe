package repositories

import "context"

// SynthesizedAudio is PCM16LE mono audio ready for playback
type SynthesizedAudio struct {
	PCM        []byte
	SampleRate int
}

// TextToSpeech synthesizes a reply in a single request
type TextToSpeech interface {
	Synthesize(ctx context.Context, text string) (SynthesizedAudio, error)
}
