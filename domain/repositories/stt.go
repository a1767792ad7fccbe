package repositories

import "context"

// SpeechToText abstracts streaming speech recognition services
type SpeechToText interface {
	// InitTranscribeStreaming opens a streaming transcription session
	InitTranscribeStreaming(ctx context.Context, config AudioConfig) (SpeechToTextStreaming, error)
}

// AudioConfig represents audio configuration for speech recognition
type AudioConfig struct {
	SampleRate int    `json:"sample_rate"`
	Encoding   string `json:"encoding"`
	Language   string `json:"language"`
}

// TranscriptEvent is an interim or final recognition result. A non-nil Err
// ends the stream.
type TranscriptEvent struct {
	Text    string
	IsFinal bool
	Err     error
}

// SpeechToTextStreaming is one attached transcription stream. Results is
// closed after the final event or an error.
type SpeechToTextStreaming interface {
	Stream(data []byte) error
	Results() <-chan TranscriptEvent
	Close() error
}
