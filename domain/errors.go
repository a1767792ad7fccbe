package domain

import "errors"

// Error taxonomy. Adapters wrap their causes with one of these sentinels so the
// session controller can classify failures with errors.Is.
var (
	// ErrDevice means the capture device is unusable. It is the only error that
	// terminates the pipeline.
	ErrDevice = errors.New("audio device error")
	// ErrTranscription ends the current session only.
	ErrTranscription = errors.New("transcription error")
	// ErrBackend covers transport and auth failures of the AI backend.
	ErrBackend = errors.New("ai backend error")
	// ErrTool is surfaced to the backend as data and never aborts a session.
	ErrTool      = errors.New("tool error")
	ErrSynthesis = errors.New("speech synthesis error")
	ErrPlayback  = errors.New("playback error")
)

// IsFatal reports whether err must stop the whole pipeline
func IsFatal(err error) bool {
	return errors.Is(err, ErrDevice)
}
