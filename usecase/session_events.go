package usecase

type eventKind int

const (
	eventWake eventKind = iota
	eventInterim
	eventFinal
	eventTranscriptionFailed
	eventDeviceFailed
	eventResponse
	eventPlaybackDone
)

func (k eventKind) String() string {
	switch k {
	case eventWake:
		return "wake"
	case eventInterim:
		return "interim"
	case eventFinal:
		return "final"
	case eventTranscriptionFailed:
		return "transcription_failed"
	case eventDeviceFailed:
		return "device_failed"
	case eventResponse:
		return "response"
	case eventPlaybackDone:
		return "playback_done"
	default:
		return "unknown"
	}
}

// sessionEvent is delivered to the controller loop. gen identifies the
// listener or session that produced it; events from a finished one are
// dropped.
type sessionEvent struct {
	kind     eventKind
	gen      uint64
	text     string
	response Response
	err      error
	apology  bool
}
