package repositories

// KeywordSpotter hands out wake word detectors. A detector holds native
// resources and must be released before the device is reopened for capture.
type KeywordSpotter interface {
	Open() (KeywordDetector, error)
}

// KeywordDetector classifies fixed-length frames
type KeywordDetector interface {
	// FrameLength is the exact number of samples Process expects
	FrameLength() int
	// SampleRate is the rate frames must be captured at
	SampleRate() int
	// Process returns the index of the matched keyword, or -1
	Process(frame []int16) (int, error)
	Release() error
}
