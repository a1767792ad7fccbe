package mock

import (
	"time"

	"github.com/satriahrh/mirrorvoice/domain/repositories"
)

const (
	mockFrameLength = 512
	mockSampleRate  = 16000
)

// IntervalSpotter hands out detectors that fire once after a fixed amount of
// audio has been processed
type IntervalSpotter struct {
	interval time.Duration
}

var _ repositories.KeywordSpotter = (*IntervalSpotter)(nil)

func NewIntervalSpotter(interval time.Duration) *IntervalSpotter {
	if interval <= 0 {
		interval = 20 * time.Second
	}
	return &IntervalSpotter{interval: interval}
}

func (s *IntervalSpotter) Open() (repositories.KeywordDetector, error) {
	frames := int(int64(s.interval) * mockSampleRate / int64(time.Second) / mockFrameLength)
	if frames < 1 {
		frames = 1
	}
	return &intervalDetector{framesUntilWake: frames}, nil
}

type intervalDetector struct {
	framesUntilWake int
	seen            int
}

func (d *intervalDetector) FrameLength() int { return mockFrameLength }
func (d *intervalDetector) SampleRate() int  { return mockSampleRate }

func (d *intervalDetector) Process(frame []int16) (int, error) {
	d.seen++
	if d.seen == d.framesUntilWake {
		return 0, nil
	}
	return -1, nil
}

func (d *intervalDetector) Release() error { return nil }
