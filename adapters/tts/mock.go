package tts

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/satriahrh/mirrorvoice/domain"
	"github.com/satriahrh/mirrorvoice/domain/repositories"
)

const (
	mockSampleRate  = 16000
	mockPerChar     = 40 * time.Millisecond
	mockMaxDuration = 8 * time.Second
)

// MockTTS renders a quiet tone whose length follows the text length
type MockTTS struct{}

var _ repositories.TextToSpeech = (*MockTTS)(nil)

func NewMockTTS() *MockTTS {
	return &MockTTS{}
}

func (m *MockTTS) Synthesize(ctx context.Context, text string) (repositories.SynthesizedAudio, error) {
	if err := requireText(text); err != nil {
		return repositories.SynthesizedAudio{}, err
	}
	if err := ctx.Err(); err != nil {
		return repositories.SynthesizedAudio{}, fmt.Errorf("%w: %w", domain.ErrSynthesis, err)
	}

	duration := time.Duration(len(text)) * mockPerChar
	if duration > mockMaxDuration {
		duration = mockMaxDuration
	}

	samples := int(int64(mockSampleRate) * int64(duration) / int64(time.Second))
	data := make([]byte, samples*2)
	for i := 0; i < samples; i++ {
		v := int16(800 * math.Sin(2*math.Pi*440*float64(i)/mockSampleRate))
		binary.LittleEndian.PutUint16(data[i*2:], uint16(v))
	}

	return repositories.SynthesizedAudio{PCM: data, SampleRate: mockSampleRate}, nil
}
