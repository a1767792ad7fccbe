package stt

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/satriahrh/mirrorvoice/domain/repositories"
)

// MockSpeechToText replays scripted utterances, one per stream, cycling through
// the script. Words are revealed as interim results while audio arrives.
type MockSpeechToText struct {
	logger       *zap.Logger
	utterances   []string
	bytesPerWord int
	mu           sync.Mutex
	next         int
}

var _ repositories.SpeechToText = (*MockSpeechToText)(nil)

// DefaultMockUtterances are used when no script is given
var DefaultMockUtterances = []string{
	"what time is it",
	"what's the weather like",
	"remind me to stretch in 1 minute",
}

// NewMockSpeechToText creates a new mock speech-to-text service. bytesPerWord
// is the amount of audio consumed before each word is revealed.
func NewMockSpeechToText(utterances []string, bytesPerWord int, logger *zap.Logger) *MockSpeechToText {
	if len(utterances) == 0 {
		utterances = DefaultMockUtterances
	}
	if bytesPerWord <= 0 {
		bytesPerWord = 6400
		logger.Info("Using default mock bytes per word", zap.Int("bytesPerWord", bytesPerWord))
	}
	return &MockSpeechToText{
		logger:       logger,
		utterances:   utterances,
		bytesPerWord: bytesPerWord,
	}
}

// InitTranscribeStreaming creates a new mock streaming session
func (s *MockSpeechToText) InitTranscribeStreaming(ctx context.Context, config repositories.AudioConfig) (repositories.SpeechToTextStreaming, error) {
	s.mu.Lock()
	utterance := s.utterances[s.next%len(s.utterances)]
	s.next++
	s.mu.Unlock()

	s.logger.Info("Initializing mock streaming transcription",
		zap.Int("sampleRate", config.SampleRate),
		zap.String("language", config.Language),
		zap.String("utterance", utterance))

	return &MockSpeechToTextStream{
		words:        strings.Fields(utterance),
		bytesPerWord: s.bytesPerWord,
		results:      make(chan repositories.TranscriptEvent, resultBufferSize),
	}, nil
}

// MockSpeechToTextStream is a mock implementation of streaming speech recognition
type MockSpeechToTextStream struct {
	mu           sync.Mutex
	words        []string
	bytesPerWord int
	received     int
	revealed     int
	done         bool
	results      chan repositories.TranscriptEvent
}

// Stream implements mock streaming audio processing
func (m *MockSpeechToTextStream) Stream(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.done {
		return nil
	}

	m.received += len(data)
	for m.revealed < len(m.words) && m.received >= (m.revealed+1)*m.bytesPerWord {
		m.revealed++
		text := strings.Join(m.words[:m.revealed], " ")
		final := m.revealed == len(m.words)
		m.push(repositories.TranscriptEvent{Text: text, IsFinal: final})
		if final {
			m.done = true
			close(m.results)
			return nil
		}
	}
	return nil
}

func (m *MockSpeechToTextStream) push(event repositories.TranscriptEvent) {
	select {
	case m.results <- event:
	default:
		// consumer stopped reading, later events supersede this one
	}
}

func (m *MockSpeechToTextStream) Results() <-chan repositories.TranscriptEvent {
	return m.results
}

func (m *MockSpeechToTextStream) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.done {
		m.done = true
		close(m.results)
	}
	return nil
}
