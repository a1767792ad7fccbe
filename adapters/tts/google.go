package tts

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/mirrorvoice/domain"
	"github.com/satriahrh/mirrorvoice/domain/repositories"
	"github.com/satriahrh/mirrorvoice/internal/pcm"
)

const (
	defaultGoogleTTSURL     = "https://texttospeech.googleapis.com/v1/text:synthesize"
	defaultGoogleVoice      = "en-US-Standard-F"
	defaultGoogleLanguage   = "en-US"
	defaultGoogleGender     = "FEMALE"
	defaultSpeakingRate     = 0.9
	defaultGoogleSampleRate = 24000
)

// GoogleTTSConfig holds configuration for the Google Cloud Text-to-Speech adapter
type GoogleTTSConfig struct {
	APIKey       string
	Endpoint     string
	LanguageCode string
	VoiceName    string
	VoiceGender  string
	SpeakingRate float64
	Pitch        float64
	SampleRate   int
}

// GoogleTTS implements TextToSpeech with the Cloud Text-to-Speech REST API
type GoogleTTS struct {
	apiKey       string
	endpoint     string
	languageCode string
	voiceName    string
	voiceGender  string
	speakingRate float64
	pitch        float64
	sampleRate   int
	client       *http.Client
	logger       *zap.Logger
}

var _ repositories.TextToSpeech = (*GoogleTTS)(nil)

type googleSynthesizeRequest struct {
	Input       googleInput       `json:"input"`
	Voice       googleVoice       `json:"voice"`
	AudioConfig googleAudioConfig `json:"audioConfig"`
}

type googleInput struct {
	Text string `json:"text"`
}

type googleVoice struct {
	LanguageCode string `json:"languageCode"`
	Name         string `json:"name,omitempty"`
	SSMLGender   string `json:"ssmlGender,omitempty"`
}

type googleAudioConfig struct {
	AudioEncoding   string  `json:"audioEncoding"`
	SampleRateHertz int     `json:"sampleRateHertz"`
	SpeakingRate    float64 `json:"speakingRate,omitempty"`
	Pitch           float64 `json:"pitch"`
}

type googleSynthesizeResponse struct {
	AudioContent string `json:"audioContent"`
}

// NewGoogleTTS creates a new Google TTS instance
func NewGoogleTTS(config GoogleTTSConfig, logger *zap.Logger) (*GoogleTTS, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("google text-to-speech API key is required")
	}

	endpoint := config.Endpoint
	if endpoint == "" {
		endpoint = defaultGoogleTTSURL
	}

	languageCode := config.LanguageCode
	if languageCode == "" {
		languageCode = defaultGoogleLanguage
		logger.Info("Using default language code", zap.String("languageCode", languageCode))
	}

	voiceName := config.VoiceName
	if voiceName == "" {
		voiceName = defaultGoogleVoice
		logger.Info("Using default voice", zap.String("voiceName", voiceName))
	}

	voiceGender := config.VoiceGender
	if voiceGender == "" {
		voiceGender = defaultGoogleGender
	}

	speakingRate := config.SpeakingRate
	if speakingRate == 0 {
		speakingRate = defaultSpeakingRate
		logger.Info("Using default speaking rate", zap.Float64("speakingRate", speakingRate))
	}

	sampleRate := config.SampleRate
	if sampleRate == 0 {
		sampleRate = defaultGoogleSampleRate
	}

	return &GoogleTTS{
		apiKey:       config.APIKey,
		endpoint:     endpoint,
		languageCode: languageCode,
		voiceName:    voiceName,
		voiceGender:  voiceGender,
		speakingRate: speakingRate,
		pitch:        config.Pitch,
		sampleRate:   sampleRate,
		client:       &http.Client{Timeout: 30 * time.Second},
		logger:       logger,
	}, nil
}

// Synthesize converts text to LINEAR16 PCM
func (g *GoogleTTS) Synthesize(ctx context.Context, text string) (repositories.SynthesizedAudio, error) {
	if err := requireText(text); err != nil {
		return repositories.SynthesizedAudio{}, err
	}

	body, err := post(ctx, g.client, g.logger, synthesisRequest{
		provider: "google tts",
		url:      g.endpoint + "?key=" + url.QueryEscape(g.apiKey),
		body: googleSynthesizeRequest{
			Input: googleInput{Text: text},
			Voice: googleVoice{
				LanguageCode: g.languageCode,
				Name:         g.voiceName,
				SSMLGender:   g.voiceGender,
			},
			AudioConfig: googleAudioConfig{
				AudioEncoding:   "LINEAR16",
				SampleRateHertz: g.sampleRate,
				SpeakingRate:    g.speakingRate,
				Pitch:           g.pitch,
			},
		},
	})
	if err != nil {
		return repositories.SynthesizedAudio{}, err
	}

	var out googleSynthesizeResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return repositories.SynthesizedAudio{}, fmt.Errorf("%w: failed to decode response: %w", domain.ErrSynthesis, err)
	}
	raw, err := base64.StdEncoding.DecodeString(out.AudioContent)
	if err != nil {
		return repositories.SynthesizedAudio{}, fmt.Errorf("%w: invalid audio content: %w", domain.ErrSynthesis, err)
	}

	// LINEAR16 responses carry a WAV header
	data, rate, err := pcm.StripWAVHeader(raw)
	if err != nil {
		return repositories.SynthesizedAudio{}, fmt.Errorf("%w: %w", domain.ErrSynthesis, err)
	}
	if rate == 0 {
		rate = g.sampleRate
	}
	if len(data) == 0 {
		return repositories.SynthesizedAudio{}, fmt.Errorf("%w: google tts returned no audio", domain.ErrSynthesis)
	}

	g.logger.Debug("Synthesized speech", zap.Int("bytes", len(data)), zap.Int("sampleRate", rate))
	return repositories.SynthesizedAudio{PCM: data, SampleRate: rate}, nil
}
