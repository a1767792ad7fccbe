package tts

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/mirrorvoice/domain"
	"github.com/satriahrh/mirrorvoice/domain/repositories"
)

const (
	defaultAPIBaseURL   = "https://api.elevenlabs.io/v1"
	defaultVoiceID      = "21m00Tcm4TlvDq8ikWAM" // Rachel
	defaultOutputFormat = "pcm_16000"
	defaultModelID      = "eleven_multilingual_v2"
	defaultStability    = 0.5
	defaultClarity      = 0.75
)

// ElevenLabsConfig configures the ElevenLabs voice. Only APIKey is required.
// OutputFormat must be a raw pcm_<rate> format since the speaker plays PCM
// directly.
type ElevenLabsConfig struct {
	APIKey       string
	APIBaseURL   string
	VoiceID      string
	ModelID      string
	OutputFormat string
	Stability    float64 // 0..1
	Clarity      float64 // similarity boost, 0..1
}

// ElevenLabsTTS implements TextToSpeech with the ElevenLabs streaming endpoint
type ElevenLabsTTS struct {
	apiKey     string
	voiceID    string
	endpoint   string
	modelID    string
	sampleRate int
	settings   elevenLabsVoiceSettings
	client     *http.Client
	logger     *zap.Logger
}

var _ repositories.TextToSpeech = (*ElevenLabsTTS)(nil)

type elevenLabsVoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	UseSpeakerBoost bool    `json:"use_speaker_boost,omitempty"`
}

type elevenLabsRequest struct {
	Text                   string                  `json:"text"`
	ModelID                string                  `json:"model_id"`
	VoiceSettings          elevenLabsVoiceSettings `json:"voice_settings"`
	ApplyTextNormalization string                  `json:"apply_text_normalization,omitempty"`
}

// ValidateElevenLabsConfig validates the ElevenLabsConfig
func ValidateElevenLabsConfig(config ElevenLabsConfig) error {
	if config.APIKey == "" {
		return fmt.Errorf("eleven labs API key is required")
	}
	if config.Stability < 0 || config.Stability > 1 {
		return fmt.Errorf("stability must be between 0 and 1, got %f", config.Stability)
	}
	if config.Clarity < 0 || config.Clarity > 1 {
		return fmt.Errorf("clarity must be between 0 and 1, got %f", config.Clarity)
	}
	if config.OutputFormat != "" {
		if _, err := pcmSampleRate(config.OutputFormat); err != nil {
			return err
		}
	}
	return nil
}

// pcmSampleRate parses the rate out of a pcm_<rate> output format
func pcmSampleRate(format string) (int, error) {
	rate, ok := strings.CutPrefix(format, "pcm_")
	if !ok {
		return 0, fmt.Errorf("output format %q is not raw pcm", format)
	}
	n, err := strconv.Atoi(rate)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid pcm sample rate in %q", format)
	}
	return n, nil
}

// withDefaults fills unset fields and logs each default it applies
func (c ElevenLabsConfig) withDefaults(logger *zap.Logger) ElevenLabsConfig {
	set := func(field *string, value, name string) {
		if *field == "" {
			*field = value
			logger.Info("Using default "+name, zap.String(name, value))
		}
	}
	set(&c.APIBaseURL, defaultAPIBaseURL, "apiBaseURL")
	set(&c.VoiceID, defaultVoiceID, "voiceID")
	set(&c.ModelID, defaultModelID, "modelID")
	set(&c.OutputFormat, defaultOutputFormat, "outputFormat")

	if c.Stability == 0 {
		c.Stability = defaultStability
	}
	if c.Clarity == 0 {
		c.Clarity = defaultClarity
	}
	return c
}

// NewElevenLabsTTS creates a new Eleven Labs TTS instance
func NewElevenLabsTTS(config ElevenLabsConfig, logger *zap.Logger) (*ElevenLabsTTS, error) {
	if err := ValidateElevenLabsConfig(config); err != nil {
		return nil, err
	}
	config = config.withDefaults(logger)

	sampleRate, err := pcmSampleRate(config.OutputFormat)
	if err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("output_format", config.OutputFormat)
	query.Set("enable_logging", "false")

	return &ElevenLabsTTS{
		apiKey:     config.APIKey,
		voiceID:    config.VoiceID,
		endpoint:   fmt.Sprintf("%s/text-to-speech/%s/stream?%s", config.APIBaseURL, url.PathEscape(config.VoiceID), query.Encode()),
		modelID:    config.ModelID,
		sampleRate: sampleRate,
		settings: elevenLabsVoiceSettings{
			Stability:       config.Stability,
			SimilarityBoost: config.Clarity,
			UseSpeakerBoost: true,
		},
		client: &http.Client{Timeout: 60 * time.Second},
		logger: logger,
	}, nil
}

// Synthesize converts text to raw PCM at the configured output rate
func (e *ElevenLabsTTS) Synthesize(ctx context.Context, text string) (repositories.SynthesizedAudio, error) {
	if err := requireText(text); err != nil {
		return repositories.SynthesizedAudio{}, err
	}

	e.logger.Info("Converting text to speech",
		zap.Int("textLength", len(text)),
		zap.String("voiceID", e.voiceID))

	data, err := post(ctx, e.client, e.logger, synthesisRequest{
		provider: "eleven labs",
		url:      e.endpoint,
		headers: map[string]string{
			"Accept":     "audio/pcm",
			"xi-api-key": e.apiKey,
		},
		body: elevenLabsRequest{
			Text:                   text,
			ModelID:                e.modelID,
			VoiceSettings:          e.settings,
			ApplyTextNormalization: "auto",
		},
	})
	if err != nil {
		return repositories.SynthesizedAudio{}, err
	}

	// samples are 16-bit, an odd trailing byte is noise
	data = data[:len(data)&^1]
	if len(data) == 0 {
		return repositories.SynthesizedAudio{}, fmt.Errorf("%w: eleven labs returned no audio", domain.ErrSynthesis)
	}

	e.logger.Debug("Received audio", zap.Int("bytes", len(data)))
	return repositories.SynthesizedAudio{PCM: data, SampleRate: e.sampleRate}, nil
}
