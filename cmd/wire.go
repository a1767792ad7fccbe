package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/satriahrh/mirrorvoice/adapters/audio"
	"github.com/satriahrh/mirrorvoice/adapters/filestore"
	"github.com/satriahrh/mirrorvoice/adapters/keyword"
	"github.com/satriahrh/mirrorvoice/adapters/llm"
	"github.com/satriahrh/mirrorvoice/adapters/memory"
	"github.com/satriahrh/mirrorvoice/adapters/mock"
	"github.com/satriahrh/mirrorvoice/adapters/mongo"
	"github.com/satriahrh/mirrorvoice/adapters/stt"
	"github.com/satriahrh/mirrorvoice/adapters/tools"
	"github.com/satriahrh/mirrorvoice/adapters/tts"
	"github.com/satriahrh/mirrorvoice/domain/repositories"
	"github.com/satriahrh/mirrorvoice/internal/config"
)

const memoryArchiveSize = 200

type cleanup func()

func buildLLM(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repositories.LargeLanguageModel, error) {
	logger = logger.Named("llm")
	switch cfg.AIProvider {
	case "gemini":
		return llm.NewGeminiLLM(ctx, llm.GeminiConfig{
			APIKey:          cfg.GeminiAPIKey,
			Model:           cfg.GeminiModel,
			Temperature:     float32(cfg.Temperature),
			MaxOutputTokens: cfg.MaxOutputTokens,
			MaxRetries:      cfg.BackendMaxRetries,
		}, logger)
	case "openai":
		return llm.NewOpenAILLM(llm.OpenAIConfig{
			APIKey:          cfg.OpenAIAPIKey,
			BaseURL:         cfg.OpenAIBaseURL,
			Model:           cfg.OpenAIModel,
			Temperature:     float32(cfg.Temperature),
			MaxOutputTokens: cfg.MaxOutputTokens,
			MaxRetries:      cfg.BackendMaxRetries,
		}, logger)
	case "mock":
		logger.Warn("Using mock AI backend")
		return llm.NewMockLLM(), nil
	default:
		return nil, fmt.Errorf("unknown ai_provider %q", cfg.AIProvider)
	}
}

func buildSTT(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repositories.SpeechToText, cleanup, error) {
	logger = logger.Named("stt")
	switch cfg.STTProvider {
	case "google":
		client, err := stt.NewGoogleSpeechToText(ctx, cfg.GoogleApplicationCredentials, logger)
		if err != nil {
			return nil, nil, err
		}
		return client, func() {
			if err := client.Close(); err != nil {
				logger.Warn("Failed to close speech client", zap.Error(err))
			}
		}, nil
	case "mock":
		logger.Warn("Using mock speech to text")
		return stt.NewMockSpeechToText(nil, 0, logger), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown stt_provider %q", cfg.STTProvider)
	}
}

func buildTTS(cfg *config.Config, logger *zap.Logger) (repositories.TextToSpeech, error) {
	logger = logger.Named("tts")
	switch cfg.TTSProvider {
	case "google":
		return tts.NewGoogleTTS(tts.GoogleTTSConfig{
			APIKey:       cfg.GoogleTTSAPIKey,
			LanguageCode: cfg.LanguageCode,
			VoiceName:    cfg.VoiceName,
			VoiceGender:  cfg.VoiceGender,
			SpeakingRate: cfg.SpeakingRate,
			Pitch:        cfg.Pitch,
			SampleRate:   cfg.TTSSampleRate,
		}, logger)
	case "elevenlabs":
		return tts.NewElevenLabsTTS(tts.ElevenLabsConfig{
			APIKey:       cfg.ElevenLabsAPIKey,
			VoiceID:      cfg.ElevenLabsVoiceID,
			ModelID:      cfg.ElevenLabsModelID,
			OutputFormat: cfg.ElevenLabsOutputFormat,
			Stability:    cfg.ElevenLabsStability,
			Clarity:      cfg.ElevenLabsSimilarity,
		}, logger)
	case "mock":
		logger.Warn("Using mock text to speech")
		return tts.NewMockTTS(), nil
	default:
		return nil, fmt.Errorf("unknown tts_provider %q", cfg.TTSProvider)
	}
}

// audioDevices groups the hardware facing collaborators
type audioDevices struct {
	source  repositories.AudioSource
	spotter repositories.KeywordSpotter
	player  repositories.AudioPlayer
}

func buildAudio(cfg *config.Config, logger *zap.Logger) (audioDevices, error) {
	logger = logger.Named("audio")
	switch cfg.AudioBackend {
	case "alsa":
		spotter, err := keyword.NewPorcupineSpotter(keyword.PorcupineConfig{
			AccessKey:   cfg.PorcupineAccessKey,
			KeywordPath: cfg.PorcupineKeywordPath,
			ModelPath:   cfg.PorcupineModelPath,
			Sensitivity: float32(cfg.WakeSensitivity),
		}, logger.Named("porcupine"))
		if err != nil {
			return audioDevices{}, err
		}
		return audioDevices{
			source:  audio.NewALSACapture(audio.CaptureConfig{Device: cfg.CaptureDevice, Chunk: cfg.CaptureChunk}, logger),
			spotter: spotter,
			player:  audio.NewALSAPlayer(audio.PlaybackConfig{Device: cfg.PlaybackDevice}, logger),
		}, nil
	case "mock":
		logger.Warn("Using mock audio, the wake word fires on an interval",
			zap.Duration("interval", cfg.MockWakeInterval))
		return audioDevices{
			source:  mock.NewSilentSource(cfg.CaptureChunk),
			spotter: mock.NewIntervalSpotter(cfg.MockWakeInterval),
			player:  mock.NewPacedPlayer(logger),
		}, nil
	default:
		return audioDevices{}, fmt.Errorf("unknown audio_backend %q", cfg.AudioBackend)
	}
}

// buildArchive returns the MongoDB archive when configured, else an in-memory one
func buildArchive(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repositories.TurnArchive, cleanup, error) {
	if cfg.MongoDBURI == "" {
		logger.Info("MongoDB not configured, archiving turns in memory", zap.Int("capacity", memoryArchiveSize))
		return memory.NewTurnArchive(memoryArchiveSize), func() {}, nil
	}

	logger = logger.Named("mongo")
	client, err := mongo.NewClient(ctx, cfg.MongoDBURI, cfg.MongoDBDatabase, logger)
	if err != nil {
		return nil, nil, err
	}
	closeClient := func() {
		if err := client.Close(context.Background()); err != nil {
			logger.Warn("Failed to close MongoDB client", zap.Error(err))
		}
	}

	repo, err := mongo.NewTurnRepository(ctx, client.Database, logger)
	if err != nil {
		closeClient()
		return nil, nil, err
	}
	return repo, closeClient, nil
}

func buildHistoryStore(cfg *config.Config, logger *zap.Logger) (repositories.HistoryStore, error) {
	if cfg.HistoryFile == "" {
		return nil, nil
	}
	return filestore.NewHistoryStore(cfg.HistoryFile, logger.Named("history"))
}

func buildTools(cfg *config.Config, notifier repositories.Notifier, logger *zap.Logger) ([]repositories.Tool, *tools.Reminders, error) {
	logger = logger.Named("tools")

	location, err := cfg.Location()
	if err != nil {
		return nil, nil, err
	}

	weather, err := tools.NewWeather(tools.WeatherConfig{
		Latitude:  cfg.WeatherLatitude,
		Longitude: cfg.WeatherLongitude,
		City:      cfg.WeatherCity,
		Units:     cfg.WeatherUnits,
	}, logger)
	if err != nil {
		return nil, nil, err
	}

	reminders := tools.NewReminders(notifier, logger)

	return []repositories.Tool{
		tools.NewClock(location),
		weather,
		tools.NewWebSearch(tools.WebSearchConfig{
			APIKey:        cfg.GoogleSearchAPIKey,
			EngineID:      cfg.GoogleSearchEngineID,
			RatePerMinute: cfg.SearchRatePerMinute,
		}, logger),
		reminders,
	}, reminders, nil
}
