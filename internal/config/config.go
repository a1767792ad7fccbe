package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config contains all runtime settings for the assistant.
type Config struct {
	AIProvider        string  `mapstructure:"ai_provider"`
	GeminiAPIKey      string  `mapstructure:"gemini_api_key"`
	GeminiModel       string  `mapstructure:"gemini_model"`
	OpenAIAPIKey      string  `mapstructure:"openai_api_key"`
	OpenAIBaseURL     string  `mapstructure:"openai_base_url"`
	OpenAIModel       string  `mapstructure:"openai_model"`
	SystemPrompt      string  `mapstructure:"system_prompt"`
	MaxChatHistory    int     `mapstructure:"max_chat_history"`
	HistoryWindow     int     `mapstructure:"history_window"`
	MaxOutputTokens   int     `mapstructure:"max_output_tokens"`
	Temperature       float64 `mapstructure:"temperature"`
	BackendMaxRetries int     `mapstructure:"backend_max_retries"`

	WakeWord             string        `mapstructure:"wake_word"`
	PorcupineAccessKey   string        `mapstructure:"porcupine_access_key"`
	PorcupineKeywordPath string        `mapstructure:"porcupine_keyword_path"`
	PorcupineModelPath   string        `mapstructure:"porcupine_model_path"`
	WakeSensitivity      float64       `mapstructure:"wake_sensitivity"`
	MockWakeInterval     time.Duration `mapstructure:"mock_wake_interval"`

	AudioBackend   string        `mapstructure:"audio_backend"`
	CaptureDevice  string        `mapstructure:"capture_device"`
	PlaybackDevice string        `mapstructure:"playback_device"`
	CaptureChunk   time.Duration `mapstructure:"capture_chunk"`

	STTProvider                  string `mapstructure:"stt_provider"`
	GoogleApplicationCredentials string `mapstructure:"google_application_credentials"`
	LanguageCode                 string `mapstructure:"language_code"`

	CommandTimeout  time.Duration `mapstructure:"command_timeout"`
	SettleDelay     time.Duration `mapstructure:"settle_delay"`
	ResponseTimeout time.Duration `mapstructure:"response_timeout"`
	PlaybackTimeout time.Duration `mapstructure:"playback_timeout"`
	ToolTimeout     time.Duration `mapstructure:"tool_timeout"`
	ApologyText     string        `mapstructure:"apology_text"`
	IdleText        string        `mapstructure:"idle_text"`

	TTSProvider     string  `mapstructure:"tts_provider"`
	GoogleTTSAPIKey string  `mapstructure:"google_tts_api_key"`
	VoiceName       string  `mapstructure:"voice_name"`
	VoiceGender     string  `mapstructure:"voice_gender"`
	SpeakingRate    float64 `mapstructure:"speaking_rate"`
	Pitch           float64 `mapstructure:"pitch"`
	TTSSampleRate   int     `mapstructure:"tts_sample_rate"`

	ElevenLabsAPIKey       string  `mapstructure:"eleven_labs_api_key"`
	ElevenLabsVoiceID      string  `mapstructure:"eleven_labs_voice_id"`
	ElevenLabsModelID      string  `mapstructure:"eleven_labs_model_id"`
	ElevenLabsOutputFormat string  `mapstructure:"eleven_labs_output_format"`
	ElevenLabsStability    float64 `mapstructure:"eleven_labs_stability"`
	ElevenLabsSimilarity   float64 `mapstructure:"eleven_labs_similarity_boost"`

	WeatherLatitude      float64 `mapstructure:"weather_latitude"`
	WeatherLongitude     float64 `mapstructure:"weather_longitude"`
	WeatherCity          string  `mapstructure:"weather_city"`
	WeatherUnits         string  `mapstructure:"weather_units"`
	GoogleSearchAPIKey   string  `mapstructure:"google_search_api_key"`
	GoogleSearchEngineID string  `mapstructure:"google_search_engine_id"`
	SearchRatePerMinute  int     `mapstructure:"search_rate_per_minute"`
	Timezone             string  `mapstructure:"timezone"`

	BindAddr         string        `mapstructure:"bind_addr"`
	DisplayJWTSecret string        `mapstructure:"display_jwt_secret"`
	DisplayTokenTTL  time.Duration `mapstructure:"display_token_ttl"`

	MongoDBURI      string `mapstructure:"mongodb_uri"`
	MongoDBDatabase string `mapstructure:"mongodb_database"`
	HistoryFile     string `mapstructure:"history_file"`

	LogLevel       string `mapstructure:"log_level"`
	LogDevelopment bool   `mapstructure:"log_development"`
}

const DefaultSystemPrompt = "You are a helpful voice assistant living in a smart mirror. " +
	"Answer in one or two short spoken sentences without markdown. " +
	"Use the available tools for the current time, the weather, web searches and reminders."

var defaults = map[string]interface{}{
	"ai_provider":         "gemini",
	"gemini_api_key":      "",
	"gemini_model":        "gemini-2.0-flash",
	"openai_api_key":      "",
	"openai_base_url":     "",
	"openai_model":        "gpt-4o-mini",
	"system_prompt":       DefaultSystemPrompt,
	"max_chat_history":    10,
	"history_window":      6,
	"max_output_tokens":   150,
	"temperature":         0.7,
	"backend_max_retries": 2,

	"wake_word":              "hey mirror",
	"porcupine_access_key":   "",
	"porcupine_keyword_path": "",
	"porcupine_model_path":   "",
	"wake_sensitivity":       0.5,
	"mock_wake_interval":     20 * time.Second,

	"audio_backend":   "alsa",
	"capture_device":  "default",
	"playback_device": "default",
	"capture_chunk":   100 * time.Millisecond,

	"stt_provider":                   "google",
	"google_application_credentials": "",
	"language_code":                  "en-US",

	"command_timeout":  15 * time.Second,
	"settle_delay":     250 * time.Millisecond,
	"response_timeout": 30 * time.Second,
	"playback_timeout": 90 * time.Second,
	"tool_timeout":     10 * time.Second,
	"apology_text":     "Sorry, I encountered an error processing your request.",
	"idle_text":        "Say the wake word",

	"tts_provider":       "google",
	"google_tts_api_key": "",
	"voice_name":         "en-US-Standard-F",
	"voice_gender":       "FEMALE",
	"speaking_rate":      0.9,
	"pitch":              0.0,
	"tts_sample_rate":    24000,

	"eleven_labs_api_key":          "",
	"eleven_labs_voice_id":         "21m00Tcm4TlvDq8ikWAM",
	"eleven_labs_model_id":         "eleven_multilingual_v2",
	"eleven_labs_output_format":    "pcm_16000",
	"eleven_labs_stability":        0.5,
	"eleven_labs_similarity_boost": 0.5,

	"weather_latitude":        40.7128,
	"weather_longitude":       -74.0060,
	"weather_city":            "New York",
	"weather_units":           "fahrenheit",
	"google_search_api_key":   "",
	"google_search_engine_id": "",
	"search_rate_per_minute":  30,
	"timezone":                "Local",

	"bind_addr":          ":8080",
	"display_jwt_secret": "",
	"display_token_ttl":  720 * time.Hour,

	"mongodb_uri":      "",
	"mongodb_database": "mirrorvoice",
	"history_file":     "",

	"log_level":       "info",
	"log_development": false,
}

// Load reads .env, the optional config file at path and the environment, in
// increasing order of precedence.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AllowEmptyEnv(true)
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects inconsistent settings
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...interface{}) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	switch c.AIProvider {
	case "gemini":
		check(c.GeminiAPIKey != "", "GEMINI_API_KEY is required for ai_provider=gemini")
	case "openai":
		check(c.OpenAIAPIKey != "", "OPENAI_API_KEY is required for ai_provider=openai")
	case "mock":
	default:
		check(false, "unknown ai_provider %q", c.AIProvider)
	}

	switch c.STTProvider {
	case "google", "mock":
	default:
		check(false, "unknown stt_provider %q", c.STTProvider)
	}

	switch c.TTSProvider {
	case "google":
		check(c.GoogleTTSAPIKey != "", "GOOGLE_TTS_API_KEY is required for tts_provider=google")
	case "elevenlabs":
		check(c.ElevenLabsAPIKey != "", "ELEVEN_LABS_API_KEY is required for tts_provider=elevenlabs")
	case "mock":
	default:
		check(false, "unknown tts_provider %q", c.TTSProvider)
	}

	switch c.AudioBackend {
	case "alsa":
		check(c.PorcupineAccessKey != "", "PORCUPINE_ACCESS_KEY is required for audio_backend=alsa")
	case "mock":
	default:
		check(false, "unknown audio_backend %q", c.AudioBackend)
	}

	check(c.MaxChatHistory >= 1, "max_chat_history must be at least 1")
	check(c.HistoryWindow >= 0, "history_window must be >= 0")
	check(c.WakeSensitivity >= 0 && c.WakeSensitivity <= 1, "wake_sensitivity must be within 0..1")
	check(c.BackendMaxRetries >= 0, "backend_max_retries must be >= 0")
	check(c.TTSSampleRate > 0, "tts_sample_rate must be positive")
	check(c.SearchRatePerMinute > 0, "search_rate_per_minute must be positive")

	for name, d := range map[string]time.Duration{
		"command_timeout":  c.CommandTimeout,
		"response_timeout": c.ResponseTimeout,
		"playback_timeout": c.PlaybackTimeout,
		"tool_timeout":     c.ToolTimeout,
		"capture_chunk":    c.CaptureChunk,
	} {
		check(d > 0, "%s must be positive", name)
	}
	check(c.SettleDelay >= 0, "settle_delay must be >= 0")

	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// Location resolves the configured timezone
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}
