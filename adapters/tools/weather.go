package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/mirrorvoice/domain/repositories"
)

const defaultWeatherBaseURL = "https://api.open-meteo.com/v1/forecast"

// WeatherConfig points the tool at a fixed location
type WeatherConfig struct {
	BaseURL   string
	Latitude  float64
	Longitude float64
	City      string
	// Units is fahrenheit or celsius
	Units string
}

// Weather reports current conditions from Open-Meteo
type Weather struct {
	config WeatherConfig
	client *http.Client
	logger *zap.Logger
}

var _ repositories.Tool = (*Weather)(nil)

type openMeteoResponse struct {
	Current struct {
		Temperature float64 `json:"temperature_2m"`
		WindSpeed   float64 `json:"wind_speed_10m"`
		WeatherCode int     `json:"weather_code"`
	} `json:"current"`
}

func NewWeather(config WeatherConfig, logger *zap.Logger) (*Weather, error) {
	if config.Latitude < -90 || config.Latitude > 90 || config.Longitude < -180 || config.Longitude > 180 {
		return nil, fmt.Errorf("invalid weather coordinates %f,%f", config.Latitude, config.Longitude)
	}
	if config.BaseURL == "" {
		config.BaseURL = defaultWeatherBaseURL
	}
	switch config.Units {
	case "fahrenheit", "celsius":
	case "":
		config.Units = "fahrenheit"
		logger.Info("Using default weather units", zap.String("units", config.Units))
	default:
		return nil, fmt.Errorf("unknown weather units %q", config.Units)
	}
	return &Weather{
		config: config,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}, nil
}

func (w *Weather) Name() string { return "getWeather" }

func (w *Weather) Description() string {
	return fmt.Sprintf("Get the current weather conditions in %s", w.config.City)
}

func (w *Weather) Parameters() map[string]interface{} {
	return objectSchema(map[string]interface{}{
		"location": map[string]interface{}{
			"type":        "string",
			"description": "City name. Only the configured home location is supported.",
		},
	})
}

func (w *Weather) Call(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	if location, err := stringArg(args, "location"); err == nil && w.config.City != "" &&
		!strings.Contains(strings.ToLower(location), strings.ToLower(w.config.City)) {
		return nil, fmt.Errorf("weather is only available for %s", w.config.City)
	}

	query := url.Values{}
	query.Set("latitude", strconv.FormatFloat(w.config.Latitude, 'f', 4, 64))
	query.Set("longitude", strconv.FormatFloat(w.config.Longitude, 'f', 4, 64))
	query.Set("current", "temperature_2m,wind_speed_10m,weather_code")
	query.Set("temperature_unit", w.config.Units)
	if w.config.Units == "fahrenheit" {
		query.Set("wind_speed_unit", "mph")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.config.BaseURL+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("weather request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("weather service returned %d: %s", resp.StatusCode, string(body))
	}

	var data openMeteoResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to decode weather response: %w", err)
	}

	w.logger.Debug("Fetched weather",
		zap.Float64("temperature", data.Current.Temperature),
		zap.Int("weatherCode", data.Current.WeatherCode))

	return map[string]interface{}{
		"location":    w.config.City,
		"temperature": data.Current.Temperature,
		"windSpeed":   data.Current.WindSpeed,
		"weatherCode": data.Current.WeatherCode,
		"description": describeWeatherCode(data.Current.WeatherCode),
		"units":       w.config.Units,
	}, nil
}

// describeWeatherCode maps WMO weather interpretation codes to words
func describeWeatherCode(code int) string {
	switch {
	case code == 0:
		return "clear sky"
	case code <= 2:
		return "partly cloudy skies"
	case code == 3:
		return "overcast skies"
	case code == 45 || code == 48:
		return "fog"
	case code >= 51 && code <= 57:
		return "drizzle"
	case code >= 61 && code <= 67, code >= 80 && code <= 82:
		return "rain"
	case code >= 71 && code <= 77, code == 85 || code == 86:
		return "snow"
	case code >= 95:
		return "thunderstorms"
	default:
		return "unknown conditions"
	}
}
