package tools

import (
	"context"
	"math"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/satriahrh/mirrorvoice/domain"
)

func TestClock(t *testing.T) {
	loc := time.FixedZone("EST", -5*3600)
	clock := NewClock(loc)
	clock.now = func() time.Time {
		return time.Date(2026, 10, 19, 20, 45, 0, 0, time.UTC)
	}

	result, err := clock.Call(context.Background(), nil)
	require.NoError(t, err)

	data := result.(map[string]interface{})
	assert.Equal(t, "3:45 PM", data["time"])
	assert.Equal(t, "Monday, October 19, 2026", data["date"])
	assert.Equal(t, "EST", data["timezone"])
}

func TestWeather(t *testing.T) {
	var query string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"current":{"temperature_2m":61.5,"wind_speed_10m":4.2,"weather_code":3}}`))
	}))
	defer server.Close()

	weather, err := NewWeather(WeatherConfig{
		BaseURL:   server.URL,
		Latitude:  40.7128,
		Longitude: -74.006,
		City:      "New York",
	}, zaptest.NewLogger(t))
	require.NoError(t, err)

	result, err := weather.Call(context.Background(), map[string]interface{}{})
	require.NoError(t, err)

	data := result.(map[string]interface{})
	assert.Equal(t, 61.5, data["temperature"])
	assert.Equal(t, "overcast skies", data["description"])
	assert.Equal(t, "New York", data["location"])
	assert.Equal(t, "fahrenheit", data["units"])
	assert.Contains(t, query, "latitude=40.7128")
	assert.Contains(t, query, "temperature_unit=fahrenheit")

	_, err = weather.Call(context.Background(), map[string]interface{}{"location": "Paris"})
	assert.Error(t, err, "other cities are not supported")

	_, err = weather.Call(context.Background(), map[string]interface{}{"location": "new york city"})
	assert.NoError(t, err)
}

func TestWeatherServiceError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer server.Close()

	weather, err := NewWeather(WeatherConfig{BaseURL: server.URL, City: "Oslo", Units: "celsius"}, zaptest.NewLogger(t))
	require.NoError(t, err)

	_, err = weather.Call(context.Background(), nil)
	assert.ErrorContains(t, err, "502")
}

func TestNewWeatherRejectsBadConfig(t *testing.T) {
	_, err := NewWeather(WeatherConfig{Latitude: 91}, zaptest.NewLogger(t))
	assert.Error(t, err)
	_, err = NewWeather(WeatherConfig{Units: "kelvin"}, zaptest.NewLogger(t))
	assert.Error(t, err)
}

func TestWebSearch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "golang", r.URL.Query().Get("q"))
		assert.Equal(t, "key", r.URL.Query().Get("key"))
		assert.Equal(t, "cx", r.URL.Query().Get("cx"))
		w.Write([]byte(`{"items":[
			{"title":"a","snippet":"first","link":"https://a"},
			{"title":"b","snippet":"second","link":"https://b"},
			{"title":"c","snippet":"third","link":"https://c"},
			{"title":"d","snippet":"fourth","link":"https://d"}]}`))
	}))
	defer server.Close()

	search := NewWebSearch(WebSearchConfig{
		BaseURL:       server.URL,
		APIKey:        "key",
		EngineID:      "cx",
		RatePerMinute: 6000,
	}, zaptest.NewLogger(t))

	result, err := search.Call(context.Background(), map[string]interface{}{"query": "golang"})
	require.NoError(t, err)

	results := result.(map[string]interface{})["results"].([]map[string]interface{})
	require.Len(t, results, maxSearchResults)
	assert.Equal(t, "first", results[0]["snippet"])
}

func TestWebSearchErrors(t *testing.T) {
	search := NewWebSearch(WebSearchConfig{}, zaptest.NewLogger(t))

	_, err := search.Call(context.Background(), map[string]interface{}{})
	assert.ErrorContains(t, err, "query")

	_, err = search.Call(context.Background(), map[string]interface{}{"query": "x"})
	assert.ErrorContains(t, err, "not configured")
}

func TestWebSearchRateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"items":[]}`))
	}))
	defer server.Close()

	search := NewWebSearch(WebSearchConfig{BaseURL: server.URL, APIKey: "k", EngineID: "e", RatePerMinute: 1}, zaptest.NewLogger(t))

	_, err := search.Call(context.Background(), map[string]interface{}{"query": "one"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = search.Call(ctx, map[string]interface{}{"query": "two"})
	assert.ErrorContains(t, err, "rate limit")
}

type recordingNotifier struct {
	mu    sync.Mutex
	items []domain.Notification
}

func (r *recordingNotifier) Notify(n domain.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, n)
}

func (r *recordingNotifier) all() []domain.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Notification(nil), r.items...)
}

func TestRemindersFire(t *testing.T) {
	notifier := &recordingNotifier{}
	reminders := NewReminders(notifier, zaptest.NewLogger(t))
	reminders.unit = time.Millisecond

	result, err := reminders.Call(context.Background(), map[string]interface{}{"message": "stretch", "minutes": float64(5)})
	require.NoError(t, err)
	id := result.(map[string]interface{})["id"].(string)

	require.Eventually(t, func() bool { return len(notifier.all()) == 1 }, time.Second, 5*time.Millisecond)

	n := notifier.all()[0]
	assert.Equal(t, domain.NotificationReminder, n.Type)
	assert.Equal(t, domain.ReminderPayload{ID: id, Message: "stretch"}, n.Payload)
	assert.Equal(t, 0, reminders.Pending())
}

func TestRemindersValidateAndStop(t *testing.T) {
	notifier := &recordingNotifier{}
	reminders := NewReminders(notifier, zaptest.NewLogger(t))

	_, err := reminders.Call(context.Background(), map[string]interface{}{"message": "x", "minutes": -1})
	assert.Error(t, err)
	_, err = reminders.Call(context.Background(), map[string]interface{}{"minutes": 3})
	assert.Error(t, err)
	for _, minutes := range []interface{}{"NaN", "Inf", "-Inf", math.NaN(), math.Inf(1)} {
		_, err = reminders.Call(context.Background(), map[string]interface{}{"message": "x", "minutes": minutes})
		assert.Error(t, err, "minutes=%v", minutes)
	}
	assert.Equal(t, 0, reminders.Pending())

	_, err = reminders.Call(context.Background(), map[string]interface{}{"message": "later", "minutes": "10"})
	require.NoError(t, err)
	assert.Equal(t, 1, reminders.Pending())

	reminders.Stop()
	assert.Equal(t, 0, reminders.Pending())
	assert.Empty(t, notifier.all())

	_, err = reminders.Call(context.Background(), map[string]interface{}{"message": "x", "minutes": 1})
	assert.Error(t, err)
}
