package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/olasquare/olasquare/internal/config"
)

const defaultWeatherBaseURL = "https://api.openweathermap.org"

// Weather looks up current conditions through the OpenWeatherMap API.
type Weather struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewWeather creates the weather tool.
func NewWeather(cfg config.WeatherConfig) *Weather {
	base := cfg.BaseURL
	if base == "" {
		base = defaultWeatherBaseURL
	}
	return &Weather{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimSuffix(base, "/"),
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

// Spec declares check_weather.
func (w *Weather) Spec() Spec {
	return Spec{
		Name:        "check_weather",
		Description: "Check the current weather of a given city and return the weather details (condition, temperature in °C, humidity).",
		Parameters:  Object(map[string]any{"city": String("City name, e.g. \"Lagos\" or \"Paris,FR\"")}, "city"),
		Handler:     w.handle,
	}
}

type weatherArgs struct {
	City string `mapstructure:"city"`
}

type owmResponse struct {
	Cod     json.RawMessage `json:"cod"`
	Message string          `json:"message"`
	Weather []struct {
		Description string `json:"description"`
	} `json:"weather"`
	Main struct {
		Temp     float64 `json:"temp"`
		Humidity float64 `json:"humidity"`
	} `json:"main"`
}

func (w *Weather) handle(ctx context.Context, raw map[string]any) (string, error) {
	var args weatherArgs
	if err := DecodeArgs(raw, &args); err != nil {
		return "", err
	}
	city, err := requireString("city", args.City)
	if err != nil {
		return "", err
	}
	if w.apiKey == "" {
		return "", errors.New("weather API key is not configured (set tools.weather.apiKey or WEATHER_KEY)")
	}

	q := url.Values{}
	q.Set("q", city)
	q.Set("appid", w.apiKey)
	q.Set("units", "metric")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.baseURL+"/data/2.5/weather?"+q.Encode(), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}

	var data owmResponse
	decodeErr := json.Unmarshal(body, &data)

	if resp.StatusCode != http.StatusOK {
		reason := strings.TrimSpace(string(body))
		if decodeErr == nil && data.Message != "" {
			reason = data.Message
		}
		return "", fmt.Errorf("weather service returned %d for %s: %s", resp.StatusCode, city, reason)
	}
	if decodeErr != nil {
		return "", fmt.Errorf("decoding response: %w", decodeErr)
	}
	if code, ok := owmCode(data.Cod); ok && code != http.StatusOK {
		return "", fmt.Errorf("weather service returned %d for %s: %s", code, city, data.Message)
	}

	condition := "unknown"
	if len(data.Weather) > 0 {
		condition = data.Weather[0].Description
	}

	return fmt.Sprintf("Current weather in %s:\nWeather Condition: %s\nTemperature: %s°C\nHumidity: %s%%",
		city, condition, formatNumber(data.Main.Temp), formatNumber(data.Main.Humidity)), nil
}

// owmCode reads the "cod" field, which the API sends as a number on success
// and as a string on some errors.
func owmCode(raw json.RawMessage) (int, bool) {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if s == "" {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	return n, err == nil
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
