package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/i474232898/nimbus/internal/weather"
)

const (
	defaultOpenWeatherURL = "https://api.openweathermap.org/data/2.5"
	defaultOpenWeatherGeo = "https://api.openweathermap.org/geo/1.0"
)

// OpenWeatherConfig configures an OpenWeatherClient. Zero values fall back to
// the public endpoints and no retries.
type OpenWeatherConfig struct {
	APIKey     string
	Client     *http.Client
	BaseURL    string
	GeoURL     string
	Limiter    *rate.Limiter
	MaxRetries int
}

// OpenWeatherClient talks to the OpenWeatherMap REST API. It satisfies
// weather.Feeds; payloads are passed through as raw JSON.
type OpenWeatherClient struct {
	name    string
	apiKey  string
	baseURL string
	geoURL  string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewOpenWeatherClient(cfg OpenWeatherConfig) *OpenWeatherClient {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "openweather",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})

	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	base := cfg.BaseURL
	if base == "" {
		base = defaultOpenWeatherURL
	}
	geo := cfg.GeoURL
	if geo == "" {
		geo = defaultOpenWeatherGeo
	}

	return &OpenWeatherClient{
		name:    "openweathermap",
		apiKey:  cfg.APIKey,
		baseURL: base,
		geoURL:  geo,
		httpCfg: HTTPClientConfig{
			Client:  client,
			Limiter: cfg.Limiter,
			Backoff: BackoffConfig{
				MaxRetries:      cfg.MaxRetries,
				InitialInterval: 500 * time.Millisecond,
				MaxInterval:     5 * time.Second,
			},
		},
		circuit: cb,
	}
}

var _ weather.Feeds = (*OpenWeatherClient)(nil)

func (c *OpenWeatherClient) Name() string {
	return c.name
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func coordValues(lat, lon float64) url.Values {
	values := url.Values{}
	values.Set("lat", formatCoord(lat))
	values.Set("lon", formatCoord(lon))
	return values
}

// getJSON issues a GET against endpoint with the API key appended.
func (c *OpenWeatherClient) getJSON(ctx context.Context, op, endpoint string, values url.Values) (json.RawMessage, error) {
	if c.apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	values.Set("appid", c.apiKey)

	buildRequest := func() (*http.Request, error) {
		return http.NewRequest(http.MethodGet, endpoint+"?"+values.Encode(), nil)
	}

	resp, err := doRequestWithResilience(ctx, op, c.httpCfg, c.circuit, buildRequest)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: read body: %w", op, err)
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("%s: upstream returned invalid JSON", op)
	}
	return json.RawMessage(body), nil
}

// CurrentWeather fetches current conditions in metric units.
func (c *OpenWeatherClient) CurrentWeather(ctx context.Context, lat, lon float64) (json.RawMessage, error) {
	values := coordValues(lat, lon)
	values.Set("units", "metric")
	return c.getJSON(ctx, "Could not fetch weather data", c.baseURL+"/weather", values)
}

// FiveDayForecast fetches the 5-day / 3-hour forecast in metric units.
func (c *OpenWeatherClient) FiveDayForecast(ctx context.Context, lat, lon float64) (json.RawMessage, error) {
	values := coordValues(lat, lon)
	values.Set("units", "metric")
	return c.getJSON(ctx, "Error fetching 5-day weather forecast", c.baseURL+"/forecast", values)
}

// AirQuality fetches current air pollution data.
func (c *OpenWeatherClient) AirQuality(ctx context.Context, lat, lon float64) (json.RawMessage, error) {
	return c.getJSON(ctx, "Error fetching air pollution data", c.baseURL+"/air_pollution", coordValues(lat, lon))
}

// ReverseGeocode returns up to limit place names for the coordinates.
func (c *OpenWeatherClient) ReverseGeocode(ctx context.Context, lat, lon float64, limit int) (json.RawMessage, error) {
	if limit <= 0 {
		limit = 1
	}
	values := coordValues(lat, lon)
	values.Set("limit", strconv.Itoa(limit))
	return c.getJSON(ctx, "Network response was not ok", c.geoURL+"/reverse", values)
}

// CityWeather fetches current conditions by city name.
func (c *OpenWeatherClient) CityWeather(ctx context.Context, city string) (json.RawMessage, error) {
	if city == "" {
		return nil, errors.New("city name is required")
	}
	values := url.Values{}
	values.Set("q", city)
	values.Set("units", "metric")

	data, err := c.getJSON(ctx, "Could not fetch weather data for city", c.baseURL+"/weather", values)
	var se *StatusError
	if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
		return nil, &StatusError{
			Op:         fmt.Sprintf("Could not find the city: %q", city),
			StatusCode: se.StatusCode,
			Message:    se.Message,
		}
	}
	return data, err
}

// cityCoords resolves a city name through the current weather endpoint.
func (c *OpenWeatherClient) cityCoords(ctx context.Context, city string) (float64, float64, error) {
	data, err := c.CityWeather(ctx, city)
	if err != nil {
		return 0, 0, err
	}
	var payload struct {
		Coord *struct {
			Lat float64 `json:"lat"`
			Lon float64 `json:"lon"`
		} `json:"coord"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return 0, 0, fmt.Errorf("decode city weather: %w", err)
	}
	if payload.Coord == nil {
		return 0, 0, fmt.Errorf("city weather for %q carried no coordinates", city)
	}
	return payload.Coord.Lat, payload.Coord.Lon, nil
}

// CityForecast fetches the 5-day forecast for a city name.
func (c *OpenWeatherClient) CityForecast(ctx context.Context, city string) (json.RawMessage, error) {
	lat, lon, err := c.cityCoords(ctx, city)
	if err != nil {
		return nil, err
	}
	return c.FiveDayForecast(ctx, lat, lon)
}

// CityAirQuality fetches air quality for a city name.
func (c *OpenWeatherClient) CityAirQuality(ctx context.Context, city string) (json.RawMessage, error) {
	lat, lon, err := c.cityCoords(ctx, city)
	if err != nil {
		return nil, err
	}
	return c.AirQuality(ctx, lat, lon)
}
