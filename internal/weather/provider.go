package weather

import (
	"context"
	"encoding/json"
)

// Feeds abstracts the upstream weather API. Each call is keyed by a
// coordinate pair and returns the upstream JSON payload unmodified.
type Feeds interface {
	CurrentWeather(ctx context.Context, lat, lon float64) (json.RawMessage, error)
	FiveDayForecast(ctx context.Context, lat, lon float64) (json.RawMessage, error)
	AirQuality(ctx context.Context, lat, lon float64) (json.RawMessage, error)
}
