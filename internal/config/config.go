package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"golang.org/x/crypto/bcrypt"
)

type AppConfig struct {
	OpenWeatherAPIKey string
	GoogleMapsAPIKey  string

	// HTTPTimeout bounds every outbound request.
	HTTPTimeout time.Duration

	// FetchInterval controls how often saved users' boards are refreshed.
	FetchInterval time.Duration

	// Maps client library loading.
	MapsBootstrapURL    string
	MapsExistingTimeout time.Duration
	MapsLoadTimeout     time.Duration

	// Client-side OpenWeather quota. RPS <= 0 disables limiting.
	OpenWeatherRPS   float64
	OpenWeatherBurst int

	AuthSecret   string
	AuthTokenTTL time.Duration
	BcryptCost   int

	Port string
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	cfg := &AppConfig{}

	cfg.OpenWeatherAPIKey = os.Getenv("OPENWEATHER_API_KEY")
	cfg.GoogleMapsAPIKey = os.Getenv("GOOGLE_MAPS_API_KEY")
	if cfg.OpenWeatherAPIKey == "" {
		log.Println("WARN: OPENWEATHER_API_KEY is not set; weather lookups will fail")
	}
	if cfg.GoogleMapsAPIKey == "" {
		log.Println("WARN: GOOGLE_MAPS_API_KEY is not set; place search will fail")
	}

	var err error
	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", "10s"); err != nil {
		return nil, err
	}
	if cfg.FetchInterval, err = getenvDuration("FETCH_INTERVAL", "15m"); err != nil {
		return nil, err
	}
	if cfg.FetchInterval < time.Minute {
		return nil, fmt.Errorf("invalid FETCH_INTERVAL: %s is shorter than 1m", cfg.FetchInterval)
	}

	cfg.MapsBootstrapURL = getenvDefault("MAPS_BOOTSTRAP_URL", "https://maps.googleapis.com/maps/api/js")
	if cfg.MapsExistingTimeout, err = getenvDuration("MAPS_EXISTING_TIMEOUT", "10s"); err != nil {
		return nil, err
	}
	if cfg.MapsLoadTimeout, err = getenvDuration("MAPS_LOAD_TIMEOUT", "15s"); err != nil {
		return nil, err
	}

	if cfg.OpenWeatherRPS, err = getenvFloat("OPENWEATHER_RPS", 10); err != nil {
		return nil, err
	}
	if cfg.OpenWeatherBurst, err = getenvInt("OPENWEATHER_BURST", 30); err != nil {
		return nil, err
	}

	cfg.AuthSecret = os.Getenv("AUTH_SECRET")
	if cfg.AuthSecret == "" {
		log.Println("WARN: AUTH_SECRET is not set; using an insecure development secret")
		cfg.AuthSecret = "nimbus-dev-secret"
	}
	if cfg.AuthTokenTTL, err = getenvDuration("AUTH_TOKEN_TTL", "24h"); err != nil {
		return nil, err
	}
	if cfg.BcryptCost, err = getenvInt("BCRYPT_COST", bcrypt.DefaultCost); err != nil {
		return nil, err
	}
	if cfg.BcryptCost < bcrypt.MinCost || cfg.BcryptCost > bcrypt.MaxCost {
		return nil, fmt.Errorf("invalid BCRYPT_COST: %d is outside %d..%d", cfg.BcryptCost, bcrypt.MinCost, bcrypt.MaxCost)
	}

	cfg.Port = getenvDefault("PORT", "8080")

	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(getenvDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getenvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getenvFloat(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}
