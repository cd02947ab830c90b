package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"HTTP_TIMEOUT", "FETCH_INTERVAL", "MAPS_EXISTING_TIMEOUT", "MAPS_LOAD_TIMEOUT", "PORT", "OPENWEATHER_RPS"} {
		t.Setenv(k, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.MapsExistingTimeout != 10*time.Second || cfg.MapsLoadTimeout != 15*time.Second {
		t.Fatalf("unexpected maps timeouts %s/%s", cfg.MapsExistingTimeout, cfg.MapsLoadTimeout)
	}
	if cfg.FetchInterval != 15*time.Minute || cfg.Port != "8080" || cfg.OpenWeatherRPS != 10 {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("OPENWEATHER_API_KEY", "ow")
	t.Setenv("FETCH_INTERVAL", "5m")
	t.Setenv("OPENWEATHER_BURST", "3")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.OpenWeatherAPIKey != "ow" || cfg.FetchInterval != 5*time.Minute || cfg.OpenWeatherBurst != 3 {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
}

func TestLoadInvalidDuration(t *testing.T) {
	t.Setenv("MAPS_LOAD_TIMEOUT", "soon")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for invalid duration")
	}
}

func TestLoadRejectsBadNumbers(t *testing.T) {
	cases := map[string]string{
		"OPENWEATHER_RPS":   "ten",
		"OPENWEATHER_BURST": "3.5",
		"BCRYPT_COST":       "cheap",
	}
	for key, val := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, val)
			if _, err := Load(); err == nil {
				t.Fatalf("expected error for %s=%q", key, val)
			}
		})
	}
}

func TestLoadRejectsOutOfRangeValues(t *testing.T) {
	t.Run("bcrypt cost", func(t *testing.T) {
		t.Setenv("BCRYPT_COST", "99")
		if _, err := Load(); err == nil {
			t.Fatalf("expected error for out of range BCRYPT_COST")
		}
	})
	t.Run("sub-minute interval", func(t *testing.T) {
		t.Setenv("FETCH_INTERVAL", "30s")
		if _, err := Load(); err == nil {
			t.Fatalf("expected error for FETCH_INTERVAL below 1m")
		}
	})
}
