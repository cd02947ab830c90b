package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"golang.org/x/time/rate"

	httpapi "github.com/i474232898/nimbus/internal/api/http"
	"github.com/i474232898/nimbus/internal/auth"
	"github.com/i474232898/nimbus/internal/config"
	"github.com/i474232898/nimbus/internal/maps"
	"github.com/i474232898/nimbus/internal/scheduler"
	"github.com/i474232898/nimbus/internal/store"
	"github.com/i474232898/nimbus/internal/weather"
	"github.com/i474232898/nimbus/internal/weather/providers"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Shared HTTP client for outbound calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	// Client-side quota for the OpenWeather free tier.
	var limiter *rate.Limiter
	if cfg.OpenWeatherRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.OpenWeatherRPS), cfg.OpenWeatherBurst)
	}
	openWeather := providers.NewOpenWeatherClient(providers.OpenWeatherConfig{
		APIKey:  cfg.OpenWeatherAPIKey,
		Client:  httpClient,
		Limiter: limiter,
	})
	if cfg.OpenWeatherAPIKey == "" {
		log.Printf("WARN: OPENWEATHER_API_KEY is not set; %s requests will fail", openWeather.Name())
	}
	weatherService := weather.NewService(openWeather)

	// Maps SDK: loaded lazily on the first places or geocoding request.
	bootstrap := maps.NewBootstrap(httpClient, cfg.MapsBootstrapURL, cfg.GoogleMapsAPIKey)
	loader := maps.NewLoader(bootstrap, cfg.MapsExistingTimeout, cfg.MapsLoadTimeout)
	places := maps.NewPlaces(maps.PlacesConfig{
		APIKey:         cfg.GoogleMapsAPIKey,
		Client:         httpClient,
		GeocodeTimeout: cfg.HTTPTimeout,
	}, loader, maps.NewSessions(), maps.GoogleGeocoder{})

	users := store.NewMemoryStore(cfg.BcryptCost)
	if err := users.Seed(); err != nil {
		log.Fatalf("failed to seed users: %v", err)
	}
	tokens := auth.NewIssuer(cfg.AuthSecret, cfg.AuthTokenTTL)

	sched := scheduler.New(users, cfg.FetchInterval, weatherService)
	if err := sched.Start(); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	app := fiber.New(fiber.Config{
		AppName:               "nimbus",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          30 * time.Second,
		ErrorHandler:          httpapi.ErrorHandler,
	})

	app.Use(logger.New())
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "nimbus",
			"maps":    loader.State().String(),
		})
	})

	httpapi.RegisterRoutes(app, httpapi.Deps{
		Users:   users,
		Tokens:  tokens,
		Weather: weatherService,
		Lookup:  openWeather,
		Places:  places,
	})

	go func() {
		log.Printf("INFO: listening on :%s", cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("fiber server stopped: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("error during shutdown: %v", err)
	}
}
