package httpapi

import (
	"errors"
	"log"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/nimbus/internal/maps"
	"github.com/i474232898/nimbus/internal/store"
	"github.com/i474232898/nimbus/internal/weather"
	"github.com/i474232898/nimbus/internal/weather/providers"
)

// ErrorHandler is the centralized Fiber error handler. Domain errors are
// mapped to status codes here so handlers can return them unchanged.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := statusFor(err)
	if code >= fiber.StatusInternalServerError {
		log.Printf("ERROR: %s %s: %v", c.Method(), c.Path(), err)
	}
	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": err.Error(),
	})
}

func statusFor(err error) int {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code
	}

	var se *providers.StatusError
	switch {
	case errors.Is(err, store.ErrInvalidCredentials):
		return fiber.StatusUnauthorized
	case errors.Is(err, store.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, store.ErrEmailExists), errors.Is(err, store.ErrUsernameExists):
		return fiber.StatusConflict
	case errors.Is(err, maps.ErrPlaceIDRequired), errors.Is(err, weather.ErrInvalidCoordinates):
		return fiber.StatusBadRequest
	case errors.Is(err, maps.ErrNoGeocodeResults):
		return fiber.StatusNotFound
	case errors.Is(err, maps.ErrLoadTimeout), errors.Is(err, maps.ErrLoadFailed),
		errors.Is(err, providers.ErrMissingAPIKey), errors.Is(err, weather.ErrNoFeeds):
		return fiber.StatusServiceUnavailable
	case errors.As(err, &se):
		if se.StatusCode == http.StatusNotFound {
			return fiber.StatusNotFound
		}
		return fiber.StatusBadGateway
	}
	return fiber.StatusInternalServerError
}
