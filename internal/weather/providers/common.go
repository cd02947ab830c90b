package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// BackoffConfig controls exponential backoff behaviour. MaxRetries of zero
// disables retries.
type BackoffConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// HTTPClientConfig bundles HTTP client and resilience settings.
type HTTPClientConfig struct {
	Client  *http.Client
	Backoff BackoffConfig
	// Limiter, when set, is waited on before every attempt.
	Limiter *rate.Limiter
}

var (
	// ErrMissingAPIKey is returned before any I/O when no API key is configured.
	ErrMissingAPIKey = errors.New("openweather api key is missing")

	errCircuitOpen   = errors.New("circuit breaker open")
	errNoHTTPClient  = errors.New("http client not configured")
	errInvalidConfig = errors.New("invalid backoff configuration")
)

// StatusError reports a non-2xx upstream response.
type StatusError struct {
	Op         string
	StatusCode int
	// Message is the upstream "message" field, if the body carried one.
	Message string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s (%d)", e.Op, e.StatusCode)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

func (e *StatusError) retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

func newStatusError(op string, resp *http.Response) *StatusError {
	se := &StatusError{Op: op, StatusCode: resp.StatusCode}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	if err == nil {
		var payload struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(body, &payload) == nil {
			se.Message = payload.Message
		}
	}
	return se
}

// doRequestWithResilience executes the request behind the circuit breaker and
// optional rate limiter, retrying transport errors, 429 and 5xx responses up
// to Backoff.MaxRetries times. Other non-2xx responses are returned as
// *StatusError without tripping the breaker.
func doRequestWithResilience(
	ctx context.Context,
	op string,
	cfg HTTPClientConfig,
	cb *gobreaker.CircuitBreaker,
	buildRequest func() (*http.Request, error),
) (*http.Response, error) {
	if cfg.Client == nil {
		return nil, errNoHTTPClient
	}
	if cfg.Backoff.MaxRetries < 0 || (cfg.Backoff.MaxRetries > 0 && cfg.Backoff.InitialInterval <= 0) {
		return nil, errInvalidConfig
	}

	var attempt int

	for {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		if cfg.Limiter != nil {
			if err := cfg.Limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("rate limit wait canceled: %w", err)
			}
		}

		req, err := buildRequest()
		if err != nil {
			return nil, err
		}
		req = req.WithContext(ctx)

		result, err := cb.Execute(func() (interface{}, error) {
			resp, execErr := cfg.Client.Do(req)
			if execErr != nil {
				return nil, execErr
			}
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				return resp, nil
			}

			se := newStatusError(op, resp)
			resp.Body.Close()
			if se.retryable() {
				return nil, se
			}
			// Client errors are the caller's problem, not the upstream's.
			return se, nil
		})

		if err == nil {
			switch r := result.(type) {
			case *http.Response:
				return r, nil
			case *StatusError:
				return nil, r
			default:
				return nil, fmt.Errorf("unexpected result type from circuit breaker")
			}
		}

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%s: %w: %v", op, errCircuitOpen, err)
		}

		var se *StatusError
		if !errors.As(err, &se) {
			err = fmt.Errorf("%s: %w", op, err)
		}

		if attempt >= cfg.Backoff.MaxRetries {
			return nil, err
		}

		delay := cfg.Backoff.InitialInterval * time.Duration(math.Pow(2, float64(attempt)))
		if delay > cfg.Backoff.MaxInterval && cfg.Backoff.MaxInterval > 0 {
			delay = cfg.Backoff.MaxInterval
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}

		attempt++
	}
}
