package maps

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"
)

const (
	defaultAutocompleteURL = "https://maps.googleapis.com/maps/api/place/autocomplete/json"
	defaultDetailsURL      = "https://places.googleapis.com/v1/places"
)

// DefaultDetailFields are requested when Details is called without fields.
var DefaultDetailFields = []string{"location", "displayName", "formattedAddress"}

// ErrPlaceIDRequired is returned by Details for an empty place id.
var ErrPlaceIDRequired = errors.New("valid place id is required")

// Prediction is one autocomplete suggestion.
type Prediction struct {
	Description          string `json:"description"`
	PlaceID              string `json:"place_id"`
	StructuredFormatting struct {
		MainText      string `json:"main_text"`
		SecondaryText string `json:"secondary_text"`
	} `json:"structured_formatting"`
}

// LocalizedText is a display string with its language.
type LocalizedText struct {
	Text         string `json:"text"`
	LanguageCode string `json:"languageCode,omitempty"`
}

// LatLng is a coordinate pair as returned by the places service.
type LatLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Place holds the fields fetched for a place id. Fields that were not
// requested stay empty.
type Place struct {
	ID               string         `json:"id"`
	DisplayName      *LocalizedText `json:"displayName,omitempty"`
	FormattedAddress string         `json:"formattedAddress,omitempty"`
	Location         *LatLng        `json:"location,omitempty"`
}

// PlacesConfig configures a Places client. Empty URLs select the public
// endpoints.
type PlacesConfig struct {
	APIKey          string
	Client          *http.Client
	AutocompleteURL string
	DetailsURL      string
	// GeocodeTimeout bounds each reverse geocoding call. Zero uses the
	// client timeout, or 10s when the client has none.
	GeocodeTimeout time.Duration
}

// Places answers autocomplete, place details and reverse geocoding. Every
// call first waits for the Loader; autocomplete and details share one
// session token so the provider bills them as a single session.
type Places struct {
	apiKey          string
	autocompleteURL string
	detailsURL      string
	client          *http.Client
	circuit         *gobreaker.CircuitBreaker
	geocodeTimeout  time.Duration

	loader   *Loader
	sessions *Sessions
	geocoder ReverseGeocoder
}

func NewPlaces(cfg PlacesConfig, loader *Loader, sessions *Sessions, geo ReverseGeocoder) *Places {
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	ac := cfg.AutocompleteURL
	if ac == "" {
		ac = defaultAutocompleteURL
	}
	geoTimeout := cfg.GeocodeTimeout
	if geoTimeout <= 0 {
		geoTimeout = client.Timeout
	}
	if geoTimeout <= 0 {
		geoTimeout = 10 * time.Second
	}
	details := cfg.DetailsURL
	if details == "" {
		details = defaultDetailsURL
	}

	return &Places{
		apiKey:          cfg.APIKey,
		autocompleteURL: ac,
		detailsURL:      strings.TrimRight(details, "/"),
		client:          client,
		geocodeTimeout:  geoTimeout,
		circuit: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "places",
			MaxRequests: 5,
			Interval:    1 * time.Minute,
			Timeout:     2 * time.Minute,
		}),
		loader:   loader,
		sessions: sessions,
		geocoder: geo,
	}
}

// Sessions exposes the session token holder.
func (p *Places) Sessions() *Sessions {
	return p.sessions
}

// do sends req through the circuit breaker. Only transport errors and 5xx
// responses count as breaker failures.
func (p *Places) do(req *http.Request) (*http.Response, error) {
	result, err := p.circuit.Execute(func() (interface{}, error) {
		resp, err := p.client.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 500 {
			resp.Body.Close()
			return nil, fmt.Errorf("places service returned status %d", resp.StatusCode)
		}
		return resp, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*http.Response), nil
}

// Autocomplete returns city suggestions for input. Blank input yields no
// suggestions without touching the network.
func (p *Places) Autocomplete(ctx context.Context, input string) ([]Prediction, error) {
	if strings.TrimSpace(input) == "" {
		return []Prediction{}, nil
	}

	if err := p.loader.EnsureReady(ctx); err != nil {
		log.Printf("ERROR: setting up autocomplete: %v", err)
		p.sessions.Invalidate()
		return nil, fmt.Errorf("error setting up predictions: %w", err)
	}

	token := p.sessions.GetOrCreate()

	values := url.Values{}
	values.Set("input", input)
	values.Set("sessiontoken", token.String())
	values.Set("types", "(cities)")
	values.Set("key", p.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.autocompleteURL+"?"+values.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := p.do(req)
	if err != nil {
		return nil, fmt.Errorf("error fetching predictions: %w", err)
	}
	defer resp.Body.Close()

	var payload struct {
		Predictions  []Prediction `json:"predictions"`
		Status       string       `json:"status"`
		ErrorMessage string       `json:"error_message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode predictions: %w", err)
	}

	switch payload.Status {
	case "OK":
		if payload.Predictions == nil {
			return []Prediction{}, nil
		}
		return payload.Predictions, nil
	case "ZERO_RESULTS":
		return []Prediction{}, nil
	default:
		log.Printf("ERROR: autocomplete failed: %s %s", payload.Status, payload.ErrorMessage)
		return nil, fmt.Errorf("error fetching predictions: %s", payload.Status)
	}
}

// Details fetches fields for placeID. The session token live at the time of
// the call is attached and then retired, unless a newer token has replaced it
// in the meantime.
func (p *Places) Details(ctx context.Context, placeID string, fields []string) (*Place, error) {
	token := p.sessions.Current()

	if strings.TrimSpace(placeID) == "" {
		return nil, ErrPlaceIDRequired
	}
	if len(fields) == 0 {
		fields = DefaultDetailFields
	}

	defer func() {
		if token == nil {
			return
		}
		if p.sessions.RetireIfCurrent(token) {
			log.Printf("DEBUG: retired autocomplete session token %s", token)
		} else {
			log.Printf("DEBUG: session token %s replaced during details lookup; keeping newer token", token)
		}
	}()

	if err := p.loader.EnsureReady(ctx); err != nil {
		return nil, fmt.Errorf("error fetching place details: %w", err)
	}

	if token == nil {
		log.Printf("WARN: details for %s: %v", placeID, ErrTokenUnavailable)
	}

	u := p.detailsURL + "/" + url.PathEscape(placeID)
	if token != nil {
		u += "?" + url.Values{"sessionToken": {token.String()}}.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	mask := append([]string{"id"}, fields...)
	req.Header.Set("X-Goog-Api-Key", p.apiKey)
	req.Header.Set("X-Goog-FieldMask", strings.Join(mask, ","))

	resp, err := p.do(req)
	if err != nil {
		return nil, fmt.Errorf("error fetching place details: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Error struct {
				Message string `json:"message"`
				Status  string `json:"status"`
			} `json:"error"`
		}
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		_ = json.Unmarshal(body, &apiErr)
		return nil, fmt.Errorf("error fetching place details (%d): %s", resp.StatusCode, apiErr.Error.Message)
	}

	var place Place
	if err := json.NewDecoder(resp.Body).Decode(&place); err != nil {
		return nil, fmt.Errorf("decode place details: %w", err)
	}
	return &place, nil
}

// ReverseGeocode returns the formatted address nearest to the coordinates.
func (p *Places) ReverseGeocode(ctx context.Context, lat, lng float64) (string, error) {
	if err := p.loader.EnsureReady(ctx); err != nil {
		return "", fmt.Errorf("google reverse geocoding failed: %w", err)
	}
	// The geocoder library has no deadline of its own.
	ctx, cancel := context.WithTimeout(ctx, p.geocodeTimeout)
	defer cancel()

	addr, err := p.geocoder.ReverseGeocode(ctx, lat, lng)
	if err != nil {
		return "", fmt.Errorf("google reverse geocoding failed: %w", err)
	}
	return addr, nil
}
