package maps

import (
	"context"
	"errors"

	"github.com/kelvins/geocoder"
)

// ErrNoGeocodeResults is returned when the geocoder finds nothing.
var ErrNoGeocodeResults = errors.New("no results found by geocoder")

// ReverseGeocoder turns coordinates into a human readable address.
type ReverseGeocoder interface {
	ReverseGeocode(ctx context.Context, lat, lng float64) (string, error)
}

// GoogleGeocoder uses the geocoder library. Its API key is the one installed
// by Bootstrap, so it only works after the Loader reports ready.
type GoogleGeocoder struct{}

func (GoogleGeocoder) ReverseGeocode(ctx context.Context, lat, lng float64) (string, error) {
	type result struct {
		addrs []geocoder.Address
		err   error
	}

	// The library takes no context; stop waiting when ctx ends.
	ch := make(chan result, 1)
	go func() {
		addrs, err := geocoder.GeocodingReverse(geocoder.Location{Latitude: lat, Longitude: lng})
		ch <- result{addrs, err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-ch:
		if r.err != nil {
			return "", r.err
		}
		if len(r.addrs) == 0 {
			return "", ErrNoGeocodeResults
		}
		return r.addrs[0].FormattedAddress, nil
	}
}
