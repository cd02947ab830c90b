package weather

import "errors"

var (
	// ErrInvalidCoordinates is recorded when a region or location lacks
	// numeric latitude/longitude. No network call is made in that case.
	ErrInvalidCoordinates = errors.New("missing or non-numeric coordinates")

	// ErrNoFeeds is returned by Service.Refresh when no feed source is configured.
	ErrNoFeeds = errors.New("no weather feeds configured")
)
