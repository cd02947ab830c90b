package weather

import (
	"encoding/json"
	"strconv"
)

// Region is the user's primary area of interest.
type Region struct {
	Name      string     `json:"region"`
	Latitude  Coordinate `json:"latitude"`
	Longitude Coordinate `json:"longitude"`
	PlaceID   string     `json:"place_id,omitempty"`
}

// FavoriteLocation is one of a user's saved places.
type FavoriteLocation struct {
	Description string     `json:"description"`
	Lat         Coordinate `json:"lat"`
	Lng         Coordinate `json:"lng"`
	PlaceID     string     `json:"place_id,omitempty"`
}

// Key returns the identity used in the favorites mapping: the place id when
// present, otherwise "lat,lng". The coordinates must be valid.
func (l FavoriteLocation) Key() string {
	if l.PlaceID != "" {
		return l.PlaceID
	}
	lat, _ := l.Lat.Float()
	lng, _ := l.Lng.Float()
	return strconv.FormatFloat(lat, 'f', -1, 64) + "," + strconv.FormatFloat(lng, 'f', -1, 64)
}

// RegionInfo is the region metadata carried along with a region snapshot.
type RegionInfo struct {
	Name    string  `json:"name"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	PlaceID string  `json:"place_id,omitempty"`
}

// Snapshot combines the three feeds for one location at one point in time.
// Upstream payloads are kept verbatim.
type Snapshot struct {
	RegionInfo   *RegionInfo       `json:"regionInfo,omitempty"`
	LocationInfo *FavoriteLocation `json:"locationInfo,omitempty"`

	CurrentWeather  json.RawMessage `json:"currentWeather,omitempty"`
	FiveDayForecast json.RawMessage `json:"fiveDayForecast,omitempty"`
	AirQuality      json.RawMessage `json:"airQuality,omitempty"`

	Error        bool   `json:"error"`
	ErrorMessage string `json:"errorMessage,omitempty"`
}

// View is a point-in-time copy of a Board.
type View struct {
	RegionWeather      *Snapshot           `json:"regionWeatherData"`
	Locations          map[string]Snapshot `json:"weatherData"`
	IsLoadingRegion    bool                `json:"isLoadingRegion"`
	IsLoadingLocations bool                `json:"isLoadingLocations"`
	ErrorRegion        string              `json:"errorRegion,omitempty"`
	ErrorLocations     string              `json:"errorLocations,omitempty"`
}
