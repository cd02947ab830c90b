package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Fetcher runs the region and favorites fetches for one Board.
//
// The two channels fail differently. A region fetch is atomic: if any of the
// three feeds fails, nothing is published and an error message is recorded.
// A favorites fetch isolates failures per location: a failed location gets an
// entry marked with Error, its siblings are unaffected.
//
// Neither entry point returns an error; outcomes are observed through the Board.
type Fetcher struct {
	feeds Feeds
	board *Board
}

// NewFetcher creates a Fetcher publishing into board.
func NewFetcher(feeds Feeds, board *Board) *Fetcher {
	return &Fetcher{feeds: feeds, board: board}
}

// Board returns the board this fetcher publishes into.
func (f *Fetcher) Board() *Board {
	return f.board
}

type feedSet struct {
	current  json.RawMessage
	forecast json.RawMessage
	air      json.RawMessage
}

// fetchFeeds requests the three feeds in parallel and waits for all of them.
// The first error wins.
func (f *Fetcher) fetchFeeds(ctx context.Context, lat, lon float64) (feedSet, error) {
	var (
		g   errgroup.Group
		set feedSet
	)

	g.Go(func() error {
		v, err := f.feeds.CurrentWeather(ctx, lat, lon)
		set.current = v
		return err
	})
	g.Go(func() error {
		v, err := f.feeds.FiveDayForecast(ctx, lat, lon)
		set.forecast = v
		return err
	})
	g.Go(func() error {
		v, err := f.feeds.AirQuality(ctx, lat, lon)
		set.air = v
		return err
	})

	if err := g.Wait(); err != nil {
		return feedSet{}, err
	}
	return set, nil
}

// FetchRegionWeather fetches the three feeds for region and publishes one
// snapshot, or clears the region snapshot and records an error message.
func (f *Fetcher) FetchRegionWeather(ctx context.Context, region *Region) {
	if region == nil || !region.Latitude.Valid() || !region.Longitude.Valid() {
		log.Printf("ERROR: fetch region weather: %v", ErrInvalidCoordinates)
		gen := f.board.beginRegion()
		f.board.commitRegion(gen, nil, "Invalid region data provided.")
		return
	}

	lat, _ := region.Latitude.Float()
	lon, _ := region.Longitude.Float()

	label := region.Name
	if label == "" {
		label = "Unknown"
	}
	log.Printf("DEBUG: fetching weather for region %s (%v, %v)", label, lat, lon)

	gen := f.board.beginRegion()

	set, err := f.fetchFeeds(ctx, lat, lon)
	if err != nil {
		target := region.Name
		if target == "" {
			target = "your region"
		}
		log.Printf("ERROR: region weather for %s failed: %v", target, err)
		msg := fmt.Sprintf("Failed to fetch weather for %s. %v", target, err)
		if !f.board.commitRegion(gen, nil, msg) {
			log.Printf("DEBUG: region fetch %d superseded; dropping error", gen)
		}
		return
	}

	snap := &Snapshot{
		RegionInfo: &RegionInfo{
			Name:    region.Name,
			Lat:     lat,
			Lon:     lon,
			PlaceID: region.PlaceID,
		},
		CurrentWeather:  set.current,
		FiveDayForecast: set.forecast,
		AirQuality:      set.air,
	}
	if !f.board.commitRegion(gen, snap, "") {
		log.Printf("DEBUG: region fetch %d superseded; dropping result", gen)
	}
}

// FetchWeatherForAllLocations fetches every favorite concurrently and
// publishes the complete mapping once all of them have settled. Locations
// without numeric coordinates are skipped.
func (f *Fetcher) FetchWeatherForAllLocations(ctx context.Context, locations []FavoriteLocation) {
	if len(locations) == 0 {
		log.Println("INFO: no favorite locations to fetch weather for")
		gen := f.board.beginLocations()
		f.board.commitLocations(gen, make(map[string]Snapshot), "")
		return
	}

	log.Printf("DEBUG: fetching weather for %d favorite locations", len(locations))
	gen := f.board.beginLocations()

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		result = make(map[string]Snapshot, len(locations))
	)

	for _, loc := range locations {
		lat, okLat := loc.Lat.Float()
		lng, okLng := loc.Lng.Float()
		if !okLat || !okLng {
			log.Printf("WARN: skipping location %q: %v", loc.Description, ErrInvalidCoordinates)
			continue
		}

		wg.Add(1)
		go func(loc FavoriteLocation, lat, lng float64) {
			defer wg.Done()

			key := loc.Key()
			snap := Snapshot{LocationInfo: &loc}

			set, err := f.fetchFeeds(ctx, lat, lng)
			if err != nil {
				name := loc.Description
				if name == "" {
					name = key
				}
				log.Printf("ERROR: weather for location %s failed: %v", name, err)
				snap.Error = true
				snap.ErrorMessage = err.Error()
			} else {
				snap.CurrentWeather = set.current
				snap.FiveDayForecast = set.forecast
				snap.AirQuality = set.air
			}

			mu.Lock()
			result[key] = snap
			mu.Unlock()
		}(loc, lat, lng)
	}

	wg.Wait()

	if !f.board.commitLocations(gen, result, "") {
		log.Printf("DEBUG: favorites fetch %d superseded; dropping result", gen)
		return
	}
	log.Printf("DEBUG: published weather for %d favorite locations", len(result))
}
