package weather

import (
	"context"
	"encoding/json"
	"errors"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
)

// fakeFeeds answers every feed with a small payload unless fail says otherwise.
type fakeFeeds struct {
	calls int32
	fail  func(feed string, lat, lon float64) error
	// gate, when set, blocks calls for the given latitude until closed.
	gate map[float64]chan struct{}
}

func (f *fakeFeeds) call(ctx context.Context, feed string, lat, lon float64) (json.RawMessage, error) {
	atomic.AddInt32(&f.calls, 1)
	if ch, ok := f.gate[lat]; ok {
		<-ch
	}
	if f.fail != nil {
		if err := f.fail(feed, lat, lon); err != nil {
			return nil, err
		}
	}
	return json.RawMessage(`{"feed":"` + feed + `"}`), nil
}

func (f *fakeFeeds) CurrentWeather(ctx context.Context, lat, lon float64) (json.RawMessage, error) {
	return f.call(ctx, "current", lat, lon)
}

func (f *fakeFeeds) FiveDayForecast(ctx context.Context, lat, lon float64) (json.RawMessage, error) {
	return f.call(ctx, "forecast", lat, lon)
}

func (f *fakeFeeds) AirQuality(ctx context.Context, lat, lon float64) (json.RawMessage, error) {
	return f.call(ctx, "air", lat, lon)
}

func TestRegionWeatherSuccess(t *testing.T) {
	feeds := &fakeFeeds{}
	f := NewFetcher(feeds, NewBoard())

	f.FetchRegionWeather(context.Background(), &Region{Name: "Lisbon", Latitude: Coord(38.7), Longitude: Coord(-9.1)})

	v := f.Board().View()
	if v.IsLoadingRegion {
		t.Fatalf("loading flag still set")
	}
	if v.ErrorRegion != "" {
		t.Fatalf("unexpected error %q", v.ErrorRegion)
	}
	if v.RegionWeather == nil || v.RegionWeather.RegionInfo == nil {
		t.Fatalf("expected region snapshot")
	}
	if v.RegionWeather.RegionInfo.Name != "Lisbon" {
		t.Fatalf("expected Lisbon, got %q", v.RegionWeather.RegionInfo.Name)
	}
	if len(v.RegionWeather.CurrentWeather) == 0 || len(v.RegionWeather.FiveDayForecast) == 0 || len(v.RegionWeather.AirQuality) == 0 {
		t.Fatalf("expected all three feeds populated: %+v", v.RegionWeather)
	}
	if got := atomic.LoadInt32(&feeds.calls); got != 3 {
		t.Fatalf("expected 3 upstream calls, got %d", got)
	}
}

func TestRegionWeatherInvalidInputSkipsNetwork(t *testing.T) {
	cases := map[string]*Region{
		"nil":           nil,
		"no latitude":   {Name: "X", Longitude: Coord(1)},
		"no longitude":  {Name: "X", Latitude: Coord(1)},
		"no coordinate": {Name: "X"},
	}

	for name, region := range cases {
		t.Run(name, func(t *testing.T) {
			feeds := &fakeFeeds{}
			f := NewFetcher(feeds, NewBoard())

			f.FetchRegionWeather(context.Background(), region)

			v := f.Board().View()
			if atomic.LoadInt32(&feeds.calls) != 0 {
				t.Fatalf("expected zero network calls")
			}
			if v.ErrorRegion == "" {
				t.Fatalf("expected an error message")
			}
			if v.RegionWeather != nil || v.IsLoadingRegion {
				t.Fatalf("unexpected state %+v", v)
			}
		})
	}
}

func TestRegionWeatherFailsAtomically(t *testing.T) {
	feeds := &fakeFeeds{fail: func(feed string, _, _ float64) error {
		if feed == "air" {
			return errors.New("Error fetching air pollution data (500)")
		}
		return nil
	}}
	f := NewFetcher(feeds, NewBoard())

	// A previous good snapshot must not survive a failed refresh.
	f.FetchRegionWeather(context.Background(), &Region{Name: "Lisbon", Latitude: Coord(38.7), Longitude: Coord(-9.1)})
	f.FetchRegionWeather(context.Background(), &Region{Name: "Porto", Latitude: Coord(41.1), Longitude: Coord(-8.6)})

	v := f.Board().View()
	if v.RegionWeather != nil {
		t.Fatalf("expected no snapshot after partial failure, got %+v", v.RegionWeather)
	}
	if !strings.Contains(v.ErrorRegion, "Porto") || !strings.Contains(v.ErrorRegion, "(500)") {
		t.Fatalf("error message lacks detail: %q", v.ErrorRegion)
	}
	if v.IsLoadingRegion {
		t.Fatalf("loading flag still set")
	}
}

func TestFavoritesSkipInvalidLocations(t *testing.T) {
	var locs []FavoriteLocation
	if err := json.Unmarshal([]byte(`[{"lat":1,"lng":1},{"lat":"bad","lng":2}]`), &locs); err != nil {
		t.Fatalf("decode: %v", err)
	}

	feeds := &fakeFeeds{}
	f := NewFetcher(feeds, NewBoard())
	f.FetchWeatherForAllLocations(context.Background(), locs)

	v := f.Board().View()
	if len(v.Locations) != 1 {
		t.Fatalf("expected exactly one entry, got %d", len(v.Locations))
	}
	if _, ok := v.Locations["1,1"]; !ok {
		t.Fatalf("expected key 1,1, got %v", v.Locations)
	}
	if v.IsLoadingLocations || v.ErrorLocations != "" {
		t.Fatalf("unexpected batch state %+v", v)
	}
	if got := atomic.LoadInt32(&feeds.calls); got != 3 {
		t.Fatalf("expected 3 upstream calls, got %d", got)
	}
}

func TestFavoritesIsolateFailures(t *testing.T) {
	feeds := &fakeFeeds{fail: func(_ string, lat, _ float64) error {
		if lat == 2 {
			return errors.New("Could not fetch weather data (404)")
		}
		return nil
	}}
	f := NewFetcher(feeds, NewBoard())

	f.FetchWeatherForAllLocations(context.Background(), []FavoriteLocation{
		{Description: "Good", Lat: Coord(1), Lng: Coord(1), PlaceID: "place-1"},
		{Description: "Bad", Lat: Coord(2), Lng: Coord(2)},
	})

	v := f.Board().View()
	good, ok := v.Locations["place-1"]
	if !ok || good.Error || len(good.CurrentWeather) == 0 {
		t.Fatalf("good location not published correctly: %+v", good)
	}
	bad, ok := v.Locations["2,2"]
	if !ok || !bad.Error || bad.ErrorMessage == "" {
		t.Fatalf("bad location should carry an error marker: %+v", bad)
	}
	if bad.LocationInfo == nil || bad.LocationInfo.Description != "Bad" {
		t.Fatalf("bad location lost its info: %+v", bad)
	}
	if v.ErrorLocations != "" {
		t.Fatalf("batch error should stay empty, got %q", v.ErrorLocations)
	}
}

func TestFavoritesEmptyClearsState(t *testing.T) {
	f := NewFetcher(&fakeFeeds{}, NewBoard())
	f.FetchWeatherForAllLocations(context.Background(), []FavoriteLocation{{Lat: Coord(1), Lng: Coord(1)}})
	f.FetchWeatherForAllLocations(context.Background(), nil)

	v := f.Board().View()
	if len(v.Locations) != 0 || v.IsLoadingLocations || v.ErrorLocations != "" {
		t.Fatalf("expected cleared state, got %+v", v)
	}
}

func TestFavoritesPublishOnlyAfterAllSettle(t *testing.T) {
	slow := make(chan struct{})
	feeds := &fakeFeeds{gate: map[float64]chan struct{}{2: slow}}
	f := NewFetcher(feeds, NewBoard())

	done := make(chan struct{})
	go func() {
		f.FetchWeatherForAllLocations(context.Background(), []FavoriteLocation{
			{Lat: Coord(1), Lng: Coord(1)},
			{Lat: Coord(2), Lng: Coord(2)},
		})
		close(done)
	}()

	// Wait until all six feed calls have been issued.
	for atomic.LoadInt32(&feeds.calls) < 6 {
		select {
		case <-done:
			t.Fatalf("batch finished before slow location was released")
		default:
			runtime.Gosched()
		}
	}

	v := f.Board().View()
	if !v.IsLoadingLocations {
		t.Fatalf("expected loading flag while batch in flight")
	}
	if len(v.Locations) != 0 {
		t.Fatalf("partial mapping visible while in flight: %v", v.Locations)
	}

	close(slow)
	<-done

	if v := f.Board().View(); len(v.Locations) != 2 || v.IsLoadingLocations {
		t.Fatalf("unexpected final state %+v", v)
	}
}

func TestStaleRegionFetchDoesNotOverwrite(t *testing.T) {
	slow := make(chan struct{})
	feeds := &fakeFeeds{gate: map[float64]chan struct{}{10: slow}}
	f := NewFetcher(feeds, NewBoard())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		f.FetchRegionWeather(context.Background(), &Region{Name: "Old", Latitude: Coord(10), Longitude: Coord(10)})
	}()

	for atomic.LoadInt32(&feeds.calls) < 1 {
		runtime.Gosched()
	}

	f.FetchRegionWeather(context.Background(), &Region{Name: "New", Latitude: Coord(20), Longitude: Coord(20)})
	close(slow)
	wg.Wait()

	v := f.Board().View()
	if v.RegionWeather == nil || v.RegionWeather.RegionInfo.Name != "New" {
		t.Fatalf("stale fetch overwrote newer state: %+v", v.RegionWeather)
	}
	if v.IsLoadingRegion {
		t.Fatalf("loading flag still set")
	}
}

func TestStaleFavoritesFetchDoesNotOverwrite(t *testing.T) {
	slow := make(chan struct{})
	feeds := &fakeFeeds{gate: map[float64]chan struct{}{10: slow}}
	f := NewFetcher(feeds, NewBoard())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		f.FetchWeatherForAllLocations(context.Background(), []FavoriteLocation{
			{Description: "Old", Lat: Coord(10), Lng: Coord(10), PlaceID: "old"},
		})
	}()

	for atomic.LoadInt32(&feeds.calls) < 1 {
		runtime.Gosched()
	}

	f.FetchWeatherForAllLocations(context.Background(), []FavoriteLocation{
		{Description: "New", Lat: Coord(20), Lng: Coord(20), PlaceID: "new"},
	})

	if v := f.Board().View(); v.IsLoadingLocations {
		t.Fatalf("newest fetch settled but loading flag still set")
	}

	close(slow)
	wg.Wait()

	v := f.Board().View()
	if len(v.Locations) != 1 {
		t.Fatalf("expected only the newer mapping, got %v", v.Locations)
	}
	if _, ok := v.Locations["new"]; !ok {
		t.Fatalf("stale fetch overwrote newer mapping: %v", v.Locations)
	}
	if v.IsLoadingLocations {
		t.Fatalf("stale fetch re-set the loading flag")
	}
}
