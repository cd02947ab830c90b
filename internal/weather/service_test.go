package weather

import (
	"context"
	"errors"
	"testing"
)

func TestServiceRefreshPerUser(t *testing.T) {
	svc := NewService(&fakeFeeds{})

	region := &Region{Name: "Lisbon", Latitude: Coord(38.7), Longitude: Coord(-9.1)}
	locs := []FavoriteLocation{{Description: "Home", Lat: Coord(1), Lng: Coord(1)}}
	if err := svc.Refresh(context.Background(), "maria", region, locs); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	v := svc.View("maria")
	if v.RegionWeather == nil || len(v.Locations) != 1 {
		t.Fatalf("unexpected view %+v", v)
	}

	other := svc.View("john")
	if other.RegionWeather != nil || len(other.Locations) != 0 {
		t.Fatalf("boards leaked between users: %+v", other)
	}
}

func TestServiceRefreshWithoutRegion(t *testing.T) {
	svc := NewService(&fakeFeeds{})
	if err := svc.Refresh(context.Background(), "john", nil, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v := svc.View("john"); v.ErrorRegion != "" {
		t.Fatalf("missing region should not record an error, got %q", v.ErrorRegion)
	}
}

func TestServiceWithoutFeeds(t *testing.T) {
	svc := NewService(nil)
	if err := svc.Refresh(context.Background(), "x", nil, nil); !errors.Is(err, ErrNoFeeds) {
		t.Fatalf("expected ErrNoFeeds, got %v", err)
	}
}
