package maps

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kelvins/geocoder"
)

func resetGeocoderKey(t *testing.T) {
	t.Helper()
	prev := geocoder.ApiKey
	geocoder.ApiKey = ""
	t.Cleanup(func() { geocoder.ApiKey = prev })
}

func TestBootstrapLoadsOnce(t *testing.T) {
	resetGeocoderKey(t)

	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		q := r.URL.Query()
		if q.Get("key") != "maps-key" || q.Get("loading") != "async" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		w.Write([]byte("/* bootstrap */"))
	}))
	defer srv.Close()

	rt := NewBootstrap(srv.Client(), srv.URL+"/maps/api/js", "maps-key")
	l := NewLoader(rt, time.Second, time.Second)

	for i := 0; i < 3; i++ {
		if err := l.EnsureReady(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if got := atomic.LoadInt32(&hits); got != 1 {
		t.Fatalf("expected one bootstrap fetch, got %d", got)
	}
	if geocoder.ApiKey != "maps-key" {
		t.Fatalf("geocoder was not initialized")
	}

	// A second loader sharing the runtime sees the library as loaded.
	if err := NewLoader(rt, time.Second, time.Second).EnsureReady(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := atomic.LoadInt32(&hits); got != 1 {
		t.Fatalf("expected no further fetches, got %d", got)
	}
}

func TestBootstrapFailure(t *testing.T) {
	resetGeocoderKey(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	l := NewLoader(NewBootstrap(srv.Client(), srv.URL, "maps-key"), time.Second, time.Second)
	if err := l.EnsureReady(context.Background()); !errors.Is(err, ErrLoadFailed) {
		t.Fatalf("expected ErrLoadFailed, got %v", err)
	}
	if geocoder.ApiKey != "" {
		t.Fatalf("failed load must not initialize the geocoder")
	}
}

func TestBootstrapMissingKey(t *testing.T) {
	resetGeocoderKey(t)

	l := NewLoader(NewBootstrap(nil, "http://127.0.0.1:0", ""), time.Second, time.Second)
	if err := l.EnsureReady(context.Background()); !errors.Is(err, ErrLoadFailed) {
		t.Fatalf("expected ErrLoadFailed, got %v", err)
	}
}
