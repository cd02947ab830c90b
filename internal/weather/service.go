package weather

import (
	"context"
	"log"
	"sync"
)

// Service owns one Board per user and runs fetches against a shared Feeds.
type Service struct {
	feeds Feeds

	mu       sync.Mutex
	fetchers map[string]*Fetcher
}

// NewService creates a new Service.
func NewService(feeds Feeds) *Service {
	return &Service{
		feeds:    feeds,
		fetchers: make(map[string]*Fetcher),
	}
}

// For returns the fetcher bound to user's board, creating it on first use.
func (s *Service) For(user string) *Fetcher {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.fetchers[user]
	if !ok {
		f = NewFetcher(s.feeds, NewBoard())
		s.fetchers[user] = f
	}
	return f
}

// View returns the published state for user.
func (s *Service) View(user string) View {
	return s.For(user).Board().View()
}

// Refresh runs the region and favorites channels for user concurrently and
// returns once both have settled. The region channel is skipped when region is
// nil, so users who never picked a region do not get a region error.
func (s *Service) Refresh(ctx context.Context, user string, region *Region, locations []FavoriteLocation) error {
	if s.feeds == nil {
		log.Printf("ERROR: no feeds available to refresh weather for %s", user)
		return ErrNoFeeds
	}

	f := s.For(user)

	var wg sync.WaitGroup
	if region != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.FetchRegionWeather(ctx, region)
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		f.FetchWeatherForAllLocations(ctx, locations)
	}()
	wg.Wait()

	return nil
}

// Forget drops user's board.
func (s *Service) Forget(user string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.fetchers, user)
}
