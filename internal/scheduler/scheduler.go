package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/i474232898/nimbus/internal/store"
	"github.com/i474232898/nimbus/internal/weather"
)

const defaultInterval = 15 * time.Minute

// Users lists the accounts whose boards are kept fresh.
type Users interface {
	List() []store.User
}

// Scheduler periodically refreshes the weather boards of users who saved a
// region or favorite locations.
type Scheduler struct {
	scheduler *gocron.Scheduler
	service   *weather.Service
	users     Users
	interval  time.Duration
	timeout   time.Duration
}

// New creates a new Scheduler.
func New(users Users, interval time.Duration, service *weather.Service) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	return &Scheduler{
		scheduler: s,
		service:   service,
		users:     users,
		interval:  interval,
		timeout:   30 * time.Second,
	}
}

// Start schedules the periodic job and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	interval := s.interval
	if interval <= 0 {
		log.Printf("WARN: scheduler: no refresh interval configured; using %s", defaultInterval)
		interval = defaultInterval
	}

	_, err := s.scheduler.Every(interval).SingletonMode().Do(s.RunOnce)
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// RunOnce refreshes every eligible user's board and waits for all of them.
func (s *Scheduler) RunOnce() {
	log.Println("INFO: scheduler: running weather refresh job")

	var wg sync.WaitGroup
	refreshed := 0
	for _, u := range s.users.List() {
		if u.Region == nil && len(u.Locations) == 0 {
			continue
		}
		refreshed++

		u := u
		wg.Add(1)
		go func() {
			defer wg.Done()

			ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
			defer cancel()

			if err := s.service.Refresh(ctx, u.Username, u.Region, u.Locations); err != nil {
				log.Printf("ERROR: scheduler: refresh failed for %s: %v", u.Username, err)
			}
		}()
	}
	wg.Wait()
	log.Printf("INFO: scheduler: refreshed %d user board(s)", refreshed)
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
