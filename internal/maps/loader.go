package maps

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"
)

var (
	// ErrLoadTimeout is returned when the client library never became ready.
	ErrLoadTimeout = errors.New("timeout waiting for maps client library")
	// ErrLoadFailed is returned when starting the load itself failed.
	ErrLoadFailed = errors.New("failed to load maps client library")
)

const (
	// DefaultExistingTimeout bounds the wait for a load someone else started.
	DefaultExistingTimeout = 10 * time.Second
	// DefaultLoadTimeout bounds the wait for a load this process started.
	DefaultLoadTimeout = 15 * time.Second
)

// Runtime is the environment the maps client library lives in.
type Runtime interface {
	// Loaded reports whether the library entry point is already usable.
	Loaded() bool
	// Injected reports whether a load has already been started.
	Injected() bool
	// Inject starts loading asynchronously. onError is called at most once
	// if the load cannot complete.
	Inject(onError func(error))
	// Ready is closed once the entry point is usable.
	Ready() <-chan struct{}
}

// Readiness is the latched state of a Loader.
type Readiness int

const (
	Unresolved Readiness = iota
	Ready
	Failed
)

func (r Readiness) String() string {
	switch r {
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	default:
		return "unresolved"
	}
}

// Loader makes sure the maps client library is loaded at most once per
// process. Every caller of EnsureReady observes the same outcome, and a failed
// load is not retried: the failure stays latched for the life of the Loader.
type Loader struct {
	rt              Runtime
	existingTimeout time.Duration
	loadTimeout     time.Duration

	once sync.Once
	done chan struct{}
	err  error
}

// NewLoader creates a Loader. Non-positive timeouts use the defaults.
func NewLoader(rt Runtime, existingTimeout, loadTimeout time.Duration) *Loader {
	if existingTimeout <= 0 {
		existingTimeout = DefaultExistingTimeout
	}
	if loadTimeout <= 0 {
		loadTimeout = DefaultLoadTimeout
	}
	return &Loader{
		rt:              rt,
		existingTimeout: existingTimeout,
		loadTimeout:     loadTimeout,
		done:            make(chan struct{}),
	}
}

// EnsureReady starts the load on first use and waits for its outcome. The
// load itself is not bound to ctx; ctx only limits how long this caller waits.
func (l *Loader) EnsureReady(ctx context.Context) error {
	l.once.Do(func() { go l.load() })

	select {
	case <-l.done:
		return l.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// State reports the latched readiness without starting a load.
func (l *Loader) State() Readiness {
	select {
	case <-l.done:
		if l.err != nil {
			return Failed
		}
		return Ready
	default:
		return Unresolved
	}
}

func (l *Loader) load() {
	defer close(l.done)

	if l.rt.Loaded() {
		log.Println("INFO: maps client library already loaded")
		return
	}

	if l.rt.Injected() {
		log.Println("WARN: maps client library load already in flight; waiting for it")
		l.err = l.await(nil, l.existingTimeout)
		return
	}

	log.Println("INFO: loading maps client library")
	failed := make(chan error, 1)
	l.rt.Inject(func(err error) {
		select {
		case failed <- err:
		default:
		}
	})
	l.err = l.await(failed, l.loadTimeout)
}

func (l *Loader) await(failed <-chan error, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-l.rt.Ready():
		log.Println("INFO: maps client library ready")
		return nil
	case err := <-failed:
		log.Printf("ERROR: maps client library failed to load: %v", err)
		return fmt.Errorf("%w: %v", ErrLoadFailed, err)
	case <-timer.C:
		if l.rt.Loaded() {
			return nil
		}
		log.Printf("ERROR: maps client library not ready after %s", timeout)
		return ErrLoadTimeout
	}
}
