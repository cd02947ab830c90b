package maps

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/kelvins/geocoder"
)

const defaultBootstrapURL = "https://maps.googleapis.com/maps/api/js"

// Bootstrap is the production Runtime. Injecting fetches the maps bootstrap
// resource with the API key; once it answers 2xx the geocoder library is
// initialized with the key and Ready is closed.
type Bootstrap struct {
	url    string
	apiKey string
	client *http.Client

	mu        sync.Mutex
	injected  bool
	ready     chan struct{}
	readyOnce sync.Once
}

// NewBootstrap creates a Bootstrap. An empty resourceURL selects the public
// maps bootstrap endpoint.
func NewBootstrap(client *http.Client, resourceURL, apiKey string) *Bootstrap {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if resourceURL == "" {
		resourceURL = defaultBootstrapURL
	}
	return &Bootstrap{
		url:    resourceURL,
		apiKey: apiKey,
		client: client,
		ready:  make(chan struct{}),
	}
}

func (b *Bootstrap) Loaded() bool {
	select {
	case <-b.ready:
		return true
	default:
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	return geocoder.ApiKey != ""
}

func (b *Bootstrap) Injected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.injected
}

func (b *Bootstrap) Ready() <-chan struct{} {
	return b.ready
}

func (b *Bootstrap) Inject(onError func(error)) {
	b.mu.Lock()
	b.injected = true
	b.mu.Unlock()

	if b.apiKey == "" {
		onError(errors.New("google maps api key is missing"))
		return
	}

	values := url.Values{}
	values.Set("key", b.apiKey)
	values.Set("loading", "async")
	values.Set("v", "beta")
	resource := b.url + "?" + values.Encode()

	go func() {
		resp, err := b.client.Get(resource)
		if err != nil {
			onError(err)
			return
		}
		resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			onError(fmt.Errorf("bootstrap resource returned status %d", resp.StatusCode))
			return
		}

		b.mu.Lock()
		geocoder.ApiKey = b.apiKey
		b.mu.Unlock()
		b.readyOnce.Do(func() { close(b.ready) })
	}()
}
