package weather

import "sync"

// Board holds the published weather state of one user: the region channel and
// the favorites channel, each with its own loading and error flags.
//
// Every fetch takes a generation number when it starts. Only the newest
// generation of a channel may commit, so an older fetch that finishes late
// cannot overwrite newer state or clear the loading flag of a newer fetch.
type Board struct {
	mu sync.RWMutex

	region        *Snapshot
	loadingRegion bool
	errRegion     string
	regionGen     uint64

	locations        map[string]Snapshot
	loadingLocations bool
	errLocations     string
	locationsGen     uint64
}

// NewBoard creates an empty Board.
func NewBoard() *Board {
	return &Board{locations: make(map[string]Snapshot)}
}

func (b *Board) beginRegion() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.regionGen++
	b.loadingRegion = true
	b.errRegion = ""
	return b.regionGen
}

// commitRegion replaces the region snapshot wholesale. It reports false when
// gen has been superseded.
func (b *Board) commitRegion(gen uint64, snap *Snapshot, errMsg string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if gen != b.regionGen {
		return false
	}
	b.region = snap
	b.errRegion = errMsg
	b.loadingRegion = false
	return true
}

func (b *Board) beginLocations() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.locationsGen++
	b.loadingLocations = true
	b.errLocations = ""
	return b.locationsGen
}

// commitLocations publishes a complete favorites mapping in one step.
func (b *Board) commitLocations(gen uint64, data map[string]Snapshot, errMsg string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if gen != b.locationsGen {
		return false
	}
	b.locations = data
	b.errLocations = errMsg
	b.loadingLocations = false
	return true
}

// View returns a copy of the current state.
func (b *Board) View() View {
	b.mu.RLock()
	defer b.mu.RUnlock()

	v := View{
		IsLoadingRegion:    b.loadingRegion,
		IsLoadingLocations: b.loadingLocations,
		ErrorRegion:        b.errRegion,
		ErrorLocations:     b.errLocations,
		Locations:          make(map[string]Snapshot, len(b.locations)),
	}
	if b.region != nil {
		r := *b.region
		v.RegionWeather = &r
	}
	for k, s := range b.locations {
		v.Locations[k] = s
	}
	return v
}
