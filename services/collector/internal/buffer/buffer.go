// Package buffer holds the per-site sample buffers and power-state cache of the collector.
package buffer

import (
	"sort"
	"sync"

	"github.com/fuelguard/fuelguard/pkg/telemetry"
)

// SiteState is the buffer and cached power state of one site.
type SiteState struct {
	mu         sync.Mutex
	capacity   int
	samples    []telemetry.RawSample
	powerState string
}

func newSiteState(capacity int) *SiteState {
	return &SiteState{
		capacity: capacity,
		samples:  make([]telemetry.RawSample, 0, capacity),
	}
}

// SetPowerState overwrites the cached power state.
func (s *SiteState) SetPowerState(state string) {
	s.mu.Lock()
	s.powerState = state
	s.mu.Unlock()
}

// PowerState returns the cached power state, or telemetry.PowerStateUnknown.
func (s *SiteState) PowerState() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.powerState == "" {
		return telemetry.PowerStateUnknown
	}
	return s.powerState
}

// Add appends sample. When the buffer is already full the oldest sample by
// timestamp is evicted first. Reaching capacity returns the batch and resets
// the buffer.
func (s *SiteState) Add(sample telemetry.RawSample) (batch []telemetry.RawSample, evicted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.samples) >= s.capacity {
		s.evictOldest()
		evicted = true
	}
	s.samples = append(s.samples, sample)

	if len(s.samples) == s.capacity {
		batch = s.samples
		s.samples = make([]telemetry.RawSample, 0, s.capacity)
	}
	return batch, evicted
}

// evictOldest removes the sample with the smallest timestamp, keeping the
// relative order of the rest. Ties evict the earliest arrival.
func (s *SiteState) evictOldest() {
	if len(s.samples) == 0 {
		return
	}
	oldest := 0
	for i, sample := range s.samples[1:] {
		if sample.UpdateTime < s.samples[oldest].UpdateTime {
			oldest = i + 1
		}
	}
	s.samples = append(s.samples[:oldest], s.samples[oldest+1:]...)
}

func (s *SiteState) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.samples)
}

// Store owns one SiteState per site.
type Store struct {
	capacity int

	mu    sync.RWMutex
	sites map[string]*SiteState
}

func NewStore(capacity int) *Store {
	if capacity < 1 {
		capacity = 1
	}
	return &Store{capacity: capacity, sites: map[string]*SiteState{}}
}

func (s *Store) GetOrCreate(siteID string) *SiteState {
	s.mu.RLock()
	state, ok := s.sites[siteID]
	s.mu.RUnlock()
	if ok {
		return state
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if state, ok := s.sites[siteID]; ok {
		return state
	}
	state = newSiteState(s.capacity)
	s.sites[siteID] = state
	return state
}

func (s *Store) Capacity() int {
	return s.capacity
}

type SiteStats struct {
	SiteID     string `json:"site_id"`
	Buffered   int    `json:"buffered"`
	PowerState string `json:"power_state"`
}

// Stats reports the fill level of every known site, sorted by site id.
func (s *Store) Stats() []SiteStats {
	s.mu.RLock()
	stats := make([]SiteStats, 0, len(s.sites))
	for id, state := range s.sites {
		stats = append(stats, SiteStats{SiteID: id, Buffered: state.Len(), PowerState: state.PowerState()})
	}
	s.mu.RUnlock()

	sort.Slice(stats, func(i, j int) bool { return stats[i].SiteID < stats[j].SiteID })
	return stats
}
