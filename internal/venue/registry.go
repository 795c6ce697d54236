package venue

import (
	"fmt"
	"sort"
	"sync"

	"github.com/nice-okura/dex-arbitrage-bot/internal/domain"
)

// Registry holds venue adapters keyed by venue id, together with the venue
// metadata they were configured with.
type Registry struct {
	mu       sync.RWMutex
	venues   map[string]domain.Venue
	adapters map[string]Adapter
}

// NewRegistry returns an empty registry. Call Register to add venues.
func NewRegistry() *Registry {
	return &Registry{
		venues:   make(map[string]domain.Venue),
		adapters: make(map[string]Adapter),
	}
}

// Register adds a venue and its adapter. Registering an id twice is an
// error; venues are immutable for the process lifetime.
func (r *Registry) Register(v domain.Venue, a Adapter) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.venues[v.ID]; ok {
		return fmt.Errorf("venue: duplicate registration for %q", v.ID)
	}
	r.venues[v.ID] = v
	r.adapters[v.ID] = a
	return nil
}

// Adapter returns the adapter for the given venue id.
func (r *Registry) Adapter(id string) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[id]
	if !ok {
		return nil, fmt.Errorf("venue: %q: %w", id, domain.ErrUnknownVenue)
	}
	return a, nil
}

// Venues returns all registered venues sorted by id.
func (r *Registry) Venues() []domain.Venue {
	r.mu.RLock()
	defer r.mu.RUnlock()
	venues := make([]domain.Venue, 0, len(r.venues))
	for _, v := range r.venues {
		venues = append(venues, v)
	}
	sort.Slice(venues, func(i, j int) bool { return venues[i].ID < venues[j].ID })
	return venues
}
