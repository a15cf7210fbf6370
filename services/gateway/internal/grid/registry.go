package grid

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrGridNotFound = errors.New("grid not found")

type entry struct {
	ctrl     *Controller
	lastUsed time.Time
}

// Registry holds one controller per browser grid. Idle grids are evicted
// after ttl; when full, the least recently used grid is dropped.
type Registry struct {
	resolver Resolver
	log      *zap.Logger
	ttl      time.Duration
	max      int
	now      func() time.Time

	mu    sync.Mutex
	grids map[string]*entry
}

func NewRegistry(resolver Resolver, ttl time.Duration, max int, log *zap.Logger) *Registry {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	if max <= 0 {
		max = 10000
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		resolver: resolver,
		log:      log,
		ttl:      ttl,
		max:      max,
		now:      time.Now,
		grids:    make(map[string]*entry),
	}
}

// Create registers a new idle controller and returns its id.
func (r *Registry) Create() (string, *Controller) {
	id := uuid.NewString()
	ctrl := NewController(r.resolver, r.log.With(zap.String("grid_id", id)))

	r.mu.Lock()
	defer r.mu.Unlock()
	r.sweepLocked()
	if len(r.grids) >= r.max {
		r.evictOldestLocked()
	}
	r.grids[id] = &entry{ctrl: ctrl, lastUsed: r.now()}
	return id, ctrl
}

// Get returns the controller for id and marks it as used.
func (r *Registry) Get(id string) (*Controller, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.grids[id]
	if !ok || r.now().Sub(e.lastUsed) > r.ttl {
		delete(r.grids, id)
		return nil, ErrGridNotFound
	}
	e.lastUsed = r.now()
	return e.ctrl, nil
}

// Delete discards a grid.
func (r *Registry) Delete(id string) {
	r.mu.Lock()
	delete(r.grids, id)
	r.mu.Unlock()
}

// Len reports how many grids are live.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.grids)
}

func (r *Registry) sweepLocked() {
	now := r.now()
	for id, e := range r.grids {
		if now.Sub(e.lastUsed) > r.ttl {
			delete(r.grids, id)
		}
	}
}

func (r *Registry) evictOldestLocked() {
	var oldestID string
	var oldest time.Time
	for id, e := range r.grids {
		if oldestID == "" || e.lastUsed.Before(oldest) {
			oldestID, oldest = id, e.lastUsed
		}
	}
	if oldestID != "" {
		delete(r.grids, oldestID)
	}
}
