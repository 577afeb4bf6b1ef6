// Package store implements the combined mesh/weather persistence port
// described in the concurrency model: an LRU of MeshedAreas and their
// attached WeatheredMesh, deep-copied on both Put and Get so concurrent
// callers never alias router state, with an atomic per-area version
// counter so a caller holding a stale WeatheredMesh can detect it.
package store

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/brunoga/deep"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/sailroute/sailroute/mesh"
	"github.com/sailroute/sailroute/weather"
)

// ErrNotFound is returned when a MeshedAreaId has no entry.
var ErrNotFound = errors.New("store: meshed area not found")

// MeshStore is the persistence port both the mesh and weather binders write
// through: mesh construction is expensive, so a built MeshedArea is kept
// around and its attached weather refreshed in place.
type MeshStore interface {
	Put(area *mesh.MeshedArea) error
	Get(id mesh.MeshedAreaId) (*mesh.MeshedArea, error)
	AttachWeather(id mesh.MeshedAreaId, wm *weather.WeatheredMesh) error
	GetWeather(id mesh.MeshedAreaId) (*weather.WeatheredMesh, error)
}

type entry struct {
	area    *mesh.MeshedArea
	weather *weather.WeatheredMesh
	version atomic.Uint64
}

// LRUStore is an in-memory MeshStore bounded to capacity entries, evicting
// least-recently-used MeshedAreas once full.
type LRUStore struct {
	mu    sync.Mutex
	cache *lru.Cache[mesh.MeshedAreaId, *entry]
}

// NewLRUStore creates a store holding at most capacity MeshedAreas.
func NewLRUStore(capacity int) (*LRUStore, error) {
	c, err := lru.New[mesh.MeshedAreaId, *entry](capacity)
	if err != nil {
		return nil, err
	}
	return &LRUStore{cache: c}, nil
}

// Put stores a deep copy of area, keyed by its ID, replacing any prior
// weather attachment (a rebuilt mesh invalidates previously attached
// weather, since vertex/edge indices may differ).
func (s *LRUStore) Put(area *mesh.MeshedArea) error {
	if area == nil {
		return errors.New("store: nil area")
	}
	cp, err := deep.Copy(area)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	e := &entry{area: cp}
	s.cache.Add(area.ID, e)
	return nil
}

// Get returns a deep copy of the stored MeshedArea for id.
func (s *LRUStore) Get(id mesh.MeshedAreaId) (*mesh.MeshedArea, error) {
	s.mu.Lock()
	e, ok := s.cache.Get(id)
	s.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}
	return deep.Copy(e.area)
}

// AttachWeather stores a deep copy of wm against id, stamping its Version
// from this store's per-area counter so concurrent readers can detect
// successive attachments.
func (s *LRUStore) AttachWeather(id mesh.MeshedAreaId, wm *weather.WeatheredMesh) error {
	s.mu.Lock()
	e, ok := s.cache.Get(id)
	s.mu.Unlock()
	if !ok {
		return ErrNotFound
	}

	cp, err := deep.Copy(wm)
	if err != nil {
		return err
	}
	cp.Version = e.version.Add(1)

	s.mu.Lock()
	e.weather = cp
	s.mu.Unlock()
	return nil
}

// GetWeather returns a deep copy of the WeatheredMesh currently attached to
// id, if any.
func (s *LRUStore) GetWeather(id mesh.MeshedAreaId) (*weather.WeatheredMesh, error) {
	s.mu.Lock()
	e, ok := s.cache.Get(id)
	s.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}
	if e.weather == nil {
		return nil, ErrNotFound
	}

	s.mu.Lock()
	wm := e.weather
	s.mu.Unlock()
	return deep.Copy(wm)
}
