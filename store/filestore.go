package store

import (
	"fmt"
	"sync"

	"github.com/sailroute/sailroute/mesh"
	"github.com/sailroute/sailroute/util"
	"github.com/sailroute/sailroute/weather"
)

// FileStore is a MeshStore backed by the user cache directory: each
// MeshedArea and WeatheredMesh is msgpack-encoded and zstd-compressed via
// util.CacheStoreObject/CacheRetrieveObject, the same encode path an
// in-memory LRUStore never needs since it never leaves the process. It is a
// thin, swappable implementation for a caller that wants a built mesh to
// survive a restart, not the default (LRUStore is).
type FileStore struct {
	mu sync.Mutex
}

// NewFileStore constructs a FileStore writing under the user cache
// directory (see util.CacheStoreObject).
func NewFileStore() *FileStore { return &FileStore{} }

func meshCachePath(id mesh.MeshedAreaId) string    { return fmt.Sprintf("mesh/%s.bin", id) }
func weatherCachePath(id mesh.MeshedAreaId) string { return fmt.Sprintf("weather/%s.bin", id) }

// Put msgpack/zstd-encodes area to the cache directory, overwriting any
// prior mesh entry. A weather attachment cached for the same id is left in
// place; GetWeather keeps returning it until AttachWeather replaces it.
func (s *FileStore) Put(area *mesh.MeshedArea) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := util.CacheStoreObject(meshCachePath(area.ID), area); err != nil {
		return fmt.Errorf("caching mesh %s: %w", area.ID, err)
	}
	return nil
}

// Get decodes the MeshedArea cached under id. A decoded FormatVersion that
// doesn't match the running binary's mesh.FormatVersion is treated as a
// cache miss, per §3.1: bumping the format invalidates what's on disk.
func (s *FileStore) Get(id mesh.MeshedAreaId) (*mesh.MeshedArea, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var area mesh.MeshedArea
	if _, err := util.CacheRetrieveObject(meshCachePath(id), &area); err != nil {
		return nil, ErrNotFound
	}
	if area.FormatVersion != mesh.FormatVersion {
		return nil, ErrNotFound
	}
	return &area, nil
}

// AttachWeather encodes wm to the cache directory under id, requiring a
// prior Put to have succeeded for that area.
func (s *FileStore) AttachWeather(id mesh.MeshedAreaId, wm *weather.WeatheredMesh) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := util.CacheRetrieveObject(meshCachePath(id), &mesh.MeshedArea{}); err != nil {
		return ErrNotFound
	}
	if err := util.CacheStoreObject(weatherCachePath(id), wm); err != nil {
		return fmt.Errorf("caching weather for %s: %w", id, err)
	}
	return nil
}

// GetWeather decodes the WeatheredMesh cached under id, subject to the same
// FormatVersion cache-miss check as Get.
func (s *FileStore) GetWeather(id mesh.MeshedAreaId) (*weather.WeatheredMesh, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var wm weather.WeatheredMesh
	if _, err := util.CacheRetrieveObject(weatherCachePath(id), &wm); err != nil {
		return nil, ErrNotFound
	}
	if wm.FormatVersion != weather.FormatVersion {
		return nil, ErrNotFound
	}
	return &wm, nil
}

// Prune removes the oldest cached mesh/weather files, by modification time,
// until the cache directory is at or under maxBytes.
func (s *FileStore) Prune(maxBytes int64) error {
	return util.CacheCullObjects(maxBytes)
}

var _ MeshStore = (*FileStore)(nil)
