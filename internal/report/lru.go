package report

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// LRUStore keeps the most recent runs in memory and delegates to a backing
// Store for persistence and cache misses.
type LRUStore struct {
	cache *lru.Cache[string, *RunResult]
	back  Store
}

// NewLRUStore creates an LRU cache with the given capacity in front of
// back. Capacity must be >= 1.
func NewLRUStore(size int, back Store) *LRUStore {
	if size < 1 {
		size = 1
	}
	cache, err := lru.New[string, *RunResult](size)
	if err != nil {
		// Only returned for a non-positive size.
		panic(err)
	}
	return &LRUStore{cache: cache, back: back}
}

// Save caches the result and writes it through to the backing store.
func (s *LRUStore) Save(result *RunResult) error {
	s.cache.Add(result.ID, result)
	return s.back.Save(result)
}

// Load checks the cache first. On miss it loads from the backing store
// and promotes the result into the cache.
func (s *LRUStore) Load(runID string) (*RunResult, error) {
	if r, ok := s.cache.Get(runID); ok {
		return r, nil
	}

	result, err := s.back.Load(runID)
	if err != nil {
		return nil, err
	}
	s.cache.Add(runID, result)
	return result, nil
}

// Len returns the number of cached runs.
func (s *LRUStore) Len() int {
	return s.cache.Len()
}
