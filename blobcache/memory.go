package blobcache

import (
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
)

const (
	// shardCount must be a power of 2 for shard selection by mask.
	shardCount = 16
	shardMask  = shardCount - 1

	// DefaultCapacity is the default number of entries per shard.
	DefaultCapacity = 64
)

// Memory is a sharded in-process LRU Store.
//
// Features:
//   - 16 shards for reduced lock contention between compiler workers
//   - LRU eviction with a per-shard entry capacity
//   - Atomic statistics for monitoring
type Memory struct {
	shards   [shardCount]*memoryShard
	capacity int

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

type memoryShard struct {
	mu      sync.Mutex
	entries map[Key]*memoryEntry
	lru     lruList[Key]
}

type memoryEntry struct {
	value []byte
	node  *lruNode[Key]
}

// NewMemory creates a Memory store holding up to capacity entries per shard.
// If capacity <= 0, DefaultCapacity is used.
func NewMemory(capacity int) *Memory {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	m := &Memory{capacity: capacity}
	for i := range m.shards {
		m.shards[i] = &memoryShard{entries: make(map[Key]*memoryEntry)}
	}
	return m
}

func (m *Memory) shard(key Key) *memoryShard {
	return m.shards[xxhash.Sum64(key[:])&shardMask]
}

// Get returns the cached value and marks it most recently used.
func (m *Memory) Get(key Key) ([]byte, error) {
	s := m.shard(key)
	s.mu.Lock()
	e, ok := s.entries[key]
	if !ok {
		s.mu.Unlock()
		m.misses.Add(1)
		return nil, ErrNotFound
	}
	s.lru.MoveToFront(e.node)
	v := e.value
	s.mu.Unlock()

	m.hits.Add(1)
	return v, nil
}

// Put stores value, evicting the least recently used entries of the shard
// when it is full.
func (m *Memory) Put(key Key, value []byte) error {
	s := m.shard(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[key]; ok {
		e.value = value
		s.lru.MoveToFront(e.node)
		return nil
	}

	for s.lru.Len() >= m.capacity {
		oldest, ok := s.lru.RemoveOldest()
		if !ok {
			break
		}
		delete(s.entries, oldest)
		m.evictions.Add(1)
	}
	s.entries[key] = &memoryEntry{value: value, node: s.lru.PushFront(key)}
	return nil
}

// Delete removes an entry and reports whether it existed.
func (m *Memory) Delete(key Key) bool {
	s := m.shard(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return false
	}
	s.lru.Remove(e.node)
	delete(s.entries, key)
	return true
}

// Len returns the total number of entries across all shards.
func (m *Memory) Len() int {
	total := 0
	for _, s := range m.shards {
		s.mu.Lock()
		total += len(s.entries)
		s.mu.Unlock()
	}
	return total
}

// Stats returns current cache statistics.
func (m *Memory) Stats() Stats {
	hits, misses := m.hits.Load(), m.misses.Load()
	return Stats{
		Len:       m.Len(),
		Hits:      hits,
		Misses:    misses,
		Evictions: m.evictions.Load(),
		HitRate:   hitRate(hits, misses),
	}
}
