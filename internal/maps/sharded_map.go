package maps

import "sync"

// Shard count must be a power of 2 so the key mask is a single AND.
const numShards = 64

// shard is one partition of the map, protected by its own lock.
type shard[K Integer, V any] struct {
	sync.RWMutex
	m map[K]V
}

// ShardedMap is a lock-sharded ConcurrentMap implementation with no
// third-party dependency, kept as a fallback and benchmark baseline.
type ShardedMap[K Integer, V any] struct {
	shards [numShards]shard[K, V]
}

// NewShardedMap creates and initializes a new ShardedMap.
func NewShardedMap[K Integer, V any]() ConcurrentMap[K, V] {
	m := &ShardedMap[K, V]{}
	for i := range m.shards {
		m.shards[i].m = make(map[K]V)
	}
	return m
}

func (m *ShardedMap[K, V]) getShard(key K) *shard[K, V] {
	return &m.shards[uint64(key)&(numShards-1)]
}

func (m *ShardedMap[K, V]) Load(key K) (V, bool) {
	s := m.getShard(key)
	s.RLock()
	defer s.RUnlock()
	val, ok := s.m[key]
	return val, ok
}

func (m *ShardedMap[K, V]) Store(key K, value V) {
	s := m.getShard(key)
	s.Lock()
	defer s.Unlock()
	s.m[key] = value
}

func (m *ShardedMap[K, V]) Delete(key K) {
	s := m.getShard(key)
	s.Lock()
	defer s.Unlock()
	delete(s.m, key)
}

func (m *ShardedMap[K, V]) LoadAndDelete(key K) (V, bool) {
	s := m.getShard(key)
	s.Lock()
	defer s.Unlock()
	val, ok := s.m[key]
	if ok {
		delete(s.m, key)
	}
	return val, ok
}

func (m *ShardedMap[K, V]) LoadOrStore(key K, valueFactory func() V) (V, bool) {
	s := m.getShard(key)
	s.Lock()
	defer s.Unlock()
	if val, ok := s.m[key]; ok {
		return val, true
	}
	val := valueFactory()
	s.m[key] = val
	return val, false
}

func (m *ShardedMap[K, V]) Range(f func(key K, value V) bool) {
	for i := range m.shards {
		s := &m.shards[i]
		s.RLock()
		for k, v := range s.m {
			if !f(k, v) {
				s.RUnlock()
				return
			}
		}
		s.RUnlock()
	}
}
