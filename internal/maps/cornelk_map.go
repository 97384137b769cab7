package maps

import "github.com/cornelk/hashmap"

// CornelkMap implements ConcurrentMap using cornelk/hashmap, a lock-free
// map kept as an alternate to XSyncMap for benchmarking the registry's
// lookup path.
type CornelkMap[K Integer, V any] struct {
	m *hashmap.Map[K, V]
}

// NewCornelkMap creates a new CornelkMap, returning it as a ConcurrentMap.
func NewCornelkMap[K Integer, V any]() ConcurrentMap[K, V] {
	return &CornelkMap[K, V]{m: hashmap.New[K, V]()}
}

func (m *CornelkMap[K, V]) Load(key K) (V, bool) {
	return m.m.Get(key)
}

func (m *CornelkMap[K, V]) Store(key K, value V) {
	m.m.Set(key, value)
}

func (m *CornelkMap[K, V]) Delete(key K) {
	m.m.Del(key)
}

func (m *CornelkMap[K, V]) LoadAndDelete(key K) (V, bool) {
	val, ok := m.m.Get(key)
	if ok {
		m.m.Del(key)
	}
	return val, ok
}

func (m *CornelkMap[K, V]) LoadOrStore(key K, valueFactory func() V) (V, bool) {
	// GetOrInsert may race the factory against a concurrent insert; the
	// loser's value is discarded, which is acceptable for registry use
	// where the factory has no side effects.
	return m.m.GetOrInsert(key, valueFactory())
}

func (m *CornelkMap[K, V]) Range(f func(key K, value V) bool) {
	m.m.Range(f)
}
