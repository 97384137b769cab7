package maps

// mapImplementation selects the concurrent map used for thread-identifier
// lookups. Valid options: "xsync", "cornelk", "sharded", "sync".
const mapImplementation = "xsync"

// Integer is a constraint that permits any integer type, which covers
// thread identifiers and anything else the registry keys by.
type Integer interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr
}

// ConcurrentMap is a generic, thread-safe map for integer keys. The
// registry publishes TID lookups through this interface so diagnostics
// and metrics scrapes never contend with the scheduler's critical
// section; the implementation can be swapped without touching callers.
type ConcurrentMap[K Integer, V any] interface {
	Load(key K) (V, bool)
	Store(key K, value V)
	Delete(key K)
	LoadAndDelete(key K) (V, bool)
	LoadOrStore(key K, valueFactory func() V) (V, bool)
	Range(f func(key K, value V) bool)
}

// NewConcurrentMap returns the default concurrent map implementation.
func NewConcurrentMap[K Integer, V any]() ConcurrentMap[K, V] {
	switch mapImplementation {
	case "xsync":
		return NewXSyncMap[K, V]()
	case "cornelk":
		return NewCornelkMap[K, V]()
	case "sharded":
		return NewShardedMap[K, V]()
	case "sync":
		return NewStdSyncMap[K, V]()
	default:
		return NewXSyncMap[K, V]()
	}
}
