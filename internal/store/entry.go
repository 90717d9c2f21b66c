// Encrypted single-entry-per-key disk cache for HTTP response artifacts
package store

import "net/http"

// Entry is one cached response artifact. All four fields are persisted
// together; an entry that cannot be fully restored is treated as absent.
type Entry struct {
	Code    int
	Headers http.Header
	Body    []byte
	// Expires is an epoch-millisecond timestamp. The store only carries it;
	// deciding whether an entry is stale is up to the caller.
	Expires int64
}

// Store is the operation surface consumed by HTTP cache layers. Operations
// never return errors: a failed read is a miss, a failed write reports false.
type Store interface {
	Get(key string) *Entry
	Replace(key string, entry *Entry) bool
	Remove(key string) bool
	Clear() bool
}
