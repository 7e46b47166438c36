// Package cache persists detected recording durations so a recording is
// probed at most once. Entries are write-once per recording id; only an
// explicit re-probe deletes and rewrites one.
package cache

// Store is the duration cache repository. Implementations must serialize
// writes so concurrent probe completions cannot lose updates.
type Store interface {
	// Get returns the cached duration for a recording id.
	// ok is false when the id has never been probed.
	Get(id string) (seconds int64, ok bool, err error)

	// Set stores the detected duration for a recording id.
	Set(id string, seconds int64) error

	// Delete removes an entry so the recording gets re-probed.
	Delete(id string) error

	// All returns a snapshot of every cached entry.
	All() (map[string]int64, error)

	// Close releases the underlying storage.
	Close() error
}
