// Package cache provides an optional Redis-backed cache for registry chunk
// responses. A harvested day's data is effectively immutable once the day
// has passed, so re-running the harvester over overlapping date ranges can
// serve most chunks without touching the network.
package cache

import (
	"time"
)

// Entry is a cached registry response body for one chunk page.
type Entry struct {
	// Data is the raw response body.
	Data []byte `json:"data"`

	// FetchedAt is when the body was retrieved from the registry.
	FetchedAt time.Time `json:"fetched_at"`
}

// Age returns how long ago the entry was fetched.
func (e *Entry) Age() time.Duration {
	return time.Since(e.FetchedAt)
}
