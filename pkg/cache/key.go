package cache

import (
	"fmt"

	"github.com/ipharvest/trademark-harvester/pkg/daterange"
)

// Key identifies one cached registry response: a lodgement date range plus
// the page number within the chunk's pagination.
type Key struct {
	From string
	To   string
	Page int
}

// ChunkKey builds the key for one page of a chunk fetch.
func ChunkKey(r daterange.Range, page int) Key {
	return Key{
		From: r.Start.Format(daterange.DateLayout),
		To:   r.End.Format(daterange.DateLayout),
		Page: page,
	}
}

// String generates a deterministic Redis key.
//
// Example:
//
//	ipos:trademarks:2020-01-01:2020-01-01:p1
func (k Key) String() string {
	return fmt.Sprintf("ipos:trademarks:%s:%s:p%d", k.From, k.To, k.Page)
}
