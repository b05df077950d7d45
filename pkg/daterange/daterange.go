// Package daterange splits calendar date ranges into the ordered,
// non-overlapping chunks that drive per-request harvesting.
package daterange

import (
	"errors"
	"fmt"
	"time"
)

// Errors returned by Split and Parse.
var (
	// ErrInvalidRange is returned when the start date is after the end date.
	ErrInvalidRange = errors.New("daterange: start date after end date")

	// ErrInvalidChunkSize is returned when the chunk size is not positive.
	ErrInvalidChunkSize = errors.New("daterange: chunk size must be at least one day")
)

// DateLayout is the calendar date format used by the registry API.
const DateLayout = "2006-01-02"

// Range is an inclusive calendar date range. Start and End are normalized
// to midnight UTC.
type Range struct {
	Start time.Time
	End   time.Time
}

// NewRange builds a Range from two dates. Returns ErrInvalidRange if start
// is after end.
func NewRange(start, end time.Time) (Range, error) {
	r := Range{Start: truncate(start), End: truncate(end)}
	if r.Start.After(r.End) {
		return Range{}, fmt.Errorf("%w: %s > %s",
			ErrInvalidRange, r.Start.Format(DateLayout), r.End.Format(DateLayout))
	}
	return r, nil
}

// Parse builds a Range from two ISO dates (YYYY-MM-DD).
func Parse(start, end string) (Range, error) {
	s, err := time.Parse(DateLayout, start)
	if err != nil {
		return Range{}, fmt.Errorf("parse start date: %w", err)
	}
	e, err := time.Parse(DateLayout, end)
	if err != nil {
		return Range{}, fmt.Errorf("parse end date: %w", err)
	}
	return NewRange(s, e)
}

// Days returns the number of calendar days covered, inclusive of both ends.
func (r Range) Days() int {
	return int(r.End.Sub(r.Start).Hours()/24) + 1
}

// Label returns the range as a string suitable for logs and output records.
// Single-day ranges collapse to a bare date.
func (r Range) Label() string {
	if r.Start.Equal(r.End) {
		return r.Start.Format(DateLayout)
	}
	return r.Start.Format(DateLayout) + ".." + r.End.Format(DateLayout)
}

// String implements fmt.Stringer.
func (r Range) String() string {
	return r.Label()
}

// Chunk is a contiguous sub-range of a parent Range, tagged with its
// position in the chunk sequence. Index is the slot the chunk's result
// occupies in the assembled output.
type Chunk struct {
	Range
	Index int
}

// Split partitions r into ordered chunks of sizeDays days each. The final
// chunk may be shorter to fit the remainder. The returned sequence exactly
// covers r with no gaps or overlaps.
func Split(r Range, sizeDays int) ([]Chunk, error) {
	if sizeDays <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidChunkSize, sizeDays)
	}
	if r.Start.After(r.End) {
		return nil, fmt.Errorf("%w: %s > %s",
			ErrInvalidRange, r.Start.Format(DateLayout), r.End.Format(DateLayout))
	}

	var chunks []Chunk
	for cur := r.Start; !cur.After(r.End); cur = cur.AddDate(0, 0, sizeDays) {
		end := cur.AddDate(0, 0, sizeDays-1)
		if end.After(r.End) {
			end = r.End
		}
		chunks = append(chunks, Chunk{
			Range: Range{Start: cur, End: end},
			Index: len(chunks),
		})
	}
	return chunks, nil
}

func truncate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
