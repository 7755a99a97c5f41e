package tally

import "math"

// Counter is a read view of one cell and its count.
type Counter struct {
	ID    string
	Label string
	Count uint32
}

// Set is an immutable snapshot of counts over a roster.
//
// Every transition returns a new Set; a Set is never modified after it is returned.
type Set struct {
	roster *Roster
	counts []uint32
}

// NewSet returns a set over r with every count at zero.
func NewSet(r *Roster) Set {
	return Set{roster: r, counts: make([]uint32, r.Len())}
}

func (s Set) Roster() *Roster { return s.roster }
func (s Set) Len() int        { return len(s.counts) }

// Increment returns s with the count of id raised by one.
// An unknown id returns s unchanged. Counts saturate at math.MaxUint32.
func (s Set) Increment(id string) Set {
	i, ok := s.roster.Index(id)
	if !ok || s.counts[i] == math.MaxUint32 {
		return s
	}
	next := s.clone()
	next.counts[i]++
	return next
}

// Reset returns a set over the same roster with every count at zero.
func (s Set) Reset() Set {
	return NewSet(s.roster)
}

// Count returns the count of id.
func (s Set) Count(id string) (uint32, bool) {
	i, ok := s.roster.Index(id)
	if !ok {
		return 0, false
	}
	return s.counts[i], true
}

// Total is the sum of all counts.
func (s Set) Total() uint64 {
	var sum uint64
	for _, c := range s.counts {
		sum += uint64(c)
	}
	return sum
}

// Percentage returns the share of id in the total, rounded to one decimal.
// It is 0 when the total is 0 or id is unknown.
func (s Set) Percentage(id string) float64 {
	c, ok := s.Count(id)
	if !ok {
		return 0
	}
	return float64(PercentTenths(uint64(c), s.Total())) / 10
}

// PercentText is Percentage formatted for the display, e.g. "33.3".
func (s Set) PercentText(id string) string {
	c, _ := s.Count(id)
	return FormatPercent(uint64(c), s.Total())
}

// Counters returns the counters in display order.
func (s Set) Counters() []Counter {
	out := make([]Counter, len(s.counts))
	for i, c := range s.counts {
		cell := s.roster.cells[i]
		out[i] = Counter{ID: cell.ID, Label: cell.Label, Count: c}
	}
	return out
}

func (s Set) clone() Set {
	counts := make([]uint32, len(s.counts))
	copy(counts, s.counts)
	return Set{roster: s.roster, counts: counts}
}
