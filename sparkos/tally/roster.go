// Package tally is the counter model of the differential cell counter: a fixed,
// ordered roster of cells and the counts tallied against it.
package tally

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrEmptyRoster = errors.New("tally: roster has no cells")
	ErrEmptyID     = errors.New("tally: empty cell id")
	ErrDuplicateID = errors.New("tally: duplicate cell id")
)

// Cell is one roster entry. ID is the stable key; Label is display text only.
type Cell struct {
	ID    string
	Label string
}

// Roster is an immutable, ordered list of cells. Order is display order.
type Roster struct {
	cells []Cell
	index map[string]int
}

// NewRoster validates cells and returns a roster in the given order.
func NewRoster(cells ...Cell) (*Roster, error) {
	if len(cells) == 0 {
		return nil, ErrEmptyRoster
	}
	r := &Roster{
		cells: make([]Cell, len(cells)),
		index: make(map[string]int, len(cells)),
	}
	for i, c := range cells {
		if c.ID == "" {
			return nil, fmt.Errorf("cell %d: %w", i, ErrEmptyID)
		}
		if _, dup := r.index[c.ID]; dup {
			return nil, fmt.Errorf("cell %d %q: %w", i, c.ID, ErrDuplicateID)
		}
		if c.Label == "" {
			c.Label = c.ID
		}
		r.cells[i] = c
		r.index[c.ID] = i
	}
	return r, nil
}

// DefaultRoster is the differential count roster of the reference device.
func DefaultRoster() *Roster {
	r, err := NewRoster(
		Cell{ID: "baso", Label: "BASO"},
		Cell{ID: "eosin", Label: "EOSINO"},
		Cell{ID: "myelo", Label: "MYELO"},
		Cell{ID: "juven", Label: "JUVEN"},
		Cell{ID: "stab", Label: "STAB"},
		Cell{ID: "seg", Label: "SEG"},
		Cell{ID: "lymph", Label: "LYMPH"},
		Cell{ID: "mono", Label: "MONO"},
	)
	if err != nil {
		panic(err)
	}
	return r
}

func (r *Roster) Len() int { return len(r.cells) }

// Cell returns the cell at display position i.
func (r *Roster) Cell(i int) (Cell, bool) {
	if i < 0 || i >= len(r.cells) {
		return Cell{}, false
	}
	return r.cells[i], true
}

// Cells returns a copy of the roster in display order.
func (r *Roster) Cells() []Cell {
	out := make([]Cell, len(r.cells))
	copy(out, r.cells)
	return out
}

// Index returns the display position of id.
func (r *Roster) Index(id string) (int, bool) {
	i, ok := r.index[id]
	return i, ok
}

// Lookup finds the cell for a typed id: an exact match first, then the first
// cell whose id matches ignoring case.
func (r *Roster) Lookup(id string) (Cell, bool) {
	if i, ok := r.index[id]; ok {
		return r.cells[i], true
	}
	for _, c := range r.cells {
		if strings.EqualFold(c.ID, id) {
			return c, true
		}
	}
	return Cell{}, false
}
