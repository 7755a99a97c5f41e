package tally

import "sync"

// Panel holds the current Set of one counter device.
//
// Each operation is one pure Set transition applied under the panel lock, so
// concurrent callers never observe a total that disagrees with the counts.
type Panel struct {
	mu  sync.Mutex
	set Set
}

// NewPanel returns a panel over r with every count at zero.
func NewPanel(r *Roster) *Panel {
	return &Panel{set: NewSet(r)}
}

// Apply replaces the current set with fn(current) and returns the new set.
func (p *Panel) Apply(fn func(Set) Set) Set {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.set = fn(p.set)
	return p.set
}

// Increment adds one to id and reports whether id is on the roster.
func (p *Panel) Increment(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.set.roster.Index(id); !ok {
		return false
	}
	p.set = p.set.Increment(id)
	return true
}

// Reset zeroes every count.
func (p *Panel) Reset() {
	p.Apply(Set.Reset)
}

// Snapshot returns the current set.
func (p *Panel) Snapshot() Set {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.set
}
