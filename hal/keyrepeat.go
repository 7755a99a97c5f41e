package hal

// runeGate drops OS auto-repeat for text input: a gated rune passes once per
// physical press and again only after its key has been seen released.
type runeGate struct {
	held map[rune]bool
}

// filter returns the runes of one input frame that are new presses. down
// reports whether the key producing r is currently held; runes it never
// reports as held are passed through unchanged.
func (g *runeGate) filter(in []rune, down func(rune) bool) []rune {
	if g.held == nil {
		g.held = make(map[rune]bool)
	}
	var out []rune
	for _, r := range in {
		if g.held[r] {
			continue
		}
		out = append(out, r)
		if down(r) {
			g.held[r] = true
		}
	}
	for r := range g.held {
		if !down(r) {
			delete(g.held, r)
		}
	}
	return out
}
