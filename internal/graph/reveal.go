package graph

// Reveal counts how many nodes of a journey are visible. The count only grows and
// never exceeds the number of nodes. It is not safe for concurrent use.
type Reveal struct {
	total   int
	visible int
}

// NewReveal returns a Reveal for total nodes with nothing visible
func NewReveal(total int) *Reveal {
	r := &Reveal{}
	r.Reset(total)
	return r
}

// Reset starts over for a freshly loaded journey
func (r *Reveal) Reset(total int) {
	r.total = max(total, 0)
	r.visible = 0
}

// Grow raises the node total after nodes were appended. Smaller totals are ignored.
func (r *Reveal) Grow(total int) {
	if total > r.total {
		r.total = total
	}
}

// Advance makes one more node visible and returns the new count
func (r *Reveal) Advance() int {
	if r.visible < r.total {
		r.visible++
	}
	return r.visible
}

// Visible returns the number of visible nodes
func (r *Reveal) Visible() int {
	return r.visible
}

// Total returns the number of nodes known to the reveal
func (r *Reveal) Total() int {
	return r.total
}

// HasHidden reports whether nodes exist that are not yet visible
func (r *Reveal) HasHidden() bool {
	return r.visible < r.total
}
