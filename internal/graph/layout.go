package graph

import (
	"math/rand"

	"github.com/pbaille/wayfind/internal/domain"
)

const (
	// DefaultGridSize is the number of cells per side
	DefaultGridSize = 10
	// maxPlacementAttempts bounds the search for a free cell
	maxPlacementAttempts = 100
)

// Cell is a grid coordinate
type Cell struct {
	Col int
	Row int
}

// Grid maps a square cell grid onto a canvas
type Grid struct {
	Size   int
	Width  float64
	Height float64
}

// CellSize is the side of one cell in pixels
func (g Grid) CellSize() float64 {
	size := g.Size
	if size <= 0 {
		size = DefaultGridSize
	}
	return min(g.Width, g.Height) / float64(size)
}

// Center returns the pixel position of a cell's centre
func (g Grid) Center(c Cell) domain.Position {
	cs := g.CellSize()
	return domain.Position{
		X:   float64(c.Col)*cs + cs/2,
		Y:   float64(c.Row)*cs + cs/2,
		Col: c.Col,
		Row: c.Row,
	}
}

// Layout assigns grid positions to nodes
type Layout struct {
	grid Grid
	rnd  *rand.Rand
}

// NewLayout creates a Layout over grid drawing cells from r
func NewLayout(grid Grid, r *rand.Rand) *Layout {
	if grid.Size <= 0 {
		grid.Size = DefaultGridSize
	}
	return &Layout{grid: grid, rnd: r}
}

// Grid returns the layout grid
func (l *Layout) Grid() Grid {
	return l.grid
}

// AssignPosition samples random cells until it finds one not in occupied. After
// maxPlacementAttempts samples it settles for the last one, which may be taken.
// The chosen cell is added to occupied.
func (l *Layout) AssignPosition(occupied map[Cell]bool) domain.Position {
	var c Cell
	for attempt := 0; attempt < maxPlacementAttempts; attempt++ {
		c = Cell{Col: l.rnd.Intn(l.grid.Size), Row: l.rnd.Intn(l.grid.Size)}
		if !occupied[c] {
			break
		}
	}
	if occupied != nil {
		occupied[c] = true
	}
	return l.grid.Center(c)
}

// Occupied collects the cells already used by nodes
func Occupied(nodes []*domain.Node) map[Cell]bool {
	out := make(map[Cell]bool, len(nodes))
	for _, n := range nodes {
		out[Cell{Col: n.Position.Col, Row: n.Position.Row}] = true
	}
	return out
}

// SequentialConnections chains n nodes in creation order: i -> i+1
func SequentialConnections(n int) []domain.Edge {
	if n < 2 {
		return nil
	}
	edges := make([]domain.Edge, 0, n-1)
	for i := 0; i < n-1; i++ {
		edges = append(edges, domain.Edge{From: i, To: i + 1})
	}
	return edges
}
