package graph

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pbaille/wayfind/internal/domain"
)

func TestGrid_CellSize(t *testing.T) {
	g := Grid{Size: 10, Width: 600, Height: 400}
	assert.Equal(t, 40.0, g.CellSize())

	p := g.Center(Cell{Col: 2, Row: 3})
	assert.Equal(t, 100.0, p.X)
	assert.Equal(t, 140.0, p.Y)
	assert.Equal(t, 2, p.Col)
	assert.Equal(t, 3, p.Row)
}

func TestAssignPosition_DistinctCells(t *testing.T) {
	l := NewLayout(Grid{Size: 10, Width: 500, Height: 500}, rand.New(rand.NewSource(1)))
	occupied := map[Cell]bool{}

	seen := map[Cell]bool{}
	for i := 0; i < 30; i++ {
		p := l.AssignPosition(occupied)
		c := Cell{Col: p.Col, Row: p.Row}
		assert.False(t, seen[c], "cell %v assigned twice", c)
		seen[c] = true

		assert.GreaterOrEqual(t, p.Col, 0)
		assert.Less(t, p.Col, 10)
		assert.GreaterOrEqual(t, p.Row, 0)
		assert.Less(t, p.Row, 10)
	}
	assert.Len(t, occupied, 30)
}

func TestAssignPosition_FullGridTerminates(t *testing.T) {
	l := NewLayout(Grid{Size: 2, Width: 100, Height: 100}, rand.New(rand.NewSource(3)))
	occupied := map[Cell]bool{}
	for i := 0; i < 4; i++ {
		l.AssignPosition(occupied)
	}
	// every cell taken: placement still returns a cell on the grid
	p := l.AssignPosition(occupied)
	assert.True(t, occupied[Cell{Col: p.Col, Row: p.Row}])
	assert.Len(t, occupied, 4)
}

func TestOccupied(t *testing.T) {
	nodes := []*domain.Node{
		{Position: domain.Position{Col: 1, Row: 2}},
		{Position: domain.Position{Col: 4, Row: 0}},
	}
	occ := Occupied(nodes)
	assert.True(t, occ[Cell{1, 2}])
	assert.True(t, occ[Cell{4, 0}])
	assert.Len(t, occ, 2)
}

func TestSequentialConnections(t *testing.T) {
	assert.Empty(t, SequentialConnections(0))
	assert.Empty(t, SequentialConnections(1))

	edges := SequentialConnections(5)
	require.Len(t, edges, 4)
	for i, e := range edges {
		assert.Equal(t, i, e.From)
		assert.Equal(t, i+1, e.To)
	}
}

func TestReveal_AdvanceCapsAtTotal(t *testing.T) {
	r := NewReveal(3)
	assert.Equal(t, 0, r.Visible())
	assert.Equal(t, 1, r.Advance())
	assert.Equal(t, 2, r.Advance())
	assert.Equal(t, 3, r.Advance())
	assert.Equal(t, 3, r.Advance())
	assert.False(t, r.HasHidden())
}

func TestReveal_GrowAndReset(t *testing.T) {
	r := NewReveal(1)
	r.Advance()
	assert.False(t, r.HasHidden())

	r.Grow(2)
	assert.True(t, r.HasHidden())
	r.Grow(1)
	assert.Equal(t, 2, r.Total())
	assert.Equal(t, 2, r.Advance())

	r.Reset(4)
	assert.Equal(t, 0, r.Visible())
	assert.Equal(t, 4, r.Total())
}

func TestReveal_MonotonicAndBounded(t *testing.T) {
	r := NewReveal(0)
	prev := 0
	for i := 0; i < 20; i++ {
		if i%3 == 0 {
			r.Grow(r.Total() + 1)
		}
		got := r.Advance()
		assert.GreaterOrEqual(t, got, prev)
		assert.LessOrEqual(t, got, r.Total())
		prev = got
	}
}

func TestBuildView(t *testing.T) {
	nodes := []*domain.Node{{ID: "a"}, {ID: "b"}, {ID: "c"}}
	r := NewReveal(len(nodes))
	r.Advance()
	r.Advance()

	v := BuildView("j1", Grid{Size: 10, Width: 300, Height: 300}, nodes, r)
	assert.Equal(t, 2, v.Visible)
	assert.Equal(t, 3, v.Total)
	assert.True(t, v.Continue)
	assert.True(t, v.Nodes[0].Visible)
	assert.True(t, v.Nodes[1].Visible)
	assert.False(t, v.Nodes[2].Visible)

	require.Len(t, v.Edges, 2)
	assert.True(t, v.Edges[0].BothVisible)
	assert.False(t, v.Edges[1].BothVisible)

	r.Advance()
	v = BuildView("j1", Grid{Size: 10, Width: 300, Height: 300}, nodes, r)
	assert.False(t, v.Continue)
	assert.True(t, v.Edges[1].BothVisible)
}
