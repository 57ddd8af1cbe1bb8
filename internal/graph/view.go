package graph

import "github.com/pbaille/wayfind/internal/domain"

// NodeView is what the renderer draws for one node
type NodeView struct {
	Index    int             `json:"index"`
	ID       string          `json:"id"`
	Title    string          `json:"title"`
	Mode     domain.Mode     `json:"mode"`
	Position domain.Position `json:"position"`
	Visible  bool            `json:"visible"`
}

// EdgeView is one chain arrow; it is drawn only when both ends are visible
type EdgeView struct {
	From        int  `json:"from"`
	To          int  `json:"to"`
	BothVisible bool `json:"both_visible"`
}

// View is the renderer contract for a journey graph
type View struct {
	JourneyID string     `json:"journey_id"`
	CellSize  float64    `json:"cell_size"`
	Nodes     []NodeView `json:"nodes"`
	Edges     []EdgeView `json:"edges"`
	Visible   int        `json:"visible"`
	Total     int        `json:"total"`
	// Continue is set while nodes are waiting behind a dialog
	Continue bool `json:"continue"`
}

// BuildView combines ordered nodes, their chain and the reveal state
func BuildView(journeyID string, grid Grid, nodes []*domain.Node, r *Reveal) View {
	visible := min(r.Visible(), len(nodes))
	v := View{
		JourneyID: journeyID,
		CellSize:  grid.CellSize(),
		Nodes:     make([]NodeView, 0, len(nodes)),
		Visible:   visible,
		Total:     len(nodes),
		Continue:  visible < len(nodes),
	}
	for i, n := range nodes {
		v.Nodes = append(v.Nodes, NodeView{
			Index:    i,
			ID:       n.ID,
			Title:    n.Title,
			Mode:     n.Mode,
			Position: n.Position,
			Visible:  i < visible,
		})
	}
	for _, e := range SequentialConnections(len(nodes)) {
		v.Edges = append(v.Edges, EdgeView{
			From:        e.From,
			To:          e.To,
			BothVisible: e.To < visible,
		})
	}
	return v
}
