package store

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pbaille/wayfind/internal/domain"
)

const (
	journeyPrefix = "journey/"
	nodePrefix    = "node/"
)

// activeWindow is how recently a journey must have changed to count as active
const activeWindow = 7 * 24 * time.Hour

// Repository stores journeys and nodes as JSON documents in a KV
type Repository struct {
	kv  KV
	now func() time.Time
}

// NewRepository wraps kv
func NewRepository(kv KV) *Repository {
	return &Repository{kv: kv, now: time.Now}
}

// NewID generates an opaque unique id
func (r *Repository) NewID() string {
	return uuid.New().String()
}

// GetJSON decodes the value under key into v. It reports whether the key existed.
func (r *Repository) GetJSON(key string, v any) (bool, error) {
	data, ok, err := r.kv.Get(key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

// SetJSON encodes v under key
func (r *Repository) SetJSON(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return r.kv.Set(key, data)
}

// SaveJourney stores a journey and stamps its update time
func (r *Repository) SaveJourney(j *domain.Journey) error {
	j.UpdatedAt = r.now()
	if j.CreatedAt.IsZero() {
		j.CreatedAt = j.UpdatedAt
	}
	if err := r.SetJSON(journeyPrefix+j.ID, j); err != nil {
		return fmt.Errorf("save journey: %w", err)
	}
	return nil
}

// GetJourney loads a journey by id
func (r *Repository) GetJourney(id string) (*domain.Journey, error) {
	var j domain.Journey
	ok, err := r.GetJSON(journeyPrefix+id, &j)
	if err != nil {
		return nil, fmt.Errorf("get journey: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("journey %s: %w", id, domain.ErrNotFound)
	}
	return &j, nil
}

// ListJourneys returns all journeys, most recently updated first
func (r *Repository) ListJourneys() ([]*domain.Journey, error) {
	keys, err := r.kv.Keys(journeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("list journeys: %w", err)
	}

	journeys := make([]*domain.Journey, 0, len(keys))
	for _, k := range keys {
		j, err := r.GetJourney(strings.TrimPrefix(k, journeyPrefix))
		if err != nil {
			return nil, err
		}
		journeys = append(journeys, j)
	}

	slices.SortStableFunc(journeys, func(a, b *domain.Journey) int {
		return b.UpdatedAt.Compare(a.UpdatedAt)
	})
	return journeys, nil
}

// RecentJourneys returns at most limit journeys, most recently updated first
func (r *Repository) RecentJourneys(limit int) ([]*domain.Journey, error) {
	journeys, err := r.ListJourneys()
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(journeys) > limit {
		journeys = journeys[:limit]
	}
	return journeys, nil
}

// SearchJourneys matches the query case-insensitively against title, core
// question, description and tags
func (r *Repository) SearchJourneys(query string) ([]*domain.Journey, error) {
	journeys, err := r.ListJourneys()
	if err != nil {
		return nil, err
	}

	q := strings.ToLower(strings.TrimSpace(query))
	var out []*domain.Journey
	for _, j := range journeys {
		if matchJourney(j, q) {
			out = append(out, j)
		}
	}
	return out, nil
}

func matchJourney(j *domain.Journey, q string) bool {
	fields := append([]string{j.Title, j.CoreQuestion, j.Description}, j.Tags...)
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), q) {
			return true
		}
	}
	return false
}

// DeleteJourney removes a journey and its nodes
func (r *Repository) DeleteJourney(id string) error {
	nodes, err := r.allNodes()
	if err != nil {
		return err
	}
	for _, n := range nodes {
		if n.JourneyID == id {
			if err := r.kv.Delete(nodePrefix + n.ID); err != nil {
				return fmt.Errorf("delete node: %w", err)
			}
		}
	}
	if err := r.kv.Delete(journeyPrefix + id); err != nil {
		return fmt.Errorf("delete journey: %w", err)
	}
	return nil
}

// SaveNode stores a node and appends it to its journey's node list
func (r *Repository) SaveNode(n *domain.Node) error {
	n.UpdatedAt = r.now()
	if n.CreatedAt.IsZero() {
		n.CreatedAt = n.UpdatedAt
	}
	if err := r.SetJSON(nodePrefix+n.ID, n); err != nil {
		return fmt.Errorf("save node: %w", err)
	}

	j, err := r.GetJourney(n.JourneyID)
	if err != nil {
		return err
	}
	if !j.HasNode(n.ID) {
		j.AppendNode(n.ID)
		return r.SaveJourney(j)
	}
	return nil
}

// GetNode loads a node by id
func (r *Repository) GetNode(id string) (*domain.Node, error) {
	var n domain.Node
	ok, err := r.GetJSON(nodePrefix+id, &n)
	if err != nil {
		return nil, fmt.Errorf("get node: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("node %s: %w", id, domain.ErrNotFound)
	}
	return &n, nil
}

// JourneyNodes returns the nodes of a journey in creation order
func (r *Repository) JourneyNodes(j *domain.Journey) ([]*domain.Node, error) {
	nodes := make([]*domain.Node, 0, len(j.NodeIDs))
	for _, id := range j.NodeIDs {
		n, err := r.GetNode(id)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

func (r *Repository) allNodes() ([]*domain.Node, error) {
	keys, err := r.kv.Keys(nodePrefix)
	if err != nil {
		return nil, fmt.Errorf("list nodes: %w", err)
	}
	nodes := make([]*domain.Node, 0, len(keys))
	for _, k := range keys {
		n, err := r.GetNode(strings.TrimPrefix(k, nodePrefix))
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

// Stats summarizes stored data
type Stats struct {
	TotalJourneys  int `json:"total_journeys"`
	TotalNodes     int `json:"total_nodes"`
	ActiveJourneys int `json:"active_journeys"`
}

// Stats counts journeys, nodes and journeys updated in the last week
func (r *Repository) Stats() (Stats, error) {
	journeys, err := r.ListJourneys()
	if err != nil {
		return Stats{}, err
	}
	nodeKeys, err := r.kv.Keys(nodePrefix)
	if err != nil {
		return Stats{}, fmt.Errorf("list nodes: %w", err)
	}

	st := Stats{TotalJourneys: len(journeys), TotalNodes: len(nodeKeys)}
	cutoff := r.now().Add(-activeWindow)
	for _, j := range journeys {
		if j.UpdatedAt.After(cutoff) {
			st.ActiveJourneys++
		}
	}
	return st, nil
}

// Snapshot is the export format of all journeys and nodes
type Snapshot struct {
	Journeys   []*domain.Journey `json:"journeys"`
	Nodes      []*domain.Node    `json:"nodes"`
	ExportDate time.Time         `json:"export_date"`
}

// Export collects every journey and node
func (r *Repository) Export() (*Snapshot, error) {
	journeys, err := r.ListJourneys()
	if err != nil {
		return nil, err
	}
	nodes, err := r.allNodes()
	if err != nil {
		return nil, err
	}
	return &Snapshot{Journeys: journeys, Nodes: nodes, ExportDate: r.now()}, nil
}

// Import writes a snapshot back. Existing entries with the same ids are replaced
// and timestamps are kept as exported. A snapshot with a null or id-less entry
// is rejected before anything is written.
func (r *Repository) Import(s *Snapshot) error {
	if s == nil {
		return fmt.Errorf("import: empty snapshot: %w", domain.ErrBadSnapshot)
	}
	for i, j := range s.Journeys {
		if j == nil || strings.TrimSpace(j.ID) == "" {
			return fmt.Errorf("import journey %d: %w", i, domain.ErrBadSnapshot)
		}
	}
	for i, n := range s.Nodes {
		if n == nil || strings.TrimSpace(n.ID) == "" {
			return fmt.Errorf("import node %d: %w", i, domain.ErrBadSnapshot)
		}
	}

	for _, j := range s.Journeys {
		if err := r.SetJSON(journeyPrefix+j.ID, j); err != nil {
			return fmt.Errorf("import journey: %w", err)
		}
	}
	for _, n := range s.Nodes {
		if err := r.SetJSON(nodePrefix+n.ID, n); err != nil {
			return fmt.Errorf("import node: %w", err)
		}
	}
	return nil
}
