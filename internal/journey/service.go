// Package journey orchestrates journey progression: it creates journeys and their
// exploration nodes, runs node dialogs, and reveals one node per completed dialog.
package journey

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pbaille/wayfind/internal/angle"
	"github.com/pbaille/wayfind/internal/dialog"
	"github.com/pbaille/wayfind/internal/dify"
	"github.com/pbaille/wayfind/internal/domain"
	"github.com/pbaille/wayfind/internal/graph"
	"github.com/pbaille/wayfind/internal/observability"
	"github.com/pbaille/wayfind/internal/store"
	"github.com/pbaille/wayfind/internal/wordcloud"
)

const homeTag = "home-exploration"

// Config tunes progression
type Config struct {
	Grid        graph.Grid
	RevealDelay time.Duration
	// AutoExtend creates the next exploration once a dialog completes and no node is hidden
	AutoExtend  bool
	RecentLimit int
}

// Options carries the collaborators of a Service. Only the repository is required.
type Options struct {
	Config    Config
	Answerer  dialog.Answerer
	Topics    TopicService
	Words     *wordcloud.Table
	Metrics   *observability.Metrics
	Logger    *zap.Logger
	Scheduler dialog.Scheduler
	Rand      *rand.Rand
	Now       func() time.Time
}

// Service runs journey progression on top of a repository
type Service struct {
	repo    *store.Repository
	dialogs *dialog.Manager
	topics  TopicService
	words   *wordcloud.Table
	metrics *observability.Metrics
	logger  *zap.Logger
	cfg     Config
	now     func() time.Time

	// mu serialises journey mutations and guards everything below
	mu       sync.Mutex
	rnd      *rand.Rand
	selector *angle.Selector
	layout   *graph.Layout
	reveals  map[string]*graph.Reveal
	// awaiting maps answered nodes whose reveal is scheduled to their journey
	awaiting map[string]string
	feed     *feed
}

// NewService wires a Service
func NewService(repo *store.Repository, opts Options) *Service {
	s := &Service{
		repo:    repo,
		topics:  opts.Topics,
		words:   opts.Words,
		metrics: opts.Metrics,
		logger:  opts.Logger,
		cfg:     opts.Config,
		now:     opts.Now,
		rnd:     opts.Rand,
		reveals:  make(map[string]*graph.Reveal),
		awaiting: make(map[string]string),
		feed:     newFeed(),
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.rnd == nil {
		s.rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if s.topics == nil {
		s.topics = dify.Offline{}
	}
	if s.cfg.Grid.Size <= 0 {
		s.cfg.Grid.Size = graph.DefaultGridSize
	}
	if s.cfg.Grid.Width <= 0 || s.cfg.Grid.Height <= 0 {
		s.cfg.Grid.Width, s.cfg.Grid.Height = 800, 600
	}
	if s.cfg.RecentLimit <= 0 {
		s.cfg.RecentLimit = 5
	}
	s.selector = angle.New(s.rnd)
	s.layout = graph.NewLayout(s.cfg.Grid, s.rnd)
	s.dialogs = dialog.NewManager(opts.Answerer, s, dialog.Options{
		Scheduler:   opts.Scheduler,
		RevealDelay: s.cfg.RevealDelay,
		Logger:      s.logger,
		Now:         s.now,
	})
	return s
}

// StartRequest is the topic intake result the user picked an option from
type StartRequest struct {
	Word         string
	ChosenOption string
	Options      []string
	Angles       []string
	Styles       []string
	Difficulty   string
	TopicResult  string
}

// StartJourney creates a journey and its first node, which asks the chosen
// option, and reveals that node.
func (s *Service) StartJourney(ctx context.Context, req StartRequest) (*domain.Journey, error) {
	word := strings.TrimSpace(req.Word)
	if word == "" {
		return nil, domain.ErrEmptyTopic
	}
	chosen := strings.TrimSpace(req.ChosenOption)
	if chosen == "" {
		return nil, domain.ErrEmptyQuestion
	}
	difficulty := req.Difficulty
	if difficulty == "" {
		difficulty = dify.DefaultDifficulty
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	j := &domain.Journey{
		ID:           s.repo.NewID(),
		Title:        word,
		CoreQuestion: chosen,
		Description:  fmt.Sprintf("Exploring %q starting from %q", word, chosen),
		Tags:         []string{word, homeTag},
		Metadata: domain.JourneyMetadata{
			HomeWord:        word,
			HomeOptions:     append([]string(nil), req.Options...),
			SelectedOption:  chosen,
			AvailableAngles: append([]string(nil), req.Angles...),
			AvailableStyles: append([]string(nil), req.Styles...),
			Difficulty:      difficulty,
			TopicResult:     req.TopicResult,
		},
	}
	if err := s.repo.SaveJourney(j); err != nil {
		return nil, err
	}

	if _, err := s.createNextLocked(j); err != nil {
		return nil, err
	}
	r := graph.NewReveal(len(j.NodeIDs))
	r.Advance()
	s.reveals[j.ID] = r

	s.metrics.JourneyStarted()
	s.logger.Info("journey started",
		zap.String("journey", j.ID),
		zap.String("word", word),
		zap.Int("angles", len(req.Angles)))
	return j, nil
}

// CreateNextExploration appends a node asking the next angle. The node stays
// hidden until the dialog in front of it completes; when that dialog is already
// complete and no reveal is on its way, the node is revealed right away.
func (s *Service) CreateNextExploration(ctx context.Context, journeyID string) (*domain.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, err := s.journeyLocked(journeyID)
	if err != nil {
		return nil, err
	}
	r, err := s.revealLocked(j)
	if err != nil {
		return nil, err
	}
	nodes, err := s.repo.JourneyNodes(j)
	if err != nil {
		return nil, err
	}
	unblocked := !r.HasHidden() && !s.revealScheduledLocked(j.ID) &&
		r.Visible() > 0 && r.Visible() <= len(nodes) && nodes[r.Visible()-1].Answered()

	n, err := s.createNextLocked(j)
	if err != nil {
		return nil, err
	}
	if unblocked {
		s.advanceLocked(j, r, s.logger.With(zap.String("node", n.ID)))
	}
	return n, nil
}

func (s *Service) revealScheduledLocked(journeyID string) bool {
	for _, id := range s.awaiting {
		if id == journeyID {
			return true
		}
	}
	return false
}

// createNextLocked selects with the count before this node, then counts it
func (s *Service) createNextLocked(j *domain.Journey) (*domain.Node, error) {
	nodes, err := s.repo.JourneyNodes(j)
	if err != nil {
		return nil, err
	}

	next := s.selector.Next(&j.Metadata)
	j.Metadata.ExplorationCount++

	n := &domain.Node{
		ID:        s.repo.NewID(),
		JourneyID: j.ID,
		Title:     fmt.Sprintf("Exploration %d", j.Metadata.ExplorationCount),
		Content:   domain.QuestionContent(next),
		Angle:     next,
		Mode:      domain.ChooseMode(s.rnd.Float64),
		Position:  s.layout.AssignPosition(graph.Occupied(nodes)),
	}
	if err := s.saveNodeLocked(j, n); err != nil {
		return nil, err
	}

	s.metrics.NodeCreated("exploration")
	s.logger.Debug("exploration created",
		zap.String("journey", j.ID),
		zap.String("node", n.ID),
		zap.String("angle", next),
		zap.String("mode", string(n.Mode)))
	return n, nil
}

// AddManualNode appends a free-text node outside the angle rotation. It does not
// count as an exploration. It is visible right away unless nodes are still gated.
func (s *Service) AddManualNode(ctx context.Context, journeyID, title, content string) (*domain.Node, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, domain.ErrEmptyQuestion
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	j, err := s.journeyLocked(journeyID)
	if err != nil {
		return nil, err
	}
	nodes, err := s.repo.JourneyNodes(j)
	if err != nil {
		return nil, err
	}
	r, err := s.revealLocked(j)
	if err != nil {
		return nil, err
	}
	gated := r.HasHidden()

	title = strings.TrimSpace(title)
	if title == "" {
		title = fmt.Sprintf("Note %d", len(nodes)+1)
	}
	n := &domain.Node{
		ID:        s.repo.NewID(),
		JourneyID: j.ID,
		Title:     title,
		Content:   domain.QuestionContent(content),
		Mode:      domain.ChooseMode(s.rnd.Float64),
		Manual:    true,
		Position:  s.layout.AssignPosition(graph.Occupied(nodes)),
	}
	if err := s.saveNodeLocked(j, n); err != nil {
		return nil, err
	}
	if !gated {
		r.Advance()
	}

	s.metrics.NodeCreated("manual")
	return n, nil
}

// saveNodeLocked persists the journey metadata and then the node, which the
// repository appends to the journey.
func (s *Service) saveNodeLocked(j *domain.Journey, n *domain.Node) error {
	if err := s.repo.SaveJourney(j); err != nil {
		return err
	}
	if err := s.repo.SaveNode(n); err != nil {
		return err
	}
	j.AppendNode(n.ID)
	if r, ok := s.reveals[j.ID]; ok {
		r.Grow(len(j.NodeIDs))
	}
	return nil
}

func (s *Service) journeyLocked(id string) (*domain.Journey, error) {
	if strings.TrimSpace(id) == "" {
		return nil, domain.ErrNoJourney
	}
	j, err := s.repo.GetJourney(id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("journey %s: %w", id, domain.ErrNoJourney)
	}
	return j, err
}

// revealLocked returns the reveal of a journey, restoring it from stored
// answers when the journey was not loaded in this process.
func (s *Service) revealLocked(j *domain.Journey) (*graph.Reveal, error) {
	if r, ok := s.reveals[j.ID]; ok {
		r.Grow(len(j.NodeIDs))
		return r, nil
	}
	nodes, err := s.repo.JourneyNodes(j)
	if err != nil {
		return nil, err
	}
	r := restoreReveal(nodes)
	s.reveals[j.ID] = r
	return r, nil
}

// restoreReveal shows the first node, then every node whose predecessor was
// answered. Manual nodes right behind the visible front are shown as well.
func restoreReveal(nodes []*domain.Node) *graph.Reveal {
	r := graph.NewReveal(len(nodes))
	r.Advance()
	for i := 1; i < len(nodes); i++ {
		if !nodes[i-1].Answered() && !nodes[i].Manual {
			break
		}
		r.Advance()
	}
	return r
}

// Open loads a journey for display: the reveal starts over from node 0 and
// replays the dialogs completed so far.
func (s *Service) Open(ctx context.Context, journeyID string) (graph.View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, err := s.journeyLocked(journeyID)
	if err != nil {
		return graph.View{}, err
	}
	nodes, err := s.repo.JourneyNodes(j)
	if err != nil {
		return graph.View{}, err
	}
	r := restoreReveal(nodes)
	s.reveals[j.ID] = r
	return graph.BuildView(j.ID, s.cfg.Grid, nodes, r), nil
}

// View returns the current graph of a journey
func (s *Service) View(ctx context.Context, journeyID string) (graph.View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, err := s.journeyLocked(journeyID)
	if err != nil {
		return graph.View{}, err
	}
	r, err := s.revealLocked(j)
	if err != nil {
		return graph.View{}, err
	}
	nodes, err := s.repo.JourneyNodes(j)
	if err != nil {
		return graph.View{}, err
	}
	return graph.BuildView(j.ID, s.cfg.Grid, nodes, r), nil
}

// Detail is a journey with its nodes in creation order
type Detail struct {
	Journey *domain.Journey `json:"journey"`
	Nodes   []*domain.Node  `json:"nodes"`
}

// Journey loads a journey and its nodes
func (s *Service) Journey(journeyID string) (*Detail, error) {
	j, err := s.repo.GetJourney(journeyID)
	if err != nil {
		return nil, err
	}
	nodes, err := s.repo.JourneyNodes(j)
	if err != nil {
		return nil, err
	}
	return &Detail{Journey: j, Nodes: nodes}, nil
}

// Node loads one node
func (s *Service) Node(nodeID string) (*domain.Node, error) {
	return s.repo.GetNode(nodeID)
}

// ResolveJourneyID accepts a full journey id or a unique prefix of one
func (s *Service) ResolveJourneyID(idOrPrefix string) (string, error) {
	if _, err := s.repo.GetJourney(idOrPrefix); err == nil {
		return idOrPrefix, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return "", err
	}
	if idOrPrefix == "" {
		return "", domain.ErrNoJourney
	}

	journeys, err := s.repo.ListJourneys()
	if err != nil {
		return "", err
	}
	var match string
	for _, j := range journeys {
		if strings.HasPrefix(j.ID, idOrPrefix) {
			if match != "" {
				return "", fmt.Errorf("journey prefix %q is ambiguous", idOrPrefix)
			}
			match = j.ID
		}
	}
	if match == "" {
		return "", fmt.Errorf("journey %s: %w", idOrPrefix, domain.ErrNotFound)
	}
	return match, nil
}

// ResolveNodeID accepts a full node id or a unique prefix of one among the nodes of a journey
func (s *Service) ResolveNodeID(journeyID, idOrPrefix string) (string, error) {
	if _, err := s.repo.GetNode(idOrPrefix); err == nil {
		return idOrPrefix, nil
	}
	j, err := s.repo.GetJourney(journeyID)
	if err != nil {
		return "", err
	}
	var match string
	for _, id := range j.NodeIDs {
		if idOrPrefix != "" && strings.HasPrefix(id, idOrPrefix) {
			if match != "" {
				return "", fmt.Errorf("node prefix %q is ambiguous", idOrPrefix)
			}
			match = id
		}
	}
	if match == "" {
		return "", fmt.Errorf("node %s: %w", idOrPrefix, domain.ErrNotFound)
	}
	return match, nil
}

// List returns every journey, most recently updated first
func (s *Service) List() ([]*domain.Journey, error) {
	return s.repo.ListJourneys()
}

// Search matches journeys by title, core question, description and tags
func (s *Service) Search(query string) ([]*domain.Journey, error) {
	return s.repo.SearchJourneys(query)
}

// Recent returns the most recently updated journeys. limit <= 0 uses the configured limit.
func (s *Service) Recent(limit int) ([]*domain.Journey, error) {
	if limit <= 0 {
		limit = s.cfg.RecentLimit
	}
	return s.repo.RecentJourneys(limit)
}

// Stats counts stored journeys and nodes
func (s *Service) Stats() (store.Stats, error) {
	return s.repo.Stats()
}

// Delete removes a journey, its nodes and their session state
func (s *Service) Delete(journeyID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, err := s.repo.GetJourney(journeyID)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteJourney(j.ID); err != nil {
		return err
	}
	for _, id := range j.NodeIDs {
		s.dialogs.Forget(id)
	}
	delete(s.reveals, j.ID)
	s.feed.drop(j.ID)

	s.logger.Info("journey deleted", zap.String("journey", j.ID), zap.Int("nodes", len(j.NodeIDs)))
	return nil
}

// Export collects every journey and node
func (s *Service) Export() (*store.Snapshot, error) {
	return s.repo.Export()
}

// Import stores a snapshot. Imported journeys restore their reveal on next use.
func (s *Service) Import(snap *store.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.repo.Import(snap); err != nil {
		return err
	}
	for _, j := range snap.Journeys {
		delete(s.reveals, j.ID)
	}
	s.logger.Info("snapshot imported",
		zap.Int("journeys", len(snap.Journeys)),
		zap.Int("nodes", len(snap.Nodes)))
	return nil
}

// Words returns the word suggestion table, or nil when none is configured
func (s *Service) Words() *wordcloud.Table {
	return s.words
}

// Notifications returns the notices published for a journey, oldest first
func (s *Service) Notifications(journeyID string) []Notification {
	return s.feed.list(journeyID)
}

// Wait blocks until every scheduled reveal has run
func (s *Service) Wait() {
	s.dialogs.Wait()
}
