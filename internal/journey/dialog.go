package journey

import (
	"context"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/pbaille/wayfind/internal/angle"
	"github.com/pbaille/wayfind/internal/dialog"
	"github.com/pbaille/wayfind/internal/domain"
	"github.com/pbaille/wayfind/internal/graph"
)

// target resolves the dialog target of a node. Manual nodes have no angle and
// are answered from their own text. Hidden nodes have no dialog yet.
func (s *Service) target(nodeID string) (dialog.Target, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.repo.GetNode(nodeID)
	if err != nil {
		return dialog.Target{}, err
	}
	j, err := s.repo.GetJourney(n.JourneyID)
	if err != nil {
		return dialog.Target{}, err
	}
	idx := slices.Index(j.NodeIDs, n.ID)
	if idx < 0 {
		return dialog.Target{}, fmt.Errorf("node %s in journey %s: %w", n.ID, j.ID, domain.ErrNotFound)
	}
	r, err := s.revealLocked(j)
	if err != nil {
		return dialog.Target{}, err
	}
	if idx >= r.Visible() {
		return dialog.Target{}, fmt.Errorf("node %s: %w", n.ID, domain.ErrNodeHidden)
	}

	t := dialog.Target{
		NodeID:   n.ID,
		Question: n.Question(),
		Angle:    n.Angle,
		Mode:     n.Mode,
		Answer:   n.Answer(),
		Answered: n.Answered(),
	}
	if t.Angle == "" {
		t.Angle = t.Question
	}
	return t, nil
}

// Dialog opens the dialog of a node
func (s *Service) Dialog(nodeID string) (dialog.State, error) {
	t, err := s.target(nodeID)
	if err != nil {
		return dialog.State{}, err
	}
	return s.dialogs.Open(t), nil
}

// Ask uses the node's single question. Answer service failures do not fail Ask.
func (s *Service) Ask(ctx context.Context, nodeID, input string) (dialog.Result, error) {
	t, err := s.target(nodeID)
	if err != nil {
		return dialog.Result{}, err
	}
	res, err := s.dialogs.Ask(ctx, t, input)
	if err != nil {
		return res, err
	}

	failed := false
	for _, toast := range res.Toasts {
		if toast.Level == dialog.ToastWarning {
			failed = true
		}
	}
	s.metrics.QuestionAnswered(failed)
	return res, nil
}

// ShareReflection appends a short reflection to a node dialog
func (s *Service) ShareReflection(nodeID, text string) (dialog.Result, error) {
	t, err := s.target(nodeID)
	if err != nil {
		return dialog.Result{}, err
	}
	res, err := s.dialogs.ShareReflection(t, text)
	if err == nil {
		s.metrics.Reflection(string(dialog.EntryShare))
	}
	return res, err
}

// DeepReflection appends a longer reflection to a node dialog
func (s *Service) DeepReflection(nodeID, text string) (dialog.Result, error) {
	t, err := s.target(nodeID)
	if err != nil {
		return dialog.Result{}, err
	}
	res, err := s.dialogs.DeepReflection(t, text)
	if err == nil {
		s.metrics.Reflection(string(dialog.EntryReflection))
	}
	return res, err
}

// Answered stores the answer in the node, records its angle and, when nothing is
// left hidden, creates the node the pending reveal will show.
func (s *Service) Answered(ctx context.Context, nodeID, answer string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := s.logger.With(zap.String("node", nodeID))

	n, err := s.repo.GetNode(nodeID)
	if err != nil {
		log.Error("load answered node", zap.Error(err))
		return
	}
	// the manager schedules the reveal right after this hook
	s.awaiting[nodeID] = n.JourneyID
	if err := n.RecordAnswer(answer, s.now()); err != nil {
		log.Warn("answer not stored", zap.Error(err))
		return
	}
	if err := s.repo.SaveNode(n); err != nil {
		log.Error("save answered node", zap.Error(err))
		return
	}

	j, err := s.repo.GetJourney(n.JourneyID)
	if err != nil {
		log.Error("load journey of answered node", zap.Error(err))
		return
	}
	if angle.RecordUsed(&j.Metadata, n.Angle) {
		if err := s.repo.SaveJourney(j); err != nil {
			log.Error("record used angle", zap.Error(err))
			return
		}
	}

	if !s.cfg.AutoExtend {
		return
	}
	r, err := s.revealLocked(j)
	if err != nil {
		log.Error("load reveal", zap.Error(err))
		return
	}
	if r.HasHidden() {
		return
	}
	if _, err := s.createNextLocked(j); err != nil {
		log.Error("create next exploration", zap.Error(err))
	}
}

// RevealDue shows the next hidden node of the answered node's journey and
// announces its angle. It works from stored state, so it also runs after the
// dialog was closed.
func (s *Service) RevealDue(nodeID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.awaiting, nodeID)
	log := s.logger.With(zap.String("node", nodeID))

	n, err := s.repo.GetNode(nodeID)
	if err != nil {
		// the journey may have been deleted during the delay
		log.Debug("reveal skipped", zap.Error(err))
		return
	}
	j, err := s.repo.GetJourney(n.JourneyID)
	if err != nil {
		log.Debug("reveal skipped", zap.Error(err))
		return
	}
	r, err := s.revealLocked(j)
	if err != nil {
		log.Error("load reveal", zap.Error(err))
		return
	}
	s.advanceLocked(j, r, log)
}

// advanceLocked reveals one more node of j, if any is hidden, and announces it
func (s *Service) advanceLocked(j *domain.Journey, r *graph.Reveal, log *zap.Logger) {
	before := r.Visible()
	visible := r.Advance()
	if visible == before {
		return
	}

	nodes, err := s.repo.JourneyNodes(j)
	if err != nil || visible > len(nodes) {
		log.Error("load revealed node", zap.Error(err))
		return
	}
	revealed := nodes[visible-1]
	suggested := revealed.Angle
	if suggested == "" {
		suggested = revealed.Question()
	}

	s.metrics.NodeRevealed()
	s.feed.publish(Notification{
		JourneyID: j.ID,
		NodeID:    revealed.ID,
		Angle:     suggested,
		Message:   fmt.Sprintf("New exploration unlocked! Suggested angle: %s", suggested),
		At:        s.now(),
	})
	log.Info("node revealed",
		zap.String("journey", j.ID),
		zap.String("revealed", revealed.ID),
		zap.Int("visible", visible),
		zap.Int("total", r.Total()))
}

var _ dialog.Hooks = (*Service)(nil)

