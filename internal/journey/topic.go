package journey

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/pbaille/wayfind/internal/dify"
	"github.com/pbaille/wayfind/internal/domain"
)

// TopicService screens a topic word and proposes how to explore it
type TopicService interface {
	CheckForbidden(ctx context.Context, word string) (bool, error)
	Expand(ctx context.Context, word string) (dify.TopicProfile, error)
	StartOptions(ctx context.Context, word string) ([]string, error)
}

// Proposal is what the user picks a starting option from
type Proposal struct {
	Word       string   `json:"word"`
	Options    []string `json:"options"`
	Angles     []string `json:"angles"`
	Styles     []string `json:"styles,omitempty"`
	Difficulty string   `json:"difficulty"`
	Raw        string   `json:"raw,omitempty"`
}

// Start turns the proposal into a journey request for the chosen option
func (p *Proposal) Start(chosen string) StartRequest {
	return StartRequest{
		Word:         p.Word,
		ChosenOption: chosen,
		Options:      p.Options,
		Angles:       p.Angles,
		Styles:       p.Styles,
		Difficulty:   p.Difficulty,
		TopicResult:  p.Raw,
	}
}

// ProposeTopic screens a word, then collects its angle pool and starting options.
// Only a forbidden verdict rejects the word; service failures fall back to
// defaults. Accepted words are counted in the word table.
func (s *Service) ProposeTopic(ctx context.Context, word string) (*Proposal, error) {
	word = strings.TrimSpace(word)
	if word == "" {
		return nil, domain.ErrEmptyTopic
	}
	log := s.logger.With(zap.String("word", word))

	forbidden, err := s.topics.CheckForbidden(ctx, word)
	if err != nil {
		log.Warn("topic check failed, treating word as allowed", zap.Error(err))
	}
	if forbidden {
		s.metrics.TopicProposed("forbidden")
		log.Info("topic rejected")
		return nil, domain.ErrForbiddenTopic
	}
	s.metrics.TopicProposed("normal")

	profile, err := s.topics.Expand(ctx, word)
	if err != nil {
		log.Warn("topic expansion failed", zap.Error(err))
	}
	if profile.Difficulty == "" {
		profile.Difficulty = dify.DefaultDifficulty
	}

	options, err := s.topics.StartOptions(ctx, word)
	if err != nil || len(options) == 0 {
		log.Warn("start options unavailable, using defaults", zap.Error(err))
		options = append([]string(nil), dify.DefaultOptions...)
	}

	if s.words != nil {
		if err := s.words.Bump(word); err != nil {
			log.Warn("word table not updated", zap.Error(err))
		}
	}

	return &Proposal{
		Word:       word,
		Options:    options,
		Angles:     profile.Angles,
		Styles:     profile.Styles,
		Difficulty: profile.Difficulty,
		Raw:        profile.Raw,
	}, nil
}
