package dify

import (
	"context"
	"fmt"
)

// Offline stands in for Dify when no app keys are configured. Every answer is
// labelled as a placeholder.
type Offline struct{}

func (Offline) AskAngle(_ context.Context, angle, mode, input string) (string, error) {
	return fmt.Sprintf("offline answer (%s): about %q from the angle %q. The answer service is not configured, but you can keep exploring this topic.", mode, input, angle), nil
}

func (Offline) CheckForbidden(context.Context, string) (bool, error) {
	return false, nil
}

func (Offline) Expand(_ context.Context, word string) (TopicProfile, error) {
	return TopicProfile{
		Angles: []string{
			fmt.Sprintf("What assumptions underlie your understanding of %q?", word),
			fmt.Sprintf("How might someone from a completely different background approach %q?", word),
			fmt.Sprintf("What would it mean if the opposite of your current belief about %q were true?", word),
			fmt.Sprintf("What questions does %q not ask that it should?", word),
			fmt.Sprintf("How has your perspective on %q changed over time?", word),
		},
		Difficulty: DefaultDifficulty,
	}, nil
}

func (Offline) StartOptions(context.Context, string) ([]string, error) {
	return append([]string(nil), DefaultOptions...), nil
}
