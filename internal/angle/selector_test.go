package angle

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pbaille/wayfind/internal/domain"
)

func newSelector() *Selector {
	return New(rand.New(rand.NewSource(7)))
}

func TestNext_FirstStepUsesSelectedOption(t *testing.T) {
	meta := &domain.JourneyMetadata{
		SelectedOption:  "S",
		AvailableAngles: []string{"A", "B"},
	}
	assert.Equal(t, "S", newSelector().Next(meta))
}

func TestNext_RotationScenario(t *testing.T) {
	s := newSelector()
	meta := &domain.JourneyMetadata{
		SelectedOption:  "S",
		AvailableAngles: []string{"A", "B"},
	}

	assert.Equal(t, "S", s.Next(meta))
	meta.ExplorationCount = 1

	second := s.Next(meta)
	require.Contains(t, []string{"A", "B"}, second)
	require.True(t, RecordUsed(meta, second))

	third := s.Next(meta)
	assert.NotEqual(t, second, third)
	assert.Contains(t, []string{"A", "B"}, third)
	require.True(t, RecordUsed(meta, third))

	fourth := s.Next(meta)
	assert.Contains(t, []string{"A", "B"}, fourth)
	assert.Empty(t, meta.UsedAngles, "exhausted pool resets")
}

func TestNext_NeverRepeatsUntilExhausted(t *testing.T) {
	s := newSelector()
	pool := []string{"a", "b", "c", "d", "e", "f"}
	meta := &domain.JourneyMetadata{AvailableAngles: pool, ExplorationCount: 3}

	seen := map[string]bool{}
	for range pool {
		a := s.Next(meta)
		assert.False(t, seen[a], "angle %q repeated before exhaustion", a)
		seen[a] = true
		RecordUsed(meta, a)
	}
	assert.Len(t, seen, len(pool))
	assert.ElementsMatch(t, pool, meta.UsedAngles)
}

func TestNext_Fallback(t *testing.T) {
	meta := &domain.JourneyMetadata{SelectedOption: "S", ExplorationCount: 2}
	assert.Equal(t, FallbackAngle, newSelector().Next(meta))
}

func TestRecordUsed(t *testing.T) {
	meta := &domain.JourneyMetadata{
		SelectedOption:  "S",
		AvailableAngles: []string{"A", "B"},
	}
	assert.False(t, RecordUsed(meta, "S"), "starting option stays outside the pool")
	assert.False(t, RecordUsed(meta, FallbackAngle))
	assert.False(t, RecordUsed(meta, ""))
	assert.True(t, RecordUsed(meta, "A"))
	assert.False(t, RecordUsed(meta, "A"))
	assert.Equal(t, []string{"A"}, meta.UsedAngles)
	assert.Equal(t, []string{"B"}, Unused(meta))
}
