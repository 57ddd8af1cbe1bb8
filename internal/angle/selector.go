// Package angle picks the exploration angle that seeds each new node of a journey.
//
// The first node of a journey always uses the starting option the user picked.
// Later nodes rotate through the journey's angle pool without repeats; once every
// angle has been used the rotation starts over.
package angle

import (
	"math/rand"
	"slices"

	"github.com/pbaille/wayfind/internal/domain"
)

// FallbackAngle is used when a journey has no angle pool
const FallbackAngle = "continue exploring current topic"

// Selector draws angles from a journey's pool
type Selector struct {
	rnd *rand.Rand
}

// New creates a Selector drawing from r
func New(r *rand.Rand) *Selector {
	return &Selector{rnd: r}
}

// Next returns the angle for the next node. meta.ExplorationCount must be the count
// before the new node is counted. When the pool is exhausted, UsedAngles is cleared
// in place and the caller is expected to persist meta.
func (s *Selector) Next(meta *domain.JourneyMetadata) string {
	if meta.ExplorationCount == 0 {
		return meta.SelectedOption
	}
	if len(meta.AvailableAngles) == 0 {
		return FallbackAngle
	}

	unused := Unused(meta)
	if len(unused) > 0 {
		return unused[s.rnd.Intn(len(unused))]
	}

	meta.UsedAngles = nil
	return meta.AvailableAngles[s.rnd.Intn(len(meta.AvailableAngles))]
}

// Unused returns the pool angles not yet recorded, in pool order
func Unused(meta *domain.JourneyMetadata) []string {
	var out []string
	for _, a := range meta.AvailableAngles {
		if !slices.Contains(meta.UsedAngles, a) {
			out = append(out, a)
		}
	}
	return out
}

// RecordUsed marks angle as used. Angles outside the pool (the starting option,
// the fallback) are ignored. It reports whether meta changed.
func RecordUsed(meta *domain.JourneyMetadata, angle string) bool {
	if angle == "" || !slices.Contains(meta.AvailableAngles, angle) {
		return false
	}
	if slices.Contains(meta.UsedAngles, angle) {
		return false
	}
	meta.UsedAngles = append(meta.UsedAngles, angle)
	return true
}
