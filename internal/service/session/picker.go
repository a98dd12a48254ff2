package session

import (
	"math/rand/v2"
	"sync"
)

// PersonaPicker chooses the persona for a brand-new session.
type PersonaPicker interface {
	Pick() string
}

// RandomPicker draws uniformly from a fixed persona enumeration.
type RandomPicker struct {
	mu  sync.Mutex
	ids []string
	rng *rand.Rand
}

// NewRandomPicker returns a picker over ids seeded with seed, so tests can
// reproduce the sequence.
func NewRandomPicker(ids []string, seed uint64) *RandomPicker {
	return &RandomPicker{
		ids: append([]string(nil), ids...),
		rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// Pick returns one identifier, or an empty string when the enumeration is empty.
func (p *RandomPicker) Pick() string {
	if len(p.ids) == 0 {
		return ""
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ids[p.rng.IntN(len(p.ids))]
}

// PickerFunc adapts a function to PersonaPicker.
type PickerFunc func() string

// Pick calls f.
func (f PickerFunc) Pick() string { return f() }
