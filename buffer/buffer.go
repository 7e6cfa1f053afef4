// Package buffer holds recorded transitions until the trainer samples
// them. It is the only structure shared between the tick loop and the
// learning task besides the published policy parameters.
package buffer

import (
	"errors"
	"math"
	"sync"

	"golang.org/x/exp/rand"

	"chimera/encoder"
	"chimera/game"
)

// Transition is one recorded (state, action, reward, next-state, done)
// tuple. It is immutable once pushed; the buffer owns it afterwards.
type Transition struct {
	Obs     encoder.Observation
	Action  game.Action
	Reward  float64
	Next    encoder.Observation
	Done    bool
	Episode uint64
}

type Option func(*Buffer)

// WithRecencyBias skews sampling toward newer transitions. Zero keeps
// the required uniform sampling.
func WithRecencyBias(bias float64) Option {
	return func(b *Buffer) {
		if bias > 0 {
			b.recencyBias = bias
		}
	}
}

// WithRand sets the sampling source, mainly for reproducible tests.
func WithRand(rng *rand.Rand) Option {
	return func(b *Buffer) {
		if rng != nil {
			b.rng = rng
		}
	}
}

// Buffer is a capacity-bounded ring of transitions. Push evicts the
// oldest entry once full; Sample never mutates insertion order. All
// methods are safe for concurrent use.
type Buffer struct {
	mu          sync.Mutex
	items       []Transition
	head        int // next write position
	count       int
	recencyBias float64
	rng         *rand.Rand
}

func New(capacity int, options ...Option) (*Buffer, error) {
	if capacity <= 0 {
		return nil, errors.New("buffer capacity must be greater than zero")
	}
	b := &Buffer{
		items: make([]Transition, capacity),
		rng:   rand.New(rand.NewSource(1)),
	}
	for _, option := range options {
		option(b)
	}
	return b, nil
}

// Push appends a transition, evicting the oldest when at capacity.
func (b *Buffer) Push(t Transition) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.items[b.head] = t
	b.head = (b.head + 1) % len(b.items)
	if b.count < len(b.items) {
		b.count++
	}
}

// Len returns the number of retained transitions.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Capacity returns the configured bound.
func (b *Buffer) Capacity() int {
	return len(b.items)
}

// Sample draws n transitions with replacement, uniformly or with the
// configured recency bias. It returns nil when the buffer is empty.
func (b *Buffer) Sample(n int) []Transition {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count == 0 || n <= 0 {
		return nil
	}
	batch := make([]Transition, 0, n)
	for i := 0; i < n; i++ {
		batch = append(batch, b.items[b.index()])
	}
	return batch
}

// index picks a retained slot. With recency bias, age is drawn from a
// power-skewed distribution so fresher transitions dominate the batch
// while old ones stay reachable.
func (b *Buffer) index() int {
	age := b.rng.Intn(b.count)
	if b.recencyBias > 0 {
		age = int(float64(b.count) * math.Pow(b.rng.Float64(), 1+b.recencyBias))
		if age >= b.count {
			age = b.count - 1
		}
	}
	// head-1 is the newest entry; walk backwards by age.
	pos := b.head - 1 - age
	pos %= len(b.items)
	if pos < 0 {
		pos += len(b.items)
	}
	return pos
}
