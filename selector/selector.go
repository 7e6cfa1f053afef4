// Package selector turns the policy's action distribution into exactly
// one action per tick.
package selector

import (
	"golang.org/x/exp/rand"

	"chimera/config"
	"chimera/game"
)

// Selector is epsilon-greedy in training mode: with probability
// exploration it picks uniformly among all actions so underused tactics
// stay discoverable, otherwise it samples the distribution. In
// inference mode exploration is forced to zero and the distribution
// mode is returned deterministically.
type Selector struct {
	training    bool
	exploration float64
	rng         *rand.Rand
}

func New(cfg config.Config, rng *rand.Rand) *Selector {
	s := &Selector{
		training:    cfg.Mode == config.ModeTraining,
		exploration: cfg.ExplorationRate,
		rng:         rng,
	}
	if !s.training {
		s.exploration = 0
	}
	return s
}

// Select returns one action for the given distribution.
func (s *Selector) Select(dist []float64) game.Action {
	if !s.training || s.exploration == 0 {
		return argmax(dist)
	}
	if s.rng.Float64() < s.exploration {
		return game.Action(s.rng.Intn(game.NumActions))
	}
	return sample(dist, s.rng)
}

// sample walks the cumulative distribution; the final action absorbs
// any floating point shortfall.
func sample(dist []float64, rng *rand.Rand) game.Action {
	sampled := rng.Float64()
	cumulative := 0.0
	for i, prob := range dist {
		cumulative += prob
		if sampled < cumulative {
			return game.Action(i)
		}
	}
	return game.Action(len(dist) - 1)
}

// argmax is deterministic: ties resolve to the lowest action index.
func argmax(dist []float64) game.Action {
	best := 0
	for i := 1; i < len(dist); i++ {
		if dist[i] > dist[best] {
			best = i
		}
	}
	return game.Action(best)
}
