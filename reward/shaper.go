// Package reward scores state transitions and carries the rolling
// per-tactic outcome window that drives tactic switching.
package reward

import (
	"chimera/config"
	"chimera/encoder"
	"chimera/game"
)

// Raw combat reward weights, per 10 points of damage where applicable.
const (
	damageDealtWeight = 1.5
	damageTakenWeight = 1.0
	killReward        = 20.0
	deathPenalty      = 20.0
	stepPenalty       = 0.005
	flankFollowUp     = 2.0
)

// Shaper computes the scalar reward for the previous transition: the
// raw combat reward from outcome events plus a shaping term that
// punishes sticking with a tactic the rolling window says keeps losing
// and pays a one-time bonus for switching away from it.
type Shaper struct {
	window    *Window
	threshold float64
	penalty   float64
	bonus     float64
	clip      float64

	// Per-episode accumulators, reset by BeginEpisode.
	tacticUse     [game.NumTactics]int
	switchGranted bool
}

func NewShaper(cfg config.Config) *Shaper {
	return &Shaper{
		window:    NewWindow(cfg.ShapingWindow),
		threshold: cfg.ShapingThreshold,
		penalty:   cfg.ShapingPenalty,
		bonus:     cfg.ShapingBonus,
		clip:      cfg.RewardClip,
	}
}

// Window exposes the rolling outcome window for inspection.
func (s *Shaper) Window() *Window {
	return s.window
}

// Shape scores the transition prev --action--> next given the outcome
// events observed on it. Observations are accepted for parity with the
// tick data flow but the score itself is event-driven.
func (s *Shaper) Shape(prev encoder.Observation, action game.Action, next encoder.Observation, ev game.Events) float64 {
	r := s.raw(ev)
	r += s.shaping(action)
	return clamp(r, -s.clip, s.clip)
}

func (s *Shaper) raw(ev game.Events) float64 {
	r := -stepPenalty
	r += damageDealtWeight * ev.DamageDealt / 10
	r -= damageTakenWeight * ev.DamageTaken / 10
	if ev.PlayerDied {
		r += killReward
	}
	if ev.AgentDied {
		r -= deathPenalty
	}
	if ev.FlankFollowUp {
		r += flankFollowUp
	}
	return r
}

// shaping applies the tactic-switch incentive. Using a tactic whose
// rolling success rate is below threshold costs a small penalty per tick;
// the first use of a non-failing tactic while some other tactic is in a
// losing streak pays a small one-time bonus for the episode.
func (s *Shaper) shaping(action game.Action) float64 {
	t := action.Tactic()
	s.tacticUse[t]++

	if s.window.Failing(t, s.threshold) {
		return -s.penalty
	}
	if !s.switchGranted && s.anyFailing() {
		s.switchGranted = true
		return s.bonus
	}
	return 0
}

func (s *Shaper) anyFailing() bool {
	for t := 0; t < game.NumTactics; t++ {
		if s.window.Failing(game.Tactic(t), s.threshold) {
			return true
		}
	}
	return false
}

// BeginEpisode resets the per-episode accumulators.
func (s *Shaper) BeginEpisode() {
	s.tacticUse = [game.NumTactics]int{}
	s.switchGranted = false
}

// EndEpisode folds the finished episode into the rolling window under
// its dominant tactic and returns that tactic.
func (s *Shaper) EndEpisode(won bool) game.Tactic {
	t := s.EpisodeTactic()
	s.window.Record(t, won)
	return t
}

// EpisodeTactic is the tactic the agent used most this episode.
func (s *Shaper) EpisodeTactic() game.Tactic {
	best := game.TacticHold
	bestCount := -1
	for t := 0; t < game.NumTactics; t++ {
		if s.tacticUse[t] > bestCount {
			bestCount = s.tacticUse[t]
			best = game.Tactic(t)
		}
	}
	return best
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
