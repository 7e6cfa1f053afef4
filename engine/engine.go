// Package engine wires the per-tick control loop: encode the snapshot,
// infer under the published policy, select an action, and hand the
// engine a command, while recording the previous tick's transition.
package engine

import (
	"github.com/rs/zerolog"

	"chimera/buffer"
	"chimera/config"
	"chimera/encoder"
	"chimera/episode"
	"chimera/game"
	"chimera/policy"
	"chimera/reward"
	"chimera/selector"
)

// TickObserver is notified once per simulation tick. The trainer
// implements it; the core never calls into the trainer beyond this.
type TickObserver interface {
	NotifyTick()
}

// Deps are the collaborators the core is built from.
type Deps struct {
	Encoder  *encoder.Encoder
	Model    *policy.Model
	Selector *selector.Selector
	Shaper   *reward.Shaper
	Buffer   *buffer.Buffer
	Episodes *episode.Manager
	Ticks    TickObserver
	Logger   zerolog.Logger
}

// Core is the agent-side of the per-tick contract: the engine pushes a
// raw snapshot plus outcome events and gets back one command. Core is
// driven by a single goroutine (the simulation loop); the only shared
// state it touches is the buffer and the published parameters, both
// safe by construction.
type Core struct {
	enc      *encoder.Encoder
	model    *policy.Model
	sel      *selector.Selector
	shaper   *reward.Shaper
	buf      *buffer.Buffer
	episodes *episode.Manager
	ticks    TickObserver
	logger   zerolog.Logger

	flankWindow   int
	lastFlankTick int

	// pending is the transition started last tick, waiting for its
	// reward and successor state.
	pending struct {
		obs    encoder.Observation
		action game.Action
		valid  bool
	}
}

func NewCore(cfg config.Config, deps Deps) *Core {
	c := &Core{
		enc:           deps.Encoder,
		model:         deps.Model,
		sel:           deps.Selector,
		shaper:        deps.Shaper,
		buf:           deps.Buffer,
		episodes:      deps.Episodes,
		ticks:         deps.Ticks,
		logger:        deps.Logger.With().Str("component", "core").Logger(),
		flankWindow:   cfg.FlankFollowUpTicks,
		lastFlankTick: -1 << 30,
	}
	return c
}

// Reset starts a fresh episode at the given tick. The engine calls it
// on round start and after each terminal event.
func (c *Core) Reset(tick int) {
	c.episodes.Begin(tick)
	c.pending.valid = false
	c.lastFlankTick = -1 << 30
}

// Step advances the control loop by one tick. It returns the command
// to execute and whether this tick ended the episode. Step never
// blocks on training and recovers every per-tick error internally.
func (c *Core) Step(raw game.RawState, ev game.Events) (game.Command, bool) {
	if c.ticks != nil {
		c.ticks.NotifyTick()
	}

	// Flank follow-up: damage dealt shortly after a flanking move is
	// flagged for the reward shaper.
	if ev.DamageDealt > 0 && raw.Tick-c.lastFlankTick <= c.flankWindow {
		ev.FlankFollowUp = true
	}

	obs, err := c.enc.Encode(raw)
	if err != nil {
		// Tick is skipped for learning; the agent still acts on the
		// safe default.
		c.logger.Debug().Err(err).Int("tick", raw.Tick).Msg("encoding failed, tick skipped for learning")
		c.pending.valid = false
		return game.CommandFor(game.Hold, raw.AgentAmmo), false
	}

	term := c.episodes.Terminal(raw)
	if c.pending.valid {
		r := c.shaper.Shape(c.pending.obs, c.pending.action, obs, ev)
		c.buf.Push(buffer.Transition{
			Obs:     c.pending.obs,
			Action:  c.pending.action,
			Reward:  r,
			Next:    obs,
			Done:    term != episode.NotTerminal,
			Episode: c.episodes.Episode(),
		})
		c.episodes.Track(r)
	}

	if term != episode.NotTerminal {
		c.episodes.Conclude(term)
		c.pending.valid = false
		return game.CommandFor(game.Hold, raw.AgentAmmo), true
	}

	dist, _, _ := c.model.Infer(obs)
	action := c.sel.Select(dist)
	if action.Tactic() == game.TacticFlank {
		c.lastFlankTick = raw.Tick
	}
	c.pending.obs = obs
	c.pending.action = action
	c.pending.valid = true

	return game.CommandFor(action, raw.AgentAmmo), false
}
