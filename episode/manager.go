// Package episode tracks episode boundaries: terminal detection,
// per-episode accumulators, the rolling outcome window handoff, and
// periodic checkpointing.
package episode

import (
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"chimera/config"
	"chimera/game"
	"chimera/policy"
	"chimera/reward"
	"chimera/telemetry"
)

// Terminal is why an episode ended, or NotTerminal while it runs.
type Terminal int

const (
	NotTerminal Terminal = iota
	AgentDead
	PlayerDead
	TimedOut
)

func (t Terminal) String() string {
	switch t {
	case NotTerminal:
		return "running"
	case AgentDead:
		return "agent-dead"
	case PlayerDead:
		return "player-dead"
	case TimedOut:
		return "timed-out"
	default:
		return "unknown"
	}
}

// Manager owns episode identity and end-of-episode bookkeeping. It is
// driven entirely by the tick loop and needs no locking of its own.
type Manager struct {
	session uuid.UUID
	id      uint64

	startTick       int
	tickBudget      int
	checkpointEvery int
	checkpointPath  string

	shaper    *reward.Shaper
	collector telemetry.Collector
	model     *policy.Model
	logger    zerolog.Logger

	totalReward float64
	steps       int
}

func NewManager(cfg config.Config, shaper *reward.Shaper, collector telemetry.Collector, model *policy.Model, logger zerolog.Logger) *Manager {
	m := &Manager{
		session:         uuid.New(),
		id:              1,
		tickBudget:      cfg.TickBudget,
		checkpointEvery: cfg.CheckpointEvery,
		checkpointPath:  cfg.CheckpointPath,
		shaper:          shaper,
		collector:       collector,
		model:           model,
		logger:          logger.With().Str("component", "episode").Logger(),
	}
	shaper.BeginEpisode()
	return m
}

// Session identifies this process run on telemetry records.
func (m *Manager) Session() uuid.UUID {
	return m.session
}

// Episode is the current episode id, monotonically increasing.
func (m *Manager) Episode() uint64 {
	return m.id
}

// Begin marks the episode's starting tick.
func (m *Manager) Begin(tick int) {
	m.startTick = tick
}

// Terminal inspects a snapshot for an episode-ending condition.
func (m *Manager) Terminal(raw game.RawState) Terminal {
	if raw.AgentPlaced && raw.AgentHealth <= 0 {
		return AgentDead
	}
	if raw.PlayerPlaced && raw.PlayerHealth <= 0 {
		return PlayerDead
	}
	if raw.Tick-m.startTick >= m.tickBudget {
		return TimedOut
	}
	return NotTerminal
}

// Track accumulates one transition's reward into the episode summary.
func (m *Manager) Track(r float64) {
	m.totalReward += r
	m.steps++
}

// Conclude finalizes the episode: the rolling per-tactic window gets
// the outcome, a telemetry record is emitted, a checkpoint is saved on
// the configured cadence, and the accumulators reset for the next
// episode. A timed-out round counts as a loss for shaping purposes;
// the agent failed to close it out.
func (m *Manager) Conclude(term Terminal) {
	won := term == PlayerDead
	tactic := m.shaper.EndEpisode(won)

	m.collector.Record(telemetry.EpisodeRecord{
		Session:       m.session,
		Episode:       m.id,
		Tactic:        tactic,
		Won:           won,
		TotalReward:   m.totalReward,
		Steps:         m.steps,
		PolicyVersion: m.model.Version(),
	})
	m.logger.Info().
		Uint64("episode", m.id).
		Stringer("tactic", tactic).
		Stringer("terminal", term).
		Float64("total_reward", m.totalReward).
		Int("steps", m.steps).
		Msg("episode over")

	if m.checkpointEvery > 0 && m.id%uint64(m.checkpointEvery) == 0 {
		if err := policy.Save(m.checkpointPath, m.model.Current()); err != nil {
			// Not fatal: training continues in memory without
			// persistence.
			m.logger.Error().Err(err).Msg("checkpoint save failed")
		} else {
			m.logger.Info().Uint64("version", m.model.Version()).
				Str("path", m.checkpointPath).Msg("checkpoint saved")
		}
	}

	m.id++
	m.totalReward = 0
	m.steps = 0
	m.shaper.BeginEpisode()
}
