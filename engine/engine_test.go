package engine

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"

	"chimera/buffer"
	"chimera/config"
	"chimera/encoder"
	"chimera/episode"
	"chimera/game"
	"chimera/policy"
	"chimera/reward"
	"chimera/selector"
	"chimera/telemetry"
	"chimera/trainer"
)

type harness struct {
	core      *Core
	cfg       config.Config
	enc       *encoder.Encoder
	model     *policy.Model
	shaper    *reward.Shaper
	buf       *buffer.Buffer
	episodes  *episode.Manager
	collector telemetry.Collector
	trainer   *trainer.Trainer
}

func newHarness(t *testing.T, cfg config.Config) *harness {
	t.Helper()

	enc := encoder.New(cfg)
	model := policy.NewModel(policy.NewParams(enc.Dim(), cfg.HiddenSize, game.NumActions,
		rand.New(rand.NewSource(cfg.Seed))))
	buf, err := buffer.New(cfg.BufferCapacity, buffer.WithRand(rand.New(rand.NewSource(cfg.Seed+1))))
	require.NoError(t, err)
	shaper := reward.NewShaper(cfg)
	collector := telemetry.NewCollector()
	episodes := episode.NewManager(cfg, shaper, collector, model, zerolog.Nop())
	tr := trainer.New(model, buf, cfg)

	core := NewCore(cfg, Deps{
		Encoder:  enc,
		Model:    model,
		Selector: selector.New(cfg, rand.New(rand.NewSource(cfg.Seed+2))),
		Shaper:   shaper,
		Buffer:   buf,
		Episodes: episodes,
		Ticks:    tr,
		Logger:   zerolog.Nop(),
	})
	return &harness{
		core:      core,
		cfg:       cfg,
		enc:       enc,
		model:     model,
		shaper:    shaper,
		buf:       buf,
		episodes:  episodes,
		collector: collector,
		trainer:   tr,
	}
}

func combatRaw(tick int) game.RawState {
	return game.RawState{
		Tick:            tick,
		AgentPlaced:     true,
		AgentPos:        game.Vec3{Y: 1},
		AgentForward:    game.Vec3{Z: 1},
		AgentHealth:     100,
		AgentMaxHealth:  100,
		AgentAmmo:       12,
		AgentMaxAmmo:    12,
		PlayerPlaced:    true,
		PlayerPos:       game.Vec3{Y: 1, Z: 25},
		PlayerHealth:    100,
		PlayerMaxHealth: 100,
		LineOfSight:     true,
	}
}

func TestCoreStep(t *testing.T) {
	t.Run("encoding failure falls back to hold and skips learning", func(t *testing.T) {
		h := newHarness(t, config.Default())
		h.core.Reset(0)

		raw := combatRaw(1)
		raw.AgentPlaced = false
		cmd, done := h.core.Step(raw, game.Events{})

		require.False(t, done)
		require.Equal(t, game.CommandFor(game.Hold, raw.AgentAmmo), cmd,
			"The agent should act on the safe default")
		require.Zero(t, h.buf.Len(), "A skipped tick must not be trained on")

		// The next valid tick must not pair against the skipped one.
		h.core.Step(combatRaw(2), game.Events{})
		require.Zero(t, h.buf.Len(),
			"No transition should span an encoding failure")
	})

	t.Run("consecutive ticks record one transition each", func(t *testing.T) {
		h := newHarness(t, config.Default())
		h.core.Reset(0)

		h.core.Step(combatRaw(1), game.Events{})
		require.Zero(t, h.buf.Len(), "The first tick has no predecessor to score")

		h.core.Step(combatRaw(2), game.Events{DamageDealt: 10})
		require.Equal(t, 1, h.buf.Len())

		tr := h.buf.Sample(1)[0]
		require.False(t, tr.Done)
		require.Len(t, tr.Obs, h.enc.Dim())
		require.Len(t, tr.Next, h.enc.Dim())
		require.Greater(t, tr.Reward, 0.0, "Dealing damage should score positive")
	})

	t.Run("a terminal tick closes the episode", func(t *testing.T) {
		h := newHarness(t, config.Default())
		h.core.Reset(0)

		h.core.Step(combatRaw(1), game.Events{})
		raw := combatRaw(2)
		raw.PlayerHealth = 0
		_, done := h.core.Step(raw, game.Events{PlayerDied: true, DamageDealt: 15})

		require.True(t, done)
		require.Equal(t, uint64(2), h.episodes.Episode(), "Episode id should advance")

		tr := h.buf.Sample(1)[0]
		require.True(t, tr.Done, "The final transition must carry the done flag")

		records := h.collector.Records()
		require.Len(t, records, 1)
		require.True(t, records[0].Won)
	})

	t.Run("a terminal snapshot concludes the episode even without a pending transition", func(t *testing.T) {
		h := newHarness(t, config.Default())
		h.core.Reset(0)

		// An encoding failure invalidates the pending transition.
		bad := combatRaw(1)
		bad.AgentPlaced = false
		h.core.Step(bad, game.Events{})

		dead := combatRaw(2)
		dead.AgentHealth = 0
		_, done := h.core.Step(dead, game.Events{AgentDied: true})

		require.True(t, done, "Death must be noticed on the first valid tick")
		require.Zero(t, h.buf.Len(), "No transition spans the skipped tick")
		require.Equal(t, uint64(2), h.episodes.Episode())
		require.False(t, h.collector.Records()[0].Won)
	})

	t.Run("ticks are reported to the update scheduler", func(t *testing.T) {
		h := newHarness(t, config.Default())
		h.core.Reset(0)

		h.core.Step(combatRaw(1), game.Events{})
		require.Equal(t, trainer.Idle, h.trainer.State())
	})
}

func TestLocalMatch(t *testing.T) {
	t.Run("an episode runs to a terminal event and records experience", func(t *testing.T) {
		cfg := config.Default()
		cfg.TickBudget = 400
		h := newHarness(t, cfg)
		match := NewLocalMatch(h.core, Aggressive, 9)

		result := match.RunEpisode(cfg.TickBudget + 2)
		require.Greater(t, result.Ticks, 0)
		require.True(t, result.HasFirst)
		require.Greater(t, h.buf.Len(), 0,
			"A sparring episode should leave transitions behind")
		require.Equal(t, uint64(2), h.episodes.Episode())
		require.Len(t, h.collector.Records(), 1)
	})

	t.Run("episodes keep their own accumulators", func(t *testing.T) {
		cfg := config.Default()
		cfg.TickBudget = 300
		h := newHarness(t, cfg)
		match := NewLocalMatch(h.core, Camper, 11)

		match.RunEpisode(cfg.TickBudget + 2)
		match.RunEpisode(cfg.TickBudget + 2)

		records := h.collector.Records()
		require.Len(t, records, 2)
		require.Equal(t, uint64(1), records[0].Episode)
		require.Equal(t, uint64(2), records[1].Episode)
	})

	t.Run("the opponent regenerates health after going unhit", func(t *testing.T) {
		h := newHarness(t, config.Default())
		match := NewLocalMatch(h.core, Camper, 3)

		match.playerHealth = 50
		match.playerSinceHit = 0
		for i := 0; i < playerRegenDelay; i++ {
			match.stepOpponent(&game.Events{})
		}
		require.Equal(t, 50.0, match.playerHealth,
			"No regeneration before the delay has elapsed")

		match.stepOpponent(&game.Events{})
		require.Equal(t, 50.0+playerRegenRate, match.playerHealth)

		match.playerHealth = playerMaxHealth - 0.1
		match.stepOpponent(&game.Events{})
		require.Equal(t, float64(playerMaxHealth), match.playerHealth,
			"Regeneration must not overshoot max health")
	})
}

// rushMass is the probability the policy opens with a rush action.
func rushMass(model *policy.Model, obs encoder.Observation) float64 {
	dist, _, _ := model.Infer(obs)
	mass := 0.0
	for a := 0; a < game.NumActions; a++ {
		if game.Action(a).Tactic() == game.TacticRush {
			mass += dist[a]
		}
	}
	return mass
}

// openingRaw mirrors the sparring arena's respawn snapshot: combatants
// at their spawn points with the pillar between them blocking sight.
func openingRaw() game.RawState {
	raw := combatRaw(1)
	raw.LineOfSight = false
	raw.TicksSinceSeen = 1
	raw.TicksSinceDamaged = 1
	raw.Cover = []game.CoverPoint{
		{Position: game.Vec3{X: 6, Z: 10}},
		{Position: game.Vec3{X: -7, Z: 14}},
		{Position: game.Vec3{X: 2, Z: 20}},
		{Position: game.Vec3{X: -3, Z: 5}},
	}
	return raw
}

func TestAdaptation(t *testing.T) {
	t.Run("three sparring losses while rushing shift the opening tactic away from rushing", func(t *testing.T) {
		cfg := config.Default()
		cfg.Seed = 5
		cfg.ExplorationRate = 0.3
		cfg.ShapingPenalty = 1.0
		cfg.LearningRate = 0.01
		cfg.MinBatch = 32
		cfg.BatchSize = 64
		// Too short for the agent to land the shots a kill needs, so
		// every episode ends in a loss.
		cfg.TickBudget = 40
		h := newHarness(t, cfg)

		// Start from a policy that strongly prefers advancing.
		biased := h.model.Current().Clone()
		biased.B2.SetVec(int(game.Advance), 3)
		h.model.Publish(biased)

		opening, err := h.enc.Encode(openingRaw())
		require.NoError(t, err)
		before := rushMass(h.model, opening)
		require.Greater(t, before, 0.5, "The starting policy should open by rushing")

		match := NewLocalMatch(h.core, Aggressive, 7)
		for i := 0; i < 3; i++ {
			res := match.RunEpisode(cfg.TickBudget + 2)
			require.NotEqual(t, "player-dead", res.Terminal,
				"The rushing agent cannot win inside the budget")
		}
		require.True(t, h.shaper.Window().Failing(game.TacticRush, cfg.ShapingThreshold),
			"Three straight losses should mark rushing as failing")

		for i := 0; i < 60; i++ {
			require.True(t, h.trainer.TryUpdate())
		}

		after := rushMass(h.model, opening)
		require.Less(t, after, before,
			"Episode four should open with rush less often than episode one")
	})
}
