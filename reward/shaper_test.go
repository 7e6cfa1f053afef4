package reward

import (
	"testing"

	"github.com/stretchr/testify/require"

	"chimera/config"
	"chimera/encoder"
	"chimera/game"
)

func losingRushWindow(size int) *Window {
	w := NewWindow(size)
	// Rush lost 8 of the last 10 episodes.
	for i := 0; i < 10; i++ {
		w.Record(game.TacticRush, i%5 == 0)
	}
	return w
}

func TestWindow(t *testing.T) {
	t.Run("rolls over at the configured length", func(t *testing.T) {
		w := NewWindow(3)
		w.Record(game.TacticRush, false)
		w.Record(game.TacticRush, false)
		w.Record(game.TacticRush, false)
		w.Record(game.TacticRush, true)
		w.Record(game.TacticRush, true)
		w.Record(game.TacticRush, true)

		rate, ok := w.SuccessRate(game.TacticRush)
		require.True(t, ok)
		require.InDelta(t, 1.0, rate, 1e-9,
			"Only the newest three outcomes should remain")
		require.Equal(t, 3, w.Count(game.TacticRush))
	})

	t.Run("an untried tactic is never failing", func(t *testing.T) {
		w := NewWindow(10)
		require.False(t, w.Failing(game.TacticFlank, 0.5),
			"No history should not read as a losing streak")
	})

	t.Run("judges failure from the whole window, not one episode", func(t *testing.T) {
		w := NewWindow(10)
		w.Record(game.TacticHold, true)
		w.Record(game.TacticHold, true)
		w.Record(game.TacticHold, false)
		require.False(t, w.Failing(game.TacticHold, 0.5),
			"A single loss inside a winning window must not flip the verdict")
	})
}

func TestShape(t *testing.T) {
	cfg := config.Default()

	t.Run("a failing tactic scores strictly worse than a fresh one", func(t *testing.T) {
		rusher := NewShaper(cfg)
		rusher.window = losingRushWindow(cfg.ShapingWindow)
		rusher.BeginEpisode()

		switcher := NewShaper(cfg)
		switcher.window = losingRushWindow(cfg.ShapingWindow)
		switcher.BeginEpisode()

		ev := game.Events{}
		obs := encoder.Observation{0.5}
		rushReward := rusher.Shape(obs, game.Advance, obs, ev)
		flankReward := switcher.Shape(obs, game.FlankLeft, obs, ev)

		require.Greater(t, flankReward, rushReward,
			"Switching away from a losing tactic must shape strictly higher")
	})

	t.Run("the switch bonus pays out once per episode", func(t *testing.T) {
		s := NewShaper(cfg)
		s.window = losingRushWindow(cfg.ShapingWindow)
		s.BeginEpisode()

		obs := encoder.Observation{0.5}
		first := s.Shape(obs, game.FlankLeft, obs, game.Events{})
		second := s.Shape(obs, game.FlankLeft, obs, game.Events{})
		require.Greater(t, first, second,
			"Only the first switch in a fresh episode earns the bonus")

		s.EndEpisode(false)
		third := s.Shape(obs, game.Hold, obs, game.Events{})
		require.Greater(t, third, second,
			"A new episode re-arms the switch bonus")
	})

	t.Run("combat outcomes drive the raw reward", func(t *testing.T) {
		s := NewShaper(cfg)
		obs := encoder.Observation{0.5}

		kill := s.Shape(obs, game.PeekFire, obs, game.Events{PlayerDied: true, DamageDealt: 15})
		death := s.Shape(obs, game.PeekFire, obs, game.Events{AgentDied: true, DamageTaken: 15})
		require.Greater(t, kill, 0.0)
		require.Less(t, death, 0.0)

		followUp := s.Shape(obs, game.PeekFire, obs, game.Events{DamageDealt: 10, FlankFollowUp: true})
		plain := s.Shape(obs, game.PeekFire, obs, game.Events{DamageDealt: 10})
		require.Greater(t, followUp, plain,
			"Damage following a flank should earn the follow-up bonus")
	})

	t.Run("rewards are clipped to the configured bound", func(t *testing.T) {
		s := NewShaper(cfg)
		obs := encoder.Observation{0.5}
		r := s.Shape(obs, game.PeekFire, obs, game.Events{DamageDealt: 1e9})
		require.LessOrEqual(t, r, cfg.RewardClip)
		require.GreaterOrEqual(t, r, -cfg.RewardClip)
	})

	t.Run("episode tactic is the most used category", func(t *testing.T) {
		s := NewShaper(cfg)
		s.BeginEpisode()
		obs := encoder.Observation{0.5}
		for i := 0; i < 5; i++ {
			s.Shape(obs, game.FlankLeft, obs, game.Events{})
		}
		for i := 0; i < 2; i++ {
			s.Shape(obs, game.Advance, obs, game.Events{})
		}
		require.Equal(t, game.TacticFlank, s.EpisodeTactic())

		tactic := s.EndEpisode(true)
		require.Equal(t, game.TacticFlank, tactic)
		rate, ok := s.Window().SuccessRate(game.TacticFlank)
		require.True(t, ok)
		require.InDelta(t, 1.0, rate, 1e-9)
	})
}
