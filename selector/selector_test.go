package selector

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"

	"chimera/config"
	"chimera/game"
)

func testDist() []float64 {
	dist := make([]float64, game.NumActions)
	for i := range dist {
		dist[i] = 0.05
	}
	dist[game.TakeCover] = 0.25
	dist[game.Advance] = 0.40
	return dist
}

func peaked() []float64 {
	dist := make([]float64, game.NumActions)
	for i := range dist {
		dist[i] = 0.02
	}
	dist[game.FlankLeft] = 1 - 0.02*float64(game.NumActions-1)
	return dist
}

func TestSelect(t *testing.T) {
	t.Run("zero exploration is deterministic", func(t *testing.T) {
		cfg := config.Default()
		cfg.ExplorationRate = 0
		s := New(cfg, rand.New(rand.NewSource(1)))

		first := s.Select(peaked())
		second := s.Select(peaked())
		require.Equal(t, first, second,
			"With exploration 0 and a fixed distribution two calls must agree")
		require.Equal(t, game.FlankLeft, first, "Should pick the distribution mode")
	})

	t.Run("inference mode forces exploration to zero", func(t *testing.T) {
		cfg := config.Default()
		cfg.Mode = config.ModeInference
		cfg.ExplorationRate = 1.0
		s := New(cfg, rand.New(rand.NewSource(2)))

		for i := 0; i < 100; i++ {
			require.Equal(t, game.FlankLeft, s.Select(peaked()),
				"Inference mode must never take random actions")
		}
	})

	t.Run("full exploration covers all actions uniformly", func(t *testing.T) {
		cfg := config.Default()
		cfg.ExplorationRate = 1.0
		s := New(cfg, rand.New(rand.NewSource(3)))

		const draws = 10000
		counts := make([]int, game.NumActions)
		for i := 0; i < draws; i++ {
			counts[s.Select(peaked())]++
		}
		for a, c := range counts {
			freq := float64(c) / draws
			require.InDelta(t, 1.0/float64(game.NumActions), freq, 0.02,
				"Action %s should be selected near 1/%d of the time", game.Action(a), game.NumActions)
		}
	})

	t.Run("partial exploration still follows the distribution", func(t *testing.T) {
		cfg := config.Default()
		cfg.ExplorationRate = 0.1
		s := New(cfg, rand.New(rand.NewSource(4)))

		const draws = 10000
		counts := make([]int, game.NumActions)
		for i := 0; i < draws; i++ {
			counts[s.Select(testDist())]++
		}
		require.Greater(t, counts[game.TakeCover], counts[game.Retreat],
			"High probability actions should dominate low probability ones")
		require.Greater(t, counts[game.Advance], counts[game.Retreat])
	})
}
