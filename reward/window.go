package reward

import "chimera/game"

// Window tracks win/loss outcomes over the last size episodes for each
// tactic. Detection of a failing tactic is always computed from the
// whole window, never from a single episode, so one bad round does not
// flip the shaping term.
type Window struct {
	size     int
	outcomes [game.NumTactics][]bool
}

func NewWindow(size int) *Window {
	return &Window{size: size}
}

// Record appends one episode outcome for the tactic, evicting the
// oldest entry once the window is full.
func (w *Window) Record(t game.Tactic, won bool) {
	if t < 0 || int(t) >= game.NumTactics {
		return
	}
	o := append(w.outcomes[t], won)
	if len(o) > w.size {
		o = o[1:]
	}
	w.outcomes[t] = o
}

// SuccessRate returns the fraction of recorded episodes the tactic won.
// ok is false when the window holds no outcomes for the tactic yet.
func (w *Window) SuccessRate(t game.Tactic) (rate float64, ok bool) {
	if t < 0 || int(t) >= game.NumTactics || len(w.outcomes[t]) == 0 {
		return 0, false
	}
	wins := 0
	for _, won := range w.outcomes[t] {
		if won {
			wins++
		}
	}
	return float64(wins) / float64(len(w.outcomes[t])), true
}

// Failing reports whether the tactic's rolling success rate sits below
// the threshold. A tactic with no history is never failing; it simply
// has not been tried.
func (w *Window) Failing(t game.Tactic, threshold float64) bool {
	rate, ok := w.SuccessRate(t)
	return ok && rate < threshold
}

// Count returns how many episode outcomes the window holds for t.
func (w *Window) Count(t game.Tactic) int {
	if t < 0 || int(t) >= game.NumTactics {
		return 0
	}
	return len(w.outcomes[t])
}
