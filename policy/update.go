package policy

import (
	"errors"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"chimera/buffer"
)

// ErrNumericDivergence marks an update whose resulting parameters are
// non-finite. The caller discards the step and keeps the previous
// version; it is a recovered failure, never fatal to the match.
var ErrNumericDivergence = errors.New("policy update produced non-finite parameters")

// advantageClip bounds normalized advantages so a single outlier
// transition (a one-shot kill reward, say) cannot blow up a step.
const advantageClip = 5.0

// Hyper are the learning-step hyperparameters, fixed for the life of a
// trainer.
type Hyper struct {
	LearningRate float64
	Discount     float64
	RewardClip   float64
}

// Update performs one one-step actor-critic gradient step over the
// batch and returns a new parameter version. It is pure with respect to
// its inputs: the same batch against the same starting parameters
// yields the same result, and p itself is never written.
func Update(p *Params, batch []buffer.Transition, h Hyper) (*Params, error) {
	if len(batch) == 0 {
		return nil, errors.New("empty update batch")
	}

	in, _, actions := p.Dims()

	// Bootstrap targets and advantages under the starting parameters.
	// Rewards are clipped before they enter the loss.
	targets := make([]float64, len(batch))
	advs := make([]float64, len(batch))
	for i, t := range batch {
		if len(t.Obs) != in || len(t.Next) != in {
			return nil, errors.New("transition dimensionality does not match model input")
		}
		r := clamp(t.Reward, -h.RewardClip, h.RewardClip)
		target := r
		if !t.Done {
			_, _, nextValue := forward(p, t.Next)
			target += h.Discount * nextValue
		}
		_, _, value := forward(p, t.Obs)
		targets[i] = target
		advs[i] = target - value
	}

	// Normalize advantages across the batch, then clip.
	mean, std := stat.MeanStdDev(advs, nil)
	for i := range advs {
		if std > 0 {
			advs[i] = (advs[i] - mean) / std
		}
		advs[i] = clamp(advs[i], -advantageClip, advantageClip)
	}

	next := p.Clone()
	next.Version = p.Version + 1
	lr := h.LearningRate / float64(len(batch))

	dlogits := mat.NewVecDense(actions, nil)
	for i, t := range batch {
		hiddenVec, dist, value := forward(p, t.Obs)

		// Policy head: ascend adv * grad log pi(a|s).
		for j := 0; j < actions; j++ {
			g := -dist[j]
			if j == int(t.Action) {
				g++
			}
			dlogits.SetVec(j, g*advs[i])
		}
		next.W2.RankOne(next.W2, lr, dlogits, hiddenVec)
		next.B2.AddScaledVec(next.B2, lr, dlogits)

		// Value head: descend the squared TD error.
		dv := targets[i] - value
		dv = clamp(dv, -advantageClip, advantageClip)
		next.WV.AddScaledVec(next.WV, lr*dv, hiddenVec)
		next.BV += lr * dv

		// Shared hidden layer gets both heads' gradients through the
		// ReLU mask.
		dh := mat.NewVecDense(hiddenVec.Len(), nil)
		dh.MulVec(p.W2.T(), dlogits)
		dh.AddScaledVec(dh, dv, p.WV)
		for k := 0; k < dh.Len(); k++ {
			if hiddenVec.AtVec(k) <= 0 {
				dh.SetVec(k, 0)
			}
		}
		x := mat.NewVecDense(len(t.Obs), t.Obs)
		next.W1.RankOne(next.W1, lr, dh, x)
		next.B1.AddScaledVec(next.B1, lr, dh)
	}

	if !next.Finite() {
		return nil, ErrNumericDivergence
	}
	return next, nil
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
