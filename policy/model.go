package policy

import (
	"math"
	"sync/atomic"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Model is the single-writer, multi-reader view over the current
// parameter version. The trainer is the only caller of Publish; any
// number of inference calls may run concurrently and always see either
// the old version or the new one, never a torn mix.
type Model struct {
	current atomic.Pointer[Params]
}

func NewModel(initial *Params) *Model {
	m := &Model{}
	m.current.Store(initial)
	return m
}

// Current returns the published parameter version.
func (m *Model) Current() *Params {
	return m.current.Load()
}

// Version returns the published update counter.
func (m *Model) Version() uint64 {
	return m.current.Load().Version
}

// Publish atomically installs a new parameter version. Readers pick it
// up on their next inference call; the old version is dropped once no
// caller still holds it.
func (m *Model) Publish(p *Params) {
	m.current.Store(p)
}

// Infer maps an observation to an action distribution and a value
// estimate under the currently published parameters. It never blocks
// and never mutates shared state.
func (m *Model) Infer(obs []float64) (dist []float64, value float64, version uint64) {
	p := m.current.Load()
	in, _, actions := p.Dims()
	if len(obs) != in {
		// Defensive fallback for a mis-sized vector: act uniformly
		// rather than crash the tick loop.
		dist = make([]float64, actions)
		for i := range dist {
			dist[i] = 1 / float64(actions)
		}
		return dist, 0, p.Version
	}
	_, dist, value = forward(p, obs)
	return dist, value, p.Version
}

// forward runs one pass through the network, returning the hidden
// activations, the softmax action distribution, and the value estimate.
func forward(p *Params, obs []float64) (hidden *mat.VecDense, dist []float64, value float64) {
	x := mat.NewVecDense(len(obs), obs)

	_, h, _ := p.Dims()
	hidden = mat.NewVecDense(h, nil)
	hidden.MulVec(p.W1, x)
	hidden.AddVec(hidden, p.B1)
	for i := 0; i < h; i++ {
		if hidden.AtVec(i) < 0 {
			hidden.SetVec(i, 0)
		}
	}

	_, _, actions := p.Dims()
	logitsVec := mat.NewVecDense(actions, nil)
	logitsVec.MulVec(p.W2, hidden)
	logitsVec.AddVec(logitsVec, p.B2)

	dist = softmax(logitsVec.RawVector().Data)
	value = mat.Dot(p.WV, hidden) + p.BV
	return hidden, dist, value
}

func softmax(logits []float64) []float64 {
	out := make([]float64, len(logits))
	max := floats.Max(logits)
	for i, l := range logits {
		out[i] = math.Exp(l - max)
	}
	sum := floats.Sum(out)
	for i := range out {
		out[i] /= sum
	}
	return out
}
