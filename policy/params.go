// Package policy holds the learnable actor-critic model: a versioned
// immutable parameter set, lock-free inference against the currently
// published version, and the gradient update that produces the next
// version.
package policy

import (
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
)

// Params is one immutable version of the network weights: a shared
// ReLU hidden layer, a softmax action head, and a scalar value head.
// Version increases by exactly one per successful update.
type Params struct {
	Version uint64

	W1 *mat.Dense    // hidden x input
	B1 *mat.VecDense // hidden
	W2 *mat.Dense    // actions x hidden
	B2 *mat.VecDense // actions
	WV *mat.VecDense // hidden, value head
	BV float64
}

// NewParams initializes a fresh parameter set with small scaled-normal
// weights from the given source, so a configured seed reproduces the
// starting point.
func NewParams(in, hidden, actions int, rng *rand.Rand) *Params {
	return &Params{
		W1: randomDense(hidden, in, math.Sqrt(2/float64(in)), rng),
		B1: mat.NewVecDense(hidden, nil),
		W2: randomDense(actions, hidden, math.Sqrt(2/float64(hidden)), rng),
		B2: mat.NewVecDense(actions, nil),
		WV: mat.NewVecDense(hidden, nil),
	}
}

func randomDense(r, c int, scale float64, rng *rand.Rand) *mat.Dense {
	data := make([]float64, r*c)
	for i := range data {
		data[i] = rng.NormFloat64() * scale
	}
	return mat.NewDense(r, c, data)
}

// Dims returns the (input, hidden, actions) sizes of the network.
func (p *Params) Dims() (in, hidden, actions int) {
	hidden, in = p.W1.Dims()
	actions, _ = p.W2.Dims()
	return in, hidden, actions
}

// Clone deep-copies the parameter set so an update never writes into a
// version readers may still hold.
func (p *Params) Clone() *Params {
	return &Params{
		Version: p.Version,
		W1:      mat.DenseCopyOf(p.W1),
		B1:      mat.VecDenseCopyOf(p.B1),
		W2:      mat.DenseCopyOf(p.W2),
		B2:      mat.VecDenseCopyOf(p.B2),
		WV:      mat.VecDenseCopyOf(p.WV),
		BV:      p.BV,
	}
}

// Finite reports whether every weight is a finite number. A set that
// fails this check must never be published.
func (p *Params) Finite() bool {
	for _, d := range []*mat.Dense{p.W1, p.W2} {
		for _, v := range d.RawMatrix().Data {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return false
			}
		}
	}
	for _, vec := range []*mat.VecDense{p.B1, p.B2, p.WV} {
		for _, v := range vec.RawVector().Data {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return false
			}
		}
	}
	return !math.IsNaN(p.BV) && !math.IsInf(p.BV, 0)
}
