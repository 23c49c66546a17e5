// Package calibrator solves the two-point affine sensor model
// real = scale * (raw - bias) from paired windowed sums of reference
// and raw samples, using a closed-form two-window determinant solve.
package calibrator

import (
	"math"

	"github.com/relabs-tech/dr-engine/internal/geo"
)

// State holds the two accumulation windows plus the last solved
// bias/scale. Bias and Scale are NaN until the first successful solve.
type State struct {
	SumRefPrev, SumRawPrev float64
	CountPrev              int64

	SumRefNow, SumRawNow float64
	CountNow             int64

	Bias, Scale float64
}

// New returns a fresh calibrator with no history and NaN bias/scale.
func New() State {
	return State{Bias: math.NaN(), Scale: math.NaN()}
}

// AddRef folds a reference-domain sample into the "now" window.
func (s *State) AddRef(r float64) {
	s.SumRefNow += r
}

// AddRaw folds a raw-domain sample into the "now" window.
func (s *State) AddRaw(q float64) {
	s.SumRawNow += q
	s.CountNow++
}

// CleanLastStep reverts the "now" window back to the last "prev"
// snapshot, discarding whatever has accumulated into "now" since.
// Used by the adjuster when a paired window fails validation partway
// through.
func (s *State) CleanLastStep() {
	s.SumRefNow = s.SumRefPrev
	s.SumRawNow = s.SumRawPrev
	s.CountNow = s.CountPrev
}

// Recalculate attempts a two-window solve. The first window requires
// no solve and is simply promoted. Every division site is guarded by
// geo.IsEpsilon; a singular system sets Bias/Scale to NaN so the
// adjuster's normalisers skip this step rather than trust a spurious
// solve.
func (s *State) Recalculate() {
	if s.CountPrev == 0 {
		s.promote()
		return
	}

	d1 := float64(s.CountPrev)*s.SumRefNow - float64(s.CountNow)*s.SumRefPrev
	if geo.IsEpsilon(d1) {
		s.Bias = math.NaN()
		s.Scale = math.NaN()
		return
	}
	bias := (s.SumRefNow*s.SumRawPrev - s.SumRawNow*s.SumRefPrev) / d1

	d2 := s.SumRawNow - bias*float64(s.CountNow)
	if geo.IsEpsilon(d2) {
		s.Bias = math.NaN()
		s.Scale = math.NaN()
		return
	}
	scale := s.SumRefNow / d2

	s.Bias = bias
	s.Scale = scale
	s.promote()
}

func (s *State) promote() {
	s.SumRefPrev = s.SumRefNow
	s.SumRawPrev = s.SumRawNow
	s.CountPrev = s.CountNow
}
