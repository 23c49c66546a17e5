// Package normaliser implements the streaming mean / mean-linear-
// deviation / reliable-percent estimator that turns a sequence of
// noisy scalar samples (a calibrator's candidate bias or scale) into a
// smoothed value with an explicit confidence score.
package normaliser

import "math"

// State is the normaliser's full accumulator set. It is the persisted
// form: a seeded State plus a replay of the remaining samples must
// reproduce the same outputs as feeding the whole sequence from empty.
type State struct {
	AccValue    float64
	AccMld      float64
	AccReliable float64
	SampleCount int64

	Mean        float64
	Mld         float64
	ReliablePct float64
}

// New returns an empty normaliser state.
func New() State {
	return State{}
}

// Seeded reconstructs a normaliser state from its four accumulators
// plus sample count, deriving the cached outputs when enough samples
// are present.
func Seeded(accValue, accMld, accReliable float64, sampleCount int64) State {
	s := State{
		AccValue:    accValue,
		AccMld:      accMld,
		AccReliable: accReliable,
		SampleCount: sampleCount,
	}
	if sampleCount >= 1 {
		s.Mean = accValue / float64(sampleCount)
	}
	if sampleCount >= 2 {
		s.Mld = accMld / float64(sampleCount)
		s.ReliablePct = accReliable / float64(sampleCount)
	}
	return s
}

// AddSample folds one more observation into the state, in place.
//
// The first sample only seeds the running mean: a deviation estimate
// needs a second point to compare against, so mld/reliable stay
// published only once two samples have been folded in (the state's
// sample_count, counting this one, reaches 2).
func (s *State) AddSample(v float64) {
	if s.SampleCount >= 1 {
		n := float64(s.SampleCount)
		oldMean := s.AccValue / n
		newMean := (s.AccValue + v) / (n + 1)
		s.AccMld += math.Abs(newMean - v)

		stepSigma := s.AccMld / n
		deltaMean := math.Abs(oldMean - newMean)

		var reliable float64
		switch {
		case stepSigma == 0:
			reliable = 100
		case deltaMean > stepSigma:
			reliable = 0
		default:
			reliable = math.Floor(100.5 - deltaMean/stepSigma*100)
		}
		if reliable < 0 {
			reliable = 0
		} else if reliable > 100 {
			reliable = 100
		}
		s.AccReliable += reliable
	}

	s.AccValue += v
	s.SampleCount++

	n := float64(s.SampleCount)
	s.Mean = s.AccValue / n
	if s.SampleCount >= 2 {
		s.Mld = s.AccMld / n
		s.ReliablePct = s.AccReliable / n
	}
}
