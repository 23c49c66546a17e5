package calibrator

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFirstWindowPromotesWithoutSolving(t *testing.T) {
	s := New()
	s.AddRef(1.0)
	s.AddRaw(21)
	s.Recalculate()
	require.True(t, math.IsNaN(s.Bias))
	require.True(t, math.IsNaN(s.Scale))
	require.EqualValues(t, 1, s.CountPrev)
}

func TestLearnsBiasAndScale(t *testing.T) {
	s := New()
	s.AddRef(1.0)
	s.AddRaw(21) // raw = 10*1 + 11
	s.Recalculate()

	s.AddRef(2.0)
	s.AddRaw(31) // raw = 10*2 + 11
	s.Recalculate()

	require.InDelta(t, 11, s.Bias, 1e-9)
	require.InDelta(t, 0.1, s.Scale, 1e-9)
}

func TestCleanLastStepThenSingularRecalculateYieldsNaN(t *testing.T) {
	s := New()
	s.AddRef(1.0)
	s.AddRaw(21)
	s.Recalculate()

	s.AddRef(2.0)
	s.AddRaw(31)
	s.Recalculate()
	require.False(t, math.IsNaN(s.Bias))

	// Third, disturbed pair: add then immediately undo via CleanLastStep.
	s.AddRef(3.0)
	s.AddRaw(41.01)
	s.CleanLastStep()
	s.Recalculate()

	require.True(t, math.IsNaN(s.Bias))
	require.True(t, math.IsNaN(s.Scale))

	// Re-feeding the same disturbed pair now solves close to the true values.
	s.AddRef(3.0)
	s.AddRaw(41.01)
	s.Recalculate()
	require.InDelta(t, 11, s.Bias, 0.1)
	require.InDelta(t, 0.1, s.Scale, 0.01)
}

func TestSingularDivisorYieldsNaNWithoutPromotion(t *testing.T) {
	s := New()
	s.AddRef(1.0)
	s.AddRaw(10)
	s.Recalculate()

	// Degenerate: adding the same ref/raw pair again keeps the cumulative
	// ref sum proportional to the count, which forces D1 to vanish.
	s.AddRef(1.0)
	s.AddRaw(10)
	s.Recalculate()

	require.True(t, math.IsNaN(s.Bias))
	require.True(t, math.IsNaN(s.Scale))
	require.EqualValues(t, 1, s.CountPrev)
}
