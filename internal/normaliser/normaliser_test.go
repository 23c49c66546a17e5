package normaliser

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConvergesOnConstant(t *testing.T) {
	s := New()
	for i := 0; i < 200; i++ {
		s.AddSample(10.0)
		switch i + 1 {
		case 2:
			require.InDelta(t, 10, s.Mean, 1e-9)
			require.InDelta(t, 0, s.Mld, 1e-9)
			require.InDelta(t, 50, s.ReliablePct, 1e-9)
		case 10:
			require.InDelta(t, 90, s.ReliablePct, 1e-9)
		case 200:
			require.InDelta(t, 99.5, s.ReliablePct, 0.01)
		}
	}
}

func TestFirstSampleDoesNotPublish(t *testing.T) {
	s := New()
	s.AddSample(42)
	require.Equal(t, 0.0, s.Mld)
	require.Equal(t, 0.0, s.ReliablePct)
	require.InDelta(t, 42, s.Mean, 1e-9)
}

func TestSeededReplayMatchesFullHistory(t *testing.T) {
	history := []float64{10, 11, 9, 10.5, 8.7, 12, 10, 9.5, 11.2, 10.1}
	split := 4

	full := New()
	for _, v := range history {
		full.AddSample(v)
	}

	prefix := New()
	for _, v := range history[:split] {
		prefix.AddSample(v)
	}
	seeded := Seeded(prefix.AccValue, prefix.AccMld, prefix.AccReliable, prefix.SampleCount)
	for _, v := range history[split:] {
		seeded.AddSample(v)
	}

	require.InDelta(t, full.Mean, seeded.Mean, 1e-8)
	require.InDelta(t, full.Mld, seeded.Mld, 1e-8)
	require.InDelta(t, full.ReliablePct, seeded.ReliablePct, 1e-8)
	require.Equal(t, full.SampleCount, seeded.SampleCount)
}

func TestReliablePctClampedToRange(t *testing.T) {
	s := New()
	samples := []float64{5, 100, -50, 200, 0, 9, -300}
	for _, v := range samples {
		s.AddSample(v)
		require.GreaterOrEqual(t, s.ReliablePct, 0.0)
		require.LessOrEqual(t, s.ReliablePct, 100.0)
	}
}
