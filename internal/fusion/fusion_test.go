package fusion

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func startPos() Position {
	return Position{LatitudeDeg: 51.5, LongitudeDeg: -0.1, HorizontalAccuracyM: 5}
}

func TestNewSeedsCurrentState(t *testing.T) {
	c := New(1, startPos(), Measurement{Value: 90, Accuracy: 1})
	cur := c.Current()
	require.Equal(t, 1.0, cur.Timestamp)
	require.True(t, cur.Position.Valid())
	require.False(t, cur.Speed.Valid())
	require.False(t, cur.AngularSpeed.Valid())
}

func TestAddSpeedThenPredictMovesPosition(t *testing.T) {
	c := New(0, startPos(), Measurement{Value: 90, Accuracy: 1})
	c.AddSpeed(1, Measurement{Value: 10, Accuracy: 0.5})

	p10 := c.GetPosition(10)
	require.True(t, p10.Valid())
	dist := distanceBetween(startPos(), p10)
	require.InDelta(t, 90, dist, 5) // ~9 seconds at 10 m/s heading east from ts=1
}

func TestAddHeadingRejectsStaleTimestamp(t *testing.T) {
	c := New(5, startPos(), Measurement{Value: 90, Accuracy: 1})
	ok := c.AddHeading(4, Measurement{Value: 100, Accuracy: 1})
	require.False(t, ok)
	require.Equal(t, 5.0, c.Current().Timestamp)
}

func TestAddHeadingDerivesAngularSpeed(t *testing.T) {
	c := New(0, startPos(), Measurement{Value: 90, Accuracy: 1})
	c.AddHeading(1, Measurement{Value: 80, Accuracy: 1}) // turned 10deg left in 1s

	require.True(t, c.Current().AngularSpeed.Valid())
	// SignedAngle(old, new) = old-new; a left turn (heading decreases)
	// yields a positive angular speed under this package's convention.
	require.InDelta(t, 10, c.Current().AngularSpeed.Value, 0.5)
}

func TestAddPositionAccumulatesDistance(t *testing.T) {
	c := New(0, startPos(), Measurement{Value: 90, Accuracy: 1})
	next := Position{LatitudeDeg: 51.5001, LongitudeDeg: -0.1, HorizontalAccuracyM: 5}
	c.AddPosition(1, next)

	d, acc := c.Distance()
	require.Greater(t, d, 0.0)
	require.Equal(t, 0.0, acc)
}

func TestMergeScalarWeightsTowardLowerAccuracy(t *testing.T) {
	merged := mergeScalar(Measurement{Value: 0, Accuracy: 1}, Measurement{Value: 10, Accuracy: 9})
	// Lower-accuracy-number measurement (tighter) should dominate the average.
	require.Less(t, merged.Value, 5.0)
}

func TestMergeHeadingUnwrapsSeam(t *testing.T) {
	merged := mergeHeading(Measurement{Value: 350, Accuracy: 1}, Measurement{Value: 10, Accuracy: 1})
	require.True(t, merged.Value < 10 || merged.Value > 350)
}

func TestMergeHeadingAcrossSeamWeighted(t *testing.T) {
	merged := mergeHeading(Measurement{Value: 355, Accuracy: 0.2}, Measurement{Value: 10, Accuracy: 0.1})
	require.InDelta(t, 5, merged.Value, 1e-9)
	require.InDelta(t, 0.133, merged.Accuracy, 0.001)
}

func TestMergeLongitudeUnwrapsAntimeridian(t *testing.T) {
	merged := mergeLongitude(Measurement{Value: 179, Accuracy: 1}, Measurement{Value: -179, Accuracy: 1})
	require.True(t, merged.Value >= 179 || merged.Value <= -179)
}

func TestMergePositionAcrossAntimeridian(t *testing.T) {
	merged := mergePosition(
		Position{LatitudeDeg: 1, LongitudeDeg: 179, HorizontalAccuracyM: 5},
		Position{LatitudeDeg: 1, LongitudeDeg: -179, HorizontalAccuracyM: 5},
	)
	require.InDelta(t, 1, merged.LatitudeDeg, 1e-9)
	require.InDelta(t, -180, merged.LongitudeDeg, 1e-9)
	require.InDelta(t, 5, merged.HorizontalAccuracyM, 1e-9)
}

func TestPredictionInflatesCarriedAccuracies(t *testing.T) {
	c := New(0, startPos(), Measurement{Value: 90, Accuracy: 1})
	c.AddSpeed(1, Measurement{Value: 10, Accuracy: 0.1})

	// One second later the carried speed reading is worth twice its
	// accuracy figure; the heading, with no angular speed to extrapolate
	// from, degrades the same way.
	s := c.GetSpeed(2)
	require.InDelta(t, 10, s.Value, 1e-9)
	require.InDelta(t, 0.2, s.Accuracy, 1e-9)

	h := c.GetHeading(2)
	require.InDelta(t, 90, h.Value, 1e-9)
	require.InDelta(t, c.Current().Heading.Accuracy*2, h.Accuracy, 1e-9)
}

func TestCircularTrackReturnsToStart(t *testing.T) {
	start := Position{LatitudeDeg: 50, LongitudeDeg: 10, HorizontalAccuracyM: 0.1}
	c := &Core{
		current: State{
			Timestamp:    0,
			Position:     start,
			Heading:      Measurement{Value: 90, Accuracy: 0.1},
			Speed:        Measurement{Value: 10, Accuracy: 0.1},
			AngularSpeed: Measurement{Value: 18, Accuracy: 0.1},
		},
		hasCurrent: true,
	}

	// A 20 s left turn at 18 deg/s and 10 m/s closes a full circle; the
	// chord-corrected prediction should land back on the start point.
	for i := 1; i <= 20; i++ {
		ts := float64(i)
		c.AddSpeed(ts-0.5, Measurement{Value: 10, Accuracy: 0.1})
		c.AddAngularSpeed(ts, Measurement{Value: 18, Accuracy: 0.1})
	}

	cur := c.Current()
	require.InDelta(t, 20, cur.Timestamp, 1e-9)
	require.InDelta(t, 50, cur.Position.LatitudeDeg, 1e-6)
	require.InDelta(t, 10, cur.Position.LongitudeDeg, 1e-6)
	require.InDelta(t, 90, cur.Heading.Value, 1e-6)
}

func TestGetSpeedBeforeCurrentTimestampDoesNotPredict(t *testing.T) {
	c := New(5, startPos(), Measurement{Value: 90, Accuracy: 1})
	c.AddSpeed(6, Measurement{Value: 10, Accuracy: 1})
	s := c.GetSpeed(3)
	require.Equal(t, c.Current().Speed.Value, s.Value)
}

func distanceBetween(a, b Position) float64 {
	dlat := (b.LatitudeDeg - a.LatitudeDeg) * math.Pi / 180 * 6371000
	dlon := (b.LongitudeDeg - a.LongitudeDeg) * math.Pi / 180 * 6371000 * math.Cos(a.LatitudeDeg*math.Pi/180)
	return math.Hypot(dlat, dlon)
}
