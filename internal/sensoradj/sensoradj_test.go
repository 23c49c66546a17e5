package sensoradj

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func gyroLimits() GyroLimits {
	return GyroLimits{
		HeadInterval: 1, HeadHysteresis: 0.2, HeadMin: 0, HeadMax: 360, HeadAccuracyRatio: 2,
		GyroInterval: 0.5, GyroHysteresis: 0.1, GyroMin: -500, GyroMax: 500,
		ReliableThreshold: 99.5,
	}
}

// A gyro alternating between two known left-turn rates should, over
// enough paired samples, converge calibrated_to toward 100 and report
// a corrected angular speed close to the rate last observed. The rate
// must vary across samples: a perfectly constant rate leaves the
// calibrator's two-window solve singular (see calibrator_test.go), so
// a steady single-rate turn would never calibrate.
func TestGyroAdjusterConverges(t *testing.T) {
	g := NewGyroAdjuster(gyroLimits())

	const trueScale = 2.0
	const trueBias = 5.0
	rates := []float64{10.0, 20.0}
	heading := 90.0
	rawClock := 0.0

	ts := 0.0
	var lastRate float64
	for i := 0; i < 200; i++ {
		lastRate = rates[i%2]
		heading = math.Mod(heading-lastRate+360, 360) // left turn, 1s steps
		ts += 1.0
		g.AddHeading(ts, heading, 0.05)

		// SignedAngle(old, new) is old-new, so a left turn (heading
		// decreasing) yields a positive reference angular velocity.
		raw := trueBias + lastRate/trueScale

		// Two raw samples per second bracket the reference timestamp.
		rawClock += 0.5
		g.AddGyro(rawClock, raw, true)
		rawClock += 0.5
		g.AddGyro(rawClock, raw, true)
	}

	out := g.Output()
	require.InDelta(t, 100, out.CalibratedTo, 1)
	require.InDelta(t, lastRate, out.Value, 1)
}

func TestGyroAdjusterColdUntilFirstReference(t *testing.T) {
	g := NewGyroAdjuster(gyroLimits())
	require.Equal(t, Cold, g.Phase())
	g.AddHeading(1, 90, 0.1)
	require.Equal(t, Pairing, g.Phase())
}

func TestGyroAdjusterOutOfRangeHeadingResetsAnchor(t *testing.T) {
	g := NewGyroAdjuster(gyroLimits())
	g.AddHeading(1, 90, 0.1)
	accepted := g.AddHeading(2, 400, 0.1) // out of [0,360] range
	require.False(t, accepted)
	require.Equal(t, Cold, g.Phase())
}

func odoLimits() OdoLimits {
	return OdoLimits{
		SpeedInterval: 1, SpeedHysteresis: 0.2, SpeedMin: 0, SpeedMax: 60, SpeedAccuracyRatio: 2,
		OdoInterval: 0.5, OdoHysteresis: 0.1, OdoMin: 0, OdoMax: 1e9,
		MaxTicks:          65535,
		ReliableThreshold: 99.5,
	}
}

func TestOdoAdjusterHandlesTickWrap(t *testing.T) {
	o := NewOdoAdjuster(odoLimits())
	o.AddSpeed(1, 10, 0.1)
	o.AddTicks(0.5, 64900, true) // first raw arrival only anchors the timestamp
	o.AddTicks(1, 65000, true)

	o.AddSpeed(2, 10, 0.1)
	accepted := o.AddTicks(1.5, 500, true) // wraps past MaxTicks
	require.True(t, accepted)
	// ticksPerSecond should reflect the wrapped distance, not a negative one.
	require.Greater(t, o.ticksPerSecond, 0.0)
}

// As with the gyro, the reference speed must vary across samples for
// the calibrator's two-window solve to stay non-singular; a constant
// reference speed would never let bias and scale separate.
func TestOdoAdjusterConverges(t *testing.T) {
	o := NewOdoAdjuster(odoLimits())

	const trueScale = 0.01
	const trueBias = 50.0
	speeds := []float64{5.0, 8.0}
	ticks := 0.0

	var lastSpeed float64
	for i := 0; i < 200; i++ {
		ts := float64(i + 1)
		lastSpeed = speeds[i%2]
		o.AddSpeed(ts, lastSpeed, 0.1)

		ticksPerSec := trueBias + lastSpeed/trueScale
		ticks += ticksPerSec * 0.5
		o.AddTicks(ts-0.5, ticks, true)
		ticks += ticksPerSec * 0.5
		o.AddTicks(ts, ticks, true)
	}

	out := o.Output()
	require.InDelta(t, 100, out.CalibratedTo, 1)
	require.InDelta(t, lastSpeed, out.Value, 1)
}
