package engine

import (
	"testing"

	"github.com/relabs-tech/dr-engine/internal/fusion"
	"github.com/relabs-tech/dr-engine/internal/sensoradj"
	"github.com/stretchr/testify/require"
)

func testTuning() Tuning {
	return Tuning{
		Gyro: sensoradj.GyroLimits{
			HeadInterval: 1, HeadHysteresis: 0.2, HeadMin: 0, HeadMax: 360, HeadAccuracyRatio: 2,
			GyroInterval: 0.5, GyroHysteresis: 0.1, GyroMin: -500, GyroMax: 500,
		},
		Odo: sensoradj.OdoLimits{
			SpeedInterval: 1, SpeedHysteresis: 0.2, SpeedMin: 0, SpeedMax: 60, SpeedAccuracyRatio: 2,
			OdoInterval: 0.5, OdoHysteresis: 0.1, OdoMin: 0, OdoMax: 1e9, MaxTicks: 65535,
		},
	}
}

func startPos() fusion.Position {
	return fusion.Position{LatitudeDeg: 51.5, LongitudeDeg: -0.1, HorizontalAccuracyM: 5}
}

func TestReceivePositionReadyImmediatelyAfterStart(t *testing.T) {
	// A freshly started engine is seeded with a valid position, so
	// receive_position is ready before any measurement arrives.
	e := Start("", testTuning(), 0, startPos(), 90, 1)
	_, ok := e.ReceivePosition()
	require.True(t, ok)
}

func TestSendPositionStaleRejected(t *testing.T) {
	e := Start("", testTuning(), 10, startPos(), 90, 1)
	accepted := e.SendCoordinates(9, 51.5, -0.1, 5)
	require.False(t, accepted)
	pos, ok := e.ReceivePosition()
	require.True(t, ok)
	require.Equal(t, 10.0, pos.Timestamp)
}

func TestSendCoordinatesAccumulatesDistance(t *testing.T) {
	e := Start("", testTuning(), 0, startPos(), 90, 1)
	e.SendCoordinates(1, 51.5001, -0.1, 5)
	d, _, ok := e.ReceiveDistance()
	require.True(t, ok)
	require.Greater(t, d, 0.0)
}

func TestStopSerializesBothAdjusters(t *testing.T) {
	e := Start("", testTuning(), 0, startPos(), 90, 1)
	cfg := e.Stop()
	gyro, odo := parseConfigString(cfg)
	require.Equal(t, SensorGyroZ, gyro.typeID)
	require.Equal(t, SensorOdometerAxis, odo.typeID)
}

func TestStartRestoresPersistedCalibration(t *testing.T) {
	e1 := Start("", testTuning(), 0, startPos(), 90, 1)
	for i := 0; i < 20; i++ {
		ts := float64(i + 1)
		e1.SendSpeed(ts, 5.0+float64(i%2), 0.1)
	}
	saved := e1.Stop()

	e2 := Start(saved, testTuning(), 100, startPos(), 90, 1)
	require.Equal(t, e1.odo.BiasState().SampleCount, e2.odo.BiasState().SampleCount)
}

func TestCleanResetsTrackButKeepsCalibration(t *testing.T) {
	e := Start("", testTuning(), 0, startPos(), 90, 1)
	e.SendCoordinates(1, 51.6, -0.1, 5)
	before := e.gyro.BiasState().SampleCount

	e.Clean()

	pos, ok := e.ReceivePosition()
	require.True(t, ok)
	require.InDelta(t, startPos().LatitudeDeg, pos.LatitudeDeg, 1e-9)
	require.Equal(t, before, e.gyro.BiasState().SampleCount)
}

func TestGyroReportsOnceCalibrated(t *testing.T) {
	e := Start("", testTuning(), 0, startPos(), 90, 1)

	heading := 90.0
	rawClock := 0.0
	rates := []float64{10.0, 20.0}
	for i := 0; i < 200; i++ {
		rate := rates[i%2]
		heading = mod360(heading - rate)
		ts := float64(i + 1)
		e.SendHeading(ts, heading, 0.05)

		raw := 5.0 + rate/2.0
		rawClock += 0.5
		e.SendGyro(rawClock, raw)
		rawClock += 0.5
		e.SendGyro(rawClock, raw)
	}

	status := e.ReceiveGyroStatus()
	require.InDelta(t, 100, status.ReliablePct, 1)

	// With the gyro's corrected output being forwarded, the fused
	// position is still available.
	pos, ok := e.ReceivePosition()
	require.True(t, ok)
	_ = pos
}

func mod360(v float64) float64 {
	for v < 0 {
		v += 360
	}
	for v >= 360 {
		v -= 360
	}
	return v
}
