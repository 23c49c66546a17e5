package engine

import (
	"testing"

	"github.com/relabs-tech/dr-engine/internal/normaliser"
	"github.com/stretchr/testify/require"
)

func TestSensorCfgRoundTrip(t *testing.T) {
	n := normaliser.New()
	for _, v := range []float64{1.01, 2.02, 3.03} {
		n.AddSample(v)
	}
	cfg := sensorCfg{
		typeID:        SensorGyroZ,
		scale:         n,
		bias:          n,
		reliableLimit: 87.6,
	}
	str := serializeSensorCfg(cfg)
	got := parseSensorCfg(str, SensorGyroZ)

	require.Equal(t, cfg.typeID, got.typeID)
	require.InDelta(t, cfg.reliableLimit, got.reliableLimit, 0.05)
	require.InDelta(t, cfg.scale.AccValue, got.scale.AccValue, 1e-6)
	require.InDelta(t, cfg.scale.AccMld, got.scale.AccMld, 1e-6)
	require.InDelta(t, cfg.scale.AccReliable, got.scale.AccReliable, 0.05)
	require.Equal(t, cfg.scale.SampleCount, got.scale.SampleCount)
}

func TestSensorCfgDefaultMatchesUnknownMarker(t *testing.T) {
	str := serializeSensorCfg(defaultSensorCfg(SensorUnknown))
	require.Equal(t, "CFGSENSOR,0,0.00000000,0.00000000,0.0,0,0.00000000,0.00000000,0.0,0,99.5,XX", str)
}

func TestSensorCfgParseFailureFallsBackToDefault(t *testing.T) {
	got := parseSensorCfg("not,a,valid,cfg", SensorGyroZ)
	require.Equal(t, SensorGyroZ, got.typeID)
	require.Equal(t, DefaultReliableLimit, got.reliableLimit)
	require.Equal(t, int64(0), got.scale.SampleCount)
}

func TestParseConfigStringDispatchesByType(t *testing.T) {
	gyro := defaultSensorCfg(SensorGyroZ)
	gyro.reliableLimit = 70
	odo := defaultSensorCfg(SensorOdometerAxis)
	odo.reliableLimit = 80
	cfg := serializeConfigString(gyro, odo)

	gotGyro, gotOdo := parseConfigString(cfg)
	require.InDelta(t, 70, gotGyro.reliableLimit, 0.05)
	require.InDelta(t, 80, gotOdo.reliableLimit, 0.05)
}

func TestParseConfigStringEmptyUsesDefaults(t *testing.T) {
	gyro, odo := parseConfigString("")
	require.Equal(t, DefaultReliableLimit, gyro.reliableLimit)
	require.Equal(t, DefaultReliableLimit, odo.reliableLimit)
}
