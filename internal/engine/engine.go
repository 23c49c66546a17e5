// Package engine implements the dead-reckoning façade: it owns the
// fusion core and both sensor adjusters, routes every inbound
// measurement to the right component, and publishes the latest fused
// state and calibration status. It is the only exported surface a host
// process (an MQTT bridge, a CLI, a test) talks to.
package engine

import (
	"math"

	"github.com/relabs-tech/dr-engine/internal/fusion"
	"github.com/relabs-tech/dr-engine/internal/sensoradj"
)

// Tuning groups the two adjusters' validation-gate parameters,
// supplied by the host's configuration rather than the persisted cfg
// string — only calibration progress round-trips through cfg.
type Tuning struct {
	Gyro sensoradj.GyroLimits
	Odo  sensoradj.OdoLimits
}

// Engine owns one fusion core and the two sensor adjusters for one
// running instance. The caller holds the handle; there is no
// process-wide registry. Two instances are fully independent.
type Engine struct {
	fusion *fusion.Core
	gyro   *sensoradj.GyroAdjuster
	odo    *sensoradj.OdoAdjuster
	tuning Tuning

	seedTS      float64
	seedPos     fusion.Position
	seedHeading fusion.Measurement
}

// Start constructs a running engine seeded with an initial position
// and heading at ts, restoring calibration confidence from a
// previously persisted cfg string (pass "" for a cold start). A
// malformed cfg string yields a default-seeded adjuster per sensor.
func Start(cfg string, tuning Tuning, ts float64, startPos fusion.Position, headingDeg, headingAccDeg float64) *Engine {
	gyroCfg, odoCfg := parseConfigString(cfg)

	// A persisted record carries the threshold it was stopped with;
	// otherwise the host's tuning applies, with the packaged default as
	// the last resort.
	gyroLimits := tuning.Gyro
	if gyroCfg.persisted || gyroLimits.ReliableThreshold <= 0 {
		gyroLimits.ReliableThreshold = gyroCfg.reliableLimit
	}
	odoLimits := tuning.Odo
	if odoCfg.persisted || odoLimits.ReliableThreshold <= 0 {
		odoLimits.ReliableThreshold = odoCfg.reliableLimit
	}

	startHeading := fusion.Measurement{Value: headingDeg, Accuracy: headingAccDeg}

	return &Engine{
		fusion:      fusion.New(ts, startPos, startHeading),
		gyro:        sensoradj.SeedGyroAdjuster(gyroLimits, gyroCfg.bias, gyroCfg.scale),
		odo:         sensoradj.SeedOdoAdjuster(odoLimits, odoCfg.bias, odoCfg.scale),
		tuning:      Tuning{Gyro: gyroLimits, Odo: odoLimits},
		seedTS:      ts,
		seedPos:     startPos,
		seedHeading: startHeading,
	}
}

// Stop serialises the current calibration confidence back into a cfg
// string the host can persist and hand to the next Start.
func (e *Engine) Stop() string {
	gyro := sensorCfg{
		typeID:        SensorGyroZ,
		bias:          e.gyro.BiasState(),
		scale:         e.gyro.ScaleState(),
		reliableLimit: e.tuning.Gyro.ReliableThreshold,
	}
	odo := sensorCfg{
		typeID:        SensorOdometerAxis,
		bias:          e.odo.BiasState(),
		scale:         e.odo.ScaleState(),
		reliableLimit: e.tuning.Odo.ReliableThreshold,
	}
	return serializeConfigString(gyro, odo)
}

// Clean discards the accumulated track and any in-flight sensor
// pairing, restoring the fusion state and both adjusters to their
// just-started condition, but leaves calibration confidence (the
// bias/scale normalisers) untouched — a host that detects a GPS jump
// can call this without losing calibration.
func (e *Engine) Clean() {
	e.fusion.Reset(e.seedTS, e.seedPos, e.seedHeading)
	e.gyro.ResetPairing()
	e.odo.ResetPairing()
}

// Calculate is a no-op placeholder the host may call after streaming
// inputs to force a fusion resolution; every Send* call already
// resolves the fusion state immediately, so there is nothing to defer.
func (e *Engine) Calculate() {}

// SendCoordinates submits an absolute position fix. It is rejected
// (return false) if the fields are out of range or the timestamp is
// not newer than the current state.
func (e *Engine) SendCoordinates(ts, latDeg, lonDeg, horizAccM float64) bool {
	pos := fusion.Position{LatitudeDeg: latDeg, LongitudeDeg: lonDeg, HorizontalAccuracyM: horizAccM}
	if !pos.Valid() {
		return false
	}
	return e.fusion.AddPosition(ts, pos)
}

// SendHeading submits an absolute heading reference. It both merges
// into the fusion state directly and trains the gyroscope adjuster's
// calibration: reference measurements feed the fusion core and the
// adjusters independently.
func (e *Engine) SendHeading(ts, headingDeg, accDeg float64) bool {
	accepted := false
	m := fusion.Measurement{Value: headingDeg, Accuracy: accDeg}
	if m.Valid() && headingDeg >= 0 && headingDeg < 360 {
		accepted = e.fusion.AddHeading(ts, m)
	}
	e.gyro.AddHeading(ts, headingDeg, accDeg)
	return accepted
}

// SendSpeed submits an absolute speed reference, merging into the
// fusion state and training the odometer adjuster.
func (e *Engine) SendSpeed(ts, speedMS, accMS float64) bool {
	accepted := false
	m := fusion.Measurement{Value: speedMS, Accuracy: accMS}
	if m.Valid() && speedMS >= 0 {
		accepted = e.fusion.AddSpeed(ts, m)
	}
	e.odo.AddSpeed(ts, speedMS, accMS)
	return accepted
}

// SendGyro submits a raw gyroscope sample. Once the gyro adjuster's
// calibration reaches its reliable threshold, its corrected
// angular-speed output is forwarded into the fusion core.
func (e *Engine) SendGyro(ts, raw float64) bool {
	valid := !math.IsNaN(raw) && !math.IsInf(raw, 0)
	accepted := e.gyro.AddGyro(ts, raw, valid)
	if e.gyro.Phase() == sensoradj.Reporting {
		out := e.gyro.Output()
		e.fusion.AddAngularSpeed(out.Timestamp, fusion.Measurement{Value: out.Value, Accuracy: out.Accuracy})
	}
	return accepted
}

// SendOdo submits a raw wheel-tick odometer sample. Once the odometer
// adjuster's calibration reaches its reliable threshold, its corrected
// speed output is forwarded into the fusion core.
func (e *Engine) SendOdo(ts, raw float64) bool {
	valid := !math.IsNaN(raw) && !math.IsInf(raw, 0)
	accepted := e.odo.AddTicks(ts, raw, valid)
	if e.odo.Phase() == sensoradj.Reporting {
		out := e.odo.Output()
		e.fusion.AddSpeed(out.Timestamp, fusion.Measurement{Value: out.Value, Accuracy: out.Accuracy})
	}
	return accepted
}

// Position is the fused-state snapshot a ReceivePosition query returns.
type Position struct {
	Timestamp           float64
	LatitudeDeg         float64
	LongitudeDeg        float64
	HorizontalAccuracyM float64
	HeadingDeg          float64
	HeadingAccuracyDeg  float64
	SpeedMS             float64
	SpeedAccuracyMS     float64
}

// ReceivePosition returns the latest fused state. ok is false
// (NotReady) when the current position is not valid; the start
// position seeded by Start counts as valid.
func (e *Engine) ReceivePosition() (Position, bool) {
	cur := e.fusion.Current()
	if !cur.Position.Valid() {
		return Position{}, false
	}
	return Position{
		Timestamp:           cur.Timestamp,
		LatitudeDeg:         cur.Position.LatitudeDeg,
		LongitudeDeg:        cur.Position.LongitudeDeg,
		HorizontalAccuracyM: cur.Position.HorizontalAccuracyM,
		HeadingDeg:          cur.Heading.Value,
		HeadingAccuracyDeg:  cur.Heading.Accuracy,
		SpeedMS:             cur.Speed.Value,
		SpeedAccuracyMS:     cur.Speed.Accuracy,
	}, true
}

// ReceiveDistance returns the cumulative great-circle distance
// travelled since Start (or the last Clean) and its accuracy.
func (e *Engine) ReceiveDistance() (distanceM, accuracyM float64, ok bool) {
	d, acc := e.fusion.Distance()
	return d, acc, true
}

// SensorStatus is one adjuster's calibration report: the smoothed
// bias/scale estimates, how reliable they are, and the accuracy of the
// corrected output they produce.
type SensorStatus struct {
	Bias        float64
	Scale       float64
	ReliablePct float64
	Accuracy    float64
}

// ReceiveGyroStatus returns the gyroscope adjuster's current
// calibration.
func (e *Engine) ReceiveGyroStatus() SensorStatus {
	out := e.gyro.Output()
	return SensorStatus{
		Bias:        e.gyro.BiasState().Mean,
		Scale:       e.gyro.ScaleState().Mean,
		ReliablePct: out.CalibratedTo,
		Accuracy:    out.Accuracy,
	}
}

// ReceiveOdoStatus returns the odometer adjuster's current
// calibration.
func (e *Engine) ReceiveOdoStatus() SensorStatus {
	out := e.odo.Output()
	return SensorStatus{
		Bias:        e.odo.BiasState().Mean,
		Scale:       e.odo.ScaleState().Mean,
		ReliablePct: out.CalibratedTo,
		Accuracy:    out.Accuracy,
	}
}
