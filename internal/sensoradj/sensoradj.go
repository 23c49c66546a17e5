// Package sensoradj implements the per-sensor adjuster: the gating,
// raw/reference pairing, calibrator feeding, and corrected-output
// exposure shared by the gyroscope and odometer. It keeps the tagged-
// variant shape the wider engine favors: GyroAdjuster and OdoAdjuster
// are distinct concrete types composing a shared pairing engine rather
// than subclasses of a common base.
package sensoradj

import (
	"math"

	"github.com/relabs-tech/dr-engine/internal/calibrator"
	"github.com/relabs-tech/dr-engine/internal/geo"
	"github.com/relabs-tech/dr-engine/internal/normaliser"
)

// Phase names the adjuster's position in its state machine.
type Phase int

const (
	// Cold: no reference anchor stored yet.
	Cold Phase = iota
	// Pairing: a reference anchor is stored, awaiting a bracketing raw pair.
	Pairing
	// Solving: both anchors present; every paired arrival updates the calibrator.
	Solving
	// Reporting: calibrated_to has reached the reliability threshold.
	Reporting
)

func (p Phase) String() string {
	switch p {
	case Cold:
		return "cold"
	case Pairing:
		return "pairing"
	case Solving:
		return "solving"
	case Reporting:
		return "reporting"
	default:
		return "unknown"
	}
}

// refSenCallback is the capability a concrete adjuster (gyroscope,
// odometer) plugs into the shared pairing engine below — the
// `SensorAdjuster` trait of add_ref/add_raw/get_sensor dispatch.
type refSenCallback interface {
	setRefValue(oldTS, newTS, value, accuracy float64) bool
	getRefValue() float64
	setSenValue(oldRefTS, oldSenTS, newSenTS, value float64, valid bool) bool
	getSenValue() float64
}

// core is the shared raw/reference pairing engine: bootstrap both
// anchors, delegate gating to the domain-specific callback, feed the
// calibrator only when the reference timestamp brackets between the
// last two raw timestamps, and undo the in-flight window on any gate
// rejection.
type core struct {
	refTimestamp float64
	senTimestamp float64

	calib calibrator.State
	bias  normaliser.State
	scale normaliser.State
}

func newCore() core {
	return core{calib: calibrator.New(), bias: normaliser.New(), scale: normaliser.New()}
}

// seededCore builds a pairing engine whose bias/scale normalisers
// start from persisted state (the engine façade's cfg-string load)
// instead of empty.
func seededCore(bias, scale normaliser.State) core {
	return core{calib: calibrator.New(), bias: bias, scale: scale}
}

// biasState and scaleState expose the normaliser accumulators for
// persistence back into the cfg string on Stop.
func (c *core) biasState() normaliser.State  { return c.bias }
func (c *core) scaleState() normaliser.State { return c.scale }

// resetPairing discards in-flight anchors and the calibrator's
// windows, leaving the bias/scale normalisers (and thus calibration
// confidence) untouched. Used by the engine façade's Clean operation,
// which discards an accumulated track but keeps calibration.
func (c *core) resetPairing() {
	c.refTimestamp = 0
	c.senTimestamp = 0
	c.calib = calibrator.New()
}

func (c *core) addRef(ts, value, accuracy float64, cb refSenCallback) bool {
	if c.refTimestamp == 0 {
		c.refTimestamp = ts
		return false
	}
	if cb.setRefValue(c.refTimestamp, ts, value, accuracy) {
		c.refTimestamp = ts
		return true
	}
	c.resetUncompletedProcessing()
	return false
}

func (c *core) addSen(ts, value float64, valid bool, cb refSenCallback) bool {
	if c.refTimestamp <= 0 {
		c.senTimestamp = 0
		return false
	}
	if c.senTimestamp == 0 {
		c.senTimestamp = ts
		return false
	}
	if cb.setSenValue(c.refTimestamp, c.senTimestamp, ts, value, valid) {
		if isInRange(c.refTimestamp, c.senTimestamp, ts) {
			ref := cb.getRefValue()
			sen := cb.getSenValue()
			if !math.IsNaN(ref) && !math.IsNaN(sen) {
				c.calib.AddRef(ref)
				c.calib.AddRaw(sen)
				c.calib.Recalculate()
				if !math.IsNaN(c.calib.Bias) {
					c.bias.AddSample(c.calib.Bias)
				}
				if !math.IsNaN(c.calib.Scale) {
					c.scale.AddSample(c.calib.Scale)
				}
			}
		}
		c.senTimestamp = ts
		return true
	}
	c.resetUncompletedProcessing()
	return false
}

func (c *core) resetUncompletedProcessing() {
	c.refTimestamp = 0
	c.senTimestamp = 0
	c.calib.CleanLastStep()
}

// phase reports the adjuster's current state-machine position.
func (c *core) phase(reliableThreshold float64) Phase {
	switch {
	case c.refTimestamp == 0:
		return Cold
	case c.senTimestamp == 0:
		return Pairing
	case c.bias.ReliablePct < reliableThreshold:
		return Solving
	default:
		return Reporting
	}
}

// calibratedTo is the bias normaliser's reliable_pct: the conservative
// gate, since bias is the harder parameter to pin down.
func (c *core) calibratedTo() float64 {
	return c.bias.ReliablePct
}

// Output is the adjuster's corrected-sensor report, valid once
// CalibratedTo reaches the configured threshold.
type Output struct {
	Timestamp    float64
	Value        float64
	Accuracy     float64
	CalibratedTo float64
}

func isInRange(testedTS, beginTS, endTS float64) bool {
	return beginTS <= testedTS && endTS >= testedTS
}

func isIntervalOK(deltaTS, interval, hysteresis float64) bool {
	return geo.Epsilon < deltaTS && deltaTS < interval+hysteresis && deltaTS > interval-hysteresis
}

func isAccuracyOK(value, accuracy, ratio float64) bool {
	return value > accuracy*ratio
}

// predictValue linearly interpolates between two bracketing samples
// to the requested timestamp.
func predictValue(requestedTS, leftTS, rightTS, leftValue, rightValue float64) float64 {
	return (rightValue-leftValue)*(requestedTS-leftTS)/(rightTS-leftTS) + leftValue
}
