package sensoradj

import (
	"math"

	"github.com/relabs-tech/dr-engine/internal/normaliser"
)

// OdoLimits parameterises an OdoAdjuster's validation gates.
type OdoLimits struct {
	SpeedInterval, SpeedHysteresis, SpeedMin, SpeedMax, SpeedAccuracyRatio float64
	OdoInterval, OdoHysteresis, OdoMin, OdoMax                            float64
	MaxTicks                                                              float64
	ReliableThreshold                                                     float64
}

// OdoAdjuster calibrates and corrects a wheel-tick odometer against a
// reference speed.
type OdoAdjuster struct {
	core
	limits OdoLimits

	speed float64

	ticks             float64
	ticksValid        bool
	ticksPerSecond    float64
	odoLinearVelocity float64
}

// NewOdoAdjuster returns an odometer adjuster with empty calibrator
// and normaliser state.
func NewOdoAdjuster(limits OdoLimits) *OdoAdjuster {
	return newOdoAdjuster(limits, newCore())
}

// SeedOdoAdjuster returns an odometer adjuster whose bias/scale
// normalisers are restored from persisted state.
func SeedOdoAdjuster(limits OdoLimits, bias, scale normaliser.State) *OdoAdjuster {
	return newOdoAdjuster(limits, seededCore(bias, scale))
}

func newOdoAdjuster(limits OdoLimits, c core) *OdoAdjuster {
	return &OdoAdjuster{
		core:              c,
		limits:            limits,
		speed:             math.NaN(),
		ticks:             math.NaN(),
		ticksPerSecond:    math.NaN(),
		odoLinearVelocity: math.NaN(),
	}
}

// BiasState and ScaleState expose the normaliser accumulators for
// persistence back into the cfg string.
func (o *OdoAdjuster) BiasState() normaliser.State  { return o.biasState() }
func (o *OdoAdjuster) ScaleState() normaliser.State { return o.scaleState() }

// ResetPairing discards the in-flight reference/raw anchors and the
// calibrator's windows, without touching calibration confidence.
func (o *OdoAdjuster) ResetPairing() {
	o.resetPairing()
	o.speed = math.NaN()
	o.ticks = math.NaN()
	o.ticksValid = false
	o.ticksPerSecond = math.NaN()
	o.odoLinearVelocity = math.NaN()
}

// AddSpeed submits a reference speed arrival.
func (o *OdoAdjuster) AddSpeed(ts, speedMS, accuracyMS float64) bool {
	return o.addRef(ts, speedMS, accuracyMS, o)
}

// AddTicks submits a raw odometer tick-counter arrival.
func (o *OdoAdjuster) AddTicks(ts, ticks float64, valid bool) bool {
	return o.addSen(ts, ticks, valid, o)
}

// Output returns the adjuster's corrected speed estimate.
func (o *OdoAdjuster) Output() Output {
	return Output{
		Timestamp:    o.senTimestamp,
		Value:        o.scale.Mean * (o.ticksPerSecond - o.bias.Mean),
		Accuracy:     o.bias.Mld * (math.Abs(o.scale.Mean) + o.scale.Mld),
		CalibratedTo: o.calibratedTo(),
	}
}

// Phase reports the adjuster's current state-machine position.
func (o *OdoAdjuster) Phase() Phase {
	return o.phase(o.limits.ReliableThreshold)
}

func (o *OdoAdjuster) setRefValue(oldTS, newTS, speed, accuracy float64) bool {
	o.speed = math.NaN()
	if speed >= o.limits.SpeedMin && speed <= o.limits.SpeedMax {
		deltaTS := newTS - oldTS
		if isIntervalOK(deltaTS, o.limits.SpeedInterval, o.limits.SpeedHysteresis) {
			if isAccuracyOK(speed, accuracy, o.limits.SpeedAccuracyRatio) {
				o.speed = speed
			}
			return true
		}
	}
	return false
}

func (o *OdoAdjuster) getRefValue() float64 {
	return o.speed
}

func (o *OdoAdjuster) setSenValue(oldSpeedTS, oldTicksTS, newTicksTS, ticks float64, valid bool) bool {
	o.odoLinearVelocity = math.NaN()
	if valid && ticks >= o.limits.OdoMin && ticks <= o.limits.OdoMax {
		deltaTS := newTicksTS - oldTicksTS
		if isIntervalOK(deltaTS, o.limits.OdoInterval, o.limits.OdoHysteresis) {
			var ticksPerSecond float64
			if o.ticksValid {
				switch {
				case ticks > o.ticks:
					ticksPerSecond = (ticks - o.ticks) / deltaTS
				case ticks < o.ticks:
					ticksPerSecond = (ticks + o.limits.MaxTicks + 1 - o.ticks) / deltaTS
				}
				o.odoLinearVelocity = predictValue(oldSpeedTS, oldTicksTS, newTicksTS, o.ticksPerSecond, ticksPerSecond)
			}
			o.ticks = ticks
			o.ticksValid = true
			o.ticksPerSecond = ticksPerSecond
			return true
		}
	}
	o.ticksValid = false
	return false
}

func (o *OdoAdjuster) getSenValue() float64 {
	return o.odoLinearVelocity
}
