package sensoradj

import (
	"math"

	"github.com/relabs-tech/dr-engine/internal/geo"
	"github.com/relabs-tech/dr-engine/internal/normaliser"
)

// GyroLimits parameterises a GyroAdjuster's validation gates.
type GyroLimits struct {
	HeadInterval, HeadHysteresis, HeadMin, HeadMax, HeadAccuracyRatio float64
	GyroInterval, GyroHysteresis, GyroMin, GyroMax                   float64
	ReliableThreshold                                                float64
}

// GyroAdjuster calibrates and corrects a single-axis rate gyroscope
// against a true-north heading reference.
type GyroAdjuster struct {
	core
	limits GyroLimits

	headValue           float64
	headAccuracy        float64
	headAngularVelocity float64
	gyroValue           float64
	gyroValid           bool
	gyroAngularVelocity float64
}

// NewGyroAdjuster returns a gyro adjuster with empty calibrator and
// normaliser state.
func NewGyroAdjuster(limits GyroLimits) *GyroAdjuster {
	return newGyroAdjuster(limits, newCore())
}

// SeedGyroAdjuster returns a gyro adjuster whose bias/scale
// normalisers are restored from persisted state, e.g. loaded from the
// engine façade's cfg string on start.
func SeedGyroAdjuster(limits GyroLimits, bias, scale normaliser.State) *GyroAdjuster {
	return newGyroAdjuster(limits, seededCore(bias, scale))
}

func newGyroAdjuster(limits GyroLimits, c core) *GyroAdjuster {
	return &GyroAdjuster{
		core:                c,
		limits:              limits,
		headValue:           math.NaN(),
		headAccuracy:        math.NaN(),
		headAngularVelocity: math.NaN(),
		gyroValue:           math.NaN(),
		gyroAngularVelocity: math.NaN(),
	}
}

// BiasState and ScaleState expose the normaliser accumulators for
// persistence back into the cfg string.
func (g *GyroAdjuster) BiasState() normaliser.State  { return g.biasState() }
func (g *GyroAdjuster) ScaleState() normaliser.State { return g.scaleState() }

// ResetPairing discards the in-flight reference/raw anchors and the
// calibrator's windows, without touching calibration confidence.
func (g *GyroAdjuster) ResetPairing() {
	g.resetPairing()
	g.headValue = math.NaN()
	g.headAccuracy = math.NaN()
	g.headAngularVelocity = math.NaN()
	g.gyroValue = math.NaN()
	g.gyroValid = false
	g.gyroAngularVelocity = math.NaN()
}

// AddHeading submits a reference heading arrival.
func (g *GyroAdjuster) AddHeading(ts, headingDeg, accuracyDeg float64) bool {
	return g.addRef(ts, headingDeg, accuracyDeg, g)
}

// AddGyro submits a raw gyroscope arrival.
func (g *GyroAdjuster) AddGyro(ts, raw float64, valid bool) bool {
	return g.addSen(ts, raw, valid, g)
}

// Output returns the adjuster's corrected angular-speed estimate.
func (g *GyroAdjuster) Output() Output {
	return Output{
		Timestamp:    g.senTimestamp,
		Value:        g.scale.Mean * (g.gyroValue - g.bias.Mean),
		Accuracy:     g.bias.Mld * (math.Abs(g.scale.Mean) + g.scale.Mld),
		CalibratedTo: g.calibratedTo(),
	}
}

// Phase reports the adjuster's current state-machine position.
func (g *GyroAdjuster) Phase() Phase {
	return g.phase(g.limits.ReliableThreshold)
}

func (g *GyroAdjuster) setRefValue(oldTS, newTS, head, acc float64) bool {
	g.headAngularVelocity = math.NaN()
	if head >= g.limits.HeadMin && head <= g.limits.HeadMax {
		deltaTS := newTS - oldTS
		if isIntervalOK(deltaTS, g.limits.HeadInterval, g.limits.HeadHysteresis) {
			if !math.IsNaN(g.headValue) {
				angle := geo.SignedAngle(g.headValue, head)
				angleAccuracy := g.headAccuracy + acc
				if isAccuracyOK(math.Abs(angle), angleAccuracy, g.limits.HeadAccuracyRatio) {
					g.headAngularVelocity = angle / deltaTS
				}
			}
			g.headValue = head
			g.headAccuracy = acc
			return true
		}
	}
	g.headValue = math.NaN()
	return false
}

func (g *GyroAdjuster) getRefValue() float64 {
	return g.headAngularVelocity
}

func (g *GyroAdjuster) setSenValue(oldHeadTS, oldGyroTS, newGyroTS, gyro float64, valid bool) bool {
	g.gyroAngularVelocity = math.NaN()
	if valid && gyro >= g.limits.GyroMin && gyro <= g.limits.GyroMax {
		deltaTS := newGyroTS - oldGyroTS
		if isIntervalOK(deltaTS, g.limits.GyroInterval, g.limits.GyroHysteresis) {
			if g.gyroValid {
				g.gyroAngularVelocity = predictValue(oldHeadTS, oldGyroTS, newGyroTS, g.gyroValue, gyro)
			}
			g.gyroValue = gyro
			g.gyroValid = true
			return true
		}
	}
	g.gyroValid = false
	return false
}

func (g *GyroAdjuster) getSenValue() float64 {
	return g.gyroAngularVelocity
}
