// Package fusion implements the accuracy-weighted dead-reckoning
// estimator: a single-timestamp State advanced by great-circle
// prediction and corrected by reciprocal-accuracy-weighted merges of
// position, heading, speed, and angular-speed measurements.
package fusion

import (
	"math"

	"github.com/relabs-tech/dr-engine/internal/geo"
)

// Measurement is a scalar value with an accuracy. It is invalid when
// either field is non-finite.
type Measurement struct {
	Value    float64
	Accuracy float64
}

// Valid reports whether m carries a usable reading.
func (m Measurement) Valid() bool {
	return !math.IsNaN(m.Value) && !math.IsInf(m.Value, 0) &&
		!math.IsNaN(m.Accuracy) && !math.IsInf(m.Accuracy, 0) && m.Accuracy > 0
}

// invalidMeasurement is the canonical sentinel for "no reading yet".
func invalidMeasurement() Measurement {
	return Measurement{Value: math.NaN(), Accuracy: math.NaN()}
}

// Position is a geographic fix with a horizontal accuracy in meters.
type Position struct {
	LatitudeDeg         float64
	LongitudeDeg        float64
	HorizontalAccuracyM float64
}

// Valid reports whether p is a usable fix.
func (p Position) Valid() bool {
	return p.LatitudeDeg >= -90 && p.LatitudeDeg <= 90 &&
		p.LongitudeDeg >= -180 && p.LongitudeDeg <= 180 &&
		!math.IsNaN(p.HorizontalAccuracyM) && p.HorizontalAccuracyM > 0
}

func (p Position) latLon() geo.LatLon {
	return geo.LatLon{LatitudeDeg: p.LatitudeDeg, LongitudeDeg: p.LongitudeDeg}
}

func invalidPosition() Position {
	return Position{LatitudeDeg: math.NaN(), LongitudeDeg: math.NaN(), HorizontalAccuracyM: math.NaN()}
}

// State is the fusion core's single-timestamp estimate.
type State struct {
	Timestamp    float64
	Position     Position
	Heading      Measurement
	Speed        Measurement
	AngularSpeed Measurement
}

// Core owns the current State and the cumulative-distance ledger. Zero
// value is not ready for use; construct with New.
type Core struct {
	current State

	distance         float64
	distanceAccuracy float64
	hasCurrent       bool
}

// New returns a fusion core seeded with an initial position and
// heading at the given timestamp; speed and angular speed start
// invalid, matching a freshly started engine with no motion history.
func New(ts float64, start Position, heading Measurement) *Core {
	return &Core{
		current: State{
			Timestamp:    ts,
			Position:     start,
			Heading:      heading,
			Speed:        invalidMeasurement(),
			AngularSpeed: invalidMeasurement(),
		},
		hasCurrent: true,
	}
}

// Reset restores the core to a just-started condition at the given
// position/heading and zeroes the accumulated distance ledger and its
// accuracy.
func (c *Core) Reset(ts float64, start Position, heading Measurement) {
	c.current = State{
		Timestamp:    ts,
		Position:     start,
		Heading:      heading,
		Speed:        invalidMeasurement(),
		AngularSpeed: invalidMeasurement(),
	}
	c.distance = 0
	c.distanceAccuracy = 0
}

// Current returns the fusion core's latest state.
func (c *Core) Current() State {
	return c.current
}

// Distance returns the accumulated great-circle travel distance since
// start (or the last Reset) and its accuracy.
func (c *Core) Distance() (float64, float64) {
	return c.distance, c.distanceAccuracy
}

// predict advances cur to ts1 using great-circle dead reckoning. It
// does not mutate cur.
func predict(cur State, ts1 float64) State {
	deltaT := ts1 - cur.Timestamp
	out := cur
	out.Timestamp = ts1

	h0 := cur.Heading
	omega0 := cur.AngularSpeed
	v0 := cur.Speed

	// Heading prediction.
	switch {
	case !h0.Valid():
		out.Heading = invalidMeasurement()
	case !omega0.Valid():
		out.Heading = Measurement{Value: h0.Value, Accuracy: h0.Accuracy * (1 + deltaT)}
	default:
		out.Heading = Measurement{
			Value:    geo.ToHeadingFromRate(h0.Value, deltaT, omega0.Value),
			Accuracy: h0.Accuracy + omega0.Accuracy*deltaT,
		}
	}

	// Position prediction: chord/arc correction for the turn during deltaT.
	switch {
	case !cur.Position.Valid():
	case !v0.Valid():
		out.Position.HorizontalAccuracyM = cur.Position.HorizontalAccuracyM * (1 + deltaT)
	case !h0.Valid():
		// Moving at a known speed in an unknown direction: the fix can
		// only degrade by the whole travelled distance.
		out.Position.HorizontalAccuracyM = cur.Position.HorizontalAccuracyM + (v0.Value+v0.Accuracy)*deltaT
	default:
		distance := v0.Value * deltaT
		chord := distance
		chordHeading := h0.Value
		headingAccuracyGrowth := 0.0
		if omega0.Valid() {
			halfTurn := math.Abs(geo.ToRadians(omega0.Value * deltaT / 2))
			if halfTurn < geo.PI/2 {
				chordHeading = geo.ToHeadingFromRate(h0.Value, deltaT/2, omega0.Value)
				if halfTurn > 0 {
					chord = distance * math.Sin(halfTurn) / halfTurn
				}
			}
			headingAccuracyGrowth = omega0.Accuracy * deltaT
		}
		fi := geo.ToRadians(h0.Accuracy + headingAccuracyGrowth)
		if math.Abs(fi) < geo.PI/2 {
			newLatLon := geo.ToPosition(cur.Position.latLon(), chord, chordHeading)
			out.Position = Position{
				LatitudeDeg:         newLatLon.LatitudeDeg,
				LongitudeDeg:        newLatLon.LongitudeDeg,
				HorizontalAccuracyM: (cur.Position.HorizontalAccuracyM + v0.Accuracy*deltaT) / math.Cos(fi),
			}
		} else {
			out.Position = invalidPosition()
		}
	}

	// Speed and angular-speed values carry forward; their accuracies
	// inflate with the elapsed time until a fresh reading merges in.
	if v0.Valid() {
		out.Speed = Measurement{Value: v0.Value, Accuracy: v0.Accuracy * (1 + deltaT)}
	}
	if omega0.Valid() {
		out.AngularSpeed = Measurement{Value: omega0.Value, Accuracy: omega0.Accuracy * (1 + deltaT)}
	}

	return out
}

// mergeScalar is the reciprocal-accuracy-weighted scalar merge: the
// reading with the smaller accuracy figure receives the larger weight.
func mergeScalar(a, b Measurement) Measurement {
	if !a.Valid() {
		return b
	}
	if !b.Valid() {
		return a
	}
	k := a.Accuracy + b.Accuracy
	if geo.IsEpsilon(k) {
		return a
	}
	return Measurement{
		Value:    (a.Value*(k-a.Accuracy) + b.Value*(k-b.Accuracy)) / k,
		Accuracy: (a.Accuracy*(k-a.Accuracy) + b.Accuracy*(k-b.Accuracy)) / k,
	}
}

// mergeHeading merges two heading measurements modulo 360.
func mergeHeading(a, b Measurement) Measurement {
	av, bv := a.Value, b.Value
	if a.Valid() && b.Valid() {
		if av-bv > 180 {
			bv += 360
		} else if av-bv < -180 {
			av += 360
		}
	}
	merged := mergeScalar(Measurement{Value: av, Accuracy: a.Accuracy}, Measurement{Value: bv, Accuracy: b.Accuracy})
	merged.Value = math.Mod(math.Mod(merged.Value, 360)+360, 360)
	return merged
}

// mergeLongitude merges two longitudes, unwrapping across the
// antimeridian the same way headings unwrap across the 0/360 seam.
func mergeLongitude(a, b Measurement) Measurement {
	av, bv := a.Value, b.Value
	if av-bv > 180 {
		bv += 360
	} else if av-bv < -180 {
		av += 360
	}
	merged := mergeScalar(Measurement{Value: av, Accuracy: a.Accuracy}, Measurement{Value: bv, Accuracy: b.Accuracy})
	merged.Value = math.Mod(merged.Value+540, 360) - 180
	return merged
}

// mergePosition merges two positions axis-independently, using the
// horizontal accuracy as the accuracy of both axes.
func mergePosition(a, b Position) Position {
	if !a.Valid() {
		return b
	}
	if !b.Valid() {
		return a
	}
	lat := mergeScalar(
		Measurement{Value: a.LatitudeDeg, Accuracy: a.HorizontalAccuracyM},
		Measurement{Value: b.LatitudeDeg, Accuracy: b.HorizontalAccuracyM},
	)
	lon := mergeLongitude(
		Measurement{Value: a.LongitudeDeg, Accuracy: a.HorizontalAccuracyM},
		Measurement{Value: b.LongitudeDeg, Accuracy: b.HorizontalAccuracyM},
	)
	return Position{LatitudeDeg: lat.Value, LongitudeDeg: lon.Value, HorizontalAccuracyM: lat.Accuracy}
}

// AddPosition merges a new position fix at ts, then refreshes derived
// speed from the position delta. Rejects ts <= current.ts.
func (c *Core) AddPosition(ts float64, pos Position) bool {
	if !c.hasCurrent || ts <= c.current.Timestamp {
		return false
	}
	oldPos := c.current.Position
	oldTS := c.current.Timestamp

	predicted := predict(c.current, ts)
	predicted.Position = mergePosition(predicted.Position, pos)

	if oldPos.Valid() && pos.Valid() {
		deltaT := ts - oldTS
		if deltaT > geo.Epsilon {
			impliedSpeed := Measurement{
				Value:    geo.ToDistancePrecise(oldPos.latLon(), pos.latLon()) / deltaT,
				Accuracy: (oldPos.HorizontalAccuracyM + pos.HorizontalAccuracyM) / deltaT,
			}
			predicted.Speed = mergeScalar(predicted.Speed, impliedSpeed)
		}
		c.distance += geo.ToDistancePrecise(oldPos.latLon(), pos.latLon())
		c.distanceAccuracy += math.Abs(pos.HorizontalAccuracyM - oldPos.HorizontalAccuracyM)
	}

	c.current = predicted
	return true
}

// AddHeading merges a new heading measurement at ts, then refreshes
// derived angular speed from the heading delta.
func (c *Core) AddHeading(ts float64, heading Measurement) bool {
	if !c.hasCurrent || ts <= c.current.Timestamp {
		return false
	}
	oldHeading := c.current.Heading
	oldTS := c.current.Timestamp

	predicted := predict(c.current, ts)
	predicted.Heading = mergeHeading(predicted.Heading, heading)

	if oldHeading.Valid() && heading.Valid() {
		deltaT := ts - oldTS
		if deltaT > geo.Epsilon {
			impliedOmega := Measurement{
				Value:    geo.SignedAngle(oldHeading.Value, heading.Value) / deltaT,
				Accuracy: (oldHeading.Accuracy + heading.Accuracy) / deltaT,
			}
			predicted.AngularSpeed = mergeScalar(predicted.AngularSpeed, impliedOmega)
		}
	}

	c.current = predicted
	return true
}

// AddSpeed merges a new speed measurement at ts.
func (c *Core) AddSpeed(ts float64, speed Measurement) bool {
	if !c.hasCurrent || ts <= c.current.Timestamp {
		return false
	}
	predicted := predict(c.current, ts)
	predicted.Speed = mergeScalar(predicted.Speed, speed)
	c.current = predicted
	return true
}

// AddAngularSpeed merges a new angular-speed measurement at ts.
func (c *Core) AddAngularSpeed(ts float64, omega Measurement) bool {
	if !c.hasCurrent || ts <= c.current.Timestamp {
		return false
	}
	predicted := predict(c.current, ts)
	predicted.AngularSpeed = mergeScalar(predicted.AngularSpeed, omega)
	c.current = predicted
	return true
}

// GetSpeed returns the predicted speed at atTS, inflating accuracy
// from the current timestamp. Queries at or before the current
// timestamp return the current value without prediction.
func (c *Core) GetSpeed(atTS float64) Measurement {
	if !c.hasCurrent {
		return invalidMeasurement()
	}
	if atTS < c.current.Timestamp {
		return c.current.Speed
	}
	return predict(c.current, atTS).Speed
}

// GetHeading returns the predicted heading at atTS.
func (c *Core) GetHeading(atTS float64) Measurement {
	if !c.hasCurrent {
		return invalidMeasurement()
	}
	if atTS < c.current.Timestamp {
		return c.current.Heading
	}
	return predict(c.current, atTS).Heading
}

// GetPosition returns the predicted position at atTS.
func (c *Core) GetPosition(atTS float64) Position {
	if !c.hasCurrent {
		return invalidPosition()
	}
	if atTS < c.current.Timestamp {
		return c.current.Position
	}
	return predict(c.current, atTS).Position
}
