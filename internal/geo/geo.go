// Package geo provides the pure coordinate-frame math the rest of the
// engine builds on: degrees/radians conversion, great-circle distance
// and bearing, destination-point projection, and the signed-angle and
// heading-prediction helpers the fusion core and sensor adjusters need.
package geo

import "math"

// EarthRadiusM is the sphere radius used by every distance/position
// formula in this package.
const EarthRadiusM = 6_371_000.0

// PI mirrors math.Pi for the formula-heavy call sites below.
const PI = math.Pi

// Epsilon is the divisor-guard threshold shared with the calibrator.
const Epsilon = 1e-10

// IsEpsilon reports whether v is too close to zero to safely divide by.
func IsEpsilon(v float64) bool {
	if v > 0 {
		return v < Epsilon
	}
	return v > -Epsilon
}

// ToRadians converts degrees to radians.
func ToRadians(deg float64) float64 {
	return deg * PI / 180.0
}

// ToDegrees converts radians to degrees.
func ToDegrees(rad float64) float64 {
	return rad * 180.0 / PI
}

// LatLon is the minimal coordinate pair the geo functions operate on.
type LatLon struct {
	LatitudeDeg  float64
	LongitudeDeg float64
}

// ToDistance is the fast equirectangular-approximation distance in
// meters, accurate to about 1 m over spans up to 10 km.
func ToDistance(a, b LatLon) float64 {
	phi1 := ToRadians(a.LatitudeDeg)
	phi2 := ToRadians(b.LatitudeDeg)
	avgPhi := (phi1 + phi2) / 2
	dPhi := phi2 - phi1
	dLambda := ToRadians(b.LongitudeDeg - a.LongitudeDeg)

	x := dLambda * math.Cos(avgPhi)
	y := dPhi
	return math.Sqrt(x*x+y*y) * EarthRadiusM
}

// ToDistancePrecise is the haversine great-circle distance in meters,
// accurate to about 1 m over spans up to 1000 km.
func ToDistancePrecise(a, b LatLon) float64 {
	phi1 := ToRadians(a.LatitudeDeg)
	phi2 := ToRadians(b.LatitudeDeg)
	dPhi := ToRadians(b.LatitudeDeg - a.LatitudeDeg)
	dLambda := ToRadians(b.LongitudeDeg - a.LongitudeDeg)

	sinHalfPhi := math.Sin(dPhi / 2)
	sinHalfLambda := math.Sin(dLambda / 2)
	h := sinHalfPhi*sinHalfPhi + math.Cos(phi1)*math.Cos(phi2)*sinHalfLambda*sinHalfLambda
	h = math.Min(1, math.Max(0, h))
	return 2 * EarthRadiusM * math.Asin(math.Sqrt(h))
}

// ToHeading returns the true-north bearing in degrees [0, 360) from a
// to b.
func ToHeading(a, b LatLon) float64 {
	phi1 := ToRadians(a.LatitudeDeg)
	phi2 := ToRadians(b.LatitudeDeg)
	dLambda := ToRadians(b.LongitudeDeg - a.LongitudeDeg)

	y := math.Sin(dLambda) * math.Cos(phi2)
	x := math.Cos(phi1)*math.Sin(phi2) - math.Sin(phi1)*math.Cos(phi2)*math.Cos(dLambda)
	deg := ToDegrees(math.Atan2(y, x))
	return math.Mod(deg+360, 360)
}

// ToHeadingFromRate returns the heading reached after turning at
// angular rate omega (deg/s, positive = left turn) for deltaT seconds
// starting from start, normalised to [0, 360).
func ToHeadingFromRate(start, deltaT, omega float64) float64 {
	return math.Mod(math.Mod(start-omega*deltaT, 360)+360, 360)
}

// SignedAngle returns the shortest signed difference h1-h2 in
// (-180, +180], robust across the 0/360 seam.
func SignedAngle(h1, h2 float64) float64 {
	diff := h1 - h2
	switch {
	case diff > 180:
		return diff - 360
	case diff <= -180:
		return diff + 360
	default:
		return diff
	}
}

// ToPosition projects start by distanceM meters along headingDeg
// (true-north bearing). distanceM == 0 returns start unchanged,
// bypassing the trigonometric path entirely to avoid numerical drift.
func ToPosition(start LatLon, distanceM, headingDeg float64) LatLon {
	if distanceM == 0 {
		return start
	}
	delta := distanceM / EarthRadiusM
	theta := ToRadians(headingDeg)
	phi1 := ToRadians(start.LatitudeDeg)
	lambda1 := ToRadians(start.LongitudeDeg)

	sinPhi2 := math.Sin(phi1)*math.Cos(delta) + math.Cos(phi1)*math.Sin(delta)*math.Cos(theta)
	phi2 := math.Asin(math.Max(-1, math.Min(1, sinPhi2)))

	y := math.Sin(theta) * math.Sin(delta) * math.Cos(phi1)
	x := math.Cos(delta) - math.Sin(phi1)*math.Sin(phi2)
	lambda2 := lambda1 + math.Atan2(y, x)

	lonDeg := math.Mod(ToDegrees(lambda2)+540, 360) - 180
	return LatLon{
		LatitudeDeg:  ToDegrees(phi2),
		LongitudeDeg: lonDeg,
	}
}

// Transform2D rotates (x, y) by theta degrees in the XY plane.
func Transform2D(x, y, thetaDeg float64) (float64, float64) {
	t := ToRadians(thetaDeg)
	return x*math.Cos(t) - y*math.Sin(t), x*math.Sin(t) + y*math.Cos(t)
}

// Transform3D applies sequential XY, YZ, ZX rotations by thetaX,
// thetaY, thetaZ degrees. Included for completeness; not used by the
// fusion core or adjusters.
func Transform3D(x, y, z, thetaXDeg, thetaYDeg, thetaZDeg float64) (float64, float64, float64) {
	y, z = Transform2D(y, z, thetaXDeg)
	z, x = Transform2D(z, x, thetaYDeg)
	x, y = Transform2D(x, y, thetaZDeg)
	return x, y, z
}
