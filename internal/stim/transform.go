package stim

import (
	"cogentcore.org/core/math32"
)

// OverscanScale is how much the stimulus card is oversized so that no edge
// becomes visible under arbitrary rotations and shifts: sqrt(8) covers the
// diagonal of a unit card rotated about any point inside it.
var OverscanScale = math32.Sqrt(8)

// MaskTransform builds the translate-rotate-scale composition that positions
// the visibility boundary between binocular channels. Applied to a texture
// coordinate it (1) shifts by (-0.5-cx, -0.5-cy), (2) rotates by stripAngle,
// (3) scales by 1/scale, (4) re-centers by (0.5, 0.5). Rotation and uniform
// scale are applied about the shifted origin; the order is load-bearing.
func MaskTransform(centerX, centerY, stripAngleDeg, scale float32) math32.Matrix2 {
	px := 0.5 + centerX
	py := 0.5 + centerY
	return math32.Translate2D(0.5, 0.5).
		Mul(math32.Rotate2D(math32.DegToRad(stripAngleDeg))).
		Mul(math32.Scale2D(1/scale, 1/scale)).
		Mul(math32.Translate2D(-px, -py))
}

// DriftOffset is the texture-coordinate offset of a stimulus drifting at the
// given velocity for elapsed seconds. Negative because the texture frame
// moves opposite to the perceived motion direction; sampling is periodic so
// no wraparound is needed.
func DriftOffset(elapsed float64, velocity float32) float32 {
	return -float32(elapsed) * velocity
}
