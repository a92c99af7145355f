package stim

import (
	"cogentcore.org/core/math32"

	"github.com/fishlab/gostim/internal/texture"
)

// Renderer is the external display surface the frame driver feeds. Present
// must return within a bounded budget; it is called once per tick and its
// errors do not disturb scheduling (the next tick simply retries).
type Renderer interface {
	Present(*Frame) error
}

// Frame is the per-tick visual payload handed to the renderer. Exactly one
// of the kind variants is non-nil.
type Frame struct {
	Generation uint64
	Kind       Kind
	Phase      Phase
	Field      *FieldFrame
	Binocular  *BinocularFrame
	RandomDot  *RandomDotFrame
}

// FieldFrame is a full-field texture card: a static rotation plus a drift
// offset along the texture u axis.
type FieldFrame struct {
	Texture  texture.Handle
	AngleDeg float32
	Offset   float32
	CenterX  float32
	CenterY  float32
}

type EyeFrame struct {
	Texture  texture.Handle
	AngleDeg float32
	Offset   float32
	Visible  bool
}

// BinocularFrame carries independent drift state per eye plus the shared
// mask transform positioning the split between them.
type BinocularFrame struct {
	Left  EyeFrame
	Right EyeFrame
	Mask  math32.Matrix2
}

// Projection is the fixed wide-FOV lens descriptor used for dot fields,
// which render as a 3D point cloud rather than a 2D card.
type Projection struct {
	FOVDeg float32
	Near   float32
	Far    float32
	Aspect float32
}

// DotProjection matches the perspective lens the original display uses for
// random-dot stimuli.
var DotProjection = Projection{FOVDeg: 90, Near: 0.001, Far: 1000, Aspect: 1}

// RandomDotFrame hands the renderer the advanced dot field for this tick.
// Dots aliases the driver-owned array and must be consumed before Present
// returns.
type RandomDotFrame struct {
	Dots       []Dot
	DotSize    float32
	Radius     float32
	Projection Projection
}
