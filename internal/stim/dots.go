package stim

import (
	"math/rand"

	"cogentcore.org/core/math32"
)

type Dot struct {
	X          float32
	Y          float32
	Brightness float32
}

// DotField is the live dot array of a random-dot stimulus, in normalized
// [-1,1] coordinates. It is regenerated incrementally every display tick and
// is owned by a single goroutine; the sequence of snapshots it produces is
// not restartable without reseeding.
type DotField struct {
	dots []Dot
	rng  *rand.Rand
}

func NewDotField(count int, brightness float32, seed int64) *DotField {
	f := &DotField{
		dots: make([]Dot, count),
		rng:  rand.New(rand.NewSource(seed)),
	}
	for i := range f.dots {
		f.dots[i] = Dot{
			X:          2*f.rng.Float32() - 1,
			Y:          2*f.rng.Float32() - 1,
			Brightness: brightness,
		}
	}
	return f
}

// Dots returns the live dot slice. Callers must consume it before the next
// Advance; it is overwritten in place.
func (f *DotField) Dots() []Dot {
	return f.dots
}

// Advance moves the field by one tick of dt seconds. Each dot independently
// (a) moves coherently along angleDeg with probability coherencePct/100,
// (b) respawns at a fresh random position with probability dt/lifetime
// (always, when lifetime is 0) - respawn wins over the coherent move for
// that dot this tick - and (c) is wrapped back into [-1,1] on both axes.
// Brightness is reasserted on every dot each tick.
func (f *DotField) Advance(dt, angleDeg, velocity, coherencePct, lifetime, brightness float32) {
	rad := math32.DegToRad(angleDeg)
	dx := math32.Cos(rad) * velocity * dt
	dy := math32.Sin(rad) * velocity * dt

	for i := range f.dots {
		d := &f.dots[i]
		if float32(f.rng.Float64()*100) < coherencePct {
			d.X += dx
			d.Y += dy
		}
		if lifetime == 0 || float32(f.rng.Float64()) < dt/lifetime {
			d.X = 2*f.rng.Float32() - 1
			d.Y = 2*f.rng.Float32() - 1
		}
		d.X = wrapUnit(d.X)
		d.Y = wrapUnit(d.Y)
		d.Brightness = brightness
	}
}

// wrapUnit maps v into [-1,1] via ((v+1) mod 2) - 1, with the mod result
// kept non-negative so values below -1 wrap to the high end.
func wrapUnit(v float32) float32 {
	m := math32.Mod(v+1, 2)
	if m < 0 {
		m += 2
	}
	return m - 1
}
