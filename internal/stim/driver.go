package stim

import (
	"context"
	"log/slog"
	"time"
)

// Driver is the fixed-rate tick source: every frame it reads the latest
// committed stimulus snapshot, computes the visual parameters for right now
// and hands them to the renderer. It never blocks on the scheduler's control
// loop or timers - reads are atomic snapshot loads - and a renderer failure
// only skips the frame; the next tick retries.
type Driver struct {
	logger    *slog.Logger
	scheduler *Scheduler
	renderer  Renderer
	fps       int
	dotSeed   int64

	// tick-owned dot state, regenerated when the active generation changes
	dots    *DotField
	dotsGen uint64
}

func NewDriver(logger *slog.Logger, scheduler *Scheduler, renderer Renderer, fps int, dotSeed int64) *Driver {
	if fps <= 0 {
		fps = 75
	}
	return &Driver{
		logger:    logger,
		scheduler: scheduler,
		renderer:  renderer,
		fps:       fps,
		dotSeed:   dotSeed,
	}
}

func (d *Driver) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(d.fps)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	d.logger.Info("Frame driver started", slog.Int("fps", d.fps))
	epoch := time.Now()
	last := epoch

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("Frame driver stopped")
			return nil
		case now := <-ticker.C:
			dt := float32(now.Sub(last).Seconds())
			last = now
			d.tick(now.Sub(epoch).Seconds(), dt)
		}
	}
}

func (d *Driver) tick(elapsed float64, dt float32) {
	snap := d.scheduler.Snapshot()
	if snap == nil {
		return
	}
	frame := d.buildFrame(snap, elapsed, dt)
	if err := d.renderer.Present(frame); err != nil {
		d.logger.Error("Renderer rejected frame, retrying next tick",
			slog.Uint64("generation", snap.Generation), slog.Any("error", err))
	}
}

func (d *Driver) buildFrame(snap *Snapshot, elapsed float64, dt float32) *Frame {
	frame := &Frame{
		Generation: snap.Generation,
		Kind:       snap.Kind(),
		Phase:      snap.Phase,
	}

	switch snap.Kind() {
	case KindField:
		f := snap.Spec.Field
		frame.Field = &FieldFrame{
			Texture:  snap.Channels[ChannelLeft].Texture,
			AngleDeg: f.Angle,
			Offset:   DriftOffset(elapsed, snap.Channels[ChannelLeft].Velocity),
			CenterX:  f.CenterX,
			CenterY:  f.CenterY,
		}

	case KindBinocular:
		b := snap.Spec.Binocular
		frame.Binocular = &BinocularFrame{
			Left:  d.eyeFrame(snap, b, ChannelLeft, elapsed),
			Right: d.eyeFrame(snap, b, ChannelRight, elapsed),
			Mask:  MaskTransform(b.CenterX, b.CenterY, b.StripAngle, OverscanScale),
		}

	case KindRandomDot:
		r := snap.Spec.RandomDot
		if d.dots == nil || d.dotsGen != snap.Generation {
			d.dots = NewDotField(r.DotCount, r.Brightness, d.dotSeed^int64(snap.Generation))
			d.dotsGen = snap.Generation
		}
		d.dots.Advance(dt, r.Angle, snap.Channels[ChannelLeft].Velocity,
			r.Coherence, r.Lifetime, r.Brightness)
		frame.RandomDot = &RandomDotFrame{
			Dots:       d.dots.Dots(),
			DotSize:    r.DotSize,
			Radius:     r.FieldRadius,
			Projection: DotProjection,
		}
	}
	return frame
}

// eyeFrame assembles one binocular channel: texture angle is the channel
// angle relative to the strip, drift follows the channel's effective
// velocity, and a stopped channel is hidden.
func (d *Driver) eyeFrame(snap *Snapshot, b *BinocularSpec, ch int, elapsed float64) EyeFrame {
	c := b.Left
	if ch == ChannelRight {
		c = b.Right
	}
	state := snap.Channels[ch]
	return EyeFrame{
		Texture:  state.Texture,
		AngleDeg: b.StripAngle + c.Angle,
		Offset:   DriftOffset(elapsed, state.Velocity),
		Visible:  !state.Stopped,
	}
}
