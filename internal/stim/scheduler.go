package stim

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/fishlab/gostim/internal/event"
	"github.com/fishlab/gostim/internal/texture"
)

type timerKind int

const (
	timerStationaryEnd timerKind = iota
	timerStimEnd
)

type installCmd struct {
	spec  Spec
	reply chan uint64
}

type timerFiredCmd struct {
	gen  uint64
	ch   int
	kind timerKind
}

// Scheduler owns the active stimulus and its timed lifecycle. All mutation -
// installs, stationary-hold expiry, per-channel auto-stop - is serialized
// through a single control loop, so transitions are linearizable. Readers
// (the frame driver, status endpoints) get immutable snapshots through an
// atomic pointer and are never blocked by the loop.
//
// Phase timers are scheduled tasks tagged with the generation they belong
// to; a fire whose generation no longer matches the active stimulus is
// discarded without touching state. Cancellation happens inside the install
// handler, synchronously with the generation bump.
type Scheduler struct {
	logger   *slog.Logger
	source   string
	blank    Spec
	blankTex texture.Handle

	commands chan any
	done     chan struct{}
	current  atomic.Pointer[Snapshot]

	// loop-owned, never touched outside Run
	gen    uint64
	timers []*time.Timer
}

func NewScheduler(logger *slog.Logger, source string, catalog texture.Catalog) *Scheduler {
	return &Scheduler{
		logger:   logger,
		source:   source,
		blank:    Blank(catalog),
		blankTex: catalog.Blank(),
		commands: make(chan any, 16),
		done:     make(chan struct{}),
	}
}

// Run consumes the command queue until the context is cancelled. It must be
// running before Install is called.
func (s *Scheduler) Run(ctx context.Context) error {
	defer close(s.done)
	for {
		select {
		case <-ctx.Done():
			s.cancelTimers()
			return nil
		case cmd := <-s.commands:
			s.handle(cmd)
		}
	}
}

// handle dispatches one command. A panic during a transition must not kill
// the control loop mid-session; it falls back to installing the blank
// stimulus so the display is left in a defined state.
func (s *Scheduler) handle(cmd any) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Panic during stimulus transition, blanking display",
				slog.Any("panic", r), slog.String("stack", string(debug.Stack())))
			s.install(s.blank)
		}
	}()

	switch c := cmd.(type) {
	case installCmd:
		gen := s.install(c.spec)
		if c.reply != nil {
			c.reply <- gen
		}
	case timerFiredCmd:
		s.timerFired(c)
	}
}

// Install atomically replaces the active stimulus, cancelling the previous
// generation's timers and starting the new one's phase timers. It is safe to
// call concurrently; installs are serialized by the control loop and the
// latest one wins. The returned generation identifies the installation.
func (s *Scheduler) Install(ctx context.Context, spec Spec) (uint64, error) {
	reply := make(chan uint64, 1)
	select {
	case s.commands <- installCmd{spec: spec, reply: reply}:
	case <-s.done:
		return 0, fmt.Errorf("scheduler stopped")
	case <-ctx.Done():
		return 0, ctx.Err()
	}
	select {
	case gen := <-reply:
		return gen, nil
	case <-s.done:
		return 0, fmt.Errorf("scheduler stopped")
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Snapshot returns the latest committed stimulus state, or nil before the
// first install. Safe to call from any goroutine at tick rate.
func (s *Scheduler) Snapshot() *Snapshot {
	return s.current.Load()
}

func (s *Scheduler) install(spec Spec) uint64 {
	s.cancelTimers()
	s.gen++

	snap := &Snapshot{
		Generation:  s.gen,
		Spec:        spec,
		InstalledAt: time.Now(),
	}
	for ch := 0; ch < snap.channelCount(); ch++ {
		c := snap.specChannel(ch)
		state := ChannelState{Velocity: c.Velocity, Texture: c.Texture}
		if c.StationaryTime > 0 {
			state.Velocity = 0
			state.Holding = true
			s.schedule(timerStationaryEnd, ch, c.StationaryTime)
		}
		if c.StimTime > 0 {
			s.schedule(timerStimEnd, ch, c.StimTime)
		}
		snap.Channels[ch] = state
	}
	snap.recomputePhase()
	s.current.Store(snap)

	event.Send(event.StimulusInstalled(
		event.Text(s.source, "Stimulus installed"), s.gen, spec.Summary()))
	s.logger.Info("Stimulus installed",
		slog.Uint64("generation", s.gen),
		slog.String("kind", string(spec.Kind)),
		slog.String("phase", string(snap.Phase)))
	return s.gen
}

func (s *Scheduler) timerFired(c timerFiredCmd) {
	if c.gen != s.gen {
		// A switch superseded this timer between scheduling and firing.
		s.logger.Debug("Stale timer fire discarded",
			slog.Uint64("firedGeneration", c.gen), slog.Uint64("generation", s.gen))
		return
	}

	snap := s.current.Load().clone()
	name := ChannelName(snap.Kind(), c.ch)

	switch c.kind {
	case timerStationaryEnd:
		if snap.Channels[c.ch].Stopped {
			return
		}
		v := snap.specChannel(c.ch).Velocity
		snap.Channels[c.ch].Velocity = v
		snap.Channels[c.ch].Holding = false
		snap.recomputePhase()
		s.current.Store(snap)
		event.Send(event.StationaryEnded(
			event.Text(s.source, "Stationary hold ended"), c.gen, name, v))
		s.logger.Info("Stationary hold ended",
			slog.Uint64("generation", c.gen), slog.String("channel", name))

	case timerStimEnd:
		if snap.Kind() != KindBinocular {
			// Single-channel stimuli are replaced outright by the blank
			// stimulus, which runs through the same install lifecycle.
			event.Send(event.ChannelStopped(
				event.Text(s.source, "Stimulus time elapsed"), c.gen, name))
			s.install(s.blank)
			return
		}
		snap.Channels[c.ch].Stopped = true
		snap.Channels[c.ch].Holding = false
		snap.Channels[c.ch].Velocity = 0
		snap.Channels[c.ch].Texture = s.blankTex
		snap.recomputePhase()
		s.current.Store(snap)
		event.Send(event.ChannelStopped(
			event.Text(s.source, "Channel stopped"), c.gen, name))
		s.logger.Info("Channel stopped",
			slog.Uint64("generation", c.gen),
			slog.String("channel", name),
			slog.String("phase", string(snap.Phase)))
	}
}

func (s *Scheduler) schedule(kind timerKind, ch int, seconds float32) {
	gen := s.gen
	d := time.Duration(float64(seconds) * float64(time.Second))
	t := time.AfterFunc(d, func() {
		// An in-flight fire racing a switch is harmless: the loop discards
		// it by generation. The done guard only prevents a send after the
		// loop has exited.
		select {
		case s.commands <- timerFiredCmd{gen: gen, ch: ch, kind: kind}:
		case <-s.done:
		}
	})
	s.timers = append(s.timers, t)
}

func (s *Scheduler) cancelTimers() {
	for _, t := range s.timers {
		t.Stop()
	}
	s.timers = s.timers[:0]
}
