package stim

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startScheduler(t *testing.T) *Scheduler {
	t.Helper()
	s := NewScheduler(testLogger(), "test", testCatalog())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return s
}

func waitFor(t *testing.T, s *Scheduler, what string, cond func(*Snapshot) bool) *Snapshot {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if snap := s.Snapshot(); snap != nil && cond(snap) {
			return snap
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("Timed out waiting for %s; snapshot: %+v", what, s.Snapshot())
	return nil
}

func fieldSpec(velocity, stationary, stimTime float32) Spec {
	return Spec{
		Kind: KindField,
		Field: &FieldSpec{
			Channel: Channel{
				Velocity:       velocity,
				Texture:        testCatalog().Resolve(32),
				StationaryTime: stationary,
				StimTime:       stimTime,
			},
		},
	}
}

func binocularSpec(left, right Channel) Spec {
	return Spec{
		Kind: KindBinocular,
		Binocular: &BinocularSpec{
			Left:        left,
			Right:       right,
			CenterWidth: 16,
		},
	}
}

func TestInstallRunsImmediatelyWithoutTimers(t *testing.T) {
	s := startScheduler(t)

	gen, err := s.Install(context.Background(), fieldSpec(0.1, 0, 0))
	if err != nil {
		t.Fatal(err)
	}
	if gen != 1 {
		t.Errorf("First install should be generation 1, got %d", gen)
	}

	snap := s.Snapshot()
	if snap.Phase != PhaseRunning {
		t.Errorf("Phase = %v, want running", snap.Phase)
	}
	if snap.Channels[ChannelLeft].Velocity != 0.1 {
		t.Errorf("Velocity = %v, want 0.1", snap.Channels[ChannelLeft].Velocity)
	}

	// No timers were scheduled; nothing should change over time.
	time.Sleep(50 * time.Millisecond)
	if s.Snapshot().Generation != gen {
		t.Errorf("Generation changed without any install: %d", s.Snapshot().Generation)
	}
}

func TestStationaryHoldReleasesVelocity(t *testing.T) {
	s := startScheduler(t)

	gen, err := s.Install(context.Background(), fieldSpec(0.1, 0.2, 0))
	if err != nil {
		t.Fatal(err)
	}

	snap := s.Snapshot()
	if snap.Phase != PhaseStationaryHold {
		t.Errorf("Phase = %v, want stationaryHold", snap.Phase)
	}
	if v := snap.Channels[ChannelLeft].Velocity; v != 0 {
		t.Errorf("Velocity during hold = %v, want 0", v)
	}

	snap = waitFor(t, s, "hold release", func(sn *Snapshot) bool {
		return sn.Phase == PhaseRunning
	})
	if v := snap.Channels[ChannelLeft].Velocity; v != 0.1 {
		t.Errorf("Velocity after hold = %v, want 0.1", v)
	}
	if snap.Generation != gen {
		t.Errorf("Hold release changed generation: %d -> %d", gen, snap.Generation)
	}
}

func TestBinocularChannelsStopIndependently(t *testing.T) {
	s := startScheduler(t)

	tex := testCatalog().Resolve(16)
	gen, err := s.Install(context.Background(), binocularSpec(
		Channel{Velocity: 0.05, Texture: tex, StimTime: 0.03},
		Channel{Velocity: -0.05, Texture: tex, StimTime: 0.09},
	))
	if err != nil {
		t.Fatal(err)
	}

	snap := waitFor(t, s, "left channel stop", func(sn *Snapshot) bool {
		return sn.Channels[ChannelLeft].Stopped
	})
	if snap.Phase != PhasePartiallyStopped {
		t.Errorf("Phase = %v, want partiallyStopped", snap.Phase)
	}
	if snap.Channels[ChannelRight].Stopped {
		t.Error("Right channel stopped too early")
	}
	if !snap.Channels[ChannelLeft].Texture.IsBlank() {
		t.Errorf("Stopped channel should show blank, got %v", snap.Channels[ChannelLeft].Texture)
	}
	if v := snap.Channels[ChannelLeft].Velocity; v != 0 {
		t.Errorf("Stopped channel velocity = %v, want 0", v)
	}

	snap = waitFor(t, s, "right channel stop", func(sn *Snapshot) bool {
		return sn.Channels[ChannelRight].Stopped
	})
	if snap.Phase != PhaseStopped {
		t.Errorf("Phase = %v, want stopped", snap.Phase)
	}
	if snap.Generation != gen {
		t.Errorf("Channel stops must not change generation: %d -> %d", gen, snap.Generation)
	}
}

func TestBinocularTimersAreGatedPerChannel(t *testing.T) {
	s := startScheduler(t)

	tex := testCatalog().Resolve(16)
	// Only the left channel holds; the right one must move immediately.
	_, err := s.Install(context.Background(), binocularSpec(
		Channel{Velocity: 0.05, Texture: tex, StationaryTime: 0.2},
		Channel{Velocity: -0.05, Texture: tex},
	))
	if err != nil {
		t.Fatal(err)
	}

	snap := s.Snapshot()
	if !snap.Channels[ChannelLeft].Holding {
		t.Error("Left channel should be holding")
	}
	if snap.Channels[ChannelRight].Holding {
		t.Error("Right channel must not hold when its stationary_time is 0")
	}
	if v := snap.Channels[ChannelRight].Velocity; v != -0.05 {
		t.Errorf("Right channel velocity = %v, want -0.05", v)
	}
}

func TestStoppedChannelIgnoresHoldRelease(t *testing.T) {
	s := startScheduler(t)

	tex := testCatalog().Resolve(16)
	// The left channel stops before its hold ends; the late hold release
	// must not resurrect it.
	_, err := s.Install(context.Background(), binocularSpec(
		Channel{Velocity: 0.05, Texture: tex, StationaryTime: 0.1, StimTime: 0.03},
		Channel{Velocity: -0.05, Texture: tex},
	))
	if err != nil {
		t.Fatal(err)
	}

	waitFor(t, s, "left channel stop", func(sn *Snapshot) bool {
		return sn.Channels[ChannelLeft].Stopped
	})

	time.Sleep(200 * time.Millisecond)
	snap := s.Snapshot()
	if !snap.Channels[ChannelLeft].Stopped {
		t.Error("Stopped channel came back after hold release")
	}
	if v := snap.Channels[ChannelLeft].Velocity; v != 0 {
		t.Errorf("Stopped channel velocity = %v, want 0", v)
	}
}

func TestSwitchCancelsPendingTimers(t *testing.T) {
	s := startScheduler(t)

	ctx := context.Background()
	if _, err := s.Install(ctx, fieldSpec(0.1, 0.04, 0)); err != nil {
		t.Fatal(err)
	}
	gen2, err := s.Install(ctx, fieldSpec(0.3, 0, 0))
	if err != nil {
		t.Fatal(err)
	}

	// Let the superseded hold timer fire; it must not touch the new state.
	time.Sleep(120 * time.Millisecond)
	snap := s.Snapshot()
	if snap.Generation != gen2 {
		t.Errorf("Generation = %d, want %d", snap.Generation, gen2)
	}
	if v := snap.Channels[ChannelLeft].Velocity; v != 0.3 {
		t.Errorf("Velocity = %v, want 0.3", v)
	}
	if snap.Phase != PhaseRunning {
		t.Errorf("Phase = %v, want running", snap.Phase)
	}
}

func TestSingleChannelAutoBlank(t *testing.T) {
	s := startScheduler(t)

	gen, err := s.Install(context.Background(), fieldSpec(0.1, 0, 0.03))
	if err != nil {
		t.Fatal(err)
	}

	snap := waitFor(t, s, "auto blank", func(sn *Snapshot) bool {
		return sn.Generation > gen
	})
	if !snap.Spec.IsBlank() {
		t.Errorf("Expired stimulus should be replaced by blank, got %+v", snap.Spec)
	}
	if snap.Phase != PhaseRunning {
		t.Errorf("Blank phase = %v, want running", snap.Phase)
	}
}

func TestGenerationsAreUniqueUnderConcurrentInstalls(t *testing.T) {
	s := startScheduler(t)

	const n = 50
	gens := make(chan uint64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			gen, err := s.Install(context.Background(), fieldSpec(0.1, 0, 0))
			if err != nil {
				t.Error(err)
				return
			}
			gens <- gen
		}()
	}
	wg.Wait()
	close(gens)

	seen := make(map[uint64]bool, n)
	var max uint64
	for g := range gens {
		if seen[g] {
			t.Fatalf("Generation %d handed out twice", g)
		}
		seen[g] = true
		if g > max {
			max = g
		}
	}
	if len(seen) != n {
		t.Fatalf("Expected %d generations, got %d", n, len(seen))
	}
	if snap := s.Snapshot(); snap.Generation != max {
		t.Errorf("Final snapshot generation %d, want %d", snap.Generation, max)
	}
}

func TestInstallAfterStop(t *testing.T) {
	s := NewScheduler(testLogger(), "test", testCatalog())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Run(ctx)
	}()
	cancel()
	<-done

	if _, err := s.Install(context.Background(), fieldSpec(0.1, 0, 0)); err == nil {
		t.Error("Install after the scheduler stopped should fail")
	}
}
