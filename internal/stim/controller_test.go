package stim

import (
	"context"
	"errors"
	"testing"
)

func TestSwitchRejectionKeepsActiveStimulus(t *testing.T) {
	s := startScheduler(t)
	c := NewController(testLogger(), "test", s, testCatalog(), testDefaults())

	ctx := context.Background()
	gen, err := c.Switch(ctx, &Request{StimType: "s", Velocity: FloatPair{0.1, 0.1}})
	if err != nil {
		t.Fatal(err)
	}

	bad := FloatPair{-1, -1}
	_, err = c.Switch(ctx, &Request{StimType: "s", StimTime: &bad})
	if !errors.Is(err, ErrInvalidSpec) {
		t.Fatalf("Expected ErrInvalidSpec, got %v", err)
	}

	snap := s.Snapshot()
	if snap.Generation != gen {
		t.Errorf("Rejected switch changed generation: %d -> %d", gen, snap.Generation)
	}
	if v := snap.Channels[ChannelLeft].Velocity; v != 0.1 {
		t.Errorf("Rejected switch changed velocity: %v", v)
	}
}

func TestSwitchNilRequestBlanks(t *testing.T) {
	s := startScheduler(t)
	c := NewController(testLogger(), "test", s, testCatalog(), testDefaults())

	if _, err := c.Switch(context.Background(), nil); err != nil {
		t.Fatal(err)
	}
	if !s.Snapshot().Spec.IsBlank() {
		t.Errorf("Nil request should install blank, got %+v", s.Snapshot().Spec)
	}
}

func TestBlankInstalls(t *testing.T) {
	s := startScheduler(t)
	c := NewController(testLogger(), "test", s, testCatalog(), testDefaults())

	ctx := context.Background()
	if _, err := c.Switch(ctx, &Request{StimType: "s", Velocity: FloatPair{0.2, 0.2}}); err != nil {
		t.Fatal(err)
	}
	gen, err := c.Blank(ctx)
	if err != nil {
		t.Fatal(err)
	}
	snap := s.Snapshot()
	if snap.Generation != gen || !snap.Spec.IsBlank() {
		t.Errorf("Blank not installed: %+v", snap)
	}
}
