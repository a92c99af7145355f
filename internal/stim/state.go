package stim

import (
	"time"

	"github.com/fishlab/gostim/internal/texture"
)

// Phase is the position of the active stimulus in its timed lifecycle.
type Phase string

const (
	PhaseStationaryHold   Phase = "stationaryHold"
	PhaseRunning          Phase = "running"
	PhasePartiallyStopped Phase = "partiallyStopped"
	PhaseStopped          Phase = "stopped"
)

// Channel indexes into a snapshot's channel array. Monocular stimuli use
// only ChannelLeft.
const (
	ChannelLeft  = 0
	ChannelRight = 1
)

var channelNames = [2]string{"left", "right"}

// ChannelName returns "left"/"right" for binocular snapshots and "" for
// single-channel stimuli.
func ChannelName(kind Kind, ch int) string {
	if kind != KindBinocular {
		return ""
	}
	return channelNames[ch]
}

// ChannelState is the live per-channel view of the active stimulus: the
// effective velocity (zeroed during a stationary hold), the texture currently
// shown (blank once the channel stops), and the phase flags.
type ChannelState struct {
	Velocity float32
	Texture  texture.Handle
	Holding  bool
	Stopped  bool
}

// Snapshot is an immutable view of the active stimulus state. The scheduler
// commits a fresh snapshot on every transition; readers are never exposed to
// field-by-field mutation.
type Snapshot struct {
	Generation  uint64
	Spec        Spec
	Phase       Phase
	InstalledAt time.Time
	Channels    [2]ChannelState
}

func (s *Snapshot) Kind() Kind {
	return s.Spec.Kind
}

// channelCount is 2 for binocular stimuli, 1 otherwise.
func (s *Snapshot) channelCount() int {
	if s.Spec.Kind == KindBinocular {
		return 2
	}
	return 1
}

// clone returns a copy the scheduler can mutate before committing. Spec is
// immutable and shared.
func (s *Snapshot) clone() *Snapshot {
	c := *s
	return &c
}

// recomputePhase derives the stimulus phase from its channel states.
func (s *Snapshot) recomputePhase() {
	n := s.channelCount()
	stopped := 0
	holding := false
	for i := 0; i < n; i++ {
		if s.Channels[i].Stopped {
			stopped++
		}
		if s.Channels[i].Holding {
			holding = true
		}
	}
	switch {
	case stopped == n:
		s.Phase = PhaseStopped
	case stopped > 0:
		s.Phase = PhasePartiallyStopped
	case holding:
		s.Phase = PhaseStationaryHold
	default:
		s.Phase = PhaseRunning
	}
}

// specChannel returns the immutable spec parameters for channel ch.
func (s *Snapshot) specChannel(ch int) Channel {
	switch s.Spec.Kind {
	case KindBinocular:
		if ch == ChannelRight {
			return s.Spec.Binocular.Right
		}
		return s.Spec.Binocular.Left
	case KindRandomDot:
		return s.Spec.RandomDot.Channel
	default:
		return s.Spec.Field.Channel
	}
}
