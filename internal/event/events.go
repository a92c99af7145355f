package event

import (
	"time"
)

type Event interface {
	Message() string
	Source() string
	OccurredAt() time.Time
}

type BaseEvent struct {
	message    string
	source     string
	occurredAt time.Time
}

func (b BaseEvent) Message() string {
	return b.message
}

func (b BaseEvent) Source() string {
	return b.source
}

func (b BaseEvent) OccurredAt() time.Time {
	return b.occurredAt
}

func Text(source string, message string) BaseEvent {
	return BaseEvent{
		message:    message,
		source:     source,
		occurredAt: time.Now(),
	}
}

// SessionStartedEvent marks the start of an experiment session.
type SessionStartedEvent struct {
	BaseEvent
	SessionID  string
	SubjectID  string
	SubjectAge string
}

func SessionStarted(be BaseEvent, sessionID, subjectID, subjectAge string) SessionStartedEvent {
	return SessionStartedEvent{BaseEvent: be, SessionID: sessionID, SubjectID: subjectID, SubjectAge: subjectAge}
}

// StimulusInstalledEvent is emitted every time a new stimulus becomes active.
// Summary carries the full normalized spec minus texture handles.
type StimulusInstalledEvent struct {
	BaseEvent
	Generation uint64
	Summary    map[string]any
}

func StimulusInstalled(be BaseEvent, generation uint64, summary map[string]any) StimulusInstalledEvent {
	return StimulusInstalledEvent{BaseEvent: be, Generation: generation, Summary: summary}
}

// StationaryEndedEvent is emitted when a stationary hold expires and motion
// resumes. Channel is "left"/"right" for binocular stimuli, "" otherwise.
type StationaryEndedEvent struct {
	BaseEvent
	Generation uint64
	Channel    string
	Velocity   float32
}

func StationaryEnded(be BaseEvent, generation uint64, channel string, velocity float32) StationaryEndedEvent {
	return StationaryEndedEvent{BaseEvent: be, Generation: generation, Channel: channel, Velocity: velocity}
}

// ChannelStoppedEvent is emitted when a channel reaches its stim-time limit
// and blanks out.
type ChannelStoppedEvent struct {
	BaseEvent
	Generation uint64
	Channel    string
}

func ChannelStopped(be BaseEvent, generation uint64, channel string) ChannelStoppedEvent {
	return ChannelStoppedEvent{BaseEvent: be, Generation: generation, Channel: channel}
}

// SwitchRejectedEvent is emitted when a switch request fails validation and
// the previous stimulus stays active.
type SwitchRejectedEvent struct {
	BaseEvent
	Reason string
}

func SwitchRejected(be BaseEvent, reason string) SwitchRejectedEvent {
	return SwitchRejectedEvent{BaseEvent: be, Reason: reason}
}

// TunnelStartedEvent carries the public URL of the remote-access tunnel.
type TunnelStartedEvent struct {
	BaseEvent
	URL string
}

func TunnelStarted(url string) TunnelStartedEvent {
	return TunnelStartedEvent{BaseEvent: Text("gostim", "Remote tunnel available at "+url), URL: url}
}
