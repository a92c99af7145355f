package server

import (
	"encoding/json"
	"time"

	"github.com/fishlab/gostim/internal/stim"
)

const (
	frameInterval = 100 * time.Millisecond
	maxDotsPerMsg = 512
)

// FrameBroadcaster forwards a thinned stream of frames to websocket
// clients so a browser can preview the stimulus. It never blocks the
// frame driver and never returns an error.
type FrameBroadcaster struct {
	ws   *WebSocketServer
	last time.Time
}

func NewFrameBroadcaster(s *HttpServer) *FrameBroadcaster {
	return &FrameBroadcaster{ws: s.wsServer}
}

type frameData struct {
	Type       string              `json:"type"`
	Generation uint64              `json:"generation"`
	Kind       string              `json:"kind"`
	Phase      string              `json:"phase"`
	Field      *stim.FieldFrame    `json:"field,omitempty"`
	Binocular  *binocularFrameData `json:"binocular,omitempty"`
	RandomDot  *dotFrameData       `json:"randomdot,omitempty"`
}

type binocularFrameData struct {
	Left  stim.EyeFrame `json:"left"`
	Right stim.EyeFrame `json:"right"`
}

type dotFrameData struct {
	Dots    []stim.Dot `json:"dots"`
	DotSize float32    `json:"dotSize"`
	Radius  float32    `json:"radius"`
}

func (b *FrameBroadcaster) Present(f *stim.Frame) error {
	now := time.Now()
	if now.Sub(b.last) < frameInterval {
		return nil
	}
	b.last = now

	data := frameData{
		Type:       "frame",
		Generation: f.Generation,
		Kind:       string(f.Kind),
		Phase:      string(f.Phase),
		Field:      f.Field,
	}
	if f.Binocular != nil {
		data.Binocular = &binocularFrameData{Left: f.Binocular.Left, Right: f.Binocular.Right}
	}
	if f.RandomDot != nil {
		dots := f.RandomDot.Dots
		if len(dots) > maxDotsPerMsg {
			dots = dots[:maxDotsPerMsg]
		}
		data.RandomDot = &dotFrameData{
			Dots:    dots,
			DotSize: f.RandomDot.DotSize,
			Radius:  f.RandomDot.Radius,
		}
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return nil
	}
	b.ws.Broadcast(payload)
	return nil
}
