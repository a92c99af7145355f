package stim

import (
	"encoding/json"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/fishlab/gostim/internal/texture"
)

// ErrInvalidSpec marks a switch request that cannot be normalized and has no
// safe default. The previously active stimulus stays up when this is returned.
var ErrInvalidSpec = errors.New("invalid stimulus spec")

type Kind string

const (
	KindField     Kind = "field"
	KindBinocular Kind = "binocular"
	KindRandomDot Kind = "randomdot"
)

// Wire stim_type values, matching what tracking software sends.
const (
	wireField     = "s"
	wireBinocular = "b"
	wireRandomDot = "rdk"
	wireBlank     = "blank"
)

// FloatPair is a scalar-or-pair numeric field. Binocular requests carry
// (left, right); everything else sends one value, stored in both slots.
type FloatPair [2]float32

func (p *FloatPair) UnmarshalJSON(data []byte) error {
	var s float32
	if err := json.Unmarshal(data, &s); err == nil {
		*p = FloatPair{s, s}
		return nil
	}
	var a [2]float32
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*p = a
	return nil
}

func (p *FloatPair) UnmarshalYAML(value *yaml.Node) error {
	var s float32
	if err := value.Decode(&s); err == nil {
		*p = FloatPair{s, s}
		return nil
	}
	var a [2]float32
	if err := value.Decode(&a); err != nil {
		return err
	}
	*p = a
	return nil
}

// IntPair is the scalar-or-pair form of integer fields (texture frequency).
type IntPair [2]int

func (p *IntPair) UnmarshalJSON(data []byte) error {
	var s int
	if err := json.Unmarshal(data, &s); err == nil {
		*p = IntPair{s, s}
		return nil
	}
	var a [2]int
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*p = a
	return nil
}

func (p *IntPair) UnmarshalYAML(value *yaml.Node) error {
	var s int
	if err := value.Decode(&s); err == nil {
		*p = IntPair{s, s}
		return nil
	}
	var a [2]int
	if err := value.Decode(&a); err != nil {
		return err
	}
	*p = a
	return nil
}

// Request is the wire shape of a switch event. All fields are optional; a
// nil or unrecognized request normalizes to the blank field stimulus.
type Request struct {
	StimType       string     `json:"stim_type" yaml:"stimType"`
	Freq           *IntPair   `json:"freq,omitempty" yaml:"freq,omitempty"`
	Angle          FloatPair  `json:"angle" yaml:"angle"`
	Velocity       FloatPair  `json:"velocity" yaml:"velocity"`
	CenterX        float32    `json:"center_x" yaml:"centerX"`
	CenterY        float32    `json:"center_y" yaml:"centerY"`
	CenterWidth    *int       `json:"center_width,omitempty" yaml:"centerWidth,omitempty"`
	StripAngle     float32    `json:"strip_angle" yaml:"stripAngle"`
	StationaryTime *FloatPair `json:"stationary_time,omitempty" yaml:"stationaryTime,omitempty"`
	StimTime       *FloatPair `json:"stim_time,omitempty" yaml:"stimTime,omitempty"`
	Coherence      float32    `json:"coherence" yaml:"coherence"`
	Lifetime       float32    `json:"lifetime" yaml:"lifetime"`
	Brightness     float32    `json:"brightness" yaml:"brightness"`
	DotCount       int        `json:"number" yaml:"dotCount"`
	DotSize        float32    `json:"size" yaml:"dotSize"`
	FieldRadius    float32    `json:"window" yaml:"fieldRadius"`
}

// Channel holds the per-eye parameters of a stimulus. Field and RandomDot
// stimuli use a single channel.
type Channel struct {
	Angle          float32
	Velocity       float32
	Texture        texture.Handle
	StationaryTime float32 // seconds motion is held at zero after install; 0 = no hold
	StimTime       float32 // seconds until the channel blanks; 0 = never
}

type FieldSpec struct {
	Channel
	CenterX float32
	CenterY float32
}

type BinocularSpec struct {
	Left        Channel
	Right       Channel
	CenterX     float32
	CenterY     float32
	CenterWidth int
	StripAngle  float32
}

type RandomDotSpec struct {
	Channel
	Coherence   float32 // percent of dots moving coherently, 0-100
	Lifetime    float32 // seconds; 0 = dots respawn every tick
	Brightness  float32
	DotCount    int
	DotSize     float32
	FieldRadius float32
}

// Spec is a fully normalized stimulus descriptor, immutable once installed.
// Exactly one of the kind variants is non-nil.
type Spec struct {
	Kind      Kind
	Field     *FieldSpec
	Binocular *BinocularSpec
	RandomDot *RandomDotSpec
}

// Defaults are the fallback values applied while normalizing requests.
type Defaults struct {
	CenterWidth int
}

// Blank is the safe stimulus: a motionless field with the blank texture.
// It is what the display falls back to whenever nothing better is known.
func Blank(catalog texture.Catalog) Spec {
	return Spec{
		Kind: KindField,
		Field: &FieldSpec{
			Channel: Channel{Texture: catalog.Blank()},
		},
	}
}

// IsBlank reports whether the spec is the motionless blank field.
func (s Spec) IsBlank() bool {
	return s.Kind == KindField && s.Field != nil &&
		s.Field.Velocity == 0 && s.Field.Texture.IsBlank()
}

// Normalize turns a raw switch request into a complete Spec. Resolution is
// fail-soft wherever a default exists (unknown kind or texture, missing
// center width); it fails closed with ErrInvalidSpec only for values that
// have no sensible fallback, such as negative durations.
func Normalize(req *Request, catalog texture.Catalog, def Defaults) (Spec, error) {
	if req == nil {
		return Blank(catalog), nil
	}

	stationary, stim, err := timing(req)
	if err != nil {
		return Spec{}, err
	}

	switch req.StimType {
	case wireField:
		return Spec{
			Kind: KindField,
			Field: &FieldSpec{
				Channel: Channel{
					Angle:          req.Angle[0],
					Velocity:       req.Velocity[0],
					Texture:        resolveFreq(req, 0, catalog),
					StationaryTime: stationary[0],
					StimTime:       stim[0],
				},
				CenterX: req.CenterX,
				CenterY: req.CenterY,
			},
		}, nil

	case wireBinocular:
		width := def.CenterWidth
		if req.CenterWidth != nil {
			if *req.CenterWidth < 0 {
				return Spec{}, fmt.Errorf("%w: center_width %d is negative", ErrInvalidSpec, *req.CenterWidth)
			}
			width = *req.CenterWidth
		}
		return Spec{
			Kind: KindBinocular,
			Binocular: &BinocularSpec{
				Left: Channel{
					Angle:          req.Angle[0],
					Velocity:       req.Velocity[0],
					Texture:        resolveFreq(req, 0, catalog),
					StationaryTime: stationary[0],
					StimTime:       stim[0],
				},
				Right: Channel{
					Angle:          req.Angle[1],
					Velocity:       req.Velocity[1],
					Texture:        resolveFreq(req, 1, catalog),
					StationaryTime: stationary[1],
					StimTime:       stim[1],
				},
				CenterX:     req.CenterX,
				CenterY:     req.CenterY,
				CenterWidth: width,
				StripAngle:  req.StripAngle,
			},
		}, nil

	case wireRandomDot:
		if req.Coherence < 0 || req.Coherence > 100 {
			return Spec{}, fmt.Errorf("%w: coherence %v outside [0,100]", ErrInvalidSpec, req.Coherence)
		}
		if req.Lifetime < 0 {
			return Spec{}, fmt.Errorf("%w: lifetime %v is negative", ErrInvalidSpec, req.Lifetime)
		}
		if req.Brightness < 0 {
			return Spec{}, fmt.Errorf("%w: brightness %v is negative", ErrInvalidSpec, req.Brightness)
		}
		if req.DotCount <= 0 {
			return Spec{}, fmt.Errorf("%w: dot count %d must be positive", ErrInvalidSpec, req.DotCount)
		}
		if req.DotSize <= 0 {
			return Spec{}, fmt.Errorf("%w: dot size %v must be positive", ErrInvalidSpec, req.DotSize)
		}
		if req.FieldRadius <= 0 {
			return Spec{}, fmt.Errorf("%w: field radius %v must be positive", ErrInvalidSpec, req.FieldRadius)
		}
		return Spec{
			Kind: KindRandomDot,
			RandomDot: &RandomDotSpec{
				Channel: Channel{
					Angle:          req.Angle[0],
					Velocity:       req.Velocity[0],
					StationaryTime: stationary[0],
					StimTime:       stim[0],
				},
				Coherence:   req.Coherence,
				Lifetime:    req.Lifetime,
				Brightness:  req.Brightness,
				DotCount:    req.DotCount,
				DotSize:     req.DotSize,
				FieldRadius: req.FieldRadius,
			},
		}, nil

	default:
		// Unknown stim types and explicit "blank" both resolve to the safe
		// blank field; the experiment must keep running on junk input.
		return Blank(catalog), nil
	}
}

func timing(req *Request) (stationary, stim FloatPair, err error) {
	if req.StationaryTime != nil {
		stationary = *req.StationaryTime
	}
	if req.StimTime != nil {
		stim = *req.StimTime
	}
	for i := 0; i < 2; i++ {
		if stationary[i] < 0 {
			return stationary, stim, fmt.Errorf("%w: stationary_time %v is negative", ErrInvalidSpec, stationary[i])
		}
		if stim[i] < 0 {
			return stationary, stim, fmt.Errorf("%w: stim_time %v is negative", ErrInvalidSpec, stim[i])
		}
	}
	return stationary, stim, nil
}

func resolveFreq(req *Request, side int, catalog texture.Catalog) texture.Handle {
	if req.Freq == nil {
		return catalog.Resolve(catalog.DefaultFrequency())
	}
	return catalog.Resolve(req.Freq[side])
}

// Summary flattens the spec for logging. Texture handles are reduced to
// their frequency; they are not serializable data.
func (s Spec) Summary() map[string]any {
	out := map[string]any{"kind": string(s.Kind)}
	switch s.Kind {
	case KindField:
		f := s.Field
		out["angle"] = f.Angle
		out["velocity"] = f.Velocity
		out["texture"] = f.Texture.String()
		out["center_x"] = f.CenterX
		out["center_y"] = f.CenterY
		out["stationary_time"] = f.StationaryTime
		out["stim_time"] = f.StimTime
	case KindBinocular:
		b := s.Binocular
		out["angle"] = [2]float32{b.Left.Angle, b.Right.Angle}
		out["velocity"] = [2]float32{b.Left.Velocity, b.Right.Velocity}
		out["texture"] = [2]string{b.Left.Texture.String(), b.Right.Texture.String()}
		out["center_x"] = b.CenterX
		out["center_y"] = b.CenterY
		out["center_width"] = b.CenterWidth
		out["strip_angle"] = b.StripAngle
		out["stationary_time"] = [2]float32{b.Left.StationaryTime, b.Right.StationaryTime}
		out["stim_time"] = [2]float32{b.Left.StimTime, b.Right.StimTime}
	case KindRandomDot:
		r := s.RandomDot
		out["angle"] = r.Angle
		out["velocity"] = r.Velocity
		out["coherence"] = r.Coherence
		out["lifetime"] = r.Lifetime
		out["brightness"] = r.Brightness
		out["number"] = r.DotCount
		out["size"] = r.DotSize
		out["window"] = r.FieldRadius
		out["stationary_time"] = r.StationaryTime
		out["stim_time"] = r.StimTime
	}
	return out
}
