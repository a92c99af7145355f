package stim

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/fishlab/gostim/internal/texture"
)

func testCatalog() *texture.StaticCatalog {
	return texture.NewStaticCatalog([]int{8, 16, 32, 64}, 32)
}

func testDefaults() Defaults {
	return Defaults{CenterWidth: 16}
}

func TestNormalizeNilRequest(t *testing.T) {
	spec, err := Normalize(nil, testCatalog(), testDefaults())
	if err != nil {
		t.Fatalf("Nil request should normalize cleanly: %v", err)
	}
	if !spec.IsBlank() {
		t.Errorf("Nil request should resolve to the blank stimulus, got %+v", spec)
	}
}

func TestNormalizeUnknownKind(t *testing.T) {
	for _, st := range []string{"", "blank", "whatever", "SINE"} {
		spec, err := Normalize(&Request{StimType: st}, testCatalog(), testDefaults())
		if err != nil {
			t.Fatalf("stim_type %q should normalize cleanly: %v", st, err)
		}
		if !spec.IsBlank() {
			t.Errorf("stim_type %q should resolve to blank, got kind %v", st, spec.Kind)
		}
	}
}

func TestNormalizeField(t *testing.T) {
	freq := IntPair{16, 16}
	req := &Request{
		StimType: "s",
		Freq:     &freq,
		Angle:    FloatPair{45, 45},
		Velocity: FloatPair{0.1, 0.1},
		CenterX:  0.2,
		CenterY:  -0.1,
	}
	spec, err := Normalize(req, testCatalog(), testDefaults())
	if err != nil {
		t.Fatal(err)
	}
	if spec.Kind != KindField {
		t.Fatalf("Kind = %v, want field", spec.Kind)
	}
	f := spec.Field
	if f.Angle != 45 || f.Velocity != 0.1 || f.CenterX != 0.2 || f.CenterY != -0.1 {
		t.Errorf("Field parameters not carried through: %+v", f)
	}
	if f.Texture.Frequency != 16 {
		t.Errorf("Texture frequency = %d, want 16", f.Texture.Frequency)
	}
}

func TestNormalizeUnknownFrequencyFallsBack(t *testing.T) {
	freq := IntPair{999, 999}
	req := &Request{StimType: "s", Freq: &freq}
	spec, err := Normalize(req, testCatalog(), testDefaults())
	if err != nil {
		t.Fatal(err)
	}
	if spec.Field.Texture.Frequency != 32 {
		t.Errorf("Unknown frequency should fall back to default 32, got %d",
			spec.Field.Texture.Frequency)
	}
}

func TestNormalizeMissingFrequencyUsesDefault(t *testing.T) {
	spec, err := Normalize(&Request{StimType: "s"}, testCatalog(), testDefaults())
	if err != nil {
		t.Fatal(err)
	}
	if spec.Field.Texture.Frequency != 32 {
		t.Errorf("Missing freq should use default 32, got %d", spec.Field.Texture.Frequency)
	}
}

func TestNormalizeBinocular(t *testing.T) {
	freq := IntPair{8, 64}
	stim := FloatPair{1, 3}
	req := &Request{
		StimType:   "b",
		Freq:       &freq,
		Angle:      FloatPair{0, 180},
		Velocity:   FloatPair{0.02, -0.02},
		StripAngle: 15,
		StimTime:   &stim,
	}
	spec, err := Normalize(req, testCatalog(), testDefaults())
	if err != nil {
		t.Fatal(err)
	}
	b := spec.Binocular
	if b == nil {
		t.Fatalf("Kind = %v, want binocular", spec.Kind)
	}
	if b.Left.Texture.Frequency != 8 || b.Right.Texture.Frequency != 64 {
		t.Errorf("Per-eye frequencies not split: %d / %d",
			b.Left.Texture.Frequency, b.Right.Texture.Frequency)
	}
	if b.Left.StimTime != 1 || b.Right.StimTime != 3 {
		t.Errorf("Per-eye stim times not split: %v / %v", b.Left.StimTime, b.Right.StimTime)
	}
	if b.CenterWidth != 16 {
		t.Errorf("Missing center_width should default to 16, got %d", b.CenterWidth)
	}
}

func TestNormalizeBinocularExplicitCenterWidth(t *testing.T) {
	zero := 0
	req := &Request{StimType: "b", CenterWidth: &zero}
	spec, err := Normalize(req, testCatalog(), testDefaults())
	if err != nil {
		t.Fatal(err)
	}
	if spec.Binocular.CenterWidth != 0 {
		t.Errorf("Explicit zero center_width must be honored, got %d", spec.Binocular.CenterWidth)
	}

	neg := -4
	_, err = Normalize(&Request{StimType: "b", CenterWidth: &neg}, testCatalog(), testDefaults())
	if !errors.Is(err, ErrInvalidSpec) {
		t.Errorf("Negative center_width should be ErrInvalidSpec, got %v", err)
	}
}

func TestNormalizeRejectsNegativeTimes(t *testing.T) {
	bad := FloatPair{-1, 0}
	for _, req := range []*Request{
		{StimType: "s", StationaryTime: &bad},
		{StimType: "b", StimTime: &bad},
	} {
		_, err := Normalize(req, testCatalog(), testDefaults())
		if !errors.Is(err, ErrInvalidSpec) {
			t.Errorf("Negative time should be ErrInvalidSpec, got %v", err)
		}
	}
}

func TestNormalizeRandomDot(t *testing.T) {
	req := &Request{
		StimType:    "rdk",
		Angle:       FloatPair{90, 90},
		Velocity:    FloatPair{1, 1},
		Coherence:   70,
		Lifetime:    0.5,
		Brightness:  1,
		DotCount:    300,
		DotSize:     2,
		FieldRadius: 0.8,
	}
	spec, err := Normalize(req, testCatalog(), testDefaults())
	if err != nil {
		t.Fatal(err)
	}
	r := spec.RandomDot
	if r == nil {
		t.Fatalf("Kind = %v, want randomdot", spec.Kind)
	}
	if r.Coherence != 70 || r.DotCount != 300 || r.FieldRadius != 0.8 {
		t.Errorf("RandomDot parameters not carried through: %+v", r)
	}
}

func TestNormalizeRandomDotValidation(t *testing.T) {
	base := Request{
		StimType: "rdk", Coherence: 50, Lifetime: 1, Brightness: 1,
		DotCount: 100, DotSize: 1, FieldRadius: 1,
	}
	mutations := []func(*Request){
		func(r *Request) { r.Coherence = 101 },
		func(r *Request) { r.Coherence = -1 },
		func(r *Request) { r.Lifetime = -0.5 },
		func(r *Request) { r.Brightness = -1 },
		func(r *Request) { r.DotCount = 0 },
		func(r *Request) { r.DotSize = 0 },
		func(r *Request) { r.FieldRadius = 0 },
	}
	for i, mutate := range mutations {
		req := base
		mutate(&req)
		_, err := Normalize(&req, testCatalog(), testDefaults())
		if !errors.Is(err, ErrInvalidSpec) {
			t.Errorf("Mutation %d should be ErrInvalidSpec, got %v", i, err)
		}
	}
}

func TestRequestScalarOrPairJSON(t *testing.T) {
	var scalar Request
	if err := json.Unmarshal([]byte(`{"stim_type":"b","angle":45,"freq":16}`), &scalar); err != nil {
		t.Fatal(err)
	}
	if scalar.Angle != (FloatPair{45, 45}) {
		t.Errorf("Scalar angle should fill both slots, got %v", scalar.Angle)
	}
	if *scalar.Freq != (IntPair{16, 16}) {
		t.Errorf("Scalar freq should fill both slots, got %v", *scalar.Freq)
	}

	var pair Request
	if err := json.Unmarshal([]byte(`{"stim_type":"b","angle":[0,180],"stim_time":[1,3]}`), &pair); err != nil {
		t.Fatal(err)
	}
	if pair.Angle != (FloatPair{0, 180}) {
		t.Errorf("Pair angle mis-parsed: %v", pair.Angle)
	}
	if *pair.StimTime != (FloatPair{1, 3}) {
		t.Errorf("Pair stim_time mis-parsed: %v", *pair.StimTime)
	}
}
