package oxyfbx

import (
	"github.com/oxyfbx/oxyfbx/internal/animcore"
)

// Interpolation mirrors internal/animcore.Interpolation.
type Interpolation int

const (
	InterpCubic Interpolation = iota
	InterpLinear
	InterpConstPrev
	InterpConstNext
)

// AnimCurve is one decoded keyframe curve for a single scalar channel.
type AnimCurve struct {
	curve *animcore.Curve
}

// Evaluate samples the curve at ktime t (animcore.KtimeSecond units per
// second), clamping to the first/last key outside the curve's domain.
func (c *AnimCurve) Evaluate(t int64) float64 {
	if c == nil || c.curve == nil {
		return 0
	}
	return animcore.Evaluate(c.curve, t)
}

// AnimBinding is one (element, property) animation target within a
// layer, carrying up to three channel curves (x/y/z, or a single scalar
// in Curves[0]).
type AnimBinding struct {
	Element  *Element
	PropName string
	Curves   [3]*AnimCurve
}

// Evaluate samples every non-nil channel of the binding at t, returning
// the resolved vector (scalar properties only populate [0]).
func (b *AnimBinding) Evaluate(t int64) [3]float64 {
	var out [3]float64
	for i, c := range b.Curves {
		out[i] = c.Evaluate(t)
	}
	return out
}

// AnimLayer is one AnimationLayer: a set of resolved bindings plus its
// composition mode against other layers in the same stack.
type AnimLayer struct {
	Element         *Element
	ComposeRotation bool
	ComposeScale    bool
	Bindings        []AnimBinding
}

// AnimStack is one AnimationStack: an ordered list of layers and the
// combined ktime range spanned by their curves.
type AnimStack struct {
	Element          *Element
	Layers           []*AnimLayer
	TimeBegin        int64
	TimeEnd          int64

	overrides map[overrideKey]float64
}

type overrideKey struct {
	elementID int
	prop      string
}

// Evaluate resolves every binding across a stack's layers at ktime t,
// applying compose_rotation/compose_scale semantics (additive combine)
// between layers in order and falling back to override semantics
// otherwise (spec.md §4.13), then applying any overrides installed via
// ApplyOverride.
func (s *AnimStack) Evaluate(t int64) map[int]map[string][3]float64 {
	out := make(map[int]map[string][3]float64)
	for _, layer := range s.Layers {
		for _, b := range layer.Bindings {
			v := b.Evaluate(t)
			byProp, ok := out[b.Element.ID]
			if !ok {
				byProp = make(map[string][3]float64)
				out[b.Element.ID] = byProp
			}
			prev, had := byProp[b.PropName]
			if had && (layer.ComposeRotation || layer.ComposeScale) {
				byProp[b.PropName] = [3]float64{prev[0] + v[0], prev[1] + v[1], prev[2] + v[2]}
			} else {
				byProp[b.PropName] = v
			}
		}
	}
	for k, v := range s.overrides {
		byProp, ok := out[k.elementID]
		if !ok {
			byProp = make(map[string][3]float64)
			out[k.elementID] = byProp
		}
		byProp[k.prop] = [3]float64{v, v, v}
	}
	return out
}

// ApplyOverride installs a static value override for (elementID, prop),
// which Evaluate reports in place of any curve-driven value. Installing
// a second override for the same (elementID, prop) fails with
// DUPLICATE_OVERRIDE and leaves the stack unchanged (spec.md §8 scenario
// 6); the underlying curves are never mutated.
func (s *AnimStack) ApplyOverride(elementID int, prop string, value float64) error {
	if s.overrides == nil {
		s.overrides = make(map[overrideKey]float64)
	}
	k := overrideKey{elementID: elementID, prop: prop}
	if _, exists := s.overrides[k]; exists {
		return &Error{Kind: ErrDuplicateOverride, Desc: "duplicate override for element/property", Offset: -1}
	}
	s.overrides[k] = value
	return nil
}
