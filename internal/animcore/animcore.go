// Package animcore decodes FBX animation curve key arrays and evaluates
// them, plus composes per-property values across animation layers
// (spec.md §4.13).
package animcore

import (
	"sort"

	"github.com/oxyfbx/oxyfbx/internal/errs"
)

// KtimeSecond is FBX's integer time unit: one second equals this many
// ktime units (spec.md glossary; pinned by ufbx's fixture constants).
const KtimeSecond int64 = 46186158000

// Interpolation is a keyframe's interpolation mode.
type Interpolation int

const (
	InterpCubic Interpolation = iota
	InterpLinear
	InterpConstPrev
	InterpConstNext
)

// TangentMode is the cubic tangent-handling mode (only meaningful when
// Interpolation == InterpCubic).
type TangentMode int

const (
	TangentAuto TangentMode = iota
	TangentUser
	TangentBroken
	TangentTCB
)

// Key is one decoded keyframe.
type Key struct {
	Time        int64 // ktime units
	Value       float64
	LeftSlope   float64
	RightSlope  float64
	Interp      Interpolation
	Tangent     TangentMode
}

// Curve is an ordered, strictly-increasing-time list of Keys.
type Curve struct {
	Keys []Key
}

// flag bits packed into KeyAttrFlags, matching the FBX SDK's documented
// layout closely enough to decode interpolation/tangent/weight modes.
const (
	flagInterpConstant = 0x00000002
	flagInterpLinear   = 0x00000004
	flagInterpCubic    = 0x00000008
	flagConstModeNext  = 0x00000200 // constant-next vs constant-prev (default)
	flagTangentAuto    = 0x00000100
	flagTangentTCB     = 0x00000800
	flagTangentUser    = 0x00002000
	flagTangentBroken  = 0x00800000
)

// DecodeCurve builds a Curve from the parallel arrays binary/ASCII FBX
// stores for an AnimationCurve object, enforcing spec.md §4.13's array-
// length invariants.
func DecodeCurve(keyTime []int64, keyValue []float64, keyAttrFlags []int32, keyAttrData []float64, keyAttrRefCount []int32) (*Curve, *errs.Error) {
	if len(keyTime) != len(keyValue) {
		return nil, errs.Newf(errs.KindBadArraySize, "KeyTime (%d) and KeyValueFloat (%d) length mismatch", len(keyTime), len(keyValue))
	}
	if len(keyAttrFlags) != len(keyAttrRefCount) {
		return nil, errs.Newf(errs.KindBadArraySize, "KeyAttrFlags (%d) and KeyAttrRefCount (%d) length mismatch", len(keyAttrFlags), len(keyAttrRefCount))
	}
	if len(keyAttrData) != 4*len(keyAttrRefCount) {
		return nil, errs.Newf(errs.KindBadArraySize, "KeyAttrDataFloat (%d) must be 4x KeyAttrRefCount (%d)", len(keyAttrData), len(keyAttrRefCount))
	}
	var total int64
	for _, c := range keyAttrRefCount {
		total += int64(c)
	}
	if total != int64(len(keyTime)) {
		return nil, errs.Newf(errs.KindBadArraySize, "KeyAttrRefCount sums to %d, expected %d keyframes", total, len(keyTime))
	}

	keys := make([]Key, len(keyTime))
	attrIdx := 0
	remaining := int32(0)
	if len(keyAttrRefCount) > 0 {
		remaining = keyAttrRefCount[0]
	}
	for i := range keyTime {
		for remaining == 0 && attrIdx < len(keyAttrRefCount)-1 {
			attrIdx++
			remaining = keyAttrRefCount[attrIdx]
		}
		flags := int32(0)
		var data [4]float64
		if attrIdx < len(keyAttrFlags) {
			flags = keyAttrFlags[attrIdx]
			copy(data[:], keyAttrData[attrIdx*4:attrIdx*4+4])
		}
		keys[i] = Key{
			Time:       keyTime[i],
			Value:      keyValue[i],
			Interp:     decodeInterp(flags),
			Tangent:    decodeTangent(flags),
			LeftSlope:  data[0],
			RightSlope: data[2],
		}
		remaining--
	}

	for i := 1; i < len(keys); i++ {
		if keys[i].Time <= keys[i-1].Time {
			return nil, errs.Newf(errs.KindBadArraySize, "key times not strictly increasing at index %d", i)
		}
	}

	return &Curve{Keys: keys}, nil
}

func decodeInterp(flags int32) Interpolation {
	switch {
	case flags&flagInterpConstant != 0:
		if flags&flagConstModeNext != 0 {
			return InterpConstNext
		}
		return InterpConstPrev
	case flags&flagInterpLinear != 0:
		return InterpLinear
	default:
		return InterpCubic
	}
}

func decodeTangent(flags int32) TangentMode {
	switch {
	case flags&flagTangentTCB != 0:
		return TangentTCB
	case flags&flagTangentUser != 0:
		return TangentUser
	case flags&flagTangentBroken != 0:
		return TangentBroken
	default:
		return TangentAuto
	}
}

// Evaluate samples c at time t (ktime units) via binary search followed by
// cubic Hermite, linear, or constant interpolation per the bracketing
// keys' modes.
func Evaluate(c *Curve, t int64) float64 {
	n := len(c.Keys)
	if n == 0 {
		return 0
	}
	if t <= c.Keys[0].Time {
		return c.Keys[0].Value
	}
	if t >= c.Keys[n-1].Time {
		return c.Keys[n-1].Value
	}

	i := sort.Search(n, func(i int) bool { return c.Keys[i].Time > t }) - 1
	if i < 0 {
		i = 0
	}
	if i >= n-1 {
		return c.Keys[n-1].Value
	}
	k0, k1 := c.Keys[i], c.Keys[i+1]

	switch k0.Interp {
	case InterpConstPrev:
		return k0.Value
	case InterpConstNext:
		return k1.Value
	case InterpLinear:
		span := float64(k1.Time - k0.Time)
		frac := float64(t-k0.Time) / span
		return k0.Value + frac*(k1.Value-k0.Value)
	default: // cubic Hermite
		span := float64(k1.Time - k0.Time)
		frac := float64(t-k0.Time) / span
		return hermite(k0.Value, k0.RightSlope*span, k1.Value, k1.LeftSlope*span, frac)
	}
}

// hermite evaluates the cubic Hermite spline through (p0,m0) and (p1,m1)
// at parameter u in [0,1].
func hermite(p0, m0, p1, m1, u float64) float64 {
	u2 := u * u
	u3 := u2 * u
	h00 := 2*u3 - 3*u2 + 1
	h10 := u3 - 2*u2 + u
	h01 := -2*u3 + 3*u2
	h11 := u3 - u2
	return h00*p0 + h10*m0 + h01*p1 + h11*m1
}

// FramesToKtime converts a frame number at fps frames/second to ktime
// units, using the relation ktime = frame * KtimeSecond / fps.
func FramesToKtime(frame float64, fps float64) int64 {
	return int64(frame * float64(KtimeSecond) / fps)
}

// Layer composes AnimValues for one AnimationLayer: whether this layer's
// rotation/scale channels are additive (ComposeRotation/ComposeScale) or
// override previous layers.
type Layer struct {
	Name            string
	ComposeRotation bool
	ComposeScale    bool
	Weight          float64 // 0-100, FBX's percentage convention
}

// ComposeScalar folds prev (the accumulated value from earlier layers) with
// next (this layer's value) according to additive vs. override semantics.
func ComposeScalar(prev, next float64, additive bool) float64 {
	if additive {
		return prev * next
	}
	return next
}

// ComposeAdditiveOffset folds prev and next for non-multiplicative additive
// channels (translation, generic float properties), which FBX composes by
// summation rather than multiplication.
func ComposeAdditiveOffset(prev, next float64, additive bool) float64 {
	if additive {
		return prev + next
	}
	return next
}
