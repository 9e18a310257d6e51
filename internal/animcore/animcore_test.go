package animcore

import (
	"math"
	"testing"
)

func TestDecodeCurveArityChecks(t *testing.T) {
	_, err := DecodeCurve([]int64{0, 1}, []float64{0}, nil, nil, nil)
	if err == nil {
		t.Fatal("expected KeyTime/KeyValueFloat mismatch to fail")
	}
}

func TestDecodeCurveRefCountMustSumToKeyCount(t *testing.T) {
	_, err := DecodeCurve(
		[]int64{0, 1000, 2000},
		[]float64{0, 1, 2},
		[]int32{0},
		make([]float64, 4),
		[]int32{2}, // sums to 2, not 3
	)
	if err == nil {
		t.Fatal("expected ref-count sum mismatch to fail")
	}
}

func TestEvaluateLinear(t *testing.T) {
	c := &Curve{Keys: []Key{
		{Time: 0, Value: 0, Interp: InterpLinear},
		{Time: 1000, Value: 10, Interp: InterpLinear},
	}}
	if v := Evaluate(c, 500); math.Abs(v-5) > 1e-9 {
		t.Fatalf("got %v want 5", v)
	}
	if v := Evaluate(c, -100); v != 0 {
		t.Fatalf("clamp-before-first failed: got %v", v)
	}
	if v := Evaluate(c, 5000); v != 10 {
		t.Fatalf("clamp-after-last failed: got %v", v)
	}
}

func TestEvaluateConstPrevAndNext(t *testing.T) {
	c := &Curve{Keys: []Key{
		{Time: 0, Value: 1, Interp: InterpConstNext},
		{Time: 1000, Value: 2, Interp: InterpConstPrev},
		{Time: 2000, Value: 3},
	}}
	if v := Evaluate(c, 500); v != 2 {
		t.Fatalf("const-next bracket: got %v want 2", v)
	}
	if v := Evaluate(c, 1500); v != 2 {
		t.Fatalf("const-prev bracket: got %v want 2", v)
	}
}

func TestKeysMustStrictlyIncrease(t *testing.T) {
	_, err := DecodeCurve(
		[]int64{0, 0},
		[]float64{0, 1},
		[]int32{0},
		make([]float64, 4),
		[]int32{2},
	)
	if err == nil {
		t.Fatal("expected non-increasing key times to fail")
	}
}

func TestFramesToKtime(t *testing.T) {
	k := FramesToKtime(1, 30)
	want := KtimeSecond / 30
	if k != want {
		t.Fatalf("got %d want %d", k, want)
	}
}
