package oxyfbx

import "testing"

func TestAnimStackApplyOverrideRejectsDuplicate(t *testing.T) {
	s := &AnimStack{}
	if err := s.ApplyOverride(3, "Lcl Translation", 1); err != nil {
		t.Fatalf("first override: %v", err)
	}
	err := s.ApplyOverride(3, "Lcl Translation", 2)
	if err == nil {
		t.Fatal("expected duplicate override to fail")
	}
	oxErr, ok := err.(*Error)
	if !ok {
		t.Fatalf("expected *Error, got %T", err)
	}
	if oxErr.Kind != ErrDuplicateOverride {
		t.Fatalf("got kind %v want ErrDuplicateOverride", oxErr.Kind)
	}
}

func TestAnimStackEvaluateAppliesOverrideLast(t *testing.T) {
	el := &Element{ID: 5}
	curve := &AnimCurve{}
	layer := &AnimLayer{
		Bindings: []AnimBinding{{Element: el, PropName: "Lcl Translation", Curves: [3]*AnimCurve{curve, curve, curve}}},
	}
	s := &AnimStack{Layers: []*AnimLayer{layer}}

	before := s.Evaluate(0)
	if before[5]["Lcl Translation"] != ([3]float64{0, 0, 0}) {
		t.Fatalf("expected curve-driven zero value before override, got %v", before[5]["Lcl Translation"])
	}

	if err := s.ApplyOverride(5, "Lcl Translation", 7); err != nil {
		t.Fatalf("ApplyOverride: %v", err)
	}
	after := s.Evaluate(0)
	want := [3]float64{7, 7, 7}
	if after[5]["Lcl Translation"] != want {
		t.Fatalf("got %v want %v", after[5]["Lcl Translation"], want)
	}
}
