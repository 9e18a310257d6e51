package objtext

import (
	"strings"
	"testing"
)

func TestParseTriangleWithNormals(t *testing.T) {
	src := `
# a cube corner
o Cube
v 0 0 0
v 1 0 0
v 0 1 0
vn 0 0 1
f 1//1 2//1 3//1
`
	m, err := Parse(strings.NewReader(src), Options{IndexPolicy: IndexAbort})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(m.Positions) != 9 {
		t.Fatalf("expected 3 vertices, got %d floats", len(m.Positions))
	}
	if len(m.Faces) != 1 || len(m.Faces[0].Verts) != 3 {
		t.Fatalf("unexpected faces: %#v", m.Faces)
	}
	if m.Faces[0].Object != "Cube" {
		t.Fatalf("object name not propagated: %q", m.Faces[0].Object)
	}
	fv := m.Faces[0].Verts[0]
	if fv.Pos != 0 || fv.Normal != 0 || fv.UV != -1 {
		t.Fatalf("unexpected face vertex: %#v", fv)
	}
}

func TestParseNegativeIndices(t *testing.T) {
	src := `
v 0 0 0
v 1 0 0
v 0 1 0
f -3 -2 -1
`
	m, err := Parse(strings.NewReader(src), Options{IndexPolicy: IndexAbort})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := []int32{0, 1, 2}
	for i, fv := range m.Faces[0].Verts {
		if fv.Pos != want[i] {
			t.Fatalf("vert %d: got %d want %d", i, fv.Pos, want[i])
		}
	}
}

func TestParseOutOfRangeAbort(t *testing.T) {
	src := `
v 0 0 0
f 1 2 3
`
	_, err := Parse(strings.NewReader(src), Options{IndexPolicy: IndexAbort})
	if err == nil {
		t.Fatal("expected out-of-range index to fail under IndexAbort")
	}
}

func TestParseOutOfRangeClamp(t *testing.T) {
	src := `
v 0 0 0
f 1 2 3
`
	m, err := Parse(strings.NewReader(src), Options{IndexPolicy: IndexClamp})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	for _, fv := range m.Faces[0].Verts {
		if fv.Pos != 0 {
			t.Fatalf("expected clamp to the single valid vertex, got %d", fv.Pos)
		}
	}
}

func TestParseMTLBasic(t *testing.T) {
	src := `
newmtl Red
Kd 1 0 0
Ns 200
map_Kd -s 2 2 red.png
`
	mats, err := ParseMTL(strings.NewReader(src))
	if err != nil {
		t.Fatalf("ParseMTL: %v", err)
	}
	if len(mats) != 1 || mats[0].Name != "Red" {
		t.Fatalf("unexpected materials: %#v", mats)
	}
	if mats[0].Diffuse != [3]float64{1, 0, 0} {
		t.Fatalf("unexpected diffuse: %v", mats[0].Diffuse)
	}
	if mats[0].DiffuseMap == nil || mats[0].DiffuseMap.Path != "red.png" || mats[0].DiffuseMap.ScaleU != 2 {
		t.Fatalf("unexpected diffuse map: %#v", mats[0].DiffuseMap)
	}
	if mats[0].HasRoughness {
		t.Fatal("Pr was never specified, HasRoughness should be false")
	}
	if mats[0].Roughness <= 0 {
		t.Fatal("expected Ns to derive a roughness value")
	}
}
