package elements

import (
	"testing"

	"github.com/oxyfbx/oxyfbx/internal/nodetree"
	"github.com/oxyfbx/oxyfbx/internal/strpool"
)

func TestSplitNameTagModernForm(t *testing.T) {
	name, sub := SplitNameTag("Model::Cube")
	if name != "Cube" || sub != "Model" {
		t.Fatalf("got (%q,%q)", name, sub)
	}
}

func TestSplitNameTagLegacyForm(t *testing.T) {
	name, sub := SplitNameTag("Cube\x00\x01Model")
	if name != "Cube" || sub != "Model" {
		t.Fatalf("got (%q,%q)", name, sub)
	}
}

func buildGeometryNode(pool *strpool.Pool) *nodetree.Node {
	intern := func(s string) strpool.Handle {
		h, _ := pool.Intern([]byte(s), true)
		return h
	}
	vertsNode := &nodetree.Node{
		Name: intern("Vertices"), NameStr: "Vertices",
		Values: []nodetree.Value{{Type: nodetree.ValArrayFloat64, ArrF64: []float64{
			-1, -1, -1, 1, -1, -1, 1, 1, -1, -1, 1, -1,
		}}},
	}
	pvi := &nodetree.Node{
		Name: intern("PolygonVertexIndex"), NameStr: "PolygonVertexIndex",
		Values: []nodetree.Value{{Type: nodetree.ValArrayInt32, ArrI32: []int32{0, 1, 2, ^int32(3)}}},
	}
	geo := &nodetree.Node{
		Name: intern("Geometry"), NameStr: "Geometry",
		Values:   []nodetree.Value{{Type: nodetree.ValInt64, Int64: 1}, {Type: nodetree.ValString, Str: intern("Geometry::Cube")}, {Type: nodetree.ValString, Str: intern("Mesh")}},
		Children: []*nodetree.Node{vertsNode, pvi},
	}
	return geo
}

func TestReadMeshData(t *testing.T) {
	pool := strpool.New(strpool.Replace)
	geo := buildGeometryNode(pool)
	objects := &nodetree.Node{NameStr: "Objects", Children: []*nodetree.Node{geo}}

	r := New(pool, Options{})
	els, err := r.ReadObjects(objects)
	if err != nil {
		t.Fatalf("ReadObjects: %v", err)
	}
	if len(els) != 1 || els[0].Type != TypeMesh {
		t.Fatalf("unexpected elements: %#v", els)
	}
	mesh := els[0].Mesh
	if mesh == nil || len(mesh.Positions) != 12 {
		t.Fatalf("unexpected mesh: %#v", mesh)
	}
	if len(mesh.PolygonVertices) != 4 || mesh.PolygonVertices[3] != ^int32(3) {
		t.Fatalf("polygon vertex index not preserved: %#v", mesh.PolygonVertices)
	}
}

func TestMissingVertexPositionFails(t *testing.T) {
	pool := strpool.New(strpool.Replace)
	geo := &nodetree.Node{NameStr: "Geometry", Values: []nodetree.Value{
		{Type: nodetree.ValInt64, Int64: 1},
		{Type: nodetree.ValString},
		{Type: nodetree.ValString},
	}}
	objects := &nodetree.Node{NameStr: "Objects", Children: []*nodetree.Node{geo}}
	r := New(pool, Options{Strict: true})
	if _, err := r.ReadObjects(objects); err == nil {
		t.Fatal("expected missing vertex position to fail under strict mode")
	}
}
