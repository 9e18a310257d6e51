package finalize

import (
	"testing"

	"github.com/oxyfbx/oxyfbx/internal/connections"
	"github.com/oxyfbx/oxyfbx/internal/elements"
	"github.com/oxyfbx/oxyfbx/internal/nodetree"
	"github.com/oxyfbx/oxyfbx/internal/proptemplate"
	"github.com/oxyfbx/oxyfbx/internal/strpool"
)

func cubeElement() *elements.Element {
	return &elements.Element{
		FbxID: 1,
		Type:  elements.TypeMesh,
		Name:  "Cube",
		Mesh: &elements.MeshData{
			Positions: []float64{
				-1, -1, -1, 1, -1, -1, 1, 1, -1, -1, 1, -1,
				-1, -1, 1, 1, -1, 1, 1, 1, 1, -1, 1, 1,
			},
			PolygonVertices: []int32{0, 1, 2, ^int32(3)},
		},
	}
}

func TestFinalizeMeshFaceTable(t *testing.T) {
	els := []*elements.Element{cubeElement()}
	graph := connections.SynthesizeFromNesting(nil)
	result, err := Run(els, map[int64]int{1: 0}, graph, nil, nil, Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.Meshes) != 1 {
		t.Fatalf("expected one finalized mesh, got %d", len(result.Meshes))
	}
	m := result.Meshes[0]
	if len(m.Faces) != 1 || m.Faces[0].Begin != 0 || m.Faces[0].End != 4 {
		t.Fatalf("unexpected face table: %#v", m.Faces)
	}
	if m.NumTriangles != 2 {
		t.Fatalf("expected a quad to contribute 2 triangles, got %d", m.NumTriangles)
	}
	if m.VertexIndices[3] != 3 {
		t.Fatalf("negated last index not unpacked: %#v", m.VertexIndices)
	}
	for _, v := range m.VertexFirstIndex[:4] {
		if v == elements.NoIndex {
			t.Fatal("expected referenced vertices to have a valid first-index")
		}
	}
}

func TestFinalizeMeshOutOfRangeIndexWarns(t *testing.T) {
	el := cubeElement()
	el.Mesh.PolygonVertices = []int32{0, 1, ^int32(999)}
	graph := connections.SynthesizeFromNesting(nil)
	result, err := Run([]*elements.Element{el}, map[int64]int{1: 0}, graph, nil, nil, Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.Meshes) != 0 {
		t.Fatalf("expected the malformed mesh to be dropped with a warning, got %d meshes", len(result.Meshes))
	}
	if len(result.Warnings) == 0 {
		t.Fatal("expected a warning for the out-of-range polygon vertex index")
	}
}

func TestLinearizeNodesParentChild(t *testing.T) {
	parentEl := &elements.Element{FbxID: 1, Type: elements.TypeNode, Name: "Parent"}
	childEl := &elements.Element{FbxID: 2, Type: elements.TypeNode, Name: "Child"}
	els := []*elements.Element{parentEl, childEl}
	graph := connections.SynthesizeFromNesting([][2]int64{{2, 1}})

	result, err := Run(els, map[int64]int{1: 0, 2: 1}, graph, nil, nil, Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Nodes[1].ParentIndex != 0 {
		t.Fatalf("expected child's parent to resolve to index 0, got %d", result.Nodes[1].ParentIndex)
	}
	if len(result.Nodes[0].Children) != 1 || result.Nodes[0].Children[0] != 1 {
		t.Fatalf("expected parent to list child: %#v", result.Nodes[0].Children)
	}
}

func TestLinearizeNodesBreaksCycle(t *testing.T) {
	a := &elements.Element{FbxID: 1, Type: elements.TypeNode, Name: "A"}
	b := &elements.Element{FbxID: 2, Type: elements.TypeNode, Name: "B"}
	els := []*elements.Element{a, b}
	// a -> b -> a
	graph := connections.SynthesizeFromNesting([][2]int64{{1, 2}, {2, 1}})

	result, err := Run(els, map[int64]int{1: 0, 2: 1}, graph, nil, nil, Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	foundWarning := false
	for _, w := range result.Warnings {
		if w.Desc == "node cycle detected, demoting to root" {
			foundWarning = true
		}
	}
	if !foundWarning {
		t.Fatal("expected a cycle-detection warning")
	}
}

func strVal(pool *strpool.Pool, s string) nodetree.Value {
	h, err := pool.Intern([]byte(s), true)
	if err != nil {
		panic(err)
	}
	return nodetree.Value{Type: nodetree.ValString, Str: h}
}

func numVal(f float64) nodetree.Value {
	return nodetree.Value{Type: nodetree.ValFloat64, Float: f}
}

func TestAttachTemplateDefaultsFillsMissingProperty(t *testing.T) {
	pool := strpool.New(strpool.Replace)

	definitions := &nodetree.Node{
		NameStr: "Definitions",
		Children: []*nodetree.Node{
			{
				NameStr: "ObjectType",
				Values:  []nodetree.Value{strVal(pool, "Model")},
				Children: []*nodetree.Node{
					{
						NameStr: "PropertyTemplate",
						Values:  []nodetree.Value{strVal(pool, "FbxNode")},
						Children: []*nodetree.Node{
							{
								NameStr: "Properties70",
								Children: []*nodetree.Node{
									{
										NameStr: "P",
										Values: []nodetree.Value{
											strVal(pool, "Lcl Scaling"),
											strVal(pool, "Lcl Scaling"),
											strVal(pool, ""),
											strVal(pool, ""),
											numVal(2), numVal(2), numVal(2),
										},
									},
								},
							},
						},
					},
				},
			},
		},
	}

	el := &elements.Element{FbxID: 1, Type: elements.TypeNode, Name: "Root"}
	els := []*elements.Element{el}
	graph := connections.SynthesizeFromNesting(nil)

	result, err := Run(els, map[int64]int{1: 0}, graph, definitions, pool, Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	p, ok := result.Elements[0].Props.Find("Lcl Scaling")
	if !ok {
		t.Fatal("expected Lcl Scaling to resolve via the template default")
	}
	if p.Real[0] != 2 {
		t.Fatalf("got %v, want the template's default scaling of 2", p.Real)
	}
}

func TestWireDeformersSortsVertexInfluencesByWeight(t *testing.T) {
	mesh := cubeElement()
	skin := &elements.Element{FbxID: 2, Type: elements.TypeSkin, Name: "Skin"}
	boneA := &elements.Element{FbxID: 3, Type: elements.TypeBone, Name: "BoneA"}
	boneB := &elements.Element{FbxID: 4, Type: elements.TypeBone, Name: "BoneB"}
	clusterA := &elements.Element{
		FbxID: 5, Type: elements.TypeSkinCluster, Name: "ClusterA",
		Cluster: &elements.ClusterData{Indexes: []int32{0}, Weights: []float64{0.3}},
	}
	clusterB := &elements.Element{
		FbxID: 6, Type: elements.TypeSkinCluster, Name: "ClusterB",
		Cluster: &elements.ClusterData{Indexes: []int32{0}, Weights: []float64{0.7}},
	}
	els := []*elements.Element{mesh, skin, boneA, boneB, clusterA, clusterB}
	ids := map[int64]int{1: 0, 2: 1, 3: 2, 4: 3, 5: 4, 6: 5}

	graph := connections.SynthesizeFromNesting([][2]int64{
		{2, 1}, // Skin -> Geometry
		{5, 2}, // ClusterA -> Skin
		{5, 3}, // ClusterA -> BoneA
		{6, 2}, // ClusterB -> Skin
		{6, 4}, // ClusterB -> BoneB
	})

	result, err := Run(els, ids, graph, nil, nil, Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.Skins) != 1 {
		t.Fatalf("got %d skins, want 1", len(result.Skins))
	}
	skinResult := result.Skins[0]
	if skinResult.GeometryIndex != 0 {
		t.Fatalf("got geometry index %d, want 0", skinResult.GeometryIndex)
	}
	if len(skinResult.Clusters) != 2 {
		t.Fatalf("got %d clusters, want 2", len(skinResult.Clusters))
	}
	influences := skinResult.VertexInfluences[0]
	if len(influences) != 2 {
		t.Fatalf("got %d influences for vertex 0, want 2", len(influences))
	}
	if influences[0].Weight < influences[1].Weight {
		t.Fatalf("expected influences sorted by descending weight, got %#v", influences)
	}
}

func TestGeometryTransformHelperNodesPreservesOffset(t *testing.T) {
	pool := strpool.New(strpool.Replace)
	node := &elements.Element{FbxID: 1, Type: elements.TypeNode, Name: "Offset"}
	if h, err := pool.Intern([]byte("GeometricTranslation"), true); err == nil {
		node.Props.Props = append(node.Props.Props, proptemplate.Property{
			Name: h, NameStr: "GeometricTranslation", Type: proptemplate.TypeVector3,
			Real: [4]float64{5, 0, 0, 0},
		})
	}
	els := []*elements.Element{node}
	graph := connections.SynthesizeFromNesting(nil)

	result, err := Run(els, map[int64]int{1: 0}, graph, nil, pool, Options{GeometryHandling: GeometryTransformHelperNodes})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.GeometryHelpers) != 1 {
		t.Fatalf("got %d geometry helpers, want 1", len(result.GeometryHelpers))
	}
	helper := result.Elements[result.GeometryHelpers[0].HelperIndex]
	p, ok := helper.Props.Find("Lcl Translation")
	if !ok || p.Real[0] != 5 {
		t.Fatalf("expected helper's Lcl Translation to carry the offset, got %#v ok=%v", p, ok)
	}
	owner := result.Elements[result.GeometryHelpers[0].OwnerIndex]
	if p, ok := owner.Props.Find("GeometricTranslation"); ok && p.Real[0] != 0 {
		t.Fatalf("expected owner's GeometricTranslation to be cleared, got %#v", p)
	}
}

func TestAssignFaceMaterialsMapsLocalIndexToGlobalOrdinal(t *testing.T) {
	mesh := cubeElement()
	mesh.Mesh.MaterialLayer = &elements.LayerAttribute{
		Name:      "Materials",
		Mapping:   elements.MappingByPolygon,
		Reference: elements.ReferenceIndexToDirect,
		Values:    []float64{1},
		TupleSize: 1,
	}
	node := &elements.Element{FbxID: 2, Type: elements.TypeNode, Name: "Holder"}
	matA := &elements.Element{FbxID: 3, Type: elements.TypeMaterial, Name: "A"}
	matB := &elements.Element{FbxID: 4, Type: elements.TypeMaterial, Name: "B"}
	els := []*elements.Element{mesh, node, matA, matB}
	ids := map[int64]int{1: 0, 2: 1, 3: 2, 4: 3}

	graph := connections.SynthesizeFromNesting([][2]int64{
		{1, 2}, // Geometry -> Model
		{3, 2}, // MatA -> Model
		{4, 2}, // MatB -> Model
	})

	result, err := Run(els, ids, graph, nil, nil, Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.Meshes) != 1 {
		t.Fatalf("got %d meshes, want 1", len(result.Meshes))
	}
	face := result.Meshes[0].Faces[0]
	if face.Material != 1 {
		t.Fatalf("got face material ordinal %d, want 1 (local index 1 -> MatB)", face.Material)
	}
}

func TestNameTableSorted(t *testing.T) {
	els := []*elements.Element{
		{FbxID: 1, Type: elements.TypeNode, Name: "Zed"},
		{FbxID: 2, Type: elements.TypeNode, Name: "Alpha"},
	}
	graph := connections.SynthesizeFromNesting(nil)
	result, err := Run(els, map[int64]int{1: 0, 2: 1}, graph, nil, nil, Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if els[result.NameTable[0]].Name != "Alpha" {
		t.Fatalf("name table not sorted: %#v", result.NameTable)
	}
}
