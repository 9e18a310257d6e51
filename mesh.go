package oxyfbx

import "github.com/oxyfbx/oxyfbx/internal/elements"

// NoIndex is the sentinel a Mesh's derived index tables use for "no
// valid index", matching FBX's all-ones convention.
const NoIndex int32 = elements.NoIndex

// Face is one finalized polygon: the half-open [Begin,End) range into
// the mesh's vertex_indices/attribute tables, plus its resolved material
// slot (or NoIndex).
type Face struct {
	Begin, End int
	Material   int32
}

// MeshAttribute is one expanded per-index vertex attribute table (normal,
// UV, color, ...): flattened value tuples plus a parallel per-polygon-
// vertex lookup table built when the scene is assembled (buildMeshAttribute)
// from the attribute's mapping/reference mode.
type MeshAttribute struct {
	Name      string
	TupleSize int
	Values    []float64 // flattened tuples
	Indices   []int32   // length == len(Mesh.VertexIndices); NoIndex marks "no value"
}

// Mesh is one finalized Geometry: a deduplicated position pool, a
// flattened vertex-index stream, a face table, and any expanded
// per-index attribute layers.
type Mesh struct {
	Element *Element

	Positions        []float64 // xyz triples
	VertexIndices    []int32   // positions[3*VertexIndices[i]:...] per flattened slot
	Faces            []Face
	NumTriangles     int
	VertexFirstIndex []int32 // per vertex: one index i with VertexIndices[i]==vertex, or NoIndex

	Normals   *MeshAttribute
	Tangents  *MeshAttribute
	Binormals *MeshAttribute
	UVSets    []*MeshAttribute
	ColorSets []*MeshAttribute
}

func buildMeshAttribute(name string, attr *elements.LayerAttribute, polyVertToVertex []int32, numPolys int, policy elements.IndexPolicy) *MeshAttribute {
	if attr == nil {
		return nil
	}
	indices, _ := elements.Expand(attr, polyVertToVertex, numPolys, policy)
	return &MeshAttribute{
		Name:      name,
		TupleSize: attr.TupleSize,
		Values:    attr.Values,
		Indices:   indices,
	}
}
