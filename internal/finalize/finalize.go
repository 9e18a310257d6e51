// Package finalize runs the post-parse passes that turn a flat element
// list plus a connection graph into fully derived scene state: dense
// element ids, linearized node hierarchy, propagated properties, expanded
// mesh index tables, deformer wiring, animation layer composition, texture
// deduplication, optional geometry-transform helper synthesis, and a
// sorted name table (spec.md §4.12, run in the documented phase order).
package finalize

import (
	"math"
	"path"
	"sort"
	"strings"

	"github.com/oxyfbx/oxyfbx/internal/animcore"
	"github.com/oxyfbx/oxyfbx/internal/connections"
	"github.com/oxyfbx/oxyfbx/internal/elements"
	"github.com/oxyfbx/oxyfbx/internal/errs"
	"github.com/oxyfbx/oxyfbx/internal/nodetree"
	"github.com/oxyfbx/oxyfbx/internal/proptemplate"
	"github.com/oxyfbx/oxyfbx/internal/strpool"
)

// GeometryTransformHandling selects how a mesh's local geometry-transform
// offset (FBX's node-level "GeometricTranslation/Rotation/Scaling"
// properties, which have no analogue in most other DCC formats) is
// exposed downstream.
type GeometryTransformHandling int

const (
	GeometryTransformPreserve GeometryTransformHandling = iota
	GeometryTransformHelperNodes
	GeometryTransformModify
)

// Options configures the finalizer's geometry-transform policy and the
// base directory used to resolve texture paths.
type Options struct {
	GeometryHandling GeometryTransformHandling
	BaseDir          string // source file's directory, for texture path resolution
}

// NodeRecord is the finalized hierarchy entry for one Model-class element:
// its element index, parent's element index (-1 for root), and children.
type NodeRecord struct {
	ElementIndex int
	ParentIndex  int // -1 if none
	Children     []int
}

// Face is one finalized polygon: the half-open [Begin,End) range into the
// mesh's flattened index arrays.
type Face struct {
	Begin, End int
	Material   int32 // dense global material ordinal (Scene.Materials order), or NoIndex
}

// FinalMesh is a Geometry element's expanded, index-validated form.
type FinalMesh struct {
	ElementIndex     int
	Positions        []float64 // xyz triples
	VertexIndices    []int32   // length == NumIndices, positions[VertexIndices[i]]
	Faces            []Face
	NumTriangles     int
	VertexFirstIndex []int32 // per vertex: some index i with VertexIndices[i]==vertex, or NoIndex

	Normals   []int32 // per-index resolved table, or nil
	UVSets    [][]int32
	ColorSets [][]int32
}

// AnimValueBinding is one resolved (element, property) animation binding
// within a layer: up to three curves (x/y/z) feeding a vector property,
// or a single curve for a scalar one.
type AnimValueBinding struct {
	ElementIndex int
	PropName     string
	Curves       [3]*animcore.Curve // nil entries mean "use the property's static default"
}

// FinalLayer is one AnimationLayer's resolved, prop-name-sorted bindings.
type FinalLayer struct {
	ElementIndex    int
	ComposeRotation bool
	ComposeScale    bool
	Bindings        []AnimValueBinding
}

// FinalStack is one AnimationStack: its ordered layers and combined time
// range in ktime units.
type FinalStack struct {
	ElementIndex int
	Layers       []int // indices into Result.Layers
	TimeBegin    int64
	TimeEnd      int64
}

// TextureRecord is a deduplicated, path-resolved texture.
type TextureRecord struct {
	ElementIndex  int
	ResolvedPath  string
	DuplicateOf   int // element index of the canonical texture this one case-insensitively matches, or -1
}

// VertexInfluence is one cluster's weighted influence on a control point.
// FinalSkin.VertexInfluences sorts each control point's slice by descending
// weight so a consumer can take the top-N without re-sorting.
type VertexInfluence struct {
	ClusterIndex int // index into the owning FinalSkin.Clusters
	Weight       float64
}

// FinalCluster is one Skin cluster's bind-pose payload, resolved to the
// bone/limb node element it binds to.
type FinalCluster struct {
	ElementIndex  int
	LinkIndex     int // bound Model-class element index, or -1 if unresolved
	Indexes       []int32
	Weights       []float64
	Transform     [16]float64
	TransformLink [16]float64
}

// FinalSkin is a Skin deformer resolved against its Geometry and Clusters.
type FinalSkin struct {
	ElementIndex     int
	GeometryIndex    int // -1 if unresolved
	Clusters         []FinalCluster
	VertexInfluences map[int][]VertexInfluence // control-point index -> sorted influences
}

// FinalBlendChannel is one BlendShapeChannel resolved to its target Shape
// geometry.
type FinalBlendChannel struct {
	ElementIndex  int
	DeformPercent float64
	FullWeights   []float64
	ShapeIndex    int // target Shape Geometry element index, or -1 if unresolved
}

// FinalBlendShape is a BlendShape deformer's resolved channel list.
type FinalBlendShape struct {
	ElementIndex int
	Channels     []FinalBlendChannel
}

// GeometryTransformHelper records a node synthesized to carry a Model's
// local geometry-transform offset as an ordinary TRS (GeometryTransform
// HelperNodes mode), so a consumer can walk the hierarchy without
// special-casing GeometricTranslation/Rotation/Scaling.
type GeometryTransformHelper struct {
	OwnerIndex  int // the original Model-class element the offset came from
	HelperIndex int // the synthesized child node's element index
}

// Warning is a demoted per-phase diagnostic.
type Warning struct {
	Kind errs.Kind
	Desc string
}

// Result is everything the finalizer derives from a raw element+connection
// set.
type Result struct {
	Elements        []*elements.Element
	TypedIDs        map[elements.Type][]int // type -> element indices, in parse order
	Nodes           []NodeRecord             // parallel to Elements where Type indicates a Model-class element
	NameTable       []int                    // element indices sorted by name
	Meshes          []*FinalMesh
	Layers          []*FinalLayer
	Stacks          []*FinalStack
	Textures        []*TextureRecord
	Skins           []*FinalSkin
	BlendShapes     []*FinalBlendShape
	GeometryHelpers []GeometryTransformHelper
	Warnings        []Warning
}

// Run executes all nine phases in order.
func Run(els []*elements.Element, fbxIDToIndex map[int64]int, graph *connections.Graph, definitionsNode *nodetree.Node, pool *strpool.Pool, opts Options) (*Result, *errs.Error) {
	r := &Result{Elements: els}

	// Phase 1: element table / typed_id lists.
	r.TypedIDs = make(map[elements.Type][]int)
	for i, el := range els {
		r.TypedIDs[el.Type] = append(r.TypedIDs[el.Type], i)
	}

	// Phase 2: node linearization.
	nodes, warn := linearizeNodes(els, fbxIDToIndex, graph)
	r.Nodes = nodes
	r.Warnings = append(r.Warnings, warn...)

	// Phase 3: property/template propagation. Each Definitions ObjectType's
	// PropertyTemplate becomes a chained default set so Props.Find falls
	// back to it for properties an element doesn't override locally.
	templates, terr := buildTemplates(definitionsNode, pool)
	if terr != nil {
		return nil, terr
	}
	attachTemplateDefaults(els, templates)

	// Phase 4: mesh finalization, including per-face material assignment.
	for i, el := range els {
		if el.Type != elements.TypeMesh || el.Mesh == nil {
			continue
		}
		fm, ferr := finalizeMesh(i, el)
		if ferr != nil {
			if ferr.Kind == errs.KindBadIndex {
				r.Warnings = append(r.Warnings, Warning{Kind: ferr.Kind, Desc: ferr.Desc})
				continue
			}
			return nil, ferr
		}
		r.Meshes = append(r.Meshes, fm)
	}
	assignFaceMaterials(r, els, fbxIDToIndex, graph)

	// Phase 5: deformer wiring (skin/cluster bind data, blend shape
	// channels).
	r.Skins, r.BlendShapes = wireDeformers(els, fbxIDToIndex, graph)

	// Phase 6: animation wiring.
	r.Layers, r.Stacks = wireAnimation(els, fbxIDToIndex, graph)

	// Phase 7: texture resolution + case-insensitive dedup.
	r.Textures = resolveTextures(els, opts.BaseDir)

	// Phase 8: geometry-transform handling.
	els = applyGeometryTransform(r, els, fbxIDToIndex, graph, opts)

	// Phase 9: name table.
	r.NameTable = buildNameTable(els)

	return r, nil
}

// wireAnimation builds, for each AnimationLayer, a prop-name-sorted list of
// (element, property) -> curve bindings by walking the layer's connected
// AnimationCurveNodes (AnimValues) and each AnimValue's connected
// AnimationCurves (x/y/z channels, keyed by destination property "d|X" /
// "d|Y" / "d|Z" or "d|DeformPercent" for scalars). Then for each
// AnimationStack, collects its connected layers in the graph's
// per-destination order (ascending layer FBX id) and
// computes the combined time range across all bindings.
func wireAnimation(els []*elements.Element, fbxIDToIndex map[int64]int, graph *connections.Graph) ([]*FinalLayer, []*FinalStack) {
	var layers []*FinalLayer
	layerIndexByElement := make(map[int]int)

	for i, el := range els {
		if el.Type != elements.TypeAnimLayer {
			continue
		}
		fl := &FinalLayer{ElementIndex: i}
		if p, ok := el.Props.Find("BlendMode"); ok && p.Int != 0 {
			fl.ComposeRotation = true
			fl.ComposeScale = true
		}

		byProp := make(map[string]*AnimValueBinding)
		var order []string
		for _, c := range graph.DstRange(el.FbxID) {
			vi, ok := fbxIDToIndex[c.SrcID]
			if !ok || els[vi].Type != elements.TypeAnimValue {
				continue
			}
			// The AnimValue's own destination connection names the target
			// element/property (e.g. dst=Model, DstProp="Lcl Translation").
			for _, vc := range graph.SrcRange(els[vi].FbxID) {
				if vc.DstProp == "" {
					continue
				}
				target, ok := fbxIDToIndex[vc.DstID]
				if !ok {
					continue
				}
				key := vc.DstProp
				b, exists := byProp[key]
				if !exists {
					b = &AnimValueBinding{ElementIndex: target, PropName: key}
					byProp[key] = b
					order = append(order, key)
				}
				attachChannelCurves(els, graph, fbxIDToIndex, els[vi].FbxID, b)
			}
		}
		sort.Strings(order)
		for _, k := range order {
			fl.Bindings = append(fl.Bindings, *byProp[k])
		}
		layerIndexByElement[i] = len(layers)
		layers = append(layers, fl)
	}

	var stacks []*FinalStack
	for i, el := range els {
		if el.Type != elements.TypeAnimStack {
			continue
		}
		fs := &FinalStack{ElementIndex: i, TimeBegin: 1<<63 - 1, TimeEnd: -(1 << 63)}
		for _, c := range graph.DstRange(el.FbxID) {
			li, ok := fbxIDToIndex[c.SrcID]
			if !ok || els[li].Type != elements.TypeAnimLayer {
				continue
			}
			idx, ok := layerIndexByElement[li]
			if !ok {
				continue
			}
			fs.Layers = append(fs.Layers, idx)
			for _, b := range layers[idx].Bindings {
				for _, curve := range b.Curves {
					if curve == nil || len(curve.Keys) == 0 {
						continue
					}
					if curve.Keys[0].Time < fs.TimeBegin {
						fs.TimeBegin = curve.Keys[0].Time
					}
					if last := curve.Keys[len(curve.Keys)-1].Time; last > fs.TimeEnd {
						fs.TimeEnd = last
					}
				}
			}
		}
		if len(fs.Layers) == 0 {
			fs.TimeBegin, fs.TimeEnd = 0, 0
		}
		stacks = append(stacks, fs)
	}

	return layers, stacks
}

// attachChannelCurves finds the AnimationCurve objects feeding animValueID
// (the curve nodes connect to the AnimValue with DstProp "d|X"/"d|Y"/"d|Z")
// and places each into the matching slot of b.Curves.
func attachChannelCurves(els []*elements.Element, graph *connections.Graph, fbxIDToIndex map[int64]int, animValueID int64, b *AnimValueBinding) {
	for _, c := range graph.DstRange(animValueID) {
		ci, ok := fbxIDToIndex[c.SrcID]
		if !ok || els[ci].Type != elements.TypeAnimCurve || els[ci].Curve == nil {
			continue
		}
		slot := channelSlot(c.DstProp)
		if slot < 0 {
			slot = 0
		}
		b.Curves[slot] = els[ci].Curve
	}
}

func channelSlot(dstProp string) int {
	switch dstProp {
	case "d|X":
		return 0
	case "d|Y":
		return 1
	case "d|Z":
		return 2
	default:
		return 0
	}
}

// isNodeLike reports whether t is one of the Model-class element types that
// participate in the node hierarchy (as opposed to Deformers, Materials,
// Textures, and the other non-hierarchy object classes).
func isNodeLike(t elements.Type) bool {
	switch t {
	case elements.TypeNode, elements.TypeBone, elements.TypeNull, elements.TypeCamera,
		elements.TypeLight, elements.TypeStereoCamera, elements.TypeLODGroup:
		return true
	}
	return false
}

// linearizeNodes resolves the parent and children of each Model-class
// element, detecting and breaking cycles by demoting the offending node to
// root. The records stay parallel to els; they are not reordered
// topologically.
func linearizeNodes(els []*elements.Element, fbxIDToIndex map[int64]int, graph *connections.Graph) ([]NodeRecord, []Warning) {
	parent := make([]int, len(els))
	for i := range parent {
		parent[i] = -1
	}
	for i, el := range els {
		if !isNodeLike(el.Type) {
			continue
		}
		for _, c := range graph.SrcRange(el.FbxID) {
			if c.DstProp != "" {
				continue // property connection, not a parent link
			}
			if pi, ok := fbxIDToIndex[c.DstID]; ok && isNodeLike(els[pi].Type) {
				parent[i] = pi
				break
			}
		}
	}

	var warnings []Warning
	// Cycle detection: walk each chain with a visited marker; a repeat
	// visit within the same walk means a cycle, broken by demoting the
	// starting node to root.
	color := make([]int, len(els)) // 0=white,1=gray,2=black
	var detectCycle func(i int) bool
	detectCycle = func(i int) bool {
		if color[i] == 2 {
			return false
		}
		if color[i] == 1 {
			return true
		}
		color[i] = 1
		if parent[i] >= 0 && detectCycle(parent[i]) {
			return true
		}
		color[i] = 2
		return false
	}
	for i, el := range els {
		if !isNodeLike(el.Type) || color[i] != 0 {
			continue
		}
		if detectCycle(i) {
			warnings = append(warnings, Warning{Kind: errs.KindBadIndex, Desc: "node cycle detected, demoting to root"})
			parent[i] = -1
		}
	}

	nodes := make([]NodeRecord, len(els))
	for i := range els {
		nodes[i] = NodeRecord{ElementIndex: i, ParentIndex: -1}
	}
	for i, el := range els {
		if !isNodeLike(el.Type) {
			continue
		}
		nodes[i].ParentIndex = parent[i]
		if parent[i] >= 0 {
			nodes[parent[i]].Children = append(nodes[parent[i]].Children, i)
		}
	}
	return nodes, warnings
}

// objectTypeName maps an internal Type back to the Definitions block's
// ObjectType name it was classified from (the reverse of elements.classify),
// so a parsed element can look up its PropertyTemplate candidates.
func objectTypeName(t elements.Type) string {
	switch t {
	case elements.TypeMesh:
		return "Geometry"
	case elements.TypeNode, elements.TypeBone, elements.TypeNull, elements.TypeCamera,
		elements.TypeLight, elements.TypeStereoCamera, elements.TypeLODGroup:
		return "Model"
	case elements.TypeSkin, elements.TypeSkinCluster, elements.TypeBlendDeformer,
		elements.TypeBlendChannel, elements.TypeCacheDeformer, elements.TypeCacheFile:
		return "Deformer"
	case elements.TypeMaterial:
		return "Material"
	case elements.TypeTexture:
		return "Texture"
	case elements.TypeLayeredTexture:
		return "LayeredTexture"
	case elements.TypeVideo:
		return "Video"
	case elements.TypeAnimStack:
		return "AnimationStack"
	case elements.TypeAnimLayer:
		return "AnimationLayer"
	case elements.TypeAnimValue:
		return "AnimationCurveNode"
	case elements.TypeAnimCurve:
		return "AnimationCurve"
	case elements.TypePose:
		return "Pose"
	case elements.TypeConstraint:
		return "Constraint"
	case elements.TypeSelectionSet, elements.TypeDisplayLayer:
		return "CollectionExclusive"
	case elements.TypeSelectionNode:
		return "SelectionNode"
	default:
		return ""
	}
}

// buildTemplates reads the Definitions block's ObjectType/PropertyTemplate
// entries into a map keyed by ObjectType name, each value the list of
// templates declared for it (usually one, more for ObjectTypes like
// "Material" that declare a template per shading model).
func buildTemplates(definitionsNode *nodetree.Node, pool *strpool.Pool) (map[string][]*proptemplate.Template, *errs.Error) {
	out := make(map[string][]*proptemplate.Template)
	if definitionsNode == nil {
		return out, nil
	}
	for _, ot := range definitionsNode.FindAll("ObjectType") {
		typeName := ot.StringAt(0, pool)
		if typeName == "" {
			continue
		}
		for _, pt := range ot.FindAll("PropertyTemplate") {
			subType := pt.StringAt(0, pool)
			var set proptemplate.Set
			if props := pt.Find("Properties70"); props != nil {
				s, perr := proptemplate.ReadProperties70(props, pool)
				if perr != nil {
					return nil, perr
				}
				set = s
			} else if props := pt.Find("Properties60"); props != nil {
				s, perr := proptemplate.ReadProperties60(props, pool)
				if perr != nil {
					return nil, perr
				}
				set = s
			}
			out[typeName] = append(out[typeName], &proptemplate.Template{Type: typeName, SubType: subType, Props: set})
		}
	}
	return out, nil
}

// attachTemplateDefaults chains each element's Props to the best-matching
// template for its (ObjectType, SubType): an exact-ish match on SubType
// (e.g. an "FbxSurfacePhong" template for a Phong material) if one exists,
// otherwise the ObjectType's first (often only) template.
func attachTemplateDefaults(els []*elements.Element, templates map[string][]*proptemplate.Template) {
	for _, el := range els {
		candidates := templates[objectTypeName(el.Type)]
		if len(candidates) == 0 {
			continue
		}
		best := candidates[0]
		if el.SubType != "" {
			for _, c := range candidates {
				if strings.Contains(strings.ToLower(c.SubType), strings.ToLower(el.SubType)) {
					best = c
					break
				}
			}
		}
		el.Props.Defaults = best
	}
}

// finalizeMesh expands the polygon-vertex index stream (negated-last
// convention) into a face table, builds vertex_first_index, and counts
// triangles (fan triangulation count, n-2 per n-gon).
func finalizeMesh(elementIndex int, el *elements.Element) (*FinalMesh, *errs.Error) {
	md := el.Mesh
	fm := &FinalMesh{ElementIndex: elementIndex, Positions: md.Positions}

	numVerts := len(md.Positions) / 3
	fm.VertexIndices = make([]int32, len(md.PolygonVertices))
	fm.VertexFirstIndex = make([]int32, numVerts)
	for i := range fm.VertexFirstIndex {
		fm.VertexFirstIndex[i] = elements.NoIndex
	}

	faceStart := 0
	for i, raw := range md.PolygonVertices {
		last := raw < 0
		v := raw
		if last {
			v = ^raw
		}
		if v < 0 || int(v) >= numVerts {
			return nil, errs.Newf(errs.KindBadIndex, "polygon vertex index %d out of range [0,%d)", v, numVerts)
		}
		fm.VertexIndices[i] = v
		if fm.VertexFirstIndex[v] == elements.NoIndex {
			fm.VertexFirstIndex[v] = int32(i)
		}
		if last {
			n := i - faceStart + 1
			fm.Faces = append(fm.Faces, Face{Begin: faceStart, End: i + 1, Material: elements.NoIndex})
			if n >= 3 {
				fm.NumTriangles += n - 2
			}
			faceStart = i + 1
		}
	}

	return fm, nil
}

// materialOrdinals maps each Material element's index to its dense position
// among TypeMaterial elements in parse order — the same order buildScene
// uses to build the public Scene.Materials array, so Face.Material stays
// consistent with it.
func materialOrdinals(els []*elements.Element) map[int]int32 {
	out := make(map[int]int32)
	var n int32
	for i, el := range els {
		if el.Type == elements.TypeMaterial {
			out[i] = n
			n++
		}
	}
	return out
}

// assignFaceMaterials expands each mesh's Materials LayerElement: FBX
// stores the per-polygon material index directly in the Materials array
// (AllSame: one shared value; ByPolygon: one value per polygon, in file
// order) rather than through a separate index array, and that value is
// local to the owning Model's connected-material list. Face.Material is
// remapped from that local index to the dense global ordinal
// Scene.Materials uses.
func assignFaceMaterials(r *Result, els []*elements.Element, fbxIDToIndex map[int64]int, graph *connections.Graph) {
	ordinal := materialOrdinals(els)

	for _, fm := range r.Meshes {
		el := els[fm.ElementIndex]
		if el.Mesh == nil || el.Mesh.MaterialLayer == nil {
			continue
		}
		layer := el.Mesh.MaterialLayer

		var modelMaterials []int32 // local index -> global ordinal, in the graph's per-destination order (ascending material FBX id)
		for _, c := range graph.SrcRange(el.FbxID) {
			mi, ok := fbxIDToIndex[c.DstID]
			if !ok || !isNodeLike(els[mi].Type) {
				continue
			}
			for _, mc := range graph.DstRange(els[mi].FbxID) {
				matIdx, ok := fbxIDToIndex[mc.SrcID]
				if ok && els[matIdx].Type == elements.TypeMaterial {
					modelMaterials = append(modelMaterials, ordinal[matIdx])
				}
			}
			break
		}
		if len(modelMaterials) == 0 {
			continue
		}

		localIndexFor := func(polyIndex int) int {
			switch layer.Mapping {
			case elements.MappingAllSame:
				if len(layer.Values) > 0 {
					return int(layer.Values[0])
				}
			default: // MappingByPolygon, the only other form FBX emits for materials
				if polyIndex < len(layer.Values) {
					return int(layer.Values[polyIndex])
				}
			}
			return -1
		}

		for pi := range fm.Faces {
			local := localIndexFor(pi)
			if local < 0 || local >= len(modelMaterials) {
				fm.Faces[pi].Material = elements.NoIndex
				continue
			}
			fm.Faces[pi].Material = modelMaterials[local]
		}
	}
}

// resolveTextures resolves texture element "Filename"/"RelativeFilename"
// properties (stored as generic properties on the Texture element, read
// through Props) against baseDir and deduplicates case-insensitively.
func resolveTextures(els []*elements.Element, baseDir string) []*TextureRecord {
	var recs []*TextureRecord
	seen := make(map[string]int) // lowercased resolved path -> element index of canonical record

	for i, el := range els {
		if el.Type != elements.TypeVideo && el.Type != elements.TypeTexture {
			continue
		}
		raw := ""
		if p, ok := el.Props.Find("RelativeFilename"); ok {
			raw = p.Str
		} else if p, ok := el.Props.Find("Filename"); ok {
			raw = p.Str
		}
		resolved := raw
		if baseDir != "" && raw != "" && !path.IsAbs(raw) {
			resolved = path.Join(baseDir, filepathToSlash(raw))
		}
		key := strings.ToLower(resolved)
		rec := &TextureRecord{ElementIndex: i, ResolvedPath: resolved, DuplicateOf: -1}
		if canonical, ok := seen[key]; ok && key != "" {
			rec.DuplicateOf = canonical
		} else if key != "" {
			seen[key] = i
		}
		recs = append(recs, rec)
	}
	return recs
}

func filepathToSlash(p string) string {
	return strings.ReplaceAll(p, "\\", "/")
}

func buildNameTable(els []*elements.Element) []int {
	idx := make([]int, len(els))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool { return els[idx[i]].Name < els[idx[j]].Name })
	return idx
}

// wireDeformers resolves Skin deformers against their bound Geometry and
// Clusters, and BlendShape deformers against their BlendShapeChannels and
// target Shape geometries. Connection direction follows the rest of the
// package's "source feeds destination" convention: Skin->Geometry,
// Cluster->Skin, Cluster->bone Model, BlendShapeChannel->BlendShape
// deformer, BlendShapeChannel->Shape geometry.
func wireDeformers(els []*elements.Element, fbxIDToIndex map[int64]int, graph *connections.Graph) ([]*FinalSkin, []*FinalBlendShape) {
	var skins []*FinalSkin
	for i, el := range els {
		if el.Type != elements.TypeSkin {
			continue
		}
		fs := &FinalSkin{ElementIndex: i, GeometryIndex: -1, VertexInfluences: make(map[int][]VertexInfluence)}

		for _, c := range graph.SrcRange(el.FbxID) {
			gi, ok := fbxIDToIndex[c.DstID]
			if ok && els[gi].Type == elements.TypeMesh {
				fs.GeometryIndex = gi
				break
			}
		}

		for _, c := range graph.DstRange(el.FbxID) {
			ci, ok := fbxIDToIndex[c.SrcID]
			if !ok || els[ci].Type != elements.TypeSkinCluster || els[ci].Cluster == nil {
				continue
			}
			cluster := els[ci].Cluster
			fc := FinalCluster{
				ElementIndex:  ci,
				LinkIndex:     -1,
				Indexes:       cluster.Indexes,
				Weights:       cluster.Weights,
				Transform:     cluster.Transform,
				TransformLink: cluster.TransformLink,
			}
			for _, lc := range graph.SrcRange(els[ci].FbxID) {
				if lc.DstID == el.FbxID {
					continue // the Cluster->Skin link itself, not the bound bone
				}
				li, ok := fbxIDToIndex[lc.DstID]
				if ok && isNodeLike(els[li].Type) {
					fc.LinkIndex = li
					break
				}
			}

			clusterIdx := len(fs.Clusters)
			fs.Clusters = append(fs.Clusters, fc)

			n := len(fc.Indexes)
			if len(fc.Weights) < n {
				n = len(fc.Weights)
			}
			for k := 0; k < n; k++ {
				vi := int(fc.Indexes[k])
				fs.VertexInfluences[vi] = append(fs.VertexInfluences[vi], VertexInfluence{ClusterIndex: clusterIdx, Weight: fc.Weights[k]})
			}
		}

		for _, infl := range fs.VertexInfluences {
			sort.Slice(infl, func(a, b int) bool { return infl[a].Weight > infl[b].Weight })
		}
		skins = append(skins, fs)
	}

	var blendShapes []*FinalBlendShape
	for i, el := range els {
		if el.Type != elements.TypeBlendDeformer {
			continue
		}
		fb := &FinalBlendShape{ElementIndex: i}
		for _, c := range graph.DstRange(el.FbxID) {
			chi, ok := fbxIDToIndex[c.SrcID]
			if !ok || els[chi].Type != elements.TypeBlendChannel || els[chi].BlendChannel == nil {
				continue
			}
			bc := els[chi].BlendChannel
			fc := FinalBlendChannel{
				ElementIndex:  chi,
				DeformPercent: bc.DeformPercent,
				FullWeights:   bc.FullWeights,
				ShapeIndex:    -1,
			}
			for _, sc := range graph.SrcRange(els[chi].FbxID) {
				si, ok := fbxIDToIndex[sc.DstID]
				if ok && els[si].Type == elements.TypeMesh {
					fc.ShapeIndex = si
					break
				}
			}
			fb.Channels = append(fb.Channels, fc)
		}
		blendShapes = append(blendShapes, fb)
	}

	return skins, blendShapes
}

// connectedMeshes returns the Geometry element indices instanced by node
// (the Geometry->Model "instancing" connection, src=Geometry, dst=Model).
func connectedMeshes(node *elements.Element, els []*elements.Element, fbxIDToIndex map[int64]int, graph *connections.Graph) []int {
	var out []int
	for _, c := range graph.DstRange(node.FbxID) {
		si, ok := fbxIDToIndex[c.SrcID]
		if ok && els[si].Type == elements.TypeMesh {
			out = append(out, si)
		}
	}
	return out
}

// propVec3 reads a 3-component property by name, falling back to def when
// absent. Unlike the public PropertySet wrapper, proptemplate.Set exposes
// only Find; callers needing a Vector3 read its Real components directly.
func propVec3(props *proptemplate.Set, name string, def [3]float64) [3]float64 {
	p, ok := props.Find(name)
	if !ok {
		return def
	}
	return [3]float64{p.Real[0], p.Real[1], p.Real[2]}
}

// setVec3 sets a 3-component property in props's own local slice (never
// through Defaults, which may be shared by every element of the same
// template and must not be mutated), inserting a new sorted entry if the
// name isn't already present locally.
func setVec3(props *proptemplate.Set, name string, v [3]float64) {
	i := sort.Search(len(props.Props), func(i int) bool { return props.Props[i].NameStr >= name })
	if i < len(props.Props) && props.Props[i].NameStr == name {
		props.Props[i].Real[0], props.Props[i].Real[1], props.Props[i].Real[2] = v[0], v[1], v[2]
		return
	}
	props.Props = append(props.Props, proptemplate.Property{})
	copy(props.Props[i+1:], props.Props[i:])
	props.Props[i] = proptemplate.Property{
		NameStr: name,
		Type:    proptemplate.TypeVector3,
		Real:    [4]float64{v[0], v[1], v[2], 0},
	}
}

// geometricOffset reads a node-like element's GeometricTranslation/
// Rotation/Scaling triple, FBX's node-local-only offset that (unlike
// ordinary Lcl Translation/Rotation/Scaling) children never inherit.
func geometricOffset(el *elements.Element) (t, rot, s [3]float64) {
	t = propVec3(&el.Props, "GeometricTranslation", [3]float64{})
	rot = propVec3(&el.Props, "GeometricRotation", [3]float64{})
	s = propVec3(&el.Props, "GeometricScaling", [3]float64{1, 1, 1})
	return
}

func clearGeometricTransformProps(el *elements.Element) {
	setVec3(&el.Props, "GeometricTranslation", [3]float64{})
	setVec3(&el.Props, "GeometricRotation", [3]float64{})
	setVec3(&el.Props, "GeometricScaling", [3]float64{1, 1, 1})
}

// bakeGeometryTransform applies scale, then an Euler-XYZ rotation (degrees),
// then translation to every position triple in place. No matrix/quaternion
// library is wired for this; the rotation is composed directly via
// math.Sin/math.Cos, which is exact for the axis-angle triple FBX stores.
func bakeGeometryTransform(md *elements.MeshData, t, rot, s [3]float64) {
	if md == nil {
		return
	}
	rx := rot[0] * math.Pi / 180
	ry := rot[1] * math.Pi / 180
	rz := rot[2] * math.Pi / 180
	sinX, cosX := math.Sin(rx), math.Cos(rx)
	sinY, cosY := math.Sin(ry), math.Cos(ry)
	sinZ, cosZ := math.Sin(rz), math.Cos(rz)

	for i := 0; i+2 < len(md.Positions); i += 3 {
		x, y, z := md.Positions[i]*s[0], md.Positions[i+1]*s[1], md.Positions[i+2]*s[2]

		y, z = y*cosX-z*sinX, y*sinX+z*cosX
		x, z = x*cosY+z*sinY, -x*sinY+z*cosY
		x, y = x*cosZ-y*sinZ, x*sinZ+y*cosZ

		md.Positions[i] = x + t[0]
		md.Positions[i+1] = y + t[1]
		md.Positions[i+2] = z + t[2]
	}
}

func syntheticFbxID(elementIndex int) int64 {
	return -(int64(elementIndex) + 1)
}

// applyGeometryTransform implements Options.GeometryHandling. FBX's
// node-level GeometricTranslation/Rotation/Scaling properties apply only to
// the node's own geometry and aren't inherited by children, unlike ordinary
// Lcl Translation/Rotation/Scaling. Preserve leaves them exposed as-is
// (today's default). Modify bakes the offset directly into the connected
// mesh's vertex positions and resets the properties to identity. HelperNodes
// instead synthesizes a child node carrying the offset as an ordinary TRS
// and resets the original node's properties, recording the relationship in
// Result.GeometryHelpers. The connected meshes are not re-linked to the
// helper: they stay connected to the original node, whose geometric
// offset is now identity.
func applyGeometryTransform(r *Result, els []*elements.Element, fbxIDToIndex map[int64]int, graph *connections.Graph, opts Options) []*elements.Element {
	if opts.GeometryHandling == GeometryTransformPreserve {
		return els
	}

	for i, el := range els {
		if !isNodeLike(el.Type) {
			continue
		}
		t, rot, s := geometricOffset(el)
		if t == ([3]float64{}) && rot == ([3]float64{}) && s == ([3]float64{1, 1, 1}) {
			continue
		}

		switch opts.GeometryHandling {
		case GeometryTransformModify:
			for _, mi := range connectedMeshes(el, els, fbxIDToIndex, graph) {
				bakeGeometryTransform(els[mi].Mesh, t, rot, s)
			}
			clearGeometricTransformProps(el)

		case GeometryTransformHelperNodes:
			helper := &elements.Element{
				FbxID:   syntheticFbxID(i),
				Type:    elements.TypeNull,
				SubType: "Null",
				Name:    el.Name + "_GeometricTransform",
			}
			setVec3(&helper.Props, "Lcl Translation", t)
			setVec3(&helper.Props, "Lcl Rotation", rot)
			setVec3(&helper.Props, "Lcl Scaling", s)
			clearGeometricTransformProps(el)

			helperIndex := len(els)
			els = append(els, helper)
			r.Elements = els
			r.TypedIDs[elements.TypeNull] = append(r.TypedIDs[elements.TypeNull], helperIndex)
			r.Nodes = append(r.Nodes, NodeRecord{ElementIndex: helperIndex, ParentIndex: i})
			r.Nodes[i].Children = append(r.Nodes[i].Children, helperIndex)
			r.GeometryHelpers = append(r.GeometryHelpers, GeometryTransformHelper{OwnerIndex: i, HelperIndex: helperIndex})
		}
	}
	return els
}
