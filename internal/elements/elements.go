// Package elements dispatches each "Objects" entry of a parsed FBX
// NodeTree to a typed reader: mesh, node, light, camera, material, texture,
// video, deformer, anim stack/layer/curve, pose, and a generic fallback for
// every other FBX object class (spec.md §4.10).
package elements

import (
	"strconv"
	"strings"

	"github.com/oxyfbx/oxyfbx/internal/animcore"
	"github.com/oxyfbx/oxyfbx/internal/errs"
	"github.com/oxyfbx/oxyfbx/internal/nodetree"
	"github.com/oxyfbx/oxyfbx/internal/proptemplate"
	"github.com/oxyfbx/oxyfbx/internal/strpool"
)

// Type enumerates the element classes the reader materializes, mirroring
// spec.md §3's element-type enumeration.
type Type int

const (
	TypeUnknown Type = iota
	TypeNode
	TypeMesh
	TypeLight
	TypeCamera
	TypeBone
	TypeNull
	TypeStereoCamera
	TypeLODGroup
	TypeSkin
	TypeSkinCluster
	TypeBlendDeformer
	TypeBlendChannel
	TypeBlendShape
	TypeCacheDeformer
	TypeCacheFile
	TypeMaterial
	TypeTexture
	TypeLayeredTexture
	TypeVideo
	TypeShader
	TypeShaderBinding
	TypeAnimStack
	TypeAnimLayer
	TypeAnimValue
	TypeAnimCurve
	TypePose
	TypeDisplayLayer
	TypeSelectionSet
	TypeSelectionNode
	TypeCharacter
	TypeConstraint
	TypeMarker
	TypeNurbsCurve
	TypeNurbsSurface
	TypeNurbsTrim
	TypeLine
	TypeProceduralGeometry
	TypeMetadata
	TypeSceneInfo
	TypeDocument
)

// IndexPolicy controls how an out-of-range layer-element index is handled,
// matching the ObjParser policy enum (spec.md §4.8, reused by §4.10).
type IndexPolicy int

const (
	IndexClamp IndexPolicy = iota
	IndexNoIndex
	IndexAbort
)

// NoIndex is the all-ones sentinel index marking "no valid index", spec.md's
// NO_INDEX.
const NoIndex int32 = -1

// MappingType is FBX's LayerElement MappingInformationType.
type MappingType int

const (
	MappingByVertex MappingType = iota
	MappingByPolygonVertex
	MappingByPolygon
	MappingAllSame
)

// ReferenceType is FBX's LayerElement ReferenceInformationType.
type ReferenceType int

const (
	ReferenceDirect ReferenceType = iota
	ReferenceIndexToDirect
)

// Options configures tolerance for element reading.
type Options struct {
	IndexPolicy                IndexPolicy
	AllowMissingVertexPosition bool
	Strict                     bool
}

// Warning records a demoted per-element parse error under a tolerant load.
type Warning struct {
	Kind errs.Kind
	Desc string
}

// LayerAttribute is one expanded vertex-attribute table: a value pool plus
// a per-index lookup table whose length equals the mesh's index count once
// expanded by the finalizer.
type LayerAttribute struct {
	Name      string
	Mapping   MappingType
	Reference ReferenceType
	Values    []float64 // flattened tuples (e.g. 3 per normal/color, 2 per uv)
	TupleSize int
	Indices   []int32 // present only when Reference == IndexToDirect
}

// MeshData holds the raw, not-yet-finalized geometry read from a Geometry
// object: vertex pool, the polygon-vertex index stream (still carrying the
// negated-last-index convention), and any LayerElement blocks found.
type MeshData struct {
	Positions       []float64 // xyz triples
	PolygonVertices []int32   // raw stream, last-of-face entries bitwise negated
	Normals         *LayerAttribute
	Tangents        *LayerAttribute
	Binormals       *LayerAttribute
	UVSets          []*LayerAttribute
	ColorSets       []*LayerAttribute
	MaterialLayer   *LayerAttribute
	SmoothingLayer  *LayerAttribute
	EdgeCrease      []float64
}

// ClusterData is a Skin Cluster deformer's bind-pose payload: the
// control-point indices/weights it influences and the bind-time transform
// pair FBX stores for computing skinning matrices.
type ClusterData struct {
	Indexes       []int32   // control-point indices this cluster influences
	Weights       []float64 // parallel to Indexes
	Transform     [16]float64
	TransformLink [16]float64
}

// BlendChannelData is a BlendShapeChannel deformer's weighting payload; the
// target Shape geometry itself is read as an ordinary Mesh element and
// resolved via the connection graph (internal/finalize wires the two
// together).
type BlendChannelData struct {
	DeformPercent float64
	FullWeights   []float64
}

// Element is one generic parsed Objects entry: identity, properties, and a
// type-specific payload (only Mesh is populated for TypeMesh; other types
// attach their own payload fields as the relevant reader runs).
type Element struct {
	FbxID   int64
	Type    Type
	SubType string
	Name    string // the part after "::" / before "\x00\x01"
	Props   proptemplate.Set

	Mesh         *MeshData
	Curve        *animcore.Curve
	Cluster      *ClusterData
	BlendChannel *BlendChannelData
}

// Reader turns NodeTree Objects children into Elements.
type Reader struct {
	pool     *strpool.Pool
	opts     Options
	warnings []Warning
}

// New creates a Reader.
func New(pool *strpool.Pool, opts Options) *Reader {
	return &Reader{pool: pool, opts: opts}
}

// Warnings returns every demoted per-element error recorded so far.
func (r *Reader) Warnings() []Warning { return r.warnings }

func (r *Reader) warn(kind errs.Kind, desc string) {
	r.warnings = append(r.warnings, Warning{Kind: kind, Desc: desc})
}

// SplitNameTag splits a 7000+ "Type::Name" or pre-7000 reversed
// "Name\x00\x01Type" tag into (name, subtypeTag). Either separator form is
// recognized regardless of version, since some 7000+ exporters still emit
// the legacy separator for certain object classes.
func SplitNameTag(tag string) (name string, rest string) {
	if i := strings.Index(tag, "::"); i >= 0 {
		return tag[i+2:], tag[:i]
	}
	if i := strings.Index(tag, "\x00\x01"); i >= 0 {
		return tag[:i], tag[i+2:]
	}
	return tag, ""
}

// classify maps an Objects child's node name ("Geometry", "Model", "Light",
// ...) plus its declared sub_type value to an internal Type.
func classify(nodeName, subType string) Type {
	switch nodeName {
	case "Geometry":
		return TypeMesh
	case "Model":
		switch subType {
		case "Light":
			return TypeLight
		case "Camera":
			return TypeCamera
		case "LimbNode", "Limb":
			return TypeBone
		case "Null":
			return TypeNull
		case "CameraStereo":
			return TypeStereoCamera
		case "LODGroup":
			return TypeLODGroup
		default:
			return TypeNode
		}
	case "NodeAttribute":
		switch subType {
		case "Light":
			return TypeLight
		case "Camera":
			return TypeCamera
		case "Null":
			return TypeNull
		default:
			return TypeUnknown
		}
	case "Deformer":
		switch subType {
		case "Skin":
			return TypeSkin
		case "Cluster":
			return TypeSkinCluster
		case "BlendShape":
			return TypeBlendDeformer
		case "BlendShapeChannel":
			return TypeBlendChannel
		default:
			return TypeUnknown
		}
	case "Material":
		return TypeMaterial
	case "Texture":
		return TypeTexture
	case "LayeredTexture":
		return TypeLayeredTexture
	case "Video":
		return TypeVideo
	case "AnimationStack":
		return TypeAnimStack
	case "AnimationLayer":
		return TypeAnimLayer
	case "AnimationCurveNode":
		return TypeAnimValue
	case "AnimationCurve":
		return TypeAnimCurve
	case "Pose":
		return TypePose
	case "CollectionExclusive", "Collection":
		if subType == "SelectionSet" {
			return TypeSelectionSet
		}
		return TypeDisplayLayer
	case "SelectionNode":
		return TypeSelectionNode
	case "Constraint":
		return TypeConstraint
	case "NodeAttribute_Marker", "Marker":
		return TypeMarker
	default:
		return TypeUnknown
	}
}

// ReadObjects reads every child of the "Objects" node into Elements,
// attaching properties and — for Geometry nodes — raw mesh data via
// readMeshData.
func (r *Reader) ReadObjects(objectsNode *nodetree.Node) ([]*Element, *errs.Error) {
	var out []*Element
	for _, child := range objectsNode.Children {
		el, err := r.readOne(child)
		if err != nil {
			if r.opts.Strict {
				return nil, err
			}
			r.warn(err.Kind, err.Desc)
			continue
		}
		if el != nil {
			out = append(out, el)
		}
	}
	return out, nil
}

func (r *Reader) readOne(n *nodetree.Node) (*Element, *errs.Error) {
	if len(n.Values) < 2 {
		return nil, nil // malformed Objects entry, tolerated
	}
	fbxID := n.Values[0].AsInt()
	tag := n.StringAt(1, r.pool)
	subType := ""
	if len(n.Values) >= 3 {
		subType = n.StringAt(2, r.pool)
	}
	name, tagSubType := SplitNameTag(tag)
	if subType == "" {
		subType = tagSubType
	}

	el := &Element{
		FbxID:   fbxID,
		Type:    classify(n.NameStr, subType),
		SubType: subType,
		Name:    name,
	}

	if props := n.Find("Properties70"); props != nil {
		set, perr := proptemplate.ReadProperties70(props, r.pool)
		if perr != nil {
			return nil, perr
		}
		el.Props = set
	} else if props := n.Find("Properties60"); props != nil {
		set, perr := proptemplate.ReadProperties60(props, r.pool)
		if perr != nil {
			return nil, perr
		}
		el.Props = set
	}

	if el.Type == TypeMesh {
		mesh, merr := r.readMeshData(n)
		if merr != nil {
			return nil, merr
		}
		el.Mesh = mesh
	}

	if el.Type == TypeAnimCurve {
		curve, cerr := r.readAnimCurve(n)
		if cerr != nil {
			return nil, cerr
		}
		el.Curve = curve
	}

	if el.Type == TypeSkinCluster {
		el.Cluster = r.readCluster(n)
	}

	if el.Type == TypeBlendChannel {
		el.BlendChannel = r.readBlendChannel(n)
	}

	return el, nil
}

func identity16() [16]float64 {
	var m [16]float64
	m[0], m[5], m[10], m[15] = 1, 1, 1, 1
	return m
}

// readCluster decodes a Cluster deformer's Indexes/Weights/Transform/
// TransformLink arrays.
func (r *Reader) readCluster(n *nodetree.Node) *ClusterData {
	cd := &ClusterData{Transform: identity16(), TransformLink: identity16()}
	cd.Indexes = n.FindArrayInt32("Indexes")
	cd.Weights = n.FindArrayFloat64("Weights")
	if tn := n.Find("Transform"); tn != nil {
		if vals := tn.ArrayFloat64Self(); len(vals) == 16 {
			copy(cd.Transform[:], vals)
		}
	}
	if tn := n.Find("TransformLink"); tn != nil {
		if vals := tn.ArrayFloat64Self(); len(vals) == 16 {
			copy(cd.TransformLink[:], vals)
		}
	}
	return cd
}

// readBlendChannel decodes a BlendShapeChannel deformer's DeformPercent and
// FullWeights.
func (r *Reader) readBlendChannel(n *nodetree.Node) *BlendChannelData {
	bc := &BlendChannelData{DeformPercent: 100}
	if dn := n.Find("DeformPercent"); dn != nil {
		bc.DeformPercent = dn.FloatAt(0, 100)
	}
	bc.FullWeights = n.FindArrayFloat64("FullWeights")
	return bc
}

// readAnimCurve decodes the parallel KeyTime/KeyValueFloat/KeyAttrFlags/
// KeyAttrDataFloat/KeyAttrRefCount arrays of an AnimationCurve object.
func (r *Reader) readAnimCurve(n *nodetree.Node) (*animcore.Curve, *errs.Error) {
	keyTimeNode := n.Find("KeyTime")
	if keyTimeNode == nil {
		return nil, nil // some curve nodes legitimately carry no keys
	}
	var keyTime []int64
	if kt := keyTimeNode.ValAt(0); kt.Type == nodetree.ValArrayInt64 {
		keyTime = kt.ArrI64
	} else {
		keyTime = toInt64Array(keyTimeNode.ArrayFloat64Self())
	}
	keyValue := n.FindArrayFloat64("KeyValueFloat")

	flagsNode := n.Find("KeyAttrFlags")
	dataNode := n.Find("KeyAttrDataFloat")
	refNode := n.Find("KeyAttrRefCount")

	flags := int32ArrayOf(flagsNode)
	refCounts := int32ArrayOf(refNode)
	var data []float64
	if dataNode != nil {
		data = dataNode.ArrayFloat64Self()
	}

	return animcore.DecodeCurve(keyTime, keyValue, flags, data, refCounts)
}

func int32ArrayOf(n *nodetree.Node) []int32 {
	if n == nil {
		return nil
	}
	return n.ArrayInt32Self()
}

func toInt64Array(f []float64) []int64 {
	out := make([]int64, len(f))
	for i, v := range f {
		out[i] = int64(v)
	}
	return out
}

// readMeshData reads a Geometry node's Vertices/PolygonVertexIndex and any
// LayerElement* children.
func (r *Reader) readMeshData(n *nodetree.Node) (*MeshData, *errs.Error) {
	m := &MeshData{}

	if v := n.Find("Vertices"); v != nil {
		m.Positions = n.FindArrayFloat64("Vertices")
		_ = v
	}
	if m.Positions == nil && !r.opts.AllowMissingVertexPosition {
		return nil, errs.New(errs.KindMissingVertexPosition, "Geometry node has no Vertices array")
	}

	m.PolygonVertices = n.FindArrayInt32("PolygonVertexIndex")

	for _, child := range n.Children {
		switch child.NameStr {
		case "LayerElementNormal":
			attr, err := r.readLayerAttribute(child, "Normals", 3)
			if err != nil {
				return nil, err
			}
			m.Normals = attr
		case "LayerElementTangent":
			attr, err := r.readLayerAttribute(child, "Tangents", 3)
			if err != nil {
				return nil, err
			}
			m.Tangents = attr
		case "LayerElementBinormal":
			attr, err := r.readLayerAttribute(child, "Binormals", 3)
			if err != nil {
				return nil, err
			}
			m.Binormals = attr
		case "LayerElementUV":
			attr, err := r.readLayerAttribute(child, "UV", 2)
			if err != nil {
				return nil, err
			}
			m.UVSets = append(m.UVSets, attr)
		case "LayerElementColor":
			attr, err := r.readLayerAttribute(child, "Colors", 4)
			if err != nil {
				return nil, err
			}
			m.ColorSets = append(m.ColorSets, attr)
		case "LayerElementMaterial":
			attr, err := r.readLayerAttribute(child, "Materials", 1)
			if err != nil {
				return nil, err
			}
			m.MaterialLayer = attr
		case "LayerElementSmoothing":
			attr, err := r.readLayerAttribute(child, "Smoothing", 1)
			if err != nil {
				return nil, err
			}
			m.SmoothingLayer = attr
		case "Edges":
			// Edge-crease weights live alongside the Edges index list;
			// out of scope here beyond capturing the raw float stream
			// since crease consumption belongs to geometry evaluation.
			m.EdgeCrease = n.FindArrayFloat64("EdgeCrease")
		}
	}

	return m, nil
}

// readLayerAttribute reads one LayerElement* block: its Mapping/Reference
// information types, its value array (named valuesName, e.g. "Normals",
// "UV"), and optional index array. Unrecognized mapping/reference strings
// fall back to ByPolygonVertex/Direct; expansion against the mesh happens
// later, in Expand.
func (r *Reader) readLayerAttribute(n *nodetree.Node, valuesName string, tupleSize int) (*LayerAttribute, *errs.Error) {
	attr := &LayerAttribute{Name: valuesName, TupleSize: tupleSize}

	mapStr := ""
	if c := n.Find("MappingInformationType"); c != nil {
		mapStr = c.StringAt(0, r.pool)
	}
	refStr := ""
	if c := n.Find("ReferenceInformationType"); c != nil {
		refStr = c.StringAt(0, r.pool)
	}

	switch mapStr {
	case "ByVertice", "ByVertex":
		attr.Mapping = MappingByVertex
	case "ByPolygonVertex":
		attr.Mapping = MappingByPolygonVertex
	case "ByPolygon":
		attr.Mapping = MappingByPolygon
	case "AllSame":
		attr.Mapping = MappingAllSame
	case "NoMappingInformation":
		// Legacy exporters emit this for LayerElementMaterial; treated as
		// AllSame with material 0 per spec.md's open question — documented
		// choice, not a guess.
		attr.Mapping = MappingAllSame
	default:
		attr.Mapping = MappingByPolygonVertex
	}

	switch refStr {
	case "Direct":
		attr.Reference = ReferenceDirect
	case "IndexToDirect", "Index":
		attr.Reference = ReferenceIndexToDirect
	default:
		attr.Reference = ReferenceDirect
	}

	var valuesNode *nodetree.Node
	for _, candidate := range []string{valuesName, valuesName + "s", strings.TrimSuffix(valuesName, "s")} {
		if c := n.Find(candidate); c != nil {
			valuesNode = c
			break
		}
	}
	if valuesNode != nil {
		attr.Values = valuesNode.ArrayFloat64Self()
	}

	if attr.Reference == ReferenceIndexToDirect {
		idxNode := n.Find(valuesName + "Index")
		if idxNode == nil {
			idxNode = n.Find(strings.TrimSuffix(valuesName, "s") + "Index")
		}
		if idxNode != nil {
			attr.Indices = idxNode.ArrayInt32Self()
		}
	}

	return attr, nil
}

// ParseFbxID parses a decimal FBX object id stored as a string (the
// pre-7000 form) rather than the 7000+ integer form.
func ParseFbxID(s string) (int64, bool) {
	v, err := strconv.ParseInt(s, 10, 64)
	return v, err == nil
}
