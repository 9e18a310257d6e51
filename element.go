package oxyfbx

import "github.com/oxyfbx/oxyfbx/internal/elements"

// ElementType enumerates the scene object classes (spec.md §3).
type ElementType int

const (
	ElementUnknown ElementType = iota
	ElementNode
	ElementMesh
	ElementLight
	ElementCamera
	ElementBone
	ElementEmpty
	ElementStereoCamera
	ElementLODGroup
	ElementSkin
	ElementSkinCluster
	ElementBlendDeformer
	ElementBlendChannel
	ElementBlendShape
	ElementCacheDeformer
	ElementCacheFile
	ElementMaterial
	ElementTexture
	ElementLayeredTexture
	ElementVideo
	ElementShader
	ElementShaderBinding
	ElementAnimStack
	ElementAnimLayer
	ElementAnimValue
	ElementAnimCurve
	ElementPose
	ElementDisplayLayer
	ElementSelectionSet
	ElementSelectionNode
	ElementCharacter
	ElementConstraint
	ElementMarker
	ElementNurbsCurve
	ElementNurbsSurface
	ElementNurbsTrim
	ElementLine
	ElementProceduralGeometry
	ElementMetadata
	ElementSceneInfo
	ElementDocument
)

var elementTypeTable = [...]elements.Type{
	ElementUnknown:            elements.TypeUnknown,
	ElementNode:                elements.TypeNode,
	ElementMesh:                elements.TypeMesh,
	ElementLight:               elements.TypeLight,
	ElementCamera:              elements.TypeCamera,
	ElementBone:                elements.TypeBone,
	ElementEmpty:               elements.TypeNull,
	ElementStereoCamera:        elements.TypeStereoCamera,
	ElementLODGroup:            elements.TypeLODGroup,
	ElementSkin:                elements.TypeSkin,
	ElementSkinCluster:         elements.TypeSkinCluster,
	ElementBlendDeformer:       elements.TypeBlendDeformer,
	ElementBlendChannel:        elements.TypeBlendChannel,
	ElementBlendShape:          elements.TypeBlendShape,
	ElementCacheDeformer:       elements.TypeCacheDeformer,
	ElementCacheFile:           elements.TypeCacheFile,
	ElementMaterial:            elements.TypeMaterial,
	ElementTexture:             elements.TypeTexture,
	ElementLayeredTexture:      elements.TypeLayeredTexture,
	ElementVideo:               elements.TypeVideo,
	ElementShader:              elements.TypeShader,
	ElementShaderBinding:       elements.TypeShaderBinding,
	ElementAnimStack:           elements.TypeAnimStack,
	ElementAnimLayer:           elements.TypeAnimLayer,
	ElementAnimValue:           elements.TypeAnimValue,
	ElementAnimCurve:           elements.TypeAnimCurve,
	ElementPose:                elements.TypePose,
	ElementDisplayLayer:        elements.TypeDisplayLayer,
	ElementSelectionSet:        elements.TypeSelectionSet,
	ElementSelectionNode:       elements.TypeSelectionNode,
	ElementCharacter:           elements.TypeCharacter,
	ElementConstraint:          elements.TypeConstraint,
	ElementMarker:              elements.TypeMarker,
	ElementNurbsCurve:          elements.TypeNurbsCurve,
	ElementNurbsSurface:        elements.TypeNurbsSurface,
	ElementNurbsTrim:           elements.TypeNurbsTrim,
	ElementLine:                elements.TypeLine,
	ElementProceduralGeometry:  elements.TypeProceduralGeometry,
	ElementMetadata:            elements.TypeMetadata,
	ElementSceneInfo:           elements.TypeSceneInfo,
	ElementDocument:            elements.TypeDocument,
}

func publicElementType(t elements.Type) ElementType {
	for pub, internal := range elementTypeTable {
		if internal == t {
			return ElementType(pub)
		}
	}
	return ElementUnknown
}

// Element is the base record shared by every scene object: a stable,
// dense element_id, a type-scoped typed_id, its name, and its resolved
// property set.
type Element struct {
	ID      int // dense index into Scene.Elements
	TypedID int // dense index within Type
	Name    string
	SubType string
	Type    ElementType
	Props   PropertySet
}
