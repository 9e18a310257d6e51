package oxyfbx

import "github.com/oxyfbx/oxyfbx/internal/objtext"

// Material is a Material-class element with its PBR-relevant properties
// surfaced as convenience fields, shared by FBX's property-based
// materials and MTL's letter-named ones so both source formats present a
// uniform shape.
type Material struct {
	Element *Element

	Ambient  [3]float64
	Diffuse  [3]float64
	Specular [3]float64
	Emissive [3]float64

	SpecularExponent   float64
	Roughness          float64
	RefractionIndex    float64
	Opacity            float64
	Metallic           float64
	Sheen              float64
	ClearCoat          float64
	ClearCoatRoughness float64
	ReflectionFactor   float64

	HasRoughness bool
	HasMetallic  bool

	DiffuseMapPath   string
	NormalMapPath    string
	SpecularMapPath  string
	EmissiveMapPath  string
	RoughnessMapPath string
	MetallicMapPath  string
}

func newMaterialFromProps(el *Element) *Material {
	m := &Material{Element: el, Opacity: 1, RefractionIndex: 1}
	m.Ambient = el.Props.Vector3("AmbientColor", [3]float64{0, 0, 0})
	m.Diffuse = el.Props.Vector3("DiffuseColor", [3]float64{1, 1, 1})
	m.Specular = el.Props.Vector3("SpecularColor", [3]float64{0, 0, 0})
	m.Emissive = el.Props.Vector3("EmissiveColor", [3]float64{0, 0, 0})
	m.SpecularExponent = el.Props.Number("ShininessExponent", 20)
	if p, ok := el.Props.Find("Opacity"); ok {
		m.Opacity = p.Real[0]
	} else if p, ok := el.Props.Find("TransparencyFactor"); ok {
		m.Opacity = 1 - p.Real[0]
	}
	if p, ok := el.Props.Find("Roughness"); ok {
		m.Roughness = p.Real[0]
		m.HasRoughness = true
	}
	if p, ok := el.Props.Find("Metallic"); ok {
		m.Metallic = p.Real[0]
		m.HasMetallic = true
	}
	m.ReflectionFactor = el.Props.Number("ReflectionFactor", 0)
	return m
}

func newMaterialFromMTL(el *Element, mat *objtext.Material) *Material {
	m := &Material{
		Element:            el,
		Ambient:            mat.Ambient,
		Diffuse:            mat.Diffuse,
		Specular:           mat.Specular,
		Emissive:           mat.Emissive,
		SpecularExponent:   mat.SpecularExponent,
		Roughness:          mat.Roughness,
		RefractionIndex:    mat.RefractionIndex,
		Opacity:            mat.Opacity,
		Metallic:           mat.Metallic,
		Sheen:              mat.Sheen,
		ClearCoat:          mat.ClearCoat,
		ClearCoatRoughness: mat.ClearCoatRoughness,
		HasRoughness:       mat.HasRoughness,
		HasMetallic:        mat.HasMetallic,
	}
	if mat.DiffuseMap != nil {
		m.DiffuseMapPath = mat.DiffuseMap.Path
	}
	if mat.NormalMap != nil {
		m.NormalMapPath = mat.NormalMap.Path
	}
	if mat.SpecularMap != nil {
		m.SpecularMapPath = mat.SpecularMap.Path
	}
	if mat.EmissiveMap != nil {
		m.EmissiveMapPath = mat.EmissiveMap.Path
	}
	if mat.RoughnessMap != nil {
		m.RoughnessMapPath = mat.RoughnessMap.Path
	}
	if mat.MetallicMap != nil {
		m.MetallicMapPath = mat.MetallicMap.Path
	}
	return m
}

// Texture is a resolved, deduplicated texture reference.
type Texture struct {
	Element      *Element
	ResolvedPath string
	DuplicateOf  *Texture // nil unless this entry case-insensitively collides with an earlier one
}
