package objtext

import (
	"bufio"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/oxyfbx/oxyfbx/internal/errs"
)

// TextureRef is a texture reference parsed from a map_* directive, with the
// handful of inline options (-o, -s, -bm) MTL allows before the filename.
type TextureRef struct {
	Path      string
	OffsetU   float64
	OffsetV   float64
	ScaleU    float64
	ScaleV    float64
	BumpDepth float64 // -bm multiplier, only meaningful for map_bump/map_disp/norm
}

// Material is one newmtl block. Field names follow the classic MTL letters
// (Ka/Kd/Ks/Ke/Ns/Ni/d) and the PBR extension letters (Pr/Pm/Ps/Pc/Pcr)
// several modern exporters (Blender, Substance) now also emit.
type Material struct {
	Name string

	Ambient  [3]float64
	Diffuse  [3]float64
	Specular [3]float64
	Emissive [3]float64

	SpecularExponent float64 // Ns
	Roughness        float64 // derived from Ns when Pr is absent, see nsToRoughness
	RefractionIndex  float64 // Ni
	Opacity          float64 // d (Tr is read as 1-Tr into the same field)
	TransmitFilter   [3]float64

	Metallic   float64 // Pm
	Sheen      float64 // Ps
	ClearCoat  float64 // Pc
	ClearCoatRoughness float64 // Pcr

	HasRoughness bool // true when Pr was read explicitly
	HasMetallic  bool

	DiffuseMap  *TextureRef
	AmbientMap  *TextureRef
	SpecularMap *TextureRef
	EmissiveMap *TextureRef
	NormalMap   *TextureRef
	BumpMap     *TextureRef
	DisplaceMap *TextureRef
	OpacityMap  *TextureRef
	RoughnessMap *TextureRef
	MetallicMap  *TextureRef
}

// nsToRoughness converts the classic Phong specular exponent into an
// approximate PBR roughness value as roughness = sqrt(2/(Ns+2)), clamped to
// [0,1] — a documented convention, not a standard, for exporters that never
// emit Pr directly.
func nsToRoughness(ns float64) float64 {
	if ns < 0 {
		ns = 0
	}
	r := math.Sqrt(2 / (ns + 2))
	if r > 1 {
		r = 1
	}
	return r
}

// ParseMTL reads a complete MTL document, returning one Material per
// newmtl block in file order.
func ParseMTL(r io.Reader) ([]*Material, *errs.Error) {
	var mats []*Material
	var cur *Material
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	lineNo := 0

	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		directive := fields[0]
		args := fields[1:]

		if directive == "newmtl" {
			cur = &Material{Name: strings.Join(args, " "), Opacity: 1, RefractionIndex: 1}
			mats = append(mats, cur)
			continue
		}
		if cur == nil {
			continue // directives before the first newmtl are ignored
		}

		switch directive {
		case "Ka":
			cur.Ambient = parseColor(args)
		case "Kd":
			cur.Diffuse = parseColor(args)
		case "Ks":
			cur.Specular = parseColor(args)
		case "Ke":
			cur.Emissive = parseColor(args)
		case "Tf":
			cur.TransmitFilter = parseColor(args)
		case "Ns":
			cur.SpecularExponent = parseScalar(args)
			if !cur.HasRoughness {
				cur.Roughness = nsToRoughness(cur.SpecularExponent)
			}
		case "Ni":
			cur.RefractionIndex = parseScalar(args)
		case "d":
			cur.Opacity = parseScalar(args)
		case "Tr":
			cur.Opacity = 1 - parseScalar(args)
		case "Pr":
			cur.Roughness = parseScalar(args)
			cur.HasRoughness = true
		case "Pm":
			cur.Metallic = parseScalar(args)
			cur.HasMetallic = true
		case "Ps":
			cur.Sheen = parseScalar(args)
		case "Pc":
			cur.ClearCoat = parseScalar(args)
		case "Pcr":
			cur.ClearCoatRoughness = parseScalar(args)
		case "map_Kd":
			cur.DiffuseMap = parseTextureRef(args)
		case "map_Ka":
			cur.AmbientMap = parseTextureRef(args)
		case "map_Ks":
			cur.SpecularMap = parseTextureRef(args)
		case "map_Ke":
			cur.EmissiveMap = parseTextureRef(args)
		case "map_d":
			cur.OpacityMap = parseTextureRef(args)
		case "map_Pr":
			cur.RoughnessMap = parseTextureRef(args)
		case "map_Pm":
			cur.MetallicMap = parseTextureRef(args)
		case "bump", "map_bump", "map_Bump":
			cur.BumpMap = parseTextureRef(args)
		case "disp":
			cur.DisplaceMap = parseTextureRef(args)
		case "norm", "map_norm":
			cur.NormalMap = parseTextureRef(args)
		default:
			// Ka/Kd spectral-curve forms, illum model index, and other
			// rarely-used directives are accepted but not materialized.
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errs.Newf(errs.KindIO, "reading MTL stream: %v", err)
	}
	return mats, nil
}

func parseScalar(args []string) float64 {
	if len(args) == 0 {
		return 0
	}
	f, _ := strconv.ParseFloat(args[0], 64)
	return f
}

func parseColor(args []string) [3]float64 {
	var c [3]float64
	for i := 0; i < 3 && i < len(args); i++ {
		f, err := strconv.ParseFloat(args[i], 64)
		if err == nil {
			c[i] = f
		}
	}
	if len(args) == 1 {
		// A single value is a greyscale shorthand: replicate across channels.
		c[1], c[2] = c[0], c[0]
	}
	return c
}

// parseTextureRef consumes the optional -o/-s/-bm option pairs MTL allows
// before the filename, leaving the (possibly multi-token, space-containing)
// remainder as the path.
func parseTextureRef(args []string) *TextureRef {
	ref := &TextureRef{ScaleU: 1, ScaleV: 1, BumpDepth: 1}
	i := 0
	for i < len(args) {
		switch args[i] {
		case "-o":
			if i+2 < len(args) {
				ref.OffsetU, _ = strconv.ParseFloat(args[i+1], 64)
				ref.OffsetV, _ = strconv.ParseFloat(args[i+2], 64)
				i += 3
				continue
			}
		case "-s":
			if i+2 < len(args) {
				ref.ScaleU, _ = strconv.ParseFloat(args[i+1], 64)
				ref.ScaleV, _ = strconv.ParseFloat(args[i+2], 64)
				i += 3
				continue
			}
		case "-bm":
			if i+1 < len(args) {
				ref.BumpDepth, _ = strconv.ParseFloat(args[i+1], 64)
				i += 2
				continue
			}
		}
		break
	}
	ref.Path = strings.Join(args[i:], " ")
	return ref
}
