// Package objtext parses Wavefront OBJ geometry and MTL material files into
// a flat, index-preserving intermediate form that the root package's
// loadOBJ folds into
// the same scene graph binary/ASCII FBX produce (spec.md §4.8).
//
// Grounded on gazed-vu's load/obj.go: obj2Strings/obj2Data's "split each
// line on the first token, dispatch through a directive switch" shape is
// the ancestor of Parse's per-line switch below, generalized from gazed-vu's
// single-triangle-mesh-with-normals subset to the full v/vt/vn/f/g/o/s/
// usemtl/mtllib directive set g3n-engine's loader/obj/obj.go additionally
// covers (mtllib chaining, polygon faces, negative indices).
package objtext

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/oxyfbx/oxyfbx/internal/errs"
)

// IndexPolicy controls how an out-of-range vertex/texture/normal index in a
// face line is handled.
type IndexPolicy int

const (
	// IndexClamp clamps an out-of-range index to the nearest valid one.
	IndexClamp IndexPolicy = iota
	// IndexNoIndex drops the offending attribute reference (treated as
	// "not present" for that face-vertex), matching the NO_INDEX sentinel
	// the rest of the loader uses for missing attribute bindings.
	IndexNoIndex
	// IndexAbort fails the parse outright.
	IndexAbort
)

// Options configures tolerance for malformed OBJ input.
type Options struct {
	IndexPolicy IndexPolicy
}

// FaceVertex is one corner of a face: 0-based indices into Positions,
// UVs, and Normals. A value of -1 means "not present" (IndexNoIndex or the
// corresponding attribute array being absent from the file).
type FaceVertex struct {
	Pos, UV, Normal int32
}

// Face is one polygon (OBJ faces are n-gons; triangulation is left to the
// geometry-evaluation stage outside this package's scope).
type Face struct {
	Verts   []FaceVertex
	Group   string
	Object  string
	Smooth  int32
	Material string
}

// Mesh is the whole-file intermediate parse result: the global position/
// texture/normal pools (OBJ indices are file-global, not per-object) and
// the face list, each tagged with the object/group/material active when it
// was read.
type Mesh struct {
	Positions []float64 // xyz triples
	UVs       []float64 // uv pairs (v already flipped to FBX's top-left origin convention upstream? no: left as-is, v not flipped)
	Normals   []float64 // xyz triples
	Faces     []Face
	MtlLibs   []string // mtllib file names referenced, in order
}

// Parse reads a complete OBJ document from r.
func Parse(r io.Reader, opts Options) (*Mesh, *errs.Error) {
	m := &Mesh{}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	var curObject, curGroup, curMaterial string
	var curSmooth int32
	lineNo := 0

	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		directive := fields[0]
		args := fields[1:]

		switch directive {
		case "v":
			vals, err := parseFloats(args, 3, lineNo)
			if err != nil {
				return nil, err
			}
			m.Positions = append(m.Positions, vals...)
		case "vt":
			n := 2
			if len(args) >= 3 {
				n = 3 // w coordinate tolerated, dropped
			}
			vals, err := parseFloats(args, n, lineNo)
			if err != nil {
				return nil, err
			}
			m.UVs = append(m.UVs, vals[0], vals[1])
		case "vn":
			vals, err := parseFloats(args, 3, lineNo)
			if err != nil {
				return nil, err
			}
			m.Normals = append(m.Normals, vals...)
		case "f":
			face, err := parseFace(args, len(m.Positions)/3, len(m.UVs)/2, len(m.Normals)/3, opts, lineNo)
			if err != nil {
				return nil, err
			}
			if len(face) == 0 {
				continue // empty face after index-policy filtering, skip
			}
			m.Faces = append(m.Faces, Face{
				Verts:    face,
				Group:    curGroup,
				Object:   curObject,
				Smooth:   curSmooth,
				Material: curMaterial,
			})
		case "g":
			curGroup = strings.Join(args, " ")
		case "o":
			curObject = strings.Join(args, " ")
		case "s":
			curSmooth = parseSmoothing(args)
		case "usemtl":
			if len(args) > 0 {
				curMaterial = args[0]
			}
		case "mtllib":
			m.MtlLibs = append(m.MtlLibs, args...)
		case "MRGB", "#MRGB":
			// Vertex-color extension some exporters embed as a comment;
			// not surfaced further since no consumer in this package's
			// scope reads per-vertex color from OBJ.
		default:
			// Unknown directives (l, p, curv, surf, etc.) are skipped
			// tolerantly; OBJ's directive set is large and this loader
			// only materializes the polygon/material subset spec.md names.
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errs.Newf(errs.KindIO, "reading OBJ stream: %v", err)
	}
	return m, nil
}

func parseSmoothing(args []string) int32 {
	if len(args) == 0 {
		return 0
	}
	if args[0] == "off" {
		return 0
	}
	n, err := strconv.ParseInt(args[0], 10, 32)
	if err != nil {
		return 0
	}
	return int32(n)
}

func parseFloats(args []string, n, lineNo int) ([]float64, *errs.Error) {
	if len(args) < n {
		return nil, errs.Newf(errs.KindUnrecognizedFileFormat, "line %d: expected %d numbers, got %d", lineNo, n, len(args))
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		f, err := strconv.ParseFloat(args[i], 64)
		if err != nil {
			return nil, errs.Newf(errs.KindUnrecognizedFileFormat, "line %d: bad number %q", lineNo, args[i])
		}
		out[i] = f
	}
	return out, nil
}

// parseFace parses "v", "v/t", "v//n", or "v/t/n" corner tokens, resolving
// negative (relative-to-end) indices and applying opts.IndexPolicy to
// out-of-range positive indices.
func parseFace(args []string, posCount, uvCount, normCount int, opts Options, lineNo int) ([]FaceVertex, *errs.Error) {
	verts := make([]FaceVertex, 0, len(args))
	for _, tok := range args {
		parts := strings.Split(tok, "/")
		fv := FaceVertex{Pos: -1, UV: -1, Normal: -1}

		resolve := func(s string, count int) (int32, *errs.Error) {
			if s == "" {
				return -1, nil
			}
			idx, err := strconv.ParseInt(s, 10, 64)
			if err != nil || idx == 0 || idx > 1_000_000_000_000_000_000 || idx < -1_000_000_000_000_000_000 {
				return 0, errs.Newf(errs.KindBadIndex, "line %d: malformed face index %q", lineNo, s)
			}
			var zero int64
			if idx < 0 {
				zero = int64(count) + idx
			} else {
				zero = idx - 1
			}
			if zero < 0 || zero >= int64(count) {
				switch opts.IndexPolicy {
				case IndexClamp:
					if zero < 0 {
						zero = 0
					} else {
						zero = int64(count) - 1
					}
					if zero < 0 {
						return -1, nil
					}
				case IndexNoIndex:
					return -1, nil
				case IndexAbort:
					return 0, errs.Newf(errs.KindBadIndex, "line %d: face index %d out of range [0,%d)", lineNo, zero, count)
				}
			}
			return int32(zero), nil
		}

		var err *errs.Error
		fv.Pos, err = resolve(parts[0], posCount)
		if err != nil {
			return nil, err
		}
		if len(parts) > 1 {
			fv.UV, err = resolve(parts[1], uvCount)
			if err != nil {
				return nil, err
			}
		}
		if len(parts) > 2 {
			fv.Normal, err = resolve(parts[2], normCount)
			if err != nil {
				return nil, err
			}
		}
		if fv.Pos == -1 {
			continue // position is mandatory; drop this corner under NoIndex/Clamp-to-nothing
		}
		verts = append(verts, fv)
	}
	if len(verts) < 3 {
		return nil, nil
	}
	return verts, nil
}
