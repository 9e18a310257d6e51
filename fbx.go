package oxyfbx

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/oxyfbx/oxyfbx/internal/arena"
	"github.com/oxyfbx/oxyfbx/internal/asciifbx"
	"github.com/oxyfbx/oxyfbx/internal/binfbx"
	"github.com/oxyfbx/oxyfbx/internal/bytesrc"
	"github.com/oxyfbx/oxyfbx/internal/connections"
	"github.com/oxyfbx/oxyfbx/internal/elements"
	"github.com/oxyfbx/oxyfbx/internal/errs"
	"github.com/oxyfbx/oxyfbx/internal/finalize"
	"github.com/oxyfbx/oxyfbx/internal/nodetree"
	"github.com/oxyfbx/oxyfbx/internal/objtext"
	"github.com/oxyfbx/oxyfbx/internal/strpool"
)

// LoadFile opens path and loads it, inferring the format from its
// extension when FileFormat isn't forced by an Option.
func LoadFile(path string, opts ...Option) (*Scene, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	o := DefaultOpts()
	for _, apply := range opts {
		apply(&o)
	}
	if o.FileFormat == FormatUnknown {
		switch strings.ToLower(filepath.Ext(path)) {
		case ".obj":
			o.FileFormat = FormatOBJ
		case ".mtl":
			o.FileFormat = FormatMTL
		case ".fbx":
			o.FileFormat = FormatFBX
		}
	}
	o.ArenaBaseDir = filepath.Dir(path)
	return loadFromOpts(f, o)
}

// LoadReader loads a scene from an already-open stream.
func LoadReader(r io.Reader, opts ...Option) (*Scene, error) {
	o := DefaultOpts()
	for _, apply := range opts {
		apply(&o)
	}
	return loadFromOpts(r, o)
}

// Load loads a scene from an in-memory buffer.
func Load(data []byte, opts ...Option) (*Scene, error) {
	return LoadReader(bytes.NewReader(data), opts...)
}

func loadFromOpts(r io.Reader, o LoadOpts) (*Scene, error) {
	src := bytesrc.FromReader(r)
	var progressFn bytesrc.ProgressFunc
	if o.ProgressFn != nil {
		progressFn = func(read, total int64) bytesrc.ProgressResult {
			if o.ProgressFn(read, total) == ProgressCancel {
				return bytesrc.Cancel
			}
			return bytesrc.Continue
		}
	}
	reader := bytesrc.NewReader(src, o.ReadBufferSize, progressFn, o.ProgressIntervalBytes)

	buf, rerr := drain(reader)
	if rerr != nil {
		return nil, wrapErr(rerr)
	}

	format := o.FileFormat
	if format == FormatUnknown {
		format = sniff(buf)
	}

	resultArena := arena.New(arena.Limits{
		AllocationLimit: o.ArenaLimits.AllocationLimit,
		MemoryLimit:     o.ArenaLimits.MemoryLimit,
		HugeThreshold:   o.ArenaLimits.HugeThreshold,
	})
	defer resultArena.Release()

	switch format {
	case FormatOBJ:
		return loadOBJ(buf, o, resultArena)
	case FormatMTL:
		return loadMTL(buf, o)
	default:
		return loadFBX(buf, o, resultArena)
	}
}

// drain reads reader to completion into a single buffer in 64 KiB Peek
// chunks (the reader's buffer grows to 64 KiB when read_buffer_size is
// smaller), exercising progress/cancellation on every chunk.
func drain(r *bytesrc.Reader) ([]byte, *errs.Error) {
	var out []byte
	for {
		eof, err := r.AtEOF()
		if err != nil {
			return nil, err
		}
		if eof {
			break
		}
		chunk, err := r.Peek(64 * 1024)
		if err != nil {
			return nil, err
		}
		if len(chunk) == 0 {
			break
		}
		out = append(out, chunk...)
		if err := r.Consume(len(chunk)); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func sniff(buf []byte) FileFormat {
	if bytes.HasPrefix(buf, binfbx.Magic) {
		return FormatFBX
	}
	head := buf
	if len(head) > 256 {
		head = head[:256]
	}
	if bytes.Contains(head, []byte("FBXHeaderExtension")) || bytes.Contains(head, []byte("; FBX")) {
		return FormatFBX
	}
	if bytes.Contains(head, []byte("newmtl")) {
		return FormatMTL
	}
	return FormatOBJ
}

// accountAlloc enforces the configured arena budget against a planned
// allocation of n*elemSize bytes without retaining the returned buffer;
// actual storage remains ordinary garbage-collected Go slices; the arena's
// role here is the documented budget check from spec.md §4.3, not the
// allocator of record (see DESIGN.md).
func accountAlloc(a *arena.Arena, n, elemSize int) *errs.Error {
	_, err := a.AllocN(n, elemSize)
	return err
}

func loadFBX(buf []byte, o LoadOpts, a *arena.Arena) (*Scene, error) {
	pool := strpool.New(toStrpoolPolicy(o.UnicodeErrorHandling))

	var roots []*nodetree.Node
	if bytes.HasPrefix(buf, binfbx.Magic) {
		tok, terr := binfbx.New(buf, pool, toBinfbxOptions(o))
		if terr != nil {
			return nil, wrapErr(terr)
		}
		parsed, perr := tok.ParseAll()
		if perr != nil {
			return nil, wrapErr(perr)
		}
		roots = parsed
	} else {
		tok := asciifbx.New(buf, pool, toAsciifbxOptions(o))
		parsed, perr := tok.ParseAll()
		if perr != nil {
			return nil, wrapErr(perr)
		}
		roots = parsed
	}

	root := &nodetree.Node{NameStr: "", Children: roots}

	var objectsNode, connectionsNode, definitionsNode *nodetree.Node
	for _, n := range roots {
		switch n.NameStr {
		case "Objects":
			objectsNode = n
		case "Connections":
			connectionsNode = n
		case "Definitions":
			definitionsNode = n
		}
	}

	reader := elements.New(pool, elements.Options{
		IndexPolicy:                toElementsPolicy(o.IndexErrorHandling),
		AllowMissingVertexPosition: o.AllowMissingVertexPosition,
		Strict:                     o.Strict,
	})

	var els []*elements.Element
	if objectsNode != nil {
		parsedEls, everr := reader.ReadObjects(objectsNode)
		if everr != nil {
			return nil, wrapErr(everr)
		}
		els = parsedEls
	}

	if err := accountAlloc(a, len(els), 64); err != nil {
		return nil, wrapErr(err)
	}

	fbxIDToIndex := make(map[int64]int, len(els))
	for i, el := range els {
		fbxIDToIndex[el.FbxID] = i
	}

	var graph *connections.Graph
	var connWarnings []string
	if connectionsNode != nil {
		g, cw, cerr := connections.Read(connectionsNode, pool, func(id int64) bool {
			_, ok := fbxIDToIndex[id]
			return ok
		}, toConnectionsPolicy(o))
		if cerr != nil {
			return nil, wrapErr(cerr)
		}
		graph = g
		connWarnings = cw
	} else {
		graph = connections.SynthesizeFromNesting(nil)
	}

	result, ferr := finalize.Run(els, fbxIDToIndex, graph, definitionsNode, pool, finalize.Options{
		GeometryHandling: toFinalizeHandling(o.GeometryTransform),
		BaseDir:          o.ArenaBaseDir,
	})
	if ferr != nil {
		return nil, wrapErr(ferr)
	}

	scene := buildScene(result, pool)
	if o.RetainDOM {
		scene.Dom = buildDomTree(root, pool)
	}
	for _, w := range reader.Warnings() {
		scene.Warnings = append(scene.Warnings, w.Desc)
	}
	for _, w := range result.Warnings {
		scene.Warnings = append(scene.Warnings, w.Desc)
	}
	scene.Warnings = append(scene.Warnings, connWarnings...)
	scene.Warnings = append(scene.Warnings, pool.Warnings()...)
	return scene, nil
}

func buildScene(result *finalize.Result, pool *strpool.Pool) *Scene {
	scene := &Scene{}

	byTypeIdx := make(map[elements.Type]int)
	elIndex := make(map[int]*Element, len(result.Elements))
	for i, el := range result.Elements {
		typedID := byTypeIdx[el.Type]
		byTypeIdx[el.Type]++
		pub := &Element{
			ID:      i,
			TypedID: typedID,
			Name:    el.Name,
			SubType: el.SubType,
			Type:    publicElementType(el.Type),
			Props:   PropertySet{set: el.Props},
		}
		scene.Elements = append(scene.Elements, pub)
		elIndex[i] = pub
	}

	nodeByElement := make(map[int]*Node, len(result.Nodes))
	for _, rec := range result.Nodes {
		el := result.Elements[rec.ElementIndex]
		switch el.Type {
		case elements.TypeNode, elements.TypeBone, elements.TypeNull, elements.TypeCamera,
			elements.TypeLight, elements.TypeStereoCamera, elements.TypeLODGroup:
		default:
			continue
		}
		n := newNodeFromProps(elIndex[rec.ElementIndex])
		nodeByElement[rec.ElementIndex] = n
		scene.Nodes = append(scene.Nodes, n)
	}
	for _, rec := range result.Nodes {
		n, ok := nodeByElement[rec.ElementIndex]
		if !ok {
			continue
		}
		if rec.ParentIndex >= 0 {
			if parent, ok := nodeByElement[rec.ParentIndex]; ok {
				n.Parent = parent
				parent.Children = append(parent.Children, n)
				continue
			}
		}
		scene.RootNodes = append(scene.RootNodes, n)
	}

	meshByElement := make(map[int]*Mesh, len(result.Meshes))
	for _, fm := range result.Meshes {
		el := result.Elements[fm.ElementIndex]
		md := el.Mesh
		mesh := &Mesh{
			Element:          elIndex[fm.ElementIndex],
			Positions:        fm.Positions,
			VertexIndices:    fm.VertexIndices,
			NumTriangles:     fm.NumTriangles,
			VertexFirstIndex: fm.VertexFirstIndex,
		}
		for _, f := range fm.Faces {
			mesh.Faces = append(mesh.Faces, Face{Begin: f.Begin, End: f.End, Material: f.Material})
		}
		if md != nil {
			policy := elements.IndexClamp
			mesh.Normals = buildMeshAttribute("Normals", md.Normals, fm.VertexIndices, len(fm.Faces), policy)
			mesh.Tangents = buildMeshAttribute("Tangents", md.Tangents, fm.VertexIndices, len(fm.Faces), policy)
			mesh.Binormals = buildMeshAttribute("Binormals", md.Binormals, fm.VertexIndices, len(fm.Faces), policy)
			for _, uv := range md.UVSets {
				mesh.UVSets = append(mesh.UVSets, buildMeshAttribute("UV", uv, fm.VertexIndices, len(fm.Faces), policy))
			}
			for _, c := range md.ColorSets {
				mesh.ColorSets = append(mesh.ColorSets, buildMeshAttribute("Colors", c, fm.VertexIndices, len(fm.Faces), policy))
			}
		}
		meshByElement[fm.ElementIndex] = mesh
		scene.Meshes = append(scene.Meshes, mesh)
	}

	for i, el := range result.Elements {
		if el.Type == elements.TypeMaterial {
			scene.Materials = append(scene.Materials, newMaterialFromProps(elIndex[i]))
		}
	}

	for _, fs := range result.Skins {
		skin := &Skin{
			Element:          elIndex[fs.ElementIndex],
			Mesh:             meshByElement[fs.GeometryIndex],
			VertexInfluences: make(map[int][]VertexInfluence, len(fs.VertexInfluences)),
		}
		for _, fc := range fs.Clusters {
			skin.Clusters = append(skin.Clusters, &Cluster{
				Element:       elIndex[fc.ElementIndex],
				Link:          nodeByElement[fc.LinkIndex],
				Indexes:       fc.Indexes,
				Weights:       fc.Weights,
				Transform:     fc.Transform,
				TransformLink: fc.TransformLink,
			})
		}
		for vi, influences := range fs.VertexInfluences {
			for _, infl := range influences {
				skin.VertexInfluences[vi] = append(skin.VertexInfluences[vi], VertexInfluence{
					Cluster: skin.Clusters[infl.ClusterIndex],
					Weight:  infl.Weight,
				})
			}
		}
		scene.Skins = append(scene.Skins, skin)
	}

	for _, fb := range result.BlendShapes {
		bs := &BlendShape{Element: elIndex[fb.ElementIndex]}
		for _, fc := range fb.Channels {
			bs.Channels = append(bs.Channels, &BlendChannel{
				Element:       elIndex[fc.ElementIndex],
				DeformPercent: fc.DeformPercent,
				FullWeights:   fc.FullWeights,
				Shape:         meshByElement[fc.ShapeIndex],
			})
		}
		scene.BlendShapes = append(scene.BlendShapes, bs)
	}

	for _, gh := range result.GeometryHelpers {
		scene.GeometryHelpers = append(scene.GeometryHelpers, GeometryHelper{
			Owner:  nodeByElement[gh.OwnerIndex],
			Helper: nodeByElement[gh.HelperIndex],
		})
	}

	texByElement := make(map[int]*Texture)
	for _, t := range result.Textures {
		tex := &Texture{Element: elIndex[t.ElementIndex], ResolvedPath: t.ResolvedPath}
		texByElement[t.ElementIndex] = tex
		scene.Textures = append(scene.Textures, tex)
	}
	for _, t := range result.Textures {
		if t.DuplicateOf >= 0 {
			texByElement[t.ElementIndex].DuplicateOf = texByElement[t.DuplicateOf]
		}
	}

	layerByIndex := make(map[int]*AnimLayer, len(result.Layers))
	for i, fl := range result.Layers {
		al := &AnimLayer{
			Element:         elIndex[fl.ElementIndex],
			ComposeRotation: fl.ComposeRotation,
			ComposeScale:    fl.ComposeScale,
		}
		for _, b := range fl.Bindings {
			ab := AnimBinding{Element: elIndex[b.ElementIndex], PropName: b.PropName}
			for ci, c := range b.Curves {
				if c != nil {
					ab.Curves[ci] = &AnimCurve{curve: c}
				}
			}
			al.Bindings = append(al.Bindings, ab)
		}
		layerByIndex[i] = al
	}
	for _, fs := range result.Stacks {
		stack := &AnimStack{
			Element:   elIndex[fs.ElementIndex],
			TimeBegin: fs.TimeBegin,
			TimeEnd:   fs.TimeEnd,
		}
		for _, li := range fs.Layers {
			stack.Layers = append(stack.Layers, layerByIndex[li])
		}
		scene.AnimStacks = append(scene.AnimStacks, stack)
	}

	scene.NameTable = result.NameTable
	return scene
}

// loadOBJ builds a unified per-attribute-combination vertex pool from
// OBJ's three separate v/vt/vn index spaces: each distinct (pos, uv,
// normal) triple used by any face becomes one combo vertex, so the
// resulting Mesh has the same "one flat vertex index per corner" shape
// binary/ASCII FBX meshes do.
func loadOBJ(buf []byte, o LoadOpts, a *arena.Arena) (*Scene, error) {
	mesh, merr := objtext.Parse(bytes.NewReader(buf), objtext.Options{IndexPolicy: toObjIndexPolicy(o.IndexErrorHandling)})
	if merr != nil {
		return nil, wrapErr(merr)
	}
	if err := accountAlloc(a, len(mesh.Positions), 8); err != nil {
		return nil, wrapErr(err)
	}

	scene := &Scene{}
	el := &Element{ID: 0, Name: "mesh", Type: ElementMesh}
	scene.Elements = append(scene.Elements, el)

	m := &Mesh{Element: el}
	comboID := make(map[objtext.FaceVertex]int32)
	var positions []float64
	var uvValues, normValues []float64
	haveUV := len(mesh.UVs) > 0
	haveNormals := len(mesh.Normals) > 0
	var vertexFirst []int32
	var matNames []string

	combo := func(fv objtext.FaceVertex) int32 {
		if idx, ok := comboID[fv]; ok {
			return idx
		}
		idx := int32(len(positions) / 3)
		comboID[fv] = idx
		if fv.Pos >= 0 && int(fv.Pos)*3+3 <= len(mesh.Positions) {
			positions = append(positions, mesh.Positions[fv.Pos*3:fv.Pos*3+3]...)
		} else {
			positions = append(positions, 0, 0, 0)
		}
		if haveUV {
			if fv.UV >= 0 && int(fv.UV)*2+2 <= len(mesh.UVs) {
				uvValues = append(uvValues, mesh.UVs[fv.UV*2:fv.UV*2+2]...)
			} else {
				uvValues = append(uvValues, 0, 0)
			}
		}
		if haveNormals {
			if fv.Normal >= 0 && int(fv.Normal)*3+3 <= len(mesh.Normals) {
				normValues = append(normValues, mesh.Normals[fv.Normal*3:fv.Normal*3+3]...)
			} else {
				normValues = append(normValues, 0, 0, 0)
			}
		}
		vertexFirst = append(vertexFirst, NoIndex)
		return idx
	}

	for _, f := range mesh.Faces {
		begin := len(m.VertexIndices)
		for _, fv := range f.Verts {
			idx := combo(fv)
			if vertexFirst[idx] == NoIndex {
				vertexFirst[idx] = int32(len(m.VertexIndices))
			}
			m.VertexIndices = append(m.VertexIndices, idx)
		}
		n := len(f.Verts)
		if n >= 3 {
			m.NumTriangles += n - 2
		}
		m.Faces = append(m.Faces, Face{Begin: begin, End: len(m.VertexIndices), Material: NoIndex})
		matNames = append(matNames, f.Material)
	}

	m.Positions = positions
	m.VertexFirstIndex = vertexFirst
	if haveUV {
		m.UVSets = append(m.UVSets, &MeshAttribute{Name: "UV", TupleSize: 2, Values: uvValues, Indices: m.VertexIndices})
	}
	if haveNormals {
		m.Normals = &MeshAttribute{Name: "Normals", TupleSize: 3, Values: normValues, Indices: m.VertexIndices}
	}
	scene.Meshes = append(scene.Meshes, m)

	if o.LoadExternalFiles {
		for _, libName := range mesh.MtlLibs {
			path := filepath.Join(o.ArenaBaseDir, libName)
			data, rerr := os.ReadFile(path)
			if rerr != nil {
				if o.IgnoreMissingExternalFiles {
					continue
				}
				return nil, rerr
			}
			mats, materr := objtext.ParseMTL(bytes.NewReader(data))
			if materr != nil {
				return nil, wrapErr(materr)
			}
			for _, mat := range mats {
				matEl := &Element{ID: len(scene.Elements), Name: mat.Name, Type: ElementMaterial}
				scene.Elements = append(scene.Elements, matEl)
				scene.Materials = append(scene.Materials, newMaterialFromMTL(matEl, mat))
			}
		}
	}

	matIndex := make(map[string]int32, len(scene.Materials))
	for i, mat := range scene.Materials {
		matIndex[mat.Element.Name] = int32(i)
	}
	for i, name := range matNames {
		if idx, ok := matIndex[name]; ok {
			m.Faces[i].Material = idx
		}
	}

	return scene, nil
}

func loadMTL(buf []byte, o LoadOpts) (*Scene, error) {
	mats, err := objtext.ParseMTL(bytes.NewReader(buf))
	if err != nil {
		return nil, wrapErr(err)
	}
	scene := &Scene{}
	for _, mat := range mats {
		el := &Element{ID: len(scene.Elements), Name: mat.Name, Type: ElementMaterial}
		scene.Elements = append(scene.Elements, el)
		scene.Materials = append(scene.Materials, newMaterialFromMTL(el, mat))
	}
	return scene, nil
}

func toObjIndexPolicy(i IndexErrorHandling) objtext.IndexPolicy {
	switch i {
	case IndexNoIndex:
		return objtext.IndexNoIndex
	case IndexAbort:
		return objtext.IndexAbort
	default:
		return objtext.IndexClamp
	}
}

