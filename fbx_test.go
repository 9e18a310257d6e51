package oxyfbx

import (
	"os"
	"testing"
)

const cubeFaceOBJ = `
v -1 -1 -1
v  1 -1 -1
v  1  1 -1
v -1  1 -1
vt 0 0
vt 1 0
vt 1 1
vt 0 1
vn 0 0 -1
f 1/1/1 2/2/1 3/3/1 4/4/1
`

func TestLoadOBJQuadWithUVAndNormal(t *testing.T) {
	scene, err := Load([]byte(cubeFaceOBJ), WithFileFormat(FormatOBJ))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(scene.Meshes) != 1 {
		t.Fatalf("got %d meshes, want 1", len(scene.Meshes))
	}
	mesh := scene.Meshes[0]
	if len(mesh.Faces) != 1 {
		t.Fatalf("got %d faces, want 1", len(mesh.Faces))
	}
	if mesh.NumTriangles != 2 {
		t.Fatalf("quad should count as 2 triangles, got %d", mesh.NumTriangles)
	}
	if len(mesh.VertexIndices) != 4 {
		t.Fatalf("got %d vertex indices, want 4", len(mesh.VertexIndices))
	}
	if mesh.Normals == nil {
		t.Fatal("expected normals to be populated")
	}
	if len(mesh.UVSets) != 1 {
		t.Fatalf("got %d UV sets, want 1", len(mesh.UVSets))
	}
	if len(mesh.Positions) != 4*3 {
		t.Fatalf("got %d position floats, want 12 (4 distinct combo vertices)", len(mesh.Positions))
	}
}

const positionOnlyOBJ = `
v 0 0 0
v 1 0 0
v 0 1 0
f 1 2 3
`

func TestLoadOBJPositionOnly(t *testing.T) {
	scene, err := Load([]byte(positionOnlyOBJ), WithFileFormat(FormatOBJ))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	mesh := scene.Meshes[0]
	if mesh.Normals != nil {
		t.Fatal("expected no normals when the file carries none")
	}
	if len(mesh.UVSets) != 0 {
		t.Fatal("expected no UV sets when the file carries none")
	}
	if mesh.NumTriangles != 1 {
		t.Fatalf("got %d triangles, want 1", mesh.NumTriangles)
	}
}

const mtlSource = `
newmtl red
Kd 1 0 0
Ns 100
`

const objWithMaterial = `
mtllib scene.mtl
v 0 0 0
v 1 0 0
v 0 1 0
usemtl red
f 1 2 3
`

func TestLoadOBJResolvesMaterialIndex(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir+"/scene.mtl", mtlSource)

	scene, err := LoadFile(writeOBJFile(t, dir, objWithMaterial), WithLoadExternalFiles(true))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if len(scene.Materials) != 1 {
		t.Fatalf("got %d materials, want 1", len(scene.Materials))
	}
	mat := scene.Materials[0]
	if mat.Diffuse != ([3]float64{1, 0, 0}) {
		t.Fatalf("got diffuse %v, want red", mat.Diffuse)
	}
	if mat.Element.Name != "red" {
		t.Fatalf("got material name %q, want %q", mat.Element.Name, "red")
	}
	face := scene.Meshes[0].Faces[0]
	if face.Material != 0 {
		t.Fatalf("got face material index %d, want 0", face.Material)
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}

func writeOBJFile(t *testing.T, dir, content string) string {
	t.Helper()
	path := dir + "/scene.obj"
	writeFile(t, path, content)
	return path
}
