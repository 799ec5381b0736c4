package models

import (
	"math"
	"strings"
	"testing"

	"github.com/taigrr/softrast/pkg/math3d"
)

func triangleMesh() *Mesh {
	m := NewMesh("tri")
	m.Vertices = []Vertex{
		{Position: math3d.V3(0, 0, 0), UV: math3d.V2(0, 0)},
		{Position: math3d.V3(1, 0, 0), UV: math3d.V2(1, 0)},
		{Position: math3d.V3(0, 1, 0), UV: math3d.V2(0, 1)},
	}
	m.Indices = []uint32{0, 1, 2}
	return m
}

func vecNear(a, b math3d.Vec3) bool {
	return math.Abs(a.X-b.X) < 1e-9 && math.Abs(a.Y-b.Y) < 1e-9 && math.Abs(a.Z-b.Z) < 1e-9
}

func TestTopologyTriangleCount(t *testing.T) {
	tests := []struct {
		topo Topology
		n    int
		want int
	}{
		{TriangleList, 0, 0},
		{TriangleList, 7, 2},
		{TriangleStrip, 2, 0},
		{TriangleStrip, 6, 4},
	}
	for _, tt := range tests {
		t.Run(tt.topo.String(), func(t *testing.T) {
			if got := tt.topo.TriangleCount(tt.n); got != tt.want {
				t.Errorf("TriangleCount(%d) = %d, want %d", tt.n, got, tt.want)
			}
		})
	}
}

func TestTopologyStripParity(t *testing.T) {
	if got := TriangleStrip.TriangleAt(0); got != [3]int{0, 1, 2} {
		t.Errorf("even step = %v", got)
	}
	if got := TriangleStrip.TriangleAt(1); got != [3]int{1, 3, 2} {
		t.Errorf("odd step = %v", got)
	}
}

func TestTrianglesSkipsOutOfRange(t *testing.T) {
	m := triangleMesh()
	m.Indices = append(m.Indices, 0, 1, 9)

	count := 0
	for range m.Triangles() {
		count++
	}
	if count != 1 {
		t.Errorf("got %d triangles, want 1", count)
	}
}

func TestCalculateSmoothNormals(t *testing.T) {
	m := triangleMesh()
	m.CalculateSmoothNormals()
	for i, v := range m.Vertices {
		if !vecNear(v.Normal, math3d.V3(0, 0, 1)) {
			t.Errorf("vertex %d normal = %+v", i, v.Normal)
		}
	}
}

func TestCalculateTangents(t *testing.T) {
	m := triangleMesh()
	m.CalculateSmoothNormals()
	m.CalculateTangents()
	for i, v := range m.Vertices {
		if !vecNear(v.Tangent, math3d.V3(1, 0, 0)) {
			t.Errorf("vertex %d tangent = %+v", i, v.Tangent)
		}
	}
}

func TestCalculateTangentsWithoutUVs(t *testing.T) {
	m := triangleMesh()
	for i := range m.Vertices {
		m.Vertices[i].UV = math3d.Vec2{}
	}
	m.CalculateSmoothNormals()
	m.CalculateTangents()
	for i, v := range m.Vertices {
		if math.Abs(v.Tangent.Len()-1) > 1e-9 {
			t.Errorf("vertex %d tangent not unit: %+v", i, v.Tangent)
		}
		if math.Abs(v.Tangent.Dot(v.Normal)) > 1e-9 {
			t.Errorf("vertex %d tangent not perpendicular to normal", i)
		}
	}
}

func TestMeshPlace(t *testing.T) {
	m := triangleMesh()
	m.Place(math3d.V3(0, 0, 50), math.Pi/2)
	got := m.WorldMatrix().MulVec3(math3d.V3(1, 0, 0))
	if !vecNear(got, math3d.V3(0, 0, 49)) {
		t.Errorf("got %+v, want (0, 0, 49)", got)
	}
}

func TestMeshCloneIsDeep(t *testing.T) {
	m := triangleMesh()
	m.Materials = []Material{{Name: "mat1"}}
	clone := m.Clone()

	clone.Indices[0] = 2
	clone.Materials[0].Name = "modified"
	clone.Vertices[0].Position = math3d.V3(9, 9, 9)

	if m.Indices[0] != 0 || m.Materials[0].Name != "mat1" || m.Vertices[0].Position != math3d.V3(0, 0, 0) {
		t.Error("Clone shares data with the original")
	}
	if clone.Topology != m.Topology || clone.World != m.World {
		t.Error("Clone should preserve topology and world matrix")
	}
}

func TestGetMaterial(t *testing.T) {
	m := NewMesh("test")
	m.Materials = []Material{{Name: "red", BaseColor: [4]float64{1, 0, 0, 1}}}

	if mat := m.GetMaterial(0); mat == nil || mat.Name != "red" {
		t.Error("GetMaterial(0) should return 'red' material")
	}
	if m.GetMaterial(-1) != nil || m.GetMaterial(99) != nil {
		t.Error("out of range GetMaterial should return nil")
	}
	if m.Materials[0].HasTexture() {
		t.Error("HasTexture should be false without a base map")
	}
}

func TestParseOBJ(t *testing.T) {
	src := `# quad
v 0 0 0
v 1 0 0
v 1 1 0
v 0 1 0
vt 0 0
vt 1 0
vt 1 1
vt 0 1
vn 0 0 1
f 1/1/1 2/2/1 3/3/1 4/4/1
`
	loader := NewOBJLoader()
	loader.FlipWinding = false
	m, err := loader.Parse(strings.NewReader(src))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if m.VertexCount() != 4 {
		t.Errorf("VertexCount = %d, want 4", m.VertexCount())
	}
	if m.TriangleCount() != 2 {
		t.Errorf("TriangleCount = %d, want 2", m.TriangleCount())
	}
	want := []uint32{0, 1, 2, 0, 2, 3}
	for i := range want {
		if m.Indices[i] != want[i] {
			t.Fatalf("Indices = %v, want %v", m.Indices, want)
		}
	}
	// V is flipped to a top-left origin
	if m.Vertices[0].UV != math3d.V2(0, 1) {
		t.Errorf("uv = %+v, want (0, 1)", m.Vertices[0].UV)
	}
	if m.BoundsMax != math3d.V3(1, 1, 0) {
		t.Errorf("BoundsMax = %+v", m.BoundsMax)
	}
	if m.Vertices[0].Color != math3d.V3(1, 1, 1) {
		t.Errorf("Color = %+v, want white", m.Vertices[0].Color)
	}
}

func TestParseOBJFlipWinding(t *testing.T) {
	src := "v 0 0 0\nv 1 0 0\nv 0 1 0\nf 1 2 3\n"
	m, err := NewOBJLoader().Parse(strings.NewReader(src))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if m.Indices[1] != 2 || m.Indices[2] != 1 {
		t.Errorf("Indices = %v, want [0 2 1]", m.Indices)
	}
	// Normals are generated when the file has none
	if m.Vertices[0].Normal.Len() == 0 {
		t.Error("expected generated normals")
	}
}

func TestParseOBJErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"empty", "# nothing\n"},
		{"bad float", "v 0 x 0\n"},
		{"index out of range", "v 0 0 0\nf 1 2 3\n"},
		{"short face", "v 0 0 0\nv 1 0 0\nf 1 2\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewOBJLoader().Parse(strings.NewReader(tt.src)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestParseOBJNegativeIndices(t *testing.T) {
	src := "v 0 0 0\nv 1 0 0\nv 0 1 0\nf -3 -2 -1\n"
	loader := NewOBJLoader()
	loader.FlipWinding = false
	m, err := loader.Parse(strings.NewReader(src))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if m.Vertices[m.Indices[2]].Position != math3d.V3(0, 1, 0) {
		t.Errorf("last corner = %+v", m.Vertices[m.Indices[2]].Position)
	}
}
