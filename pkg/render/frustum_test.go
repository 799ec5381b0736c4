package render

import (
	"math"
	"testing"

	"github.com/taigrr/softrast/pkg/math3d"
	"github.com/taigrr/softrast/pkg/models"
)

// testFrustum looks down -Z from the origin with near 1 and far 100.
func testFrustum() Frustum {
	return NewFrustumFromMatrix(math3d.PerspectiveZO(math.Pi/3, 1, 1, 100))
}

func box(minX, minY, minZ, maxX, maxY, maxZ float64) AABB {
	return AABB{Min: math3d.V3(minX, minY, minZ), Max: math3d.V3(maxX, maxY, maxZ)}
}

func TestPlaneNormalize(t *testing.T) {
	p := Plane{Normal: math3d.V3(0, 3, 4), D: 10}
	p.Normalize()

	if !vecNear(p.Normal, math3d.V3(0, 0.6, 0.8), 1e-12) || math.Abs(p.D-2) > 1e-12 {
		t.Errorf("normalized = %+v, want normal (0, 0.6, 0.8) and D 2", p)
	}

	zero := Plane{D: 5}
	zero.Normalize()
	if zero.D != 5 {
		t.Errorf("degenerate plane changed: %+v", zero)
	}
}

func TestNewFrustumFromMatrix(t *testing.T) {
	f := testFrustum()

	for i, p := range f.Planes {
		if l := p.Normal.Len(); math.Abs(l-1) > 1e-9 {
			t.Errorf("plane %d normal length = %v", i, l)
		}
	}

	tests := []struct {
		plane int
		point math3d.Vec3
	}{
		{FrustumNear, math3d.V3(0, 0, -1)},
		{FrustumFar, math3d.V3(0, 0, -100)},
		{FrustumNear, math3d.V3(0.2, -0.3, -1)},
	}
	for _, tt := range tests {
		if d := f.Planes[tt.plane].DistanceToPoint(tt.point); math.Abs(d) > 1e-9 {
			t.Errorf("plane %d: distance to %v = %v, want 0", tt.plane, tt.point, d)
		}
	}

	// Normals point inward
	center := math3d.V3(0, 0, -50)
	for i, p := range f.Planes {
		if p.DistanceToPoint(center) <= 0 {
			t.Errorf("plane %d faces away from the frustum center", i)
		}
	}
}

func TestAABBTransform(t *testing.T) {
	unit := box(-1, -1, -1, 1, 1, 1)

	tests := []struct {
		name string
		m    math3d.Mat4
		want AABB
	}{
		{"translate", math3d.Translate(math3d.V3(10, 20, 30)), box(9, 19, 29, 11, 21, 31)},
		{"scale", math3d.Scale(math3d.V3(2, 3, 4)), box(-2, -3, -4, 2, 3, 4)},
		{"quarter turn", math3d.RotateY(math.Pi / 2), unit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := unit.Transform(tt.m)
			if !vecNear(got.Min, tt.want.Min, 1e-9) || !vecNear(got.Max, tt.want.Max, 1e-9) {
				t.Errorf("Transform = %+v, want %+v", got, tt.want)
			}
		})
	}

	// A 45 degree turn widens the box to the rotated diagonal
	got := unit.Transform(math3d.RotateY(math.Pi / 4))
	if want := math.Sqrt2; math.Abs(got.Max.X-want) > 1e-9 || math.Abs(got.Max.Z-want) > 1e-9 {
		t.Errorf("rotated max = %v, want X and Z = %v", got.Max, want)
	}
}

func TestFrustumAABB(t *testing.T) {
	f := testFrustum()

	tests := []struct {
		name       string
		box        AABB
		intersects bool
		contained  bool
	}{
		{"inside", box(-1, -1, -10, 1, 1, -5), true, true},
		{"crosses near plane", box(-1, -1, -2, 1, 1, 2), true, false},
		{"crosses far plane", box(-1, -1, -120, 1, 1, -90), true, false},
		{"behind", box(-1, -1, 5, 1, 1, 10), false, false},
		{"beyond far plane", box(-1, -1, -150, 1, 1, -120), false, false},
		{"off to the side", box(100, -1, -10, 110, 1, -5), false, false},
		{"encloses the frustum", box(-200, -200, -200, 200, 200, 200), true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := f.IntersectAABB(tt.box); got != tt.intersects {
				t.Errorf("IntersectAABB = %v, want %v", got, tt.intersects)
			}
			if got := f.ContainsAABB(tt.box); got != tt.contained {
				t.Errorf("ContainsAABB = %v, want %v", got, tt.contained)
			}
		})
	}
}

type boundedMesh struct {
	world    math3d.Mat4
	min, max math3d.Vec3
}

func (m boundedMesh) VertexData() []models.Vertex        { return nil }
func (m boundedMesh) IndexData() []uint32                { return nil }
func (m boundedMesh) PrimitiveTopology() models.Topology { return models.TriangleList }
func (m boundedMesh) WorldMatrix() math3d.Mat4           { return m.world }
func (m boundedMesh) GetBounds() (min, max math3d.Vec3)  { return m.min, m.max }

func TestMeshVisible(t *testing.T) {
	f := testFrustum()
	unit := boundedMesh{min: math3d.V3(-1, -1, -1), max: math3d.V3(1, 1, 1)}
	place := func(z float64) boundedMesh {
		m := unit
		m.world = math3d.Translate(math3d.V3(0, 0, z))
		return m
	}

	var stats CullingStats
	tests := []struct {
		name    string
		mesh    Mesh
		visible bool
	}{
		{"in front", place(-10), true},
		{"straddling near plane", place(-1), true},
		{"behind", place(10), false},
		{"no bounds", &testMesh{}, true},
	}
	for _, tt := range tests {
		if got := meshVisible(tt.mesh, f, &stats); got != tt.visible {
			t.Errorf("%s: visible = %v, want %v", tt.name, got, tt.visible)
		}
	}

	want := CullingStats{MeshesTested: 3, MeshesCulled: 1, MeshesDrawn: 2, MeshesInside: 1}
	if stats != want {
		t.Errorf("stats = %+v, want %+v", stats, want)
	}
}

func TestFrustumOf(t *testing.T) {
	cam := NewCamera()
	cam.SetPosition(math3d.V3(3, 1, -2))
	cam.LookAt(math3d.V3(0, 0, 40))

	fixed := FixedCamera{View: cam.ViewMatrix(), Projection: cam.ProjectionMatrix()}
	got, want := frustumOf(cam), frustumOf(fixed)
	for i := range got.Planes {
		g, w := got.Planes[i], want.Planes[i]
		if !vecNear(g.Normal, w.Normal, 1e-9) || math.Abs(g.D-w.D) > 1e-9 {
			t.Errorf("plane %d: camera %+v, matrices %+v", i, g, w)
		}
	}
}

func BenchmarkMeshVisible(b *testing.B) {
	f := testFrustum()
	mesh := boundedMesh{
		world: math3d.Translate(math3d.V3(2, 0, -20)).Mul(math3d.RotateY(0.5)),
		min:   math3d.V3(-1, -1, -1),
		max:   math3d.V3(1, 1, 1),
	}
	var stats CullingStats

	for b.Loop() {
		_ = meshVisible(mesh, f, &stats)
	}
}

func BenchmarkFrustumExtraction(b *testing.B) {
	proj := math3d.PerspectiveZO(math.Pi/3, 16.0/9.0, 0.1, 1000.0)
	view := math3d.LookAt(math3d.V3(0, 10, 20), math3d.V3(0, 0, 0), math3d.V3(0, 1, 0))
	viewProj := proj.Mul(view)

	for b.Loop() {
		_ = NewFrustumFromMatrix(viewProj)
	}
}
