package render

import (
	"math"
	"testing"

	"github.com/taigrr/softrast/pkg/math3d"
	"github.com/taigrr/softrast/pkg/models"
)

func vecNear(a, b math3d.Vec3, eps float64) bool {
	return a.Sub(b).Len() <= eps
}

func TestCameraLookAt(t *testing.T) {
	cam := NewCamera()
	cam.LookAt(math3d.V3(0, 0, 50))

	if f := cam.Forward(); !vecNear(f, math3d.V3(0, 0, 1), 1e-9) {
		t.Errorf("Forward = %v, want +Z", f)
	}
	// Right-handed: looking down +Z puts -X on the right
	if r := cam.Right(); !vecNear(r, math3d.V3(-1, 0, 0), 1e-9) {
		t.Errorf("Right = %v, want -X", r)
	}

	other := NewCamera()
	other.SetRotation(0, math.Pi, 0)
	if f := other.Forward(); !vecNear(f, math3d.V3(0, 0, 1), 1e-9) {
		t.Errorf("SetRotation Forward = %v, want +Z", f)
	}
}

// project runs p through the vertex stage with cam and returns its raster
// position and post-divide depth.
func project(cam CameraSource, p math3d.Vec3, width, height int) (math3d.Vec2, float64) {
	out := TransformVertices(nil, []models.Vertex{{Position: p}}, math3d.Identity(), cam.ViewMatrix(), cam.ProjectionMatrix())
	raster := RasterCoordinates(nil, out, width, height)
	return raster[0], out[0].Position.Z
}

func TestCameraMovement(t *testing.T) {
	cam := NewCamera()
	cam.SetAspectRatio(1)
	cam.LookAt(math3d.V3(0, 0, 50))

	cam.MoveForward(10)
	if !vecNear(cam.Position, math3d.V3(0, 0, 10), 1e-9) {
		t.Errorf("after MoveForward: %v", cam.Position)
	}
	cam.MoveRight(5)
	if !vecNear(cam.Position, math3d.V3(-5, 0, 10), 1e-9) {
		t.Errorf("after MoveRight: %v", cam.Position)
	}

	// Moving must invalidate the cached view matrix
	p, _ := project(cam, math3d.V3(-5, 0, 50), 100, 100)
	if math.Abs(p.X-50) > 1e-6 || math.Abs(p.Y-50) > 1e-6 {
		t.Errorf("point ahead projects to %v, want center", p)
	}
}

func TestCameraProjectsTargetToCenter(t *testing.T) {
	tests := []struct {
		name          string
		target        math3d.Vec3
		width, height int
	}{
		{"square", math3d.V3(0, 0, 5), 64, 64},
		{"wide", math3d.V3(0, 0, 5), 64, 48},
		{"far target", math3d.V3(0, 0, 50), 64, 64},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cam := NewCamera()
			cam.SetAspectRatio(float64(tt.width) / float64(tt.height))
			cam.LookAt(tt.target)

			p, z := project(cam, tt.target, tt.width, tt.height)
			cx, cy := float64(tt.width)/2, float64(tt.height)/2
			if math.Abs(p.X-cx) > 1 || math.Abs(p.Y-cy) > 1 {
				t.Errorf("raster = %v, want within a pixel of (%v, %v)", p, cx, cy)
			}
			if z <= 0 || z >= 1 {
				t.Errorf("depth = %v, want in (0, 1)", z)
			}
		})
	}
}

func TestCameraRotateClampsPitch(t *testing.T) {
	cam := NewCamera()
	cam.Rotate(10, 0.5)

	if want := math.Pi/2 - 0.01; math.Abs(cam.Pitch-want) > 1e-12 {
		t.Errorf("Pitch = %v, want %v", cam.Pitch, want)
	}
	if cam.Yaw != 0.5 {
		t.Errorf("Yaw = %v, want 0.5", cam.Yaw)
	}
}

func TestCameraFrustum(t *testing.T) {
	cam := NewCamera()
	cam.LookAt(math3d.V3(0, 0, 50))
	f := cam.GetFrustum()

	for i, p := range f.Planes {
		if p.DistanceToPoint(math3d.V3(0, 0, 50)) <= 0 {
			t.Errorf("target is outside plane %d", i)
		}
	}

	inside := AABB{Min: math3d.V3(-1, -1, 49), Max: math3d.V3(1, 1, 51)}
	if !f.ContainsAABB(inside) {
		t.Error("small box at the target should be fully contained")
	}

	straddling := AABB{Min: math3d.V3(-1, -1, -1), Max: math3d.V3(1, 1, 1)}
	if f.ContainsAABB(straddling) {
		t.Error("box around the camera crosses the near plane")
	}
	if !f.IntersectAABB(straddling) {
		t.Error("box around the camera should intersect the frustum")
	}
}

func TestFixedCamera(t *testing.T) {
	view := math3d.Translate(math3d.V3(1, 2, 3))
	proj := math3d.PerspectiveZO(math.Pi/4, 1, 1, 10)
	var src CameraSource = FixedCamera{View: view, Projection: proj}

	if src.ViewMatrix() != view || src.ProjectionMatrix() != proj {
		t.Error("FixedCamera should return its matrices unchanged")
	}
}
