package render

import (
	"github.com/taigrr/softrast/pkg/math3d"
)

// Plane represents a plane in 3D space using the equation: Ax + By + Cz + D = 0
// where (A, B, C) is the normal and D is the distance from origin.
type Plane struct {
	Normal math3d.Vec3
	D      float64
}

// Normalize normalizes the plane equation so the normal has unit length.
func (p *Plane) Normalize() {
	l := p.Normal.Len()
	if l == 0 {
		return
	}
	p.Normal = p.Normal.Scale(1.0 / l)
	p.D /= l
}

// DistanceToPoint returns the signed distance from the plane to a point.
// Positive = in front (same side as normal), negative = behind.
func (p Plane) DistanceToPoint(point math3d.Vec3) float64 {
	return p.Normal.Dot(point) + p.D
}

// Frustum represents the 6 planes of a view frustum.
// Each plane's normal points inward (toward the center of the frustum).
type Frustum struct {
	Planes [6]Plane
}

// FrustumPlane indices for clarity.
const (
	FrustumLeft = iota
	FrustumRight
	FrustumBottom
	FrustumTop
	FrustumNear
	FrustumFar
)

// NewFrustumFromMatrix extracts frustum planes from a view-projection
// matrix with zero-to-one clip depth (Gribb/Hartmann).
func NewFrustumFromMatrix(m math3d.Mat4) Frustum {
	r0, r1, r2, r3 := m.Row(0), m.Row(1), m.Row(2), m.Row(3)

	plane := func(v math3d.Vec4) Plane {
		p := Plane{Normal: v.Vec3(), D: v.W}
		p.Normalize()
		return p
	}
	add := func(a, b math3d.Vec4) math3d.Vec4 {
		return math3d.V4(a.X+b.X, a.Y+b.Y, a.Z+b.Z, a.W+b.W)
	}
	sub := func(a, b math3d.Vec4) math3d.Vec4 {
		return math3d.V4(a.X-b.X, a.Y-b.Y, a.Z-b.Z, a.W-b.W)
	}

	var f Frustum
	f.Planes[FrustumLeft] = plane(add(r3, r0))
	f.Planes[FrustumRight] = plane(sub(r3, r0))
	f.Planes[FrustumBottom] = plane(add(r3, r1))
	f.Planes[FrustumTop] = plane(sub(r3, r1))
	// 0 <= z, not -w <= z
	f.Planes[FrustumNear] = plane(r2)
	f.Planes[FrustumFar] = plane(sub(r3, r2))
	return f
}

// AABB represents an axis-aligned bounding box.
type AABB struct {
	Min math3d.Vec3
	Max math3d.Vec3
}

// Transform returns an AABB that bounds all 8 corners of the original box
// after transformation.
func (b AABB) Transform(m math3d.Mat4) AABB {
	corners := [8]math3d.Vec3{
		{X: b.Min.X, Y: b.Min.Y, Z: b.Min.Z},
		{X: b.Max.X, Y: b.Min.Y, Z: b.Min.Z},
		{X: b.Min.X, Y: b.Max.Y, Z: b.Min.Z},
		{X: b.Max.X, Y: b.Max.Y, Z: b.Min.Z},
		{X: b.Min.X, Y: b.Min.Y, Z: b.Max.Z},
		{X: b.Max.X, Y: b.Min.Y, Z: b.Max.Z},
		{X: b.Min.X, Y: b.Max.Y, Z: b.Max.Z},
		{X: b.Max.X, Y: b.Max.Y, Z: b.Max.Z},
	}

	transformed := m.MulVec3(corners[0])
	newMin := transformed
	newMax := transformed

	for i := 1; i < 8; i++ {
		transformed = m.MulVec3(corners[i])
		newMin = newMin.Min(transformed)
		newMax = newMax.Max(transformed)
	}

	return AABB{Min: newMin, Max: newMax}
}

// IntersectAABB tests if the AABB intersects or is inside the frustum.
// Uses the "positive vertex" test: the corner furthest along each plane
// normal decides whether the whole box is outside.
func (f Frustum) IntersectAABB(box AABB) bool {
	for i := range f.Planes {
		plane := f.Planes[i]

		pVertex := math3d.V3(
			selectComponent(plane.Normal.X >= 0, box.Max.X, box.Min.X),
			selectComponent(plane.Normal.Y >= 0, box.Max.Y, box.Min.Y),
			selectComponent(plane.Normal.Z >= 0, box.Max.Z, box.Min.Z),
		)

		if plane.DistanceToPoint(pVertex) < 0 {
			return false
		}
	}

	return true
}

// ContainsAABB tests if the AABB is completely inside the frustum.
func (f Frustum) ContainsAABB(box AABB) bool {
	for i := range f.Planes {
		plane := f.Planes[i]

		nVertex := math3d.V3(
			selectComponent(plane.Normal.X >= 0, box.Min.X, box.Max.X),
			selectComponent(plane.Normal.Y >= 0, box.Min.Y, box.Max.Y),
			selectComponent(plane.Normal.Z >= 0, box.Min.Z, box.Max.Z),
		)

		if plane.DistanceToPoint(nVertex) < 0 {
			return false
		}
	}

	return true
}

func selectComponent(cond bool, a, b float64) float64 {
	if cond {
		return a
	}
	return b
}

// GetFrustum returns the current view frustum from the camera.
func (c *Camera) GetFrustum() Frustum {
	return NewFrustumFromMatrix(c.ViewProjectionMatrix())
}

// FrustumSource is a CameraSource that builds its own view frustum.
type FrustumSource interface {
	GetFrustum() Frustum
}

// frustumOf returns the view frustum of cam, extracting it from the
// camera matrices when cam does not provide one.
func frustumOf(cam CameraSource) Frustum {
	if fs, ok := cam.(FrustumSource); ok {
		return fs.GetFrustum()
	}
	return NewFrustumFromMatrix(cam.ProjectionMatrix().Mul(cam.ViewMatrix()))
}

// CullingStats tracks mesh-level frustum rejection.
type CullingStats struct {
	MeshesTested int // Total meshes tested for culling
	MeshesCulled int // Meshes culled (not rendered)
	MeshesDrawn  int // Meshes that passed culling
	MeshesInside int // Drawn meshes entirely inside the frustum
}

// BoundedMesh is a Mesh that reports a model-space bounding box.
type BoundedMesh interface {
	Mesh
	GetBounds() (min, max math3d.Vec3)
}

// meshVisible tests the world-space bounds of mesh against frustum.
// Meshes without bounds are always visible and not counted.
func meshVisible(mesh Mesh, frustum Frustum, stats *CullingStats) bool {
	bounded, ok := mesh.(BoundedMesh)
	if !ok {
		return true
	}

	stats.MeshesTested++

	minBounds, maxBounds := bounded.GetBounds()
	world := AABB{Min: minBounds, Max: maxBounds}.Transform(mesh.WorldMatrix())

	if !frustum.IntersectAABB(world) {
		stats.MeshesCulled++
		return false
	}

	stats.MeshesDrawn++
	if frustum.ContainsAABB(world) {
		stats.MeshesInside++
	}
	return true
}
