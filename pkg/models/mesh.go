// Package models provides the geometry sources fed to the softrast pipeline:
// indexed triangle meshes and the loaders that build them.
package models

import (
	"image"
	"iter"

	"github.com/taigrr/softrast/pkg/math3d"
)

// Topology describes how an index buffer is grouped into triangles.
type Topology int

const (
	// TriangleList takes every three indices as one triangle.
	TriangleList Topology = iota
	// TriangleStrip takes every run of three consecutive indices as one
	// triangle, swapping the last two on odd steps to keep the winding.
	TriangleStrip
)

func (t Topology) String() string {
	switch t {
	case TriangleList:
		return "list"
	case TriangleStrip:
		return "strip"
	default:
		return "unknown"
	}
}

// TriangleCount returns how many triangles n indices describe.
func (t Topology) TriangleCount(n int) int {
	if t == TriangleStrip {
		return max(n-2, 0)
	}
	return n / 3
}

// TriangleAt returns the index-buffer slots of triangle i.
func (t Topology) TriangleAt(i int) [3]int {
	if t == TriangleStrip {
		if i%2 == 1 {
			return [3]int{i, i + 2, i + 1}
		}
		return [3]int{i, i + 1, i + 2}
	}
	return [3]int{i * 3, i*3 + 1, i*3 + 2}
}

// Vertex holds all vertex attributes.
type Vertex struct {
	Position math3d.Vec3
	Normal   math3d.Vec3
	Tangent  math3d.Vec3
	UV       math3d.Vec2
	Color    math3d.Vec3
}

// Material holds the images a model ships with.
type Material struct {
	Name      string
	BaseColor [4]float64  // RGBA in 0-1 range
	BaseMap   image.Image // Optional base color texture
	NormalMap image.Image // Optional tangent-space normal map
}

// HasTexture reports whether the material carries a base color image.
func (m Material) HasTexture() bool {
	return m.BaseMap != nil
}

// Mesh is an indexed triangle mesh placed in the world by a model matrix.
type Mesh struct {
	Name      string
	Vertices  []Vertex
	Indices   []uint32
	Topology  Topology
	World     math3d.Mat4
	Materials []Material

	// Bounding box in model space (calculated on load)
	BoundsMin math3d.Vec3
	BoundsMax math3d.Vec3
}

// NewMesh creates an empty triangle-list mesh at the origin.
func NewMesh(name string) *Mesh {
	return &Mesh{
		Name:     name,
		Vertices: make([]Vertex, 0),
		Indices:  make([]uint32, 0),
		Topology: TriangleList,
		World:    math3d.Identity(),
	}
}

// VertexData returns the vertex buffer.
func (m *Mesh) VertexData() []Vertex { return m.Vertices }

// IndexData returns the index buffer.
func (m *Mesh) IndexData() []uint32 { return m.Indices }

// PrimitiveTopology returns how the index buffer forms triangles.
func (m *Mesh) PrimitiveTopology() Topology { return m.Topology }

// WorldMatrix returns the model-to-world transform.
func (m *Mesh) WorldMatrix() math3d.Mat4 { return m.World }

// GetBounds returns the model-space axis-aligned bounding box.
func (m *Mesh) GetBounds() (min, max math3d.Vec3) {
	return m.BoundsMin, m.BoundsMax
}

// CalculateBounds computes the axis-aligned bounding box.
func (m *Mesh) CalculateBounds() {
	if len(m.Vertices) == 0 {
		return
	}

	m.BoundsMin = m.Vertices[0].Position
	m.BoundsMax = m.Vertices[0].Position

	for _, v := range m.Vertices[1:] {
		m.BoundsMin = m.BoundsMin.Min(v.Position)
		m.BoundsMax = m.BoundsMax.Max(v.Position)
	}
}

// Center returns the center of the bounding box.
func (m *Mesh) Center() math3d.Vec3 {
	return m.BoundsMin.Add(m.BoundsMax).Scale(0.5)
}

// Size returns the dimensions of the bounding box.
func (m *Mesh) Size() math3d.Vec3 {
	return m.BoundsMax.Sub(m.BoundsMin)
}

// TriangleCount returns the number of triangles.
func (m *Mesh) TriangleCount() int {
	return m.Topology.TriangleCount(len(m.Indices))
}

// VertexCount returns the number of vertices.
func (m *Mesh) VertexCount() int {
	return len(m.Vertices)
}

// Triangles yields the vertex indices of every triangle whose indices are
// all in range.
func (m *Mesh) Triangles() iter.Seq[[3]uint32] {
	return func(yield func([3]uint32) bool) {
		n := uint32(len(m.Vertices))
		for i := range m.TriangleCount() {
			slots := m.Topology.TriangleAt(i)
			tri := [3]uint32{m.Indices[slots[0]], m.Indices[slots[1]], m.Indices[slots[2]]}
			if tri[0] >= n || tri[1] >= n || tri[2] >= n {
				continue
			}
			if !yield(tri) {
				return
			}
		}
	}
}

// CalculateSmoothNormals computes averaged normals for smooth shading.
func (m *Mesh) CalculateSmoothNormals() {
	for i := range m.Vertices {
		m.Vertices[i].Normal = math3d.Vec3{}
	}

	// Area-weighted accumulation: the unnormalized cross product
	for tri := range m.Triangles() {
		v0 := m.Vertices[tri[0]].Position
		v1 := m.Vertices[tri[1]].Position
		v2 := m.Vertices[tri[2]].Position

		normal := v1.Sub(v0).Cross(v2.Sub(v0))
		for _, idx := range tri {
			m.Vertices[idx].Normal = m.Vertices[idx].Normal.Add(normal)
		}
	}

	for i := range m.Vertices {
		m.Vertices[i].Normal = m.Vertices[i].Normal.Normalize()
	}
}

// CalculateTangents derives per-vertex tangents from positions and UVs,
// orthogonalized against the vertex normal. Vertices without a usable UV
// gradient get an arbitrary tangent perpendicular to their normal.
func (m *Mesh) CalculateTangents() {
	acc := make([]math3d.Vec3, len(m.Vertices))

	for tri := range m.Triangles() {
		a, b, c := m.Vertices[tri[0]], m.Vertices[tri[1]], m.Vertices[tri[2]]

		e1 := b.Position.Sub(a.Position)
		e2 := c.Position.Sub(a.Position)
		d1 := b.UV.Sub(a.UV)
		d2 := c.UV.Sub(a.UV)

		det := d1.X*d2.Y - d2.X*d1.Y
		if det == 0 {
			continue
		}
		r := 1.0 / det
		t := e1.Scale(d2.Y * r).Sub(e2.Scale(d1.Y * r))
		for _, idx := range tri {
			acc[idx] = acc[idx].Add(t)
		}
	}

	for i := range m.Vertices {
		n := m.Vertices[i].Normal
		t := acc[i].Sub(n.Scale(n.Dot(acc[i]))) // Gram-Schmidt
		if t.Len() < 1e-12 {
			t = perpendicular(n)
		}
		m.Vertices[i].Tangent = t.Normalize()
	}
}

// perpendicular returns some unit vector orthogonal to n.
func perpendicular(n math3d.Vec3) math3d.Vec3 {
	axis := math3d.V3(1, 0, 0)
	if abs(n.X) > 0.9 {
		axis = math3d.V3(0, 1, 0)
	}
	return n.Cross(axis).Normalize()
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

// SetColor assigns the same vertex color to every vertex.
func (m *Mesh) SetColor(c math3d.Vec3) {
	for i := range m.Vertices {
		m.Vertices[i].Color = c
	}
}

// Place sets the world matrix to a rotation about Y followed by a
// translation.
func (m *Mesh) Place(position math3d.Vec3, yaw float64) {
	m.World = math3d.Translate(position).Mul(math3d.RotateY(yaw))
}

// Transform applies a transformation matrix to all vertices.
func (m *Mesh) Transform(mat math3d.Mat4) {
	for i := range m.Vertices {
		v := &m.Vertices[i]
		v.Position = mat.MulVec3(v.Position)
		// Rotation part only; non-uniform scale would need the inverse transpose
		v.Normal = mat.MulVec3Dir(v.Normal).Normalize()
		v.Tangent = mat.MulVec3Dir(v.Tangent).Normalize()
	}
	m.CalculateBounds()
}

// Clone creates a deep copy of the mesh.
func (m *Mesh) Clone() *Mesh {
	clone := &Mesh{
		Name:      m.Name,
		Vertices:  make([]Vertex, len(m.Vertices)),
		Indices:   make([]uint32, len(m.Indices)),
		Topology:  m.Topology,
		World:     m.World,
		Materials: make([]Material, len(m.Materials)),
		BoundsMin: m.BoundsMin,
		BoundsMax: m.BoundsMax,
	}
	copy(clone.Vertices, m.Vertices)
	copy(clone.Indices, m.Indices)
	copy(clone.Materials, m.Materials)
	return clone
}

// GetMaterial returns the material at index i.
// Returns nil if index is out of bounds.
func (m *Mesh) GetMaterial(i int) *Material {
	if i < 0 || i >= len(m.Materials) {
		return nil
	}
	return &m.Materials[i]
}

// MaterialCount returns the number of materials.
func (m *Mesh) MaterialCount() int {
	return len(m.Materials)
}
