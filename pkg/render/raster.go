package render

import (
	"math"

	"github.com/taigrr/softrast/pkg/math3d"
	"github.com/taigrr/softrast/pkg/models"
)

// frame is the read-only input shared by every triangle of one Render call.
type frame struct {
	vertices []VertexOut
	raster   []math3d.Vec2
	indices  []uint32
	topology models.Topology
	material Material
}

// fragment is the interpolated attribute bundle of one covered pixel.
type fragment struct {
	Depth         float64
	UV            math3d.Vec2
	Normal        math3d.Vec3
	Tangent       math3d.Vec3
	ViewDirection math3d.Vec3
}

// edge holds the coefficients of edge(x, y) = A*x + B*y + C, the 2-D cross
// product of the edge vector with the vector from its start to (x, y).
type edge struct {
	A, B, C float64
	topLeft bool
}

// newEdge returns the edge function from (x0, y0) to (x1, y1) scaled by
// sign. Reversed edges get exactly negated coefficients, so two triangles
// sharing an edge evaluate it to exactly opposite values.
func newEdge(p0, p1 math3d.Vec2, sign float64) edge {
	e := edge{
		A: sign * (p0.Y - p1.Y),
		B: sign * (p1.X - p0.X),
		C: sign * (p0.X*p1.Y - p1.X*p0.Y),
	}
	// With y down and a positive orientation, the edge vector is (B, -A):
	// a top edge is horizontal pointing right, a left edge points up.
	e.topLeft = (e.A == 0 && e.B > 0) || e.A > 0
	return e
}

// covers applies the top-left fill rule to an edge function value.
func (e edge) covers(v float64) bool {
	return v > 0 || (v == 0 && e.topLeft)
}

// rasterizeTriangle scan-converts triangle tri of the frame, depth tests
// every covered pixel and shades the survivors.
func (r *SoftwareRenderer) rasterizeTriangle(f *frame, tri int) {
	slots := f.topology.TriangleAt(tri)
	i0, i1, i2 := f.indices[slots[0]], f.indices[slots[1]], f.indices[slots[2]]

	n := uint32(len(f.vertices))
	if i0 >= n || i1 >= n || i2 >= n || i0 == i1 || i1 == i2 || i0 == i2 {
		r.rejected.Add(1)
		return
	}

	v0, v1, v2 := &f.vertices[i0], &f.vertices[i1], &f.vertices[i2]
	if outsideClipVolume(v0.Position) || outsideClipVolume(v1.Position) || outsideClipVolume(v2.Position) {
		r.rejected.Add(1)
		return
	}

	p0, p1, p2 := f.raster[i0], f.raster[i1], f.raster[i2]

	area := p1.Sub(p0).Cross(p2.Sub(p1))
	if area == 0 || math.IsNaN(area) {
		r.rejected.Add(1)
		return
	}

	// Bounding box with a one pixel margin, end exclusive
	const margin = 1
	minP := p0.Min(p1).Min(p2)
	maxP := p0.Max(p1).Max(p2)
	startX := max(int(minP.X)-margin, 0)
	startY := max(int(minP.Y)-margin, 0)
	endX := min(int(maxP.X)+margin, r.width)
	endY := min(int(maxP.Y)+margin, r.height)

	if r.showBoundingBox {
		r.fb.DrawRect(startX, startY, endX-startX, endY-startY, ColorWhite)
		return
	}

	// A pixel is front-facing only when all edge values are >= 0, which
	// requires a positive area, so the cull test runs once per triangle.
	front := area > 0
	switch r.cullMode {
	case CullBack:
		if !front {
			return
		}
	case CullFront:
		if front {
			return
		}
	}

	sign := 1.0
	if !front {
		sign = -1
	}
	invArea := 1 / (sign * area)

	e12 := newEdge(p1, p2, sign) // weight of v0
	e20 := newEdge(p2, p0, sign) // weight of v1
	e01 := newEdge(p0, p1, sign) // weight of v2

	// Reciprocals for depth and perspective-correct interpolation
	invZ0, invZ1, invZ2 := 1/v0.Position.Z, 1/v1.Position.Z, 1/v2.Position.Z
	invW0, invW1, invW2 := 1/v0.Position.W, 1/v1.Position.W, 1/v2.Position.W

	width := r.width
	depth := r.depth
	pixels := r.fb.Pixels

	for y := startY; y < endY; y++ {
		py := float64(y) + 0.5
		row0 := e12.B*py + e12.C
		row1 := e20.B*py + e20.C
		row2 := e01.B*py + e01.C
		rowOffset := y * width

		for x := startX; x < endX; x++ {
			px := float64(x) + 0.5
			ev0 := e12.A*px + row0
			ev1 := e20.A*px + row1
			ev2 := e01.A*px + row2

			if !e12.covers(ev0) || !e20.covers(ev1) || !e01.covers(ev2) {
				continue
			}

			w0 := ev0 * invArea
			w1 := ev1 * invArea
			w2 := ev2 * invArea

			// Screen-space depth, deliberately not perspective corrected
			z := 1 / (w0*invZ0 + w1*invZ1 + w2*invZ2)

			idx := rowOffset + x
			if depth[idx] < z {
				continue
			}
			depth[idx] = z

			frag := fragment{Depth: z}
			if !r.showDepth {
				pw0, pw1, pw2 := w0*invW0, w1*invW1, w2*invW2
				w := 1 / (pw0 + pw1 + pw2)

				frag.UV = v0.UV.Scale(pw0).Add(v1.UV.Scale(pw1)).Add(v2.UV.Scale(pw2)).Scale(w)
				frag.Normal = interpolate3(v0.Normal, v1.Normal, v2.Normal, pw0, pw1, pw2).Normalize()
				frag.Tangent = interpolate3(v0.Tangent, v1.Tangent, v2.Tangent, pw0, pw1, pw2).Normalize()
				frag.ViewDirection = interpolate3(v0.ViewDirection, v1.ViewDirection, v2.ViewDirection, pw0, pw1, pw2).Normalize()
			}

			pixels[idx] = r.shade(frag, &f.material).MaxToOne().ToRGBA()
		}
	}
}

// interpolate3 returns a*wa + b*wb + c*wc. The caller renormalizes, so the
// common perspective factor is left out.
func interpolate3(a, b, c math3d.Vec3, wa, wb, wc float64) math3d.Vec3 {
	return math3d.Vec3{
		X: a.X*wa + b.X*wb + c.X*wc,
		Y: a.Y*wa + b.Y*wb + c.Y*wc,
		Z: a.Z*wa + b.Z*wb + c.Z*wc,
	}
}
