package render

import (
	"github.com/taigrr/softrast/pkg/math3d"
	"github.com/taigrr/softrast/pkg/models"
)

// VertexOut is a vertex after the vertex stage.
type VertexOut struct {
	// Position holds x, y, z after the perspective divide and the
	// untouched clip-space w.
	Position math3d.Vec4
	Normal   math3d.Vec3 // World space
	Tangent  math3d.Vec3 // World space
	UV       math3d.Vec2
	Color    math3d.Vec3
	// ViewDirection is the normalized clip-space xyz before the divide.
	ViewDirection math3d.Vec3
}

// TransformVertices runs the vertex stage over vertices, appending the
// results to dst[:0]. The combined transform is world, then view, then
// projection.
func TransformVertices(dst []VertexOut, vertices []models.Vertex, world, view, projection math3d.Mat4) []VertexOut {
	dst = dst[:0]
	wvp := projection.Mul(view).Mul(world)

	for _, v := range vertices {
		clip := wvp.MulVec4(math3d.V4FromV3(v.Position, 1))

		dst = append(dst, VertexOut{
			Position:      clip.PerspectiveDivide(),
			Normal:        world.MulVec3Dir(v.Normal),
			Tangent:       world.MulVec3Dir(v.Tangent),
			UV:            v.UV,
			Color:         v.Color,
			ViewDirection: clip.Vec3().Normalize(),
		})
	}
	return dst
}

// RasterCoordinates maps every transformed vertex to pixel space, appending
// to dst[:0].
func RasterCoordinates(dst []math3d.Vec2, vertices []VertexOut, width, height int) []math3d.Vec2 {
	dst = dst[:0]
	for i := range vertices {
		dst = append(dst, toRaster(vertices[i].Position, width, height))
	}
	return dst
}

// toRaster maps NDC x, y in [-1, 1] to pixel coordinates with y pointing
// down.
func toRaster(ndc math3d.Vec4, width, height int) math3d.Vec2 {
	return math3d.V2(
		(ndc.X+1)/2*float64(width),
		(1-ndc.Y)/2*float64(height),
	)
}

// outsideClipVolume reports whether a divided position lies outside
// x, y in [-1, 1] and z in [0, 1]. NaN coordinates count as outside.
func outsideClipVolume(p math3d.Vec4) bool {
	return !(p.X >= -1 && p.X <= 1 && p.Y >= -1 && p.Y <= 1 && p.Z >= 0 && p.Z <= 1)
}
