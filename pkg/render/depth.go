package render

import "math"

// resetDepth fills the depth buffer with the farthest representable depth.
func (r *SoftwareRenderer) resetDepth() {
	// Copy-doubling fill
	n := len(r.depth)
	if n == 0 {
		return
	}
	r.depth[0] = math.MaxFloat64
	for i := 1; i < n; i *= 2 {
		copy(r.depth[i:], r.depth[:i])
	}
}

// DepthAt returns the stored depth at (x, y), or math.MaxFloat64 when out
// of bounds.
func (r *SoftwareRenderer) DepthAt(x, y int) float64 {
	if x < 0 || x >= r.width || y < 0 || y >= r.height {
		return math.MaxFloat64
	}
	return r.depth[y*r.width+x]
}
