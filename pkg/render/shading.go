package render

import (
	"math"

	"github.com/taigrr/softrast/pkg/math3d"
)

// Fixed scene lighting.
const (
	lightIntensity    = 7.0
	specularShininess = 25.0
	defaultAmbient    = 0.025

	// Depth view maps this band of [0, 1] depth to black..white
	depthViewMin = 0.997
	depthViewMax = 1.0
)

// lightDirection is the direction the single directional light travels.
var lightDirection = math3d.V3(0.577, -0.577, 0.577).Normalize()

// shade computes the color of one fragment. The result may exceed 1 in
// any channel.
func (r *SoftwareRenderer) shade(frag fragment, mat *Material) ColorRGB {
	if r.showDepth {
		return Grey(remap(frag.Depth, depthViewMin, depthViewMax))
	}

	normal := frag.Normal
	if r.normalMap {
		normal = sampleNormal(mat.Normal, frag.UV, frag.Normal, frag.Tangent)
	}

	toLight := lightDirection.Negate()
	observedArea := math.Max(0, normal.Normalize().Dot(toLight))

	var c ColorRGB
	switch r.lightingMode {
	case LightingObservedArea:
		c = Grey(observedArea)
	case LightingDiffuse:
		c = lambert(1, mat.Diffuse.Sample(frag.UV)).Scale(lightIntensity * observedArea)
	case LightingSpecular:
		c = specular(mat, frag, toLight, normal).Scale(observedArea)
	default:
		diffuse := lambert(1, mat.Diffuse.Sample(frag.UV)).Scale(lightIntensity)
		c = diffuse.Add(specular(mat, frag, toLight, normal)).Scale(observedArea)
	}

	return c.Add(r.ambient)
}

// sampleNormal transforms a tangent-space normal map sample into world
// space using the (tangent, normal x tangent, normal) basis.
func sampleNormal(s Sampler, uv math3d.Vec2, normal, tangent math3d.Vec3) math3d.Vec3 {
	m := s.Sample(uv).Scale(2).Sub(Grey(1))
	binormal := normal.Cross(tangent)

	return tangent.Scale(m.R).
		Add(binormal.Scale(m.G)).
		Add(normal.Scale(m.B))
}

// specular is the specular map sample times the Phong term with an
// exponent scaled by the gloss map's red channel.
func specular(mat *Material, frag fragment, toLight, normal math3d.Vec3) ColorRGB {
	exp := specularShininess * mat.Gloss.Sample(frag.UV).R
	return mat.Specular.Sample(frag.UV).Scale(phong(1, exp, toLight, frag.ViewDirection, normal))
}

// lambert is the normalized Lambertian diffuse BRDF.
func lambert(kd float64, cd ColorRGB) ColorRGB {
	return cd.Scale(kd / math.Pi)
}

// phong returns ks * max(0, dot(reflect(l, n), v))^exp.
func phong(ks, exp float64, l, v, n math3d.Vec3) float64 {
	cosAlpha := math.Max(0, l.Reflect(n).Dot(v))
	return ks * math.Pow(cosAlpha, exp)
}

// remap clamps v to [lo, hi] and maps it to [0, 1].
func remap(v, lo, hi float64) float64 {
	v = math.Max(lo, math.Min(hi, v))
	return (v - lo) / (hi - lo)
}
