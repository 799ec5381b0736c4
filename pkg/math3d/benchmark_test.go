package math3d

import (
	"math"
	"testing"
)

func BenchmarkMat4Mul(b *testing.B) {
	m1 := Translate(V3(1, 2, 3))
	m2 := RotateY(0.5)

	for b.Loop() {
		_ = m1.Mul(m2)
	}
}

func BenchmarkMat4MulVec4(b *testing.B) {
	m := Translate(V3(1, 2, 3)).Mul(RotateY(0.5))
	v := V4(1, 2, 3, 1)

	for b.Loop() {
		_ = m.MulVec4(v)
	}
}

func BenchmarkVec3Normalize(b *testing.B) {
	v := V3(1, 2, 3)

	for b.Loop() {
		_ = v.Normalize()
	}
}

func BenchmarkWorldViewProjection(b *testing.B) {
	// Same product the vertex stage builds once per frame
	world := Translate(V3(0, 0, 50)).Mul(RotateY(0.3))
	view := LookAt(V3(0, 0, 0), V3(0, 0, -1), Up())
	proj := PerspectiveZO(math.Pi/4, 4.0/3.0, 0.1, 100.0)

	for b.Loop() {
		_ = proj.Mul(view).Mul(world)
	}
}
