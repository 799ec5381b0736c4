package math3d

import (
	"math"
	"testing"
)

const eps = 1e-9

func near(a, b float64) bool { return math.Abs(a-b) < eps }

func TestPerspectiveZODepthRange(t *testing.T) {
	p := PerspectiveZO(math.Pi/4, 4.0/3.0, 0.1, 100)

	tests := []struct {
		name  string
		viewZ float64
		want  float64
	}{
		{"near plane", -0.1, 0},
		{"far plane", -100, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clip := p.MulVec4(V4(0, 0, tt.viewZ, 1))
			if !near(clip.W, -tt.viewZ) {
				t.Errorf("w = %v, want %v", clip.W, -tt.viewZ)
			}
			if got := clip.Z / clip.W; !near(got, tt.want) {
				t.Errorf("z/w = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMulOrder(t *testing.T) {
	// Translate after rotating: the point lands at the translated rotated position
	m := Translate(V3(0, 0, 5)).Mul(RotateY(math.Pi / 2))
	got := m.MulVec3(V3(1, 0, 0))
	want := V3(0, 0, 4)
	if !near(got.X, want.X) || !near(got.Y, want.Y) || !near(got.Z, want.Z) {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestMulVec3DirIgnoresTranslation(t *testing.T) {
	m := Translate(V3(3, 4, 5))
	got := m.MulVec3Dir(V3(0, 1, 0))
	if got != V3(0, 1, 0) {
		t.Errorf("got %+v", got)
	}
}

func TestLookAtForward(t *testing.T) {
	view := LookAt(V3(0, 0, 0), V3(0, 0, 10), Up())
	p := view.MulVec3(V3(0, 0, 10))
	// Points in front of the camera end up on the negative view Z axis
	if !near(p.Z, -10) || !near(p.X, 0) || !near(p.Y, 0) {
		t.Errorf("got %+v, want (0, 0, -10)", p)
	}
}

func TestRow(t *testing.T) {
	m := Translate(V3(7, 8, 9))
	if got := m.Row(0); got != V4(1, 0, 0, 7) {
		t.Errorf("row 0 = %+v", got)
	}
	if got := m.Row(3); got != V4(0, 0, 0, 1) {
		t.Errorf("row 3 = %+v", got)
	}
}

func TestPerspectiveDivideKeepsW(t *testing.T) {
	got := V4(2, 4, 6, 2).PerspectiveDivide()
	if got != V4(1, 2, 3, 2) {
		t.Errorf("got %+v", got)
	}
	zero := V4(1, 2, 3, 0)
	if zero.PerspectiveDivide() != zero {
		t.Error("zero w should return the vector unchanged")
	}
}

func TestVec3Reflect(t *testing.T) {
	got := V3(1, -1, 0).Reflect(V3(0, 1, 0))
	if got != V3(1, 1, 0) {
		t.Errorf("got %+v", got)
	}
}

func TestVec2Cross(t *testing.T) {
	if got := V2(1, 0).Cross(V2(0, 1)); got != 1 {
		t.Errorf("got %v", got)
	}
}
