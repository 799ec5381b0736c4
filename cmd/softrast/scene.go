package main

import (
	"fmt"
	"image"
	"math"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/harmonica"

	"github.com/taigrr/softrast/pkg/math3d"
	"github.com/taigrr/softrast/pkg/models"
	"github.com/taigrr/softrast/pkg/render"
)

// loadMesh loads the model by file extension, rescales and centers it
// when size > 0, and recomputes its bounds.
func loadMesh(path string, size float64) (*models.Mesh, error) {
	var (
		mesh *models.Mesh
		err  error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".glb", ".gltf":
		mesh, err = models.LoadGLB(path)
	case ".obj":
		mesh, err = models.LoadOBJ(path)
	default:
		return nil, fmt.Errorf("unsupported format: %s (use .obj, .gltf or .glb)", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}

	mesh.CalculateBounds()
	if size > 0 {
		s := mesh.Size()
		if maxDim := math.Max(s.X, math.Max(s.Y, s.Z)); maxDim > 0 {
			scale := size / maxDim
			mesh.Transform(math3d.Scale(math3d.V3(scale, scale, scale)).
				Mul(math3d.Translate(mesh.Center().Negate())))
		}
	}
	return mesh, nil
}

// loadMaterial builds the material samplers. Explicit texture files win
// over textures embedded in the model. A texture that fails to load is
// logged and left to its neutral default.
func loadMaterial(textures TextureConfig, mesh *models.Mesh) render.Material {
	var mat render.Material

	if m := mesh.GetMaterial(0); m != nil {
		if m.BaseMap != nil {
			mat.Diffuse = render.TextureFromImage(m.BaseMap)
		} else {
			c := m.BaseColor
			mat.Diffuse = render.SolidColor{R: c[0], G: c[1], B: c[2]}
		}
		if m.NormalMap != nil {
			mat.Normal = render.TextureFromImage(m.NormalMap)
		}
	}

	load := func(slot *render.Sampler, kind, path string) {
		if path == "" {
			return
		}
		tex, err := render.LoadTexture(path)
		if err != nil {
			render.Logger().Warn("texture not loaded", "map", kind, "err", err)
			return
		}
		*slot = tex
	}
	load(&mat.Diffuse, "diffuse", textures.Diffuse)
	load(&mat.Normal, "normal", textures.Normal)
	load(&mat.Specular, "specular", textures.Specular)
	load(&mat.Gloss, "gloss", textures.Gloss)

	return mat
}

// imageSize formats an image's dimensions for logging.
func imageSize(img image.Image) string {
	if img == nil {
		return "none"
	}
	b := img.Bounds()
	return fmt.Sprintf("%dx%d", b.Dx(), b.Dy())
}

// Spinner rotates the model about Y. Its angular velocity follows a
// critically damped harmonica spring toward the target speed, so toggling
// rotation eases in and out.
type Spinner struct {
	Angle    float64 // Radians
	Velocity float64 // Radians per second
	accel    float64
	speed    float64
	on       bool
	spring   harmonica.Spring
}

// NewSpinner creates a spinner stepping at fps with the given speed in
// degrees per second.
func NewSpinner(fps int, degreesPerSecond float64, on bool) *Spinner {
	s := &Spinner{
		speed:  degreesPerSecond * math.Pi / 180,
		on:     on,
		spring: harmonica.NewSpring(harmonica.FPS(fps), 4.0, 1.0),
	}
	if on {
		s.Velocity = s.speed
	}
	return s
}

// Toggle starts or stops the rotation and reports whether it is on.
func (s *Spinner) Toggle() bool {
	s.on = !s.on
	return s.on
}

// Update advances the spring by one step and the angle by dt seconds.
func (s *Spinner) Update(dt float64) float64 {
	target := 0.0
	if s.on {
		target = s.speed
	}
	s.Velocity, s.accel = s.spring.Update(s.Velocity, s.accel, target)
	s.Angle = math.Mod(s.Angle+s.Velocity*dt, 2*math.Pi)
	return s.Angle
}
