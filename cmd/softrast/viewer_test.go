package main

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/image/bmp"

	"github.com/taigrr/softrast/pkg/render"
)

// quadOBJ is a unit quad facing +Z, wound counter-clockwise.
const quadOBJ = `# quad
v -1 -1 0
v 1 -1 0
v 1 1 0
v -1 1 0
vt 0 0
vt 1 0
vt 1 1
vt 0 1
vn 0 0 1
f 1/1/1 2/2/1 3/3/1 4/4/1
`

func testConfig(t *testing.T) Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Model = writeFile(t, "quad.obj", quadOBJ)
	cfg.Width, cfg.Height = 64, 48
	return cfg
}

func TestLoadMeshRescales(t *testing.T) {
	mesh, err := loadMesh(writeFile(t, "quad.obj", quadOBJ), 20)
	if err != nil {
		t.Fatalf("loadMesh: %v", err)
	}
	size := mesh.Size()
	if math.Abs(size.X-20) > 1e-9 || math.Abs(size.Y-20) > 1e-9 {
		t.Errorf("size = %v, want 20x20", size)
	}
	if c := mesh.Center(); c.Len() > 1e-9 {
		t.Errorf("center = %v, want origin", c)
	}
	if mesh.TriangleCount() != 2 {
		t.Errorf("TriangleCount = %d, want 2", mesh.TriangleCount())
	}
}

func TestLoadMeshErrors(t *testing.T) {
	if _, err := loadMesh("model.fbx", 0); err == nil {
		t.Error("expected an error for an unsupported extension")
	}
	if _, err := loadMesh(filepath.Join(t.TempDir(), "missing.obj"), 0); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestLoadMaterialMissingTextureFallsBack(t *testing.T) {
	mesh, err := loadMesh(writeFile(t, "quad.obj", quadOBJ), 0)
	if err != nil {
		t.Fatal(err)
	}
	mat := loadMaterial(TextureConfig{Normal: filepath.Join(t.TempDir(), "missing.png")}, mesh)
	if mat.Normal != nil {
		t.Error("a missing normal map should leave the neutral default")
	}
}

func TestRunSnapshot(t *testing.T) {
	cfg := testConfig(t)
	cfg.Snapshot = filepath.Join(t.TempDir(), "frame.bmp")

	mesh, err := loadMesh(cfg.Model, cfg.Mesh.Size)
	if err != nil {
		t.Fatal(err)
	}
	if err := runSnapshot(cfg, mesh, loadMaterial(cfg.Textures, mesh)); err != nil {
		t.Fatalf("runSnapshot: %v", err)
	}

	f, err := os.Open(cfg.Snapshot)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	img, err := bmp.Decode(f)
	if err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 64 || b.Dy() != 48 {
		t.Errorf("snapshot bounds = %v, want 64x48", b)
	}
}

func TestViewerDrawsModel(t *testing.T) {
	cfg := testConfig(t)
	cfg.Renderer.Cull = "none"

	mesh, err := loadMesh(cfg.Model, cfg.Mesh.Size)
	if err != nil {
		t.Fatal(err)
	}
	v, err := newViewer(cfg, mesh, loadMaterial(cfg.Textures, mesh), cfg.Width, cfg.Height)
	if err != nil {
		t.Fatal(err)
	}
	if err := v.renderStill(); err != nil {
		t.Fatal(err)
	}

	stats := v.renderer.LastFrameStats()
	if stats.MeshCulled || stats.Triangles != 2 {
		t.Errorf("stats = %+v", stats)
	}
	if got, clear := v.renderer.Frame().GetPixel(32, 24), render.Grey(0.39).ToRGBA(); got == clear {
		t.Error("center pixel shows the background, want the model")
	}
}

func TestViewerActions(t *testing.T) {
	cfg := testConfig(t)
	mesh, err := loadMesh(cfg.Model, cfg.Mesh.Size)
	if err != nil {
		t.Fatal(err)
	}
	v, err := newViewer(cfg, mesh, render.Material{}, cfg.Width, cfg.Height)
	if err != nil {
		t.Fatal(err)
	}
	r := v.renderer

	steps := []struct {
		action action
		check  func() bool
	}{
		{actionCycleLighting, func() bool { return r.LightingMode() == render.LightingObservedArea }},
		{actionToggleNormalMap, func() bool { return !r.NormalMap() }},
		{actionToggleDepthView, func() bool { return r.DepthView() }},
		{actionToggleBoundingBox, func() bool { return r.BoundingBoxView() }},
		{actionCycleCull, func() bool { return r.CullMode() == render.CullFront }},
		{actionToggleBackground, func() bool { return r.UniformBackground() }},
		{actionToggleFPS, func() bool { return v.showFPS }},
		{actionToggleRotation, func() bool { return !v.spinner.on }},
		{actionCycleThreads, func() bool {
			m, ok := r.PendingThreadMode()
			return ok && m == render.ThreadTaskParallel
		}},
	}
	for _, s := range steps {
		quit, err := v.apply(s.action)
		if quit || err != nil {
			t.Fatalf("action %d: quit=%v err=%v", s.action, quit, err)
		}
		if !s.check() {
			t.Errorf("action %d had no effect", s.action)
		}
	}

	if quit, _ := v.apply(actionQuit); !quit {
		t.Error("actionQuit did not quit")
	}
}

func TestViewerResizeKeepsToggles(t *testing.T) {
	cfg := testConfig(t)
	mesh, err := loadMesh(cfg.Model, cfg.Mesh.Size)
	if err != nil {
		t.Fatal(err)
	}
	v, err := newViewer(cfg, mesh, render.Material{}, cfg.Width, cfg.Height)
	if err != nil {
		t.Fatal(err)
	}
	v.renderer.CycleCullMode()
	v.renderer.ToggleDepthView()
	v.renderer.CycleThreadMode()

	if err := v.resize(32, 32); err != nil {
		t.Fatal(err)
	}
	r := v.renderer
	if r.Width() != 32 || r.Height() != 32 {
		t.Errorf("size = %dx%d", r.Width(), r.Height())
	}
	if r.CullMode() != render.CullFront || !r.DepthView() || r.ThreadMode() != render.ThreadTaskParallel {
		t.Errorf("toggles lost: cull=%v depth=%v threads=%v", r.CullMode(), r.DepthView(), r.ThreadMode())
	}
	if err := v.resize(0, 10); err == nil {
		t.Error("expected an error for an empty frame")
	}
}

func TestSpinner(t *testing.T) {
	const fps = 30
	s := NewSpinner(fps, 45, true)

	for range 2 * fps {
		s.Update(1.0 / fps)
	}
	if want := math.Pi / 4; math.Abs(s.Velocity-want) > 1e-6 {
		t.Errorf("velocity = %v, want %v", s.Velocity, want)
	}
	if s.Angle <= 0 {
		t.Errorf("angle = %v, want positive", s.Angle)
	}

	s.Toggle()
	for range 5 * fps {
		s.Update(1.0 / fps)
	}
	if math.Abs(s.Velocity) > 1e-3 {
		t.Errorf("velocity after stop = %v, want ~0", s.Velocity)
	}
}
