package main

import (
	"fmt"
	"math"
	"time"

	uv "github.com/charmbracelet/ultraviolet"

	"github.com/taigrr/softrast/pkg/models"
	"github.com/taigrr/softrast/pkg/render"
)

// action is a viewer command bound to a key.
type action int

const (
	actionNone action = iota
	actionQuit
	actionToggleRotation
	actionCycleLighting
	actionToggleNormalMap
	actionToggleDepthView
	actionToggleBoundingBox
	actionCycleCull
	actionToggleBackground
	actionToggleFPS
	actionCycleThreads
	actionSnapshot
	actionMoveForward
	actionMoveBack
	actionMoveLeft
	actionMoveRight
	actionLookUp
	actionLookDown
	actionLookLeft
	actionLookRight
)

// Camera steps per key press
const (
	moveStep = 2.0
	lookStep = math.Pi / 90
)

// actionFor maps a key press to its action.
func actionFor(ev uv.KeyPressEvent) action {
	switch {
	case ev.MatchString("escape", "ctrl+c"):
		return actionQuit
	case ev.MatchString("f2"):
		return actionToggleRotation
	case ev.MatchString("f5"):
		return actionCycleLighting
	case ev.MatchString("f6"):
		return actionToggleNormalMap
	case ev.MatchString("f7"):
		return actionToggleDepthView
	case ev.MatchString("f8"):
		return actionToggleBoundingBox
	case ev.MatchString("f9"):
		return actionCycleCull
	case ev.MatchString("f10"):
		return actionToggleBackground
	case ev.MatchString("f11"):
		return actionToggleFPS
	case ev.MatchString("0"):
		return actionCycleThreads
	case ev.MatchString("p"):
		return actionSnapshot
	case ev.MatchString("w"):
		return actionMoveForward
	case ev.MatchString("s"):
		return actionMoveBack
	case ev.MatchString("a"):
		return actionMoveLeft
	case ev.MatchString("d"):
		return actionMoveRight
	case ev.MatchString("up"):
		return actionLookUp
	case ev.MatchString("down"):
		return actionLookDown
	case ev.MatchString("left"):
		return actionLookLeft
	case ev.MatchString("right"):
		return actionLookRight
	}
	return actionNone
}

// viewer owns one renderer and the scene it draws.
type viewer struct {
	cfg      Config
	mesh     *models.Mesh
	material render.Material
	camera   *render.Camera
	renderer *render.SoftwareRenderer
	spinner  *Spinner

	showFPS   bool
	fpsFrames int
	fpsTime   time.Time
}

func newViewer(cfg Config, mesh *models.Mesh, mat render.Material, width, height int) (*viewer, error) {
	v := &viewer{
		cfg:      cfg,
		mesh:     mesh,
		material: mat,
		spinner:  NewSpinner(cfg.FPS, cfg.Mesh.Spin, cfg.Mesh.Rotate),
		fpsTime:  time.Now(),
	}
	v.spinner.Angle = cfg.Mesh.Yaw * math.Pi / 180

	opts, err := cfg.RendererOptions()
	if err != nil {
		return nil, err
	}
	if err := v.newRenderer(width, height, opts); err != nil {
		return nil, err
	}
	v.camera = cfg.NewCamera(width, height)
	if cfg.Renderer.DepthView {
		v.renderer.ToggleDepthView()
	}
	if cfg.Renderer.BoundingBoxView {
		v.renderer.ToggleBoundingBoxView()
	}
	return v, nil
}

func (v *viewer) newRenderer(width, height int, opts []render.Option) error {
	r, err := render.NewSoftwareRenderer(width, height, opts...)
	if err != nil {
		return err
	}
	v.renderer = r
	return nil
}

// resize replaces the renderer with one of the new size, keeping every
// toggle.
func (v *viewer) resize(width, height int) error {
	old := v.renderer
	if old.Width() == width && old.Height() == height {
		return nil
	}

	threads := old.ThreadMode()
	if m, ok := old.PendingThreadMode(); ok {
		threads = m
	}
	opts := []render.Option{
		render.WithCullMode(old.CullMode()),
		render.WithLightingMode(old.LightingMode()),
		render.WithThreadMode(threads),
		render.WithNormalMap(old.NormalMap()),
		render.WithUniformBackground(old.UniformBackground()),
		render.WithWorkers(v.cfg.Renderer.Workers),
	}
	if err := v.newRenderer(width, height, opts); err != nil {
		return fmt.Errorf("resize: %w", err)
	}
	v.camera.SetAspectRatio(float64(width) / float64(height))
	if old.DepthView() {
		v.renderer.ToggleDepthView()
	}
	if old.BoundingBoxView() {
		v.renderer.ToggleBoundingBoxView()
	}
	return nil
}

// step advances the rotation by dt seconds and renders one frame.
func (v *viewer) step(dt float64) error {
	v.mesh.Place(vec3(v.cfg.Mesh.Position), v.spinner.Update(dt))
	if err := v.renderer.Render(v.scene()); err != nil {
		return err
	}

	if v.showFPS {
		v.fpsFrames++
		if elapsed := time.Since(v.fpsTime); elapsed >= time.Second {
			stats := v.renderer.LastFrameStats()
			render.Logger().Info("fps",
				"fps", float64(v.fpsFrames)/elapsed.Seconds(),
				"frame", stats.Duration,
				"triangles", stats.Triangles)
			v.fpsFrames = 0
			v.fpsTime = time.Now()
		}
	}
	return nil
}

// renderStill renders one frame at the configured yaw without advancing
// the rotation.
func (v *viewer) renderStill() error {
	v.mesh.Place(vec3(v.cfg.Mesh.Position), v.spinner.Angle)
	return v.renderer.Render(v.scene())
}

func (v *viewer) scene() render.Scene {
	return render.Scene{Mesh: v.mesh, Camera: v.camera, Material: v.material}
}

// apply runs an action and reports whether the viewer should quit.
func (v *viewer) apply(a action) (quit bool, err error) {
	r := v.renderer
	switch a {
	case actionQuit:
		return true, nil
	case actionToggleRotation:
		render.Logger().Info("rotation", "enabled", v.spinner.Toggle())
	case actionCycleLighting:
		r.CycleLightingMode()
	case actionToggleNormalMap:
		r.ToggleNormalMap()
	case actionToggleDepthView:
		r.ToggleDepthView()
	case actionToggleBoundingBox:
		r.ToggleBoundingBoxView()
	case actionCycleCull:
		r.CycleCullMode()
	case actionToggleBackground:
		r.ToggleUniformBackground()
	case actionToggleFPS:
		v.showFPS = !v.showFPS
		v.fpsFrames = 0
		v.fpsTime = time.Now()
		render.Logger().Info("fps logging", "enabled", v.showFPS)
	case actionCycleThreads:
		r.CycleThreadMode()
	case actionSnapshot:
		path := fmt.Sprintf("softrast-%s.bmp", time.Now().Format("20060102-150405"))
		if err := r.Frame().SaveSnapshot(path); err != nil {
			return false, err
		}
		render.Logger().Info("snapshot saved", "path", path)
	case actionMoveForward:
		v.camera.MoveForward(moveStep)
	case actionMoveBack:
		v.camera.MoveForward(-moveStep)
	case actionMoveLeft:
		v.camera.MoveRight(-moveStep)
	case actionMoveRight:
		v.camera.MoveRight(moveStep)
	case actionLookUp:
		v.camera.Rotate(lookStep, 0)
	case actionLookDown:
		v.camera.Rotate(-lookStep, 0)
	case actionLookLeft:
		v.camera.Rotate(0, lookStep)
	case actionLookRight:
		v.camera.Rotate(0, -lookStep)
	}
	return false, nil
}
