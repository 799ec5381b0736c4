// Package render implements a CPU triangle rasterizer: vertex transform,
// scan conversion with barycentric weights, depth testing,
// perspective-correct attribute interpolation and per-pixel Lambert/Phong
// shading, dispatched over triangles in one of three threading modes.
package render

import (
	"errors"
	"fmt"
	"math"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/taigrr/softrast/pkg/math3d"
	"github.com/taigrr/softrast/pkg/models"
)

var (
	// ErrInvalidSize is returned when a renderer is created with a
	// non-positive or overflowing frame size.
	ErrInvalidSize = errors.New("invalid frame size")
	// ErrNoBuffers is returned by Render on a renderer that was not
	// created with NewSoftwareRenderer.
	ErrNoBuffers = errors.New("renderer has no buffers")
)

// Mesh is the geometry the renderer draws. *models.Mesh implements it.
type Mesh interface {
	VertexData() []models.Vertex
	IndexData() []uint32
	PrimitiveTopology() models.Topology
	WorldMatrix() math3d.Mat4
}

// Material holds the texture samplers used during shading. Nil samplers
// fall back to neutral values: white diffuse, flat normal, no specular and
// no gloss.
type Material struct {
	Diffuse  Sampler
	Normal   Sampler
	Specular Sampler
	Gloss    Sampler
}

var (
	neutralDiffuse  = SolidColor{1, 1, 1}
	neutralNormal   = SolidColor{0.5, 0.5, 1}
	neutralSpecular = SolidColor{}
	neutralGloss    = SolidColor{}
)

func (m Material) withDefaults() Material {
	if m.Diffuse == nil {
		m.Diffuse = neutralDiffuse
	}
	if m.Normal == nil {
		m.Normal = neutralNormal
	}
	if m.Specular == nil {
		m.Specular = neutralSpecular
	}
	if m.Gloss == nil {
		m.Gloss = neutralGloss
	}
	return m
}

// Scene is everything one frame needs. A nil Mesh or Camera renders only
// the cleared background.
type Scene struct {
	Mesh     Mesh
	Camera   CameraSource
	Material Material
}

// Renderer draws a scene into its own buffers.
type Renderer interface {
	Render(scene Scene) error
}

// LightingMode selects which lighting terms are shown.
type LightingMode int

const (
	LightingCombined LightingMode = iota
	LightingObservedArea
	LightingDiffuse
	LightingSpecular
)

func (m LightingMode) String() string {
	switch m {
	case LightingCombined:
		return "combined"
	case LightingObservedArea:
		return "observed-area"
	case LightingDiffuse:
		return "diffuse"
	case LightingSpecular:
		return "specular"
	default:
		return fmt.Sprintf("LightingMode(%d)", int(m))
	}
}

// ThreadMode selects how triangles are distributed over goroutines.
type ThreadMode int

const (
	ThreadSynchronous ThreadMode = iota
	ThreadTaskParallel
	ThreadDataParallel
)

func (m ThreadMode) String() string {
	switch m {
	case ThreadSynchronous:
		return "synchronous"
	case ThreadTaskParallel:
		return "task-parallel"
	case ThreadDataParallel:
		return "data-parallel"
	default:
		return fmt.Sprintf("ThreadMode(%d)", int(m))
	}
}

// CullMode selects which triangle winding is rasterized.
type CullMode int

const (
	CullBack CullMode = iota
	CullFront
	CullNone
)

func (m CullMode) String() string {
	switch m {
	case CullBack:
		return "back"
	case CullFront:
		return "front"
	case CullNone:
		return "none"
	default:
		return fmt.Sprintf("CullMode(%d)", int(m))
	}
}

// ParseLightingMode parses the String form of a LightingMode.
func ParseLightingMode(s string) (LightingMode, error) {
	for m := LightingCombined; m <= LightingSpecular; m++ {
		if m.String() == s {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown lighting mode %q", s)
}

// ParseThreadMode parses the String form of a ThreadMode.
func ParseThreadMode(s string) (ThreadMode, error) {
	for m := ThreadSynchronous; m <= ThreadDataParallel; m++ {
		if m.String() == s {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown thread mode %q", s)
}

// ParseCullMode parses the String form of a CullMode.
func ParseCullMode(s string) (CullMode, error) {
	for m := CullBack; m <= CullNone; m++ {
		if m.String() == s {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown cull mode %q", s)
}

// Options configures a SoftwareRenderer.
type Options struct {
	CullMode          CullMode
	LightingMode      LightingMode
	ThreadMode        ThreadMode
	NormalMap         bool
	UniformBackground bool
	Ambient           ColorRGB
	// Workers is the goroutine count for the parallel modes.
	// Zero means runtime.NumCPU for task-parallel and GOMAXPROCS for
	// data-parallel dispatch.
	Workers int
}

// DefaultOptions returns back-face culling, combined lighting, normal
// mapping on and synchronous dispatch.
func DefaultOptions() Options {
	return Options{
		CullMode:     CullBack,
		LightingMode: LightingCombined,
		ThreadMode:   ThreadSynchronous,
		NormalMap:    true,
		Ambient:      Grey(defaultAmbient),
	}
}

// Option modifies Options.
type Option func(*Options)

// WithCullMode sets the initial cull mode.
func WithCullMode(m CullMode) Option { return func(o *Options) { o.CullMode = m } }

// WithLightingMode sets the initial lighting mode.
func WithLightingMode(m LightingMode) Option { return func(o *Options) { o.LightingMode = m } }

// WithThreadMode sets the initial thread mode.
func WithThreadMode(m ThreadMode) Option { return func(o *Options) { o.ThreadMode = m } }

// WithNormalMap enables or disables normal mapping.
func WithNormalMap(on bool) Option { return func(o *Options) { o.NormalMap = on } }

// WithUniformBackground selects the darker uniform clear color.
func WithUniformBackground(on bool) Option { return func(o *Options) { o.UniformBackground = on } }

// WithAmbient overrides the ambient color.
func WithAmbient(c ColorRGB) Option { return func(o *Options) { o.Ambient = c } }

// WithWorkers sets the goroutine count of the parallel thread modes.
func WithWorkers(n int) Option { return func(o *Options) { o.Workers = n } }

// FrameStats describes the last rendered frame.
type FrameStats struct {
	Triangles  int           // Triangles dispatched
	Rejected   int           // Triangles dropped as degenerate or outside the clip volume
	MeshCulled bool          // The whole mesh was outside the view frustum
	Duration   time.Duration // Wall time of Render
	ThreadMode ThreadMode    // Mode the frame was dispatched with
}

const (
	clearGrey        = 0.39
	clearGreyUniform = 0.1
)

// SoftwareRenderer rasterizes on the CPU. It owns a depth buffer and a
// framebuffer that are allocated once and reset in place each frame.
//
// Toggles and Render must be called from the same goroutine.
// RequestThreadMode and CycleThreadMode may be called from any goroutine;
// the change applies after the current frame.
type SoftwareRenderer struct {
	width, height int
	fb            *Framebuffer
	depth         []float64

	cullMode          CullMode
	lightingMode      LightingMode
	threadMode        ThreadMode
	normalMap         bool
	showDepth         bool
	showBoundingBox   bool
	uniformBackground bool
	ambient           ColorRGB
	workers           int

	mu         sync.Mutex
	pending    ThreadMode
	hasPending bool

	// Per-frame scratch, reused across frames
	vertices []VertexOut
	raster   []math3d.Vec2
	rejected atomic.Int64

	stats   FrameStats
	culling CullingStats
}

var _ Renderer = (*SoftwareRenderer)(nil)

// NewSoftwareRenderer allocates a renderer for a width x height frame.
func NewSoftwareRenderer(width, height int, opts ...Option) (*SoftwareRenderer, error) {
	if width <= 0 || height <= 0 || width > math.MaxInt32/height {
		return nil, fmt.Errorf("new renderer %dx%d: %w", width, height, ErrInvalidSize)
	}

	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	r := &SoftwareRenderer{
		width:             width,
		height:            height,
		fb:                NewFramebuffer(width, height),
		depth:             make([]float64, width*height),
		cullMode:          o.CullMode,
		lightingMode:      o.LightingMode,
		threadMode:        o.ThreadMode,
		normalMap:         o.NormalMap,
		uniformBackground: o.UniformBackground,
		ambient:           o.Ambient,
		workers:           o.Workers,
	}

	Logger().Info("software renderer created",
		"width", width, "height", height,
		"cull", r.cullMode, "lighting", r.lightingMode, "threads", r.threadMode)
	return r, nil
}

// Width returns the frame width in pixels.
func (r *SoftwareRenderer) Width() int { return r.width }

// Height returns the frame height in pixels.
func (r *SoftwareRenderer) Height() int { return r.height }

// Frame returns the framebuffer holding the last rendered frame.
func (r *SoftwareRenderer) Frame() *Framebuffer { return r.fb }

// LastFrameStats returns statistics of the last Render call.
func (r *SoftwareRenderer) LastFrameStats() FrameStats { return r.stats }

// CullingStats returns the accumulated mesh frustum test counters.
func (r *SoftwareRenderer) CullingStats() CullingStats { return r.culling }

// ResetCullingStats zeroes the mesh frustum test counters.
func (r *SoftwareRenderer) ResetCullingStats() { r.culling = CullingStats{} }

// Render draws one frame: reset depth, clear color, transform vertices,
// then dispatch every triangle through rasterization and shading.
func (r *SoftwareRenderer) Render(scene Scene) error {
	if r == nil || r.fb == nil || len(r.depth) == 0 {
		return ErrNoBuffers
	}

	start := time.Now()
	r.resetDepth()
	r.fb.Clear(r.clearColor())
	r.rejected.Store(0)

	stats := FrameStats{ThreadMode: r.threadMode}

	if scene.Mesh != nil && scene.Camera != nil {
		view := scene.Camera.ViewMatrix()
		proj := scene.Camera.ProjectionMatrix()

		if meshVisible(scene.Mesh, frustumOf(scene.Camera), &r.culling) {
			r.vertices = TransformVertices(r.vertices, scene.Mesh.VertexData(), scene.Mesh.WorldMatrix(), view, proj)
			r.raster = RasterCoordinates(r.raster, r.vertices, r.width, r.height)

			f := &frame{
				vertices: r.vertices,
				raster:   r.raster,
				indices:  scene.Mesh.IndexData(),
				topology: scene.Mesh.PrimitiveTopology(),
				material: scene.Material.withDefaults(),
			}
			stats.Triangles = r.dispatch(f)
		} else {
			stats.MeshCulled = true
		}
	}

	stats.Rejected = int(r.rejected.Load())
	r.applyPendingThreadMode()
	stats.Duration = time.Since(start)
	r.stats = stats

	Logger().Debug("frame rendered",
		"triangles", stats.Triangles,
		"rejected", stats.Rejected,
		"culled", stats.MeshCulled,
		"duration", stats.Duration,
		"threads", stats.ThreadMode)
	return nil
}

func (r *SoftwareRenderer) clearColor() Color {
	if r.uniformBackground {
		return Grey(clearGreyUniform).ToRGBA()
	}
	return Grey(clearGrey).ToRGBA()
}

// CullMode returns the active cull mode.
func (r *SoftwareRenderer) CullMode() CullMode { return r.cullMode }

// SetCullMode sets the cull mode.
func (r *SoftwareRenderer) SetCullMode(m CullMode) {
	r.cullMode = m
	Logger().Info("cull mode", "mode", m)
}

// CycleCullMode switches Back, Front, None in turn.
func (r *SoftwareRenderer) CycleCullMode() CullMode {
	r.SetCullMode((r.cullMode + 1) % (CullNone + 1))
	return r.cullMode
}

// LightingMode returns the active lighting mode.
func (r *SoftwareRenderer) LightingMode() LightingMode { return r.lightingMode }

// SetLightingMode sets the lighting mode.
func (r *SoftwareRenderer) SetLightingMode(m LightingMode) {
	r.lightingMode = m
	Logger().Info("lighting mode", "mode", m)
}

// CycleLightingMode switches Combined, ObservedArea, Diffuse, Specular in turn.
func (r *SoftwareRenderer) CycleLightingMode() LightingMode {
	r.SetLightingMode((r.lightingMode + 1) % (LightingSpecular + 1))
	return r.lightingMode
}

// NormalMap reports whether normal mapping is enabled.
func (r *SoftwareRenderer) NormalMap() bool { return r.normalMap }

// ToggleNormalMap flips normal mapping.
func (r *SoftwareRenderer) ToggleNormalMap() bool {
	r.normalMap = !r.normalMap
	Logger().Info("normal map", "enabled", r.normalMap)
	return r.normalMap
}

// DepthView reports whether the depth buffer visualization is enabled.
func (r *SoftwareRenderer) DepthView() bool { return r.showDepth }

// ToggleDepthView flips the depth buffer visualization.
func (r *SoftwareRenderer) ToggleDepthView() bool {
	r.showDepth = !r.showDepth
	Logger().Info("depth buffer view", "enabled", r.showDepth)
	return r.showDepth
}

// BoundingBoxView reports whether triangle bounding boxes are drawn.
func (r *SoftwareRenderer) BoundingBoxView() bool { return r.showBoundingBox }

// ToggleBoundingBoxView flips the bounding box visualization.
func (r *SoftwareRenderer) ToggleBoundingBoxView() bool {
	r.showBoundingBox = !r.showBoundingBox
	Logger().Info("bounding box view", "enabled", r.showBoundingBox)
	return r.showBoundingBox
}

// UniformBackground reports whether the darker clear color is used.
func (r *SoftwareRenderer) UniformBackground() bool { return r.uniformBackground }

// ToggleUniformBackground flips between the two clear colors.
func (r *SoftwareRenderer) ToggleUniformBackground() bool {
	r.uniformBackground = !r.uniformBackground
	Logger().Info("uniform background", "enabled", r.uniformBackground)
	return r.uniformBackground
}

// ThreadMode returns the thread mode used for the next frame's dispatch,
// not counting a pending request.
func (r *SoftwareRenderer) ThreadMode() ThreadMode { return r.threadMode }

// PendingThreadMode returns a requested thread mode that has not been
// applied yet.
func (r *SoftwareRenderer) PendingThreadMode() (ThreadMode, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pending, r.hasPending
}

// RequestThreadMode asks for a thread mode change. It takes effect once
// the current or next frame has finished dispatching.
func (r *SoftwareRenderer) RequestThreadMode(m ThreadMode) {
	r.mu.Lock()
	r.pending = m
	r.hasPending = true
	r.mu.Unlock()
	Logger().Info("thread mode requested", "mode", m)
}

// CycleThreadMode requests the mode after the active (or already pending)
// one: Synchronous, TaskParallel, DataParallel in turn.
func (r *SoftwareRenderer) CycleThreadMode() ThreadMode {
	r.mu.Lock()
	next := r.threadMode
	if r.hasPending {
		next = r.pending
	}
	next = (next + 1) % (ThreadDataParallel + 1)
	r.pending = next
	r.hasPending = true
	r.mu.Unlock()

	Logger().Info("thread mode requested", "mode", next)
	return next
}

// applyPendingThreadMode installs a requested thread mode. Called only
// after dispatch has completed.
func (r *SoftwareRenderer) applyPendingThreadMode() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.hasPending {
		return
	}
	if r.pending != r.threadMode {
		Logger().Info("thread mode", "mode", r.pending)
	}
	r.threadMode = r.pending
	r.hasPending = false
}

// workerCount returns the goroutine count for a parallel dispatch.
func (r *SoftwareRenderer) workerCount(mode ThreadMode) int {
	if r.workers > 0 {
		return r.workers
	}
	if mode == ThreadDataParallel {
		return runtime.GOMAXPROCS(0)
	}
	return runtime.NumCPU()
}
