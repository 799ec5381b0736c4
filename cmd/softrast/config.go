package main

import (
	"errors"
	"flag"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/taigrr/softrast/pkg/math3d"
	"github.com/taigrr/softrast/pkg/render"
)

// Config is the scene and viewer configuration. It is read from an
// optional YAML file and then overridden by command-line flags.
type Config struct {
	Model    string         `yaml:"model"`
	Textures TextureConfig  `yaml:"textures"`
	Width    int            `yaml:"width"`
	Height   int            `yaml:"height"`
	Camera   CameraConfig   `yaml:"camera"`
	Mesh     MeshConfig     `yaml:"mesh"`
	Renderer RendererConfig `yaml:"renderer"`
	Snapshot string         `yaml:"snapshot"` // Headless: render one frame to this file and exit
	FPS      int            `yaml:"fps"`
	Verbose  bool           `yaml:"verbose"`
	LogFile  string         `yaml:"log_file"`
}

// TextureConfig names image files for the material samplers. Empty paths
// fall back to the model's embedded textures or neutral values.
type TextureConfig struct {
	Diffuse  string `yaml:"diffuse"`
	Normal   string `yaml:"normal"`
	Specular string `yaml:"specular"`
	Gloss    string `yaml:"gloss"`
}

// CameraConfig places the camera. FOV is in degrees.
type CameraConfig struct {
	Position [3]float64 `yaml:"position"`
	Target   [3]float64 `yaml:"target"`
	FOV      float64    `yaml:"fov"`
	Near     float64    `yaml:"near"`
	Far      float64    `yaml:"far"`
}

// MeshConfig places the model in the world.
type MeshConfig struct {
	Position [3]float64 `yaml:"position"`
	Yaw      float64    `yaml:"yaw"`  // Initial rotation in degrees
	Spin     float64    `yaml:"spin"` // Degrees per second about Y
	Rotate   bool       `yaml:"rotate"`
	// Size rescales the model so its largest extent equals Size. Zero keeps
	// the model's own units.
	Size float64 `yaml:"size"`
}

// RendererConfig holds the initial renderer toggles.
type RendererConfig struct {
	Cull              string `yaml:"cull"`
	Lighting          string `yaml:"lighting"`
	Threads           string `yaml:"threads"`
	Workers           int    `yaml:"workers"`
	NormalMap         bool   `yaml:"normal_map"`
	DepthView         bool   `yaml:"depth_view"`
	BoundingBoxView   bool   `yaml:"bounding_box_view"`
	UniformBackground bool   `yaml:"uniform_background"`
}

// DefaultConfig returns a 640x480 scene with the camera at the origin
// looking at a model placed 50 units down +Z and spinning at 45°/s.
func DefaultConfig() Config {
	return Config{
		Width:  640,
		Height: 480,
		Camera: CameraConfig{
			Target: [3]float64{0, 0, 50},
			FOV:    45,
			Near:   0.1,
			Far:    100,
		},
		Mesh: MeshConfig{
			Position: [3]float64{0, 0, 50},
			Spin:     45,
			Rotate:   true,
			Size:     20,
		},
		Renderer: RendererConfig{
			Cull:      render.CullBack.String(),
			Lighting:  render.LightingCombined.String(),
			Threads:   render.ThreadSynchronous.String(),
			NormalMap: true,
		},
		FPS: 30,
	}
}

// LoadConfig reads a YAML file over the defaults. Keys missing from the
// file keep their default values.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

var errNoModel = errors.New("no model given")

// Validate checks sizes and mode names.
func (c Config) Validate() error {
	if c.Model == "" {
		return errNoModel
	}
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("invalid frame size %dx%d", c.Width, c.Height)
	}
	if c.FPS <= 0 {
		return fmt.Errorf("invalid fps %d", c.FPS)
	}
	if c.Camera.FOV <= 0 || c.Camera.FOV >= 180 {
		return fmt.Errorf("invalid field of view %v", c.Camera.FOV)
	}
	if c.Camera.Near <= 0 || c.Camera.Far <= c.Camera.Near {
		return fmt.Errorf("invalid clip planes %v..%v", c.Camera.Near, c.Camera.Far)
	}
	_, err := c.RendererOptions()
	return err
}

// RendererOptions converts the renderer section to render options.
func (c Config) RendererOptions() ([]render.Option, error) {
	cull, err := render.ParseCullMode(c.Renderer.Cull)
	if err != nil {
		return nil, err
	}
	lighting, err := render.ParseLightingMode(c.Renderer.Lighting)
	if err != nil {
		return nil, err
	}
	threads, err := render.ParseThreadMode(c.Renderer.Threads)
	if err != nil {
		return nil, err
	}

	return []render.Option{
		render.WithCullMode(cull),
		render.WithLightingMode(lighting),
		render.WithThreadMode(threads),
		render.WithNormalMap(c.Renderer.NormalMap),
		render.WithUniformBackground(c.Renderer.UniformBackground),
		render.WithWorkers(c.Renderer.Workers),
	}, nil
}

// NewCamera builds the configured camera for a width x height frame.
func (c Config) NewCamera(width, height int) *render.Camera {
	cam := render.NewCamera()
	cam.SetFOV(c.Camera.FOV * math.Pi / 180)
	cam.SetAspectRatio(float64(width) / float64(height))
	cam.SetClipPlanes(c.Camera.Near, c.Camera.Far)
	cam.SetPosition(vec3(c.Camera.Position))
	cam.LookAt(vec3(c.Camera.Target))
	return cam
}

func vec3(a [3]float64) math3d.Vec3 {
	return math3d.V3(a[0], a[1], a[2])
}

// bindFlags registers the command-line flags on fs, writing into cfg.
func bindFlags(fs *flag.FlagSet, cfg *Config, configPath *string) {
	fs.StringVar(configPath, "config", "", "Path to a YAML scene file")
	fs.StringVar(&cfg.Textures.Diffuse, "diffuse", cfg.Textures.Diffuse, "Diffuse texture (PNG/JPG)")
	fs.StringVar(&cfg.Textures.Normal, "normal", cfg.Textures.Normal, "Tangent-space normal map")
	fs.StringVar(&cfg.Textures.Specular, "specular", cfg.Textures.Specular, "Specular map")
	fs.StringVar(&cfg.Textures.Gloss, "gloss", cfg.Textures.Gloss, "Gloss map (red channel scales the exponent)")
	fs.IntVar(&cfg.Width, "width", cfg.Width, "Snapshot width in pixels")
	fs.IntVar(&cfg.Height, "height", cfg.Height, "Snapshot height in pixels")
	fs.StringVar(&cfg.Snapshot, "snapshot", cfg.Snapshot, "Render one frame to this .bmp/.png file and exit")
	fs.IntVar(&cfg.FPS, "fps", cfg.FPS, "Target FPS of the terminal viewer")
	fs.StringVar(&cfg.Renderer.Cull, "cull", cfg.Renderer.Cull, "Cull mode: back, front, none")
	fs.StringVar(&cfg.Renderer.Lighting, "lighting", cfg.Renderer.Lighting, "Lighting: combined, observed-area, diffuse, specular")
	fs.StringVar(&cfg.Renderer.Threads, "threads", cfg.Renderer.Threads, "Threading: synchronous, task-parallel, data-parallel")
	fs.IntVar(&cfg.Renderer.Workers, "workers", cfg.Renderer.Workers, "Goroutines for parallel threading (0 = auto)")
	fs.BoolVar(&cfg.Renderer.NormalMap, "normalmap", cfg.Renderer.NormalMap, "Enable normal mapping")
	fs.Float64Var(&cfg.Mesh.Yaw, "yaw", cfg.Mesh.Yaw, "Initial model rotation in degrees")
	fs.BoolVar(&cfg.Mesh.Rotate, "rotate", cfg.Mesh.Rotate, "Spin the model")
	fs.BoolVar(&cfg.Verbose, "v", cfg.Verbose, "Debug logging")
	fs.StringVar(&cfg.LogFile, "log", cfg.LogFile, "Log file (the terminal viewer logs nowhere without one)")
}

// parseArgs builds the configuration from args: defaults, then the -config
// file, then every flag given explicitly. The first positional argument is
// the model path.
func parseArgs(args []string) (Config, error) {
	var (
		parsed     = DefaultConfig()
		configPath string
	)
	fs := flag.NewFlagSet("softrast", flag.ContinueOnError)
	fs.Usage = func() { usage(fs) }
	bindFlags(fs, &parsed, &configPath)
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	cfg := DefaultConfig()
	if configPath != "" {
		var err error
		if cfg, err = LoadConfig(configPath); err != nil {
			return Config{}, err
		}
	}

	// Replay explicit flags over the file
	apply := flag.NewFlagSet("apply", flag.ContinueOnError)
	bindFlags(apply, &cfg, new(string))
	var applyErr error
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "config" || applyErr != nil {
			return
		}
		applyErr = apply.Set(f.Name, f.Value.String())
	})
	if applyErr != nil {
		return Config{}, applyErr
	}

	if fs.NArg() > 0 {
		cfg.Model = fs.Arg(0)
	}
	return cfg, cfg.Validate()
}

func usage(fs *flag.FlagSet) {
	w := fs.Output()
	fmt.Fprintf(w, "softrast - CPU software rasterizer\n\n")
	fmt.Fprintf(w, "Usage: softrast [options] <model.obj|model.glb>\n\n")
	fmt.Fprintf(w, "Options:\n")
	fs.PrintDefaults()
	fmt.Fprintf(w, "\nControls:\n")
	fmt.Fprintf(w, "  F2   - Toggle model rotation\n")
	fmt.Fprintf(w, "  F5   - Cycle lighting (combined / observed-area / diffuse / specular)\n")
	fmt.Fprintf(w, "  F6   - Toggle normal map\n")
	fmt.Fprintf(w, "  F7   - Toggle depth buffer view\n")
	fmt.Fprintf(w, "  F8   - Toggle bounding box view\n")
	fmt.Fprintf(w, "  F9   - Cycle cull mode (back / front / none)\n")
	fmt.Fprintf(w, "  F10  - Toggle uniform background\n")
	fmt.Fprintf(w, "  F11  - Toggle FPS logging\n")
	fmt.Fprintf(w, "  0    - Cycle threading (synchronous / task-parallel / data-parallel)\n")
	fmt.Fprintf(w, "  W/S  - Move camera forward/back\n")
	fmt.Fprintf(w, "  A/D  - Move camera left/right\n")
	fmt.Fprintf(w, "  Arrows - Turn camera\n")
	fmt.Fprintf(w, "  P    - Save a snapshot\n")
	fmt.Fprintf(w, "  Esc  - Quit\n")
}
