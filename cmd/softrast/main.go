// softrast - CPU software rasterizer
// Renders OBJ and glTF/GLB models with per-pixel Lambert/Phong shading,
// either live in the terminal or headless into a BMP/PNG snapshot.
//
// Controls:
//
//	F2   - Toggle model rotation
//	F5   - Cycle lighting mode
//	F6   - Toggle normal map
//	F7   - Toggle depth buffer view
//	F8   - Toggle bounding box view
//	F9   - Cycle cull mode
//	F10  - Toggle uniform background
//	F11  - Toggle FPS logging
//	0    - Cycle threading mode
//	W/S  - Move camera forward/back
//	A/D  - Move camera left/right
//	Arrows - Turn camera
//	P    - Save a snapshot
//	Esc  - Quit
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	uv "github.com/charmbracelet/ultraviolet"

	"github.com/taigrr/softrast/pkg/models"
	"github.com/taigrr/softrast/pkg/render"
)

func main() {
	cfg, err := parseArgs(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if errors.Is(err, errNoModel) {
			fmt.Fprintf(os.Stderr, "Usage: softrast [options] <model.obj|model.glb>\n")
		}
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg Config) error {
	closeLog, err := setupLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	mesh, err := loadMesh(cfg.Model, cfg.Mesh.Size)
	if err != nil {
		return err
	}
	material := loadMaterial(cfg.Textures, mesh)

	baseMap := "none"
	if m := mesh.GetMaterial(0); m != nil {
		baseMap = imageSize(m.BaseMap)
	}
	render.Logger().Info("model loaded",
		"file", filepath.Base(cfg.Model),
		"vertices", mesh.VertexCount(),
		"triangles", mesh.TriangleCount(),
		"topology", mesh.Topology,
		"materials", mesh.MaterialCount(),
		"texture", baseMap)

	if cfg.Snapshot != "" {
		return runSnapshot(cfg, mesh, material)
	}
	return runTerminal(cfg, mesh, material)
}

// setupLogger installs a text handler on the render package logger. The
// terminal viewer owns the screen, so it only logs when a log file is given.
func setupLogger(cfg Config) (func(), error) {
	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	}

	var (
		w       io.Writer = os.Stderr
		closeFn           = func() {}
	)
	switch {
	case cfg.LogFile != "":
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		w = f
		closeFn = func() { f.Close() }
	case cfg.Snapshot == "":
		return closeFn, nil
	}

	render.SetLogger(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
	return closeFn, nil
}

// runSnapshot renders a single frame and writes it to cfg.Snapshot.
func runSnapshot(cfg Config, mesh *models.Mesh, material render.Material) error {
	v, err := newViewer(cfg, mesh, material, cfg.Width, cfg.Height)
	if err != nil {
		return err
	}
	if err := v.renderStill(); err != nil {
		return err
	}
	if err := v.renderer.Frame().SaveSnapshot(cfg.Snapshot); err != nil {
		return err
	}

	stats := v.renderer.LastFrameStats()
	render.Logger().Info("snapshot saved",
		"path", cfg.Snapshot,
		"triangles", stats.Triangles,
		"rejected", stats.Rejected,
		"duration", stats.Duration)
	return nil
}

// runTerminal shows the model live in the terminal, two pixels per cell.
func runTerminal(cfg Config, mesh *models.Mesh, material render.Material) error {
	term := uv.DefaultTerminal()

	width, height, err := term.GetSize()
	if err != nil {
		return fmt.Errorf("get terminal size: %w", err)
	}

	v, err := newViewer(cfg, mesh, material, width, height*2)
	if err != nil {
		return err
	}

	if err := term.Start(); err != nil {
		return fmt.Errorf("start terminal: %w", err)
	}
	term.EnterAltScreen()
	term.HideCursor()
	term.Resize(width, height)

	defer func() {
		term.ExitAltScreen()
		term.ShowCursor()
		term.Shutdown(context.Background())
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(time.Second / time.Duration(cfg.FPS))
	defer ticker.Stop()

	events := term.Events()
	lastFrame := time.Now()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-events:
			if !ok {
				return nil
			}
			switch ev := ev.(type) {
			case uv.WindowSizeEvent:
				width, height = ev.Width, ev.Height
				term.Erase()
				term.Resize(width, height)
				if err := v.resize(width, height*2); err != nil {
					return err
				}
			case uv.KeyPressEvent:
				quit, err := v.apply(actionFor(ev))
				if err != nil {
					render.Logger().Warn("action failed", "err", err)
				}
				if quit {
					return nil
				}
			}

		case now := <-ticker.C:
			dt := min(now.Sub(lastFrame).Seconds(), 0.1)
			lastFrame = now

			if err := v.step(dt); err != nil {
				return fmt.Errorf("render: %w", err)
			}
			v.renderer.Frame().Draw(term, uv.Rect(0, 0, width, height))
			if err := term.Display(); err != nil {
				return fmt.Errorf("display: %w", err)
			}
		}
	}
}
