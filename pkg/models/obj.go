package models

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/taigrr/softrast/pkg/math3d"
)

// OBJLoader loads Wavefront OBJ files into Mesh format.
// Only geometry is read: v, vt, vn and f records. Polygons are
// triangulated as fans.
type OBJLoader struct {
	CalculateNormals  bool
	CalculateTangents bool
	FlipWinding       bool
}

// NewOBJLoader creates a new OBJ loader with default options.
func NewOBJLoader() *OBJLoader {
	return &OBJLoader{
		CalculateNormals:  true,
		CalculateTangents: true,
		FlipWinding:       true,
	}
}

// LoadOBJ loads an OBJ file with the default options.
func LoadOBJ(path string) (*Mesh, error) {
	return NewOBJLoader().Load(path)
}

// Load reads the OBJ file at path.
func (l *OBJLoader) Load(path string) (*Mesh, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open obj: %w", err)
	}
	defer f.Close()

	mesh, err := l.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	mesh.Name = filepath.Base(path)
	return mesh, nil
}

// objKey identifies a unique position/uv/normal combination.
type objKey struct{ p, t, n int }

// Parse reads OBJ records from r.
func (l *OBJLoader) Parse(r io.Reader) (*Mesh, error) {
	var (
		positions []math3d.Vec3
		uvs       []math3d.Vec2
		normals   []math3d.Vec3
	)

	mesh := NewMesh("obj")
	lookup := make(map[objKey]uint32)
	hasNormals := false

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}

		switch fields[0] {
		case "v":
			v, err := parseFloats(fields[1:], 3)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			positions = append(positions, math3d.V3(v[0], v[1], v[2]))
		case "vt":
			v, err := parseFloats(fields[1:], 2)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			// OBJ puts the UV origin bottom-left; the sampler expects top-left
			uvs = append(uvs, math3d.V2(v[0], 1-v[1]))
		case "vn":
			v, err := parseFloats(fields[1:], 3)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			normals = append(normals, math3d.V3(v[0], v[1], v[2]))
		case "f":
			if len(fields) < 4 {
				return nil, fmt.Errorf("line %d: face needs at least 3 vertices", lineNo)
			}
			corners := make([]uint32, 0, len(fields)-1)
			for _, ref := range fields[1:] {
				key, err := parseFaceRef(ref, len(positions), len(uvs), len(normals))
				if err != nil {
					return nil, fmt.Errorf("line %d: %w", lineNo, err)
				}
				idx, ok := lookup[key]
				if !ok {
					v := Vertex{Position: positions[key.p]}
					if key.t >= 0 {
						v.UV = uvs[key.t]
					}
					if key.n >= 0 {
						v.Normal = normals[key.n]
						hasNormals = true
					}
					idx = uint32(len(mesh.Vertices))
					mesh.Vertices = append(mesh.Vertices, v)
					lookup[key] = idx
				}
				corners = append(corners, idx)
			}
			for i := 1; i+1 < len(corners); i++ {
				if l.FlipWinding {
					mesh.Indices = append(mesh.Indices, corners[0], corners[i+1], corners[i])
				} else {
					mesh.Indices = append(mesh.Indices, corners[0], corners[i], corners[i+1])
				}
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(mesh.Indices) == 0 {
		return nil, ErrNoGeometry
	}

	if l.CalculateNormals && !hasNormals {
		mesh.CalculateSmoothNormals()
	}
	if l.CalculateTangents {
		mesh.CalculateTangents()
	}
	mesh.SetColor(math3d.V3(1, 1, 1))
	mesh.CalculateBounds()

	return mesh, nil
}

func parseFloats(fields []string, n int) ([]float64, error) {
	if len(fields) < n {
		return nil, fmt.Errorf("expected %d values, got %d", n, len(fields))
	}
	out := make([]float64, n)
	for i := range n {
		v, err := strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return nil, fmt.Errorf("parse %q: %w", fields[i], err)
		}
		out[i] = v
	}
	return out, nil
}

// parseFaceRef parses "p", "p/t", "p//n" or "p/t/n". Indices are 1-based;
// negative indices count back from the end. Missing parts are -1.
func parseFaceRef(ref string, np, nt, nn int) (objKey, error) {
	key := objKey{p: -1, t: -1, n: -1}
	parts := strings.Split(ref, "/")

	resolve := func(s string, count int) (int, error) {
		if s == "" {
			return -1, nil
		}
		i, err := strconv.Atoi(s)
		if err != nil {
			return 0, fmt.Errorf("bad index %q: %w", s, err)
		}
		if i < 0 {
			i = count + i
		} else {
			i--
		}
		if i < 0 || i >= count {
			return 0, fmt.Errorf("index %s out of range", s)
		}
		return i, nil
	}

	var err error
	if key.p, err = resolve(parts[0], np); err != nil {
		return key, err
	}
	if key.p < 0 {
		return key, fmt.Errorf("face vertex %q has no position", ref)
	}
	if len(parts) > 1 {
		if key.t, err = resolve(parts[1], nt); err != nil {
			return key, err
		}
	}
	if len(parts) > 2 {
		if key.n, err = resolve(parts[2], nn); err != nil {
			return key, err
		}
	}
	return key, nil
}
