package models

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"os"
	"path/filepath"

	"github.com/qmuntal/gltf"

	"github.com/taigrr/softrast/pkg/math3d"
)

// ErrNoGeometry is returned when a model file holds no triangle primitives.
var ErrNoGeometry = errors.New("no triangle geometry")

// GLTFLoader loads GLTF/GLB files into Mesh format.
type GLTFLoader struct {
	// Options
	CalculateNormals  bool
	CalculateTangents bool
	// FlipWinding turns the counter-clockwise front faces of glTF into the
	// clockwise front faces the rasterizer expects once Y points down.
	FlipWinding bool
}

// NewGLTFLoader creates a new GLTF loader with default options.
func NewGLTFLoader() *GLTFLoader {
	return &GLTFLoader{
		CalculateNormals:  true,
		CalculateTangents: true,
		FlipWinding:       true,
	}
}

// LoadGLB loads a binary GLTF (.glb) file.
func LoadGLB(path string) (*Mesh, error) {
	loader := NewGLTFLoader()
	return loader.Load(path)
}

// primitive is the geometry of one glTF primitive before merging.
type primitive struct {
	vertices []Vertex
	indices  []uint32
	topology Topology
}

// Load loads a GLTF or GLB file and returns a Mesh.
func (l *GLTFLoader) Load(path string) (*Mesh, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open gltf: %w", err)
	}

	var prims []primitive
	for _, m := range doc.Meshes {
		p, err := l.processMesh(doc, m)
		if err != nil {
			return nil, fmt.Errorf("process mesh %q: %w", m.Name, err)
		}
		prims = append(prims, p...)
	}
	if len(prims) == 0 {
		return nil, fmt.Errorf("load %s: %w", filepath.Base(path), ErrNoGeometry)
	}

	mesh := NewMesh(filepath.Base(path))
	mergePrimitives(mesh, prims)

	hasNormals := false
	for _, v := range mesh.Vertices {
		if v.Normal.Len() > 0.001 {
			hasNormals = true
			break
		}
	}
	if l.CalculateNormals && !hasNormals {
		mesh.CalculateSmoothNormals()
	}

	hasTangents := false
	for _, v := range mesh.Vertices {
		if v.Tangent.Len() > 0.001 {
			hasTangents = true
			break
		}
	}
	if l.CalculateTangents && !hasTangents {
		mesh.CalculateTangents()
	}

	mesh.Materials = loadMaterials(doc, path)
	color := math3d.V3(1, 1, 1)
	if len(mesh.Materials) > 0 {
		bc := mesh.Materials[0].BaseColor
		color = math3d.V3(bc[0], bc[1], bc[2])
	}
	mesh.SetColor(color)
	mesh.CalculateBounds()

	return mesh, nil
}

// mergePrimitives concatenates primitives into one mesh. A lone strip keeps
// its topology; anything else is flattened into a triangle list.
func mergePrimitives(mesh *Mesh, prims []primitive) {
	if len(prims) == 1 {
		mesh.Vertices = prims[0].vertices
		mesh.Indices = prims[0].indices
		mesh.Topology = prims[0].topology
		return
	}

	mesh.Topology = TriangleList
	for _, p := range prims {
		base := uint32(len(mesh.Vertices))
		mesh.Vertices = append(mesh.Vertices, p.vertices...)
		for i := range p.topology.TriangleCount(len(p.indices)) {
			slots := p.topology.TriangleAt(i)
			for _, s := range slots {
				mesh.Indices = append(mesh.Indices, base+p.indices[s])
			}
		}
	}
}

// processMesh extracts geometry from a GLTF mesh.
func (l *GLTFLoader) processMesh(doc *gltf.Document, m *gltf.Mesh) ([]primitive, error) {
	var out []primitive
	for _, prim := range m.Primitives {
		var topology Topology
		switch prim.Mode {
		case gltf.PrimitiveTriangles:
			topology = TriangleList
		case gltf.PrimitiveTriangleStrip:
			topology = TriangleStrip
		default:
			// Skip non-triangle primitives (lines, points, fans)
			continue
		}

		posIdx, ok := prim.Attributes[gltf.POSITION]
		if !ok {
			continue
		}

		positions, err := readVec3Accessor(doc, posIdx)
		if err != nil {
			return nil, fmt.Errorf("read positions: %w", err)
		}

		var normals []math3d.Vec3
		if normIdx, ok := prim.Attributes[gltf.NORMAL]; ok {
			normals, err = readVec3Accessor(doc, normIdx)
			if err != nil {
				return nil, fmt.Errorf("read normals: %w", err)
			}
		}

		var tangents []math3d.Vec3
		if tanIdx, ok := prim.Attributes[gltf.TANGENT]; ok {
			tangents, err = readTangentAccessor(doc, tanIdx)
			if err != nil {
				return nil, fmt.Errorf("read tangents: %w", err)
			}
		}

		var uvs []math3d.Vec2
		if uvIdx, ok := prim.Attributes[gltf.TEXCOORD_0]; ok {
			uvs, err = readVec2Accessor(doc, uvIdx)
			if err != nil {
				return nil, fmt.Errorf("read uvs: %w", err)
			}
		}

		vertices := make([]Vertex, len(positions))
		for i := range positions {
			v := Vertex{Position: positions[i]}
			if i < len(normals) {
				v.Normal = normals[i]
			}
			if i < len(tangents) {
				v.Tangent = tangents[i]
			}
			if i < len(uvs) {
				// glTF already uses a top-left UV origin, same as the sampler
				v.UV = uvs[i]
			}
			vertices[i] = v
		}

		var indices []uint32
		if prim.Indices != nil {
			indices, err = readIndices(doc, *prim.Indices)
			if err != nil {
				return nil, fmt.Errorf("read indices: %w", err)
			}
		} else {
			indices = make([]uint32, len(positions))
			for i := range indices {
				indices[i] = uint32(i)
			}
		}

		if l.FlipWinding {
			indices = flipWinding(indices, topology)
		}

		out = append(out, primitive{vertices: vertices, indices: indices, topology: topology})
	}

	return out, nil
}

// flipWinding reverses the winding of every triangle. Lists swap the last
// two indices of each triple; strips get a leading duplicate index, which
// shifts the parity of every step and adds one degenerate triangle that
// the rasterizer drops.
func flipWinding(indices []uint32, topology Topology) []uint32 {
	if len(indices) == 0 {
		return indices
	}
	if topology == TriangleStrip {
		return append([]uint32{indices[0]}, indices...)
	}
	out := make([]uint32, len(indices))
	copy(out, indices)
	for i := 0; i+2 < len(out); i += 3 {
		out[i+1], out[i+2] = out[i+2], out[i+1]
	}
	return out
}

// readVec3Accessor reads Vec3 data from a GLTF accessor.
func readVec3Accessor(doc *gltf.Document, accessorIdx int) ([]math3d.Vec3, error) {
	floats, err := readFloatAccessor(doc, accessorIdx, gltf.AccessorVec3, 3)
	if err != nil {
		return nil, err
	}

	result := make([]math3d.Vec3, len(floats)/3)
	for i := range result {
		result[i] = math3d.V3(floats[i*3], floats[i*3+1], floats[i*3+2])
	}
	return result, nil
}

// readTangentAccessor reads VEC4 tangents and drops the handedness sign.
func readTangentAccessor(doc *gltf.Document, accessorIdx int) ([]math3d.Vec3, error) {
	floats, err := readFloatAccessor(doc, accessorIdx, gltf.AccessorVec4, 4)
	if err != nil {
		return nil, err
	}

	result := make([]math3d.Vec3, len(floats)/4)
	for i := range result {
		result[i] = math3d.V3(floats[i*4], floats[i*4+1], floats[i*4+2])
	}
	return result, nil
}

// readVec2Accessor reads Vec2 data from a GLTF accessor.
func readVec2Accessor(doc *gltf.Document, accessorIdx int) ([]math3d.Vec2, error) {
	floats, err := readFloatAccessor(doc, accessorIdx, gltf.AccessorVec2, 2)
	if err != nil {
		return nil, err
	}

	result := make([]math3d.Vec2, len(floats)/2)
	for i := range result {
		result[i] = math3d.V2(floats[i*2], floats[i*2+1])
	}
	return result, nil
}

// readFloatAccessor reads a float32 vector accessor into a flat slice.
func readFloatAccessor(doc *gltf.Document, accessorIdx int, typ gltf.AccessorType, n int) ([]float64, error) {
	if accessorIdx < 0 || accessorIdx >= len(doc.Accessors) {
		return nil, fmt.Errorf("accessor %d out of range", accessorIdx)
	}
	accessor := doc.Accessors[accessorIdx]
	if accessor.Type != typ {
		return nil, fmt.Errorf("expected %v, got %v", typ, accessor.Type)
	}
	if accessor.ComponentType != gltf.ComponentFloat {
		return nil, fmt.Errorf("unsupported component type %v", accessor.ComponentType)
	}

	data, stride, start, err := accessorBytes(doc, accessor, n*4)
	if err != nil {
		return nil, err
	}

	result := make([]float64, accessor.Count*n)
	for i := range accessor.Count {
		offset := start + i*stride
		if offset+n*4 > len(data) {
			return nil, fmt.Errorf("accessor reads past buffer view end")
		}
		for j := range n {
			bits := binary.LittleEndian.Uint32(data[offset+j*4:])
			result[i*n+j] = float64(math.Float32frombits(bits))
		}
	}
	return result, nil
}

// readIndices reads index data from a GLTF accessor.
func readIndices(doc *gltf.Document, accessorIdx int) ([]uint32, error) {
	if accessorIdx < 0 || accessorIdx >= len(doc.Accessors) {
		return nil, fmt.Errorf("accessor %d out of range", accessorIdx)
	}
	accessor := doc.Accessors[accessorIdx]
	if accessor.Type != gltf.AccessorScalar {
		return nil, fmt.Errorf("expected SCALAR, got %v", accessor.Type)
	}

	var size int
	switch accessor.ComponentType {
	case gltf.ComponentUbyte:
		size = 1
	case gltf.ComponentUshort:
		size = 2
	case gltf.ComponentUint:
		size = 4
	default:
		return nil, fmt.Errorf("unexpected index type: %v", accessor.ComponentType)
	}

	data, stride, start, err := accessorBytes(doc, accessor, size)
	if err != nil {
		return nil, err
	}

	result := make([]uint32, accessor.Count)
	for i := range accessor.Count {
		offset := start + i*stride
		if offset+size > len(data) {
			return nil, fmt.Errorf("accessor reads past buffer view end")
		}
		switch size {
		case 1:
			result[i] = uint32(data[offset])
		case 2:
			result[i] = uint32(binary.LittleEndian.Uint16(data[offset:]))
		case 4:
			result[i] = binary.LittleEndian.Uint32(data[offset:])
		}
	}
	return result, nil
}

// accessorBytes resolves the bytes of the buffer view behind an accessor,
// along with the element stride and the accessor's offset into the view.
// Callers bound every read by len(data), so an accessor cannot read
// outside its view.
func accessorBytes(doc *gltf.Document, accessor *gltf.Accessor, elemSize int) (data []byte, stride, start int, err error) {
	if accessor.BufferView == nil {
		return nil, 0, 0, fmt.Errorf("accessor has no buffer view")
	}
	if v := *accessor.BufferView; v < 0 || v >= len(doc.BufferViews) {
		return nil, 0, 0, fmt.Errorf("buffer view %d out of range", v)
	}
	bufferView := doc.BufferViews[*accessor.BufferView]
	if bufferView.Buffer < 0 || bufferView.Buffer >= len(doc.Buffers) {
		return nil, 0, 0, fmt.Errorf("buffer %d out of range", bufferView.Buffer)
	}
	buffer := doc.Buffers[bufferView.Buffer]

	// gltf.Open resolves both GLB chunks and external .bin files
	if buffer.Data == nil {
		return nil, 0, 0, fmt.Errorf("buffer has no data")
	}

	begin, end := bufferView.ByteOffset, bufferView.ByteOffset+bufferView.ByteLength
	if begin < 0 || bufferView.ByteLength < 0 || end > len(buffer.Data) {
		return nil, 0, 0, fmt.Errorf("buffer view [%d, %d) exceeds buffer of %d bytes", begin, end, len(buffer.Data))
	}
	if accessor.ByteOffset < 0 || bufferView.ByteStride < 0 {
		return nil, 0, 0, fmt.Errorf("negative accessor offset or stride")
	}

	stride = bufferView.ByteStride
	if stride == 0 {
		stride = elemSize
	}
	return buffer.Data[begin:end], stride, accessor.ByteOffset, nil
}

// loadMaterials collects base color and normal images of every material.
// Images that fail to decode are left nil.
func loadMaterials(doc *gltf.Document, path string) []Material {
	images := decodeImages(doc, path)

	imageFor := func(textureIdx int) image.Image {
		if textureIdx < 0 || textureIdx >= len(doc.Textures) {
			return nil
		}
		src := doc.Textures[textureIdx].Source
		if src == nil {
			return nil
		}
		return images[*src]
	}

	materials := make([]Material, 0, len(doc.Materials))
	for _, m := range doc.Materials {
		mat := Material{Name: m.Name, BaseColor: [4]float64{1, 1, 1, 1}}
		if pbr := m.PBRMetallicRoughness; pbr != nil {
			mat.BaseColor = pbr.BaseColorFactorOrDefault()
			if pbr.BaseColorTexture != nil {
				mat.BaseMap = imageFor(pbr.BaseColorTexture.Index)
			}
		}
		if m.NormalTexture != nil && m.NormalTexture.Index != nil {
			mat.NormalMap = imageFor(*m.NormalTexture.Index)
		}
		materials = append(materials, mat)
	}

	// Files without materials still get their first image as a base map
	if len(materials) == 0 {
		for i := range doc.Images {
			if img := images[i]; img != nil {
				materials = append(materials, Material{
					Name:      "default",
					BaseColor: [4]float64{1, 1, 1, 1},
					BaseMap:   img,
				})
				break
			}
		}
	}

	return materials
}

// decodeImages decodes every embedded or external image of the document,
// keyed by image index.
func decodeImages(doc *gltf.Document, path string) map[int]image.Image {
	images := make(map[int]image.Image)
	for i, img := range doc.Images {
		var data []byte
		if img.BufferView != nil {
			bv := doc.BufferViews[*img.BufferView]
			buf := doc.Buffers[bv.Buffer]
			if buf.Data != nil {
				start := bv.ByteOffset
				end := start + bv.ByteLength
				if end <= len(buf.Data) {
					data = buf.Data[start:end]
				}
			}
		} else if img.URI != "" && !img.IsEmbeddedResource() {
			texPath := filepath.Join(filepath.Dir(path), img.URI)
			raw, err := os.ReadFile(texPath)
			if err == nil {
				data = raw
			}
		}
		if len(data) == 0 {
			continue
		}

		decoded, _, err := image.Decode(bytes.NewReader(data))
		if err == nil {
			images[i] = decoded
		}
	}
	return images
}
