package flame

import (
	"encoding/binary"
	"math"
)

// Shader wire layout.
const (
	// VertexStride is the byte size of a Vertex: position (location 2) and
	// uv (location 3), two float32 each. Vertex buffer slot 1.
	VertexStride = 16

	// InstanceStride is the byte size of an Instance: row0 (location 0) and
	// row1 (location 1), four float32 each, stepped per instance.
	// Instance buffer slot 0.
	InstanceStride = 32
)

// quadIndices triangulates Rect.Corners.
var quadIndices = [6]int{0, 1, 2, 0, 2, 3}

// Vertex is one mesh vertex.
type Vertex struct {
	Position [2]float32
	UV       [2]float32
}

// Instance carries the two rows of a composed map, as produced by
// Affine.Rows.
type Instance struct {
	Row0, Row1 [4]float32
}

// Apply transforms a point by the instance rows in float32, exactly as the
// vertex shader does: x' = dot(row0.xyz, (x, y, 1)).
func (in Instance) Apply(x, y float32) (float32, float32) {
	return in.Row0[0]*x + in.Row0[1]*y + in.Row0[2],
		in.Row1[0]*x + in.Row1[1]*y + in.Row1[2]
}

// InstanceBatch is the geometry of one pass: every instance draws every
// vertex.
type InstanceBatch struct {
	Vertices  []Vertex
	Instances []Instance
}

// Draws returns the composed maps the batch covers.
func (b InstanceBatch) Draws() int {
	return len(b.Instances) * len(b.Vertices) / len(quadIndices)
}

// boundsUV returns the texture coordinate of world point p within bounds:
// u grows with x, v grows downward (texture rows top to bottom).
func boundsUV(bounds Rect, p Point) [2]float32 {
	return [2]float32{
		float32((p.X - bounds.Min.X) / bounds.Width()),
		float32((bounds.Max.Y - p.Y) / bounds.Height()),
	}
}

// BuildMesh bakes levels of the transform set into triangles: for every
// composition M, the quad M(bounds) with UVs of the untransformed corners.
// Sampling a bounds-covering texture through these UVs pulls density from
// M^-1(x).
func BuildMesh(set *TransformSet, bounds Rect, levels int) []Vertex {
	corners := bounds.Corners()
	var uv [4][2]float32
	for i, c := range corners {
		uv[i] = boundsUV(bounds, c)
	}
	count, _ := ComposedCount(set.Len(), levels)
	out := make([]Vertex, 0, count*len(quadIndices))
	ProcessLevels(set, Identity(), levels, func(m Affine) {
		for _, i := range quadIndices {
			p := m.TransformPoint(corners[i])
			out = append(out, Vertex{
				Position: [2]float32{float32(p.X), float32(p.Y)},
				UV:       uv[i],
			})
		}
	})
	return out
}

// BuildInstances returns root*M for every composition M of levels.
func BuildInstances(set *TransformSet, root Affine, levels int) []Instance {
	count, _ := ComposedCount(set.Len(), levels)
	out := make([]Instance, 0, count)
	ProcessLevels(set, Identity(), levels, func(m Affine) {
		r0, r1 := root.Multiply(m).Rows()
		out = append(out, Instance{Row0: r0, Row1: r1})
	})
	return out
}

// BuildQuad returns the full-screen quad over clip space [-1,1]^2 with
// UVs covering the texture.
func BuildQuad() []Vertex {
	clip := ClipRect()
	return BuildMesh(MustTransformSet(Identity()), clip, 0)
}

// ClipRect is normalized device coordinates.
func ClipRect() Rect { return NewRect(-1, -1, 1, 1) }

// PassRoot returns the matrix that places a pass's geometry in clip space.
// Intermediate passes stretch bounds over the whole buffer; the final pass
// letterboxes bounds into a width x height viewport.
func PassRoot(bounds Rect, final bool, width, height int) Affine {
	if !final {
		return BoxToBox(bounds, ClipRect())
	}
	window := NewRect(0, 0, float64(width), float64(height))
	return BoxToBox(window, ClipRect()).Multiply(LetterBox(window, bounds))
}

// BuildBatch returns the geometry for pass: the mesh bakes pass.MeshLevels,
// the instances expand pass.InstanceLevels under the pass root.
func BuildBatch(set *TransformSet, bounds Rect, pass Pass, width, height int) InstanceBatch {
	return InstanceBatch{
		Vertices:  BuildMesh(set, bounds, pass.MeshLevels),
		Instances: BuildInstances(set, PassRoot(bounds, pass.Final, width, height), pass.InstanceLevels),
	}
}

// BuildSeedBatch returns quads that add density 1 at the texel of pass
// holding each point. A quad covers the middle half of its texel, so it
// hits that texel's centre and no other. Points outside the pass are
// skipped and a texel holding several points is drawn once.
func BuildSeedBatch(points []Point, bounds Rect, pass Pass, width, height int) InstanceBatch {
	w, h := pass.Width, pass.Height
	window := NewRect(0, 0, float64(w), float64(h))
	toWindow := BoxToBox(bounds, window)
	if pass.Final {
		viewport := NewRect(0, 0, float64(width), float64(height))
		toWindow = BoxToBox(viewport, window).Multiply(LetterBox(viewport, bounds))
	}
	toClip := BoxToBox(window, ClipRect())
	unit := NewRect(0, 0, 1, 1)

	seen := make(map[[2]int]bool, len(points))
	var instances []Instance
	for _, p := range points {
		q := toWindow.TransformPoint(p)
		x, y := math.Floor(q.X), math.Floor(q.Y)
		if !(x >= 0 && y >= 0 && x < float64(w) && y < float64(h)) {
			continue
		}
		cell := [2]int{int(x), int(y)}
		if seen[cell] {
			continue
		}
		seen[cell] = true
		quad := NewRect(x+0.25, y+0.25, x+0.75, y+0.75)
		r0, r1 := toClip.Multiply(BoxToBox(unit, quad)).Rows()
		instances = append(instances, Instance{Row0: r0, Row1: r1})
	}
	if len(instances) == 0 {
		return InstanceBatch{}
	}
	return InstanceBatch{
		Vertices:  BuildMesh(MustTransformSet(Identity()), unit, 0),
		Instances: instances,
	}
}

// EncodeVertices packs vertices little-endian at VertexStride.
func EncodeVertices(vs []Vertex) []byte {
	buf := make([]byte, len(vs)*VertexStride)
	for i, v := range vs {
		off := i * VertexStride
		binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(v.Position[0]))
		binary.LittleEndian.PutUint32(buf[off+4:], math.Float32bits(v.Position[1]))
		binary.LittleEndian.PutUint32(buf[off+8:], math.Float32bits(v.UV[0]))
		binary.LittleEndian.PutUint32(buf[off+12:], math.Float32bits(v.UV[1]))
	}
	return buf
}

// EncodeInstances packs instances little-endian at InstanceStride.
func EncodeInstances(is []Instance) []byte {
	buf := make([]byte, len(is)*InstanceStride)
	for i, in := range is {
		off := i * InstanceStride
		for j, f := range in.Row0 {
			binary.LittleEndian.PutUint32(buf[off+4*j:], math.Float32bits(f))
		}
		for j, f := range in.Row1 {
			binary.LittleEndian.PutUint32(buf[off+16+4*j:], math.Float32bits(f))
		}
	}
	return buf
}
