package flame

import (
	"encoding/binary"
	"math"
	"slices"
	"testing"
)

func TestBuildQuad(t *testing.T) {
	q := BuildQuad()
	want := []Vertex{
		{[2]float32{-1, -1}, [2]float32{0, 1}},
		{[2]float32{-1, 1}, [2]float32{0, 0}},
		{[2]float32{1, 1}, [2]float32{1, 0}},
		{[2]float32{-1, -1}, [2]float32{0, 1}},
		{[2]float32{1, 1}, [2]float32{1, 0}},
		{[2]float32{1, -1}, [2]float32{1, 1}},
	}
	if !slices.Equal(q, want) {
		t.Errorf("BuildQuad = %v, want %v", q, want)
	}
}

func TestBuildMeshUV(t *testing.T) {
	bounds := NewRect(2, 3, 6, 5)
	mesh := BuildMesh(Quadrants(), bounds, 1)
	if len(mesh) != 4*6 {
		t.Fatalf("len = %d, want 24", len(mesh))
	}
	// Every quad carries the same UVs: the untransformed bounds corners.
	for i, v := range mesh {
		if v.UV != mesh[i%6].UV {
			t.Errorf("vertex %d uv %v differs from %v", i, v.UV, mesh[i%6].UV)
		}
	}
	if mesh[0].UV != [2]float32{0, 1} || mesh[2].UV != [2]float32{1, 0} {
		t.Errorf("corner uvs = %v %v", mesh[0].UV, mesh[2].UV)
	}
	// First quad is Quadrants()[0] (half scale) of the bounds.
	if mesh[2].Position != [2]float32{3, 2.5} {
		t.Errorf("max corner of first quad = %v, want (3, 2.5)", mesh[2].Position)
	}
}

func TestBuildInstances(t *testing.T) {
	set := Sierpinski()
	inst := BuildInstances(set, Identity(), 2)
	if len(inst) != 9 {
		t.Fatalf("got %d instances, want 9", len(inst))
	}
	root := Translate(3, 0)
	for i, m := range ComposeLevels(set, Identity(), 2) {
		r0, r1 := root.Multiply(m).Rows()
		got := BuildInstances(set, root, 2)[i]
		if got.Row0 != r0 || got.Row1 != r1 {
			t.Errorf("instance %d = %v, want %v %v", i, got, r0, r1)
		}
	}
	if got := BuildInstances(set, Identity(), 0); len(got) != 1 || got[0].Row0 != [4]float32{1, 0, 0, 0} {
		t.Errorf("depth 0 instances = %v", got)
	}
}

// drawnQuads applies every instance to every mesh quad and returns the
// clip-space corners and uvs of each drawn quad.
func drawnQuads(b InstanceBatch) [][24]float32 {
	var quads [][24]float32
	for _, in := range b.Instances {
		for q := 0; q < len(b.Vertices); q += 6 {
			var quad [24]float32
			for i, v := range b.Vertices[q : q+6] {
				x, y := in.Apply(v.Position[0], v.Position[1])
				copy(quad[4*i:], []float32{x, y, v.UV[0], v.UV[1]})
			}
			quads = append(quads, quad)
		}
	}
	return quads
}

func quadsNear(a, b [24]float32) bool {
	for i := range a {
		if math.Abs(float64(a[i]-b[i])) > 1e-5 {
			return false
		}
	}
	return true
}

// sameQuads reports whether a and b hold the same quads in any order.
func sameQuads(a, b [][24]float32) bool {
	if len(a) != len(b) {
		return false
	}
	used := make([]bool, len(b))
outer:
	for _, qa := range a {
		for j, qb := range b {
			if !used[j] && quadsNear(qa, qb) {
				used[j] = true
				continue outer
			}
		}
		return false
	}
	return true
}

func TestStrategiesEquivalent(t *testing.T) {
	set := Sierpinski()
	bounds, err := ComputeBounds(set, DefaultBoundsOptions())
	if err != nil {
		t.Fatal(err)
	}
	for _, final := range []bool{false, true} {
		var ref [][24]float32
		for _, s := range []Strategy{StrategyInstanced, StrategyMesh, StrategyHybrid} {
			mesh, inst := s.Split(3)
			pass := Pass{MeshLevels: mesh, InstanceLevels: inst, Final: final}
			b := BuildBatch(set, bounds, pass, 320, 200)
			if b.Draws() != 27 {
				t.Errorf("%v: %d draws, want 27", s, b.Draws())
			}
			quads := drawnQuads(b)
			if ref == nil {
				ref = quads
				continue
			}
			if !sameQuads(quads, ref) {
				t.Errorf("%v (final=%v) draws a different set of quads", s, final)
			}
		}
	}
}

func TestPassRoot(t *testing.T) {
	bounds := NewRect(-1, -1, 1, 1)
	inner := bounds.Transform(PassRoot(bounds, false, 200, 100))
	if !pointNear(inner.Min, Pt(-1, -1), 1e-12) || !pointNear(inner.Max, Pt(1, 1), 1e-12) {
		t.Errorf("intermediate root maps bounds to %v, want clip", inner)
	}
	final := bounds.Transform(PassRoot(bounds, true, 200, 100))
	if !pointNear(final.Min, Pt(-0.5, -1), 1e-12) || !pointNear(final.Max, Pt(0.5, 1), 1e-12) {
		t.Errorf("final root maps bounds to %v, want letterbox [-0.5,0.5]x[-1,1]", final)
	}
}

func TestBuildSeedBatch(t *testing.T) {
	bounds := NewRect(0, 0, 1, 1)
	centre := func(b InstanceBatch, i int) Point {
		x, y := b.Instances[i].Apply(0.5, 0.5)
		return Pt(float64(x), float64(y))
	}

	// Two points in the top-left texel of a 4x4 pass draw one quad.
	b := BuildSeedBatch([]Point{Pt(0.1, 0.9), Pt(0.12, 0.88), Pt(2, 2)}, bounds, Pass{Width: 4, Height: 4}, 32, 32)
	if len(b.Instances) != 1 || len(b.Vertices) != 6 {
		t.Fatalf("batch has %d instances, %d vertices; want 1, 6", len(b.Instances), len(b.Vertices))
	}
	if c := centre(b, 0); !pointNear(c, Pt(-0.75, 0.75), 1e-6) {
		t.Errorf("quad centre %v, want texel centre (-0.75, 0.75)", c)
	}

	// The final pass letterboxes bounds into the viewport.
	b = BuildSeedBatch([]Point{Pt(0, 0)}, bounds, Pass{Width: 8, Height: 4, Final: true}, 8, 4)
	if len(b.Instances) != 1 {
		t.Fatalf("final batch has %d instances, want 1", len(b.Instances))
	}
	if c := centre(b, 0); !pointNear(c, Pt(-0.375, -0.75), 1e-6) {
		t.Errorf("final quad centre %v, want (-0.375, -0.75)", c)
	}

	if b := BuildSeedBatch(nil, bounds, Pass{Width: 4, Height: 4}, 4, 4); b.Draws() != 0 {
		t.Errorf("empty seed batch draws %d", b.Draws())
	}
}

func TestEncode(t *testing.T) {
	vb := EncodeVertices([]Vertex{{[2]float32{1, 2}, [2]float32{3, 4}}, {[2]float32{5, 6}, [2]float32{7, 8}}})
	if len(vb) != 2*VertexStride {
		t.Fatalf("vertex bytes = %d", len(vb))
	}
	for i := range 8 {
		if got := math.Float32frombits(binary.LittleEndian.Uint32(vb[4*i:])); got != float32(i+1) {
			t.Errorf("vertex float %d = %v", i, got)
		}
	}

	ib := EncodeInstances([]Instance{{Row0: [4]float32{1, 2, 3, 0}, Row1: [4]float32{4, 5, 6, 0}}})
	if len(ib) != InstanceStride {
		t.Fatalf("instance bytes = %d", len(ib))
	}
	want := []float32{1, 2, 3, 0, 4, 5, 6, 0}
	for i, w := range want {
		if got := math.Float32frombits(binary.LittleEndian.Uint32(ib[4*i:])); got != w {
			t.Errorf("instance float %d = %v, want %v", i, got, w)
		}
	}
}
