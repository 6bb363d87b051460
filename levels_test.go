package flame

import "testing"

func TestComposedCount(t *testing.T) {
	tests := []struct {
		n, depth int
		want     int
		ok       bool
	}{
		{3, 0, 1, true},
		{3, 4, 81, true},
		{2, 10, 1024, true},
		{1, 100, 1, true},
		{10, 100, 0, false},
	}
	for _, tt := range tests {
		got, ok := ComposedCount(tt.n, tt.depth)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ComposedCount(%d, %d) = %d, %v; want %d, %v", tt.n, tt.depth, got, ok, tt.want, tt.ok)
		}
	}
	if c, ok := ComposedCount(2, 62); !ok || c != 1<<62 {
		t.Errorf("ComposedCount(2, 62) = %d, %v", c, ok)
	}
	if _, ok := ComposedCount(2, 64); ok {
		t.Error("2^64 should overflow")
	}
}

func TestProcessLevelsOrder(t *testing.T) {
	set := MustTransformSet(Scale(2, 2), Translate(1, 0))
	comps := ComposeLevels(set, Identity(), 2)
	if len(comps) != 4 {
		t.Fatalf("got %d compositions, want 4", len(comps))
	}
	want := []Point{
		{0, 0}, // scale, scale
		{1, 0}, // scale, then translate
		{2, 0}, // translate, then scale
		{2, 0}, // translate, translate
	}
	for i, m := range comps {
		if got := m.TransformPoint(Pt(0, 0)); !pointNear(got, want[i], eps) {
			t.Errorf("composition %d maps origin to %v, want %v", i, got, want[i])
		}
	}
}

func TestProcessLevelsRoot(t *testing.T) {
	root := Translate(0, 5)
	comps := ComposeLevels(Quadrants(), root, 0)
	if len(comps) != 1 || comps[0] != root {
		t.Errorf("depth 0 = %v, want [root]", comps)
	}
	comps = ComposeLevels(Quadrants(), root, 1)
	// root is applied first.
	if got := comps[0].TransformPoint(Pt(0, 0)); !pointNear(got, Pt(0, 2.5), eps) {
		t.Errorf("t0*root(origin) = %v", got)
	}
}
