package flame

import (
	"math"
	"testing"
)

func TestRectCorners(t *testing.T) {
	c := NewRect(1, 4, -1, 2).Corners()
	want := [4]Point{{-1, 2}, {-1, 4}, {1, 4}, {1, 2}}
	if c != want {
		t.Errorf("Corners = %v, want %v", c, want)
	}
}

func TestRectGrow(t *testing.T) {
	r := NewRect(0, 0, 2, 4).Grow(0.5)
	want := NewRect(-0.5, -1, 2.5, 5)
	if r != want {
		t.Errorf("Grow = %v, want %v", r, want)
	}
	// A point box cannot grow.
	p := RectFromPoint(Pt(1, 1))
	if p.Grow(10) != p {
		t.Errorf("point box grew to %v", p.Grow(10))
	}
}

func TestRectContains(t *testing.T) {
	outer := NewRect(-1, -1, 1, 1)
	tests := []struct {
		name  string
		inner Rect
		want  bool
	}{
		{"self", outer, true},
		{"inside", NewRect(-0.5, -0.5, 0.5, 0.5), true},
		{"edge point", RectFromPoint(Pt(1, -1)), true},
		{"overlap", NewRect(0, 0, 2, 0.5), false},
		{"outside", NewRect(3, 3, 4, 4), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := outer.Contains(tt.inner); got != tt.want {
				t.Errorf("Contains = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRectHasArea(t *testing.T) {
	if RectFromPoint(Pt(0, 0)).HasArea() {
		t.Error("point box has area")
	}
	if NewRect(0, 0, 0, 1).HasArea() {
		t.Error("segment has area")
	}
	if (Rect{Max: Pt(math.Inf(1), 1)}).HasArea() {
		t.Error("infinite box has area")
	}
	if !NewRect(0, 0, 1e-6, 1e-6).HasArea() {
		t.Error("tiny box has no area")
	}
}

func TestRectTransform(t *testing.T) {
	r := NewRect(0, 0, 1, 1).Transform(Rotate(math.Pi / 4))
	h := math.Sqrt2 / 2
	want := NewRect(-h, 0, h, math.Sqrt2)
	if !pointNear(r.Min, want.Min, 1e-12) || !pointNear(r.Max, want.Max, 1e-12) {
		t.Errorf("Transform = %v, want %v", r, want)
	}
}

func TestBoxToBox(t *testing.T) {
	from := NewRect(2, 3, 6, 5)
	to := NewRect(-1, -1, 1, 1)
	m := BoxToBox(from, to)
	for i, c := range from.Corners() {
		if got, want := m.TransformPoint(c), to.Corners()[i]; !pointNear(got, want, 1e-12) {
			t.Errorf("corner %d -> %v, want %v", i, got, want)
		}
	}
}

func TestLetterBox(t *testing.T) {
	container := NewRect(0, 0, 200, 100)
	content := NewRect(-1, -1, 1, 1)
	got := content.Transform(LetterBox(container, content))
	want := NewRect(50, 0, 150, 100)
	if !pointNear(got.Min, want.Min, 1e-9) || !pointNear(got.Max, want.Max, 1e-9) {
		t.Errorf("LetterBox placed content at %v, want %v", got, want)
	}
	if !container.Contains(got) {
		t.Error("letterboxed content escapes container")
	}
}
