package flame

import (
	"errors"
	"math"
	"slices"
	"testing"
)

func TestNewTransformSet(t *testing.T) {
	tests := []struct {
		name    string
		maps    []Affine
		wantErr error
	}{
		{"empty", nil, ErrEmptyTransformSet},
		{"singular", []Affine{Scale(0.5, 0.5), Scale(0, 0.5)}, ErrDegenerateTransformSet},
		{"nan", []Affine{NewAffine(0.5, 0, math.NaN(), 0, 0.5, 0)}, ErrDegenerateTransformSet},
		{"ok", []Affine{Scale(0.5, 0.5), Translate(1, 0)}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewTransformSet(tt.maps...)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if err == nil && s.Len() != len(tt.maps) {
				t.Errorf("Len = %d, want %d", s.Len(), len(tt.maps))
			}
		})
	}
}

func TestTransformSetImmutable(t *testing.T) {
	maps := []Affine{Scale(0.5, 0.5)}
	s := MustTransformSet(maps...)
	maps[0] = Identity()
	if s.At(0) != Scale(0.5, 0.5) {
		t.Error("set aliases the caller's slice")
	}
	got := s.Transforms()
	got[0] = Identity()
	if s.At(0) != Scale(0.5, 0.5) {
		t.Error("Transforms exposes internal storage")
	}
}

func TestTransformSetEqual(t *testing.T) {
	a := Sierpinski()
	b := Sierpinski()
	if !a.Equal(b) {
		t.Error("identical presets should be equal")
	}
	if a.Equal(Quadrants()) {
		t.Error("different sets reported equal")
	}
	var nilSet *TransformSet
	if a.Equal(nilSet) || !nilSet.Equal(nil) {
		t.Error("nil handling")
	}
}

func TestPresetFixedPoints(t *testing.T) {
	pts := OppositeCorners().FixedPoints()
	if len(pts) != 2 || !pointNear(pts[0], Pt(-1, -1), 1e-12) || !pointNear(pts[1], Pt(1, 1), 1e-12) {
		t.Errorf("OppositeCorners fixed points = %v", pts)
	}
	pts = Sierpinski().FixedPoints()
	want := []Point{{0, 0}, {1, 0}, {0.5, math.Sqrt(3) / 2}}
	for i := range want {
		if !pointNear(pts[i], want[i], 1e-12) {
			t.Errorf("Sierpinski fixed point %d = %v, want %v", i, pts[i], want[i])
		}
	}
	if s := Quadrants().MaxScale(); s != 0.5 {
		t.Errorf("Quadrants MaxScale = %v, want 0.5", s)
	}
}

func TestSeedPoints(t *testing.T) {
	set := OppositeCorners()
	if got := set.SeedPoints(0); !slices.Equal(got, set.FixedPoints()) {
		t.Errorf("SeedPoints(0) = %v, want the fixed points", got)
	}
	pts := set.SeedPoints(2)
	if len(pts) != 2+4*2 {
		t.Fatalf("SeedPoints(2) has %d points, want 10", len(pts))
	}
	for _, p := range pts {
		if math.Abs(p.X-p.Y) > 1e-12 || math.Abs(p.X) > 1 {
			t.Errorf("seed point %v is off the diagonal attractor", p)
		}
	}
	if !slices.ContainsFunc(pts, func(p Point) bool { return pointNear(p, Pt(0.5, 0.5), 1e-12) }) {
		t.Errorf("SeedPoints(2) = %v, missing t2*t1(1,1) = (0.5,0.5)", pts)
	}
}

func TestPolygon(t *testing.T) {
	for n := MinPolygonSides; n <= MaxPolygonSides; n++ {
		s, err := Polygon(PolygonParams{Sides: n, Scale: 0.5, Shift: 0.5, Rotation: 0.3})
		if err != nil {
			t.Fatalf("Polygon(%d): %v", n, err)
		}
		if s.Len() != n {
			t.Errorf("Polygon(%d) has %d maps", n, s.Len())
		}
		if got := s.MaxScale(); math.Abs(got-0.5) > 1e-12 {
			t.Errorf("Polygon(%d) MaxScale = %v", n, got)
		}
	}

	bad := []PolygonParams{
		{Sides: 2, Scale: 0.5},
		{Sides: 11, Scale: 0.5},
		{Sides: 3, Scale: 0},
		{Sides: 3, Scale: -0.9},
	}
	for _, p := range bad {
		if _, err := Polygon(p); err == nil {
			t.Errorf("Polygon(%+v) should fail", p)
		}
	}
}

func TestPolygonTwist(t *testing.T) {
	p := DefaultPolygonParams()
	plain, _ := Polygon(p)
	p.Twist = [2]float64{0.4, 0}
	twisted, _ := Polygon(p)
	if plain.At(0) == twisted.At(0) {
		t.Error("twist did not change the first map")
	}
	if plain.At(1) != twisted.At(1) || plain.At(2) != twisted.At(2) {
		t.Error("zero twist changed other maps")
	}
}
