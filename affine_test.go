package flame

import (
	"math"
	"testing"
)

const eps = 1e-9

func pointNear(a, b Point, tol float64) bool {
	return math.Abs(a.X-b.X) <= tol && math.Abs(a.Y-b.Y) <= tol
}

func TestAffineMultiplyOrder(t *testing.T) {
	// Translate * Scale scales first.
	m := Translate(10, 0).Multiply(Scale(2, 2))
	got := m.TransformPoint(Pt(1, 1))
	if want := Pt(12, 2); !pointNear(got, want, eps) {
		t.Errorf("Translate*Scale (1,1) = %v, want %v", got, want)
	}

	m = Scale(2, 2).Multiply(Translate(10, 0))
	got = m.TransformPoint(Pt(1, 1))
	if want := Pt(22, 2); !pointNear(got, want, eps) {
		t.Errorf("Scale*Translate (1,1) = %v, want %v", got, want)
	}
}

func TestAffineInvert(t *testing.T) {
	tests := []struct {
		name string
		m    Affine
		ok   bool
	}{
		{"identity", Identity(), true},
		{"similarity", Similarity(0.5, 0.3, 1, -2), true},
		{"shear", Shear(0.4, -0.2), true},
		{"singular", Scale(1, 0), false},
		{"nan", NewAffine(math.NaN(), 0, 0, 0, 1, 0), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv, ok := tt.m.Invert()
			if ok != tt.ok {
				t.Fatalf("Invert ok = %v, want %v", ok, tt.ok)
			}
			if !ok {
				return
			}
			if !tt.m.Multiply(inv).ApproxEqual(Identity(), 1e-12) {
				t.Errorf("m*inv = %+v, want identity", tt.m.Multiply(inv))
			}
		})
	}
}

func TestAffineFixedPoint(t *testing.T) {
	tests := []struct {
		name string
		m    Affine
		want Point
		ok   bool
	}{
		{"half scale to corner", NewAffine(0.5, 0, 0.5, 0, 0.5, 0.5), Pt(1, 1), true},
		{"scaled shift", Scale(0.5, 0.5).Multiply(Translate(5, 6)), Pt(5, 6), true},
		{"rotation about origin", Rotate(1), Pt(0, 0), true},
		{"translation", Translate(1, 0), Point{}, false},
		{"identity", Identity(), Point{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, ok := tt.m.FixedPoint()
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if !ok {
				return
			}
			if !pointNear(p, tt.want, 1e-12) {
				t.Errorf("FixedPoint = %v, want %v", p, tt.want)
			}
			if !pointNear(tt.m.TransformPoint(p), p, 1e-12) {
				t.Errorf("m(p) = %v, want p", tt.m.TransformPoint(p))
			}
		})
	}
}

func TestAffineMaxScale(t *testing.T) {
	tests := []struct {
		m    Affine
		want float64
	}{
		{Identity(), 1},
		{Scale(0.5, 0.25), 0.5},
		{Rotate(0.7).Multiply(Scale(0.25, -0.75)), 0.75},
		{Similarity(0.6, 2, 3, 4), 0.6},
	}
	for _, tt := range tests {
		if got := tt.m.MaxScale(); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("MaxScale(%+v) = %v, want %v", tt.m, got, tt.want)
		}
	}
}

func TestAffineRows(t *testing.T) {
	r0, r1 := NewAffine(1, 2, 3, 4, 5, 6).Rows()
	if r0 != [4]float32{1, 2, 3, 0} || r1 != [4]float32{4, 5, 6, 0} {
		t.Errorf("Rows = %v %v", r0, r1)
	}
}

func TestSimilarity(t *testing.T) {
	m := Similarity(2, math.Pi/2, 1, 1)
	got := m.TransformPoint(Pt(1, 0))
	if want := Pt(1, 3); !pointNear(got, want, 1e-12) {
		t.Errorf("Similarity (1,0) = %v, want %v", got, want)
	}
}
