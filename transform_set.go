package flame

import (
	"fmt"
	"math"
	"slices"
)

// TransformSet is an immutable, ordered set of affine maps whose attractor
// is the rendered flame. Replace a set wholesale; there is no in-place edit.
type TransformSet struct {
	transforms []Affine
}

// NewTransformSet validates and returns a transform set.
// Every map must be finite and invertible.
func NewTransformSet(transforms ...Affine) (*TransformSet, error) {
	if len(transforms) == 0 {
		return nil, ErrEmptyTransformSet
	}
	for i, m := range transforms {
		if !m.IsFinite() {
			return nil, fmt.Errorf("transform %d has non-finite coefficients: %w", i, ErrDegenerateTransformSet)
		}
		if math.Abs(m.Determinant()) < degenerateDet {
			return nil, fmt.Errorf("transform %d is singular: %w", i, ErrDegenerateTransformSet)
		}
	}
	return &TransformSet{transforms: slices.Clone(transforms)}, nil
}

// MustTransformSet is like NewTransformSet but panics on error.
// It is intended for presets and tests with known-good maps.
func MustTransformSet(transforms ...Affine) *TransformSet {
	s, err := NewTransformSet(transforms...)
	if err != nil {
		panic(err)
	}
	return s
}

// Len returns the number of maps.
func (s *TransformSet) Len() int { return len(s.transforms) }

// At returns the i-th map.
func (s *TransformSet) At(i int) Affine { return s.transforms[i] }

// Transforms returns a copy of the maps.
func (s *TransformSet) Transforms() []Affine { return slices.Clone(s.transforms) }

// Equal reports whether both sets hold the same maps in the same order.
func (s *TransformSet) Equal(o *TransformSet) bool {
	if s == nil || o == nil {
		return s == o
	}
	return slices.Equal(s.transforms, o.transforms)
}

// FixedPoints returns the fixed point of every map that has one.
// Each fixed point of a contraction lies on the attractor.
func (s *TransformSet) FixedPoints() []Point {
	pts := make([]Point, 0, len(s.transforms))
	for _, m := range s.transforms {
		if p, ok := m.FixedPoint(); ok {
			pts = append(pts, p)
		}
	}
	return pts
}

// SeedPoints returns the fixed points followed by their images under
// every composition of depth maps. All of them lie on the attractor.
func (s *TransformSet) SeedPoints(depth int) []Point {
	fixed := s.FixedPoints()
	out := slices.Clone(fixed)
	if depth <= 0 || len(fixed) == 0 {
		return out
	}
	ProcessLevels(s, Identity(), depth, func(m Affine) {
		for _, p := range fixed {
			out = append(out, m.TransformPoint(p))
		}
	})
	return out
}

// MaxScale returns the largest stretch factor over all maps.
// A value below 1 means the set is strictly contractive.
func (s *TransformSet) MaxScale() float64 {
	var m float64
	for _, t := range s.transforms {
		m = math.Max(m, t.MaxScale())
	}
	return m
}

// String implements fmt.Stringer.
func (s *TransformSet) String() string {
	return fmt.Sprintf("TransformSet(%d maps)", len(s.transforms))
}
