package flame

import (
	"fmt"
	"math"
)

// Polygon limits, matching the interactive settings ranges.
const (
	MinPolygonSides = 3
	MaxPolygonSides = 10
	MaxPolygonScale = 0.8
)

// PolygonParams configures the Polygon preset.
type PolygonParams struct {
	// Sides is the number of maps, one per polygon vertex (3..10).
	Sides int

	// Scale is the uniform scale of each map (|Scale| <= 0.8, non-zero).
	// Negative values mirror through the origin.
	Scale float64

	// Shift is the distance of each map's offset from the origin.
	Shift float64

	// Rotation is applied to the input of every map (radians).
	Rotation float64

	// Twist adds extra rotation to the first two maps, breaking the
	// polygon's symmetry.
	Twist [2]float64
}

// DefaultPolygonParams returns a triangle with scale 0.5 and shift 0.5.
func DefaultPolygonParams() PolygonParams {
	return PolygonParams{Sides: 3, Scale: 0.5, Shift: 0.5}
}

// Polygon builds one map per polygon vertex: each map rotates its input,
// moves it out to the vertex at distance Shift and scales the result.
func Polygon(p PolygonParams) (*TransformSet, error) {
	if p.Sides < MinPolygonSides || p.Sides > MaxPolygonSides {
		return nil, fmt.Errorf("polygon sides %d outside [%d, %d]", p.Sides, MinPolygonSides, MaxPolygonSides)
	}
	if p.Scale == 0 || math.Abs(p.Scale) > MaxPolygonScale {
		return nil, fmt.Errorf("polygon scale %g outside [-%g, %g] or zero", p.Scale, MaxPolygonScale, MaxPolygonScale)
	}
	maps := make([]Affine, p.Sides)
	for i := range maps {
		angle := 2 * math.Pi * float64(i) / float64(p.Sides)
		offset := Point{X: p.Shift}.Rotate(angle)
		rot := p.Rotation
		if i < len(p.Twist) {
			rot += p.Twist[i]
		}
		maps[i] = Scale(p.Scale, p.Scale).
			Multiply(Translate(offset.X, offset.Y)).
			Multiply(Rotate(rot))
	}
	return NewTransformSet(maps...)
}

// Sierpinski returns the three half-scale maps of the Sierpinski triangle
// with corners (0,0), (1,0) and (0.5, sqrt(3)/2).
func Sierpinski() *TransformSet {
	h := math.Sqrt(3) / 2
	return MustTransformSet(
		NewAffine(0.5, 0, 0, 0, 0.5, 0),
		NewAffine(0.5, 0, 0.5, 0, 0.5, 0),
		NewAffine(0.5, 0, 0.25, 0, 0.5, h/2),
	)
}

// OppositeCorners returns two half-scale maps towards (-1,-1) and (1,1).
// The attractor is the diagonal segment between those corners.
func OppositeCorners() *TransformSet {
	return MustTransformSet(
		NewAffine(0.5, 0, -0.5, 0, 0.5, -0.5),
		NewAffine(0.5, 0, 0.5, 0, 0.5, 0.5),
	)
}

// Quadrants returns four half-scale maps that tile the unit square.
// The attractor is the filled square [0,1]x[0,1].
func Quadrants() *TransformSet {
	return MustTransformSet(
		NewAffine(0.5, 0, 0, 0, 0.5, 0),
		NewAffine(0.5, 0, 0.5, 0, 0.5, 0),
		NewAffine(0.5, 0, 0, 0, 0.5, 0.5),
		NewAffine(0.5, 0, 0.5, 0, 0.5, 0.5),
	)
}
