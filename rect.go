package flame

import "math"

// Rect is an axis-aligned rectangle in world coordinates (y up).
// A Rect with Min == Max is a point box.
type Rect struct {
	Min, Max Point
}

// NewRect returns the rectangle spanning (x0, y0) and (x1, y1) in any order.
func NewRect(x0, y0, x1, y1 float64) Rect {
	return Rect{
		Min: Point{X: math.Min(x0, x1), Y: math.Min(y0, y1)},
		Max: Point{X: math.Max(x0, x1), Y: math.Max(y0, y1)},
	}
}

// RectFromPoint returns the zero-size box at p.
func RectFromPoint(p Point) Rect {
	return Rect{Min: p, Max: p}
}

// Width returns the horizontal extent.
func (r Rect) Width() float64 { return r.Max.X - r.Min.X }

// Height returns the vertical extent.
func (r Rect) Height() float64 { return r.Max.Y - r.Min.Y }

// Area returns Width*Height.
func (r Rect) Area() float64 { return r.Width() * r.Height() }

// Aspect returns Width/Height, or 0 for a box without height.
func (r Rect) Aspect() float64 {
	if r.Height() == 0 {
		return 0
	}
	return r.Width() / r.Height()
}

// Center returns the midpoint.
func (r Rect) Center() Point { return r.Min.Lerp(r.Max, 0.5) }

// Corners returns the corners in the order min, (min.x, max.y), max,
// (max.x, min.y). Mesh triangles index this order as 0,1,2 and 0,2,3.
func (r Rect) Corners() [4]Point {
	return [4]Point{
		r.Min,
		{X: r.Min.X, Y: r.Max.Y},
		r.Max,
		{X: r.Max.X, Y: r.Min.Y},
	}
}

// UnionPoint returns the smallest box containing r and p.
func (r Rect) UnionPoint(p Point) Rect {
	return Rect{Min: minPoint(r.Min, p), Max: maxPoint(r.Max, p)}
}

// Union returns the smallest box containing r and o.
func (r Rect) Union(o Rect) Rect {
	return Rect{Min: minPoint(r.Min, o.Min), Max: maxPoint(r.Max, o.Max)}
}

// Contains reports whether o lies inside r (boundaries inclusive).
func (r Rect) Contains(o Rect) bool {
	return r.Min.X <= o.Min.X && r.Min.Y <= o.Min.Y &&
		r.Max.X >= o.Max.X && r.Max.Y >= o.Max.Y
}

// ContainsPoint reports whether p lies inside r (boundaries inclusive).
func (r Rect) ContainsPoint(p Point) bool {
	return r.Contains(RectFromPoint(p))
}

// Grow expands every side by size*portion/2, so the width and height grow
// by the given portion of themselves.
func (r Rect) Grow(portion float64) Rect {
	d := Point{X: r.Width() * portion / 2, Y: r.Height() * portion / 2}
	return Rect{Min: r.Min.Sub(d), Max: r.Max.Add(d)}
}

// IsFinite reports whether both corners are finite.
func (r Rect) IsFinite() bool {
	return r.Min.IsFinite() && r.Max.IsFinite()
}

// HasArea reports whether r is finite with positive width and height.
func (r Rect) HasArea() bool {
	return r.IsFinite() && r.Width() > 0 && r.Height() > 0
}

// Transform returns the bounding box of r's corners mapped through m.
// For an affine map this bounds the image of the whole rectangle.
func (r Rect) Transform(m Affine) Rect {
	c := r.Corners()
	out := RectFromPoint(m.TransformPoint(c[0]))
	for _, p := range c[1:] {
		out = out.UnionPoint(m.TransformPoint(p))
	}
	return out
}

// BoxToBox returns the map that takes from onto to, scaling each axis
// independently. from must have area.
func BoxToBox(from, to Rect) Affine {
	sx := to.Width() / from.Width()
	sy := to.Height() / from.Height()
	return Affine{
		A: sx, C: to.Min.X - from.Min.X*sx,
		E: sy, F: to.Min.Y - from.Min.Y*sy,
	}
}

// LetterBox returns the map that fits content inside container with a
// uniform scale, centred, preserving content's aspect ratio.
func LetterBox(container, content Rect) Affine {
	s := math.Min(container.Width()/content.Width(), container.Height()/content.Height())
	cc := content.Center()
	tc := container.Center()
	return Translate(tc.X, tc.Y).Multiply(Scale(s, s)).Multiply(Translate(-cc.X, -cc.Y))
}
