package flame

import "math"

// degenerateDet is the determinant magnitude below which an affine map is
// treated as singular.
const degenerateDet = 1e-12

// Affine represents a 2D affine transformation in row-major 2x3 form:
//
//	| a  b  c |
//	| d  e  f |
//
// which maps
//
//	x' = a*x + b*y + c
//	y' = d*x + e*y + f
type Affine struct {
	A, B, C float64
	D, E, F float64
}

// NewAffine returns the transformation with the given coefficients.
func NewAffine(a, b, c, d, e, f float64) Affine {
	return Affine{A: a, B: b, C: c, D: d, E: e, F: f}
}

// Identity returns the identity transformation.
func Identity() Affine {
	return Affine{A: 1, E: 1}
}

// Translate creates a translation.
func Translate(x, y float64) Affine {
	return Affine{A: 1, C: x, E: 1, F: y}
}

// Scale creates a scaling transformation.
func Scale(x, y float64) Affine {
	return Affine{A: x, E: y}
}

// Rotate creates a rotation (angle in radians, counter-clockwise).
func Rotate(angle float64) Affine {
	sin, cos := math.Sincos(angle)
	return Affine{
		A: cos, B: -sin,
		D: sin, E: cos,
	}
}

// Shear creates a shear transformation.
func Shear(x, y float64) Affine {
	return Affine{A: 1, B: x, D: y, E: 1}
}

// Similarity returns a uniform scale by s followed by a rotation by angle
// and a translation by (tx, ty).
func Similarity(s, angle, tx, ty float64) Affine {
	return Translate(tx, ty).Multiply(Rotate(angle)).Multiply(Scale(s, s))
}

// Multiply returns m * other: other is applied first, then m.
func (m Affine) Multiply(other Affine) Affine {
	return Affine{
		A: m.A*other.A + m.B*other.D,
		B: m.A*other.B + m.B*other.E,
		C: m.A*other.C + m.B*other.F + m.C,
		D: m.D*other.A + m.E*other.D,
		E: m.D*other.B + m.E*other.E,
		F: m.D*other.C + m.E*other.F + m.F,
	}
}

// TransformPoint applies the transformation to a point.
func (m Affine) TransformPoint(p Point) Point {
	return Point{
		X: m.A*p.X + m.B*p.Y + m.C,
		Y: m.D*p.X + m.E*p.Y + m.F,
	}
}

// TransformVector applies the transformation to a vector (no translation).
func (m Affine) TransformVector(p Point) Point {
	return Point{
		X: m.A*p.X + m.B*p.Y,
		Y: m.D*p.X + m.E*p.Y,
	}
}

// Determinant returns the determinant of the linear part.
func (m Affine) Determinant() float64 {
	return m.A*m.E - m.B*m.D
}

// Invert returns the inverse transformation.
// ok is false when the transformation is singular.
func (m Affine) Invert() (inv Affine, ok bool) {
	det := m.Determinant()
	if math.Abs(det) < degenerateDet || !m.IsFinite() {
		return Identity(), false
	}
	invDet := 1.0 / det
	return Affine{
		A: m.E * invDet,
		B: -m.B * invDet,
		C: (m.B*m.F - m.C*m.E) * invDet,
		D: -m.D * invDet,
		E: m.A * invDet,
		F: (m.C*m.D - m.A*m.F) * invDet,
	}, true
}

// FixedPoint returns the point p with m(p) = p.
// ok is false when m-I is singular (pure translations, the identity, or
// maps with eigenvalue 1).
func (m Affine) FixedPoint() (p Point, ok bool) {
	// (A-1) x + B y = -C
	// D x + (E-1) y = -F
	a, b, d, e := m.A-1, m.B, m.D, m.E-1
	det := a*e - b*d
	if math.Abs(det) < degenerateDet {
		return Point{}, false
	}
	return Point{
		X: (-m.C*e + b*m.F) / det,
		Y: (-a*m.F + m.C*d) / det,
	}, true
}

// MaxScale returns the largest singular value of the linear part, the
// maximum factor by which m stretches any vector.
func (m Affine) MaxScale() float64 {
	// Singular values of [[A B][D E]] from the eigenvalues of M^T M.
	p := m.A*m.A + m.D*m.D
	q := m.A*m.B + m.D*m.E
	r := m.B*m.B + m.E*m.E
	mean := (p + r) / 2
	diff := math.Sqrt(((p-r)/2)*((p-r)/2) + q*q)
	return math.Sqrt(mean + diff)
}

// IsIdentity returns true if m is exactly the identity.
func (m Affine) IsIdentity() bool {
	return m == Identity()
}

// IsFinite reports whether every coefficient is finite.
func (m Affine) IsFinite() bool {
	for _, v := range [...]float64{m.A, m.B, m.C, m.D, m.E, m.F} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// ApproxEqual reports whether every coefficient differs by at most tol.
func (m Affine) ApproxEqual(o Affine, tol float64) bool {
	return math.Abs(m.A-o.A) <= tol && math.Abs(m.B-o.B) <= tol &&
		math.Abs(m.C-o.C) <= tol && math.Abs(m.D-o.D) <= tol &&
		math.Abs(m.E-o.E) <= tol && math.Abs(m.F-o.F) <= tol
}

// Rows packs m as the two per-instance shader rows:
// row0 = [A, B, C, 0], row1 = [D, E, F, 0].
func (m Affine) Rows() (row0, row1 [4]float32) {
	row0 = [4]float32{float32(m.A), float32(m.B), float32(m.C), 0}
	row1 = [4]float32{float32(m.D), float32(m.E), float32(m.F), 0}
	return row0, row1
}
