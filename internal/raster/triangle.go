package raster

import (
	"math"

	"github.com/gogpu/flame"
)

// triangle is a screen-space triangle (pixels, y down) with per-vertex
// texture coordinates, oriented so that area is positive.
type triangle struct {
	x, y   [3]float64
	uv     [3][2]float64
	area   float64
	minY   int
	maxY   int // exclusive
	minX   int
	maxX   int // exclusive
	owned  [3]bool
	edgeDX [3]float64
	edgeDY [3]float64
}

// edge evaluates the edge function of (x0,y0)->(x1,y1) at (px, py).
func edge(x0, y0, x1, y1, px, py float64) float64 {
	return (x1-x0)*(py-y0) - (y1-y0)*(px-x0)
}

// setupTriangles expands a batch into screen-space triangles on a
// width x height target. Clip space maps to pixels as
// x = (cx+1)/2*width, y = (1-cy)/2*height.
func setupTriangles(batch flame.InstanceBatch, width, height int) []triangle {
	tris := make([]triangle, 0, len(batch.Instances)*len(batch.Vertices)/3)
	w, h := float64(width), float64(height)
	for _, in := range batch.Instances {
		for i := 0; i+2 < len(batch.Vertices); i += 3 {
			var t triangle
			for j := range 3 {
				v := batch.Vertices[i+j]
				cx, cy := in.Apply(v.Position[0], v.Position[1])
				t.x[j] = (float64(cx) + 1) / 2 * w
				t.y[j] = (1 - float64(cy)) / 2 * h
				t.uv[j] = [2]float64{float64(v.UV[0]), float64(v.UV[1])}
			}
			if t.setup(width, height) {
				tris = append(tris, t)
			}
		}
	}
	return tris
}

// setup orients the triangle, computes its pixel bounding box and the
// tie-break ownership of each edge. It reports false for triangles that
// cover no pixel centre of the target.
func (t *triangle) setup(width, height int) bool {
	t.area = edge(t.x[0], t.y[0], t.x[1], t.y[1], t.x[2], t.y[2])
	if t.area == 0 || math.IsNaN(t.area) || math.IsInf(t.area, 0) {
		return false
	}
	if t.area < 0 {
		t.x[1], t.x[2] = t.x[2], t.x[1]
		t.y[1], t.y[2] = t.y[2], t.y[1]
		t.uv[1], t.uv[2] = t.uv[2], t.uv[1]
		t.area = -t.area
	}

	// Edge j is opposite vertex j: (j+1) -> (j+2).
	for j := range 3 {
		a, b := (j+1)%3, (j+2)%3
		dx, dy := t.x[b]-t.x[a], t.y[b]-t.y[a]
		t.edgeDX[j], t.edgeDY[j] = dx, dy
		// Exactly one of two triangles sharing an edge (walking it in
		// opposite directions) owns the pixel centres on it.
		t.owned[j] = dy < 0 || (dy == 0 && dx > 0)
	}

	minX := math.Min(t.x[0], math.Min(t.x[1], t.x[2]))
	maxX := math.Max(t.x[0], math.Max(t.x[1], t.x[2]))
	minY := math.Min(t.y[0], math.Min(t.y[1], t.y[2]))
	maxY := math.Max(t.y[0], math.Max(t.y[1], t.y[2]))

	// Pixel i has its centre at i+0.5.
	t.minX = max(0, int(math.Ceil(minX-0.5)))
	t.maxX = min(width, int(math.Floor(maxX-0.5))+1)
	t.minY = max(0, int(math.Ceil(minY-0.5)))
	t.maxY = min(height, int(math.Floor(maxY-0.5))+1)
	return t.minX < t.maxX && t.minY < t.maxY
}

// cover returns the texture coordinate at the centre of pixel (x, y) and
// whether the triangle covers that centre.
func (t *triangle) cover(x, y int) (u, v float32, ok bool) {
	px, py := float64(x)+0.5, float64(y)+0.5
	var w [3]float64
	for j := range 3 {
		a := (j + 1) % 3
		w[j] = t.edgeDX[j]*(py-t.y[a]) - t.edgeDY[j]*(px-t.x[a])
		if w[j] < 0 || (w[j] == 0 && !t.owned[j]) {
			return 0, 0, false
		}
	}
	l0, l1, l2 := w[0]/t.area, w[1]/t.area, w[2]/t.area
	u = float32(l0*t.uv[0][0] + l1*t.uv[1][0] + l2*t.uv[2][0])
	v = float32(l0*t.uv[0][1] + l1*t.uv[1][1] + l2*t.uv[2][1])
	return u, v, true
}
