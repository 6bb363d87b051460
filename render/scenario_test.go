// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"image"
	"math"
	"testing"

	"github.com/gogpu/flame"
)

// TestOppositeCornersScenario renders the two-map set whose attractor is
// the diagonal of [-1,1]^2. The maps' images are disjoint, so every lit
// pixel has density one and falls in a single luminance bucket. Each extra
// level halves that bucket: depth d lights 2^(d+1) squares of side
// size/2^(d+1), a power law with exponent -1 in 2^d.
func TestOppositeCornersScenario(t *testing.T) {
	const size = 256
	r := newTestRenderer(t, 0, DefaultOptions())

	counts := make([]float64, 5)
	for depth := range counts {
		f := mustRender(t, r, testParams(flame.OppositeCorners(), size, depth))
		if depth == 0 {
			b := f.Bounds
			if math.Abs(b.Width()-2) > 0.05 || math.Abs(b.Height()-2) > 0.05 {
				t.Fatalf("bounds %v-%v, want side about 2", b.Min, b.Max)
			}
			if f.Viewport != image.Rect(0, 0, size, size) {
				t.Errorf("Viewport = %v, want the whole image", f.Viewport)
			}
		}

		h := f.LuminanceHistogram()
		total, lit, peak := 0, 0, 0
		for i, n := range h.Bins {
			total += n
			if i == 0 {
				continue
			}
			lit += n
			peak = max(peak, n)
		}
		if total != size*size {
			t.Fatalf("depth %d: histogram holds %d pixels, want %d", depth, total, size*size)
		}
		if lit == 0 || float64(peak) < 0.9*float64(lit) {
			t.Errorf("depth %d: brightest bucket holds %d of %d lit pixels, want one dominant level",
				depth, peak, lit)
		}
		counts[depth] = float64(peak)
	}

	for depth, n := range counts {
		want := float64(size*size) / math.Exp2(float64(depth+1))
		if math.Abs(n-want) > 0.1*want {
			t.Errorf("depth %d: bucket holds %.0f pixels, want about %.0f", depth, n, want)
		}
		if depth == 0 {
			continue
		}
		if ratio := n / counts[depth-1]; ratio < 0.35 || ratio > 0.65 {
			t.Errorf("depth %d: bucket ratio %.3f, want geometric decay near 0.5", depth, ratio)
		}
	}

	// Least-squares slope of log2(count) against depth.
	var sx, sy, sxx, sxy float64
	for d, n := range counts {
		x, y := float64(d), math.Log2(n)
		sx += x
		sy += y
		sxx += x * x
		sxy += x * y
	}
	k := float64(len(counts))
	if slope := (k*sxy - sx*sy) / (k*sxx - sx*sx); slope < -1.15 || slope > -0.85 {
		t.Errorf("log2 bucket slope %.3f, want about -1", slope)
	}
}

// TestOppositeCornersDiagonal checks that only pixels near the diagonal
// are lit at K = 4.
func TestOppositeCornersDiagonal(t *testing.T) {
	const size = 128
	r := newTestRenderer(t, 1, DefaultOptions())
	f := mustRender(t, r, testParams(flame.OppositeCorners(), size, 4))

	// 32 squares of 4x4 pixels.
	side := size / 32
	for y := range size {
		for x := range size {
			lit := f.Image.RGBAAt(x, y) != f.darkest
			// Row 0 is the top of the image, where the (1,1) corner lies.
			onDiagonal := x/side == (size-1-y)/side
			if lit && !onDiagonal && nearCellEdge(x, y, side) {
				continue
			}
			if lit != onDiagonal && !nearCellEdge(x, y, side) {
				t.Fatalf("pixel (%d,%d): lit = %v, want %v", x, y, lit, onDiagonal)
			}
		}
	}
}

func nearCellEdge(x, y, side int) bool {
	dx, dy := x%side, y%side
	return dx == 0 || dx == side-1 || dy == 0 || dy == side-1
}
