// Package raster is the CPU executor for accumulation passes. It mirrors
// the GPU pipeline: float32 density buffers, pixel-centre triangle
// coverage, clamp-to-edge texture sampling and additive blending.
package raster

import (
	"github.com/chewxy/math32"

	"github.com/gogpu/flame"
)

// Density is a single-channel float32 buffer, the CPU counterpart of an
// R32Float iteration texture. Row 0 is the top row.
type Density struct {
	Width, Height int
	Pix           []float32
}

// NewDensity allocates a zeroed buffer.
func NewDensity(width, height int) *Density {
	return &Density{Width: width, Height: height, Pix: make([]float32, width*height)}
}

// Resize changes the buffer size, reusing storage when it is large
// enough, and clears it.
func (d *Density) Resize(width, height int) {
	n := width * height
	if cap(d.Pix) < n {
		d.Pix = make([]float32, n)
	} else {
		d.Pix = d.Pix[:n]
		d.Clear()
	}
	d.Width, d.Height = width, height
}

// Clear zeroes every texel.
func (d *Density) Clear() {
	clear(d.Pix)
}

// At returns the texel at (x, y).
func (d *Density) At(x, y int) float32 {
	return d.Pix[y*d.Width+x]
}

// Set stores v at (x, y).
func (d *Density) Set(x, y int, v float32) {
	d.Pix[y*d.Width+x] = v
}

// Stats returns the largest finite texel, the sum of finite texels and the
// number of NaN or infinite texels.
func (d *Density) Stats() (maxV float32, sum float64, nonFinite int) {
	for _, v := range d.Pix {
		if !flame.IsFiniteDensity(v) {
			nonFinite++
			continue
		}
		maxV = math32.Max(maxV, v)
		sum += float64(v)
	}
	return maxV, sum, nonFinite
}

// Sample reads the buffer at normalized coordinates (u, v) with
// clamp-to-edge addressing. Texel centres sit at (i+0.5)/size, as on the
// GPU.
func (d *Density) Sample(u, v float32, filter flame.Filter) float32 {
	if filter == flame.FilterNearest {
		x := clampInt(int(math32.Floor(u*float32(d.Width))), d.Width)
		y := clampInt(int(math32.Floor(v*float32(d.Height))), d.Height)
		return d.At(x, y)
	}

	fx := u*float32(d.Width) - 0.5
	fy := v*float32(d.Height) - 0.5
	x0f, y0f := math32.Floor(fx), math32.Floor(fy)
	tx, ty := fx-x0f, fy-y0f
	x0, y0 := int(x0f), int(y0f)
	xa, xb := clampInt(x0, d.Width), clampInt(x0+1, d.Width)
	ya, yb := clampInt(y0, d.Height), clampInt(y0+1, d.Height)

	top := lerp(d.At(xa, ya), d.At(xb, ya), tx)
	bottom := lerp(d.At(xa, yb), d.At(xb, yb), tx)
	return lerp(top, bottom, ty)
}

func lerp(a, b, t float32) float32 {
	return a + t*(b-a)
}

func clampInt(i, n int) int {
	return max(0, min(i, n-1))
}
