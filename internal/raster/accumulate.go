package raster

import (
	"image"

	"github.com/gogpu/flame"
	"github.com/gogpu/flame/internal/parallel"
)

// Accumulate clears dst and draws every triangle of batch into it with
// additive blending. Each covered pixel centre adds src sampled at the
// interpolated texture coordinate, or 1 when src is nil.
//
// Triangles are blended in batch order within each pixel, so the result
// does not depend on the number of workers. A nil pool runs on the
// calling goroutine.
func Accumulate(dst, src *Density, filter flame.Filter, batch flame.InstanceBatch, pool *parallel.WorkerPool) {
	dst.Clear()
	Draw(dst, src, filter, batch, pool)
}

// Draw is Accumulate without the clear: it adds batch on top of dst.
func Draw(dst, src *Density, filter flame.Filter, batch flame.InstanceBatch, pool *parallel.WorkerPool) {
	tris := setupTriangles(batch, dst.Width, dst.Height)
	if len(tris) == 0 {
		return
	}

	run := func(b parallel.Band) {
		for i := range tris {
			t := &tris[i]
			y0, y1 := max(b.Y0, t.minY), min(b.Y1, t.maxY)
			for y := y0; y < y1; y++ {
				row := dst.Pix[y*dst.Width : (y+1)*dst.Width]
				for x := t.minX; x < t.maxX; x++ {
					u, v, ok := t.cover(x, y)
					if !ok {
						continue
					}
					if src == nil {
						row[x]++
					} else {
						row[x] += src.Sample(u, v, filter)
					}
				}
			}
		}
	}

	if pool == nil {
		run(parallel.Band{Y0: 0, Y1: dst.Height})
		return
	}
	pool.ForEachBand(dst.Height, run)
}

// ToneMap resolves src into dst through m. Each pixel of dst samples src
// at its centre with linear filtering, so src may have any size. It
// returns the number of pixels whose density was NaN or infinite.
func ToneMap(dst *image.RGBA, src *Density, m flame.ToneMapper, pool *parallel.WorkerPool) int {
	b := dst.Bounds()
	w, h := b.Dx(), b.Dy()
	counts := make([]int, h)

	run := func(band parallel.Band) {
		for y := band.Y0; y < band.Y1; y++ {
			v := (float32(y) + 0.5) / float32(h)
			off := dst.PixOffset(b.Min.X, b.Min.Y+y)
			for x := range w {
				u := (float32(x) + 0.5) / float32(w)
				d := src.Sample(u, v, flame.FilterLinear)
				if !flame.IsFiniteDensity(d) {
					counts[y]++
				}
				c := m.Map(d)
				px := dst.Pix[off+4*x : off+4*x+4 : off+4*x+4]
				px[0], px[1], px[2], px[3] = c.R, c.G, c.B, c.A
			}
		}
	}

	if pool == nil {
		run(parallel.Band{Y0: 0, Y1: h})
	} else {
		pool.ForEachBand(h, run)
	}

	nonFinite := 0
	for _, n := range counts {
		nonFinite += n
	}
	return nonFinite
}
