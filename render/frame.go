// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/anthonynsimon/bild/effect"
	"github.com/anthonynsimon/bild/histogram"
	"golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	"golang.org/x/image/tiff"

	"github.com/gogpu/flame"
)

// Stats describe the work behind a frame.
type Stats struct {
	// Draws is the number of composed maps drawn over all passes.
	Draws int

	// MaxDensity and TotalDensity summarize the final pass. They are zero
	// for backends without Capabilities.DensityStats.
	MaxDensity   float32
	TotalDensity float64

	// Elapsed is the wall time of Render.
	Elapsed time.Duration
}

// Frame is one rendered image and how it was produced.
type Frame struct {
	// Image is the tone-mapped output, viewport-sized.
	Image *image.RGBA

	// Bounds is the attractor bounding box in world coordinates.
	Bounds flame.Rect

	// Viewport is the letterboxed footprint of Bounds in Image.
	Viewport image.Rectangle

	// Plan is the pass plan the frame followed.
	Plan *flame.Plan

	// Generation is the parameter generation the frame belongs to.
	Generation uint64

	// Budget is non-nil when the plan was clamped; it matches
	// flame.ErrBudgetExceeded.
	Budget error

	// NonFinite counts output pixels whose density was NaN or infinite.
	NonFinite int

	// Stats describe the work behind the frame.
	Stats Stats

	darkest color.RGBA
}

func newFrame(job *Job, img *image.RGBA, elapsed time.Duration) *Frame {
	f := &Frame{
		Image:      img,
		Bounds:     job.Bounds,
		Viewport:   footprint(job.Bounds, job.Width, job.Height),
		Plan:       job.Plan,
		Generation: job.Generation,
		Budget:     job.Plan.Err(),
		NonFinite:  job.NonFinite,
		Stats:      job.Stats,
	}
	f.Stats.Elapsed = elapsed
	if m, err := flame.NewToneMapper(job.ToneMap); err == nil {
		f.darkest = m.Darkest()
	}
	return f
}

// footprint returns the pixels covered by bounds letterboxed into a
// width x height image. Window y grows upward, image rows downward.
func footprint(bounds flame.Rect, width, height int) image.Rectangle {
	window := flame.NewRect(0, 0, float64(width), float64(height))
	r := bounds.Transform(flame.LetterBox(window, bounds))
	const eps = 1e-6
	rect := image.Rect(
		int(math.Floor(r.Min.X+eps)),
		height-int(math.Ceil(r.Max.Y-eps)),
		int(math.Ceil(r.Max.X-eps)),
		height-int(math.Floor(r.Min.Y+eps)),
	)
	return rect.Intersect(image.Rect(0, 0, width, height))
}

// Lit returns the number of pixels inside Viewport whose colour is not
// the tone map's darkest colour.
func (f *Frame) Lit() int {
	n := 0
	for y := f.Viewport.Min.Y; y < f.Viewport.Max.Y; y++ {
		for x := f.Viewport.Min.X; x < f.Viewport.Max.X; x++ {
			if f.Image.RGBAAt(x, y) != f.darkest {
				n++
			}
		}
	}
	return n
}

// Coverage returns the fraction of Viewport pixels that are lit.
func (f *Frame) Coverage() float64 {
	area := f.Viewport.Dx() * f.Viewport.Dy()
	if area == 0 {
		return 0
	}
	return float64(f.Lit()) / float64(area)
}

// LuminanceHistogram returns the 256-bin luminance histogram of the image.
func (f *Frame) LuminanceHistogram() histogram.Histogram {
	gray := effect.Grayscale(f.Image)
	return histogram.NewRGBAHistogram(gray).R
}

// Scaled returns the image resampled to width x height with Catmull-Rom
// interpolation.
func (f *Frame) Scaled(width, height int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), f.Image, f.Image.Bounds(), draw.Src, nil)
	return dst
}

// Encode writes the image to w as "png", "tiff" or "bmp".
func (f *Frame) Encode(w io.Writer, format string) error {
	switch normalizeFormat(format) {
	case "png":
		return png.Encode(w, f.Image)
	case "tiff":
		return tiff.Encode(w, f.Image, &tiff.Options{Compression: tiff.Deflate, Predictor: true})
	case "bmp":
		return bmp.Encode(w, f.Image)
	}
	return fmt.Errorf("render: unsupported image format %q", format)
}

// Save writes the image to path in the format named by its extension.
func (f *Frame) Save(path string) (err error) {
	format := normalizeFormat(strings.TrimPrefix(filepath.Ext(path), "."))
	switch format {
	case "png", "tiff", "bmp":
	default:
		return fmt.Errorf("render: %s: unsupported image format %q", path, format)
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := file.Close(); err == nil {
			err = cerr
		}
	}()
	if err := f.Encode(file, format); err != nil {
		return fmt.Errorf("render: save %s: %w", path, err)
	}
	return nil
}

func normalizeFormat(format string) string {
	format = strings.ToLower(format)
	if format == "tif" {
		return "tiff"
	}
	return format
}
