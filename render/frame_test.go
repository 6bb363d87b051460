// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"bytes"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"github.com/gogpu/flame"
)

func TestFootprint(t *testing.T) {
	tests := []struct {
		name   string
		bounds flame.Rect
		w, h   int
		want   image.Rectangle
	}{
		{"square in square", flame.NewRect(-1, -1, 1, 1), 64, 64, image.Rect(0, 0, 64, 64)},
		{"square in wide", flame.NewRect(0, 0, 1, 1), 200, 100, image.Rect(50, 0, 150, 100)},
		{"square in tall", flame.NewRect(0, 0, 1, 1), 100, 200, image.Rect(0, 50, 100, 150)},
		{"wide in square", flame.NewRect(0, 0, 2, 1), 100, 100, image.Rect(0, 25, 100, 75)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := footprint(tt.bounds, tt.w, tt.h); got != tt.want {
				t.Errorf("footprint() = %v, want %v", got, tt.want)
			}
		})
	}
}

func testFrame(t *testing.T) *Frame {
	t.Helper()
	r := newTestRenderer(t, 1, DefaultOptions())
	p := testParams(flame.Sierpinski(), 48, 2)
	p.Height = 32
	return mustRender(t, r, p)
}

func TestFrameCoverage(t *testing.T) {
	f := testFrame(t)
	c := f.Coverage()
	if c <= 0 || c >= 1 {
		t.Errorf("Coverage() = %v, want in (0, 1)", c)
	}
	if f.Lit() == 0 {
		t.Error("Lit() = 0")
	}

	empty := &Frame{Image: image.NewRGBA(image.Rect(0, 0, 4, 4))}
	if empty.Coverage() != 0 {
		t.Errorf("Coverage() of empty viewport = %v", empty.Coverage())
	}
}

func TestFrameLuminanceHistogram(t *testing.T) {
	f := testFrame(t)
	h := f.LuminanceHistogram()
	if len(h.Bins) != 256 {
		t.Fatalf("len(Bins) = %d, want 256", len(h.Bins))
	}
	total := 0
	for _, n := range h.Bins {
		total += n
	}
	if total != 48*32 {
		t.Errorf("histogram counts %d pixels, want %d", total, 48*32)
	}
	if h.Bins[0] == 0 {
		t.Error("no black pixels outside the attractor")
	}
}

func TestFrameScaled(t *testing.T) {
	f := testFrame(t)
	s := f.Scaled(96, 64)
	if s.Bounds() != image.Rect(0, 0, 96, 64) {
		t.Errorf("Scaled() bounds = %v", s.Bounds())
	}
}

func TestFrameEncode(t *testing.T) {
	f := testFrame(t)
	decoders := map[string]func(*bytes.Reader) (image.Image, error){
		"png":  func(r *bytes.Reader) (image.Image, error) { return png.Decode(r) },
		"tiff": func(r *bytes.Reader) (image.Image, error) { return tiff.Decode(r) },
		"bmp":  func(r *bytes.Reader) (image.Image, error) { return bmp.Decode(r) },
	}
	for format, decode := range decoders {
		t.Run(format, func(t *testing.T) {
			var buf bytes.Buffer
			if err := f.Encode(&buf, format); err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			img, err := decode(bytes.NewReader(buf.Bytes()))
			if err != nil {
				t.Fatalf("decode error = %v", err)
			}
			if img.Bounds().Size() != f.Image.Bounds().Size() {
				t.Errorf("decoded size %v, want %v", img.Bounds().Size(), f.Image.Bounds().Size())
			}
		})
	}
	if err := f.Encode(&bytes.Buffer{}, "gif"); err == nil {
		t.Error("Encode(gif) should fail")
	}
}

func TestFrameSave(t *testing.T) {
	f := testFrame(t)
	dir := t.TempDir()

	path := filepath.Join(dir, "flame.PNG")
	if err := f.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if info, err := os.Stat(path); err != nil || info.Size() == 0 {
		t.Errorf("saved file: %v, %v", info, err)
	}

	bad := filepath.Join(dir, "flame.jpg")
	if err := f.Save(bad); err == nil {
		t.Error("Save(.jpg) should fail")
	}
	if _, err := os.Stat(bad); !os.IsNotExist(err) {
		t.Error("Save(.jpg) created a file")
	}
}
