// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/gogpu/flame"
	"github.com/gogpu/flame/internal/parallel"
	"github.com/gogpu/flame/internal/raster"
)

// ErrBackendClosed is returned when using a closed backend.
var ErrBackendClosed = errors.New("render: backend closed")

// SoftwareBackend is a CPU backend that mirrors the GPU pipeline.
//
// Each pass rasterizes the batch triangles at pixel centres with a
// top-left fill rule, samples the previous buffer at the interpolated
// texture coordinate (clamp-to-edge, nearest or bilinear at texel
// centres) and adds the result in float32. Row bands run on a worker
// pool; within a pixel, triangles are summed in batch order, so the output
// does not depend on the number of workers.
//
// Example:
//
//	backend := render.NewSoftwareBackend(0) // GOMAXPROCS workers
//	r, _ := render.NewRenderer(backend, render.DefaultOptions())
//	defer r.Close()
type SoftwareBackend struct {
	pool   *parallel.WorkerPool
	slots  [2]*raster.Density
	last   *raster.Density
	closed bool
}

// NewSoftwareBackend creates a CPU backend with the given number of
// workers. Zero or negative uses GOMAXPROCS; 1 runs passes on the calling
// goroutine.
func NewSoftwareBackend(workers int) *SoftwareBackend {
	b := &SoftwareBackend{
		slots: [2]*raster.Density{raster.NewDensity(0, 0), raster.NewDensity(0, 0)},
	}
	if workers != 1 {
		b.pool = parallel.NewWorkerPool(workers)
	}
	return b
}

// Name returns "software".
func (b *SoftwareBackend) Name() string { return "software" }

// Capabilities returns the backend's capabilities.
func (b *SoftwareBackend) Capabilities() Capabilities {
	return Capabilities{
		IsGPU:           false,
		LinearFiltering: true,
		DensityStats:    true,
	}
}

// Prepare forgets the previous job.
func (b *SoftwareBackend) Prepare(job *Job) error {
	if b.closed {
		return ErrBackendClosed
	}
	if n := len(job.SeedBatches); n != 0 && n != len(job.Plan.Passes) {
		return fmt.Errorf("job has %d seed batches for %d passes", n, len(job.Plan.Passes))
	}
	b.last = nil
	return nil
}

// Pass accumulates pass k into slot k%2, reading slot (k-1)%2, then adds
// the pass's seed quads.
func (b *SoftwareBackend) Pass(ctx context.Context, job *Job, k int) error {
	if b.closed {
		return ErrBackendClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	p := job.Pass(k)

	var src *raster.Density
	if k > 0 {
		src = b.slots[(k-1)%2]
		if b.last != src {
			return fmt.Errorf("pass %d issued before pass %d", k, k-1)
		}
	}

	dst := b.slots[k%2]
	dst.Resize(p.Width, p.Height)
	raster.Accumulate(dst, src, p.Filter, job.Batches[k], b.pool)
	raster.Draw(dst, nil, p.Filter, job.SeedBatch(k), b.pool)
	b.last = dst
	return nil
}

// Finish tone maps the last pass into a viewport-sized image and records
// density statistics on the job.
func (b *SoftwareBackend) Finish(ctx context.Context, job *Job) (*image.RGBA, error) {
	if b.closed {
		return nil, ErrBackendClosed
	}
	if b.last == nil {
		return nil, errors.New("finish before any pass")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m, err := flame.NewToneMapper(job.ToneMap)
	if err != nil {
		return nil, err
	}

	img := image.NewRGBA(image.Rect(0, 0, job.Width, job.Height))
	job.NonFinite = raster.ToneMap(img, b.last, m, b.pool)
	job.Stats.MaxDensity, job.Stats.TotalDensity, _ = b.last.Stats()
	b.last = nil
	return img, nil
}

// Abort forgets the job in progress.
func (b *SoftwareBackend) Abort() {
	b.last = nil
}

// Close stops the worker pool. Safe to call more than once.
func (b *SoftwareBackend) Close() error {
	if b.closed {
		return nil
	}
	b.closed = true
	if b.pool != nil {
		b.pool.Close()
	}
	return nil
}
