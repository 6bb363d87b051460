// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"context"
	"image"
)

// Backend executes the passes of a Job.
//
// The Renderer drives a backend through one job at a time:
//
//	Prepare(job)
//	Pass(ctx, job, 0) ... Pass(ctx, job, K)
//	Finish(ctx, job)
//
// Abort may be called instead of any remaining step; it discards
// everything recorded for the job. Two implementations are provided:
//
//   - SoftwareBackend: CPU rasterization on a worker pool
//   - GPUBackend: WebGPU render passes through wgpu's hal layer
//
// Thread Safety: Backends are NOT thread-safe. The Renderer serializes
// all calls.
type Backend interface {
	// Name identifies the backend in logs, e.g. "software" or "gpu".
	Name() string

	// Capabilities reports what the backend supports.
	Capabilities() Capabilities

	// Prepare allocates what the job needs before its first pass.
	Prepare(job *Job) error

	// Pass accumulates pass k of the job. Passes are issued in order.
	Pass(ctx context.Context, job *Job, k int) error

	// Finish tone maps the last pass into a viewport-sized image.
	// Backends may fill job.NonFinite and job.Stats.
	Finish(ctx context.Context, job *Job) (*image.RGBA, error)

	// Abort discards the job in progress.
	Abort()

	// Close releases all resources. The backend is unusable afterwards.
	Close() error
}

// Capabilities describes the features supported by a backend.
type Capabilities struct {
	// IsGPU indicates if this is a GPU-accelerated backend.
	IsGPU bool

	// LinearFiltering indicates that FilterLinear reads interpolate.
	// Backends without it read every buffer with FilterNearest.
	LinearFiltering bool

	// DensityStats indicates that Finish reports density statistics and
	// non-finite counts.
	DensityStats bool

	// MaxTextureSize is the maximum texture dimension (0 = unlimited).
	MaxTextureSize int
}
