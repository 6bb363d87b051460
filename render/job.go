// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"github.com/gogpu/flame"
)

// Job is everything a backend needs to produce one frame. The Renderer
// builds it in the BuildingInstances state; backends treat the inputs as
// read-only.
type Job struct {
	// Generation is the parameter generation the job was built for.
	Generation uint64

	// Set, Bounds and Plan describe the frame.
	Set    *flame.TransformSet
	Bounds flame.Rect
	Plan   *flame.Plan

	// Batches holds the geometry of every pass; Batches[k] is drawn by
	// pass k. Passes of the same shape share one batch.
	Batches []flame.InstanceBatch

	// SeedBatches, when set, holds quads each pass draws with constant
	// density 1 after Batches[k]. Fixed point seeding re-seeds every pass
	// this way and leaves Batches[0] empty.
	SeedBatches []flame.InstanceBatch

	// ToneMap is the resolved tone map configuration.
	ToneMap flame.ToneMapConfig

	// Width and Height are the output image size.
	Width, Height int

	// NonFinite is the number of output pixels whose density was NaN or
	// infinite, filled by backends that can count them.
	NonFinite int

	// Stats are filled by Finish where the backend supports it.
	Stats Stats
}

// Pass returns pass k of the plan.
func (j *Job) Pass(k int) flame.Pass { return j.Plan.Passes[k] }

// SeedBatch returns the seed quads of pass k, empty when the job has none.
func (j *Job) SeedBatch(k int) flame.InstanceBatch {
	if k >= len(j.SeedBatches) {
		return flame.InstanceBatch{}
	}
	return j.SeedBatches[k]
}

// batchKey identifies passes that draw identical geometry.
type batchKey struct {
	mesh, instance int
	final          bool
	width, height  int
}

func keyOf(p flame.Pass, width, height int) batchKey {
	k := batchKey{mesh: p.MeshLevels, instance: p.InstanceLevels, final: p.Final}
	if p.Final {
		k.width, k.height = width, height
	}
	return k
}
