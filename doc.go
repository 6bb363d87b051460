// Package flame renders affine fractal flames (iterated function system
// attractors) with a recursive multi-pass accumulation pipeline.
//
// # Overview
//
// A flame is described by a [TransformSet]: a short list of contractive
// affine maps. Instead of iterating random points (the chaos game), flame
// draws the whole density field once per level. Pass k samples the output of
// pass k-1 through every composed transform and adds the results, so after
// K+1 passes the buffer holds the visit counts of all compositions of
// depth (K+1)*LevelsPerPass. Each pass runs at a higher resolution than the
// one before it, which keeps early passes cheap.
//
// # Quick Start
//
//	set := flame.Sierpinski()
//	bounds, err := flame.ComputeBounds(set, flame.DefaultBoundsOptions())
//	if err != nil {
//	    return err
//	}
//	plan, err := flame.NewPlan(flame.PlanConfig{Width: 800, Height: 600, Depth: 8}, set.Len(), bounds)
//
// The render package drives these pieces through a state machine and
// executes the plan on the GPU (gogpu/wgpu) or on the CPU.
//
// # Architecture
//
// The root package holds the math and data model:
//   - Geometry: Affine, Point, Rect
//   - Model: TransformSet, presets (Polygon, Sierpinski, ...)
//   - Planning: ComputeBounds, NewPlan, BuildBatch
//   - Output: ToneMapper, Gradient, RGBA
//
// Executors live in render/ (public) and internal/gpu, internal/raster.
//
// # Logging
//
// flame is silent by default. Call [SetLogger] to route diagnostics to a
// [log/slog] logger.
package flame
