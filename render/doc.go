// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package render is the recursive multi-pass renderer for affine fractal
// flames.
//
// A frame is produced by a chain of accumulation passes. Pass k draws the
// images of the bounds box under every composition of the transform set
// and samples the density written by pass k-1, so after K+1 passes each
// pixel holds the number of ways it is reached by compositions of depth
// (K+1) * LevelsPerPass. A final tone-mapping pass turns the density into
// colour.
//
// # Key Principle
//
// The renderer RECEIVES a GPU device from the host application, it does
// NOT need to create its own. A self-initialised Vulkan device
// (OpenGPUBackend) is available for command-line use.
//
// # Core Types
//
//   - Renderer: the state machine Idle -> ComputingBounds ->
//     BuildingInstances -> RenderingPass(k) -> Done
//   - Backend: executes the passes of a Job
//   - Frame: the output image with its bounds, plan and statistics
//   - DeviceHandle: GPU device access from the host application
//
// # Backend Implementations
//
//   - SoftwareBackend: CPU rasterization on a worker pool
//   - GPUBackend: WebGPU render passes (unavailable with -tags nogpu)
//
// # Usage
//
// Integration with gogpu:
//
//	app.OnInit(func(gc *gogpu.Context) {
//	    backend, err := render.NewGPUBackendFromProvider(app.GPUContextProvider())
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    renderer, _ = render.NewRenderer(backend, render.DefaultOptions())
//	})
//
// Software rendering:
//
//	r, _ := render.NewRenderer(render.NewSoftwareBackend(0), render.DefaultOptions())
//	defer r.Close()
//
//	r.Update(render.Params{
//	    Set:     flame.Sierpinski(),
//	    Width:   800,
//	    Height:  600,
//	    Depth:   8,
//	    ToneMap: flame.DefaultToneMapConfig(),
//	})
//	frame, err := r.Render(ctx)
//	if err != nil {
//	    return err
//	}
//	frame.Save("sierpinski.png")
//
// # Cancellation
//
// Update may be called while Render runs on another goroutine. The render
// in progress is abandoned at its next step and returns
// flame.ErrSuperseded; its output is discarded.
//
// # Thread Safety
//
// Backends are NOT thread-safe. The Renderer serializes its own calls to
// the backend and may be shared between goroutines.
package render
