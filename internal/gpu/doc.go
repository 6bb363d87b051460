//go:build !nogpu

// Package gpu runs flame accumulation passes on a WebGPU device through the
// gogpu/wgpu hal layer (pure Go, zero CGO).
//
// # Pipelines
//
//   - AccumulatePipeline: instanced quads drawn with additive blending into
//     an R32Float iteration buffer. Instance rows sit at locations 0 and 1
//     (slot 0, stride 32), vertex position and uv at locations 2 and 3
//     (slot 1, stride 16). The previous buffer is bound at group 0: texture
//     at binding 0, sampler at binding 1.
//   - ToneMapPipeline: a full-screen quad that maps density to RGBA8 with
//     the log ramp or a 1D gradient texture.
//
// # Frames
//
// FlameRenderer encodes one frame into a single command buffer: pass k
// writes ping-pong slot k%2 and samples slot (k-1)%2, the tone map reads
// the last slot, and the colour target is copied into a staging buffer
// that is mapped once the submission completes. Device loss is reported
// as flame.ErrDeviceLost.
//
// Build with the nogpu tag to drop this package and its Vulkan dependency.
package gpu
