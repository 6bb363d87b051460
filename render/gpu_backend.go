// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package render

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/flame"
	"github.com/gogpu/flame/internal/gpu"
)

// GPUBackend renders on a WebGPU device through wgpu's hal layer.
//
// Every frame is recorded into one command encoder: the accumulation
// passes ping-pong between two R32Float textures with additive blending,
// then the tone map pass draws into an RGBA8 target that is copied back to
// the CPU.
//
// The device can be borrowed from the host application
// (NewGPUBackendFromProvider, NewGPUBackend) or opened by the backend
// itself (OpenGPUBackend). Borrowed devices are never destroyed.
//
// On device loss every method fails with flame.ErrDeviceLost; the backend
// must be closed and replaced, see Renderer.Rebind.
type GPUBackend struct {
	device   *gpu.Device
	renderer *gpu.FlameRenderer
	closed   bool
}

// NewGPUBackend creates a backend on an existing hal device and queue.
// float32Filterable reports whether the device was opened with the
// float32-filterable feature; without it every density read is nearest.
func NewGPUBackend(device hal.Device, queue hal.Queue, float32Filterable bool) (*GPUBackend, error) {
	if device == nil || queue == nil {
		return nil, errors.New("render: nil device or queue")
	}
	d := gpu.NewDevice(device, queue, gpu.Capabilities{Float32Filterable: float32Filterable})
	return newGPUBackend(d), nil
}

// NewGPUBackendFromProvider creates a backend on the device of the host
// application.
//
// The DeviceHandle must expose hal objects: either through HalDevice() and
// HalQueue() methods, or as the values returned by Device() and Queue().
func NewGPUBackendFromProvider(handle DeviceHandle) (*GPUBackend, error) {
	if handle == nil {
		return nil, errors.New("render: nil device handle")
	}
	d, err := gpu.DeviceFromProvider(handle)
	if err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return newGPUBackend(d), nil
}

// OpenGPUBackend opens a Vulkan device of its own, preferring discrete
// then integrated adapters.
func OpenGPUBackend() (*GPUBackend, error) {
	d, err := gpu.OpenDevice()
	if err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return newGPUBackend(d), nil
}

func newGPUBackend(d *gpu.Device) *GPUBackend {
	return &GPUBackend{
		device:   d,
		renderer: gpu.NewFlameRenderer(d.Device, d.Queue, d.Caps),
	}
}

// Name returns "gpu".
func (b *GPUBackend) Name() string { return "gpu" }

// Capabilities returns the backend's capabilities.
func (b *GPUBackend) Capabilities() Capabilities {
	return Capabilities{
		IsGPU:           true,
		LinearFiltering: b.device.Caps.Float32Filterable,
		MaxTextureSize:  int(gputypes.DefaultLimits().MaxTextureDimension2D),
	}
}

// AdapterName returns the name of the adapter, when known.
func (b *GPUBackend) AdapterName() string { return b.device.Caps.AdapterName }

// Prepare begins a frame.
func (b *GPUBackend) Prepare(job *Job) error {
	if b.closed {
		return ErrBackendClosed
	}
	return b.renderer.Begin(fmt.Sprintf("flame frame %d", job.Generation))
}

// Pass records pass k.
func (b *GPUBackend) Pass(ctx context.Context, job *Job, k int) error {
	if b.closed {
		return ErrBackendClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.renderer.EncodePass(job.Pass(k), job.Batches[k], job.SeedBatch(k))
}

// Finish records the tone map, submits the frame and reads the image
// back. Cancelling ctx abandons the wait.
func (b *GPUBackend) Finish(ctx context.Context, job *Job) (*image.RGBA, error) {
	if b.closed {
		return nil, ErrBackendClosed
	}
	table := job.ToneMap.Gradient.Table(flame.GradientTableSize)
	if err := b.renderer.EncodeToneMap(job.Width, job.Height, gpu.ToneParamsFrom(job.ToneMap), table); err != nil {
		b.renderer.Abort()
		return nil, err
	}
	return b.renderer.Finish(ctx)
}

// Abort discards the recorded frame without submitting it.
func (b *GPUBackend) Abort() {
	if b.closed {
		return
	}
	b.renderer.Abort()
}

// Close destroys the GPU objects, and the device when the backend opened
// it. Safe to call more than once.
func (b *GPUBackend) Close() error {
	if b.closed {
		return nil
	}
	b.closed = true
	b.renderer.Destroy()
	b.device.Close()
	return nil
}
