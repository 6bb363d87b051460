// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build nogpu

package render

import (
	"context"
	"errors"
	"image"
)

// ErrGPUUnavailable is returned by the GPU constructors in nogpu builds.
var ErrGPUUnavailable = errors.New("render: built without GPU support (nogpu)")

// GPUBackend is unavailable in nogpu builds.
type GPUBackend struct{}

// NewGPUBackendFromProvider returns ErrGPUUnavailable.
func NewGPUBackendFromProvider(DeviceHandle) (*GPUBackend, error) {
	return nil, ErrGPUUnavailable
}

// OpenGPUBackend returns ErrGPUUnavailable.
func OpenGPUBackend() (*GPUBackend, error) { return nil, ErrGPUUnavailable }

func (b *GPUBackend) Name() string               { return "gpu" }
func (b *GPUBackend) Capabilities() Capabilities { return Capabilities{IsGPU: true} }
func (b *GPUBackend) AdapterName() string        { return "" }
func (b *GPUBackend) Prepare(*Job) error         { return ErrGPUUnavailable }
func (b *GPUBackend) Pass(context.Context, *Job, int) error {
	return ErrGPUUnavailable
}
func (b *GPUBackend) Finish(context.Context, *Job) (*image.RGBA, error) {
	return nil, ErrGPUUnavailable
}
func (b *GPUBackend) Abort()       {}
func (b *GPUBackend) Close() error { return nil }
