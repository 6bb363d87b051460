// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"testing"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
)

func TestNullDeviceHandle(t *testing.T) {
	var handle DeviceHandle = NullDeviceHandle{}

	if handle.Device() != nil {
		t.Error("NullDeviceHandle.Device() should return nil")
	}
	if handle.Queue() != nil {
		t.Error("NullDeviceHandle.Queue() should return nil")
	}
	if handle.Adapter() != nil {
		t.Error("NullDeviceHandle.Adapter() should return nil")
	}
	if handle.SurfaceFormat() != gputypes.TextureFormatUndefined {
		t.Error("NullDeviceHandle.SurfaceFormat() should return Undefined")
	}
	if got := handle.AdapterInfo().Type; got != gpucontext.AdapterTypeUnknown {
		t.Errorf("AdapterInfo().Type = %v, want Unknown", got)
	}
}

func TestNewGPUBackendFromNullHandle(t *testing.T) {
	b, err := NewGPUBackendFromProvider(NullDeviceHandle{})
	if err == nil {
		b.Close()
		t.Fatal("NewGPUBackendFromProvider(NullDeviceHandle{}) should fail")
	}
}

func TestNewGPUBackendFromNilHandle(t *testing.T) {
	if _, err := NewGPUBackendFromProvider(nil); err == nil {
		t.Error("NewGPUBackendFromProvider(nil) should fail")
	}
}
