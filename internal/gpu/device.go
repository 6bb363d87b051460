//go:build !nogpu

package gpu

import (
	"errors"
	"fmt"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	_ "github.com/gogpu/wgpu/hal/vulkan"
)

// ErrNoAdapter is returned when no usable GPU adapter is found.
var ErrNoAdapter = errors.New("gpu: no usable adapter")

// Capabilities describes the optional device features the renderer uses.
type Capabilities struct {
	// Float32Filterable allows linear sampling of R32Float textures.
	// Without it every density read is nearest.
	Float32Filterable bool

	// AdapterName is reported in logs.
	AdapterName string
}

// Device is an open hal device and queue.
type Device struct {
	Device hal.Device
	Queue  hal.Queue
	Caps   Capabilities

	instance hal.Instance
	owned    bool
}

// Close waits for the device to go idle and destroys it if it was opened
// by OpenDevice. Borrowed devices are left to their owner.
func (d *Device) Close() {
	if d == nil || !d.owned {
		return
	}
	if err := d.Device.WaitIdle(); err != nil {
		slogger().Warn("wait idle on close", "error", err)
	}
	d.Device.Destroy()
	if d.instance != nil {
		d.instance.Destroy()
	}
	d.owned = false
}

// OpenDevice creates a standalone Vulkan device, preferring discrete then
// integrated adapters. R32Float must be blendable on the chosen adapter.
func OpenDevice() (*Device, error) {
	backend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return nil, fmt.Errorf("vulkan backend not available")
	}
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("create instance: %w", err)
	}
	d, err := openFromInstance(instance)
	if err != nil {
		instance.Destroy()
		return nil, err
	}
	return d, nil
}

func openFromInstance(instance hal.Instance) (*Device, error) {
	adapters := instance.EnumerateAdapters(nil)
	selected := selectAdapter(adapters)
	if selected == nil {
		return nil, ErrNoAdapter
	}

	var features gputypes.Features
	caps := Capabilities{AdapterName: selected.Info.Name}
	if selected.Features.Contains(gputypes.FeatureFloat32Filterable) {
		features |= gputypes.Features(gputypes.FeatureFloat32Filterable)
		caps.Float32Filterable = true
	}

	open, err := selected.Adapter.Open(features, gputypes.DefaultLimits())
	if err != nil {
		return nil, fmt.Errorf("open device: %w", err)
	}
	slogger().Info("GPU device opened",
		"adapter", selected.Info.Name,
		"type", selected.Info.DeviceType.String(),
		"float32_filterable", caps.Float32Filterable)
	return &Device{
		Device:   open.Device,
		Queue:    open.Queue,
		Caps:     caps,
		instance: instance,
		owned:    true,
	}, nil
}

// selectAdapter returns the first discrete adapter, else the first
// integrated one, else the first adapter. Adapters that cannot blend
// R32Float render targets are skipped.
func selectAdapter(adapters []hal.ExposedAdapter) *hal.ExposedAdapter {
	var usable []*hal.ExposedAdapter
	for i := range adapters {
		flags := adapters[i].Adapter.TextureFormatCapabilities(densityFormat).Flags
		if flags&hal.TextureFormatCapabilityBlendable == 0 ||
			flags&hal.TextureFormatCapabilityRenderAttachment == 0 {
			slogger().Debug("adapter skipped: r32float not blendable", "adapter", adapters[i].Info.Name)
			continue
		}
		usable = append(usable, &adapters[i])
	}
	for _, want := range []gputypes.DeviceType{gputypes.DeviceTypeDiscreteGPU, gputypes.DeviceTypeIntegratedGPU} {
		for _, a := range usable {
			if a.Info.DeviceType == want {
				return a
			}
		}
	}
	if len(usable) > 0 {
		return usable[0]
	}
	return nil
}

// halProvider is implemented by hosts that expose hal objects directly.
type halProvider interface {
	HalDevice() any
	HalQueue() any
}

// DeviceFromProvider borrows the device of a host application. It accepts
// a provider with HalDevice() and HalQueue() methods, or a
// gpucontext.DeviceProvider whose Device and Queue are hal objects.
// Float32 filtering is assumed absent because providers do not expose
// device features.
func DeviceFromProvider(provider any) (*Device, error) {
	var device, queue any
	var name string
	switch p := provider.(type) {
	case halProvider:
		device, queue = p.HalDevice(), p.HalQueue()
		if dp, ok := provider.(gpucontext.DeviceProvider); ok {
			name = dp.AdapterInfo().Name
		}
	case gpucontext.DeviceProvider:
		device, queue = p.Device(), p.Queue()
		name = p.AdapterInfo().Name
	default:
		return nil, fmt.Errorf("device provider %T exposes no hal device", provider)
	}

	d, ok := device.(hal.Device)
	if !ok {
		return nil, fmt.Errorf("provider device %T is not hal.Device", device)
	}
	q, ok := queue.(hal.Queue)
	if !ok {
		return nil, fmt.Errorf("provider queue %T is not hal.Queue", queue)
	}
	slogger().Info("GPU device borrowed from provider", "adapter", name)
	return &Device{Device: d, Queue: q, Caps: Capabilities{AdapterName: name}}, nil
}

// NewDevice wraps an existing hal device and queue without taking
// ownership.
func NewDevice(device hal.Device, queue hal.Queue, caps Capabilities) *Device {
	return &Device{Device: device, Queue: queue, Caps: caps}
}
