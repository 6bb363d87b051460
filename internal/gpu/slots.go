//go:build !nogpu

package gpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/flame"
)

// renderTarget is a 2D texture with its view, the usage it was last
// transitioned to, and lazily created sampling bind groups.
type renderTarget struct {
	label  string
	tex    hal.Texture
	view   hal.TextureView
	format gputypes.TextureFormat
	width  int
	height int
	usage  gputypes.TextureUsage
	groups map[flame.Filter]hal.BindGroup
}

func newRenderTarget(device hal.Device, label string, format gputypes.TextureFormat, width, height int, usage gputypes.TextureUsage) (*renderTarget, error) {
	tex, err := device.CreateTexture(&hal.TextureDescriptor{
		Label:         label,
		Size:          hal.Extent3D{Width: uint32(width), Height: uint32(height), DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        format,
		Usage:         usage,
	})
	if err != nil {
		return nil, fmt.Errorf("create %s texture: %w", label, err)
	}
	view, err := device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label: label + "_view",
	})
	if err != nil {
		device.DestroyTexture(tex)
		return nil, fmt.Errorf("create %s view: %w", label, err)
	}
	return &renderTarget{
		label:  label,
		tex:    tex,
		view:   view,
		format: format,
		width:  width,
		height: height,
		groups: make(map[flame.Filter]hal.BindGroup),
	}, nil
}

// transition records a barrier moving the texture to usage. Repeated
// transitions to the current usage are skipped.
func (t *renderTarget) transition(enc hal.CommandEncoder, usage gputypes.TextureUsage) {
	if t.usage == usage {
		return
	}
	enc.TransitionTextures([]hal.TextureBarrier{{
		Texture: t.tex,
		Usage: hal.TextureUsageTransition{
			OldUsage: t.usage,
			NewUsage: usage,
		},
	}})
	t.usage = usage
}

// bindGroup returns the group 0 bind group that samples t with f.
func (t *renderTarget) bindGroup(device hal.Device, p *AccumulatePipeline, f flame.Filter) (hal.BindGroup, error) {
	if p.linear == nil {
		f = flame.FilterNearest
	}
	if g, ok := t.groups[f]; ok {
		return g, nil
	}
	g, err := createTextureBindGroup(device, t.label+"_bind_"+f.String(), p.textureLayout, t.view, p.sampler(f))
	if err != nil {
		return nil, err
	}
	t.groups[f] = g
	return g, nil
}

func (t *renderTarget) destroy(device hal.Device) {
	for f, g := range t.groups {
		device.DestroyBindGroup(g)
		delete(t.groups, f)
	}
	if t.view != nil {
		device.DestroyTextureView(t.view)
		t.view = nil
	}
	if t.tex != nil {
		device.DestroyTexture(t.tex)
		t.tex = nil
	}
}

// iterationSlots holds the two ping-pong density buffers. Pass k writes
// slot k%2 and reads slot (k-1)%2. A slot that must change size is
// retired, not destroyed, because commands already recorded in the current
// frame may still reference it.
type iterationSlots struct {
	device  hal.Device
	slots   [2]*renderTarget
	retired []*renderTarget
}

// ensure returns slot i sized width x height.
func (s *iterationSlots) ensure(i, width, height int) (*renderTarget, error) {
	cur := s.slots[i]
	if cur != nil && cur.width == width && cur.height == height {
		return cur, nil
	}
	if cur != nil {
		s.retired = append(s.retired, cur)
		s.slots[i] = nil
	}
	t, err := newRenderTarget(s.device, fmt.Sprintf("flame_density_%d", i), densityFormat, width, height,
		gputypes.TextureUsageRenderAttachment|gputypes.TextureUsageTextureBinding)
	if err != nil {
		return nil, err
	}
	slogger().Debug("density slot allocated", "slot", i, "width", width, "height", height)
	s.slots[i] = t
	return t, nil
}

// get returns slot i, or nil if it was never allocated.
func (s *iterationSlots) get(i int) *renderTarget { return s.slots[i] }

// releaseRetired destroys retired slots. Call only once the GPU has
// finished every submission that referenced them.
func (s *iterationSlots) releaseRetired() {
	for _, t := range s.retired {
		t.destroy(s.device)
	}
	s.retired = s.retired[:0]
}

func (s *iterationSlots) destroy() {
	s.releaseRetired()
	for i, t := range s.slots {
		if t != nil {
			t.destroy(s.device)
			s.slots[i] = nil
		}
	}
}
