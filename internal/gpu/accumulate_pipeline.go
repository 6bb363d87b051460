//go:build !nogpu

package gpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/flame"
)

// densityFormat is the format of every iteration buffer.
const densityFormat = gputypes.TextureFormatR32Float

// Vertex buffer slots of the accumulate pipeline.
const (
	instanceSlot = 0
	vertexSlot   = 1
)

// AccumulatePipeline draws one accumulation pass: instanced quads blended
// additively into an R32Float target.
//
// Two variants share the shader. The seeded variant uses fs_main and an
// empty pipeline layout; the textured variant uses fs_main_textured with
// the previous buffer bound at group 0 (texture at binding 0, sampler at
// binding 1).
type AccumulatePipeline struct {
	device hal.Device

	// filterable reports whether R32Float textures may be sampled with
	// linear filtering on this device.
	filterable bool

	shader         hal.ShaderModule
	textureLayout  hal.BindGroupLayout
	seededLayout   hal.PipelineLayout
	texturedLayout hal.PipelineLayout
	seeded         hal.RenderPipeline
	textured       hal.RenderPipeline

	nearest hal.Sampler
	linear  hal.Sampler
}

// NewAccumulatePipeline returns a pipeline for device. GPU objects are
// created by ensurePipeline.
func NewAccumulatePipeline(device hal.Device, filterable bool) *AccumulatePipeline {
	return &AccumulatePipeline{device: device, filterable: filterable}
}

// ensurePipeline creates the GPU objects on first use.
func (p *AccumulatePipeline) ensurePipeline() error {
	if p.textured != nil {
		return nil
	}
	if err := p.createPipeline(); err != nil {
		p.Destroy()
		return err
	}
	return nil
}

func (p *AccumulatePipeline) createPipeline() error {
	shader, err := p.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "flame_accumulate_shader",
		Source: hal.ShaderSource{WGSL: accumulateShaderSource},
	})
	if err != nil {
		return fmt.Errorf("compile accumulate shader: %w", err)
	}
	p.shader = shader

	p.textureLayout, err = createTextureLayout(p.device, "flame_density_layout", p.filterable, gputypes.TextureViewDimension2D)
	if err != nil {
		return err
	}

	p.seededLayout, err = p.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label: "flame_accumulate_seeded_layout",
	})
	if err != nil {
		return fmt.Errorf("create seeded pipeline layout: %w", err)
	}
	p.texturedLayout, err = p.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "flame_accumulate_textured_layout",
		BindGroupLayouts: []hal.BindGroupLayout{p.textureLayout},
	})
	if err != nil {
		return fmt.Errorf("create textured pipeline layout: %w", err)
	}

	p.seeded, err = p.createVariant("flame_accumulate_seeded", p.seededLayout, entrySeeded)
	if err != nil {
		return err
	}
	p.textured, err = p.createVariant("flame_accumulate_textured", p.texturedLayout, entryTextured)
	if err != nil {
		return err
	}

	p.nearest, err = createSampler(p.device, "flame_nearest_sampler", gputypes.FilterModeNearest)
	if err != nil {
		return err
	}
	if p.filterable {
		p.linear, err = createSampler(p.device, "flame_linear_sampler", gputypes.FilterModeLinear)
		if err != nil {
			return err
		}
	}
	slogger().Debug("accumulate pipeline created", "filterable", p.filterable)
	return nil
}

func (p *AccumulatePipeline) createVariant(label string, layout hal.PipelineLayout, entry string) (hal.RenderPipeline, error) {
	additive := gputypes.BlendState{
		Color: gputypes.BlendComponent{
			SrcFactor: gputypes.BlendFactorOne,
			DstFactor: gputypes.BlendFactorOne,
			Operation: gputypes.BlendOperationAdd,
		},
		Alpha: gputypes.BlendComponent{
			SrcFactor: gputypes.BlendFactorOne,
			DstFactor: gputypes.BlendFactorOne,
			Operation: gputypes.BlendOperationAdd,
		},
	}
	pipeline, err := p.device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  label,
		Layout: layout,
		Vertex: hal.VertexState{
			Module:     p.shader,
			EntryPoint: entryVertex,
			Buffers:    accumulateVertexLayout(),
		},
		Fragment: &hal.FragmentState{
			Module:     p.shader,
			EntryPoint: entry,
			Targets: []gputypes.ColorTargetState{{
				Format:    densityFormat,
				Blend:     &additive,
				WriteMask: gputypes.ColorWriteMaskAll,
			}},
		},
		Primitive: gputypes.PrimitiveState{
			Topology: gputypes.PrimitiveTopologyTriangleList,
			CullMode: gputypes.CullModeNone,
		},
		Multisample: gputypes.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create %s pipeline: %w", label, err)
	}
	return pipeline, nil
}

// sampler returns the sampler for f. Linear falls back to nearest when
// the device cannot filter float textures.
func (p *AccumulatePipeline) sampler(f flame.Filter) hal.Sampler {
	if f == flame.FilterLinear && p.linear != nil {
		return p.linear
	}
	return p.nearest
}

// record draws batch into the open render pass. A nil source selects the
// seeded variant.
func (p *AccumulatePipeline) record(rp hal.RenderPassEncoder, source hal.BindGroup, buffers *passBuffers) {
	if buffers == nil || buffers.instanceCount == 0 || buffers.vertexCount == 0 {
		return
	}
	if source == nil {
		rp.SetPipeline(p.seeded)
	} else {
		rp.SetPipeline(p.textured)
		rp.SetBindGroup(0, source, nil)
	}
	rp.SetVertexBuffer(instanceSlot, buffers.instances, 0)
	rp.SetVertexBuffer(vertexSlot, buffers.vertices, 0)
	rp.Draw(buffers.vertexCount, buffers.instanceCount, 0, 0)
}

// Destroy releases all GPU objects in reverse creation order. Safe to
// call more than once.
func (p *AccumulatePipeline) Destroy() {
	if p.device == nil {
		return
	}
	if p.linear != nil {
		p.device.DestroySampler(p.linear)
		p.linear = nil
	}
	if p.nearest != nil {
		p.device.DestroySampler(p.nearest)
		p.nearest = nil
	}
	if p.textured != nil {
		p.device.DestroyRenderPipeline(p.textured)
		p.textured = nil
	}
	if p.seeded != nil {
		p.device.DestroyRenderPipeline(p.seeded)
		p.seeded = nil
	}
	if p.texturedLayout != nil {
		p.device.DestroyPipelineLayout(p.texturedLayout)
		p.texturedLayout = nil
	}
	if p.seededLayout != nil {
		p.device.DestroyPipelineLayout(p.seededLayout)
		p.seededLayout = nil
	}
	if p.textureLayout != nil {
		p.device.DestroyBindGroupLayout(p.textureLayout)
		p.textureLayout = nil
	}
	if p.shader != nil {
		p.device.DestroyShaderModule(p.shader)
		p.shader = nil
	}
}

// accumulateVertexLayout matches VertexInput in accumulate.wgsl:
//
//	slot 0, per instance, stride 32: row0 (location 0), row1 (location 1)
//	slot 1, per vertex, stride 16:   position (location 2), uv (location 3)
func accumulateVertexLayout() []gputypes.VertexBufferLayout {
	return []gputypes.VertexBufferLayout{
		{
			ArrayStride: flame.InstanceStride,
			StepMode:    gputypes.VertexStepModeInstance,
			Attributes: []gputypes.VertexAttribute{
				{Format: gputypes.VertexFormatFloat32x4, Offset: 0, ShaderLocation: 0},
				{Format: gputypes.VertexFormatFloat32x4, Offset: 16, ShaderLocation: 1},
			},
		},
		{
			ArrayStride: flame.VertexStride,
			StepMode:    gputypes.VertexStepModeVertex,
			Attributes: []gputypes.VertexAttribute{
				{Format: gputypes.VertexFormatFloat32x2, Offset: 0, ShaderLocation: 2},
				{Format: gputypes.VertexFormatFloat32x2, Offset: 8, ShaderLocation: 3},
			},
		},
	}
}

// createTextureLayout returns a texture (binding 0) + sampler (binding 1)
// layout for the fragment stage. Non-filterable layouts pair an
// unfilterable-float texture with a non-filtering sampler.
func createTextureLayout(device hal.Device, label string, filterable bool, dim gputypes.TextureViewDimension) (hal.BindGroupLayout, error) {
	sampleType := gputypes.TextureSampleTypeFloat
	samplerType := gputypes.SamplerBindingTypeFiltering
	if !filterable {
		sampleType = gputypes.TextureSampleTypeUnfilterableFloat
		samplerType = gputypes.SamplerBindingTypeNonFiltering
	}
	layout, err := device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: label,
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: gputypes.ShaderStageFragment,
				Texture: &gputypes.TextureBindingLayout{
					SampleType:    sampleType,
					ViewDimension: dim,
				},
			},
			{
				Binding:    1,
				Visibility: gputypes.ShaderStageFragment,
				Sampler:    &gputypes.SamplerBindingLayout{Type: samplerType},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", label, err)
	}
	return layout, nil
}

func createSampler(device hal.Device, label string, filter gputypes.FilterMode) (hal.Sampler, error) {
	sampler, err := device.CreateSampler(&hal.SamplerDescriptor{
		Label:        label,
		AddressModeU: gputypes.AddressModeClampToEdge,
		AddressModeV: gputypes.AddressModeClampToEdge,
		AddressModeW: gputypes.AddressModeClampToEdge,
		MagFilter:    filter,
		MinFilter:    filter,
		MipmapFilter: gputypes.FilterModeNearest,
	})
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", label, err)
	}
	return sampler, nil
}

// createTextureBindGroup binds view and sampler to a texture layout.
func createTextureBindGroup(device hal.Device, label string, layout hal.BindGroupLayout, view hal.TextureView, sampler hal.Sampler) (hal.BindGroup, error) {
	group, err := device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  label,
		Layout: layout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.TextureViewBinding{TextureView: view.NativeHandle()}},
			{Binding: 1, Resource: gputypes.SamplerBinding{Sampler: sampler.NativeHandle()}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", label, err)
	}
	return group, nil
}
