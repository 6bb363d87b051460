//go:build !nogpu

package gpu

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/flame"
)

// outputFormat is the colour target of the tone map pass. The gradient
// texture uses the same unorm format so CPU and GPU colours agree.
const outputFormat = gputypes.TextureFormatRGBA8Unorm

// toneUniformSize is the byte size of ToneParams:
// log_base, bias, max_level (f32) and mode (u32).
const toneUniformSize = 16

// ToneParams is the uniform block of tonemap.wgsl.
type ToneParams struct {
	LogBase  float32
	Bias     float32
	MaxLevel float32
	Gradient bool
}

// ToneParamsFrom converts a resolved tone map configuration.
func ToneParamsFrom(c flame.ToneMapConfig) ToneParams {
	return ToneParams{
		LogBase:  float32(c.LogBase),
		Bias:     float32(c.Bias),
		MaxLevel: float32(c.MaxLevel),
		Gradient: c.Mode == flame.ToneGradient,
	}
}

func (p ToneParams) bytes() []byte {
	buf := make([]byte, toneUniformSize)
	binary.LittleEndian.PutUint32(buf[0:], math.Float32bits(p.LogBase))
	binary.LittleEndian.PutUint32(buf[4:], math.Float32bits(p.Bias))
	binary.LittleEndian.PutUint32(buf[8:], math.Float32bits(p.MaxLevel))
	if p.Gradient {
		binary.LittleEndian.PutUint32(buf[12:], 1)
	}
	return buf
}

// ToneMapPipeline resolves the final density buffer into RGBA8 colour with
// a full-screen quad.
//
// Bind groups:
//
//	group 0: density texture (binding 0) + sampler (binding 1)
//	group 1: gradient texture_1d (binding 0) + sampler (binding 1)
//	group 2: ToneParams uniform (binding 0)
type ToneMapPipeline struct {
	device hal.Device
	queue  hal.Queue

	// densityLayout is owned by the accumulate pipeline.
	densityLayout hal.BindGroupLayout

	shader         hal.ShaderModule
	gradientLayout hal.BindGroupLayout
	uniformLayout  hal.BindGroupLayout
	pipeLayout     hal.PipelineLayout
	pipeline       hal.RenderPipeline

	quad          hal.Buffer
	quadVertices  uint32
	uniform       hal.Buffer
	uniformGroup  hal.BindGroup
	gradientTex   hal.Texture
	gradientView  hal.TextureView
	gradientSmp   hal.Sampler
	gradientGroup hal.BindGroup
	gradientTable []byte
}

// NewToneMapPipeline returns a pipeline whose group 0 uses densityLayout.
func NewToneMapPipeline(device hal.Device, queue hal.Queue, densityLayout hal.BindGroupLayout) *ToneMapPipeline {
	return &ToneMapPipeline{device: device, queue: queue, densityLayout: densityLayout}
}

func (p *ToneMapPipeline) ensurePipeline() error {
	if p.pipeline != nil {
		return nil
	}
	if err := p.createPipeline(); err != nil {
		p.Destroy()
		return err
	}
	return nil
}

func (p *ToneMapPipeline) createPipeline() error {
	shader, err := p.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "flame_tonemap_shader",
		Source: hal.ShaderSource{WGSL: tonemapShaderSource},
	})
	if err != nil {
		return fmt.Errorf("compile tonemap shader: %w", err)
	}
	p.shader = shader

	p.gradientLayout, err = createTextureLayout(p.device, "flame_gradient_layout", true, gputypes.TextureViewDimension1D)
	if err != nil {
		return err
	}
	p.uniformLayout, err = p.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "flame_tonemap_uniform_layout",
		Entries: []gputypes.BindGroupLayoutEntry{{
			Binding:    0,
			Visibility: gputypes.ShaderStageFragment,
			Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
		}},
	})
	if err != nil {
		return fmt.Errorf("create tonemap uniform layout: %w", err)
	}
	p.pipeLayout, err = p.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "flame_tonemap_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{p.densityLayout, p.gradientLayout, p.uniformLayout},
	})
	if err != nil {
		return fmt.Errorf("create tonemap pipeline layout: %w", err)
	}

	replace := gputypes.BlendStateReplace()
	p.pipeline, err = p.device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  "flame_tonemap_pipeline",
		Layout: p.pipeLayout,
		Vertex: hal.VertexState{
			Module:     p.shader,
			EntryPoint: entryVertex,
			Buffers:    quadVertexLayout(),
		},
		Fragment: &hal.FragmentState{
			Module:     p.shader,
			EntryPoint: entryToneMap,
			Targets: []gputypes.ColorTargetState{{
				Format:    outputFormat,
				Blend:     &replace,
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
		return fmt.Errorf("create tonemap pipeline: %w", err)
	}

	quad := flame.BuildQuad()
	p.quad, err = createAndUploadBuffer(p.device, p.queue, "flame_tonemap_quad", flame.EncodeVertices(quad),
		gputypes.BufferUsageVertex|gputypes.BufferUsageCopyDst)
	if err != nil {
		return err
	}
	p.quadVertices = uint32(len(quad))

	p.uniform, err = p.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "flame_tonemap_uniform",
		Size:  toneUniformSize,
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("create tonemap uniform buffer: %w", err)
	}
	p.uniformGroup, err = p.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "flame_tonemap_uniform_bind",
		Layout: p.uniformLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{
				Buffer: p.uniform.NativeHandle(), Offset: 0, Size: toneUniformSize,
			}},
		},
	})
	if err != nil {
		return fmt.Errorf("create tonemap uniform bind group: %w", err)
	}

	p.gradientSmp, err = createSampler(p.device, "flame_gradient_sampler", gputypes.FilterModeLinear)
	if err != nil {
		return err
	}
	slogger().Debug("tonemap pipeline created")
	return nil
}

// setGradient uploads table (RGBA8, texel 0 first) to the 1D gradient
// texture, recreating it when the size changes. An unchanged table is not
// uploaded again.
func (p *ToneMapPipeline) setGradient(table []byte) error {
	if len(table) == 0 || len(table)%4 != 0 {
		return fmt.Errorf("gradient table length %d is not a positive multiple of 4", len(table))
	}
	if p.gradientTex != nil && bytes.Equal(table, p.gradientTable) {
		return nil
	}
	n := uint32(len(table) / 4)
	if p.gradientTex == nil || uint32(len(p.gradientTable)/4) != n {
		p.destroyGradient()
		tex, err := p.device.CreateTexture(&hal.TextureDescriptor{
			Label:         "flame_gradient",
			Size:          hal.Extent3D{Width: n, Height: 1, DepthOrArrayLayers: 1},
			MipLevelCount: 1,
			SampleCount:   1,
			Dimension:     gputypes.TextureDimension1D,
			Format:        outputFormat,
			Usage:         gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst,
		})
		if err != nil {
			return fmt.Errorf("create gradient texture: %w", err)
		}
		p.gradientTex = tex
		p.gradientView, err = p.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
			Label:     "flame_gradient_view",
			Dimension: gputypes.TextureViewDimension1D,
		})
		if err != nil {
			p.destroyGradient()
			return fmt.Errorf("create gradient view: %w", err)
		}
		p.gradientGroup, err = createTextureBindGroup(p.device, "flame_gradient_bind", p.gradientLayout, p.gradientView, p.gradientSmp)
		if err != nil {
			p.destroyGradient()
			return err
		}
	}
	err := p.queue.WriteTexture(
		&hal.ImageCopyTexture{Texture: p.gradientTex},
		table,
		&hal.ImageDataLayout{BytesPerRow: uint32(len(table))},
		&hal.Extent3D{Width: n, Height: 1, DepthOrArrayLayers: 1},
	)
	if err != nil {
		return fmt.Errorf("upload gradient: %w", err)
	}
	p.gradientTable = append(p.gradientTable[:0], table...)
	return nil
}

// record writes params and draws the full-screen quad into the open pass.
func (p *ToneMapPipeline) record(rp hal.RenderPassEncoder, density hal.BindGroup, params ToneParams) error {
	if err := p.queue.WriteBuffer(p.uniform, 0, params.bytes()); err != nil {
		return fmt.Errorf("write tonemap uniform: %w", err)
	}
	rp.SetPipeline(p.pipeline)
	rp.SetBindGroup(0, density, nil)
	rp.SetBindGroup(1, p.gradientGroup, nil)
	rp.SetBindGroup(2, p.uniformGroup, nil)
	rp.SetVertexBuffer(0, p.quad, 0)
	rp.Draw(p.quadVertices, 1, 0, 0)
	return nil
}

func (p *ToneMapPipeline) destroyGradient() {
	if p.gradientGroup != nil {
		p.device.DestroyBindGroup(p.gradientGroup)
		p.gradientGroup = nil
	}
	if p.gradientView != nil {
		p.device.DestroyTextureView(p.gradientView)
		p.gradientView = nil
	}
	if p.gradientTex != nil {
		p.device.DestroyTexture(p.gradientTex)
		p.gradientTex = nil
	}
	p.gradientTable = p.gradientTable[:0]
}

// Destroy releases all GPU objects. Safe to call more than once.
func (p *ToneMapPipeline) Destroy() {
	if p.device == nil {
		return
	}
	p.destroyGradient()
	if p.gradientSmp != nil {
		p.device.DestroySampler(p.gradientSmp)
		p.gradientSmp = nil
	}
	if p.uniformGroup != nil {
		p.device.DestroyBindGroup(p.uniformGroup)
		p.uniformGroup = nil
	}
	if p.uniform != nil {
		p.device.DestroyBuffer(p.uniform)
		p.uniform = nil
	}
	if p.quad != nil {
		p.device.DestroyBuffer(p.quad)
		p.quad = nil
	}
	if p.pipeline != nil {
		p.device.DestroyRenderPipeline(p.pipeline)
		p.pipeline = nil
	}
	if p.pipeLayout != nil {
		p.device.DestroyPipelineLayout(p.pipeLayout)
		p.pipeLayout = nil
	}
	if p.uniformLayout != nil {
		p.device.DestroyBindGroupLayout(p.uniformLayout)
		p.uniformLayout = nil
	}
	if p.gradientLayout != nil {
		p.device.DestroyBindGroupLayout(p.gradientLayout)
		p.gradientLayout = nil
	}
	if p.shader != nil {
		p.device.DestroyShaderModule(p.shader)
		p.shader = nil
	}
}

// quadVertexLayout matches VertexInput in tonemap.wgsl:
//
//	location 0: position (vec2<f32>)
//	location 1: uv (vec2<f32>)
func quadVertexLayout() []gputypes.VertexBufferLayout {
	return []gputypes.VertexBufferLayout{{
		ArrayStride: flame.VertexStride,
		StepMode:    gputypes.VertexStepModeVertex,
		Attributes: []gputypes.VertexAttribute{
			{Format: gputypes.VertexFormatFloat32x2, Offset: 0, ShaderLocation: 0},
			{Format: gputypes.VertexFormatFloat32x2, Offset: 8, ShaderLocation: 1},
		},
	}}
}

// createAndUploadBuffer creates a GPU buffer and uploads data.
func createAndUploadBuffer(device hal.Device, queue hal.Queue, label string, data []byte, usage gputypes.BufferUsage) (hal.Buffer, error) {
	buf, err := device.CreateBuffer(&hal.BufferDescriptor{
		Label: label,
		Size:  uint64(len(data)),
		Usage: usage,
	})
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", label, err)
	}
	if err := queue.WriteBuffer(buf, 0, data); err != nil {
		device.DestroyBuffer(buf)
		return nil, fmt.Errorf("upload %s: %w", label, err)
	}
	return buf, nil
}
