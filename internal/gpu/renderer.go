//go:build !nogpu

package gpu

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"
	"unsafe"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/flame"
)

// Renderer errors.
var (
	// ErrRendererClosed is returned when operating on a destroyed renderer.
	ErrRendererClosed = errors.New("gpu: renderer closed")

	// ErrNoFrame is returned when a frame operation runs outside
	// Begin/Finish.
	ErrNoFrame = errors.New("gpu: no frame in progress")

	// ErrNoDensity is returned when the tone map runs before any pass.
	ErrNoDensity = errors.New("gpu: no accumulated density")
)

// copyPitchAlignment is the BytesPerRow alignment required for texture to
// buffer copies.
const copyPitchAlignment = 256

// pollInterval is how often Finish polls for submission completion.
const pollInterval = 200 * time.Microsecond

// passBuffers holds the uploaded geometry of one pass.
type passBuffers struct {
	instances     hal.Buffer
	vertices      hal.Buffer
	instanceCount uint32
	vertexCount   uint32
}

// frame holds per-frame resources that live until the submission
// completes.
type frame struct {
	encoder     hal.CommandEncoder
	buffers     []hal.Buffer
	staging     hal.Buffer
	width       int
	height      int
	alignedRow  uint32
	lastWritten *renderTarget

	// usages holds each target's usage at Begin, restored by Abort.
	usages map[*renderTarget]gputypes.TextureUsage
}

// FlameRenderer records the accumulation passes and the tone map of one
// frame into a single command encoder, submits it, and reads the colour
// result back.
//
// A frame is Begin, EncodePass for k = 0..K,
// EncodeToneMap, Finish. Abort discards a frame at any point.
//
// FlameRenderer is not safe for concurrent use.
type FlameRenderer struct {
	device hal.Device
	queue  hal.Queue
	caps   Capabilities

	accumulate *AccumulatePipeline
	tonemap    *ToneMapPipeline
	slots      iterationSlots
	output     *renderTarget

	frame  *frame
	lost   bool
	closed bool
}

// NewFlameRenderer returns a renderer on device and queue. Pipelines are
// created by the first Begin.
func NewFlameRenderer(device hal.Device, queue hal.Queue, caps Capabilities) *FlameRenderer {
	return &FlameRenderer{
		device:     device,
		queue:      queue,
		caps:       caps,
		accumulate: NewAccumulatePipeline(device, caps.Float32Filterable),
		slots:      iterationSlots{device: device},
	}
}

// Capabilities returns what the device supports.
func (r *FlameRenderer) Capabilities() Capabilities { return r.caps }

// Lost reports whether the device was lost. A lost renderer must be
// destroyed and replaced.
func (r *FlameRenderer) Lost() bool { return r.lost }

// check converts device loss into flame.ErrDeviceLost and marks the
// renderer lost.
func (r *FlameRenderer) check(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, hal.ErrDeviceLost) {
		r.lost = true
		if !errors.Is(err, flame.ErrDeviceLost) {
			return fmt.Errorf("%w: %w", flame.ErrDeviceLost, err)
		}
	}
	return err
}

func (r *FlameRenderer) usable() error {
	switch {
	case r.closed:
		return ErrRendererClosed
	case r.lost:
		return flame.ErrDeviceLost
	}
	return nil
}

// Begin starts a frame.
func (r *FlameRenderer) Begin(label string) error {
	if err := r.usable(); err != nil {
		return err
	}
	if r.frame != nil {
		r.Abort()
	}
	if err := r.accumulate.ensurePipeline(); err != nil {
		return r.check(err)
	}
	if r.tonemap == nil {
		r.tonemap = NewToneMapPipeline(r.device, r.queue, r.accumulate.textureLayout)
	}
	if err := r.tonemap.ensurePipeline(); err != nil {
		return r.check(err)
	}

	encoder, err := r.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: label})
	if err != nil {
		return r.check(fmt.Errorf("create command encoder: %w", err))
	}
	if err := encoder.BeginEncoding(label); err != nil {
		return r.check(fmt.Errorf("begin encoding: %w", err))
	}
	r.frame = &frame{encoder: encoder, usages: make(map[*renderTarget]gputypes.TextureUsage)}
	for _, t := range r.targets() {
		r.frame.usages[t] = t.usage
	}
	return nil
}

// EncodePass records pass k: it clears slot k%2, sized to the pass, and
// draws batch into it, sampling slot (k-1)%2. Pass 0 draws constant
// density. seeds is drawn afterwards with constant density and may be
// empty.
func (r *FlameRenderer) EncodePass(pass flame.Pass, batch, seeds flame.InstanceBatch) error {
	if err := r.usable(); err != nil {
		return err
	}
	f := r.frame
	if f == nil {
		return ErrNoFrame
	}

	var source *renderTarget
	if pass.Index > 0 {
		source = r.slots.get((pass.Index - 1) % 2)
		if source == nil {
			return fmt.Errorf("pass %d: previous slot is empty", pass.Index)
		}
	}

	target, err := r.slots.ensure(pass.Index%2, pass.Width, pass.Height)
	if err != nil {
		return r.check(err)
	}

	bufs, err := r.uploadBatch(pass.Label(), batch)
	if err != nil {
		return r.check(err)
	}
	seedBufs, err := r.uploadBatch(pass.Label()+" seed", seeds)
	if err != nil {
		return r.check(err)
	}

	var group hal.BindGroup
	if source != nil {
		source.transition(f.encoder, gputypes.TextureUsageTextureBinding)
		group, err = source.bindGroup(r.device, r.accumulate, pass.Filter)
		if err != nil {
			return r.check(err)
		}
	}
	target.transition(f.encoder, gputypes.TextureUsageRenderAttachment)

	rp := f.encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: pass.Label(),
		ColorAttachments: []hal.RenderPassColorAttachment{{
			View:       target.view,
			LoadOp:     gputypes.LoadOpClear,
			StoreOp:    gputypes.StoreOpStore,
			ClearValue: gputypes.Color{R: 0, G: 0, B: 0, A: 0},
		}},
	})
	r.accumulate.record(rp, group, bufs)
	r.accumulate.record(rp, nil, seedBufs)
	rp.End()

	f.lastWritten = target
	slogger().Debug("pass encoded", "pass", pass.Index, "width", pass.Width, "height", pass.Height,
		"instances", len(batch.Instances), "vertices", len(batch.Vertices), "seeds", len(seeds.Instances))
	return nil
}

func (r *FlameRenderer) uploadBatch(label string, batch flame.InstanceBatch) (*passBuffers, error) {
	if len(batch.Instances) == 0 || len(batch.Vertices) == 0 {
		return nil, nil //nolint:nilnil // an empty batch clears the target without drawing
	}
	f := r.frame
	inst, err := createAndUploadBuffer(r.device, r.queue, label+" instances",
		flame.EncodeInstances(batch.Instances), gputypes.BufferUsageVertex|gputypes.BufferUsageCopyDst)
	if err != nil {
		return nil, err
	}
	f.buffers = append(f.buffers, inst)
	verts, err := createAndUploadBuffer(r.device, r.queue, label+" vertices",
		flame.EncodeVertices(batch.Vertices), gputypes.BufferUsageVertex|gputypes.BufferUsageCopyDst)
	if err != nil {
		return nil, err
	}
	f.buffers = append(f.buffers, verts)
	return &passBuffers{
		instances:     inst,
		vertices:      verts,
		instanceCount: uint32(len(batch.Instances)),
		vertexCount:   uint32(len(batch.Vertices)),
	}, nil
}

// EncodeToneMap records the tone map of the last written slot into a
// width x height colour target, followed by the copy into the readback
// buffer. The density is sampled with linear filtering when the device
// supports it.
func (r *FlameRenderer) EncodeToneMap(width, height int, params ToneParams, gradient []byte) error {
	if err := r.usable(); err != nil {
		return err
	}
	f := r.frame
	if f == nil {
		return ErrNoFrame
	}
	if f.lastWritten == nil {
		return ErrNoDensity
	}
	if err := r.tonemap.setGradient(gradient); err != nil {
		return r.check(err)
	}
	if err := r.ensureOutput(width, height); err != nil {
		return r.check(err)
	}

	density := f.lastWritten
	density.transition(f.encoder, gputypes.TextureUsageTextureBinding)
	group, err := density.bindGroup(r.device, r.accumulate, flame.FilterLinear)
	if err != nil {
		return r.check(err)
	}
	r.output.transition(f.encoder, gputypes.TextureUsageRenderAttachment)

	rp := f.encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: "flame tonemap",
		ColorAttachments: []hal.RenderPassColorAttachment{{
			View:       r.output.view,
			LoadOp:     gputypes.LoadOpClear,
			StoreOp:    gputypes.StoreOpStore,
			ClearValue: gputypes.Color{R: 0, G: 0, B: 0, A: 1},
		}},
	})
	if err := r.tonemap.record(rp, group, params); err != nil {
		rp.End()
		return r.check(err)
	}
	rp.End()

	return r.check(r.encodeReadback(width, height))
}

func (r *FlameRenderer) ensureOutput(width, height int) error {
	if r.output != nil && r.output.width == width && r.output.height == height {
		return nil
	}
	if r.output != nil {
		r.slots.retired = append(r.slots.retired, r.output)
		r.output = nil
	}
	t, err := newRenderTarget(r.device, "flame_output", outputFormat, width, height,
		gputypes.TextureUsageRenderAttachment|gputypes.TextureUsageCopySrc)
	if err != nil {
		return err
	}
	r.output = t
	return nil
}

// encodeReadback copies the output texture into a staging buffer whose
// rows are padded to copyPitchAlignment.
func (r *FlameRenderer) encodeReadback(width, height int) error {
	f := r.frame
	bytesPerRow := uint32(width * 4)
	aligned := (bytesPerRow + copyPitchAlignment - 1) &^ (copyPitchAlignment - 1)
	size := uint64(aligned) * uint64(height)

	staging, err := r.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "flame_staging",
		Size:  size,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("create staging buffer: %w", err)
	}
	f.staging = staging
	f.width, f.height, f.alignedRow = width, height, aligned

	r.output.transition(f.encoder, gputypes.TextureUsageCopySrc)
	f.encoder.CopyTextureToBuffer(r.output.tex, staging, []hal.BufferTextureCopy{{
		BufferLayout: hal.ImageDataLayout{Offset: 0, BytesPerRow: aligned, RowsPerImage: uint32(height)},
		TextureBase:  hal.ImageCopyTexture{Texture: r.output.tex, MipLevel: 0},
		Size:         hal.Extent3D{Width: uint32(width), Height: uint32(height), DepthOrArrayLayers: 1},
	}})
	return nil
}

// Finish submits the frame, waits for completion and returns the colour
// image. If ctx is cancelled while waiting, Finish waits for the device to
// go idle, releases the frame and returns the context error.
func (r *FlameRenderer) Finish(ctx context.Context) (*image.RGBA, error) {
	if err := r.usable(); err != nil {
		return nil, err
	}
	f := r.frame
	if f == nil {
		return nil, ErrNoFrame
	}
	if f.staging == nil {
		r.Abort()
		return nil, ErrNoDensity
	}
	defer r.release()

	cmd, err := f.encoder.EndEncoding()
	if err != nil {
		return nil, r.check(fmt.Errorf("end encoding: %w", err))
	}
	defer r.device.FreeCommandBuffer(cmd)

	idx, err := r.queue.Submit([]hal.CommandBuffer{cmd})
	if err != nil {
		return nil, r.check(fmt.Errorf("submit: %w", err))
	}
	if err := r.wait(ctx, idx); err != nil {
		return nil, err
	}

	img, err := r.readback(f)
	if err != nil {
		return nil, r.check(err)
	}
	return img, nil
}

// wait blocks until submission idx has completed or ctx is done.
func (r *FlameRenderer) wait(ctx context.Context, idx uint64) error {
	if r.queue.PollCompleted() >= idx {
		return nil
	}
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for r.queue.PollCompleted() < idx {
		select {
		case <-ctx.Done():
			if err := r.device.WaitIdle(); err != nil {
				return r.check(fmt.Errorf("wait idle: %w", err))
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

func (r *FlameRenderer) readback(f *frame) (*image.RGBA, error) {
	size := uint64(f.alignedRow) * uint64(f.height)
	m, err := r.device.MapBuffer(f.staging, 0, size)
	if err != nil {
		return nil, fmt.Errorf("map staging buffer: %w", err)
	}
	data := unsafe.Slice((*byte)(m.Ptr), size)

	img := image.NewRGBA(image.Rect(0, 0, f.width, f.height))
	row := f.width * 4
	for y := range f.height {
		src := int(f.alignedRow) * y
		copy(img.Pix[y*img.Stride:y*img.Stride+row], data[src:src+row])
	}
	if err := r.device.UnmapBuffer(f.staging); err != nil {
		slogger().Warn("unmap staging buffer", "error", err)
	}
	return img, nil
}

// Abort discards the frame in progress. Nothing recorded is submitted.
func (r *FlameRenderer) Abort() {
	f := r.frame
	if f == nil {
		return
	}
	f.encoder.DiscardEncoding()
	// Barriers recorded in the discarded encoder never ran.
	for _, t := range r.targets() {
		if u, ok := f.usages[t]; ok {
			t.usage = u
		} else {
			t.usage = 0
		}
	}
	r.release()
}

// targets returns the live render targets.
func (r *FlameRenderer) targets() []*renderTarget {
	var ts []*renderTarget
	for _, t := range []*renderTarget{r.slots.slots[0], r.slots.slots[1], r.output} {
		if t != nil {
			ts = append(ts, t)
		}
	}
	return ts
}

// release frees per-frame resources.
func (r *FlameRenderer) release() {
	f := r.frame
	if f == nil {
		return
	}
	for _, b := range f.buffers {
		r.device.DestroyBuffer(b)
	}
	if f.staging != nil {
		r.device.DestroyBuffer(f.staging)
	}
	r.slots.releaseRetired()
	r.frame = nil
}

// Destroy releases every GPU object. Safe to call more than once.
func (r *FlameRenderer) Destroy() {
	if r.closed {
		return
	}
	r.Abort()
	if r.output != nil {
		r.output.destroy(r.device)
		r.output = nil
	}
	r.slots.destroy()
	if r.tonemap != nil {
		r.tonemap.Destroy()
	}
	r.accumulate.Destroy()
	r.closed = true
}
