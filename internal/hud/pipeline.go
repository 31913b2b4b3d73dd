package hud

import (
	"encoding/binary"
	"fmt"
	"image"
	"math"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

const (
	bindingRect    = 0
	bindingPanel   = 1
	bindingSampler = 2

	rectUniformSize = 16
	vertexStride    = 8
)

// unitQuad is the panel in texture space; the vertex shader maps it onto
// the rect uniform.
var unitQuad = [4][2]float32{{0, 0}, {1, 0}, {1, 1}, {0, 1}}

var unitQuadIndices = [6]uint16{0, 1, 2, 0, 2, 3}

// pipeline draws the panel texture as one premultiplied quad.
type pipeline struct {
	device hal.Device
	queue  hal.Queue

	shader     hal.ShaderModule
	layout     hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
	pipeline   hal.RenderPipeline
	sampler    hal.Sampler
	rect       hal.Buffer
	vertices   hal.Buffer
	indices    hal.Buffer

	// Panel texture, recreated when the panel pixel size changes.
	texture   hal.Texture
	view      hal.TextureView
	bindGroup hal.BindGroup
	texSize   image.Point

	lastRect [4]float32
}

func newPipeline(device hal.Device, queue hal.Queue, format gputypes.TextureFormat) (*pipeline, error) {
	p := &pipeline{device: device, queue: queue}
	if err := p.create(format); err != nil {
		p.destroy()
		return nil, err
	}
	return p, nil
}

func (p *pipeline) create(format gputypes.TextureFormat) error {
	shader, err := p.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "hud_shader",
		Source: hal.ShaderSource{WGSL: hudShaderSource},
	})
	if err != nil {
		return fmt.Errorf("hud: compile shader: %w", err)
	}
	p.shader = shader

	// Bind group layout:
	//   Binding 0: panel rect (uniform, vertex)
	//   Binding 1: panel texture (texture_2d, fragment)
	//   Binding 2: sampler (fragment)
	layout, err := p.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "hud_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    bindingRect,
				Visibility: gputypes.ShaderStageVertex,
				Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
			},
			{
				Binding:    bindingPanel,
				Visibility: gputypes.ShaderStageFragment,
				Texture: &gputypes.TextureBindingLayout{
					SampleType:    gputypes.TextureSampleTypeFloat,
					ViewDimension: gputypes.TextureViewDimension2D,
				},
			},
			{
				Binding:    bindingSampler,
				Visibility: gputypes.ShaderStageFragment,
				Sampler:    &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("hud: create bind group layout: %w", err)
	}
	p.layout = layout

	pipeLayout, err := p.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "hud_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{layout},
	})
	if err != nil {
		return fmt.Errorf("hud: create pipeline layout: %w", err)
	}
	p.pipeLayout = pipeLayout

	sampler, err := p.device.CreateSampler(&hal.SamplerDescriptor{
		Label:        "hud_sampler",
		AddressModeU: gputypes.AddressModeClampToEdge,
		AddressModeV: gputypes.AddressModeClampToEdge,
		AddressModeW: gputypes.AddressModeClampToEdge,
		MagFilter:    gputypes.FilterModeLinear,
		MinFilter:    gputypes.FilterModeLinear,
		MipmapFilter: gputypes.FilterModeNearest,
	})
	if err != nil {
		return fmt.Errorf("hud: create sampler: %w", err)
	}
	p.sampler = sampler

	premulBlend := gputypes.BlendStatePremultiplied()
	pipeline, err := p.device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  "hud_pipeline",
		Layout: pipeLayout,
		Vertex: hal.VertexState{
			Module:     shader,
			EntryPoint: "vs_main",
			Buffers: []gputypes.VertexBufferLayout{{
				ArrayStride: vertexStride,
				StepMode:    gputypes.VertexStepModeVertex,
				Attributes: []gputypes.VertexAttribute{
					{Format: gputypes.VertexFormatFloat32x2, Offset: 0, ShaderLocation: 0},
				},
			}},
		},
		Fragment: &hal.FragmentState{
			Module:     shader,
			EntryPoint: "fs_main",
			Targets: []gputypes.ColorTargetState{{
				Format:    format,
				Blend:     &premulBlend,
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
		return fmt.Errorf("hud: create pipeline: %w", err)
	}
	p.pipeline = pipeline

	return p.createBuffers()
}

func (p *pipeline) createBuffers() error {
	vdata := make([]byte, len(unitQuad)*vertexStride)
	for i, v := range unitQuad {
		binary.LittleEndian.PutUint32(vdata[i*vertexStride:], math.Float32bits(v[0]))
		binary.LittleEndian.PutUint32(vdata[i*vertexStride+4:], math.Float32bits(v[1]))
	}
	// Index data is padded to a 4-byte multiple for WriteBuffer.
	idata := make([]byte, (len(unitQuadIndices)*2+3)&^3)
	for i, idx := range unitQuadIndices {
		binary.LittleEndian.PutUint16(idata[i*2:], idx)
	}

	bufs := []struct {
		dst   *hal.Buffer
		label string
		size  int
		data  []byte
		usage gputypes.BufferUsage
	}{
		{&p.rect, "hud_rect", rectUniformSize, nil, gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst},
		{&p.vertices, "hud_vertices", len(vdata), vdata, gputypes.BufferUsageVertex | gputypes.BufferUsageCopyDst},
		{&p.indices, "hud_indices", len(idata), idata, gputypes.BufferUsageIndex | gputypes.BufferUsageCopyDst},
	}
	for _, b := range bufs {
		buf, err := p.device.CreateBuffer(&hal.BufferDescriptor{
			Label: b.label,
			Size:  uint64(b.size), //nolint:gosec // sizes are small positive constants
			Usage: b.usage,
		})
		if err != nil {
			return fmt.Errorf("hud: create %s: %w", b.label, err)
		}
		*b.dst = buf
		if b.data != nil {
			p.queue.WriteBuffer(buf, 0, b.data)
		}
	}
	return nil
}

// upload writes img to the panel texture, recreating the texture and bind
// group if the size changed.
func (p *pipeline) upload(img *image.RGBA) error {
	size := img.Bounds().Size()
	if p.texture == nil || size != p.texSize {
		if err := p.createTexture(size); err != nil {
			return err
		}
	}

	pix := img.Pix
	stride := img.Stride
	if stride != size.X*4 {
		// Sub-images share a larger backing array; pack rows tightly.
		packed := make([]byte, size.X*size.Y*4)
		for y := range size.Y {
			copy(packed[y*size.X*4:(y+1)*size.X*4], pix[y*stride:y*stride+size.X*4])
		}
		pix, stride = packed, size.X*4
	}

	w, h := uint32(size.X), uint32(size.Y) //nolint:gosec // panel sizes are small positive values
	p.queue.WriteTexture(
		&hal.ImageCopyTexture{Texture: p.texture, MipLevel: 0},
		pix[:stride*size.Y],
		&hal.ImageDataLayout{
			Offset:       0,
			BytesPerRow:  uint32(stride), //nolint:gosec // stride is 4*width
			RowsPerImage: h,
		},
		&hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
	)
	return nil
}

func (p *pipeline) createTexture(size image.Point) error {
	p.destroyTexture()

	w, h := uint32(size.X), uint32(size.Y) //nolint:gosec // panel sizes are small positive values
	tex, err := p.device.CreateTexture(&hal.TextureDescriptor{
		Label:         "hud_panel",
		Size:          hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        gputypes.TextureFormatRGBA8Unorm,
		Usage:         gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("hud: create panel texture: %w", err)
	}
	p.texture = tex

	view, err := p.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label:         "hud_panel_view",
		Format:        gputypes.TextureFormatRGBA8Unorm,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		p.destroyTexture()
		return fmt.Errorf("hud: create panel view: %w", err)
	}
	p.view = view

	bg, err := p.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "hud_bind_group",
		Layout: p.layout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: bindingRect, Resource: gputypes.BufferBinding{
				Buffer: p.rect.NativeHandle(),
				Offset: 0,
				Size:   rectUniformSize,
			}},
			{Binding: bindingPanel, Resource: gputypes.TextureViewBinding{
				TextureView: gputypes.TextureViewHandle(view.NativeHandle()),
			}},
			{Binding: bindingSampler, Resource: gputypes.SamplerBinding{
				Sampler: gputypes.SamplerHandle(p.sampler.NativeHandle()),
			}},
		},
	})
	if err != nil {
		p.destroyTexture()
		return fmt.Errorf("hud: create bind group: %w", err)
	}
	p.bindGroup = bg
	p.texSize = size

	slogger().Debug("hud: panel texture", "width", w, "height", h)
	return nil
}

// setRect writes the panel position when it moved.
func (p *pipeline) setRect(r [4]float32) {
	if r == p.lastRect {
		return
	}
	data := make([]byte, rectUniformSize)
	for i, v := range r {
		binary.LittleEndian.PutUint32(data[i*4:], math.Float32bits(v))
	}
	p.queue.WriteBuffer(p.rect, 0, data)
	p.lastRect = r
}

func (p *pipeline) record(rp hal.RenderPassEncoder) {
	if p.bindGroup == nil {
		return
	}
	rp.SetPipeline(p.pipeline)
	rp.SetBindGroup(0, p.bindGroup, nil)
	rp.SetVertexBuffer(0, p.vertices, 0)
	rp.SetIndexBuffer(p.indices, gputypes.IndexFormatUint16, 0)
	rp.DrawIndexed(uint32(len(unitQuadIndices)), 1, 0, 0, 0)
}

func (p *pipeline) destroyTexture() {
	if p.bindGroup != nil {
		p.device.DestroyBindGroup(p.bindGroup)
		p.bindGroup = nil
	}
	if p.view != nil {
		p.device.DestroyTextureView(p.view)
		p.view = nil
	}
	if p.texture != nil {
		p.device.DestroyTexture(p.texture)
		p.texture = nil
	}
	p.texSize = image.Point{}
}

func (p *pipeline) destroy() {
	p.destroyTexture()
	for _, b := range []*hal.Buffer{&p.indices, &p.vertices, &p.rect} {
		if *b != nil {
			p.device.DestroyBuffer(*b)
			*b = nil
		}
	}
	if p.sampler != nil {
		p.device.DestroySampler(p.sampler)
		p.sampler = nil
	}
	if p.pipeline != nil {
		p.device.DestroyRenderPipeline(p.pipeline)
		p.pipeline = nil
	}
	if p.pipeLayout != nil {
		p.device.DestroyPipelineLayout(p.pipeLayout)
		p.pipeLayout = nil
	}
	if p.layout != nil {
		p.device.DestroyBindGroupLayout(p.layout)
		p.layout = nil
	}
	if p.shader != nil {
		p.device.DestroyShaderModule(p.shader)
		p.shader = nil
	}
}
