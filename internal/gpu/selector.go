package gpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// selectorGroups are the uniform groups the selector pass reads. They are
// the same buffers the volumetric pass binds, at the same binding indices.
var selectorGroups = []Group{
	GroupRotation, GroupViewport, GroupCamera, GroupPerspective,
}

// selectorPass outlines the cube bounds over the volumetric image with
// straight (non-premultiplied) alpha-over blending.
type selectorPass struct {
	device hal.Device

	shader     hal.ShaderModule
	layout     hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
	pipeline   hal.RenderPipeline
	bindGroup  hal.BindGroup
}

// alphaOverBlend composites src over dst: rgb = src*a + dst*(1-a).
func alphaOverBlend() gputypes.BlendState {
	return gputypes.BlendState{
		Color: gputypes.BlendComponent{
			SrcFactor: gputypes.BlendFactorSrcAlpha,
			DstFactor: gputypes.BlendFactorOneMinusSrcAlpha,
			Operation: gputypes.BlendOperationAdd,
		},
		Alpha: gputypes.BlendComponent{
			SrcFactor: gputypes.BlendFactorOne,
			DstFactor: gputypes.BlendFactorOneMinusSrcAlpha,
			Operation: gputypes.BlendOperationAdd,
		},
	}
}

func newSelectorPass(device hal.Device, params *ParameterSet, format gputypes.TextureFormat) (*selectorPass, error) {
	sp := &selectorPass{device: device}
	if err := sp.create(params, format); err != nil {
		sp.destroy()
		return nil, err
	}
	return sp, nil
}

func (sp *selectorPass) create(params *ParameterSet, format gputypes.TextureFormat) error { //nolint:dupl // pipeline descriptors share structure with the volumetric pass
	shader, err := sp.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "selector_shader",
		Source: hal.ShaderSource{WGSL: SelectorShader()},
	})
	if err != nil {
		return fmt.Errorf("compile selector shader: %w", err)
	}
	sp.shader = shader

	layoutEntries := make([]gputypes.BindGroupLayoutEntry, 0, len(selectorGroups))
	bindEntries := make([]gputypes.BindGroupEntry, 0, len(selectorGroups))
	for _, g := range selectorGroups {
		layoutEntries = append(layoutEntries, uniformLayoutEntry(g))
		bindEntries = append(bindEntries, params.bindEntry(g))
	}

	layout, err := sp.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   "selector_layout",
		Entries: layoutEntries,
	})
	if err != nil {
		return fmt.Errorf("create selector bind group layout: %w", err)
	}
	sp.layout = layout

	pipeLayout, err := sp.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "selector_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{layout},
	})
	if err != nil {
		return fmt.Errorf("create selector pipeline layout: %w", err)
	}
	sp.pipeLayout = pipeLayout

	blend := alphaOverBlend()
	pipeline, err := sp.device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  "selector_pipeline",
		Layout: pipeLayout,
		Vertex: hal.VertexState{
			Module:     shader,
			EntryPoint: "vs_main",
			Buffers:    quadVertexLayout(),
		},
		Fragment: &hal.FragmentState{
			Module:     shader,
			EntryPoint: "fs_main",
			Targets: []gputypes.ColorTargetState{
				{
					Format:    format,
					Blend:     &blend,
					WriteMask: gputypes.ColorWriteMaskAll,
				},
			},
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
		return fmt.Errorf("create selector pipeline: %w", err)
	}
	sp.pipeline = pipeline

	// The uniform buffers live as long as the parameter set, so the bind
	// group is built once.
	bg, err := sp.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   "selector_bind_group",
		Layout:  layout,
		Entries: bindEntries,
	})
	if err != nil {
		return fmt.Errorf("create selector bind group: %w", err)
	}
	sp.bindGroup = bg
	return nil
}

func (sp *selectorPass) record(rp hal.RenderPassEncoder, q *quad) {
	rp.SetPipeline(sp.pipeline)
	rp.SetBindGroup(0, sp.bindGroup, nil)
	q.draw(rp)
}

func (sp *selectorPass) destroy() {
	if sp.bindGroup != nil {
		sp.device.DestroyBindGroup(sp.bindGroup)
		sp.bindGroup = nil
	}
	if sp.pipeline != nil {
		sp.device.DestroyRenderPipeline(sp.pipeline)
		sp.pipeline = nil
	}
	if sp.pipeLayout != nil {
		sp.device.DestroyPipelineLayout(sp.pipeLayout)
		sp.pipeLayout = nil
	}
	if sp.layout != nil {
		sp.device.DestroyBindGroupLayout(sp.layout)
		sp.layout = nil
	}
	if sp.shader != nil {
		sp.device.DestroyShaderModule(sp.shader)
		sp.shader = nil
	}
}
