package gpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// volumetricGroups are the uniform groups bound by the volumetric pass,
// in binding order after the texture and sampler.
var volumetricGroups = []Group{
	GroupRotation, GroupViewport, GroupTime, GroupCamera,
	GroupCuts, GroupPerspective, GroupMinMax,
}

// volumetricPass ray-marches the current volume over the full-screen quad.
//
// The bind group layout is fixed for the lifetime of the pass; only the
// bind group is rebuilt when the volume changes, keeping the texture at
// binding 0 and the sampler at binding 1 across cube swaps.
type volumetricPass struct {
	device hal.Device

	shader     hal.ShaderModule
	layout     hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
	pipeline   hal.RenderPipeline

	bindGroup  hal.BindGroup
	generation uint64
}

func newVolumetricPass(device hal.Device, format gputypes.TextureFormat) (*volumetricPass, error) {
	vp := &volumetricPass{device: device}
	if err := vp.createPipeline(format); err != nil {
		vp.destroy()
		return nil, err
	}
	return vp, nil
}

func (vp *volumetricPass) createPipeline(format gputypes.TextureFormat) error {
	shader, err := vp.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "volumetric_shader",
		Source: hal.ShaderSource{WGSL: VolumetricShader()},
	})
	if err != nil {
		return fmt.Errorf("compile volumetric shader: %w", err)
	}
	vp.shader = shader

	entries := []gputypes.BindGroupLayoutEntry{
		{
			Binding:    bindingVolume,
			Visibility: gputypes.ShaderStageFragment,
			Texture: &gputypes.TextureBindingLayout{
				SampleType:    gputypes.TextureSampleTypeUnfilterableFloat,
				ViewDimension: gputypes.TextureViewDimension3D,
			},
		},
		{
			Binding:    bindingSampler,
			Visibility: gputypes.ShaderStageFragment,
			Sampler:    &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeNonFiltering},
		},
	}
	for _, g := range volumetricGroups {
		entries = append(entries, uniformLayoutEntry(g))
	}

	layout, err := vp.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   "volumetric_layout",
		Entries: entries,
	})
	if err != nil {
		return fmt.Errorf("create volumetric bind group layout: %w", err)
	}
	vp.layout = layout

	pipeLayout, err := vp.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "volumetric_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{layout},
	})
	if err != nil {
		return fmt.Errorf("create volumetric pipeline layout: %w", err)
	}
	vp.pipeLayout = pipeLayout

	pipeline, err := vp.device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  "volumetric_pipeline",
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
		return fmt.Errorf("create volumetric pipeline: %w", err)
	}
	vp.pipeline = pipeline
	return nil
}

// ensureBindGroup rebuilds the bind group when the volume generation has
// changed. The superseded bind group is returned so the caller can release
// it once the frame that stopped using it has completed.
func (vp *volumetricPass) ensureBindGroup(params *ParameterSet, volumes *VolumeManager) (retired hal.BindGroup, err error) {
	if vp.bindGroup != nil && vp.generation == volumes.Generation() {
		return nil, nil
	}
	vol := volumes.Current()

	entries := []gputypes.BindGroupEntry{
		{Binding: bindingVolume, Resource: gputypes.TextureViewBinding{
			TextureView: gputypes.TextureViewHandle(vol.view.NativeHandle()),
		}},
		{Binding: bindingSampler, Resource: gputypes.SamplerBinding{
			Sampler: gputypes.SamplerHandle(vol.sampler.NativeHandle()),
		}},
	}
	for _, g := range volumetricGroups {
		entries = append(entries, params.bindEntry(g))
	}

	bg, err := vp.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   "volumetric_bind_group",
		Layout:  vp.layout,
		Entries: entries,
	})
	if err != nil {
		return nil, fmt.Errorf("create volumetric bind group: %w", err)
	}

	retired = vp.bindGroup
	vp.bindGroup = bg
	vp.generation = volumes.Generation()
	slogger().Debug("gpu: volumetric bind group rebuilt", "generation", vp.generation)
	return retired, nil
}

func (vp *volumetricPass) record(rp hal.RenderPassEncoder, q *quad) {
	rp.SetPipeline(vp.pipeline)
	rp.SetBindGroup(0, vp.bindGroup, nil)
	q.draw(rp)
}

// destroy releases pipeline resources in reverse creation order.
func (vp *volumetricPass) destroy() {
	if vp.bindGroup != nil {
		vp.device.DestroyBindGroup(vp.bindGroup)
		vp.bindGroup = nil
	}
	if vp.pipeline != nil {
		vp.device.DestroyRenderPipeline(vp.pipeline)
		vp.pipeline = nil
	}
	if vp.pipeLayout != nil {
		vp.device.DestroyPipelineLayout(vp.pipeLayout)
		vp.pipeLayout = nil
	}
	if vp.layout != nil {
		vp.device.DestroyBindGroupLayout(vp.layout)
		vp.layout = nil
	}
	if vp.shader != nil {
		vp.device.DestroyShaderModule(vp.shader)
		vp.shader = nil
	}
}
