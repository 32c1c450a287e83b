//go:build !nogpu

package gpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/sprite"
	"github.com/gogpu/sprite/shader"
)

type pipelineKey struct {
	shader sprite.ShaderID
	blend  sprite.BlendMode
}

// pipelines owns the bind group layout shared by every sprite shader and
// builds one render pipeline per shader and blend mode on first use.
//
// Bind group 0:
//
//	binding 0: page texture (texture_2d<f32>, fragment)
//	binding 1: sampler (fragment)
type pipelines struct {
	device  hal.Device
	format  gputypes.TextureFormat
	shaders *shader.Registry

	groupLayout hal.BindGroupLayout
	layout      hal.PipelineLayout
	sampler     hal.Sampler
	modules     map[sprite.ShaderID]hal.ShaderModule
	cache       map[pipelineKey]hal.RenderPipeline
}

func newPipelines(device hal.Device, format gputypes.TextureFormat, shaders *shader.Registry) (*pipelines, error) {
	p := &pipelines{
		device:  device,
		format:  format,
		shaders: shaders,
		modules: make(map[sprite.ShaderID]hal.ShaderModule),
		cache:   make(map[pipelineKey]hal.RenderPipeline),
	}

	groupLayout, err := device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "sprite_page_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: gputypes.ShaderStageFragment,
				Texture: &gputypes.TextureBindingLayout{
					SampleType:    gputypes.TextureSampleTypeFloat,
					ViewDimension: gputypes.TextureViewDimension2D,
				},
			},
			{
				Binding:    1,
				Visibility: gputypes.ShaderStageFragment,
				Sampler:    &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create bind group layout: %w", err)
	}
	p.groupLayout = groupLayout

	layout, err := device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "sprite_pipeline_layout",
		BindGroupLayouts: []hal.BindGroupLayout{groupLayout},
	})
	if err != nil {
		p.destroy()
		return nil, fmt.Errorf("create pipeline layout: %w", err)
	}
	p.layout = layout

	sampler, err := device.CreateSampler(&hal.SamplerDescriptor{
		Label:        "sprite_sampler",
		AddressModeU: gputypes.AddressModeClampToEdge,
		AddressModeV: gputypes.AddressModeClampToEdge,
		AddressModeW: gputypes.AddressModeClampToEdge,
		MagFilter:    gputypes.FilterModeLinear,
		MinFilter:    gputypes.FilterModeLinear,
		MipmapFilter: gputypes.FilterModeNearest,
	})
	if err != nil {
		p.destroy()
		return nil, fmt.Errorf("create sampler: %w", err)
	}
	p.sampler = sampler
	return p, nil
}

// get returns the pipeline for a shader and blend mode.
func (p *pipelines) get(id sprite.ShaderID, blend sprite.BlendMode) (hal.RenderPipeline, error) {
	key := pipelineKey{shader: id, blend: blend}
	if rp, ok := p.cache[key]; ok {
		return rp, nil
	}

	module, err := p.module(id)
	if err != nil {
		return nil, err
	}
	state := blend.State()
	rp, err := p.device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  fmt.Sprintf("sprite_pipeline_%d_%s", id, blend),
		Layout: p.layout,
		Vertex: hal.VertexState{
			Module:     module,
			EntryPoint: shader.VertexEntry,
			Buffers:    []gputypes.VertexBufferLayout{sprite.VertexLayout()},
		},
		Fragment: &hal.FragmentState{
			Module:     module,
			EntryPoint: shader.FragmentEntry,
			Targets: []gputypes.ColorTargetState{{
				Format:    p.format,
				Blend:     &state,
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
		return nil, fmt.Errorf("create pipeline for shader %d blend %s: %w", id, blend, err)
	}
	p.cache[key] = rp
	sprite.Logger().Info("gpu: pipeline created", "shader", id, "blend", blend)
	return rp, nil
}

func (p *pipelines) module(id sprite.ShaderID) (hal.ShaderModule, error) {
	if m, ok := p.modules[id]; ok {
		return m, nil
	}
	sh, err := p.shaders.Get(id)
	if err != nil {
		return nil, err
	}
	m, err := p.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "sprite_shader_" + sh.Name,
		Source: hal.ShaderSource{WGSL: sh.Source, SPIRV: sh.SPIRV},
	})
	if err != nil {
		return nil, fmt.Errorf("create shader module %q: %w", sh.Name, err)
	}
	p.modules[id] = m
	return m, nil
}

func (p *pipelines) len() int { return len(p.cache) }

// destroy releases everything in reverse creation order.
func (p *pipelines) destroy() {
	for k, rp := range p.cache {
		p.device.DestroyRenderPipeline(rp)
		delete(p.cache, k)
	}
	for id, m := range p.modules {
		p.device.DestroyShaderModule(m)
		delete(p.modules, id)
	}
	if p.sampler != nil {
		p.device.DestroySampler(p.sampler)
		p.sampler = nil
	}
	if p.layout != nil {
		p.device.DestroyPipelineLayout(p.layout)
		p.layout = nil
	}
	if p.groupLayout != nil {
		p.device.DestroyBindGroupLayout(p.groupLayout)
		p.groupLayout = nil
	}
}
