// Package target combines swapchain images and attachments into one
// framebuffer per image and owns the pipeline compiled against them.
package target

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/common"
	"github.com/vkngwrapper/core/core1_0"
	"github.com/vkngwrapper/vulkan-engine/internal/attachment"
	"github.com/vkngwrapper/vulkan-engine/internal/gpu"
)

// PipelineSpec is the fixed drawing state. Changing any of it means
// binding again.
type PipelineSpec struct {
	VertexShader   []uint32
	FragmentShader []uint32

	Bindings   []core1_0.VertexInputBindingDescription
	Attributes []core1_0.VertexInputAttributeDescription
	SetLayouts []core1_0.DescriptorSetLayout

	CullMode  core1_0.CullModeFlags
	FrontFace core1_0.FrontFace
	DepthTest bool

	// ColorOutputs is the number of color outputs the fragment shader writes.
	ColorOutputs int
	ClearColor   [4]float32
}

// Images is the part of the swapchain targets are built over.
type Images interface {
	Views() []core1_0.ImageView
	Format() core1_0.Format
	Extent() core1_0.Extent2D
}

type Binder struct {
	device core1_0.Device

	Layout         Layout
	Extent         core1_0.Extent2D
	RenderPass     core1_0.RenderPass
	PipelineLayout core1_0.PipelineLayout
	Pipeline       core1_0.Pipeline
	Targets        []core1_0.Framebuffer

	clearValues []core1_0.ClearValue
}

// Bind builds the render pass, the pipeline and one framebuffer per
// swapchain image.
func Bind(device core1_0.Device, images Images, set *attachment.Set, spec PipelineSpec) (*Binder, error) {
	layout := LayoutFor(set != nil && set.Multisampled())
	if err := layout.Check(set, spec); err != nil {
		return nil, err
	}

	b := &Binder{
		device:      device,
		Layout:      layout,
		Extent:      images.Extent(),
		clearValues: layout.clearValues(spec.ClearColor),
	}

	err := b.createRenderPass(images.Format(), set)
	if err == nil {
		err = b.createPipeline(set.Samples, spec)
	}
	if err == nil {
		err = b.createFramebuffers(images.Views(), set)
	}
	if err != nil {
		b.Teardown()
		return nil, err
	}

	if len(b.Targets) != len(images.Views()) {
		b.Teardown()
		return nil, errors.AssertionFailedf("%d render targets for %d swapchain images", len(b.Targets), len(images.Views()))
	}
	return b, nil
}

func (b *Binder) ClearValues() []core1_0.ClearValue { return b.clearValues }

func (b *Binder) createRenderPass(colorFormat core1_0.Format, set *attachment.Set) error {
	var res common.VkResult
	var err error
	b.RenderPass, res, err = b.device.CreateRenderPass(nil, b.Layout.renderPassInfo(colorFormat, set.Depth.Format, set.Samples))
	return gpu.Check("vkCreateRenderPass", res, err)
}

func (b *Binder) createShaderModule(code []uint32) (core1_0.ShaderModule, error) {
	module, res, err := b.device.CreateShaderModule(nil, core1_0.ShaderModuleCreateInfo{
		Code: code,
	})
	return module, gpu.Check("vkCreateShaderModule", res, err)
}

func (b *Binder) createPipeline(samples core1_0.SampleCountFlags, spec PipelineSpec) error {
	vertShader, err := b.createShaderModule(spec.VertexShader)
	if err != nil {
		return errors.Wrap(err, "vertex shader")
	}
	defer vertShader.Destroy(nil)

	fragShader, err := b.createShaderModule(spec.FragmentShader)
	if err != nil {
		return errors.Wrap(err, "fragment shader")
	}
	defer fragShader.Destroy(nil)

	var res common.VkResult
	b.PipelineLayout, res, err = b.device.CreatePipelineLayout(nil, core1_0.PipelineLayoutCreateInfo{
		SetLayouts: spec.SetLayouts,
	})
	if err != nil {
		return gpu.Check("vkCreatePipelineLayout", res, err)
	}

	pipelines, res, err := b.device.CreateGraphicsPipelines(nil, nil, []core1_0.GraphicsPipelineCreateInfo{
		{
			Stages: []core1_0.PipelineShaderStageCreateInfo{
				{
					Stage:  core1_0.StageVertex,
					Module: vertShader,
					Name:   "main",
				},
				{
					Stage:  core1_0.StageFragment,
					Module: fragShader,
					Name:   "main",
				},
			},
			VertexInputState: &core1_0.PipelineVertexInputStateCreateInfo{
				VertexBindingDescriptions:   spec.Bindings,
				VertexAttributeDescriptions: spec.Attributes,
			},
			InputAssemblyState: &core1_0.PipelineInputAssemblyStateCreateInfo{
				Topology: core1_0.PrimitiveTopologyTriangleList,
			},
			ViewportState: &core1_0.PipelineViewportStateCreateInfo{
				Viewports: []core1_0.Viewport{
					{
						Width:    float32(b.Extent.Width),
						Height:   float32(b.Extent.Height),
						MinDepth: 0,
						MaxDepth: 1,
					},
				},
				Scissors: []core1_0.Rect2D{
					{
						Offset: core1_0.Offset2D{X: 0, Y: 0},
						Extent: b.Extent,
					},
				},
			},
			RasterizationState: &core1_0.PipelineRasterizationStateCreateInfo{
				PolygonMode: core1_0.PolygonModeFill,
				CullMode:    spec.CullMode,
				FrontFace:   spec.FrontFace,
				LineWidth:   1.0,
			},
			MultisampleState: &core1_0.PipelineMultisampleStateCreateInfo{
				RasterizationSamples: samples,
				MinSampleShading:     1.0,
			},
			DepthStencilState: &core1_0.PipelineDepthStencilStateCreateInfo{
				DepthTestEnable:  spec.DepthTest,
				DepthWriteEnable: spec.DepthTest,
				DepthCompareOp:   core1_0.CompareOpLess,
			},
			ColorBlendState: &core1_0.PipelineColorBlendStateCreateInfo{
				LogicOp: core1_0.LogicOpCopy,
				Attachments: []core1_0.PipelineColorBlendAttachmentState{
					{
						ColorWriteMask: core1_0.ColorComponentRed | core1_0.ColorComponentGreen | core1_0.ColorComponentBlue | core1_0.ColorComponentAlpha,
					},
				},
			},
			Layout:            b.PipelineLayout,
			RenderPass:        b.RenderPass,
			Subpass:           0,
			BasePipelineIndex: -1,
		},
	})
	if err != nil {
		return gpu.Check("vkCreateGraphicsPipelines", res, err)
	}

	b.Pipeline = pipelines[0]
	return nil
}

func (b *Binder) createFramebuffers(views []core1_0.ImageView, set *attachment.Set) error {
	for _, view := range views {
		framebuffer, res, err := b.device.CreateFramebuffer(nil, core1_0.FramebufferCreateInfo{
			RenderPass:  b.RenderPass,
			Layers:      1,
			Attachments: b.Layout.views(view, set),
			Width:       b.Extent.Width,
			Height:      b.Extent.Height,
		})
		if err != nil {
			return gpu.Check("vkCreateFramebuffer", res, err)
		}

		b.Targets = append(b.Targets, framebuffer)
	}

	return nil
}

// Teardown destroys framebuffers, pipeline, pipeline layout and render
// pass.
func (b *Binder) Teardown() {
	for _, framebuffer := range b.Targets {
		framebuffer.Destroy(nil)
	}
	b.Targets = nil

	if b.Pipeline != nil {
		b.Pipeline.Destroy(nil)
		b.Pipeline = nil
	}

	if b.PipelineLayout != nil {
		b.PipelineLayout.Destroy(nil)
		b.PipelineLayout = nil
	}

	if b.RenderPass != nil {
		b.RenderPass.Destroy(nil)
		b.RenderPass = nil
	}
}
