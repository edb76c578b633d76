package target

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/common"
	"github.com/vkngwrapper/core/core1_0"
	"github.com/vkngwrapper/core/driver"
	"github.com/vkngwrapper/extensions/khr_swapchain"
	"github.com/vkngwrapper/vulkan-engine/internal/attachment"
)

type fakeView struct {
	core1_0.ImageView
	name string
}

func attachments(multisampled bool) *attachment.Set {
	set := &attachment.Set{
		Depth:   &attachment.Resource{View: &fakeView{name: "depth"}, Format: core1_0.FormatD32SignedFloat},
		Samples: core1_0.Samples1,
	}
	if multisampled {
		set.Samples = core1_0.Samples4
		set.Depth.Samples = core1_0.Samples4
		set.Color = &attachment.Resource{View: &fakeView{name: "msaa"}, Format: core1_0.FormatB8G8R8A8SRGB, Samples: core1_0.Samples4}
	}
	return set
}

func name(v core1_0.ImageView) string {
	if f, ok := v.(*fakeView); ok {
		return f.name
	}
	return "?"
}

func TestLayoutViews(t *testing.T) {
	present := &fakeView{name: "present"}

	tests := []struct {
		multisampled bool
		want         []string
	}{
		{false, []string{"present", "depth"}},
		{true, []string{"msaa", "depth", "present"}},
	}

	for _, tt := range tests {
		l := LayoutFor(tt.multisampled)
		views := l.views(present, attachments(tt.multisampled))
		if len(views) != len(tt.want) {
			t.Fatalf("multisampled=%v: %d views, want %d", tt.multisampled, len(views), len(tt.want))
		}
		for i, v := range views {
			if name(v) != tt.want[i] {
				t.Errorf("multisampled=%v: view %d = %s, want %s", tt.multisampled, i, name(v), tt.want[i])
			}
		}
		if name(views[l.Present()]) != "present" {
			t.Errorf("multisampled=%v: Present() = %d does not hold the swapchain view", tt.multisampled, l.Present())
		}
	}
}

func TestLayoutCheck(t *testing.T) {
	spec := PipelineSpec{ColorOutputs: 1}

	if err := LayoutFor(true).Check(attachments(true), spec); err != nil {
		t.Errorf("multisampled Check() = %v", err)
	}
	if err := LayoutFor(false).Check(attachments(false), spec); err != nil {
		t.Errorf("single-sample Check() = %v", err)
	}

	tests := []struct {
		name   string
		layout Layout
		set    *attachment.Set
		spec   PipelineSpec
	}{
		{"resolve without msaa color", LayoutFor(true), attachments(false), spec},
		{"msaa color without resolve", LayoutFor(false), attachments(true), spec},
		{"duplicate index", Layout{Color: 0, Depth: 0, Resolve: -1, Count: 2}, attachments(false), spec},
		{"index out of range", Layout{Color: 0, Depth: 2, Resolve: -1, Count: 2}, attachments(false), spec},
		{"unassigned slot", Layout{Color: 0, Depth: 1, Resolve: -1, Count: 3}, attachments(false), spec},
		{"extra color output", LayoutFor(false), attachments(false), PipelineSpec{ColorOutputs: 2}},
		{"missing depth", LayoutFor(false), &attachment.Set{}, spec},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.layout.Check(tt.set, tt.spec)
			if !errors.HasAssertionFailure(err) {
				t.Errorf("Check() = %v, want assertion failure", err)
			}
		})
	}
}

func TestRenderPassResolvesIntoPresentImage(t *testing.T) {
	l := LayoutFor(true)
	info := l.renderPassInfo(core1_0.FormatB8G8R8A8SRGB, core1_0.FormatD32SignedFloat, core1_0.Samples4)

	if len(info.Attachments) != 3 {
		t.Fatalf("%d attachments, want 3", len(info.Attachments))
	}
	if info.Attachments[l.Color].Samples != core1_0.Samples4 {
		t.Error("multisampled color attachment is not 4x")
	}
	if info.Attachments[l.Color].FinalLayout == khr_swapchain.ImageLayoutPresentSrc {
		t.Error("multisampled color attachment is presented directly")
	}
	if info.Attachments[l.Resolve].Samples != core1_0.Samples1 || info.Attachments[l.Resolve].FinalLayout != khr_swapchain.ImageLayoutPresentSrc {
		t.Errorf("resolve attachment = %+v, want single-sample present layout", info.Attachments[l.Resolve])
	}

	subpass := info.Subpasses[0]
	if len(subpass.ResolveAttachments) != 1 || subpass.ResolveAttachments[0].Attachment != l.Resolve {
		t.Errorf("subpass resolve = %+v, want attachment %d", subpass.ResolveAttachments, l.Resolve)
	}
	if subpass.DepthStencilAttachment.Attachment != l.Depth {
		t.Errorf("depth reference = %d, want %d", subpass.DepthStencilAttachment.Attachment, l.Depth)
	}
}

func TestRenderPassSingleSample(t *testing.T) {
	l := LayoutFor(false)
	info := l.renderPassInfo(core1_0.FormatB8G8R8A8SRGB, core1_0.FormatD32SignedFloat, core1_0.Samples1)

	if len(info.Attachments) != 2 {
		t.Fatalf("%d attachments, want 2", len(info.Attachments))
	}
	if info.Attachments[l.Color].FinalLayout != khr_swapchain.ImageLayoutPresentSrc {
		t.Error("swapchain attachment does not end in the present layout")
	}
	if len(info.Subpasses[0].ResolveAttachments) != 0 {
		t.Error("single-sample subpass declares a resolve")
	}
}

func TestClearValues(t *testing.T) {
	l := LayoutFor(true)
	values := l.clearValues([4]float32{0, 0, 0, 1})
	if len(values) != l.Count {
		t.Fatalf("%d clear values, want %d", len(values), l.Count)
	}
	if _, ok := values[l.Depth].(core1_0.ClearValueDepthStencil); !ok {
		t.Errorf("depth clear value is %T", values[l.Depth])
	}
	if _, ok := values[l.Color].(core1_0.ClearValueFloat); !ok {
		t.Errorf("color clear value is %T", values[l.Color])
	}
}

type fakeImages struct {
	views []core1_0.ImageView
}

func (f fakeImages) Views() []core1_0.ImageView { return f.views }
func (f fakeImages) Format() core1_0.Format     { return core1_0.FormatB8G8R8A8SRGB }
func (f fakeImages) Extent() core1_0.Extent2D {
	return core1_0.Extent2D{Width: 800, Height: 600}
}

type fakeShader struct {
	core1_0.ShaderModule
}

func (fakeShader) Destroy(*driver.AllocationCallbacks) {}

type fakeDevice struct {
	core1_0.Device

	renderPass   core1_0.RenderPassCreateInfo
	pipeline     core1_0.GraphicsPipelineCreateInfo
	framebuffers []core1_0.FramebufferCreateInfo
}

func (d *fakeDevice) CreateRenderPass(_ *driver.AllocationCallbacks, o core1_0.RenderPassCreateInfo) (core1_0.RenderPass, common.VkResult, error) {
	d.renderPass = o
	return nil, core1_0.VKSuccess, nil
}

func (d *fakeDevice) CreateShaderModule(_ *driver.AllocationCallbacks, o core1_0.ShaderModuleCreateInfo) (core1_0.ShaderModule, common.VkResult, error) {
	return fakeShader{}, core1_0.VKSuccess, nil
}

func (d *fakeDevice) CreatePipelineLayout(_ *driver.AllocationCallbacks, o core1_0.PipelineLayoutCreateInfo) (core1_0.PipelineLayout, common.VkResult, error) {
	return nil, core1_0.VKSuccess, nil
}

func (d *fakeDevice) CreateGraphicsPipelines(_ core1_0.PipelineCache, _ *driver.AllocationCallbacks, o []core1_0.GraphicsPipelineCreateInfo) ([]core1_0.Pipeline, common.VkResult, error) {
	d.pipeline = o[0]
	return []core1_0.Pipeline{nil}, core1_0.VKSuccess, nil
}

func (d *fakeDevice) CreateFramebuffer(_ *driver.AllocationCallbacks, o core1_0.FramebufferCreateInfo) (core1_0.Framebuffer, common.VkResult, error) {
	d.framebuffers = append(d.framebuffers, o)
	return nil, core1_0.VKSuccess, nil
}

func TestBindOneTargetPerImage(t *testing.T) {
	for _, images := range []int{2, 3, 4} {
		device := &fakeDevice{}
		var views []core1_0.ImageView
		for i := 0; i < images; i++ {
			views = append(views, &fakeView{name: "present"})
		}

		b, err := Bind(device, fakeImages{views: views}, attachments(true), PipelineSpec{ColorOutputs: 1, DepthTest: true})
		if err != nil {
			t.Fatalf("Bind() error = %v", err)
		}

		if len(b.Targets) != images {
			t.Errorf("%d targets for %d images", len(b.Targets), images)
		}
		for i, fb := range device.framebuffers {
			if len(fb.Attachments) != 3 || fb.Attachments[2] != views[i] {
				t.Errorf("framebuffer %d attachments = %v", i, fb.Attachments)
			}
			if fb.Width != 800 || fb.Height != 600 {
				t.Errorf("framebuffer %d is %dx%d", i, fb.Width, fb.Height)
			}
		}
		if device.pipeline.MultisampleState.RasterizationSamples != core1_0.Samples4 {
			t.Error("pipeline does not rasterize at the attachment sample count")
		}
	}
}

func TestBindRejectsMismatchedPipeline(t *testing.T) {
	device := &fakeDevice{}
	_, err := Bind(device, fakeImages{}, attachments(false), PipelineSpec{ColorOutputs: 2})
	if !errors.HasAssertionFailure(err) {
		t.Errorf("Bind() error = %v, want assertion failure", err)
	}
	if len(device.renderPass.Attachments) != 0 {
		t.Error("Bind() created a render pass before validating the layout")
	}
}
