package target

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/core1_0"
	"github.com/vkngwrapper/extensions/khr_swapchain"
	"github.com/vkngwrapper/vulkan-engine/internal/attachment"
)

// Layout fixes which framebuffer attachment index holds which image.
// Without multisampling the swapchain image is rendered to directly and
// Resolve is -1.
type Layout struct {
	Color   int
	Depth   int
	Resolve int
	Count   int
}

func LayoutFor(multisampled bool) Layout {
	if multisampled {
		return Layout{Color: 0, Depth: 1, Resolve: 2, Count: 3}
	}
	return Layout{Color: 0, Depth: 1, Resolve: -1, Count: 2}
}

func (l Layout) Multisampled() bool { return l.Resolve >= 0 }

// Present is the index the swapchain image occupies.
func (l Layout) Present() int {
	if l.Multisampled() {
		return l.Resolve
	}
	return l.Color
}

// Check asserts that the layout, the attachment set and the pipeline agree.
func (l Layout) Check(set *attachment.Set, spec PipelineSpec) error {
	if set == nil || set.Depth == nil {
		return errors.AssertionFailedf("render targets need a depth attachment")
	}
	if l.Multisampled() != set.Multisampled() {
		return errors.AssertionFailedf("layout multisampled=%v but attachments multisampled=%v", l.Multisampled(), set.Multisampled())
	}

	seen := make(map[int]bool, l.Count)
	indices := []int{l.Color, l.Depth}
	if l.Multisampled() {
		indices = append(indices, l.Resolve)
	}
	for _, idx := range indices {
		if idx < 0 || idx >= l.Count {
			return errors.AssertionFailedf("attachment index %d outside [0, %d)", idx, l.Count)
		}
		if seen[idx] {
			return errors.AssertionFailedf("attachment index %d used twice", idx)
		}
		seen[idx] = true
	}
	if len(seen) != l.Count {
		return errors.AssertionFailedf("layout declares %d attachments but assigns %d", l.Count, len(seen))
	}

	if spec.ColorOutputs != 1 {
		return errors.AssertionFailedf("pipeline writes %d color outputs, render pass has 1", spec.ColorOutputs)
	}
	return nil
}

// views orders one target's image views by attachment index.
func (l Layout) views(present core1_0.ImageView, set *attachment.Set) []core1_0.ImageView {
	views := make([]core1_0.ImageView, l.Count)
	views[l.Depth] = set.Depth.View
	if l.Multisampled() {
		views[l.Color] = set.Color.View
		views[l.Resolve] = present
	} else {
		views[l.Color] = present
	}
	return views
}

func (l Layout) clearValues(color [4]float32) []core1_0.ClearValue {
	values := make([]core1_0.ClearValue, l.Count)
	for i := range values {
		values[i] = core1_0.ClearValueFloat(color)
	}
	values[l.Depth] = core1_0.ClearValueDepthStencil{Depth: 1.0, Stencil: 0}
	return values
}

// renderPassInfo declares render, then resolve into the swapchain image,
// then the transition to the present layout.
func (l Layout) renderPassInfo(colorFormat, depthFormat core1_0.Format, samples core1_0.SampleCountFlags) core1_0.RenderPassCreateInfo {
	attachments := make([]core1_0.AttachmentDescription, l.Count)

	attachments[l.Depth] = core1_0.AttachmentDescription{
		Format:         depthFormat,
		Samples:        samples,
		LoadOp:         core1_0.AttachmentLoadOpClear,
		StoreOp:        core1_0.AttachmentStoreOpDontCare,
		StencilLoadOp:  core1_0.AttachmentLoadOpDontCare,
		StencilStoreOp: core1_0.AttachmentStoreOpDontCare,
		InitialLayout:  core1_0.ImageLayoutUndefined,
		FinalLayout:    core1_0.ImageLayoutDepthStencilAttachmentOptimal,
	}

	subpass := core1_0.SubpassDescription{
		PipelineBindPoint: core1_0.PipelineBindPointGraphics,
		ColorAttachments: []core1_0.AttachmentReference{
			{
				Attachment: l.Color,
				Layout:     core1_0.ImageLayoutColorAttachmentOptimal,
			},
		},
		DepthStencilAttachment: &core1_0.AttachmentReference{
			Attachment: l.Depth,
			Layout:     core1_0.ImageLayoutDepthStencilAttachmentOptimal,
		},
	}

	if l.Multisampled() {
		attachments[l.Color] = core1_0.AttachmentDescription{
			Format:         colorFormat,
			Samples:        samples,
			LoadOp:         core1_0.AttachmentLoadOpClear,
			StoreOp:        core1_0.AttachmentStoreOpDontCare,
			StencilLoadOp:  core1_0.AttachmentLoadOpDontCare,
			StencilStoreOp: core1_0.AttachmentStoreOpDontCare,
			InitialLayout:  core1_0.ImageLayoutUndefined,
			FinalLayout:    core1_0.ImageLayoutColorAttachmentOptimal,
		}
		attachments[l.Resolve] = core1_0.AttachmentDescription{
			Format:         colorFormat,
			Samples:        core1_0.Samples1,
			LoadOp:         core1_0.AttachmentLoadOpDontCare,
			StoreOp:        core1_0.AttachmentStoreOpStore,
			StencilLoadOp:  core1_0.AttachmentLoadOpDontCare,
			StencilStoreOp: core1_0.AttachmentStoreOpDontCare,
			InitialLayout:  core1_0.ImageLayoutUndefined,
			FinalLayout:    khr_swapchain.ImageLayoutPresentSrc,
		}
		subpass.ResolveAttachments = []core1_0.AttachmentReference{
			{
				Attachment: l.Resolve,
				Layout:     core1_0.ImageLayoutColorAttachmentOptimal,
			},
		}
	} else {
		attachments[l.Color] = core1_0.AttachmentDescription{
			Format:         colorFormat,
			Samples:        core1_0.Samples1,
			LoadOp:         core1_0.AttachmentLoadOpClear,
			StoreOp:        core1_0.AttachmentStoreOpStore,
			StencilLoadOp:  core1_0.AttachmentLoadOpDontCare,
			StencilStoreOp: core1_0.AttachmentStoreOpDontCare,
			InitialLayout:  core1_0.ImageLayoutUndefined,
			FinalLayout:    khr_swapchain.ImageLayoutPresentSrc,
		}
	}

	return core1_0.RenderPassCreateInfo{
		Attachments: attachments,
		Subpasses:   []core1_0.SubpassDescription{subpass},
		SubpassDependencies: []core1_0.SubpassDependency{
			{
				SrcSubpass: core1_0.SubpassExternal,
				DstSubpass: 0,

				SrcStageMask:  core1_0.PipelineStageColorAttachmentOutput | core1_0.PipelineStageEarlyFragmentTests,
				SrcAccessMask: 0,

				DstStageMask:  core1_0.PipelineStageColorAttachmentOutput | core1_0.PipelineStageEarlyFragmentTests,
				DstAccessMask: core1_0.AccessColorAttachmentWrite | core1_0.AccessDepthStencilAttachmentWrite,
			},
		},
	}
}
