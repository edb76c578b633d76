package gpu

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/core1_0"
)

type layoutTransition struct {
	from, to core1_0.ImageLayout
}

type layoutBarrier struct {
	srcAccess, dstAccess core1_0.AccessFlags
	srcStage, dstStage   core1_0.PipelineStageFlags
}

var layoutBarriers = map[layoutTransition]layoutBarrier{
	{core1_0.ImageLayoutUndefined, core1_0.ImageLayoutTransferDstOptimal}: {
		dstAccess: core1_0.AccessTransferWrite,
		srcStage:  core1_0.PipelineStageTopOfPipe,
		dstStage:  core1_0.PipelineStageTransfer,
	},
	{core1_0.ImageLayoutTransferDstOptimal, core1_0.ImageLayoutShaderReadOnlyOptimal}: {
		srcAccess: core1_0.AccessTransferWrite,
		dstAccess: core1_0.AccessShaderRead,
		srcStage:  core1_0.PipelineStageTransfer,
		dstStage:  core1_0.PipelineStageFragmentShader,
	},
	{core1_0.ImageLayoutUndefined, core1_0.ImageLayoutDepthStencilAttachmentOptimal}: {
		dstAccess: core1_0.AccessDepthStencilAttachmentRead | core1_0.AccessDepthStencilAttachmentWrite,
		srcStage:  core1_0.PipelineStageTopOfPipe,
		dstStage:  core1_0.PipelineStageEarlyFragmentTests,
	},
	{core1_0.ImageLayoutUndefined, core1_0.ImageLayoutColorAttachmentOptimal}: {
		dstAccess: core1_0.AccessColorAttachmentRead | core1_0.AccessColorAttachmentWrite,
		srcStage:  core1_0.PipelineStageTopOfPipe,
		dstStage:  core1_0.PipelineStageColorAttachmentOutput,
	},
}

func barrierFor(oldLayout, newLayout core1_0.ImageLayout) (layoutBarrier, error) {
	b, ok := layoutBarriers[layoutTransition{oldLayout, newLayout}]
	if !ok {
		return layoutBarrier{}, errors.AssertionFailedf("unexpected layout transition: %s -> %s", oldLayout, newLayout)
	}
	return b, nil
}

// HasStencil reports whether a depth format carries a stencil component.
func HasStencil(format core1_0.Format) bool {
	switch format {
	case core1_0.FormatD32SignedFloatS8UnsignedInt,
		core1_0.FormatD24UnsignedNormalizedS8UnsignedInt,
		core1_0.FormatD16UnsignedNormalizedS8UnsignedInt:
		return true
	}
	return false
}

// AspectFor returns the image aspects a view or barrier on format must cover.
func AspectFor(format core1_0.Format) core1_0.ImageAspectFlags {
	switch format {
	case core1_0.FormatD32SignedFloat, core1_0.FormatD16UnsignedNormalized:
		return core1_0.ImageAspectDepth
	}
	if HasStencil(format) {
		return core1_0.ImageAspectDepth | core1_0.ImageAspectStencil
	}
	return core1_0.ImageAspectColor
}
