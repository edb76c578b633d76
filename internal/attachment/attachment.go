// Package attachment builds the render attachments that sit beside the
// swapchain images: the depth buffer and the multisampled color target.
package attachment

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/core1_0"
	"github.com/vkngwrapper/vulkan-engine/internal/gpu"
)

var ErrNoDepthFormat = errors.New("no supported depth attachment format")

// DepthCandidates is the depth format preference order: combined
// depth/stencil by precision, then depth only.
var DepthCandidates = []core1_0.Format{
	core1_0.FormatD32SignedFloatS8UnsignedInt,
	core1_0.FormatD24UnsignedNormalizedS8UnsignedInt,
	core1_0.FormatD16UnsignedNormalizedS8UnsignedInt,
	core1_0.FormatD32SignedFloat,
	core1_0.FormatD16UnsignedNormalized,
}

// SelectDepthFormat returns the first candidate the device supports.
func SelectDepthFormat(supported func(core1_0.Format) bool) (core1_0.Format, error) {
	for _, format := range DepthCandidates {
		if supported(format) {
			return format, nil
		}
	}
	return core1_0.FormatUndefined, errors.Wrapf(ErrNoDepthFormat, "tried %d formats", len(DepthCandidates))
}

// Allocator is the part of gpu.Factory attachments are built with.
type Allocator interface {
	CreateImage(spec gpu.ImageSpec) (core1_0.Image, core1_0.DeviceMemory, error)
	CreateImageView(image core1_0.Image, format core1_0.Format, aspect core1_0.ImageAspectFlags) (core1_0.ImageView, error)
	TransitionImageLayout(image core1_0.Image, format core1_0.Format, oldLayout, newLayout core1_0.ImageLayout) error
}

type Resource struct {
	Image   core1_0.Image
	Memory  core1_0.DeviceMemory
	View    core1_0.ImageView
	Format  core1_0.Format
	Samples core1_0.SampleCountFlags
}

// Teardown frees view, image and memory in that order.
func (r *Resource) Teardown() {
	if r == nil {
		return
	}
	if r.View != nil {
		r.View.Destroy(nil)
		r.View = nil
	}
	if r.Image != nil {
		r.Image.Destroy(nil)
		r.Image = nil
	}
	if r.Memory != nil {
		r.Memory.Free(nil)
		r.Memory = nil
	}
}

func buildResource(alloc Allocator, extent core1_0.Extent2D, format core1_0.Format, samples core1_0.SampleCountFlags, usage core1_0.ImageUsageFlags, layout core1_0.ImageLayout) (*Resource, error) {
	r := &Resource{Format: format, Samples: samples}

	var err error
	r.Image, r.Memory, err = alloc.CreateImage(gpu.ImageSpec{
		Width:   extent.Width,
		Height:  extent.Height,
		Format:  format,
		Tiling:  core1_0.ImageTilingOptimal,
		Usage:   usage,
		Samples: samples,
		Memory:  core1_0.MemoryPropertyDeviceLocal,
	})
	if err != nil {
		return nil, err
	}

	r.View, err = alloc.CreateImageView(r.Image, format, gpu.AspectFor(format))
	if err == nil {
		err = alloc.TransitionImageLayout(r.Image, format, core1_0.ImageLayoutUndefined, layout)
	}
	if err != nil {
		r.Teardown()
		return nil, err
	}
	return r, nil
}

// Set is the attachments shared by every render target of one chain build.
// Color is nil when multisampling is off.
type Set struct {
	Depth   *Resource
	Color   *Resource
	Extent  core1_0.Extent2D
	Samples core1_0.SampleCountFlags
}

func (s *Set) Multisampled() bool {
	return s.Color != nil
}

// Build creates the attachments for extent and leaves each in its
// attachment-optimal layout.
func Build(alloc Allocator, extent core1_0.Extent2D, colorFormat, depthFormat core1_0.Format, samples core1_0.SampleCountFlags) (*Set, error) {
	if samples == 0 {
		samples = core1_0.Samples1
	}
	s := &Set{Extent: extent, Samples: samples}

	if samples != core1_0.Samples1 {
		color, err := buildResource(alloc, extent, colorFormat, samples,
			core1_0.ImageUsageTransientAttachment|core1_0.ImageUsageColorAttachment,
			core1_0.ImageLayoutColorAttachmentOptimal)
		if err != nil {
			return nil, errors.Wrap(err, "multisample color attachment")
		}
		s.Color = color
	}

	depth, err := buildResource(alloc, extent, depthFormat, samples,
		core1_0.ImageUsageDepthStencilAttachment,
		core1_0.ImageLayoutDepthStencilAttachmentOptimal)
	if err != nil {
		s.Teardown()
		return nil, errors.Wrap(err, "depth attachment")
	}
	s.Depth = depth

	return s, nil
}

func (s *Set) Teardown() {
	s.Depth.Teardown()
	s.Depth = nil
	s.Color.Teardown()
	s.Color = nil
}
