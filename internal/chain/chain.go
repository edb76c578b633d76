// Package chain owns the swapchain: the ring of images a surface rotates
// through, their views, and acquire/present against it.
package chain

import (
	"log/slog"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/common"
	"github.com/vkngwrapper/core/core1_0"
	"github.com/vkngwrapper/extensions/khr_surface"
	"github.com/vkngwrapper/extensions/khr_swapchain"
	"github.com/vkngwrapper/vulkan-engine/internal/gpu"
	"github.com/vkngwrapper/vulkan-engine/internal/logging"
)

// Status is the non-fatal outcome of an acquire or present.
type Status int

const (
	StatusSuccess Status = iota
	// StatusSuboptimal means the operation completed but the chain no
	// longer matches the surface exactly.
	StatusSuboptimal
	// StatusOutOfDate means the operation did not happen and the chain
	// must be rebuilt.
	StatusOutOfDate
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusSuboptimal:
		return "suboptimal"
	case StatusOutOfDate:
		return "out of date"
	}
	return "unknown"
}

// statusOf separates staleness from failure. Timeouts and other positive
// result codes are failures too.
func statusOf(op string, res common.VkResult, err error) (Status, error) {
	switch res {
	case khr_swapchain.VKErrorOutOfDate:
		return StatusOutOfDate, nil
	case khr_swapchain.VKSuboptimal:
		return StatusSuboptimal, nil
	}

	if err != nil {
		return StatusSuccess, gpu.Check(op, res, err)
	}
	if res != core1_0.VKSuccess {
		return StatusSuccess, errors.Newf("%s: %v", op, res)
	}
	return StatusSuccess, nil
}

type Options struct {
	Factory        *gpu.Factory
	PhysicalDevice core1_0.PhysicalDevice
	Surface        khr_surface.Surface
	Families       gpu.QueueFamilies

	DrawableWidth, DrawableHeight int
	PreferredBufferCount          int
	PreferLowLatency              bool

	Logger *slog.Logger
}

type Chain struct {
	log *slog.Logger

	extension  khr_swapchain.Extension
	swapchain  khr_swapchain.Swapchain
	descriptor SurfaceDescriptor
	images     []core1_0.Image
	views      []core1_0.ImageView
}

// Query reads the surface's current capabilities.
func Query(physicalDevice core1_0.PhysicalDevice, surface khr_surface.Surface) (SurfaceQuery, error) {
	var q SurfaceQuery

	caps, res, err := surface.PhysicalDeviceSurfaceCapabilities(physicalDevice)
	if err != nil {
		return q, gpu.Check("vkGetPhysicalDeviceSurfaceCapabilitiesKHR", res, err)
	}
	q.Capabilities = caps

	q.Formats, res, err = surface.PhysicalDeviceSurfaceFormats(physicalDevice)
	if err != nil {
		return q, gpu.Check("vkGetPhysicalDeviceSurfaceFormatsKHR", res, err)
	}

	q.PresentModes, res, err = surface.PhysicalDeviceSurfacePresentModes(physicalDevice)
	if err != nil {
		return q, gpu.Check("vkGetPhysicalDeviceSurfacePresentModesKHR", res, err)
	}
	return q, nil
}

// Create builds a swapchain for the surface along with one view per image.
// It returns ErrExtentPending while the surface is zero-sized.
func Create(opts Options) (*Chain, error) {
	q, err := Query(opts.PhysicalDevice, opts.Surface)
	if err != nil {
		return nil, err
	}
	q.DrawableWidth, q.DrawableHeight = opts.DrawableWidth, opts.DrawableHeight
	q.PreferredBufferCount = opts.PreferredBufferCount
	q.PreferLowLatency = opts.PreferLowLatency

	d, err := Describe(q)
	if err != nil {
		return nil, err
	}

	sharingMode := core1_0.SharingModeExclusive
	var queueFamilyIndices []int
	if !opts.Families.Shared() {
		sharingMode = core1_0.SharingModeConcurrent
		queueFamilyIndices = opts.Families.Indices()
	}

	device := opts.Factory.Device()
	c := &Chain{
		log:        logging.OrDiscard(opts.Logger),
		extension:  khr_swapchain.CreateExtensionFromDevice(device),
		descriptor: d,
	}

	var res common.VkResult
	c.swapchain, res, err = c.extension.CreateSwapchain(device, nil, khr_swapchain.SwapchainCreateInfo{
		Surface: opts.Surface,

		MinImageCount:    d.ImageCount,
		ImageFormat:      d.Format.Format,
		ImageColorSpace:  d.Format.ColorSpace,
		ImageExtent:      d.Extent,
		ImageArrayLayers: 1,
		ImageUsage:       core1_0.ImageUsageColorAttachment,

		ImageSharingMode:   sharingMode,
		QueueFamilyIndices: queueFamilyIndices,

		PreTransform:   d.Capabilities.CurrentTransform,
		CompositeAlpha: d.CompositeAlpha,
		PresentMode:    d.PresentMode,
		Clipped:        true,
	})
	if err != nil {
		return nil, gpu.Check("vkCreateSwapchainKHR", res, err)
	}

	c.images, res, err = c.swapchain.SwapchainImages()
	if err != nil {
		c.Destroy()
		return nil, gpu.Check("vkGetSwapchainImagesKHR", res, err)
	}

	for _, image := range c.images {
		view, err := opts.Factory.CreateImageView(image, d.Format.Format, core1_0.ImageAspectColor)
		if err != nil {
			c.Destroy()
			return nil, err
		}
		c.views = append(c.views, view)
	}

	c.log.Info("swapchain created",
		"width", d.Extent.Width,
		"height", d.Extent.Height,
		"images", len(c.images),
		"format", d.Format.Format,
		"presentMode", d.PresentMode)
	return c, nil
}

func (c *Chain) Descriptor() SurfaceDescriptor { return c.descriptor }
func (c *Chain) Extent() core1_0.Extent2D     { return c.descriptor.Extent }
func (c *Chain) Format() core1_0.Format       { return c.descriptor.Format.Format }
func (c *Chain) Len() int                     { return len(c.views) }
func (c *Chain) Views() []core1_0.ImageView   { return c.views }

// AcquireNext asks for the next image, signaling acquired once it is
// ready. The index is only valid when the status is not StatusOutOfDate.
func (c *Chain) AcquireNext(timeout time.Duration, acquired core1_0.Semaphore) (int, Status, error) {
	if c.swapchain == nil {
		return 0, StatusSuccess, errors.AssertionFailedf("acquire on a destroyed swapchain")
	}

	index, res, err := c.swapchain.AcquireNextImage(timeout, acquired, nil)
	status, err := statusOf("vkAcquireNextImageKHR", res, err)
	if err != nil {
		return 0, status, err
	}
	if status != StatusOutOfDate && (index < 0 || index >= len(c.views)) {
		return 0, status, errors.AssertionFailedf("acquired image %d outside a chain of %d", index, len(c.views))
	}
	return index, status, nil
}

// Present queues image index for display once renderDone is signaled.
func (c *Chain) Present(queue core1_0.Queue, renderDone core1_0.Semaphore, index int) (Status, error) {
	if c.swapchain == nil {
		return StatusSuccess, errors.AssertionFailedf("present on a destroyed swapchain")
	}

	res, err := c.extension.QueuePresent(queue, khr_swapchain.PresentInfo{
		WaitSemaphores: []core1_0.Semaphore{renderDone},
		Swapchains:     []khr_swapchain.Swapchain{c.swapchain},
		ImageIndices:   []int{index},
	})
	return statusOf("vkQueuePresentKHR", res, err)
}

// Destroy releases the views and the swapchain. It must run before the
// surface is destroyed.
func (c *Chain) Destroy() {
	for _, view := range c.views {
		view.Destroy(nil)
	}
	c.views = nil
	c.images = nil

	if c.swapchain != nil {
		c.swapchain.Destroy(nil)
		c.swapchain = nil
	}
}
