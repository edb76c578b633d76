package gpu

import (
	"encoding/binary"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/core1_0"
)

// Factory creates GPU buffers and images with bound memory and runs one-shot
// command submissions on the graphics queue. It holds no per-resource state.
type Factory struct {
	device      core1_0.Device
	queue       core1_0.Queue
	pool        core1_0.CommandPool
	memoryTypes []core1_0.MemoryType
}

func NewFactory(device core1_0.Device, queue core1_0.Queue, pool core1_0.CommandPool, memoryTypes []core1_0.MemoryType) *Factory {
	return &Factory{device: device, queue: queue, pool: pool, memoryTypes: memoryTypes}
}

func (f *Factory) Device() core1_0.Device { return f.device }

func (f *Factory) allocate(size int, typeBits uint32, properties core1_0.MemoryPropertyFlags) (core1_0.DeviceMemory, error) {
	memoryTypeIndex, err := FindMemoryType(f.memoryTypes, typeBits, properties)
	if err != nil {
		return nil, err
	}

	memory, res, err := f.device.AllocateMemory(nil, core1_0.MemoryAllocateInfo{
		AllocationSize:  size,
		MemoryTypeIndex: memoryTypeIndex,
	})
	if err != nil {
		return nil, Check("vkAllocateMemory", res, err)
	}
	return memory, nil
}

func (f *Factory) CreateBuffer(size int, usage core1_0.BufferUsageFlags, properties core1_0.MemoryPropertyFlags) (core1_0.Buffer, core1_0.DeviceMemory, error) {
	buffer, res, err := f.device.CreateBuffer(nil, core1_0.BufferCreateInfo{
		Size:        size,
		Usage:       usage,
		SharingMode: core1_0.SharingModeExclusive,
	})
	if err != nil {
		return nil, nil, Check("vkCreateBuffer", res, err)
	}

	reqs := buffer.MemoryRequirements()
	memory, err := f.allocate(reqs.Size, reqs.MemoryTypeBits, properties)
	if err != nil {
		buffer.Destroy(nil)
		return nil, nil, err
	}

	res, err = buffer.BindBufferMemory(memory, 0)
	if err != nil {
		buffer.Destroy(nil)
		memory.Free(nil)
		return nil, nil, Check("vkBindBufferMemory", res, err)
	}

	return buffer, memory, nil
}

// ImageSpec describes a single-level 2D image.
type ImageSpec struct {
	Width, Height int
	Format        core1_0.Format
	Tiling        core1_0.ImageTiling
	Usage         core1_0.ImageUsageFlags
	Samples       core1_0.SampleCountFlags
	Memory        core1_0.MemoryPropertyFlags
}

func (f *Factory) CreateImage(spec ImageSpec) (core1_0.Image, core1_0.DeviceMemory, error) {
	samples := spec.Samples
	if samples == 0 {
		samples = core1_0.Samples1
	}

	image, res, err := f.device.CreateImage(nil, core1_0.ImageCreateOptions{
		ImageType: core1_0.ImageType2D,
		Extent: core1_0.Extent3D{
			Width:  spec.Width,
			Height: spec.Height,
			Depth:  1,
		},
		MipLevels:     1,
		ArrayLayers:   1,
		Format:        spec.Format,
		Tiling:        spec.Tiling,
		InitialLayout: core1_0.ImageLayoutUndefined,
		Usage:         spec.Usage,
		SharingMode:   core1_0.SharingModeExclusive,
		Samples:       samples,
	})
	if err != nil {
		return nil, nil, Check("vkCreateImage", res, err)
	}

	reqs := image.MemoryRequirements()
	memory, err := f.allocate(reqs.Size, reqs.MemoryTypeBits, spec.Memory)
	if err != nil {
		image.Destroy(nil)
		return nil, nil, err
	}

	res, err = image.BindImageMemory(memory, 0)
	if err != nil {
		image.Destroy(nil)
		memory.Free(nil)
		return nil, nil, Check("vkBindImageMemory", res, err)
	}

	return image, memory, nil
}

func (f *Factory) CreateImageView(image core1_0.Image, format core1_0.Format, aspect core1_0.ImageAspectFlags) (core1_0.ImageView, error) {
	view, res, err := f.device.CreateImageView(nil, core1_0.ImageViewCreateInfo{
		Image:    image,
		ViewType: core1_0.ImageViewType2D,
		Format:   format,
		SubresourceRange: core1_0.ImageSubresourceRange{
			AspectMask:     aspect,
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	})
	if err != nil {
		return nil, Check("vkCreateImageView", res, err)
	}
	return view, nil
}

// RunOneShot records commands into a temporary command buffer, submits it
// and waits for the queue to drain before returning.
func (f *Factory) RunOneShot(record func(cmd core1_0.CommandBuffer) error) error {
	buffers, res, err := f.device.AllocateCommandBuffers(core1_0.CommandBufferAllocateInfo{
		CommandPool:        f.pool,
		Level:              core1_0.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	})
	if err != nil {
		return Check("vkAllocateCommandBuffers", res, err)
	}
	defer f.device.FreeCommandBuffers(buffers)

	cmd := buffers[0]
	res, err = cmd.Begin(core1_0.CommandBufferBeginInfo{
		Flags: core1_0.CommandBufferUsageOneTimeSubmit,
	})
	if err != nil {
		return Check("vkBeginCommandBuffer", res, err)
	}

	if err := record(cmd); err != nil {
		return err
	}

	res, err = cmd.End()
	if err != nil {
		return Check("vkEndCommandBuffer", res, err)
	}

	res, err = f.queue.Submit(nil, []core1_0.SubmitInfo{
		{
			CommandBuffers: []core1_0.CommandBuffer{cmd},
		},
	})
	if err != nil {
		return Check("vkQueueSubmit", res, err)
	}

	res, err = f.queue.WaitIdle()
	return Check("vkQueueWaitIdle", res, err)
}

func (f *Factory) TransitionImageLayout(image core1_0.Image, format core1_0.Format, oldLayout, newLayout core1_0.ImageLayout) error {
	barrier, err := barrierFor(oldLayout, newLayout)
	if err != nil {
		return err
	}

	return f.RunOneShot(func(cmd core1_0.CommandBuffer) error {
		return cmd.CmdPipelineBarrier(barrier.srcStage, barrier.dstStage, 0, nil, nil, []core1_0.ImageMemoryBarrier{
			{
				OldLayout:           oldLayout,
				NewLayout:           newLayout,
				SrcQueueFamilyIndex: -1,
				DstQueueFamilyIndex: -1,
				Image:               image,
				SubresourceRange: core1_0.ImageSubresourceRange{
					AspectMask:     AspectFor(format),
					BaseMipLevel:   0,
					LevelCount:     1,
					BaseArrayLayer: 0,
					LayerCount:     1,
				},
				SrcAccessMask: barrier.srcAccess,
				DstAccessMask: barrier.dstAccess,
			},
		})
	})
}

func (f *Factory) CopyBuffer(src, dst core1_0.Buffer, size int) error {
	return f.RunOneShot(func(cmd core1_0.CommandBuffer) error {
		return cmd.CmdCopyBuffer(src, dst, []core1_0.BufferCopy{
			{
				SrcOffset: 0,
				DstOffset: 0,
				Size:      size,
			},
		})
	})
}

func (f *Factory) CopyBufferToImage(buffer core1_0.Buffer, image core1_0.Image, width, height int) error {
	return f.RunOneShot(func(cmd core1_0.CommandBuffer) error {
		return cmd.CmdCopyBufferToImage(buffer, image, core1_0.ImageLayoutTransferDstOptimal, []core1_0.BufferImageCopy{
			{
				ImageSubresource: core1_0.ImageSubresourceLayers{
					AspectMask:     core1_0.ImageAspectColor,
					MipLevel:       0,
					BaseArrayLayer: 0,
					LayerCount:     1,
				},
				ImageOffset: core1_0.Offset3D{X: 0, Y: 0, Z: 0},
				ImageExtent: core1_0.Extent3D{Width: width, Height: height, Depth: 1},
			},
		})
	})
}

func (f *Factory) staging(data any) (core1_0.Buffer, core1_0.DeviceMemory, int, error) {
	size := binary.Size(data)
	if size <= 0 {
		return nil, nil, 0, errors.AssertionFailedf("cannot upload %T", data)
	}

	buffer, memory, err := f.CreateBuffer(size, core1_0.BufferUsageTransferSrc, core1_0.MemoryPropertyHostVisible|core1_0.MemoryPropertyHostCoherent)
	if err != nil {
		return nil, nil, 0, err
	}

	if err := WriteData(memory, 0, data); err != nil {
		buffer.Destroy(nil)
		memory.Free(nil)
		return nil, nil, 0, err
	}
	return buffer, memory, size, nil
}

// UploadBuffer creates a device-local buffer holding data, filled through a
// host-visible staging buffer.
func (f *Factory) UploadBuffer(data any, usage core1_0.BufferUsageFlags) (core1_0.Buffer, core1_0.DeviceMemory, error) {
	stagingBuffer, stagingMemory, size, err := f.staging(data)
	if err != nil {
		return nil, nil, err
	}
	defer stagingMemory.Free(nil)
	defer stagingBuffer.Destroy(nil)

	buffer, memory, err := f.CreateBuffer(size, core1_0.BufferUsageTransferDst|usage, core1_0.MemoryPropertyDeviceLocal)
	if err != nil {
		return nil, nil, err
	}

	if err := f.CopyBuffer(stagingBuffer, buffer, size); err != nil {
		buffer.Destroy(nil)
		memory.Free(nil)
		return nil, nil, err
	}
	return buffer, memory, nil
}

// UploadImage creates a sampled image from tightly packed pixels and leaves
// it in the shader-read layout.
func (f *Factory) UploadImage(pixels []byte, width, height int, format core1_0.Format) (core1_0.Image, core1_0.DeviceMemory, error) {
	stagingBuffer, stagingMemory, _, err := f.staging(pixels)
	if err != nil {
		return nil, nil, err
	}
	defer stagingMemory.Free(nil)
	defer stagingBuffer.Destroy(nil)

	image, memory, err := f.CreateImage(ImageSpec{
		Width:  width,
		Height: height,
		Format: format,
		Tiling: core1_0.ImageTilingOptimal,
		Usage:  core1_0.ImageUsageTransferDst | core1_0.ImageUsageSampled,
		Memory: core1_0.MemoryPropertyDeviceLocal,
	})
	if err != nil {
		return nil, nil, err
	}

	err = f.TransitionImageLayout(image, format, core1_0.ImageLayoutUndefined, core1_0.ImageLayoutTransferDstOptimal)
	if err == nil {
		err = f.CopyBufferToImage(stagingBuffer, image, width, height)
	}
	if err == nil {
		err = f.TransitionImageLayout(image, format, core1_0.ImageLayoutTransferDstOptimal, core1_0.ImageLayoutShaderReadOnlyOptimal)
	}
	if err != nil {
		image.Destroy(nil)
		memory.Free(nil)
		return nil, nil, err
	}

	return image, memory, nil
}
