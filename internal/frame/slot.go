// Package frame runs the acquire, submit and present cycle over a fixed
// ring of frame slots.
package frame

import (
	"github.com/vkngwrapper/core/core1_0"
	"github.com/vkngwrapper/vulkan-engine/internal/gpu"
)

// MaxFramesInFlight bounds how many frames the CPU may record ahead of the GPU.
const MaxFramesInFlight = 2

type State int

const (
	StateIdle State = iota
	StateSubmitted
	StatePresented
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSubmitted:
		return "submitted"
	case StatePresented:
		return "presented"
	}
	return "unknown"
}

// Slot is one frame's worth of synchronization objects. Slots outlive
// swapchain rebuilds.
type Slot struct {
	Index          int
	ImageAvailable core1_0.Semaphore
	RenderFinished core1_0.Semaphore
	InFlight       core1_0.Fence

	State State
}

// NewSlots creates n slots. Fences start signaled so the first wait on
// each returns at once.
func NewSlots(device core1_0.Device, n int) ([]*Slot, error) {
	var slots []*Slot
	for i := 0; i < n; i++ {
		slot := &Slot{Index: i}
		slots = append(slots, slot)

		var err error
		slot.ImageAvailable, err = createSemaphore(device)
		if err == nil {
			slot.RenderFinished, err = createSemaphore(device)
		}
		if err == nil {
			fence, res, fenceErr := device.CreateFence(nil, core1_0.FenceCreateInfo{
				Flags: core1_0.FenceCreateSignaled,
			})
			slot.InFlight, err = fence, gpu.Check("vkCreateFence", res, fenceErr)
		}
		if err != nil {
			DestroySlots(slots)
			return nil, err
		}
	}
	return slots, nil
}

func createSemaphore(device core1_0.Device) (core1_0.Semaphore, error) {
	semaphore, res, err := device.CreateSemaphore(nil, core1_0.SemaphoreCreateInfo{})
	return semaphore, gpu.Check("vkCreateSemaphore", res, err)
}

// DestroySlots releases every slot. The device must be idle.
func DestroySlots(slots []*Slot) {
	for _, slot := range slots {
		if slot.ImageAvailable != nil {
			slot.ImageAvailable.Destroy(nil)
			slot.ImageAvailable = nil
		}
		if slot.RenderFinished != nil {
			slot.RenderFinished.Destroy(nil)
			slot.RenderFinished = nil
		}
		if slot.InFlight != nil {
			slot.InFlight.Destroy(nil)
			slot.InFlight = nil
		}
	}
}
