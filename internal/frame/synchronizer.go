package frame

import (
	"log/slog"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/loov/hrtime"
	"github.com/vkngwrapper/core/common"
	"github.com/vkngwrapper/core/core1_0"
	"github.com/vkngwrapper/vulkan-engine/internal/chain"
	"github.com/vkngwrapper/vulkan-engine/internal/gpu"
	"github.com/vkngwrapper/vulkan-engine/internal/logging"
)

var ErrFenceTimeout = errors.New("timed out waiting for a frame fence")

// Fences is the part of core1_0.Device the frame loop waits with.
type Fences interface {
	WaitForFences(waitForAll bool, timeout time.Duration, fences []core1_0.Fence) (common.VkResult, error)
	ResetFences(fences []core1_0.Fence) (common.VkResult, error)
}

type Queue interface {
	Submit(fence core1_0.Fence, o []core1_0.SubmitInfo) (common.VkResult, error)
}

// Presentation is what a frame is drawn against: the swapchain and
// everything built over it.
type Presentation interface {
	AcquireNext(timeout time.Duration, acquired core1_0.Semaphore) (int, chain.Status, error)
	// PrepareFrame readies per-image state and returns the command
	// buffer that draws into image.
	PrepareFrame(image int) (core1_0.CommandBuffer, error)
	Present(renderDone core1_0.Semaphore, image int) (chain.Status, error)
	ImageCount() int
	Rebuild() error
}

type Options struct {
	// Timeout bounds fence waits and acquires. Zero waits forever.
	Timeout time.Duration
	Logger  *slog.Logger
}

type Stats struct {
	Frames    uint64
	Rebuilds  uint64
	LastFrame time.Duration
	Total     time.Duration
}

type Synchronizer struct {
	log     *slog.Logger
	fences  Fences
	queue   Queue
	timeout time.Duration

	slots   []*Slot
	current int
	stale   bool

	// imagesInFlight holds the fence of the slot last submitted against
	// each swapchain image.
	imagesInFlight []core1_0.Fence

	stats Stats
}

func New(fences Fences, queue Queue, slots []*Slot, opts Options) (*Synchronizer, error) {
	if len(slots) == 0 {
		return nil, errors.AssertionFailedf("synchronizer needs at least one frame slot")
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = common.NoTimeout
	}

	return &Synchronizer{
		log:     logging.OrDiscard(opts.Logger),
		fences:  fences,
		queue:   queue,
		timeout: timeout,
		slots:   slots,
	}, nil
}

func (s *Synchronizer) Slots() []*Slot     { return s.slots }
func (s *Synchronizer) CurrentSlot() *Slot { return s.slots[s.current] }
func (s *Synchronizer) Stale() bool        { return s.stale }
func (s *Synchronizer) Stats() Stats       { return s.stats }

// MarkStale schedules a rebuild before the next acquire.
func (s *Synchronizer) MarkStale() {
	s.stale = true
}

func (s *Synchronizer) wait(fences ...core1_0.Fence) error {
	res, err := s.fences.WaitForFences(true, s.timeout, fences)
	if err != nil {
		return gpu.Check("vkWaitForFences", res, err)
	}
	if res == core1_0.VKTimeout {
		return errors.Wrapf(ErrFenceTimeout, "after %v", s.timeout)
	}
	return nil
}

func (s *Synchronizer) rebuild(p Presentation) error {
	if err := p.Rebuild(); err != nil {
		return err
	}

	s.stale = false
	s.imagesInFlight = make([]core1_0.Fence, p.ImageCount())
	for _, slot := range s.slots {
		slot.State = StateIdle
	}
	s.stats.Rebuilds++

	s.log.Debug("swapchain rebuilt", "images", p.ImageCount(), "frame", s.stats.Frames)
	return nil
}

// DrawFrame runs one acquire, submit and present cycle in the current
// slot. Staleness is handled by rebuilding p; every other failure is
// returned.
func (s *Synchronizer) DrawFrame(p Presentation) error {
	start := hrtime.Now()

	if s.stale {
		if err := s.rebuild(p); err != nil {
			return err
		}
	}

	slot := s.slots[s.current]
	if err := s.wait(slot.InFlight); err != nil {
		return errors.Wrapf(err, "frame slot %d", slot.Index)
	}
	slot.State = StateIdle

	index, status, err := p.AcquireNext(s.timeout, slot.ImageAvailable)
	if err != nil {
		return err
	}
	switch status {
	case chain.StatusOutOfDate:
		return s.rebuild(p)
	case chain.StatusSuboptimal:
		s.stale = true
	}

	if len(s.imagesInFlight) != p.ImageCount() {
		s.imagesInFlight = make([]core1_0.Fence, p.ImageCount())
	}
	if index >= len(s.imagesInFlight) {
		return errors.AssertionFailedf("acquired image %d of %d", index, len(s.imagesInFlight))
	}
	if fence := s.imagesInFlight[index]; fence != nil && fence != slot.InFlight {
		if err := s.wait(fence); err != nil {
			return errors.Wrapf(err, "image %d", index)
		}
	}
	s.imagesInFlight[index] = slot.InFlight

	res, err := s.fences.ResetFences([]core1_0.Fence{slot.InFlight})
	if err != nil {
		return gpu.Check("vkResetFences", res, err)
	}

	commandBuffer, err := p.PrepareFrame(index)
	if err != nil {
		return err
	}

	res, err = s.queue.Submit(slot.InFlight, []core1_0.SubmitInfo{
		{
			WaitSemaphores:   []core1_0.Semaphore{slot.ImageAvailable},
			WaitDstStageMask: []core1_0.PipelineStageFlags{core1_0.PipelineStageColorAttachmentOutput},
			CommandBuffers:   []core1_0.CommandBuffer{commandBuffer},
			SignalSemaphores: []core1_0.Semaphore{slot.RenderFinished},
		},
	})
	if err != nil {
		return gpu.Check("vkQueueSubmit", res, err)
	}
	slot.State = StateSubmitted

	status, err = p.Present(slot.RenderFinished, index)
	if err != nil {
		return err
	}
	if status == chain.StatusOutOfDate {
		return s.rebuild(p)
	}
	slot.State = StatePresented
	if status == chain.StatusSuboptimal {
		s.stale = true
	}

	s.current = (s.current + 1) % len(s.slots)

	elapsed := hrtime.Since(start)
	s.stats.Frames++
	s.stats.LastFrame = elapsed
	s.stats.Total += elapsed
	return nil
}
