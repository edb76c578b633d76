package lifecycle

import (
	"log/slog"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/core1_0"
	"github.com/vkngwrapper/extensions/khr_surface"
	"github.com/vkngwrapper/vulkan-engine/internal/attachment"
	"github.com/vkngwrapper/vulkan-engine/internal/chain"
	"github.com/vkngwrapper/vulkan-engine/internal/gpu"
	"github.com/vkngwrapper/vulkan-engine/internal/logging"
	"github.com/vkngwrapper/vulkan-engine/internal/target"
)

type Window interface {
	Surface
	CreateSurface(instance core1_0.Instance) (khr_surface.Surface, error)
}

// Scene draws into the render targets. Attach builds its per-image state
// and records one command buffer per target; Detach releases them.
type Scene interface {
	PipelineSpec() (target.PipelineSpec, error)
	Attach(binder *target.Binder) error
	Update(image int, extent core1_0.Extent2D) error
	CommandBuffer(image int) core1_0.CommandBuffer
	Detach()
}

type SwapchainOptions struct {
	PreferredBufferCount int
	PreferLowLatency     bool
	Samples              core1_0.SampleCountFlags
	Logger               *slog.Logger
}

// Swapchain owns the surface, the chain, its attachments, the render
// targets and the scene's per-image state. None of them is rebuilt alone.
type Swapchain struct {
	*Controller

	log         *slog.Logger
	ctx         *gpu.Context
	window      Window
	scene       Scene
	opts        SwapchainOptions
	depthFormat core1_0.Format

	surface     khr_surface.Surface
	chain       *chain.Chain
	attachments *attachment.Set
	binder      *target.Binder
}

// NewSwapchain picks the depth format and performs the first build.
func NewSwapchain(ctx *gpu.Context, window Window, scene Scene, opts SwapchainOptions) (*Swapchain, error) {
	depthFormat, err := attachment.SelectDepthFormat(ctx.SupportsDepthAttachment)
	if err != nil {
		return nil, err
	}
	if opts.Samples == 0 {
		opts.Samples = core1_0.Samples1
	}

	s := &Swapchain{
		log:         logging.OrDiscard(opts.Logger),
		ctx:         ctx,
		window:      window,
		scene:       scene,
		opts:        opts,
		depthFormat: depthFormat,
	}
	s.Controller = NewController(ctx, window, s.log,
		Stage{Name: "surface", Build: s.buildSurface, Teardown: s.destroySurface},
		Stage{Name: "swapchain", Build: s.buildChain, Teardown: s.destroyChain},
		Stage{Name: "attachments", Build: s.buildAttachments, Teardown: s.destroyAttachments},
		Stage{Name: "targets", Build: s.bindTargets, Teardown: s.unbindTargets},
		Stage{Name: "commands", Build: s.attachScene, Teardown: scene.Detach},
	)

	if err := s.Rebuild(); err != nil {
		s.Teardown()
		return nil, err
	}
	s.log.Info("swapchain ready",
		"depthFormat", depthFormat,
		"samples", gpu.SampleCount(opts.Samples))
	return s, nil
}

func (s *Swapchain) buildSurface() error {
	var err error
	s.surface, err = s.window.CreateSurface(s.ctx.Instance)
	return err
}

func (s *Swapchain) destroySurface() {
	if s.surface != nil {
		s.surface.Destroy(nil)
		s.surface = nil
	}
}

func (s *Swapchain) buildChain() error {
	w, h := s.window.DrawableSize()

	var err error
	s.chain, err = chain.Create(chain.Options{
		Factory:              s.ctx.Factory,
		PhysicalDevice:       s.ctx.PhysicalDevice,
		Surface:              s.surface,
		Families:             s.ctx.Families,
		DrawableWidth:        w,
		DrawableHeight:       h,
		PreferredBufferCount: s.opts.PreferredBufferCount,
		PreferLowLatency:     s.opts.PreferLowLatency,
		Logger:               s.log,
	})
	return err
}

func (s *Swapchain) destroyChain() {
	if s.chain != nil {
		s.chain.Destroy()
		s.chain = nil
	}
}

func (s *Swapchain) buildAttachments() error {
	var err error
	s.attachments, err = attachment.Build(s.ctx.Factory, s.chain.Extent(), s.chain.Format(), s.depthFormat, s.opts.Samples)
	return err
}

func (s *Swapchain) destroyAttachments() {
	if s.attachments != nil {
		s.attachments.Teardown()
		s.attachments = nil
	}
}

func (s *Swapchain) bindTargets() error {
	spec, err := s.scene.PipelineSpec()
	if err != nil {
		return err
	}
	s.binder, err = target.Bind(s.ctx.Device, s.chain, s.attachments, spec)
	return err
}

func (s *Swapchain) unbindTargets() {
	if s.binder != nil {
		s.binder.Teardown()
		s.binder = nil
	}
}

func (s *Swapchain) attachScene() error {
	return s.scene.Attach(s.binder)
}

func (s *Swapchain) Chain() *chain.Chain { return s.chain }

func (s *Swapchain) ImageCount() int {
	if s.chain == nil {
		return 0
	}
	return s.chain.Len()
}

func (s *Swapchain) AcquireNext(timeout time.Duration, acquired core1_0.Semaphore) (int, chain.Status, error) {
	if !s.Built() {
		return 0, chain.StatusSuccess, errors.AssertionFailedf("acquire on a swapchain that is not built")
	}
	return s.chain.AcquireNext(timeout, acquired)
}

func (s *Swapchain) PrepareFrame(image int) (core1_0.CommandBuffer, error) {
	if err := s.scene.Update(image, s.chain.Extent()); err != nil {
		return nil, err
	}
	return s.scene.CommandBuffer(image), nil
}

func (s *Swapchain) Present(renderDone core1_0.Semaphore, image int) (chain.Status, error) {
	if !s.Built() {
		return chain.StatusSuccess, errors.AssertionFailedf("present on a swapchain that is not built")
	}
	return s.chain.Present(s.ctx.PresentQueue, renderDone, image)
}
