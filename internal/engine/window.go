// Package engine ties the window, the device, the scene and the frame loop
// together behind OpenWindow, Update, DrawFrame and Close.
package engine

import (
	"log/slog"
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/vulkan-engine/internal/config"
	"github.com/vkngwrapper/vulkan-engine/internal/frame"
	"github.com/vkngwrapper/vulkan-engine/internal/gpu"
	"github.com/vkngwrapper/vulkan-engine/internal/lifecycle"
	"github.com/vkngwrapper/vulkan-engine/internal/logging"
	"github.com/vkngwrapper/vulkan-engine/internal/platform"
	"github.com/vkngwrapper/vulkan-engine/internal/scene"
)

type Window struct {
	log *slog.Logger

	platform  *platform.Window
	ctx       *gpu.Context
	scene     *scene.Scene
	swapchain *lifecycle.Swapchain
	slots     []*frame.Slot
	sync      *frame.Synchronizer

	closed bool
}

// OpenWindow creates the window and everything needed to draw into it.
func OpenWindow(cfg config.Config, log *slog.Logger) (*Window, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	w := &Window{log: logging.OrDiscard(log)}
	if err := w.open(cfg); err != nil {
		w.Close()
		return nil, err
	}
	return w, nil
}

func (w *Window) open(cfg config.Config) error {
	var err error
	w.platform, err = platform.Open(cfg.Width, cfg.Height, cfg.Title, w.log)
	if err != nil {
		return err
	}

	loader, err := w.platform.Loader()
	if err != nil {
		return err
	}

	w.ctx, err = gpu.NewContext(loader, w.platform, gpu.Options{
		ApplicationName: cfg.Title,
		Validation:      cfg.Validation,
	}, w.log)
	if err != nil {
		return err
	}

	opts, err := sceneOptions(cfg, os.DirFS(cfg.AssetDir), w.log)
	if err != nil {
		return err
	}
	w.scene, err = scene.New(w.ctx, opts)
	if err != nil {
		return err
	}

	samples := gpu.ClampSamples(cfg.Samples, w.ctx.MaxSamples)
	if gpu.SampleCount(samples) != cfg.Samples {
		w.log.Warn("multisampling clamped to device limit",
			"requested", cfg.Samples,
			"using", gpu.SampleCount(samples))
	}

	w.swapchain, err = lifecycle.NewSwapchain(w.ctx, w.platform, w.scene, lifecycle.SwapchainOptions{
		PreferredBufferCount: cfg.PreferredBufferCount,
		PreferLowLatency:     cfg.PreferLowLatency,
		Samples:              samples,
		Logger:               w.log,
	})
	if err != nil {
		return err
	}

	w.slots, err = frame.NewSlots(w.ctx.Device, frame.MaxFramesInFlight)
	if err != nil {
		return err
	}

	w.sync, err = frame.New(w.ctx.Device, w.ctx.GraphicsQueue, w.slots, frame.Options{
		Timeout: cfg.AcquireTimeout,
		Logger:  w.log,
	})
	return err
}

// Update handles pending window events. It returns false once the window
// should close.
func (w *Window) Update() bool {
	if w.closed {
		return false
	}

	w.platform.PollEvents()
	if w.platform.ConsumeResize() {
		w.sync.MarkStale()
	}
	return !w.platform.ShouldClose()
}

// DrawFrame draws and presents one frame, rebuilding the swapchain first
// when it has gone stale. While the window is minimized it blocks on window
// events until the window is restored or closed.
func (w *Window) DrawFrame() error {
	if w.closed {
		return errors.AssertionFailedf("draw on a closed window")
	}
	return drawFrame(w.platform, w.sync, w.swapchain)
}

type frameLoop interface {
	MarkStale()
	DrawFrame(p frame.Presentation) error
}

// drawFrame marks a zero-sized drawable stale, so the rebuild that runs
// before the next acquire waits in lifecycle.Controller for a visible
// window instead of spinning.
func drawFrame(window interface{ DrawableSize() (int, int) }, loop frameLoop, p frame.Presentation) error {
	if width, height := window.DrawableSize(); width == 0 || height == 0 {
		loop.MarkStale()
	}

	err := loop.DrawFrame(p)
	if errors.Is(err, lifecycle.ErrClosed) {
		return nil
	}
	return err
}

func (w *Window) Stats() frame.Stats {
	if w.sync == nil {
		return frame.Stats{}
	}
	return w.sync.Stats()
}

// Close waits for the device to finish and releases everything in reverse
// order of creation. It is safe on a partially opened window.
func (w *Window) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	var err error
	if w.ctx != nil && w.ctx.Device != nil {
		err = w.ctx.WaitIdle()
	}

	frame.DestroySlots(w.slots)
	w.slots = nil

	if w.swapchain != nil {
		w.swapchain.Teardown()
		w.swapchain = nil
	}

	if w.scene != nil {
		w.scene.Destroy()
		w.scene = nil
	}

	if w.ctx != nil {
		w.ctx.Destroy()
		w.ctx = nil
	}

	if w.platform != nil {
		w.platform.Destroy()
		w.platform = nil
	}

	if w.sync != nil {
		stats := w.sync.Stats()
		w.log.Info("window closed", "frames", stats.Frames, "rebuilds", stats.Rebuilds, "frameTime", averageFrame(stats))
	}
	return err
}

func averageFrame(stats frame.Stats) time.Duration {
	if stats.Frames == 0 {
		return 0
	}
	return stats.Total / time.Duration(stats.Frames)
}
