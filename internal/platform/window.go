// Package platform wraps the SDL2 window the engine presents into.
package platform

import (
	"log/slog"

	"github.com/cockroachdb/errors"
	"github.com/veandco/go-sdl2/sdl"
	"github.com/vkngwrapper/core"
	"github.com/vkngwrapper/core/core1_0"
	"github.com/vkngwrapper/extensions/khr_surface"
	vkng_sdl2 "github.com/vkngwrapper/integrations/sdl2"
	"github.com/vkngwrapper/vulkan-engine/internal/logging"
)

type Window struct {
	log    *slog.Logger
	window *sdl.Window

	events       eventState
	lastW, lastH int
}

// Open initializes SDL video and creates a resizable Vulkan window.
func Open(width, height int, title string, log *slog.Logger) (*Window, error) {
	if err := sdl.Init(sdl.INIT_VIDEO); err != nil {
		return nil, errors.Wrap(err, "init sdl video")
	}

	window, err := sdl.CreateWindow(title, sdl.WINDOWPOS_UNDEFINED, sdl.WINDOWPOS_UNDEFINED, int32(width), int32(height), sdl.WINDOW_SHOWN|sdl.WINDOW_VULKAN|sdl.WINDOW_RESIZABLE)
	if err != nil {
		sdl.Quit()
		return nil, errors.Wrap(err, "create window")
	}

	return &Window{log: logging.OrDiscard(log), window: window, lastW: width, lastH: height}, nil
}

// Loader resolves Vulkan entry points through SDL's loader.
func (w *Window) Loader() (core.Loader, error) {
	loader, err := core.CreateLoaderFromProcAddr(sdl.VulkanGetVkGetInstanceProcAddr())
	return loader, errors.Wrap(err, "create vulkan loader")
}

func (w *Window) InstanceExtensions() []string {
	return w.window.VulkanGetInstanceExtensions()
}

func (w *Window) CreateSurface(instance core1_0.Instance) (khr_surface.Surface, error) {
	surface, err := vkng_sdl2.CreateSurface(instance, w.window)
	return surface, errors.Wrap(err, "create window surface")
}

// DrawableSize reports the size in pixels, which is zero while minimized.
func (w *Window) DrawableSize() (int, int) {
	if w.events.minimized || w.window.GetFlags()&sdl.WINDOW_MINIMIZED != 0 {
		return 0, 0
	}
	width, height := w.window.VulkanGetDrawableSize()
	return int(width), int(height)
}

// PollEvents drains the event queue without blocking.
func (w *Window) PollEvents() {
	for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
		w.handle(event)
	}
}

// WaitEvents blocks until at least one event arrives, then drains the rest.
func (w *Window) WaitEvents() {
	if event := sdl.WaitEvent(); event != nil {
		w.handle(event)
	}
	w.PollEvents()
}

func (w *Window) handle(event sdl.Event) {
	switch e := event.(type) {
	case *sdl.QuitEvent:
		w.events.apply(eventQuit, 0, 0)
	case *sdl.WindowEvent:
		switch e.Event {
		case sdl.WINDOWEVENT_CLOSE:
			w.events.apply(eventQuit, 0, 0)
		case sdl.WINDOWEVENT_MINIMIZED:
			w.events.apply(eventMinimized, 0, 0)
		case sdl.WINDOWEVENT_RESTORED:
			w.events.apply(eventRestored, 0, 0)
		case sdl.WINDOWEVENT_RESIZED, sdl.WINDOWEVENT_SIZE_CHANGED:
			width, height := int(e.Data1), int(e.Data2)
			if width != w.lastW || height != w.lastH {
				w.log.Debug("window resized", "width", width, "height", height)
				w.lastW, w.lastH = width, height
			}
			w.events.apply(eventResized, width, height)
		}
	}
}

func (w *Window) ShouldClose() bool {
	return w.events.quit
}

// ConsumeResize reports whether the window changed size or visibility since
// the last call, and clears the flag.
func (w *Window) ConsumeResize() bool {
	pending := w.events.resizePending
	w.events.resizePending = false
	return pending
}

func (w *Window) Destroy() {
	if w.window != nil {
		w.window.Destroy()
		w.window = nil
	}
	sdl.Quit()
}
