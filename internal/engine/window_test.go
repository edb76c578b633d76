package engine

import (
	"strings"
	"testing"
	"time"

	"github.com/vkngwrapper/core/common"
	"github.com/vkngwrapper/core/core1_0"
	"github.com/vkngwrapper/vulkan-engine/internal/chain"
	"github.com/vkngwrapper/vulkan-engine/internal/frame"
	"github.com/vkngwrapper/vulkan-engine/internal/lifecycle"
)

type fakeFence struct{ core1_0.Fence }

type fakeSemaphore struct{ core1_0.Semaphore }

// fakeDevice completes every submission immediately.
type fakeDevice struct{}

func (fakeDevice) WaitForFences(bool, time.Duration, []core1_0.Fence) (common.VkResult, error) {
	return core1_0.VKSuccess, nil
}

func (fakeDevice) ResetFences([]core1_0.Fence) (common.VkResult, error) {
	return core1_0.VKSuccess, nil
}

func (fakeDevice) Submit(core1_0.Fence, []core1_0.SubmitInfo) (common.VkResult, error) {
	return core1_0.VKSuccess, nil
}

func (fakeDevice) WaitIdle() error { return nil }

// fakeWindow reports each size in turn, moving to the next one whenever
// events are waited for.
type fakeWindow struct {
	events *[]string
	sizes  [][2]int
	closed bool
}

func (w *fakeWindow) DrawableSize() (int, int) { return w.sizes[0][0], w.sizes[0][1] }

func (w *fakeWindow) WaitEvents() {
	*w.events = append(*w.events, "wait events")
	if len(w.sizes) > 1 {
		w.sizes = w.sizes[1:]
	}
}

func (w *fakeWindow) ShouldClose() bool { return w.closed }

// fakeSwapchain rebuilds through a real controller over one stage.
type fakeSwapchain struct {
	*lifecycle.Controller
	events *[]string
}

func (s *fakeSwapchain) AcquireNext(time.Duration, core1_0.Semaphore) (int, chain.Status, error) {
	*s.events = append(*s.events, "acquire")
	return 0, chain.StatusSuccess, nil
}

func (s *fakeSwapchain) PrepareFrame(int) (core1_0.CommandBuffer, error) { return nil, nil }

func (s *fakeSwapchain) Present(core1_0.Semaphore, int) (chain.Status, error) {
	*s.events = append(*s.events, "present")
	return chain.StatusSuccess, nil
}

func (s *fakeSwapchain) ImageCount() int { return 2 }

func newLoop(t *testing.T, sizes [][2]int) (*fakeWindow, *frame.Synchronizer, *fakeSwapchain, *[]string) {
	t.Helper()

	events := &[]string{}
	window := &fakeWindow{events: events, sizes: sizes}
	swapchain := &fakeSwapchain{events: events}
	swapchain.Controller = lifecycle.NewController(fakeDevice{}, window, nil, lifecycle.Stage{
		Name:  "swapchain",
		Build: func() error { *events = append(*events, "build"); return nil },
	})

	slots := []*frame.Slot{{
		ImageAvailable: &fakeSemaphore{},
		RenderFinished: &fakeSemaphore{},
		InFlight:       &fakeFence{},
	}}
	sync, err := frame.New(fakeDevice{}, fakeDevice{}, slots, frame.Options{})
	if err != nil {
		t.Fatalf("frame.New() error = %v", err)
	}
	return window, sync, swapchain, events
}

func TestDrawFrameBlocksWhileMinimized(t *testing.T) {
	window, sync, swapchain, events := newLoop(t, [][2]int{{0, 0}, {0, 0}, {800, 600}})

	if err := drawFrame(window, sync, swapchain); err != nil {
		t.Fatalf("drawFrame() error = %v", err)
	}

	want := "wait events, wait events, build, acquire, present"
	if got := strings.Join(*events, ", "); got != want {
		t.Errorf("events = %q, want %q", got, want)
	}
	if sync.Stale() {
		t.Error("swapchain still stale after the window was restored")
	}
}

func TestDrawFrameClosedWhileMinimized(t *testing.T) {
	window, sync, swapchain, events := newLoop(t, [][2]int{{0, 0}})
	window.closed = true

	if err := drawFrame(window, sync, swapchain); err != nil {
		t.Fatalf("drawFrame() error = %v, want closing to be quiet", err)
	}
	if len(*events) != 0 {
		t.Errorf("events = %v, want nothing drawn or built", *events)
	}
}

func TestDrawFrameVisibleWindow(t *testing.T) {
	window, sync, swapchain, events := newLoop(t, [][2]int{{800, 600}})

	if err := drawFrame(window, sync, swapchain); err != nil {
		t.Fatalf("drawFrame() error = %v", err)
	}
	if got := strings.Join(*events, ", "); got != "acquire, present" {
		t.Errorf("events = %q, want a plain acquire and present", got)
	}
}
