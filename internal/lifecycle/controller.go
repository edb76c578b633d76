// Package lifecycle rebuilds everything that depends on the swapchain as
// one unit.
package lifecycle

import (
	"log/slog"

	"github.com/cockroachdb/errors"
	"github.com/loov/hrtime"
	"github.com/vkngwrapper/vulkan-engine/internal/chain"
	"github.com/vkngwrapper/vulkan-engine/internal/logging"
)

// ErrClosed is returned when the window closes while a rebuild is waiting
// for it to become visible again.
var ErrClosed = errors.New("window closed during rebuild")

// Stage is one layer of the rebuilt unit. Teardown undoes Build and may be
// nil.
type Stage struct {
	Name     string
	Build    func() error
	Teardown func()
}

type Idler interface {
	WaitIdle() error
}

// Surface is the window state a rebuild waits on.
type Surface interface {
	DrawableSize() (int, int)
	WaitEvents()
	ShouldClose() bool
}

// Controller builds its stages in order and tears them down in reverse.
type Controller struct {
	log    *slog.Logger
	idler  Idler
	window Surface

	stages []Stage
	built  int
}

func NewController(idler Idler, window Surface, log *slog.Logger, stages ...Stage) *Controller {
	return &Controller{
		log:    logging.OrDiscard(log),
		idler:  idler,
		window: window,
		stages: stages,
	}
}

// Built reports whether every stage is currently built.
func (c *Controller) Built() bool {
	return c.built == len(c.stages)
}

// Build builds the stages not yet built. On failure the stages built so
// far stay built.
func (c *Controller) Build() error {
	for c.built < len(c.stages) {
		stage := c.stages[c.built]
		if err := stage.Build(); err != nil {
			return errors.Wrapf(err, "build %s", stage.Name)
		}
		c.log.Debug("stage built", "stage", stage.Name)
		c.built++
	}
	return nil
}

// Teardown releases built stages, last first.
func (c *Controller) Teardown() {
	for c.built > 0 {
		c.built--
		stage := c.stages[c.built]
		if stage.Teardown != nil {
			stage.Teardown()
		}
	}
}

// waitForExtent blocks on window events while the drawable is zero-sized.
func (c *Controller) waitForExtent() error {
	for {
		w, h := c.window.DrawableSize()
		if w > 0 && h > 0 {
			return nil
		}
		if c.window.ShouldClose() {
			return ErrClosed
		}
		c.window.WaitEvents()
	}
}

// Rebuild waits for the device to go idle and for the window to have a
// drawable area, then tears every stage down and builds it again.
func (c *Controller) Rebuild() error {
	start := hrtime.Now()

	if err := c.idler.WaitIdle(); err != nil {
		return err
	}

	for {
		if err := c.waitForExtent(); err != nil {
			return err
		}

		c.Teardown()
		err := c.Build()
		if !errors.Is(err, chain.ErrExtentPending) {
			if err == nil {
				c.log.Info("rebuilt", "stages", len(c.stages), "duration", hrtime.Since(start))
			}
			return err
		}

		c.log.Debug("surface extent pending", "error", err)
		if c.window.ShouldClose() {
			return ErrClosed
		}
		c.window.WaitEvents()
	}
}
