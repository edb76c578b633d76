package chain

import (
	"math"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/core1_0"
	"github.com/vkngwrapper/extensions/khr_surface"
	"golang.org/x/exp/constraints"
)

var (
	ErrFormatUnavailable  = errors.New("surface reports no usable format")
	ErrSurfaceUnsupported = errors.New("surface cannot be presented to")
	// ErrExtentPending means the surface is currently zero-sized. It is a
	// waiting state, not a failure.
	ErrExtentPending = errors.New("surface has zero extent")
)

// DefaultFormat substitutes for a surface that reports an undefined format,
// which means any format is acceptable.
var DefaultFormat = khr_surface.Format{
	Format:     core1_0.FormatB8G8R8A8SRGB,
	ColorSpace: khr_surface.ColorSpaceSRGBNonlinear,
}

var compositeAlphaPreference = []khr_surface.CompositeAlphaFlags{
	khr_surface.CompositeAlphaOpaque,
	khr_surface.CompositeAlphaPreMultiplied,
	khr_surface.CompositeAlphaPostMultiplied,
	khr_surface.CompositeAlphaInherit,
}

// SurfaceDescriptor is everything chosen for one build of the chain.
type SurfaceDescriptor struct {
	Extent         core1_0.Extent2D
	Format         khr_surface.Format
	PresentMode    khr_surface.PresentMode
	ImageCount     int
	MinImageCount  int
	MaxImageCount  int
	CompositeAlpha khr_surface.CompositeAlphaFlags

	Capabilities *khr_surface.Capabilities
}

// SurfaceQuery is what the surface reported, plus what the caller wants.
type SurfaceQuery struct {
	Capabilities *khr_surface.Capabilities
	Formats      []khr_surface.Format
	PresentModes []khr_surface.PresentMode

	DrawableWidth, DrawableHeight int
	PreferredBufferCount          int
	PreferLowLatency              bool
}

// Describe applies the selection rules to a surface query.
func Describe(q SurfaceQuery) (SurfaceDescriptor, error) {
	caps := q.Capabilities
	if caps == nil || len(q.PresentModes) == 0 {
		return SurfaceDescriptor{}, ErrSurfaceUnsupported
	}

	format, err := chooseFormat(q.Formats)
	if err != nil {
		return SurfaceDescriptor{}, err
	}

	extent := chooseExtent(caps, q.DrawableWidth, q.DrawableHeight)
	if extent.Width <= 0 || extent.Height <= 0 {
		return SurfaceDescriptor{}, errors.Wrapf(ErrExtentPending, "%dx%d", extent.Width, extent.Height)
	}

	return SurfaceDescriptor{
		Extent:         extent,
		Format:         format,
		PresentMode:    choosePresentMode(q.PresentModes, q.PreferLowLatency),
		ImageCount:     imageCount(q.PreferredBufferCount, caps.MinImageCount, caps.MaxImageCount),
		MinImageCount:  caps.MinImageCount,
		MaxImageCount:  caps.MaxImageCount,
		CompositeAlpha: chooseCompositeAlpha(caps.SupportedCompositeAlpha),
		Capabilities:   caps,
	}, nil
}

func clamp[T constraints.Integer](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// imageCount keeps at least one image beyond the driver minimum so
// acquisition never waits on the presentation engine. A max of 0 means
// unbounded.
func imageCount(preferred, min, max int) int {
	count := preferred
	if count < min+1 {
		count = min + 1
	}
	if max > 0 && count > max {
		count = max
	}
	return count
}

func chooseFormat(formats []khr_surface.Format) (khr_surface.Format, error) {
	if len(formats) == 0 {
		return khr_surface.Format{}, ErrFormatUnavailable
	}
	if formats[0].Format == core1_0.FormatUndefined {
		return DefaultFormat, nil
	}
	return formats[0], nil
}

func choosePresentMode(modes []khr_surface.PresentMode, preferLowLatency bool) khr_surface.PresentMode {
	if preferLowLatency {
		for _, mode := range modes {
			if mode == khr_surface.PresentModeMailbox {
				return mode
			}
		}
	}

	return khr_surface.PresentModeFIFO
}

// extentUndefined reports the 0xFFFFFFFF width a surface uses to let the
// swapchain pick its size. The binding widens it from uint32 into an int,
// which is -1 only where int has 32 bits.
func extentUndefined(extent core1_0.Extent2D) bool {
	return uint32(extent.Width) == math.MaxUint32
}

func chooseExtent(caps *khr_surface.Capabilities, drawableWidth, drawableHeight int) core1_0.Extent2D {
	if !extentUndefined(caps.CurrentExtent) {
		return caps.CurrentExtent
	}

	return core1_0.Extent2D{
		Width:  clamp(drawableWidth, caps.MinImageExtent.Width, caps.MaxImageExtent.Width),
		Height: clamp(drawableHeight, caps.MinImageExtent.Height, caps.MaxImageExtent.Height),
	}
}

func chooseCompositeAlpha(supported khr_surface.CompositeAlphaFlags) khr_surface.CompositeAlphaFlags {
	for _, mode := range compositeAlphaPreference {
		if supported&mode != 0 {
			return mode
		}
	}
	return khr_surface.CompositeAlphaOpaque
}
