// Package config holds the engine's startup configuration.
package config

import (
	"flag"
	"io"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/vulkan-engine/internal/logging"
)

type Config struct {
	Width  int
	Height int
	Title  string

	// PreferredBufferCount is the requested number of presentable images.
	// The surface's limits still apply.
	PreferredBufferCount int
	// Samples is the requested multisample count. It is clamped to what the
	// device supports; 1 disables multisampling.
	Samples          int
	PreferLowLatency bool
	Validation       bool
	// AcquireTimeout bounds the wait for the next presentable image. Zero
	// waits forever.
	AcquireTimeout time.Duration

	AssetDir       string
	VertexShader   string
	FragmentShader string
	Model          string
	Material       string
	Texture        string

	LogLevel string
	Profile  string
}

func Default() Config {
	return Config{
		Width:                800,
		Height:               600,
		Title:                "Vulkan",
		PreferredBufferCount: 2,
		Samples:              4,
		PreferLowLatency:     true,
		AssetDir:             ".",
		VertexShader:         "shaders/vert.spv",
		FragmentShader:       "shaders/frag.spv",
		LogLevel:             "info",
	}
}

// Parse reads command line flags on top of Default.
func Parse(name string, args []string, output io.Writer) (Config, error) {
	cfg := Default()

	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(output)
	fs.IntVar(&cfg.Width, "width", cfg.Width, "initial window width")
	fs.IntVar(&cfg.Height, "height", cfg.Height, "initial window height")
	fs.StringVar(&cfg.Title, "title", cfg.Title, "window title")
	fs.IntVar(&cfg.PreferredBufferCount, "buffers", cfg.PreferredBufferCount, "preferred number of swapchain images")
	fs.IntVar(&cfg.Samples, "samples", cfg.Samples, "multisample count (1 disables MSAA)")
	fs.BoolVar(&cfg.PreferLowLatency, "mailbox", cfg.PreferLowLatency, "prefer mailbox presentation over FIFO")
	fs.BoolVar(&cfg.Validation, "validation", cfg.Validation, "enable VK_LAYER_KHRONOS_validation")
	fs.DurationVar(&cfg.AcquireTimeout, "acquire-timeout", cfg.AcquireTimeout, "swapchain acquire timeout (0 waits forever)")
	fs.StringVar(&cfg.AssetDir, "assets", cfg.AssetDir, "root directory for shaders, models and textures")
	fs.StringVar(&cfg.VertexShader, "vert", cfg.VertexShader, "vertex shader SPIR-V, relative to -assets (go generate ./internal/assets builds the default)")
	fs.StringVar(&cfg.FragmentShader, "frag", cfg.FragmentShader, "fragment shader SPIR-V, relative to -assets (go generate ./internal/assets builds the default)")
	fs.StringVar(&cfg.Model, "model", cfg.Model, "OBJ model, relative to -assets (empty draws two quads)")
	fs.StringVar(&cfg.Material, "mtl", cfg.Material, "MTL file accompanying -model")
	fs.StringVar(&cfg.Texture, "texture", cfg.Texture, "PNG or JPEG texture, relative to -assets (empty uses a checkerboard)")
	fs.StringVar(&cfg.LogLevel, "log", cfg.LogLevel, "log level: debug, info, warn, error, off")
	fs.StringVar(&cfg.Profile, "profile", cfg.Profile, "write a profile: cpu, mem or trace")

	if err := fs.Parse(args); err != nil {
		return cfg, err
	}

	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return errors.Newf("window size must be positive, got %dx%d", c.Width, c.Height)
	}
	if c.PreferredBufferCount < 1 {
		return errors.Newf("preferred buffer count must be at least 1, got %d", c.PreferredBufferCount)
	}
	if c.Samples < 1 || c.Samples > 64 || c.Samples&(c.Samples-1) != 0 {
		return errors.Newf("samples must be a power of two between 1 and 64, got %d", c.Samples)
	}
	if c.AcquireTimeout < 0 {
		return errors.Newf("acquire timeout cannot be negative, got %s", c.AcquireTimeout)
	}
	if c.VertexShader == "" || c.FragmentShader == "" {
		return errors.New("both vertex and fragment shaders are required")
	}
	if c.Material != "" && c.Model == "" {
		return errors.New("-mtl given without -model")
	}
	switch c.Profile {
	case "", "cpu", "mem", "trace":
	default:
		return errors.Newf("unknown profile mode %q", c.Profile)
	}
	if c.LogLevel != "off" {
		if _, err := logging.ParseLevel(c.LogLevel); err != nil {
			return err
		}
	}

	return nil
}
