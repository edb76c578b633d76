package main

import (
	"flag"
	"log"
	"os"
	"runtime"

	"github.com/cockroachdb/errors"
	"github.com/pkg/profile"
	"github.com/vkngwrapper/vulkan-engine/internal/config"
	"github.com/vkngwrapper/vulkan-engine/internal/engine"
	"github.com/vkngwrapper/vulkan-engine/internal/logging"
)

func init() {
	// SDL must be driven from the main thread.
	runtime.LockOSThread()
}

func startProfile(mode string) interface{ Stop() } {
	switch mode {
	case "cpu":
		return profile.Start(profile.CPUProfile, profile.ProfilePath("."), profile.NoShutdownHook)
	case "mem":
		return profile.Start(profile.MemProfile, profile.ProfilePath("."), profile.NoShutdownHook)
	case "trace":
		return profile.Start(profile.TraceProfile, profile.ProfilePath("."), profile.NoShutdownHook)
	}
	return nil
}

func run(cfg config.Config) (err error) {
	logger, err := logging.New(os.Stderr, cfg.LogLevel)
	if err != nil {
		return err
	}

	if p := startProfile(cfg.Profile); p != nil {
		defer p.Stop()
	}

	window, err := engine.OpenWindow(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := window.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	for window.Update() {
		if err := window.DrawFrame(); err != nil {
			return errors.Wrap(err, "draw frame")
		}
	}
	return nil
}

func main() {
	cfg, err := config.Parse(os.Args[0], os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		log.Fatalf("%+v\n", err)
	}

	if err := run(cfg); err != nil {
		log.Fatalf("%+v\n", err)
	}
}
