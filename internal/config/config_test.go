package config

import (
	"io"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
}

func TestParseOverridesDefaults(t *testing.T) {
	cfg, err := Parse("vkengine", []string{
		"-width", "1280",
		"-height", "720",
		"-buffers", "3",
		"-samples", "1",
		"-mailbox=false",
		"-acquire-timeout", "250ms",
		"-model", "meshes/viking_room.obj",
		"-mtl", "meshes/viking_room.mtl",
		"-log", "debug",
	}, io.Discard)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.Width != 1280 || cfg.Height != 720 {
		t.Errorf("size = %dx%d, want 1280x720", cfg.Width, cfg.Height)
	}
	if cfg.PreferredBufferCount != 3 {
		t.Errorf("PreferredBufferCount = %d, want 3", cfg.PreferredBufferCount)
	}
	if cfg.Samples != 1 {
		t.Errorf("Samples = %d, want 1", cfg.Samples)
	}
	if cfg.PreferLowLatency {
		t.Error("PreferLowLatency = true, want false")
	}
	if cfg.AcquireTimeout != 250*time.Millisecond {
		t.Errorf("AcquireTimeout = %s, want 250ms", cfg.AcquireTimeout)
	}
	if cfg.Title != "Vulkan" {
		t.Errorf("Title = %q, want default", cfg.Title)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"zero width", func(c *Config) { c.Width = 0 }},
		{"negative height", func(c *Config) { c.Height = -1 }},
		{"no buffers", func(c *Config) { c.PreferredBufferCount = 0 }},
		{"odd samples", func(c *Config) { c.Samples = 3 }},
		{"too many samples", func(c *Config) { c.Samples = 128 }},
		{"negative timeout", func(c *Config) { c.AcquireTimeout = -time.Second }},
		{"missing shader", func(c *Config) { c.FragmentShader = "" }},
		{"material without model", func(c *Config) { c.Material = "a.mtl" }},
		{"bad profile", func(c *Config) { c.Profile = "block" }},
		{"bad log level", func(c *Config) { c.LogLevel = "chatty" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}
}

func TestParseRejectsUnknownFlag(t *testing.T) {
	if _, err := Parse("vkengine", []string{"-frobnicate"}, io.Discard); err == nil {
		t.Error("Parse() with unknown flag = nil error")
	}
}
