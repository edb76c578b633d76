package engine

import (
	"io"
	"io/fs"
	"log/slog"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/vulkan-engine/internal/assets"
	"github.com/vkngwrapper/vulkan-engine/internal/config"
	"github.com/vkngwrapper/vulkan-engine/internal/scene"
)

const (
	shaderCacheSize = 16
	checkerSize     = 256
	checkerCell     = 32

	shaderHint = "the default shaders are compiled from shaders/*.vert and *.frag by running: go generate ./internal/assets"
)

// sceneOptions loads everything the scene is built from. A missing model
// falls back to two stacked quads and a missing texture to a checkerboard.
func sceneOptions(cfg config.Config, files fs.FS, log *slog.Logger) (scene.Options, error) {
	opts := scene.Options{
		VertexShader:   cfg.VertexShader,
		FragmentShader: cfg.FragmentShader,
		ClearColor:     [4]float32{0, 0, 0, 1},
		Logger:         log,
	}

	var err error
	opts.Shaders, err = assets.NewShaderLibrary(files, shaderCacheSize)
	if err != nil {
		return opts, err
	}
	// Fail at startup rather than on the first rebuild.
	for _, name := range []string{cfg.VertexShader, cfg.FragmentShader} {
		if _, err := opts.Shaders.Load(name); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				err = errors.WithHint(err, shaderHint)
			}
			return opts, err
		}
	}

	opts.Mesh, err = loadMesh(cfg, files)
	if err != nil {
		return opts, err
	}

	opts.Texture, err = loadTexture(cfg, files)
	if err != nil {
		return opts, err
	}
	return opts, nil
}

func loadMesh(cfg config.Config, files fs.FS) (assets.Mesh, error) {
	if cfg.Model == "" {
		return assets.Quads(), nil
	}

	objFile, err := files.Open(cfg.Model)
	if err != nil {
		return assets.Mesh{}, errors.Wrap(err, "open model")
	}
	defer objFile.Close()

	var mtlFile io.Reader
	if cfg.Material != "" {
		f, err := files.Open(cfg.Material)
		if err != nil {
			return assets.Mesh{}, errors.Wrap(err, "open material")
		}
		defer f.Close()
		mtlFile = f
	}

	mesh, err := assets.LoadOBJ(objFile, mtlFile)
	return mesh, errors.Wrapf(err, "model %s", cfg.Model)
}

func loadTexture(cfg config.Config, files fs.FS) (assets.Texture, error) {
	if cfg.Texture == "" {
		return assets.Checkerboard(checkerSize, checkerCell), nil
	}

	f, err := files.Open(cfg.Texture)
	if err != nil {
		return assets.Texture{}, errors.Wrap(err, "open texture")
	}
	defer f.Close()

	texture, err := assets.DecodeTexture(f)
	return texture, errors.Wrapf(err, "texture %s", cfg.Texture)
}
