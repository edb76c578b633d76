// Package assets loads the files the renderer consumes: SPIR-V shaders,
// textures and OBJ meshes.
package assets

//go:generate glslc ../../shaders/shader.vert -o ../../shaders/vert.spv
//go:generate glslc ../../shaders/shader.frag -o ../../shaders/frag.spv

import (
	"encoding/binary"
	"io/fs"

	"github.com/cockroachdb/errors"
	lru "github.com/hashicorp/golang-lru/v2"
)

const spirvMagic = 0x07230203

var ErrInvalidSPIRV = errors.New("not a SPIR-V module")

// ShaderLibrary reads SPIR-V modules from a file system and keeps recently
// used ones decoded, since pipelines reload them on every swapchain rebuild.
type ShaderLibrary struct {
	files fs.FS
	cache *lru.Cache[string, []uint32]
}

func NewShaderLibrary(files fs.FS, size int) (*ShaderLibrary, error) {
	cache, err := lru.New[string, []uint32](size)
	if err != nil {
		return nil, errors.Wrap(err, "create shader cache")
	}
	return &ShaderLibrary{files: files, cache: cache}, nil
}

// Load returns the bytecode of the named module.
func (l *ShaderLibrary) Load(name string) ([]uint32, error) {
	if code, ok := l.cache.Get(name); ok {
		return code, nil
	}

	b, err := fs.ReadFile(l.files, name)
	if err != nil {
		return nil, errors.Wrapf(err, "read shader %s", name)
	}

	code, err := BytesToBytecode(b)
	if err != nil {
		return nil, errors.Wrapf(err, "shader %s", name)
	}

	l.cache.Add(name, code)
	return code, nil
}

// BytesToBytecode reinterprets a little-endian SPIR-V file as 32-bit words.
func BytesToBytecode(b []byte) ([]uint32, error) {
	if len(b) < 4 || len(b)%4 != 0 {
		return nil, errors.Wrapf(ErrInvalidSPIRV, "length %d is not a positive multiple of 4", len(b))
	}

	byteCode := make([]uint32, len(b)/4)
	for i := range byteCode {
		byteCode[i] = binary.LittleEndian.Uint32(b[i*4:])
	}

	if byteCode[0] != spirvMagic {
		return nil, errors.Wrapf(ErrInvalidSPIRV, "magic %#08x", byteCode[0])
	}
	return byteCode, nil
}
