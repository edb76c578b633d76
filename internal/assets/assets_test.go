package assets

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/cockroachdb/errors"
)

func spirv(words ...uint32) []byte {
	buf := &bytes.Buffer{}
	_ = binary.Write(buf, binary.LittleEndian, append([]uint32{spirvMagic}, words...))
	return buf.Bytes()
}

func TestBytesToBytecode(t *testing.T) {
	code, err := BytesToBytecode(spirv(0x00010000, 42))
	if err != nil {
		t.Fatalf("BytesToBytecode() error = %v", err)
	}
	if len(code) != 3 || code[0] != spirvMagic || code[2] != 42 {
		t.Errorf("BytesToBytecode() = %#v", code)
	}

	tests := map[string][]byte{
		"empty":     nil,
		"unaligned": {0x03, 0x02, 0x23, 0x07, 0x00},
		"bad magic": {0xde, 0xad, 0xbe, 0xef},
	}
	for name, b := range tests {
		if _, err := BytesToBytecode(b); !errors.Is(err, ErrInvalidSPIRV) {
			t.Errorf("%s: error = %v, want ErrInvalidSPIRV", name, err)
		}
	}
}

func TestShaderLibraryCaches(t *testing.T) {
	files := fstest.MapFS{
		"shaders/vert.spv": {Data: spirv(1)},
	}

	lib, err := NewShaderLibrary(files, 4)
	if err != nil {
		t.Fatalf("NewShaderLibrary() error = %v", err)
	}

	first, err := lib.Load("shaders/vert.spv")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	delete(files, "shaders/vert.spv")
	second, err := lib.Load("shaders/vert.spv")
	if err != nil {
		t.Fatalf("cached Load() error = %v", err)
	}
	if &first[0] != &second[0] {
		t.Error("second Load() did not return the cached bytecode")
	}

	if _, err := lib.Load("shaders/missing.spv"); err == nil {
		t.Error("Load() of a missing file succeeded")
	}
}

func TestDecodeTexture(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 3, 2))
	src.Set(2, 1, color.NRGBA{R: 10, G: 20, B: 30, A: 255})

	buf := &bytes.Buffer{}
	if err := png.Encode(buf, src); err != nil {
		t.Fatalf("png.Encode() error = %v", err)
	}

	tex, err := DecodeTexture(buf)
	if err != nil {
		t.Fatalf("DecodeTexture() error = %v", err)
	}
	if tex.Width != 3 || tex.Height != 2 || tex.Channels != 4 {
		t.Fatalf("DecodeTexture() = %dx%dx%d, want 3x2x4", tex.Width, tex.Height, tex.Channels)
	}
	if len(tex.Pixels) != 3*2*4 {
		t.Fatalf("len(Pixels) = %d, want 24", len(tex.Pixels))
	}

	last := tex.Pixels[len(tex.Pixels)-4:]
	if last[0] != 10 || last[1] != 20 || last[2] != 30 || last[3] != 255 {
		t.Errorf("bottom-right pixel = %v, want [10 20 30 255]", last)
	}

	if _, err := DecodeTexture(strings.NewReader("not an image")); err == nil {
		t.Error("DecodeTexture() accepted garbage")
	}
}

func TestCheckerboard(t *testing.T) {
	tex := Checkerboard(4, 2)
	if tex.Width != 4 || tex.Height != 4 || len(tex.Pixels) != 64 {
		t.Fatalf("Checkerboard() = %dx%d with %d bytes", tex.Width, tex.Height, len(tex.Pixels))
	}

	pixel := func(x, y int) byte { return tex.Pixels[(y*4+x)*4] }
	if pixel(0, 0) == pixel(2, 0) {
		t.Error("adjacent cells share a color")
	}
	if pixel(0, 0) != pixel(2, 2) {
		t.Error("diagonal cells differ")
	}
}

const quadOBJ = `o quad
v 0 0 0
v 1 0 0
v 1 1 0
v 0 1 0
vt 0 0
vt 1 0
vt 1 1
vt 0 1
f 1/1 2/2 3/3 4/4
f 1/1 3/3 4/4
`

func TestLoadOBJDeduplicates(t *testing.T) {
	mesh, err := LoadOBJ(strings.NewReader(quadOBJ), nil)
	if err != nil {
		t.Fatalf("LoadOBJ() error = %v", err)
	}

	if len(mesh.Vertices) != 4 {
		t.Errorf("len(Vertices) = %d, want 4 unique vertices", len(mesh.Vertices))
	}
	if len(mesh.Indices) != 9 {
		t.Fatalf("len(Indices) = %d, want 9", len(mesh.Indices))
	}

	want := []uint32{0, 1, 2, 0, 2, 3, 0, 2, 3}
	for i := range want {
		if mesh.Indices[i] != want[i] {
			t.Fatalf("Indices = %v, want %v", mesh.Indices, want)
		}
	}

	// V is flipped for Vulkan's top-left texture origin.
	if got := mesh.Vertices[0].TexCoord[1]; got != 1 {
		t.Errorf("first vertex v = %v, want 1", got)
	}
}

func TestLoadOBJKeepsDistinctTexCoords(t *testing.T) {
	const seam = `o seam
v 0 0 0
v 1 0 0
v 1 1 0
vt 0 0
vt 1 0
vt 1 1
vt 0.5 0.5
f 1/1 2/2 3/3
f 1/4 2/2 3/3
`
	mesh, err := LoadOBJ(strings.NewReader(seam), nil)
	if err != nil {
		t.Fatalf("LoadOBJ() error = %v", err)
	}
	if len(mesh.Vertices) != 4 {
		t.Errorf("len(Vertices) = %d, want 4 (shared position, different uv)", len(mesh.Vertices))
	}
}

func TestLoadOBJWithoutTexCoords(t *testing.T) {
	tests := []struct {
		name string
		obj  string
	}{
		{"positions only", "o tri\nv 0 0 0\nv 1 0 0\nv 0 1 0\nf 1 2 3\n"},
		{"positions and normals", "o tri\nv 0 0 0\nv 1 0 0\nv 0 1 0\nvn 0 0 1\nf 1//1 2//1 3//1\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mesh, err := LoadOBJ(strings.NewReader(tt.obj), nil)
			if err != nil {
				t.Fatalf("LoadOBJ() error = %v", err)
			}
			if len(mesh.Vertices) != 3 || len(mesh.Indices) != 3 {
				t.Fatalf("mesh = %d vertices, %d indices, want 3 and 3", len(mesh.Vertices), len(mesh.Indices))
			}
			for i, v := range mesh.Vertices {
				if v.TexCoord[0] != 0 || v.TexCoord[1] != 0 {
					t.Errorf("Vertices[%d].TexCoord = %v, want zero", i, v.TexCoord)
				}
			}
		})
	}
}

func TestQuads(t *testing.T) {
	mesh := Quads()
	for _, idx := range mesh.Indices {
		if int(idx) >= len(mesh.Vertices) {
			t.Fatalf("index %d out of range for %d vertices", idx, len(mesh.Vertices))
		}
	}
	if len(mesh.Indices)%3 != 0 {
		t.Errorf("len(Indices) = %d, not a triangle list", len(mesh.Indices))
	}
}

func TestVertexLayout(t *testing.T) {
	bindings := VertexBindings()
	attrs := VertexAttributes()
	if len(bindings) != 1 || bindings[0].Stride != 32 {
		t.Errorf("binding stride = %d, want 32", bindings[0].Stride)
	}
	if len(attrs) != 3 || attrs[1].Offset != 12 || attrs[2].Offset != 24 {
		t.Errorf("attribute offsets = %+v", attrs)
	}
}
