package assets

import (
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"io"

	"github.com/cockroachdb/errors"
	"golang.org/x/image/draw"
)

// Texture is a decoded image as tightly packed RGBA8 rows.
type Texture struct {
	Width    int
	Height   int
	Channels int
	Pixels   []byte
}

// DecodeTexture decodes a PNG or JPEG image into RGBA pixels.
func DecodeTexture(r io.Reader) (Texture, error) {
	src, format, err := image.Decode(r)
	if err != nil {
		return Texture{}, errors.Wrap(err, "decode texture")
	}

	bounds := src.Bounds()
	if bounds.Empty() {
		return Texture{}, errors.Newf("%s texture has no pixels", format)
	}

	dst := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(dst, dst.Bounds(), src, bounds.Min, draw.Src)

	return Texture{
		Width:    bounds.Dx(),
		Height:   bounds.Dy(),
		Channels: 4,
		Pixels:   dst.Pix,
	}, nil
}

// Checkerboard generates a two-tone texture of size x size pixels with
// square cells.
func Checkerboard(size, cell int) Texture {
	light := color.RGBA{R: 0xe0, G: 0xe0, B: 0xe0, A: 0xff}
	dark := color.RGBA{R: 0x40, G: 0x40, B: 0x40, A: 0xff}

	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y += cell {
		for x := 0; x < size; x += cell {
			c := light
			if (x/cell+y/cell)%2 == 1 {
				c = dark
			}
			draw.Draw(dst, image.Rect(x, y, x+cell, y+cell), image.NewUniform(c), image.Point{}, draw.Src)
		}
	}

	return Texture{Width: size, Height: size, Channels: 4, Pixels: dst.Pix}
}
