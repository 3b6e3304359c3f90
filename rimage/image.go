// Package rimage holds the per frame raster types (color image, metric depth map and binary
// mask), their file loaders and the drawing helpers used for overlays.
package rimage

import (
	"image"
	"image/color"
	"io"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
)

// Image is an 8 bit RGB image. Alpha is kept at 255.
type Image struct {
	img *image.NRGBA
}

// NewImage returns a black image of the given size.
func NewImage(width, height int) *Image {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 255
	}
	return &Image{img: img}
}

// NewImageFromStdImage converts any image into an Image anchored at the origin.
func NewImageFromStdImage(img image.Image) *Image {
	return &Image{img: imaging.Clone(img)}
}

// ColorModel for the image.
func (i *Image) ColorModel() color.Model {
	return color.NRGBAModel
}

// Bounds of the image, always anchored at the origin.
func (i *Image) Bounds() image.Rectangle {
	return i.img.Bounds()
}

// At returns the color at the given location.
func (i *Image) At(x, y int) color.Color {
	return i.img.NRGBAAt(x, y)
}

// Width of the image.
func (i *Image) Width() int {
	return i.img.Bounds().Dx()
}

// Height of the image.
func (i *Image) Height() int {
	return i.img.Bounds().Dy()
}

// In returns whether the pixel lies inside the image.
func (i *Image) In(x, y int) bool {
	return x >= 0 && y >= 0 && x < i.Width() && y < i.Height()
}

// RGB255 returns the color components of a pixel.
func (i *Image) RGB255(x, y int) (uint8, uint8, uint8) {
	c := i.img.NRGBAAt(x, y)
	return c.R, c.G, c.B
}

// SetXY sets the color of a pixel.
func (i *Image) SetXY(x, y int, c color.NRGBA) {
	c.A = 255
	i.img.SetNRGBA(x, y, c)
}

// Clone returns a deep copy.
func (i *Image) Clone() *Image {
	return &Image{img: imaging.Clone(i.img)}
}

// NRGBA returns a copy of the underlying image.
func (i *Image) NRGBA() *image.NRGBA {
	return imaging.Clone(i.img)
}

// Resize returns the image scaled to the given size with bilinear filtering.
func (i *Image) Resize(width, height int) *Image {
	return &Image{img: imaging.Resize(i.img, width, height, imaging.Linear)}
}

// DecodeImage reads a color image in any format registered with imaging (png, jpeg, ...).
func DecodeImage(r io.Reader) (*Image, error) {
	img, err := imaging.Decode(r)
	if err != nil {
		return nil, errors.Wrap(err, "could not decode color image")
	}
	return NewImageFromStdImage(img), nil
}

// ReadImage opens a color image file.
func ReadImage(path string) (*Image, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "could not open color image %s", path)
	}
	return NewImageFromStdImage(img), nil
}

// EncodePNG writes the image as png.
func (i *Image) EncodePNG(w io.Writer) error {
	return imaging.Encode(w, i.img, imaging.PNG)
}
