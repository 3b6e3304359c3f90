package rimage

import (
	"image"
	"io"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
)

// Mask is a binary segmentation of an image.
type Mask struct {
	width  int
	height int
	bits   []bool
}

// NewMask returns an empty mask.
func NewMask(width, height int) *Mask {
	return &Mask{width: width, height: height, bits: make([]bool, width*height)}
}

// NewMaskFromImage sets every pixel whose color channels are not all zero.
func NewMaskFromImage(img image.Image) *Mask {
	nrgba := imaging.Clone(img)
	b := nrgba.Bounds()
	m := NewMask(b.Dx(), b.Dy())
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			c := nrgba.NRGBAAt(x, y)
			m.bits[y*m.width+x] = c.R > 0 || c.G > 0 || c.B > 0
		}
	}
	return m
}

// Width of the mask.
func (m *Mask) Width() int {
	return m.width
}

// Height of the mask.
func (m *Mask) Height() int {
	return m.height
}

// Bounds returns the rectangle anchored at the origin.
func (m *Mask) Bounds() image.Rectangle {
	return image.Rect(0, 0, m.width, m.height)
}

// At reports whether the pixel is set.
func (m *Mask) At(x, y int) bool {
	return m.bits[y*m.width+x]
}

// Set sets or clears a pixel.
func (m *Mask) Set(x, y int, on bool) {
	m.bits[y*m.width+x] = on
}

// Count returns the number of set pixels.
func (m *Mask) Count() int {
	n := 0
	for _, b := range m.bits {
		if b {
			n++
		}
	}
	return n
}

// Resize returns the mask scaled with nearest neighbor sampling.
func (m *Mask) Resize(width, height int) *Mask {
	out := NewMask(width, height)
	for y := 0; y < height; y++ {
		sy := nearestSource(y, height, m.height)
		for x := 0; x < width; x++ {
			out.bits[y*width+x] = m.bits[sy*m.width+nearestSource(x, width, m.width)]
		}
	}
	return out
}

// DecodeMask reads a mask image in any format imaging supports.
func DecodeMask(r io.Reader) (*Mask, error) {
	img, err := imaging.Decode(r)
	if err != nil {
		return nil, errors.Wrap(err, "could not decode mask")
	}
	return NewMaskFromImage(img), nil
}

// ReadMask opens a mask image file.
func ReadMask(path string) (*Mask, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "could not open mask %s", path)
	}
	return NewMaskFromImage(img), nil
}
