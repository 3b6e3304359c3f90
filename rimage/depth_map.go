package rimage

import (
	"image"
	"image/color"
	"image/png"
	"io"
	"math"
	"os"

	"github.com/pkg/errors"
	"go.viam.com/utils"
)

// MinValidDepth is the smallest depth, in meters, treated as a measurement. Anything below it,
// including the zero written by sensors for missing returns, is invalid.
const MinValidDepth = 0.001

// DepthMillimetersToMeters is the scale of 16 bit depth pngs stored in millimeters.
const DepthMillimetersToMeters = 1e-3

// DepthMap is a metric depth image; values are meters along the optical axis.
type DepthMap struct {
	width  int
	height int
	data   []float64
}

// NewEmptyDepthMap returns a depth map with every pixel invalid.
func NewEmptyDepthMap(width, height int) *DepthMap {
	return &DepthMap{width: width, height: height, data: make([]float64, width*height)}
}

// Width of the depth map.
func (dm *DepthMap) Width() int {
	return dm.width
}

// Height of the depth map.
func (dm *DepthMap) Height() int {
	return dm.height
}

// Bounds returns the rectangle anchored at the origin.
func (dm *DepthMap) Bounds() image.Rectangle {
	return image.Rect(0, 0, dm.width, dm.height)
}

// GetDepth returns the depth at a pixel.
func (dm *DepthMap) GetDepth(x, y int) float64 {
	return dm.data[y*dm.width+x]
}

// Set sets the depth at a pixel.
func (dm *DepthMap) Set(x, y int, meters float64) {
	dm.data[y*dm.width+x] = meters
}

// Valid returns whether the pixel holds a usable measurement.
func (dm *DepthMap) Valid(x, y int) bool {
	d := dm.data[y*dm.width+x]
	return d >= MinValidDepth && !math.IsInf(d, 0)
}

// NumValid counts the pixels holding usable measurements.
func (dm *DepthMap) NumValid() int {
	n := 0
	for _, d := range dm.data {
		if d >= MinValidDepth && !math.IsInf(d, 0) {
			n++
		}
	}
	return n
}

// Clip invalidates every pixel at or beyond zfar meters. A zfar of zero or less disables clipping.
func (dm *DepthMap) Clip(zfar float64) {
	if zfar <= 0 {
		return
	}
	for i, d := range dm.data {
		if d >= zfar {
			dm.data[i] = 0
		}
	}
}

// Resize returns the depth map scaled with nearest neighbor sampling, so no depth is ever
// interpolated across an object boundary.
func (dm *DepthMap) Resize(width, height int) *DepthMap {
	out := NewEmptyDepthMap(width, height)
	for y := 0; y < height; y++ {
		sy := nearestSource(y, height, dm.height)
		for x := 0; x < width; x++ {
			out.data[y*width+x] = dm.data[sy*dm.width+nearestSource(x, width, dm.width)]
		}
	}
	return out
}

func nearestSource(dst, dstSize, srcSize int) int {
	s := int(math.Floor((float64(dst) + 0.5) * float64(srcSize) / float64(dstSize)))
	if s >= srcSize {
		s = srcSize - 1
	}
	return s
}

// DecodeDepthPNG reads a single channel png of integer depth values and multiplies them by scale
// to get meters. 16 bit images are read at full precision.
func DecodeDepthPNG(r io.Reader, scale float64) (*DepthMap, error) {
	img, err := png.Decode(r)
	if err != nil {
		return nil, errors.Wrap(err, "could not decode depth png")
	}
	b := img.Bounds()
	dm := NewEmptyDepthMap(b.Dx(), b.Dy())
	gray16, isGray16 := img.(*image.Gray16)
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			var raw uint16
			if isGray16 {
				raw = gray16.Gray16At(b.Min.X+x, b.Min.Y+y).Y
			} else {
				raw = color.Gray16Model.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray16).Y
			}
			dm.data[y*dm.width+x] = float64(raw) * scale
		}
	}
	return dm, nil
}

// ReadDepthPNG opens a 16 bit depth png stored in millimeters.
func ReadDepthPNG(path string) (*DepthMap, error) {
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer utils.UncheckedErrorFunc(f.Close)
	dm, err := DecodeDepthPNG(f, DepthMillimetersToMeters)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	return dm, nil
}

// EncodeDepthPNG writes the depth map as a 16 bit png of depth/scale, saturating at the 16 bit
// range.
func (dm *DepthMap) EncodeDepthPNG(w io.Writer, scale float64) error {
	img := image.NewGray16(dm.Bounds())
	for y := 0; y < dm.height; y++ {
		for x := 0; x < dm.width; x++ {
			v := math.Round(dm.data[y*dm.width+x] / scale)
			v = math.Max(0, math.Min(v, math.MaxUint16))
			img.SetGray16(x, y, color.Gray16{Y: uint16(v)})
		}
	}
	return png.Encode(w, img)
}
