package testutils

import (
	"fmt"
	"image/color"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/posetrack/rimage"
	"go.viam.com/posetrack/rimage/transform"
)

var whiteMask = color.NRGBA{255, 255, 255, 255}

// FrameID formats the id of the i-th synthetic frame.
func FrameID(i int) string {
	return fmt.Sprintf("%06d", i)
}

// WriteScene writes frames to dir in the rgb/depth/masks/cam_K.txt layout. Every frame gets a
// mask file.
func WriteScene(dir string, params *transform.PinholeCameraIntrinsics, frames []*RenderedFrame) error {
	for _, sub := range []string{"rgb", "depth", "masks"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o750); err != nil {
			return err
		}
	}
	k := fmt.Sprintf("%f 0 %f\n0 %f %f\n0 0 1\n", params.Fx, params.Ppx, params.Fy, params.Ppy)
	if err := os.WriteFile(filepath.Join(dir, "cam_K.txt"), []byte(k), 0o600); err != nil {
		return err
	}
	for i, frame := range frames {
		name := FrameID(i) + ".png"
		if err := writeFile(filepath.Join(dir, "rgb", name), frame.Color.EncodePNG); err != nil {
			return err
		}
		if err := writeFile(filepath.Join(dir, "depth", name), func(w io.Writer) error {
			return frame.Depth.EncodeDepthPNG(w, rimage.DepthMillimetersToMeters)
		}); err != nil {
			return err
		}
		maskImg := rimage.NewImage(frame.Mask.Width(), frame.Mask.Height())
		for y := 0; y < frame.Mask.Height(); y++ {
			for x := 0; x < frame.Mask.Width(); x++ {
				if frame.Mask.At(x, y) {
					maskImg.SetXY(x, y, whiteMask)
				}
			}
		}
		if err := writeFile(filepath.Join(dir, "masks", name), maskImg.EncodePNG); err != nil {
			return err
		}
	}
	return nil
}

func writeFile(path string, encode func(io.Writer) error) (err error) {
	//nolint:gosec
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()
	return errors.Wrapf(encode(f), "writing %s", path)
}
