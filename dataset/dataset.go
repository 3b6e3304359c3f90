// Package dataset reads RGB-D sequences from disk and hands them out frame by frame.
package dataset

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"go.viam.com/posetrack/logging"
	"go.viam.com/posetrack/rimage"
	"go.viam.com/posetrack/rimage/transform"
)

// Frame is one RGB-D observation. Mask is only populated for the first frame of a sequence.
type Frame struct {
	Index      int
	ID         string
	Color      *rimage.Image
	Depth      *rimage.DepthMap
	Intrinsics *transform.PinholeCameraIntrinsics
	Mask       *rimage.Mask
}

// Source provides frames of a sequence by index.
type Source interface {
	// Len returns the number of frames.
	Len() int
	// Frame loads the frame at index i, including its mask when i is 0.
	Frame(ctx context.Context, i int) (*Frame, error)
}

// Options change how frames are read.
type Options struct {
	// ShorterSide, when positive, resizes every frame so its shorter side has this many pixels.
	ShorterSide int
	// ZFar, when positive, invalidates depth at or beyond this many meters.
	ZFar float64
}

// Subdirectories and files of a YCBInEOAT style scene.
const (
	ColorDir   = "rgb"
	DepthDir   = "depth"
	MaskDir    = "masks"
	CamKFile   = "cam_K.txt"
	frameExt   = ".png"
	firstFrame = 0
)

// YCBInEOAT reads a scene directory laid out as rgb/<id>.png, depth/<id>.png (16 bit, mm),
// masks/<id>.png and cam_K.txt. Frame ids are the color file names sorted lexically.
type YCBInEOAT struct {
	dir        string
	ids        []string
	intrinsics *transform.PinholeCameraIntrinsics
	width      int
	height     int
	opts       Options
	logger     logging.Logger
}

var _ Source = &YCBInEOAT{}

// NewYCBInEOAT indexes a scene directory. The first color frame fixes the image size.
func NewYCBInEOAT(dir string, opts Options, logger logging.Logger) (*YCBInEOAT, error) {
	entries, err := os.ReadDir(filepath.Join(dir, ColorDir))
	if err != nil {
		return nil, errors.Wrapf(err, "cannot list color frames of scene %s", dir)
	}
	pngs := lo.Filter(entries, func(e os.DirEntry, _ int) bool {
		return !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), frameExt)
	})
	ids := lo.Map(pngs, func(e os.DirEntry, _ int) string {
		return strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
	})
	sort.Strings(ids)
	if len(ids) == 0 {
		return nil, errors.Errorf("scene %s has no color frames", dir)
	}
	if dups := lo.FindDuplicates(ids); len(dups) > 0 {
		return nil, errors.Errorf("scene %s has duplicate frame ids %v", dir, dups)
	}

	first, err := rimage.ReadImage(colorPath(dir, ids[firstFrame]))
	if err != nil {
		return nil, err
	}
	width, height := first.Width(), first.Height()
	intrinsics, err := transform.NewPinholeCameraIntrinsicsFromKFile(filepath.Join(dir, CamKFile), width, height)
	if err != nil {
		return nil, err
	}

	if opts.ShorterSide > 0 {
		scale := float64(opts.ShorterSide) / float64(min(width, height))
		width = int(float64(width) * scale)
		height = int(float64(height) * scale)
		intrinsics = intrinsics.Scaled(width, height)
	}
	logger.Debugw("indexed scene", "dir", dir, "frames", len(ids), "width", width, "height", height)

	return &YCBInEOAT{
		dir:        dir,
		ids:        ids,
		intrinsics: intrinsics,
		width:      width,
		height:     height,
		opts:       opts,
		logger:     logger,
	}, nil
}

// Len returns the number of frames.
func (y *YCBInEOAT) Len() int {
	return len(y.ids)
}

// IDs returns the frame ids in order.
func (y *YCBInEOAT) IDs() []string {
	return append([]string(nil), y.ids...)
}

// Intrinsics returns the camera intrinsics for the (possibly resized) frames.
func (y *YCBInEOAT) Intrinsics() *transform.PinholeCameraIntrinsics {
	k := *y.intrinsics
	return &k
}

// Frame loads color, depth and, for the first frame, the mask.
func (y *YCBInEOAT) Frame(ctx context.Context, i int) (*Frame, error) {
	if i < 0 || i >= len(y.ids) {
		return nil, errors.Errorf("frame index %d out of range [0, %d)", i, len(y.ids))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	id := y.ids[i]
	color, err := y.color(id)
	if err != nil {
		return nil, err
	}
	depth, err := y.depth(id)
	if err != nil {
		return nil, err
	}
	frame := &Frame{
		Index:      i,
		ID:         id,
		Color:      color,
		Depth:      depth,
		Intrinsics: y.Intrinsics(),
	}
	if i == firstFrame {
		if frame.Mask, err = y.mask(id); err != nil {
			return nil, err
		}
	}
	return frame, nil
}

func (y *YCBInEOAT) color(id string) (*rimage.Image, error) {
	img, err := rimage.ReadImage(colorPath(y.dir, id))
	if err != nil {
		return nil, err
	}
	if img.Width() != y.width || img.Height() != y.height {
		img = img.Resize(y.width, y.height)
	}
	return img, nil
}

func (y *YCBInEOAT) depth(id string) (*rimage.DepthMap, error) {
	dm, err := rimage.ReadDepthPNG(filepath.Join(y.dir, DepthDir, id+frameExt))
	if err != nil {
		return nil, err
	}
	if dm.Width() != y.width || dm.Height() != y.height {
		dm = dm.Resize(y.width, y.height)
	}
	if y.opts.ZFar > 0 && !math.IsInf(y.opts.ZFar, 1) {
		dm.Clip(y.opts.ZFar)
	}
	return dm, nil
}

func (y *YCBInEOAT) mask(id string) (*rimage.Mask, error) {
	m, err := rimage.ReadMask(filepath.Join(y.dir, MaskDir, id+frameExt))
	if err != nil {
		return nil, err
	}
	if m.Width() != y.width || m.Height() != y.height {
		m = m.Resize(y.width, y.height)
	}
	return m, nil
}

func colorPath(dir, id string) string {
	return filepath.Join(dir, ColorDir, id+frameExt)
}
