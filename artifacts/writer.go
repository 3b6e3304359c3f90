package artifacts

import (
	"bufio"
	"context"
	"image"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/golang/geo/r3"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"go.opencensus.io/trace"
	"go.uber.org/multierr"

	"go.viam.com/posetrack/dataset"
	"go.viam.com/posetrack/logging"
	"go.viam.com/posetrack/mesh"
	"go.viam.com/posetrack/pointcloud"
	"go.viam.com/posetrack/rimage"
	"go.viam.com/posetrack/spatialmath"
)

const (
	axisScale     = 0.1
	axisWidth     = 3
	boxEdgeWidth  = 2
	labelFontSize = 12
	fileMode      = 0o640
	createFlags   = os.O_CREATE | os.O_WRONLY | os.O_TRUNC
)

// Bounds is the oriented bounding box of the mesh. ToOrigin maps the mesh frame into the box
// frame; it is only used to draw the overlay.
type Bounds struct {
	ToOrigin spatialmath.Pose
	Extents  r3.Vector
}

// Record is the outcome of one processed frame.
type Record struct {
	Frame   *dataset.Frame
	Pose    spatialmath.Pose
	Bounds  Bounds
	Elapsed time.Duration
}

// Writer persists the artifacts enabled by its policy. Failures are logged and never returned to
// the caller, so a full disk cannot stop a run.
type Writer struct {
	fs      afero.Fs
	dir     string
	policy  Policy
	mesh    *mesh.Mesh
	display Display
	logger  logging.Logger

	// headless is set when nothing would see a live overlay.
	headless    bool
	sceneFormat pointcloud.Format

	mu       sync.Mutex
	manifest manifest
	track    []trackPoint
}

// Option configures a Writer.
type Option func(*Writer)

// WithSceneFormat sets the file format of the first frame reconstruction. The default is PLY.
func WithSceneFormat(format pointcloud.Format) Option {
	return func(w *Writer) {
		w.sceneFormat = format
	}
}

// NewWriter returns a writer into dir, which should already have been prepared with
// PrepareOutputDir. runConfig is recorded verbatim in the manifest. A nil display drops live
// overlays, and they are then not drawn unless they are also persisted.
func NewWriter(
	fs afero.Fs,
	dir string,
	policy Policy,
	m *mesh.Mesh,
	display Display,
	runConfig interface{},
	logger logging.Logger,
	opts ...Option,
) *Writer {
	if display == nil {
		display = NewHeadlessDisplay()
	}
	_, headless := display.(headlessDisplay)
	w := &Writer{
		fs:          fs,
		dir:         dir,
		policy:      policy,
		mesh:        m,
		display:     display,
		logger:      logger,
		headless:    headless,
		sceneFormat: pointcloud.FormatPLY,
		manifest: manifest{
			RunID:     uuid.NewString(),
			StartedAt: time.Now().UTC(),
			Level:     policy.Level,
			Config:    runConfig,
		},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Policy returns the active policy.
func (w *Writer) Policy() Policy {
	return w.policy
}

// Write persists the artifacts of one frame.
func (w *Writer) Write(ctx context.Context, rec Record) {
	ctx, span := trace.StartSpan(ctx, "posetrack::artifacts::Write")
	defer span.End()

	id := rec.Frame.ID
	w.mu.Lock()
	w.manifest.Frames = append(w.manifest.Frames, frameEntry{
		Index:     rec.Frame.Index,
		ID:        id,
		ElapsedMs: float64(rec.Elapsed.Microseconds()) / 1000,
	})
	w.track = append(w.track, trackPoint{index: rec.Frame.Index, position: rec.Pose.Point()})
	if rec.Frame.Index == 0 && rec.Frame.Intrinsics != nil {
		w.manifest.CameraMatrix = rec.Frame.Intrinsics.GetCameraMatrix().RawMatrix().Data
	}
	w.mu.Unlock()

	if w.policy.PersistPoseText {
		w.report(id, PoseDir, w.writeFile(PosePath(w.dir, id), func(out io.Writer) error {
			return spatialmath.WritePoseText(out, rec.Pose)
		}))
	}

	show := w.policy.ShowLiveOverlay && !w.headless
	if show || w.policy.PersistOverlayImage {
		overlay, err := w.overlay(rec)
		if err != nil {
			w.report(id, OverlayDir, err)
		} else {
			if show {
				w.report(id, "display", w.display.Show(ctx, id, overlay))
			}
			if w.policy.PersistOverlayImage {
				w.report(id, OverlayDir, w.writeFile(OverlayPath(w.dir, id), overlay.EncodePNG))
			}
		}
	}

	if w.policy.PersistInitialReconstruction && rec.Frame.Index == 0 {
		w.report(id, ModelFile, w.writeFile(filepath.Join(w.dir, ModelFile), func(out io.Writer) error {
			return mesh.WriteOBJ(out, w.mesh.Transform(rec.Pose))
		}))
		w.report(id, SceneFile(w.sceneFormat), w.writeScene(rec.Frame))
	}
}

// Close writes the run summary artifacts and closes the display.
func (w *Writer) Close(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.manifest.FinishedAt = time.Now().UTC()
	if w.policy.PersistOverlayImage && len(w.track) > 0 {
		w.report("", TrajectoryFile, w.writeFile(filepath.Join(w.dir, TrajectoryFile), func(out io.Writer) error {
			return writeTrajectoryPlot(out, w.track)
		}))
	}
	w.report("", ManifestFile, w.writeFile(filepath.Join(w.dir, ManifestFile), w.manifest.encode))
	return w.display.Close()
}

// overlay draws the oriented box and axes of the object, at pose composed with the inverse of the
// box transform, onto a copy of the frame.
func (w *Writer) overlay(rec Record) (*rimage.Image, error) {
	center := spatialmath.Compose(rec.Pose, spatialmath.PoseInverse(rec.Bounds.ToOrigin))
	dc := rimage.NewContext(rec.Frame.Color)
	if err := rimage.DrawPosedBox(dc, rec.Frame.Intrinsics, center, rec.Bounds.Extents, rimage.BoxColor, boxEdgeWidth); err != nil {
		return nil, err
	}
	rimage.DrawAxes(dc, rec.Frame.Intrinsics, center, axisScale, axisWidth)
	rimage.DrawString(dc, rec.Frame.ID, image.Point{X: 4, Y: 4}, color.White, labelFontSize)
	return rimage.ContextImage(dc), nil
}

func (w *Writer) writeScene(frame *dataset.Frame) error {
	cloud, err := frame.Intrinsics.RGBDToPointCloud(frame.Color, frame.Depth)
	if err != nil {
		return err
	}
	return w.writeFile(filepath.Join(w.dir, SceneFile(w.sceneFormat)), func(out io.Writer) error {
		return pointcloud.Encode(cloud, out, w.sceneFormat)
	})
}

func (w *Writer) writeFile(path string, encode func(io.Writer) error) (err error) {
	f, err := w.fs.OpenFile(path, createFlags, fileMode)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()
	buf := bufio.NewWriter(f)
	if err := encode(buf); err != nil {
		return errors.Wrapf(err, "encoding %s", filepath.Base(path))
	}
	return buf.Flush()
}

func (w *Writer) report(id, artifact string, err error) {
	if err == nil {
		return
	}
	w.logger.Warnw("failed to write artifact", "error", err, "frame_id", id, "artifact", artifact)
}
