package dataset

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"go.viam.com/posetrack/logging"
	"go.viam.com/posetrack/spatialmath"
	"go.viam.com/posetrack/testutils"
)

func writeTestScene(t *testing.T, numFrames int) string {
	t.Helper()
	cube, err := testutils.CubeMesh(40)
	test.That(t, err, test.ShouldBeNil)
	params := testutils.SceneIntrinsics()
	frames := make([]*testutils.RenderedFrame, 0, numFrames)
	for i := 0; i < numFrames; i++ {
		pose := spatialmath.NewPoseFromPoint(r3.Vector{X: 0.01 * float64(i)})
		frame, err := testutils.Render(cube, pose, params)
		test.That(t, err, test.ShouldBeNil)
		frames = append(frames, frame)
	}
	dir := t.TempDir()
	test.That(t, testutils.WriteScene(dir, params, frames), test.ShouldBeNil)
	return dir
}

func TestYCBInEOAT(t *testing.T) {
	logger := logging.NewTestLogger(t)
	dir := writeTestScene(t, 3)
	// stray files are ignored
	test.That(t, os.WriteFile(filepath.Join(dir, ColorDir, "notes.txt"), []byte("x"), 0o600), test.ShouldBeNil)

	src, err := NewYCBInEOAT(dir, Options{}, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, src.Len(), test.ShouldEqual, 3)
	test.That(t, src.IDs(), test.ShouldResemble, []string{"000000", "000001", "000002"})
	test.That(t, *src.Intrinsics(), test.ShouldResemble, *testutils.SceneIntrinsics())

	frame, err := src.Frame(context.Background(), 0)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, frame.ID, test.ShouldEqual, "000000")
	test.That(t, frame.Mask, test.ShouldNotBeNil)
	test.That(t, frame.Mask.Count(), test.ShouldBeGreaterThan, 1000)
	test.That(t, frame.Color.Width(), test.ShouldEqual, 160)
	// the cube's nearest corner is at 0.5 - sqrt(3)*0.05, rounded to millimeters on disk
	test.That(t, frame.Depth.GetDepth(80, 60), test.ShouldAlmostEqual, 0.413, 0.002)

	frame, err = src.Frame(context.Background(), 2)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, frame.Index, test.ShouldEqual, 2)
	test.That(t, frame.Mask, test.ShouldBeNil)

	_, err = src.Frame(context.Background(), 3)
	test.That(t, err, test.ShouldNotBeNil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = src.Frame(ctx, 1)
	test.That(t, err, test.ShouldEqual, context.Canceled)
}

func TestYCBInEOATOptions(t *testing.T) {
	logger := logging.NewTestLogger(t)
	dir := writeTestScene(t, 1)

	src, err := NewYCBInEOAT(dir, Options{ShorterSide: 60, ZFar: 0.45}, logger)
	test.That(t, err, test.ShouldBeNil)
	k := src.Intrinsics()
	test.That(t, k.Width, test.ShouldEqual, 80)
	test.That(t, k.Height, test.ShouldEqual, 60)
	test.That(t, k.Fx, test.ShouldAlmostEqual, 100)
	test.That(t, k.Ppx, test.ShouldAlmostEqual, 40)

	frame, err := src.Frame(context.Background(), 0)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, frame.Color.Width(), test.ShouldEqual, 80)
	test.That(t, frame.Depth.Height(), test.ShouldEqual, 60)
	test.That(t, frame.Mask.Width(), test.ShouldEqual, 80)
	for y := 0; y < frame.Depth.Height(); y++ {
		for x := 0; x < frame.Depth.Width(); x++ {
			test.That(t, frame.Depth.GetDepth(x, y), test.ShouldBeLessThan, 0.45)
		}
	}
	test.That(t, frame.Depth.NumValid(), test.ShouldBeGreaterThan, 0)
}

func TestYCBInEOATErrors(t *testing.T) {
	logger := logging.NewTestLogger(t)
	_, err := NewYCBInEOAT(t.TempDir(), Options{}, logger)
	test.That(t, err, test.ShouldNotBeNil)

	empty := t.TempDir()
	test.That(t, os.MkdirAll(filepath.Join(empty, ColorDir), 0o750), test.ShouldBeNil)
	_, err = NewYCBInEOAT(empty, Options{}, logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "no color frames")

	dir := writeTestScene(t, 1)
	test.That(t, os.Remove(filepath.Join(dir, CamKFile)), test.ShouldBeNil)
	_, err = NewYCBInEOAT(dir, Options{}, logger)
	test.That(t, err, test.ShouldNotBeNil)

	dir = writeTestScene(t, 1)
	test.That(t, os.Remove(filepath.Join(dir, MaskDir, "000000.png")), test.ShouldBeNil)
	src, err := NewYCBInEOAT(dir, Options{}, logger)
	test.That(t, err, test.ShouldBeNil)
	_, err = src.Frame(context.Background(), 0)
	test.That(t, err, test.ShouldNotBeNil)
}
