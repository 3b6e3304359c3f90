package transform

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/posetrack/pointcloud"
	"go.viam.com/posetrack/rimage"
)

func testIntrinsics() *PinholeCameraIntrinsics {
	return &PinholeCameraIntrinsics{Width: 8, Height: 6, Fx: 10, Fy: 12, Ppx: 4, Ppy: 3}
}

func TestCheckValid(t *testing.T) {
	var nilParams *PinholeCameraIntrinsics
	test.That(t, errors.Is(nilParams.CheckValid(), ErrNoIntrinsics), test.ShouldBeTrue)
	test.That(t, testIntrinsics().CheckValid(), test.ShouldBeNil)

	bad := testIntrinsics()
	bad.Fx = 0
	err := bad.CheckValid()
	test.That(t, errors.Is(err, ErrNoIntrinsics), test.ShouldBeTrue)
	test.That(t, err.Error(), test.ShouldContainSubstring, "Fx")
}

func TestReadK(t *testing.T) {
	k, err := ReadK(strings.NewReader("1.066778e+03 0.0 3.129869e+02\n0 1.067487e+03 2.413109e+02\n0 0 1\n"))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, k[0], test.ShouldAlmostEqual, 1066.778)
	test.That(t, k[5], test.ShouldAlmostEqual, 241.3109)

	params, err := NewPinholeCameraIntrinsicsFromK(k, 640, 480)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, params.Fy, test.ShouldAlmostEqual, 1067.487)
	test.That(t, params.Ppx, test.ShouldAlmostEqual, 312.9869)

	_, err = ReadK(strings.NewReader("1 0 0\n0 1 0\n"))
	test.That(t, errors.Is(err, ErrNoIntrinsics), test.ShouldBeTrue)
	_, err = ReadK(strings.NewReader("1 0 x\n0 1 0\n0 0 1\n"))
	test.That(t, err, test.ShouldNotBeNil)
	_, err = NewPinholeCameraIntrinsicsFromK([]float64{1, 0.1, 0, 0, 1, 0, 0, 0, 1}, 4, 4)
	test.That(t, err, test.ShouldNotBeNil)

	dir := t.TempDir()
	path := filepath.Join(dir, "cam_K.txt")
	test.That(t, os.WriteFile(path, []byte("10 0 4\n0 12 3\n0 0 1\n"), 0o600), test.ShouldBeNil)
	params, err = NewPinholeCameraIntrinsicsFromKFile(path, 8, 6)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, *params, test.ShouldResemble, *testIntrinsics())

	_, err = NewPinholeCameraIntrinsicsFromKFile(filepath.Join(dir, "missing.txt"), 8, 6)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestProjection(t *testing.T) {
	params := testIntrinsics()
	x, y, z := params.PixelToPoint(6, 0, 2)
	test.That(t, x, test.ShouldAlmostEqual, 0.4)
	test.That(t, y, test.ShouldAlmostEqual, -0.5)
	test.That(t, z, test.ShouldEqual, 2)

	u, v := params.PointToPixel(x, y, z)
	test.That(t, u, test.ShouldAlmostEqual, 6)
	test.That(t, v, test.ShouldAlmostEqual, 0)

	u, v = params.PointToPixel(1, 1, 0)
	test.That(t, u, test.ShouldEqual, -1)
	test.That(t, v, test.ShouldEqual, -1)

	half := params.Scaled(4, 3)
	test.That(t, half.Fx, test.ShouldAlmostEqual, 5)
	test.That(t, half.Ppy, test.ShouldAlmostEqual, 1.5)

	cam := params.GetCameraMatrix()
	test.That(t, cam.At(0, 2), test.ShouldEqual, 4)
	test.That(t, cam.At(2, 2), test.ShouldEqual, 1)
}

func TestRGBDToPointCloud(t *testing.T) {
	params := testIntrinsics()
	img := rimage.NewImage(8, 6)
	dm := rimage.NewEmptyDepthMap(8, 6)
	img.SetXY(4, 3, color.NRGBA{R: 200})
	dm.Set(4, 3, 1)
	dm.Set(5, 3, 0.0009) // below the validity threshold
	dm.Set(0, 0, 2)

	pc, err := params.RGBDToPointCloud(img, dm)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pc.Size(), test.ShouldEqual, 2)
	d, ok := pc.At(0, 0, 1)
	test.That(t, ok, test.ShouldBeTrue)
	r, _, _ := d.RGB255()
	test.That(t, r, test.ShouldEqual, 200)

	pc, err = params.RGBDToPointCloud(img, dm, image.Rect(2, 2, 8, 6))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pc.Size(), test.ShouldEqual, 1)

	_, err = params.RGBDToPointCloud(img, rimage.NewEmptyDepthMap(4, 4))
	test.That(t, err, test.ShouldNotBeNil)
	_, err = params.RGBDToPointCloud(nil, dm)
	test.That(t, err, test.ShouldNotBeNil)

	var cloud pointcloud.PointCloud = pc
	test.That(t, cloud.MetaData().HasColor, test.ShouldBeTrue)
}

func TestDepthToPoints(t *testing.T) {
	params := testIntrinsics()
	dm := rimage.NewEmptyDepthMap(8, 6)
	dm.Set(4, 3, 1)
	dm.Set(6, 0, 2)
	mask := rimage.NewMask(8, 6)
	mask.Set(6, 0, true)

	pts, err := params.DepthToPoints(dm, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pts, test.ShouldHaveLength, 2)

	pts, err = params.DepthToPoints(dm, mask)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pts, test.ShouldHaveLength, 1)
	test.That(t, pts[0].Sub(r3.Vector{X: 0.4, Y: -0.5, Z: 2}).Norm(), test.ShouldBeLessThan, 1e-12)

	_, err = params.DepthToPoints(dm, rimage.NewMask(2, 2))
	test.That(t, err, test.ShouldNotBeNil)
}
