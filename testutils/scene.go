// Package testutils renders small synthetic RGB-D scenes for tests.
package testutils

import (
	"image/color"
	"math"

	"github.com/golang/geo/r3"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/pkg/errors"

	"go.viam.com/posetrack/mesh"
	"go.viam.com/posetrack/rimage"
	"go.viam.com/posetrack/rimage/transform"
	"go.viam.com/posetrack/spatialmath"
)

// CubeEdge is the edge length in meters of the synthetic cube.
const CubeEdge = 0.1

const cubeHue = 210

// CubeCenter is where the cube sits in its own mesh frame, so that the identity pose places it
// in front of the camera.
var CubeCenter = r3.Vector{Z: 0.5}

// SceneIntrinsics is the camera used for synthetic scenes.
func SceneIntrinsics() *transform.PinholeCameraIntrinsics {
	return &transform.PinholeCameraIntrinsics{Width: 160, Height: 120, Fx: 200, Fy: 200, Ppx: 80, Ppy: 60}
}

// CornerOnRotation turns the cube so one corner points at the camera and three faces are visible.
func CornerOnRotation() *spatialmath.RotationMatrix {
	diag := r3.Vector{X: 1, Y: 1, Z: 1}.Normalize()
	toward := r3.Vector{Z: -1}
	axis := diag.Cross(toward)
	return spatialmath.RotationFromAxisAngle(axis, math.Acos(diag.Dot(toward)))
}

// CubeMesh returns the synthetic cube, sampled with the given number of grid divisions per face,
// expressed in a mesh frame where it is corner on to the camera and centered at CubeCenter.
func CubeMesh(divisions int) (*mesh.Mesh, error) {
	box, err := mesh.NewBox(r3.Vector{X: CubeEdge, Y: CubeEdge, Z: CubeEdge}, divisions)
	if err != nil {
		return nil, err
	}
	return box.Transform(spatialmath.NewPose(CubeCenter, CornerOnRotation())), nil
}

// RenderedFrame is a rendered view of a mesh.
type RenderedFrame struct {
	Color *rimage.Image
	Depth *rimage.DepthMap
	Mask  *rimage.Mask
}

// Render splats the vertices of a densely sampled convex mesh, placed by pose, into a color image,
// depth map and silhouette mask with a z-buffer. Only vertices whose normal faces the camera are
// drawn. Shading follows the angle between the normal and the viewing ray.
func Render(m *mesh.Mesh, pose spatialmath.Pose, params *transform.PinholeCameraIntrinsics) (*RenderedFrame, error) {
	if err := params.CheckValid(); err != nil {
		return nil, err
	}
	out := &RenderedFrame{
		Color: rimage.NewImage(params.Width, params.Height),
		Depth: rimage.NewEmptyDepthMap(params.Width, params.Height),
		Mask:  rimage.NewMask(params.Width, params.Height),
	}
	rot := pose.Rotation()
	normals := m.Normals()
	for i, v := range m.Vertices() {
		p := spatialmath.TransformPoint(pose, v)
		n := rot.Mul(normals[i])
		if p.Z <= 0 || n.Dot(p) >= 0 {
			continue
		}
		u, w := params.PointToPixel(p.X, p.Y, p.Z)
		x, y := int(math.Round(u)), int(math.Round(w))
		if !out.Color.In(x, y) {
			continue
		}
		if out.Mask.At(x, y) && out.Depth.GetDepth(x, y) <= p.Z {
			continue
		}
		shade := 0.25 + 0.75*math.Abs(n.Dot(p.Normalize()))
		r, g, b := colorful.Hsv(cubeHue, 0.7, shade).Clamped().RGB255()
		out.Depth.Set(x, y, p.Z)
		out.Mask.Set(x, y, true)
		out.Color.SetXY(x, y, color.NRGBA{R: r, G: g, B: b, A: 255})
	}
	if out.Mask.Count() == 0 {
		return nil, errors.New("mesh is not visible from the camera")
	}
	return out, nil
}

// CubeCorners returns the eight corners of the synthetic cube in its mesh frame.
func CubeCorners() []r3.Vector {
	box, err := spatialmath.NewBox(spatialmath.NewPose(CubeCenter, CornerOnRotation()), r3.Vector{X: CubeEdge, Y: CubeEdge, Z: CubeEdge})
	if err != nil {
		panic(err)
	}
	return box.Vertices()
}
