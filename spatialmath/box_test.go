package spatialmath

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

// boxSurfacePoints samples the surface of an axis aligned box centered at the origin.
func boxSurfacePoints(extents r3.Vector, n int) []r3.Vector {
	half := extents.Mul(0.5)
	var pts []r3.Vector
	for i := 0; i <= n; i++ {
		for j := 0; j <= n; j++ {
			u := -1 + 2*float64(i)/float64(n)
			v := -1 + 2*float64(j)/float64(n)
			for _, s := range []float64{-1, 1} {
				pts = append(pts,
					r3.Vector{X: s * half.X, Y: u * half.Y, Z: v * half.Z},
					r3.Vector{X: u * half.X, Y: s * half.Y, Z: v * half.Z},
					r3.Vector{X: u * half.X, Y: v * half.Y, Z: s * half.Z},
				)
			}
		}
	}
	return pts
}

func TestBoxVertices(t *testing.T) {
	b, err := NewBox(NewPoseFromPoint(r3.Vector{Z: 1}), r3.Vector{X: 2, Y: 4, Z: 6})
	test.That(t, err, test.ShouldBeNil)
	verts := b.Vertices()
	test.That(t, verts, test.ShouldHaveLength, 8)
	test.That(t, verts[0], test.ShouldResemble, r3.Vector{X: 1, Y: 2, Z: 4})
	test.That(t, verts[7], test.ShouldResemble, r3.Vector{X: -1, Y: -2, Z: -2})

	for _, e := range b.Edges() {
		d := e[1].Sub(e[0]).Norm()
		test.That(t, d == 2 || d == 4 || d == 6, test.ShouldBeTrue)
	}

	moved := b.Transform(NewPoseFromPoint(r3.Vector{X: 1}))
	test.That(t, moved.Pose().Point(), test.ShouldResemble, r3.Vector{X: 1, Z: 1})

	_, err = NewBox(nil, r3.Vector{X: 1, Y: 0, Z: 1})
	test.That(t, err, test.ShouldNotBeNil)
}

func TestOrientedBounds(t *testing.T) {
	extents := r3.Vector{X: 0.3, Y: 0.2, Z: 0.1}
	placement := NewPose(r3.Vector{X: 0.1, Y: -0.05, Z: 0.5}, RotationFromAxisAngle(r3.Vector{X: 1, Y: 2, Z: -1}, 0.6))
	var pts []r3.Vector
	for _, p := range boxSurfacePoints(extents, 10) {
		pts = append(pts, TransformPoint(placement, p))
	}

	toOrigin, got, err := OrientedBounds(pts)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, CheckRigid(toOrigin, DefaultRigidTolerance), test.ShouldBeNil)
	test.That(t, got.X, test.ShouldAlmostEqual, 0.3, 1e-9)
	test.That(t, got.Y, test.ShouldAlmostEqual, 0.2, 1e-9)
	test.That(t, got.Z, test.ShouldAlmostEqual, 0.1, 1e-9)

	// the box frame is centered: the mesh center maps to the origin.
	center := TransformPoint(toOrigin, placement.Point())
	test.That(t, center.Norm(), test.ShouldBeLessThan, 1e-9)
	for _, p := range pts {
		local := TransformPoint(toOrigin, p)
		test.That(t, math.Abs(local.X), test.ShouldBeLessThanOrEqualTo, got.X/2+1e-9)
		test.That(t, math.Abs(local.Y), test.ShouldBeLessThanOrEqualTo, got.Y/2+1e-9)
		test.That(t, math.Abs(local.Z), test.ShouldBeLessThanOrEqualTo, got.Z/2+1e-9)
	}

	// same input, same answer.
	again, gotAgain, err := OrientedBounds(pts)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, gotAgain, test.ShouldResemble, got)
	test.That(t, PoseToMatrix(again), test.ShouldResemble, PoseToMatrix(toOrigin))
}

func TestOrientedBoundsDegenerate(t *testing.T) {
	_, _, err := OrientedBounds([]r3.Vector{{}, {X: 1}})
	test.That(t, err, test.ShouldNotBeNil)

	planar := []r3.Vector{{}, {X: 1}, {Y: 1}, {X: 1, Y: 1}, {X: 0.5, Y: 0.2}}
	_, _, err = OrientedBounds(planar)
	test.That(t, err, test.ShouldNotBeNil)
}
