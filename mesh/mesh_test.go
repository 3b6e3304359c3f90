package mesh

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"go.viam.com/posetrack/spatialmath"
)

const quadOBJ = `# unit square in z=0
v 0 0 0
v 1 0 0
v 1 1 0
v 0 1 0
vt 0 0
f 1/1 2/1 3/1 4/1
`

func TestNewValidates(t *testing.T) {
	_, err := New(nil, nil, nil)
	test.That(t, err, test.ShouldNotBeNil)

	verts := []r3.Vector{{}, {X: 1}, {Y: 1}}
	_, err = New(verts, nil, [][3]int{{0, 1, 3}})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "references vertex 3")

	_, err = New(verts, []r3.Vector{{Z: 1}}, [][3]int{{0, 1, 2}})
	test.That(t, err, test.ShouldNotBeNil)

	m, err := New(verts, nil, [][3]int{{0, 1, 2}})
	test.That(t, err, test.ShouldBeNil)
	for _, n := range m.Normals() {
		test.That(t, n.Z, test.ShouldAlmostEqual, 1)
	}
}

func TestReadOBJ(t *testing.T) {
	m, err := ReadOBJ(strings.NewReader(quadOBJ))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, m.NumVertices(), test.ShouldEqual, 4)
	test.That(t, m.Faces(), test.ShouldResemble, [][3]int{{0, 1, 2}, {0, 2, 3}})
	for _, n := range m.Normals() {
		test.That(t, n.Sub(r3.Vector{Z: 1}).Norm(), test.ShouldBeLessThan, 1e-12)
	}
	test.That(t, m.Centroid().Sub(r3.Vector{X: 0.5, Y: 0.5}).Norm(), test.ShouldBeLessThan, 1e-12)
	test.That(t, m.Diameter(), test.ShouldAlmostEqual, math.Sqrt2)

	t.Run("negative indices", func(t *testing.T) {
		m, err := ReadOBJ(strings.NewReader("v 0 0 0\nv 1 0 0\nv 0 1 0\nf -3 -2 -1\n"))
		test.That(t, err, test.ShouldBeNil)
		test.That(t, m.Faces(), test.ShouldResemble, [][3]int{{0, 1, 2}})
	})

	t.Run("bad input", func(t *testing.T) {
		_, err := ReadOBJ(strings.NewReader("v 0 0\n"))
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldContainSubstring, "line 1")

		_, err = ReadOBJ(strings.NewReader("v 0 0 0\nf 1 2 3\n"))
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldContainSubstring, "out of range")
	})
}

func TestOBJRoundTrip(t *testing.T) {
	box, err := NewBox(r3.Vector{X: 0.1, Y: 0.2, Z: 0.3}, 2)
	test.That(t, err, test.ShouldBeNil)

	var buf bytes.Buffer
	test.That(t, WriteOBJ(&buf, box), test.ShouldBeNil)
	back, err := ReadOBJ(&buf)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, back.NumVertices(), test.ShouldEqual, box.NumVertices())
	test.That(t, back.Faces(), test.ShouldResemble, box.Faces())

	want, got := box.Vertices(), back.Vertices()
	for i := range want {
		test.That(t, got[i].Sub(want[i]).Norm(), test.ShouldBeLessThan, 1e-7)
	}
	wantN, gotN := box.Normals(), back.Normals()
	for i := range wantN {
		test.That(t, gotN[i].Sub(wantN[i]).Norm(), test.ShouldBeLessThan, 1e-7)
	}
}

func TestNewFromFile(t *testing.T) {
	dir := t.TempDir()
	objPath := filepath.Join(dir, "quad.obj")
	test.That(t, os.WriteFile(objPath, []byte(quadOBJ), 0o600), test.ShouldBeNil)
	m, err := NewFromFile(objPath)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, m.NumVertices(), test.ShouldEqual, 4)

	_, err = NewFromFile(filepath.Join(dir, "quad.stl"))
	test.That(t, err, test.ShouldNotBeNil)

	badPath := filepath.Join(dir, "bad.obj")
	test.That(t, os.WriteFile(badPath, []byte("f 1 2 3\n"), 0o600), test.ShouldBeNil)
	_, err = NewFromFile(badPath)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "bad.obj")
}

func TestNewBox(t *testing.T) {
	_, err := NewBox(r3.Vector{X: 1, Y: 1}, 1)
	test.That(t, err, test.ShouldNotBeNil)
	_, err = NewBox(r3.Vector{X: 1, Y: 1, Z: 1}, 0)
	test.That(t, err, test.ShouldNotBeNil)

	extents := r3.Vector{X: 0.1, Y: 0.2, Z: 0.3}
	box, err := NewBox(extents, 3)
	test.That(t, err, test.ShouldBeNil)
	// six faces of 4x4 vertex grids, 2 triangles per cell
	test.That(t, box.NumVertices(), test.ShouldEqual, 6*16)
	test.That(t, len(box.Faces()), test.ShouldEqual, 6*9*2)
	test.That(t, box.Centroid().Norm(), test.ShouldBeLessThan, 1e-12)

	verts := box.Vertices()
	normals := box.Normals()
	for i, v := range verts {
		test.That(t, math.Abs(v.X), test.ShouldBeLessThanOrEqualTo, extents.X/2+1e-12)
		test.That(t, math.Abs(v.Y), test.ShouldBeLessThanOrEqualTo, extents.Y/2+1e-12)
		test.That(t, math.Abs(v.Z), test.ShouldBeLessThanOrEqualTo, extents.Z/2+1e-12)
		// normals point out of the box
		test.That(t, v.Dot(normals[i]), test.ShouldBeGreaterThan, 0)
	}
	// winding agrees with the stored normals
	for _, f := range box.Faces() {
		n := verts[f[1]].Sub(verts[f[0]]).Cross(verts[f[2]].Sub(verts[f[0]]))
		test.That(t, n.Dot(normals[f[0]]), test.ShouldBeGreaterThan, 0)
	}

	toOrigin, got, err := box.OrientedBounds()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, toOrigin.Point().Norm(), test.ShouldBeLessThan, 1e-9)
	sorted := []float64{got.X, got.Y, got.Z}
	sort.Float64s(sorted)
	test.That(t, sorted[0], test.ShouldAlmostEqual, 0.1, 1e-9)
	test.That(t, sorted[1], test.ShouldAlmostEqual, 0.2, 1e-9)
	test.That(t, sorted[2], test.ShouldAlmostEqual, 0.3, 1e-9)
}

func TestTransform(t *testing.T) {
	box, err := NewBox(r3.Vector{X: 0.1, Y: 0.1, Z: 0.1}, 1)
	test.That(t, err, test.ShouldBeNil)
	rot := spatialmath.RotationFromAxisAngle(r3.Vector{Z: 1}, math.Pi/2)
	pose := spatialmath.NewPose(r3.Vector{X: 1, Y: 2, Z: 3}, rot)

	moved := box.Transform(pose)
	test.That(t, moved.Centroid().Sub(r3.Vector{X: 1, Y: 2, Z: 3}).Norm(), test.ShouldBeLessThan, 1e-12)
	test.That(t, moved.Diameter(), test.ShouldAlmostEqual, box.Diameter())

	orig, got := box.Normals(), moved.Normals()
	for i := range orig {
		test.That(t, got[i].Sub(rot.Mul(orig[i])).Norm(), test.ShouldBeLessThan, 1e-12)
	}
	// source mesh is untouched
	test.That(t, box.Centroid().Norm(), test.ShouldBeLessThan, 1e-12)
}
