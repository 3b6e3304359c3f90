package spatialmath

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Ordered list of box vertices.
var boxVertices = [8]r3.Vector{
	{X: 1, Y: 1, Z: 1},
	{X: 1, Y: 1, Z: -1},
	{X: 1, Y: -1, Z: 1},
	{X: 1, Y: -1, Z: -1},
	{X: -1, Y: 1, Z: 1},
	{X: -1, Y: 1, Z: -1},
	{X: -1, Y: -1, Z: 1},
	{X: -1, Y: -1, Z: -1},
}

// The 12 edges of a box, as pairs of vertex indices (vertices differing in exactly one coordinate).
var boxEdgeIndices = [12][2]int{
	{0, 1}, {0, 2}, {0, 4},
	{1, 3}, {1, 5},
	{2, 3}, {2, 6},
	{3, 7},
	{4, 5}, {4, 6},
	{5, 7},
	{6, 7},
}

// Box is an oriented box. Its pose maps the box frame, centered on the box and aligned with its
// edges, into the parent frame.
type Box struct {
	center  Pose
	extents r3.Vector
}

// NewBox returns a box with the given center pose and full edge lengths. All extents must be positive.
func NewBox(center Pose, extents r3.Vector) (*Box, error) {
	if extents.X <= 0 || extents.Y <= 0 || extents.Z <= 0 {
		return nil, errors.Errorf("box extents must be positive, got %v", extents)
	}
	if center == nil {
		center = NewZeroPose()
	}
	return &Box{center: center, extents: extents}, nil
}

// Pose returns the pose of the box center.
func (b *Box) Pose() Pose {
	return b.center
}

// Extents returns the full edge lengths of the box.
func (b *Box) Extents() r3.Vector {
	return b.extents
}

// Transform returns the box moved by toPremultiply.
func (b *Box) Transform(toPremultiply Pose) *Box {
	return &Box{center: Compose(toPremultiply, b.center), extents: b.extents}
}

// Vertices returns the 8 corners of the box in the parent frame.
func (b *Box) Vertices() []r3.Vector {
	half := b.extents.Mul(0.5)
	verts := make([]r3.Vector, 0, len(boxVertices))
	for _, vert := range boxVertices {
		local := r3.Vector{X: vert.X * half.X, Y: vert.Y * half.Y, Z: vert.Z * half.Z}
		verts = append(verts, TransformPoint(b.center, local))
	}
	return verts
}

// Edges returns the 12 edges of the box in the parent frame.
func (b *Box) Edges() [][2]r3.Vector {
	verts := b.Vertices()
	edges := make([][2]r3.Vector, 0, len(boxEdgeIndices))
	for _, e := range boxEdgeIndices {
		edges = append(edges, [2]r3.Vector{verts[e[0]], verts[e[1]]})
	}
	return edges
}

// number of 1 degree steps swept around each axis when tightening the box.
const boundsSweepSteps = 90

// OrientedBounds computes a tight oriented bounding box around points. It returns toOrigin, the
// transform taking the points into the box frame (centered on the box, axes along its edges), and
// the box extents. The box axes start at the principal components of the points and are then
// swept around each axis in turn, keeping the orientation with the smallest volume.
func OrientedBounds(points []r3.Vector) (Pose, r3.Vector, error) {
	if len(points) < 4 {
		return nil, r3.Vector{}, errors.Errorf("need at least 4 points for oriented bounds, got %d", len(points))
	}
	data := mat.NewDense(len(points), 3, nil)
	for i, p := range points {
		data.SetRow(i, []float64{p.X, p.Y, p.Z})
	}
	var cov mat.SymDense
	stat.CovarianceMatrix(&cov, data, nil)

	var eig mat.EigenSym
	if ok := eig.Factorize(&cov, true); !ok {
		return nil, r3.Vector{}, errors.New("eigen decomposition of point covariance failed")
	}
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	// eigenvalues come back ascending; the first box axis is the direction of largest spread.
	axes := [3]r3.Vector{}
	for i := 0; i < 3; i++ {
		col := 2 - i
		axes[i] = canonicalSign(r3.Vector{X: vecs.At(0, col), Y: vecs.At(1, col), Z: vecs.At(2, col)}.Normalize())
	}
	axes[2] = axes[0].Cross(axes[1]).Normalize()

	best := boxVolume(points, axes)
	for pass := 0; pass < 2; pass++ {
		for k := 0; k < 3; k++ {
			base := axes
			for step := 1; step < boundsSweepSteps; step++ {
				rot := RotationFromAxisAngle(base[k], float64(step)*math.Pi/180)
				var candidate [3]r3.Vector
				for i := 0; i < 3; i++ {
					candidate[i] = rot.Mul(base[i])
				}
				if vol := boxVolume(points, candidate); vol < best*(1-1e-9) {
					best = vol
					axes = candidate
				}
			}
		}
	}

	rot := RotationFromColumns(axes[0], axes[1], axes[2])
	lo, hi := projectedBounds(points, axes)
	extents := hi.Sub(lo)
	minExtent := 1e-9 * math.Max(extents.X, math.Max(extents.Y, extents.Z))
	if extents.X <= minExtent || extents.Y <= minExtent || extents.Z <= minExtent {
		return nil, r3.Vector{}, errors.Errorf("points are degenerate, oriented extents %v", extents)
	}
	centerLocal := lo.Add(hi).Mul(0.5)
	boxInParent := NewPose(rot.Mul(centerLocal), rot)
	return PoseInverse(boxInParent), extents, nil
}

// canonicalSign flips v so that its largest magnitude component is positive.
func canonicalSign(v r3.Vector) r3.Vector {
	largest := v.X
	if math.Abs(v.Y) > math.Abs(largest) {
		largest = v.Y
	}
	if math.Abs(v.Z) > math.Abs(largest) {
		largest = v.Z
	}
	if largest < 0 {
		return v.Mul(-1)
	}
	return v
}

func projectedBounds(points []r3.Vector, axes [3]r3.Vector) (r3.Vector, r3.Vector) {
	lo := r3.Vector{X: math.Inf(1), Y: math.Inf(1), Z: math.Inf(1)}
	hi := r3.Vector{X: math.Inf(-1), Y: math.Inf(-1), Z: math.Inf(-1)}
	for _, p := range points {
		x, y, z := p.Dot(axes[0]), p.Dot(axes[1]), p.Dot(axes[2])
		lo = r3.Vector{X: math.Min(lo.X, x), Y: math.Min(lo.Y, y), Z: math.Min(lo.Z, z)}
		hi = r3.Vector{X: math.Max(hi.X, x), Y: math.Max(hi.Y, y), Z: math.Max(hi.Z, z)}
	}
	return lo, hi
}

func boxVolume(points []r3.Vector, axes [3]r3.Vector) float64 {
	lo, hi := projectedBounds(points, axes)
	d := hi.Sub(lo)
	return d.X * d.Y * d.Z
}
