package icp

import (
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/spatial/kdtree"

	"go.viam.com/posetrack/mesh"
)

// modelPoint is a mesh vertex stored in the kd tree. idx is -1 for query points.
type modelPoint struct {
	pos r3.Vector
	idx int
}

func (p modelPoint) coord(d kdtree.Dim) float64 {
	switch d {
	case 0:
		return p.pos.X
	case 1:
		return p.pos.Y
	default:
		return p.pos.Z
	}
}

func (p modelPoint) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	return p.coord(d) - c.(modelPoint).coord(d)
}

func (p modelPoint) Dims() int {
	return 3
}

func (p modelPoint) Distance(c kdtree.Comparable) float64 {
	return p.pos.Sub(c.(modelPoint).pos).Norm2()
}

type modelPoints []modelPoint

func (p modelPoints) Index(i int) kdtree.Comparable {
	return p[i]
}

func (p modelPoints) Len() int {
	return len(p)
}

func (p modelPoints) Pivot(d kdtree.Dim) int {
	return modelPlane{modelPoints: p, dim: d}.pivot()
}

func (p modelPoints) Slice(start, end int) kdtree.Interface {
	return p[start:end]
}

// modelPlane sorts points along one dimension so the tree can partition them.
type modelPlane struct {
	modelPoints
	dim kdtree.Dim
}

func (p modelPlane) Less(i, j int) bool {
	return p.modelPoints[i].coord(p.dim) < p.modelPoints[j].coord(p.dim)
}

func (p modelPlane) Swap(i, j int) {
	p.modelPoints[i], p.modelPoints[j] = p.modelPoints[j], p.modelPoints[i]
}

func (p modelPlane) Slice(start, end int) kdtree.SortSlicer {
	return modelPlane{modelPoints: p.modelPoints[start:end], dim: p.dim}
}

func (p modelPlane) pivot() int {
	return kdtree.Partition(p, kdtree.MedianOfMedians(p))
}

// model is the mesh geometry the estimator aligns against, in the mesh frame. Vertices that share
// a position, such as the seams of a mesh with per face normals, are merged and their normals
// averaged.
type model struct {
	points   []r3.Vector
	normals  []r3.Vector
	tree     *kdtree.Tree
	centroid r3.Vector
	diameter float64
}

func newModel(m *mesh.Mesh) *model {
	verts := m.Vertices()
	norms := m.Normals()
	index := make(map[r3.Vector]int, len(verts))
	mod := &model{centroid: m.Centroid(), diameter: m.Diameter()}
	for i, v := range verts {
		if j, ok := index[v]; ok {
			mod.normals[j] = mod.normals[j].Add(norms[i])
			continue
		}
		index[v] = len(mod.points)
		mod.points = append(mod.points, v)
		mod.normals = append(mod.normals, norms[i])
	}
	pts := make(modelPoints, len(mod.points))
	for i, p := range mod.points {
		if n := mod.normals[i].Norm(); n > 0 {
			mod.normals[i] = mod.normals[i].Mul(1 / n)
		}
		pts[i] = modelPoint{pos: p, idx: i}
	}
	mod.tree = kdtree.New(pts, false)
	return mod
}

// nearest returns the index of the closest model vertex to q and the squared distance to it.
func (mod *model) nearest(q r3.Vector) (int, float64) {
	c, d2 := mod.tree.Nearest(modelPoint{pos: q, idx: -1})
	return c.(modelPoint).idx, d2
}
