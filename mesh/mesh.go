// Package mesh holds the triangle mesh of the tracked object along with loaders and writers for
// the file formats it is shipped in.
package mesh

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/posetrack/spatialmath"
)

// Mesh is an immutable triangle mesh. Vertices and normals are parallel slices; faces index into
// them.
type Mesh struct {
	vertices []r3.Vector
	normals  []r3.Vector
	faces    [][3]int
}

// New validates and builds a mesh. When normals is nil, area weighted vertex normals are computed
// from the faces. The inputs are copied.
func New(vertices, normals []r3.Vector, faces [][3]int) (*Mesh, error) {
	if len(vertices) == 0 {
		return nil, errors.New("mesh has no vertices")
	}
	for i, f := range faces {
		for _, idx := range f {
			if idx < 0 || idx >= len(vertices) {
				return nil, errors.Errorf("face %d references vertex %d, mesh has %d vertices", i, idx, len(vertices))
			}
		}
	}
	m := &Mesh{
		vertices: append([]r3.Vector(nil), vertices...),
		faces:    append([][3]int(nil), faces...),
	}
	switch {
	case normals == nil:
		m.normals = vertexNormals(m.vertices, m.faces)
	case len(normals) != len(vertices):
		return nil, errors.Errorf("mesh has %d vertices but %d normals", len(vertices), len(normals))
	default:
		m.normals = make([]r3.Vector, len(normals))
		for i, n := range normals {
			m.normals[i] = normalizeOrZero(n)
		}
	}
	return m, nil
}

// NumVertices returns the number of vertices.
func (m *Mesh) NumVertices() int {
	return len(m.vertices)
}

// Vertices returns a copy of the vertex positions.
func (m *Mesh) Vertices() []r3.Vector {
	return append([]r3.Vector(nil), m.vertices...)
}

// Normals returns a copy of the vertex normals.
func (m *Mesh) Normals() []r3.Vector {
	return append([]r3.Vector(nil), m.normals...)
}

// Faces returns a copy of the triangle indices.
func (m *Mesh) Faces() [][3]int {
	return append([][3]int(nil), m.faces...)
}

// Centroid returns the mean vertex position.
func (m *Mesh) Centroid() r3.Vector {
	var sum r3.Vector
	for _, v := range m.vertices {
		sum = sum.Add(v)
	}
	return sum.Mul(1 / float64(len(m.vertices)))
}

// Diameter returns twice the largest distance from the centroid to a vertex.
func (m *Mesh) Diameter() float64 {
	c := m.Centroid()
	var r float64
	for _, v := range m.vertices {
		r = math.Max(r, v.Sub(c).Norm())
	}
	return 2 * r
}

// Transform returns a new mesh with every vertex moved by pose and every normal rotated by it.
func (m *Mesh) Transform(pose spatialmath.Pose) *Mesh {
	out := &Mesh{
		vertices: make([]r3.Vector, len(m.vertices)),
		normals:  make([]r3.Vector, len(m.normals)),
		faces:    append([][3]int(nil), m.faces...),
	}
	rot := pose.Rotation()
	for i, v := range m.vertices {
		out.vertices[i] = spatialmath.TransformPoint(pose, v)
	}
	for i, n := range m.normals {
		out.normals[i] = rot.Mul(n)
	}
	return out
}

// OrientedBounds returns the oriented bounding box of the vertices, see spatialmath.OrientedBounds.
func (m *Mesh) OrientedBounds() (spatialmath.Pose, r3.Vector, error) {
	return spatialmath.OrientedBounds(m.vertices)
}

// vertexNormals accumulates unnormalized face normals, whose length is twice the face area, into
// each face's vertices.
func vertexNormals(vertices []r3.Vector, faces [][3]int) []r3.Vector {
	acc := make([]r3.Vector, len(vertices))
	for _, f := range faces {
		a, b, c := vertices[f[0]], vertices[f[1]], vertices[f[2]]
		n := b.Sub(a).Cross(c.Sub(a))
		for _, idx := range f {
			acc[idx] = acc[idx].Add(n)
		}
	}
	for i := range acc {
		acc[i] = normalizeOrZero(acc[i])
	}
	return acc
}

func normalizeOrZero(v r3.Vector) r3.Vector {
	if v.Norm() == 0 {
		return r3.Vector{}
	}
	return v.Normalize()
}
