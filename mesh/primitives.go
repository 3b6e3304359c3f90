package mesh

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// NewBox returns an axis aligned box centered at the origin. Each face is a (divisions+1) squared
// grid of vertices carrying the face normal, so edges and corners are duplicated per face.
func NewBox(extents r3.Vector, divisions int) (*Mesh, error) {
	if divisions < 1 {
		return nil, errors.Errorf("box needs at least 1 division per face, got %d", divisions)
	}
	if extents.X <= 0 || extents.Y <= 0 || extents.Z <= 0 {
		return nil, errors.Errorf("box extents must be positive, got %v", extents)
	}
	half := extents.Mul(0.5)
	type face struct {
		normal, u, v r3.Vector
	}
	faceDefs := []face{
		{r3.Vector{X: 1}, r3.Vector{Y: 1}, r3.Vector{Z: 1}},
		{r3.Vector{X: -1}, r3.Vector{Z: 1}, r3.Vector{Y: 1}},
		{r3.Vector{Y: 1}, r3.Vector{Z: 1}, r3.Vector{X: 1}},
		{r3.Vector{Y: -1}, r3.Vector{X: 1}, r3.Vector{Z: 1}},
		{r3.Vector{Z: 1}, r3.Vector{X: 1}, r3.Vector{Y: 1}},
		{r3.Vector{Z: -1}, r3.Vector{Y: 1}, r3.Vector{X: 1}},
	}
	scale := func(v r3.Vector) r3.Vector {
		return r3.Vector{X: v.X * half.X, Y: v.Y * half.Y, Z: v.Z * half.Z}
	}

	var vertices, normals []r3.Vector
	var faces [][3]int
	n := divisions + 1
	for _, fd := range faceDefs {
		base := len(vertices)
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				s := -1 + 2*float64(i)/float64(divisions)
				t := -1 + 2*float64(j)/float64(divisions)
				p := fd.normal.Add(fd.u.Mul(s)).Add(fd.v.Mul(t))
				vertices = append(vertices, scale(p))
				normals = append(normals, fd.normal)
			}
		}
		// u x v equals the face normal for every face above, so this winding faces outward.
		for i := 0; i < divisions; i++ {
			for j := 0; j < divisions; j++ {
				a := base + i*n + j
				b := base + (i+1)*n + j
				c := base + (i+1)*n + j + 1
				d := base + i*n + j + 1
				faces = append(faces, [3]int{a, b, c}, [3]int{a, c, d})
			}
		}
	}
	return New(vertices, normals, faces)
}
