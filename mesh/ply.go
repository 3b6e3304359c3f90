package mesh

import (
	"fmt"
	"io"

	"github.com/chenzhekl/goply"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// ReadPLY parses a PLY mesh. Vertex normals are read from nx/ny/nz when present; polygons are fan
// triangulated.
func ReadPLY(r io.Reader) (m *Mesh, err error) {
	// the parser panics on malformed input rather than returning errors.
	defer func() {
		if rec := recover(); rec != nil {
			m = nil
			err = errors.Errorf("malformed ply: %v", rec)
		}
	}()
	plyReader := goply.New(r)
	vertexElems := plyReader.Elements("vertex")
	faceElems := plyReader.Elements("face")

	vertices := make([]r3.Vector, 0, len(vertexElems))
	normals := make([]r3.Vector, 0, len(vertexElems))
	hasNormals := true
	for i, v := range vertexElems {
		x, errX := plyFloat(v["x"])
		y, errY := plyFloat(v["y"])
		z, errZ := plyFloat(v["z"])
		if errX != nil || errY != nil || errZ != nil {
			return nil, errors.Errorf("vertex %d is missing a coordinate", i)
		}
		vertices = append(vertices, r3.Vector{X: x, Y: y, Z: z})

		nx, errX := plyFloat(v["nx"])
		ny, errY := plyFloat(v["ny"])
		nz, errZ := plyFloat(v["nz"])
		if errX != nil || errY != nil || errZ != nil {
			hasNormals = false
			continue
		}
		normals = append(normals, r3.Vector{X: nx, Y: ny, Z: nz})
	}
	if !hasNormals {
		normals = nil
	}

	faces := make([][3]int, 0, len(faceElems))
	for i, f := range faceElems {
		raw, ok := f["vertex_indices"]
		if !ok {
			raw = f["vertex_index"]
		}
		idx, err := plyIndices(raw)
		if err != nil {
			return nil, errors.Wrapf(err, "face %d", i)
		}
		if len(idx) < 3 {
			return nil, errors.Errorf("face %d has %d vertices", i, len(idx))
		}
		for k := 1; k+1 < len(idx); k++ {
			faces = append(faces, [3]int{idx[0], idx[k], idx[k+1]})
		}
	}
	return New(vertices, normals, faces)
}

func plyFloat(v interface{}) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int8:
		return float64(n), nil
	case uint8:
		return float64(n), nil
	case int16:
		return float64(n), nil
	case uint16:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case uint32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case nil:
		return 0, errors.New("missing property")
	default:
		return 0, errors.Errorf("unsupported property type %T", v)
	}
}

func plyIndices(v interface{}) ([]int, error) {
	switch idx := v.(type) {
	case []int:
		return idx, nil
	case []int32:
		return convertIndices(idx), nil
	case []uint32:
		return convertIndices(idx), nil
	case []int16:
		return convertIndices(idx), nil
	case []uint16:
		return convertIndices(idx), nil
	case []int8:
		return convertIndices(idx), nil
	case []uint8:
		return convertIndices(idx), nil
	case []interface{}:
		out := make([]int, 0, len(idx))
		for _, e := range idx {
			f, err := plyFloat(e)
			if err != nil {
				return nil, err
			}
			out = append(out, int(f))
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported vertex index list type %T", v)
	}
}

type integer interface {
	~int8 | ~uint8 | ~int16 | ~uint16 | ~int32 | ~uint32
}

func convertIndices[T integer](in []T) []int {
	out := make([]int, len(in))
	for i, v := range in {
		out[i] = int(v)
	}
	return out
}
