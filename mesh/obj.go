package mesh

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// ReadOBJ parses a Wavefront OBJ mesh. Polygons are fan triangulated. Normals are taken from the
// file only when every face vertex uses the normal with its own vertex index, which is how
// exporters write per-vertex normals; otherwise they are recomputed from the faces.
func ReadOBJ(r io.Reader) (*Mesh, error) {
	var vertices, fileNormals []r3.Vector
	var faces [][3]int
	normalsMatch := true

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		switch fields[0] {
		case "v":
			v, err := parseVector(fields[1:])
			if err != nil {
				return nil, errors.Wrapf(err, "line %d", lineNum)
			}
			vertices = append(vertices, v)
		case "vn":
			n, err := parseVector(fields[1:])
			if err != nil {
				return nil, errors.Wrapf(err, "line %d", lineNum)
			}
			fileNormals = append(fileNormals, n)
		case "f":
			if len(fields) < 4 {
				return nil, errors.Errorf("line %d: face needs at least 3 vertices", lineNum)
			}
			idx := make([]int, 0, len(fields)-1)
			for _, ref := range fields[1:] {
				vi, ni, err := parseFaceRef(ref, len(vertices), len(fileNormals))
				if err != nil {
					return nil, errors.Wrapf(err, "line %d", lineNum)
				}
				if ni != vi {
					normalsMatch = false
				}
				idx = append(idx, vi)
			}
			for k := 1; k+1 < len(idx); k++ {
				faces = append(faces, [3]int{idx[0], idx[k], idx[k+1]})
			}
		default:
			// materials, groups, texture coordinates and the like do not affect geometry.
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	var normals []r3.Vector
	if normalsMatch && len(fileNormals) == len(vertices) {
		normals = fileNormals
	}
	return New(vertices, normals, faces)
}

// WriteOBJ writes the mesh as OBJ with one normal per vertex.
func WriteOBJ(w io.Writer, m *Mesh) error {
	bw := bufio.NewWriter(w)
	for _, v := range m.vertices {
		if _, err := fmt.Fprintf(bw, "v %.8f %.8f %.8f\n", v.X, v.Y, v.Z); err != nil {
			return err
		}
	}
	for _, n := range m.normals {
		if _, err := fmt.Fprintf(bw, "vn %.8f %.8f %.8f\n", n.X, n.Y, n.Z); err != nil {
			return err
		}
	}
	for _, f := range m.faces {
		a, b, c := f[0]+1, f[1]+1, f[2]+1
		if _, err := fmt.Fprintf(bw, "f %d//%d %d//%d %d//%d\n", a, a, b, b, c, c); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func parseVector(fields []string) (r3.Vector, error) {
	if len(fields) < 3 {
		return r3.Vector{}, errors.Errorf("need 3 coordinates, got %d", len(fields))
	}
	var xyz [3]float64
	for i := 0; i < 3; i++ {
		f, err := strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return r3.Vector{}, errors.Wrapf(err, "bad coordinate %q", fields[i])
		}
		xyz[i] = f
	}
	return r3.Vector{X: xyz[0], Y: xyz[1], Z: xyz[2]}, nil
}

// parseFaceRef parses v, v/vt, v//vn or v/vt/vn into zero based vertex and normal indices. The
// normal index is -1 when absent.
func parseFaceRef(ref string, numVertices, numNormals int) (int, int, error) {
	parts := strings.Split(ref, "/")
	vi, err := resolveIndex(parts[0], numVertices)
	if err != nil {
		return 0, 0, err
	}
	ni := -1
	if len(parts) == 3 && parts[2] != "" {
		ni, err = resolveIndex(parts[2], numNormals)
		if err != nil {
			return 0, 0, err
		}
	}
	return vi, ni, nil
}

// resolveIndex converts a one based, possibly negative (relative) OBJ index.
func resolveIndex(s string, count int) (int, error) {
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0, errors.Wrapf(err, "bad index %q", s)
	}
	switch {
	case i > 0 && i <= count:
		return i - 1, nil
	case i < 0 && -i <= count:
		return count + i, nil
	default:
		return 0, errors.Errorf("index %d out of range for %d elements", i, count)
	}
}
