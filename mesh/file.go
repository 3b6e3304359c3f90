package mesh

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"go.viam.com/utils"
)

// NewFromFile loads a mesh, choosing the parser by file extension (.obj or .ply).
func NewFromFile(path string) (*Mesh, error) {
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer utils.UncheckedErrorFunc(f.Close)

	var m *Mesh
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".obj":
		m, err = ReadOBJ(f)
	case ".ply":
		m, err = ReadPLY(f)
	default:
		return nil, errors.Errorf("unsupported mesh file type %q", ext)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "could not load mesh %s", path)
	}
	return m, nil
}
