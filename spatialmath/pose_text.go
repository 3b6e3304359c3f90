package spatialmath

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// WritePoseText writes the pose as a 4x4 row major matrix, one row per line with space separated
// values in %.18e, the layout numpy's savetxt produces by default.
func WritePoseText(w io.Writer, p Pose) error {
	m := PoseToMat4(p)
	for r := 0; r < 4; r++ {
		if _, err := fmt.Fprintf(w, "%.18e %.18e %.18e %.18e\n", m.At(r, 0), m.At(r, 1), m.At(r, 2), m.At(r, 3)); err != nil {
			return err
		}
	}
	return nil
}

// ReadPoseText parses a pose written by WritePoseText. Blank lines and lines starting with # are
// ignored.
func ReadPoseText(r io.Reader) (Pose, error) {
	values := make([]float64, 0, 16)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 4 {
			return nil, errors.Errorf("pose row %q has %d values, need 4", line, len(fields))
		}
		for _, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, errors.Wrapf(err, "bad pose value %q", f)
			}
			values = append(values, v)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	// rows are stored with full precision so only rounding noise is tolerated.
	return NewPoseFromMatrix(values, 1e-6)
}
