package artifacts

import (
	"encoding/json"
	"io"
	"time"
)

type frameEntry struct {
	Index     int     `json:"index"`
	ID        string  `json:"id"`
	ElapsedMs float64 `json:"elapsed_ms"`
}

// manifest is written to run.json when the run ends.
type manifest struct {
	RunID        string       `json:"run_id"`
	StartedAt    time.Time    `json:"started_at"`
	FinishedAt   time.Time    `json:"finished_at"`
	Level        int          `json:"debug_level"`
	Config       interface{}  `json:"config,omitempty"`
	CameraMatrix []float64    `json:"camera_matrix,omitempty"`
	Frames       []frameEntry `json:"frames"`
}

func (m *manifest) encode(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(m)
}
