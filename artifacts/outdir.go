// Package artifacts persists what a tracking run produces: a pose file per frame and, depending
// on the debug level, overlay images, the first frame reconstruction, a trajectory plot and a run
// manifest.
package artifacts

import (
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"go.viam.com/posetrack/pointcloud"
)

// Layout of the debug directory.
const (
	PoseDir           = "ob_in_cam"
	OverlayDir        = "track_vis"
	ModelFile         = "model_tf.obj"
	TrajectoryFile    = "trajectory.png"
	ManifestFile      = "run.json"
	poseFileExt       = ".txt"
	overlayFileExt    = ".png"
	outputDirFileMode = 0o750
	sceneFileBase     = "scene_complete"
)

// PrepareOutputDir creates dir if it does not exist and otherwise removes everything in it, then
// creates the pose and overlay subdirectories. Running it twice leaves the same result.
func PrepareOutputDir(fs afero.Fs, dir string) error {
	if dir == "" {
		return errors.New("debug directory must be set")
	}
	exists, err := afero.DirExists(fs, dir)
	if err != nil {
		return err
	}
	if exists {
		entries, err := afero.ReadDir(fs, dir)
		if err != nil {
			return errors.Wrapf(err, "cannot list %s", dir)
		}
		for _, e := range entries {
			if err := fs.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
				return errors.Wrapf(err, "cannot clear %s", dir)
			}
		}
	}
	for _, sub := range []string{OverlayDir, PoseDir} {
		if err := fs.MkdirAll(filepath.Join(dir, sub), outputDirFileMode); err != nil {
			return errors.Wrapf(err, "cannot create %s", sub)
		}
	}
	return nil
}

// SceneFile returns the name of the first frame reconstruction written in format.
func SceneFile(format pointcloud.Format) string {
	return sceneFileBase + format.Ext()
}

// PosePath returns where the pose of frame id is written.
func PosePath(dir, id string) string {
	return filepath.Join(dir, PoseDir, id+poseFileExt)
}

// OverlayPath returns where the overlay image of frame id is written.
func OverlayPath(dir, id string) string {
	return filepath.Join(dir, OverlayDir, id+overlayFileExt)
}
