// Package config defines the settings of a tracking run and how they are read from disk.
package config

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"go.viam.com/utils"

	"go.viam.com/posetrack/artifacts"
	"go.viam.com/posetrack/dataset"
	"go.viam.com/posetrack/estimator/icp"
	"go.viam.com/posetrack/pointcloud"
	"go.viam.com/posetrack/tracking"
)

// Defaults used for anything a configuration leaves unset.
const (
	DefaultMeshFile        = "demo_data/44_correct/mesh/rubiks_cube_scaled.obj"
	DefaultTestSceneDir    = "demo_data/44_correct"
	DefaultDebugDir        = "debug"
	DefaultEstRefineIter   = 5
	DefaultTrackRefineIter = 2
	DefaultDebug           = 1
	DefaultSceneFormat     = string(pointcloud.FormatPLY)
)

// Config describes one run over a scene. It is built once, before the run, and not changed after.
type Config struct {
	MeshFile        string  `json:"mesh_file"`
	TestSceneDir    string  `json:"test_scene_dir"`
	EstRefineIter   int     `json:"est_refine_iter"`
	TrackRefineIter int     `json:"track_refine_iter"`
	Debug           int     `json:"debug"`
	DebugDir        string  `json:"debug_dir"`
	Seed            int64   `json:"seed"`
	ShorterSide     int     `json:"shorter_side,omitempty"`
	ZFar            float64 `json:"zfar,omitempty"`
	SceneFormat     string  `json:"scene_format,omitempty"`

	// Estimator holds estimator specific attributes, see icp.Config.
	Estimator map[string]interface{} `json:"estimator,omitempty"`
}

// Default returns a config with every field at its default.
func Default() *Config {
	return &Config{
		MeshFile:        DefaultMeshFile,
		TestSceneDir:    DefaultTestSceneDir,
		EstRefineIter:   DefaultEstRefineIter,
		TrackRefineIter: DefaultTrackRefineIter,
		Debug:           DefaultDebug,
		DebugDir:        DefaultDebugDir,
		SceneFormat:     DefaultSceneFormat,
	}
}

// Validate ensures all parts of the config are valid. path prefixes field names in errors.
func (c *Config) Validate(path string) error {
	if c.MeshFile == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "mesh_file")
	}
	if c.TestSceneDir == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "test_scene_dir")
	}
	if c.DebugDir == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "debug_dir")
	}
	if c.EstRefineIter < 1 {
		return utils.NewConfigValidationError(path,
			errors.Errorf("est_refine_iter must be at least 1, got %d", c.EstRefineIter))
	}
	if c.TrackRefineIter < 1 {
		return utils.NewConfigValidationError(path,
			errors.Errorf("track_refine_iter must be at least 1, got %d", c.TrackRefineIter))
	}
	if _, err := artifacts.PolicyForLevel(c.Debug); err != nil {
		return utils.NewConfigValidationError(path, err)
	}
	if c.ShorterSide < 0 {
		return utils.NewConfigValidationError(path, errors.Errorf("shorter_side cannot be negative, got %d", c.ShorterSide))
	}
	if c.ZFar < 0 {
		return utils.NewConfigValidationError(path, errors.Errorf("zfar cannot be negative, got %v", c.ZFar))
	}
	if err := pointcloud.Format(c.SceneFormat).Validate(); err != nil {
		return utils.NewConfigValidationError(path, errors.Wrap(err, "scene_format"))
	}
	if _, err := c.EstimatorConfig(); err != nil {
		return utils.NewConfigValidationError(fmt.Sprintf("%s.estimator", path), err)
	}

	info, err := os.Stat(c.MeshFile)
	if err != nil {
		return utils.NewConfigValidationError(path, errors.Wrap(err, "mesh_file"))
	}
	if info.IsDir() {
		return utils.NewConfigValidationError(path, errors.Errorf("mesh_file %s is a directory", c.MeshFile))
	}
	info, err = os.Stat(c.TestSceneDir)
	if err != nil {
		return utils.NewConfigValidationError(path, errors.Wrap(err, "test_scene_dir"))
	}
	if !info.IsDir() {
		return utils.NewConfigValidationError(path, errors.Errorf("test_scene_dir %s is not a directory", c.TestSceneDir))
	}
	return nil
}

// EstimatorConfig decodes the estimator attributes on top of the estimator defaults.
func (c *Config) EstimatorConfig() (icp.Config, error) {
	return icp.NewConfigFromAttributes(c.Estimator)
}

// DatasetOptions returns how frames should be read.
func (c *Config) DatasetOptions() dataset.Options {
	return dataset.Options{ShorterSide: c.ShorterSide, ZFar: c.ZFar}
}

// TrackingOptions returns the per frame settings of the controller.
func (c *Config) TrackingOptions() tracking.Options {
	return tracking.Options{EstRefineIter: c.EstRefineIter, TrackRefineIter: c.TrackRefineIter}
}
