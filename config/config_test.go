package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.viam.com/test"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "run.json")
	test.That(t, os.WriteFile(path, []byte(contents), 0o600), test.ShouldBeNil)
	return path
}

func validConfig(t *testing.T) *Config {
	t.Helper()
	dir := t.TempDir()
	meshFile := filepath.Join(dir, "cube.obj")
	test.That(t, os.WriteFile(meshFile, []byte("v 0 0 0\n"), 0o600), test.ShouldBeNil)
	cfg := Default()
	cfg.MeshFile = meshFile
	cfg.TestSceneDir = dir
	cfg.DebugDir = filepath.Join(dir, "debug")
	return cfg
}

func TestDefaults(t *testing.T) {
	cfg := Default()
	test.That(t, cfg.EstRefineIter, test.ShouldEqual, 5)
	test.That(t, cfg.TrackRefineIter, test.ShouldEqual, 2)
	test.That(t, cfg.Debug, test.ShouldEqual, 1)
	test.That(t, cfg.Seed, test.ShouldEqual, 0)
	test.That(t, cfg.SceneFormat, test.ShouldEqual, "ply")

	opts := cfg.TrackingOptions()
	test.That(t, opts.EstRefineIter, test.ShouldEqual, 5)
	test.That(t, opts.TrackRefineIter, test.ShouldEqual, 2)
	test.That(t, cfg.DatasetOptions().ShorterSide, test.ShouldEqual, 0)
}

func TestRead(t *testing.T) {
	t.Setenv("POSETRACK_SCENE", "/data/scene")
	path := writeConfig(t, `{
		"test_scene_dir": "${POSETRACK_SCENE}",
		"debug": 0,
		"seed": 7,
		"zfar": 1.5,
		"scene_format": "pcd_ascii",
		"estimator": {"hypotheses": 3, "max_points": "500"}
	}`)

	cfg, err := Read(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.TestSceneDir, test.ShouldEqual, "/data/scene")
	test.That(t, cfg.Debug, test.ShouldEqual, 0)
	test.That(t, cfg.Seed, test.ShouldEqual, 7)
	test.That(t, cfg.DatasetOptions().ZFar, test.ShouldEqual, 1.5)
	test.That(t, cfg.SceneFormat, test.ShouldEqual, "pcd_ascii")
	// unset fields keep their defaults
	test.That(t, cfg.MeshFile, test.ShouldEqual, DefaultMeshFile)
	test.That(t, cfg.EstRefineIter, test.ShouldEqual, DefaultEstRefineIter)

	est, err := cfg.EstimatorConfig()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, est.Hypotheses, test.ShouldEqual, 3)
	test.That(t, est.MaxPoints, test.ShouldEqual, 500)
}

func TestReadErrors(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), "missing.json"))
	test.That(t, err, test.ShouldNotBeNil)

	_, err = Read(writeConfig(t, `{"mesh_fil": "typo.obj"}`))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "mesh_fil")

	_, err = Read(writeConfig(t, `{"debug": "loud"}`))
	test.That(t, err, test.ShouldNotBeNil)

	_, err = FromReader(strings.NewReader("{"))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestValidate(t *testing.T) {
	test.That(t, validConfig(t).Validate("run"), test.ShouldBeNil)

	for _, tc := range []struct {
		name   string
		modify func(*Config)
		want   string
	}{
		{"no mesh", func(c *Config) { c.MeshFile = "" }, "mesh_file"},
		{"no scene", func(c *Config) { c.TestSceneDir = "" }, "test_scene_dir"},
		{"no debug dir", func(c *Config) { c.DebugDir = "" }, "debug_dir"},
		{"registration iterations", func(c *Config) { c.EstRefineIter = 0 }, "est_refine_iter"},
		{"tracking iterations", func(c *Config) { c.TrackRefineIter = -1 }, "track_refine_iter"},
		{"debug too high", func(c *Config) { c.Debug = 4 }, "debug"},
		{"debug negative", func(c *Config) { c.Debug = -1 }, "debug"},
		{"shorter side", func(c *Config) { c.ShorterSide = -5 }, "shorter_side"},
		{"zfar", func(c *Config) { c.ZFar = -1 }, "zfar"},
		{"scene format", func(c *Config) { c.SceneFormat = "xyz" }, "scene_format"},
		{"no scene format", func(c *Config) { c.SceneFormat = "" }, "scene_format"},
		{"estimator field", func(c *Config) { c.Estimator = map[string]interface{}{"bogus": 1} }, "run.estimator"},
		{"estimator value", func(c *Config) { c.Estimator = map[string]interface{}{"hypotheses": 0} }, "hypotheses"},
		{"mesh missing", func(c *Config) { c.MeshFile = filepath.Join(c.TestSceneDir, "nope.obj") }, "mesh_file"},
		{"mesh is dir", func(c *Config) { c.MeshFile = c.TestSceneDir }, "directory"},
		{"scene missing", func(c *Config) { c.TestSceneDir = filepath.Join(c.TestSceneDir, "nope") }, "test_scene_dir"},
		{"scene is file", func(c *Config) { c.TestSceneDir = c.MeshFile }, "not a directory"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig(t)
			tc.modify(cfg)
			err := cfg.Validate("run")
			test.That(t, err, test.ShouldNotBeNil)
			test.That(t, err.Error(), test.ShouldContainSubstring, tc.want)
		})
	}
}
