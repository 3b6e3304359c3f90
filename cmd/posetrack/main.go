// Package main runs pose registration and tracking over a recorded RGB-D scene.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	"go.viam.com/utils"

	"go.viam.com/posetrack/artifacts"
	"go.viam.com/posetrack/config"
	"go.viam.com/posetrack/dataset"
	"go.viam.com/posetrack/estimator/icp"
	"go.viam.com/posetrack/logging"
	"go.viam.com/posetrack/mesh"
	"go.viam.com/posetrack/pointcloud"
	"go.viam.com/posetrack/tracking"
)

const (
	// Flags.
	flagConfig          = "config"
	flagMeshFile        = "mesh_file"
	flagTestSceneDir    = "test_scene_dir"
	flagEstRefineIter   = "est_refine_iter"
	flagTrackRefineIter = "track_refine_iter"
	flagDebug           = "debug"
	flagDebugDir        = "debug_dir"
	flagSeed            = "seed"
	flagSceneFormat     = "scene_format"
	flagLogDebug        = "log-debug"
	flagLogFile         = "log-file"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "posetrack",
		Usage: "register an object on the first frame of a scene and track it through the rest",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagConfig,
				Aliases: []string{"c"},
				Usage:   "load configuration from `FILE`; other flags override its values",
			},
			&cli.StringFlag{
				Name:  flagMeshFile,
				Value: config.DefaultMeshFile,
				Usage: "object mesh (.obj or .ply), in meters",
			},
			&cli.StringFlag{
				Name:  flagTestSceneDir,
				Value: config.DefaultTestSceneDir,
				Usage: "scene directory with rgb, depth, masks and cam_K.txt",
			},
			&cli.IntFlag{
				Name:  flagEstRefineIter,
				Value: config.DefaultEstRefineIter,
				Usage: "refinement iterations for registration",
			},
			&cli.IntFlag{
				Name:  flagTrackRefineIter,
				Value: config.DefaultTrackRefineIter,
				Usage: "refinement iterations for tracking",
			},
			&cli.IntFlag{
				Name:  flagDebug,
				Value: config.DefaultDebug,
				Usage: "debug level (0: poses only, 1: live overlay, 2: overlay images, 3: reconstruction)",
			},
			&cli.StringFlag{
				Name:  flagDebugDir,
				Value: config.DefaultDebugDir,
				Usage: "output directory, cleared at the start of the run",
			},
			&cli.Int64Flag{
				Name:  flagSeed,
				Usage: "random seed for registration hypotheses",
			},
			&cli.StringFlag{
				Name:  flagSceneFormat,
				Value: config.DefaultSceneFormat,
				Usage: "reconstruction format at debug level 3 (ply, pcd or pcd_ascii)",
			},
			&cli.BoolFlag{
				Name:  flagLogDebug,
				Usage: "enable debug logging",
			},
			&cli.StringFlag{
				Name:  flagLogFile,
				Usage: "also write logs to `FILE`, rotated by size",
			},
		},
		Action: func(c *cli.Context) error {
			cfg, err := configFromFlags(c)
			if err != nil {
				return err
			}
			logger := logging.NewLogger("posetrack")
			if c.Bool(flagLogDebug) {
				logger.SetLevel(logging.DEBUG)
			}
			if path := c.String(flagLogFile); path != "" {
				fileAppender := logging.NewFileAppender(path)
				defer utils.UncheckedErrorFunc(fileAppender.Close)
				logger.AddAppender(fileAppender)
			}
			logging.ReplaceGlobal(logger)
			defer utils.UncheckedErrorFunc(logger.Sync)
			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runTracking(ctx, cfg, afero.NewOsFs(), nil, logger)
		},
	}
}

// configFromFlags reads the config file, if any, and applies the flags that were set on top.
func configFromFlags(c *cli.Context) (*config.Config, error) {
	cfg := config.Default()
	if path := c.String(flagConfig); path != "" {
		var err error
		if cfg, err = config.Read(path); err != nil {
			return nil, err
		}
	}
	if c.IsSet(flagMeshFile) {
		cfg.MeshFile = c.String(flagMeshFile)
	}
	if c.IsSet(flagTestSceneDir) {
		cfg.TestSceneDir = c.String(flagTestSceneDir)
	}
	if c.IsSet(flagEstRefineIter) {
		cfg.EstRefineIter = c.Int(flagEstRefineIter)
	}
	if c.IsSet(flagTrackRefineIter) {
		cfg.TrackRefineIter = c.Int(flagTrackRefineIter)
	}
	if c.IsSet(flagDebug) {
		cfg.Debug = c.Int(flagDebug)
	}
	if c.IsSet(flagDebugDir) {
		cfg.DebugDir = c.String(flagDebugDir)
	}
	if c.IsSet(flagSeed) {
		cfg.Seed = c.Int64(flagSeed)
	}
	if c.IsSet(flagSceneFormat) {
		cfg.SceneFormat = c.String(flagSceneFormat)
	}
	return cfg, nil
}

// runTracking validates cfg, loads the mesh and indexes the scene, then prepares the output
// directory in fs and processes every frame. The output directory is left alone when anything
// before it fails. A nil display means nothing is shown.
func runTracking(
	ctx context.Context,
	cfg *config.Config,
	fs afero.Fs,
	display artifacts.Display,
	logger logging.Logger,
) (err error) {
	if err := cfg.Validate("config"); err != nil {
		return err
	}
	policy, err := artifacts.PolicyForLevel(cfg.Debug)
	if err != nil {
		return err
	}
	m, err := mesh.NewFromFile(cfg.MeshFile)
	if err != nil {
		return err
	}
	estConf, err := cfg.EstimatorConfig()
	if err != nil {
		return err
	}
	est, err := icp.New(m, cfg.Seed, estConf, logger.Sublogger("estimator"))
	if err != nil {
		return err
	}
	logger.Info("estimator initialization done")

	src, err := dataset.NewYCBInEOAT(cfg.TestSceneDir, cfg.DatasetOptions(), logger.Sublogger("dataset"))
	if err != nil {
		return err
	}

	if err := artifacts.PrepareOutputDir(fs, cfg.DebugDir); err != nil {
		return errors.Wrap(err, "cannot prepare debug directory")
	}
	writer := artifacts.NewWriter(fs, cfg.DebugDir, policy, m, display, cfg, logger.Sublogger("artifacts"),
		artifacts.WithSceneFormat(pointcloud.Format(cfg.SceneFormat)))
	defer func() {
		err = multierr.Combine(err, writer.Close(context.Background()))
	}()

	ctrl, err := tracking.NewController(m, est, writer, cfg.TrackingOptions(), logger)
	if err != nil {
		return err
	}
	poses, err := ctrl.Run(ctx, src)
	logger.Infow("run finished", "frames", len(poses), "of", src.Len())
	return err
}
