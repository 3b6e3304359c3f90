// Package tracking runs the per frame loop that registers an object on the first frame of a
// sequence and tracks it through the rest.
package tracking

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.opencensus.io/trace"
	"go.uber.org/multierr"

	"go.viam.com/posetrack/artifacts"
	"go.viam.com/posetrack/dataset"
	"go.viam.com/posetrack/estimator"
	"go.viam.com/posetrack/logging"
	"go.viam.com/posetrack/mesh"
	"go.viam.com/posetrack/spatialmath"
)

// State is where the controller is in a sequence.
type State int

const (
	// AwaitingRegistration is the state before the first frame has been registered.
	AwaitingRegistration State = iota
	// Tracking is entered once registration succeeds and is only left for Failed.
	Tracking
	// Failed is entered on the first mask, estimator or pose error and is never left.
	Failed
)

func (s State) String() string {
	switch s {
	case AwaitingRegistration:
		return "awaiting_registration"
	case Tracking:
		return "tracking"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

var (
	// ErrFrameOrder is returned for a frame that is not the next one in the sequence.
	ErrFrameOrder = errors.New("frames must arrive in order starting at 0")
	// ErrBusy is returned when Step is called while another Step is running.
	ErrBusy = errors.New("controller is already processing a frame")
	// ErrFailed is returned by every Step after a fatal one. It is combined with the first error.
	ErrFailed = errors.New("controller stopped after a fatal error")
)

// Sink receives the result of every processed frame.
type Sink interface {
	Write(ctx context.Context, rec artifacts.Record)
}

// Options are the immutable run settings of a Controller.
type Options struct {
	EstRefineIter   int
	TrackRefineIter int
}

// Controller sequences estimator calls over a sequence of frames. It owns the estimator, which
// carries the pose from one frame to the next, so neither may be shared.
type Controller struct {
	est    estimator.Estimator
	sink   Sink
	opts   Options
	bounds artifacts.Bounds
	logger logging.Logger
	clock  clock.Clock

	busy      atomic.Bool
	state     State
	failure   error
	nextIndex int
	lastPose  spatialmath.Pose
}

// NewController computes the oriented bounds of the mesh and returns a controller awaiting
// registration.
func NewController(
	m *mesh.Mesh,
	est estimator.Estimator,
	sink Sink,
	opts Options,
	logger logging.Logger,
) (*Controller, error) {
	if est == nil {
		return nil, errors.New("controller needs an estimator")
	}
	if opts.EstRefineIter < 1 || opts.TrackRefineIter < 1 {
		return nil, errors.Errorf("refinement iterations must be positive, got %d and %d", opts.EstRefineIter, opts.TrackRefineIter)
	}
	toOrigin, extents, err := m.OrientedBounds()
	if err != nil {
		return nil, errors.Wrap(err, "cannot bound mesh")
	}
	logger.Debugw("mesh bounds", "extents", extents)
	return &Controller{
		est:    est,
		sink:   sink,
		opts:   opts,
		bounds: artifacts.Bounds{ToOrigin: toOrigin, Extents: extents},
		logger: logger,
		clock:  clock.New(),
		state:  AwaitingRegistration,
	}, nil
}

// State returns the current state.
func (c *Controller) State() State {
	return c.state
}

// LastPose returns the pose of the most recent frame, or nil before registration.
func (c *Controller) LastPose() spatialmath.Pose {
	return c.lastPose
}

// Bounds returns the oriented bounds computed at construction.
func (c *Controller) Bounds() artifacts.Bounds {
	return c.bounds
}

// Step processes the next frame: registration for frame 0, tracking afterwards. The returned
// pose has been checked to be rigid and has been handed to the sink. A mask, estimator or pose
// error is fatal: the controller moves to Failed and the estimator is not called again.
func (c *Controller) Step(ctx context.Context, frame *dataset.Frame) (spatialmath.Pose, error) {
	if !c.busy.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer c.busy.Store(false)

	if c.state == Failed {
		return nil, multierr.Combine(ErrFailed, c.failure)
	}
	if frame == nil {
		return nil, errors.New("frame is nil")
	}
	if frame.Index != c.nextIndex {
		return nil, errors.Wrapf(ErrFrameOrder, "got frame %d, expected %d", frame.Index, c.nextIndex)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.logger.Infow("processing frame", "index", frame.Index, "frame_id", frame.ID)

	start := c.clock.Now()
	var pose spatialmath.Pose
	var err error
	switch c.state {
	case AwaitingRegistration:
		pose, err = c.register(ctx, frame)
	case Tracking:
		pose, err = c.track(ctx, frame)
	}
	if err == nil {
		if rigidErr := spatialmath.CheckRigid(pose, spatialmath.DefaultRigidTolerance); rigidErr != nil {
			err = errors.Wrapf(rigidErr, "estimator returned an invalid pose for frame %s", frame.ID)
		}
	}
	if err != nil {
		c.state = Failed
		c.failure = err
		return nil, err
	}
	elapsed := c.clock.Since(start)

	c.state = Tracking
	c.nextIndex++
	c.lastPose = pose
	c.logger.Debugw("frame done", "frame_id", frame.ID, "elapsed", elapsed, "translation", pose.Point())
	if c.sink != nil {
		c.sink.Write(ctx, artifacts.Record{Frame: frame, Pose: pose, Bounds: c.bounds, Elapsed: elapsed})
	}
	return pose, nil
}

func (c *Controller) register(ctx context.Context, frame *dataset.Frame) (spatialmath.Pose, error) {
	if err := estimator.CheckMask(frame.Mask); err != nil {
		return nil, errors.Wrapf(err, "cannot register frame %s", frame.ID)
	}
	ctx, span := trace.StartSpan(ctx, "posetrack::tracking::Register")
	defer span.End()
	pose, err := c.est.Register(ctx, frame.Intrinsics, frame.Color, frame.Depth, frame.Mask, c.opts.EstRefineIter)
	if err != nil {
		return nil, errors.Wrapf(err, "registration failed on frame %s", frame.ID)
	}
	return pose, nil
}

func (c *Controller) track(ctx context.Context, frame *dataset.Frame) (spatialmath.Pose, error) {
	ctx, span := trace.StartSpan(ctx, "posetrack::tracking::TrackOne")
	defer span.End()
	pose, err := c.est.TrackOne(ctx, frame.Color, frame.Depth, frame.Intrinsics, c.opts.TrackRefineIter)
	if err != nil {
		return nil, errors.Wrapf(err, "tracking failed on frame %s", frame.ID)
	}
	return pose, nil
}

// Run steps through every frame of src in order and stops at the first error. Cancellation of
// ctx is checked between frames.
func (c *Controller) Run(ctx context.Context, src dataset.Source) ([]spatialmath.Pose, error) {
	poses := make([]spatialmath.Pose, 0, src.Len())
	for i := 0; i < src.Len(); i++ {
		if err := ctx.Err(); err != nil {
			return poses, errors.Wrapf(err, "stopped before frame %d", i)
		}
		frame, err := src.Frame(ctx, i)
		if err != nil {
			return poses, errors.Wrapf(err, "cannot read frame %d", i)
		}
		pose, err := c.Step(ctx, frame)
		if err != nil {
			return poses, err
		}
		poses = append(poses, pose)
	}
	return poses, nil
}
