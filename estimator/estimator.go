// Package estimator defines the contract between the tracking loop and a 6-DoF pose estimator.
package estimator

import (
	"context"

	"github.com/pkg/errors"

	"go.viam.com/posetrack/rimage"
	"go.viam.com/posetrack/rimage/transform"
	"go.viam.com/posetrack/spatialmath"
)

// MinMaskPixels is the fewest set pixels a registration mask may have.
const MinMaskPixels = 32

var (
	// ErrDegenerateMask is returned when the registration mask does not enclose a plausible
	// silhouette of the object.
	ErrDegenerateMask = errors.New("registration mask is empty or degenerate")
	// ErrNotRegistered is returned by TrackOne before a successful Register.
	ErrNotRegistered = errors.New("estimator has not been registered")
	// ErrInsufficientPoints is returned when too few depth points support a fit.
	ErrInsufficientPoints = errors.New("not enough valid depth points")
	// ErrDegenerateSystem is returned when the observed geometry cannot constrain all six degrees
	// of freedom.
	ErrDegenerateSystem = errors.New("pose is not constrained by the observed geometry")
)

// Estimator finds the pose of a known object in RGB-D frames. Poses map the object's mesh frame
// into the camera frame.
//
// An Estimator keeps the last pose between calls, so a single instance follows a single sequence
// and must not be called concurrently.
type Estimator interface {
	// Register finds the pose of the object inside mask from scratch. It is deterministic for a
	// fixed construction seed. iterations bounds the refinement work.
	Register(
		ctx context.Context,
		params *transform.PinholeCameraIntrinsics,
		color *rimage.Image,
		depth *rimage.DepthMap,
		mask *rimage.Mask,
		iterations int,
	) (spatialmath.Pose, error)

	// TrackOne refines the previous pose against a new frame. It returns ErrNotRegistered if
	// neither Register nor TrackOne has succeeded before.
	TrackOne(
		ctx context.Context,
		color *rimage.Image,
		depth *rimage.DepthMap,
		params *transform.PinholeCameraIntrinsics,
		iterations int,
	) (spatialmath.Pose, error)
}

// CheckMask returns ErrDegenerateMask unless the mask has at least MinMaskPixels set pixels.
func CheckMask(mask *rimage.Mask) error {
	if mask == nil {
		return errors.Wrap(ErrDegenerateMask, "no mask")
	}
	if n := mask.Count(); n < MinMaskPixels {
		return errors.Wrapf(ErrDegenerateMask, "mask has %d pixels, need at least %d", n, MinMaskPixels)
	}
	return nil
}
