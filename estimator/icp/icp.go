// Package icp is a geometric pose estimator. It registers the mesh against the masked depth
// points with point-to-plane ICP from several seeded starting rotations, then tracks by refining
// the previous pose against each new frame.
package icp

import (
	"context"
	"math"
	"math/rand"

	"github.com/golang/geo/r3"
	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"gonum.org/v1/gonum/num/quat"

	"go.viam.com/posetrack/estimator"
	"go.viam.com/posetrack/logging"
	"go.viam.com/posetrack/mesh"
	"go.viam.com/posetrack/rimage"
	"go.viam.com/posetrack/rimage/transform"
	"go.viam.com/posetrack/spatialmath"
)

const (
	// a later hypothesis must beat the incumbent's score by this factor to replace it, so ties
	// between symmetric solutions resolve to the earliest hypothesis.
	replaceMargin = 0.8
	// percentile of observed depth taken as the nearest visible surface.
	nearSurfacePercentile = 5
)

// Estimator implements estimator.Estimator.
type Estimator struct {
	model  *model
	conf   Config
	seed   int64
	logger logging.Logger

	lastPose     spatialmath.Pose
	lastCentroid r3.Vector
}

var _ estimator.Estimator = &Estimator{}

// New returns an estimator for the given mesh. The seed drives the registration hypotheses.
func New(m *mesh.Mesh, seed int64, conf Config, logger logging.Logger) (*Estimator, error) {
	if m == nil {
		return nil, errors.New("estimator needs a mesh")
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	mod := newModel(m)
	if mod.diameter <= 0 {
		return nil, errors.New("mesh has zero extent")
	}
	logger.Debugw("icp estimator ready", "model_points", len(mod.points), "diameter_m", mod.diameter, "seed", seed)
	return &Estimator{model: mod, conf: conf, seed: seed, logger: logger}, nil
}

// Register finds the pose of the object inside mask. iterations is the number of refinement
// stages run for every hypothesis.
func (est *Estimator) Register(
	ctx context.Context,
	params *transform.PinholeCameraIntrinsics,
	color *rimage.Image,
	depth *rimage.DepthMap,
	mask *rimage.Mask,
	iterations int,
) (spatialmath.Pose, error) {
	if err := estimator.CheckMask(mask); err != nil {
		return nil, err
	}
	if iterations < 1 {
		return nil, errors.Errorf("iterations must be at least 1, got %d", iterations)
	}
	if err := params.CheckValid(); err != nil {
		return nil, err
	}
	observed, err := params.DepthToPoints(depth, mask)
	if err != nil {
		return nil, err
	}
	if len(observed) < estimator.MinMaskPixels {
		return nil, errors.Wrapf(estimator.ErrDegenerateMask, "only %d masked pixels have valid depth", len(observed))
	}
	observed = subsample(observed, est.conf.MaxPoints)

	nearZ, err := stats.Percentile(zs(observed), nearSurfacePercentile)
	if err != nil {
		return nil, errors.Wrap(err, "cannot locate the observed surface")
	}
	obsCentroid := centroid(observed)

	rng := rand.New(rand.NewSource(est.seed)) //nolint:gosec
	var best spatialmath.Pose
	bestScore := math.Inf(1)
	var errs error
	for h := 0; h < est.conf.Hypotheses; h++ {
		rot := spatialmath.NewIdentityRotation()
		if h > 0 {
			rot = randomRotation(rng)
		}
		initial := est.initialPose(rot, obsCentroid, nearZ)
		refined, err := est.refine(ctx, initial, observed, iterations, est.model.diameter)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			errs = multierr.Append(errs, errors.Wrapf(err, "hypothesis %d", h))
			continue
		}
		s := est.score(refined, observed)
		est.logger.Debugw("registration hypothesis", "hypothesis", h, "score", s)
		if best == nil || s < bestScore*replaceMargin {
			best, bestScore = refined, s
		}
	}
	if best == nil {
		return nil, errors.Wrap(errs, "every registration hypothesis failed")
	}
	est.logger.Infow("registered", "score", bestScore, "points", len(observed))
	est.lastPose = best
	est.lastCentroid = obsCentroid
	return best, nil
}

// TrackOne refines the previous pose against the depth points near the object. Before refining,
// the pose is shifted by how far the centroid of those points moved since the previous frame.
func (est *Estimator) TrackOne(
	ctx context.Context,
	color *rimage.Image,
	depth *rimage.DepthMap,
	params *transform.PinholeCameraIntrinsics,
	iterations int,
) (spatialmath.Pose, error) {
	if est.lastPose == nil {
		return nil, estimator.ErrNotRegistered
	}
	if iterations < 1 {
		return nil, errors.Errorf("iterations must be at least 1, got %d", iterations)
	}
	if err := params.CheckValid(); err != nil {
		return nil, err
	}
	all, err := params.DepthToPoints(depth, nil)
	if err != nil {
		return nil, err
	}
	center := spatialmath.TransformPoint(est.lastPose, est.model.centroid)
	radius := est.model.diameter
	observed := make([]r3.Vector, 0, len(all))
	for _, p := range all {
		if p.Sub(center).Norm() <= radius {
			observed = append(observed, p)
		}
	}
	if len(observed) < minCorrespondences {
		return nil, errors.Wrapf(estimator.ErrInsufficientPoints, "%d depth points near the object", len(observed))
	}
	observed = subsample(observed, est.conf.MaxPoints)

	obsCentroid := centroid(observed)
	shift := spatialmath.NewPoseFromPoint(obsCentroid.Sub(est.lastCentroid))
	initial := spatialmath.Compose(shift, est.lastPose)

	pose, err := est.refine(ctx, initial, observed, iterations, est.model.diameter/2)
	if err != nil {
		return nil, err
	}
	est.lastPose = pose
	est.lastCentroid = obsCentroid
	return pose, nil
}

// initialPose rotates the model by rot and places it so its centroid lines up with the observed
// centroid in x and y, and its near side sits at the observed near surface.
func (est *Estimator) initialPose(rot *spatialmath.RotationMatrix, obsCentroid r3.Vector, nearZ float64) spatialmath.Pose {
	rotated := rot.Mul(est.model.centroid)
	minZ := math.Inf(1)
	for _, p := range est.model.points {
		minZ = math.Min(minZ, rot.Mul(p).Z)
	}
	depthBehind := rotated.Z - minZ
	target := r3.Vector{X: obsCentroid.X, Y: obsCentroid.Y, Z: nearZ + depthBehind}
	return spatialmath.NewPose(target.Sub(rotated), rot)
}

// randomRotation draws a rotation uniformly from SO(3) by normalizing a 4D gaussian sample.
func randomRotation(rng *rand.Rand) *spatialmath.RotationMatrix {
	for {
		q := quat.Number{Real: rng.NormFloat64(), Imag: rng.NormFloat64(), Jmag: rng.NormFloat64(), Kmag: rng.NormFloat64()}
		if quat.Abs(q) > 1e-6 {
			return spatialmath.QuatToRotationMatrix(q)
		}
	}
}

// subsample keeps at most limit points taken at an even stride, preserving order.
func subsample(pts []r3.Vector, limit int) []r3.Vector {
	if len(pts) <= limit {
		return pts
	}
	out := make([]r3.Vector, 0, limit)
	stride := float64(len(pts)) / float64(limit)
	for i := 0; i < limit; i++ {
		out = append(out, pts[int(float64(i)*stride)])
	}
	return out
}

func zs(pts []r3.Vector) stats.Float64Data {
	out := make(stats.Float64Data, len(pts))
	for i, p := range pts {
		out[i] = p.Z
	}
	return out
}

func centroid(pts []r3.Vector) r3.Vector {
	var sum r3.Vector
	for _, p := range pts {
		sum = sum.Add(p)
	}
	return sum.Mul(1 / float64(len(pts)))
}
