package icp

import (
	"context"
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/posetrack/estimator"
	"go.viam.com/posetrack/spatialmath"
)

const (
	// fewest correspondences that can constrain six degrees of freedom with margin.
	minCorrespondences = 12
	// condition number above which the normal equations are treated as singular.
	maxCondition = 1e10
	// per stage decay of the correspondence distance.
	thresholdDecay = 0.5
)

// refine runs stages of point-to-plane ICP from the initial pose and returns the refined pose.
// observed points are in the camera frame. Stage s accepts correspondences closer than
// max(startThreshold * decay^s, MinCorrespondence).
func (est *Estimator) refine(
	ctx context.Context,
	initial spatialmath.Pose,
	observed []r3.Vector,
	stages int,
	startThreshold float64,
) (spatialmath.Pose, error) {
	pose := initial
	threshold := startThreshold
	for stage := 0; stage < stages; stage++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for step := 0; step < est.conf.InnerSteps; step++ {
			next, moved, err := est.step(pose, observed, threshold)
			if err != nil {
				return nil, errors.Wrapf(err, "stage %d step %d", stage, step)
			}
			pose = next
			if moved < est.conf.Convergence {
				break
			}
		}
		threshold = math.Max(threshold*thresholdDecay, est.conf.MinCorrespondence)
	}
	return pose, nil
}

// step performs one linearized point-to-plane update. Observed points are brought into the mesh
// frame, matched to their nearest model vertex and a small motion D of the points is solved for;
// the new pose is pose * D^-1. It also returns how far the update moved the points.
func (est *Estimator) step(pose spatialmath.Pose, observed []r3.Vector, threshold float64) (spatialmath.Pose, float64, error) {
	toModel := spatialmath.PoseInverse(pose)
	var ata [36]float64
	var atb [6]float64
	count := 0
	thresh2 := threshold * threshold
	for _, q := range observed {
		qm := spatialmath.TransformPoint(toModel, q)
		idx, d2 := est.model.nearest(qm)
		if d2 > thresh2 {
			continue
		}
		n := est.model.normals[idx]
		c := qm.Cross(n)
		row := [6]float64{c.X, c.Y, c.Z, n.X, n.Y, n.Z}
		b := -qm.Sub(est.model.points[idx]).Dot(n)
		for i := 0; i < 6; i++ {
			for j := 0; j < 6; j++ {
				ata[6*i+j] += row[i] * row[j]
			}
			atb[i] += row[i] * b
		}
		count++
	}
	if count < minCorrespondences {
		return nil, 0, errors.Wrapf(estimator.ErrInsufficientPoints, "%d correspondences within %.4fm", count, threshold)
	}

	a := mat.NewSymDense(6, ata[:])
	var chol mat.Cholesky
	if ok := chol.Factorize(a); !ok || chol.Cond() > maxCondition {
		return nil, 0, estimator.ErrDegenerateSystem
	}
	var x mat.VecDense
	if err := chol.SolveVecTo(&x, mat.NewVecDense(6, atb[:])); err != nil {
		return nil, 0, degenerate(err)
	}
	omega := r3.Vector{X: x.AtVec(0), Y: x.AtVec(1), Z: x.AtVec(2)}
	trans := r3.Vector{X: x.AtVec(3), Y: x.AtVec(4), Z: x.AtVec(5)}
	delta := spatialmath.NewPose(trans, spatialmath.RotationFromRotationVector(omega))

	next := spatialmath.Compose(pose, spatialmath.PoseInverse(delta))
	next, err := reorthonormalize(next)
	if err != nil {
		return nil, 0, err
	}
	moved := trans.Norm() + omega.Norm()*est.model.diameter/2
	return next, moved, nil
}

// score is the mean squared point-to-plane residual of the observed points against the model at
// pose, with each residual clamped to the truncation distance so outliers cannot dominate.
func (est *Estimator) score(pose spatialmath.Pose, observed []r3.Vector) float64 {
	toModel := spatialmath.PoseInverse(pose)
	trunc := est.conf.ScoreTruncation
	var sum float64
	for _, q := range observed {
		qm := spatialmath.TransformPoint(toModel, q)
		idx, d2 := est.model.nearest(qm)
		r := math.Abs(qm.Sub(est.model.points[idx]).Dot(est.model.normals[idx]))
		if d2 > trunc*trunc || r > trunc {
			r = trunc
		}
		sum += r * r
	}
	return sum / float64(len(observed))
}

// reorthonormalize removes the numerical drift accumulated by repeated composition.
func reorthonormalize(p spatialmath.Pose) (spatialmath.Pose, error) {
	rot := p.Rotation()
	m := make([]float64, 9)
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			m[3*r+c] = rot.At(r, c)
		}
	}
	clean, err := spatialmath.Orthonormalize(m)
	if err != nil {
		return nil, degenerate(err)
	}
	return spatialmath.NewPose(p.Point(), clean), nil
}

// degenerate marks err as a degenerate system while keeping it matchable.
func degenerate(err error) error {
	return multierr.Combine(estimator.ErrDegenerateSystem, err)
}
