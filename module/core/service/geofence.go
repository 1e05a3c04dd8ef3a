package service

import (
	"github.com/vivekgangdhar11/wakeme/module/core/domain"
	"github.com/vivekgangdhar11/wakeme/module/core/geo"
)

type Evaluation struct {
	State          domain.ContainmentState
	Transitioned   bool
	DistanceMeters float64
}

// Evaluator classifies samples against a geofence. A sample on the boundary
// counts as inside.
type Evaluator struct {
	exitFactor float64
}

// NewEvaluator returns an evaluator that, once inside, keeps reporting inside
// until the distance exceeds radius*exitFactor. Factors below 1 disable the
// margin, which makes every crossing flip the state on a single sample.
func NewEvaluator(exitFactor float64) *Evaluator {
	if exitFactor < 1 {
		exitFactor = 1
	}
	return &Evaluator{exitFactor: exitFactor}
}

func (e *Evaluator) Evaluate(sample domain.GeoSample, fence domain.Geofence, previous domain.ContainmentState) Evaluation {
	d := geo.Distance(sample.Location, fence.Center)

	limit := fence.RadiusMeters
	if previous == domain.Inside {
		limit *= e.exitFactor
	}

	state := domain.Outside
	if d <= limit {
		state = domain.Inside
	}
	return Evaluation{
		State:          state,
		Transitioned:   state != previous,
		DistanceMeters: d,
	}
}
