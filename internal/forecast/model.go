// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package forecast

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// TrendModel is a second-degree polynomial in session id, fitted by ordinary
// least squares. Coefficients are expressed around Origin (the first fitted
// session) to keep the design matrix well conditioned; predictions are the
// same as for the plain [1, id, id²] basis.
type TrendModel struct {
	Origin    float64 `json:"origin"`
	Intercept float64 `json:"intercept"`
	Linear    float64 `json:"linear"`
	Quadratic float64 `json:"quadratic"`
}

// FitTrend fits ROM against session id.
func FitTrend(points []ROMPoint) (TrendModel, error) {
	if len(points) < minFitPoints {
		return TrendModel{}, &InsufficientDataError{Have: len(points), Need: minFitPoints}
	}

	origin := float64(points[0].SessionID)
	x := mat.NewDense(len(points), 3, nil)
	y := mat.NewVecDense(len(points), nil)
	for i, p := range points {
		t := float64(p.SessionID) - origin
		x.SetRow(i, []float64{1, t, t * t})
		y.SetVec(i, p.ROM)
	}

	var beta mat.VecDense
	if err := beta.SolveVec(x, y); err != nil {
		var cond mat.Condition
		if errors.As(err, &cond) {
			return TrendModel{}, fmt.Errorf("fit trend: design matrix ill-conditioned (%v)", err)
		}
		return TrendModel{}, fmt.Errorf("fit trend: %w", err)
	}

	return TrendModel{
		Origin:    origin,
		Intercept: beta.AtVec(0),
		Linear:    beta.AtVec(1),
		Quadratic: beta.AtVec(2),
	}, nil
}

// Predict returns the raw (uncapped) ROM at session id.
func (m TrendModel) Predict(id int) float64 {
	t := float64(id) - m.Origin
	return m.Intercept + m.Linear*t + m.Quadratic*t*t
}

// PredictCapped returns the prediction limited to maxROM.
func (m TrendModel) PredictCapped(id int, maxROM float64) float64 {
	return min(m.Predict(id), maxROM)
}
