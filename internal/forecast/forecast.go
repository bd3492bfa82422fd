// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package forecast estimates how many more sessions a patient needs before
// range of motion levels off near the physiological maximum.
package forecast

import (
	"time"

	"github.com/relabs-tech/hand_rehab/internal/samplelog"
)

// TrendPoint is a capped prediction for one session.
type TrendPoint struct {
	SessionID int     `json:"session_id"`
	ROM       float64 `json:"rom"`
}

// Result is everything the presentation layer needs to report and plot a
// forecast without refitting.
type Result struct {
	SessionsAnalyzed    int          `json:"sessions_analyzed"`
	SessionsAvailable   int          `json:"sessions_available"`
	UsedAllSessions     bool         `json:"used_all_sessions"` // fewer sessions than requested
	CurrentSession      int          `json:"current_session"`
	CurrentROM          float64      `json:"current_rom"`
	PredictedSession    int          `json:"predicted_session"`
	RemainingSessions   int          `json:"remaining_sessions"`
	TargetReached       bool         `json:"target_reached"` // false when the horizon ran out
	TargetROM           float64      `json:"target_rom"`
	MaxROM              float64      `json:"max_rom"`
	LastObserved        time.Time    `json:"last_observed"`
	EstimatedCompletion time.Time    `json:"estimated_completion"`
	ROM                 []ROMPoint   `json:"rom"`
	Trend               []TrendPoint `json:"trend"`
	Model               TrendModel   `json:"model"`
}

// Run fits a trend to per-session ROM and searches forward for the first
// session whose capped prediction reaches TargetFraction of MaxROM.
// It returns a *ConfigError for unusable options and an error matching
// ErrInsufficientData when too few sessions are available.
func Run(rows []samplelog.Sample, opts Options) (*Result, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	ids := SessionIDs(rows)
	selected, fallback := SelectSessions(ids, opts.SessionsToUse, opts.UseLatest)
	points := ROMPerSession(rows, selected, opts.ClipMin, opts.ClipMax)

	need := opts.requiredSessions()
	if len(points) < need {
		return nil, &InsufficientDataError{Have: len(points), Need: need}
	}

	model, err := FitTrend(points)
	if err != nil {
		return nil, err
	}

	current := points[len(points)-1]
	target := opts.TargetFraction * opts.MaxROM
	predicted, reached := searchCompletion(model, current.SessionID, opts.MaxHorizon, opts.MaxROM, target)
	remaining := max(0, predicted-current.SessionID)

	last := lastTimestamp(rows, selected)

	first := points[0].SessionID
	trend := make([]TrendPoint, 0, predicted-first+1)
	for id := first; id <= predicted; id++ {
		trend = append(trend, TrendPoint{SessionID: id, ROM: model.PredictCapped(id, opts.MaxROM)})
	}

	return &Result{
		SessionsAnalyzed:    len(points),
		SessionsAvailable:   len(ids),
		UsedAllSessions:     fallback,
		CurrentSession:      current.SessionID,
		CurrentROM:          current.ROM,
		PredictedSession:    predicted,
		RemainingSessions:   remaining,
		TargetReached:       reached,
		TargetROM:           target,
		MaxROM:              opts.MaxROM,
		LastObserved:        last,
		EstimatedCompletion: last.AddDate(0, 0, remaining),
		ROM:                 points,
		Trend:               trend,
		Model:               model,
	}, nil
}

// searchCompletion evaluates horizon consecutive sessions starting at start.
// Without a crossing the answer is start+horizon.
func searchCompletion(m TrendModel, start, horizon int, maxROM, target float64) (int, bool) {
	for id := start; id < start+horizon; id++ {
		if m.PredictCapped(id, maxROM) >= target {
			return id, true
		}
	}
	return start + horizon, false
}

func lastTimestamp(rows []samplelog.Sample, sessions []int) time.Time {
	in := make(map[int]bool, len(sessions))
	for _, id := range sessions {
		in[id] = true
	}
	var last time.Time
	for _, r := range rows {
		if in[r.SessionID] && r.Timestamp.After(last) {
			last = r.Timestamp
		}
	}
	return last
}
