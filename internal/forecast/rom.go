// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package forecast

import (
	"math"
	"slices"

	"github.com/relabs-tech/hand_rehab/internal/samplelog"
)

// ROMPoint is one session's range of motion.
type ROMPoint struct {
	SessionID int     `json:"session_id"`
	ROM       float64 `json:"rom"`
}

// Clip bounds v to [lo, hi].
func Clip(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}

// SessionIDs returns the distinct session ids in rows, ascending.
func SessionIDs(rows []samplelog.Sample) []int {
	seen := make(map[int]struct{})
	var ids []int
	for _, r := range rows {
		if _, ok := seen[r.SessionID]; ok {
			continue
		}
		seen[r.SessionID] = struct{}{}
		ids = append(ids, r.SessionID)
	}
	slices.Sort(ids)
	return ids
}

// SelectSessions picks the first n ids, or the last n when latest is set.
// With fewer than n ids available every id is used and fallback is true.
func SelectSessions(ids []int, n int, latest bool) (selected []int, fallback bool) {
	if len(ids) < n {
		return ids, true
	}
	if latest {
		return ids[len(ids)-n:], false
	}
	return ids[:n], false
}

// ROMPerSession computes max - min of the clipped angles for each selected
// session, ordered by session id.
func ROMPerSession(rows []samplelog.Sample, sessions []int, clipMin, clipMax float64) []ROMPoint {
	type extent struct{ lo, hi float64 }
	wanted := make(map[int]*extent, len(sessions))
	for _, id := range sessions {
		wanted[id] = nil
	}

	for _, r := range rows {
		e, ok := wanted[r.SessionID]
		if !ok {
			continue
		}
		v := Clip(r.AngleValue, clipMin, clipMax)
		if e == nil {
			wanted[r.SessionID] = &extent{lo: v, hi: v}
			continue
		}
		e.lo = math.Min(e.lo, v)
		e.hi = math.Max(e.hi, v)
	}

	points := make([]ROMPoint, 0, len(sessions))
	for _, id := range sessions {
		if e := wanted[id]; e != nil {
			points = append(points, ROMPoint{SessionID: id, ROM: e.hi - e.lo})
		}
	}
	slices.SortFunc(points, func(a, b ROMPoint) int { return a.SessionID - b.SessionID })
	return points
}
