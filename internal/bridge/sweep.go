// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 majeff, mosquito-pt2d

package bridge

import (
	"time"

	"github.com/majeff/mosquito-pt2d/internal/motion"
)

// SweepPoint is one absolute target of the calibration sweep
type SweepPoint struct {
	Pan  int
	Tilt int
}

// Sweep is a running calibration sweep. Points are sent one per dwell
// interval from the scheduler loop.
type Sweep struct {
	Points []SweepPoint
	next   int
	due    time.Time
}

// CalibrationPoints returns center, both pan extremes, both tilt extremes
// and home for the given limits.
func CalibrationPoints(l motion.Limits) []SweepPoint {
	cp := (l.Pan.Min + l.Pan.Max) / 2
	ct := (l.Tilt.Min + l.Tilt.Max) / 2
	return []SweepPoint{
		{Pan: cp, Tilt: ct},
		{Pan: l.Pan.Min, Tilt: ct},
		{Pan: l.Pan.Max, Tilt: ct},
		{Pan: cp, Tilt: l.Tilt.Min},
		{Pan: cp, Tilt: l.Tilt.Max},
		{Pan: l.Pan.Init, Tilt: l.Tilt.Init},
	}
}

func newSweep(points []SweepPoint, now time.Time) *Sweep {
	return &Sweep{Points: points, due: now}
}

// Next returns the index of the next point to send
func (s *Sweep) Next() int {
	return s.next
}

// Done reports whether every point was sent
func (s *Sweep) Done() bool {
	return s.next >= len(s.Points)
}

// take returns the point due at now, if any, and schedules the next one.
func (s *Sweep) take(now time.Time, dwell time.Duration) (SweepPoint, bool) {
	if s.Done() || now.Before(s.due) {
		return SweepPoint{}, false
	}
	p := s.Points[s.next]
	s.next++
	s.due = now.Add(dwell)
	return p, true
}
