// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 majeff, mosquito-pt2d

// Package clock abstracts wall time so deadlines and polling waits can be
// driven by tests.
package clock

import (
	"sync"
	"time"
)

// Clock reports the current time and pauses the caller
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

// System is the real clock
type System struct{}

func (System) Now() time.Time { return time.Now() }

func (System) Sleep(d time.Duration) { time.Sleep(d) }

// Manual is a clock that only moves when told to. Sleep advances it
// instead of blocking.
type Manual struct {
	mu  sync.Mutex
	now time.Time
}

// NewManual creates a Manual clock starting at start
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *Manual) Sleep(d time.Duration) {
	m.Advance(d)
}

// Advance moves the clock forward by d
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	m.now = m.now.Add(d)
	m.mu.Unlock()
}
