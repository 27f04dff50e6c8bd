// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 majeff, mosquito-pt2d

package bridge

import (
	"time"

	"github.com/majeff/mosquito-pt2d/internal/aggregate"
	"github.com/majeff/mosquito-pt2d/internal/dialect"
	"github.com/majeff/mosquito-pt2d/internal/motion"
)

// Mode is what the scheduler does with bus bytes this iteration. Exactly
// one of Idle, AwaitingReply or Aggregating holds at a time.
type Mode interface {
	mode() string
}

// Idle passes bus bytes straight through to the host
type Idle struct{}

// ReplyKind selects how a single reply is reported
type ReplyKind int

const (
	ReplyAngle ReplyKind = iota
	ReplyVoltTemp
	ReplyConfigure
)

func (k ReplyKind) String() string {
	switch k {
	case ReplyAngle:
		return "angle"
	case ReplyVoltTemp:
		return "volttemp"
	case ReplyConfigure:
		return "configure"
	}
	return "unknown"
}

// AwaitingReply waits for the reply to a single-servo query
type AwaitingReply struct {
	Kind     ReplyKind
	Address  uint8
	Deadline time.Time
	exchange *dialect.Exchange
}

// Aggregating drives a composite query
type Aggregating struct {
	Session *aggregate.Session
}

func (Idle) mode() string          { return "idle" }
func (AwaitingReply) mode() string { return "awaiting_reply" }
func (Aggregating) mode() string   { return "aggregating" }

// ModeName returns a short name for m
func ModeName(m Mode) string {
	if m == nil {
		return "idle"
	}
	return m.mode()
}

// State is everything the scheduler mutates between iterations
type State struct {
	Pan    uint8
	Tilt   uint8
	Motion *motion.Parameters
	Mode   Mode
	Sweep  *Sweep
	Stats  *Statistics
}

// Resolved reports whether both roles have an address
func (s *State) Resolved() bool {
	return s.Pan != 0 && s.Tilt != 0
}

// Busy reports whether a bus query is outstanding
func (s *State) Busy() bool {
	_, idle := s.Mode.(Idle)
	return !idle
}
