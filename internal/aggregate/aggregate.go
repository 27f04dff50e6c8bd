// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 majeff, mosquito-pt2d

// Package aggregate runs composite queries: several bus round trips that
// answer one host request. At most one session runs at a time.
//
// States: Idle -> Phase0 -> Phase1 -> [Phase2 -> Phase3] -> Idle.
// A phase advances only when its reply carries the values it expects.
// The deadline covers the whole session, not each phase.
package aggregate

import (
	"errors"
	"fmt"
	"time"

	"github.com/majeff/mosquito-pt2d/internal/command"
	"github.com/majeff/mosquito-pt2d/internal/dialect"
	"github.com/majeff/mosquito-pt2d/internal/transport"
)

// DefaultTimeout is the session budget
const DefaultTimeout = 2 * time.Second

var (
	// ErrBusy rejects a session while another is running
	ErrBusy = errors.New("aggregation session already active")

	// ErrTimeout ends a session that outlived its deadline
	ErrTimeout = errors.New("aggregate command timeout")

	// ErrPhaseMismatch ends a session whose reply lacked values
	ErrPhaseMismatch = errors.New("phase mismatch")
)

// Kind selects the composite query
type Kind int

const (
	// PositionBoth reads pan angle then tilt angle
	PositionBoth Kind = iota + 1

	// FullStatus reads pan angle, pan volt/temp, tilt angle, tilt volt/temp
	FullStatus
)

func (k Kind) String() string {
	switch k {
	case PositionBoth:
		return "position"
	case FullStatus:
		return "status"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Targets names the servos a session reads and how their positions map
// to angles.
type Targets struct {
	Pan  uint8
	Tilt uint8

	PanAngle  func(position int) int
	TiltAngle func(position int) int
}

// Result holds the values collected by a session
type Result struct {
	PanAngle    int
	TiltAngle   int
	PanVoltage  int
	PanTemp     int
	TiltVoltage int
	TiltTemp    int
}

// Outcome is the terminal state of a session. Exactly one of Result or
// Err is meaningful. Raw carries the reply bytes of a failed phase.
type Outcome struct {
	Kind   Kind
	View   command.View
	Result Result
	Err    error
	Raw    []byte
	Phase  int
}

type phase struct {
	steps func(d dialect.Dialect, t Targets) []dialect.Step
	store func(r *Result, values []int)
}

var (
	panAngle = phase{
		steps: func(d dialect.Dialect, t Targets) []dialect.Step { return d.ReadAngle(t.Pan, t.PanAngle) },
		store: func(r *Result, v []int) { r.PanAngle = v[0] },
	}
	tiltAngle = phase{
		steps: func(d dialect.Dialect, t Targets) []dialect.Step { return d.ReadAngle(t.Tilt, t.TiltAngle) },
		store: func(r *Result, v []int) { r.TiltAngle = v[0] },
	}
	panVoltTemp = phase{
		steps: func(d dialect.Dialect, t Targets) []dialect.Step { return d.ReadVoltTemp(t.Pan) },
		store: func(r *Result, v []int) { r.PanVoltage, r.PanTemp = v[0], v[1] },
	}
	tiltVoltTemp = phase{
		steps: func(d dialect.Dialect, t Targets) []dialect.Step { return d.ReadVoltTemp(t.Tilt) },
		store: func(r *Result, v []int) { r.TiltVoltage, r.TiltTemp = v[0], v[1] },
	}
)

func phasesFor(k Kind) []phase {
	switch k {
	case PositionBoth:
		return []phase{panAngle, tiltAngle}
	case FullStatus:
		return []phase{panAngle, panVoltTemp, tiltAngle, tiltVoltTemp}
	}
	return nil
}

// Session is the in-flight state of one composite query
type Session struct {
	kind     Kind
	view     command.View
	targets  Targets
	phases   []phase
	phase    int
	partial  Result
	deadline time.Time
	exchange *dialect.Exchange
}

// Kind returns the session's query kind
func (s *Session) Kind() Kind { return s.kind }

// Phase returns the index of the phase waiting for a reply
func (s *Session) Phase() int { return s.phase }

// Deadline returns when the session times out
func (s *Session) Deadline() time.Time { return s.deadline }

// Engine owns the single session slot
type Engine struct {
	port    transport.Port
	dialect dialect.Dialect
	timeout time.Duration
	session *Session
}

// NewEngine creates an idle engine. A non-positive timeout uses
// DefaultTimeout.
func NewEngine(port transport.Port, d dialect.Dialect, timeout time.Duration) *Engine {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Engine{port: port, dialect: d, timeout: timeout}
}

// Active reports whether a session is running
func (e *Engine) Active() bool {
	return e.session != nil
}

// Session returns the running session or nil
func (e *Engine) Session() *Session {
	return e.session
}

// Timeout returns the session budget
func (e *Engine) Timeout() time.Duration {
	return e.timeout
}

// Start opens a session and sends its Phase0 request. It fails with
// ErrBusy while another session runs.
func (e *Engine) Start(kind Kind, view command.View, targets Targets, now time.Time) error {
	if e.session != nil {
		return ErrBusy
	}
	phases := phasesFor(kind)
	if len(phases) == 0 {
		return fmt.Errorf("unknown session kind %v", kind)
	}

	s := &Session{
		kind:     kind,
		view:     view,
		targets:  targets,
		phases:   phases,
		deadline: now.Add(e.timeout),
	}
	ex, err := dialect.Begin(e.port, e.dialect, phases[0].steps(e.dialect, targets))
	if err != nil {
		return err
	}
	s.exchange = ex
	e.session = s
	return nil
}

// Step consumes available reply bytes and then enforces the deadline. It
// returns the outcome once the session ends; the engine is idle again
// afterwards.
func (e *Engine) Step(now time.Time) (Outcome, bool) {
	s := e.session
	if s == nil {
		return Outcome{}, false
	}

	status, err := s.exchange.Pump()
	switch {
	case errors.Is(err, dialect.ErrShortReply):
		return e.fail(fmt.Errorf("%w: phase %d: %v", ErrPhaseMismatch, s.phase, err)), true
	case err != nil:
		return e.fail(fmt.Errorf("phase %d: %w", s.phase, err)), true
	case status == dialect.Done:
		s.phases[s.phase].store(&s.partial, s.exchange.Values())
		s.phase++
		if s.phase == len(s.phases) {
			return e.finish(Outcome{Result: s.partial}), true
		}
		next := s.phases[s.phase].steps(e.dialect, s.targets)
		ex, err := dialect.Begin(e.port, e.dialect, next)
		if err != nil {
			return e.fail(err), true
		}
		s.exchange = ex
	}

	if now.After(s.deadline) {
		return e.finish(Outcome{Err: ErrTimeout}), true
	}
	return Outcome{}, false
}

// Resend repeats the current request after another frame went out on the
// bus and discarded a partial reply.
func (e *Engine) Resend() error {
	if e.session == nil {
		return nil
	}
	return e.session.exchange.Resend()
}

// Abort drops the session without an outcome
func (e *Engine) Abort() {
	e.session = nil
}

func (e *Engine) fail(err error) Outcome {
	return e.finish(Outcome{Err: err, Raw: append([]byte(nil), e.session.exchange.Raw()...)})
}

func (e *Engine) finish(o Outcome) Outcome {
	o.Kind = e.session.kind
	o.View = e.session.view
	o.Phase = e.session.phase
	e.session = nil
	return o
}
