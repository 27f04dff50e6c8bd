// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 majeff, mosquito-pt2d

// Package motion holds the pan/tilt axis limits, the angle to servo
// position mapping and the speed dependent move duration.
package motion

import (
	"github.com/majeff/mosquito-pt2d/internal/mathx"
	"github.com/majeff/mosquito-pt2d/pkg/lobot"
)

// Speed range accepted by SetSpeed
const (
	MinSpeed = 1
	MaxSpeed = 100
)

// Axis describes one rotational axis. Range is the servo's full mechanical
// travel in degrees, mapped linearly onto positions 0-1000. Min and Max are
// the allowed command window inside that travel.
type Axis struct {
	Min   int
	Max   int
	Init  int
	Range int
}

// Clamp limits an angle to the axis window.
func (a Axis) Clamp(angle int) int {
	return mathx.Clamp(angle, a.Min, a.Max)
}

// Position converts an angle to a servo position (0-1000).
func (a Axis) Position(angle int) int {
	angle = mathx.Clamp(angle, 0, a.Range)
	return mathx.Map(angle, 0, a.Range, lobot.PositionMin, lobot.PositionMax)
}

// Angle converts a servo position back to degrees.
func (a Axis) Angle(position int) int {
	position = mathx.Clamp(position, lobot.PositionMin, lobot.PositionMax)
	return mathx.Map(position, lobot.PositionMin, lobot.PositionMax, 0, a.Range)
}

// Limits groups both axes
type Limits struct {
	Pan  Axis
	Tilt Axis
}

// Profile bounds the move duration: speed 1 maps to SlowestMs and speed 100
// to FastestMs.
type Profile struct {
	SlowestMs int
	FastestMs int
}

// DurationFor returns the move duration in milliseconds for a speed.
// Out-of-range speeds are clamped. The result is non-increasing in speed.
func (p Profile) DurationFor(speed int) int {
	speed = mathx.Clamp(speed, MinSpeed, MaxSpeed)
	return mathx.Map(speed, MinSpeed, MaxSpeed, p.SlowestMs, p.FastestMs)
}

// Parameters is the mutable motion state owned by the bridge: the current
// speed, the duration derived from it, and the last commanded angles.
type Parameters struct {
	profile  Profile
	limits   Limits
	speed    int
	duration int

	panAngle  int
	tiltAngle int
}

// NewParameters creates motion state at the given speed with both axes at
// their initial angle.
func NewParameters(profile Profile, limits Limits, speed int) *Parameters {
	p := &Parameters{
		profile:   profile,
		limits:    limits,
		panAngle:  limits.Pan.Init,
		tiltAngle: limits.Tilt.Init,
	}
	p.SetSpeed(speed)
	return p
}

// SetSpeed clamps and stores the speed and recomputes the move duration.
// It returns the speed actually applied.
func (p *Parameters) SetSpeed(speed int) int {
	p.speed = mathx.Clamp(speed, MinSpeed, MaxSpeed)
	p.duration = p.profile.DurationFor(p.speed)
	return p.speed
}

// Speed returns the current speed (1-100)
func (p *Parameters) Speed() int {
	return p.speed
}

// DurationMs returns the move duration for the current speed
func (p *Parameters) DurationMs() int {
	return p.duration
}

// Limits returns the axis configuration
func (p *Parameters) Limits() Limits {
	return p.limits
}

// Target is a resolved move: clamped angles and their servo positions.
type Target struct {
	PanAngle     int
	TiltAngle    int
	PanPosition  int
	TiltPosition int
}

// MoveTo clamps an absolute target to the axis windows and records it as
// the last commanded position.
func (p *Parameters) MoveTo(pan, tilt int) Target {
	p.panAngle = p.limits.Pan.Clamp(pan)
	p.tiltAngle = p.limits.Tilt.Clamp(tilt)
	return p.target()
}

// MoveBy offsets the last commanded position.
func (p *Parameters) MoveBy(dPan, dTilt int) Target {
	return p.MoveTo(p.panAngle+dPan, p.tiltAngle+dTilt)
}

// Home targets the initial angles
func (p *Parameters) Home() Target {
	return p.MoveTo(p.limits.Pan.Init, p.limits.Tilt.Init)
}

// Current returns the last commanded angles
func (p *Parameters) Current() (pan, tilt int) {
	return p.panAngle, p.tiltAngle
}

func (p *Parameters) target() Target {
	return Target{
		PanAngle:     p.panAngle,
		TiltAngle:    p.tiltAngle,
		PanPosition:  p.limits.Pan.Position(p.panAngle),
		TiltPosition: p.limits.Tilt.Position(p.tiltAngle),
	}
}
