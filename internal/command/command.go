// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 majeff, mosquito-pt2d

// Package command parses host lines of the form <KEYWORD> or
// <KEYWORD:p1,p2,...> into typed commands.
package command

// Address bounds accepted for servo IDs
const (
	AddressMin = 1
	AddressMax = 254
)

// Speed bounds accepted by SPEED
const (
	SpeedMin = 1
	SpeedMax = 100
)

// Command is one parsed host request. The concrete type selects the
// handler.
type Command interface {
	Keyword() string
}

// View selects which subset of a full status read is reported
type View int

const (
	ViewFull View = iota
	ViewTemperature
	ViewVoltage
)

func (v View) String() string {
	switch v {
	case ViewTemperature:
		return "temperature"
	case ViewVoltage:
		return "voltage"
	}
	return "full"
}

// MoveAbsolute moves both axes to the given angles
type MoveAbsolute struct {
	Pan  int
	Tilt int
}

// MoveRelative offsets both axes from the last commanded angles
type MoveRelative struct {
	DeltaPan  int
	DeltaTilt int
}

// Home moves both axes to their initial angles
type Home struct{}

// Stop halts both servos. It never cancels a query in flight.
type Stop struct{}

// SetSpeed changes the move speed (1-100)
type SetSpeed struct {
	Value int
}

// GetPosition reads both axis angles
type GetPosition struct{}

// GetStatus reads angle, voltage and temperature of both axes
type GetStatus struct {
	View View
}

// ReadAngle reads the angle of one servo by address
type ReadAngle struct {
	Address uint8
}

// ReadVoltTemp reads voltage and temperature of one servo by address
type ReadVoltTemp struct {
	Address uint8
}

// ConfigureServo writes a new hardware ID to the servo on the bus
type ConfigureServo struct {
	Address uint8
}

// SetID rebinds the pan and tilt roles to other addresses
type SetID struct {
	Pan  uint8
	Tilt uint8
}

// Raw sends bytes to the bus unchanged. Verbatim is set for lines that
// start with '#', which are forwarded as typed.
type Raw struct {
	Payload  string
	Verbatim bool
}

// Calibrate runs the scripted sweep through both axis extremes
type Calibrate struct{}

// GetInfo reports bound addresses, limits and version
type GetInfo struct{}

// Detect re-runs address discovery
type Detect struct{}

// Stats reports bridge counters
type Stats struct{}

func (MoveAbsolute) Keyword() string   { return "MOVE" }
func (MoveRelative) Keyword() string   { return "MOVER" }
func (Home) Keyword() string           { return "HOME" }
func (Stop) Keyword() string           { return "STOP" }
func (SetSpeed) Keyword() string       { return "SPEED" }
func (GetPosition) Keyword() string    { return "POS" }
func (GetStatus) Keyword() string      { return "STATUS" }
func (ReadAngle) Keyword() string      { return "READANGLE" }
func (ReadVoltTemp) Keyword() string   { return "READVOLTEMP" }
func (ConfigureServo) Keyword() string { return "CONFIGSERVO" }
func (SetID) Keyword() string          { return "SETID" }
func (Raw) Keyword() string            { return "RAW" }
func (Calibrate) Keyword() string      { return "CAL" }
func (GetInfo) Keyword() string        { return "GETINFO" }
func (Detect) Keyword() string         { return "DETECT" }
func (Stats) Keyword() string          { return "STATS" }
