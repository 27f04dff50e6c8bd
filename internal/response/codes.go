// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 majeff, mosquito-pt2d

package response

import (
	"errors"

	"github.com/majeff/mosquito-pt2d/internal/aggregate"
	"github.com/majeff/mosquito-pt2d/internal/command"
	"github.com/majeff/mosquito-pt2d/internal/dialect"
	"github.com/majeff/mosquito-pt2d/internal/discovery"
	"github.com/majeff/mosquito-pt2d/internal/hostline"
	"github.com/majeff/mosquito-pt2d/pkg/lobot"
)

// Code is the host-facing error message. It is a string newtype,
// comparable and implements error.
type Code string

func (c Code) Error() string { return string(c) }

// Host-facing messages
const (
	InvalidFormat     Code = "Invalid command format"
	UnknownCommand    Code = "Unknown command"
	InvalidParameter  Code = "Invalid parameter"
	CommandTooLong    Code = "Command too long"
	Busy              Code = "Busy"
	AggregateTimeout  Code = "Aggregate command timeout"
	PhaseMismatch     Code = "Phase mismatch"
	ChecksumError     Code = "Checksum error"
	IncompleteFrame   Code = "Incomplete frame"
	AddressUnresolved Code = "Servo address unresolved"
	ReplyTimeout      Code = "Reply timeout"
	InvalidReply      Code = "Invalid reply"
	BusError          Code = "Bus write failed"
	CalibrationAbort  Code = "Calibration aborted"

	Error Code = "Internal error" // generic fallback
)

var codeMap = []struct {
	err  error
	code Code
}{
	{command.ErrFormat, InvalidFormat},
	{command.ErrUnknownCommand, UnknownCommand},
	{command.ErrInvalidParameter, InvalidParameter},
	{hostline.ErrLineTooLong, CommandTooLong},
	{aggregate.ErrBusy, Busy},
	{aggregate.ErrTimeout, AggregateTimeout},
	{aggregate.ErrPhaseMismatch, PhaseMismatch},
	{lobot.ErrChecksum, ChecksumError},
	{lobot.ErrInvalidLength, ChecksumError},
	{lobot.ErrIncompleteFrame, IncompleteFrame},
	{discovery.ErrAddressUnresolved, AddressUnresolved},
	{dialect.ErrShortReply, InvalidReply},
}

// Of maps an error to its host-facing Code, defaulting to Error.
func Of(err error) Code {
	if err == nil {
		return ""
	}
	var c Code
	if errors.As(err, &c) {
		return c
	}
	for _, m := range codeMap {
		if errors.Is(err, m.err) {
			return m.code
		}
	}
	return Error
}
