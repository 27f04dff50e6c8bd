// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 majeff, mosquito-pt2d

// Package dialect selects the wire format spoken on the servo bus.
//
// The lobot dialect (binary LewanSoul/Lobot frames) is the bus contract.
// The ascii dialect (#idPposTtime! strings) is kept for older servo boards
// and uses lenient terminator framing; it is a compatibility shim, not a
// correctness guarantee.
package dialect

import (
	"errors"
	"fmt"
	"strings"
)

// Dialect names
const (
	NameLobot = "lobot"
	NameASCII = "ascii"
)

// replyBufferSize bounds the bytes held for one reply
const replyBufferSize = 64

// maxReplyValues caps how many integers a reply may carry
const maxReplyValues = 4

var (
	// ErrShortReply means a reply completed with fewer values than required
	ErrShortReply = errors.New("reply carried too few values")

	// ErrUnknownDialect is returned by New for unsupported names
	ErrUnknownDialect = errors.New("unknown bus dialect")

	// ErrNoSteps is returned when an exchange is started without requests
	ErrNoSteps = errors.New("exchange has no steps")

	// ErrNotText is returned by Typed for dialects without a text syntax
	ErrNotText = errors.New("bus dialect has no text syntax")
)

// Step is one request/reply round trip on the bus.
type Step struct {
	Frame []byte

	// Expect is the number of integer values the reply must carry.
	Expect int

	// ID and Command select which reply frame answers the request. They
	// are only used by framed dialects. ID 0 or the broadcast ID accepts
	// a reply from any servo.
	ID      uint8
	Command uint8

	// Convert is applied to every value of the reply when set.
	Convert func(int) int
}

// Dialect builds bus requests and recognises their replies.
type Dialect interface {
	Name() string

	Move(id uint8, position, durationMs int) []byte
	Stop(id uint8) []byte

	// ReadAngle yields one value: the angle in degrees. toAngle converts a
	// raw servo position when the dialect reports positions.
	ReadAngle(id uint8, toAngle func(position int) int) []Step

	// ReadVoltTemp yields two values: millivolts then degrees Celsius.
	ReadVoltTemp(id uint8) []Step

	// Probe asks a single ID to identify itself.
	Probe(id uint8) []Step

	// WriteAddress assigns newID to whichever servo is on the bus.
	WriteAddress(newID uint8) []Step

	// Raw converts user supplied payload text to bus bytes.
	Raw(payload string) ([]byte, error)

	// Typed returns the bytes for a line typed in the bus's own syntax
	// (a '#' line), or ErrNotText when the bus is not text based.
	Typed(line string) ([]byte, error)

	newReader() replyReader
}

// replyReader accumulates bus bytes until a reply is complete
type replyReader interface {
	start(step Step)
	feed(b byte) (values []int, done bool, err error)
	raw() []byte
	partial() bool
}

// New returns the dialect registered under name.
func New(name string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", NameLobot:
		return Lobot{}, nil
	case NameASCII:
		return ASCII{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownDialect, name)
}
