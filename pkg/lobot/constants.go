// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 majeff, mosquito-pt2d

// Package lobot implements the LewanSoul/Lobot bus servo frame protocol.
//
// Every frame on the bus has the layout
//
//	0x55 0x55 | id | length | command | payload... | checksum
//
// where length counts the length, command, payload and checksum bytes
// (len(payload)+3) and checksum is the one's complement of the low byte of
// the sum of id, length, command and payload.
package lobot

// Frame preamble
const (
	HeaderByte = 0x55
	HeaderSize = 2
)

// Frame size limits
const (
	MinLength     = 3 // length byte for an empty payload
	MaxPayload    = 7
	MaxLength     = MaxPayload + 3
	MaxFrameSize  = HeaderSize + 1 + MaxLength // header + id + length-counted bytes
	minFrameBytes = HeaderSize + 1 + MinLength
)

// Special IDs
const (
	IDMin       = 1
	IDMax       = 253
	IDBroadcast = 254
)

// Command codes (LX-16A numbering)
const (
	CmdMoveTimeWrite     = 1
	CmdMoveTimeRead      = 2
	CmdMoveStop          = 12
	CmdIDWrite           = 13
	CmdIDRead            = 14
	CmdAngleOffsetAdjust = 17
	CmdTempRead          = 26
	CmdVinRead           = 27
	CmdPosRead           = 28
)

// Position domain
const (
	PositionMin = 0
	PositionMax = 1000
)

// Decoder states
const (
	stateHeader1 = iota
	stateHeader2
	stateID
	stateLength
	statePayload
	stateChecksum
)
