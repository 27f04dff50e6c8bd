// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 majeff, mosquito-pt2d

package lobot

// Command builder functions return wire-ready frames. Parameter values are
// clamped to the ranges the servo accepts.

// MoveTimeWrite builds a MOVE_TIME_WRITE frame (1): move to position
// (0-1000) over durationMs (0-30000).
func MoveTimeWrite(id uint8, position, durationMs int) []byte {
	position = clampInt(position, PositionMin, PositionMax)
	durationMs = clampInt(durationMs, 0, 30000)
	return Encode(id, CmdMoveTimeWrite, []byte{
		byte(position), byte(position >> 8),
		byte(durationMs), byte(durationMs >> 8),
	})
}

// MoveStop builds a MOVE_STOP frame (12).
func MoveStop(id uint8) []byte {
	return Encode(id, CmdMoveStop, nil)
}

// IDWrite builds an ID_WRITE frame (13) assigning newID to the servo at id.
func IDWrite(id, newID uint8) []byte {
	return Encode(id, CmdIDWrite, []byte{newID})
}

// IDRead builds an ID_READ frame (14). Servos answer with their own id,
// which makes it the identity probe used by address discovery.
func IDRead(id uint8) []byte {
	return Encode(id, CmdIDRead, nil)
}

// TempRead builds a TEMP_READ frame (26).
func TempRead(id uint8) []byte {
	return Encode(id, CmdTempRead, nil)
}

// VinRead builds a VIN_READ frame (27).
func VinRead(id uint8) []byte {
	return Encode(id, CmdVinRead, nil)
}

// PosRead builds a POS_READ frame (28).
func PosRead(id uint8) []byte {
	return Encode(id, CmdPosRead, nil)
}

// ReplyValue extracts the single integer a read reply carries.
// POS_READ is a signed 16-bit position, VIN_READ an unsigned millivolt
// value, TEMP_READ and ID_READ a single byte.
func ReplyValue(f *Frame) (int, bool) {
	switch f.command {
	case CmdPosRead:
		v, ok := f.Int16(0)
		return int(v), ok
	case CmdVinRead:
		v, ok := f.Uint16(0)
		return int(v), ok
	case CmdTempRead, CmdIDRead:
		if len(f.payload) < 1 {
			return 0, false
		}
		return int(f.payload[0]), true
	case CmdMoveTimeRead:
		v, ok := f.Uint16(0)
		return int(v), ok
	}
	return 0, false
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
