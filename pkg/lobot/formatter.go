// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 majeff, mosquito-pt2d

package lobot

import (
	"fmt"
	"strings"
)

// FormatFrame formats a frame into a human-readable line
func FormatFrame(f *Frame) string {
	timestamp := f.timestamp.Format("15:04:05.000")
	result := fmt.Sprintf("[%s] %s (%d) id=%d len=%d", timestamp, FormatCommand(f.command), f.command, f.id, f.Length())
	if len(f.payload) > 0 {
		result += " " + formatParams(f)
	}
	return result + "\n"
}

// FormatCommand returns the human-readable name for a command code
func FormatCommand(cmd uint8) string {
	switch cmd {
	case CmdMoveTimeWrite:
		return "MOVE_TIME_WRITE"
	case CmdMoveTimeRead:
		return "MOVE_TIME_READ"
	case CmdMoveStop:
		return "MOVE_STOP"
	case CmdIDWrite:
		return "ID_WRITE"
	case CmdIDRead:
		return "ID_READ"
	case CmdAngleOffsetAdjust:
		return "ANGLE_OFFSET_ADJUST"
	case CmdTempRead:
		return "TEMP_READ"
	case CmdVinRead:
		return "VIN_READ"
	case CmdPosRead:
		return "POS_READ"
	default:
		return "UNKNOWN"
	}
}

func formatParams(f *Frame) string {
	switch f.command {
	case CmdMoveTimeWrite:
		pos, ok1 := f.Uint16(0)
		ms, ok2 := f.Uint16(2)
		if ok1 && ok2 {
			return fmt.Sprintf("position=%d time=%dms", pos, ms)
		}
	case CmdIDWrite:
		return fmt.Sprintf("new_id=%d", f.payload[0])
	case CmdPosRead:
		if v, ok := ReplyValue(f); ok {
			return fmt.Sprintf("position=%d", v)
		}
	case CmdVinRead:
		if v, ok := ReplyValue(f); ok {
			return fmt.Sprintf("voltage=%dmV", v)
		}
	case CmdTempRead:
		if v, ok := ReplyValue(f); ok {
			return fmt.Sprintf("temp=%dC", v)
		}
	case CmdIDRead:
		if v, ok := ReplyValue(f); ok {
			return fmt.Sprintf("id=%d", v)
		}
	}
	return "params=" + FormatHex(f.payload)
}

// FormatHex renders bytes as space separated hex pairs
func FormatHex(data []byte) string {
	var sb strings.Builder
	for i, b := range data {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%02X", b)
	}
	return sb.String()
}
