// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 majeff, mosquito-pt2d

package lobot

// CalculateChecksum computes the servo checksum over the bytes from the id
// field through the end of the payload (the frame without preamble and
// checksum byte).
func CalculateChecksum(data []byte) uint8 {
	var sum uint8
	for _, b := range data {
		sum += b
	}
	return ^sum
}

// Checksum computes the checksum of a complete wire frame, i.e. over
// bytes[2..N-2]. Frames shorter than the minimum return 0.
func Checksum(frame []byte) uint8 {
	if len(frame) < minFrameBytes {
		return 0
	}
	return CalculateChecksum(frame[HeaderSize : len(frame)-1])
}
