// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 majeff, mosquito-pt2d

package lobot

import "time"

// Frame represents one decoded bus frame
type Frame struct {
	id        uint8
	command   uint8
	payload   []byte
	checksum  uint8
	timestamp time.Time
}

// NewFrame creates a frame from its fields; the checksum is computed.
func NewFrame(id, command uint8, payload []byte) *Frame {
	f := &Frame{
		id:        id,
		command:   command,
		payload:   payload,
		timestamp: time.Now(),
	}
	f.checksum = CalculateChecksum(f.body())
	return f
}

// ID returns the servo address
func (f *Frame) ID() uint8 {
	return f.id
}

// Command returns the command code
func (f *Frame) Command() uint8 {
	return f.command
}

// Payload returns the parameter bytes
func (f *Frame) Payload() []byte {
	return f.payload
}

// Length returns the value of the length field
func (f *Frame) Length() uint8 {
	return uint8(len(f.payload) + MinLength)
}

// Checksum returns the frame's checksum byte
func (f *Frame) Checksum() uint8 {
	return f.checksum
}

// Timestamp returns the creation or decode time
func (f *Frame) Timestamp() time.Time {
	return f.timestamp
}

// IsBroadcast reports whether the frame is addressed to every servo
func (f *Frame) IsBroadcast() bool {
	return f.id == IDBroadcast
}

// Uint16 reads a little-endian parameter at offset, ok=false if short.
func (f *Frame) Uint16(offset int) (uint16, bool) {
	if offset < 0 || offset+2 > len(f.payload) {
		return 0, false
	}
	return uint16(f.payload[offset]) | uint16(f.payload[offset+1])<<8, true
}

// Int16 reads a signed little-endian parameter at offset.
func (f *Frame) Int16(offset int) (int16, bool) {
	v, ok := f.Uint16(offset)
	return int16(v), ok
}

// body returns id, length, command and payload: the checksummed section.
func (f *Frame) body() []byte {
	b := make([]byte, 0, 3+len(f.payload))
	b = append(b, f.id, f.Length(), f.command)
	return append(b, f.payload...)
}
