// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 majeff, mosquito-pt2d

package lobot

import (
	"fmt"
	"time"
)

// Decoder implements the frame decoder state machine. It never blocks and
// holds at most one frame's worth of bytes.
//
// When a frame fails length or checksum validation the decoder replays the
// bytes after the failed preamble, so a stray 0x55 ahead of a real frame
// costs nothing. The error is reported only when no later frame start is
// pending among the replayed bytes.
type Decoder struct {
	state     int
	buffer    []byte // id, length, command, payload
	candidate []byte // bytes of the frame in progress, preamble included
	backlog   []byte // replayed bytes left over after a recovered frame
	remaining int
	rawBuffer []byte // Accumulate raw bytes including preamble
}

// NewDecoder creates a new frame decoder
func NewDecoder() *Decoder {
	return &Decoder{
		state:     stateHeader1,
		buffer:    make([]byte, 0, MaxFrameSize),
		candidate: make([]byte, 0, MaxFrameSize),
		rawBuffer: make([]byte, 0, MaxFrameSize*2),
	}
}

// Reset returns the decoder to waiting for a preamble
func (d *Decoder) Reset() {
	d.restart()
	d.backlog = nil
	d.rawBuffer = d.rawBuffer[:0]
}

func (d *Decoder) restart() {
	d.state = stateHeader1
	d.buffer = d.buffer[:0]
	d.candidate = d.candidate[:0]
	d.remaining = 0
}

// GetRawBytes returns the raw bytes accumulated since the last frame
func (d *Decoder) GetRawBytes() []byte {
	return d.rawBuffer
}

// DecodeByte processes a single byte through the decoder state machine.
// Returns a completed frame, or nil if the frame is incomplete.
// Returns an error if the frame fails length or checksum validation.
//
// Bytes that follow a frame recovered by a replay are decoded ahead of the
// next input byte.
func (d *Decoder) DecodeByte(b byte) (*Frame, error) {
	if len(d.rawBuffer) >= cap(d.rawBuffer) {
		d.rawBuffer = d.rawBuffer[:0]
	}
	d.rawBuffer = append(d.rawBuffer, b)

	queue := append(d.backlog, b)
	d.backlog = nil

	var failure error
	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]

		f, err := d.step(c)
		if err != nil {
			failure = err
			replay := append([]byte(nil), d.candidate[1:]...)
			d.restart()
			queue = append(replay, queue...)
			continue
		}
		if f != nil {
			if len(queue) > 0 {
				d.backlog = append([]byte(nil), queue...)
			}
			d.rawBuffer = d.rawBuffer[:0]
			return f, nil
		}
	}

	if failure != nil && d.state == stateHeader1 {
		return nil, failure
	}
	return nil, nil
}

// step advances the state machine by one byte. On error the caller
// restarts it.
func (d *Decoder) step(b byte) (*Frame, error) {
	switch d.state {
	case stateHeader1:
		if b == HeaderByte {
			d.candidate = append(d.candidate[:0], b)
			d.state = stateHeader2
		}
		return nil, nil

	case stateHeader2:
		if b != HeaderByte {
			d.restart()
			return nil, nil
		}
		d.candidate = append(d.candidate, b)
		d.state = stateID
		return nil, nil
	}

	d.candidate = append(d.candidate, b)

	switch d.state {
	case stateID:
		d.buffer = append(d.buffer[:0], b)
		d.state = stateLength
		return nil, nil

	case stateLength:
		if b < MinLength || b > MaxLength {
			return nil, fmt.Errorf("%w: %d", ErrInvalidLength, b)
		}
		d.buffer = append(d.buffer, b)
		d.remaining = int(b) - 2 // command + payload, checksum handled separately
		d.state = statePayload
		return nil, nil

	case statePayload:
		d.buffer = append(d.buffer, b)
		d.remaining--
		if d.remaining == 0 {
			d.state = stateChecksum
		}
		return nil, nil

	case stateChecksum:
		want := CalculateChecksum(d.buffer)
		if b != want {
			return nil, fmt.Errorf("%w: expected 0x%02X, got 0x%02X", ErrChecksum, want, b)
		}
		payload := make([]byte, len(d.buffer)-3)
		copy(payload, d.buffer[3:])
		frame := &Frame{
			id:        d.buffer[0],
			command:   d.buffer[2],
			payload:   payload,
			checksum:  b,
			timestamp: time.Now(),
		}
		d.restart()
		return frame, nil

	default:
		return nil, fmt.Errorf("lobot: invalid decoder state %d", d.state)
	}
}
