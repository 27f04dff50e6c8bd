// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 majeff, mosquito-pt2d

package lobot

import (
	"errors"
	"fmt"
)

// Decode errors
var (
	ErrChecksum        = errors.New("lobot: checksum mismatch")
	ErrIncompleteFrame = errors.New("lobot: incomplete frame")
	ErrInvalidLength   = errors.New("lobot: invalid length")
	ErrNoHeader        = errors.New("lobot: no frame header")
)

// Encode builds a complete wire frame. Payloads longer than MaxPayload are
// truncated; range checking of parameter values is the caller's job.
func Encode(id, command uint8, payload []byte) []byte {
	if len(payload) > MaxPayload {
		payload = payload[:MaxPayload]
	}
	frame := make([]byte, 0, HeaderSize+4+len(payload))
	frame = append(frame, HeaderByte, HeaderByte, id, uint8(len(payload)+MinLength), command)
	frame = append(frame, payload...)
	return append(frame, CalculateChecksum(frame[HeaderSize:]))
}

// EncodeFrame encodes an existing Frame back to wire format.
func EncodeFrame(f *Frame) []byte {
	return Encode(f.id, f.command, f.payload)
}

// Decode scans buf for a frame header and decodes the frame that follows.
// It returns the frame and the number of bytes consumed up to the end of
// that frame. A header that fails length or checksum validation is retried
// one byte later, so noise ahead of a frame is skipped; when no header
// yields a frame the error of the first one is returned. Decode is a pure
// function over buf.
func Decode(buf []byte) (*Frame, int, error) {
	var (
		firstErr error
		firstN   int
	)
	for i := 0; i+1 < len(buf); i++ {
		if buf[i] != HeaderByte || buf[i+1] != HeaderByte {
			continue
		}
		f, n, err := decodeAt(buf[i:])
		if err == nil {
			return f, i + n, nil
		}
		if firstErr == nil {
			firstErr = err
			if n > 0 {
				firstN = i + n
			}
		}
	}
	if firstErr == nil {
		return nil, 0, ErrNoHeader
	}
	return nil, firstN, firstErr
}

// decodeAt decodes the frame whose header starts at rest[0]
func decodeAt(rest []byte) (*Frame, int, error) {
	if len(rest) < HeaderSize+2 {
		return nil, 0, ErrIncompleteFrame
	}

	length := int(rest[3])
	if length < MinLength || length > MaxLength {
		return nil, HeaderSize, fmt.Errorf("%w: %d", ErrInvalidLength, length)
	}

	total := HeaderSize + 1 + length
	if len(rest) < total {
		return nil, 0, ErrIncompleteFrame
	}

	frame := rest[:total]
	got := frame[total-1]
	want := CalculateChecksum(frame[HeaderSize : total-1])
	if got != want {
		return nil, total, fmt.Errorf("%w: expected 0x%02X, got 0x%02X", ErrChecksum, want, got)
	}

	payload := make([]byte, length-MinLength)
	copy(payload, frame[5:total-1])
	return NewFrame(frame[2], frame[4], payload), total, nil
}
