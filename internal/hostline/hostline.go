// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 majeff, mosquito-pt2d

// Package hostline splits the host byte stream into command lines.
package hostline

import "errors"

// DefaultMaxLine is the longest line accepted, terminator excluded
const DefaultMaxLine = 127

// ErrLineTooLong is returned when a line overflows the buffer. The partial
// line is discarded and reading continues with the next byte.
var ErrLineTooLong = errors.New("line too long")

// Reader accumulates bytes into lines terminated by LF or CR. Empty lines
// are ignored, so CR LF yields one line.
type Reader struct {
	buf []byte
	max int
}

// NewReader creates a Reader bounded to max bytes per line
func NewReader(max int) *Reader {
	if max <= 0 {
		max = DefaultMaxLine
	}
	return &Reader{buf: make([]byte, 0, max), max: max}
}

// Feed consumes one byte. It returns the completed line when b terminates
// a non-empty line.
func (r *Reader) Feed(b byte) (string, bool, error) {
	if b == '\n' || b == '\r' {
		if len(r.buf) == 0 {
			return "", false, nil
		}
		line := string(r.buf)
		r.buf = r.buf[:0]
		return line, true, nil
	}

	if len(r.buf) >= r.max {
		r.buf = r.buf[:0]
		return "", false, ErrLineTooLong
	}
	r.buf = append(r.buf, b)
	return "", false, nil
}

// Pending returns how many bytes of an unterminated line are buffered
func (r *Reader) Pending() int {
	return len(r.buf)
}

// Reset drops any partial line
func (r *Reader) Reset() {
	r.buf = r.buf[:0]
}
