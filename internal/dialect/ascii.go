// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 majeff, mosquito-pt2d

package dialect

import (
	"fmt"
)

// ASCII speaks the #idPposTtime! string protocol of older bus servo boards.
// Replies end at '!', CR, LF or when the reply buffer is full.
type ASCII struct{}

func (ASCII) Name() string { return NameASCII }

func (ASCII) Move(id uint8, position, durationMs int) []byte {
	return []byte(fmt.Sprintf("#%03dP%04dT%04d!", id, position, durationMs))
}

func (ASCII) Stop(id uint8) []byte {
	return []byte(fmt.Sprintf("#%03dPDST!", id))
}

// ReadAngle reports the servo's answer as-is; these boards reply in degrees.
func (ASCII) ReadAngle(id uint8, _ func(int) int) []Step {
	return []Step{{Frame: []byte(fmt.Sprintf("#%03dPRAD!", id)), Expect: 1}}
}

func (ASCII) ReadVoltTemp(id uint8) []Step {
	return []Step{{Frame: []byte(fmt.Sprintf("#%03dPRTV!", id)), Expect: 2}}
}

// Probe reads voltage; any terminated reply proves the ID is present.
func (ASCII) Probe(id uint8) []Step {
	return []Step{{Frame: []byte(fmt.Sprintf("#%03dPRTV!", id))}}
}

func (ASCII) WriteAddress(newID uint8) []Step {
	return []Step{{Frame: []byte(fmt.Sprintf("#255PID%03d!", newID))}}
}

func (ASCII) Raw(payload string) ([]byte, error) {
	if payload == "" {
		return nil, fmt.Errorf("empty raw payload")
	}
	return []byte(payload), nil
}

func (ASCII) Typed(line string) ([]byte, error) {
	return []byte(line), nil
}

func (ASCII) newReader() replyReader {
	return &asciiReader{}
}

type asciiReader struct {
	buf []byte
}

func (r *asciiReader) start(Step) {
	r.buf = r.buf[:0]
}

func isTerminator(b byte) bool {
	return b == '!' || b == '\n' || b == '\r'
}

func (r *asciiReader) feed(b byte) ([]int, bool, error) {
	// A bare terminator is the tail of the previous reply (CR LF).
	if isTerminator(b) && len(r.buf) == 0 {
		return nil, false, nil
	}
	if len(r.buf) < replyBufferSize-1 {
		r.buf = append(r.buf, b)
	}
	if !isTerminator(b) && len(r.buf) < replyBufferSize-1 {
		return nil, false, nil
	}
	return ExtractInts(r.buf, maxReplyValues), true, nil
}

func (r *asciiReader) raw() []byte {
	return r.buf
}

func (r *asciiReader) partial() bool {
	return len(r.buf) > 0
}
