// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 majeff, mosquito-pt2d

package dialect

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/majeff/mosquito-pt2d/pkg/lobot"
)

// Lobot speaks binary LewanSoul/Lobot frames with strict length and
// checksum framing.
type Lobot struct{}

func (Lobot) Name() string { return NameLobot }

func (Lobot) Move(id uint8, position, durationMs int) []byte {
	return lobot.MoveTimeWrite(id, position, durationMs)
}

func (Lobot) Stop(id uint8) []byte {
	return lobot.MoveStop(id)
}

func (Lobot) ReadAngle(id uint8, toAngle func(position int) int) []Step {
	return []Step{{
		Frame:   lobot.PosRead(id),
		Expect:  1,
		ID:      id,
		Command: lobot.CmdPosRead,
		Convert: toAngle,
	}}
}

// ReadVoltTemp takes two round trips: VIN_READ then TEMP_READ.
func (Lobot) ReadVoltTemp(id uint8) []Step {
	return []Step{
		{Frame: lobot.VinRead(id), Expect: 1, ID: id, Command: lobot.CmdVinRead},
		{Frame: lobot.TempRead(id), Expect: 1, ID: id, Command: lobot.CmdTempRead},
	}
}

func (Lobot) Probe(id uint8) []Step {
	return []Step{{Frame: lobot.IDRead(id), Expect: 1, ID: id, Command: lobot.CmdIDRead}}
}

// WriteAddress broadcasts ID_WRITE and reads the ID back so the caller can
// tell whether a servo took it.
func (Lobot) WriteAddress(newID uint8) []Step {
	frame := lobot.IDWrite(lobot.IDBroadcast, newID)
	frame = append(frame, lobot.IDRead(lobot.IDBroadcast)...)
	return []Step{{Frame: frame, Expect: 1, ID: lobot.IDBroadcast, Command: lobot.CmdIDRead}}
}

// Raw decodes hex text ("55 55 01 03 1C DF" or "5555" style).
func (Lobot) Raw(payload string) ([]byte, error) {
	clean := strings.Map(func(r rune) rune {
		if r == ' ' || r == ':' || r == '-' {
			return -1
		}
		return r
	}, payload)
	if clean == "" {
		return nil, fmt.Errorf("empty raw payload")
	}
	data, err := hex.DecodeString(clean)
	if err != nil {
		return nil, fmt.Errorf("raw payload: %w", err)
	}
	return data, nil
}

// Typed refuses text lines; binary frames go through Raw as hex.
func (Lobot) Typed(string) ([]byte, error) {
	return nil, ErrNotText
}

func (Lobot) newReader() replyReader {
	return &lobotReader{dec: lobot.NewDecoder()}
}

// lobotReader decodes reply frames. Frames for another servo or command,
// and empty-payload frames (our own requests echoed on a half-duplex
// line), are skipped.
type lobotReader struct {
	dec  *lobot.Decoder
	step Step
	seen []byte
}

func (r *lobotReader) start(step Step) {
	r.dec.Reset()
	r.step = step
	r.seen = r.seen[:0]
}

func (r *lobotReader) feed(b byte) ([]int, bool, error) {
	if len(r.seen) < replyBufferSize {
		r.seen = append(r.seen, b)
	}

	f, err := r.dec.DecodeByte(b)
	if err != nil {
		return nil, false, err
	}
	if f == nil {
		return nil, false, nil
	}

	if len(f.Payload()) == 0 || f.Command() != r.step.Command || !r.fromTarget(f) {
		r.seen = r.seen[:0]
		return nil, false, nil
	}

	v, ok := lobot.ReplyValue(f)
	if !ok {
		return nil, true, nil
	}
	return []int{v}, true, nil
}

func (r *lobotReader) fromTarget(f *lobot.Frame) bool {
	if r.step.ID == 0 || r.step.ID == lobot.IDBroadcast {
		return true
	}
	return f.ID() == r.step.ID
}

func (r *lobotReader) raw() []byte {
	return r.seen
}

func (r *lobotReader) partial() bool {
	return len(r.seen) > 0
}
