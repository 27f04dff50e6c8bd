// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 majeff, mosquito-pt2d

// Package simbus simulates a bus of servos behind the transport.Port
// interface, for hardware-free runs and tests. It answers both the lobot
// and the ascii dialect.
package simbus

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/majeff/mosquito-pt2d/internal/clock"
	"github.com/majeff/mosquito-pt2d/internal/dialect"
	"github.com/majeff/mosquito-pt2d/internal/transport"
	"github.com/majeff/mosquito-pt2d/pkg/lobot"
)

// Servo is the simulated state of one device
type Servo struct {
	ID        uint8
	Position  int // 0-1000
	VoltageMV int
	TempC     int

	// AngleRange is the mechanical travel in degrees, used by the ascii
	// dialect which reports angles.
	AngleRange int

	// Silent servos never reply
	Silent bool
}

// Faults alter how the bus behaves
type Faults struct {
	// Drop discards every reply
	Drop bool

	// Corrupt damages replies: a bad checksum for lobot, a reply without
	// numbers for ascii.
	Corrupt bool

	// Echo reflects every request back, like an unbuffered half-duplex
	// line.
	Echo bool

	// Latency delays replies by bus clock time
	Latency time.Duration
}

type chunk struct {
	at   time.Time
	data []byte
}

// Bus is a simulated servo bus. It implements transport.Port; Write
// discards unread input first, matching a bus-side Stream.
type Bus struct {
	mu      sync.Mutex
	dialect string
	clock   clock.Clock
	servos  map[uint8]*Servo
	faults  Faults

	inflight []chunk
	ready    []byte
	writes   [][]byte

	dec      *lobot.Decoder
	asciiBuf []byte
}

var _ transport.Port = (*Bus)(nil)

// New creates a bus speaking the named dialect with the given servos.
// A nil clock uses the system clock.
func New(dialectName string, clk clock.Clock, servos ...Servo) *Bus {
	if clk == nil {
		clk = clock.System{}
	}
	if dialectName == "" {
		dialectName = dialect.NameLobot
	}
	b := &Bus{
		dialect: dialectName,
		clock:   clk,
		servos:  make(map[uint8]*Servo),
		dec:     lobot.NewDecoder(),
	}
	for _, s := range servos {
		s := s
		if s.AngleRange == 0 {
			s.AngleRange = 270
		}
		b.servos[s.ID] = &s
	}
	return b
}

// Default returns a bus with pan at ID 1 and tilt at ID 2, both centred
func Default(dialectName string, clk clock.Clock) *Bus {
	return New(dialectName, clk,
		Servo{ID: 1, Position: 500, VoltageMV: 7400, TempC: 28},
		Servo{ID: 2, Position: 334, VoltageMV: 7380, TempC: 27},
	)
}

// SetFaults replaces the active faults
func (b *Bus) SetFaults(f Faults) {
	b.mu.Lock()
	b.faults = f
	b.mu.Unlock()
}

// Servo returns a copy of the servo at id
func (b *Bus) Servo(id uint8) (Servo, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.servos[id]
	if !ok {
		return Servo{}, false
	}
	return *s, true
}

// IDs returns the IDs present on the bus in ascending order
func (b *Bus) IDs() []uint8 {
	b.mu.Lock()
	defer b.mu.Unlock()
	ids := make([]uint8, 0, len(b.servos))
	for id := range b.servos {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Writes returns every request written so far
func (b *Bus) Writes() [][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([][]byte, len(b.writes))
	copy(out, b.writes)
	return out
}

// Write handles a request. Input that has arrived but was not read is
// discarded first; replies still in flight survive.
func (b *Bus) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.promote()
	b.ready = b.ready[:0]
	b.writes = append(b.writes, append([]byte(nil), p...))

	if b.faults.Echo {
		b.queue(p, 0)
	}

	if b.dialect == dialect.NameASCII {
		b.writeASCII(p)
	} else {
		b.writeLobot(p)
	}
	return len(p), nil
}

// Available returns the number of reply bytes that have arrived
func (b *Bus) Available() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.promote()
	return len(b.ready)
}

// ReadByte pops one arrived byte or returns transport.ErrEmpty
func (b *Bus) ReadByte() (byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.promote()
	if len(b.ready) == 0 {
		return 0, transport.ErrEmpty
	}
	c := b.ready[0]
	b.ready = b.ready[1:]
	return c, nil
}

func (b *Bus) promote() {
	now := b.clock.Now()
	n := 0
	for _, c := range b.inflight {
		if c.at.After(now) {
			break
		}
		b.ready = append(b.ready, c.data...)
		n++
	}
	b.inflight = b.inflight[n:]
}

func (b *Bus) queue(data []byte, delay time.Duration) {
	b.inflight = append(b.inflight, chunk{
		at:   b.clock.Now().Add(delay),
		data: append([]byte(nil), data...),
	})
}

func (b *Bus) reply(data []byte) {
	if b.faults.Drop {
		return
	}
	b.queue(data, b.faults.Latency)
}

// targets returns the servos addressed by id in ascending ID order
func (b *Bus) targets(id uint8, broadcast uint8) []*Servo {
	if id != broadcast {
		if s, ok := b.servos[id]; ok {
			return []*Servo{s}
		}
		return nil
	}
	ids := make([]int, 0, len(b.servos))
	for k := range b.servos {
		ids = append(ids, int(k))
	}
	sort.Ints(ids)
	out := make([]*Servo, 0, len(ids))
	for _, k := range ids {
		out = append(out, b.servos[uint8(k)])
	}
	return out
}

func (b *Bus) rekey(s *Servo, newID uint8) {
	delete(b.servos, s.ID)
	s.ID = newID
	b.servos[newID] = s
}

// ============================================================
// Lobot
// ============================================================

func (b *Bus) writeLobot(p []byte) {
	for _, c := range p {
		f, err := b.dec.DecodeByte(c)
		if err != nil || f == nil {
			continue
		}
		b.handleLobot(f)
	}
}

func (b *Bus) handleLobot(f *lobot.Frame) {
	for _, s := range b.targets(f.ID(), lobot.IDBroadcast) {
		var out []byte
		switch f.Command() {
		case lobot.CmdMoveTimeWrite:
			if pos, ok := f.Uint16(0); ok {
				s.Position = int(pos)
			}
		case lobot.CmdIDWrite:
			if len(f.Payload()) == 1 {
				b.rekey(s, f.Payload()[0])
			}
		case lobot.CmdIDRead:
			out = lobot.Encode(s.ID, lobot.CmdIDRead, []byte{s.ID})
		case lobot.CmdTempRead:
			out = lobot.Encode(s.ID, lobot.CmdTempRead, []byte{byte(s.TempC)})
		case lobot.CmdVinRead:
			out = lobot.Encode(s.ID, lobot.CmdVinRead, []byte{byte(s.VoltageMV), byte(s.VoltageMV >> 8)})
		case lobot.CmdPosRead:
			out = lobot.Encode(s.ID, lobot.CmdPosRead, []byte{byte(s.Position), byte(s.Position >> 8)})
		}
		if out == nil || s.Silent {
			continue
		}
		if b.faults.Corrupt {
			out[len(out)-1] ^= 0xFF
		}
		b.reply(out)
	}
}

// ============================================================
// ASCII
// ============================================================

const asciiBroadcast = 255

func (b *Bus) writeASCII(p []byte) {
	b.asciiBuf = append(b.asciiBuf, p...)
	for {
		end := bytes.IndexByte(b.asciiBuf, '!')
		if end < 0 {
			break
		}
		b.handleASCII(string(b.asciiBuf[:end]))
		b.asciiBuf = b.asciiBuf[end+1:]
	}
	if len(b.asciiBuf) > 64 {
		b.asciiBuf = b.asciiBuf[:0]
	}
}

// handleASCII serves one "#idP..." request without its trailing '!'
func (b *Bus) handleASCII(req string) {
	start := bytes.IndexByte([]byte(req), '#')
	if start < 0 || len(req) < start+5 {
		return
	}
	req = req[start+1:]
	id, err := strconv.Atoi(req[:3])
	if err != nil || id < 0 || id > asciiBroadcast {
		return
	}
	op := req[3:]

	for _, s := range b.targets(uint8(id), asciiBroadcast) {
		var out string
		switch {
		case op == "PRAD":
			out = fmt.Sprintf("%d!", s.Position*s.AngleRange/lobot.PositionMax)
		case op == "PRTV":
			out = fmt.Sprintf("%d,%d!", s.VoltageMV, s.TempC)
		case op == "PDST":
		case len(op) == 6 && op[:3] == "PID":
			if newID, err := strconv.Atoi(op[3:]); err == nil && newID > 0 && newID < asciiBroadcast {
				b.rekey(s, uint8(newID))
				out = "#OK!"
			}
		case len(op) == 10 && op[0] == 'P' && op[5] == 'T':
			if pos, err := strconv.Atoi(op[1:5]); err == nil {
				s.Position = pos
			}
		}
		if out == "" || s.Silent {
			continue
		}
		if b.faults.Corrupt {
			out = "ERR!"
		}
		b.reply([]byte(out))
	}
}
