// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 majeff, mosquito-pt2d

package dialect

import (
	"bytes"
	"errors"
	"reflect"
	"testing"

	"github.com/majeff/mosquito-pt2d/internal/transport"
	"github.com/majeff/mosquito-pt2d/pkg/lobot"
)

// fakePort records writes and serves queued input
type fakePort struct {
	written [][]byte
	in      []byte
}

func (p *fakePort) Write(b []byte) (int, error) {
	p.written = append(p.written, append([]byte(nil), b...))
	p.in = p.in[:0]
	return len(b), nil
}

func (p *fakePort) Available() int { return len(p.in) }

func (p *fakePort) ReadByte() (byte, error) {
	if len(p.in) == 0 {
		return 0, transport.ErrEmpty
	}
	b := p.in[0]
	p.in = p.in[1:]
	return b, nil
}

func (p *fakePort) push(b []byte) { p.in = append(p.in, b...) }

func reply(id, cmd uint8, payload ...byte) []byte {
	return lobot.Encode(id, cmd, payload)
}

// ============================================================
// Selection
// ============================================================

func TestNew(t *testing.T) {
	tests := []struct {
		name string
		want string
		err  bool
	}{
		{"", NameLobot, false},
		{"lobot", NameLobot, false},
		{"ASCII", NameASCII, false},
		{"feetech", "", true},
	}
	for _, tt := range tests {
		d, err := New(tt.name)
		if tt.err {
			if !errors.Is(err, ErrUnknownDialect) {
				t.Errorf("New(%q): expected ErrUnknownDialect, got %v", tt.name, err)
			}
			continue
		}
		if err != nil || d.Name() != tt.want {
			t.Errorf("New(%q) = %v, %v; want %s", tt.name, d, err, tt.want)
		}
	}
}

// ============================================================
// ExtractInts
// ============================================================

func TestExtractInts(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want []int
	}{
		{"135", 4, []int{135}},
		{"1500,28", 4, []int{1500, 28}},
		{"#001P1500!", 4, []int{1, 1500}},
		{"-12 34", 4, []int{-12, 34}},
		{"a1b2c3d4e5", 4, []int{1, 2, 3, 4}},
		{"1,2,3", 2, []int{1, 2}},
		{"12-3", 4, []int{12}},
		{"-", 4, []int{0}},
		{"!!!", 4, nil},
		{"", 4, nil},
		{"1234567890123456789", 4, []int{123456789012345}},
	}
	for _, tt := range tests {
		got := ExtractInts([]byte(tt.in), tt.max)
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("ExtractInts(%q, %d) = %v, want %v", tt.in, tt.max, got, tt.want)
		}
	}
}

// ============================================================
// Lobot Dialect
// ============================================================

func TestLobot_Frames(t *testing.T) {
	d := Lobot{}
	if !bytes.Equal(d.Move(1, 500, 1000), lobot.MoveTimeWrite(1, 500, 1000)) {
		t.Error("Move should build MOVE_TIME_WRITE")
	}
	if !bytes.Equal(d.Stop(2), lobot.MoveStop(2)) {
		t.Error("Stop should build MOVE_STOP")
	}
	steps := d.ReadVoltTemp(3)
	if len(steps) != 2 || steps[0].Command != lobot.CmdVinRead || steps[1].Command != lobot.CmdTempRead {
		t.Errorf("ReadVoltTemp should read VIN then TEMP, got %+v", steps)
	}
}

func TestLobot_Raw(t *testing.T) {
	d := Lobot{}
	got, err := d.Raw("55 55 01 03 1C DF")
	if err != nil {
		t.Fatalf("Raw failed: %v", err)
	}
	if !bytes.Equal(got, lobot.PosRead(1)) {
		t.Errorf("Raw decoded % X", got)
	}
	if _, err := d.Raw("zz"); err == nil {
		t.Error("invalid hex should fail")
	}
	if _, err := d.Raw(""); err == nil {
		t.Error("empty payload should fail")
	}
}

func TestTyped(t *testing.T) {
	if _, err := (Lobot{}).Typed("#001PRAD!"); !errors.Is(err, ErrNotText) {
		t.Errorf("lobot: expected ErrNotText, got %v", err)
	}
	got, err := ASCII{}.Typed("#001PRAD!")
	if err != nil || string(got) != "#001PRAD!" {
		t.Errorf("ascii: got %q, %v", got, err)
	}
}

func TestLobot_ExchangeAngle(t *testing.T) {
	port := &fakePort{}
	toAngle := func(pos int) int { return pos * 270 / 1000 }

	ex, err := Begin(port, Lobot{}, Lobot{}.ReadAngle(1, toAngle))
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	if len(port.written) != 1 || !bytes.Equal(port.written[0], lobot.PosRead(1)) {
		t.Fatalf("expected POS_READ to be written, got %v", port.written)
	}

	// Echo of our own request, then a reply from another servo, then ours.
	port.push(lobot.PosRead(1))
	port.push(reply(2, lobot.CmdPosRead, 0x2C, 0x01))
	port.push(reply(1, lobot.CmdPosRead, 0xF4, 0x01))

	status, err := ex.Pump()
	if err != nil || status != Done {
		t.Fatalf("expected Done, got %s, %v", status, err)
	}
	if got := ex.Values(); !reflect.DeepEqual(got, []int{135}) {
		t.Errorf("expected angle 135, got %v", got)
	}
}

func TestLobot_ExchangeVoltTempTwoSteps(t *testing.T) {
	port := &fakePort{}
	ex, err := Begin(port, Lobot{}, Lobot{}.ReadVoltTemp(1))
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}

	port.push(reply(1, lobot.CmdVinRead, 0xDC, 0x05))
	if status, err := ex.Pump(); err != nil || status != Pending {
		t.Fatalf("first step should leave exchange pending, got %s, %v", status, err)
	}
	if len(port.written) != 2 || !bytes.Equal(port.written[1], lobot.TempRead(1)) {
		t.Fatalf("second step should send TEMP_READ, got %v", port.written)
	}

	port.push(reply(1, lobot.CmdTempRead, 28))
	if status, err := ex.Pump(); err != nil || status != Done {
		t.Fatalf("expected Done, got %s, %v", status, err)
	}
	if got := ex.Values(); !reflect.DeepEqual(got, []int{1500, 28}) {
		t.Errorf("expected [1500 28], got %v", got)
	}
}

func TestLobot_ExchangeSkipsStrayHeaderByte(t *testing.T) {
	port := &fakePort{}
	ex, _ := Begin(port, Lobot{}, Lobot{}.ReadAngle(1, nil))

	port.push([]byte{lobot.HeaderByte})
	port.push(reply(1, lobot.CmdPosRead, 0xF4, 0x01))

	status, err := ex.Pump()
	if err != nil || status != Done {
		t.Fatalf("expected Done, got %s, %v", status, err)
	}
	if got := ex.Values(); !reflect.DeepEqual(got, []int{500}) {
		t.Errorf("expected [500], got %v", got)
	}
}

func TestLobot_ExchangeChecksumError(t *testing.T) {
	port := &fakePort{}
	ex, _ := Begin(port, Lobot{}, Lobot{}.ReadAngle(1, nil))

	bad := reply(1, lobot.CmdPosRead, 0xF4, 0x01)
	bad[len(bad)-1] ^= 0xFF
	port.push(bad)

	_, err := ex.Pump()
	if !errors.Is(err, lobot.ErrChecksum) {
		t.Fatalf("expected ErrChecksum, got %v", err)
	}
	if !bytes.Equal(ex.Raw(), bad) {
		t.Errorf("raw should hold the corrupt frame, got % X", ex.Raw())
	}
}

func TestLobot_ExchangeShortPayload(t *testing.T) {
	port := &fakePort{}
	ex, _ := Begin(port, Lobot{}, Lobot{}.ReadAngle(1, nil))

	port.push(reply(1, lobot.CmdPosRead, 0xF4))
	_, err := ex.Pump()
	if !errors.Is(err, ErrShortReply) {
		t.Fatalf("expected ErrShortReply, got %v", err)
	}
}

func TestLobot_PartialReply(t *testing.T) {
	port := &fakePort{}
	ex, _ := Begin(port, Lobot{}, Lobot{}.ReadAngle(1, nil))

	full := reply(1, lobot.CmdPosRead, 0xF4, 0x01)
	port.push(full[:4])
	if status, err := ex.Pump(); err != nil || status != Pending {
		t.Fatalf("expected Pending, got %s, %v", status, err)
	}
	if !ex.Partial() {
		t.Error("exchange should report partial reply")
	}

	port.push(full[4:])
	if status, _ := ex.Pump(); status != Done {
		t.Errorf("expected Done after the rest arrives, got %s", status)
	}
}

func TestLobot_WriteAddressAcceptsAnyID(t *testing.T) {
	port := &fakePort{}
	steps := Lobot{}.WriteAddress(5)
	ex, _ := Begin(port, Lobot{}, steps)

	if !bytes.HasPrefix(port.written[0], lobot.IDWrite(lobot.IDBroadcast, 5)) {
		t.Errorf("expected broadcast ID_WRITE first, got % X", port.written[0])
	}

	port.push(lobot.IDWrite(lobot.IDBroadcast, 5))
	port.push(reply(5, lobot.CmdIDRead, 5))
	status, err := ex.Pump()
	if err != nil || status != Done {
		t.Fatalf("expected Done, got %s, %v", status, err)
	}
	if got := ex.Values(); !reflect.DeepEqual(got, []int{5}) {
		t.Errorf("expected id 5 read back, got %v", got)
	}
}

// ============================================================
// ASCII Dialect
// ============================================================

func TestASCII_Frames(t *testing.T) {
	d := ASCII{}
	tests := []struct {
		name string
		got  []byte
		want string
	}{
		{"move", d.Move(1, 500, 1000), "#001P0500T1000!"},
		{"stop", d.Stop(2), "#002PDST!"},
		{"angle", d.ReadAngle(1, nil)[0].Frame, "#001PRAD!"},
		{"volt temp", d.ReadVoltTemp(2)[0].Frame, "#002PRTV!"},
		{"probe", d.Probe(7)[0].Frame, "#007PRTV!"},
		{"write address", d.WriteAddress(3)[0].Frame, "#255PID003!"},
	}
	for _, tt := range tests {
		if string(tt.got) != tt.want {
			t.Errorf("%s: got %q, want %q", tt.name, tt.got, tt.want)
		}
	}
}

func TestASCII_ExchangeTerminators(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  []int
	}{
		{"bang", "1500,28!", []int{1500, 28}},
		{"newline", "1500 28\n", []int{1500, 28}},
		{"crlf", "1500,28\r\n", []int{1500, 28}},
		{"leading crlf", "\r\n1500,28!", []int{1500, 28}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			port := &fakePort{}
			ex, _ := Begin(port, ASCII{}, ASCII{}.ReadVoltTemp(1))
			port.push([]byte(tt.reply))
			status, err := ex.Pump()
			if err != nil || status != Done {
				t.Fatalf("expected Done, got %s, %v", status, err)
			}
			if !reflect.DeepEqual(ex.Values(), tt.want) {
				t.Errorf("got %v, want %v", ex.Values(), tt.want)
			}
		})
	}
}

func TestASCII_BufferFullCompletesReply(t *testing.T) {
	port := &fakePort{}
	ex, _ := Begin(port, ASCII{}, ASCII{}.ReadAngle(1, nil))

	port.push(bytes.Repeat([]byte("x"), replyBufferSize))
	_, err := ex.Pump()
	if !errors.Is(err, ErrShortReply) {
		t.Fatalf("full buffer without digits should fail short, got %v", err)
	}
	if len(ex.Raw()) != replyBufferSize-1 {
		t.Errorf("raw should be bounded to %d bytes, got %d", replyBufferSize-1, len(ex.Raw()))
	}
}

func TestASCII_ProbeNeedsNoValues(t *testing.T) {
	port := &fakePort{}
	ex, _ := Begin(port, ASCII{}, ASCII{}.Probe(1))
	port.push([]byte("#OK!"))
	if status, err := ex.Pump(); err != nil || status != Done {
		t.Errorf("any terminated reply should satisfy a probe, got %s, %v", status, err)
	}
}

// ============================================================
// Exchange
// ============================================================

func TestBegin_NoSteps(t *testing.T) {
	if _, err := Begin(&fakePort{}, Lobot{}, nil); !errors.Is(err, ErrNoSteps) {
		t.Errorf("expected ErrNoSteps, got %v", err)
	}
}

func TestExchange_Resend(t *testing.T) {
	port := &fakePort{}
	ex, _ := Begin(port, ASCII{}, ASCII{}.ReadAngle(4, nil))
	port.push([]byte("13"))
	ex.Pump()

	if err := ex.Resend(); err != nil {
		t.Fatalf("Resend failed: %v", err)
	}
	if len(port.written) != 2 || string(port.written[1]) != "#004PRAD!" {
		t.Fatalf("Resend should rewrite the current step, got %q", port.written)
	}
	if ex.Partial() {
		t.Error("Resend should discard the partial reply")
	}

	port.push([]byte("135!"))
	if status, _ := ex.Pump(); status != Done || ex.Values()[0] != 135 {
		t.Errorf("expected 135 after resend, got %s %v", status, ex.Values())
	}
}
