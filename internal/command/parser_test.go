// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 majeff, mosquito-pt2d

package command

import (
	"errors"
	"reflect"
	"testing"
)

// ============================================================
// Vocabulary
// ============================================================

func TestParse_Vocabulary(t *testing.T) {
	tests := []struct {
		line string
		want Command
	}{
		{"<MOVE:135,90>", MoveAbsolute{Pan: 135, Tilt: 90}},
		{"<moveto:-5, 200>", MoveAbsolute{Pan: -5, Tilt: 200}},
		{"<MOVER:10,-10>", MoveRelative{DeltaPan: 10, DeltaTilt: -10}},
		{"<MoveBy:+3,4>", MoveRelative{DeltaPan: 3, DeltaTilt: 4}},
		{"<STOP>", Stop{}},
		{"<home>", Home{}},
		{"<SPEED:50>", SetSpeed{Value: 50}},
		{"<SETSPEED:1>", SetSpeed{Value: 1}},
		{"<SPEED:100>", SetSpeed{Value: 100}},
		{"<POS>", GetPosition{}},
		{"<GETPOS>", GetPosition{}},
		{"<READ>", GetPosition{}},
		{"<READPOS>", GetPosition{}},
		{"<STATUS>", GetStatus{View: ViewFull}},
		{"<INFO>", GetStatus{View: ViewFull}},
		{"<TEMP>", GetStatus{View: ViewTemperature}},
		{"<TEMPERATURE>", GetStatus{View: ViewTemperature}},
		{"<VOLT>", GetStatus{View: ViewVoltage}},
		{"<VOLTAGE>", GetStatus{View: ViewVoltage}},
		{"<READANGLE:1>", ReadAngle{Address: 1}},
		{"<READVOLTEMP:254>", ReadVoltTemp{Address: 254}},
		{"<CAL>", Calibrate{}},
		{"<CALIBRATE>", Calibrate{}},
		{"<CONFIGSERVO:3>", ConfigureServo{Address: 3}},
		{"<SETID:1,2>", SetID{Pan: 1, Tilt: 2}},
		{"<RAW:55 55 01 03 1C DF>", Raw{Payload: "55 55 01 03 1C DF"}},
		{"<GETINFO>", GetInfo{}},
		{"<DETECT>", Detect{}},
		{"<SCAN>", Detect{}},
		{"<STATS>", Stats{}},
		{"#001PRAD!", Raw{Payload: "#001PRAD!", Verbatim: true}},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := Parse(tt.line)
			if err != nil {
				t.Fatalf("Parse(%q) failed: %v", tt.line, err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Parse(%q) = %#v, want %#v", tt.line, got, tt.want)
			}
		})
	}
}

// ============================================================
// Errors
// ============================================================

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		line string
		want error
	}{
		{"", ErrFormat},
		{"MOVE:1,2", ErrFormat},
		{"<MOVE:1,2", ErrFormat},
		{"<", ErrFormat},
		{"<FOOBAR>", ErrUnknownCommand},
		{"<>", ErrUnknownCommand},
		{"<LED:1>", ErrUnknownCommand},
		{"<MOVE>", ErrInvalidParameter},
		{"<MOVE:>", ErrInvalidParameter},
		{"<MOVE:1>", ErrInvalidParameter},
		{"<MOVE:1,2,3>", ErrInvalidParameter},
		{"<MOVE:1,abc>", ErrInvalidParameter},
		{"<MOVE:1.5,2>", ErrInvalidParameter},
		{"<MOVE:1x,2>", ErrInvalidParameter},
		{"<MOVE:--1,2>", ErrInvalidParameter},
		{"<MOVE:1,9999999999>", ErrInvalidParameter},
		{"<SPEED:0>", ErrInvalidParameter},
		{"<SPEED:101>", ErrInvalidParameter},
		{"<READANGLE:0>", ErrInvalidParameter},
		{"<READANGLE:255>", ErrInvalidParameter},
		{"<READVOLTEMP:>", ErrInvalidParameter},
		{"<CONFIGSERVO:-1>", ErrInvalidParameter},
		{"<SETID:3,3>", ErrInvalidParameter},
		{"<SETID:1>", ErrInvalidParameter},
		{"<RAW>", ErrInvalidParameter},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			cmd, err := Parse(tt.line)
			if !errors.Is(err, tt.want) {
				t.Errorf("Parse(%q) = %v, %v; want %v", tt.line, cmd, err, tt.want)
			}
			if cmd != nil {
				t.Errorf("failed parse should return nil command, got %#v", cmd)
			}
		})
	}
}

func TestParseInt(t *testing.T) {
	tests := []struct {
		tok  string
		want int
		ok   bool
	}{
		{"0", 0, true},
		{"42", 42, true},
		{"-42", -42, true},
		{"+7", 7, true},
		{" 12 ", 12, true},
		{"123456789", 123456789, true},
		{"1234567890", 0, false},
		{"", 0, false},
		{"-", 0, false},
		{"1-", 0, false},
		{"0x10", 0, false},
		{"1\t", 0, false},
	}
	for _, tt := range tests {
		got, err := ParseInt(tt.tok)
		if (err == nil) != tt.ok || got != tt.want {
			t.Errorf("ParseInt(%q) = %d, %v; want %d ok=%v", tt.tok, got, err, tt.want, tt.ok)
		}
	}
}

func TestCommand_Keywords(t *testing.T) {
	if (GetStatus{View: ViewVoltage}).Keyword() != "STATUS" {
		t.Error("GetStatus keyword should be STATUS")
	}
	if ViewTemperature.String() != "temperature" || ViewFull.String() != "full" {
		t.Error("unexpected view names")
	}
}
