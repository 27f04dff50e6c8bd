// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 majeff, mosquito-pt2d

// Package response writes bridge replies to the host, one JSON object per
// line.
package response

import (
	"encoding/json"
	"fmt"
	"io"
)

// Status values
const (
	StatusOK      = "ok"
	StatusError   = "error"
	StatusInfo    = "info"
	StatusWarning = "warning"
)

// Position is the reply to a position read
type Position struct {
	Pan  int `json:"pan"`
	Tilt int `json:"tilt"`
}

// FullStatus is the reply to a status read
type FullStatus struct {
	Pan         int `json:"pan"`
	Tilt        int `json:"tilt"`
	PanTemp     int `json:"pan_temp"`
	TiltTemp    int `json:"tilt_temp"`
	PanVoltage  int `json:"pan_voltage"`
	TiltVoltage int `json:"tilt_voltage"`
}

// Temperature is the temperature subset of FullStatus
type Temperature struct {
	PanTemp  int `json:"pan_temp"`
	TiltTemp int `json:"tilt_temp"`
}

// Voltage is the voltage subset of FullStatus
type Voltage struct {
	PanVoltage  int `json:"pan_voltage"`
	TiltVoltage int `json:"tilt_voltage"`
}

// Angle is the reply to a single servo angle read
type Angle struct {
	ID    int `json:"id"`
	Angle int `json:"angle"`
}

// VoltTemp is the reply to a single servo voltage/temperature read
type VoltTemp struct {
	ID      int `json:"id"`
	Voltage int `json:"voltage"`
	Temp    int `json:"temp"`
}

// Status is a plain status line
type Status struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Addresses reports the bound servo addresses
type Addresses struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	PanID   int    `json:"pan_id"`
	TiltID  int    `json:"tilt_id"`
}

// Target reports the outcome of a hardware ID write
type Target struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	TargetID int    `json:"target_id"`
}

// Info is the reply to GETINFO
type Info struct {
	Status          string `json:"status"`
	Message         string `json:"message"`
	PanID           int    `json:"pan_id"`
	TiltID          int    `json:"tilt_id"`
	PanMin          int    `json:"pan_min"`
	PanMax          int    `json:"pan_max"`
	TiltMin         int    `json:"tilt_min"`
	TiltMax         int    `json:"tilt_max"`
	Speed           int    `json:"speed"`
	Dialect         string `json:"dialect"`
	FirmwareVersion string `json:"firmware_version"`
}

// Emitter writes replies to the host channel
type Emitter struct {
	w   io.Writer
	enc *json.Encoder
}

// NewEmitter creates an Emitter writing to w
func NewEmitter(w io.Writer) *Emitter {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &Emitter{w: w, enc: enc}
}

// Emit writes v as one JSON line
func (e *Emitter) Emit(v any) error {
	if err := e.enc.Encode(v); err != nil {
		return fmt.Errorf("emit %T: %w", v, err)
	}
	return nil
}

// OK writes {"status":"ok","message":"OK"}
func (e *Emitter) OK() error {
	return e.Emit(Status{Status: StatusOK, Message: "OK"})
}

// Error writes the uniform error object for err
func (e *Emitter) Error(err error) error {
	return e.Emit(Status{Status: StatusError, Message: string(Of(err))})
}

// Info writes an informational status line
func (e *Emitter) Info(msg string) error {
	return e.Emit(Status{Status: StatusInfo, Message: msg})
}

// Raw copies bus bytes to the host unchanged
func (e *Emitter) Raw(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	if _, err := e.w.Write(data); err != nil {
		return fmt.Errorf("emit raw: %w", err)
	}
	return nil
}

// RawLine copies bus bytes to the host and ends the line, so a following
// JSON object starts on its own line.
func (e *Emitter) RawLine(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	if err := e.Raw(data); err != nil {
		return err
	}
	if data[len(data)-1] != '\n' {
		return e.Raw([]byte{'\n'})
	}
	return nil
}
