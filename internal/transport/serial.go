// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 majeff, mosquito-pt2d

package transport

import (
	"fmt"
	"io"

	"go.bug.st/serial"
)

// SerialConnection wraps a serial port
type SerialConnection struct {
	port serial.Port
}

func (s *SerialConnection) Read(p []byte) (int, error) {
	return s.port.Read(p)
}

func (s *SerialConnection) Write(p []byte) (int, error) {
	return s.port.Write(p)
}

func (s *SerialConnection) Close() error {
	return s.port.Close()
}

// ResetInputBuffer drops bytes the driver has received but not delivered
func (s *SerialConnection) ResetInputBuffer() error {
	return s.port.ResetInputBuffer()
}

// OpenSerial opens a serial port in 8N1 mode
func OpenSerial(portName string, baudRate int) (io.ReadWriteCloser, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", portName, err)
	}

	return &SerialConnection{port: port}, nil
}

// ListSerialPorts returns the serial ports known to the OS
func ListSerialPorts() ([]string, error) {
	return serial.GetPortsList()
}
