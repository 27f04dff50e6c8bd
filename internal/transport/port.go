// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 majeff, mosquito-pt2d

// Package transport provides the byte channels the bridge runs on: a
// non-blocking Port abstraction and adapters for serial ports, websockets
// and in-process pipes.
package transport

import (
	"errors"
	"io"
	"sync"
)

// Port is a byte-oriented channel polled by the scheduler. Available and
// ReadByte never block.
type Port interface {
	Write(p []byte) (int, error)
	Available() int
	ReadByte() (byte, error)
}

// Direction of a traffic record
type Direction uint8

const (
	DirIn Direction = iota
	DirOut
)

func (d Direction) String() string {
	if d == DirOut {
		return "out"
	}
	return "in"
}

// Tap observes traffic flowing through a Stream
type Tap func(dir Direction, data []byte)

// ErrEmpty is returned by ReadByte when no byte is buffered
var ErrEmpty = errors.New("transport: no data available")

// DefaultBufferSize bounds the receive buffer of a Stream
const DefaultBufferSize = 512

// StreamConfig configures a Stream
type StreamConfig struct {
	Name string

	// BufferSize bounds unread input; bytes beyond it are dropped.
	BufferSize int

	// FlushBeforeWrite discards unread input before every write so a stale
	// reply is never attributed to the next request.
	FlushBeforeWrite bool

	Tap Tap
}

// Stream adapts a blocking io.ReadWriteCloser to Port. A reader goroutine
// moves incoming bytes into a bounded buffer; nothing else is shared.
type Stream struct {
	conn io.ReadWriteCloser
	cfg  StreamConfig

	mu      sync.Mutex
	buf     []byte
	dropped uint64
	err     error

	done chan struct{}
}

// inputResetter is implemented by serial ports
type inputResetter interface {
	ResetInputBuffer() error
}

// NewStream wraps conn and starts its reader goroutine.
func NewStream(conn io.ReadWriteCloser, cfg StreamConfig) *Stream {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultBufferSize
	}
	s := &Stream{
		conn: conn,
		cfg:  cfg,
		buf:  make([]byte, 0, cfg.BufferSize),
		done: make(chan struct{}),
	}
	go s.readLoop()
	return s
}

func (s *Stream) readLoop() {
	defer close(s.done)
	chunk := make([]byte, 128)
	for {
		n, err := s.conn.Read(chunk)
		if n > 0 {
			s.mu.Lock()
			room := s.cfg.BufferSize - len(s.buf)
			keep := n
			if keep > room {
				keep = room
				s.dropped += uint64(n - room)
			}
			s.buf = append(s.buf, chunk[:keep]...)
			s.mu.Unlock()

			if s.cfg.Tap != nil {
				s.cfg.Tap(DirIn, append([]byte(nil), chunk[:n]...))
			}
		}
		if err != nil {
			s.mu.Lock()
			s.err = err
			s.mu.Unlock()
			return
		}
	}
}

// Write sends p, flushing unread input first when configured to.
func (s *Stream) Write(p []byte) (int, error) {
	if s.cfg.FlushBeforeWrite {
		s.Flush()
	}
	n, err := s.conn.Write(p)
	if s.cfg.Tap != nil && n > 0 {
		s.cfg.Tap(DirOut, append([]byte(nil), p[:n]...))
	}
	return n, err
}

// Flush discards all unread input
func (s *Stream) Flush() {
	s.mu.Lock()
	s.buf = s.buf[:0]
	s.mu.Unlock()
	if r, ok := s.conn.(inputResetter); ok {
		_ = r.ResetInputBuffer()
	}
}

// Available returns the number of buffered input bytes
func (s *Stream) Available() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buf)
}

// ReadByte pops one buffered byte or returns ErrEmpty. Once the buffer is
// drained after the connection failed, the read error is returned instead.
func (s *Stream) ReadByte() (byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.buf) == 0 {
		if s.err != nil {
			return 0, s.err
		}
		return 0, ErrEmpty
	}
	b := s.buf[0]
	s.buf = s.buf[1:]
	return b, nil
}

// Err returns the error that stopped the reader, if any
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Dropped returns how many input bytes were discarded on overflow
func (s *Stream) Dropped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Name returns the configured stream name
func (s *Stream) Name() string {
	return s.cfg.Name
}

// Close closes the underlying connection and waits for the reader to exit
func (s *Stream) Close() error {
	err := s.conn.Close()
	<-s.done
	return err
}
