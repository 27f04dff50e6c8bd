// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 majeff, mosquito-pt2d

// Package capture records bridge traffic to a file of CBOR records and
// reads it back for inspection.
package capture

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/majeff/mosquito-pt2d/internal/transport"
	"github.com/majeff/mosquito-pt2d/pkg/lobot"
)

// Channel names
const (
	ChannelHost = "host"
	ChannelBus  = "bus"
)

// Record is one chunk of traffic
type Record struct {
	Time    int64               `cbor:"1,keyasint"` // unix nanoseconds
	Channel string              `cbor:"2,keyasint"`
	Dir     transport.Direction `cbor:"3,keyasint"`
	Data    []byte              `cbor:"4,keyasint"`
}

// At returns the record time
func (r Record) At() time.Time {
	return time.Unix(0, r.Time)
}

// Writer appends records. It is safe for concurrent use since stream
// readers and the scheduler tap from different goroutines.
type Writer struct {
	mu     sync.Mutex
	out    io.Writer
	closer io.Closer
	enc    *cbor.Encoder
	count  int
	err    error
}

// NewWriter writes records to w
func NewWriter(w io.Writer) *Writer {
	cw := &Writer{out: w, enc: cbor.NewEncoder(w)}
	if c, ok := w.(io.Closer); ok {
		cw.closer = c
	}
	return cw
}

// Create truncates or creates path and writes records to it
func Create(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create capture file: %w", err)
	}
	return NewWriter(f), nil
}

// Write appends one record. After the first failure every call returns
// that error.
func (w *Writer) Write(rec Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	if err := w.enc.Encode(rec); err != nil {
		w.err = fmt.Errorf("write capture record: %w", err)
		return w.err
	}
	w.count++
	return nil
}

// Tap returns a transport.Tap recording traffic for channel
func (w *Writer) Tap(channel string) transport.Tap {
	return func(dir transport.Direction, data []byte) {
		_ = w.Write(Record{
			Time:    time.Now().UnixNano(),
			Channel: channel,
			Dir:     dir,
			Data:    data,
		})
	}
}

// Count returns how many records were written
func (w *Writer) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count
}

// Close closes the underlying file, if any
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closer == nil {
		return nil
	}
	return w.closer.Close()
}

// Reader iterates records
type Reader struct {
	dec *cbor.Decoder
}

// NewReader reads records from r
func NewReader(r io.Reader) *Reader {
	return &Reader{dec: cbor.NewDecoder(r)}
}

// Next returns the next record, or io.EOF at the end of the capture
func (r *Reader) Next() (Record, error) {
	var rec Record
	if err := r.dec.Decode(&rec); err != nil {
		if errors.Is(err, io.EOF) {
			return rec, io.EOF
		}
		return rec, fmt.Errorf("read capture record: %w", err)
	}
	return rec, nil
}

// Format renders a record for humans. Bus records in the lobot dialect
// are decoded frame by frame; everything else is shown quoted.
func Format(rec Record, binary bool) string {
	prefix := fmt.Sprintf("%s %-4s %-3s ", rec.At().Format("15:04:05.000"), rec.Channel, rec.Dir)
	if rec.Channel != ChannelBus || !binary {
		return prefix + fmt.Sprintf("%q", rec.Data)
	}

	out := prefix
	buf := rec.Data
	for len(buf) > 0 {
		f, n, err := lobot.Decode(buf)
		if err != nil {
			out += fmt.Sprintf("[%v] %s", err, lobot.FormatHex(buf))
			break
		}
		out += strings.TrimSuffix(lobot.FormatFrame(f), "\n") + " "
		buf = buf[n:]
	}
	return out
}
