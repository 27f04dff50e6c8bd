// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 majeff, mosquito-pt2d

package dialect

import (
	"errors"
	"fmt"

	"github.com/majeff/mosquito-pt2d/internal/transport"
)

// Status of an Exchange after a Pump
type Status int

const (
	Pending Status = iota
	Done
)

func (s Status) String() string {
	if s == Done {
		return "done"
	}
	return "pending"
}

// Exchange drives a sequence of steps over a port. It never blocks: Pump
// consumes whatever bytes are available and completes at most one step.
type Exchange struct {
	port   transport.Port
	reader replyReader
	steps  []Step
	index  int
	values []int
	last   []byte
}

// Begin writes the first step and returns the running exchange.
func Begin(port transport.Port, d Dialect, steps []Step) (*Exchange, error) {
	if len(steps) == 0 {
		return nil, ErrNoSteps
	}
	e := &Exchange{
		port:   port,
		reader: d.newReader(),
		steps:  steps,
	}
	if err := e.send(); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Exchange) send() error {
	step := e.steps[e.index]
	e.reader.start(step)
	if _, err := e.port.Write(step.Frame); err != nil {
		return fmt.Errorf("write step %d: %w", e.index, err)
	}
	return nil
}

// Pump reads available bytes. It returns Done once every step has been
// answered. A reply with too few values fails with ErrShortReply; framing
// errors from the reader are returned unchanged.
func (e *Exchange) Pump() (Status, error) {
	for e.port.Available() > 0 {
		b, err := e.port.ReadByte()
		if errors.Is(err, transport.ErrEmpty) {
			break
		}
		if err != nil {
			return Pending, err
		}

		values, done, err := e.reader.feed(b)
		if err != nil {
			e.keepRaw()
			return Pending, err
		}
		if !done {
			continue
		}

		e.keepRaw()
		step := e.steps[e.index]
		if len(values) < step.Expect {
			return Pending, fmt.Errorf("%w: want %d, got %d", ErrShortReply, step.Expect, len(values))
		}
		for _, v := range values[:step.Expect] {
			if step.Convert != nil {
				v = step.Convert(v)
			}
			e.values = append(e.values, v)
		}

		e.index++
		if e.index == len(e.steps) {
			return Done, nil
		}
		return Pending, e.send()
	}
	return Pending, nil
}

func (e *Exchange) keepRaw() {
	e.last = append(e.last[:0], e.reader.raw()...)
}

// Resend writes the current step again, used after another frame was sent
// on the bus and the flush discarded a partial reply.
func (e *Exchange) Resend() error {
	return e.send()
}

// Values returns the values collected so far
func (e *Exchange) Values() []int {
	return e.values
}

// Raw returns the bytes of the last completed or failed reply, or the
// bytes received so far for the current one.
func (e *Exchange) Raw() []byte {
	if e.reader.partial() {
		return e.reader.raw()
	}
	return e.last
}

// Partial reports whether bytes of an unfinished reply are buffered
func (e *Exchange) Partial() bool {
	return e.reader.partial()
}
