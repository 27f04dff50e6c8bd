// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 majeff, mosquito-pt2d

// Package discovery finds the pan and tilt servo addresses by probing the
// bus one ID at a time.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/majeff/mosquito-pt2d/internal/clock"
	"github.com/majeff/mosquito-pt2d/internal/dialect"
	"github.com/majeff/mosquito-pt2d/internal/transport"
)

// Unresolved is the address of a role no servo answered for
const Unresolved uint8 = 0

// pollInterval is the wait between checks for reply bytes
const pollInterval = time.Millisecond

// ErrAddressUnresolved is returned when a role stays unbound
var ErrAddressUnresolved = errors.New("servo address unresolved")

// Config bounds the scan
type Config struct {
	First        uint8
	Last         uint8
	Attempts     int
	ProbeTimeout time.Duration
	RetryDelay   time.Duration
}

// DefaultConfig scans IDs 1-10 three times with 100 ms per probe
func DefaultConfig() Config {
	return Config{
		First:        1,
		Last:         10,
		Attempts:     3,
		ProbeTimeout: 100 * time.Millisecond,
		RetryDelay:   20 * time.Millisecond,
	}
}

// Result holds the bound addresses; Unresolved marks a missing role
type Result struct {
	Pan  uint8
	Tilt uint8
}

// Resolved reports whether both roles are bound to distinct addresses
func (r Result) Resolved() bool {
	return r.Pan != Unresolved && r.Tilt != Unresolved && r.Pan != r.Tilt
}

// Scanner probes the bus. Idle, when set, is called on every poll so the
// caller can keep a watchdog fed during long scans.
type Scanner struct {
	Port    transport.Port
	Dialect dialect.Dialect
	Config  Config
	Clock   clock.Clock
	Idle    func()
	Log     logrus.FieldLogger
}

func (s *Scanner) clock() clock.Clock {
	if s.Clock == nil {
		return clock.System{}
	}
	return s.Clock
}

func (s *Scanner) log() logrus.FieldLogger {
	if s.Log == nil {
		return logrus.StandardLogger()
	}
	return s.Log
}

// Discover binds the first responding ID to pan and the next one, scanning
// again from the start while skipping pan, to tilt. The scan order is
// fixed, so an unchanged population always yields the same result.
func (s *Scanner) Discover(ctx context.Context) (Result, error) {
	var res Result
	var missing []string

	pan, err := s.Find(ctx, Unresolved)
	if err != nil {
		return res, err
	}
	res.Pan = pan
	if pan == Unresolved {
		missing = append(missing, "pan")
	}

	tilt, err := s.Find(ctx, pan)
	if err != nil {
		return res, err
	}
	res.Tilt = tilt
	if tilt == Unresolved {
		missing = append(missing, "tilt")
	}

	s.log().WithFields(logrus.Fields{"pan": res.Pan, "tilt": res.Tilt}).Info("discovery finished")

	if len(missing) > 0 {
		return res, fmt.Errorf("%w: %s", ErrAddressUnresolved, strings.Join(missing, ", "))
	}
	return res, nil
}

// Find scans the configured range up to Attempts times and returns the
// first ID that answers, skipping exclude. It returns Unresolved when no
// ID answers. Only context cancellation is reported as an error.
func (s *Scanner) Find(ctx context.Context, exclude uint8) (uint8, error) {
	attempts := s.Config.Attempts
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			s.wait(s.Config.RetryDelay)
		}
		for id := int(s.Config.First); id <= int(s.Config.Last); id++ {
			if uint8(id) == exclude {
				continue
			}
			ok, err := s.Probe(ctx, uint8(id))
			if err != nil {
				return Unresolved, err
			}
			if ok {
				return uint8(id), nil
			}
		}
	}
	return Unresolved, nil
}

// Probe sends one identity request and waits up to ProbeTimeout for a
// complete reply. A corrupt reply counts as no reply.
func (s *Scanner) Probe(ctx context.Context, id uint8) (bool, error) {
	ex, err := dialect.Begin(s.Port, s.Dialect, s.Dialect.Probe(id))
	if err != nil {
		return false, fmt.Errorf("probe %d: %w", id, err)
	}

	clk := s.clock()
	deadline := clk.Now().Add(s.Config.ProbeTimeout)
	for {
		if err := ctx.Err(); err != nil {
			return false, err
		}

		status, err := ex.Pump()
		if err != nil {
			s.log().WithError(err).WithField("id", id).Debug("probe reply rejected")
			return false, nil
		}
		if status == dialect.Done {
			return true, nil
		}
		if !clk.Now().Before(deadline) {
			return false, nil
		}
		s.wait(pollInterval)
	}
}

func (s *Scanner) wait(d time.Duration) {
	if s.Idle != nil {
		s.Idle()
	}
	s.clock().Sleep(d)
}
