// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 majeff, mosquito-pt2d

package discovery

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/majeff/mosquito-pt2d/internal/clock"
	"github.com/majeff/mosquito-pt2d/internal/dialect"
	"github.com/majeff/mosquito-pt2d/internal/simbus"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.Out = io.Discard
	return l
}

func newScanner(t *testing.T, name string, servos ...simbus.Servo) (*Scanner, *simbus.Bus, *clock.Manual) {
	t.Helper()
	d, err := dialect.New(name)
	if err != nil {
		t.Fatalf("dialect: %v", err)
	}
	clk := clock.NewManual(time.Unix(0, 0))
	bus := simbus.New(name, clk, servos...)
	return &Scanner{
		Port:    bus,
		Dialect: d,
		Config:  DefaultConfig(),
		Clock:   clk,
		Log:     quietLogger(),
	}, bus, clk
}

// ============================================================
// Discover
// ============================================================

func TestDiscover_BindsFirstTwoResponders(t *testing.T) {
	for _, name := range []string{dialect.NameLobot, dialect.NameASCII} {
		t.Run(name, func(t *testing.T) {
			s, _, _ := newScanner(t, name, simbus.Servo{ID: 3}, simbus.Servo{ID: 7})
			res, err := s.Discover(context.Background())
			if err != nil {
				t.Fatalf("Discover failed: %v", err)
			}
			if res.Pan != 3 || res.Tilt != 7 {
				t.Errorf("expected pan 3 tilt 7, got %+v", res)
			}
			if !res.Resolved() {
				t.Error("result should be resolved")
			}
		})
	}
}

func TestDiscover_Idempotent(t *testing.T) {
	s, _, _ := newScanner(t, dialect.NameLobot,
		simbus.Servo{ID: 9}, simbus.Servo{ID: 2}, simbus.Servo{ID: 5})

	first, err := s.Discover(context.Background())
	if err != nil {
		t.Fatalf("first Discover failed: %v", err)
	}
	second, err := s.Discover(context.Background())
	if err != nil {
		t.Fatalf("second Discover failed: %v", err)
	}
	if first != second {
		t.Errorf("discovery not idempotent: %+v then %+v", first, second)
	}
	if first.Pan == first.Tilt {
		t.Errorf("pan and tilt must differ, got %+v", first)
	}
	if first.Pan != 2 || first.Tilt != 5 {
		t.Errorf("expected lowest IDs 2 and 5, got %+v", first)
	}
}

func TestDiscover_SingleServoLeavesTiltUnresolved(t *testing.T) {
	s, _, _ := newScanner(t, dialect.NameLobot, simbus.Servo{ID: 4})

	res, err := s.Discover(context.Background())
	if !errors.Is(err, ErrAddressUnresolved) {
		t.Fatalf("expected ErrAddressUnresolved, got %v", err)
	}
	if res.Pan != 4 || res.Tilt != Unresolved {
		t.Errorf("expected pan 4 and unresolved tilt, got %+v", res)
	}
	if res.Resolved() {
		t.Error("result should not be resolved")
	}
}

func TestDiscover_EmptyBus(t *testing.T) {
	s, _, _ := newScanner(t, dialect.NameLobot)

	res, err := s.Discover(context.Background())
	if !errors.Is(err, ErrAddressUnresolved) {
		t.Fatalf("expected ErrAddressUnresolved, got %v", err)
	}
	if res != (Result{}) {
		t.Errorf("expected both roles unresolved, got %+v", res)
	}
}

func TestDiscover_SilentAndCorruptServosSkipped(t *testing.T) {
	s, bus, _ := newScanner(t, dialect.NameLobot,
		simbus.Servo{ID: 1, Silent: true}, simbus.Servo{ID: 2}, simbus.Servo{ID: 3})

	res, err := s.Discover(context.Background())
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}
	if res.Pan != 2 || res.Tilt != 3 {
		t.Errorf("silent servo should be skipped, got %+v", res)
	}

	bus.SetFaults(simbus.Faults{Corrupt: true})
	res, _ = s.Discover(context.Background())
	if res != (Result{}) {
		t.Errorf("corrupt replies should not bind roles, got %+v", res)
	}
}

func TestDiscover_ToleratesLatencyAndEcho(t *testing.T) {
	s, bus, _ := newScanner(t, dialect.NameLobot, simbus.Servo{ID: 1}, simbus.Servo{ID: 2})
	bus.SetFaults(simbus.Faults{Echo: true, Latency: 30 * time.Millisecond})

	res, err := s.Discover(context.Background())
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}
	if res.Pan != 1 || res.Tilt != 2 {
		t.Errorf("expected pan 1 tilt 2, got %+v", res)
	}
}

func TestDiscover_LatencyBeyondTimeout(t *testing.T) {
	s, bus, _ := newScanner(t, dialect.NameLobot, simbus.Servo{ID: 1})
	bus.SetFaults(simbus.Faults{Latency: 500 * time.Millisecond})
	s.Config.Attempts = 1

	res, _ := s.Discover(context.Background())
	if res.Pan != Unresolved {
		t.Errorf("reply after probe timeout should not bind, got %+v", res)
	}
}

// ============================================================
// Probe and hooks
// ============================================================

func TestProbe_FeedsIdleHook(t *testing.T) {
	s, _, clk := newScanner(t, dialect.NameLobot)
	calls := 0
	s.Idle = func() { calls++ }

	start := clk.Now()
	ok, err := s.Probe(context.Background(), 1)
	if err != nil || ok {
		t.Fatalf("probe of empty bus should time out quietly, got %v, %v", ok, err)
	}
	if calls == 0 {
		t.Error("idle hook should be called while waiting")
	}
	if elapsed := clk.Now().Sub(start); elapsed < s.Config.ProbeTimeout {
		t.Errorf("probe should wait the full timeout, waited %v", elapsed)
	}
}

func TestDiscover_ContextCancelled(t *testing.T) {
	s, _, _ := newScanner(t, dialect.NameLobot, simbus.Servo{ID: 1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.Discover(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestFind_ExcludesAddress(t *testing.T) {
	s, _, _ := newScanner(t, dialect.NameLobot, simbus.Servo{ID: 1}, simbus.Servo{ID: 2})
	id, err := s.Find(context.Background(), 1)
	if err != nil || id != 2 {
		t.Errorf("expected 2 when excluding 1, got %d, %v", id, err)
	}
}
