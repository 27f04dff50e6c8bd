// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 majeff, mosquito-pt2d

package config

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/majeff/mosquito-pt2d/internal/dialect"
	"github.com/majeff/mosquito-pt2d/internal/motion"
	"github.com/majeff/mosquito-pt2d/pkg/lobot"
)

// Validate checks configuration correctness.
// It performs declarative validation only.
// It MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}

	// ---- channels ----

	if cfg.Host.Port == "" && cfg.Host.Listen == "" {
		return errors.New("host: port or listen address required")
	}
	if cfg.Host.Port != "" && cfg.Host.Baud <= 0 {
		return fmt.Errorf("host: baud must be > 0, got %d", cfg.Host.Baud)
	}
	if !cfg.Bus.Simulate {
		if cfg.Bus.Port == "" {
			return errors.New("bus: port required unless simulate is set")
		}
		if cfg.Bus.Baud <= 0 {
			return fmt.Errorf("bus: baud must be > 0, got %d", cfg.Bus.Baud)
		}
	}
	if _, err := dialect.New(cfg.Bus.Dialect); err != nil {
		return fmt.Errorf("bus: %w", err)
	}

	// ---- discovery ----

	d := cfg.Discovery
	if d.First < lobot.IDMin || d.Last > lobot.IDMax || d.First > d.Last {
		return fmt.Errorf("discovery: range %d-%d must lie within %d-%d", d.First, d.Last, lobot.IDMin, lobot.IDMax)
	}
	if d.Last-d.First < 1 {
		return fmt.Errorf("discovery: range %d-%d must hold two addresses", d.First, d.Last)
	}
	if d.Attempts < 1 {
		return fmt.Errorf("discovery: attempts must be >= 1, got %d", d.Attempts)
	}
	if d.ProbeTimeoutMs <= 0 {
		return fmt.Errorf("discovery: probe_timeout_ms must be > 0, got %d", d.ProbeTimeoutMs)
	}
	if d.RetryDelayMs < 0 || d.StartupDelayMs < 0 {
		return errors.New("discovery: delays must be >= 0")
	}

	// ---- axes ----

	if err := validateAxis("pan", cfg.Axes.Pan); err != nil {
		return err
	}
	if err := validateAxis("tilt", cfg.Axes.Tilt); err != nil {
		return err
	}
	m := cfg.Axes.TiltMargin
	if m < 0 {
		return fmt.Errorf("axes: tilt_margin must be >= 0, got %d", m)
	}
	if cfg.Axes.Tilt.Max-cfg.Axes.Tilt.Min <= 2*m {
		return fmt.Errorf("axes: tilt_margin %d leaves no travel in %d-%d", m, cfg.Axes.Tilt.Min, cfg.Axes.Tilt.Max)
	}

	// ---- motion ----

	mo := cfg.Motion
	if mo.DefaultSpeed < motion.MinSpeed || mo.DefaultSpeed > motion.MaxSpeed {
		return fmt.Errorf("motion: default_speed must be %d-%d, got %d", motion.MinSpeed, motion.MaxSpeed, mo.DefaultSpeed)
	}
	if mo.FastestMs <= 0 || mo.SlowestMs < mo.FastestMs {
		return fmt.Errorf("motion: need 0 < fastest_ms <= slowest_ms, got %d/%d", mo.FastestMs, mo.SlowestMs)
	}

	// ---- bridge ----

	b := cfg.Bridge
	for name, v := range map[string]int{
		"session_timeout_ms": b.SessionTimeoutMs,
		"reply_timeout_ms":   b.ReplyTimeoutMs,
		"watchdog_ms":        b.WatchdogMs,
		"sweep_step_ms":      b.SweepStepMs,
		"sweep_move_ms":      b.SweepMoveMs,
	} {
		if v <= 0 {
			return fmt.Errorf("bridge: %s must be > 0, got %d", name, v)
		}
	}
	if b.LoopDelayMs < 0 || b.LoopDelayMs >= b.WatchdogMs {
		return fmt.Errorf("bridge: loop_delay_ms must be >= 0 and below watchdog_ms, got %d", b.LoopDelayMs)
	}

	// ---- log ----

	if _, err := logrus.ParseLevel(cfg.Log.Level); err != nil {
		return fmt.Errorf("log: %w", err)
	}

	return nil
}

func validateAxis(name string, a AxisConfig) error {
	if a.Range <= 0 {
		return fmt.Errorf("axes.%s: range must be > 0, got %d", name, a.Range)
	}
	if a.Min < 0 || a.Max > a.Range || a.Min >= a.Max {
		return fmt.Errorf("axes.%s: need 0 <= min < max <= range, got %d-%d of %d", name, a.Min, a.Max, a.Range)
	}
	if a.Init < a.Min || a.Init > a.Max {
		return fmt.Errorf("axes.%s: init %d outside %d-%d", name, a.Init, a.Min, a.Max)
	}
	return nil
}
