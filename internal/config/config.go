// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 majeff, mosquito-pt2d

// Package config loads bridge settings: defaults, then a YAML file, then
// PT2D_ environment variables. Command line flags are applied by cmd.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v6"
	"gopkg.in/yaml.v3"

	"github.com/majeff/mosquito-pt2d/internal/discovery"
	"github.com/majeff/mosquito-pt2d/internal/motion"
)

// EnvPrefix prefixes every environment variable
const EnvPrefix = "PT2D_"

// FirmwareVersion is reported by GETINFO
const FirmwareVersion = "2.1.0"

type Config struct {
	Host      HostConfig      `yaml:"host" envPrefix:"HOST_"`
	Bus       BusConfig       `yaml:"bus" envPrefix:"BUS_"`
	Discovery DiscoveryConfig `yaml:"discovery" envPrefix:"DISCOVERY_"`
	Axes      AxesConfig      `yaml:"axes" envPrefix:"AXES_"`
	Motion    MotionConfig    `yaml:"motion" envPrefix:"MOTION_"`
	Bridge    BridgeConfig    `yaml:"bridge" envPrefix:"BRIDGE_"`
	Capture   CaptureConfig   `yaml:"capture" envPrefix:"CAPTURE_"`
	Log       LogConfig       `yaml:"log" envPrefix:"LOG_"`
}

// ---- HOST ----

type HostConfig struct {
	Port     string `yaml:"port" env:"PORT"`
	Baud     int    `yaml:"baud" env:"BAUD"`
	Listen   string `yaml:"listen" env:"LISTEN"` // websocket address, replaces the serial port
	Username string `yaml:"username" env:"USERNAME"`
}

// ---- BUS ----

type BusConfig struct {
	Port     string `yaml:"port" env:"PORT"`
	Baud     int    `yaml:"baud" env:"BAUD"`
	Dialect  string `yaml:"dialect" env:"DIALECT"`
	Simulate bool   `yaml:"simulate" env:"SIMULATE"`
}

// ---- DISCOVERY ----

type DiscoveryConfig struct {
	First          int `yaml:"first" env:"FIRST"`
	Last           int `yaml:"last" env:"LAST"`
	Attempts       int `yaml:"attempts" env:"ATTEMPTS"`
	ProbeTimeoutMs int `yaml:"probe_timeout_ms" env:"PROBE_TIMEOUT_MS"`
	RetryDelayMs   int `yaml:"retry_delay_ms" env:"RETRY_DELAY_MS"`
	StartupDelayMs int `yaml:"startup_delay_ms" env:"STARTUP_DELAY_MS"`
}

// ---- AXES ----

type AxisConfig struct {
	Min   int `yaml:"min" env:"MIN"`
	Max   int `yaml:"max" env:"MAX"`
	Init  int `yaml:"init" env:"INIT"`
	Range int `yaml:"range" env:"RANGE"`
}

type AxesConfig struct {
	Pan        AxisConfig `yaml:"pan" envPrefix:"PAN_"`
	Tilt       AxisConfig `yaml:"tilt" envPrefix:"TILT_"`
	TiltMargin int        `yaml:"tilt_margin" env:"TILT_MARGIN"`
}

// ---- MOTION ----

type MotionConfig struct {
	DefaultSpeed int `yaml:"default_speed" env:"DEFAULT_SPEED"`
	SlowestMs    int `yaml:"slowest_ms" env:"SLOWEST_MS"`
	FastestMs    int `yaml:"fastest_ms" env:"FASTEST_MS"`
}

// ---- BRIDGE ----

type BridgeConfig struct {
	SessionTimeoutMs int `yaml:"session_timeout_ms" env:"SESSION_TIMEOUT_MS"`
	ReplyTimeoutMs   int `yaml:"reply_timeout_ms" env:"REPLY_TIMEOUT_MS"`
	LoopDelayMs      int `yaml:"loop_delay_ms" env:"LOOP_DELAY_MS"`
	WatchdogMs       int `yaml:"watchdog_ms" env:"WATCHDOG_MS"`
	SweepStepMs      int `yaml:"sweep_step_ms" env:"SWEEP_STEP_MS"`
	SweepMoveMs      int `yaml:"sweep_move_ms" env:"SWEEP_MOVE_MS"`
}

// ---- CAPTURE / LOG ----

type CaptureConfig struct {
	Path string `yaml:"path" env:"PATH"`
}

type LogConfig struct {
	Level string `yaml:"level" env:"LEVEL"`
}

// Default returns the stock bridge configuration
func Default() *Config {
	return &Config{
		Host: HostConfig{Baud: 115200},
		Bus:  BusConfig{Baud: 115200, Dialect: "lobot"},
		Discovery: DiscoveryConfig{
			First:          1,
			Last:           10,
			Attempts:       3,
			ProbeTimeoutMs: 100,
			RetryDelayMs:   20,
			StartupDelayMs: 1000,
		},
		Axes: AxesConfig{
			Pan:        AxisConfig{Min: 0, Max: 270, Init: 135, Range: 270},
			Tilt:       AxisConfig{Min: 0, Max: 180, Init: 90, Range: 270},
			TiltMargin: 15,
		},
		Motion: MotionConfig{DefaultSpeed: 50, SlowestMs: 5000, FastestMs: 100},
		Bridge: BridgeConfig{
			SessionTimeoutMs: 2000,
			ReplyTimeoutMs:   1000,
			LoopDelayMs:      5,
			WatchdogMs:       2000,
			SweepStepMs:      2500,
			SweepMoveMs:      2000,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load builds a configuration from defaults, the YAML file at path (when
// not empty) and the environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := env.Parse(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}

func ms(v int) time.Duration {
	return time.Duration(v) * time.Millisecond
}

func (a AxisConfig) axis() motion.Axis {
	return motion.Axis{Min: a.Min, Max: a.Max, Init: a.Init, Range: a.Range}
}

// Limits returns the axis windows. Call after Normalize so the tilt
// margin is applied.
func (c *Config) Limits() motion.Limits {
	return motion.Limits{Pan: c.Axes.Pan.axis(), Tilt: c.Axes.Tilt.axis()}
}

// Profile returns the speed to duration mapping
func (c *Config) Profile() motion.Profile {
	return motion.Profile{SlowestMs: c.Motion.SlowestMs, FastestMs: c.Motion.FastestMs}
}

// ScanConfig returns the discovery settings
func (c *Config) ScanConfig() discovery.Config {
	return discovery.Config{
		First:        uint8(c.Discovery.First),
		Last:         uint8(c.Discovery.Last),
		Attempts:     c.Discovery.Attempts,
		ProbeTimeout: ms(c.Discovery.ProbeTimeoutMs),
		RetryDelay:   ms(c.Discovery.RetryDelayMs),
	}
}

// StartupDelay is the wait for servos to power up before discovery
func (c *Config) StartupDelay() time.Duration { return ms(c.Discovery.StartupDelayMs) }

// SessionTimeout is the budget of one composite query
func (c *Config) SessionTimeout() time.Duration { return ms(c.Bridge.SessionTimeoutMs) }

// ReplyTimeout is the budget of one single-servo read
func (c *Config) ReplyTimeout() time.Duration { return ms(c.Bridge.ReplyTimeoutMs) }

// LoopDelay is the pause between scheduler iterations
func (c *Config) LoopDelay() time.Duration { return ms(c.Bridge.LoopDelayMs) }

// WatchdogTimeout is the scheduler stall limit
func (c *Config) WatchdogTimeout() time.Duration { return ms(c.Bridge.WatchdogMs) }

// SweepStep is the dwell between calibration moves
func (c *Config) SweepStep() time.Duration { return ms(c.Bridge.SweepStepMs) }
