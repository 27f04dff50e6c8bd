// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 majeff, mosquito-pt2d

package config

import (
	"strings"

	"github.com/majeff/mosquito-pt2d/internal/mathx"
)

// Normalize applies post-validation normalization.
// It is allowed to mutate configuration.
// It MUST be called only after Validate().
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}

	// The tilt margin narrows the tilt window on both sides. It is folded
	// into the limits and cleared, so a second call changes nothing.
	if m := cfg.Axes.TiltMargin; m > 0 {
		t := &cfg.Axes.Tilt
		t.Min += m
		t.Max -= m
		t.Init = mathx.Clamp(t.Init, t.Min, t.Max)
		cfg.Axes.TiltMargin = 0
	}

	cfg.Bus.Dialect = strings.ToLower(strings.TrimSpace(cfg.Bus.Dialect))
	cfg.Log.Level = strings.ToLower(cfg.Log.Level)
}
