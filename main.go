// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 majeff, mosquito-pt2d
//
// pt2d - Pan/Tilt Bus-Servo Bridge
//
// Translates line-based host commands into LewanSoul/Lobot bus servo
// frames and aggregates multi-servo replies into one JSON object per line.

package main

import (
	"os"

	"github.com/majeff/mosquito-pt2d/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
