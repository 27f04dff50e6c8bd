// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 majeff, mosquito-pt2d

package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/majeff/mosquito-pt2d/internal/capture"
)

var (
	captureChannel string
	captureASCII   bool
)

var captureCmd = &cobra.Command{
	Use:   "capture <file>",
	Short: "Display a recorded traffic capture",
	Long: `Decode a capture file written by "pt2d bridge --capture" and print every
record with its time, channel and direction.

Bus records are decoded as lobot frames; host records, and bus records
with --ascii, are shown as quoted strings.

Examples:
  pt2d capture session.cbor
  pt2d capture session.cbor --channel bus --ascii`,
	Args: cobra.ExactArgs(1),
	RunE: runCapture,
}

func init() {
	rootCmd.AddCommand(captureCmd)
	captureCmd.Flags().StringVar(&captureChannel, "channel", "", "Only show this channel (host, bus)")
	captureCmd.Flags().BoolVar(&captureASCII, "ascii", false, "Bus traffic uses the ascii dialect")
}

func runCapture(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("open capture: %w", err)
	}
	defer f.Close()

	reader := capture.NewReader(f)
	count := 0
	for {
		rec, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("record %d: %w", count+1, err)
		}
		count++
		if captureChannel != "" && rec.Channel != captureChannel {
			continue
		}
		fmt.Println(capture.Format(rec, !captureASCII))
	}

	fmt.Printf("\n%d record(s)\n", count)
	return nil
}
