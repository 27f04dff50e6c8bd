// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 majeff, mosquito-pt2d

package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/majeff/mosquito-pt2d/internal/dialect"
	"github.com/majeff/mosquito-pt2d/pkg/lobot"
)

var frameCmd = &cobra.Command{
	Use:   "frame",
	Short: "Encode or decode lobot bus frames",
	Long: `Build lobot frames by hand or decode captured bytes offline.

Examples:
  pt2d frame encode 1 POS_READ
  pt2d frame encode 1 MOVE_TIME_WRITE "F4 01 E8 03"
  pt2d frame decode "55 55 01 05 1C F4 01 E8"`,
}

var frameEncodeCmd = &cobra.Command{
	Use:   "encode <id> <command> [payload hex]",
	Short: "Encode a frame",
	Args:  cobra.RangeArgs(2, 3),
	RunE:  runFrameEncode,
}

var frameDecodeCmd = &cobra.Command{
	Use:   "decode <hex>",
	Short: "Decode one or more frames",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runFrameDecode,
}

func init() {
	rootCmd.AddCommand(frameCmd)
	frameCmd.AddCommand(frameEncodeCmd)
	frameCmd.AddCommand(frameDecodeCmd)
}

// parseCommandCode accepts a command number or its name (POS_READ)
func parseCommandCode(s string) (uint8, error) {
	if v, err := strconv.ParseUint(s, 0, 8); err == nil {
		return uint8(v), nil
	}
	name := strings.ToUpper(s)
	for c := 0; c <= 255; c++ {
		if lobot.FormatCommand(uint8(c)) == name {
			return uint8(c), nil
		}
	}
	return 0, fmt.Errorf("unknown command %q", s)
}

func runFrameEncode(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseUint(args[0], 0, 8)
	if err != nil {
		return fmt.Errorf("invalid id %q: %w", args[0], err)
	}
	code, err := parseCommandCode(args[1])
	if err != nil {
		return err
	}

	var payload []byte
	if len(args) == 3 {
		payload, err = dialect.Lobot{}.Raw(args[2])
		if err != nil {
			return err
		}
	}
	if len(payload) > lobot.MaxPayload {
		return fmt.Errorf("payload too long: %d bytes, max %d", len(payload), lobot.MaxPayload)
	}

	fmt.Println(lobot.FormatHex(lobot.Encode(uint8(id), code, payload)))
	return nil
}

func runFrameDecode(cmd *cobra.Command, args []string) error {
	buf, err := dialect.Lobot{}.Raw(strings.Join(args, " "))
	if err != nil {
		return err
	}

	for len(buf) > 0 {
		f, n, err := lobot.Decode(buf)
		if err != nil {
			return fmt.Errorf("%w at: %s", err, lobot.FormatHex(buf))
		}
		fmt.Print(lobot.FormatFrame(f))
		buf = buf[n:]
	}
	return nil
}
