// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 majeff, mosquito-pt2d

package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/majeff/mosquito-pt2d/internal/transport"
	"github.com/majeff/mosquito-pt2d/pkg/lobot"
)

var rawLogASCII bool

var rawLogCmd = &cobra.Command{
	Use:   "raw_log",
	Short: "Display servo bus traffic in human-readable format",
	Long: `Continuously decode and display servo bus frames as they arrive.

Attach a serial adapter to the bus (--port) and every lobot frame is printed
with timestamp, servo ID, command and decoded parameters. Checksum and
framing errors are reported inline. With --ascii the bus is treated as the
text dialect and each terminated reply is printed as a line.

Supports both serial and WebSocket connections.`,
	RunE: runRawLog,
}

func init() {
	rootCmd.AddCommand(rawLogCmd)
	rawLogCmd.Flags().BoolVar(&rawLogASCII, "ascii", false, "Treat traffic as the ascii dialect")
}

func runRawLog(cmd *cobra.Command, args []string) error {
	// Open connection (serial or WebSocket)
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Printf("pt2d - Bus Traffic Log\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	decoder := lobot.NewDecoder()
	var line []byte
	buf := make([]byte, 128)

	for {
		n, err := conn.Read(buf)
		if err != nil {
			// For WebSocket connections, a read error usually means
			// the connection is permanently closed - exit gracefully
			if errors.Is(err, transport.ErrConnectionClosed) {
				log.Info("Connection closed")
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}

		for i := 0; i < n; i++ {
			if rawLogASCII {
				line = append(line, buf[i])
				if buf[i] == '!' || buf[i] == '\n' || len(line) >= 64 {
					fmt.Printf("[%s] %q\n", time.Now().Format("15:04:05.000"), line)
					line = line[:0]
				}
				continue
			}

			frame, err := decoder.DecodeByte(buf[i])
			if err != nil {
				fmt.Printf("[ERROR] %v\n", err)
				continue
			}
			if frame != nil {
				fmt.Print(lobot.FormatFrame(frame))
			}
		}
	}
}
