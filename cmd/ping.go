// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 majeff, mosquito-pt2d

package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/majeff/mosquito-pt2d/internal/response"
)

var (
	pingTimeout int
	pingCount   int
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Test a running bridge with GETINFO round trips",
	Long: `Send <GETINFO> to a running bridge and wait for its reply.

This command tests bidirectional communication with the bridge over the host
serial port or its WebSocket endpoint. Startup info lines and raw bus bytes
are skipped until a GETINFO object arrives.

This is useful for verifying:
  - The host channel is connected
  - HTTP Basic authentication works (WebSocket)
  - The bridge loop is serving commands
  - Which servo addresses the bridge has bound

Exit codes:
  0 - All pings successful
  1 - One or more pings timed out
  2 - Connection error`,
	RunE: runPing,
}

func init() {
	rootCmd.AddCommand(pingCmd)
	pingCmd.Flags().IntVar(&pingTimeout, "timeout", 5, "Timeout in seconds for each ping")
	pingCmd.Flags().IntVar(&pingCount, "count", 3, "Number of pings to send")
}

func runPing(cmd *cobra.Command, args []string) error {
	// Open connection (serial or WebSocket)
	conn, connInfo, err := OpenConnection()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("pt2d - Bridge Ping\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %d seconds per ping\n", pingTimeout)
	fmt.Printf("Count: %d pings\n\n", pingCount)

	infoChan := make(chan response.Info, 1)
	errChan := make(chan error, 1)

	// Reader goroutine
	go func() {
		scanner := bufio.NewScanner(conn)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if !strings.HasPrefix(line, "{") || !strings.Contains(line, `"firmware_version"`) {
				continue
			}
			var info response.Info
			if err := json.Unmarshal([]byte(line), &info); err != nil {
				continue
			}
			infoChan <- info
		}
		if err := scanner.Err(); err != nil {
			errChan <- err
			return
		}
		errChan <- fmt.Errorf("connection closed")
	}()

	success := 0
	for i := 1; i <= pingCount; i++ {
		start := time.Now()
		if _, err := conn.Write([]byte("<GETINFO>\n")); err != nil {
			fmt.Fprintf(os.Stderr, "SEND FAILED: %v\n", err)
			os.Exit(2)
		}

		select {
		case info := <-infoChan:
			success++
			fmt.Printf("Ping %d: reply in %v (v%s, pan=%d tilt=%d, dialect=%s)\n",
				i, time.Since(start).Round(time.Millisecond),
				info.FirmwareVersion, info.PanID, info.TiltID, info.Dialect)

		case err := <-errChan:
			fmt.Fprintf(os.Stderr, "Read error: %v\n", err)
			os.Exit(2)

		case <-time.After(time.Duration(pingTimeout) * time.Second):
			fmt.Printf("Ping %d: TIMEOUT after %ds\n", i, pingTimeout)
		}

		if i < pingCount {
			time.Sleep(time.Second)
		}
	}

	fmt.Printf("\n--- Ping summary ---\n")
	fmt.Printf("%d sent, %d received\n", pingCount, success)
	if success != pingCount {
		os.Exit(1)
	}
	return nil
}
