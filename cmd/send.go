// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 majeff, mosquito-pt2d

package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var sendWait int

var sendCmd = &cobra.Command{
	Use:   "send <command> [command...]",
	Short: "Send host commands to a running bridge",
	Long: `Send one or more host command lines to a running bridge and print what
comes back.

Each argument is sent as its own line. Arguments without angle brackets are
wrapped, so "MOVE:90,45" becomes "<MOVE:90,45>". Arguments starting with '#'
are sent verbatim and reach the bus unchanged.

Replies are printed until --wait milliseconds pass without new output.

Examples:
  pt2d send --port /dev/ttyACM0 STATUS
  pt2d send --url ws://pi.local:8080/bridge "MOVE:180,90" POS`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSend,
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().IntVar(&sendWait, "wait", 2500, "Quiet period in ms that ends the reply")
}

// hostLine normalizes a command argument into a terminated host line
func hostLine(arg string) string {
	arg = strings.TrimSpace(arg)
	if !strings.HasPrefix(arg, "#") && !strings.HasPrefix(arg, "<") {
		arg = "<" + arg + ">"
	}
	return arg + "\n"
}

func runSend(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()
	log.WithField("connection", connInfo).Debug("connected")

	lines := make(chan string, 16)
	go func() {
		scanner := bufio.NewScanner(conn)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	for _, arg := range args {
		line := hostLine(arg)
		if _, err := conn.Write([]byte(line)); err != nil {
			return fmt.Errorf("send %q: %w", strings.TrimSpace(line), err)
		}
	}

	quiet := time.Duration(sendWait) * time.Millisecond
	for {
		select {
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			fmt.Fprintln(os.Stdout, line)
		case <-time.After(quiet):
			return nil
		}
	}
}
