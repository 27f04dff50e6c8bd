// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 majeff, mosquito-pt2d

package cmd

import (
	"bufio"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Interactive TUI for driving a running bridge",
	Long: `Drive a running bridge from an interactive terminal UI.

Type host commands at the prompt; angle brackets are optional, so MOVE:90,45
sends <MOVE:90,45>. Replies scroll in the output pane and are colored by
status. Raw bus bytes passed through by the bridge are shown as they arrive.

Keys:
  Enter        send the command
  Up/Down      command history
  PgUp/PgDown  scroll output
  Esc, Ctrl+C  quit

Supports both serial and WebSocket connections.`,
	RunE: runConsole,
}

func init() {
	rootCmd.AddCommand(consoleCmd)
}

func runConsole(cmd *cobra.Command, args []string) error {
	// Open connection (serial or WebSocket)
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	m := initialConsoleModel(conn, connInfo)
	p := tea.NewProgram(m, tea.WithAltScreen())

	// Reader goroutine feeds reply lines to the TUI
	go func() {
		scanner := bufio.NewScanner(conn)
		for scanner.Scan() {
			p.Send(consoleLineMsg(scanner.Text()))
		}
		p.Send(consoleClosedMsg{err: scanner.Err()})
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
