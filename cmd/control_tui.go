// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 majeff, mosquito-pt2d

package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/majeff/mosquito-pt2d/internal/response"
)

//////////////////////////////////////////////////////////////
// Types
//////////////////////////////////////////////////////////////

// lineKind classifies an output line for coloring
type lineKind int

const (
	lineSent lineKind = iota
	lineOK
	lineInfo
	lineWarning
	lineError
	lineData
	lineRaw
)

// consoleLine is one entry in the output pane
type consoleLine struct {
	timestamp time.Time
	text      string
	kind      lineKind
}

// consoleModel is the Bubble Tea model for the console TUI
type consoleModel struct {
	conn     io.Writer
	connInfo string

	input   textinput.Model
	output  viewport.Model
	lines   []consoleLine
	maxLogs int

	history    []string
	historyIdx int

	// Counters
	sent     int
	received int
	errors   int

	// UI state
	width          int
	height         int
	quitting       bool
	connectionLost bool
}

//////////////////////////////////////////////////////////////
// Messages
//////////////////////////////////////////////////////////////

type consoleLineMsg string

type consoleClosedMsg struct {
	err error
}

//////////////////////////////////////////////////////////////
// Styles
//////////////////////////////////////////////////////////////

var (
	consoleTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("12")).
				Background(lipgloss.Color("235")).
				Padding(0, 1)

	consoleHeaderStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("241"))

	consoleLabelStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("12")).
				Bold(true)

	consoleBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	lineStyles = map[lineKind]lipgloss.Style{
		lineSent:    lipgloss.NewStyle().Foreground(lipgloss.Color("12")),
		lineOK:      lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		lineInfo:    lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		lineWarning: lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		lineError:   lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		lineData:    lipgloss.NewStyle().Foreground(lipgloss.Color("15")),
		lineRaw:     lipgloss.NewStyle().Foreground(lipgloss.Color("13")),
	}
)

//////////////////////////////////////////////////////////////
// Model Initialization
//////////////////////////////////////////////////////////////

func initialConsoleModel(conn io.Writer, connInfo string) consoleModel {
	ti := textinput.New()
	ti.Placeholder = "STATUS"
	ti.Prompt = "> "
	ti.CharLimit = 127
	ti.Width = 60
	ti.Focus()

	vp := viewport.New(80, 16)

	return consoleModel{
		conn:     conn,
		connInfo: connInfo,
		input:    ti,
		output:   vp,
		lines:    make([]consoleLine, 0),
		maxLogs:  500,
		width:    80,
		height:   24,
	}
}

//////////////////////////////////////////////////////////////
// Bubble Tea Interface
//////////////////////////////////////////////////////////////

func (m consoleModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m consoleModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "esc", "ctrl+c":
			m.quitting = true
			return m, tea.Quit

		case "enter":
			m.sendInput()
			return m, nil

		case "up":
			m.recall(-1)
			return m, nil

		case "down":
			m.recall(1)
			return m, nil

		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.output, cmd = m.output.Update(msg)
			return m, cmd
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()

	case consoleLineMsg:
		m.received++
		m.addLine(string(msg), classifyLine(string(msg)))

	case consoleClosedMsg:
		m.connectionLost = true
		text := "Connection closed"
		if msg.err != nil {
			text = fmt.Sprintf("Connection lost: %v", msg.err)
		}
		m.addLine(text, lineError)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m consoleModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	var s strings.Builder

	// Header
	s.WriteString(consoleTitleStyle.Render("PT2D CONSOLE"))
	s.WriteString(" ")
	connStatus := m.connInfo
	if m.connectionLost {
		connStatus = lineStyles[lineError].Render("DISCONNECTED")
	}
	s.WriteString(consoleHeaderStyle.Render(fmt.Sprintf("| %s | Esc=quit Up/Down=history", connStatus)))
	s.WriteString("\n")

	// Output pane
	s.WriteString(consoleBoxStyle.Width(m.width - 4).Render(m.output.View()))
	s.WriteString("\n")

	// Input line
	s.WriteString(m.input.View())
	s.WriteString("\n")

	// Counters
	s.WriteString(fmt.Sprintf("%s %d  %s %d  %s %d",
		consoleLabelStyle.Render("Sent:"), m.sent,
		consoleLabelStyle.Render("Received:"), m.received,
		consoleLabelStyle.Render("Errors:"), m.errors))

	return s.String()
}

//////////////////////////////////////////////////////////////
// Helpers
//////////////////////////////////////////////////////////////

func (m *consoleModel) sendInput() {
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return
	}
	m.input.Reset()
	m.history = append(m.history, text)
	m.historyIdx = len(m.history)

	if m.connectionLost {
		m.addLine("Cannot send command: connection lost", lineError)
		return
	}

	line := hostLine(text)
	if _, err := m.conn.Write([]byte(line)); err != nil {
		m.addLine(fmt.Sprintf("Send failed: %v", err), lineError)
		return
	}
	m.sent++
	m.addLine(strings.TrimSpace(line), lineSent)
}

// recall moves through the command history
func (m *consoleModel) recall(delta int) {
	if len(m.history) == 0 {
		return
	}
	m.historyIdx += delta
	if m.historyIdx < 0 {
		m.historyIdx = 0
	}
	if m.historyIdx >= len(m.history) {
		m.historyIdx = len(m.history)
		m.input.SetValue("")
		return
	}
	m.input.SetValue(m.history[m.historyIdx])
	m.input.CursorEnd()
}

func (m *consoleModel) addLine(text string, kind lineKind) {
	if kind == lineError {
		m.errors++
	}
	m.lines = append(m.lines, consoleLine{timestamp: time.Now(), text: text, kind: kind})
	if len(m.lines) > m.maxLogs {
		m.lines = m.lines[len(m.lines)-m.maxLogs:]
	}
	m.output.SetContent(m.renderLines())
	m.output.GotoBottom()
}

func (m consoleModel) renderLines() string {
	var s strings.Builder
	for _, l := range m.lines {
		s.WriteString(consoleHeaderStyle.Render(l.timestamp.Format("15:04:05.000")))
		s.WriteString(" ")
		s.WriteString(lineStyles[l.kind].Render(l.text))
		s.WriteString("\n")
	}
	return s.String()
}

func (m *consoleModel) resize() {
	// header, box border, input and counters
	m.output.Width = m.width - 8
	m.output.Height = m.height - 6
	if m.output.Height < 3 {
		m.output.Height = 3
	}
	m.input.Width = m.width - 4
	m.output.SetContent(m.renderLines())
}

// classifyLine picks a color from the reply status. Lines that are not
// JSON objects are raw bus bytes passed through by the bridge.
func classifyLine(line string) lineKind {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "{") {
		return lineRaw
	}
	var reply struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal([]byte(trimmed), &reply); err != nil {
		return lineRaw
	}
	switch reply.Status {
	case response.StatusOK:
		return lineOK
	case response.StatusInfo:
		return lineInfo
	case response.StatusWarning:
		return lineWarning
	case response.StatusError:
		return lineError
	}
	return lineData
}
