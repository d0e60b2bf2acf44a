// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/Thermoquad/fluctus-relay/pkg/fluctus"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

//////////////////////////////////////////////////////////////
// Constants
//////////////////////////////////////////////////////////////

const (
	staleAfterSeconds  = 5 // A rocket is shown as silent after N seconds without telemetry
	pingTimeoutSeconds = 5
)

// Focus states
const (
	focusRocketList = iota
	focusCommandInput
)

//////////////////////////////////////////////////////////////
// Types
//////////////////////////////////////////////////////////////

// rocket is a flight computer seen on the link, keyed by uid
type rocket struct {
	uid      int16
	callsign byte
	last     *fluctus.Record
	lastSeen time.Time
}

// Implement list.Item interface
func (r rocket) Title() string { return fmt.Sprintf("Rocket %c uid=%d", r.callsign, r.uid) }
func (r rocket) Description() string {
	if r.last == nil {
		return "no telemetry"
	}
	if time.Since(r.lastSeen) > staleAfterSeconds*time.Second {
		return r.last.Status.String() + " (silent)"
	}
	return r.last.Status.String()
}
func (r rocket) FilterValue() string { return fmt.Sprintf("%d", r.uid) }

// controlModel is the Bubble Tea model for the monitor TUI
type controlModel struct {
	connMgr  *connectionManager
	connInfo string

	rockets    []rocket
	rocketList list.Model

	stats         *fluctus.Statistics
	errorLog      []errorLogEntry
	maxLogEntries int

	cmdInput     textinput.Model
	focusedField int

	width          int
	height         int
	synchronized   bool
	quitting       bool
	connectionLost bool

	// Ping state
	pingSent time.Time
	lastRTT  time.Duration
	hasRTT   bool
}

//////////////////////////////////////////////////////////////
// Messages
//////////////////////////////////////////////////////////////

type controlTickMsg time.Time

type controlDataMsg struct {
	line      string
	received  time.Time
	record    *fluctus.Record
	decodeErr error
}

type controlSyncMsg struct {
	skippedLines int
}

type controlBatchMsg struct {
	messages []controlDataMsg
	syncMsg  *controlSyncMsg
}

type connectionLostMsg struct{}

type reconnectedMsg struct {
	connInfo string
}

//////////////////////////////////////////////////////////////
// Model Initialization
//////////////////////////////////////////////////////////////

func initialControlModel(connMgr *connectionManager, connInfo string) controlModel {
	ti := textinput.New()
	ti.Placeholder = "ping | arm | start005apogee"
	ti.CharLimit = 16
	ti.Width = 24

	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = true
	delegate.SetHeight(2)
	rocketList := list.New([]list.Item{}, delegate, 30, 10)
	rocketList.Title = "Rockets"
	rocketList.SetShowStatusBar(false)
	rocketList.SetShowHelp(false)
	rocketList.SetFilteringEnabled(false)

	return controlModel{
		connMgr:       connMgr,
		connInfo:      connInfo,
		rockets:       make([]rocket, 0),
		rocketList:    rocketList,
		stats:         fluctus.NewStatistics(),
		errorLog:      make([]errorLogEntry, 0),
		maxLogEntries: 100,
		cmdInput:      ti,
		focusedField:  focusRocketList,
		width:         80,
		height:        24,
	}
}

//////////////////////////////////////////////////////////////
// Bubble Tea Interface
//////////////////////////////////////////////////////////////

func (m controlModel) Init() tea.Cmd {
	return controlTickCmd()
}

func controlTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return controlTickMsg(t)
	})
}

func (m controlModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.MouseMsg:
		if msg.Action == tea.MouseActionRelease && msg.Button == tea.MouseButtonLeft {
			m.rocketList, _ = m.rocketList.Update(msg)
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateListSize()

	case controlTickMsg:
		m.stats.CalculateRates()
		if !m.pingSent.IsZero() && time.Since(m.pingSent) > pingTimeoutSeconds*time.Second {
			m.pingSent = time.Time{}
			m.addLogEntry(fmt.Sprintf("Ping timed out after %ds", pingTimeoutSeconds), true)
		}
		// Refresh silent markers
		m.updateRocketList()
		return m, controlTickCmd()

	case controlBatchMsg:
		if msg.syncMsg != nil {
			m.synchronized = true
			if msg.syncMsg.skippedLines > 0 {
				m.addLogEntry(fmt.Sprintf("Synchronized after skipping %d lines", msg.syncMsg.skippedLines), false)
			} else {
				m.addLogEntry("Synchronized", false)
			}
		}
		for _, data := range msg.messages {
			m.processControlData(data)
		}

	case connectionLostMsg:
		m.connectionLost = true
		m.addLogEntry("Connection lost - reconnecting...", true)

	case reconnectedMsg:
		m.connectionLost = false
		m.connInfo = msg.connInfo
		m.synchronized = false
		m.addLogEntry("Reconnected", false)
	}

	var cmd tea.Cmd
	if m.focusedField == focusCommandInput {
		m.cmdInput, cmd = m.cmdInput.Update(msg)
		cmds = append(cmds, cmd)
	} else {
		m.rocketList, cmd = m.rocketList.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m controlModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "q":
		// Typed into the command input otherwise
		if m.focusedField == focusRocketList {
			m.quitting = true
			return m, tea.Quit
		}

	case "tab", "shift+tab":
		m.toggleFocus()
		return m, nil

	case "enter":
		if m.focusedField == focusCommandInput {
			m.submitCommand()
			return m, nil
		}
	}

	var cmd tea.Cmd
	if m.focusedField == focusCommandInput {
		m.cmdInput, cmd = m.cmdInput.Update(msg)
	} else {
		m.rocketList, cmd = m.rocketList.Update(msg)
	}
	return m, cmd
}

func (m *controlModel) toggleFocus() {
	if m.focusedField == focusRocketList {
		m.focusedField = focusCommandInput
		m.cmdInput.Focus()
		return
	}
	m.focusedField = focusRocketList
	m.cmdInput.Blur()
}

func (m controlModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	var s strings.Builder

	focusedBoxStyle := boxStyle.
		BorderForeground(lipgloss.Color("12"))

	helpText := "Tab=switch Enter=send"
	if m.focusedField == focusRocketList {
		helpText = "q=quit " + helpText
	}
	s.WriteString(titleStyle.Render("FLUCTUS MONITOR"))
	s.WriteString(" ")
	connStatus := m.connInfo
	if m.connectionLost {
		connStatus = warningStyle.Render("RECONNECTING...")
	}
	s.WriteString(headerStyle.Render(fmt.Sprintf("| %s | %s", connStatus, helpText)))
	s.WriteString("\n\n")

	// Layout: left panel (rockets) | right panel (commands)
	leftWidth := 30
	rightWidth := m.width - leftWidth - 6

	listStyle := boxStyle.Width(leftWidth)
	cmdStyle := boxStyle.Width(rightWidth)
	if m.focusedField == focusRocketList {
		listStyle = focusedBoxStyle.Width(leftWidth)
	} else {
		cmdStyle = focusedBoxStyle.Width(rightWidth)
	}
	rocketPanel := listStyle.Render(m.rocketList.View())
	commandPanel := cmdStyle.Render(m.renderCommandPanel())

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, rocketPanel, " ", commandPanel))
	s.WriteString("\n\n")

	s.WriteString(m.renderStatisticsBar())
	s.WriteString("\n\n")

	if selected := m.getSelectedRocket(); selected != nil && selected.last != nil {
		s.WriteString(statsLabelStyle.Render("TELEMETRY"))
		s.WriteString(headerStyle.Render(fmt.Sprintf(" last seen %s ago", time.Since(selected.lastSeen).Round(time.Second))))
		s.WriteString("\n")
		s.WriteString(boxStyle.Width(m.width - 4).Render(renderRecord(selected.last)))
		s.WriteString("\n\n")
	} else if !m.synchronized {
		s.WriteString(warningStyle.Render("Waiting for telemetry..."))
		s.WriteString("\n\n")
	}

	s.WriteString(m.renderEventLog())

	return s.String()
}

//////////////////////////////////////////////////////////////
// View Helpers
//////////////////////////////////////////////////////////////

func (m controlModel) renderCommandPanel() string {
	var s strings.Builder

	s.WriteString(statsLabelStyle.Render("Command: "))
	if m.focusedField == focusCommandInput {
		s.WriteString(m.cmdInput.View())
	} else {
		s.WriteString(headerStyle.Render(fmt.Sprintf("[%s]", m.cmdInput.Placeholder)))
	}
	s.WriteString("\n\n")

	switch {
	case !m.pingSent.IsZero():
		s.WriteString(warningStyle.Render("Waiting for fcpong..."))
	case m.hasRTT:
		s.WriteString(fmt.Sprintf("%s %s",
			statsLabelStyle.Render("Last Ping:"),
			statsValueStyle.Render(fmt.Sprintf("%d ms", m.lastRTT.Milliseconds()))))
	default:
		s.WriteString(headerStyle.Render("start<band 0-1><channel 00-25><name 1-7 letters>"))
	}

	return s.String()
}

func (m controlModel) renderStatisticsBar() string {
	m.stats.CalculateRates()
	var validPercent, errorPercent float64
	if m.stats.TotalPackets > 0 {
		validPercent = float64(m.stats.ValidPackets) * 100.0 / float64(m.stats.TotalPackets)
		totalErrors := m.stats.Errors() + m.stats.AnomalousValues
		errorPercent = float64(totalErrors) * 100.0 / float64(m.stats.TotalPackets)
	}

	errText := statsValueStyle.Render("0.0%")
	if errorPercent > 0 {
		errText = errorStyle.Render(fmt.Sprintf("%.1f%%", errorPercent))
	}
	content := fmt.Sprintf("%s %s  %s %s  %s %s  %s %s",
		statsLabelStyle.Render("Total:"), statsValueStyle.Render(fmt.Sprintf("%d", m.stats.TotalPackets)),
		statsLabelStyle.Render("Valid:"), statsValueStyle.Render(fmt.Sprintf("%.1f%%", validPercent)),
		statsLabelStyle.Render("Errors:"), errText,
		statsLabelStyle.Render("Rate:"), statsValueStyle.Render(fmt.Sprintf("%.1f pkt/s", m.stats.PacketRate)),
	)

	return boxStyle.Width(m.width - 4).Render(content)
}

func (m controlModel) renderEventLog() string {
	var s strings.Builder
	s.WriteString(statsLabelStyle.Render("EVENTS"))
	s.WriteString("\n")

	logHeight := 8
	if len(m.errorLog) < logHeight {
		logHeight = len(m.errorLog)
	}
	startIdx := len(m.errorLog) - logHeight

	if len(m.errorLog) == 0 {
		s.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for _, entry := range m.errorLog[startIdx:] {
			icon := "i"
			style := warningStyle
			if entry.isError {
				icon = "x"
				style = errorStyle
			}
			s.WriteString(fmt.Sprintf("%s %s %s\n",
				headerStyle.Render(entry.timestamp.Format("15:04:05.000")),
				style.Render(icon),
				entry.message))
		}
	}

	return boxStyle.Width(m.width - 4).Render(s.String())
}

//////////////////////////////////////////////////////////////
// Data Processing
//////////////////////////////////////////////////////////////

func (m *controlModel) processControlData(msg controlDataMsg) {
	if msg.decodeErr != nil {
		m.stats.Observe(nil, msg.decodeErr)
		m.addLogEntry(fmt.Sprintf("DECODE ERROR: %v", msg.decodeErr), true)
		return
	}

	if msg.record == nil {
		m.stats.Observe(nil, nil)
		m.handleReply(msg.line, msg.received)
		return
	}

	anomalies := m.stats.Observe(msg.record, nil)
	m.handleRecord(msg.record, msg.received)

	for _, a := range anomalies {
		m.addLogEntry(fmt.Sprintf("uid=%d: %s", msg.record.UID, a.Message), true)
	}
}

// handleReply looks for command acknowledgements in non-telemetry lines
func (m *controlModel) handleReply(line string, received time.Time) {
	switch {
	case fluctus.IsPong(line):
		if m.pingSent.IsZero() {
			m.addLogEntry("Unsolicited fcpong", false)
			return
		}
		m.lastRTT = received.Sub(m.pingSent)
		m.hasRTT = true
		m.pingSent = time.Time{}
		m.addLogEntry(fmt.Sprintf("PONG rtt=%d ms", m.lastRTT.Milliseconds()), false)

	case fluctus.IsStartAck(line):
		m.addLogEntry("Start acknowledged", false)
	}
}

func (m *controlModel) handleRecord(r *fluctus.Record, received time.Time) {
	idx := -1
	for i := range m.rockets {
		if m.rockets[i].uid == r.UID {
			idx = i
			break
		}
	}
	if idx < 0 {
		m.rockets = append(m.rockets, rocket{uid: r.UID, callsign: r.Callsign})
		idx = len(m.rockets) - 1
		m.addLogEntry(fmt.Sprintf("Rocket seen: %c uid=%d fw=%d", r.Callsign, r.UID, r.FW), false)
	}

	rk := &m.rockets[idx]
	if rk.last != nil && rk.last.Status != r.Status {
		m.addLogEntry(fmt.Sprintf("uid=%d: %s -> %s", r.UID, rk.last.Status, r.Status), false)
	}
	if r.Message.Raw() != 0 && (rk.last == nil || rk.last.Message != r.Message) {
		m.addLogEntry(fmt.Sprintf("uid=%d: %s = %d", r.UID, r.Message.Kind, r.Message.Value), false)
	}
	rk.last = r
	rk.lastSeen = received

	m.updateRocketList()
}

//////////////////////////////////////////////////////////////
// Commands
//////////////////////////////////////////////////////////////

func (m *controlModel) submitCommand() {
	input := m.cmdInput.Value()
	if input == "" {
		return
	}

	if m.connectionLost {
		m.addLogEntry("Cannot send command: connection lost", true)
		return
	}

	c, err := fluctus.ParseCommand(input)
	if err != nil {
		m.addLogEntry(err.Error(), true)
		return
	}

	if err := m.connMgr.send(c); err != nil {
		m.addLogEntry(fmt.Sprintf("Failed to send command: %v", err), true)
		return
	}

	if _, ok := c.(fluctus.PingCommand); ok {
		m.pingSent = time.Now()
	}
	m.cmdInput.SetValue("")
	m.addLogEntry(fmt.Sprintf("Sent %s", c), false)
}

//////////////////////////////////////////////////////////////
// Helpers
//////////////////////////////////////////////////////////////

func (m *controlModel) addLogEntry(message string, isError bool) {
	entry := errorLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	}
	m.errorLog = append(m.errorLog, entry)

	if len(m.errorLog) > m.maxLogEntries {
		m.errorLog = m.errorLog[len(m.errorLog)-m.maxLogEntries:]
	}
}

func (m controlModel) getSelectedRocket() *rocket {
	if len(m.rockets) == 0 {
		return nil
	}

	idx := m.rocketList.Index()
	if idx < 0 || idx >= len(m.rockets) {
		return nil
	}

	return &m.rockets[idx]
}

func (m *controlModel) updateRocketList() {
	items := make([]list.Item, len(m.rockets))
	for i, r := range m.rockets {
		items[i] = r
	}
	m.rocketList.SetItems(items)
}

func (m *controlModel) updateListSize() {
	listHeight := m.height / 3
	if listHeight < 5 {
		listHeight = 5
	}
	m.rocketList.SetSize(28, listHeight)
}
