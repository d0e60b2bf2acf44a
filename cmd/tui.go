// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/Thermoquad/fluctus-relay/pkg/fluctus"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Error log entry
type errorLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool // true for errors, false for warnings
}

// TUI model
type model struct {
	connInfo      string
	statsInterval int
	showAll       bool
	stats         *fluctus.Statistics
	errorLog      []errorLogEntry
	maxLogEntries int
	synchronized  bool
	skippedLines  int
	width         int
	height        int
	quitting      bool
	closed        bool
	lastRecord    *fluctus.Record
	lastReceived  time.Time
}

// Messages
type tickMsg time.Time
type lineDataMsg struct {
	line      string
	received  time.Time
	record    *fluctus.Record
	decodeErr error
}
type syncMsg struct {
	skippedLines int
}
type connectionClosedMsg struct {
	err error
}

// formatUptime formats uptime in milliseconds to human-friendly string
func formatUptime(ms uint64) string {
	if ms == 0 {
		return "0 seconds"
	}

	seconds := ms / 1000
	minutes := seconds / 60
	hours := minutes / 60
	days := hours / 24

	seconds %= 60
	minutes %= 60
	hours %= 24

	plural := func(n uint64, unit string) string {
		if n == 1 {
			return "1 " + unit
		}
		return fmt.Sprintf("%d %ss", n, unit)
	}

	parts := []string{}
	if days > 0 {
		parts = append(parts, plural(days, "day"))
	}
	if hours > 0 {
		parts = append(parts, plural(hours, "hour"))
	}
	if minutes > 0 {
		parts = append(parts, plural(minutes, "minute"))
	}
	if seconds > 0 || len(parts) == 0 {
		parts = append(parts, plural(seconds, "second"))
	}

	// Join with commas and "and" for last item
	if len(parts) == 1 {
		return parts[0]
	}
	if len(parts) == 2 {
		return parts[0] + " and " + parts[1]
	}
	last := parts[len(parts)-1]
	rest := strings.Join(parts[:len(parts)-1], ", ")
	return rest + ", and " + last
}

func initialModel(connInfo string, statsInterval int, showAll bool) model {
	return model{
		connInfo:      connInfo,
		statsInterval: statsInterval,
		showAll:       showAll,
		stats:         fluctus.NewStatistics(),
		errorLog:      make([]errorLogEntry, 0),
		maxLogEntries: 100,
		width:         80,
		height:        24,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(m.statsInterval),
		tea.EnterAltScreen,
	)
}

// tickCmd schedules the next rate update. Intervals below one second are raised to one.
func tickCmd(intervalSec int) tea.Cmd {
	interval := time.Duration(intervalSec) * time.Second
	if interval < time.Second {
		interval = time.Second
	}
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		m.stats.CalculateRates()
		return m, tickCmd(m.statsInterval)

	case syncMsg:
		m.synchronized = true
		m.skippedLines = msg.skippedLines
		if msg.skippedLines > 0 {
			m.addLogEntry(fmt.Sprintf("Synchronized after skipping %d lines", msg.skippedLines), false)
		} else {
			m.addLogEntry("Synchronized", false)
		}

	case connectionClosedMsg:
		m.closed = true
		m.addLogEntry(fmt.Sprintf("Connection closed: %v", msg.err), true)

	case lineDataMsg:
		m.handleLine(msg)
	}

	return m, nil
}

func (m *model) handleLine(msg lineDataMsg) {
	if msg.decodeErr != nil {
		m.stats.Observe(nil, msg.decodeErr)
		m.addLogEntry(fmt.Sprintf("DECODE ERROR: %v", msg.decodeErr), true)
		return
	}
	if msg.record == nil {
		m.stats.Observe(nil, nil)
		return
	}

	anomalies := m.stats.Observe(msg.record, nil)
	m.lastRecord = msg.record
	m.lastReceived = msg.received

	prefix := fmt.Sprintf("%c%c uid=%d", msg.record.Callsign, msg.record.PacketType, msg.record.UID)
	for _, a := range anomalies {
		m.addLogEntry(fmt.Sprintf("%s: %s", prefix, a.Message), true)
	}
	if msg.record.Message.Raw() != 0 {
		m.addLogEntry(fmt.Sprintf("%s: %s = %d", prefix, msg.record.Message.Kind, msg.record.Message.Value), false)
	} else if len(anomalies) == 0 && m.showAll {
		m.addLogEntry(fmt.Sprintf("%s (valid)", prefix), false)
	}
}

func (m *model) addLogEntry(message string, isError bool) {
	entry := errorLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	}
	m.errorLog = append(m.errorLog, entry)

	// Keep only last N entries
	if len(m.errorLog) > m.maxLogEntries {
		m.errorLog = m.errorLog[len(m.errorLog)-m.maxLogEntries:]
	}
}

// Shared styles for the error detection and monitor views
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12")).
			Background(lipgloss.Color("235")).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	statsLabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("12")).
			Bold(true)

	statsValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("11"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)
)

func (m model) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	var s strings.Builder
	s.WriteString(titleStyle.Render("FLUCTUS - ERROR DETECTION"))
	s.WriteString("\n")
	mode := "Errors only"
	if m.showAll {
		mode = "All records"
	}
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | Mode: %s | Press 'q' to quit", m.connInfo, mode)))
	s.WriteString("\n\n")

	// Sync status
	switch {
	case m.closed:
		s.WriteString(errorStyle.Render("✗ Connection closed"))
	case !m.synchronized:
		s.WriteString(warningStyle.Render("⏳ Waiting for telemetry..."))
	default:
		s.WriteString(statsValueStyle.Render("✓ Synchronized"))
		if m.skippedLines > 0 {
			s.WriteString(headerStyle.Render(fmt.Sprintf(" (skipped %d lines)", m.skippedLines)))
		}
	}
	s.WriteString("\n\n")

	s.WriteString(boxStyle.Render(renderStats(m.stats)))
	s.WriteString("\n\n")

	if m.lastRecord != nil {
		s.WriteString(statsLabelStyle.Render("Latest Telemetry:"))
		s.WriteString(headerStyle.Render(" " + m.lastReceived.Format("15:04:05.000")))
		s.WriteString("\n")
		s.WriteString(boxStyle.Render(renderRecord(m.lastRecord)))
		s.WriteString("\n\n")
	}

	s.WriteString(statsLabelStyle.Render("Recent Events:"))
	s.WriteString("\n")
	s.WriteString(boxStyle.Width(m.width - 4).Render(renderLog(m.errorLog, m.height-22)))

	return s.String()
}

// renderStats renders the statistics box contents
func renderStats(stats *fluctus.Statistics) string {
	stats.CalculateRates()
	var validPercent, errorPercent float64
	totalErrors := stats.Errors() + stats.AnomalousValues
	if stats.TotalPackets > 0 {
		validPercent = float64(stats.ValidPackets) * 100.0 / float64(stats.TotalPackets)
		errorPercent = float64(totalErrors) * 100.0 / float64(stats.TotalPackets)
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s   %s %s\n",
		statsLabelStyle.Render("Lines:"), statsValueStyle.Render(fmt.Sprintf("%d", stats.TotalLines)),
		statsLabelStyle.Render("Packets:"), statsValueStyle.Render(fmt.Sprintf("%d", stats.TotalPackets)),
		statsLabelStyle.Render("Valid:"), statsValueStyle.Render(fmt.Sprintf("%d (%.1f%%)", stats.ValidPackets, validPercent)),
		statsLabelStyle.Render("Errors:"), errorStyle.Render(fmt.Sprintf("%d (%.1f%%)", totalErrors, errorPercent)),
	))

	if stats.Errors() > 0 {
		b.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
			statsLabelStyle.Render("Malformed:"), errorStyle.Render(fmt.Sprintf("%d", stats.MalformedPackets)),
			statsLabelStyle.Render("Truncated:"), errorStyle.Render(fmt.Sprintf("%d", stats.TruncatedPackets)),
			statsLabelStyle.Render("Other:"), errorStyle.Render(fmt.Sprintf("%d", stats.DecodeErrors)),
		))
	}

	if stats.AnomalousValues > 0 {
		b.WriteString(fmt.Sprintf("%s %s (%s: %d, %s: %d, %s: %d)\n",
			statsLabelStyle.Render("Anomalous:"), warningStyle.Render(fmt.Sprintf("%d", stats.AnomalousValues)),
			headerStyle.Render("unknown enums"), stats.UnknownEnums,
			headerStyle.Render("invalid GPS"), stats.InvalidGPS,
			headerStyle.Render("low battery"), stats.LowBattery,
		))
	}

	errRate := statsValueStyle.Render(fmt.Sprintf("%.1f err/s", stats.ErrorRate))
	if stats.ErrorRate > 0 {
		errRate = errorStyle.Render(fmt.Sprintf("%.1f err/s", stats.ErrorRate))
	}
	b.WriteString(fmt.Sprintf("%s %s   %s %s",
		statsLabelStyle.Render("Packet Rate:"), statsValueStyle.Render(fmt.Sprintf("%.1f pkts/s", stats.PacketRate)),
		statsLabelStyle.Render("Error Rate:"), errRate,
	))
	return b.String()
}

// renderRecord renders the flight state of one record
func renderRecord(r *fluctus.Record) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		statsLabelStyle.Render("Status:"), statsValueStyle.Render(r.Status.String()),
		statsLabelStyle.Render("Mission:"), statsValueStyle.Render(fmt.Sprintf("%.1f s", r.MissionTime)),
		statsLabelStyle.Render("Uptime:"), statsValueStyle.Render(formatUptime(uint64(r.TimeMPU))),
	))
	b.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s   %s %s\n",
		statsLabelStyle.Render("Altitude:"), statsValueStyle.Render(fmt.Sprintf("%d m", r.Altitude)),
		statsLabelStyle.Render("Speed:"), statsValueStyle.Render(fmt.Sprintf("%d m/s", r.SpeedVert)),
		statsLabelStyle.Render("Accel:"), statsValueStyle.Render(fmt.Sprintf("%.1f m/s²", r.Accel)),
		statsLabelStyle.Render("Angle:"), statsValueStyle.Render(fmt.Sprintf("%d°", r.Angle)),
	))

	batt := statsValueStyle.Render(fmt.Sprintf("%.3f V", r.BattVoltage))
	if r.BattVoltage < fluctus.MinBattVoltage {
		batt = errorStyle.Render(fmt.Sprintf("%.3f V", r.BattVoltage))
	}
	b.WriteString(fmt.Sprintf("%s %s   %s %s\n",
		statsLabelStyle.Render("Battery:"), batt,
		statsLabelStyle.Render("Pyro:"), statsValueStyle.Render(r.Pyro.String()),
	))
	b.WriteString(fmt.Sprintf("%s %s   %s %s",
		statsLabelStyle.Render("GPS:"), statsValueStyle.Render(fmt.Sprintf("%.6f, %.6f (state %d)", r.GPSLat, r.GPSLng, r.GPSState)),
		statsLabelStyle.Render("Link:"), statsValueStyle.Render(fmt.Sprintf("%d dBm / %d dB", r.Diagnostics.RSSI, r.Diagnostics.SNR)),
	))
	return b.String()
}

// renderLog renders the newest entries that fit in height lines
func renderLog(entries []errorLogEntry, height int) string {
	if height < 5 {
		height = 5
	}
	if len(entries) == 0 {
		return headerStyle.Render("  (no events yet)")
	}

	startIdx := len(entries) - height
	if startIdx < 0 {
		startIdx = 0
	}

	var b strings.Builder
	for _, entry := range entries[startIdx:] {
		timestamp := entry.timestamp.Format("01/02/06 15:04:05.000")
		if entry.isError {
			b.WriteString(fmt.Sprintf("%s %s\n", headerStyle.Render(timestamp), errorStyle.Render("✗ "+entry.message)))
		} else {
			b.WriteString(fmt.Sprintf("%s %s\n", headerStyle.Render(timestamp), warningStyle.Render("ℹ "+entry.message)))
		}
	}
	return b.String()
}
