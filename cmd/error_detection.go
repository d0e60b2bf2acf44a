// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"io"
	"log"
	"time"

	"github.com/Thermoquad/fluctus-relay/pkg/fluctus"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var (
	showAll       bool
	statsInterval int
	useTUI        bool
)

var errorDetectionCmd = &cobra.Command{
	Use:   "error_detection",
	Short: "Detect and analyze malformed telemetry and anomalies",
	Long: `Track malformed lines, truncated payloads, and anomalous values with statistics.

This command decodes each telemetry line and detects:
  - Malformed lines (bad hex, odd digit count, bad diagnostics suffix)
  - Truncated payloads (fewer than 38 bytes)
  - Anomalous values (unknown status, pyro or message codes, invalid GPS, low battery)
  - Statistics and trends (packet rate, error rate, success rate)

By default, only errors are displayed. Use --show-all to display valid records too.

The first line after connecting is often cut short, so decode errors are
ignored until the first valid record arrives.`,
	RunE: runErrorDetection,
}

func init() {
	rootCmd.AddCommand(errorDetectionCmd)
	errorDetectionCmd.Flags().BoolVar(&showAll, "show-all", false, "Show all records (not just errors)")
	errorDetectionCmd.Flags().IntVar(&statsInterval, "stats-interval", 10, "Statistics update interval (seconds)")
	errorDetectionCmd.Flags().BoolVar(&useTUI, "tui", true, "Use terminal UI (false for text mode)")
}

func runErrorDetection(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	if useTUI {
		return runTUIMode(conn, connInfo)
	}
	return runTextMode(conn, connInfo)
}

// printDecodeError prints a decode error in highlighted format
func printDecodeError(received time.Time, line string, err error) {
	fmt.Printf("[%s] \033[1;31mDECODE ERROR:\033[0m %v\n", received.Format("15:04:05.000"), err)
	fmt.Printf("  Line: %s\n", line)
	fmt.Printf("  >>> DECODE FAILED <<<\n\n")
}

// printAnomalies prints the anomalies found in a record
func printAnomalies(rec *fluctus.Record, received time.Time, anomalies []fluctus.ValidationError) {
	fmt.Printf("[%s] \033[1;33mANOMALY:\033[0m %c%c uid=%d\n",
		received.Format("15:04:05.000"), rec.Callsign, rec.PacketType, rec.UID)

	for i, a := range anomalies {
		switch a.Type {
		case fluctus.AnomalyLowBattery, fluctus.AnomalyInvalidGPS:
			fmt.Printf("  Issue %d: \033[1;33m%s\033[0m\n", i+1, a.Message)
		default:
			fmt.Printf("  Issue %d: \033[1;31m%s\033[0m\n", i+1, a.Message)
		}
	}

	fmt.Printf("  Status: %s (%d), Pyro: 0x%02X, Message: %s (%d)\n\n",
		rec.Status, rec.Status.Raw(), rec.Pyro.Raw(), rec.Message.Kind, rec.Message.Kind.Raw())
}

// runTUIMode runs error detection in TUI mode
func runTUIMode(conn Connection, connInfo string) error {
	done := make(chan struct{})
	defer close(done)

	m := initialModel(connInfo, statsInterval, showAll)
	p := tea.NewProgram(m)

	go func() {
		synchronized := false
		linesBeforeSync := 0
		for ev := range lineSource(conn, done) {
			if ev.err != nil {
				p.Send(connectionClosedMsg{err: ev.err})
				return
			}

			rec, decodeErr := fluctus.Decode(ev.line)
			if decodeErr != nil {
				if synchronized {
					p.Send(lineDataMsg{line: ev.line, received: ev.received, decodeErr: decodeErr})
				} else {
					linesBeforeSync++
				}
				continue
			}
			if rec == nil {
				p.Send(lineDataMsg{line: ev.line, received: ev.received})
				continue
			}

			if !synchronized {
				synchronized = true
				p.Send(syncMsg{skippedLines: linesBeforeSync})
			}
			p.Send(lineDataMsg{line: ev.line, received: ev.received, record: rec})
		}
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %v", err)
	}

	return nil
}

// runTextMode runs error detection in text mode
func runTextMode(conn Connection, connInfo string) error {
	fmt.Printf("fluctus-relay - Error Detection Mode\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Statistics interval: %d seconds\n", statsInterval)
	if showAll {
		fmt.Printf("Mode: All records\n")
	} else {
		fmt.Printf("Mode: Errors only\n")
	}
	fmt.Printf("Press Ctrl+C to exit\n\n")

	stats := fluctus.NewStatistics()

	// Ignore decode errors until the first valid record
	synchronized := false
	linesBeforeSync := 0

	statsTicker := time.NewTicker(time.Duration(statsInterval) * time.Second)
	defer statsTicker.Stop()

	done := make(chan struct{})
	defer close(done)
	lines := lineSource(conn, done)

	for {
		select {
		case ev, ok := <-lines:
			if !ok {
				return nil
			}
			if ev.err != nil {
				if ev.err == io.EOF || ev.err == ErrConnectionClosed {
					log.Printf("Connection closed")
					fmt.Print(stats.String())
					return nil
				}
				return fmt.Errorf("read error: %v", ev.err)
			}

			rec, decodeErr := fluctus.Decode(ev.line)
			if decodeErr != nil {
				if synchronized {
					stats.Observe(nil, decodeErr)
					printDecodeError(ev.received, ev.line, decodeErr)
				} else {
					linesBeforeSync++
				}
				continue
			}
			if rec == nil {
				stats.Observe(nil, nil)
				continue
			}

			if !synchronized {
				synchronized = true
				if linesBeforeSync > 0 {
					fmt.Printf("[SYNC] Synchronized after skipping %d lines\n\n", linesBeforeSync)
				} else {
					fmt.Printf("[SYNC] Synchronized\n\n")
				}
			}

			anomalies := stats.Observe(rec, nil)
			if len(anomalies) > 0 {
				printAnomalies(rec, ev.received, anomalies)
			} else if rec.Message.Raw() != 0 {
				// Flight events are always worth seeing
				fmt.Printf("[%s] \033[1;32mMESSAGE:\033[0m %s = %d\n\n",
					ev.received.Format("15:04:05.000"), rec.Message.Kind, rec.Message.Value)
			} else if showAll {
				fmt.Print(fluctus.FormatRecord(rec, ev.received))
			}

		case <-statsTicker.C:
			fmt.Println()
			fmt.Print(stats.String())
			fmt.Println()
		}
	}
}
