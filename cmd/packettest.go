// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/Thermoquad/fluctus-relay/pkg/fluctus"
	"github.com/spf13/cobra"
)

var (
	packetTestTimeout int
)

var packetTestCmd = &cobra.Command{
	Use:   "packet_test",
	Short: "Test connection by waiting for a valid telemetry line",
	Long: `Wait for a valid Fluctus telemetry line on the connection until timeout.

This command connects to a serial port, WebSocket or replay file and waits
for any telemetry line that decodes cleanly. Non-telemetry output and
malformed lines are skipped.

Exit codes:
  0 - Telemetry received before timeout
  1 - Timeout reached without receiving a valid line
  2 - Connection error

Useful for testing connectivity to the ground station or a WebSocket bridge.`,
	RunE: runPacketTest,
}

func init() {
	rootCmd.AddCommand(packetTestCmd)
	packetTestCmd.Flags().IntVar(&packetTestTimeout, "timeout", 10, "Timeout in seconds to wait for telemetry")
}

func runPacketTest(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("fluctus-relay - Packet Test\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %d seconds\n", packetTestTimeout)
	fmt.Printf("Waiting for valid telemetry...\n\n")

	done := make(chan struct{})
	defer close(done)

	recordChan := make(chan *fluctus.Record, 1)
	errChan := make(chan error, 1)

	go func() {
		skipped := 0
		for ev := range readLines(conn, done) {
			if ev.err != nil {
				errChan <- ev.err
				return
			}
			rec, decodeErr := fluctus.Decode(ev.line)
			if decodeErr != nil || rec == nil {
				skipped++
				continue
			}
			if skipped > 0 {
				fmt.Printf("(skipped %d lines before first telemetry)\n", skipped)
			}
			recordChan <- rec
			return
		}
	}()

	select {
	case rec := <-recordChan:
		fmt.Printf("SUCCESS: Received valid telemetry\n")
		fmt.Printf("  Prefix: %c%c\n", rec.Callsign, rec.PacketType)
		fmt.Printf("  UID: %d, Firmware: %d\n", rec.UID, rec.FW)
		fmt.Printf("  Status: %s (%d)\n", rec.Status, rec.Status.Raw())
		fmt.Printf("  Link: RSSI %d dBm, SNR %d dB\n", rec.Diagnostics.RSSI, rec.Diagnostics.SNR)
		os.Exit(0)

	case err := <-errChan:
		fmt.Fprintf(os.Stderr, "Read error: %v\n", err)
		os.Exit(2)

	case <-time.After(time.Duration(packetTestTimeout) * time.Second):
		fmt.Fprintf(os.Stderr, "TIMEOUT: No valid telemetry received within %d seconds\n", packetTestTimeout)
		os.Exit(1)
	}

	return nil
}
