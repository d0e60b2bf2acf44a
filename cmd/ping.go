// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/Thermoquad/fluctus-relay/pkg/fluctus"
	"github.com/spf13/cobra"
)

var (
	pingTimeout int
	pingCount   int
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Ping the flight computer through the ground station",
	Long: `Send "ping" to the ground station and wait for the flight computer's "fcpong".

The round trip covers the ground station, the radio link and the flight
computer. Telemetry lines received while waiting are ignored.

This is useful for verifying:
  - The ground station accepts commands
  - The radio uplink reaches the flight computer
  - The flight computer is responsive

Exit codes:
  0 - All pings successful
  1 - One or more pings failed/timed out
  2 - Connection error`,
	RunE: runPing,
}

func init() {
	rootCmd.AddCommand(pingCmd)
	pingCmd.Flags().IntVar(&pingTimeout, "timeout", 5, "Timeout in seconds for each ping")
	pingCmd.Flags().IntVar(&pingCount, "count", 3, "Number of pings to send")
}

func runPing(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("fluctus-relay - Ping\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %d seconds per ping\n", pingTimeout)
	fmt.Printf("Count: %d pings\n\n", pingCount)

	done := make(chan struct{})
	defer close(done)
	lines := readLines(conn, done)

	successCount := 0
	failCount := 0
	var totalRTT time.Duration

	for i := 1; i <= pingCount; i++ {
		fmt.Printf("Ping %d/%d: ", i, pingCount)

		startTime := time.Now()
		if err := SendCommand(conn, fluctus.PingCommand{}); err != nil {
			fmt.Printf("SEND FAILED: %v\n", err)
			failCount++
			continue
		}

		received, err := awaitReply(lines, fluctus.IsPong, time.Duration(pingTimeout)*time.Second)
		switch {
		case err == errReplyTimeout:
			fmt.Printf("TIMEOUT (no fcpong in %ds)\n", pingTimeout)
			failCount++
		case err != nil:
			fmt.Printf("READ FAILED: %v\n", err)
			failCount++
		default:
			rtt := received.Sub(startTime)
			fmt.Printf("fcpong, rtt=%d ms\n", rtt.Milliseconds())
			totalRTT += rtt
			successCount++
		}

		if i < pingCount {
			time.Sleep(100 * time.Millisecond)
		}
	}

	fmt.Printf("\n--- Ping statistics ---\n")
	fmt.Printf("%d pings sent, %d responses received, %.0f%% packet loss\n",
		pingCount, successCount, float64(failCount)/float64(pingCount)*100)
	if successCount > 0 {
		fmt.Printf("average rtt=%d ms\n", (totalRTT / time.Duration(successCount)).Milliseconds())
	}

	if failCount > 0 {
		os.Exit(1)
	}
	return nil
}

var errReplyTimeout = errors.New("timed out waiting for reply")

// awaitReply reads lines until one satisfies match and returns when it was
// received. Telemetry and other output in between is skipped.
func awaitReply(lines <-chan lineEvent, match func(string) bool, timeout time.Duration) (time.Time, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case ev, ok := <-lines:
			if !ok {
				return time.Time{}, ErrConnectionClosed
			}
			if ev.err != nil {
				return time.Time{}, ev.err
			}
			if match(ev.line) {
				return ev.received, nil
			}
		case <-timer.C:
			return time.Time{}, errReplyTimeout
		}
	}
}
