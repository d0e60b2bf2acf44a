// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/Thermoquad/fluctus-relay/pkg/fluctus"
	"github.com/spf13/cobra"
)

var startTimeout int

var startCmd = &cobra.Command{
	Use:   "start <band> <channel> <name>",
	Short: "Tune the ground station and start a flight session",
	Long: `Send a start command to the ground station and wait for "startok".

The band is 0 or 1, the channel 0 to 25, and the name one to seven ASCII
letters. The command is sent as start<band><channel><name>, with the
channel zero padded to two digits.

Example:
  fluctus-relay start --port /dev/ttyUSB0 0 5 apogee

Exit codes:
  0 - Start acknowledged
  1 - No acknowledgement before timeout
  2 - Invalid arguments or connection error`,
	Args: cobra.ExactArgs(3),
	RunE: runStart,
}

func init() {
	rootCmd.AddCommand(startCmd)
	startCmd.Flags().IntVar(&startTimeout, "timeout", 5, "Timeout in seconds to wait for startok")
}

// parseStartArgs builds a start command from band, channel and name arguments
func parseStartArgs(args []string) (*fluctus.StartCommand, error) {
	band, err := strconv.Atoi(args[0])
	if err != nil {
		return nil, fmt.Errorf("invalid band %q: %v", args[0], err)
	}
	channel, err := strconv.Atoi(args[1])
	if err != nil {
		return nil, fmt.Errorf("invalid channel %q: %v", args[1], err)
	}
	return fluctus.NewStartCommand(band, channel, args[2])
}

func runStart(cmd *cobra.Command, args []string) error {
	start, err := parseStartArgs(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(2)
	}

	conn, connInfo, err := OpenConnection()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("fluctus-relay - Start\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Command: %s\n\n", start)

	done := make(chan struct{})
	defer close(done)
	lines := readLines(conn, done)

	sent := time.Now()
	if err := SendCommand(conn, start); err != nil {
		fmt.Fprintf(os.Stderr, "SEND FAILED: %v\n", err)
		os.Exit(2)
	}

	received, err := awaitReply(lines, fluctus.IsStartAck, time.Duration(startTimeout)*time.Second)
	if err == errReplyTimeout {
		fmt.Fprintf(os.Stderr, "TIMEOUT: no startok within %d seconds\n", startTimeout)
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Read error: %v\n", err)
		os.Exit(2)
	}

	fmt.Printf("SUCCESS: start acknowledged in %d ms\n", received.Sub(sent).Milliseconds())
	return nil
}
