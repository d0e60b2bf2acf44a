// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"log"

	"github.com/Thermoquad/fluctus-relay/pkg/fluctus"
	"github.com/spf13/cobra"
)

var (
	rawLogJSON    bool
	rawLogShowAll bool
)

var rawLogCmd = &cobra.Command{
	Use:   "raw_log",
	Short: "Display decoded telemetry in human-readable format",
	Long: `Continuously decode and display Fluctus telemetry lines as they arrive.

Each telemetry line is shown with its receive time, identity, flight state,
GPS fix, event message and radio link quality. Other ground station output
(boot banners, command acknowledgements) is skipped unless --all is given.

With --json every record is printed as one JSON object per line.

Supports serial, WebSocket and replay file connections.`,
	RunE: runRawLog,
}

func init() {
	rootCmd.AddCommand(rawLogCmd)
	rawLogCmd.Flags().BoolVar(&rawLogJSON, "json", false, "Print records as JSON lines")
	rawLogCmd.Flags().BoolVar(&rawLogShowAll, "all", false, "Also print non-telemetry lines")
}

func runRawLog(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	if !rawLogJSON {
		fmt.Printf("fluctus-relay - Raw Telemetry Log\n")
		fmt.Printf("Connection: %s\n", connInfo)
		fmt.Printf("Press Ctrl+C to exit\n\n")
	}

	done := make(chan struct{})
	defer close(done)

	for ev := range lineSource(conn, done) {
		if ev.err != nil {
			if ev.err == io.EOF || ev.err == ErrConnectionClosed {
				log.Printf("Connection closed")
				return nil
			}
			return fmt.Errorf("read error: %v", ev.err)
		}

		rec, err := fluctus.Decode(ev.line)
		if err != nil {
			fmt.Printf("[ERROR] %v\n", err)
			continue
		}
		if rec == nil {
			if rawLogShowAll && !rawLogJSON {
				fmt.Printf("[%s] %s\n", ev.received.Format("15:04:05.000"), ev.line)
			}
			continue
		}

		if rawLogJSON {
			data, err := json.Marshal(rec)
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			continue
		}
		fmt.Print(fluctus.FormatRecord(rec, ev.received))
	}
	return nil
}
