// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"

	"github.com/Thermoquad/fluctus-relay/pkg/fluctus"
	"github.com/spf13/cobra"
)

var armCmd = &cobra.Command{
	Use:   "arm",
	Short: "Arm the flight computer",
	Long: `Send "arm" to the ground station for uplink to the flight computer.

The flight computer does not acknowledge arming on the command channel;
watch the status field with raw_log or monitor to confirm.`,
	RunE: runArm,
}

func init() {
	rootCmd.AddCommand(armCmd)
}

func runArm(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := SendCommand(conn, fluctus.ArmCommand{}); err != nil {
		return fmt.Errorf("failed to send arm: %v", err)
	}
	fmt.Printf("Sent ARM via %s\n", connInfo)
	return nil
}
