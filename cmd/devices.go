// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/Thermoquad/fluctus-relay/pkg/relay"
	"github.com/spf13/cobra"
)

var devicesTimeout int

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "Discover relays publishing under the topic base",
	Long: `Publish "list" on <topic-base>/devices and collect the device names
that answer.

Every running relay subscribes to the devices topic and replies with its
name. Names are printed sorted, one per line.

Examples:
  # Using broker settings from .env
  fluctus-relay devices

  # Explicit broker and topic base
  fluctus-relay devices --broker tcp://localhost:1883 --topic-base rockets

Exit codes:
  0 - Discovery successful (at least one device found)
  1 - Discovery failed (no devices answered)
  2 - Connection error`,
	RunE: runDevices,
}

func init() {
	rootCmd.AddCommand(devicesCmd)
	devicesCmd.Flags().IntVar(&devicesTimeout, "timeout", 3, "Seconds to wait for answers")
}

func runDevices(cmd *cobra.Command, args []string) error {
	cfg, err := loadRelayConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(2)
	}
	if cfg.ClientID == "" {
		// Must not collide with a relay using the same name
		cfg.ClientID = fmt.Sprintf("%s_discovery_%d", cfg.Name, os.Getpid())
	}

	logger := log.New(os.Stderr, "[mqtt] ", log.LstdFlags)
	client, err := relay.Connect(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer client.Disconnect(250)

	fmt.Printf("fluctus-relay - Device Discovery\n")
	fmt.Printf("Broker: %s\n", cfg.BrokerURL())
	fmt.Printf("Topic: %s\n", cfg.Topics().Devices())
	fmt.Printf("Waiting %d seconds for answers...\n\n", devicesTimeout)

	ctx, cancel := context.WithTimeout(cmd.Context(), time.Duration(devicesTimeout)*time.Second)
	defer cancel()

	names, err := relay.DiscoverDevices(ctx, client, cfg.Topics(), byte(cfg.QoS), cfg.NetworkTimeout())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Discovery error: %v\n", err)
		os.Exit(2)
	}

	if len(names) == 0 {
		fmt.Printf("No devices answered\n")
		os.Exit(1)
	}
	for _, name := range names {
		fmt.Println(name)
	}
	fmt.Printf("\n%d device(s) found\n", len(names))
	return nil
}
